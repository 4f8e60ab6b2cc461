package integration

import (
	"github.com/erp/listingsync/internal/domain/shared"
	"github.com/google/uuid"
)

const (
	// EventTypeListingStatusChanged is published after a listing transition is persisted
	EventTypeListingStatusChanged = "ListingStatusChanged"

	// AggregateTypePlatformListing names the listing aggregate in events
	AggregateTypePlatformListing = "PlatformListing"
)

// ListingStatusChangedEvent is raised after every persisted ListingManager call
type ListingStatusChangedEvent struct {
	shared.BaseDomainEvent
	ListingID      uuid.UUID     `json:"listing_id"`
	ProductID      uuid.UUID     `json:"product_id"`
	SalesChannelID uuid.UUID     `json:"sales_channel_id"`
	Platform       PlatformCode  `json:"platform"`
	Action         ListingAction `json:"action"`
	FromStatus     ListingStatus `json:"from_status"`
	ToStatus       ListingStatus `json:"to_status"`
	Success        bool          `json:"success"`
	Message        string        `json:"message,omitempty"`
}

// NewListingStatusChangedEvent creates the event for one persisted call
func NewListingStatusChangedEvent(listing *PlatformListing, platform PlatformCode, action ListingAction, from ListingStatus, result AdapterResult) *ListingStatusChangedEvent {
	return &ListingStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeListingStatusChanged, AggregateTypePlatformListing, listing.ID, listing.StoreID),
		ListingID:       listing.ID,
		ProductID:       listing.ProductID,
		SalesChannelID:  listing.SalesChannelID,
		Platform:        platform,
		Action:          action,
		FromStatus:      from,
		ToStatus:        listing.Status,
		Success:         result.Success,
		Message:         result.Message,
	}
}

// Transitioned reports whether the status actually changed
func (e *ListingStatusChangedEvent) Transitioned() bool {
	return e.FromStatus != e.ToStatus
}
