package integration

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlatformListing is the external representation of one product on one sales channel.
// There is at most one listing per (product, sales channel) pair.
type PlatformListing struct {
	ID uuid.UUID

	// StoreID is the owning store
	StoreID uuid.UUID

	// ProductID is the listed product
	ProductID uuid.UUID

	// SalesChannelID is the channel the product is listed on
	SalesChannelID uuid.UUID

	// ExternalListingID is assigned by the marketplace on first publish
	ExternalListingID *string

	// ListingURL is the public URL, when the platform exposes one
	ListingURL string

	// Status is changed only by ListingManager operations
	Status ListingStatus

	// PlatformPrice is the last price reported to or by the platform
	PlatformPrice *decimal.Decimal

	// PlatformQuantity is the last quantity reported to or by the platform
	PlatformQuantity *int

	// PlatformData holds status echoes and platform-specific metadata
	PlatformData map[string]any

	PublishedAt  *time.Time
	LastSyncedAt *time.Time
	LastError    string

	// Version is incremented on every persisted change
	Version int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewPlatformListing creates a draft listing for a product on a channel
func NewPlatformListing(storeID, productID, channelID uuid.UUID) *PlatformListing {
	now := time.Now()
	return &PlatformListing{
		ID:             uuid.New(),
		StoreID:        storeID,
		ProductID:      productID,
		SalesChannelID: channelID,
		Status:         ListingStatusDraft,
		PlatformData:   make(map[string]any),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// HasExternalID reports whether the marketplace has assigned an id
func (l *PlatformListing) HasExternalID() bool {
	return l.ExternalListingID != nil && *l.ExternalListingID != ""
}

// MarkPending flags the listing as in flight before a publish call
func (l *PlatformListing) MarkPending() {
	l.Status = ListingStatusPending
	l.UpdatedAt = time.Now()
}

// ApplySuccess copies the side-channel data of a successful result onto the listing
func (l *PlatformListing) ApplySuccess(action ListingAction, result AdapterResult, now time.Time) {
	if result.ExternalID != "" {
		id := result.ExternalID
		l.ExternalListingID = &id
	}
	if result.URL != "" {
		l.ListingURL = result.URL
	}
	if price, ok := result.Price(); ok {
		l.PlatformPrice = &price
	}
	if qty, ok := result.Quantity(); ok {
		l.PlatformQuantity = &qty
	}
	for key, value := range result.Data {
		switch key {
		case DataKeyStatus, DataKeyPrice, DataKeyQuantity:
			continue
		}
		l.SetPlatformData(key, value)
	}

	status, hinted := result.Status()
	switch action {
	case ActionPublish:
		if !hinted || status != ListingStatusPending {
			status = ListingStatusListed
		}
		l.PublishedAt = &now
	case ActionUnpublish, ActionEnd:
		status = ListingStatusEnded
	case ActionSync:
		if !hinted {
			status = l.Status
			if !status.IsLive() {
				status = ListingStatusListed
			}
		}
	default:
		if !hinted {
			status = l.Status
		}
	}
	l.Status = status
	l.LastError = ""
	l.LastSyncedAt = &now
	l.UpdatedAt = now
}

// ApplyFailure records a failed call. Lifecycle actions move the listing to error;
// incremental actions keep the status. A remote id reported by a partially
// completed publish is kept, with its linkage data, so a retry updates instead
// of duplicating.
func (l *PlatformListing) ApplyFailure(action ListingAction, result AdapterResult, now time.Time) {
	if action.IsLifecycle() {
		l.Status = ListingStatusError
	}
	if result.ExternalID != "" && !l.HasExternalID() {
		id := result.ExternalID
		l.ExternalListingID = &id
	}
	for key, value := range result.Data {
		switch key {
		case DataKeyStatus, DataKeyPrice, DataKeyQuantity, DataKeyPayloadHash:
			continue
		}
		l.SetPlatformData(key, value)
	}
	l.LastError = result.Message
	l.UpdatedAt = now
}

// SetPlatformData stores a value in PlatformData
func (l *PlatformListing) SetPlatformData(key string, value any) {
	if l.PlatformData == nil {
		l.PlatformData = make(map[string]any)
	}
	l.PlatformData[key] = value
}

// PlatformDataString reads a string value from PlatformData
func (l *PlatformListing) PlatformDataString(key string) string {
	if l.PlatformData == nil {
		return ""
	}
	s, _ := l.PlatformData[key].(string)
	return s
}

// ListingFilter narrows listing queries
type ListingFilter struct {
	Status *ListingStatus
	Limit  int
	Offset int
}
