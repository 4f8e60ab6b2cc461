package integration

import (
	"context"

	"github.com/google/uuid"
)

// TextCompleter is a single-shot AI completion call
type TextCompleter interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Background job names
const (
	JobItemSpecificsSync = "item_specifics.sync"
	JobBulkListing       = "listing.bulk_publish"
)

// JobDispatcher enqueues a named background job. Dispatch never waits for the job.
type JobDispatcher interface {
	Dispatch(ctx context.Context, name string, payload any) error
}

// ItemSpecificsSyncPayload is the payload of JobItemSpecificsSync
type ItemSpecificsSyncPayload struct {
	MappingID  uuid.UUID    `json:"mapping_id"`
	StoreID    uuid.UUID    `json:"store_id"`
	CategoryID uuid.UUID    `json:"category_id"`
	Platform   PlatformCode `json:"platform"`
}

// BulkListingPayload is the payload of JobBulkListing
type BulkListingPayload struct {
	StoreID    uuid.UUID   `json:"store_id"`
	ChannelID  uuid.UUID   `json:"channel_id"`
	ProductIDs []uuid.UUID `json:"product_ids"`
	Publish    bool        `json:"publish"`
}
