package listing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/erp/listingsync/internal/domain/integration"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Item specifics sync
// ---------------------------------------------------------------------------

// ItemSpecificsSyncExecutor fetches the aspects a marketplace defines for a
// mapped category and stores them on the category mapping
type ItemSpecificsSyncExecutor struct {
	mappingRepo integration.CategoryMappingRepository
	channelRepo integration.SalesChannelRepository
	adapters    integration.AdapterResolver
	logger      *zap.Logger
	now         func() time.Time
}

// NewItemSpecificsSyncExecutor creates a new ItemSpecificsSyncExecutor
func NewItemSpecificsSyncExecutor(
	mappingRepo integration.CategoryMappingRepository,
	channelRepo integration.SalesChannelRepository,
	adapters integration.AdapterResolver,
	logger *zap.Logger,
) *ItemSpecificsSyncExecutor {
	return &ItemSpecificsSyncExecutor{
		mappingRepo: mappingRepo,
		channelRepo: channelRepo,
		adapters:    adapters,
		logger:      logger,
		now:         time.Now,
	}
}

// Handle runs one integration.JobItemSpecificsSync job
func (e *ItemSpecificsSyncExecutor) Handle(ctx context.Context, raw []byte) error {
	var payload integration.ItemSpecificsSyncPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("decode item specifics payload: %w", err)
	}
	return e.Sync(ctx, payload)
}

// Sync refreshes the item specifics of one mapping. A mapping whose specifics
// are fresh is left alone.
func (e *ItemSpecificsSyncExecutor) Sync(ctx context.Context, payload integration.ItemSpecificsSyncPayload) error {
	mapping, err := e.mappingRepo.FindByID(ctx, payload.MappingID)
	if err != nil {
		return err
	}
	now := e.now()
	if !mapping.ItemSpecificsStale(now) {
		return nil
	}

	provider, err := e.provider(ctx, mapping)
	if err != nil {
		return err
	}
	fields, err := provider.FetchItemSpecifics(ctx, mapping.PrimaryCategoryID)
	if err != nil {
		return fmt.Errorf("fetch item specifics for category %s: %w", mapping.PrimaryCategoryID, err)
	}

	mapping.RecordItemSpecifics(fields, now)
	if err := e.mappingRepo.Upsert(ctx, mapping); err != nil {
		return err
	}

	e.logger.Info("item specifics synced",
		zap.String("mapping_id", mapping.ID.String()),
		zap.String("platform", mapping.Platform.String()),
		zap.String("category_id", mapping.PrimaryCategoryID),
		zap.Int("fields", len(fields)),
		zap.Int("required", len(mapping.RequiredItemSpecifics())),
	)
	return nil
}

// provider finds a connected channel of the mapping's store and platform
func (e *ItemSpecificsSyncExecutor) provider(ctx context.Context, mapping *integration.CategoryPlatformMapping) (integration.ItemSpecificsProvider, error) {
	channels, err := e.channelRepo.FindByStoreAndPlatform(ctx, mapping.StoreID, mapping.Platform)
	if err != nil {
		return nil, err
	}
	for i := range channels {
		channel := &channels[i]
		if !channel.IsActive || !channel.HasConnection() {
			continue
		}
		adapter, err := e.adapters.Make(ctx, channel)
		if err != nil {
			return nil, err
		}
		if !adapter.IsConnected() {
			continue
		}
		provider, ok := adapter.(integration.ItemSpecificsProvider)
		if !ok {
			return nil, integration.ErrCapabilityNotSupported
		}
		return provider, nil
	}
	return nil, fmt.Errorf("%w: no active %s channel for store %s", integration.ErrNotConnected, mapping.Platform.DisplayName(), mapping.StoreID)
}

// ---------------------------------------------------------------------------
// Bulk listing
// ---------------------------------------------------------------------------

// BulkListingExecutor creates listings for many products on one channel and
// optionally publishes them
type BulkListingExecutor struct {
	manager *ListingManager
	logger  *zap.Logger
}

// NewBulkListingExecutor creates a new BulkListingExecutor
func NewBulkListingExecutor(manager *ListingManager, logger *zap.Logger) *BulkListingExecutor {
	return &BulkListingExecutor{manager: manager, logger: logger}
}

// BulkListingSummary counts the outcomes of one bulk run
type BulkListingSummary struct {
	Ensured   int
	Published int
	Failed    int
}

// Handle runs one integration.JobBulkListing job
func (e *BulkListingExecutor) Handle(ctx context.Context, raw []byte) error {
	var payload integration.BulkListingPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("decode bulk listing payload: %w", err)
	}
	_, err := e.Run(ctx, payload)
	return err
}

// Run processes every product of the payload. Marketplace failures are counted
// and logged per product; only lookup or persistence errors are returned,
// joined, after all products were attempted.
func (e *BulkListingExecutor) Run(ctx context.Context, payload integration.BulkListingPayload) (BulkListingSummary, error) {
	var summary BulkListingSummary
	var errs []error

	for _, productID := range payload.ProductIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		listing, err := e.manager.EnsureListing(ctx, payload.StoreID, productID, payload.ChannelID)
		if err != nil {
			summary.Failed++
			errs = append(errs, fmt.Errorf("product %s: %w", productID, err))
			continue
		}
		summary.Ensured++
		if !payload.Publish {
			continue
		}

		result, err := e.manager.Publish(ctx, listing.ID)
		if err != nil {
			summary.Failed++
			errs = append(errs, fmt.Errorf("product %s: %w", productID, err))
			continue
		}
		if !result.Success {
			summary.Failed++
			e.logger.Warn("bulk publish failed for product",
				zap.String("product_id", productID.String()),
				zap.String("listing_id", listing.ID.String()),
				zap.String("message", result.Message),
			)
			continue
		}
		summary.Published++
	}

	e.logger.Info("bulk listing finished",
		zap.String("channel_id", payload.ChannelID.String()),
		zap.Int("products", len(payload.ProductIDs)),
		zap.Int("ensured", summary.Ensured),
		zap.Int("published", summary.Published),
		zap.Int("failed", summary.Failed),
	)
	return summary, errors.Join(errs...)
}
