package listing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/listingsync/internal/domain/catalog"
	"github.com/erp/listingsync/internal/domain/integration"
	"github.com/erp/listingsync/internal/domain/shared"
	"github.com/erp/listingsync/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ListingManager owns the state machine of platform listings. Every marketplace
// call is paired with one persisted update of the listing, and the adapter's
// result is returned to the caller unchanged.
type ListingManager struct {
	listingRepo    integration.ListingRepository
	channelRepo    integration.SalesChannelRepository
	productRepo    catalog.ProductReader
	adapters       integration.AdapterResolver
	builder        *ListingBuilder
	txScope        TransactionScope
	locker         ListingLocker
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
	now            func() time.Time
}

// NewListingManager creates a new ListingManager
func NewListingManager(
	listingRepo integration.ListingRepository,
	channelRepo integration.SalesChannelRepository,
	productRepo catalog.ProductReader,
	adapters integration.AdapterResolver,
	builder *ListingBuilder,
	txScope TransactionScope,
	logger *zap.Logger,
) *ListingManager {
	return &ListingManager{
		listingRepo: listingRepo,
		channelRepo: channelRepo,
		productRepo: productRepo,
		adapters:    adapters,
		builder:     builder,
		txScope:     txScope,
		locker:      noopLocker{},
		logger:      logger,
		now:         time.Now,
	}
}

// SetLocker sets the per-listing lock
func (m *ListingManager) SetLocker(locker ListingLocker) {
	m.locker = locker
}

// SetEventPublisher sets the event publisher for status change events
func (m *ListingManager) SetEventPublisher(publisher shared.EventPublisher) {
	m.eventPublisher = publisher
}

// adapterCall invokes one adapter method. A non-nil error aborts the
// operation before anything is persisted.
type adapterCall func(ctx context.Context, adapter integration.ListingAdapter, lc *integration.ListingContext) (integration.AdapterResult, error)

// ---------------------------------------------------------------------------
// Listing operations
// ---------------------------------------------------------------------------

// Publish creates the listing on the marketplace. The listing is stored as
// pending before the call. A disconnected marketplace fails before anything is
// stored, and a payload that fails validation is not sent when the channel
// enforces validation.
func (m *ListingManager) Publish(ctx context.Context, listingID uuid.UUID) (integration.AdapterResult, error) {
	return m.execute(ctx, listingID, integration.ActionPublish, func(ctx context.Context, adapter integration.ListingAdapter, lc *integration.ListingContext) (integration.AdapterResult, error) {
		if !adapter.IsConnected() {
			return integration.NotConnected(adapter.Platform()), nil
		}
		if rejected, err := m.attachPayload(ctx, lc); rejected != nil || err != nil {
			return derefResult(rejected), err
		}
		if err := m.markPending(ctx, lc.Listing); err != nil {
			return integration.AdapterResult{}, err
		}
		return adapter.Publish(ctx, lc), nil
	})
}

// Unpublish deactivates the listing
func (m *ListingManager) Unpublish(ctx context.Context, listingID uuid.UUID) (integration.AdapterResult, error) {
	return m.execute(ctx, listingID, integration.ActionUnpublish, func(ctx context.Context, adapter integration.ListingAdapter, lc *integration.ListingContext) (integration.AdapterResult, error) {
		return adapter.Unpublish(ctx, lc), nil
	})
}

// End removes the listing from the marketplace
func (m *ListingManager) End(ctx context.Context, listingID uuid.UUID) (integration.AdapterResult, error) {
	return m.execute(ctx, listingID, integration.ActionEnd, func(ctx context.Context, adapter integration.ListingAdapter, lc *integration.ListingContext) (integration.AdapterResult, error) {
		return adapter.End(ctx, lc), nil
	})
}

// UpdatePrice changes only the marketplace price
func (m *ListingManager) UpdatePrice(ctx context.Context, listingID uuid.UUID, price decimal.Decimal) (integration.AdapterResult, error) {
	if price.IsNegative() {
		return integration.AdapterResult{}, shared.InvalidInput("Price must not be negative")
	}
	return m.execute(ctx, listingID, integration.ActionUpdatePrice, func(ctx context.Context, adapter integration.ListingAdapter, lc *integration.ListingContext) (integration.AdapterResult, error) {
		return adapter.UpdatePrice(ctx, lc, price), nil
	})
}

// UpdateInventory changes only the marketplace quantity. A nil quantity sends
// the product's total quantity across variants.
func (m *ListingManager) UpdateInventory(ctx context.Context, listingID uuid.UUID, quantity *int) (integration.AdapterResult, error) {
	if quantity != nil && *quantity < 0 {
		return integration.AdapterResult{}, shared.InvalidInput("Quantity must not be negative")
	}
	return m.execute(ctx, listingID, integration.ActionUpdateInventory, func(ctx context.Context, adapter integration.ListingAdapter, lc *integration.ListingContext) (integration.AdapterResult, error) {
		qty := lc.Product.TotalQuantity()
		if quantity != nil {
			qty = *quantity
		}
		return adapter.UpdateInventory(ctx, lc, qty), nil
	})
}

// Sync pushes the full current payload again
func (m *ListingManager) Sync(ctx context.Context, listingID uuid.UUID) (integration.AdapterResult, error) {
	return m.execute(ctx, listingID, integration.ActionSync, func(ctx context.Context, adapter integration.ListingAdapter, lc *integration.ListingContext) (integration.AdapterResult, error) {
		if rejected, err := m.attachPayload(ctx, lc); rejected != nil || err != nil {
			return derefResult(rejected), err
		}
		return adapter.Sync(ctx, lc), nil
	})
}

// Refresh pulls the marketplace state into the listing
func (m *ListingManager) Refresh(ctx context.Context, listingID uuid.UUID) (integration.AdapterResult, error) {
	return m.execute(ctx, listingID, integration.ActionRefresh, func(ctx context.Context, adapter integration.ListingAdapter, lc *integration.ListingContext) (integration.AdapterResult, error) {
		return adapter.Refresh(ctx, lc), nil
	})
}

// ---------------------------------------------------------------------------
// Listing lookup
// ---------------------------------------------------------------------------

// GetListing returns a listing owned by the store
func (m *ListingManager) GetListing(ctx context.Context, storeID, listingID uuid.UUID) (*integration.PlatformListing, error) {
	listing, err := m.listingRepo.FindByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.StoreID != storeID {
		return nil, integration.ErrListingNotFound
	}
	return listing, nil
}

// EnsureListing returns the listing of a product on a channel, creating a
// draft when the product has never been targeted at the channel
func (m *ListingManager) EnsureListing(ctx context.Context, storeID, productID, channelID uuid.UUID) (*integration.PlatformListing, error) {
	listing, err := m.listingRepo.FindByProductAndChannel(ctx, productID, channelID)
	if err == nil {
		return listing, nil
	}
	if !errors.Is(err, integration.ErrListingNotFound) {
		return nil, err
	}

	channel, err := m.channelRepo.FindByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if channel.StoreID != storeID {
		return nil, integration.ErrChannelNotFound
	}
	product, err := m.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.StoreID != storeID {
		return nil, shared.NotFound("Product not found")
	}

	listing = integration.NewPlatformListing(storeID, productID, channelID)
	if err := m.listingRepo.Create(ctx, listing); err != nil {
		if errors.Is(err, integration.ErrListingAlreadyExists) {
			return m.listingRepo.FindByProductAndChannel(ctx, productID, channelID)
		}
		return nil, err
	}
	return listing, nil
}

// ---------------------------------------------------------------------------
// Operation pipeline
// ---------------------------------------------------------------------------

func (m *ListingManager) execute(ctx context.Context, listingID uuid.UUID, action integration.ListingAction, call adapterCall) (integration.AdapterResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "listing_manager", action.String(),
		telemetry.WithAttribute(telemetry.SpanAttrListingID, listingID.String()),
	)
	defer span.End()

	result, err := m.run(ctx, listingID, action, call)
	if err != nil {
		telemetry.RecordError(span, err)
		return result, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrSuccess, result.Success)
	telemetry.SetOK(span)
	return result, nil
}

func (m *ListingManager) run(ctx context.Context, listingID uuid.UUID, action integration.ListingAction, call adapterCall) (integration.AdapterResult, error) {
	release, err := m.locker.Acquire(ctx, listingID)
	if err != nil {
		return integration.AdapterResult{}, err
	}
	defer release()

	listing, err := m.listingRepo.FindByID(ctx, listingID)
	if err != nil {
		return integration.AdapterResult{}, err
	}
	channel, err := m.channelRepo.FindByID(ctx, listing.SalesChannelID)
	if err != nil {
		return integration.AdapterResult{}, err
	}
	product, err := m.productRepo.FindByID(ctx, listing.ProductID)
	if err != nil {
		return integration.AdapterResult{}, err
	}
	adapter, err := m.adapters.Make(ctx, channel)
	if err != nil {
		return integration.AdapterResult{}, err
	}

	from := listing.Status
	lc := &integration.ListingContext{Listing: listing, Channel: channel, Product: product}
	result, err := call(ctx, adapter, lc)
	if err != nil {
		return integration.AdapterResult{}, err
	}

	if err := m.persist(ctx, action, lc, result); err != nil {
		m.logger.Error("failed to persist listing outcome",
			zap.String("listing_id", listingID.String()),
			zap.String("action", action.String()),
			zap.Bool("success", result.Success),
			zap.Error(err),
		)
		return result, fmt.Errorf("persist listing %s: %w", listingID, err)
	}

	m.publishEvent(ctx, integration.NewListingStatusChangedEvent(listing, adapter.Platform(), action, from, result))
	return result, nil
}

// attachPayload builds the outbound payload. When validation fails on a
// channel that enforces it, the returned result is the failure to report and
// the adapter must not be called. The local channel never enforces it.
func (m *ListingManager) attachPayload(ctx context.Context, lc *integration.ListingContext) (*integration.AdapterResult, error) {
	payload, validation, err := m.builder.Build(ctx, lc.Product, lc.Channel)
	if err != nil {
		return nil, err
	}
	lc.Payload = payload
	if validation.Valid {
		return nil, nil
	}

	settings, err := lc.Channel.TypedSettings()
	if err != nil {
		return nil, fmt.Errorf("decode channel settings: %w", err)
	}
	if !settings.EnforceValidity || lc.Channel.IsLocal() {
		m.logger.Warn("sending listing that failed validation",
			zap.String("listing_id", lc.Listing.ID.String()),
			zap.Strings("errors", validation.Errors),
		)
		return nil, nil
	}

	verr := validation.Err()
	rejected := integration.Failed(verr.Error(), verr).WithData("errors", validation.Errors)
	return &rejected, nil
}

// markPending stores the in-flight status so concurrent readers see the publish
func (m *ListingManager) markPending(ctx context.Context, listing *integration.PlatformListing) error {
	listing.MarkPending()
	return m.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		return repos.ListingRepo().Update(ctx, listing)
	})
}

// persist writes the outcome of one call. A rejected payload or a missing
// connection never reached the marketplace and only records the error.
func (m *ListingManager) persist(ctx context.Context, action integration.ListingAction, lc *integration.ListingContext, result integration.AdapterResult) error {
	now := m.now()
	listing := lc.Listing
	conn := lc.Channel.Connection

	return m.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var connChanged bool
		switch {
		case result.Success:
			listing.ApplySuccess(action, result, now)
			if conn != nil {
				conn.LastSyncAt = &now
				conn.UpdatedAt = now
				connChanged = true
			}
		case errors.Is(result.Err, integration.ErrValidationFailed), errors.Is(result.Err, integration.ErrNotConnected):
			listing.LastError = result.Message
			listing.UpdatedAt = now
		default:
			listing.ApplyFailure(action, result, now)
			if conn != nil && credentialsRejected(result.Err) {
				conn.MarkError(result.Message, now)
				connChanged = true
			}
		}

		if err := repos.ListingRepo().Update(ctx, listing); err != nil {
			return err
		}
		if connChanged {
			return repos.ConnectionRepo().Save(ctx, conn)
		}
		return nil
	})
}

func credentialsRejected(err error) bool {
	return errors.Is(err, integration.ErrPlatformAuthFailed) || errors.Is(err, integration.ErrPlatformTokenRefresh)
}

func (m *ListingManager) publishEvent(ctx context.Context, event *integration.ListingStatusChangedEvent) {
	if m.eventPublisher == nil {
		return
	}
	if err := m.eventPublisher.Publish(ctx, event); err != nil {
		m.logger.Warn("failed to publish listing event",
			zap.String("listing_id", event.ListingID.String()),
			zap.String("event_type", event.EventType()),
			zap.Error(err),
		)
	}
}

func derefResult(r *integration.AdapterResult) integration.AdapterResult {
	if r == nil {
		return integration.AdapterResult{}
	}
	return *r
}
