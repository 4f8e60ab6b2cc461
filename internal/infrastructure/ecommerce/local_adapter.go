package ecommerce

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erp/listingsync/internal/domain/integration"
)

// LocalAdapter backs the in-store channel. There is no external system, so every
// call succeeds and reports the product's live price and quantity.
type LocalAdapter struct {
	adapterBase
}

// NewLocalAdapter creates the local channel adapter
func NewLocalAdapter(channel *integration.SalesChannel, deps AdapterDeps) (integration.ListingAdapter, error) {
	return &LocalAdapter{adapterBase: newAdapterBase(integration.PlatformLocal, channel, deps)}, nil
}

// IsConnected is always true
func (a *LocalAdapter) IsConnected() bool {
	return true
}

// Publish lists the product in store
func (a *LocalAdapter) Publish(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	result := a.live(lc, "Listed in store").WithExternalID(localExternalID(lc), "")
	return a.finish(ctx, integration.ActionPublish, lc, start, result)
}

// Unpublish hides the product in store
func (a *LocalAdapter) Unpublish(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	return a.finish(ctx, integration.ActionUnpublish, lc, start, a.live(lc, "Removed from store"))
}

// End removes the product from the store
func (a *LocalAdapter) End(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	return a.finish(ctx, integration.ActionEnd, lc, start, a.live(lc, "Removed from store"))
}

// UpdatePrice reports the product's price. The store sells at catalog price.
func (a *LocalAdapter) UpdatePrice(ctx context.Context, lc *integration.ListingContext, _ decimal.Decimal) integration.AdapterResult {
	start := time.Now()
	return a.finish(ctx, integration.ActionUpdatePrice, lc, start, a.live(lc, "Price updated"))
}

// UpdateInventory reports the product's stock
func (a *LocalAdapter) UpdateInventory(ctx context.Context, lc *integration.ListingContext, _ int) integration.AdapterResult {
	start := time.Now()
	return a.finish(ctx, integration.ActionUpdateInventory, lc, start, a.live(lc, "Inventory updated"))
}

// Sync reports the live product values
func (a *LocalAdapter) Sync(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	result := a.live(lc, "Synced").WithExternalID(localExternalID(lc), "")
	return a.finish(ctx, integration.ActionSync, lc, start, result)
}

// Refresh reports the live product values and keeps the current status
func (a *LocalAdapter) Refresh(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	result := a.live(lc, "Refreshed").WithStatus(lc.CurrentStatus())
	return a.finish(ctx, integration.ActionRefresh, lc, start, result)
}

func (a *LocalAdapter) live(lc *integration.ListingContext, message string) integration.AdapterResult {
	result := integration.Succeeded(message)
	if lc == nil || lc.Product == nil {
		return result
	}
	if v := lc.Product.FirstVariant(); v != nil {
		result = result.WithData(integration.DataKeyPrice, v.Price)
		if v.SKU != "" {
			result = result.WithData(integration.DataKeySKU, v.SKU)
		}
	}
	return result.WithData(integration.DataKeyQuantity, lc.Product.TotalQuantity())
}

// localExternalID keeps an existing id, otherwise uses the product id
func localExternalID(lc *integration.ListingContext) string {
	if lc.HasExternalID() {
		return lc.ExternalID()
	}
	if lc != nil && lc.Listing != nil {
		return lc.Listing.ProductID.String()
	}
	return ""
}

var _ integration.ListingAdapter = (*LocalAdapter)(nil)
