package ecommerce

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erp/listingsync/internal/domain/integration"
)

// ShopifyAdapter implements ListingAdapter over the Shopify Admin REST API
type ShopifyAdapter struct {
	adapterBase
	creds   integration.ShopifyCredentials
	client  *apiClient
	shopURL string
	asDraft bool
}

// NewShopifyAdapter creates a Shopify adapter for a channel
func NewShopifyAdapter(channel *integration.SalesChannel, deps AdapterDeps) (integration.ListingAdapter, error) {
	a := &ShopifyAdapter{adapterBase: newAdapterBase(integration.PlatformShopify, channel, deps)}
	if a.conn == nil {
		return a, nil
	}

	creds, err := a.conn.ShopifyCredentials()
	if err != nil {
		return nil, err
	}
	cfg, httpClient, limiter, err := deps.platformSettings(integration.PlatformShopify)
	if err != nil {
		return nil, err
	}
	if settings, err := channel.TypedSettings(); err == nil {
		a.asDraft = settings.PublishAsDraft
	}

	origin := cfg.BaseURL
	if origin == "" {
		origin = "https://" + strings.TrimRight(creds.ShopDomain, "/")
	}
	a.creds = creds
	a.shopURL = origin
	a.client = &apiClient{
		platform:   integration.PlatformShopify,
		baseURL:    origin + "/admin/api/" + creds.APIVersion,
		httpClient: httpClient,
		limiter:    limiter,
		authorize:  staticHeader("X-Shopify-Access-Token", creds.AccessToken),
		secrets:    []string{creds.AccessToken},
	}
	return a, nil
}

// IsConnected requires a shop domain and an access token
func (a *ShopifyAdapter) IsConnected() bool {
	return a.client != nil && a.creds.Complete()
}

// Publish creates the product, or updates it when it already exists
func (a *ShopifyAdapter) Publish(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	return a.finish(ctx, integration.ActionPublish, lc, start, a.upsert(ctx, lc, false))
}

// Sync updates a known product and creates an unknown one. Unchanged payloads are not re-sent.
func (a *ShopifyAdapter) Sync(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	return a.finish(ctx, integration.ActionSync, lc, start, a.upsert(ctx, lc, true))
}

func (a *ShopifyAdapter) upsert(ctx context.Context, lc *integration.ListingContext, syncing bool) integration.AdapterResult {
	if r, ok := a.precheck(a.IsConnected(), lc, false); !ok {
		return r
	}
	if r, ok := a.requirePayload(lc); !ok {
		return r
	}

	hash := payloadHash(lc)
	if syncing && payloadUnchanged(lc, hash) {
		return upToDate(lc)
	}

	status := "active"
	if a.asDraft {
		status = "draft"
	}
	product := a.buildProduct(lc, status)

	var resp shopifyProductEnvelope
	var err error
	if lc.HasExternalID() {
		err = a.client.send(ctx, http.MethodPut, "products/"+lc.ExternalID()+".json", shopifyProductEnvelope{Product: product}, &resp)
	} else {
		err = a.client.send(ctx, http.MethodPost, "products.json", shopifyProductEnvelope{Product: product}, &resp)
	}
	if err != nil {
		return integration.UpstreamFailed(a.platform, err)
	}
	if resp.Product.ID == 0 {
		return integration.UpstreamFailed(a.platform, a.client.upstreamError(http.StatusOK, integration.ErrPlatformInvalidResponse, "response has no product id"))
	}

	return a.productResult("Published to Shopify", resp.Product).
		WithData(integration.DataKeyPayloadHash, hash)
}

// Unpublish sets the product to draft
func (a *ShopifyAdapter) Unpublish(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	result := func() integration.AdapterResult {
		if r, ok := a.precheck(a.IsConnected(), lc, true); !ok {
			return r
		}
		body := shopifyProductEnvelope{Product: shopifyProduct{Status: "draft"}}
		if err := a.client.send(ctx, http.MethodPut, "products/"+lc.ExternalID()+".json", body, nil); err != nil {
			return integration.UpstreamFailed(a.platform, err)
		}
		return integration.Succeeded("Product set to draft on Shopify").
			WithData(integration.DataKeyNativeStatus, "draft")
	}()
	return a.finish(ctx, integration.ActionUnpublish, lc, start, result)
}

// End deletes the product
func (a *ShopifyAdapter) End(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	result := func() integration.AdapterResult {
		if r, ok := a.precheck(a.IsConnected(), lc, true); !ok {
			return r
		}
		if err := a.client.send(ctx, http.MethodDelete, "products/"+lc.ExternalID()+".json", nil, nil); err != nil {
			return integration.UpstreamFailed(a.platform, err)
		}
		return integration.Succeeded("Product deleted from Shopify")
	}()
	return a.finish(ctx, integration.ActionEnd, lc, start, result)
}

// UpdatePrice changes the price of the first variant
func (a *ShopifyAdapter) UpdatePrice(ctx context.Context, lc *integration.ListingContext, price decimal.Decimal) integration.AdapterResult {
	start := time.Now()
	result := func() integration.AdapterResult {
		if r, ok := a.precheck(a.IsConnected(), lc, true); !ok {
			return r
		}
		variant, err := a.firstVariant(ctx, lc)
		if err != nil {
			return integration.UpstreamFailed(a.platform, err)
		}
		body := map[string]any{"variant": map[string]any{"id": variant.ID, "price": price.StringFixed(2)}}
		if err := a.client.send(ctx, http.MethodPut, fmt.Sprintf("variants/%d.json", variant.ID), body, nil); err != nil {
			return integration.UpstreamFailed(a.platform, err)
		}
		return integration.Succeeded("Price updated on Shopify").
			WithData(integration.DataKeyPrice, price).
			WithData("variant_id", strconv.FormatInt(variant.ID, 10))
	}()
	return a.finish(ctx, integration.ActionUpdatePrice, lc, start, result)
}

// UpdateInventory sets the available quantity at the primary location
func (a *ShopifyAdapter) UpdateInventory(ctx context.Context, lc *integration.ListingContext, quantity int) integration.AdapterResult {
	start := time.Now()
	result := func() integration.AdapterResult {
		if r, ok := a.precheck(a.IsConnected(), lc, true); !ok {
			return r
		}
		variant, err := a.firstVariant(ctx, lc)
		if err != nil {
			return integration.UpstreamFailed(a.platform, err)
		}
		locationID, err := a.locationID(ctx, lc)
		if err != nil {
			return integration.UpstreamFailed(a.platform, err)
		}
		body := map[string]any{
			"location_id":       locationID,
			"inventory_item_id": variant.InventoryItemID,
			"available":         quantity,
		}
		if err := a.client.send(ctx, http.MethodPost, "inventory_levels/set.json", body, nil); err != nil {
			return integration.UpstreamFailed(a.platform, err)
		}
		return integration.Succeeded("Inventory updated on Shopify").
			WithData(integration.DataKeyQuantity, quantity).
			WithData("location_id", strconv.FormatInt(locationID, 10)).
			WithData("inventory_item_id", strconv.FormatInt(variant.InventoryItemID, 10))
	}()
	return a.finish(ctx, integration.ActionUpdateInventory, lc, start, result)
}

// Refresh reads the product status, price and quantity
func (a *ShopifyAdapter) Refresh(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	result := func() integration.AdapterResult {
		if r, ok := a.precheck(a.IsConnected(), lc, true); !ok {
			return r
		}
		product, err := a.fetchProduct(ctx, lc.ExternalID())
		if err != nil {
			return integration.UpstreamFailed(a.platform, err)
		}
		status, _ := integration.ShopifyStatusTable.Resolve(product.Status, lc.CurrentStatus())
		return a.productResult("Refreshed from Shopify", product).WithStatus(status)
	}()
	return a.finish(ctx, integration.ActionRefresh, lc, start, result)
}

func (a *ShopifyAdapter) buildProduct(lc *integration.ListingContext, status string) shopifyProduct {
	p := lc.Payload
	product := shopifyProduct{
		Title:       p.Title,
		BodyHTML:    p.FieldString("body_html", p.Description),
		Vendor:      p.Brand,
		ProductType: p.CategoryName,
		Status:      status,
	}
	for i, src := range p.Images {
		product.Images = append(product.Images, shopifyImage{Src: src, Position: i + 1})
	}

	variant := shopifyVariant{
		Price:               p.Price.StringFixed(2),
		SKU:                 p.SKU,
		Barcode:             p.Barcode,
		InventoryQuantity:   p.Quantity,
		InventoryManagement: "shopify",
	}
	if !p.Weight.IsZero() {
		w, _ := p.Weight.Float64()
		variant.Weight = w
		variant.WeightUnit = p.WeightUnit
	}
	if id, err := strconv.ParseInt(lc.PlatformDataString("variant_id"), 10, 64); err == nil {
		variant.ID = id
	}
	product.Variants = []shopifyVariant{variant}

	for _, mf := range p.Metafields {
		product.Metafields = append(product.Metafields, shopifyMetafield{
			Namespace: mf.Namespace,
			Key:       mf.Key,
			Value:     mf.Value,
			Type:      mf.Type,
		})
	}
	return product
}

func (a *ShopifyAdapter) productResult(message string, product shopifyProduct) integration.AdapterResult {
	id := strconv.FormatInt(product.ID, 10)
	url := ""
	if product.Handle != "" {
		url = a.shopURL + "/products/" + product.Handle
	}
	result := integration.Succeeded(message).
		WithExternalID(id, url).
		WithData(integration.DataKeyNativeStatus, product.Status)

	if len(product.Variants) > 0 {
		v := product.Variants[0]
		result = result.WithData("variant_id", strconv.FormatInt(v.ID, 10)).
			WithData("inventory_item_id", strconv.FormatInt(v.InventoryItemID, 10))
		if price, err := decimal.NewFromString(v.Price); err == nil {
			result = result.WithData(integration.DataKeyPrice, price)
		}
		qty := 0
		for _, variant := range product.Variants {
			qty += variant.InventoryQuantity
		}
		result = result.WithData(integration.DataKeyQuantity, qty)
	}
	return result
}

func (a *ShopifyAdapter) fetchProduct(ctx context.Context, id string) (shopifyProduct, error) {
	var resp shopifyProductEnvelope
	if err := a.client.get(ctx, "products/"+id+".json", nil, &resp); err != nil {
		return shopifyProduct{}, err
	}
	return resp.Product, nil
}

// firstVariant uses stored ids when present and reads the product otherwise
func (a *ShopifyAdapter) firstVariant(ctx context.Context, lc *integration.ListingContext) (shopifyVariant, error) {
	variantID, errV := strconv.ParseInt(lc.PlatformDataString("variant_id"), 10, 64)
	itemID, errI := strconv.ParseInt(lc.PlatformDataString("inventory_item_id"), 10, 64)
	if errV == nil && errI == nil && variantID > 0 && itemID > 0 {
		return shopifyVariant{ID: variantID, InventoryItemID: itemID}, nil
	}

	product, err := a.fetchProduct(ctx, lc.ExternalID())
	if err != nil {
		return shopifyVariant{}, err
	}
	if len(product.Variants) == 0 {
		return shopifyVariant{}, a.client.upstreamError(http.StatusOK, integration.ErrPlatformInvalidResponse, "product has no variants")
	}
	return product.Variants[0], nil
}

func (a *ShopifyAdapter) locationID(ctx context.Context, lc *integration.ListingContext) (int64, error) {
	if id, err := strconv.ParseInt(lc.PlatformDataString("location_id"), 10, 64); err == nil && id > 0 {
		return id, nil
	}
	var resp struct {
		Locations []struct {
			ID     int64 `json:"id"`
			Active bool  `json:"active"`
		} `json:"locations"`
	}
	if err := a.client.get(ctx, "locations.json", nil, &resp); err != nil {
		return 0, err
	}
	for _, loc := range resp.Locations {
		if loc.Active {
			return loc.ID, nil
		}
	}
	return 0, a.client.upstreamError(http.StatusOK, integration.ErrPlatformInvalidResponse, "shop has no active location")
}

// ---------------------------------------------------------------------------
// Shopify wire types
// ---------------------------------------------------------------------------

type shopifyProductEnvelope struct {
	Product shopifyProduct `json:"product"`
}

type shopifyProduct struct {
	ID          int64              `json:"id,omitempty"`
	Title       string             `json:"title,omitempty"`
	BodyHTML    string             `json:"body_html,omitempty"`
	Vendor      string             `json:"vendor,omitempty"`
	ProductType string             `json:"product_type,omitempty"`
	Handle      string             `json:"handle,omitempty"`
	Status      string             `json:"status,omitempty"`
	Images      []shopifyImage     `json:"images,omitempty"`
	Variants    []shopifyVariant   `json:"variants,omitempty"`
	Metafields  []shopifyMetafield `json:"metafields,omitempty"`
}

type shopifyImage struct {
	Src      string `json:"src"`
	Position int    `json:"position,omitempty"`
}

type shopifyVariant struct {
	ID                  int64   `json:"id,omitempty"`
	Price               string  `json:"price,omitempty"`
	SKU                 string  `json:"sku,omitempty"`
	Barcode             string  `json:"barcode,omitempty"`
	InventoryQuantity   int     `json:"inventory_quantity,omitempty"`
	InventoryItemID     int64   `json:"inventory_item_id,omitempty"`
	InventoryManagement string  `json:"inventory_management,omitempty"`
	Weight              float64 `json:"weight,omitempty"`
	WeightUnit          string  `json:"weight_unit,omitempty"`
}

type shopifyMetafield struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	Type      string `json:"type"`
}

var _ integration.ListingAdapter = (*ShopifyAdapter)(nil)
