package ecommerce

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erp/listingsync/internal/domain/integration"
)

// BigCommerceAdapter implements ListingAdapter over the BigCommerce catalog API v3
type BigCommerceAdapter struct {
	adapterBase
	creds  integration.BigCommerceCredentials
	client *apiClient
}

// NewBigCommerceAdapter creates a BigCommerce adapter for a channel
func NewBigCommerceAdapter(channel *integration.SalesChannel, deps AdapterDeps) (integration.ListingAdapter, error) {
	a := &BigCommerceAdapter{adapterBase: newAdapterBase(integration.PlatformBigCommerce, channel, deps)}
	if a.conn == nil {
		return a, nil
	}

	creds, err := a.conn.BigCommerceCredentials()
	if err != nil {
		return nil, err
	}
	cfg, httpClient, limiter, err := deps.platformSettings(integration.PlatformBigCommerce)
	if err != nil {
		return nil, err
	}

	a.creds = creds
	a.client = &apiClient{
		platform:   integration.PlatformBigCommerce,
		baseURL:    cfg.BaseURL + "/" + creds.StoreHash,
		httpClient: httpClient,
		limiter:    limiter,
		authorize:  staticHeader("X-Auth-Token", creds.AccessToken),
		secrets:    []string{creds.AccessToken},
	}
	return a, nil
}

// IsConnected requires the store hash and token
func (a *BigCommerceAdapter) IsConnected() bool {
	return a.client != nil && a.creds.Complete()
}

// TestConnection validates the token against the store
func (a *BigCommerceAdapter) TestConnection(ctx context.Context) (*integration.ConnectionInfo, error) {
	if !a.IsConnected() {
		return nil, integration.ErrNotConnected
	}
	var store struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Domain string `json:"domain"`
	}
	if err := a.client.get(ctx, "v2/store", nil, &store); err != nil {
		return nil, err
	}
	id := store.ID
	if id == "" {
		id = a.creds.StoreHash
	}
	return &integration.ConnectionInfo{ExternalStoreID: id, ShopName: store.Name, ShopDomain: store.Domain}, nil
}

// Publish creates the product, or updates it when it already exists
func (a *BigCommerceAdapter) Publish(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	return a.finish(ctx, integration.ActionPublish, lc, start, a.upsert(ctx, lc, false))
}

// Sync updates a known product and creates an unknown one
func (a *BigCommerceAdapter) Sync(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	return a.finish(ctx, integration.ActionSync, lc, start, a.upsert(ctx, lc, true))
}

func (a *BigCommerceAdapter) upsert(ctx context.Context, lc *integration.ListingContext, syncing bool) integration.AdapterResult {
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

	body := a.buildProduct(lc.Payload)
	var resp bigcommerceEnvelope
	var err error
	if lc.HasExternalID() {
		err = a.client.send(ctx, http.MethodPut, "v3/catalog/products/"+lc.ExternalID(), body, &resp)
	} else {
		err = a.client.send(ctx, http.MethodPost, "v3/catalog/products", body, &resp)
	}
	if err != nil {
		return integration.UpstreamFailed(a.platform, err)
	}
	if resp.Data.ID == 0 {
		return integration.UpstreamFailed(a.platform, a.client.upstreamError(http.StatusOK, integration.ErrPlatformInvalidResponse, "response has no product id"))
	}
	return a.productResult("Published to BigCommerce", resp.Data).WithData(integration.DataKeyPayloadHash, hash)
}

// Unpublish hides the product from the storefront
func (a *BigCommerceAdapter) Unpublish(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	result := func() integration.AdapterResult {
		if r, ok := a.precheck(a.IsConnected(), lc, true); !ok {
			return r
		}
		body := map[string]any{"is_visible": false}
		if err := a.client.send(ctx, http.MethodPut, "v3/catalog/products/"+lc.ExternalID(), body, nil); err != nil {
			return integration.UpstreamFailed(a.platform, err)
		}
		return integration.Succeeded("Product hidden on BigCommerce").WithData(integration.DataKeyNativeStatus, "false")
	}()
	return a.finish(ctx, integration.ActionUnpublish, lc, start, result)
}

// End deletes the product
func (a *BigCommerceAdapter) End(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	result := func() integration.AdapterResult {
		if r, ok := a.precheck(a.IsConnected(), lc, true); !ok {
			return r
		}
		if err := a.client.send(ctx, http.MethodDelete, "v3/catalog/products/"+lc.ExternalID(), nil, nil); err != nil {
			return integration.UpstreamFailed(a.platform, err)
		}
		return integration.Succeeded("Product deleted from BigCommerce")
	}()
	return a.finish(ctx, integration.ActionEnd, lc, start, result)
}

// UpdatePrice sets the product price
func (a *BigCommerceAdapter) UpdatePrice(ctx context.Context, lc *integration.ListingContext, price decimal.Decimal) integration.AdapterResult {
	start := time.Now()
	result := func() integration.AdapterResult {
		if r, ok := a.precheck(a.IsConnected(), lc, true); !ok {
			return r
		}
		body := map[string]any{"price": price.InexactFloat64()}
		if err := a.client.send(ctx, http.MethodPut, "v3/catalog/products/"+lc.ExternalID(), body, nil); err != nil {
			return integration.UpstreamFailed(a.platform, err)
		}
		return integration.Succeeded("Price updated on BigCommerce").WithData(integration.DataKeyPrice, price)
	}()
	return a.finish(ctx, integration.ActionUpdatePrice, lc, start, result)
}

// UpdateInventory sets the tracked inventory level
func (a *BigCommerceAdapter) UpdateInventory(ctx context.Context, lc *integration.ListingContext, quantity int) integration.AdapterResult {
	start := time.Now()
	result := func() integration.AdapterResult {
		if r, ok := a.precheck(a.IsConnected(), lc, true); !ok {
			return r
		}
		body := map[string]any{"inventory_tracking": "product", "inventory_level": quantity}
		if err := a.client.send(ctx, http.MethodPut, "v3/catalog/products/"+lc.ExternalID(), body, nil); err != nil {
			return integration.UpstreamFailed(a.platform, err)
		}
		return integration.Succeeded("Inventory updated on BigCommerce").WithData(integration.DataKeyQuantity, quantity)
	}()
	return a.finish(ctx, integration.ActionUpdateInventory, lc, start, result)
}

// Refresh reads visibility, price and inventory
func (a *BigCommerceAdapter) Refresh(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	result := func() integration.AdapterResult {
		if r, ok := a.precheck(a.IsConnected(), lc, true); !ok {
			return r
		}
		var resp bigcommerceEnvelope
		if err := a.client.get(ctx, "v3/catalog/products/"+lc.ExternalID(), nil, &resp); err != nil {
			return integration.UpstreamFailed(a.platform, err)
		}
		native := strconv.FormatBool(resp.Data.IsVisible)
		status, _ := integration.BigCommerceStatusTable.Resolve(native, lc.CurrentStatus())
		return a.productResult("Refreshed from BigCommerce", resp.Data).WithStatus(status)
	}()
	return a.finish(ctx, integration.ActionRefresh, lc, start, result)
}

func (a *BigCommerceAdapter) buildProduct(p *integration.ListingPayload) bigcommerceProduct {
	product := bigcommerceProduct{
		Name:              p.Title,
		Type:              "physical",
		SKU:               p.SKU,
		Description:       p.Description,
		Price:             p.Price.InexactFloat64(),
		Weight:            p.Weight.InexactFloat64(),
		InventoryLevel:    p.Quantity,
		InventoryTracking: "product",
		IsVisible:         true,
		UPC:               p.UPC,
		MPN:               p.MPN,
	}
	if p.Brand != "" {
		product.BrandName = p.Brand
	}
	if p.PrimaryCategoryID != nil {
		if id, err := strconv.ParseInt(*p.PrimaryCategoryID, 10, 64); err == nil {
			product.Categories = []int64{id}
		}
	}
	for i, src := range p.Images {
		product.Images = append(product.Images, bigcommerceImage{ImageURL: src, IsThumbnail: i == 0})
	}
	for _, mf := range p.Metafields {
		product.CustomFields = append(product.CustomFields, bigcommerceCustomField{Name: mf.Key, Value: mf.Value})
	}
	return product
}

func (a *BigCommerceAdapter) productResult(message string, product bigcommerceProduct) integration.AdapterResult {
	url := ""
	if product.CustomURL != nil && product.CustomURL.URL != "" && a.conn != nil && a.conn.ShopDomain != "" {
		url = "https://" + strings.TrimRight(a.conn.ShopDomain, "/") + product.CustomURL.URL
	}
	return integration.Succeeded(message).
		WithExternalID(strconv.FormatInt(product.ID, 10), url).
		WithData(integration.DataKeyNativeStatus, strconv.FormatBool(product.IsVisible)).
		WithData(integration.DataKeyPrice, decimal.NewFromFloat(product.Price)).
		WithData(integration.DataKeyQuantity, product.InventoryLevel)
}

// ---------------------------------------------------------------------------
// BigCommerce wire types
// ---------------------------------------------------------------------------

type bigcommerceImage struct {
	ImageURL    string `json:"image_url"`
	IsThumbnail bool   `json:"is_thumbnail"`
}

type bigcommerceCustomField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type bigcommerceProduct struct {
	ID                int64                    `json:"id,omitempty"`
	Name              string                   `json:"name"`
	Type              string                   `json:"type"`
	SKU               string                   `json:"sku,omitempty"`
	Description       string                   `json:"description,omitempty"`
	Price             float64                  `json:"price"`
	Weight            float64                  `json:"weight"`
	InventoryLevel    int                      `json:"inventory_level"`
	InventoryTracking string                   `json:"inventory_tracking,omitempty"`
	IsVisible         bool                     `json:"is_visible"`
	UPC               string                   `json:"upc,omitempty"`
	MPN               string                   `json:"mpn,omitempty"`
	BrandName         string                   `json:"brand_name,omitempty"`
	Categories        []int64                  `json:"categories,omitempty"`
	Images            []bigcommerceImage       `json:"images,omitempty"`
	CustomFields      []bigcommerceCustomField `json:"custom_fields,omitempty"`
	CustomURL         *bigcommerceURL          `json:"custom_url,omitempty"`
}

type bigcommerceURL struct {
	URL string `json:"url"`
}

type bigcommerceEnvelope struct {
	Data bigcommerceProduct `json:"data"`
}

var (
	_ integration.ListingAdapter      = (*BigCommerceAdapter)(nil)
	_ integration.CredentialConnector = (*BigCommerceAdapter)(nil)
)
