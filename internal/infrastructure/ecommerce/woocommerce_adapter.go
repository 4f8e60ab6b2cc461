package ecommerce

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erp/listingsync/internal/domain/integration"
)

// WooCommerceAdapter implements ListingAdapter over the WooCommerce REST API v3
type WooCommerceAdapter struct {
	adapterBase
	creds   integration.WooCommerceCredentials
	client  *apiClient
	asDraft bool
}

// NewWooCommerceAdapter creates a WooCommerce adapter for a channel
func NewWooCommerceAdapter(channel *integration.SalesChannel, deps AdapterDeps) (integration.ListingAdapter, error) {
	a := &WooCommerceAdapter{adapterBase: newAdapterBase(integration.PlatformWooCommerce, channel, deps)}
	if a.conn == nil {
		return a, nil
	}

	creds, err := a.conn.WooCommerceCredentials()
	if err != nil {
		return nil, err
	}
	cfg, httpClient, limiter, err := deps.platformSettings(integration.PlatformWooCommerce)
	if err != nil {
		return nil, err
	}
	if settings, err := channel.TypedSettings(); err == nil {
		a.asDraft = settings.PublishAsDraft
	}

	origin := cfg.BaseURL
	if origin == "" {
		origin = strings.TrimRight(creds.StoreURL, "/")
		if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			origin = "https://" + origin
		}
	}
	a.creds = creds
	a.client = &apiClient{
		platform:   integration.PlatformWooCommerce,
		baseURL:    origin + "/wp-json/wc/v3",
		httpClient: httpClient,
		limiter:    limiter,
		authorize:  basicAuth(creds.ConsumerKey, creds.ConsumerSecret),
		secrets:    []string{creds.ConsumerKey, creds.ConsumerSecret},
	}
	return a, nil
}

// IsConnected requires the store url and key pair
func (a *WooCommerceAdapter) IsConnected() bool {
	return a.client != nil && a.creds.Complete()
}

// TestConnection validates the key pair against the store
func (a *WooCommerceAdapter) TestConnection(ctx context.Context) (*integration.ConnectionInfo, error) {
	if !a.IsConnected() {
		return nil, integration.ErrNotConnected
	}
	var status struct {
		Environment struct {
			SiteURL string `json:"site_url"`
			HomeURL string `json:"home_url"`
		} `json:"environment"`
		Settings struct {
			Currency string `json:"currency"`
		} `json:"settings"`
	}
	if err := a.client.get(ctx, "system_status", nil, &status); err != nil {
		return nil, err
	}
	domain := status.Environment.HomeURL
	if domain == "" {
		domain = a.creds.StoreURL
	}
	if u, err := url.Parse(domain); err == nil && u.Host != "" {
		domain = u.Host
	}
	return &integration.ConnectionInfo{ExternalStoreID: domain, ShopName: domain, ShopDomain: domain}, nil
}

// Publish creates the product, or updates it when it already exists
func (a *WooCommerceAdapter) Publish(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	return a.finish(ctx, integration.ActionPublish, lc, start, a.upsert(ctx, lc, false))
}

// Sync updates a known product and creates an unknown one
func (a *WooCommerceAdapter) Sync(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	return a.finish(ctx, integration.ActionSync, lc, start, a.upsert(ctx, lc, true))
}

func (a *WooCommerceAdapter) upsert(ctx context.Context, lc *integration.ListingContext, syncing bool) integration.AdapterResult {
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

	status := "publish"
	if a.asDraft {
		status = "draft"
	}
	body := a.buildProduct(lc.Payload, status)

	var product wooProduct
	var err error
	if lc.HasExternalID() {
		err = a.client.send(ctx, http.MethodPut, "products/"+lc.ExternalID(), body, &product)
	} else {
		err = a.client.send(ctx, http.MethodPost, "products", body, &product)
	}
	if err != nil {
		return integration.UpstreamFailed(a.platform, err)
	}
	if product.ID == 0 {
		return integration.UpstreamFailed(a.platform, a.client.upstreamError(http.StatusOK, integration.ErrPlatformInvalidResponse, "response has no product id"))
	}
	return a.productResult("Published to WooCommerce", product).WithData(integration.DataKeyPayloadHash, hash)
}

// Unpublish moves the product back to draft
func (a *WooCommerceAdapter) Unpublish(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	result := func() integration.AdapterResult {
		if r, ok := a.precheck(a.IsConnected(), lc, true); !ok {
			return r
		}
		if err := a.client.send(ctx, http.MethodPut, "products/"+lc.ExternalID(), wooProduct{Status: "draft"}, nil); err != nil {
			return integration.UpstreamFailed(a.platform, err)
		}
		return integration.Succeeded("Product set to draft on WooCommerce").WithData(integration.DataKeyNativeStatus, "draft")
	}()
	return a.finish(ctx, integration.ActionUnpublish, lc, start, result)
}

// End permanently deletes the product
func (a *WooCommerceAdapter) End(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	result := func() integration.AdapterResult {
		if r, ok := a.precheck(a.IsConnected(), lc, true); !ok {
			return r
		}
		_, err := a.client.do(ctx, apiRequest{
			method: http.MethodDelete,
			path:   "products/" + lc.ExternalID(),
			query:  url.Values{"force": {"true"}},
		}, nil)
		if err != nil {
			return integration.UpstreamFailed(a.platform, err)
		}
		return integration.Succeeded("Product deleted from WooCommerce")
	}()
	return a.finish(ctx, integration.ActionEnd, lc, start, result)
}

// UpdatePrice sets the regular price
func (a *WooCommerceAdapter) UpdatePrice(ctx context.Context, lc *integration.ListingContext, price decimal.Decimal) integration.AdapterResult {
	start := time.Now()
	result := func() integration.AdapterResult {
		if r, ok := a.precheck(a.IsConnected(), lc, true); !ok {
			return r
		}
		body := wooProduct{RegularPrice: price.StringFixed(2)}
		if err := a.client.send(ctx, http.MethodPut, "products/"+lc.ExternalID(), body, nil); err != nil {
			return integration.UpstreamFailed(a.platform, err)
		}
		return integration.Succeeded("Price updated on WooCommerce").WithData(integration.DataKeyPrice, price)
	}()
	return a.finish(ctx, integration.ActionUpdatePrice, lc, start, result)
}

// UpdateInventory sets the managed stock quantity
func (a *WooCommerceAdapter) UpdateInventory(ctx context.Context, lc *integration.ListingContext, quantity int) integration.AdapterResult {
	start := time.Now()
	result := func() integration.AdapterResult {
		if r, ok := a.precheck(a.IsConnected(), lc, true); !ok {
			return r
		}
		body := map[string]any{"manage_stock": true, "stock_quantity": quantity}
		if err := a.client.send(ctx, http.MethodPut, "products/"+lc.ExternalID(), body, nil); err != nil {
			return integration.UpstreamFailed(a.platform, err)
		}
		return integration.Succeeded("Inventory updated on WooCommerce").WithData(integration.DataKeyQuantity, quantity)
	}()
	return a.finish(ctx, integration.ActionUpdateInventory, lc, start, result)
}

// Refresh reads the product status, price and stock
func (a *WooCommerceAdapter) Refresh(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	result := func() integration.AdapterResult {
		if r, ok := a.precheck(a.IsConnected(), lc, true); !ok {
			return r
		}
		var product wooProduct
		if err := a.client.get(ctx, "products/"+lc.ExternalID(), nil, &product); err != nil {
			return integration.UpstreamFailed(a.platform, err)
		}
		status, _ := integration.WooCommerceStatusTable.Resolve(product.Status, lc.CurrentStatus())
		return a.productResult("Refreshed from WooCommerce", product).WithStatus(status)
	}()
	return a.finish(ctx, integration.ActionRefresh, lc, start, result)
}

func (a *WooCommerceAdapter) buildProduct(p *integration.ListingPayload, status string) wooProduct {
	product := wooProduct{
		Name:             p.Title,
		Type:             "simple",
		Status:           status,
		Description:      p.Description,
		ShortDescription: p.FieldString("short_description", ""),
		SKU:              p.SKU,
		RegularPrice:     p.Price.StringFixed(2),
		ManageStock:      true,
		StockQuantity:    intPtr(p.Quantity),
	}
	if !p.Weight.IsZero() {
		product.Weight = p.Weight.String()
	}
	if p.PrimaryCategoryID != nil {
		if id, err := strconv.ParseInt(*p.PrimaryCategoryID, 10, 64); err == nil {
			product.Categories = []wooRef{{ID: id}}
		}
	}
	for _, src := range p.Images {
		product.Images = append(product.Images, wooImage{Src: src})
	}
	for _, mf := range p.Metafields {
		product.MetaData = append(product.MetaData, wooMeta{Key: mf.Key, Value: mf.Value})
	}
	for name, value := range p.Attributes {
		product.Attributes = append(product.Attributes, wooAttribute{
			Name:    name,
			Visible: true,
			Options: []string{fmt.Sprint(value)},
		})
	}
	return product
}

func (a *WooCommerceAdapter) productResult(message string, product wooProduct) integration.AdapterResult {
	res := integration.Succeeded(message).
		WithExternalID(strconv.FormatInt(product.ID, 10), product.Permalink)
	if product.Status != "" {
		res = res.WithData(integration.DataKeyNativeStatus, product.Status)
	}
	if price, err := decimal.NewFromString(product.RegularPrice); err == nil {
		res = res.WithData(integration.DataKeyPrice, price)
	}
	if product.StockQuantity != nil {
		res = res.WithData(integration.DataKeyQuantity, *product.StockQuantity)
	}
	return res
}

func intPtr(v int) *int {
	return &v
}

// ---------------------------------------------------------------------------
// WooCommerce wire types
// ---------------------------------------------------------------------------

type wooRef struct {
	ID int64 `json:"id"`
}

type wooImage struct {
	Src string `json:"src"`
}

type wooMeta struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type wooAttribute struct {
	Name    string   `json:"name"`
	Visible bool     `json:"visible"`
	Options []string `json:"options"`
}

type wooProduct struct {
	ID               int64          `json:"id,omitempty"`
	Name             string         `json:"name,omitempty"`
	Type             string         `json:"type,omitempty"`
	Status           string         `json:"status,omitempty"`
	Permalink        string         `json:"permalink,omitempty"`
	Description      string         `json:"description,omitempty"`
	ShortDescription string         `json:"short_description,omitempty"`
	SKU              string         `json:"sku,omitempty"`
	RegularPrice     string         `json:"regular_price,omitempty"`
	ManageStock      bool           `json:"manage_stock,omitempty"`
	StockQuantity    *int           `json:"stock_quantity,omitempty"`
	Weight           string         `json:"weight,omitempty"`
	Categories       []wooRef       `json:"categories,omitempty"`
	Images           []wooImage     `json:"images,omitempty"`
	Attributes       []wooAttribute `json:"attributes,omitempty"`
	MetaData         []wooMeta      `json:"meta_data,omitempty"`
}

var (
	_ integration.ListingAdapter      = (*WooCommerceAdapter)(nil)
	_ integration.CredentialConnector = (*WooCommerceAdapter)(nil)
)
