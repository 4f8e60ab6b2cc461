package ecommerce

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/listingsync/internal/domain/integration"
)

const walmartServiceName = "Walmart Marketplace"

// WalmartAdapter implements ListingAdapter over the Walmart Marketplace API.
// Items are submitted through MP_ITEM feeds; the seller SKU is the external id.
type WalmartAdapter struct {
	adapterBase
	creds    integration.WalmartCredentials
	client   *apiClient
	currency string
}

// NewWalmartAdapter creates a Walmart adapter for a channel
func NewWalmartAdapter(channel *integration.SalesChannel, deps AdapterDeps) (integration.ListingAdapter, error) {
	a := &WalmartAdapter{adapterBase: newAdapterBase(integration.PlatformWalmart, channel, deps), currency: "USD"}
	if a.conn == nil {
		return a, nil
	}

	creds, err := a.conn.WalmartCredentials()
	if err != nil {
		return nil, err
	}
	cfg, httpClient, limiter, err := deps.platformSettings(integration.PlatformWalmart)
	if err != nil {
		return nil, err
	}
	if settings, err := channel.TypedSettings(); err == nil {
		a.currency = settings.Currency
	}

	// the token endpoint wants the same service headers as every other call
	tokenClient := *httpClient
	tokenClient.Transport = &headerTransport{base: httpClient.Transport, headers: walmartHeaders}
	source := newClientCredentialsTokenSource(creds.ClientID, creds.ClientSecret, cfg.OAuth.TokenURL, &tokenClient)

	a.creds = creds
	a.client = &apiClient{
		platform:   integration.PlatformWalmart,
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		limiter:    limiter,
		authorize: chainAuthorizers(
			func(_ context.Context, req *http.Request) error {
				for k, v := range walmartHeaders() {
					req.Header.Set(k, v)
				}
				return nil
			},
			bearerAuthorizer(source, "WM_SEC.ACCESS_TOKEN", ""),
		),
		secrets: []string{creds.ClientSecret},
	}
	return a, nil
}

func walmartHeaders() map[string]string {
	return map[string]string{
		"WM_SVC.NAME":           walmartServiceName,
		"WM_QOS.CORRELATION_ID": uuid.NewString(),
	}
}

// IsConnected requires the client credential pair
func (a *WalmartAdapter) IsConnected() bool {
	return a.client != nil && a.creds.Complete()
}

// Publish submits an item feed
func (a *WalmartAdapter) Publish(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	return a.finish(ctx, integration.ActionPublish, lc, start, a.submit(ctx, lc, false))
}

// Sync resubmits the item feed
func (a *WalmartAdapter) Sync(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	return a.finish(ctx, integration.ActionSync, lc, start, a.submit(ctx, lc, true))
}

func (a *WalmartAdapter) submit(ctx context.Context, lc *integration.ListingContext, syncing bool) integration.AdapterResult {
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

	p := lc.Payload
	sku := p.SKU
	if lc.HasExternalID() {
		sku = lc.ExternalID()
	}
	if sku == "" {
		return integration.Failed("Walmart listings require a SKU", integration.ErrValidationFailed)
	}

	feed := walmartItemFeed{
		Header: walmartFeedHeader{Version: "4.7", ProcessMode: "REPLACE", Locale: "en", Mart: "WALMART_US"},
		Items:  []walmartFeedItem{a.buildItem(sku, p)},
	}
	var resp walmartFeedResponse
	query := url.Values{"feedType": {"MP_ITEM"}}
	if _, err := a.client.do(ctx, apiRequest{method: http.MethodPost, path: "feeds", query: query, body: feed}, &resp); err != nil {
		return integration.UpstreamFailed(a.platform, err)
	}

	return integration.Succeeded("Item feed submitted to Walmart").
		WithExternalID(sku, "").
		WithStatus(integration.ListingStatusPending).
		WithData(integration.DataKeySKU, sku).
		WithData("feed_id", resp.FeedID).
		WithData(integration.DataKeyPayloadHash, hash)
}

// Unpublish sets the inventory to zero
func (a *WalmartAdapter) Unpublish(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	result := a.zeroInventory(ctx, lc, "Inventory set to zero on Walmart")
	return a.finish(ctx, integration.ActionUnpublish, lc, start, result)
}

// End sets the inventory to zero; retiring an item cannot be undone on Walmart
func (a *WalmartAdapter) End(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	result := a.zeroInventory(ctx, lc, "Listing ended on Walmart")
	return a.finish(ctx, integration.ActionEnd, lc, start, result)
}

func (a *WalmartAdapter) zeroInventory(ctx context.Context, lc *integration.ListingContext, message string) integration.AdapterResult {
	if r, ok := a.precheck(a.IsConnected(), lc, true); !ok {
		return r
	}
	if err := a.putInventory(ctx, lc.ExternalID(), 0); err != nil {
		return integration.UpstreamFailed(a.platform, err)
	}
	return integration.Succeeded(message).WithData(integration.DataKeyQuantity, 0)
}

// UpdatePrice sets the base price of the SKU
func (a *WalmartAdapter) UpdatePrice(ctx context.Context, lc *integration.ListingContext, price decimal.Decimal) integration.AdapterResult {
	start := time.Now()
	result := func() integration.AdapterResult {
		if r, ok := a.precheck(a.IsConnected(), lc, true); !ok {
			return r
		}
		body := walmartPriceUpdate{
			SKU: lc.ExternalID(),
			Pricing: []walmartPricing{{
				CurrentPriceType: "BASE",
				CurrentPrice:     walmartAmount{Currency: a.currency, Amount: price.InexactFloat64()},
			}},
		}
		if err := a.client.send(ctx, http.MethodPut, "price", body, nil); err != nil {
			return integration.UpstreamFailed(a.platform, err)
		}
		return integration.Succeeded("Price updated on Walmart").WithData(integration.DataKeyPrice, price)
	}()
	return a.finish(ctx, integration.ActionUpdatePrice, lc, start, result)
}

// UpdateInventory sets the available quantity of the SKU
func (a *WalmartAdapter) UpdateInventory(ctx context.Context, lc *integration.ListingContext, quantity int) integration.AdapterResult {
	start := time.Now()
	result := func() integration.AdapterResult {
		if r, ok := a.precheck(a.IsConnected(), lc, true); !ok {
			return r
		}
		if err := a.putInventory(ctx, lc.ExternalID(), quantity); err != nil {
			return integration.UpstreamFailed(a.platform, err)
		}
		return integration.Succeeded("Inventory updated on Walmart").WithData(integration.DataKeyQuantity, quantity)
	}()
	return a.finish(ctx, integration.ActionUpdateInventory, lc, start, result)
}

func (a *WalmartAdapter) putInventory(ctx context.Context, sku string, quantity int) error {
	body := walmartInventory{SKU: sku, Quantity: walmartQuantity{Unit: "EACH", Amount: quantity}}
	_, err := a.client.do(ctx, apiRequest{
		method: http.MethodPut,
		path:   "inventory",
		query:  url.Values{"sku": {sku}},
		body:   body,
	}, nil)
	return err
}

// Refresh reads the published status of the item
func (a *WalmartAdapter) Refresh(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	result := func() integration.AdapterResult {
		if r, ok := a.precheck(a.IsConnected(), lc, true); !ok {
			return r
		}
		var resp walmartItemResponse
		if err := a.client.get(ctx, "items/"+url.PathEscape(lc.ExternalID()), nil, &resp); err != nil {
			return integration.UpstreamFailed(a.platform, err)
		}
		if len(resp.Items) == 0 {
			return integration.UpstreamFailed(a.platform, a.client.upstreamError(http.StatusOK, integration.ErrPlatformInvalidResponse, "item not found"))
		}
		item := resp.Items[0]
		status, _ := integration.WalmartStatusTable.Resolve(item.PublishedStatus, lc.CurrentStatus())
		res := integration.Succeeded("Refreshed from Walmart").
			WithStatus(status).
			WithData(integration.DataKeyNativeStatus, item.PublishedStatus)
		if item.WPID != "" {
			res = res.WithExternalID(lc.ExternalID(), "https://www.walmart.com/ip/"+item.WPID).WithData("wpid", item.WPID)
		}
		if item.Price != nil {
			res = res.WithData(integration.DataKeyPrice, decimal.NewFromFloat(item.Price.Amount))
		}
		return res
	}()
	return a.finish(ctx, integration.ActionRefresh, lc, start, result)
}

func (a *WalmartAdapter) buildItem(sku string, p *integration.ListingPayload) walmartFeedItem {
	identifiers := make([]walmartProductID, 0, 2)
	if p.UPC != "" {
		identifiers = append(identifiers, walmartProductID{Type: "UPC", ID: p.UPC})
	}
	if p.EAN != "" {
		identifiers = append(identifiers, walmartProductID{Type: "EAN", ID: p.EAN})
	}

	visible := map[string]any{
		"productName":      p.FieldString("productName", p.Title),
		"shortDescription": p.FieldString("shortDescription", p.Description),
		"brand":            p.FieldString("brand", p.Brand),
		"mainImageUrl":     p.FieldString("mainImageUrl", p.FirstImage()),
	}
	if len(p.Images) > 1 {
		visible["productSecondaryImageURL"] = p.Images[1:]
	}
	for name, value := range p.Attributes {
		if _, taken := visible[name]; !taken {
			visible[name] = value
		}
	}

	return walmartFeedItem{
		Orderable: walmartOrderable{
			SKU:                sku,
			ProductIdentifiers: identifiers,
			Price:              p.Price.InexactFloat64(),
			ShippingWeight:     p.Weight.InexactFloat64(),
		},
		Visible: map[string]any{p.FieldString("product_type", "Other"): visible},
	}
}

// ---------------------------------------------------------------------------
// Walmart wire types
// ---------------------------------------------------------------------------

type walmartFeedHeader struct {
	Version     string `json:"version"`
	ProcessMode string `json:"processMode"`
	Locale      string `json:"locale"`
	Mart        string `json:"mart"`
}

type walmartItemFeed struct {
	Header walmartFeedHeader `json:"MPItemFeedHeader"`
	Items  []walmartFeedItem `json:"MPItem"`
}

type walmartProductID struct {
	Type string `json:"productIdType"`
	ID   string `json:"productId"`
}

type walmartOrderable struct {
	SKU                string             `json:"sku"`
	ProductIdentifiers []walmartProductID `json:"productIdentifiers,omitempty"`
	Price              float64            `json:"price"`
	ShippingWeight     float64            `json:"ShippingWeight,omitempty"`
}

type walmartFeedItem struct {
	Orderable walmartOrderable `json:"Orderable"`
	Visible   map[string]any   `json:"Visible"`
}

type walmartFeedResponse struct {
	FeedID string `json:"feedId"`
}

type walmartAmount struct {
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
}

type walmartPricing struct {
	CurrentPriceType string        `json:"currentPriceType"`
	CurrentPrice     walmartAmount `json:"currentPrice"`
}

type walmartPriceUpdate struct {
	SKU     string           `json:"sku"`
	Pricing []walmartPricing `json:"pricing"`
}

type walmartQuantity struct {
	Unit   string `json:"unit"`
	Amount int    `json:"amount"`
}

type walmartInventory struct {
	SKU      string          `json:"sku"`
	Quantity walmartQuantity `json:"quantity"`
}

type walmartItemResponse struct {
	Items []struct {
		SKU             string         `json:"sku"`
		WPID            string         `json:"wpid"`
		PublishedStatus string         `json:"publishedStatus"`
		Price           *walmartAmount `json:"price"`
	} `json:"ItemResponse"`
}

var _ integration.ListingAdapter = (*WalmartAdapter)(nil)
