package ecommerce

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erp/listingsync/internal/domain/integration"
)

const (
	amazonListingsPath = "listings/2021-08-01/items"
	amazonProductURL   = "https://www.amazon.com/dp/"
	amazonDefaultType  = "PRODUCT"
)

// amazonStatusPriority orders summary statuses when several are reported
var amazonStatusPriority = []string{"BUYABLE", "DISCOVERABLE", "DELETED"}

// AmazonAdapter implements ListingAdapter over the Selling Partner Listings Items API.
// The seller SKU is the external listing id.
type AmazonAdapter struct {
	adapterBase
	creds    integration.AmazonCredentials
	client   *apiClient
	currency string
}

// NewAmazonAdapter creates an Amazon adapter for a channel
func NewAmazonAdapter(channel *integration.SalesChannel, deps AdapterDeps) (integration.ListingAdapter, error) {
	a := &AmazonAdapter{adapterBase: newAdapterBase(integration.PlatformAmazon, channel, deps), currency: "USD"}
	if a.conn == nil {
		return a, nil
	}

	creds, err := a.conn.AmazonCredentials()
	if err != nil {
		return nil, err
	}
	cfg, httpClient, limiter, err := deps.platformSettings(integration.PlatformAmazon)
	if err != nil {
		return nil, err
	}
	if settings, err := channel.TypedSettings(); err == nil {
		a.currency = settings.Currency
		if settings.MarketplaceID != "" {
			creds.MarketplaceID = settings.MarketplaceID
		}
	}

	// Login with Amazon issues short-lived access tokens from the seller's refresh token
	source := newRefreshingTokenSource(cfg.OAuth, a.conn, httpClient, deps.Tokens, a.logger)
	a.creds = creds
	a.client = &apiClient{
		platform:   integration.PlatformAmazon,
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		limiter:    limiter,
		authorize:  bearerAuthorizer(source, "x-amz-access-token", ""),
		secrets:    []string{creds.AccessToken, creds.RefreshToken, cfg.OAuth.ClientSecret},
	}
	return a, nil
}

// IsConnected requires a seller id and a token
func (a *AmazonAdapter) IsConnected() bool {
	return a.client != nil && a.creds.Complete()
}

// Publish puts the full listing for the SKU
func (a *AmazonAdapter) Publish(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	return a.finish(ctx, integration.ActionPublish, lc, start, a.put(ctx, lc, false))
}

// Sync puts the full listing again; the API is idempotent per SKU
func (a *AmazonAdapter) Sync(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	return a.finish(ctx, integration.ActionSync, lc, start, a.put(ctx, lc, true))
}

func (a *AmazonAdapter) put(ctx context.Context, lc *integration.ListingContext, syncing bool) integration.AdapterResult {
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
		return integration.Failed("Amazon listings require a SKU", integration.ErrValidationFailed)
	}

	body := amazonListingRequest{
		ProductType:  p.FieldString("product_type", amazonDefaultType),
		Requirements: "LISTING",
		Attributes:   a.buildAttributes(p),
	}
	var resp amazonSubmissionResponse
	if err := a.client.send(ctx, http.MethodPut, a.itemPath(sku), body, &resp); err != nil {
		return integration.UpstreamFailed(a.platform, err)
	}
	if r, failed := a.submissionFailure(resp); failed {
		return r
	}

	// Amazon processes submissions asynchronously; the listing stays pending until refresh
	return integration.Succeeded("Submitted to Amazon").
		WithExternalID(sku, "").
		WithStatus(integration.ListingStatusPending).
		WithData(integration.DataKeySKU, sku).
		WithData("submission_id", resp.SubmissionID).
		WithData(integration.DataKeyPayloadHash, hash)
}

// Unpublish sets the fulfillable quantity to zero
func (a *AmazonAdapter) Unpublish(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	result := func() integration.AdapterResult {
		if r, ok := a.precheck(a.IsConnected(), lc, true); !ok {
			return r
		}
		if r, failed := a.patch(ctx, lc, "/attributes/fulfillment_availability", a.fulfillment(0)); failed {
			return r
		}
		return integration.Succeeded("Quantity set to zero on Amazon").WithData(integration.DataKeyQuantity, 0)
	}()
	return a.finish(ctx, integration.ActionUnpublish, lc, start, result)
}

// End deletes the listing for the SKU
func (a *AmazonAdapter) End(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	result := func() integration.AdapterResult {
		if r, ok := a.precheck(a.IsConnected(), lc, true); !ok {
			return r
		}
		var resp amazonSubmissionResponse
		if err := a.client.send(ctx, http.MethodDelete, a.itemPath(lc.ExternalID()), nil, &resp); err != nil {
			return integration.UpstreamFailed(a.platform, err)
		}
		if r, failed := a.submissionFailure(resp); failed {
			return r
		}
		return integration.Succeeded("Listing deleted from Amazon")
	}()
	return a.finish(ctx, integration.ActionEnd, lc, start, result)
}

// UpdatePrice patches only the purchasable offer
func (a *AmazonAdapter) UpdatePrice(ctx context.Context, lc *integration.ListingContext, price decimal.Decimal) integration.AdapterResult {
	start := time.Now()
	result := func() integration.AdapterResult {
		if r, ok := a.precheck(a.IsConnected(), lc, true); !ok {
			return r
		}
		if r, failed := a.patch(ctx, lc, "/attributes/purchasable_offer", a.offer(price)); failed {
			return r
		}
		return integration.Succeeded("Price updated on Amazon").WithData(integration.DataKeyPrice, price)
	}()
	return a.finish(ctx, integration.ActionUpdatePrice, lc, start, result)
}

// UpdateInventory patches only the fulfillment availability
func (a *AmazonAdapter) UpdateInventory(ctx context.Context, lc *integration.ListingContext, quantity int) integration.AdapterResult {
	start := time.Now()
	result := func() integration.AdapterResult {
		if r, ok := a.precheck(a.IsConnected(), lc, true); !ok {
			return r
		}
		if r, failed := a.patch(ctx, lc, "/attributes/fulfillment_availability", a.fulfillment(quantity)); failed {
			return r
		}
		return integration.Succeeded("Inventory updated on Amazon").WithData(integration.DataKeyQuantity, quantity)
	}()
	return a.finish(ctx, integration.ActionUpdateInventory, lc, start, result)
}

// Refresh reads the listing summary status
func (a *AmazonAdapter) Refresh(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	result := func() integration.AdapterResult {
		if r, ok := a.precheck(a.IsConnected(), lc, true); !ok {
			return r
		}
		query := url.Values{"includedData": {"summaries,fulfillmentAvailability"}}
		var item amazonListingItem
		if err := a.client.get(ctx, a.itemPath(lc.ExternalID()), query, &item); err != nil {
			return integration.UpstreamFailed(a.platform, err)
		}

		res := integration.Succeeded("Refreshed from Amazon")
		native := ""
		if len(item.Summaries) > 0 {
			summary := item.Summaries[0]
			native = amazonNativeStatus(summary.Status)
			if summary.ASIN != "" {
				res = res.WithExternalID(lc.ExternalID(), amazonProductURL+summary.ASIN).WithData("asin", summary.ASIN)
			}
		}
		status, _ := integration.AmazonStatusTable.Resolve(native, lc.CurrentStatus())
		res = res.WithStatus(status).WithData(integration.DataKeyNativeStatus, native)
		for _, fa := range item.FulfillmentAvailability {
			if fa.FulfillmentChannelCode == "DEFAULT" {
				res = res.WithData(integration.DataKeyQuantity, fa.Quantity)
			}
		}
		return res
	}()
	return a.finish(ctx, integration.ActionRefresh, lc, start, result)
}

func (a *AmazonAdapter) itemPath(sku string) string {
	return fmt.Sprintf("%s/%s/%s?marketplaceIds=%s", amazonListingsPath,
		url.PathEscape(a.creds.SellerID), url.PathEscape(sku), url.QueryEscape(a.creds.MarketplaceID))
}

func (a *AmazonAdapter) patch(ctx context.Context, lc *integration.ListingContext, path string, value any) (integration.AdapterResult, bool) {
	productType := amazonDefaultType
	if lc.Payload != nil {
		productType = lc.Payload.FieldString("product_type", amazonDefaultType)
	}
	body := amazonPatchRequest{
		ProductType: productType,
		Patches:     []amazonPatch{{Op: "replace", Path: path, Value: value}},
	}
	var resp amazonSubmissionResponse
	if err := a.client.send(ctx, http.MethodPatch, a.itemPath(lc.ExternalID()), body, &resp); err != nil {
		return integration.UpstreamFailed(a.platform, err), true
	}
	return a.submissionFailure(resp)
}

// submissionFailure converts an INVALID submission into a failed result
func (a *AmazonAdapter) submissionFailure(resp amazonSubmissionResponse) (integration.AdapterResult, bool) {
	if resp.Status != "INVALID" {
		return integration.AdapterResult{}, false
	}
	var messages []string
	for _, issue := range resp.Issues {
		if issue.Severity == "ERROR" {
			messages = append(messages, issue.Message)
		}
	}
	detail := strings.Join(messages, "; ")
	err := a.client.upstreamError(http.StatusBadRequest, fmt.Errorf("%w: submission %s rejected", integration.ErrPlatformRequestFailed, resp.SubmissionID), detail)
	return integration.UpstreamFailed(a.platform, err), true
}

func (a *AmazonAdapter) buildAttributes(p *integration.ListingPayload) map[string]any {
	mp := a.creds.MarketplaceID
	attrs := map[string]any{
		"item_name":                []amazonValue{{Value: p.FieldString("item_name", p.Title), MarketplaceID: mp}},
		"purchasable_offer":        a.offer(p.Price),
		"fulfillment_availability": a.fulfillment(p.Quantity),
		"condition_type":           []amazonValue{{Value: p.FieldString("condition_type", "new_new"), MarketplaceID: mp}},
	}
	if desc := p.FieldString("product_description", p.Description); desc != "" {
		attrs["product_description"] = []amazonValue{{Value: desc, MarketplaceID: mp}}
	}
	if p.Brand != "" {
		attrs["brand"] = []amazonValue{{Value: p.Brand, MarketplaceID: mp}}
	}
	if p.UPC != "" || p.EAN != "" {
		idType, id := "upc", p.UPC
		if id == "" {
			idType, id = "ean", p.EAN
		}
		attrs["externally_assigned_product_identifier"] = []map[string]any{{"type": idType, "value": id, "marketplace_id": mp}}
	}
	for i, img := range p.Images {
		if i > 8 {
			break
		}
		key := "main_product_image_locator"
		if i > 0 {
			key = fmt.Sprintf("other_product_image_locator_%d", i)
		}
		attrs[key] = []map[string]any{{"media_location": img, "marketplace_id": mp}}
	}
	for name, value := range p.Attributes {
		if _, taken := attrs[name]; taken {
			continue
		}
		attrs[name] = []amazonValue{{Value: fmt.Sprint(value), MarketplaceID: mp}}
	}
	return attrs
}

func (a *AmazonAdapter) offer(price decimal.Decimal) []map[string]any {
	return []map[string]any{{
		"marketplace_id": a.creds.MarketplaceID,
		"currency":       a.currency,
		"our_price": []map[string]any{{
			"schedule": []map[string]any{{"value_with_tax": price.StringFixed(2)}},
		}},
	}}
}

func (a *AmazonAdapter) fulfillment(quantity int) []map[string]any {
	return []map[string]any{{
		"fulfillment_channel_code": "DEFAULT",
		"quantity":                 quantity,
	}}
}

// amazonNativeStatus picks the most significant status of a summary
func amazonNativeStatus(statuses []string) string {
	for _, candidate := range amazonStatusPriority {
		for _, s := range statuses {
			if s == candidate {
				return s
			}
		}
	}
	if len(statuses) > 0 {
		return statuses[0]
	}
	return ""
}

// ---------------------------------------------------------------------------
// Amazon wire types
// ---------------------------------------------------------------------------

type amazonValue struct {
	Value         string `json:"value"`
	MarketplaceID string `json:"marketplace_id"`
}

type amazonListingRequest struct {
	ProductType  string         `json:"productType"`
	Requirements string         `json:"requirements"`
	Attributes   map[string]any `json:"attributes"`
}

type amazonPatchRequest struct {
	ProductType string        `json:"productType"`
	Patches     []amazonPatch `json:"patches"`
}

type amazonPatch struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

type amazonSubmissionResponse struct {
	SKU          string `json:"sku"`
	Status       string `json:"status"`
	SubmissionID string `json:"submissionId"`
	Issues       []struct {
		Code     string `json:"code"`
		Message  string `json:"message"`
		Severity string `json:"severity"`
	} `json:"issues"`
}

type amazonListingItem struct {
	SKU       string `json:"sku"`
	Summaries []struct {
		MarketplaceID string   `json:"marketplaceId"`
		ASIN          string   `json:"asin"`
		Status        []string `json:"status"`
	} `json:"summaries"`
	FulfillmentAvailability []struct {
		FulfillmentChannelCode string `json:"fulfillmentChannelCode"`
		Quantity               int    `json:"quantity"`
	} `json:"fulfillmentAvailability"`
}

var _ integration.ListingAdapter = (*AmazonAdapter)(nil)
