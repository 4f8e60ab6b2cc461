package ecommerce

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erp/listingsync/internal/domain/integration"
)

const (
	etsyMaxImages = 10
	// etsyDataImageIDs holds the uploaded listing image ids in platform data
	etsyDataImageIDs = "image_ids"
)

// EtsyAdapter implements ListingAdapter over the Etsy Open API v3.
// Listings are created as drafts and then activated.
type EtsyAdapter struct {
	adapterBase
	creds  integration.EtsyCredentials
	client *apiClient
}

// NewEtsyAdapter creates an Etsy adapter for a channel
func NewEtsyAdapter(channel *integration.SalesChannel, deps AdapterDeps) (integration.ListingAdapter, error) {
	a := &EtsyAdapter{adapterBase: newAdapterBase(integration.PlatformEtsy, channel, deps)}
	if a.conn == nil {
		return a, nil
	}

	creds, err := a.conn.EtsyCredentials()
	if err != nil {
		return nil, err
	}
	cfg, httpClient, limiter, err := deps.platformSettings(integration.PlatformEtsy)
	if err != nil {
		return nil, err
	}

	source := newRefreshingTokenSource(cfg.OAuth, a.conn, httpClient, deps.Tokens, a.logger)
	a.creds = creds
	a.client = &apiClient{
		platform:   integration.PlatformEtsy,
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		limiter:    limiter,
		authorize: chainAuthorizers(
			staticHeader("x-api-key", cfg.OAuth.ClientID),
			bearerAuthorizer(source, "Authorization", "Bearer "),
		),
		secrets: []string{creds.AccessToken, creds.RefreshToken, cfg.OAuth.ClientSecret},
	}
	return a, nil
}

// IsConnected requires a shop id and a token
func (a *EtsyAdapter) IsConnected() bool {
	return a.client != nil && a.creds.Complete()
}

// Publish creates a draft listing and activates it. A known listing is updated and activated.
func (a *EtsyAdapter) Publish(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	return a.finish(ctx, integration.ActionPublish, lc, start, a.upsert(ctx, lc, false))
}

// Sync patches a known listing or creates an unknown one
func (a *EtsyAdapter) Sync(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	return a.finish(ctx, integration.ActionSync, lc, start, a.upsert(ctx, lc, true))
}

func (a *EtsyAdapter) upsert(ctx context.Context, lc *integration.ListingContext, syncing bool) integration.AdapterResult {
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

	body := a.buildListing(lc.Payload)
	listingID := lc.ExternalID()
	if listingID == "" {
		var created etsyListing
		if err := a.client.send(ctx, http.MethodPost, a.shopPath("listings"), body, &created); err != nil {
			return integration.UpstreamFailed(a.platform, err)
		}
		if created.ListingID == 0 {
			return integration.UpstreamFailed(a.platform, a.client.upstreamError(http.StatusOK, integration.ErrPlatformInvalidResponse, "response has no listing id"))
		}
		listingID = strconv.FormatInt(created.ListingID, 10)
		// the draft exists from here on; later failures keep the id
		body = etsyListingRequest{}
	}

	// Etsy refuses to activate a listing without images
	var imageIDs []int64
	if !hasEtsyImages(lc) {
		ids, err := a.uploadImages(ctx, listingID, lc.Payload.Images)
		if err != nil {
			return integration.UpstreamFailed(a.platform, err).WithExternalID(listingID, "")
		}
		imageIDs = ids
	}

	body.State = "active"
	var listing etsyListing
	if err := a.client.send(ctx, http.MethodPatch, a.shopPath("listings/"+listingID), body, &listing); err != nil {
		return withImageIDs(integration.UpstreamFailed(a.platform, err).WithExternalID(listingID, ""), imageIDs)
	}

	res := a.listingResult("Published to Etsy", listingID, listing, lc.CurrentStatus())
	return withImageIDs(res, imageIDs).WithData(integration.DataKeyPayloadHash, hash)
}

// withImageIDs records uploaded images so a retry does not upload them again
func withImageIDs(res integration.AdapterResult, ids []int64) integration.AdapterResult {
	if len(ids) == 0 {
		return res
	}
	return res.WithData(etsyDataImageIDs, ids)
}

// uploadImages attaches images to the listing in payload order
func (a *EtsyAdapter) uploadImages(ctx context.Context, listingID string, images []string) ([]int64, error) {
	if len(images) > etsyMaxImages {
		images = images[:etsyMaxImages]
	}
	ids := make([]int64, 0, len(images))
	for i, src := range images {
		data, name, err := a.client.fetch(ctx, src)
		if err != nil {
			return nil, err
		}
		form, contentType, err := multipartFile(map[string]string{"rank": strconv.Itoa(i + 1)}, "image", name, data)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to encode image: %w", a.platform, err)
		}

		var uploaded etsyListingImage
		req := apiRequest{
			method:      http.MethodPost,
			path:        a.shopPath("listings/" + listingID + "/images"),
			raw:         form,
			contentType: contentType,
		}
		if _, err := a.client.do(ctx, req, &uploaded); err != nil {
			return nil, err
		}
		ids = append(ids, uploaded.ListingImageID)
	}
	return ids, nil
}

// hasEtsyImages reports whether an earlier publish already uploaded images
func hasEtsyImages(lc *integration.ListingContext) bool {
	if lc.Listing == nil {
		return false
	}
	_, ok := lc.Listing.PlatformData[etsyDataImageIDs]
	return ok
}

// Unpublish deactivates the listing
func (a *EtsyAdapter) Unpublish(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	result := func() integration.AdapterResult {
		if r, ok := a.precheck(a.IsConnected(), lc, true); !ok {
			return r
		}
		body := etsyListingRequest{State: "inactive"}
		if err := a.client.send(ctx, http.MethodPatch, a.shopPath("listings/"+lc.ExternalID()), body, nil); err != nil {
			return integration.UpstreamFailed(a.platform, err)
		}
		return integration.Succeeded("Listing deactivated on Etsy").WithData(integration.DataKeyNativeStatus, "inactive")
	}()
	return a.finish(ctx, integration.ActionUnpublish, lc, start, result)
}

// End deletes the listing
func (a *EtsyAdapter) End(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	result := func() integration.AdapterResult {
		if r, ok := a.precheck(a.IsConnected(), lc, true); !ok {
			return r
		}
		if err := a.client.send(ctx, http.MethodDelete, "listings/"+lc.ExternalID(), nil, nil); err != nil {
			return integration.UpstreamFailed(a.platform, err)
		}
		return integration.Succeeded("Listing deleted from Etsy")
	}()
	return a.finish(ctx, integration.ActionEnd, lc, start, result)
}

// UpdatePrice rewrites the price of every offering
func (a *EtsyAdapter) UpdatePrice(ctx context.Context, lc *integration.ListingContext, price decimal.Decimal) integration.AdapterResult {
	start := time.Now()
	result := a.updateOfferings(ctx, lc, func(o *etsyOffering) {
		o.Price = price.InexactFloat64()
	})
	if result.Success {
		result = result.WithData(integration.DataKeyPrice, price)
	}
	return a.finish(ctx, integration.ActionUpdatePrice, lc, start, result)
}

// UpdateInventory rewrites the quantity of every offering
func (a *EtsyAdapter) UpdateInventory(ctx context.Context, lc *integration.ListingContext, quantity int) integration.AdapterResult {
	start := time.Now()
	result := a.updateOfferings(ctx, lc, func(o *etsyOffering) {
		o.Quantity = quantity
	})
	if result.Success {
		result = result.WithData(integration.DataKeyQuantity, quantity)
	}
	return a.finish(ctx, integration.ActionUpdateInventory, lc, start, result)
}

// updateOfferings reads the inventory, applies change to each offering and writes it back
func (a *EtsyAdapter) updateOfferings(ctx context.Context, lc *integration.ListingContext, change func(*etsyOffering)) integration.AdapterResult {
	if r, ok := a.precheck(a.IsConnected(), lc, true); !ok {
		return r
	}
	path := "listings/" + lc.ExternalID() + "/inventory"

	var inv etsyInventory
	if err := a.client.get(ctx, path, nil, &inv); err != nil {
		return integration.UpstreamFailed(a.platform, err)
	}
	update := etsyInventoryUpdate{Products: make([]etsyInventoryProduct, 0, len(inv.Products))}
	for _, p := range inv.Products {
		out := etsyInventoryProduct{SKU: p.SKU, PropertyValues: p.PropertyValues}
		for _, o := range p.Offerings {
			offering := etsyOffering{Price: o.Price.value(), Quantity: o.Quantity, IsEnabled: o.IsEnabled}
			change(&offering)
			out.Offerings = append(out.Offerings, offering)
		}
		update.Products = append(update.Products, out)
	}
	if err := a.client.send(ctx, http.MethodPut, path, update, nil); err != nil {
		return integration.UpstreamFailed(a.platform, err)
	}
	return integration.Succeeded("Inventory updated on Etsy")
}

// Refresh reads the listing state
func (a *EtsyAdapter) Refresh(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	result := func() integration.AdapterResult {
		if r, ok := a.precheck(a.IsConnected(), lc, true); !ok {
			return r
		}
		var listing etsyListing
		if err := a.client.get(ctx, "listings/"+lc.ExternalID(), nil, &listing); err != nil {
			return integration.UpstreamFailed(a.platform, err)
		}
		return a.listingResult("Refreshed from Etsy", lc.ExternalID(), listing, lc.CurrentStatus())
	}()
	return a.finish(ctx, integration.ActionRefresh, lc, start, result)
}

func (a *EtsyAdapter) shopPath(suffix string) string {
	return "shops/" + a.creds.ShopID + "/" + suffix
}

func (a *EtsyAdapter) listingResult(message, listingID string, listing etsyListing, current integration.ListingStatus) integration.AdapterResult {
	url := listing.URL
	if url == "" {
		url = "https://www.etsy.com/listing/" + listingID
	}
	res := integration.Succeeded(message).WithExternalID(listingID, url)
	if listing.State != "" {
		status, _ := integration.EtsyStatusTable.Resolve(listing.State, current)
		res = res.WithStatus(status).WithData(integration.DataKeyNativeStatus, listing.State)
	}
	if listing.Price != nil {
		res = res.WithData(integration.DataKeyPrice, decimal.NewFromFloat(listing.Price.value()))
	}
	if listing.Quantity > 0 {
		res = res.WithData(integration.DataKeyQuantity, listing.Quantity)
	}
	return res
}

func (a *EtsyAdapter) buildListing(p *integration.ListingPayload) etsyListingRequest {
	req := etsyListingRequest{
		Title:       p.FieldString("title", p.Title),
		Description: p.FieldString("description", p.Description),
		Price:       p.Price.InexactFloat64(),
		Quantity:    p.Quantity,
		WhoMade:     p.FieldString("who_made", "i_did"),
		WhenMade:    p.FieldString("when_made", "made_to_order"),
		IsSupply:    p.FieldString("is_supply", "false") == "true",
	}
	if p.SKU != "" {
		req.SKU = []string{p.SKU}
	}
	if p.PrimaryCategoryID != nil {
		if id, err := strconv.ParseInt(*p.PrimaryCategoryID, 10, 64); err == nil {
			req.TaxonomyID = id
		}
	}
	if tags, ok := p.Field("tags"); ok {
		if list, ok := tags.([]string); ok {
			req.Tags = list
		}
	}
	return req
}

// ---------------------------------------------------------------------------
// Etsy wire types
// ---------------------------------------------------------------------------

type etsyListingRequest struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Price       float64  `json:"price,omitempty"`
	Quantity    int      `json:"quantity,omitempty"`
	WhoMade     string   `json:"who_made,omitempty"`
	WhenMade    string   `json:"when_made,omitempty"`
	TaxonomyID  int64    `json:"taxonomy_id,omitempty"`
	IsSupply    bool     `json:"is_supply,omitempty"`
	SKU         []string `json:"sku,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	State       string   `json:"state,omitempty"`
}

// etsyMoney is Etsy's amount/divisor price representation
type etsyMoney struct {
	Amount       int64  `json:"amount"`
	Divisor      int64  `json:"divisor"`
	CurrencyCode string `json:"currency_code"`
}

func (m *etsyMoney) value() float64 {
	if m == nil || m.Divisor == 0 {
		return 0
	}
	return decimal.New(m.Amount, 0).Div(decimal.New(m.Divisor, 0)).InexactFloat64()
}

type etsyListingImage struct {
	ListingImageID int64 `json:"listing_image_id"`
}

type etsyListing struct {
	ListingID int64      `json:"listing_id"`
	State     string     `json:"state"`
	URL       string     `json:"url"`
	Quantity  int        `json:"quantity"`
	Price     *etsyMoney `json:"price"`
}

type etsyInventory struct {
	Products []struct {
		SKU            string           `json:"sku"`
		PropertyValues []map[string]any `json:"property_values"`
		Offerings      []struct {
			Price     *etsyMoney `json:"price"`
			Quantity  int        `json:"quantity"`
			IsEnabled bool       `json:"is_enabled"`
		} `json:"offerings"`
	} `json:"products"`
}

type etsyOffering struct {
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	IsEnabled bool    `json:"is_enabled"`
}

type etsyInventoryProduct struct {
	SKU            string           `json:"sku"`
	PropertyValues []map[string]any `json:"property_values"`
	Offerings      []etsyOffering   `json:"offerings"`
}

type etsyInventoryUpdate struct {
	Products []etsyInventoryProduct `json:"products"`
}

var _ integration.ListingAdapter = (*EtsyAdapter)(nil)
