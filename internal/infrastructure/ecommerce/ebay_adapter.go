package ecommerce

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erp/listingsync/internal/domain/integration"
	"github.com/erp/listingsync/internal/infrastructure/logger"
)

const ebayItemURL = "https://www.ebay.com/itm/"

// ebayConditions maps builder condition ids onto Inventory API condition enums
var ebayConditions = map[int]string{
	1000: "NEW",
	1500: "NEW_OTHER",
	2000: "CERTIFIED_REFURBISHED",
	3000: "USED_EXCELLENT",
	7000: "FOR_PARTS_OR_NOT_WORKING",
}

// EbayAdapter implements ListingAdapter over the eBay Sell Inventory API.
// A listing is an inventory item (keyed by SKU) plus a published offer.
type EbayAdapter struct {
	adapterBase
	creds       integration.EbayCredentials
	client      *apiClient
	currency    string
	locationKey string
}

// NewEbayAdapter creates an eBay adapter for a channel
func NewEbayAdapter(channel *integration.SalesChannel, deps AdapterDeps) (integration.ListingAdapter, error) {
	a := &EbayAdapter{adapterBase: newAdapterBase(integration.PlatformEbay, channel, deps), currency: "USD"}
	if a.conn == nil {
		return a, nil
	}

	creds, err := a.conn.EbayCredentials()
	if err != nil {
		return nil, err
	}
	cfg, httpClient, limiter, err := deps.platformSettings(integration.PlatformEbay)
	if err != nil {
		return nil, err
	}
	if settings, err := channel.TypedSettings(); err == nil {
		a.currency = settings.Currency
		a.locationKey = settings.LocationKey
		if settings.MarketplaceID != "" {
			creds.MarketplaceID = settings.MarketplaceID
		}
	}

	source := newRefreshingTokenSource(cfg.OAuth, a.conn, httpClient, deps.Tokens, a.logger)
	a.creds = creds
	a.client = &apiClient{
		platform:   integration.PlatformEbay,
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		limiter:    limiter,
		authorize:  bearerAuthorizer(source, "Authorization", "Bearer "),
		secrets:    []string{creds.AccessToken, creds.RefreshToken, cfg.OAuth.ClientSecret},
	}
	return a, nil
}

// IsConnected requires an access or refresh token
func (a *EbayAdapter) IsConnected() bool {
	return a.client != nil && a.creds.Complete()
}

// Publish upserts the inventory item and offer, then publishes the offer
func (a *EbayAdapter) Publish(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	return a.finish(ctx, integration.ActionPublish, lc, start, a.publish(ctx, lc, false))
}

// Sync republishes; unchanged payloads are not re-sent
func (a *EbayAdapter) Sync(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	return a.finish(ctx, integration.ActionSync, lc, start, a.publish(ctx, lc, true))
}

func (a *EbayAdapter) publish(ctx context.Context, lc *integration.ListingContext, syncing bool) integration.AdapterResult {
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
	sku := a.sku(lc)

	item := a.buildInventoryItem(p)
	if _, err := a.client.do(ctx, apiRequest{
		method:  http.MethodPut,
		path:    "sell/inventory/v1/inventory_item/" + url.PathEscape(sku),
		body:    item,
		headers: map[string]string{"Content-Language": "en-US"},
	}, nil); err != nil {
		return integration.UpstreamFailed(a.platform, err)
	}

	offerID, err := a.findOffer(ctx, lc, sku)
	if err != nil {
		return integration.UpstreamFailed(a.platform, err)
	}
	offer := a.buildOffer(p, sku)
	if offerID == "" {
		var created ebayOffer
		if err := a.client.send(ctx, http.MethodPost, "sell/inventory/v1/offer", offer, &created); err != nil {
			return integration.UpstreamFailed(a.platform, err)
		}
		offerID = created.OfferID
	} else {
		if err := a.client.send(ctx, http.MethodPut, "sell/inventory/v1/offer/"+offerID, offer, nil); err != nil {
			return integration.UpstreamFailed(a.platform, err)
		}
	}

	var published struct {
		ListingID string `json:"listingId"`
	}
	if err := a.client.send(ctx, http.MethodPost, "sell/inventory/v1/offer/"+offerID+"/publish", nil, &published); err != nil {
		return integration.UpstreamFailed(a.platform, err).
			WithData(integration.DataKeyOfferID, offerID)
	}

	return integration.Succeeded("Published to eBay").
		WithExternalID(published.ListingID, ebayItemURL+published.ListingID).
		WithData(integration.DataKeyOfferID, offerID).
		WithData(integration.DataKeySKU, sku).
		WithData(integration.DataKeyPayloadHash, hash)
}

// Unpublish withdraws the offer; the inventory item is kept
func (a *EbayAdapter) Unpublish(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	result := func() integration.AdapterResult {
		offerID, r, ok := a.requireOffer(lc)
		if !ok {
			return r
		}
		if err := a.client.send(ctx, http.MethodPost, "sell/inventory/v1/offer/"+offerID+"/withdraw", nil, nil); err != nil {
			return integration.UpstreamFailed(a.platform, err)
		}
		return integration.Succeeded("Offer withdrawn from eBay").
			WithData(integration.DataKeyNativeStatus, "UNPUBLISHED")
	}()
	return a.finish(ctx, integration.ActionUnpublish, lc, start, result)
}

// End deletes the offer, which ends the listing
func (a *EbayAdapter) End(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	result := func() integration.AdapterResult {
		offerID, r, ok := a.requireOffer(lc)
		if !ok {
			return r
		}
		if err := a.client.send(ctx, http.MethodDelete, "sell/inventory/v1/offer/"+offerID, nil, nil); err != nil {
			return integration.UpstreamFailed(a.platform, err)
		}
		return integration.Succeeded("Listing ended on eBay")
	}()
	return a.finish(ctx, integration.ActionEnd, lc, start, result)
}

// UpdatePrice changes only the offer price
func (a *EbayAdapter) UpdatePrice(ctx context.Context, lc *integration.ListingContext, price decimal.Decimal) integration.AdapterResult {
	start := time.Now()
	result := func() integration.AdapterResult {
		offerID, r, ok := a.requireOffer(lc)
		if !ok {
			return r
		}
		req := ebayBulkUpdate{Requests: []ebayPriceQuantity{{
			SKU:    a.sku(lc),
			Offers: []ebayOfferPrice{{OfferID: offerID, Price: &ebayAmount{Value: price.StringFixed(2), Currency: a.currency}}},
		}}}
		if err := a.bulkUpdate(ctx, req); err != nil {
			return integration.UpstreamFailed(a.platform, err)
		}
		return integration.Succeeded("Price updated on eBay").WithData(integration.DataKeyPrice, price)
	}()
	return a.finish(ctx, integration.ActionUpdatePrice, lc, start, result)
}

// UpdateInventory changes only the ship-to-location quantity
func (a *EbayAdapter) UpdateInventory(ctx context.Context, lc *integration.ListingContext, quantity int) integration.AdapterResult {
	start := time.Now()
	result := func() integration.AdapterResult {
		if _, r, ok := a.requireOffer(lc); !ok {
			return r
		}
		qty := quantity
		req := ebayBulkUpdate{Requests: []ebayPriceQuantity{{
			SKU:                        a.sku(lc),
			ShipToLocationAvailability: &ebayShipToLocation{Quantity: &qty},
		}}}
		if err := a.bulkUpdate(ctx, req); err != nil {
			return integration.UpstreamFailed(a.platform, err)
		}
		return integration.Succeeded("Inventory updated on eBay").WithData(integration.DataKeyQuantity, quantity)
	}()
	return a.finish(ctx, integration.ActionUpdateInventory, lc, start, result)
}

// Refresh reads the offer status, price and quantity
func (a *EbayAdapter) Refresh(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	start := time.Now()
	result := func() integration.AdapterResult {
		offerID, r, ok := a.requireOffer(lc)
		if !ok {
			return r
		}
		var offer ebayOffer
		if err := a.client.get(ctx, "sell/inventory/v1/offer/"+offerID, nil, &offer); err != nil {
			return integration.UpstreamFailed(a.platform, err)
		}
		status, _ := integration.EbayStatusTable.Resolve(offer.Status, lc.CurrentStatus())
		res := integration.Succeeded("Refreshed from eBay").
			WithStatus(status).
			WithData(integration.DataKeyNativeStatus, offer.Status)
		if offer.Listing != nil && offer.Listing.ListingID != "" {
			res = res.WithExternalID(offer.Listing.ListingID, ebayItemURL+offer.Listing.ListingID)
		}
		if offer.AvailableQuantity != nil {
			res = res.WithData(integration.DataKeyQuantity, *offer.AvailableQuantity)
		}
		if offer.PricingSummary != nil && offer.PricingSummary.Price != nil {
			if price, err := decimal.NewFromString(offer.PricingSummary.Price.Value); err == nil {
				res = res.WithData(integration.DataKeyPrice, price)
			}
		}
		return res
	}()
	return a.finish(ctx, integration.ActionRefresh, lc, start, result)
}

// SyncBusinessPolicies reads the first fulfillment, payment and return policy of the account
func (a *EbayAdapter) SyncBusinessPolicies(ctx context.Context) (*integration.BusinessPolicies, error) {
	if !a.IsConnected() {
		return nil, integration.ErrNotConnected
	}
	query := url.Values{"marketplace_id": {a.creds.MarketplaceID}}

	var fulfillment struct {
		Policies []struct {
			ID string `json:"fulfillmentPolicyId"`
		} `json:"fulfillmentPolicies"`
	}
	var payment struct {
		Policies []struct {
			ID string `json:"paymentPolicyId"`
		} `json:"paymentPolicies"`
	}
	var returns struct {
		Policies []struct {
			ID string `json:"returnPolicyId"`
		} `json:"returnPolicies"`
	}
	if err := a.client.get(ctx, "sell/account/v1/fulfillment_policy", query, &fulfillment); err != nil {
		return nil, err
	}
	if err := a.client.get(ctx, "sell/account/v1/payment_policy", query, &payment); err != nil {
		return nil, err
	}
	if err := a.client.get(ctx, "sell/account/v1/return_policy", query, &returns); err != nil {
		return nil, err
	}

	policies := &integration.BusinessPolicies{}
	if len(fulfillment.Policies) > 0 {
		policies.FulfillmentPolicyID = fulfillment.Policies[0].ID
	}
	if len(payment.Policies) > 0 {
		policies.PaymentPolicyID = payment.Policies[0].ID
	}
	if len(returns.Policies) > 0 {
		policies.ReturnPolicyID = returns.Policies[0].ID
	}

	a.logger.Info("synced marketplace business policies",
		append(logger.ListingAudit(string(a.platform), a.channelID(), a.marketplaceID(), "sync_business_policies"),
			zap.Bool("complete", policies.IsComplete()))...)
	return policies, nil
}

// FetchItemSpecifics reads the aspects eBay defines for a leaf category
func (a *EbayAdapter) FetchItemSpecifics(ctx context.Context, categoryID string) ([]integration.PlatformField, error) {
	if !a.IsConnected() {
		return nil, integration.ErrNotConnected
	}
	if categoryID == "" {
		return nil, integration.ErrInvalidCategoryID
	}

	var tree struct {
		CategoryTreeID string `json:"categoryTreeId"`
	}
	if err := a.client.get(ctx, "commerce/taxonomy/v1/get_default_category_tree_id", url.Values{"marketplace_id": {a.creds.MarketplaceID}}, &tree); err != nil {
		return nil, err
	}

	var resp ebayAspectsResponse
	path := fmt.Sprintf("commerce/taxonomy/v1/category_tree/%s/get_item_aspects_for_category", url.PathEscape(tree.CategoryTreeID))
	if err := a.client.get(ctx, path, url.Values{"category_id": {categoryID}}, &resp); err != nil {
		return nil, err
	}

	fields := make([]integration.PlatformField, 0, len(resp.Aspects))
	for _, aspect := range resp.Aspects {
		field := integration.PlatformField{
			Name:     aspect.Name,
			Label:    aspect.Name,
			Type:     "string",
			Required: aspect.Constraint.Required,
			Kind:     integration.FieldKindItemSpecific,
		}
		if aspect.Constraint.DataType == "NUMBER" {
			field.Type = "number"
		}
		if aspect.Constraint.Mode == "SELECTION_ONLY" {
			for _, v := range aspect.Values {
				field.Options = append(field.Options, v.Value)
			}
		}
		fields = append(fields, field)
	}

	a.logger.Info("fetched marketplace item specifics",
		append(logger.ListingAudit(string(a.platform), a.channelID(), a.marketplaceID(), "fetch_item_specifics"),
			zap.String("category_id", categoryID),
			zap.Int("aspects", len(fields)))...)
	return fields, nil
}

func (a *EbayAdapter) requireOffer(lc *integration.ListingContext) (string, integration.AdapterResult, bool) {
	if r, ok := a.precheck(a.IsConnected(), lc, true); !ok {
		return "", r, false
	}
	offerID := lc.PlatformDataString(integration.DataKeyOfferID)
	if offerID == "" {
		return "", integration.MissingLinkage(a.platform), false
	}
	return offerID, integration.AdapterResult{}, true
}

// findOffer returns the stored offer id, or the existing offer for sku
func (a *EbayAdapter) findOffer(ctx context.Context, lc *integration.ListingContext, sku string) (string, error) {
	if id := lc.PlatformDataString(integration.DataKeyOfferID); id != "" {
		return id, nil
	}
	var resp struct {
		Offers []ebayOffer `json:"offers"`
	}
	status, err := a.client.do(ctx, apiRequest{
		method: http.MethodGet,
		path:   "sell/inventory/v1/offer",
		query:  url.Values{"sku": {sku}, "marketplace_id": {a.creds.MarketplaceID}},
	}, &resp)
	if err != nil {
		// eBay answers 404 when the SKU has no offer yet
		if status == http.StatusNotFound {
			return "", nil
		}
		return "", err
	}
	if len(resp.Offers) > 0 {
		return resp.Offers[0].OfferID, nil
	}
	return "", nil
}

func (a *EbayAdapter) bulkUpdate(ctx context.Context, req ebayBulkUpdate) error {
	var resp struct {
		Responses []struct {
			StatusCode int `json:"statusCode"`
			Errors     []struct {
				Message string `json:"message"`
			} `json:"errors"`
		} `json:"responses"`
	}
	if err := a.client.send(ctx, http.MethodPost, "sell/inventory/v1/bulk_update_price_quantity", req, &resp); err != nil {
		return err
	}
	for _, r := range resp.Responses {
		if r.StatusCode >= 400 {
			detail := ""
			if len(r.Errors) > 0 {
				detail = r.Errors[0].Message
			}
			return a.client.upstreamError(r.StatusCode, fmt.Errorf("%w: HTTP %d", integration.ErrPlatformRequestFailed, r.StatusCode), detail)
		}
	}
	return nil
}

func (a *EbayAdapter) sku(lc *integration.ListingContext) string {
	if sku := lc.PlatformDataString(integration.DataKeySKU); sku != "" {
		return sku
	}
	if lc.Payload != nil && lc.Payload.SKU != "" {
		return lc.Payload.SKU
	}
	if lc.Listing != nil {
		return lc.Listing.ProductID.String()
	}
	return ""
}

func (a *EbayAdapter) buildInventoryItem(p *integration.ListingPayload) ebayInventoryItem {
	qty := p.Quantity
	item := ebayInventoryItem{
		Availability: ebayAvailability{ShipToLocationAvailability: ebayShipToLocation{Quantity: &qty}},
		Product: ebayProduct{
			Title:       p.Title,
			Description: p.Description,
			ImageURLs:   p.Images,
			Brand:       p.Brand,
			MPN:         p.MPN,
			Aspects:     make(map[string][]string, len(p.ItemSpecifics)),
		},
	}
	if id, ok := p.Field("condition_id"); ok {
		if n, ok := id.(int); ok {
			item.Condition = ebayConditions[n]
		}
	}
	if p.UPC != "" {
		item.Product.UPC = []string{p.UPC}
	}
	if p.EAN != "" {
		item.Product.EAN = []string{p.EAN}
	}
	for _, spec := range p.ItemSpecifics {
		item.Product.Aspects[spec.Name] = append(item.Product.Aspects[spec.Name], spec.Value)
	}
	return item
}

func (a *EbayAdapter) buildOffer(p *integration.ListingPayload, sku string) ebayOffer {
	qty := p.Quantity
	offer := ebayOffer{
		SKU:                 sku,
		MarketplaceID:       a.creds.MarketplaceID,
		Format:              "FIXED_PRICE",
		AvailableQuantity:   &qty,
		ListingDescription:  p.Description,
		MerchantLocationKey: a.locationKey,
		PricingSummary: &ebayPricingSummary{
			Price: &ebayAmount{Value: p.Price.StringFixed(2), Currency: a.currency},
		},
	}
	if p.PrimaryCategoryID != nil {
		offer.CategoryID = *p.PrimaryCategoryID
	}
	if p.SecondaryCategoryID != nil {
		offer.SecondaryCategoryID = *p.SecondaryCategoryID
	}
	if policies := a.creds.Policies(); policies.IsComplete() {
		offer.ListingPolicies = &ebayListingPolicies{
			FulfillmentPolicyID: policies.FulfillmentPolicyID,
			PaymentPolicyID:     policies.PaymentPolicyID,
			ReturnPolicyID:      policies.ReturnPolicyID,
		}
	}
	return offer
}

// ---------------------------------------------------------------------------
// eBay wire types
// ---------------------------------------------------------------------------

type ebayInventoryItem struct {
	Availability ebayAvailability `json:"availability"`
	Condition    string           `json:"condition,omitempty"`
	Product      ebayProduct      `json:"product"`
}

type ebayAvailability struct {
	ShipToLocationAvailability ebayShipToLocation `json:"shipToLocationAvailability"`
}

type ebayShipToLocation struct {
	Quantity *int `json:"quantity,omitempty"`
}

type ebayProduct struct {
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	ImageURLs   []string            `json:"imageUrls,omitempty"`
	Brand       string              `json:"brand,omitempty"`
	MPN         string              `json:"mpn,omitempty"`
	UPC         []string            `json:"upc,omitempty"`
	EAN         []string            `json:"ean,omitempty"`
	Aspects     map[string][]string `json:"aspects,omitempty"`
}

type ebayAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type ebayPricingSummary struct {
	Price *ebayAmount `json:"price,omitempty"`
}

type ebayListingPolicies struct {
	FulfillmentPolicyID string `json:"fulfillmentPolicyId"`
	PaymentPolicyID     string `json:"paymentPolicyId"`
	ReturnPolicyID      string `json:"returnPolicyId"`
}

type ebayOffer struct {
	OfferID             string               `json:"offerId,omitempty"`
	SKU                 string               `json:"sku,omitempty"`
	MarketplaceID       string               `json:"marketplaceId,omitempty"`
	Format              string               `json:"format,omitempty"`
	AvailableQuantity   *int                 `json:"availableQuantity,omitempty"`
	CategoryID          string               `json:"categoryId,omitempty"`
	SecondaryCategoryID string               `json:"secondaryCategoryId,omitempty"`
	ListingDescription  string               `json:"listingDescription,omitempty"`
	ListingPolicies     *ebayListingPolicies `json:"listingPolicies,omitempty"`
	PricingSummary      *ebayPricingSummary  `json:"pricingSummary,omitempty"`
	MerchantLocationKey string               `json:"merchantLocationKey,omitempty"`
	Status              string               `json:"status,omitempty"`
	Listing             *ebayOfferListing    `json:"listing,omitempty"`
}

type ebayOfferListing struct {
	ListingID     string `json:"listingId"`
	ListingStatus string `json:"listingStatus"`
}

type ebayBulkUpdate struct {
	Requests []ebayPriceQuantity `json:"requests"`
}

type ebayPriceQuantity struct {
	SKU                        string              `json:"sku"`
	Offers                     []ebayOfferPrice    `json:"offers,omitempty"`
	ShipToLocationAvailability *ebayShipToLocation `json:"shipToLocationAvailability,omitempty"`
}

type ebayOfferPrice struct {
	OfferID string      `json:"offerId"`
	Price   *ebayAmount `json:"price,omitempty"`
}

type ebayAspectsResponse struct {
	Aspects []struct {
		Name       string `json:"localizedAspectName"`
		Constraint struct {
			Required bool   `json:"aspectRequired"`
			DataType string `json:"aspectDataType"`
			Mode     string `json:"aspectMode"`
		} `json:"aspectConstraint"`
		Values []struct {
			Value string `json:"localizedValue"`
		} `json:"aspectValues"`
	} `json:"aspects"`
}

var (
	_ integration.ListingAdapter        = (*EbayAdapter)(nil)
	_ integration.BusinessPolicySyncer  = (*EbayAdapter)(nil)
	_ integration.ItemSpecificsProvider = (*EbayAdapter)(nil)
)
