package integration

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/listingsync/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Adapter port
// ---------------------------------------------------------------------------

// ListingAdapter is the uniform contract every marketplace implements.
// Implementations never return errors or panic: every outcome is an AdapterResult.
type ListingAdapter interface {
	// Platform returns the platform code of the adapter
	Platform() PlatformCode

	// IsConnected reports whether the backing connection holds the credentials
	// the platform's calls require
	IsConnected() bool

	// Publish creates the listing, or updates it when the external id is known
	Publish(ctx context.Context, lc *ListingContext) AdapterResult

	// Unpublish deactivates the listing without deleting it
	Unpublish(ctx context.Context, lc *ListingContext) AdapterResult

	// End permanently removes the external listing
	End(ctx context.Context, lc *ListingContext) AdapterResult

	// UpdatePrice changes only the price
	UpdatePrice(ctx context.Context, lc *ListingContext, price decimal.Decimal) AdapterResult

	// UpdateInventory changes only the available quantity
	UpdateInventory(ctx context.Context, lc *ListingContext, quantity int) AdapterResult

	// Sync pushes the full payload again
	Sync(ctx context.Context, lc *ListingContext) AdapterResult

	// Refresh pulls the external state and reports the canonical status in Data
	Refresh(ctx context.Context, lc *ListingContext) AdapterResult
}

// AdapterResolver resolves the adapter backing a sales channel
type AdapterResolver interface {
	Make(ctx context.Context, channel *SalesChannel) (ListingAdapter, error)
}

// ListingContext is everything an adapter needs for one call
type ListingContext struct {
	Listing *PlatformListing
	Channel *SalesChannel
	Product *catalog.Product
	// Payload is the assembled outbound listing; nil for calls that do not send one
	Payload *ListingPayload
}

// ExternalID returns the known external listing id, or empty
func (c *ListingContext) ExternalID() string {
	if c == nil || c.Listing == nil || c.Listing.ExternalListingID == nil {
		return ""
	}
	return *c.Listing.ExternalListingID
}

// HasExternalID reports whether the listing has been published before
func (c *ListingContext) HasExternalID() bool {
	return c.ExternalID() != ""
}

// CurrentStatus returns the stored canonical status of the listing
func (c *ListingContext) CurrentStatus() ListingStatus {
	if c == nil || c.Listing == nil {
		return ListingStatusDraft
	}
	return c.Listing.Status
}

// PlatformDataString reads a string echo previously stored on the listing
func (c *ListingContext) PlatformDataString(key string) string {
	if c == nil || c.Listing == nil {
		return ""
	}
	return c.Listing.PlatformDataString(key)
}

// ---------------------------------------------------------------------------
// Capability interfaces
// ---------------------------------------------------------------------------

// ConnectionInfo describes the remote store a credential set belongs to
type ConnectionInfo struct {
	ExternalStoreID string
	ShopName        string
	ShopDomain      string
}

// CredentialConnector is implemented by platforms connected with API keys
// instead of an OAuth flow. It validates the credentials against the platform.
type CredentialConnector interface {
	TestConnection(ctx context.Context) (*ConnectionInfo, error)
}

// BusinessPolicies are the seller policies a listing must reference
type BusinessPolicies struct {
	FulfillmentPolicyID string
	PaymentPolicyID     string
	ReturnPolicyID      string
}

// IsComplete reports whether all three policies are present
func (p BusinessPolicies) IsComplete() bool {
	return p.FulfillmentPolicyID != "" && p.PaymentPolicyID != "" && p.ReturnPolicyID != ""
}

// BusinessPolicySyncer is implemented by platforms with account-level business policies
type BusinessPolicySyncer interface {
	SyncBusinessPolicies(ctx context.Context) (*BusinessPolicies, error)
}

// ItemSpecificsProvider is implemented by platforms with category-specific aspects
type ItemSpecificsProvider interface {
	FetchItemSpecifics(ctx context.Context, categoryID string) ([]PlatformField, error)
}

// ---------------------------------------------------------------------------
// Adapter result
// ---------------------------------------------------------------------------

// Well-known AdapterResult.Data keys
const (
	DataKeyStatus       = "status"
	DataKeyNativeStatus = "native_status"
	DataKeyPrice        = "price"
	DataKeyQuantity     = "quantity"
	DataKeySKU          = "sku"
	DataKeyOfferID      = "offer_id"
	DataKeyPayloadHash  = "payload_hash"
)

// AdapterResult is the outcome of exactly one adapter call
type AdapterResult struct {
	Success    bool
	Message    string
	ExternalID string
	URL        string
	Data       map[string]any
	// Err is the original cause of a failure, kept for logging
	Err error
}

// Succeeded creates a successful result
func Succeeded(message string) AdapterResult {
	return AdapterResult{Success: true, Message: message}
}

// Failed creates a failed result
func Failed(message string, err error) AdapterResult {
	return AdapterResult{Success: false, Message: message, Err: err}
}

// NotConnected is the failure every adapter returns before touching the network
func NotConnected(platform PlatformCode) AdapterResult {
	return Failed(fmt.Sprintf("%s is not connected", platform.DisplayName()), ErrNotConnected)
}

// MissingLinkage is the failure for operations that need an external id
func MissingLinkage(platform PlatformCode) AdapterResult {
	return Failed(fmt.Sprintf("Listing has not been published to %s yet", platform.DisplayName()), ErrMissingLinkage)
}

// UpstreamFailed converts any adapter error into a failed result with a display-safe message
func UpstreamFailed(platform PlatformCode, err error) AdapterResult {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return Failed(upstream.Error(), err)
	}
	if errors.Is(err, ErrNotConnected) {
		return NotConnected(platform)
	}
	if errors.Is(err, ErrPlatformTokenRefresh) || errors.Is(err, ErrPlatformAuthFailed) {
		return Failed(fmt.Sprintf("%s rejected the stored credentials, reconnect the marketplace", platform.DisplayName()), err)
	}
	return Failed(fmt.Sprintf("%s request failed", platform.DisplayName()), err)
}

// WithExternalID returns a copy with the external id and url set
func (r AdapterResult) WithExternalID(id, url string) AdapterResult {
	r.ExternalID = id
	r.URL = url
	return r
}

// WithData returns a copy with key set in Data
func (r AdapterResult) WithData(key string, value any) AdapterResult {
	data := make(map[string]any, len(r.Data)+1)
	for k, v := range r.Data {
		data[k] = v
	}
	data[key] = value
	r.Data = data
	return r
}

// WithStatus returns a copy carrying a canonical status hint
func (r AdapterResult) WithStatus(status ListingStatus) AdapterResult {
	return r.WithData(DataKeyStatus, string(status))
}

// Status returns the canonical status hint, if any
func (r AdapterResult) Status() (ListingStatus, bool) {
	switch v := r.Data[DataKeyStatus].(type) {
	case ListingStatus:
		return v, v.IsValid()
	case string:
		s := ListingStatus(v)
		return s, s.IsValid()
	default:
		return "", false
	}
}

// Price returns the price hint, if any
func (r AdapterResult) Price() (decimal.Decimal, bool) {
	switch v := r.Data[DataKeyPrice].(type) {
	case decimal.Decimal:
		return v, true
	case string:
		d, err := decimal.NewFromString(v)
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(v), true
	default:
		return decimal.Zero, false
	}
}

// Quantity returns the quantity hint, if any
func (r AdapterResult) Quantity() (int, bool) {
	switch v := r.Data[DataKeyQuantity].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
