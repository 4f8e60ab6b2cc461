package ecommerce

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/erp/listingsync/internal/domain/catalog"
	"github.com/erp/listingsync/internal/domain/integration"
)

const (
	testAccessToken  = "test-access-token-123"
	testRefreshToken = "test-refresh-token-456"
)

func newTestConnection(platform integration.PlatformCode, creds map[string]any) *integration.MarketplaceConnection {
	return &integration.MarketplaceConnection{
		ID:           uuid.New(),
		StoreID:      uuid.New(),
		Platform:     platform,
		AccessToken:  testAccessToken,
		RefreshToken: testRefreshToken,
		Credentials:  creds,
		Status:       integration.ConnectionStatusActive,
	}
}

func newTestChannel(platform integration.PlatformCode, conn *integration.MarketplaceConnection) *integration.SalesChannel {
	ch := &integration.SalesChannel{
		ID:         uuid.New(),
		StoreID:    uuid.New(),
		Type:       platform,
		Name:       platform.DisplayName(),
		Connection: conn,
		IsActive:   true,
	}
	if conn != nil {
		ch.StoreID = conn.StoreID
		ch.ConnectionID = &conn.ID
	}
	return ch
}

func newTestDeps(platform integration.PlatformCode, baseURL string) AdapterDeps {
	return AdapterDeps{
		Config: Config{Platforms: map[integration.PlatformCode]PlatformConfig{
			platform: {BaseURL: baseURL, OAuth: OAuthConfig{ClientID: "app-id", ClientSecret: "app-secret", TokenURL: baseURL + "/token"}},
		}},
		Logger: zap.NewNop(),
	}
}

func newTestPayload(platform integration.PlatformCode) *integration.ListingPayload {
	return &integration.ListingPayload{
		Platform:    platform,
		Title:       "Blue Ceramic Mug",
		Description: "A hand-glazed mug",
		Price:       decimal.RequireFromString("19.99"),
		Quantity:    5,
		SKU:         "MUG-BLUE",
		Brand:       "Acme",
		Images:      []string{"https://cdn.example.com/mug.jpg", "https://cdn.example.com/mug-2.jpg"},
	}
}

// newTestListingContext builds a context for a listing; externalID may be empty
func newTestListingContext(channel *integration.SalesChannel, externalID string, payload *integration.ListingPayload) *integration.ListingContext {
	product := &catalog.Product{
		StoreID: channel.StoreID,
		Title:   "Blue Ceramic Mug",
		Variants: []catalog.ProductVariant{
			{ID: uuid.New(), SKU: "MUG-BLUE", Price: decimal.RequireFromString("19.99"), Quantity: 5},
		},
	}
	product.ID = uuid.New()

	listing := integration.NewPlatformListing(channel.StoreID, product.ID, channel.ID)
	if externalID != "" {
		listing.ExternalListingID = &externalID
		listing.Status = integration.ListingStatusListed
	}
	return &integration.ListingContext{
		Listing: listing,
		Channel: channel,
		Product: product,
		Payload: payload,
	}
}

// newFailingServer fails the test on any request
func newFailingServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// writeJSON and decodeBody run inside server handlers, so they only assert
func writeJSON(t *testing.T, w http.ResponseWriter, status int, body any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	assert.NoError(t, json.NewEncoder(w).Encode(body))
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	data, err := io.ReadAll(r.Body)
	assert.NoError(t, err)
	out := map[string]any{}
	assert.NoError(t, json.Unmarshal(data, &out))
	return out
}
