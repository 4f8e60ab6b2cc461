package ecommerce

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/listingsync/internal/domain/integration"
)

// newWalmartTestServer serves the token endpoint and delegates the rest to handler
func newWalmartTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, walmartServiceName, r.Header.Get("WM_SVC.NAME"))
		assert.NotEmpty(t, r.Header.Get("WM_QOS.CORRELATION_ID"))
		if r.URL.Path == "/token" {
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "wm-client", user)
			assert.Equal(t, "wm-secret", pass)
			writeJSON(t, w, http.StatusOK, map[string]any{"access_token": "wm-token", "token_type": "Bearer", "expires_in": 900})
			return
		}
		assert.Equal(t, "wm-token", r.Header.Get("WM_SEC.ACCESS_TOKEN"))
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestWalmartAdapter(t *testing.T, serverURL string) (*WalmartAdapter, *integration.SalesChannel) {
	t.Helper()
	conn := newTestConnection(integration.PlatformWalmart, map[string]any{"client_id": "wm-client", "client_secret": "wm-secret"})
	channel := newTestChannel(integration.PlatformWalmart, conn)

	adapter, err := NewWalmartAdapter(channel, newTestDeps(integration.PlatformWalmart, serverURL))
	require.NoError(t, err)
	return adapter.(*WalmartAdapter), channel
}

func TestWalmartAdapter_Publish(t *testing.T) {
	server := newWalmartTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/feeds", r.URL.Path)
		assert.Equal(t, "MP_ITEM", r.URL.Query().Get("feedType"))

		body := decodeBody(t, r)
		items, _ := body["MPItem"].([]any)
		if assert.Len(t, items, 1) {
			orderable := items[0].(map[string]any)["Orderable"].(map[string]any)
			assert.Equal(t, "MUG-BLUE", orderable["sku"])
		}
		writeJSON(t, w, http.StatusOK, map[string]any{"feedId": "FEED-1"})
	})

	adapter, channel := newTestWalmartAdapter(t, server.URL)
	result := adapter.Publish(context.Background(), newTestListingContext(channel, "", newTestPayload(integration.PlatformWalmart)))

	require.True(t, result.Success, result.Message)
	assert.Equal(t, "MUG-BLUE", result.ExternalID)
	assert.Equal(t, "FEED-1", result.Data["feed_id"])
	status, _ := result.Status()
	assert.Equal(t, integration.ListingStatusPending, status)
}

func TestWalmartAdapter_EndZeroesInventory(t *testing.T) {
	for _, end := range []bool{false, true} {
		server := newWalmartTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "/inventory", r.URL.Path)
			assert.Equal(t, "MUG-BLUE", r.URL.Query().Get("sku"))
			body := decodeBody(t, r)
			assert.EqualValues(t, 0, body["quantity"].(map[string]any)["amount"])
			writeJSON(t, w, http.StatusOK, body)
		})

		adapter, channel := newTestWalmartAdapter(t, server.URL)
		lc := newTestListingContext(channel, "MUG-BLUE", nil)

		var result integration.AdapterResult
		if end {
			result = adapter.End(context.Background(), lc)
		} else {
			result = adapter.Unpublish(context.Background(), lc)
		}
		require.True(t, result.Success, result.Message)
		qty, _ := result.Quantity()
		assert.Equal(t, 0, qty)
	}
}

func TestWalmartAdapter_Refresh(t *testing.T) {
	server := newWalmartTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/items/MUG-BLUE", r.URL.Path)
		writeJSON(t, w, http.StatusOK, map[string]any{"ItemResponse": []map[string]any{
			{"sku": "MUG-BLUE", "wpid": "5XYZ", "publishedStatus": "SYSTEM_PROBLEM", "price": map[string]any{"currency": "USD", "amount": 19.99}},
		}})
	})

	adapter, channel := newTestWalmartAdapter(t, server.URL)
	result := adapter.Refresh(context.Background(), newTestListingContext(channel, "MUG-BLUE", nil))
	require.True(t, result.Success, result.Message)
	status, _ := result.Status()
	assert.Equal(t, integration.ListingStatusError, status)
	assert.Equal(t, "https://www.walmart.com/ip/5XYZ", result.URL)
}

func TestWalmartAdapter_TokenFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusUnauthorized, map[string]any{"error": "invalid_client"})
	}))
	defer server.Close()

	adapter, channel := newTestWalmartAdapter(t, server.URL)
	result := adapter.UpdatePrice(context.Background(), newTestListingContext(channel, "MUG-BLUE", nil), newTestPayload(integration.PlatformWalmart).Price)

	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, integration.ErrPlatformTokenRefresh)
	assert.Equal(t, "Walmart rejected the stored credentials, reconnect the marketplace", result.Message)
}
