package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/erp/listingsync/internal/domain/integration"
	"github.com/erp/listingsync/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockConnectionOperations implements ConnectionOperations for testing
type MockConnectionOperations struct {
	mock.Mock
}

func (m *MockConnectionOperations) TestConnection(ctx context.Context, storeID, connectionID uuid.UUID) (*integration.ConnectionInfo, error) {
	args := m.Called(ctx, storeID, connectionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ConnectionInfo), args.Error(1)
}

func (m *MockConnectionOperations) SyncBusinessPolicies(ctx context.Context, storeID, connectionID uuid.UUID) (*integration.BusinessPolicies, error) {
	args := m.Called(ctx, storeID, connectionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.BusinessPolicies), args.Error(1)
}

func newConnectionEngine(storeID uuid.UUID, svc ConnectionOperations) *gin.Engine {
	h := NewConnectionHandler(svc)
	engine := gin.New()
	g := engine.Group("/api/v1", withStore(storeID))
	g.POST("/connections/:id/test", h.Test)
	g.POST("/connections/:id/business-policies/sync", h.SyncBusinessPolicies)
	return engine
}

func TestConnectionHandler_Test(t *testing.T) {
	t.Run("reachable account", func(t *testing.T) {
		storeID, connID := uuid.New(), uuid.New()
		svc := new(MockConnectionOperations)
		svc.On("TestConnection", mock.Anything, storeID, connID).Return(&integration.ConnectionInfo{
			ExternalStoreID: "gid://shopify/Shop/1",
			ShopName:        "Acme Goods",
			ShopDomain:      "acme.myshopify.com",
		}, nil)
		engine := newConnectionEngine(storeID, svc)

		w := performRequest(engine, http.MethodPost, "/api/v1/connections/"+connID.String()+"/test", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeResponse(t, w).Data.(map[string]any)
		assert.Equal(t, "Acme Goods", data["shop_name"])
		assert.Equal(t, "acme.myshopify.com", data["shop_domain"])
	})

	t.Run("unknown connection", func(t *testing.T) {
		storeID, connID := uuid.New(), uuid.New()
		svc := new(MockConnectionOperations)
		svc.On("TestConnection", mock.Anything, storeID, connID).Return(nil, integration.ErrConnectionNotFound)
		engine := newConnectionEngine(storeID, svc)

		w := performRequest(engine, http.MethodPost, "/api/v1/connections/"+connID.String()+"/test", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("upstream rejects credentials", func(t *testing.T) {
		storeID, connID := uuid.New(), uuid.New()
		svc := new(MockConnectionOperations)
		svc.On("TestConnection", mock.Anything, storeID, connID).
			Return(nil, &integration.UpstreamError{Platform: integration.PlatformShopify, StatusCode: http.StatusUnauthorized, Message: "Invalid API key"})
		engine := newConnectionEngine(storeID, svc)

		w := performRequest(engine, http.MethodPost, "/api/v1/connections/"+connID.String()+"/test", nil)

		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, dto.ErrCodeUpstream, decodeResponse(t, w).Error.Code)
	})
}

func TestConnectionHandler_SyncBusinessPolicies(t *testing.T) {
	t.Run("complete", func(t *testing.T) {
		storeID, connID := uuid.New(), uuid.New()
		svc := new(MockConnectionOperations)
		svc.On("SyncBusinessPolicies", mock.Anything, storeID, connID).Return(&integration.BusinessPolicies{
			FulfillmentPolicyID: "f-1",
			PaymentPolicyID:     "p-1",
			ReturnPolicyID:      "r-1",
		}, nil)
		engine := newConnectionEngine(storeID, svc)

		w := performRequest(engine, http.MethodPost, "/api/v1/connections/"+connID.String()+"/business-policies/sync", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeResponse(t, w).Data.(map[string]any)
		assert.Equal(t, true, data["complete"])
		assert.Equal(t, "r-1", data["return_policy_id"])
	})

	t.Run("platform without policies", func(t *testing.T) {
		storeID, connID := uuid.New(), uuid.New()
		svc := new(MockConnectionOperations)
		svc.On("SyncBusinessPolicies", mock.Anything, storeID, connID).
			Return(nil, integration.ErrCapabilityNotSupported)
		engine := newConnectionEngine(storeID, svc)

		w := performRequest(engine, http.MethodPost, "/api/v1/connections/"+connID.String()+"/business-policies/sync", nil)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, dto.ErrCodeNotSupported, decodeResponse(t, w).Error.Code)
	})

	t.Run("unexpected failure", func(t *testing.T) {
		storeID, connID := uuid.New(), uuid.New()
		svc := new(MockConnectionOperations)
		svc.On("SyncBusinessPolicies", mock.Anything, storeID, connID).Return(nil, errors.New("boom"))
		engine := newConnectionEngine(storeID, svc)

		w := performRequest(engine, http.MethodPost, "/api/v1/connections/"+connID.String()+"/business-policies/sync", nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
