package handler

import (
	"context"

	"github.com/erp/listingsync/internal/domain/integration"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ConnectionOperations runs account-level marketplace operations
type ConnectionOperations interface {
	TestConnection(ctx context.Context, storeID, connectionID uuid.UUID) (*integration.ConnectionInfo, error)
	SyncBusinessPolicies(ctx context.Context, storeID, connectionID uuid.UUID) (*integration.BusinessPolicies, error)
}

// ConnectionHandler handles marketplace connection endpoints
type ConnectionHandler struct {
	BaseHandler
	service ConnectionOperations
}

// NewConnectionHandler creates a new ConnectionHandler
func NewConnectionHandler(service ConnectionOperations) *ConnectionHandler {
	return &ConnectionHandler{service: service}
}

// Test godoc
// POST /api/v1/connections/:id/test
func (h *ConnectionHandler) Test(c *gin.Context) {
	storeID, ok := h.storeID(c)
	if !ok {
		return
	}
	connectionID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	info, err := h.service.TestConnection(c.Request.Context(), storeID, connectionID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ConnectionInfoResponse{
		ExternalStoreID: info.ExternalStoreID,
		ShopName:        info.ShopName,
		ShopDomain:      info.ShopDomain,
	})
}

// SyncBusinessPolicies godoc
// POST /api/v1/connections/:id/business-policies/sync
func (h *ConnectionHandler) SyncBusinessPolicies(c *gin.Context) {
	storeID, ok := h.storeID(c)
	if !ok {
		return
	}
	connectionID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	policies, err := h.service.SyncBusinessPolicies(c.Request.Context(), storeID, connectionID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, BusinessPoliciesResponse{
		FulfillmentPolicyID: policies.FulfillmentPolicyID,
		PaymentPolicyID:     policies.PaymentPolicyID,
		ReturnPolicyID:      policies.ReturnPolicyID,
		Complete:            policies.IsComplete(),
	})
}
