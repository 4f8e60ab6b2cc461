package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/erp/listingsync/internal/application/listing"
	"github.com/erp/listingsync/internal/domain/integration"
	"github.com/erp/listingsync/internal/infrastructure/logger"
	"github.com/erp/listingsync/internal/infrastructure/scheduler"
	"github.com/erp/listingsync/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ListingOperations is the listing state machine the handler drives
type ListingOperations interface {
	GetListing(ctx context.Context, storeID, listingID uuid.UUID) (*integration.PlatformListing, error)
	EnsureListing(ctx context.Context, storeID, productID, channelID uuid.UUID) (*integration.PlatformListing, error)
	Publish(ctx context.Context, listingID uuid.UUID) (integration.AdapterResult, error)
	Unpublish(ctx context.Context, listingID uuid.UUID) (integration.AdapterResult, error)
	End(ctx context.Context, listingID uuid.UUID) (integration.AdapterResult, error)
	Sync(ctx context.Context, listingID uuid.UUID) (integration.AdapterResult, error)
	Refresh(ctx context.Context, listingID uuid.UUID) (integration.AdapterResult, error)
	UpdatePrice(ctx context.Context, listingID uuid.UUID, price decimal.Decimal) (integration.AdapterResult, error)
	UpdateInventory(ctx context.Context, listingID uuid.UUID, quantity *int) (integration.AdapterResult, error)
}

// ListingPreviewer builds a listing payload without sending it
type ListingPreviewer interface {
	PreviewListing(ctx context.Context, storeID, productID, channelID uuid.UUID) (*listing.ListingPreview, error)
}

// ChannelReader loads sales channels
type ChannelReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*integration.SalesChannel, error)
}

// ListingHandler handles marketplace listing endpoints
type ListingHandler struct {
	BaseHandler
	listings ListingOperations
	preview  ListingPreviewer
	channels ChannelReader
	jobs     integration.JobDispatcher
}

// NewListingHandler creates a new ListingHandler
func NewListingHandler(
	listings ListingOperations,
	preview ListingPreviewer,
	channels ChannelReader,
	jobs integration.JobDispatcher,
) *ListingHandler {
	return &ListingHandler{
		listings: listings,
		preview:  preview,
		channels: channels,
		jobs:     jobs,
	}
}

// Publish godoc
// POST /api/v1/listings/:id/publish
func (h *ListingHandler) Publish(c *gin.Context) {
	h.runAction(c, integration.ActionPublish, h.listings.Publish)
}

// Unpublish godoc
// POST /api/v1/listings/:id/unpublish
func (h *ListingHandler) Unpublish(c *gin.Context) {
	h.runAction(c, integration.ActionUnpublish, h.listings.Unpublish)
}

// End godoc
// POST /api/v1/listings/:id/end
func (h *ListingHandler) End(c *gin.Context) {
	h.runAction(c, integration.ActionEnd, h.listings.End)
}

// Sync godoc
// POST /api/v1/listings/:id/sync
func (h *ListingHandler) Sync(c *gin.Context) {
	h.runAction(c, integration.ActionSync, h.listings.Sync)
}

// Refresh godoc
// POST /api/v1/listings/:id/refresh
func (h *ListingHandler) Refresh(c *gin.Context) {
	h.runAction(c, integration.ActionRefresh, h.listings.Refresh)
}

// UpdatePrice godoc
// PUT /api/v1/listings/:id/price
func (h *ListingHandler) UpdatePrice(c *gin.Context) {
	var req UpdatePriceRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.runAction(c, integration.ActionUpdatePrice, func(ctx context.Context, id uuid.UUID) (integration.AdapterResult, error) {
		return h.listings.UpdatePrice(ctx, id, *req.Price)
	})
}

// UpdateInventory godoc
// PUT /api/v1/listings/:id/inventory
func (h *ListingHandler) UpdateInventory(c *gin.Context) {
	var req UpdateInventoryRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	h.runAction(c, integration.ActionUpdateInventory, func(ctx context.Context, id uuid.UUID) (integration.AdapterResult, error) {
		return h.listings.UpdateInventory(ctx, id, req.Quantity)
	})
}

// runAction checks the listing belongs to the caller's store, runs op and
// writes the {success, message, data} result. A failed marketplace call is
// answered with 422 and the same body.
func (h *ListingHandler) runAction(c *gin.Context, action integration.ListingAction, op func(context.Context, uuid.UUID) (integration.AdapterResult, error)) {
	storeID, ok := h.storeID(c)
	if !ok {
		return
	}
	listingID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.listings.GetListing(ctx, storeID, listingID); err != nil {
		h.HandleError(c, err)
		return
	}
	result, err := op(ctx, listingID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
		logger.GetGinLogger(c).Info("Listing action failed",
			zap.String("listing_id", listingID.String()),
			zap.String("action", action.String()),
			zap.String("message", result.Message),
		)
	}
	c.JSON(status, listing.ToActionResult(result))
}

// Preview godoc
// GET /api/v1/products/:id/channels/:channelId/preview
func (h *ListingHandler) Preview(c *gin.Context) {
	storeID, productID, channelID, ok := h.productChannel(c)
	if !ok {
		return
	}
	preview, err := h.preview.PreviewListing(c.Request.Context(), storeID, productID, channelID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

// EnsureListing godoc
// POST /api/v1/products/:id/channels/:channelId/listing
func (h *ListingHandler) EnsureListing(c *gin.Context) {
	storeID, productID, channelID, ok := h.productChannel(c)
	if !ok {
		return
	}
	l, err := h.listings.EnsureListing(c.Request.Context(), storeID, productID, channelID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, listing.ToListingResponse(l))
}

func (h *ListingHandler) productChannel(c *gin.Context) (storeID, productID, channelID uuid.UUID, ok bool) {
	if storeID, ok = h.storeID(c); !ok {
		return
	}
	if productID, ok = h.uuidParam(c, "id"); !ok {
		return
	}
	channelID, ok = h.uuidParam(c, "channelId")
	return
}

// BulkListing godoc
// POST /api/v1/channels/:id/bulk-listings
func (h *ListingHandler) BulkListing(c *gin.Context) {
	storeID, ok := h.storeID(c)
	if !ok {
		return
	}
	channelID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req BulkListingRequest
	if !h.bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	channel, err := h.channels.FindByID(ctx, channelID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if channel.StoreID != storeID {
		h.HandleError(c, integration.ErrChannelNotFound)
		return
	}

	payload := integration.BulkListingPayload{
		StoreID:    storeID,
		ChannelID:  channelID,
		ProductIDs: uniqueIDs(req.ProductIDs),
		Publish:    req.Publish == nil || *req.Publish,
	}
	if err := h.jobs.Dispatch(ctx, integration.JobBulkListing, payload); err != nil {
		if errors.Is(err, scheduler.ErrJobQueueFull) {
			h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeBusy, "Job queue is full, try again later")
			return
		}
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, BulkListingResponse{
		ChannelID:    channelID,
		ProductCount: len(payload.ProductIDs),
		Publish:      payload.Publish,
		Status:       "queued",
	})
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
