package handler

import (
	"context"

	"github.com/erp/listingsync/internal/application/listing"
	"github.com/erp/listingsync/internal/domain/catalog"
	"github.com/erp/listingsync/internal/domain/integration"
	"github.com/erp/listingsync/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CategoryMappingOperations maps store categories onto marketplace categories
type CategoryMappingOperations interface {
	SaveMapping(ctx context.Context, storeID uuid.UUID, input listing.SaveCategoryMappingInput) (*integration.CategoryPlatformMapping, error)
	ListMappings(ctx context.Context, storeID, categoryID uuid.UUID) ([]integration.CategoryPlatformMapping, error)
	DeleteMapping(ctx context.Context, storeID, categoryID uuid.UUID, platform integration.PlatformCode) error
	ResolveCategory(ctx context.Context, product *catalog.Product, platform integration.PlatformCode) (integration.ResolvedCategory, error)
}

// ProductReader loads a product by id
type ProductReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error)
}

// CategoryMappingHandler handles category mapping endpoints
type CategoryMappingHandler struct {
	BaseHandler
	service  CategoryMappingOperations
	products ProductReader
}

// NewCategoryMappingHandler creates a new CategoryMappingHandler
func NewCategoryMappingHandler(service CategoryMappingOperations, products ProductReader) *CategoryMappingHandler {
	return &CategoryMappingHandler{service: service, products: products}
}

// SaveMapping godoc
// PUT /api/v1/categories/:id/mappings/:platform
func (h *CategoryMappingHandler) SaveMapping(c *gin.Context) {
	storeID, ok := h.storeID(c)
	if !ok {
		return
	}
	categoryID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	platform, ok := h.platformParam(c)
	if !ok {
		return
	}
	var req SaveCategoryMappingRequest
	if !h.bindJSON(c, &req) {
		return
	}

	mapping, err := h.service.SaveMapping(c.Request.Context(), storeID, listing.SaveCategoryMappingInput{
		CategoryID:          categoryID,
		Platform:            platform,
		PrimaryCategoryID:   req.PrimaryCategoryID,
		SecondaryCategoryID: req.SecondaryCategoryID,
		CategoryPath:        req.CategoryPath,
		FieldMappings:       req.FieldMappings,
		DefaultValues:       req.DefaultValues,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, listing.ToCategoryMappingResponse(mapping))
}

// ListMappings godoc
// GET /api/v1/categories/:id/mappings
func (h *CategoryMappingHandler) ListMappings(c *gin.Context) {
	storeID, ok := h.storeID(c)
	if !ok {
		return
	}
	categoryID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	mappings, err := h.service.ListMappings(c.Request.Context(), storeID, categoryID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]listing.CategoryMappingResponse, 0, len(mappings))
	for i := range mappings {
		out = append(out, listing.ToCategoryMappingResponse(&mappings[i]))
	}
	h.Success(c, out)
}

// DeleteMapping godoc
// DELETE /api/v1/categories/:id/mappings/:platform
func (h *CategoryMappingHandler) DeleteMapping(c *gin.Context) {
	storeID, ok := h.storeID(c)
	if !ok {
		return
	}
	categoryID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	platform, ok := h.platformParam(c)
	if !ok {
		return
	}
	if err := h.service.DeleteMapping(c.Request.Context(), storeID, categoryID, platform); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// ProductCategory godoc
// GET /api/v1/products/:id/categories/:platform
//
// Returns the marketplace category the product inherits through its category
// chain. Both ids are null when nothing in the chain is mapped.
func (h *CategoryMappingHandler) ProductCategory(c *gin.Context) {
	storeID, ok := h.storeID(c)
	if !ok {
		return
	}
	productID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	platform, ok := h.platformParam(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	product, err := h.products.FindByID(ctx, productID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if product.StoreID != storeID {
		h.HandleError(c, shared.NotFound("Product not found"))
		return
	}
	resolved, err := h.service.ResolveCategory(ctx, product, platform)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, listing.ToResolvedCategoryResponse(resolved))
}
