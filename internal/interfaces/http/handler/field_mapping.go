package handler

import (
	"context"

	"github.com/erp/listingsync/internal/application/listing"
	"github.com/erp/listingsync/internal/domain/integration"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// FieldMappingOperations maps product template fields onto platform fields
type FieldMappingOperations interface {
	GetSchema(platform integration.PlatformCode) (integration.PlatformSchema, error)
	GetMapping(ctx context.Context, storeID, templateID uuid.UUID, platform integration.PlatformCode) (*integration.TemplatePlatformMapping, error)
	SaveMapping(ctx context.Context, storeID, templateID uuid.UUID, platform integration.PlatformCode, input listing.SaveFieldMappingInput) (*integration.TemplatePlatformMapping, error)
	SuggestMappings(ctx context.Context, storeID, templateID uuid.UUID, platform integration.PlatformCode) ([]listing.MappingSuggestion, error)
	UnmappedRequiredFields(ctx context.Context, storeID, templateID uuid.UUID, platform integration.PlatformCode) ([]string, error)
}

// FieldMappingHandler handles template field mapping endpoints
type FieldMappingHandler struct {
	BaseHandler
	service FieldMappingOperations
}

// NewFieldMappingHandler creates a new FieldMappingHandler
func NewFieldMappingHandler(service FieldMappingOperations) *FieldMappingHandler {
	return &FieldMappingHandler{service: service}
}

// GetSchema godoc
// GET /api/v1/mappings/schemas/:platform
func (h *FieldMappingHandler) GetSchema(c *gin.Context) {
	platform, ok := h.platformParam(c)
	if !ok {
		return
	}
	schema, err := h.service.GetSchema(platform)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, schema)
}

// GetMapping godoc
// GET /api/v1/templates/:id/mappings/:platform
func (h *FieldMappingHandler) GetMapping(c *gin.Context) {
	storeID, templateID, platform, ok := h.templatePlatform(c)
	if !ok {
		return
	}
	mapping, err := h.service.GetMapping(c.Request.Context(), storeID, templateID, platform)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, listing.ToTemplateMappingResponse(mapping))
}

// SaveMapping godoc
// PUT /api/v1/templates/:id/mappings/:platform
func (h *FieldMappingHandler) SaveMapping(c *gin.Context) {
	storeID, templateID, platform, ok := h.templatePlatform(c)
	if !ok {
		return
	}
	var req SaveFieldMappingRequest
	if !h.bindJSON(c, &req) {
		return
	}

	mapping, err := h.service.SaveMapping(c.Request.Context(), storeID, templateID, platform, listing.SaveFieldMappingInput{
		FieldMappings:     req.FieldMappings,
		DefaultValues:     req.DefaultValues,
		MetafieldMappings: req.MetafieldMappings,
		IsAISuggested:     req.IsAISuggested,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, listing.ToTemplateMappingResponse(mapping))
}

// Suggest godoc
// POST /api/v1/templates/:id/mappings/:platform/suggest
func (h *FieldMappingHandler) Suggest(c *gin.Context) {
	storeID, templateID, platform, ok := h.templatePlatform(c)
	if !ok {
		return
	}
	suggestions, err := h.service.SuggestMappings(c.Request.Context(), storeID, templateID, platform)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if suggestions == nil {
		suggestions = []listing.MappingSuggestion{}
	}
	h.Success(c, suggestions)
}

// Unmapped godoc
// GET /api/v1/templates/:id/mappings/:platform/unmapped
func (h *FieldMappingHandler) Unmapped(c *gin.Context) {
	storeID, templateID, platform, ok := h.templatePlatform(c)
	if !ok {
		return
	}
	fields, err := h.service.UnmappedRequiredFields(c.Request.Context(), storeID, templateID, platform)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if fields == nil {
		fields = []string{}
	}
	h.Success(c, UnmappedFieldsResponse{
		Platform: platform,
		Fields:   fields,
		Complete: len(fields) == 0,
	})
}

func (h *FieldMappingHandler) templatePlatform(c *gin.Context) (storeID, templateID uuid.UUID, platform integration.PlatformCode, ok bool) {
	if storeID, ok = h.storeID(c); !ok {
		return
	}
	if templateID, ok = h.uuidParam(c, "id"); !ok {
		return
	}
	platform, ok = h.platformParam(c)
	return
}
