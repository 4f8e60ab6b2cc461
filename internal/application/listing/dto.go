package listing

import (
	"time"

	"github.com/erp/listingsync/internal/domain/integration"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Listing DTOs
// ---------------------------------------------------------------------------

// ActionResult is the caller-facing shape of one ListingManager operation
type ActionResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

// ToActionResult renders an AdapterResult. External id and url are folded into Data.
func ToActionResult(result integration.AdapterResult) ActionResult {
	var data map[string]any
	if len(result.Data) > 0 || result.ExternalID != "" || result.URL != "" {
		data = make(map[string]any, len(result.Data)+2)
		for k, v := range result.Data {
			data[k] = v
		}
		if result.ExternalID != "" {
			data["external_id"] = result.ExternalID
		}
		if result.URL != "" {
			data["url"] = result.URL
		}
	}
	return ActionResult{Success: result.Success, Message: result.Message, Data: data}
}

// ListingResponse represents a platform listing in API responses
type ListingResponse struct {
	ID                uuid.UUID                 `json:"id"`
	ProductID         uuid.UUID                 `json:"product_id"`
	SalesChannelID    uuid.UUID                 `json:"sales_channel_id"`
	ExternalListingID *string                   `json:"external_listing_id,omitempty"`
	ListingURL        string                    `json:"listing_url,omitempty"`
	Status            integration.ListingStatus `json:"status"`
	PlatformPrice     *decimal.Decimal          `json:"platform_price,omitempty"`
	PlatformQuantity  *int                      `json:"platform_quantity,omitempty"`
	PlatformData      map[string]any            `json:"platform_data,omitempty"`
	PublishedAt       *time.Time                `json:"published_at,omitempty"`
	LastSyncedAt      *time.Time                `json:"last_synced_at,omitempty"`
	LastError         string                    `json:"last_error,omitempty"`
	CreatedAt         time.Time                 `json:"created_at"`
	UpdatedAt         time.Time                 `json:"updated_at"`
}

// ToListingResponse converts a listing to its response DTO
func ToListingResponse(l *integration.PlatformListing) ListingResponse {
	return ListingResponse{
		ID:                l.ID,
		ProductID:         l.ProductID,
		SalesChannelID:    l.SalesChannelID,
		ExternalListingID: l.ExternalListingID,
		ListingURL:        l.ListingURL,
		Status:            l.Status,
		PlatformPrice:     l.PlatformPrice,
		PlatformQuantity:  l.PlatformQuantity,
		PlatformData:      l.PlatformData,
		PublishedAt:       l.PublishedAt,
		LastSyncedAt:      l.LastSyncedAt,
		LastError:         l.LastError,
		CreatedAt:         l.CreatedAt,
		UpdatedAt:         l.UpdatedAt,
	}
}

// ListingPreview is the dry-run output of the listing builder
type ListingPreview struct {
	Listing    map[string]any                `json:"listing"`
	Validation *integration.ValidationResult `json:"validation"`
}

// ---------------------------------------------------------------------------
// Field mapping DTOs
// ---------------------------------------------------------------------------

// Suggestion sources
const (
	SuggestionSourceAI    = "ai"
	SuggestionSourceExact = "exact"
	SuggestionSourceAlias = "alias"
)

// MappingSuggestion proposes one template field -> platform field pair
type MappingSuggestion struct {
	TemplateField string  `json:"template_field"`
	PlatformField string  `json:"platform_field"`
	Confidence    float64 `json:"confidence"`
	Source        string  `json:"source"`
}

// SaveFieldMappingInput is the operator-confirmed template mapping
type SaveFieldMappingInput struct {
	FieldMappings     map[string]string                       `json:"field_mappings"`
	DefaultValues     map[string]any                          `json:"default_values"`
	MetafieldMappings map[string]integration.MetafieldMapping `json:"metafield_mappings"`
	IsAISuggested     bool                                    `json:"is_ai_suggested"`
}

// TemplateMappingResponse represents a template mapping in API responses
type TemplateMappingResponse struct {
	ID                uuid.UUID                               `json:"id"`
	TemplateID        uuid.UUID                               `json:"template_id"`
	Platform          integration.PlatformCode                `json:"platform"`
	FieldMappings     map[string]string                       `json:"field_mappings"`
	DefaultValues     map[string]any                          `json:"default_values"`
	MetafieldMappings map[string]integration.MetafieldMapping `json:"metafield_mappings"`
	IsAISuggested     bool                                    `json:"is_ai_suggested"`
	UpdatedAt         time.Time                               `json:"updated_at"`
}

// ToTemplateMappingResponse converts a template mapping to its response DTO
func ToTemplateMappingResponse(m *integration.TemplatePlatformMapping) TemplateMappingResponse {
	return TemplateMappingResponse{
		ID:                m.ID,
		TemplateID:        m.TemplateID,
		Platform:          m.Platform,
		FieldMappings:     m.FieldMappings,
		DefaultValues:     m.DefaultValues,
		MetafieldMappings: m.MetafieldMappings,
		IsAISuggested:     m.IsAISuggested,
		UpdatedAt:         m.UpdatedAt,
	}
}

// ---------------------------------------------------------------------------
// Category mapping DTOs
// ---------------------------------------------------------------------------

// SaveCategoryMappingInput upserts the mapping of one category on one platform
type SaveCategoryMappingInput struct {
	CategoryID          uuid.UUID
	Platform            integration.PlatformCode
	PrimaryCategoryID   string
	SecondaryCategoryID *string
	CategoryPath        string
	FieldMappings       map[string]string
	DefaultValues       map[string]any
}

// CategoryMappingResponse represents a category mapping in API responses
type CategoryMappingResponse struct {
	ID                    uuid.UUID                   `json:"id"`
	CategoryID            uuid.UUID                   `json:"category_id"`
	Platform              integration.PlatformCode    `json:"platform"`
	PrimaryCategoryID     string                      `json:"primary_category_id"`
	SecondaryCategoryID   *string                     `json:"secondary_category_id,omitempty"`
	CategoryPath          string                      `json:"category_path,omitempty"`
	FieldMappings         map[string]string           `json:"field_mappings,omitempty"`
	DefaultValues         map[string]any              `json:"default_values,omitempty"`
	ItemSpecifics         []integration.PlatformField `json:"item_specifics,omitempty"`
	ItemSpecificsSyncedAt *time.Time                  `json:"item_specifics_synced_at,omitempty"`
	UpdatedAt             time.Time                   `json:"updated_at"`
}

// ToCategoryMappingResponse converts a category mapping to its response DTO
func ToCategoryMappingResponse(m *integration.CategoryPlatformMapping) CategoryMappingResponse {
	return CategoryMappingResponse{
		ID:                    m.ID,
		CategoryID:            m.CategoryID,
		Platform:              m.Platform,
		PrimaryCategoryID:     m.PrimaryCategoryID,
		SecondaryCategoryID:   m.SecondaryCategoryID,
		CategoryPath:          m.CategoryPath,
		FieldMappings:         m.FieldMappings,
		DefaultValues:         m.DefaultValues,
		ItemSpecifics:         m.ItemSpecifics,
		ItemSpecificsSyncedAt: m.ItemSpecificsSyncedAt,
		UpdatedAt:             m.UpdatedAt,
	}
}

// ResolvedCategoryResponse is the marketplace category a product inherits
type ResolvedCategoryResponse struct {
	PrimaryCategoryID   *string    `json:"primary_category_id"`
	SecondaryCategoryID *string    `json:"secondary_category_id"`
	MappingID           *uuid.UUID `json:"mapping_id,omitempty"`
	FromCategoryID      *uuid.UUID `json:"from_category_id,omitempty"`
	CategoryPath        string     `json:"category_path,omitempty"`
}

// ToResolvedCategoryResponse converts a resolved category to its response DTO
func ToResolvedCategoryResponse(r integration.ResolvedCategory) ResolvedCategoryResponse {
	return ResolvedCategoryResponse{
		PrimaryCategoryID:   r.PrimaryCategoryID,
		SecondaryCategoryID: r.SecondaryCategoryID,
		MappingID:           r.MappingID,
		FromCategoryID:      r.FromCategoryID,
		CategoryPath:        r.CategoryPath,
	}
}
