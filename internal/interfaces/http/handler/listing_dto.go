package handler

import (
	"github.com/erp/listingsync/internal/domain/integration"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UpdatePriceRequest is the body of PUT /listings/:id/price
type UpdatePriceRequest struct {
	Price *decimal.Decimal `json:"price" binding:"required"`
}

// UpdateInventoryRequest is the body of PUT /listings/:id/inventory. Without a
// quantity the product's total stock is sent.
type UpdateInventoryRequest struct {
	Quantity *int `json:"quantity" binding:"omitempty,gte=0"`
}

// BulkListingRequest is the body of POST /channels/:id/bulk-listings
type BulkListingRequest struct {
	ProductIDs []uuid.UUID `json:"product_ids" binding:"required,min=1,max=500"`
	// Publish defaults to true; false only creates draft listings
	Publish *bool `json:"publish"`
}

// BulkListingResponse acknowledges a queued bulk listing job
type BulkListingResponse struct {
	ChannelID    uuid.UUID `json:"channel_id"`
	ProductCount int       `json:"product_count"`
	Publish      bool      `json:"publish"`
	Status       string    `json:"status"`
}

// SaveFieldMappingRequest is the body of PUT /templates/:id/mappings/:platform
type SaveFieldMappingRequest struct {
	FieldMappings     map[string]string                       `json:"field_mappings" binding:"required"`
	DefaultValues     map[string]any                          `json:"default_values"`
	MetafieldMappings map[string]integration.MetafieldMapping `json:"metafield_mappings"`
	IsAISuggested     bool                                    `json:"is_ai_suggested"`
}

// UnmappedFieldsResponse lists required platform fields a template mapping leaves open
type UnmappedFieldsResponse struct {
	Platform integration.PlatformCode `json:"platform"`
	Fields   []string                 `json:"fields"`
	Complete bool                     `json:"complete"`
}

// SaveCategoryMappingRequest is the body of PUT /categories/:id/mappings/:platform
type SaveCategoryMappingRequest struct {
	PrimaryCategoryID   string            `json:"primary_category_id" binding:"required,max=100"`
	SecondaryCategoryID *string           `json:"secondary_category_id" binding:"omitempty,max=100"`
	CategoryPath        string            `json:"category_path" binding:"max=500"`
	FieldMappings       map[string]string `json:"field_mappings"`
	DefaultValues       map[string]any    `json:"default_values"`
}

// ConnectionInfoResponse is the account a connection test reached
type ConnectionInfoResponse struct {
	ExternalStoreID string `json:"external_store_id,omitempty"`
	ShopName        string `json:"shop_name,omitempty"`
	ShopDomain      string `json:"shop_domain,omitempty"`
}

// BusinessPoliciesResponse holds the synced marketplace policy ids
type BusinessPoliciesResponse struct {
	FulfillmentPolicyID string `json:"fulfillment_policy_id"`
	PaymentPolicyID     string `json:"payment_policy_id"`
	ReturnPolicyID      string `json:"return_policy_id"`
	Complete            bool   `json:"complete"`
}
