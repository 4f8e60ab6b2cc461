package integration

import (
	"time"

	"github.com/google/uuid"
)

// DefaultMetafieldNamespace is used for metafields created from template fields
const DefaultMetafieldNamespace = "custom"

// MetafieldMapping places a template field into a platform metafield
type MetafieldMapping struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Enabled   bool   `json:"enabled"`
}

// TemplatePlatformMapping maps product template fields onto one platform's schema
type TemplatePlatformMapping struct {
	ID         uuid.UUID
	StoreID    uuid.UUID
	TemplateID uuid.UUID
	Platform   PlatformCode

	// FieldMappings is template field name -> platform field name
	FieldMappings map[string]string

	// DefaultValues is platform field name -> literal value for required fields
	// that have no template counterpart
	DefaultValues map[string]any

	// MetafieldMappings is template field name -> metafield placement
	MetafieldMappings map[string]MetafieldMapping

	IsAISuggested bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTemplatePlatformMapping creates an empty mapping
func NewTemplatePlatformMapping(storeID, templateID uuid.UUID, platform PlatformCode) (*TemplatePlatformMapping, error) {
	if !platform.IsValid() {
		return nil, ErrInvalidPlatformCode
	}
	now := time.Now()
	return &TemplatePlatformMapping{
		ID:                uuid.New(),
		StoreID:           storeID,
		TemplateID:        templateID,
		Platform:          platform,
		FieldMappings:     make(map[string]string),
		DefaultValues:     make(map[string]any),
		MetafieldMappings: make(map[string]MetafieldMapping),
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// MappedPlatformFields returns the set of platform fields that receive a template value
func (m *TemplatePlatformMapping) MappedPlatformFields() map[string]struct{} {
	out := make(map[string]struct{}, len(m.FieldMappings))
	for _, platformField := range m.FieldMappings {
		if platformField != "" {
			out[platformField] = struct{}{}
		}
	}
	return out
}

// IsTemplateFieldMapped reports whether a template field feeds a platform field
func (m *TemplatePlatformMapping) IsTemplateFieldMapped(templateField string) bool {
	return m.FieldMappings[templateField] != ""
}

// Replace overwrites the editable parts of the mapping
func (m *TemplatePlatformMapping) Replace(fields map[string]string, defaults map[string]any, metafields map[string]MetafieldMapping, aiSuggested bool) {
	m.FieldMappings = fields
	m.DefaultValues = defaults
	m.MetafieldMappings = metafields
	m.IsAISuggested = aiSuggested
	m.UpdatedAt = time.Now()
}
