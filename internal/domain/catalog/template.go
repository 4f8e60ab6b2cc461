package catalog

import (
	"github.com/erp/listingsync/internal/domain/shared"
	"github.com/google/uuid"
)

// TemplateField describes one store-defined product field
type TemplateField struct {
	Name      string
	Label     string
	Type      string
	IsPrivate bool
}

// ProductTemplate groups the custom fields a family of products carries
type ProductTemplate struct {
	shared.BaseEntity
	StoreID uuid.UUID
	Name    string
	Fields  []TemplateField
}

// PublicFields returns the fields that are not marked private
func (t *ProductTemplate) PublicFields() []TemplateField {
	fields := make([]TemplateField, 0, len(t.Fields))
	for _, f := range t.Fields {
		if !f.IsPrivate {
			fields = append(fields, f)
		}
	}
	return fields
}

// Field finds a field by name
func (t *ProductTemplate) Field(name string) (TemplateField, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return TemplateField{}, false
}
