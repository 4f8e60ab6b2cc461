package integration

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ItemSpecific is one name/value aspect (eBay item specifics)
type ItemSpecific struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Metafield is one custom key/value attached to a product
type Metafield struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	Type      string `json:"type"`
}

// PayloadVariant is one sellable variant in the outbound payload
type PayloadVariant struct {
	SKU      string            `json:"sku,omitempty"`
	Barcode  string            `json:"barcode,omitempty"`
	Price    decimal.Decimal   `json:"price"`
	Quantity int               `json:"quantity"`
	Options  map[string]string `json:"options,omitempty"`
}

// ListingPayload is what gets sent to a marketplace, computed by the listing
// builder independently of how an adapter sends it.
type ListingPayload struct {
	Platform PlatformCode

	Title       string
	Description string
	Price       decimal.Decimal
	Quantity    int
	SKU         string
	Barcode     string
	Images      []string

	Brand        string
	CategoryName string
	Condition    string
	Weight       decimal.Decimal
	WeightUnit   string
	UPC          string
	EAN          string
	MPN          string

	PrimaryCategoryID   *string
	SecondaryCategoryID *string

	// Attributes are the mapped template attributes and override attributes
	Attributes map[string]any

	ItemSpecifics []ItemSpecific
	Metafields    []Metafield
	Variants      []PayloadVariant

	// Fields holds platform-shaped keys such as item_name or body_html
	Fields map[string]any
}

// SetField stores a platform-shaped key
func (p *ListingPayload) SetField(key string, value any) {
	if p.Fields == nil {
		p.Fields = make(map[string]any)
	}
	p.Fields[key] = value
}

// Field reads a platform-shaped key
func (p *ListingPayload) Field(key string) (any, bool) {
	v, ok := p.Fields[key]
	return v, ok
}

// FieldString reads a platform-shaped key as a string, or returns fallback
func (p *ListingPayload) FieldString(key, fallback string) string {
	if s, ok := p.Fields[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

// FirstImage returns the main image url, or empty
func (p *ListingPayload) FirstImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// ToMap renders the payload as the flat map shown in previews
func (p *ListingPayload) ToMap() map[string]any {
	out := map[string]any{
		"platform":    string(p.Platform),
		"title":       p.Title,
		"description": p.Description,
		"price":       p.Price.StringFixed(2),
		"quantity":    p.Quantity,
		"sku":         p.SKU,
		"barcode":     p.Barcode,
		"images":      p.Images,
		"brand":       p.Brand,
		"condition":   p.Condition,
		"weight":      p.Weight.String(),
		"weight_unit": p.WeightUnit,
		"upc":         p.UPC,
		"ean":         p.EAN,
		"mpn":         p.MPN,
	}
	if p.CategoryName != "" {
		out["category_name"] = p.CategoryName
	}
	if p.PrimaryCategoryID != nil {
		out["primary_category_id"] = *p.PrimaryCategoryID
	}
	if p.SecondaryCategoryID != nil {
		out["secondary_category_id"] = *p.SecondaryCategoryID
	}
	if len(p.Attributes) > 0 {
		out["attributes"] = p.Attributes
	}
	if len(p.ItemSpecifics) > 0 {
		out["item_specifics"] = p.ItemSpecifics
	}
	if len(p.Metafields) > 0 {
		out["metafields"] = p.Metafields
	}
	if len(p.Variants) > 0 {
		out["variants"] = p.Variants
	}
	for k, v := range p.Fields {
		out[k] = v
	}
	return out
}

// Hash fingerprints the payload so unchanged re-sends can be detected
func (p *ListingPayload) Hash() (string, error) {
	data, err := json.Marshal(p.ToMap())
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// ValidationResult is the outcome of validating a payload
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// NewValidationResult creates an empty, valid result
func NewValidationResult() *ValidationResult {
	return &ValidationResult{Valid: true, Errors: []string{}, Warnings: []string{}}
}

// AddError records a hard error
func (v *ValidationResult) AddError(msg string) {
	v.Errors = append(v.Errors, msg)
	v.Valid = false
}

// AddWarning records a non-blocking warning
func (v *ValidationResult) AddWarning(msg string) {
	v.Warnings = append(v.Warnings, msg)
}

// Err returns a *ValidationError carrying every error, or nil when valid
func (v *ValidationResult) Err() error {
	if v.Valid {
		return nil
	}
	errs := make([]string, len(v.Errors))
	copy(errs, v.Errors)
	return &ValidationError{Errors: errs}
}
