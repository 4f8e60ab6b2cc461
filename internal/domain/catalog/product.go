package catalog

import (
	"github.com/erp/listingsync/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductImage is an entry of the structured image collection
type ProductImage struct {
	URL      string
	AltText  string
	Position int
}

// ProductVariant is a sellable variant of a product
type ProductVariant struct {
	ID       uuid.UUID
	SKU      string
	Barcode  string
	Price    decimal.Decimal
	Quantity int
	Options  map[string]string
}

// IsPriced reports whether the variant carries a positive price
func (v ProductVariant) IsPriced() bool {
	return v.Price.IsPositive()
}

// Product is the read model of a catalog product as seen by the listing layer
type Product struct {
	shared.BaseEntity
	StoreID      uuid.UUID
	TemplateID   *uuid.UUID
	CategoryID   *uuid.UUID
	Title        string
	Description  string
	Brand        string
	CategoryName string
	Condition    string
	Weight       decimal.Decimal
	WeightUnit   string
	UPC          string
	EAN          string
	MPN          string
	Images       []ProductImage
	LegacyImages []string
	Variants     []ProductVariant
	Attributes   map[string]any
}

// ImageURLs returns the structured image collection, falling back to the
// legacy collection when the structured one is empty.
func (p *Product) ImageURLs() []string {
	if len(p.Images) > 0 {
		urls := make([]string, 0, len(p.Images))
		for _, img := range p.Images {
			if img.URL != "" {
				urls = append(urls, img.URL)
			}
		}
		if len(urls) > 0 {
			return urls
		}
	}
	urls := make([]string, 0, len(p.LegacyImages))
	for _, u := range p.LegacyImages {
		if u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// FirstVariant returns the first variant, or nil when the product has none
func (p *Product) FirstVariant() *ProductVariant {
	if len(p.Variants) == 0 {
		return nil
	}
	return &p.Variants[0]
}

// HasPricedVariant reports whether at least one variant has a price
func (p *Product) HasPricedVariant() bool {
	for _, v := range p.Variants {
		if v.IsPriced() {
			return true
		}
	}
	return false
}

// TotalQuantity sums the quantity of every variant
func (p *Product) TotalQuantity() int {
	total := 0
	for _, v := range p.Variants {
		total += v.Quantity
	}
	return total
}

// Attribute returns a product attribute value by name
func (p *Product) Attribute(name string) (any, bool) {
	if p.Attributes == nil {
		return nil, false
	}
	v, ok := p.Attributes[name]
	return v, ok
}
