package models

import (
	"encoding/json"
	"fmt"

	"github.com/erp/listingsync/internal/domain/catalog"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// productImageJSON is the stored shape of one structured product image
type productImageJSON struct {
	URL      string `json:"url"`
	AltText  string `json:"alt_text,omitempty"`
	Position int    `json:"position"`
}

// ProductModel is the persistence model of the catalog Product read model.
// Products are owned by the catalog; the listing layer only reads them.
type ProductModel struct {
	StoreModel
	TemplateID   *uuid.UUID            `gorm:"type:uuid;index"`
	CategoryID   *uuid.UUID            `gorm:"type:uuid;index"`
	Title        string                `gorm:"type:varchar(255);not null"`
	Description  string                `gorm:"type:text"`
	Brand        string                `gorm:"type:varchar(100)"`
	CategoryName string                `gorm:"type:varchar(200)"`
	Condition    string                `gorm:"type:varchar(30)"`
	Weight       decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0"`
	WeightUnit   string                `gorm:"type:varchar(10)"`
	UPC          string                `gorm:"column:upc;type:varchar(20)"`
	EAN          string                `gorm:"column:ean;type:varchar(20)"`
	MPN          string                `gorm:"column:mpn;type:varchar(70)"`
	Images       datatypes.JSON        `gorm:"type:jsonb"`
	LegacyImages pq.StringArray        `gorm:"type:text[]"`
	Attributes   datatypes.JSON        `gorm:"type:jsonb"`
	Variants     []ProductVariantModel `gorm:"foreignKey:ProductID"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product
func (m *ProductModel) ToDomain() (*catalog.Product, error) {
	attributes, err := decodeObject("product attributes", m.Attributes)
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", m.ID, err)
	}
	p := &catalog.Product{
		BaseEntity:   m.BaseModel.ToDomain(),
		StoreID:      m.StoreID,
		TemplateID:   m.TemplateID,
		CategoryID:   m.CategoryID,
		Title:        m.Title,
		Description:  m.Description,
		Brand:        m.Brand,
		CategoryName: m.CategoryName,
		Condition:    m.Condition,
		Weight:       m.Weight,
		WeightUnit:   m.WeightUnit,
		UPC:          m.UPC,
		EAN:          m.EAN,
		MPN:          m.MPN,
		LegacyImages: []string(m.LegacyImages),
		Attributes:   attributes,
		Variants:     make([]catalog.ProductVariant, 0, len(m.Variants)),
	}

	var images []productImageJSON
	if err := decodeJSON("product images", m.Images, &images); err != nil {
		return nil, fmt.Errorf("product %s: %w", m.ID, err)
	}
	for _, img := range images {
		p.Images = append(p.Images, catalog.ProductImage{URL: img.URL, AltText: img.AltText, Position: img.Position})
	}
	for i := range m.Variants {
		v, err := m.Variants[i].ToDomain()
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", m.ID, err)
		}
		p.Variants = append(p.Variants, v)
	}
	return p, nil
}

// FromDomain populates the persistence model from a domain Product
func (m *ProductModel) FromDomain(p *catalog.Product) {
	m.FromDomainBaseEntity(p.BaseEntity)
	m.StoreID = p.StoreID
	m.TemplateID = p.TemplateID
	m.CategoryID = p.CategoryID
	m.Title = p.Title
	m.Description = p.Description
	m.Brand = p.Brand
	m.CategoryName = p.CategoryName
	m.Condition = p.Condition
	m.Weight = p.Weight
	m.WeightUnit = p.WeightUnit
	m.UPC = p.UPC
	m.EAN = p.EAN
	m.MPN = p.MPN
	m.LegacyImages = pq.StringArray(p.LegacyImages)
	m.Attributes = encodeJSON(p.Attributes)

	images := make([]productImageJSON, 0, len(p.Images))
	for _, img := range p.Images {
		images = append(images, productImageJSON{URL: img.URL, AltText: img.AltText, Position: img.Position})
	}
	m.Images = encodeJSON(images)

	m.Variants = make([]ProductVariantModel, 0, len(p.Variants))
	for i, v := range p.Variants {
		vm := ProductVariantModel{}
		vm.FromDomain(p.ID, v, i)
		m.Variants = append(m.Variants, vm)
	}
}

// ProductVariantModel is the persistence model of a sellable product variant
type ProductVariantModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null;index"`
	SKU       string          `gorm:"column:sku;type:varchar(100);index"`
	Barcode   string          `gorm:"type:varchar(50)"`
	Price     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Quantity  int             `gorm:"not null;default:0"`
	Options   datatypes.JSON  `gorm:"type:jsonb"`
	Position  int             `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (ProductVariantModel) TableName() string {
	return "product_variants"
}

// ToDomain converts the persistence model to a domain ProductVariant
func (m *ProductVariantModel) ToDomain() (catalog.ProductVariant, error) {
	v := catalog.ProductVariant{
		ID:       m.ID,
		SKU:      m.SKU,
		Barcode:  m.Barcode,
		Price:    m.Price,
		Quantity: m.Quantity,
	}
	if err := decodeJSON("variant options", m.Options, &v.Options); err != nil {
		return catalog.ProductVariant{}, err
	}
	return v, nil
}

// FromDomain populates the persistence model from a domain ProductVariant
func (m *ProductVariantModel) FromDomain(productID uuid.UUID, v catalog.ProductVariant, position int) {
	m.ID = v.ID
	m.ProductID = productID
	m.SKU = v.SKU
	m.Barcode = v.Barcode
	m.Price = v.Price
	m.Quantity = v.Quantity
	m.Options = encodeJSON(v.Options)
	m.Position = position
}

// CategoryModel is the persistence model of a node of the store category tree
type CategoryModel struct {
	StoreModel
	ParentID *uuid.UUID `gorm:"type:uuid;index"`
	Name     string     `gorm:"type:varchar(100);not null"`
}

// TableName returns the table name for GORM
func (CategoryModel) TableName() string {
	return "categories"
}

// ToDomain converts the persistence model to a domain Category
func (m *CategoryModel) ToDomain() *catalog.Category {
	return &catalog.Category{
		BaseEntity: m.BaseModel.ToDomain(),
		StoreID:    m.StoreID,
		ParentID:   m.ParentID,
		Name:       m.Name,
	}
}

// FromDomain populates the persistence model from a domain Category
func (m *CategoryModel) FromDomain(c *catalog.Category) {
	m.FromDomainBaseEntity(c.BaseEntity)
	m.StoreID = c.StoreID
	m.ParentID = c.ParentID
	m.Name = c.Name
}

type templateFieldJSON struct {
	Name      string `json:"name"`
	Label     string `json:"label,omitempty"`
	Type      string `json:"type,omitempty"`
	IsPrivate bool   `json:"is_private,omitempty"`
}

// ProductTemplateModel is the persistence model of a product template
type ProductTemplateModel struct {
	StoreModel
	Name   string         `gorm:"type:varchar(100);not null"`
	Fields datatypes.JSON `gorm:"type:jsonb"`
}

// TableName returns the table name for GORM
func (ProductTemplateModel) TableName() string {
	return "product_templates"
}

// ToDomain converts the persistence model to a domain ProductTemplate
func (m *ProductTemplateModel) ToDomain() (*catalog.ProductTemplate, error) {
	t := &catalog.ProductTemplate{
		BaseEntity: m.BaseModel.ToDomain(),
		StoreID:    m.StoreID,
		Name:       m.Name,
	}
	var fields []templateFieldJSON
	if err := decodeJSON("template fields", m.Fields, &fields); err != nil {
		return nil, fmt.Errorf("template %s: %w", m.ID, err)
	}
	for _, f := range fields {
		t.Fields = append(t.Fields, catalog.TemplateField{Name: f.Name, Label: f.Label, Type: f.Type, IsPrivate: f.IsPrivate})
	}
	return t, nil
}

// FromDomain populates the persistence model from a domain ProductTemplate
func (m *ProductTemplateModel) FromDomain(t *catalog.ProductTemplate) {
	m.FromDomainBaseEntity(t.BaseEntity)
	m.StoreID = t.StoreID
	m.Name = t.Name
	fields := make([]templateFieldJSON, 0, len(t.Fields))
	for _, f := range t.Fields {
		fields = append(fields, templateFieldJSON{Name: f.Name, Label: f.Label, Type: f.Type, IsPrivate: f.IsPrivate})
	}
	m.Fields = encodeJSON(fields)
}

// encodeJSON marshals v for a jsonb column; nil maps and slices are stored as NULL
func encodeJSON(v any) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return nil
	}
	return datatypes.JSON(data)
}

// decodeJSON unmarshals a jsonb column into out. NULL leaves out unchanged.
func decodeJSON(column string, data datatypes.JSON, out any) error {
	if !hasJSON(data) {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", column, err)
	}
	return nil
}

// decodeObject unmarshals a jsonb object column, returning an empty map for NULL
func decodeObject(column string, data datatypes.JSON) (map[string]any, error) {
	out := make(map[string]any)
	if err := decodeJSON(column, data, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = make(map[string]any)
	}
	return out, nil
}

// hasJSON reports whether a jsonb column holds a value. NULL scans as "null".
func hasJSON(data datatypes.JSON) bool {
	return len(data) > 0 && string(data) != "null"
}
