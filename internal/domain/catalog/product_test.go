package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestProduct_ImageURLs(t *testing.T) {
	t.Run("uses structured images first", func(t *testing.T) {
		p := &Product{
			Images:       []ProductImage{{URL: "https://cdn/a.jpg"}, {URL: ""}, {URL: "https://cdn/b.jpg"}},
			LegacyImages: []string{"https://legacy/x.jpg"},
		}
		assert.Equal(t, []string{"https://cdn/a.jpg", "https://cdn/b.jpg"}, p.ImageURLs())
	})

	t.Run("falls back to legacy images", func(t *testing.T) {
		p := &Product{LegacyImages: []string{"https://legacy/x.jpg", ""}}
		assert.Equal(t, []string{"https://legacy/x.jpg"}, p.ImageURLs())
	})

	t.Run("no images", func(t *testing.T) {
		p := &Product{}
		assert.Empty(t, p.ImageURLs())
	})
}

func TestProduct_Variants(t *testing.T) {
	p := &Product{
		Variants: []ProductVariant{
			{SKU: "A", Price: decimal.Zero, Quantity: 2},
			{SKU: "B", Price: decimal.NewFromFloat(9.99), Quantity: 3},
		},
	}

	assert.Equal(t, "A", p.FirstVariant().SKU)
	assert.True(t, p.HasPricedVariant())
	assert.Equal(t, 5, p.TotalQuantity())

	empty := &Product{}
	assert.Nil(t, empty.FirstVariant())
	assert.False(t, empty.HasPricedVariant())
	assert.Equal(t, 0, empty.TotalQuantity())
}

func TestProductTemplate_PublicFields(t *testing.T) {
	tpl := &ProductTemplate{Fields: []TemplateField{
		{Name: "material"},
		{Name: "cost_code", IsPrivate: true},
		{Name: "color"},
	}}

	public := tpl.PublicFields()
	assert.Len(t, public, 2)
	assert.Equal(t, "material", public[0].Name)

	_, ok := tpl.Field("cost_code")
	assert.True(t, ok)
	_, ok = tpl.Field("missing")
	assert.False(t, ok)
}
