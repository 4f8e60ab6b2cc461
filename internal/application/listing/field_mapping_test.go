package listing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/listingsync/internal/domain/catalog"
	"github.com/erp/listingsync/internal/domain/integration"
	"github.com/erp/listingsync/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newFieldMappingService(t *testing.T) (*FieldMappingService, *MockTemplateReader, *MockTemplateMappingRepository) {
	t.Helper()
	schemas, err := integration.DefaultSchemaCatalog()
	require.NoError(t, err)
	templates := new(MockTemplateReader)
	mappings := new(MockTemplateMappingRepository)
	return NewFieldMappingService(templates, mappings, schemas, zap.NewNop()), templates, mappings
}

func newMugTemplate(storeID uuid.UUID) *catalog.ProductTemplate {
	return &catalog.ProductTemplate{
		BaseEntity: shared.NewBaseEntity(),
		StoreID:    storeID,
		Name:       "Mugs",
		Fields: []catalog.TemplateField{
			{Name: "Title", Label: "Title", Type: "string"},
			{Name: "Description", Label: "Description", Type: "textarea"},
			{Name: "Manufacturer", Label: "Manufacturer", Type: "string"},
			{Name: "UPC", Label: "UPC", Type: "string"},
			{Name: "Glaze", Label: "Glaze", Type: "string"},
			{Name: "Supplier Cost", Label: "Supplier cost", Type: "decimal", IsPrivate: true},
		},
	}
}

var deterministicMugSuggestions = []MappingSuggestion{
	{TemplateField: "Title", PlatformField: "title", Confidence: ExactMatchConfidence, Source: SuggestionSourceExact},
	{TemplateField: "Description", PlatformField: "body_html", Confidence: AliasMatchConfidence, Source: SuggestionSourceAlias},
	{TemplateField: "Manufacturer", PlatformField: "vendor", Confidence: AliasMatchConfidence, Source: SuggestionSourceAlias},
	{TemplateField: "UPC", PlatformField: "barcode", Confidence: AliasMatchConfidence, Source: SuggestionSourceAlias},
}

func TestFieldMappingService_SuggestMappings(t *testing.T) {
	ctx := context.Background()

	t.Run("matches exact names first and then aliases", func(t *testing.T) {
		svc, templates, _ := newFieldMappingService(t)
		template := newMugTemplate(uuid.New())
		templates.On("FindByID", mock.Anything, template.ID).Return(template, nil)

		got, err := svc.SuggestMappings(ctx, template.StoreID, template.ID, integration.PlatformShopify)

		require.NoError(t, err)
		assert.Equal(t, deterministicMugSuggestions, got)
	})

	t.Run("uses the completer and caches its answer", func(t *testing.T) {
		svc, templates, _ := newFieldMappingService(t)
		completer := new(MockTextCompleter)
		svc.SetTextCompleter(completer)
		template := newMugTemplate(uuid.New())
		templates.On("FindByID", mock.Anything, template.ID).Return(template, nil)
		completer.On("Complete", mock.Anything, mock.AnythingOfType("string")).Return(`Sure, here is the mapping:
[
  {"template_field": "Glaze", "platform_field": "product_type", "confidence": 1.5},
  {"template_field": "Supplier Cost", "platform_field": "price", "confidence": 0.9},
  {"template_field": "Color", "platform_field": "tags", "confidence": 0.7},
  {"template_field": "Title", "platform_field": "headline", "confidence": 0.7},
  {"template_field": "Title", "platform_field": "title", "confidence": 0.95},
  {"template_field": "Title", "platform_field": "vendor", "confidence": 0.4}
]`, nil).Once()

		first, err := svc.SuggestMappings(ctx, template.StoreID, template.ID, integration.PlatformShopify)
		require.NoError(t, err)
		second, err := svc.SuggestMappings(ctx, template.StoreID, template.ID, integration.PlatformShopify)
		require.NoError(t, err)

		want := []MappingSuggestion{
			{TemplateField: "Glaze", PlatformField: "product_type", Confidence: 0.8, Source: SuggestionSourceAI},
			{TemplateField: "Title", PlatformField: "title", Confidence: 0.95, Source: SuggestionSourceAI},
		}
		assert.Equal(t, want, first)
		assert.Equal(t, want, second)
		completer.AssertNumberOfCalls(t, "Complete", 1)
	})

	t.Run("asks again once cached suggestions expire", func(t *testing.T) {
		svc, templates, _ := newFieldMappingService(t)
		completer := new(MockTextCompleter)
		svc.SetTextCompleter(completer)
		svc.SetSuggestionTTL(time.Millisecond)
		template := newMugTemplate(uuid.New())
		templates.On("FindByID", mock.Anything, template.ID).Return(template, nil)
		completer.On("Complete", mock.Anything, mock.Anything).
			Return(`[{"template_field": "Glaze", "platform_field": "product_type", "confidence": 0.6}]`, nil)

		_, err := svc.SuggestMappings(ctx, template.StoreID, template.ID, integration.PlatformShopify)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
		_, err = svc.SuggestMappings(ctx, template.StoreID, template.ID, integration.PlatformShopify)
		require.NoError(t, err)

		completer.AssertNumberOfCalls(t, "Complete", 2)
	})

	t.Run("falls back when the completer fails", func(t *testing.T) {
		svc, templates, _ := newFieldMappingService(t)
		completer := new(MockTextCompleter)
		svc.SetTextCompleter(completer)
		template := newMugTemplate(uuid.New())
		templates.On("FindByID", mock.Anything, template.ID).Return(template, nil)
		completer.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("upstream timeout"))

		got, err := svc.SuggestMappings(ctx, template.StoreID, template.ID, integration.PlatformShopify)

		require.NoError(t, err)
		assert.Equal(t, deterministicMugSuggestions, got)
	})

	t.Run("falls back when the completion is not JSON", func(t *testing.T) {
		svc, templates, _ := newFieldMappingService(t)
		completer := new(MockTextCompleter)
		svc.SetTextCompleter(completer)
		template := newMugTemplate(uuid.New())
		templates.On("FindByID", mock.Anything, template.ID).Return(template, nil)
		completer.On("Complete", mock.Anything, mock.Anything).Return("I could not find any good matches.", nil)

		got, err := svc.SuggestMappings(ctx, template.StoreID, template.ID, integration.PlatformShopify)

		require.NoError(t, err)
		assert.Equal(t, deterministicMugSuggestions, got)
	})

	t.Run("unknown platform schema is not found", func(t *testing.T) {
		svc, _, _ := newFieldMappingService(t)

		_, err := svc.SuggestMappings(ctx, uuid.New(), uuid.New(), integration.PlatformCode("myspace"))

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "NOT_FOUND", domainErr.Code)
	})

	t.Run("template of another store is not found", func(t *testing.T) {
		svc, templates, _ := newFieldMappingService(t)
		template := newMugTemplate(uuid.New())
		templates.On("FindByID", mock.Anything, template.ID).Return(template, nil)

		_, err := svc.SuggestMappings(ctx, uuid.New(), template.ID, integration.PlatformShopify)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "NOT_FOUND", domainErr.Code)
	})
}

func TestFieldMappingService_SaveMapping(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a mapping with default metafield placements", func(t *testing.T) {
		svc, templates, mappings := newFieldMappingService(t)
		template := newMugTemplate(uuid.New())
		templates.On("FindByID", mock.Anything, template.ID).Return(template, nil)
		mappings.On("FindByTemplateAndPlatform", mock.Anything, template.ID, integration.PlatformShopify).
			Return(nil, integration.ErrTemplateMappingNotFound)
		mappings.On("Upsert", mock.Anything, mock.AnythingOfType("*integration.TemplatePlatformMapping")).Return(nil)

		mapping, err := svc.SaveMapping(ctx, template.StoreID, template.ID, integration.PlatformShopify, SaveFieldMappingInput{
			FieldMappings: map[string]string{"Title": "title", "Glaze": ""},
			DefaultValues: map[string]any{"price": "0.00"},
			IsAISuggested: true,
		})

		require.NoError(t, err)
		assert.Equal(t, template.StoreID, mapping.StoreID)
		assert.Equal(t, "title", mapping.FieldMappings["Title"])
		assert.True(t, mapping.IsAISuggested)
		assert.Equal(t, integration.MetafieldMapping{Namespace: "custom", Key: "glaze", Enabled: true}, mapping.MetafieldMappings["Glaze"])
		assert.NotContains(t, mapping.MetafieldMappings, "Supplier Cost")
		mappings.AssertCalled(t, "Upsert", mock.Anything, mapping)
	})

	t.Run("rejects unknown platform fields", func(t *testing.T) {
		svc, templates, mappings := newFieldMappingService(t)
		template := newMugTemplate(uuid.New())
		templates.On("FindByID", mock.Anything, template.ID).Return(template, nil)

		_, err := svc.SaveMapping(ctx, template.StoreID, template.ID, integration.PlatformShopify, SaveFieldMappingInput{
			FieldMappings: map[string]string{"Title": "headline"},
		})

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_INPUT", domainErr.Code)
		mappings.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("rejects unknown template fields", func(t *testing.T) {
		svc, templates, _ := newFieldMappingService(t)
		template := newMugTemplate(uuid.New())
		templates.On("FindByID", mock.Anything, template.ID).Return(template, nil)

		_, err := svc.SaveMapping(ctx, template.StoreID, template.ID, integration.PlatformShopify, SaveFieldMappingInput{
			FieldMappings: map[string]string{"Handle": "title"},
		})

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_INPUT", domainErr.Code)
	})

	t.Run("rejects defaults for unknown fields", func(t *testing.T) {
		svc, templates, _ := newFieldMappingService(t)
		template := newMugTemplate(uuid.New())
		templates.On("FindByID", mock.Anything, template.ID).Return(template, nil)

		_, err := svc.SaveMapping(ctx, template.StoreID, template.ID, integration.PlatformShopify, SaveFieldMappingInput{
			DefaultValues: map[string]any{"warranty": "none"},
		})

		require.Error(t, err)
	})
}

func TestFieldMappingService_TransformAttributes(t *testing.T) {
	ctx := context.Background()

	t.Run("product without template yields no attributes", func(t *testing.T) {
		svc, _, mappings := newFieldMappingService(t)
		product := newTestProduct(uuid.New())

		attrs, err := svc.TransformAttributes(ctx, product, integration.PlatformEbay)

		require.NoError(t, err)
		assert.Empty(t, attrs)
		assert.NotNil(t, attrs)
		mappings.AssertNotCalled(t, "FindByTemplateAndPlatform", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("template without mapping yields no attributes", func(t *testing.T) {
		svc, _, mappings := newFieldMappingService(t)
		product := newTestProduct(uuid.New())
		templateID := uuid.New()
		product.TemplateID = &templateID
		mappings.On("FindByTemplateAndPlatform", mock.Anything, templateID, integration.PlatformEbay).
			Return(nil, integration.ErrTemplateMappingNotFound)

		attrs, err := svc.TransformAttributes(ctx, product, integration.PlatformEbay)

		require.NoError(t, err)
		assert.Empty(t, attrs)
	})

	t.Run("maps values and fills defaults for unmapped required fields", func(t *testing.T) {
		svc, _, mappings := newFieldMappingService(t)
		product := newTestProduct(uuid.New())
		templateID := uuid.New()
		product.TemplateID = &templateID
		product.Attributes = map[string]any{"Glaze": "matte", "Colour": "", "Capacity": "350ml"}
		mapping, _ := integration.NewTemplatePlatformMapping(product.StoreID, templateID, integration.PlatformEbay)
		mapping.FieldMappings = map[string]string{"Glaze": "material", "Colour": "color", "Capacity": ""}
		mapping.DefaultValues = map[string]any{"material": "stoneware", "color": "White", "condition": "new"}
		mappings.On("FindByTemplateAndPlatform", mock.Anything, templateID, integration.PlatformEbay).Return(mapping, nil)

		attrs, err := svc.TransformAttributes(ctx, product, integration.PlatformEbay)

		require.NoError(t, err)
		assert.Equal(t, map[string]any{"material": "matte", "condition": "new"}, attrs)
	})

	t.Run("mapped value wins over the default of a required field", func(t *testing.T) {
		svc, _, mappings := newFieldMappingService(t)
		product := newTestProduct(uuid.New())
		templateID := uuid.New()
		product.TemplateID = &templateID
		product.Attributes = map[string]any{"Grade": "used"}
		mapping, _ := integration.NewTemplatePlatformMapping(product.StoreID, templateID, integration.PlatformEbay)
		mapping.FieldMappings = map[string]string{"Grade": "condition"}
		mapping.DefaultValues = map[string]any{"condition": "new"}
		mappings.On("FindByTemplateAndPlatform", mock.Anything, templateID, integration.PlatformEbay).Return(mapping, nil)

		attrs, err := svc.TransformAttributes(ctx, product, integration.PlatformEbay)

		require.NoError(t, err)
		assert.Equal(t, map[string]any{"condition": "used"}, attrs)
	})

	t.Run("repository errors propagate", func(t *testing.T) {
		svc, _, mappings := newFieldMappingService(t)
		product := newTestProduct(uuid.New())
		templateID := uuid.New()
		product.TemplateID = &templateID
		dbErr := errors.New("db down")
		mappings.On("FindByTemplateAndPlatform", mock.Anything, templateID, integration.PlatformEbay).Return(nil, dbErr)

		_, err := svc.TransformAttributes(ctx, product, integration.PlatformEbay)

		assert.ErrorIs(t, err, dbErr)
	})
}

func TestGetUnmappedRequiredFields(t *testing.T) {
	schema := integration.PlatformSchema{
		Platform: integration.PlatformShopify,
		Fields: []integration.PlatformField{
			{Name: "title", Required: true},
			{Name: "price", Required: true},
			{Name: "vendor"},
		},
	}

	t.Run("nil mapping reports every required field", func(t *testing.T) {
		assert.Equal(t, []string{"title", "price"}, GetUnmappedRequiredFields(schema, nil))
	})

	t.Run("mapped and defaulted fields are covered", func(t *testing.T) {
		mapping := &integration.TemplatePlatformMapping{
			FieldMappings: map[string]string{"Name": "title", "Brand": "vendor"},
			DefaultValues: map[string]any{},
		}
		assert.Equal(t, []string{"price"}, GetUnmappedRequiredFields(schema, mapping))

		mapping.DefaultValues["price"] = "0.00"
		got := GetUnmappedRequiredFields(schema, mapping)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("cleared mapping does not cover its field", func(t *testing.T) {
		mapping := &integration.TemplatePlatformMapping{
			FieldMappings: map[string]string{"Name": ""},
		}
		assert.Equal(t, []string{"title", "price"}, GetUnmappedRequiredFields(schema, mapping))
	})
}

func TestFieldMappingService_DefaultMetafieldMappings(t *testing.T) {
	svc, _, _ := newFieldMappingService(t)
	template := newMugTemplate(uuid.New())

	assert.Empty(t, svc.DefaultMetafieldMappings(template, integration.PlatformEbay))

	got := svc.DefaultMetafieldMappings(template, integration.PlatformWooCommerce)
	assert.Len(t, got, 5)
	assert.Equal(t, integration.MetafieldMapping{Namespace: "custom", Key: "upc", Enabled: true}, got["UPC"])
}

func TestSnakeCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Material Type", "material_type"},
		{"materialType", "material_type"},
		{"care-instructions", "care_instructions"},
		{"  Warranty Years ", "warranty_years"},
		{"UPC", "upc"},
		{"size2", "size2"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, snakeCase(tt.in))
		})
	}
}
