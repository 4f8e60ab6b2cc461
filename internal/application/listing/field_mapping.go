package listing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/erp/listingsync/internal/domain/catalog"
	"github.com/erp/listingsync/internal/domain/integration"
	"github.com/erp/listingsync/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
)

// Confidence assigned by the deterministic matcher
const (
	ExactMatchConfidence = 1.0
	AliasMatchConfidence = 0.9

	defaultAIConfidence = 0.8
)

// fieldAliases groups names that mean the same field across platforms
var fieldAliases = [][]string{
	{"title", "name", "item_name", "productName"},
	{"description", "body_html", "product_description"},
	{"brand", "brand_name", "vendor", "manufacturer"},
	{"price", "list_price", "amount"},
	{"quantity", "inventory", "stock"},
	{"sku", "seller_sku", "item_sku"},
	{"barcode", "upc", "gtin", "ean"},
	{"condition", "item_condition"},
}

// FieldMappingService maps product template fields onto platform field schemas
type FieldMappingService struct {
	templateRepo catalog.TemplateReader
	mappingRepo  integration.TemplateMappingRepository
	schemas      *integration.SchemaCatalog
	completer    integration.TextCompleter
	suggestions  *cache.Cache
	logger       *zap.Logger
	fold         cases.Caser
}

// NewFieldMappingService creates a new FieldMappingService
func NewFieldMappingService(
	templateRepo catalog.TemplateReader,
	mappingRepo integration.TemplateMappingRepository,
	schemas *integration.SchemaCatalog,
	logger *zap.Logger,
) *FieldMappingService {
	return &FieldMappingService{
		templateRepo: templateRepo,
		mappingRepo:  mappingRepo,
		schemas:      schemas,
		suggestions:  cache.New(15*time.Minute, 30*time.Minute),
		logger:       logger,
		fold:         cases.Fold(),
	}
}

// SetTextCompleter enables AI mapping suggestions
func (s *FieldMappingService) SetTextCompleter(completer integration.TextCompleter) {
	s.completer = completer
}

// SetSuggestionTTL sets how long AI suggestions are reused; it drops the
// suggestions cached so far
func (s *FieldMappingService) SetSuggestionTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	s.suggestions = cache.New(ttl, 2*ttl)
}

// ---------------------------------------------------------------------------
// Schema and mapping access
// ---------------------------------------------------------------------------

// GetSchema returns the field schema of a platform
func (s *FieldMappingService) GetSchema(platform integration.PlatformCode) (integration.PlatformSchema, error) {
	schema, ok := s.schemas.Schema(platform)
	if !ok {
		return integration.PlatformSchema{}, shared.NotFound(fmt.Sprintf("No field schema for platform %q", platform))
	}
	return schema, nil
}

// GetMapping returns the saved mapping of a template on a platform
func (s *FieldMappingService) GetMapping(ctx context.Context, storeID, templateID uuid.UUID, platform integration.PlatformCode) (*integration.TemplatePlatformMapping, error) {
	mapping, err := s.mappingRepo.FindByTemplateAndPlatform(ctx, templateID, platform)
	if err != nil {
		return nil, err
	}
	if mapping.StoreID != storeID {
		return nil, integration.ErrTemplateMappingNotFound
	}
	return mapping, nil
}

// SaveMapping stores an operator-confirmed mapping. Every mapped platform field
// must exist in the platform schema and every template field in the template.
func (s *FieldMappingService) SaveMapping(ctx context.Context, storeID, templateID uuid.UUID, platform integration.PlatformCode, input SaveFieldMappingInput) (*integration.TemplatePlatformMapping, error) {
	schema, err := s.GetSchema(platform)
	if err != nil {
		return nil, err
	}
	template, err := s.loadTemplate(ctx, storeID, templateID)
	if err != nil {
		return nil, err
	}

	for templateField, platformField := range input.FieldMappings {
		if _, ok := template.Field(templateField); !ok {
			return nil, shared.InvalidInput(fmt.Sprintf("Template has no field %q", templateField))
		}
		if platformField == "" {
			continue
		}
		if _, ok := schema.Field(platformField); !ok {
			return nil, shared.InvalidInput(fmt.Sprintf("%s has no field %q", platform.DisplayName(), platformField))
		}
	}
	for platformField := range input.DefaultValues {
		if _, ok := schema.Field(platformField); !ok {
			return nil, shared.InvalidInput(fmt.Sprintf("%s has no field %q", platform.DisplayName(), platformField))
		}
	}

	mapping, err := s.mappingRepo.FindByTemplateAndPlatform(ctx, templateID, platform)
	switch {
	case errors.Is(err, integration.ErrTemplateMappingNotFound):
		mapping, err = integration.NewTemplatePlatformMapping(storeID, templateID, platform)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	fields := nonNilStrings(input.FieldMappings)
	defaults := input.DefaultValues
	if defaults == nil {
		defaults = make(map[string]any)
	}
	metafields := input.MetafieldMappings
	if metafields == nil {
		metafields = s.DefaultMetafieldMappings(template, platform)
	}
	mapping.Replace(fields, defaults, metafields, input.IsAISuggested)

	if err := s.mappingRepo.Upsert(ctx, mapping); err != nil {
		return nil, err
	}
	return mapping, nil
}

func (s *FieldMappingService) loadTemplate(ctx context.Context, storeID, templateID uuid.UUID) (*catalog.ProductTemplate, error) {
	template, err := s.templateRepo.FindByID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if template.StoreID != storeID {
		return nil, shared.NotFound("Product template not found")
	}
	return template, nil
}

// ---------------------------------------------------------------------------
// Suggestions
// ---------------------------------------------------------------------------

// SuggestMappings proposes a mapping for a template. The AI completer is asked
// first; when it is missing, fails, or answers with something unusable the
// deterministic exact/alias matcher is used. Nothing is persisted.
func (s *FieldMappingService) SuggestMappings(ctx context.Context, storeID, templateID uuid.UUID, platform integration.PlatformCode) ([]MappingSuggestion, error) {
	schema, err := s.GetSchema(platform)
	if err != nil {
		return nil, err
	}
	template, err := s.loadTemplate(ctx, storeID, templateID)
	if err != nil {
		return nil, err
	}

	if s.completer != nil {
		key := fmt.Sprintf("%s:%s:%d", templateID, platform, template.UpdatedAt.UnixNano())
		if cached, ok := s.suggestions.Get(key); ok {
			return cached.([]MappingSuggestion), nil
		}
		suggestions, err := s.suggestWithAI(ctx, template, schema)
		if err == nil && len(suggestions) > 0 {
			s.suggestions.Set(key, suggestions, cache.DefaultExpiration)
			return suggestions, nil
		}
		s.logger.Info("falling back to deterministic mapping suggestions",
			zap.String("template_id", templateID.String()),
			zap.String("platform", platform.String()),
			zap.Error(err),
		)
	}
	return s.matchFields(template, schema), nil
}

func (s *FieldMappingService) suggestWithAI(ctx context.Context, template *catalog.ProductTemplate, schema integration.PlatformSchema) ([]MappingSuggestion, error) {
	answer, err := s.completer.Complete(ctx, buildSuggestionPrompt(template, schema))
	if err != nil {
		return nil, err
	}
	return parseSuggestions(answer, template, schema)
}

func buildSuggestionPrompt(template *catalog.ProductTemplate, schema integration.PlatformSchema) string {
	var b strings.Builder
	b.WriteString("Map each product template field to the best matching marketplace field.\n")
	b.WriteString("Answer with a JSON array of objects with keys template_field, platform_field and confidence (0 to 1). ")
	b.WriteString("Leave out fields without a good match.\n\nTemplate fields:\n")
	for _, f := range template.PublicFields() {
		fmt.Fprintf(&b, "- %s (%s, %s)\n", f.Name, f.Label, f.Type)
	}
	fmt.Fprintf(&b, "\n%s fields:\n", schema.Platform.DisplayName())
	for _, f := range schema.Fields {
		required := ""
		if f.Required {
			required = ", required"
		}
		fmt.Fprintf(&b, "- %s (%s, %s%s)\n", f.Name, f.Label, f.Type, required)
	}
	return b.String()
}

// parseSuggestions reads the JSON array out of a completion, dropping pairs
// that name unknown fields
func parseSuggestions(answer string, template *catalog.ProductTemplate, schema integration.PlatformSchema) ([]MappingSuggestion, error) {
	start := strings.Index(answer, "[")
	end := strings.LastIndex(answer, "]")
	if start < 0 || end <= start {
		return nil, errors.New("completion contains no JSON array")
	}

	var raw []MappingSuggestion
	if err := json.Unmarshal([]byte(answer[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("decode completion: %w", err)
	}

	out := make([]MappingSuggestion, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, sug := range raw {
		field, ok := template.Field(sug.TemplateField)
		if !ok || field.IsPrivate {
			continue
		}
		if _, ok := schema.Field(sug.PlatformField); !ok {
			continue
		}
		if _, dup := seen[sug.TemplateField]; dup {
			continue
		}
		seen[sug.TemplateField] = struct{}{}
		if sug.Confidence <= 0 || sug.Confidence > 1 {
			sug.Confidence = defaultAIConfidence
		}
		sug.Source = SuggestionSourceAI
		out = append(out, sug)
	}
	return out, nil
}

// matchFields pairs template fields with platform fields by exact name first
// and then through the alias table
func (s *FieldMappingService) matchFields(template *catalog.ProductTemplate, schema integration.PlatformSchema) []MappingSuggestion {
	byKey := make(map[string]string, len(schema.Fields))
	for _, f := range schema.Fields {
		byKey[s.normalize(f.Name)] = f.Name
	}

	used := make(map[string]struct{})
	suggestions := make([]MappingSuggestion, 0)
	var pending []catalog.TemplateField

	for _, f := range template.PublicFields() {
		if platformField, ok := byKey[s.normalize(f.Name)]; ok {
			if _, taken := used[platformField]; !taken {
				used[platformField] = struct{}{}
				suggestions = append(suggestions, MappingSuggestion{
					TemplateField: f.Name,
					PlatformField: platformField,
					Confidence:    ExactMatchConfidence,
					Source:        SuggestionSourceExact,
				})
				continue
			}
		}
		pending = append(pending, f)
	}

	for _, f := range pending {
		for _, alias := range s.aliasesOf(f.Name) {
			platformField, ok := byKey[alias]
			if !ok {
				continue
			}
			if _, taken := used[platformField]; taken {
				continue
			}
			used[platformField] = struct{}{}
			suggestions = append(suggestions, MappingSuggestion{
				TemplateField: f.Name,
				PlatformField: platformField,
				Confidence:    AliasMatchConfidence,
				Source:        SuggestionSourceAlias,
			})
			break
		}
	}
	return suggestions
}

// aliasesOf returns the normalized names sharing an alias group with name
func (s *FieldMappingService) aliasesOf(name string) []string {
	key := s.normalize(name)
	for _, group := range fieldAliases {
		for _, alias := range group {
			if s.normalize(alias) != key {
				continue
			}
			out := make([]string, 0, len(group)-1)
			for _, other := range group {
				if n := s.normalize(other); n != key {
					out = append(out, n)
				}
			}
			return out
		}
	}
	return nil
}

// normalize folds case and drops separators, so "Item Name", "item_name" and
// "itemName" compare equal
func (s *FieldMappingService) normalize(name string) string {
	folded := s.fold.String(name)
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, folded)
}

// ---------------------------------------------------------------------------
// Metafields
// ---------------------------------------------------------------------------

// DefaultMetafieldMappings exposes every non-private template field as a
// metafield in the default namespace. Platforms without metafields get none.
func (s *FieldMappingService) DefaultMetafieldMappings(template *catalog.ProductTemplate, platform integration.PlatformCode) map[string]integration.MetafieldMapping {
	out := make(map[string]integration.MetafieldMapping)
	if template == nil || !platform.SupportsMetafields() {
		return out
	}
	for _, f := range template.PublicFields() {
		out[f.Name] = integration.MetafieldMapping{
			Namespace: integration.DefaultMetafieldNamespace,
			Key:       snakeCase(f.Name),
			Enabled:   true,
		}
	}
	return out
}

// BuildMetafields renders the metafields of a product: every public template
// field that is not mapped to a platform field, unless its metafield mapping
// is disabled. Empty values are skipped.
func (s *FieldMappingService) BuildMetafields(ctx context.Context, product *catalog.Product, platform integration.PlatformCode) ([]integration.Metafield, error) {
	if !platform.SupportsMetafields() || product.TemplateID == nil {
		return nil, nil
	}
	template, err := s.templateRepo.FindByID(ctx, *product.TemplateID)
	if err != nil {
		return nil, err
	}
	mapping, err := s.mappingRepo.FindByTemplateAndPlatform(ctx, template.ID, platform)
	if err != nil && !errors.Is(err, integration.ErrTemplateMappingNotFound) {
		return nil, err
	}

	placements := s.DefaultMetafieldMappings(template, platform)
	if mapping != nil {
		for name, placement := range mapping.MetafieldMappings {
			placements[name] = placement
		}
	}

	var metafields []integration.Metafield
	for _, f := range template.PublicFields() {
		if mapping != nil && mapping.IsTemplateFieldMapped(f.Name) {
			continue
		}
		placement, ok := placements[f.Name]
		if !ok || !placement.Enabled {
			continue
		}
		value, ok := product.Attribute(f.Name)
		if !ok || isBlank(value) {
			continue
		}
		namespace := placement.Namespace
		if namespace == "" {
			namespace = integration.DefaultMetafieldNamespace
		}
		key := placement.Key
		if key == "" {
			key = snakeCase(f.Name)
		}
		metafields = append(metafields, integration.Metafield{
			Namespace: namespace,
			Key:       key,
			Value:     fmt.Sprint(value),
			Type:      metafieldType(f.Type),
		})
	}
	return metafields, nil
}

func metafieldType(fieldType string) string {
	switch fieldType {
	case "number", "integer":
		return "number_integer"
	case "decimal":
		return "number_decimal"
	case "boolean":
		return "boolean"
	case "text", "textarea", "html":
		return "multi_line_text_field"
	default:
		return "single_line_text_field"
	}
}

// ---------------------------------------------------------------------------
// Attribute transformation
// ---------------------------------------------------------------------------

// TransformAttributes applies the saved mapping of the product's template to
// its attribute values. Required platform fields left without a value take the
// mapping's default; defaults for optional fields are not applied. Without a
// template or a saved mapping the result is empty.
func (s *FieldMappingService) TransformAttributes(ctx context.Context, product *catalog.Product, platform integration.PlatformCode) (map[string]any, error) {
	out := make(map[string]any)
	if product == nil || product.TemplateID == nil {
		return out, nil
	}
	mapping, err := s.mappingRepo.FindByTemplateAndPlatform(ctx, *product.TemplateID, platform)
	if errors.Is(err, integration.ErrTemplateMappingNotFound) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}

	for templateField, platformField := range mapping.FieldMappings {
		if platformField == "" {
			continue
		}
		value, ok := product.Attribute(templateField)
		if !ok || isBlank(value) {
			continue
		}
		out[platformField] = value
	}
	schema, ok := s.schemas.Schema(platform)
	if !ok {
		return out, nil
	}
	for _, platformField := range schema.RequiredFields() {
		if _, set := out[platformField]; set {
			continue
		}
		if value, ok := mapping.DefaultValues[platformField]; ok {
			out[platformField] = value
		}
	}
	return out, nil
}

// GetUnmappedRequiredFields lists the required fields of a schema that neither
// receive a template value nor have a default value
func GetUnmappedRequiredFields(schema integration.PlatformSchema, mapping *integration.TemplatePlatformMapping) []string {
	covered := make(map[string]struct{})
	if mapping != nil {
		covered = mapping.MappedPlatformFields()
		for field := range mapping.DefaultValues {
			covered[field] = struct{}{}
		}
	}

	missing := make([]string, 0)
	for _, name := range schema.RequiredFields() {
		if _, ok := covered[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// UnmappedRequiredFields loads the saved mapping of a template and diffs it
// against the platform schema. A template without a mapping reports every
// required field.
func (s *FieldMappingService) UnmappedRequiredFields(ctx context.Context, storeID, templateID uuid.UUID, platform integration.PlatformCode) ([]string, error) {
	schema, err := s.GetSchema(platform)
	if err != nil {
		return nil, err
	}
	mapping, err := s.GetMapping(ctx, storeID, templateID, platform)
	if err != nil && !errors.Is(err, integration.ErrTemplateMappingNotFound) {
		return nil, err
	}
	return GetUnmappedRequiredFields(schema, mapping), nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func isBlank(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	default:
		return false
	}
}

func nonNilStrings(m map[string]string) map[string]string {
	if m == nil {
		return make(map[string]string)
	}
	return m
}

// snakeCase converts "Material Type" and "materialType" to "material_type"
func snakeCase(name string) string {
	var b strings.Builder
	prevLower := false
	pendingSep := false
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsUpper(r):
			if prevLower || pendingSep {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
			pendingSep = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSep {
				b.WriteByte('_')
			}
			b.WriteRune(r)
			prevLower = true
			pendingSep = false
		default:
			pendingSep = b.Len() > 0
			prevLower = false
		}
	}
	return b.String()
}

// sortedKeys returns the keys of m in lexical order
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
