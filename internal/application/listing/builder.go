package listing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/erp/listingsync/internal/domain/catalog"
	"github.com/erp/listingsync/internal/domain/integration"
	"github.com/erp/listingsync/internal/domain/shared"
	"github.com/google/uuid"
)

// Platform length limits applied by the builder
const (
	EbayTitleMaxLength               = 80
	EtsyTitleMaxLength               = 140
	WalmartShortDescriptionMaxLength = 1000

	ellipsis = "..."
)

// ebayConditionIDs maps the store's condition vocabulary to eBay condition ids
var ebayConditionIDs = map[string]int{
	"new":         1000,
	"new_other":   1500,
	"refurbished": 2000,
	"used":        3000,
	"for_parts":   7000,
}

// categoryRequired lists the platforms that cannot list without a category
var categoryRequired = map[integration.PlatformCode]bool{
	integration.PlatformEbay:    true,
	integration.PlatformEtsy:    true,
	integration.PlatformAmazon:  true,
	integration.PlatformWalmart: true,
}

// ListingBuilder computes what gets sent to a marketplace. It never calls the
// network: base product data, platform overrides, mapped template attributes
// and the platform's shape rules are combined and then validated.
type ListingBuilder struct {
	productRepo     catalog.ProductReader
	channelRepo     integration.SalesChannelRepository
	overrideRepo    integration.OverrideRepository
	fieldMapping    *FieldMappingService
	categoryMapping *CategoryMappingService
	schemas         *integration.SchemaCatalog
}

// NewListingBuilder creates a new ListingBuilder
func NewListingBuilder(
	productRepo catalog.ProductReader,
	channelRepo integration.SalesChannelRepository,
	overrideRepo integration.OverrideRepository,
	fieldMapping *FieldMappingService,
	categoryMapping *CategoryMappingService,
	schemas *integration.SchemaCatalog,
) *ListingBuilder {
	return &ListingBuilder{
		productRepo:     productRepo,
		channelRepo:     channelRepo,
		overrideRepo:    overrideRepo,
		fieldMapping:    fieldMapping,
		categoryMapping: categoryMapping,
		schemas:         schemas,
	}
}

// PreviewListing assembles the payload a publish would send, with its
// validation result, without contacting the marketplace
func (b *ListingBuilder) PreviewListing(ctx context.Context, storeID, productID, channelID uuid.UUID) (*ListingPreview, error) {
	product, err := b.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.StoreID != storeID {
		return nil, shared.NotFound("Product not found")
	}
	channel, err := b.channelRepo.FindByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if channel.StoreID != storeID {
		return nil, integration.ErrChannelNotFound
	}

	payload, validation, err := b.Build(ctx, product, channel)
	if err != nil {
		return nil, err
	}
	return &ListingPreview{Listing: payload.ToMap(), Validation: validation}, nil
}

// Build runs the payload pipeline for one product on one channel
func (b *ListingBuilder) Build(ctx context.Context, product *catalog.Product, channel *integration.SalesChannel) (*integration.ListingPayload, *integration.ValidationResult, error) {
	platform := channel.PlatformKey()
	validation := integration.NewValidationResult()

	payload := b.basePayload(product, platform)

	var categoryMapping *integration.CategoryPlatformMapping
	if platform.IsMarketplace() && b.categoryMapping != nil {
		mapping, err := b.categoryMapping.MappingForProduct(ctx, product, platform)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve category: %w", err)
		}
		if mapping != nil {
			categoryMapping = mapping
			primary := mapping.PrimaryCategoryID
			payload.PrimaryCategoryID = &primary
			payload.SecondaryCategoryID = mapping.SecondaryCategoryID
		}
	}

	mapped := make(map[string]any)
	if b.fieldMapping != nil {
		attrs, err := b.fieldMapping.TransformAttributes(ctx, product, platform)
		if err != nil {
			return nil, nil, fmt.Errorf("transform attributes: %w", err)
		}
		mapped = attrs
	}
	if categoryMapping != nil {
		applyCategoryFieldMappings(categoryMapping, product, mapped)
	}
	for k, v := range mapped {
		payload.Attributes[k] = v
	}

	if err := b.applyOverride(ctx, product, platform, payload); err != nil {
		return nil, nil, err
	}

	if err := b.shape(ctx, product, channel, payload, categoryMapping, validation); err != nil {
		return nil, nil, err
	}

	b.validate(product, channel, payload, categoryMapping, validation)
	return payload, validation, nil
}

// basePayload copies the product's own data
func (b *ListingBuilder) basePayload(product *catalog.Product, platform integration.PlatformCode) *integration.ListingPayload {
	payload := &integration.ListingPayload{
		Platform:     platform,
		Title:        strings.TrimSpace(product.Title),
		Description:  product.Description,
		Images:       product.ImageURLs(),
		Brand:        product.Brand,
		CategoryName: product.CategoryName,
		Condition:    product.Condition,
		Weight:       product.Weight,
		WeightUnit:   product.WeightUnit,
		UPC:          product.UPC,
		EAN:          product.EAN,
		MPN:          product.MPN,
		Attributes:   make(map[string]any),
	}
	if v := product.FirstVariant(); v != nil {
		payload.Price = v.Price
		payload.Quantity = v.Quantity
		payload.SKU = v.SKU
		payload.Barcode = v.Barcode
	}
	for _, v := range product.Variants {
		payload.Variants = append(payload.Variants, integration.PayloadVariant{
			SKU:      v.SKU,
			Barcode:  v.Barcode,
			Price:    v.Price,
			Quantity: v.Quantity,
			Options:  v.Options,
		})
	}
	return payload
}

// applyCategoryFieldMappings merges the category-level field mappings and
// defaults underneath the template mapping
func applyCategoryFieldMappings(mapping *integration.CategoryPlatformMapping, product *catalog.Product, attrs map[string]any) {
	for source, target := range mapping.FieldMappings {
		if target == "" {
			continue
		}
		if _, set := attrs[target]; set {
			continue
		}
		if value, ok := product.Attribute(source); ok && !isBlank(value) {
			attrs[target] = value
		}
	}
	for field, value := range mapping.DefaultValues {
		if _, set := attrs[field]; !set {
			attrs[field] = value
		}
	}
}

// applyOverride replaces base values with the product's platform override.
// Only fields present on the override apply; a zero price or quantity is a value.
func (b *ListingBuilder) applyOverride(ctx context.Context, product *catalog.Product, platform integration.PlatformCode, payload *integration.ListingPayload) error {
	if b.overrideRepo == nil || !platform.IsMarketplace() {
		return nil
	}
	override, err := b.overrideRepo.FindByProductAndPlatform(ctx, product.ID, platform)
	if errors.Is(err, integration.ErrOverrideNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load override: %w", err)
	}

	if override.Title != nil {
		payload.Title = strings.TrimSpace(*override.Title)
	}
	if override.Description != nil {
		payload.Description = *override.Description
	}
	if override.Price != nil {
		payload.Price = *override.Price
	}
	if override.Quantity != nil {
		payload.Quantity = *override.Quantity
	}
	if override.CategoryID != nil && *override.CategoryID != "" {
		id := *override.CategoryID
		payload.PrimaryCategoryID = &id
	}
	for k, v := range override.Attributes {
		payload.Attributes[k] = v
	}
	return nil
}

// ---------------------------------------------------------------------------
// Platform shapes
// ---------------------------------------------------------------------------

func (b *ListingBuilder) shape(
	ctx context.Context,
	product *catalog.Product,
	channel *integration.SalesChannel,
	payload *integration.ListingPayload,
	categoryMapping *integration.CategoryPlatformMapping,
	validation *integration.ValidationResult,
) error {
	if brand, ok := payload.Attributes["brand"].(string); ok && payload.Brand == "" {
		payload.Brand = brand
	}

	switch payload.Platform {
	case integration.PlatformEbay:
		b.shapeEbay(channel, payload, categoryMapping, validation)
	case integration.PlatformEtsy:
		shapeEtsy(payload, validation)
	case integration.PlatformAmazon:
		shapeAmazon(payload)
	case integration.PlatformWalmart:
		shapeWalmart(payload, validation)
	case integration.PlatformShopify:
		payload.SetField("body_html", payload.Description)
	}

	if payload.Platform.SupportsMetafields() && b.fieldMapping != nil {
		metafields, err := b.fieldMapping.BuildMetafields(ctx, product, payload.Platform)
		if err != nil {
			return fmt.Errorf("build metafields: %w", err)
		}
		payload.Metafields = metafields
	}
	return nil
}

func (b *ListingBuilder) shapeEbay(channel *integration.SalesChannel, payload *integration.ListingPayload, categoryMapping *integration.CategoryPlatformMapping, validation *integration.ValidationResult) {
	if title, cut := truncateWithEllipsis(payload.Title, EbayTitleMaxLength); cut {
		payload.Title = title
		validation.AddWarning(fmt.Sprintf("Title exceeds %d characters and was shortened for eBay", EbayTitleMaxLength))
	}

	condition := payload.Condition
	if condition == "" {
		if settings, err := channel.TypedSettings(); err == nil {
			condition = settings.DefaultCondition
		}
	}
	if condition == "" {
		condition = "new"
	}
	payload.Condition = condition
	if id, ok := ebayConditionIDs[strings.ToLower(condition)]; ok {
		payload.SetField("condition_id", id)
	} else {
		validation.AddWarning(fmt.Sprintf("Condition %q has no eBay equivalent", condition))
	}

	payload.ItemSpecifics = itemSpecifics(payload)

	if categoryMapping != nil {
		present := make(map[string]struct{}, len(payload.ItemSpecifics))
		for _, spec := range payload.ItemSpecifics {
			present[strings.ToLower(spec.Name)] = struct{}{}
		}
		for _, name := range categoryMapping.RequiredItemSpecifics() {
			if _, ok := present[strings.ToLower(name)]; !ok {
				validation.AddWarning(fmt.Sprintf("Required eBay item specific %q has no value", name))
			}
		}
	}
}

// itemSpecifics converts attributes into name/value pairs, ordered by name.
// Brand and MPN are added when no attribute provides them.
func itemSpecifics(payload *integration.ListingPayload) []integration.ItemSpecific {
	specs := make([]integration.ItemSpecific, 0, len(payload.Attributes)+2)
	seen := make(map[string]struct{}, len(payload.Attributes))
	for _, name := range sortedKeys(payload.Attributes) {
		value := payload.Attributes[name]
		if isBlank(value) {
			continue
		}
		specs = append(specs, integration.ItemSpecific{Name: name, Value: fmt.Sprint(value)})
		seen[strings.ToLower(name)] = struct{}{}
	}
	if _, ok := seen["brand"]; !ok && payload.Brand != "" {
		specs = append(specs, integration.ItemSpecific{Name: "Brand", Value: payload.Brand})
	}
	if _, ok := seen["mpn"]; !ok && payload.MPN != "" {
		specs = append(specs, integration.ItemSpecific{Name: "MPN", Value: payload.MPN})
	}
	return specs
}

func shapeEtsy(payload *integration.ListingPayload, validation *integration.ValidationResult) {
	if title, cut := truncate(payload.Title, EtsyTitleMaxLength); cut {
		payload.Title = title
		validation.AddWarning(fmt.Sprintf("Title exceeds %d characters and was shortened for Etsy", EtsyTitleMaxLength))
	}
	payload.SetField("who_made", attributeString(payload, "who_made", "i_did"))
	payload.SetField("when_made", attributeString(payload, "when_made", "made_to_order"))
	if payload.PrimaryCategoryID != nil {
		payload.SetField("taxonomy_id", *payload.PrimaryCategoryID)
	}
	if tags, ok := payload.Attributes["tags"]; ok {
		payload.SetField("tags", tags)
	}
}

func shapeAmazon(payload *integration.ListingPayload) {
	payload.SetField("item_name", payload.Title)
	payload.SetField("product_description", payload.Description)
	payload.SetField("seller_sku", payload.SKU)
	payload.SetField("list_price", payload.Price.StringFixed(2))
	payload.SetField("product_type", attributeString(payload, "product_type", "PRODUCT"))
	payload.SetField("condition_type", attributeString(payload, "condition_type", "new_new"))
}

func shapeWalmart(payload *integration.ListingPayload, validation *integration.ValidationResult) {
	payload.SetField("productName", payload.Title)
	short, cut := truncate(payload.Description, WalmartShortDescriptionMaxLength)
	if cut {
		validation.AddWarning(fmt.Sprintf("Description exceeds %d characters and was shortened for Walmart", WalmartShortDescriptionMaxLength))
	}
	payload.SetField("shortDescription", short)
	if img := payload.FirstImage(); img != "" {
		payload.SetField("mainImageUrl", img)
	}
	if payload.Brand != "" {
		payload.SetField("brand", payload.Brand)
	}
	switch {
	case payload.UPC != "":
		payload.SetField("productIdType", "UPC")
		payload.SetField("productId", payload.UPC)
	case payload.EAN != "":
		payload.SetField("productIdType", "EAN")
		payload.SetField("productId", payload.EAN)
	}
	if !payload.Weight.IsZero() {
		payload.SetField("ShippingWeight", payload.Weight.String())
	}
	if productType := attributeString(payload, "product_type", ""); productType != "" {
		payload.SetField("product_type", productType)
	}
}

func attributeString(payload *integration.ListingPayload, key, fallback string) string {
	if v, ok := payload.Attributes[key]; ok && !isBlank(v) {
		return fmt.Sprint(v)
	}
	return fallback
}

// truncate cuts s to at most limit runes
func truncate(s string, limit int) (string, bool) {
	if utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	return string([]rune(s)[:limit]), true
}

// truncateWithEllipsis cuts s to limit runes, the last three being "..."
func truncateWithEllipsis(s string, limit int) (string, bool) {
	if utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	return string([]rune(s)[:limit-len(ellipsis)]) + ellipsis, true
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

func (b *ListingBuilder) validate(
	product *catalog.Product,
	channel *integration.SalesChannel,
	payload *integration.ListingPayload,
	categoryMapping *integration.CategoryPlatformMapping,
	validation *integration.ValidationResult,
) {
	if payload.Title == "" {
		validation.AddError("Title is required")
	}
	if len(payload.Images) == 0 {
		validation.AddError("At least one image is required")
	}
	if !product.HasPricedVariant() {
		validation.AddError("At least one variant with a price is required")
	}

	platform := payload.Platform
	if !platform.IsMarketplace() {
		return
	}

	if payload.Brand == "" {
		if platform == integration.PlatformWalmart {
			validation.AddError("Brand is required for Walmart listings")
		} else if platform == integration.PlatformAmazon || platform == integration.PlatformEbay {
			validation.AddWarning(fmt.Sprintf("Brand is missing; %s listings without a brand rank poorly", platform.DisplayName()))
		}
	}

	if categoryRequired[platform] && payload.PrimaryCategoryID == nil && categoryMapping == nil {
		validation.AddWarning(fmt.Sprintf("No %s category mapping found for this product's category", platform.DisplayName()))
	}

	if platform == integration.PlatformEbay && channel.Connection != nil {
		creds, err := channel.Connection.EbayCredentials()
		if err != nil || !creds.Policies().IsComplete() {
			validation.AddWarning("eBay business policies are not configured; sync them from the connection settings")
		}
	}

	if b.schemas == nil {
		return
	}
	schema, ok := b.schemas.Schema(platform)
	if !ok {
		return
	}
	values := payload.ToMap()
	for k, v := range payload.Attributes {
		if _, set := values[k]; !set {
			values[k] = v
		}
	}
	for _, f := range schema.Fields {
		value, present := values[f.Name]
		if f.Required && (!present || isEmptyValue(value)) {
			validation.AddWarning(fmt.Sprintf("Required %s field %q has no value", platform.DisplayName(), f.Name))
			continue
		}
		if s, ok := value.(string); ok && f.MaxLength > 0 && utf8.RuneCountInString(s) > f.MaxLength {
			validation.AddWarning(fmt.Sprintf("%s field %q exceeds %d characters", platform.DisplayName(), f.Name, f.MaxLength))
		}
	}
}

func isEmptyValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []string:
		return len(v) == 0
	default:
		return false
	}
}
