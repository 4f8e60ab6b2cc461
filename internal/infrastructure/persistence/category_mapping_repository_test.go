package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/listingsync/internal/domain/integration"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormCategoryMappingRepository(t *testing.T) {
	ctx := context.Background()
	db := setupListingTestDB(t)
	repo := NewGormCategoryMappingRepository(db)

	storeID, categoryID := uuid.New(), uuid.New()
	mapping, err := integration.NewCategoryPlatformMapping(storeID, categoryID, integration.PlatformEbay, "20625")
	require.NoError(t, err)
	mapping.CategoryPath = "Home & Garden > Kitchen > Mugs"
	mapping.DefaultValues["Material"] = "Ceramic"
	require.NoError(t, repo.Upsert(ctx, mapping))

	t.Run("finds by category and platform", func(t *testing.T) {
		found, err := repo.FindByCategoryAndPlatform(ctx, categoryID, integration.PlatformEbay)
		require.NoError(t, err)
		assert.Equal(t, mapping.ID, found.ID)
		assert.Equal(t, "20625", found.PrimaryCategoryID)
		assert.Equal(t, "Ceramic", found.DefaultValues["Material"])
		assert.True(t, found.ItemSpecificsStale(time.Now()))
	})

	t.Run("missing mapping", func(t *testing.T) {
		_, err := repo.FindByCategoryAndPlatform(ctx, categoryID, integration.PlatformEtsy)
		assert.ErrorIs(t, err, integration.ErrCategoryMappingNotFound)
		_, err = repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, integration.ErrCategoryMappingNotFound)
	})

	t.Run("upsert replaces the row of the same key", func(t *testing.T) {
		replacement, err := integration.NewCategoryPlatformMapping(storeID, categoryID, integration.PlatformEbay, "46782")
		require.NoError(t, err)
		replacement.RecordItemSpecifics([]integration.PlatformField{
			{Name: "Brand", Required: true, Kind: integration.FieldKindItemSpecific},
		}, time.Now())
		require.NoError(t, repo.Upsert(ctx, replacement))

		found, err := repo.FindByID(ctx, mapping.ID)
		require.NoError(t, err)
		assert.Equal(t, "46782", found.PrimaryCategoryID)
		assert.Equal(t, []string{"Brand"}, found.RequiredItemSpecifics())
		assert.False(t, found.ItemSpecificsStale(time.Now()))
	})

	t.Run("lists mappings of a category", func(t *testing.T) {
		etsy, err := integration.NewCategoryPlatformMapping(storeID, categoryID, integration.PlatformEtsy, "1062")
		require.NoError(t, err)
		require.NoError(t, repo.Upsert(ctx, etsy))

		mappings, err := repo.FindByCategory(ctx, categoryID)
		require.NoError(t, err)
		require.Len(t, mappings, 2)
		assert.Equal(t, integration.PlatformEbay, mappings[0].Platform)
		assert.Equal(t, integration.PlatformEtsy, mappings[1].Platform)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, categoryID, integration.PlatformEtsy))
		err := repo.Delete(ctx, categoryID, integration.PlatformEtsy)
		assert.ErrorIs(t, err, integration.ErrCategoryMappingNotFound)
	})
}

func TestGormCategoryMappingRepository_FindItemSpecificsDue(t *testing.T) {
	ctx := context.Background()
	db := setupListingTestDB(t)
	repo := NewGormCategoryMappingRepository(db)
	storeID := uuid.New()
	now := time.Now()

	newMapping := func(platform integration.PlatformCode, primary string) *integration.CategoryPlatformMapping {
		m, err := integration.NewCategoryPlatformMapping(storeID, uuid.New(), platform, primary)
		require.NoError(t, err)
		return m
	}

	never := newMapping(integration.PlatformEbay, "100")
	fresh := newMapping(integration.PlatformEbay, "200")
	fresh.RecordItemSpecifics(nil, now)
	old := newMapping(integration.PlatformEbay, "300")
	old.RecordItemSpecifics(nil, now.Add(-integration.ItemSpecificsMaxAge-time.Hour))
	moved := newMapping(integration.PlatformEbay, "400")
	moved.RecordItemSpecifics(nil, now)
	moved.PrimaryCategoryID = "401"
	etsy := newMapping(integration.PlatformEtsy, "500")
	for _, m := range []*integration.CategoryPlatformMapping{never, fresh, old, moved, etsy} {
		require.NoError(t, repo.Upsert(ctx, m))
	}

	due, err := repo.FindItemSpecificsDue(ctx, now.Add(-integration.ItemSpecificsMaxAge), 10)
	require.NoError(t, err)

	ids := make([]uuid.UUID, 0, len(due))
	for _, m := range due {
		ids = append(ids, m.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{never.ID, old.ID, moved.ID}, ids)
	assert.Equal(t, never.ID, due[0].ID, "never synced mappings come first")

	limited, err := repo.FindItemSpecificsDue(ctx, now.Add(-integration.ItemSpecificsMaxAge), 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestGormTemplateMappingRepository(t *testing.T) {
	ctx := context.Background()
	db := setupListingTestDB(t)
	repo := NewGormTemplateMappingRepository(db)

	templateID := uuid.New()
	mapping, err := integration.NewTemplatePlatformMapping(uuid.New(), templateID, integration.PlatformShopify)
	require.NoError(t, err)
	mapping.Replace(
		map[string]string{"Title": "title", "Manufacturer": "vendor"},
		map[string]any{"product_type": "Mug"},
		map[string]integration.MetafieldMapping{"Glaze": {Namespace: "custom", Key: "glaze", Enabled: true}},
		true,
	)
	require.NoError(t, repo.Upsert(ctx, mapping))

	found, err := repo.FindByTemplateAndPlatform(ctx, templateID, integration.PlatformShopify)
	require.NoError(t, err)
	assert.Equal(t, "vendor", found.FieldMappings["Manufacturer"])
	assert.Equal(t, "Mug", found.DefaultValues["product_type"])
	assert.Equal(t, integration.MetafieldMapping{Namespace: "custom", Key: "glaze", Enabled: true}, found.MetafieldMappings["Glaze"])
	assert.True(t, found.IsAISuggested)

	found.Replace(map[string]string{"Title": "title"}, map[string]any{}, map[string]integration.MetafieldMapping{}, false)
	require.NoError(t, repo.Upsert(ctx, found))
	again, err := repo.FindByTemplateAndPlatform(ctx, templateID, integration.PlatformShopify)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Title": "title"}, again.FieldMappings)
	assert.False(t, again.IsAISuggested)

	_, err = repo.FindByTemplateAndPlatform(ctx, templateID, integration.PlatformEbay)
	assert.ErrorIs(t, err, integration.ErrTemplateMappingNotFound)
}

func TestGormOverrideRepository(t *testing.T) {
	ctx := context.Background()
	db := setupListingTestDB(t)
	repo := NewGormOverrideRepository(db)

	productID := uuid.New()
	override, err := integration.NewProductPlatformOverride(uuid.New(), productID, integration.PlatformAmazon)
	require.NoError(t, err)
	zero := decimal.Zero
	title := "Blue Ceramic Mug, 12 oz"
	override.Price = &zero
	override.Title = &title
	require.NoError(t, repo.Save(ctx, override))

	found, err := repo.FindByProductAndPlatform(ctx, productID, integration.PlatformAmazon)
	require.NoError(t, err)
	require.NotNil(t, found.Price)
	assert.True(t, found.Price.IsZero())
	assert.Equal(t, title, *found.Title)
	assert.Nil(t, found.Quantity)
	assert.Nil(t, found.Description)
	assert.Empty(t, found.Attributes)

	quantity := 4
	found.Quantity = &quantity
	found.Price = nil
	require.NoError(t, repo.Save(ctx, found))
	again, err := repo.FindByProductAndPlatform(ctx, productID, integration.PlatformAmazon)
	require.NoError(t, err)
	assert.Nil(t, again.Price)
	require.NotNil(t, again.Quantity)
	assert.Equal(t, 4, *again.Quantity)

	_, err = repo.FindByProductAndPlatform(ctx, productID, integration.PlatformWalmart)
	assert.ErrorIs(t, err, integration.ErrOverrideNotFound)
}
