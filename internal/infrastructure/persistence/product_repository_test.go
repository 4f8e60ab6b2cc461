package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/listingsync/internal/domain/catalog"
	"github.com/erp/listingsync/internal/domain/shared"
	"github.com/erp/listingsync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockCatalogDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB, DriverName: "postgres"}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return gormDB, mock
}

var productColumns = []string{
	"id", "created_at", "updated_at", "store_id", "template_id", "category_id", "title", "description",
	"brand", "category_name", "condition", "weight", "weight_unit", "upc", "ean", "mpn",
	"images", "legacy_images", "attributes",
}

func TestGormProductRepository_FindByID(t *testing.T) {
	ctx := context.Background()

	t.Run("maps the product with variants and images", func(t *testing.T) {
		db, mock := newMockCatalogDB(t)
		repo := NewGormProductRepository(db)
		id, storeID, variantID := uuid.New(), uuid.New(), uuid.New()
		now := time.Now()

		mock.ExpectQuery(`SELECT \* FROM "products" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(id, 1).
			WillReturnRows(sqlmock.NewRows(productColumns).AddRow(
				id, now, now, storeID, nil, nil, "Blue Ceramic Mug", "Hand glazed", "Acme", "Mugs", "new",
				"0.4500", "kg", "012345678905", "", "",
				[]byte(`[{"url":"https://cdn.example.com/mug.jpg","position":0}]`),
				"{https://cdn.example.com/legacy.jpg}",
				[]byte(`{"color":"blue"}`),
			))
		mock.ExpectQuery(`SELECT \* FROM "product_variants" WHERE "product_variants"."product_id" = \$1 ORDER BY position ASC`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"id", "product_id", "sku", "barcode", "price", "quantity", "options", "position"}).
				AddRow(variantID, id, "MUG-BLUE", "", "19.9900", 5, []byte(`{"size":"M"}`), 0))

		product, err := repo.FindByID(ctx, id)

		require.NoError(t, err)
		assert.Equal(t, storeID, product.StoreID)
		assert.Equal(t, "Blue Ceramic Mug", product.Title)
		assert.Equal(t, "012345678905", product.UPC)
		assert.Equal(t, []string{"https://cdn.example.com/mug.jpg"}, product.ImageURLs())
		assert.Equal(t, []string{"https://cdn.example.com/legacy.jpg"}, product.LegacyImages)
		assert.Equal(t, "blue", product.Attributes["color"])
		require.Len(t, product.Variants, 1)
		assert.Equal(t, "MUG-BLUE", product.Variants[0].SKU)
		assert.Equal(t, "19.99", product.Variants[0].Price.String())
		assert.Equal(t, map[string]string{"size": "M"}, product.Variants[0].Options)
		assert.Equal(t, 5, product.TotalQuantity())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := newMockCatalogDB(t)
		repo := NewGormProductRepository(db)
		id := uuid.New()
		mock.ExpectQuery(`SELECT \* FROM "products" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(id, 1).
			WillReturnRows(sqlmock.NewRows(productColumns))

		_, err := repo.FindByID(ctx, id)

		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormProductRepository_FindByIDs(t *testing.T) {
	ctx := context.Background()

	t.Run("empty input skips the query", func(t *testing.T) {
		db, mock := newMockCatalogDB(t)

		products, err := NewGormProductRepository(db).FindByIDs(ctx, nil)

		require.NoError(t, err)
		assert.Empty(t, products)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("loads the requested products", func(t *testing.T) {
		db, mock := newMockCatalogDB(t)
		a, b := uuid.New(), uuid.New()
		now := time.Now()
		mock.ExpectQuery(`SELECT \* FROM "products" WHERE id IN \(\$1,\$2\)`).
			WithArgs(a, b).
			WillReturnRows(sqlmock.NewRows(productColumns).
				AddRow(a, now, now, uuid.New(), nil, nil, "Mug", "", "", "", "", "0", "", "", "", "", nil, nil, nil))
		mock.ExpectQuery(`SELECT \* FROM "product_variants" WHERE "product_variants"."product_id" = \$1`).
			WithArgs(a).
			WillReturnRows(sqlmock.NewRows([]string{"id", "product_id"}))

		products, err := NewGormProductRepository(db).FindByIDs(ctx, []uuid.UUID{a, b})

		require.NoError(t, err)
		require.Len(t, products, 1)
		assert.Equal(t, a, products[0].ID)
		assert.Empty(t, products[0].Variants)
		assert.NotNil(t, products[0].Attributes)
	})
}

func TestGormCategoryRepository_FindByID(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockCatalogDB(t)
	repo := NewGormCategoryRepository(db)
	id, parentID, storeID := uuid.New(), uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectQuery(`SELECT \* FROM "categories" WHERE id = \$1 ORDER BY .* LIMIT .*`).
		WithArgs(id, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at", "store_id", "parent_id", "name"}).
			AddRow(id, now, now, storeID, parentID, "Mugs"))

	category, err := repo.FindByID(ctx, id)

	require.NoError(t, err)
	assert.Equal(t, "Mugs", category.Name)
	require.NotNil(t, category.ParentID)
	assert.Equal(t, parentID, *category.ParentID)
	assert.False(t, category.IsRoot())
}

func TestGormProductTemplateRepository_FindByID(t *testing.T) {
	ctx := context.Background()
	db := setupListingTestDB(t)
	repo := NewGormProductTemplateRepository(db)

	template := &catalog.ProductTemplate{
		BaseEntity: shared.NewBaseEntity(),
		StoreID:    uuid.New(),
		Name:       "Mugs",
		Fields: []catalog.TemplateField{
			{Name: "Glaze", Label: "Glaze", Type: "text"},
			{Name: "Supplier Cost", Type: "number", IsPrivate: true},
		},
	}
	model := &models.ProductTemplateModel{}
	model.FromDomain(template)
	require.NoError(t, db.Create(model).Error)

	found, err := repo.FindByID(ctx, template.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mugs", found.Name)
	assert.Equal(t, template.Fields, found.Fields)
	assert.Len(t, found.PublicFields(), 1)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
