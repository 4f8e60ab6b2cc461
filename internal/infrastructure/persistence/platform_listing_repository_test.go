package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/listingsync/internal/domain/integration"
	"github.com/erp/listingsync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupListingTestDB opens an in-memory SQLite database with the listing tables.
// A single connection keeps every statement on the same in-memory database.
func setupListingTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(
		&models.MarketplaceConnectionModel{},
		&models.SalesChannelModel{},
		&models.PlatformListingModel{},
		&models.ProductPlatformOverrideModel{},
		&models.CategoryPlatformMappingModel{},
		&models.TemplatePlatformMappingModel{},
		&models.CategoryModel{},
		&models.ProductTemplateModel{},
	)
	require.NoError(t, err)
	return db
}

func newMockListingRepository(t *testing.T) (*GormListingRepository, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB, DriverName: "postgres"}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return NewGormListingRepository(gormDB), mock
}

func TestGormListingRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	db := setupListingTestDB(t)
	repo := NewGormListingRepository(db)

	storeID, productID, channelID := uuid.New(), uuid.New(), uuid.New()
	listing := integration.NewPlatformListing(storeID, productID, channelID)
	listing.SetPlatformData("payload_hash", "abc")

	require.NoError(t, repo.Create(ctx, listing))
	assert.Equal(t, 1, listing.Version)

	t.Run("by id", func(t *testing.T) {
		found, err := repo.FindByID(ctx, listing.ID)
		require.NoError(t, err)
		assert.Equal(t, productID, found.ProductID)
		assert.Equal(t, channelID, found.SalesChannelID)
		assert.Equal(t, integration.ListingStatusDraft, found.Status)
		assert.Equal(t, "abc", found.PlatformDataString("payload_hash"))
		assert.Nil(t, found.ExternalListingID)
		assert.Nil(t, found.PlatformPrice)
		assert.Equal(t, 1, found.Version)
	})

	t.Run("by product and channel", func(t *testing.T) {
		found, err := repo.FindByProductAndChannel(ctx, productID, channelID)
		require.NoError(t, err)
		assert.Equal(t, listing.ID, found.ID)
	})

	t.Run("unknown pair", func(t *testing.T) {
		_, err := repo.FindByProductAndChannel(ctx, productID, uuid.New())
		assert.ErrorIs(t, err, integration.ErrListingNotFound)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, integration.ErrListingNotFound)
	})

	t.Run("second listing for the same pair", func(t *testing.T) {
		dup := integration.NewPlatformListing(storeID, productID, channelID)
		err := repo.Create(ctx, dup)
		assert.ErrorIs(t, err, integration.ErrListingAlreadyExists)
	})
}

func TestGormListingRepository_Update(t *testing.T) {
	ctx := context.Background()
	db := setupListingTestDB(t)
	repo := NewGormListingRepository(db)

	listing := integration.NewPlatformListing(uuid.New(), uuid.New(), uuid.New())
	require.NoError(t, repo.Create(ctx, listing))

	t.Run("writes the listing and bumps the version", func(t *testing.T) {
		externalID := "110552233"
		price := decimal.RequireFromString("19.99")
		quantity := 0
		now := time.Now().UTC().Truncate(time.Second)
		listing.ExternalListingID = &externalID
		listing.ListingURL = "https://www.ebay.com/itm/110552233"
		listing.Status = integration.ListingStatusListed
		listing.PlatformPrice = &price
		listing.PlatformQuantity = &quantity
		listing.PublishedAt = &now

		require.NoError(t, repo.Update(ctx, listing))
		assert.Equal(t, 2, listing.Version)

		found, err := repo.FindByID(ctx, listing.ID)
		require.NoError(t, err)
		assert.Equal(t, integration.ListingStatusListed, found.Status)
		require.NotNil(t, found.ExternalListingID)
		assert.Equal(t, externalID, *found.ExternalListingID)
		require.NotNil(t, found.PlatformPrice)
		assert.True(t, price.Equal(*found.PlatformPrice))
		require.NotNil(t, found.PlatformQuantity)
		assert.Equal(t, 0, *found.PlatformQuantity)
		require.NotNil(t, found.PublishedAt)
		assert.True(t, now.Equal(*found.PublishedAt))
		assert.Equal(t, 2, found.Version)
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		stale, err := repo.FindByID(ctx, listing.ID)
		require.NoError(t, err)
		require.NoError(t, repo.Update(ctx, listing))

		stale.Status = integration.ListingStatusEnded
		err = repo.Update(ctx, stale)

		assert.ErrorIs(t, err, integration.ErrListingVersionConflict)
		found, err := repo.FindByID(ctx, listing.ID)
		require.NoError(t, err)
		assert.Equal(t, integration.ListingStatusListed, found.Status)
	})

	t.Run("missing row", func(t *testing.T) {
		ghost := integration.NewPlatformListing(uuid.New(), uuid.New(), uuid.New())
		ghost.Version = 1
		err := repo.Update(ctx, ghost)
		assert.ErrorIs(t, err, integration.ErrListingNotFound)
	})
}

func TestGormListingRepository_FindByChannel(t *testing.T) {
	ctx := context.Background()
	db := setupListingTestDB(t)
	repo := NewGormListingRepository(db)

	storeID, channelID := uuid.New(), uuid.New()
	base := time.Now().Add(-time.Hour)
	statuses := []integration.ListingStatus{
		integration.ListingStatusDraft,
		integration.ListingStatusListed,
		integration.ListingStatusListed,
	}
	for i, status := range statuses {
		l := integration.NewPlatformListing(storeID, uuid.New(), channelID)
		l.Status = status
		l.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(ctx, l))
	}
	require.NoError(t, repo.Create(ctx, integration.NewPlatformListing(storeID, uuid.New(), uuid.New())))

	t.Run("all listings of the channel", func(t *testing.T) {
		listings, err := repo.FindByChannel(ctx, channelID, integration.ListingFilter{})
		require.NoError(t, err)
		require.Len(t, listings, 3)
		assert.Equal(t, integration.ListingStatusDraft, listings[0].Status)
	})

	t.Run("filtered by status with paging", func(t *testing.T) {
		listed := integration.ListingStatusListed
		listings, err := repo.FindByChannel(ctx, channelID, integration.ListingFilter{Status: &listed, Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, listings, 1)
		assert.Equal(t, integration.ListingStatusListed, listings[0].Status)
	})
}

func TestGormListingRepository_DatabaseErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("find error propagates", func(t *testing.T) {
		repo, mock := newMockListingRepository(t)
		id := uuid.New()
		mock.ExpectQuery(`SELECT \* FROM "platform_listings" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(id, 1).
			WillReturnError(errors.New("connection reset"))

		_, err := repo.FindByID(ctx, id)

		assert.EqualError(t, err, "connection reset")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("update checks the version", func(t *testing.T) {
		repo, mock := newMockListingRepository(t)
		listing := integration.NewPlatformListing(uuid.New(), uuid.New(), uuid.New())
		listing.Version = 4
		mock.ExpectExec(`UPDATE "platform_listings" SET .* WHERE id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Update(ctx, listing))

		assert.Equal(t, 5, listing.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormListingRepository_CorruptPlatformData(t *testing.T) {
	ctx := context.Background()
	db := setupListingTestDB(t)
	repo := NewGormListingRepository(db)

	listing := integration.NewPlatformListing(uuid.New(), uuid.New(), uuid.New())
	require.NoError(t, repo.Create(ctx, listing))
	require.NoError(t, db.Exec(`UPDATE platform_listings SET platform_data = ? WHERE id = ?`, "{not json", listing.ID).Error)

	_, err := repo.FindByID(ctx, listing.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode platform data")
	assert.NotErrorIs(t, err, integration.ErrListingNotFound)
}
