package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/listingsync/internal/domain/integration"
	"github.com/erp/listingsync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormListingRepository implements integration.ListingRepository using GORM
type GormListingRepository struct {
	db *gorm.DB
}

// NewGormListingRepository creates a new GormListingRepository
func NewGormListingRepository(db *gorm.DB) *GormListingRepository {
	return &GormListingRepository{db: db}
}

// WithTx returns a new repository instance bound to the given transaction
func (r *GormListingRepository) WithTx(tx *gorm.DB) *GormListingRepository {
	return &GormListingRepository{db: tx}
}

// FindByID finds a listing by its ID
func (r *GormListingRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.PlatformListing, error) {
	var model models.PlatformListingModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrListingNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindByProductAndChannel finds the listing of a product on a sales channel
func (r *GormListingRepository) FindByProductAndChannel(ctx context.Context, productID, channelID uuid.UUID) (*integration.PlatformListing, error) {
	var model models.PlatformListingModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND sales_channel_id = ?", productID, channelID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrListingNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindByChannel lists the listings of a sales channel, oldest first
func (r *GormListingRepository) FindByChannel(ctx context.Context, channelID uuid.UUID, filter integration.ListingFilter) ([]integration.PlatformListing, error) {
	query := r.db.WithContext(ctx).
		Model(&models.PlatformListingModel{}).
		Where("sales_channel_id = ?", channelID)
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var rows []models.PlatformListingModel
	if err := query.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	listings := make([]integration.PlatformListing, 0, len(rows))
	for i := range rows {
		item, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		listings = append(listings, *item)
	}
	return listings, nil
}

// Create inserts a new listing. The (product, channel) unique index turns a
// concurrent second insert into ErrListingAlreadyExists.
func (r *GormListingRepository) Create(ctx context.Context, listing *integration.PlatformListing) error {
	if listing.Version == 0 {
		listing.Version = 1
	}
	model := models.PlatformListingModelFromDomain(listing)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}, {Name: "sales_channel_id"}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrListingAlreadyExists
	}
	return nil
}

// Update writes the listing with optimistic locking: the row is only updated
// when its version still matches, and the version is incremented
func (r *GormListingRepository) Update(ctx context.Context, listing *integration.PlatformListing) error {
	currentVersion := listing.Version
	updatedAt := time.Now()

	model := models.PlatformListingModelFromDomain(listing)
	result := r.db.WithContext(ctx).
		Model(&models.PlatformListingModel{}).
		Where("id = ? AND version = ?", listing.ID, currentVersion).
		Updates(map[string]any{
			"external_listing_id": model.ExternalListingID,
			"listing_url":         model.ListingURL,
			"status":              model.Status,
			"platform_price":      model.PlatformPrice,
			"platform_quantity":   model.PlatformQuantity,
			"platform_data":       model.PlatformData,
			"published_at":        model.PublishedAt,
			"last_synced_at":      model.LastSyncedAt,
			"last_error":          model.LastError,
			"version":             currentVersion + 1,
			"updated_at":          updatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.PlatformListingModel{}).Where("id = ?", listing.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return integration.ErrListingNotFound
		}
		return integration.ErrListingVersionConflict
	}

	listing.Version = currentVersion + 1
	listing.UpdatedAt = updatedAt
	return nil
}

// Ensure GormListingRepository implements ListingRepository
var _ integration.ListingRepository = (*GormListingRepository)(nil)
