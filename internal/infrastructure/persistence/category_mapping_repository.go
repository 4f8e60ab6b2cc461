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

// GormCategoryMappingRepository implements integration.CategoryMappingRepository using GORM
type GormCategoryMappingRepository struct {
	db *gorm.DB
}

// NewGormCategoryMappingRepository creates a new GormCategoryMappingRepository
func NewGormCategoryMappingRepository(db *gorm.DB) *GormCategoryMappingRepository {
	return &GormCategoryMappingRepository{db: db}
}

// FindByID finds a mapping by its ID
func (r *GormCategoryMappingRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.CategoryPlatformMapping, error) {
	var model models.CategoryPlatformMappingModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrCategoryMappingNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindByCategoryAndPlatform finds the mapping of one category for one platform
func (r *GormCategoryMappingRepository) FindByCategoryAndPlatform(ctx context.Context, categoryID uuid.UUID, platform integration.PlatformCode) (*integration.CategoryPlatformMapping, error) {
	var model models.CategoryPlatformMappingModel
	if err := r.db.WithContext(ctx).
		Where("category_id = ? AND platform = ?", categoryID, platform).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrCategoryMappingNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindByCategory lists every platform mapping of a category
func (r *GormCategoryMappingRepository) FindByCategory(ctx context.Context, categoryID uuid.UUID) ([]integration.CategoryPlatformMapping, error) {
	var rows []models.CategoryPlatformMappingModel
	if err := r.db.WithContext(ctx).
		Where("category_id = ?", categoryID).
		Order("platform ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	mappings := make([]integration.CategoryPlatformMapping, 0, len(rows))
	for i := range rows {
		item, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, *item)
	}
	return mappings, nil
}

// Upsert inserts the mapping or replaces the one with the same (category, platform).
// The id and creation time of an existing row are kept.
func (r *GormCategoryMappingRepository) Upsert(ctx context.Context, mapping *integration.CategoryPlatformMapping) error {
	model := &models.CategoryPlatformMappingModel{}
	model.FromDomain(mapping)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "category_id"}, {Name: "platform"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"primary_category_id", "secondary_category_id", "category_path",
				"field_mappings", "default_values", "item_specifics",
				"item_specifics_category_id", "item_specifics_synced_at", "metadata", "updated_at",
			}),
		}).
		Create(model).Error
}

// Delete removes the mapping of a category for a platform
func (r *GormCategoryMappingRepository) Delete(ctx context.Context, categoryID uuid.UUID, platform integration.PlatformCode) error {
	result := r.db.WithContext(ctx).
		Where("category_id = ? AND platform = ?", categoryID, platform).
		Delete(&models.CategoryPlatformMappingModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrCategoryMappingNotFound
	}
	return nil
}

// FindItemSpecificsDue lists mappings whose item specifics need a refresh, oldest first
func (r *GormCategoryMappingRepository) FindItemSpecificsDue(ctx context.Context, syncedBefore time.Time, limit int) ([]integration.CategoryPlatformMapping, error) {
	var platforms []integration.PlatformCode
	for _, p := range integration.AllPlatforms() {
		if p.SupportsItemSpecifics() {
			platforms = append(platforms, p)
		}
	}

	var rows []models.CategoryPlatformMappingModel
	if err := r.db.WithContext(ctx).
		Where("platform IN ?", platforms).
		Where("item_specifics_synced_at IS NULL OR item_specifics_synced_at < ? OR item_specifics_category_id <> primary_category_id", syncedBefore).
		Order("item_specifics_synced_at ASC NULLS FIRST").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	mappings := make([]integration.CategoryPlatformMapping, 0, len(rows))
	for i := range rows {
		item, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, *item)
	}
	return mappings, nil
}

// Ensure GormCategoryMappingRepository implements CategoryMappingRepository
var _ integration.CategoryMappingRepository = (*GormCategoryMappingRepository)(nil)
