package persistence

import (
	"context"
	"errors"

	"github.com/erp/listingsync/internal/domain/integration"
	"github.com/erp/listingsync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOverrideRepository implements integration.OverrideRepository using GORM
type GormOverrideRepository struct {
	db *gorm.DB
}

// NewGormOverrideRepository creates a new GormOverrideRepository
func NewGormOverrideRepository(db *gorm.DB) *GormOverrideRepository {
	return &GormOverrideRepository{db: db}
}

// FindByProductAndPlatform finds the override of a product for a platform
func (r *GormOverrideRepository) FindByProductAndPlatform(ctx context.Context, productID uuid.UUID, platform integration.PlatformCode) (*integration.ProductPlatformOverride, error) {
	var model models.ProductPlatformOverrideModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND platform = ?", productID, platform).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrOverrideNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// Save inserts or replaces the override keyed by (product, platform)
func (r *GormOverrideRepository) Save(ctx context.Context, override *integration.ProductPlatformOverride) error {
	model := &models.ProductPlatformOverrideModel{}
	model.FromDomain(override)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "product_id"}, {Name: "platform"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"title", "description", "price", "quantity", "category_id", "attributes", "updated_at",
			}),
		}).
		Create(model).Error
}

// Ensure GormOverrideRepository implements OverrideRepository
var _ integration.OverrideRepository = (*GormOverrideRepository)(nil)
