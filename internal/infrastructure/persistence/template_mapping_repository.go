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

// GormTemplateMappingRepository implements integration.TemplateMappingRepository using GORM
type GormTemplateMappingRepository struct {
	db *gorm.DB
}

// NewGormTemplateMappingRepository creates a new GormTemplateMappingRepository
func NewGormTemplateMappingRepository(db *gorm.DB) *GormTemplateMappingRepository {
	return &GormTemplateMappingRepository{db: db}
}

// FindByTemplateAndPlatform finds the mapping of a template for a platform
func (r *GormTemplateMappingRepository) FindByTemplateAndPlatform(ctx context.Context, templateID uuid.UUID, platform integration.PlatformCode) (*integration.TemplatePlatformMapping, error) {
	var model models.TemplatePlatformMappingModel
	if err := r.db.WithContext(ctx).
		Where("template_id = ? AND platform = ?", templateID, platform).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrTemplateMappingNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// Upsert inserts the mapping or replaces the one with the same (template, platform)
func (r *GormTemplateMappingRepository) Upsert(ctx context.Context, mapping *integration.TemplatePlatformMapping) error {
	model := &models.TemplatePlatformMappingModel{}
	model.FromDomain(mapping)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "template_id"}, {Name: "platform"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"field_mappings", "default_values", "metafield_mappings", "is_ai_suggested", "updated_at",
			}),
		}).
		Create(model).Error
}

// Ensure GormTemplateMappingRepository implements TemplateMappingRepository
var _ integration.TemplateMappingRepository = (*GormTemplateMappingRepository)(nil)
