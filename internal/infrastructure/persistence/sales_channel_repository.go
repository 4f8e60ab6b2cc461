package persistence

import (
	"context"
	"errors"

	"github.com/erp/listingsync/internal/domain/integration"
	"github.com/erp/listingsync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSalesChannelRepository implements integration.SalesChannelRepository using GORM.
// Channels are loaded together with their marketplace connection.
type GormSalesChannelRepository struct {
	db     *gorm.DB
	sealer models.SecretSealer
}

// NewGormSalesChannelRepository creates a new GormSalesChannelRepository
func NewGormSalesChannelRepository(db *gorm.DB, sealer models.SecretSealer) *GormSalesChannelRepository {
	return &GormSalesChannelRepository{db: db, sealer: sealer}
}

// FindByID finds a channel by its ID
func (r *GormSalesChannelRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.SalesChannel, error) {
	var model models.SalesChannelModel
	if err := r.db.WithContext(ctx).
		Preload("Connection").
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrChannelNotFound
		}
		return nil, err
	}
	return model.ToDomain(r.sealer)
}

// FindByStoreAndPlatform lists the channels of a store with the given declared type
func (r *GormSalesChannelRepository) FindByStoreAndPlatform(ctx context.Context, storeID uuid.UUID, platform integration.PlatformCode) ([]integration.SalesChannel, error) {
	var rows []models.SalesChannelModel
	if err := r.db.WithContext(ctx).
		Preload("Connection").
		Where("store_id = ? AND type = ?", storeID, platform).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	channels := make([]integration.SalesChannel, 0, len(rows))
	for i := range rows {
		channel, err := rows[i].ToDomain(r.sealer)
		if err != nil {
			return nil, err
		}
		channels = append(channels, *channel)
	}
	return channels, nil
}

// Save creates or updates a channel. The linked connection is not written.
func (r *GormSalesChannelRepository) Save(ctx context.Context, channel *integration.SalesChannel) error {
	model := &models.SalesChannelModel{}
	model.FromDomain(channel)
	return r.db.WithContext(ctx).Omit("Connection").Save(model).Error
}

// Ensure GormSalesChannelRepository implements SalesChannelRepository
var _ integration.SalesChannelRepository = (*GormSalesChannelRepository)(nil)
