package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/listingsync/internal/domain/integration"
	"github.com/erp/listingsync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormConnectionRepository implements integration.ConnectionRepository using GORM.
// Tokens and credentials are sealed before they reach the database.
type GormConnectionRepository struct {
	db     *gorm.DB
	sealer models.SecretSealer
}

// NewGormConnectionRepository creates a new GormConnectionRepository
func NewGormConnectionRepository(db *gorm.DB, sealer models.SecretSealer) *GormConnectionRepository {
	return &GormConnectionRepository{db: db, sealer: sealer}
}

// WithTx returns a new repository instance bound to the given transaction
func (r *GormConnectionRepository) WithTx(tx *gorm.DB) *GormConnectionRepository {
	return &GormConnectionRepository{db: tx, sealer: r.sealer}
}

// FindByID finds a connection by its ID
func (r *GormConnectionRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.MarketplaceConnection, error) {
	var model models.MarketplaceConnectionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrConnectionNotFound
		}
		return nil, err
	}
	return model.ToDomain(r.sealer)
}

// FindByStore lists the connections of a store
func (r *GormConnectionRepository) FindByStore(ctx context.Context, storeID uuid.UUID) ([]integration.MarketplaceConnection, error) {
	var rows []models.MarketplaceConnectionModel
	if err := r.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	conns := make([]integration.MarketplaceConnection, 0, len(rows))
	for i := range rows {
		conn, err := rows[i].ToDomain(r.sealer)
		if err != nil {
			return nil, err
		}
		conns = append(conns, *conn)
	}
	return conns, nil
}

// Save creates or updates a connection
func (r *GormConnectionRepository) Save(ctx context.Context, conn *integration.MarketplaceConnection) error {
	model := &models.MarketplaceConnectionModel{}
	if err := model.FromDomain(conn, r.sealer); err != nil {
		return fmt.Errorf("connection %s: %w", conn.ID, err)
	}
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveToken stores a refreshed OAuth token without touching the rest of the row
func (r *GormConnectionRepository) SaveToken(ctx context.Context, connectionID uuid.UUID, accessToken, refreshToken string, expiresAt *time.Time) error {
	updates := map[string]any{
		"token_expires_at": expiresAt,
		"updated_at":       time.Now(),
	}
	access, err := r.sealer.Seal([]byte(accessToken))
	if err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}
	updates["access_token"] = access
	// Providers that do not rotate refresh tokens return an empty one
	if refreshToken != "" {
		refresh, err := r.sealer.Seal([]byte(refreshToken))
		if err != nil {
			return fmt.Errorf("seal refresh token: %w", err)
		}
		updates["refresh_token"] = refresh
	}

	result := r.db.WithContext(ctx).
		Model(&models.MarketplaceConnectionModel{}).
		Where("id = ?", connectionID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrConnectionNotFound
	}
	return nil
}

// Ensure GormConnectionRepository implements ConnectionRepository
var _ integration.ConnectionRepository = (*GormConnectionRepository)(nil)
