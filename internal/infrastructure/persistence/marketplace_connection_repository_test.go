package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/listingsync/internal/domain/integration"
	"github.com/erp/listingsync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConnection(storeID uuid.UUID, platform integration.PlatformCode) *integration.MarketplaceConnection {
	now := time.Now().UTC().Truncate(time.Second)
	expires := now.Add(2 * time.Hour)
	return &integration.MarketplaceConnection{
		ID:             uuid.New(),
		StoreID:        storeID,
		Platform:       platform,
		AccessToken:    "v^1.1#i^1#access",
		RefreshToken:   "v^1.1#r^1#refresh",
		TokenExpiresAt: &expires,
		Credentials: map[string]any{
			"client_id":     "Acme-Listing-PRD",
			"client_secret": "PRD-secret",
		},
		Status:    integration.ConnectionStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestGormConnectionRepository_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	db := setupListingTestDB(t)
	repo := NewGormConnectionRepository(db, newTestCipher(t))

	conn := newTestConnection(uuid.New(), integration.PlatformEbay)
	require.NoError(t, repo.Save(ctx, conn))

	t.Run("secrets are sealed at rest", func(t *testing.T) {
		var row models.MarketplaceConnectionModel
		require.NoError(t, db.First(&row, "id = ?", conn.ID).Error)
		assert.NotEmpty(t, row.AccessToken)
		assert.NotContains(t, string(row.AccessToken), "access")
		assert.NotContains(t, string(row.Credentials), "PRD-secret")
	})

	t.Run("loads the opened connection", func(t *testing.T) {
		found, err := repo.FindByID(ctx, conn.ID)
		require.NoError(t, err)
		assert.Equal(t, conn.AccessToken, found.AccessToken)
		assert.Equal(t, conn.RefreshToken, found.RefreshToken)
		assert.Equal(t, "Acme-Listing-PRD", found.CredentialString("client_id"))
		assert.Equal(t, integration.ConnectionStatusActive, found.Status)
		require.NotNil(t, found.TokenExpiresAt)
		assert.True(t, conn.TokenExpiresAt.Equal(*found.TokenExpiresAt))
	})

	t.Run("save updates in place", func(t *testing.T) {
		conn.MarkError("eBay rejected the stored credentials, reconnect the marketplace", time.Now())
		require.NoError(t, repo.Save(ctx, conn))

		found, err := repo.FindByID(ctx, conn.ID)
		require.NoError(t, err)
		assert.Equal(t, integration.ConnectionStatusError, found.Status)
		assert.Equal(t, conn.LastError, found.LastError)

		var count int64
		require.NoError(t, db.Model(&models.MarketplaceConnectionModel{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, integration.ErrConnectionNotFound)
	})

	t.Run("a different key cannot open the row", func(t *testing.T) {
		other, err := NewCredentialCipher(make([]byte, 32))
		require.NoError(t, err)

		_, err = NewGormConnectionRepository(db, other).FindByID(ctx, conn.ID)

		assert.ErrorIs(t, err, ErrCredentialDecrypt)
	})
}

func TestGormConnectionRepository_SaveToken(t *testing.T) {
	ctx := context.Background()
	db := setupListingTestDB(t)
	repo := NewGormConnectionRepository(db, newTestCipher(t))
	conn := newTestConnection(uuid.New(), integration.PlatformEtsy)
	require.NoError(t, repo.Save(ctx, conn))

	t.Run("stores the refreshed token pair", func(t *testing.T) {
		expires := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
		require.NoError(t, repo.SaveToken(ctx, conn.ID, "new-access", "new-refresh", &expires))

		found, err := repo.FindByID(ctx, conn.ID)
		require.NoError(t, err)
		assert.Equal(t, "new-access", found.AccessToken)
		assert.Equal(t, "new-refresh", found.RefreshToken)
		require.NotNil(t, found.TokenExpiresAt)
		assert.True(t, expires.Equal(*found.TokenExpiresAt))
		assert.Equal(t, "Acme-Listing-PRD", found.CredentialString("client_id"))
	})

	t.Run("keeps the refresh token when none is returned", func(t *testing.T) {
		require.NoError(t, repo.SaveToken(ctx, conn.ID, "newer-access", "", nil))

		found, err := repo.FindByID(ctx, conn.ID)
		require.NoError(t, err)
		assert.Equal(t, "newer-access", found.AccessToken)
		assert.Equal(t, "new-refresh", found.RefreshToken)
		assert.Nil(t, found.TokenExpiresAt)
	})

	t.Run("unknown connection", func(t *testing.T) {
		err := repo.SaveToken(ctx, uuid.New(), "a", "b", nil)
		assert.ErrorIs(t, err, integration.ErrConnectionNotFound)
	})
}

func TestGormConnectionRepository_FindByStore(t *testing.T) {
	ctx := context.Background()
	db := setupListingTestDB(t)
	repo := NewGormConnectionRepository(db, newTestCipher(t))

	storeID := uuid.New()
	first := newTestConnection(storeID, integration.PlatformEbay)
	second := newTestConnection(storeID, integration.PlatformShopify)
	second.CreatedAt = first.CreatedAt.Add(time.Minute)
	second.Credentials = nil
	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))
	require.NoError(t, repo.Save(ctx, newTestConnection(uuid.New(), integration.PlatformEbay)))

	conns, err := repo.FindByStore(ctx, storeID)

	require.NoError(t, err)
	require.Len(t, conns, 2)
	assert.Equal(t, integration.PlatformEbay, conns[0].Platform)
	assert.Equal(t, integration.PlatformShopify, conns[1].Platform)
	assert.Empty(t, conns[1].Credentials)
}
