//go:build integration

package migration

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/erp/listingsync/migrations"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

func startPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("listingsync_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.PingContext(ctx))
	return db
}

func TestMigrator_UpDown(t *testing.T) {
	db := startPostgres(t)

	m, err := New(db, migrations.FS, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, m.Up())
	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(3), version)
	assert.False(t, dirty)

	// second Up is a no-op
	require.NoError(t, m.Up())

	var tables []string
	rows, err := db.Query(`SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name <> 'schema_migrations' ORDER BY table_name`)
	require.NoError(t, err)
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		tables = append(tables, name)
	}
	require.NoError(t, rows.Err())
	require.NoError(t, rows.Close())
	assert.Equal(t, []string{
		"categories",
		"category_platform_mappings",
		"marketplace_connections",
		"platform_listings",
		"product_platform_overrides",
		"product_templates",
		"product_variants",
		"products",
		"sales_channels",
		"template_platform_mappings",
	}, tables)

	require.NoError(t, m.Steps(-1))
	version, _, err = m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)

	require.NoError(t, m.Down())
	version, _, err = m.Version()
	require.NoError(t, err)
	assert.Zero(t, version)
}

func TestMigrator_ListingUniquePerChannel(t *testing.T) {
	db := startPostgres(t)

	m, err := New(db, migrations.FS, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up())

	const (
		store   = "00000000-0000-0000-0000-000000000001"
		product = "00000000-0000-0000-0000-000000000002"
		channel = "00000000-0000-0000-0000-000000000003"
	)
	_, err = db.Exec(`INSERT INTO products (id, store_id, title) VALUES ($1, $2, 'Mug')`, product, store)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO sales_channels (id, store_id, type, name) VALUES ($1, $2, 'ebay', 'eBay US')`, channel, store)
	require.NoError(t, err)

	insert := `INSERT INTO platform_listings (id, store_id, product_id, sales_channel_id) VALUES ($1, $2, $3, $4)`
	_, err = db.Exec(insert, "00000000-0000-0000-0000-000000000010", store, product, channel)
	require.NoError(t, err)
	_, err = db.Exec(insert, "00000000-0000-0000-0000-000000000011", store, product, channel)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "idx_platform_listing_product_channel")

	_, err = db.Exec(`UPDATE platform_listings SET status = 'archived'`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chk_platform_listings_status")
}
