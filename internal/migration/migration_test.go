package migration

import (
	"fmt"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	productdomain "github.com/smallbiznis/storesync/internal/product/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

func TestMigrateFallsBackToAutoMigrate(t *testing.T) {
	conn := newTestDB(t)

	require.NoError(t, Migrate(conn))
	require.NoError(t, Migrate(conn))

	for _, table := range []string{
		"tenants", "customers", "products", "product_variants", "orders",
		"order_line_items", "sync_logs", "sync_checkpoints", "webhook_receipts", "custom_events",
	} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
	assert.True(t, conn.Migrator().HasIndex("webhook_receipts", "ux_webhook_receipts_tenant_topic_event"))
}

func TestMigrateSurvivesRestartsWithExistingRows(t *testing.T) {
	conn := newTestDB(t)
	require.NoError(t, Migrate(conn))

	now := time.Now().UTC()
	product := productdomain.Product{
		ID:         snowflake.ID(10),
		TenantID:   snowflake.ID(1),
		ExternalID: "p-1",
		Title:      "Shirt",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, conn.Omit("Variants").Create(&product).Error)

	variant := productdomain.ProductVariant{
		ID:         snowflake.ID(11),
		TenantID:   snowflake.ID(1),
		ProductID:  snowflake.ID(10),
		ExternalID: "v-1",
		Price:      decimal.RequireFromString("19.9900"),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, conn.Create(&variant).Error)

	for i := 0; i < 3; i++ {
		require.NoError(t, Migrate(conn), "restart %d", i)
	}

	var stored productdomain.ProductVariant
	require.NoError(t, conn.First(&stored, "id = ?", variant.ID).Error)
	assert.True(t, stored.Price.Equal(variant.Price))
	assert.False(t, stored.CompareAtPrice.Valid)
}

func TestMigrateRestoresMissingIndex(t *testing.T) {
	conn := newTestDB(t)
	require.NoError(t, Migrate(conn))

	const index = "ux_webhook_receipts_tenant_topic_event"
	require.NoError(t, conn.Exec("DROP INDEX "+index).Error)
	require.False(t, conn.Migrator().HasIndex("webhook_receipts", index))

	require.NoError(t, Migrate(conn))
	assert.True(t, conn.Migrator().HasIndex("webhook_receipts", index))
}

func TestEmbeddedMigrationsCoverEveryTable(t *testing.T) {
	up, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/000001_init.up.sql")
	require.NoError(t, err)
	down, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/000001_init.down.sql")
	require.NoError(t, err)

	for _, table := range []string{
		"tenants", "customers", "products", "product_variants", "orders",
		"order_line_items", "sync_logs", "sync_checkpoints", "webhook_receipts", "custom_events",
	} {
		assert.Contains(t, string(up), "CREATE TABLE IF NOT EXISTS "+table+" (")
		assert.Contains(t, string(down), "DROP TABLE IF EXISTS "+table+";")
	}
	assert.Equal(t, len(Models()), strings.Count(string(up), "CREATE TABLE"))
}

func TestMigrateRequiresHandle(t *testing.T) {
	assert.Error(t, Migrate(nil))
	assert.Error(t, RunMigrations(nil))
}
