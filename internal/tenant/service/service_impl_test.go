package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/storesync/internal/clock"
	"github.com/smallbiznis/storesync/internal/config"
	"github.com/smallbiznis/storesync/internal/source"
	"github.com/smallbiznis/storesync/internal/tenant/domain"
	"github.com/smallbiznis/storesync/internal/tenant/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&domain.Tenant{}))
	return db
}

func newTestService(t *testing.T, db *gorm.DB, key string) *Service {
	t.Helper()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc, err := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Cfg:   config.Config{CredentialKey: key},
		Clock: clock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	return svc.(*Service)
}

func TestEnsureCreatesThenRefreshesTenant(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db, "")
	ctx := context.Background()

	created, err := svc.Ensure(ctx, domain.EnsureTenantRequest{ShopDomain: "Demo.myshopify.com"})
	require.NoError(t, err)
	assert.Equal(t, "demo.myshopify.com", created.ShopDomain)
	assert.Equal(t, domain.StatusActive, created.Status)
	assert.False(t, created.HasCredential())

	updated, err := svc.Ensure(ctx, domain.EnsureTenantRequest{ShopDomain: "demo.myshopify.com", AccessToken: "shpat_1"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)

	got, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	token, err := svc.ResolveCredential(got)
	require.NoError(t, err)
	assert.Equal(t, "shpat_1", token)

	var count int64
	require.NoError(t, db.Model(&domain.Tenant{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestEnsureSealsTokenWhenKeyConfigured(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db, "local-secret")

	tenant, err := svc.Ensure(context.Background(), domain.EnsureTenantRequest{ShopDomain: "demo.myshopify.com", AccessToken: "shpat_secret"})
	require.NoError(t, err)
	require.NotNil(t, tenant.AccessToken)
	assert.NotEqual(t, "shpat_secret", *tenant.AccessToken)
	assert.Contains(t, *tenant.AccessToken, credentialPrefix)

	token, err := svc.ResolveCredential(tenant)
	require.NoError(t, err)
	assert.Equal(t, "shpat_secret", token)
}

func TestGetByIDNotFound(t *testing.T) {
	svc := newTestService(t, setupTestDB(t), "")
	_, err := svc.GetByID(context.Background(), 12345)
	assert.ErrorIs(t, err, domain.ErrTenantNotFound)
}

func TestGetActiveByShopDomain(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db, "")
	ctx := context.Background()

	_, err := svc.GetActiveByShopDomain(ctx, "not a domain")
	assert.ErrorIs(t, err, source.ErrInvalidShopDomain)

	_, err = svc.GetActiveByShopDomain(ctx, "missing.myshopify.com")
	assert.ErrorIs(t, err, domain.ErrTenantNotFound)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&domain.Tenant{ID: 7, ShopDomain: "off.myshopify.com", Status: domain.StatusInactive, CreatedAt: now, UpdatedAt: now}).Error)
	_, err = svc.GetActiveByShopDomain(ctx, "off.myshopify.com")
	assert.ErrorIs(t, err, domain.ErrTenantNotFound)

	created, err := svc.Ensure(ctx, domain.EnsureTenantRequest{ShopDomain: "on.myshopify.com"})
	require.NoError(t, err)
	got, err := svc.GetActiveByShopDomain(ctx, "ON.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestListSyncableSkipsInactiveAndMissingCredential(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db, "")
	ctx := context.Background()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	token := "shpat"
	empty := ""
	require.NoError(t, db.Create([]*domain.Tenant{
		{ID: 1, ShopDomain: "a.myshopify.com", AccessToken: &token, Status: domain.StatusActive, CreatedAt: now, UpdatedAt: now},
		{ID: 2, ShopDomain: "b.myshopify.com", Status: domain.StatusActive, CreatedAt: now, UpdatedAt: now},
		{ID: 3, ShopDomain: "c.myshopify.com", AccessToken: &empty, Status: domain.StatusActive, CreatedAt: now, UpdatedAt: now},
		{ID: 4, ShopDomain: "d.myshopify.com", AccessToken: &token, Status: domain.StatusInactive, CreatedAt: now, UpdatedAt: now},
	}).Error)

	tenants, err := svc.ListSyncable(ctx)
	require.NoError(t, err)
	require.Len(t, tenants, 1)
	assert.EqualValues(t, 1, tenants[0].ID)
}

func TestResolveCredentialMissing(t *testing.T) {
	svc := newTestService(t, setupTestDB(t), "")
	_, err := svc.ResolveCredential(domain.Tenant{ID: 1})
	assert.ErrorIs(t, err, domain.ErrMissingCredential)
}

func TestSetStatusStopsCachedWebhookResolution(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db, "")
	ctx := context.Background()

	created, err := svc.Ensure(ctx, domain.EnsureTenantRequest{ShopDomain: "shop.myshopify.com"})
	require.NoError(t, err)
	_, err = svc.GetActiveByShopDomain(ctx, "shop.myshopify.com")
	require.NoError(t, err)
	_, cached := svc.cache.GetByShopDomain("shop.myshopify.com")
	require.True(t, cached)

	updated, err := svc.SetStatus(ctx, created.ID, domain.StatusInactive)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInactive, updated.Status)

	_, cached = svc.cache.GetByShopDomain("shop.myshopify.com")
	assert.False(t, cached)
	_, err = svc.GetActiveByShopDomain(ctx, "shop.myshopify.com")
	assert.ErrorIs(t, err, domain.ErrTenantNotFound)

	_, err = svc.SetStatus(ctx, created.ID, domain.StatusActive)
	require.NoError(t, err)
	got, err := svc.GetActiveByShopDomain(ctx, "shop.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestGetActiveByShopDomainIgnoresInactiveCacheEntry(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db, "")
	ctx := context.Background()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&domain.Tenant{ID: 9, ShopDomain: "stale.myshopify.com", Status: domain.StatusInactive, CreatedAt: now, UpdatedAt: now}).Error)
	svc.cache.SetByShopDomain("stale.myshopify.com", domain.Tenant{ID: 9, ShopDomain: "stale.myshopify.com", Status: domain.StatusInactive})

	_, err := svc.GetActiveByShopDomain(ctx, "stale.myshopify.com")
	assert.ErrorIs(t, err, domain.ErrTenantNotFound)
}

func TestSetStatusRejectsUnknownStatusAndTenant(t *testing.T) {
	svc := newTestService(t, setupTestDB(t), "")
	ctx := context.Background()

	_, err := svc.SetStatus(ctx, 1, domain.Status("paused"))
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = svc.SetStatus(ctx, 404, domain.StatusInactive)
	assert.ErrorIs(t, err, domain.ErrTenantNotFound)
}
