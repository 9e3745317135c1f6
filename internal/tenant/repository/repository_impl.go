package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storesync/internal/tenant/domain"
	"github.com/smallbiznis/storesync/pkg/db/option"
	"github.com/smallbiznis/storesync/pkg/repository"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tenant *domain.Tenant) error {
	return repository.Scoped[domain.Tenant](db).Create(ctx, tenant)
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Tenant, error) {
	return repository.Scoped[domain.Tenant](db).FindOne(ctx, &domain.Tenant{ID: id})
}

func (r *repo) FindByShopDomain(ctx context.Context, db *gorm.DB, shopDomain string) (*domain.Tenant, error) {
	return repository.Scoped[domain.Tenant](db).FindOne(ctx, &domain.Tenant{ShopDomain: shopDomain})
}

func (r *repo) ListActiveWithCredential(ctx context.Context, db *gorm.DB) ([]*domain.Tenant, error) {
	return repository.Scoped[domain.Tenant](db).Find(ctx,
		&domain.Tenant{Status: domain.StatusActive},
		option.WithWhere("access_token IS NOT NULL AND access_token <> ''"),
		option.WithOrder("id asc"),
	)
}

func (r *repo) UpdateAccessToken(ctx context.Context, db *gorm.DB, id snowflake.ID, accessToken *string) error {
	return repository.Scoped[domain.Tenant](db).UpdateColumns(ctx, id, map[string]any{
		"access_token": accessToken,
		"updated_at":   time.Now().UTC(),
	})
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.Status) error {
	return repository.Scoped[domain.Tenant](db).UpdateColumns(ctx, id, map[string]any{
		"status":     status,
		"updated_at": time.Now().UTC(),
	})
}
