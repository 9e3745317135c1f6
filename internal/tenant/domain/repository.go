package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, tenant *Tenant) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Tenant, error)
	FindByShopDomain(ctx context.Context, db *gorm.DB, shopDomain string) (*Tenant, error)
	ListActiveWithCredential(ctx context.Context, db *gorm.DB) ([]*Tenant, error)
	UpdateAccessToken(ctx context.Context, db *gorm.DB, id snowflake.ID, accessToken *string) error
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status) error
}
