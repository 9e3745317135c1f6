package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Upsert writes product and sets product.ID to the stored row id.
	// Variants are written separately.
	Upsert(ctx context.Context, db *gorm.DB, product *Product) error
	UpsertVariant(ctx context.Context, db *gorm.DB, variant *ProductVariant) error
	// PruneVariants deletes variants of productID whose external id is not in keep.
	PruneVariants(ctx context.Context, db *gorm.DB, tenantID, productID snowflake.ID, keep []string) (int64, error)
	FindByExternalID(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, externalID string) (*Product, error)
}
