package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storesync/internal/product/domain"
	"github.com/smallbiznis/storesync/pkg/db"
	"gorm.io/gorm"
)

var tenantExternalKey = []string{"tenant_id", "external_id"}

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, tx *gorm.DB, product *domain.Product) error {
	if err := db.UpsertOnKey(ctx, tx, product, tenantExternalKey, product.UpdateColumns()); err != nil {
		return err
	}
	id, err := db.FindIDByTenantExternalID(ctx, tx, &domain.Product{}, int64(product.TenantID), product.ExternalID)
	if err != nil {
		return err
	}
	if id == 0 {
		return errors.New("product upsert: row not found after write")
	}
	product.ID = snowflake.ID(id)
	return nil
}

func (r *repo) UpsertVariant(ctx context.Context, tx *gorm.DB, variant *domain.ProductVariant) error {
	if err := db.UpsertOnKey(ctx, tx, variant, tenantExternalKey, domain.VariantMutableColumns); err != nil {
		return err
	}
	id, err := db.FindIDByTenantExternalID(ctx, tx, &domain.ProductVariant{}, int64(variant.TenantID), variant.ExternalID)
	if err != nil {
		return err
	}
	if id == 0 {
		return errors.New("variant upsert: row not found after write")
	}
	variant.ID = snowflake.ID(id)
	return nil
}

func (r *repo) PruneVariants(ctx context.Context, tx *gorm.DB, tenantID, productID snowflake.ID, keep []string) (int64, error) {
	stmt := tx.WithContext(ctx).Where("tenant_id = ? AND product_id = ?", tenantID, productID)
	if len(keep) > 0 {
		stmt = stmt.Where("external_id NOT IN ?", keep)
	}
	result := stmt.Delete(&domain.ProductVariant{})
	return result.RowsAffected, result.Error
}

func (r *repo) FindByExternalID(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, externalID string) (*domain.Product, error) {
	var product domain.Product
	err := tx.WithContext(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB {
			return db.Order("position asc, id asc")
		}).
		Where("tenant_id = ? AND external_id = ?", tenantID, externalID).
		Limit(1).
		Find(&product).Error
	if err != nil {
		return nil, err
	}
	if product.ID == 0 {
		return nil, nil
	}
	return &product, nil
}
