package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storesync/internal/customer/domain"
	"github.com/smallbiznis/storesync/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, tx *gorm.DB, customer *domain.Customer) error {
	if err := db.UpsertOnKey(ctx, tx, customer, []string{"tenant_id", "external_id"}, domain.MutableColumns); err != nil {
		return err
	}
	id, err := r.FindIDByExternalID(ctx, tx, customer.TenantID, customer.ExternalID)
	if err != nil {
		return err
	}
	if id == nil {
		return errors.New("customer upsert: row not found after write")
	}
	customer.ID = *id
	return nil
}

func (r *repo) FindByExternalID(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, externalID string) (*domain.Customer, error) {
	var customer domain.Customer
	err := tx.WithContext(ctx).
		Where("tenant_id = ? AND external_id = ?", tenantID, externalID).
		Limit(1).
		Find(&customer).Error
	if err != nil {
		return nil, err
	}
	if customer.ID == 0 {
		return nil, nil
	}
	return &customer, nil
}

func (r *repo) FindIDByExternalID(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, externalID string) (*snowflake.ID, error) {
	id, err := db.FindIDByTenantExternalID(ctx, tx, &domain.Customer{}, int64(tenantID), externalID)
	if err != nil || id == 0 {
		return nil, err
	}
	sid := snowflake.ID(id)
	return &sid, nil
}
