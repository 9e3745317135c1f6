package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storesync/internal/order/domain"
	"github.com/smallbiznis/storesync/pkg/db"
	"gorm.io/gorm"
)

var tenantExternalKey = []string{"tenant_id", "external_id"}

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, tx *gorm.DB, order *domain.Order) error {
	if err := db.UpsertOnKey(ctx, tx, order, tenantExternalKey, domain.MutableColumns); err != nil {
		return err
	}
	id, err := db.FindIDByTenantExternalID(ctx, tx, &domain.Order{}, int64(order.TenantID), order.ExternalID)
	if err != nil {
		return err
	}
	if id == 0 {
		return errors.New("order upsert: row not found after write")
	}
	order.ID = snowflake.ID(id)
	return nil
}

func (r *repo) UpsertLineItem(ctx context.Context, tx *gorm.DB, item *domain.LineItem) error {
	if err := db.UpsertOnKey(ctx, tx, item, tenantExternalKey, domain.LineItemMutableColumns); err != nil {
		return err
	}
	id, err := db.FindIDByTenantExternalID(ctx, tx, &domain.LineItem{}, int64(item.TenantID), item.ExternalID)
	if err != nil {
		return err
	}
	if id == 0 {
		return errors.New("line item upsert: row not found after write")
	}
	item.ID = snowflake.ID(id)
	return nil
}

func (r *repo) PruneLineItems(ctx context.Context, tx *gorm.DB, tenantID, orderID snowflake.ID, keep []string) (int64, error) {
	stmt := tx.WithContext(ctx).Where("tenant_id = ? AND order_id = ?", tenantID, orderID)
	if len(keep) > 0 {
		stmt = stmt.Where("external_id NOT IN ?", keep)
	}
	result := stmt.Delete(&domain.LineItem{})
	return result.RowsAffected, result.Error
}

func (r *repo) FindByExternalID(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, externalID string) (*domain.Order, error) {
	var order domain.Order
	err := tx.WithContext(ctx).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("id asc")
		}).
		Where("tenant_id = ? AND external_id = ?", tenantID, externalID).
		Limit(1).
		Find(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	return &order, nil
}
