package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Upsert writes order and sets order.ID to the stored row id. Line items
	// are written separately.
	Upsert(ctx context.Context, db *gorm.DB, order *Order) error
	UpsertLineItem(ctx context.Context, db *gorm.DB, item *LineItem) error
	PruneLineItems(ctx context.Context, db *gorm.DB, tenantID, orderID snowflake.ID, keep []string) (int64, error)
	FindByExternalID(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, externalID string) (*Order, error)
}
