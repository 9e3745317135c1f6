package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	// InsertReceipt reports false when the receipt already exists.
	InsertReceipt(ctx context.Context, db *gorm.DB, receipt *Receipt) (bool, error)
	InsertCustomEvent(ctx context.Context, db *gorm.DB, event *CustomEvent) error
}
