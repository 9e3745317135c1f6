package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Upsert writes customer and sets customer.ID to the stored row id.
	Upsert(ctx context.Context, db *gorm.DB, customer *Customer) error
	FindByExternalID(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, externalID string) (*Customer, error)
	// FindIDByExternalID returns nil when the customer has not been ingested.
	FindIDByExternalID(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, externalID string) (*snowflake.ID, error)
}
