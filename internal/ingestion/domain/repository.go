package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storesync/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	CreateLog(ctx context.Context, db *gorm.DB, log *SyncLog) error
	// CompleteLog and FailLog only touch rows still running; they report
	// whether a row was updated.
	CompleteLog(ctx context.Context, db *gorm.DB, id snowflake.ID, processed int, finishedAt time.Time) (bool, error)
	FailLog(ctx context.Context, db *gorm.DB, id snowflake.ID, processed int, message string, finishedAt time.Time) (bool, error)
	FindLogByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*SyncLog, error)
	ListLogs(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, page pagination.Pagination) ([]*SyncLog, error)

	GetCheckpoint(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, entityType string) (*time.Time, error)
	// RaiseCheckpoint stores max(current, at) atomically.
	RaiseCheckpoint(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, entityType string, at time.Time) error
	ListCheckpoints(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]*SyncCheckpoint, error)
}
