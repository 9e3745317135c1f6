package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storesync/internal/ingestion/domain"
	"github.com/smallbiznis/storesync/pkg/db"
	"github.com/smallbiznis/storesync/pkg/db/option"
	"github.com/smallbiznis/storesync/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) CreateLog(ctx context.Context, tx *gorm.DB, log *domain.SyncLog) error {
	return tx.WithContext(ctx).Create(log).Error
}

func (r *repo) CompleteLog(ctx context.Context, tx *gorm.DB, id snowflake.ID, processed int, finishedAt time.Time) (bool, error) {
	return r.finishLog(ctx, tx, id, map[string]any{
		"status":            domain.SyncStatusCompleted,
		"records_processed": processed,
		"finished_at":       finishedAt,
	})
}

func (r *repo) FailLog(ctx context.Context, tx *gorm.DB, id snowflake.ID, processed int, message string, finishedAt time.Time) (bool, error) {
	return r.finishLog(ctx, tx, id, map[string]any{
		"status":            domain.SyncStatusFailed,
		"records_processed": processed,
		"error_message":     message,
		"finished_at":       finishedAt,
	})
}

func (r *repo) finishLog(ctx context.Context, tx *gorm.DB, id snowflake.ID, updates map[string]any) (bool, error) {
	result := tx.WithContext(ctx).
		Model(&domain.SyncLog{}).
		Where("id = ? AND status = ?", id, domain.SyncStatusRunning).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindLogByID(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.SyncLog, error) {
	var log domain.SyncLog
	err := tx.WithContext(ctx).Where("id = ?", id).First(&log).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &log, nil
}

func (r *repo) ListLogs(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, page pagination.Pagination) ([]*domain.SyncLog, error) {
	var logs []*domain.SyncLog
	stmt := tx.WithContext(ctx).
		Model(&domain.SyncLog{}).
		Where("tenant_id = ?", tenantID)
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("id desc").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *repo) GetCheckpoint(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, entityType string) (*time.Time, error) {
	var checkpoint domain.SyncCheckpoint
	err := tx.WithContext(ctx).
		Where("tenant_id = ? AND entity_type = ?", tenantID, entityType).
		First(&checkpoint).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	at := checkpoint.LastUpdatedAt.UTC()
	return &at, nil
}

func (r *repo) RaiseCheckpoint(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, entityType string, at time.Time) error {
	checkpoint := domain.SyncCheckpoint{
		TenantID:      tenantID,
		EntityType:    entityType,
		LastUpdatedAt: at.UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "entity_type"}},
			DoUpdates: clause.Set{
				{Column: clause.Column{Name: "last_updated_at"}, Value: raiseExpr(tx)},
				{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr(excluded(tx, "updated_at"))},
			},
		}).
		Create(&checkpoint).Error
}

func raiseExpr(tx *gorm.DB) clause.Expr {
	if db.IsMySQL(tx) {
		return gorm.Expr("GREATEST(sync_checkpoints.last_updated_at, VALUES(last_updated_at))")
	}
	return gorm.Expr("CASE WHEN excluded.last_updated_at > sync_checkpoints.last_updated_at THEN excluded.last_updated_at ELSE sync_checkpoints.last_updated_at END")
}

func excluded(tx *gorm.DB, column string) string {
	if db.IsMySQL(tx) {
		return "VALUES(" + column + ")"
	}
	return "excluded." + column
}

func (r *repo) ListCheckpoints(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID) ([]*domain.SyncCheckpoint, error) {
	var checkpoints []*domain.SyncCheckpoint
	err := tx.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("entity_type asc").
		Find(&checkpoints).Error
	if err != nil {
		return nil, err
	}
	return checkpoints, nil
}
