package db

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertOnKey inserts value, or overwrites updateColumns of the row that
// already holds the same keyColumns. Associations are never written.
func UpsertOnKey(ctx context.Context, tx *gorm.DB, value any, keyColumns, updateColumns []string) error {
	if len(keyColumns) == 0 || len(updateColumns) == 0 {
		return errors.New("upsert requires key and update columns")
	}
	columns := make([]clause.Column, 0, len(keyColumns))
	for _, name := range keyColumns {
		columns = append(columns, clause.Column{Name: name})
	}
	return tx.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   columns,
			DoUpdates: clause.AssignmentColumns(updateColumns),
		}).
		Create(value).Error
}

// FindIDByTenantExternalID returns the local id stored for (tenantID,
// externalID) in model's table, or 0 when no row exists.
func FindIDByTenantExternalID(ctx context.Context, tx *gorm.DB, model any, tenantID int64, externalID string) (int64, error) {
	var ids []int64
	err := tx.WithContext(ctx).
		Model(model).
		Where("tenant_id = ? AND external_id = ?", tenantID, externalID).
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return ids[0], nil
}
