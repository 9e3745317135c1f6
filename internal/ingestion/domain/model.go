package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storesync/internal/source"
)

type EntityType = source.EntityType

type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

type SyncStatus string

const (
	SyncStatusRunning   SyncStatus = "running"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusFailed    SyncStatus = "failed"
)

// SyncLog records one orchestrator run. Rows leave "running" exactly once.
type SyncLog struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID         snowflake.ID `gorm:"not null;index:ix_sync_logs_tenant_started,priority:1" json:"tenant_id"`
	EntityType       string       `gorm:"type:varchar(32);not null" json:"entity_type"`
	Trigger          Trigger      `gorm:"type:varchar(16);not null" json:"trigger"`
	Status           SyncStatus   `gorm:"type:varchar(16);not null;index" json:"status"`
	RecordsProcessed int          `gorm:"not null" json:"records_processed"`
	ErrorMessage     *string      `gorm:"type:text" json:"error_message,omitempty"`
	StartedAt        time.Time    `gorm:"not null;index:ix_sync_logs_tenant_started,priority:2" json:"started_at"`
	FinishedAt       *time.Time   `json:"finished_at,omitempty"`
}

func (SyncLog) TableName() string { return "sync_logs" }

// SyncCheckpoint is the high-water mark of source updated_at per
// (tenant, entity type). LastUpdatedAt never moves backwards.
type SyncCheckpoint struct {
	TenantID      snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"tenant_id"`
	EntityType    string       `gorm:"primaryKey;type:varchar(32)" json:"entity_type"`
	LastUpdatedAt time.Time    `gorm:"not null" json:"last_updated_at"`
	UpdatedAt     time.Time    `gorm:"not null" json:"updated_at"`
}

func (SyncCheckpoint) TableName() string { return "sync_checkpoints" }

// Result summarises one Sync call.
type Result struct {
	LogID      snowflake.ID `json:"log_id"`
	EntityType EntityType   `json:"entity_type"`
	Processed  int          `json:"processed"`
	Status     SyncStatus   `json:"status"`
}

// Written describes one record persisted by a Writer.
type Written struct {
	ID              snowflake.ID
	ExternalID      string
	SourceUpdatedAt *time.Time
}
