package domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storesync/internal/source"
	tenantdomain "github.com/smallbiznis/storesync/internal/tenant/domain"
	"github.com/smallbiznis/storesync/pkg/db/pagination"
	"gorm.io/gorm"
)

const (
	DefaultLogLimit = 20
	MaxLogLimit     = 100
)

type TriggerRequest struct {
	TenantID    string
	EntityTypes []string
}

type EntityResult struct {
	Success   bool   `json:"success"`
	Processed int    `json:"processed"`
	Error     string `json:"error,omitempty"`
}

// TriggerResponse is keyed by entity type.
type TriggerResponse map[string]EntityResult

type ListLogsRequest struct {
	TenantID  string
	Limit     int
	PageToken string
}

type ListLogsResponse struct {
	pagination.PageInfo
	Logs []SyncLog `json:"logs"`
}

type Service interface {
	// Sync runs one full paginated sync of entityType for tenant.
	Sync(ctx context.Context, tenant tenantdomain.Tenant, entityType EntityType, trigger Trigger) (Result, error)
	Trigger(ctx context.Context, req TriggerRequest) (TriggerResponse, error)
	ListLogs(ctx context.Context, req ListLogsRequest) (ListLogsResponse, error)
	ListCheckpoints(ctx context.Context, tenantID string) ([]SyncCheckpoint, error)
}

// Writer persists decoded source records inside the caller's transaction.
type Writer interface {
	Write(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, entityType EntityType, raw json.RawMessage) (Written, error)
	ResolveCustomerID(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, externalID *string) (*snowflake.ID, error)
}

// PageFetcher reads one page from the source API.
type PageFetcher interface {
	FetchPage(ctx context.Context, req source.PageRequest) ([]json.RawMessage, error)
}

// SyncLock serializes runs per (tenant, entity type) when configured.
type SyncLock interface {
	TryLockSync(ctx context.Context, tenantID, entityType string) (token string, ok bool, err error)
	ReleaseSync(ctx context.Context, tenantID, entityType, token string) error
}

// TriggerLimiter throttles manual triggers per tenant.
type TriggerLimiter interface {
	AllowTrigger(ctx context.Context, tenantID string) (allowed bool, retryAfter time.Duration, err error)
}

var (
	ErrInvalidEntityType  = errors.New("invalid_entity_type")
	ErrSyncInProgress     = errors.New("sync_in_progress")
	ErrTriggerRateLimited = errors.New("trigger_rate_limited")
	ErrInvalidTenantID    = errors.New("invalid_tenant_id")
)
