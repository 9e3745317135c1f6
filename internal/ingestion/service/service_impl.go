package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storesync/internal/clock"
	"github.com/smallbiznis/storesync/internal/config"
	"github.com/smallbiznis/storesync/internal/ingestion/domain"
	"github.com/smallbiznis/storesync/internal/observability/logger"
	"github.com/smallbiznis/storesync/internal/observability/metrics"
	"github.com/smallbiznis/storesync/internal/observability/tracing"
	"github.com/smallbiznis/storesync/internal/source"
	tenantdomain "github.com/smallbiznis/storesync/internal/tenant/domain"
	"github.com/smallbiznis/storesync/pkg/db/pagination"
	"github.com/smallbiznis/storesync/pkg/rls"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const finalizeTimeout = 5 * time.Second

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Writer   domain.Writer
	Source   domain.PageFetcher
	Tenants  tenantdomain.Service
	Settings *config.SyncSettingsHolder `optional:"true"`
	Metrics  *metrics.Metrics           `optional:"true"`
	Lock     domain.SyncLock            `optional:"true"`
	Limiter  domain.TriggerLimiter      `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	writer   domain.Writer
	source   domain.PageFetcher
	tenants  tenantdomain.Service
	settings *config.SyncSettingsHolder
	metrics  *metrics.Metrics
	lock     domain.SyncLock
	limiter  domain.TriggerLimiter
	tracer   trace.Tracer
}

func New(p Params) domain.Service {
	settings := p.Settings
	if settings == nil {
		settings = config.NewStaticSyncSettingsHolder(config.DefaultSyncSettings())
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("ingestion.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		writer:   p.Writer,
		source:   p.Source,
		tenants:  p.Tenants,
		settings: settings,
		metrics:  p.Metrics,
		lock:     p.Lock,
		limiter:  p.Limiter,
		tracer:   otel.Tracer("storesync/ingestion"),
	}
}

func (s *Service) Sync(ctx context.Context, tenant tenantdomain.Tenant, entityType domain.EntityType, trigger domain.Trigger) (domain.Result, error) {
	if _, err := source.ParseEntityType(string(entityType)); err != nil {
		return domain.Result{}, domain.ErrInvalidEntityType
	}
	credential, err := s.tenants.ResolveCredential(tenant)
	if err != nil {
		return domain.Result{}, err
	}

	release, err := s.acquire(ctx, tenant.ID, entityType)
	if err != nil {
		return domain.Result{}, err
	}
	defer release()

	ctx, span := s.tracer.Start(ctx, "ingestion.sync", trace.WithAttributes(tracing.SafeAttributes(
		attribute.String("tenant_id", tenant.ID.String()),
		attribute.String("entity_type", string(entityType)),
		attribute.String("trigger", string(trigger)),
	)...))
	defer span.End()

	log := logger.WithContext(ctx, s.log).With(
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("entity_type", string(entityType)),
		zap.String("trigger", string(trigger)),
	)

	started := s.clock.Now()
	syncLog := &domain.SyncLog{
		ID:         s.genID.Generate(),
		TenantID:   tenant.ID,
		EntityType: string(entityType),
		Trigger:    trigger,
		Status:     domain.SyncStatusRunning,
		StartedAt:  started,
	}
	if err := s.repo.CreateLog(ctx, s.db, syncLog); err != nil {
		span.SetStatus(codes.Error, "open sync log")
		return domain.Result{}, fmt.Errorf("open sync log: %w", err)
	}
	log = log.With(zap.String("sync_log_id", syncLog.ID.String()))
	log.Info("sync started")

	result := domain.Result{LogID: syncLog.ID, EntityType: entityType, Status: domain.SyncStatusRunning}

	processed, runMax, runErr := s.run(ctx, tenant, credential, entityType)
	result.Processed = processed
	if runErr == nil && processed > 0 && runMax != nil {
		if err := s.repo.RaiseCheckpoint(ctx, s.db, tenant.ID, string(entityType), *runMax); err != nil {
			runErr = fmt.Errorf("raise checkpoint: %w", err)
		}
	}

	if runErr != nil {
		result.Status = domain.SyncStatusFailed
		span.RecordError(tracing.SafeError(runErr))
		span.SetStatus(codes.Error, "sync failed")
		if err := s.finish(ctx, syncLog.ID, processed, runErr); err != nil {
			log.Error("failed to mark sync log failed", zap.Error(err))
		}
		s.observe(ctx, entityType, trigger, result, started)
		log.Warn("sync failed",
			zap.Int("records_processed", processed),
			zap.String("error_type", metrics.ClassifySyncErrorType(runErr)),
			zap.Error(runErr),
		)
		return result, runErr
	}

	if err := s.finish(ctx, syncLog.ID, processed, nil); err != nil {
		result.Status = domain.SyncStatusFailed
		span.SetStatus(codes.Error, "complete sync log")
		s.observe(ctx, entityType, trigger, result, started)
		return result, fmt.Errorf("complete sync log: %w", err)
	}

	result.Status = domain.SyncStatusCompleted
	span.SetAttributes(attribute.Int("records_processed", processed))
	s.observe(ctx, entityType, trigger, result, started)
	log.Info("sync completed",
		zap.Int("records_processed", processed),
		zap.Duration("duration", s.clock.Now().Sub(started)),
	)
	return result, nil
}

// run pages through the source until an empty or short page. The returned
// count only includes records from committed pages.
func (s *Service) run(ctx context.Context, tenant tenantdomain.Tenant, credential string, entityType domain.EntityType) (int, *time.Time, error) {
	checkpoint, err := s.repo.GetCheckpoint(ctx, s.db, tenant.ID, string(entityType))
	if err != nil {
		return 0, nil, fmt.Errorf("read checkpoint: %w", err)
	}

	pageSize := s.pageSize()
	var (
		processed int
		runMax    *time.Time
		cursor    string
	)
	for {
		page, err := s.source.FetchPage(ctx, source.PageRequest{
			Domain:       tenant.ShopDomain,
			Credential:   credential,
			EntityType:   entityType,
			Limit:        pageSize,
			SinceID:      cursor,
			UpdatedSince: checkpoint,
		})
		if err != nil {
			return processed, nil, err
		}
		if len(page) == 0 {
			break
		}

		var (
			lastID  string
			pageMax *time.Time
		)
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := rls.WithTenant(tx, int64(tenant.ID)); err != nil {
				return err
			}
			for _, raw := range page {
				written, err := s.writer.Write(ctx, tx, tenant.ID, entityType, raw)
				if err != nil {
					return err
				}
				lastID = written.ExternalID
				pageMax = later(pageMax, written.SourceUpdatedAt)
			}
			return nil
		})
		if err != nil {
			return processed, nil, err
		}

		processed += len(page)
		runMax = later(runMax, pageMax)

		if len(page) < pageSize {
			break
		}
		if lastID == cursor {
			return processed, nil, fmt.Errorf("%w: cursor did not advance past %s", source.ErrMalformedPage, cursor)
		}
		cursor = lastID
	}
	return processed, runMax, nil
}

// finish moves the log out of running. It uses a detached context so a
// cancelled run still records its failure.
func (s *Service) finish(ctx context.Context, id snowflake.ID, processed int, runErr error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	now := s.clock.Now()
	if runErr != nil {
		_, err := s.repo.FailLog(ctx, s.db, id, processed, runErr.Error(), now)
		return err
	}
	_, err := s.repo.CompleteLog(ctx, s.db, id, processed, now)
	return err
}

func (s *Service) acquire(ctx context.Context, tenantID snowflake.ID, entityType domain.EntityType) (func(), error) {
	if s.lock == nil {
		return func() {}, nil
	}
	token, ok, err := s.lock.TryLockSync(ctx, tenantID.String(), string(entityType))
	if err != nil {
		return nil, fmt.Errorf("acquire sync lock: %w", err)
	}
	if !ok {
		return nil, domain.ErrSyncInProgress
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
		defer cancel()
		if err := s.lock.ReleaseSync(releaseCtx, tenantID.String(), string(entityType), token); err != nil {
			s.log.Warn("failed to release sync lock",
				zap.String("tenant_id", tenantID.String()),
				zap.String("entity_type", string(entityType)),
				zap.Error(err),
			)
		}
	}, nil
}

func (s *Service) observe(ctx context.Context, entityType domain.EntityType, trigger domain.Trigger, result domain.Result, started time.Time) {
	duration := s.clock.Now().Sub(started)
	metrics.Sync().ObserveSyncRun(string(entityType), string(trigger), string(result.Status), result.Processed, duration)
	s.metrics.RecordSyncRun(ctx, string(entityType), string(trigger), string(result.Status))
	s.metrics.RecordIngested(ctx, string(entityType), string(trigger), result.Processed)
}

func (s *Service) pageSize() int {
	size := s.settings.Get().PageSize
	if size <= 0 || size > source.MaxPageSize {
		return source.MaxPageSize
	}
	return size
}

func (s *Service) Trigger(ctx context.Context, req domain.TriggerRequest) (domain.TriggerResponse, error) {
	tenant, err := s.activeTenant(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}

	entityTypes, err := parseEntityTypes(req.EntityTypes)
	if err != nil {
		return nil, err
	}

	if _, err := s.tenants.ResolveCredential(tenant); err != nil {
		return nil, err
	}

	if s.limiter != nil {
		allowed, retryAfter, err := s.limiter.AllowTrigger(ctx, tenant.ID.String())
		switch {
		case err != nil:
			s.log.Warn("trigger limiter unavailable", zap.Error(err))
			s.metrics.RecordTrigger(ctx, metrics.TriggerLimiterUnavailable)
		case !allowed:
			s.metrics.RecordTrigger(ctx, metrics.TriggerThrottled)
			return nil, fmt.Errorf("%w: retry after %s", domain.ErrTriggerRateLimited, retryAfter)
		default:
			s.metrics.RecordTrigger(ctx, metrics.TriggerAllowed)
		}
	}

	resp := make(domain.TriggerResponse, len(entityTypes))
	for _, entityType := range entityTypes {
		result, err := s.Sync(ctx, tenant, entityType, domain.TriggerManual)
		if err != nil {
			resp[string(entityType)] = domain.EntityResult{Success: false, Processed: result.Processed, Error: err.Error()}
			continue
		}
		resp[string(entityType)] = domain.EntityResult{Success: true, Processed: result.Processed}
	}
	return resp, nil
}

func (s *Service) ListLogs(ctx context.Context, req domain.ListLogsRequest) (domain.ListLogsResponse, error) {
	tenant, err := s.tenant(ctx, req.TenantID)
	if err != nil {
		return domain.ListLogsResponse{}, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = domain.DefaultLogLimit
	}
	if limit > domain.MaxLogLimit {
		limit = domain.MaxLogLimit
	}

	if req.PageToken != "" {
		if _, err := pagination.DecodeCursor(req.PageToken); err != nil {
			return domain.ListLogsResponse{}, err
		}
	}

	items, err := s.repo.ListLogs(ctx, s.db, tenant.ID, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  limit,
	})
	if err != nil {
		return domain.ListLogsResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, int32(limit), func(l *domain.SyncLog) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        l.ID.String(),
			CreatedAt: l.StartedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > limit {
		items = items[:limit]
	}

	resp := domain.ListLogsResponse{Logs: make([]domain.SyncLog, 0, len(items))}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	for _, item := range items {
		if item != nil {
			resp.Logs = append(resp.Logs, *item)
		}
	}
	return resp, nil
}

func (s *Service) ListCheckpoints(ctx context.Context, tenantID string) ([]domain.SyncCheckpoint, error) {
	tenant, err := s.tenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListCheckpoints(ctx, s.db, tenant.ID)
	if err != nil {
		return nil, err
	}
	checkpoints := make([]domain.SyncCheckpoint, 0, len(items))
	for _, item := range items {
		if item != nil {
			checkpoints = append(checkpoints, *item)
		}
	}
	return checkpoints, nil
}

func (s *Service) tenant(ctx context.Context, rawID string) (tenantdomain.Tenant, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil {
		return tenantdomain.Tenant{}, domain.ErrInvalidTenantID
	}
	return s.tenants.GetByID(ctx, id)
}

func (s *Service) activeTenant(ctx context.Context, rawID string) (tenantdomain.Tenant, error) {
	tenant, err := s.tenant(ctx, rawID)
	if err != nil {
		return tenantdomain.Tenant{}, err
	}
	if !tenant.IsActive() {
		return tenantdomain.Tenant{}, tenantdomain.ErrTenantNotFound
	}
	return tenant, nil
}

// parseEntityTypes returns the requested types in dependency order. An empty
// request means all types.
func parseEntityTypes(values []string) ([]domain.EntityType, error) {
	if len(values) == 0 {
		return source.AllEntityTypes(), nil
	}
	requested := make(map[domain.EntityType]struct{}, len(values))
	for _, value := range values {
		entityType, err := source.ParseEntityType(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidEntityType, value)
		}
		requested[entityType] = struct{}{}
	}
	ordered := make([]domain.EntityType, 0, len(requested))
	for _, entityType := range source.AllEntityTypes() {
		if _, ok := requested[entityType]; ok {
			ordered = append(ordered, entityType)
		}
	}
	return ordered, nil
}

func later(current, candidate *time.Time) *time.Time {
	if candidate == nil {
		return current
	}
	if current == nil || candidate.After(*current) {
		at := candidate.UTC()
		return &at
	}
	return current
}
