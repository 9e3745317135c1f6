package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storesync/internal/clock"
	"github.com/smallbiznis/storesync/internal/config"
	ingestiondomain "github.com/smallbiznis/storesync/internal/ingestion/domain"
	obscontext "github.com/smallbiznis/storesync/internal/observability/context"
	obsmetrics "github.com/smallbiznis/storesync/internal/observability/metrics"
	"github.com/smallbiznis/storesync/internal/source"
	tenantdomain "github.com/smallbiznis/storesync/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const jobSyncSweep = "sync_sweep"

var (
	ErrInvalidConfig  = errors.New("invalid_scheduler_config")
	ErrAlreadyRunning = errors.New("scheduler_already_running")
)

type Params struct {
	fx.In

	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Tenants   tenantdomain.Service
	Ingestion ingestiondomain.Service
	Settings  *config.SyncSettingsHolder `optional:"true"`
	Config    Config                     `optional:"true"`
}

type Scheduler struct {
	log       *zap.Logger
	cfg       Config
	genID     *snowflake.Node
	clock     clock.Clock
	tenants   tenantdomain.Service
	ingestion ingestiondomain.Service
	settings  *config.SyncSettingsHolder

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Tenants == nil || p.Ingestion == nil {
		return nil, ErrInvalidConfig
	}
	settings := p.Settings
	if settings == nil {
		settings = config.NewStaticSyncSettingsHolder(config.DefaultSyncSettings())
	}
	return &Scheduler{
		log:       p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:       p.Config.withDefaults(),
		genID:     p.GenID,
		clock:     p.Clock,
		tenants:   p.Tenants,
		ingestion: p.Ingestion,
		settings:  settings,
	}, nil
}

// Start launches the sweep loop in the background. The loop outlives ctx;
// use Stop to end it.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		s.RunForever(loopCtx)
	}()

	s.log.Info("scheduler started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Duration("initial_delay", s.cfg.InitialDelay),
	)
	return nil
}

// Stop cancels the loop and waits for an in-flight sweep to return, or for
// ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) RunForever(ctx context.Context) {
	if s.cfg.InitialDelay > 0 {
		timer := time.NewTimer(s.cfg.InitialDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	nextRun := s.clock.Now()
	schedMetrics := obsmetrics.Sync()

	for {
		if lag := s.clock.Now().Sub(nextRun); lag > 0 {
			schedMetrics.ObserveRunLoopLag(lag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler sweep finished with errors", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.Interval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs one sweep over every syncable tenant.
func (s *Scheduler) RunOnce(parent context.Context) error {
	return s.runJob(parent, jobSyncSweep, s.cfg.SweepTimeout, s.SweepJob)
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx = obscontext.WithActor(ctx, "system", "scheduler")
	ctx, run, owner := s.ensureJobRun(ctx, name)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Sync()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out", zap.Duration("timeout", timeout), zap.Error(err))
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

// SweepJob syncs every entity type for every active tenant with a
// credential. A failing tenant or entity never stops the sweep; failures
// are joined into the returned error.
func (s *Scheduler) SweepJob(ctx context.Context) error {
	tenants, err := s.tenants.ListSyncable(ctx)
	if err != nil {
		return fmt.Errorf("list syncable tenants: %w", err)
	}

	run := jobRunFromContext(ctx)
	entityTypes := s.entityTypes()
	schedMetrics := obsmetrics.Sync()

	var sweepErr error
	for _, tenant := range tenants {
		if err := ctx.Err(); err != nil {
			return errors.Join(sweepErr, err)
		}
		tenantCtx := s.withLogContext(ctx, tenant.ID)

	entities:
		for _, entityType := range entityTypes {
			result, err := s.ingestion.Sync(tenantCtx, tenant, entityType, ingestiondomain.TriggerScheduled)
			run.AddProcessed(result.Processed)

			switch {
			case err == nil:
			case errors.Is(err, tenantdomain.ErrMissingCredential), errors.Is(err, tenantdomain.ErrInvalidCredential):
				// affects every entity type of the tenant
				schedMetrics.IncTenantSkipped(obsmetrics.SkipReasonMissingCredential)
				s.logTenantSkipped(tenantCtx, entityType, obsmetrics.SkipReasonMissingCredential)
				break entities
			case errors.Is(err, ingestiondomain.ErrSyncInProgress):
				schedMetrics.IncTenantSkipped(obsmetrics.SkipReasonLocked)
				s.logTenantSkipped(tenantCtx, entityType, obsmetrics.SkipReasonLocked)
			default:
				s.logSyncError(tenantCtx, run, entityType, err)
				sweepErr = errors.Join(sweepErr, fmt.Errorf("tenant %s %s: %w", tenant.ID, entityType, err))
			}
		}
	}
	return sweepErr
}

// entityTypes returns the configured entity types in dependency order.
func (s *Scheduler) entityTypes() []ingestiondomain.EntityType {
	configured := make(map[string]struct{})
	for _, value := range s.settings.Get().EntityTypes {
		configured[value] = struct{}{}
	}
	ordered := make([]ingestiondomain.EntityType, 0, len(configured))
	for _, entityType := range source.AllEntityTypes() {
		if _, ok := configured[string(entityType)]; ok {
			ordered = append(ordered, entityType)
		}
	}
	return ordered
}
