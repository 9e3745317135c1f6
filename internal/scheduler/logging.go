package scheduler

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	ingestiondomain "github.com/smallbiznis/storesync/internal/ingestion/domain"
	obscontext "github.com/smallbiznis/storesync/internal/observability/context"
	obslogger "github.com/smallbiznis/storesync/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/storesync/internal/observability/metrics"
	"github.com/smallbiznis/storesync/pkg/telemetry/correlation"
	"go.uber.org/zap"
)

type jobRun struct {
	job            string
	runID          string
	startedAt      time.Time
	processedCount int
	errorCount     int
}

type jobRunKey struct{}

func (r *jobRun) AddProcessed(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.processedCount += count
}

func (r *jobRun) IncError() {
	if r == nil {
		return
	}
	r.errorCount++
}

func (s *Scheduler) ensureJobRun(ctx context.Context, job string) (context.Context, *jobRun, bool) {
	if existing := jobRunFromContext(ctx); existing != nil {
		return ctx, existing, false
	}
	run := &jobRun{
		job:       job,
		runID:     s.genID.Generate().String(),
		startedAt: s.clock.Now(),
	}
	ctx = context.WithValue(ctx, jobRunKey{}, run)
	// One correlation id per sweep ties every tenant's sync logs together.
	ctx, _ = correlation.EnsureCorrelationID(ctx)
	return ctx, run, true
}

func jobRunFromContext(ctx context.Context) *jobRun {
	if ctx == nil {
		return nil
	}
	if run, ok := ctx.Value(jobRunKey{}).(*jobRun); ok {
		return run
	}
	return nil
}

func (s *Scheduler) withLogContext(ctx context.Context, tenantID snowflake.ID) context.Context {
	ctx = obscontext.WithActor(ctx, "system", "scheduler")
	if tenantID != 0 {
		ctx = obscontext.WithTenantID(ctx, tenantID.String())
	}
	return ctx
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logJobStart(ctx context.Context, run *jobRun) {
	s.logger(ctx).Info("scheduler.job.start",
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
	)
}

func (s *Scheduler) logJobFinish(ctx context.Context, run *jobRun) {
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Int64("duration_ms", s.clock.Now().Sub(run.startedAt).Milliseconds()),
		zap.Int("processed_count", run.processedCount),
		zap.Int("error_count", run.errorCount),
	}
	log := s.logger(ctx)
	if run.errorCount > 0 {
		log.Warn("scheduler.job.finish", fields...)
		return
	}
	log.Info("scheduler.job.finish", fields...)
}

func (s *Scheduler) logSyncError(ctx context.Context, run *jobRun, entityType ingestiondomain.EntityType, err error) {
	if err == nil {
		return
	}
	run.IncError()
	s.logger(ctx).Error("scheduler.sync.failed",
		zap.String("entity_type", string(entityType)),
		zap.String("error_type", obsmetrics.ClassifySyncErrorType(err)),
		zap.Bool("retryable", obsmetrics.IsSyncErrorRetryable(err)),
		zap.Error(err),
	)
}

func (s *Scheduler) logTenantSkipped(ctx context.Context, entityType ingestiondomain.EntityType, reason string) {
	s.logger(ctx).Info("scheduler.tenant.skipped",
		zap.String("entity_type", string(entityType)),
		zap.String("reason", reason),
	)
}
