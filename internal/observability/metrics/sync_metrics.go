package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	ingestiondomain "github.com/smallbiznis/storesync/internal/ingestion/domain"
	"github.com/smallbiznis/storesync/internal/source"
	tenantdomain "github.com/smallbiznis/storesync/internal/tenant/domain"
	"github.com/smallbiznis/storesync/pkg/db"
	"gorm.io/gorm"
)

const (
	SyncErrorTypeDeadlineExceeded = "deadline_exceeded"
	SyncErrorTypePrecondition     = "precondition"
	SyncErrorTypeUpstream         = "upstream"
	SyncErrorTypeInvalidRecord    = "invalid_record"
	SyncErrorTypeDB               = "db"
	SyncErrorTypeUnknown          = "unknown"
)

const (
	SyncReasonDeadlineExceeded     = "deadline_exceeded"
	SyncReasonRateLimited          = "rate_limited"
	SyncReasonUpstream             = "upstream"
	SyncReasonMalformed            = "malformed"
	SyncReasonPrecondition         = "precondition"
	SyncReasonDBLockTimeout        = "db_lock_timeout"
	SyncReasonSerializationFailure = "serialization_failure"
	SyncReasonUniqueViolation      = "unique_violation"
	SyncReasonConnection           = "connection"
	SyncReasonUnknown              = "unknown"
)

const (
	SkipReasonMissingCredential = "missing_credential"
	SkipReasonLocked            = "locked"
)

// SyncMetrics captures ingestion health signals exported on /metrics.
type SyncMetrics struct {
	jobRuns          *prometheus.CounterVec
	jobDuration      *prometheus.HistogramVec
	jobTimeouts      *prometheus.CounterVec
	jobErrors        *prometheus.CounterVec
	runLoopLag       prometheus.Observer
	syncRuns         *prometheus.CounterVec
	syncDuration     *prometheus.HistogramVec
	recordsProcessed *prometheus.CounterVec
	tenantsSkipped   *prometheus.CounterVec
	webhookEvents    *prometheus.CounterVec
}

var (
	syncMetricsOnce sync.Once
	syncMetrics     *SyncMetrics
)

// Sync returns the singleton sync metrics registry.
func Sync() *SyncMetrics {
	return SyncWithConfig(Config{})
}

// SyncWithConfig returns the singleton sync metrics registry using config labels.
func SyncWithConfig(cfg Config) *SyncMetrics {
	syncMetricsOnce.Do(func() {
		syncMetrics = newSyncMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return syncMetrics
}

// ResetSyncMetricsForTest resets the sync metrics singleton for tests.
func ResetSyncMetricsForTest() {
	syncMetricsOnce = sync.Once{}
	syncMetrics = nil
}

func newSyncMetrics(registerer prometheus.Registerer, cfg Config) *SyncMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "storesync"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "storesync_scheduler_job_runs_total",
		Help:        "Scheduler job runs by name.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "storesync_scheduler_job_duration_seconds",
		Help:        "Scheduler job latency.",
		Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		ConstLabels: constLabels,
	}, []string{"job"})
	jobTimeouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "storesync_scheduler_job_timeouts_total",
		Help:        "Scheduler jobs that hit their deadline.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "storesync_scheduler_job_errors_total",
		Help:        "Scheduler job errors by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})
	runLoopLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "storesync_scheduler_runloop_lag_seconds",
		Help:        "Scheduler run loop lag beyond the configured interval.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		ConstLabels: constLabels,
	})
	syncRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "storesync_sync_runs_total",
		Help:        "Sync runs by entity type, trigger and terminal status.",
		ConstLabels: constLabels,
	}, []string{"entity_type", "trigger", "status"})
	syncDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "storesync_sync_run_duration_seconds",
		Help:        "Wall time of a single paginated sync run.",
		Buckets:     []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800},
		ConstLabels: constLabels,
	}, []string{"entity_type", "trigger"})
	recordsProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "storesync_sync_records_processed_total",
		Help:        "Records upserted by sync runs.",
		ConstLabels: constLabels,
	}, []string{"entity_type"})
	tenantsSkipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "storesync_scheduler_tenants_skipped_total",
		Help:        "Tenants skipped during a sweep by reason.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "storesync_webhook_events_total",
		Help:        "Webhook deliveries by topic and outcome.",
		ConstLabels: constLabels,
	}, []string{"topic", "outcome"})

	registerer.MustRegister(
		jobRuns,
		jobDuration,
		jobTimeouts,
		jobErrors,
		runLoopLag,
		syncRuns,
		syncDuration,
		recordsProcessed,
		tenantsSkipped,
		webhookEvents,
	)

	return &SyncMetrics{
		jobRuns:          jobRuns,
		jobDuration:      jobDuration,
		jobTimeouts:      jobTimeouts,
		jobErrors:        jobErrors,
		runLoopLag:       runLoopLag,
		syncRuns:         syncRuns,
		syncDuration:     syncDuration,
		recordsProcessed: recordsProcessed,
		tenantsSkipped:   tenantsSkipped,
		webhookEvents:    webhookEvents,
	}
}

// IncJobRun increments the run counter for a scheduler job.
func (m *SyncMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

// ObserveJobDuration records scheduler job latency in seconds.
func (m *SyncMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// IncJobTimeout increments the timeout counter for the scheduler job.
func (m *SyncMetrics) IncJobTimeout(job string) {
	if m == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

// IncJobError increments the scheduler job error counter with classification.
func (m *SyncMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifySyncReason(err)).Inc()
}

// ObserveRunLoopLag records lag between the scheduled tick and actual run start.
func (m *SyncMetrics) ObserveRunLoopLag(duration time.Duration) {
	if m == nil {
		return
	}
	if duration < 0 {
		duration = 0
	}
	m.runLoopLag.Observe(duration.Seconds())
}

// ObserveSyncRun records a finished sync run and the records it processed.
func (m *SyncMetrics) ObserveSyncRun(entityType, trigger, status string, processed int, duration time.Duration) {
	if m == nil {
		return
	}
	m.syncRuns.WithLabelValues(entityType, trigger, status).Inc()
	m.syncDuration.WithLabelValues(entityType, trigger).Observe(duration.Seconds())
	if processed > 0 {
		m.recordsProcessed.WithLabelValues(entityType).Add(float64(processed))
	}
}

// IncTenantSkipped counts tenants a sweep did not sync.
func (m *SyncMetrics) IncTenantSkipped(reason string) {
	if m == nil {
		return
	}
	m.tenantsSkipped.WithLabelValues(reason).Inc()
}

// IncWebhookEvent counts a webhook delivery outcome.
func (m *SyncMetrics) IncWebhookEvent(topic, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(topic, outcome).Inc()
}

// ClassifySyncErrorType returns a low-cardinality error type for logging.
func ClassifySyncErrorType(err error) string {
	switch {
	case err == nil:
		return SyncErrorTypeUnknown
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return SyncErrorTypeDeadlineExceeded
	case isPrecondition(err):
		return SyncErrorTypePrecondition
	case errors.Is(err, source.ErrRateLimited) || errors.Is(err, source.ErrUpstream) || errors.Is(err, source.ErrMalformedPage):
		return SyncErrorTypeUpstream
	case errors.Is(err, source.ErrInvalidRecord) || errors.Is(err, source.ErrInvalidDecimal):
		return SyncErrorTypeInvalidRecord
	case isDBError(err):
		return SyncErrorTypeDB
	default:
		return SyncErrorTypeUnknown
	}
}

// IsSyncErrorRetryable reports whether a later run is expected to succeed
// without operator action.
func IsSyncErrorRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, source.ErrRateLimited) || errors.Is(err, source.ErrUpstream) {
		return true
	}
	if errors.Is(err, ingestiondomain.ErrSyncInProgress) {
		return true
	}
	return db.IsConnectionErr(err) || isDBLockTimeout(err) || isSerializationFailure(err)
}

// ClassifySyncReason maps sync errors to low-cardinality metric reasons.
func ClassifySyncReason(err error) string {
	switch {
	case err == nil:
		return SyncReasonUnknown
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return SyncReasonDeadlineExceeded
	case errors.Is(err, source.ErrRateLimited):
		return SyncReasonRateLimited
	case errors.Is(err, source.ErrUpstream):
		return SyncReasonUpstream
	case errors.Is(err, source.ErrMalformedPage) || errors.Is(err, source.ErrInvalidRecord) || errors.Is(err, source.ErrInvalidDecimal):
		return SyncReasonMalformed
	case isPrecondition(err):
		return SyncReasonPrecondition
	case isDBLockTimeout(err):
		return SyncReasonDBLockTimeout
	case isSerializationFailure(err):
		return SyncReasonSerializationFailure
	case isUniqueViolation(err):
		return SyncReasonUniqueViolation
	case db.IsConnectionErr(err):
		return SyncReasonConnection
	default:
		return SyncReasonUnknown
	}
}

func isPrecondition(err error) bool {
	return errors.Is(err, tenantdomain.ErrTenantNotFound) ||
		errors.Is(err, tenantdomain.ErrMissingCredential) ||
		errors.Is(err, tenantdomain.ErrInvalidCredential) ||
		errors.Is(err, ingestiondomain.ErrInvalidEntityType) ||
		errors.Is(err, ingestiondomain.ErrSyncInProgress)
}

func isDBLockTimeout(err error) bool {
	return hasPGCode(err, "55P03")
}

func isSerializationFailure(err error) bool {
	return hasPGCode(err, "40001")
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return hasPGCode(err, "23505")
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidField) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrMissingWhereClause) ||
		errors.Is(err, gorm.ErrUnsupportedDriver) ||
		errors.Is(err, gorm.ErrInvalidValue) ||
		errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	if db.IsConnectionErr(err) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
