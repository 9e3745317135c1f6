package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	ingestiondomain "github.com/smallbiznis/storesync/internal/ingestion/domain"
	"github.com/smallbiznis/storesync/internal/source"
	tenantdomain "github.com/smallbiznis/storesync/internal/tenant/domain"
	"gorm.io/gorm"
)

func TestClassifySyncReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: SyncReasonDeadlineExceeded},
		{name: "rate_limited", err: &source.RateLimitError{RetryAfter: time.Second}, want: SyncReasonRateLimited},
		{name: "upstream", err: fmt.Errorf("fetch: %w", &source.UpstreamError{StatusCode: 502}), want: SyncReasonUpstream},
		{name: "malformed", err: source.ErrMalformedPage, want: SyncReasonMalformed},
		{name: "precondition", err: tenantdomain.ErrMissingCredential, want: SyncReasonPrecondition},
		{name: "in_progress", err: ingestiondomain.ErrSyncInProgress, want: SyncReasonPrecondition},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: SyncReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: SyncReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: SyncReasonUniqueViolation},
		{name: "unknown", err: errors.New("boom"), want: SyncReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifySyncReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestIsSyncErrorRetryable(t *testing.T) {
	if !IsSyncErrorRetryable(&source.RateLimitError{}) {
		t.Fatalf("rate limit should be retryable")
	}
	if IsSyncErrorRetryable(source.ErrInvalidDecimal) {
		t.Fatalf("invalid decimal should not be retryable")
	}
	if IsSyncErrorRetryable(nil) {
		t.Fatalf("nil should not be retryable")
	}
}

func TestObserveSyncRun(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSyncMetrics(registry, Config{
		ServiceName: "storesync",
		Environment: "test",
	})

	metrics.ObserveSyncRun("orders", "manual", "completed", 3, 20*time.Millisecond)
	metrics.ObserveSyncRun("orders", "manual", "failed", 0, 5*time.Millisecond)

	if got := testutil.ToFloat64(metrics.recordsProcessed.WithLabelValues("orders")); got != 3 {
		t.Fatalf("expected processed count 3, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.syncRuns.WithLabelValues("orders", "manual", "failed")); got != 1 {
		t.Fatalf("expected failed run count 1, got %v", got)
	}
}
