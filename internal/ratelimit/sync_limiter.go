package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/storesync/internal/config"
	"go.uber.org/zap"
)

const (
	keySyncLock    = "storesync:sync:lock:%s:%s"
	keySyncTrigger = "storesync:sync:trigger:%s"
)

// SyncLimiter guards sync runs across processes. A nil limiter, or one
// without redis, allows everything.
//
// A held sync lock is renewed every lockTTL/3 until ReleaseSync, so a run
// that outlives the TTL keeps its lease. If renewal finds the lease gone the
// run continues; upserts are idempotent and the overlap is only logged.
type SyncLimiter struct {
	locker *Locker
	bucket *TokenBucket
	log    *zap.Logger

	lockEnabled  bool
	lockTTL      time.Duration
	triggerRate  float64
	triggerBurst int

	mu       sync.Mutex
	renewals map[string]context.CancelFunc
}

func NewSyncLimiter(cfg config.Config, client *redis.Client, log *zap.Logger) (*SyncLimiter, error) {
	if client == nil {
		if cfg.Sync.LockEnabled {
			return nil, errors.New("sync lock requires REDIS_ADDR")
		}
		return nil, nil
	}
	if cfg.Sync.LockEnabled && cfg.Sync.LockTTL <= 0 {
		return nil, errors.New("sync lock ttl must be positive")
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &SyncLimiter{
		locker:       NewLocker(client),
		bucket:       NewTokenBucket(client),
		log:          log.Named("ratelimit.sync"),
		lockEnabled:  cfg.Sync.LockEnabled,
		lockTTL:      cfg.Sync.LockTTL,
		triggerRate:  cfg.Sync.TriggerRate,
		triggerBurst: cfg.Sync.TriggerBurst,
		renewals:     make(map[string]context.CancelFunc),
	}, nil
}

func (l *SyncLimiter) TryLockSync(ctx context.Context, tenantID, entityType string) (string, bool, error) {
	if l == nil || !l.lockEnabled {
		return "", true, nil
	}
	key := syncLockKey(tenantID, entityType)
	token, ok, err := l.locker.TryLock(ctx, key, l.lockTTL)
	if err != nil || !ok {
		return token, ok, err
	}

	renewCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l.mu.Lock()
	l.renewals[token] = cancel
	l.mu.Unlock()
	go l.renew(renewCtx, key, token)

	return token, true, nil
}

func (l *SyncLimiter) ReleaseSync(ctx context.Context, tenantID, entityType, token string) error {
	if l == nil || !l.lockEnabled {
		return nil
	}
	l.mu.Lock()
	if cancel, ok := l.renewals[token]; ok {
		cancel()
		delete(l.renewals, token)
	}
	l.mu.Unlock()
	return l.locker.Release(ctx, syncLockKey(tenantID, entityType), token)
}

func (l *SyncLimiter) renew(ctx context.Context, key, token string) {
	ticker := time.NewTicker(renewInterval(l.lockTTL))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := l.locker.Extend(ctx, key, token, l.lockTTL)
			switch {
			case err == nil:
			case errors.Is(err, ErrLockLost):
				l.log.Warn("sync lock lost before release", zap.String("key", key))
				return
			case ctx.Err() != nil:
				return
			default:
				l.log.Warn("sync lock renewal failed", zap.String("key", key), zap.Error(err))
			}
		}
	}
}

func (l *SyncLimiter) AllowTrigger(ctx context.Context, tenantID string) (bool, time.Duration, error) {
	if l == nil || l.triggerRate <= 0 || l.triggerBurst <= 0 {
		return true, 0, nil
	}
	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keySyncTrigger, tenantID), l.triggerRate, l.triggerBurst)
	if err != nil {
		return false, 0, err
	}
	return res.Allowed, res.RetryAfter, nil
}

func renewInterval(ttl time.Duration) time.Duration {
	interval := ttl / 3
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	return interval
}

func syncLockKey(tenantID, entityType string) string {
	return fmt.Sprintf(keySyncLock, tenantID, entityType)
}
