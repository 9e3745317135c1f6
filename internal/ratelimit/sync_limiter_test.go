package ratelimit

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/storesync/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNilSyncLimiterAllowsEverything(t *testing.T) {
	var l *SyncLimiter
	ctx := context.Background()

	token, ok, err := l.TryLockSync(ctx, "1", "orders")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, token)
	assert.NoError(t, l.ReleaseSync(ctx, "1", "orders", token))

	allowed, wait, err := l.AllowTrigger(ctx, "1")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Zero(t, wait)
}

func TestNewSyncLimiterWithoutRedis(t *testing.T) {
	l, err := NewSyncLimiter(config.Config{}, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, l)

	_, err = NewSyncLimiter(config.Config{Sync: config.SyncConfig{LockEnabled: true}}, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestNewSyncLimiterValidatesLockTTL(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })

	_, err := NewSyncLimiter(config.Config{Sync: config.SyncConfig{LockEnabled: true}}, client, zap.NewNop())
	assert.Error(t, err)

	l, err := NewSyncLimiter(config.Config{Sync: config.SyncConfig{LockEnabled: false, TriggerRate: 0}}, client, zap.NewNop())
	require.NoError(t, err)
	token, ok, err := l.TryLockSync(context.Background(), "1", "orders")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, token)

	allowed, _, err := l.AllowTrigger(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestSyncLockKey(t *testing.T) {
	assert.Equal(t, "storesync:sync:lock:42:orders", syncLockKey("42", "orders"))
}

func TestParseBucketReply(t *testing.T) {
	res, err := parseBucketReply([]interface{}{int64(1), "2.5"}, 1)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.InDelta(t, 2.5, res.Remaining, 1e-9)
	assert.Zero(t, res.RetryAfter)

	res, err = parseBucketReply([]interface{}{int64(0), "0.5"}, 0.5)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Second, res.RetryAfter)

	_, err = parseBucketReply([]interface{}{int64(1)}, 1)
	assert.Error(t, err)
	_, err = parseBucketReply([]interface{}{"1", "0"}, 1)
	assert.Error(t, err)
	_, err = parseBucketReply([]interface{}{int64(1), "x"}, 1)
	assert.Error(t, err)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 30*time.Second, bucketTTL(0.2, 3))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
	assert.Equal(t, time.Second, bucketTTL(0, 1))
}

func TestLockerRequiresClient(t *testing.T) {
	assert.Nil(t, NewLocker(nil))
	var l *Locker
	_, _, err := l.TryLock(context.Background(), "k", time.Second)
	assert.ErrorIs(t, err, ErrLockNotConfigured)
	assert.NoError(t, l.Release(context.Background(), "k", "t"))
	assert.ErrorIs(t, l.Extend(context.Background(), "k", "t", time.Second), ErrLockNotConfigured)
}

func TestRenewInterval(t *testing.T) {
	assert.Equal(t, 10*time.Minute, renewInterval(30*time.Minute))
	assert.Equal(t, 100*time.Millisecond, renewInterval(time.Millisecond))
}

func TestReleaseSyncStopsRenewal(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })

	l, err := NewSyncLimiter(config.Config{Sync: config.SyncConfig{LockEnabled: true, LockTTL: time.Minute}}, client, zap.NewNop())
	require.NoError(t, err)

	stopped := make(chan struct{})
	l.renewals["tok"] = func() { close(stopped) }

	// Release hits an unreachable redis; the renewal must stop regardless.
	_ = l.ReleaseSync(context.Background(), "1", "orders", "tok")
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("renewal not cancelled")
	}
	assert.Empty(t, l.renewals)
}
