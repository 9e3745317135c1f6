package ratelimit

import (
	"github.com/smallbiznis/storesync/internal/ingestion/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("rate.limit",
	fx.Provide(NewRedisClient),
	fx.Provide(NewSyncLimiter),
	fx.Provide(
		func(l *SyncLimiter) domain.SyncLock { return l },
		func(l *SyncLimiter) domain.TriggerLimiter { return l },
	),
)
