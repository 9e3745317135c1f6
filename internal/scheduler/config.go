package scheduler

import (
	"time"

	"github.com/smallbiznis/storesync/internal/config"
)

// Config controls sweep timing.
type Config struct {
	Interval     time.Duration
	InitialDelay time.Duration
	SweepTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval:     6 * time.Hour,
		InitialDelay: 30 * time.Second,
		SweepTimeout: 2 * time.Hour,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Interval:     cfg.Sync.Interval,
		InitialDelay: cfg.Sync.InitialDelay,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = defaults.Interval
	}
	if c.InitialDelay < 0 {
		c.InitialDelay = defaults.InitialDelay
	}
	if c.SweepTimeout <= 0 {
		c.SweepTimeout = defaults.SweepTimeout
	}
	return c
}
