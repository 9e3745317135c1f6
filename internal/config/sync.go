package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const maxPageSize = 250

var knownEntityTypes = map[string]struct{}{
	"customers": {},
	"products":  {},
	"orders":    {},
}

// SyncSettings are the sweep parameters that can change without a restart.
type SyncSettings struct {
	PageSize    int      `mapstructure:"pageSize"`
	EntityTypes []string `mapstructure:"entityTypes"`
}

func DefaultSyncSettings() SyncSettings {
	return SyncSettings{
		PageSize:    maxPageSize,
		EntityTypes: []string{"customers", "products", "orders"},
	}
}

type SyncSettingsHolder struct {
	current atomic.Value // holds SyncSettings
}

// NewStaticSyncSettingsHolder returns a holder that never reloads.
func NewStaticSyncSettingsHolder(settings SyncSettings) *SyncSettingsHolder {
	holder := &SyncSettingsHolder{}
	holder.current.Store(settings)
	return holder
}

func NewSyncSettingsHolder(cfg Config) (*SyncSettingsHolder, error) {
	v := viper.New()

	v.SetConfigName("sync")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/storesync/config")
	v.AddConfigPath("/etc/storesync")
	v.AddConfigPath(".")

	v.SetEnvPrefix("STORESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultSyncSettings()
	if cfg.Sync.PageSize > 0 {
		defaults.PageSize = cfg.Sync.PageSize
	}
	v.SetDefault("sync.pageSize", defaults.PageSize)
	v.SetDefault("sync.entityTypes", defaults.EntityTypes)

	found := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		found = false
	}

	settings, err := decodeSyncSettings(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticSyncSettingsHolder(settings)
	if !found {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeSyncSettings(v)
		if err != nil {
			log.Printf("[sync-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[sync-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *SyncSettingsHolder) Get() SyncSettings {
	return h.current.Load().(SyncSettings)
}

func decodeSyncSettings(v *viper.Viper) (SyncSettings, error) {
	var settings SyncSettings
	if err := v.UnmarshalKey("sync", &settings); err != nil {
		return SyncSettings{}, err
	}
	if err := ValidateSyncSettings(settings); err != nil {
		return SyncSettings{}, err
	}
	return settings, nil
}

func ValidateSyncSettings(s SyncSettings) error {
	if s.PageSize <= 0 || s.PageSize > maxPageSize {
		return fmt.Errorf("sync.pageSize must be between 1 and %d", maxPageSize)
	}
	if len(s.EntityTypes) == 0 {
		return errors.New("sync.entityTypes cannot be empty")
	}
	for _, entityType := range s.EntityTypes {
		if _, ok := knownEntityTypes[entityType]; !ok {
			return fmt.Errorf("sync.entityTypes: unknown entity type %q", entityType)
		}
	}
	return nil
}
