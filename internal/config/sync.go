package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// SyncConfig tunes the background sync loop.
type SyncConfig struct {
	AutoSync     bool          `mapstructure:"autoSync"`
	Interval     time.Duration `mapstructure:"interval"`
	HeartbeatGap time.Duration `mapstructure:"heartbeatGap"`
}

func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		AutoSync:     true,
		Interval:     time.Minute,
		HeartbeatGap: 5 * time.Minute,
	}
}

// SyncConfigHolder exposes the current sync tuning and hot-reloads it
// when the config file changes on disk.
type SyncConfigHolder struct {
	current atomic.Value // holds SyncConfig
}

func NewSyncConfigHolder(cfg Config) (*SyncConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("sync")
	v.SetConfigType("yml")
	v.AddConfigPath(cfg.SyncConfigPath)
	v.AddConfigPath(".")

	v.SetEnvPrefix("SALESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultSyncConfig()
	v.SetDefault("sync.autoSync", defaults.AutoSync)
	v.SetDefault("sync.interval", defaults.Interval)
	v.SetDefault("sync.heartbeatGap", defaults.HeartbeatGap)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var sc SyncConfig
	if err := v.UnmarshalKey("sync", &sc); err != nil {
		return nil, err
	}
	if err := validateSyncConfig(sc); err != nil {
		return nil, err
	}

	holder := &SyncConfigHolder{}
	holder.current.Store(sc)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated SyncConfig
		if err := v.UnmarshalKey("sync", &updated); err != nil {
			log.Printf("[sync-config] reload failed: %v", err)
			return
		}
		if err := validateSyncConfig(updated); err != nil {
			log.Printf("[sync-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[sync-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *SyncConfigHolder) Get() SyncConfig {
	return h.current.Load().(SyncConfig)
}

func validateSyncConfig(cfg SyncConfig) error {
	if cfg.Interval <= 0 {
		return errors.New("sync.interval must be positive")
	}
	if cfg.HeartbeatGap <= 0 {
		return errors.New("sync.heartbeatGap must be positive")
	}
	return nil
}
