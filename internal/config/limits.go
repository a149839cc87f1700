package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// LimitsConfig holds tunables that operators adjust without a deploy.
type LimitsConfig struct {
	// FreeDailyApplications caps gated actions per candidate per calendar
	// day when no subscription is active.
	FreeDailyApplications int `mapstructure:"freeDailyApplications"`

	// PendingOrderTTLHours is how long an order may stay PENDING before
	// the sweep marks it FAILED. Zero disables the sweep.
	PendingOrderTTLHours int `mapstructure:"pendingOrderTTLHours"`
}

func DefaultLimitsConfig() LimitsConfig {
	return LimitsConfig{
		FreeDailyApplications: 20,
		PendingOrderTTLHours:  24,
	}
}

// LimitsHolder exposes the current LimitsConfig and hot-reloads it when the
// backing file changes.
type LimitsHolder struct {
	current atomic.Value // holds LimitsConfig
}

func NewLimitsHolder() (*LimitsHolder, error) {
	v := viper.New()

	v.SetConfigName("limits")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/paycore/config")
	v.AddConfigPath("/etc/paycore")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PAYCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultLimitsConfig()
	v.SetDefault("limits.freeDailyApplications", defaults.FreeDailyApplications)
	v.SetDefault("limits.pendingOrderTTLHours", defaults.PendingOrderTTLHours)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg LimitsConfig
	if err := v.UnmarshalKey("limits", &cfg); err != nil {
		return nil, err
	}
	if err := validateLimitsConfig(cfg); err != nil {
		return nil, err
	}

	holder := &LimitsHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated LimitsConfig
		if err := v.UnmarshalKey("limits", &updated); err != nil {
			log.Printf("[limits-config] reload failed: %v", err)
			return
		}
		if err := validateLimitsConfig(updated); err != nil {
			log.Printf("[limits-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[limits-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticLimitsHolder returns a holder pinned to cfg. Used by tests.
func NewStaticLimitsHolder(cfg LimitsConfig) *LimitsHolder {
	holder := &LimitsHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *LimitsHolder) Get() LimitsConfig {
	return h.current.Load().(LimitsConfig)
}

func validateLimitsConfig(cfg LimitsConfig) error {
	if cfg.FreeDailyApplications < 0 {
		return errors.New("limits.freeDailyApplications cannot be negative")
	}
	if cfg.PendingOrderTTLHours < 0 {
		return errors.New("limits.pendingOrderTTLHours cannot be negative")
	}
	return nil
}
