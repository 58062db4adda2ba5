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

// LedgerConfig is operator-tunable ledger policy. It is read from an optional
// ledger.yml and can be changed without a restart.
type LedgerConfig struct {
	LockTimeout         time.Duration `mapstructure:"lockTimeout"`
	MaterializeBatch    int           `mapstructure:"materializeBatch"`
	SchedulerInterval   time.Duration `mapstructure:"schedulerInterval"`
	SchedulerJobTimeout time.Duration `mapstructure:"schedulerJobTimeout"`
}

func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		LockTimeout:         2 * time.Second,
		MaterializeBatch:    50,
		SchedulerInterval:   time.Minute,
		SchedulerJobTimeout: 30 * time.Second,
	}
}

type LedgerConfigHolder struct {
	current atomic.Value // holds LedgerConfig
}

func NewLedgerConfigHolder() (*LedgerConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("ledger")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/quorum/config")
	v.AddConfigPath("/etc/quorum")
	v.AddConfigPath(".")

	v.SetEnvPrefix("QUORUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// if config file not found, use defaults
		defaults := DefaultLedgerConfig()
		v.SetDefault("ledger.lockTimeout", defaults.LockTimeout)
		v.SetDefault("ledger.materializeBatch", defaults.MaterializeBatch)
		v.SetDefault("ledger.schedulerInterval", defaults.SchedulerInterval)
		v.SetDefault("ledger.schedulerJobTimeout", defaults.SchedulerJobTimeout)
	}

	var cfg LedgerConfig
	if err := v.UnmarshalKey("ledger", &cfg); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	if err := validateLedgerConfig(cfg); err != nil {
		return nil, err
	}

	holder := &LedgerConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated LedgerConfig
		if err := v.UnmarshalKey("ledger", &updated); err != nil {
			log.Printf("[ledger-config] reload failed: %v", err)
			return
		}
		updated = updated.withDefaults()
		if err := validateLedgerConfig(updated); err != nil {
			log.Printf("[ledger-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[ledger-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *LedgerConfigHolder) Get() LedgerConfig {
	return h.current.Load().(LedgerConfig)
}

func (c LedgerConfig) withDefaults() LedgerConfig {
	defaults := DefaultLedgerConfig()
	if c.LockTimeout <= 0 {
		c.LockTimeout = defaults.LockTimeout
	}
	if c.MaterializeBatch <= 0 {
		c.MaterializeBatch = defaults.MaterializeBatch
	}
	if c.SchedulerInterval <= 0 {
		c.SchedulerInterval = defaults.SchedulerInterval
	}
	if c.SchedulerJobTimeout <= 0 {
		c.SchedulerJobTimeout = defaults.SchedulerJobTimeout
	}
	return c
}

func validateLedgerConfig(cfg LedgerConfig) error {
	if cfg.LockTimeout < 100*time.Millisecond {
		return errors.New("ledger.lockTimeout must be at least 100ms")
	}
	if cfg.SchedulerJobTimeout < cfg.LockTimeout {
		return errors.New("ledger.schedulerJobTimeout must not be below ledger.lockTimeout")
	}
	return nil
}
