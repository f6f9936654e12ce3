// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - New() builds a Config with defaults; Load layers file and env on top.
//   - Weights and intervals live here and are handed to the engine at
//     construction; nothing downstream reads the environment.
package config

import (
	"time"

	"github.com/okian/xpand/internal/domain/scoring"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreMySQL  = "mysql"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// Store selects the persistence backend: memory or mysql.
	Store string `koanf:"store" validate:"oneof=memory mysql"`

	// MySQLDSN is the go-sql-driver DSN used when Store is mysql.
	MySQLDSN string `koanf:"mysql_dsn" validate:"required_if=Store mysql"`

	// MySQLMaxOpenConns bounds the database/sql pool.
	MySQLMaxOpenConns int `koanf:"mysql_max_open_conns" validate:"gte=0"`

	// MySQLTracing installs the otelgorm plugin.
	MySQLTracing bool `koanf:"mysql_tracing"`

	// RedisAddr enables per-project locking when set.
	RedisAddr string `koanf:"redis_addr"`

	// LockTTL bounds how long a project lock is held.
	LockTTL time.Duration `koanf:"lock_ttl" validate:"gt=0"`

	// ServiceWeight is added per overlapping service tag.
	ServiceWeight float64 `koanf:"service_weight" validate:"gte=0"`

	// SLAWeight is the flat bonus for vendors meeting the SLA threshold.
	SLAWeight float64 `koanf:"sla_weight" validate:"gte=0"`

	// SLAThresholdHours is the inclusive cutoff for the SLA bonus.
	SLAThresholdHours int `koanf:"sla_threshold_hours" validate:"gte=0"`

	// TopMatchesCount caps the top matches returned by a rebuild.
	TopMatchesCount int `koanf:"top_matches_count" validate:"gt=0"`

	// RefreshInterval is the period of the full matching refresh.
	RefreshInterval time.Duration `koanf:"refresh_interval" validate:"gt=0"`

	// SLAInterval is the period of the standalone SLA sweep.
	SLAInterval time.Duration `koanf:"sla_interval" validate:"gt=0"`

	// RefreshWorkers bounds per-project parallelism within one refresh.
	RefreshWorkers int `koanf:"refresh_workers" validate:"gt=0"`

	// SchedulingEnabled turns the recurring triggers on.
	SchedulingEnabled bool `koanf:"scheduling_enabled"`

	// PubSubProject and PubSubTopic route notifications to Cloud Pub/Sub when both are set.
	PubSubProject string `koanf:"pubsub_project"`
	PubSubTopic   string `koanf:"pubsub_topic" validate:"required_with=PubSubProject"`
}

// New creates a Config populated with defaults.
func New() *Config {
	w := scoring.DefaultWeights()
	return &Config{
		LogLevel:          "info",
		Addr:              ":9080",
		Store:             StoreMemory,
		MySQLMaxOpenConns: 25,
		LockTTL:           2 * time.Minute,
		ServiceWeight:     w.ServiceWeight,
		SLAWeight:         w.SLAWeight,
		SLAThresholdHours: w.SLAThresholdHours,
		TopMatchesCount:   3,
		RefreshInterval:   24 * time.Hour,
		SLAInterval:       6 * time.Hour,
		RefreshWorkers:    4,
		SchedulingEnabled: true,
	}
}

// Weights returns the scoring weights carried by the config.
func (c *Config) Weights() scoring.Weights {
	return scoring.Weights{
		ServiceWeight:     c.ServiceWeight,
		SLAWeight:         c.SLAWeight,
		SLAThresholdHours: c.SLAThresholdHours,
	}
}
