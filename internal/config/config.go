// Package config defines service configuration and its loading.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Recompute failure policies.
const (
	PolicySkip  = "skip"
	PolicyAbort = "abort"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat is "text" or "json".
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// StoreDriver selects the persistence backend: memory, sqlite or postgres.
	StoreDriver string `koanf:"store_driver"`

	// StoreDSN is the sqlite file path or the postgres connection string.
	StoreDSN string `koanf:"store_dsn"`

	// StoreMaxOpenConns caps the postgres pool. SQLite always uses one connection.
	StoreMaxOpenConns int `koanf:"store_max_open_conns"`

	// StoreConnMaxLifetime recycles pooled connections older than this, e.g. "30m". 0 keeps them.
	StoreConnMaxLifetime time.Duration `koanf:"store_conn_max_lifetime"`

	// QueueSize bounds the in-memory match queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of rating workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many recent submission keys are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// LockStripes is the number of player lock stripes.
	LockStripes int `koanf:"lock_stripes"`

	// MaxRankingLimit caps GET /ranking?limit.
	MaxRankingLimit int `koanf:"max_ranking_limit"`

	// RecomputePolicy decides what a failing historical match does: skip or abort.
	RecomputePolicy string `koanf:"recompute_policy"`

	// MaxBackdateDays rejects matches played longer ago than this. 0 disables.
	MaxBackdateDays int `koanf:"max_backdate_days"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		StoreDriver:          DriverMemory,
		StoreMaxOpenConns:    10,
		StoreConnMaxLifetime: 30 * time.Minute,
		QueueSize:            10_000,
		WorkerCount:          runtime.NumCPU(),
		DedupeSize:           100_000,
		LockStripes:          256,
		MaxRankingLimit:      100,
		RecomputePolicy:      PolicySkip,
		MaxBackdateDays:      30,
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.DedupeSize <= 0:
		return fmt.Errorf("%w: dedupe_size must be positive", ErrInvalidConfig)
	case c.LockStripes <= 0:
		return fmt.Errorf("%w: lock_stripes must be positive", ErrInvalidConfig)
	case c.MaxRankingLimit <= 0:
		return fmt.Errorf("%w: max_ranking_limit must be positive", ErrInvalidConfig)
	case c.MaxBackdateDays < 0:
		return fmt.Errorf("%w: max_backdate_days must not be negative", ErrInvalidConfig)
	case c.StoreMaxOpenConns < 0:
		return fmt.Errorf("%w: store_max_open_conns must not be negative", ErrInvalidConfig)
	case c.StoreConnMaxLifetime < 0:
		return fmt.Errorf("%w: store_conn_max_lifetime must not be negative", ErrInvalidConfig)
	}

	switch strings.ToLower(c.StoreDriver) {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.StoreDSN == "" {
			return fmt.Errorf("%w: store_dsn is required for %s", ErrInvalidConfig, c.StoreDriver)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}

	switch strings.ToLower(c.RecomputePolicy) {
	case PolicySkip, PolicyAbort:
	default:
		return fmt.Errorf("%w: unknown recompute_policy %q", ErrInvalidConfig, c.RecomputePolicy)
	}
	return nil
}
