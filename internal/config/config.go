package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Selection SelectionConfig `yaml:"selection"`
	Budget    BudgetConfig    `yaml:"budget"`
	Health    HealthConfig    `yaml:"health"`
	Policy    PolicyConfig    `yaml:"policy"`
	Host      HostConfig      `yaml:"host"`
}

type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// StorageConfig selects the persistence backend: "memory" or "postgres".
type StorageConfig struct {
	Backend string `yaml:"backend"`
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DSN carries the pool settings as pgxpool connection string parameters.
func (d DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&pool_max_conns=%d",
		d.User, d.Password, d.Host, d.Port, d.Name, max(d.MaxOpenConns, 1))
	if d.ConnMaxLifetime > 0 {
		dsn += "&pool_max_conn_lifetime=" + d.ConnMaxLifetime.String()
	}
	return dsn
}

type RedisConfig struct {
	Addresses []string      `yaml:"addresses"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	PoolSize  int           `yaml:"pool_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

type TelemetryConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	MetricsPath string `yaml:"metrics_path"`
}

type ScoringConfig struct {
	Tolerance    float64 `yaml:"tolerance"`
	MaxReasons   int     `yaml:"max_reasons"`
	DefaultLimit int     `yaml:"default_limit"`
	// MetricWindow is how far back metric samples are aggregated.
	MetricWindow       time.Duration       `yaml:"metric_window"`
	CapabilityKeywords map[string][]string `yaml:"capability_keywords"`
}

type SelectionConfig struct {
	MaxCASRetries int `yaml:"max_cas_retries"`
}

type BudgetConfig struct {
	// Timezone is the single reference zone used to cut period buckets.
	Timezone string `yaml:"timezone"`
	// MinElapsed guards spend projection early in a bucket.
	MinElapsed time.Duration `yaml:"min_elapsed"`
}

type HealthConfig struct {
	FailureThreshold      int           `yaml:"failure_threshold"`
	RecoveryProbeInterval time.Duration `yaml:"recovery_probe_interval"`
}

type PolicyConfig struct {
	Enabled           bool          `yaml:"enabled"`
	BundlePath        string        `yaml:"bundle_path"`
	EvaluationTimeout time.Duration `yaml:"evaluation_timeout"`
}

// HostConfig is the hardware profile used for compatibility checks.
type HostConfig struct {
	CPUFeatures []string `yaml:"cpu_features"`
	HasGPU      bool     `yaml:"has_gpu"`
	RAMBytes    int64    `yaml:"ram_bytes"`
	VRAMBytes   int64    `yaml:"vram_bytes"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      15 * time.Second,
			WriteTimeout:     30 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 15 * time.Second,
		},
		Storage: StorageConfig{Backend: "memory"},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Name:            "advisor",
			User:            "advisor",
			MaxOpenConns:    10,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			DB:       0,
			PoolSize: 20,
			CacheTTL: 5 * time.Minute,
		},
		Telemetry: TelemetryConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			MetricsPath: "/metrics",
		},
		Scoring: ScoringConfig{
			Tolerance:    10,
			MaxReasons:   3,
			MetricWindow: time.Hour,
		},
		Selection: SelectionConfig{MaxCASRetries: 5},
		Budget: BudgetConfig{
			Timezone:   "UTC",
			MinElapsed: time.Minute,
		},
		Health: HealthConfig{
			FailureThreshold:      3,
			RecoveryProbeInterval: 30 * time.Second,
		},
		Policy: PolicyConfig{
			Enabled:           false,
			BundlePath:        "configs/policies",
			EvaluationTimeout: 100 * time.Millisecond,
		},
	}
}

// Validate rejects settings the advisor cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Scoring.Tolerance < 0 || c.Scoring.Tolerance > 100 {
		return fmt.Errorf("scoring tolerance %v out of range [0,100]", c.Scoring.Tolerance)
	}
	if c.Scoring.MaxReasons < 0 {
		return fmt.Errorf("scoring max_reasons must not be negative")
	}
	if _, err := time.LoadLocation(c.Budget.Timezone); err != nil {
		return fmt.Errorf("budget timezone %q: %w", c.Budget.Timezone, err)
	}
	if c.Budget.MinElapsed < 0 {
		return fmt.Errorf("budget min_elapsed must not be negative")
	}
	if c.Selection.MaxCASRetries < 1 {
		return fmt.Errorf("selection max_cas_retries must be at least 1")
	}
	return nil
}
