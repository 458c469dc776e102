package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for dineflow-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, signing keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Authentication configuration
	Auth AuthConfig `yaml:"auth"`

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Recommendation engine tunables
	Recommender RecommenderConfig `yaml:"recommender"`

	// Rebuild scheduling
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// EnableVerification controls whether staff JWT tokens are validated.
	// Set to false for local development without an auth service.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// SigningKey is the HMAC secret used to sign and verify staff tokens.
	// Required when verification is enabled.
	SigningKey string `yaml:"-" env:"AUTH_SIGNING_KEY"` // Secret - not in YAML

	// GuestCookieSecret signs the guest session cookie.
	GuestCookieSecret string `yaml:"-" env:"GUEST_COOKIE_SECRET"` // Secret - not in YAML
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"dineflow"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"dineflow_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"PGMIGRATIONS_PATH" env-default:"migrations"`
}

// RecommenderConfig holds the default tunables for the recommendation rebuild.
// Individual rebuild requests may override any of them.
type RecommenderConfig struct {
	MinSupport                   float64 `yaml:"min_support" env:"RECO_MIN_SUPPORT" env-default:"0.01"`
	MinConfidence                float64 `yaml:"min_confidence" env:"RECO_MIN_CONFIDENCE" env-default:"0.1"`
	MinAttachRate                float64 `yaml:"min_attach_rate" env:"RECO_MIN_ATTACH_RATE" env-default:"0.1"`
	TopRecommendationsPerItem    int     `yaml:"top_recommendations_per_item" env:"RECO_TOP_PER_ITEM" env-default:"5"`
	SyntheticTransactionsPerItem int     `yaml:"synthetic_transactions_per_item" env:"RECO_SYNTHETIC_PER_ITEM" env-default:"35"`
	SyntheticComboWeight         float64 `yaml:"synthetic_combo_weight" env:"RECO_SYNTHETIC_COMBO_WEIGHT" env-default:"0.65"`
	IncludeHistoricalOrders      bool    `yaml:"include_historical_orders" env:"RECO_INCLUDE_HISTORICAL" env-default:"true"`
	TrendWindowDays              int     `yaml:"trend_window_days" env:"RECO_TREND_WINDOW_DAYS" env-default:"30"`
	TrendMaxPoints               int     `yaml:"trend_max_points" env:"RECO_TREND_MAX_POINTS" env-default:"12"`
}

// SchedulerConfig controls the daily rebuild job.
type SchedulerConfig struct {
	// Enabled turns the background rebuild loop on or off.
	Enabled bool `yaml:"enabled" env:"SCHEDULER_ENABLED" env-default:"true"`

	// IntervalHours is the time between scheduled rebuilds.
	IntervalHours int `yaml:"interval_hours" env:"SCHEDULER_INTERVAL_HOURS" env-default:"24"`

	// RunOnStart triggers a rebuild immediately at process start.
	RunOnStart bool `yaml:"run_on_start" env:"SCHEDULER_RUN_ON_START" env-default:"true"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// Secrets (PGPASSWORD, AUTH_SIGNING_KEY, GUEST_COOKIE_SECRET) must come from
// environment variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	// Load config from YAML file with environment variable overrides.
	// A missing config.yaml is fine; env defaults cover everything.
	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment config: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.EnableVerification && c.Auth.SigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required when auth verification is enabled")
	}
	if c.Recommender.MinSupport < 0 || c.Recommender.MinSupport > 1 {
		return fmt.Errorf("recommender.min_support must be within [0,1]")
	}
	if c.Recommender.MinConfidence < 0 || c.Recommender.MinConfidence > 1 {
		return fmt.Errorf("recommender.min_confidence must be within [0,1]")
	}
	if c.Recommender.SyntheticComboWeight < 0 || c.Recommender.SyntheticComboWeight > 1 {
		return fmt.Errorf("recommender.synthetic_combo_weight must be within [0,1]")
	}
	if c.Recommender.TopRecommendationsPerItem < 1 {
		return fmt.Errorf("recommender.top_recommendations_per_item must be at least 1")
	}
	if c.Scheduler.IntervalHours < 1 {
		return fmt.Errorf("scheduler.interval_hours must be at least 1")
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}
