// Package config loads server configuration from an optional YAML file and
// the environment. Environment variables always win over the file.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/warp/billing-engine/billing"
)

type Config struct {
	Env     string        `yaml:"env" env:"BILLING_ENV" env-default:"local"`
	HTTP    HTTPConfig    `yaml:"http"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
	Billing BillingConfig `yaml:"billing"`
	Resync  ResyncConfig  `yaml:"resync"`
}

type HTTPConfig struct {
	Port            int           `yaml:"port" env:"BILLING_HTTP_PORT" env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"BILLING_HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"BILLING_HTTP_WRITE_TIMEOUT" env-default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"BILLING_HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"BILLING_HTTP_ALLOWED_ORIGINS" env-default:"*" env-separator:","`
}

// Address is the listen address for net/http.
func (h HTTPConfig) Address() string { return fmt.Sprintf(":%d", h.Port) }

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type StorageConfig struct {
	Driver      string `yaml:"driver" env:"BILLING_STORAGE_DRIVER" env-default:"sqlite"`
	SQLitePath  string `yaml:"sqlite_path" env:"BILLING_SQLITE_PATH" env-default:"./data/billing.db"`
	PostgresURL string `yaml:"postgres_url" env:"BILLING_DATABASE_URL"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"BILLING_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"BILLING_LOG_FORMAT" env-default:"json"`
}

// BillingConfig holds the server-wide fallbacks used when a company has
// nothing stored.
type BillingConfig struct {
	DailyCapacity float64 `yaml:"daily_capacity" env:"BILLING_DAILY_CAPACITY" env-default:"8"`
	WindowFrom    int     `yaml:"window_from" env:"BILLING_WINDOW_FROM" env-default:"-1"`
	WindowTo      int     `yaml:"window_to" env:"BILLING_WINDOW_TO" env-default:"12"`
	Timezone      string  `yaml:"timezone" env:"BILLING_TIMEZONE" env-default:"UTC"`
}

// Window is the default month-offset window for period listings.
func (b BillingConfig) Window() billing.Window {
	return billing.Window{From: b.WindowFrom, To: b.WindowTo}
}

// Location resolves Timezone.
func (b BillingConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return nil, fmt.Errorf("billing timezone %q: %w", b.Timezone, err)
	}
	return loc, nil
}

type ResyncConfig struct {
	Enabled  bool          `yaml:"enabled" env:"BILLING_RESYNC_ENABLED" env-default:"false"`
	Interval time.Duration `yaml:"interval" env:"BILLING_RESYNC_INTERVAL" env-default:"15m"`
}

// Load reads path (YAML) when it is non-empty, otherwise only the environment.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("storage.postgres_url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if err := c.Billing.Window().Validate(); err != nil {
		return fmt.Errorf("billing window: %w", err)
	}
	if c.Billing.DailyCapacity < 0 {
		return fmt.Errorf("billing.daily_capacity must not be negative")
	}
	if c.Resync.Enabled && c.Resync.Interval <= 0 {
		return fmt.Errorf("resync.interval must be positive")
	}
	if _, err := c.Billing.Location(); err != nil {
		return err
	}
	return nil
}
