// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root service configuration, loaded from YAML with
// environment variable expansion (${VAR} syntax).
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Trust       TrustConfig       `yaml:"trust"`
	Fetch       FetchConfig       `yaml:"fetch"`
	Cache       CacheConfig       `yaml:"cache"`
	Store       StoreConfig       `yaml:"store"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// AuthToken, when set, is required as a bearer token on API routes.
	AuthToken string `yaml:"auth_token"`

	// RateLimit and RateBurst bound requests per caller, not globally.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`

	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// TrustConfig overrides the built-in URL trust policy. Empty lists keep the
// defaults.
type TrustConfig struct {
	AllowedDomains []string `yaml:"allowed_domains"`
	DeniedHosts    []string `yaml:"denied_hosts"`
	RetailKeywords []string `yaml:"retail_keywords"`
	TrustedTLDs    []string `yaml:"trusted_tlds"`
}

// FetchConfig bounds outbound page fetches.
type FetchConfig struct {
	Timeout      Duration `yaml:"timeout"`
	MaxBodyBytes int64    `yaml:"max_body_bytes"`
	RateLimit    float64  `yaml:"rate_limit"`
	RateBurst    int      `yaml:"rate_burst"`
	UserAgents   []string `yaml:"user_agents"`
}

// CacheConfig selects the product cache backend.
type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend string   `yaml:"backend"`
	TTL     Duration `yaml:"ttl"`

	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig holds connection details for the redis cache backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StoreConfig selects the persistence backend for wishlists.
type StoreConfig struct {
	// Driver is "sqlite3" or "postgres".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// MaintenanceConfig controls the scheduled background jobs.
type MaintenanceConfig struct {
	Enabled bool `yaml:"enabled"`

	// ImageCleanupSchedule is a cron expression for the orphaned-image
	// cleanup job.
	ImageCleanupSchedule string `yaml:"image_cleanup_schedule"`

	// ImageCleanupBudget caps deletions attempted per run.
	ImageCleanupBudget int `yaml:"image_cleanup_budget"`

	// ImageCleanupMaxAttempts retires a queue entry after this many failed
	// deletion attempts.
	ImageCleanupMaxAttempts int `yaml:"image_cleanup_max_attempts"`

	// ReminderSchedule is a cron expression for the purchase reminder job.
	ReminderSchedule string `yaml:"reminder_schedule"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// LoadFromFile reads, expands and validates a YAML configuration file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Load(data)
}

// Load parses YAML configuration bytes. Environment references are expanded
// before parsing, defaults are applied after.
func Load(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RateLimit <= 0 {
		c.Server.RateLimit = 1.0
	}
	if c.Server.RateBurst <= 0 {
		c.Server.RateBurst = 5
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = Duration(15 * time.Second)
	}
	if c.Server.WriteTimeout <= 0 {
		// Enrichment itself may take up to the fetch timeout.
		c.Server.WriteTimeout = Duration(30 * time.Second)
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = Duration(10 * time.Second)
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		c.Fetch.MaxBodyBytes = 300 * 1024
	}
	if c.Fetch.RateLimit <= 0 {
		c.Fetch.RateLimit = 5.0
	}
	if c.Fetch.RateBurst <= 0 {
		c.Fetch.RateBurst = 10
	}

	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = Duration(12 * time.Hour)
	}
	if c.Cache.Redis.Addr == "" {
		c.Cache.Redis.Addr = "localhost:6379"
	}

	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite3"
	}
	if c.Store.DSN == "" {
		c.Store.DSN = "wishlink.db"
	}

	if c.Maintenance.ImageCleanupSchedule == "" {
		c.Maintenance.ImageCleanupSchedule = "0 3 * * *"
	}
	if c.Maintenance.ImageCleanupBudget <= 0 {
		c.Maintenance.ImageCleanupBudget = 40
	}
	if c.Maintenance.ImageCleanupMaxAttempts <= 0 {
		c.Maintenance.ImageCleanupMaxAttempts = 5
	}
	if c.Maintenance.ReminderSchedule == "" {
		c.Maintenance.ReminderSchedule = "0 9 * * *"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate rejects configurations that cannot work.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got %q", c.Cache.Backend)
	}
	switch c.Store.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("store.driver must be sqlite3 or postgres, got %q", c.Store.Driver)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
