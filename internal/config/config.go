package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from .env files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	UsersEndpoint      string        `mapstructure:"users_endpoint"`
	HTTPTimeoutSeconds int64         `mapstructure:"http_timeout_seconds"`
	HTTPTimeout        time.Duration `mapstructure:"-"`
	SimulatedDelayMs   int64         `mapstructure:"simulated_delay_ms"`
	SimulatedDelay     time.Duration `mapstructure:"-"`

	ConnectivityMode           string        `mapstructure:"connectivity_mode"`
	ConnectivityProbeAddr      string        `mapstructure:"connectivity_probe_addr"`
	ConnectivityProbeTimeoutMs int64         `mapstructure:"connectivity_probe_timeout_ms"`
	ConnectivityProbeTimeout   time.Duration `mapstructure:"-"`

	WatchIntervalSeconds int64         `mapstructure:"watch_interval_seconds"`
	WatchInterval        time.Duration `mapstructure:"-"`

	PublishersFile string `mapstructure:"publishers_file"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`
}

// Load reads configuration from configs/.env (if present) and environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "samvad-user-fetcher")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("users_endpoint", "https://jsonplaceholder.typicode.com/users")
	v.SetDefault("http_timeout_seconds", 0) // transport default
	v.SetDefault("simulated_delay_ms", 0)
	v.SetDefault("connectivity_mode", "interfaces")
	v.SetDefault("connectivity_probe_addr", "jsonplaceholder.typicode.com:443")
	v.SetDefault("connectivity_probe_timeout_ms", 2000)
	v.SetDefault("watch_interval_seconds", 0)
	v.SetDefault("publishers_file", "")
	v.SetDefault("storage_type", "none")
	v.SetDefault("bbolt_path", "./data/users.db")
	v.SetDefault("storage_ttl_seconds", int64((7*24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	c.UsersEndpoint = strings.TrimSpace(c.UsersEndpoint)
	if c.UsersEndpoint == "" {
		return fmt.Errorf("invalid users_endpoint (must not be empty)")
	}

	if c.HTTPTimeoutSeconds < 0 {
		return fmt.Errorf("invalid http_timeout_seconds (must be zero or positive seconds)")
	}
	c.HTTPTimeout = time.Duration(c.HTTPTimeoutSeconds) * time.Second

	if c.SimulatedDelayMs < 0 {
		return fmt.Errorf("invalid simulated_delay_ms (must be zero or positive milliseconds)")
	}
	c.SimulatedDelay = time.Duration(c.SimulatedDelayMs) * time.Millisecond

	c.ConnectivityMode = strings.ToLower(strings.TrimSpace(c.ConnectivityMode))
	if c.ConnectivityProbeTimeoutMs <= 0 {
		return fmt.Errorf("invalid connectivity_probe_timeout_ms (must be positive milliseconds)")
	}
	c.ConnectivityProbeTimeout = time.Duration(c.ConnectivityProbeTimeoutMs) * time.Millisecond

	if c.WatchIntervalSeconds < 0 {
		return fmt.Errorf("invalid watch_interval_seconds (must be zero or positive seconds)")
	}
	c.WatchInterval = time.Duration(c.WatchIntervalSeconds) * time.Second

	if c.StorageTTLSeconds <= 0 {
		return fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if c.StorageCleanupSeconds <= 0 {
		return fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	c.StorageTTL = time.Duration(c.StorageTTLSeconds) * time.Second
	c.StorageCleanupInterval = time.Duration(c.StorageCleanupSeconds) * time.Second

	return nil
}
