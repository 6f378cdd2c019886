// Package config loads service configuration from defaults, an optional
// YAML file and AUDITMESH_-prefixed environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Queue    QueueConfig    `mapstructure:"queue"`
	State    StateConfig    `mapstructure:"state"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Model    ModelConfig    `mapstructure:"model"`
	Watchdog WatchdogConfig `mapstructure:"watchdog"`
	Report   ReportConfig   `mapstructure:"report"`
	LogLevel string         `mapstructure:"log_level"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// QueueConfig configures the task queue.
type QueueConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

// StateConfig configures the JSON state store.
type StateConfig struct {
	Path string `mapstructure:"path"`
}

// StorageConfig configures the findings database.
type StorageConfig struct {
	DSN string `mapstructure:"dsn"`
}

// CacheConfig configures the optional Redis scan cache.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	TTL     string `mapstructure:"ttl"`
}

// ModelConfig selects the optional language model provider.
type ModelConfig struct {
	Provider string `mapstructure:"provider"` // "", "anthropic", "openai", "mock"
	Name     string `mapstructure:"name"`
}

// WatchdogConfig configures the health monitor.
type WatchdogConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
}

// ReportConfig configures report artifact output.
type ReportConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

// Load reads configuration. path may be empty, in which case only defaults
// and environment variables apply; a named file that does not exist is an
// error, so misconfigured deployments fail loudly.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("queue.max_concurrent", 5)
	v.SetDefault("state.path", "data/state.json")
	v.SetDefault("storage.dsn", "data/audit.db")
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "127.0.0.1:6379")
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("model.provider", "")
	v.SetDefault("watchdog.interval_seconds", 30)
	v.SetDefault("report.output_dir", "data/reports")
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("AUDITMESH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Queue.MaxConcurrent <= 0 {
		return errors.New("queue.max_concurrent must be positive")
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr must not be empty")
	}
	return nil
}
