package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// FileEnv names the environment variable pointing at an optional YAML
// config file. Values set in the environment win over the file.
const FileEnv = "BUNDLED_CONFIG"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Bundles   BundleConfig    `yaml:"bundles"`
	Host      HostConfig      `yaml:"host"`
	Logging   LogConfig       `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" yaml:"port"`
	Host string `envconfig:"HOST" yaml:"host"`
}

// BundleConfig holds bundle storage and extraction configuration.
type BundleConfig struct {
	Root            string `envconfig:"BUNDLE_ROOT" yaml:"root"`
	BaseVersion     string `envconfig:"BASE_VERSION" yaml:"base_version"`
	HostVersion     string `envconfig:"HOST_VERSION" yaml:"host_version"`
	BaseReleaseDate string `envconfig:"BASE_RELEASE_DATE" yaml:"base_release_date"`
	ExtractWorkers  int    `envconfig:"EXTRACT_WORKERS" yaml:"extract_workers"`
	EntryFile       string `envconfig:"ENTRY_FILE" yaml:"entry_file"`
	MaxPayloadBytes int64  `envconfig:"MAX_PAYLOAD_BYTES" yaml:"max_payload_bytes"`
	MaxFileBytes    int64  `envconfig:"MAX_FILE_BYTES" yaml:"max_file_bytes"`
}

// HostConfig holds configuration of the embedding host bridge.
type HostConfig struct {
	PrefsFile string `envconfig:"HOST_PREFS_FILE" yaml:"prefs_file"`

	// derived is set when PrefsFile was computed from the bundle root.
	derived bool
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" yaml:"enabled"`

	// Saves share one bucket across all clients.
	SaveRequestsPerSecond int `envconfig:"RATE_LIMIT_SAVE_RPS" yaml:"save_requests_per_second"`
	SaveBurst             int `envconfig:"RATE_LIMIT_SAVE_BURST" yaml:"save_burst"`
}

// Load builds configuration from defaults, the optional YAML file named by
// BUNDLED_CONFIG, then environment variables, in that order of precedence.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	cfg := defaults()
	cfg.Resolve()
	return cfg
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "127.0.0.1",
		},
		Bundles: BundleConfig{
			Root:            filepath.Join(os.TempDir(), "bundles"),
			BaseVersion:     "0.0.0",
			HostVersion:     "0.0.0",
			ExtractWorkers:  4,
			MaxPayloadBytes: 64 << 20,
			MaxFileBytes:    256 << 20,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,

			SaveRequestsPerSecond: 2,
			SaveBurst:             4,
		},
	}
}

// Validate rejects values the service cannot start with.
func (c *Config) Validate() error {
	if c.Bundles.Root == "" {
		return fmt.Errorf("bundle root must not be empty")
	}
	if c.Bundles.ExtractWorkers < 1 {
		return fmt.Errorf("extract workers must be positive, got %d", c.Bundles.ExtractWorkers)
	}
	if c.Bundles.MaxPayloadBytes < 1 {
		return fmt.Errorf("max payload bytes must be positive, got %d", c.Bundles.MaxPayloadBytes)
	}
	if c.Bundles.MaxFileBytes < 1 {
		return fmt.Errorf("max file bytes must be positive, got %d", c.Bundles.MaxFileBytes)
	}
	return nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Resolve fills values derived from other settings. Call it again after
// overriding the bundle root; an explicitly configured prefs file is kept.
func (c *Config) Resolve() {
	if c.Host.PrefsFile != "" && !c.Host.derived {
		return
	}
	if c.Bundles.Root == "" {
		return
	}
	c.Host.PrefsFile = filepath.Join(filepath.Dir(filepath.Clean(c.Bundles.Root)), "host.toml")
	c.Host.derived = true
}
