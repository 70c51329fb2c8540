// Package config loads client configuration from an optional YAML file,
// a .env file and environment variables (highest precedence).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ayxkaddd/FilesBoard/pkg/client"
)

// Config holds all client configuration.
type Config struct {
	// Remote file store
	Server  string        `yaml:"server"`
	Origin  string        `yaml:"origin"`
	Timeout time.Duration `yaml:"timeout"`

	// Auth. Token is never read from the YAML file.
	Token     string `yaml:"-"`
	TokenFile string `yaml:"token_file"`

	// Download cache
	CacheDir      string `yaml:"cache_dir"`
	CacheMaxBytes int64  `yaml:"cache_max_bytes"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Metrics listener, empty to disable.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	cacheDir := filepath.Join(os.TempDir(), "filesboard-cache")
	if dir, err := os.UserCacheDir(); err == nil {
		cacheDir = filepath.Join(dir, "filesboard")
	}
	return &Config{
		Server:        "http://localhost:8000",
		TokenFile:     client.DefaultTokenFilePath(),
		CacheDir:      cacheDir,
		CacheMaxBytes: 256 * 1024 * 1024, // 256MB
		LogLevel:      "info",
		LogFormat:     "console",
	}
}

// Load reads .env (when present), then the YAML file named by
// FILESBOARD_CONFIG, then environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Defaults()
	if path := os.Getenv("FILESBOARD_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.Server = envOr("FILESBOARD_SERVER", cfg.Server)
	cfg.Origin = envOr("FILESBOARD_ORIGIN", cfg.Origin)
	cfg.Timeout = envDuration("FILESBOARD_TIMEOUT", cfg.Timeout)
	cfg.Token = envOr("FILESBOARD_TOKEN", cfg.Token)
	cfg.TokenFile = envOr("FILESBOARD_TOKEN_FILE", cfg.TokenFile)
	cfg.CacheDir = envOr("FILESBOARD_CACHE_DIR", cfg.CacheDir)
	cfg.CacheMaxBytes = envInt64("FILESBOARD_CACHE_MAX", cfg.CacheMaxBytes)
	cfg.LogLevel = envOr("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envOr("LOG_FORMAT", cfg.LogFormat)
	cfg.MetricsAddr = envOr("METRICS_ADDR", cfg.MetricsAddr)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration and fills derived defaults.
func (c *Config) Validate() error {
	if err := checkHTTPURL("server", c.Server); err != nil {
		return err
	}
	if c.Origin == "" {
		c.Origin = c.Server
	} else if err := checkHTTPURL("origin", c.Origin); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	if c.CacheMaxBytes <= 0 {
		return fmt.Errorf("cache size must be positive, got %d", c.CacheMaxBytes)
	}
	return nil
}

func checkHTTPURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s URL %q: %w", name, raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", name, raw)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
