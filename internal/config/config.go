package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage modes.
const (
	ModeBucket = "bucket"
	ModeLocal  = "local"
)

// Config defines configuration for the botcimghost CLI.
type Config struct {
	StorageMode   string        `yaml:"storage_mode"`
	BucketURL     string        `yaml:"bucket_url"`
	PublicBaseURL string        `yaml:"public_base_url"`
	LocalDir      string        `yaml:"local_dir"`
	CacheControl  string        `yaml:"cache_control"`
	Concurrency   int           `yaml:"concurrency"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout"`
	Proxy         ProxyConfig   `yaml:"proxy"`
}

// ProxyConfig defines proxy-assisted download behavior.
type ProxyConfig struct {
	Enabled   bool   `yaml:"enabled"`
	SourceURL string `yaml:"source_url"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		StorageMode:  ModeLocal,
		LocalDir:     "./mirror",
		CacheControl: "public, max-age=31536000, immutable",
		FetchTimeout: 20 * time.Second,
	}
}

// yamlConfig is used for YAML unmarshaling with string durations.
type yamlConfig struct {
	StorageMode   string          `yaml:"storage_mode"`
	BucketURL     string          `yaml:"bucket_url"`
	PublicBaseURL string          `yaml:"public_base_url"`
	LocalDir      string          `yaml:"local_dir"`
	CacheControl  string          `yaml:"cache_control"`
	Concurrency   int             `yaml:"concurrency"`
	FetchTimeout  string          `yaml:"fetch_timeout"`
	Proxy         yamlProxyConfig `yaml:"proxy"`
}

type yamlProxyConfig struct {
	Enabled   bool   `yaml:"enabled"`
	SourceURL string `yaml:"source_url"`
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.StorageMode != "" {
		cfg.StorageMode = yc.StorageMode
	}
	if yc.BucketURL != "" {
		cfg.BucketURL = yc.BucketURL
	}
	if yc.PublicBaseURL != "" {
		cfg.PublicBaseURL = yc.PublicBaseURL
	}
	if yc.LocalDir != "" {
		cfg.LocalDir = yc.LocalDir
	}
	if yc.CacheControl != "" {
		cfg.CacheControl = yc.CacheControl
	}
	if yc.Concurrency != 0 {
		cfg.Concurrency = yc.Concurrency
	}
	if yc.FetchTimeout != "" {
		d, err := time.ParseDuration(yc.FetchTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse fetch_timeout: %w", err)
		}
		cfg.FetchTimeout = d
	}
	cfg.Proxy.Enabled = yc.Proxy.Enabled
	if yc.Proxy.SourceURL != "" {
		cfg.Proxy.SourceURL = yc.Proxy.SourceURL
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the BOTCIMGHOST_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("BOTCIMGHOST_STORAGE_MODE"); v != "" {
		c.StorageMode = v
	}
	if v := os.Getenv("BOTCIMGHOST_BUCKET_URL"); v != "" {
		c.BucketURL = v
	}
	if v := os.Getenv("BOTCIMGHOST_PUBLIC_BASE_URL"); v != "" {
		c.PublicBaseURL = v
	}
	if v := os.Getenv("BOTCIMGHOST_LOCAL_DIR"); v != "" {
		c.LocalDir = v
	}
	if v := os.Getenv("BOTCIMGHOST_CACHE_CONTROL"); v != "" {
		c.CacheControl = v
	}
	if v := os.Getenv("BOTCIMGHOST_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse BOTCIMGHOST_CONCURRENCY: %w", err)
		}
		c.Concurrency = n
	}
	if v := os.Getenv("BOTCIMGHOST_FETCH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse BOTCIMGHOST_FETCH_TIMEOUT: %w", err)
		}
		c.FetchTimeout = d
	}
	if v := os.Getenv("BOTCIMGHOST_PROXY"); v != "" {
		c.Proxy.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("BOTCIMGHOST_PROXY_SOURCE_URL"); v != "" {
		c.Proxy.SourceURL = v
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.StorageMode {
	case ModeBucket:
		if c.BucketURL == "" {
			return errors.New("config: bucket_url is required in bucket mode")
		}
		if c.PublicBaseURL == "" {
			return errors.New("config: public_base_url is required in bucket mode")
		}
	case ModeLocal:
		if c.LocalDir == "" {
			return errors.New("config: local_dir is required in local mode")
		}
	default:
		return fmt.Errorf("config: unknown storage_mode %q", c.StorageMode)
	}
	if c.Concurrency < 0 {
		return errors.New("config: concurrency must not be negative")
	}
	if c.FetchTimeout <= 0 {
		return errors.New("config: fetch_timeout must be positive")
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.StorageMode != "" {
		c.StorageMode = override.StorageMode
	}
	if override.BucketURL != "" {
		c.BucketURL = override.BucketURL
	}
	if override.PublicBaseURL != "" {
		c.PublicBaseURL = override.PublicBaseURL
	}
	if override.LocalDir != "" {
		c.LocalDir = override.LocalDir
	}
	if override.CacheControl != "" {
		c.CacheControl = override.CacheControl
	}
	if override.Concurrency != 0 {
		c.Concurrency = override.Concurrency
	}
	if override.FetchTimeout != 0 {
		c.FetchTimeout = override.FetchTimeout
	}
	if override.Proxy.Enabled {
		c.Proxy.Enabled = true
	}
	if override.Proxy.SourceURL != "" {
		c.Proxy.SourceURL = override.Proxy.SourceURL
	}
	return c
}
