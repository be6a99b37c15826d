// Package config loads and validates gosfv configuration from file and
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/Wishwanderer/gosfv/pkg/gosfv/types"
)

// Defaults applied when neither config file nor environment provides a
// value.
const (
	DefaultAlgorithm          = "xxh3"
	DefaultLargeFileThreshold = "8MiB"
	DefaultBufferSize         = "1MiB"
)

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Components map[string]string `mapstructure:"components"`
}

// CacheConfig configures the persisted digest cache.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Config represents the application configuration.
type Config struct {
	Algorithm          string   `mapstructure:"algorithm"`
	LargeFileThreshold string   `mapstructure:"large_file_threshold"`
	BufferSize         string   `mapstructure:"buffer_size"`
	Exclude            []string `mapstructure:"exclude"`
	Workers            struct {
		// Flash is the pool size for flash-classified groups (0 = auto).
		Flash int `mapstructure:"flash"`
	} `mapstructure:"workers"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// DefaultCachePath returns the digest cache directory under XDG cache.
func DefaultCachePath() string {
	return filepath.Join(xdg.CacheHome, "gosfv", "digests")
}

// SetDefaults registers all configuration defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("algorithm", DefaultAlgorithm)
	v.SetDefault("large_file_threshold", DefaultLargeFileThreshold)
	v.SetDefault("buffer_size", DefaultBufferSize)
	v.SetDefault("exclude", []string{})
	v.SetDefault("workers.flash", 0)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", DefaultCachePath())
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.components", map[string]string{
		"engine":  "info",
		"storage": "info",
	})
}

// Bind registers config file locations, environment handling and defaults
// on v. A non-empty cfgFile pins the config file explicitly; otherwise the
// search order is:
//   - $XDG_CONFIG_HOME/gosfv/config.yaml
//   - $HOME/.config/gosfv/config.yaml
//
// Environment variables are prefixed with GOSFV_ (e.g. GOSFV_ALGORITHM).
func Bind(v *viper.Viper, cfgFile string) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			v.AddConfigPath(filepath.Join(xdgConfigHome, "gosfv"))
		}
		if homeDir, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".config", "gosfv"))
		}
	}

	v.SetEnvPrefix("GOSFV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	SetDefaults(v)
}

// Load reads the configuration bound on v into a validated Config. A
// missing config file is not an error; defaults and environment apply.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field values and normalizes empty ones to defaults.
func (c *Config) Validate() error {
	if c.Algorithm == "" {
		c.Algorithm = DefaultAlgorithm
	}
	if _, err := types.ParseAlgorithm(c.Algorithm); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if c.LargeFileThreshold == "" {
		c.LargeFileThreshold = DefaultLargeFileThreshold
	}
	if _, err := types.ParseSize(c.LargeFileThreshold); err != nil {
		return fmt.Errorf("config: large_file_threshold: %w", err)
	}

	if c.BufferSize == "" {
		c.BufferSize = DefaultBufferSize
	}
	if _, err := types.ParseSize(c.BufferSize); err != nil {
		return fmt.Errorf("config: buffer_size: %w", err)
	}

	if c.Workers.Flash < 0 {
		c.Workers.Flash = 0
	}
	if c.Cache.Path == "" {
		c.Cache.Path = DefaultCachePath()
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	return nil
}

// ParsedAlgorithm returns the configured algorithm.
func (c *Config) ParsedAlgorithm() types.Algorithm {
	alg, _ := types.ParseAlgorithm(c.Algorithm)
	return alg
}

// ParsedLargeFileThreshold returns the threshold in bytes.
func (c *Config) ParsedLargeFileThreshold() int64 {
	n, _ := types.ParseSize(c.LargeFileThreshold)
	return n
}

// ParsedBufferSize returns the scratch buffer size in bytes.
func (c *Config) ParsedBufferSize() int {
	n, _ := types.ParseSize(c.BufferSize)
	return int(n)
}
