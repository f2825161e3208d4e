// Package config loads and validates the ccs configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tidwall/jsonc"

	"github.com/oakwood-commons/ccs/pkg/loader"
)

// EnvPrefix is the prefix of environment variables that override settings.
const EnvPrefix = "CCS"

const (
	defaultRefreshInterval = 300 * time.Second
	defaultCacheMaxAge     = 10 * time.Minute
)

// Source types.
const (
	SourceFile = "file"
	SourceHTTP = "http"
)

// ErrLoad is returned when the configuration file cannot be read or parsed.
var ErrLoad = errors.New("could not load configuration file")

// ConfigurationError reports a configuration that parsed but makes no sense.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// Config is the root of the configuration file.
type Config struct {
	RefreshInterval time.Duration    `mapstructure:"refresh_interval"`
	Cache           CacheConfig      `mapstructure:"cache"`
	Sources         []SourceConfig   `mapstructure:"sources"`
	Writable        []WritableConfig `mapstructure:"writable"`

	// Dir is the directory of the loaded file; relative source paths are
	// resolved against it.
	Dir string `mapstructure:"-"`
}

// CacheConfig controls the snapshot cache fallback.
type CacheConfig struct {
	MaxAge time.Duration `mapstructure:"max_age"`
}

// SourceConfig declares one service feeding the tree.
type SourceConfig struct {
	Name      string `mapstructure:"name"`
	Type      string `mapstructure:"type"`
	Path      string `mapstructure:"path"`
	Format    string `mapstructure:"format"`
	URL       string `mapstructure:"url"`
	TokenFile string `mapstructure:"token_file"`
}

// WritableConfig declares an attribute that accepts writes.
type WritableConfig struct {
	Path    string   `mapstructure:"path"`
	Type    string   `mapstructure:"type"`
	Choices []string `mapstructure:"choices"`
	Rule    string   `mapstructure:"rule"`
}

// Load reads and validates the configuration at path. JSON files may carry
// comments and trailing commas.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no configuration file given", ErrLoad)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	v := viper.New()
	v.SetConfigType(configType(path))
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("refresh_interval", defaultRefreshInterval)
	v.SetDefault("cache.max_age", defaultCacheMaxAge)

	if configType(path) == "json" {
		data = jsonc.ToJSON(data)
	}
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoad, path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoad, path, err)
	}
	if abs, err := filepath.Abs(filepath.Dir(path)); err == nil {
		cfg.Dir = abs
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return "json"
	case ".toml":
		return "toml"
	default:
		return "yaml"
	}
}

// Validate checks the parts of the configuration that can be checked without
// touching any source.
func (c *Config) Validate() error {
	if c.RefreshInterval < 0 {
		return &ConfigurationError{Field: "refresh_interval", Reason: "must not be negative"}
	}
	if c.Cache.MaxAge < 0 {
		return &ConfigurationError{Field: "cache.max_age", Reason: "must not be negative"}
	}
	if len(c.Sources) == 0 {
		return &ConfigurationError{Field: "sources", Reason: "at least one source is required"}
	}

	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		field := fmt.Sprintf("sources[%d]", i)
		if s.Name == "" {
			return &ConfigurationError{Field: field + ".name", Reason: "is required"}
		}
		if seen[s.Name] {
			return &ConfigurationError{Field: field + ".name", Reason: fmt.Sprintf("duplicate source %q", s.Name)}
		}
		seen[s.Name] = true

		switch s.Type {
		case SourceFile:
			if s.Path == "" {
				return &ConfigurationError{Field: field + ".path", Reason: "is required for file sources"}
			}
			if _, err := loader.ParseFormat(s.Format); err != nil {
				return &ConfigurationError{Field: field + ".format", Reason: err.Error()}
			}
		case SourceHTTP:
			if s.URL == "" {
				return &ConfigurationError{Field: field + ".url", Reason: "is required for http sources"}
			}
		default:
			return &ConfigurationError{Field: field + ".type", Reason: fmt.Sprintf("unknown source type %q: valid values are file, http", s.Type)}
		}
	}

	for i, w := range c.Writable {
		if strings.Trim(w.Path, "/") == "" {
			return &ConfigurationError{Field: fmt.Sprintf("writable[%d].path", i), Reason: "is required"}
		}
	}
	return nil
}
