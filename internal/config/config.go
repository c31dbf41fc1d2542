// Package config provides configuration management.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"housecost/internal/errors"
	"housecost/internal/logging"
)

// EnvPrefix prefixes every environment override (HOUSECOST_SERVER_ADDR, ...)
const EnvPrefix = "HOUSECOST"

// Config is the main application configuration
type Config struct {
	// Version is the configuration version
	Version string `json:"version" mapstructure:"version"`

	// Server contains HTTP server configuration
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Catalogue contains catalogue source configuration
	Catalogue CatalogueConfig `json:"catalogue" mapstructure:"catalogue"`

	// Preference selects the preference decay policy
	Preference PreferenceConfig `json:"preference" mapstructure:"preference"`

	// Optimizer contains solver limits
	Optimizer OptimizerConfig `json:"optimizer" mapstructure:"optimizer"`

	// History contains run history storage configuration
	History HistoryConfig `json:"history" mapstructure:"history"`

	// Logging contains logging configuration
	Logging logging.Config `json:"logging" mapstructure:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Addr            string        `json:"addr" mapstructure:"addr"`
	ReadTimeout     time.Duration `json:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" mapstructure:"write_timeout"`
	MaxRequestBytes int64         `json:"max_request_bytes" mapstructure:"max_request_bytes"`
	CORSOrigins     []string      `json:"cors_origins" mapstructure:"cors_origins"`
}

// CatalogueConfig contains catalogue settings
type CatalogueConfig struct {
	// Path is the CSV rate catalogue
	Path string `json:"path" mapstructure:"path"`

	// Watch reloads the catalogue when the file changes
	Watch bool `json:"watch" mapstructure:"watch"`

	// Debounce coalesces bursts of file events
	Debounce time.Duration `json:"debounce" mapstructure:"debounce"`
}

// PreferenceConfig selects how preference decays below the requested ceiling
type PreferenceConfig struct {
	// Policy is "priority" (base = priority) or "fixed" (base = FixedBase)
	Policy string `json:"policy" mapstructure:"policy"`

	// FixedBase is the decay base under the fixed policy
	FixedBase float64 `json:"fixed_base" mapstructure:"fixed_base"`
}

// OptimizerConfig contains solver limits
type OptimizerConfig struct {
	// MaxCapacity bounds the discretized budget dimension of the DP table
	MaxCapacity int `json:"max_capacity" mapstructure:"max_capacity"`

	// Timeout is the wall-clock guard for a single optimization
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// HistoryConfig contains run history settings
type HistoryConfig struct {
	// Backend is one of none, memory, file, sqlite
	Backend string `json:"backend" mapstructure:"backend"`

	// Path is the directory (file) or database file (sqlite); empty picks
	// a per-backend location under ~/.housecost
	Path string `json:"path" mapstructure:"path"`
}

// Default returns a default configuration
func Default() *Config {
	return &Config{
		Version: "1.0",
		Server: ServerConfig{
			Addr:            ":3001",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			MaxRequestBytes: 1 << 20,
			CORSOrigins:     []string{"*"},
		},
		Catalogue: CatalogueConfig{
			Path:     filepath.Join("data", "l1-template.csv"),
			Watch:    true,
			Debounce: 250 * time.Millisecond,
		},
		Preference: PreferenceConfig{
			Policy:    "priority",
			FixedBase: 2,
		},
		Optimizer: OptimizerConfig{
			MaxCapacity: 200000,
			Timeout:     10 * time.Second,
		},
		History: HistoryConfig{
			Backend: "memory",
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a file (json, yaml or toml) and applies
// HOUSECOST_* environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	v := newViper(Default())

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, errors.Config("reading config file", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Config("checking config file", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errors.Config("decoding config", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks values that would otherwise fail deep inside the optimizer
func (c *Config) Validate() error {
	switch c.Preference.Policy {
	case "priority", "fixed":
	default:
		return errors.Config("preference.policy must be \"priority\" or \"fixed\", got "+c.Preference.Policy, nil)
	}
	if c.Preference.FixedBase <= 1 {
		return errors.Config("preference.fixed_base must be greater than 1", nil)
	}
	if c.Optimizer.MaxCapacity <= 0 {
		return errors.Config("optimizer.max_capacity must be positive", nil)
	}
	switch c.History.Backend {
	case "none", "memory", "file", "sqlite":
	default:
		return errors.Config("history.backend must be one of none, memory, file, sqlite", nil)
	}
	return nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func newViper(defaults *Config) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a default for AutomaticEnv to reach it during Unmarshal.
	v.SetDefault("version", defaults.Version)
	v.SetDefault("server.addr", defaults.Server.Addr)
	v.SetDefault("server.read_timeout", defaults.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", defaults.Server.WriteTimeout)
	v.SetDefault("server.max_request_bytes", defaults.Server.MaxRequestBytes)
	v.SetDefault("server.cors_origins", defaults.Server.CORSOrigins)
	v.SetDefault("catalogue.path", defaults.Catalogue.Path)
	v.SetDefault("catalogue.watch", defaults.Catalogue.Watch)
	v.SetDefault("catalogue.debounce", defaults.Catalogue.Debounce)
	v.SetDefault("preference.policy", defaults.Preference.Policy)
	v.SetDefault("preference.fixed_base", defaults.Preference.FixedBase)
	v.SetDefault("optimizer.max_capacity", defaults.Optimizer.MaxCapacity)
	v.SetDefault("optimizer.timeout", defaults.Optimizer.Timeout)
	v.SetDefault("history.backend", defaults.History.Backend)
	v.SetDefault("history.path", defaults.History.Path)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)
	v.SetDefault("logging.output", defaults.Logging.Output)
	v.SetDefault("logging.development", defaults.Logging.Development)
	return v
}
