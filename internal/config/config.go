package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for a config file when none is given.
const DefaultPath = "arcanea.yaml"

// Config holds all Arcanea configuration.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Runtime  RuntimeConfig  `yaml:"runtime"`
	Modules  ModulesConfig  `yaml:"modules"`
	Database DatabaseConfig `yaml:"database"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
	File   string `yaml:"file"`   // empty means stderr
}

// RuntimeConfig configures the interpreter.
type RuntimeConfig struct {
	MaxCallDepth int    `yaml:"max_call_depth"`
	CastTimeout  string `yaml:"cast_timeout"` // empty means no deadline
}

// ModulesConfig configures module resolution.
type ModulesConfig struct {
	SearchPaths []string `yaml:"search_paths"`
	Preload     []string `yaml:"preload"`
	Native      []string `yaml:"native"` // host modules to expose, e.g. sql
}

// DatabaseConfig configures connections opened by the sql module.
type DatabaseConfig struct {
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Runtime: RuntimeConfig{
			MaxCallDepth: 256,
		},
		Modules: ModulesConfig{
			SearchPaths: []string{".", "./lib", "./modules"},
			Native:      []string{"sql"},
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: "5m",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if level := os.Getenv("ARCANEA_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("ARCANEA_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}

	// Extra module directories are searched first.
	if paths := os.Getenv("ARCANEA_MODULE_PATH"); paths != "" {
		var extra []string
		for _, p := range strings.Split(paths, string(os.PathListSeparator)) {
			if p != "" {
				extra = append(extra, p)
			}
		}
		c.Modules.SearchPaths = append(extra, c.Modules.SearchPaths...)
	}

	if depth := os.Getenv("ARCANEA_MAX_CALL_DEPTH"); depth != "" {
		if n, err := strconv.Atoi(depth); err == nil {
			c.Runtime.MaxCallDepth = n
		}
	}
	if timeout := os.Getenv("ARCANEA_CAST_TIMEOUT"); timeout != "" {
		c.Runtime.CastTimeout = timeout
	}
}

// GetCastTimeout returns the per-cast deadline, or zero for none.
func (c *Config) GetCastTimeout() time.Duration {
	if c.Runtime.CastTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Runtime.CastTimeout)
	if err != nil {
		return 0
	}
	return d
}

// GetConnMaxLifetime returns the pooled connection lifetime as a duration.
func (c *Config) GetConnMaxLifetime() time.Duration {
	d, err := time.ParseDuration(c.Database.ConnMaxLifetime)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// ValidLogLevels lists the accepted logging levels.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validLevel := false
	for _, l := range ValidLogLevels {
		if c.Logging.Level == l {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, ValidLogLevels)
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (valid: json, console)", c.Logging.Format)
	}

	if c.Runtime.MaxCallDepth <= 0 {
		return fmt.Errorf("max_call_depth must be positive, got %d", c.Runtime.MaxCallDepth)
	}

	if c.Runtime.CastTimeout != "" {
		if _, err := time.ParseDuration(c.Runtime.CastTimeout); err != nil {
			return fmt.Errorf("invalid cast_timeout: %w", err)
		}
	}

	return nil
}
