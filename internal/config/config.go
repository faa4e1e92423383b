// Package config loads the runtime configuration of the tensornet CLI.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/tensornet/internal/network"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid config")

// Config contains all runtime settings. It can be loaded from a YAML file
// and overridden through TENSORNET_* environment variables.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after creation.
type Config struct {
	// Logging contains klog settings.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains the Prometheus endpoint settings.
	Metrics MetricsConfig `yaml:"metrics"`

	// Perf contains performance recorder settings.
	Perf PerfConfig `yaml:"perf"`

	// Output selects where job results are written.
	Output OutputConfig `yaml:"output"`

	// Network contains tensor network defaults.
	Network NetworkConfig `yaml:"network"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Verbosity int `yaml:"verbosity"`
}

// MetricsConfig contains metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// PerfConfig contains performance recorder settings.
type PerfConfig struct {
	PrintProgress bool `yaml:"print_progress"`

	// Dir receives one performance dump per job; empty disables dumps.
	Dir string `yaml:"dir"`
}

// OutputConfig contains result storage settings. Location is a local
// directory or a gs://bucket/prefix URL; empty disables result storage.
type OutputConfig struct {
	Location string `yaml:"location"`
}

// NetworkConfig contains tensor network settings.
type NetworkConfig struct {
	// Strategy is "generic" or "chain".
	Strategy string `yaml:"strategy"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Logging: LoggingConfig{Verbosity: 0},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  ":9090",
		},
		Perf:    PerfConfig{PrintProgress: false},
		Network: NetworkConfig{Strategy: "generic"},
	}
}

// Load loads configuration with priority: env > file > defaults.
//
// Inputs:
//   - path: Path to a YAML config file (optional, can be empty).
//
// Outputs:
//   - Config: Merged configuration.
//   - error: Non-nil if the file exists but is invalid.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Fall back to defaults.
		case err != nil:
			return cfg, fmt.Errorf("load config file: %w", err)
		default:
			if cfg, err = parseInto(cfg, data); err != nil {
				return cfg, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	fromEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse reads a YAML document on top of the defaults and validates it.
func Parse(data []byte) (Config, error) {
	cfg, err := parseInto(Default(), data)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func parseInto(cfg Config, data []byte) (Config, error) {
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func fromEnv(cfg *Config) {
	if v := os.Getenv("TENSORNET_VERBOSITY"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Logging.Verbosity = i
		}
	}
	if v := os.Getenv("TENSORNET_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("TENSORNET_METRICS_LISTEN"); v != "" {
		cfg.Metrics.Listen = v
	}
	if v := os.Getenv("TENSORNET_PRINT_PROGRESS"); v != "" {
		cfg.Perf.PrintProgress = v == "true" || v == "1"
	}
	if v := os.Getenv("TENSORNET_PERF_DIR"); v != "" {
		cfg.Perf.Dir = v
	}
	if v := os.Getenv("TENSORNET_OUTPUT"); v != "" {
		cfg.Output.Location = v
	}
	if v := os.Getenv("TENSORNET_STRATEGY"); v != "" {
		cfg.Network.Strategy = v
	}
}

// Validate checks that the configuration is valid.
func (c Config) Validate() error {
	if c.Logging.Verbosity < 0 {
		return fmt.Errorf("%w: verbosity must be >= 0", ErrInvalid)
	}
	if c.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(c.Metrics.Listen); err != nil {
			return fmt.Errorf("%w: metrics listen address %q: %v", ErrInvalid, c.Metrics.Listen, err)
		}
	}
	if _, err := network.StrategyByName(c.Network.Strategy); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if strings.HasPrefix(c.Output.Location, "gs://") && strings.TrimPrefix(c.Output.Location, "gs://") == "" {
		return fmt.Errorf("%w: output location %q names no bucket", ErrInvalid, c.Output.Location)
	}
	return nil
}
