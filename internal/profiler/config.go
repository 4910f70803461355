package profiler

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/throughput/internal/export"
	"github.com/ethpandaops/throughput/internal/report"
)

// Config is the top-level configuration for the throughput profiler.
type Config struct {
	// LogLevel sets the logging verbosity (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// Enabled starts the periodic reporter. Events are recorded
	// regardless; this only controls whether windows are reported.
	Enabled bool `yaml:"enabled"`

	// Report configures the reporting window and line prefix.
	Report report.Config `yaml:",inline"`

	// Output configures where report lines go.
	Output report.OutputConfig `yaml:"output"`

	// Health configures the Prometheus health metrics server.
	Health export.HealthConfig `yaml:"health"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Enabled:  true,
		Report:   report.DefaultConfig(),
		Output:   report.DefaultOutputConfig(),
	}
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Report.Prefix == "" {
		c.Report.Prefix = report.DefaultPrefix
	}

	if err := c.Report.Validate(); err != nil {
		return err
	}

	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("output: %w", err)
	}

	return nil
}
