package report

import (
	"errors"
	"fmt"
	"time"
)

// DefaultPrefix is the component identifier that starts every report line.
const DefaultPrefix = "ThroughputProfiler:"

// Writer targets for the plain-text emitter.
const (
	WriterStdout = "stdout"
	WriterStderr = "stderr"
	WriterNone   = "none"
)

// Config configures the periodic reporter.
type Config struct {
	// MeasurementDelay is the reporting window. Rates are computed by
	// floor-dividing window counts by its length in whole seconds.
	// Defaults to 5s.
	MeasurementDelay time.Duration `yaml:"measurement_delay"`

	// Prefix is written at the start of every report line.
	// Defaults to "ThroughputProfiler:".
	Prefix string `yaml:"prefix"`
}

// OutputConfig configures where report lines are emitted.
type OutputConfig struct {
	// Writer selects the plain-text destination (stdout, stderr, none).
	// Defaults to stdout.
	Writer string `yaml:"writer"`

	// Log additionally emits each report through the structured logger.
	Log bool `yaml:"log"`

	// Async configures the buffered emit pipeline.
	Async AsyncConfig `yaml:"async"`
}

// AsyncConfig configures the batch pipeline that decouples emitting from
// draining.
type AsyncConfig struct {
	// Enabled routes reports through the batch pipeline.
	Enabled bool `yaml:"enabled"`

	// MaxQueueSize is the maximum number of queued reports.
	// Defaults to 64.
	MaxQueueSize int `yaml:"max_queue_size"`

	// BatchTimeout is the maximum time a report waits in the queue.
	// Defaults to 100ms.
	BatchTimeout time.Duration `yaml:"batch_timeout"`

	// ExportTimeout bounds a single emit of a batch.
	// Defaults to 5s.
	ExportTimeout time.Duration `yaml:"export_timeout"`

	// Workers is the number of concurrent emit workers.
	// Defaults to 1.
	Workers int `yaml:"workers"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MeasurementDelay: 5 * time.Second,
		Prefix:           DefaultPrefix,
	}
}

// DefaultOutputConfig returns an OutputConfig with sensible defaults.
func DefaultOutputConfig() OutputConfig {
	return OutputConfig{
		Writer: WriterStdout,
		Async:  DefaultAsyncConfig(),
	}
}

// DefaultAsyncConfig returns an AsyncConfig with sensible defaults.
func DefaultAsyncConfig() AsyncConfig {
	return AsyncConfig{
		MaxQueueSize:  64,
		BatchTimeout:  100 * time.Millisecond,
		ExportTimeout: 5 * time.Second,
		Workers:       1,
	}
}

// Validate checks the reporter configuration.
func (c *Config) Validate() error {
	if c.MeasurementDelay < time.Second {
		return fmt.Errorf(
			"measurement_delay must be at least 1s, got %s", c.MeasurementDelay,
		)
	}

	if c.MeasurementDelay%time.Second != 0 {
		return fmt.Errorf(
			"measurement_delay must be a whole number of seconds, got %s",
			c.MeasurementDelay,
		)
	}

	return nil
}

// Seconds returns the window length in whole seconds.
func (c *Config) Seconds() uint64 {
	return uint64(c.MeasurementDelay / time.Second)
}

// Validate checks the output configuration.
func (c *OutputConfig) Validate() error {
	switch c.Writer {
	case "", WriterStdout, WriterStderr, WriterNone:
	default:
		return errors.New("invalid output writer: " + c.Writer)
	}

	return c.Async.Validate()
}

// Validate checks the async pipeline configuration.
func (c *AsyncConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.MaxQueueSize <= 0 {
		return errors.New("max_queue_size must be greater than 0")
	}

	if c.Workers <= 0 {
		return errors.New("workers must be greater than 0")
	}

	return nil
}

// ApplyDefaults applies default values to unset fields.
func (c *AsyncConfig) ApplyDefaults() {
	defaults := DefaultAsyncConfig()

	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = defaults.MaxQueueSize
	}

	if c.BatchTimeout <= 0 {
		c.BatchTimeout = defaults.BatchTimeout
	}

	if c.ExportTimeout <= 0 {
		c.ExportTimeout = defaults.ExportTimeout
	}

	if c.Workers <= 0 {
		c.Workers = defaults.Workers
	}
}
