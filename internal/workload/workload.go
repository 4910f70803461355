// Package workload generates a steady synthetic event stream, used to
// sanity-check the profiler end to end.
package workload

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// Recorder receives the generated events.
type Recorder interface {
	RecordIncoming(tag string)
	RecordOutgoing(tag string)
}

// Config configures the generator.
type Config struct {
	// Tag is the tag every event is recorded under.
	Tag string
	// Events is the number of incoming/outgoing pairs to record.
	Events int
	// Interval is the pause after each pair.
	Interval time.Duration
}

// DefaultConfig matches one event per second for 100 seconds.
func DefaultConfig() Config {
	return Config{
		Tag:      "test",
		Events:   100,
		Interval: time.Second,
	}
}

// Validate checks the generator configuration.
func (c *Config) Validate() error {
	if c.Tag == "" {
		return errors.New("tag is required")
	}

	if c.Events < 0 {
		return errors.New("events must not be negative")
	}

	if c.Interval < 0 {
		return errors.New("interval must not be negative")
	}

	return nil
}

// Generator records one incoming and one outgoing event per interval.
type Generator struct {
	log logrus.FieldLogger
	cfg Config
	rec Recorder
}

// New creates a Generator.
func New(log logrus.FieldLogger, cfg Config, rec Recorder) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if rec == nil {
		return nil, errors.New("recorder is required")
	}

	return &Generator{
		log: log.WithField("component", "workload"),
		cfg: cfg,
		rec: rec,
	}, nil
}

// Run records the configured number of event pairs and returns the number
// recorded. It stops early, returning ctx.Err(), when ctx is cancelled.
func (g *Generator) Run(ctx context.Context) (int, error) {
	g.log.WithFields(logrus.Fields{
		"tag":      g.cfg.Tag,
		"events":   g.cfg.Events,
		"interval": g.cfg.Interval,
	}).Info("Workload started")

	var timer *time.Timer
	if g.cfg.Interval > 0 {
		timer = time.NewTimer(g.cfg.Interval)
		timer.Stop()

		defer timer.Stop()
	}

	for i := 0; i < g.cfg.Events; i++ {
		if err := ctx.Err(); err != nil {
			return i, err
		}

		g.rec.RecordIncoming(g.cfg.Tag)
		g.rec.RecordOutgoing(g.cfg.Tag)

		if timer == nil {
			continue
		}

		timer.Reset(g.cfg.Interval)

		select {
		case <-ctx.Done():
			return i + 1, ctx.Err()
		case <-timer.C:
		}
	}

	g.log.WithField("events", g.cfg.Events).Info("Workload finished")

	return g.cfg.Events, nil
}
