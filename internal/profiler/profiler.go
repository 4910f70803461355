// Package profiler owns the process-wide throughput counters and the
// reporter that summarizes them.
package profiler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/throughput/internal/counter"
	"github.com/ethpandaops/throughput/internal/export"
	"github.com/ethpandaops/throughput/internal/report"
)

// ErrAlreadyStarted is returned when Start is called more than once.
var ErrAlreadyStarted = errors.New("profiler already started")

// Recorder is the surface application code uses to mark events.
type Recorder interface {
	// RecordIncoming marks an event of kind tag as arrived.
	RecordIncoming(tag string)
	// RecordOutgoing marks an event of kind tag as completed.
	RecordOutgoing(tag string)
}

// State is the reporter lifecycle state.
type State int

const (
	// StateStopped means no reporter task exists.
	StateStopped State = iota
	// StateRunning means the reporter loop is active.
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	default:
		return "stopped"
	}
}

// Option customizes a Profiler.
type Option func(*options)

type options struct {
	writer      io.Writer
	emitters    []report.Emitter
	forceReport bool
}

// WithWriter replaces the configured plain-text writer.
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.writer = w }
}

// WithEmitter adds an emitter that receives every window.
func WithEmitter(e report.Emitter) Option {
	return func(o *options) { o.emitters = append(o.emitters, e) }
}

// WithForceReport starts the reporter even when the config disables it.
func WithForceReport() Option {
	return func(o *options) { o.forceReport = true }
}

// Profiler constructs the counter store once and drives the periodic
// reporter over it.
type Profiler struct {
	log       logrus.FieldLogger
	cfg       *Config
	store     *counter.Store
	health    *export.HealthMetrics
	pipeline  *report.Pipeline
	reporter  *report.Reporter
	reporting bool

	mu      sync.Mutex
	started bool
}

var _ Recorder = (*Profiler)(nil)

// New creates a Profiler. The reporter is not started until Start.
func New(log logrus.FieldLogger, cfg *Config, opts ...Option) (*Profiler, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	p := &Profiler{
		log:       log.WithField("component", "profiler"),
		cfg:       cfg,
		store:     counter.NewStore(),
		health:    export.NewHealthMetrics(log, cfg.Health),
		reporting: cfg.Enabled || o.forceReport,
	}

	emitter, err := p.buildEmitter(log, o)
	if err != nil {
		return nil, err
	}

	p.reporter, err = report.New(log, cfg.Report, p.store, emitter, p.health)
	if err != nil {
		return nil, fmt.Errorf("creating reporter: %w", err)
	}

	return p, nil
}

func (p *Profiler) buildEmitter(log logrus.FieldLogger, o *options) (report.Emitter, error) {
	var emitters report.MultiEmitter

	w := o.writer
	if w == nil {
		switch p.cfg.Output.Writer {
		case report.WriterStderr:
			w = os.Stderr
		case report.WriterNone:
		default:
			w = os.Stdout
		}
	}

	if w != nil {
		emitters = append(emitters, report.NewWriterEmitter(w))
	}

	if p.cfg.Output.Log {
		emitters = append(emitters, report.NewLogEmitter(log))
	}

	emitters = append(emitters, o.emitters...)

	var emitter report.Emitter

	switch len(emitters) {
	case 0:
		emitter = report.Discard
	case 1:
		emitter = emitters[0]
	default:
		emitter = emitters
	}

	if !p.cfg.Output.Async.Enabled {
		return emitter, nil
	}

	pipeline, err := report.NewPipeline(log, p.cfg.Output.Async, emitter)
	if err != nil {
		return nil, fmt.Errorf("creating report pipeline: %w", err)
	}

	p.pipeline = pipeline

	return pipeline, nil
}

// Start brings up the health server, the async pipeline when configured
// and, when reporting is enabled, the periodic reporter. Start may be
// retried after a health server failure.
func (p *Profiler) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrAlreadyStarted
	}

	if err := p.health.Start(ctx); err != nil {
		return fmt.Errorf("starting health metrics: %w", err)
	}

	p.started = true

	// Flush emits through the pipeline even while reporting is disabled.
	if p.pipeline != nil {
		p.pipeline.Start(ctx)
	}

	if !p.reporting {
		p.log.Info("Instrumentation disabled, reporter not started")

		return nil
	}

	p.health.RequireReporter()

	if err := p.reporter.Start(ctx); err != nil {
		return fmt.Errorf("starting reporter: %w", err)
	}

	return nil
}

// Stop shuts down the reporter, the emit pipeline and the health server.
func (p *Profiler) Stop() error {
	var errs []error

	if err := p.reporter.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stopping reporter: %w", err))
	}

	p.mu.Lock()
	started := p.started
	p.mu.Unlock()

	if p.pipeline != nil && started {
		if err := p.pipeline.Stop(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("stopping report pipeline: %w", err))
		}
	}

	if err := p.health.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stopping health metrics: %w", err))
	}

	return errors.Join(errs...)
}

// RecordIncoming marks an event of kind tag as arrived. Recording happens
// whether or not the reporter is running.
func (p *Profiler) RecordIncoming(tag string) {
	p.store.RecordIncoming(tag)
}

// RecordOutgoing marks an event of kind tag as completed.
func (p *Profiler) RecordOutgoing(tag string) {
	p.store.RecordOutgoing(tag)
}

// State returns whether the reporter loop is running.
func (p *Profiler) State() State {
	if p.reporter.Running() {
		return StateRunning
	}

	return StateStopped
}

// Health returns the profiler's self-metrics.
func (p *Profiler) Health() *export.HealthMetrics {
	return p.health
}

// Flush reports the current window immediately, outside the regular
// cadence. Rates are still computed against the full window length. With
// async output the window is queued, so Flush must follow Start.
func (p *Profiler) Flush(ctx context.Context) (report.Window, error) {
	return p.reporter.Cycle(ctx)
}
