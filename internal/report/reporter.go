// Package report turns drained counter windows into per-second rate
// reports on a fixed cadence.
package report

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/throughput/internal/counter"
	"github.com/ethpandaops/throughput/internal/export"
)

// ErrAlreadyStarted is returned when Start is called on a running reporter.
var ErrAlreadyStarted = errors.New("reporter already started")

// Source is drained once per reporting window.
type Source interface {
	Drain() counter.Snapshot
}

// Reporter periodically drains a Source, computes per-second rates and
// emits one report line per window.
type Reporter struct {
	log     logrus.FieldLogger
	cfg     Config
	source  Source
	emitter Emitter
	health  *export.HealthMetrics
	now     func() time.Time

	// tick is the wait between cycles and seconds the rate divisor; both
	// follow MeasurementDelay outside tests.
	tick    time.Duration
	seconds uint64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Reporter. health may be nil.
func New(
	log logrus.FieldLogger,
	cfg Config,
	source Source,
	emitter Emitter,
	health *export.HealthMetrics,
) (*Reporter, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid reporter config: %w", err)
	}

	if source == nil {
		return nil, errors.New("reporter source is required")
	}

	if emitter == nil {
		emitter = Discard
	}

	return &Reporter{
		log:     log.WithField("component", "reporter"),
		cfg:     cfg,
		source:  source,
		emitter: emitter,
		health:  health,
		now:     time.Now,
		tick:    cfg.MeasurementDelay,
		seconds: cfg.Seconds(),
	}, nil
}

// Start launches the reporting loop. The loop runs until ctx is cancelled
// or Stop is called.
func (r *Reporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	if r.health != nil {
		r.health.SetReporterRunning(true)
	}

	go r.run(ctx, r.done)

	r.log.WithFields(logrus.Fields{
		"measurement_delay": r.cfg.MeasurementDelay,
		"emitter":           r.emitter.Name(),
	}).Info("Reporter started")

	return nil
}

// Stop cancels the loop and waits for it to exit. The in-progress window
// is not reported.
func (r *Reporter) Stop() error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()
	<-done

	return nil
}

// Running reports whether the loop is active.
func (r *Reporter) Running() bool {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()

	if done == nil {
		return false
	}

	select {
	case <-done:
		return false
	default:
		return true
	}
}

func (r *Reporter) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	defer func() {
		if r.health != nil {
			r.health.SetReporterRunning(false)
		}
	}()

	// The timer is re-armed after each cycle so a slow emit delays the
	// next window instead of shortening it.
	timer := time.NewTimer(r.tick)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Debug("Reporter stopped")

			return
		case <-timer.C:
			if _, err := r.Cycle(ctx); err != nil {
				r.log.WithError(err).Warn("Report emit failed")
			}

			timer.Reset(r.tick)
		}
	}
}

// Cycle drains the source once and emits the resulting window. The window
// is returned even when emitting fails; the counters are reset either way.
func (r *Reporter) Cycle(ctx context.Context) (Window, error) {
	start := time.Now()

	snap := r.source.Drain()
	w := NewWindow(r.cfg.Prefix, snap, r.seconds, r.now())

	if r.health != nil {
		in, out := snap.Totals()

		r.health.ReportCycles.Inc()
		r.health.WindowTags.Set(float64(snap.Len()))
		r.health.WindowEvents.WithLabelValues(export.DirectionIncoming).Add(float64(in))
		r.health.WindowEvents.WithLabelValues(export.DirectionOutgoing).Add(float64(out))
		r.health.DrainDuration.Observe(time.Since(start).Seconds())
	}

	if err := r.emit(ctx, w); err != nil {
		if r.health != nil {
			r.health.EmitErrors.Inc()
		}

		return w, fmt.Errorf("emitting to %s: %w", r.emitter.Name(), err)
	}

	if r.health != nil {
		r.health.ReportsEmitted.Inc()
	}

	return w, nil
}

func (r *Reporter) emit(ctx context.Context, w Window) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("emitter panic: %v", p)
		}
	}()

	return r.emitter.Emit(ctx, w)
}
