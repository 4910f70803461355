package report

import (
	"context"
	"errors"
	"fmt"

	processor "github.com/ethpandaops/go-batch-processor"
	"github.com/sirupsen/logrus"
)

// Pipeline is an Emitter that queues windows and forwards them to the
// wrapped emitter from a batch worker, so a slow output never delays the
// next drain.
type Pipeline struct {
	log  logrus.FieldLogger
	next Emitter
	proc *processor.BatchItemProcessor[Window]
}

var _ Emitter = (*Pipeline)(nil)

// windowExporter implements processor.ItemExporter by emitting each queued
// window in order.
type windowExporter struct {
	log  logrus.FieldLogger
	next Emitter
}

var _ processor.ItemExporter[Window] = (*windowExporter)(nil)

func (e *windowExporter) ExportItems(ctx context.Context, items []*Window) error {
	var errs []error

	for _, w := range items {
		if w == nil {
			continue
		}

		if err := e.next.Emit(ctx, *w); err != nil {
			e.log.WithError(err).Warn("Queued report emit failed")
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (e *windowExporter) Shutdown(_ context.Context) error {
	return nil
}

// NewPipeline creates a batch pipeline in front of next.
func NewPipeline(
	log logrus.FieldLogger,
	cfg AsyncConfig,
	next Emitter,
) (*Pipeline, error) {
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid async config: %w", err)
	}

	log = log.WithField("component", "report_pipeline")

	proc, err := processor.NewBatchItemProcessor[Window](
		&windowExporter{log: log, next: next},
		"report_pipeline",
		log,
		processor.WithMaxQueueSize(cfg.MaxQueueSize),
		processor.WithBatchTimeout(cfg.BatchTimeout),
		processor.WithExportTimeout(cfg.ExportTimeout),
		processor.WithMaxExportBatchSize(cfg.MaxQueueSize),
		processor.WithWorkers(cfg.Workers),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processor: %w", err)
	}

	return &Pipeline{
		log:  log,
		next: next,
		proc: proc,
	}, nil
}

func (p *Pipeline) Name() string { return "pipeline(" + p.next.Name() + ")" }

// Start launches the batch workers.
func (p *Pipeline) Start(ctx context.Context) {
	p.proc.Start(ctx)

	p.log.WithField("next", p.next.Name()).Info("Report pipeline started")
}

// Emit queues w. It fails only when the queue cannot accept the window.
func (p *Pipeline) Emit(ctx context.Context, w Window) error {
	if err := p.proc.Write(ctx, []*Window{&w}); err != nil {
		return fmt.Errorf("queueing report: %w", err)
	}

	return nil
}

// Stop flushes queued windows and shuts the workers down.
func (p *Pipeline) Stop(ctx context.Context) error {
	return p.proc.Shutdown(ctx)
}
