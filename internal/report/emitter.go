package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// Emitter delivers finished report windows to an output.
type Emitter interface {
	// Name returns the emitter's name for logging.
	Name() string
	// Emit writes a single window.
	Emit(ctx context.Context, w Window) error
}

// WriterEmitter writes each report line to an io.Writer.
type WriterEmitter struct {
	mu sync.Mutex
	w  io.Writer
}

var _ Emitter = (*WriterEmitter)(nil)

// NewWriterEmitter creates an emitter writing one line per window to w.
func NewWriterEmitter(w io.Writer) *WriterEmitter {
	return &WriterEmitter{w: w}
}

func (e *WriterEmitter) Name() string { return "writer" }

func (e *WriterEmitter) Emit(_ context.Context, w Window) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := io.WriteString(e.w, w.Line+"\n"); err != nil {
		return fmt.Errorf("writing report line: %w", err)
	}

	return nil
}

// LogEmitter emits each report through a structured logger.
type LogEmitter struct {
	log logrus.FieldLogger
}

var _ Emitter = (*LogEmitter)(nil)

// NewLogEmitter creates an emitter logging windows at info level.
func NewLogEmitter(log logrus.FieldLogger) *LogEmitter {
	return &LogEmitter{
		log: log.WithField("emitter", "log"),
	}
}

func (e *LogEmitter) Name() string { return "log" }

func (e *LogEmitter) Emit(_ context.Context, w Window) error {
	e.log.WithFields(logrus.Fields{
		"tags":   len(w.Rates),
		"window": w.Seconds,
	}).Info(w.Line)

	return nil
}

// MultiEmitter fans a window out to several emitters. Every emitter is
// attempted; failures are joined.
type MultiEmitter []Emitter

var _ Emitter = MultiEmitter(nil)

func (m MultiEmitter) Name() string { return "multi" }

func (m MultiEmitter) Emit(ctx context.Context, w Window) error {
	var errs []error

	for _, e := range m {
		if err := e.Emit(ctx, w); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
		}
	}

	return errors.Join(errs...)
}

// discardEmitter drops every window.
type discardEmitter struct{}

func (discardEmitter) Name() string { return "discard" }

func (discardEmitter) Emit(context.Context, Window) error { return nil }

// Discard is an Emitter that drops every window.
var Discard Emitter = discardEmitter{}
