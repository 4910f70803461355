package report

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingEmitter captures emitted windows for assertions.
type recordingEmitter struct {
	mu      sync.Mutex
	windows []Window
	err     error
	panics  bool
}

func (e *recordingEmitter) Name() string { return "recording" }

func (e *recordingEmitter) Emit(_ context.Context, w Window) error {
	if e.panics {
		panic("boom")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.windows = append(e.windows, w)

	return e.err
}

func (e *recordingEmitter) Windows() []Window {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Window, len(e.windows))
	copy(out, e.windows)

	return out
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestWriterEmitter(t *testing.T) {
	var buf bytes.Buffer

	e := NewWriterEmitter(&buf)

	require.NoError(t, e.Emit(context.Background(), Window{Line: "p: [a,incoming=1/s,outgoing=1/s]"}))
	require.NoError(t, e.Emit(context.Background(), Window{Line: "p:"}))

	assert.Equal(t, "p: [a,incoming=1/s,outgoing=1/s]\np:\n", buf.String())
}

func TestWriterEmitter_Error(t *testing.T) {
	e := NewWriterEmitter(failingWriter{})

	err := e.Emit(context.Background(), Window{Line: "p:"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "writing report line")
}

func TestLogEmitter(t *testing.T) {
	log, hook := test.NewNullLogger()

	e := NewLogEmitter(log)

	require.NoError(t, e.Emit(context.Background(), Window{
		Seconds: 5,
		Rates:   []TagRate{{Tag: "a"}},
		Line:    "p: [a,incoming=0/s,outgoing=0/s]",
	}))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "p: [a,incoming=0/s,outgoing=0/s]", entry.Message)
	assert.Equal(t, 1, entry.Data["tags"])
	assert.Equal(t, uint64(5), entry.Data["window"])
	assert.Equal(t, "log", entry.Data["emitter"])
}

func TestMultiEmitter(t *testing.T) {
	ok := &recordingEmitter{}
	bad := &recordingEmitter{err: errors.New("sink down")}
	after := &recordingEmitter{}

	m := MultiEmitter{ok, bad, after}

	err := m.Emit(context.Background(), Window{Line: "p:"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recording: sink down")

	// Every emitter is attempted even after a failure.
	assert.Len(t, ok.Windows(), 1)
	assert.Len(t, bad.Windows(), 1)
	assert.Len(t, after.Windows(), 1)
}

func TestDiscard(t *testing.T) {
	assert.NoError(t, Discard.Emit(context.Background(), Window{}))
	assert.Equal(t, "discard", Discard.Name())
}
