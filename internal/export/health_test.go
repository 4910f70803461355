package export

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLog() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.DebugLevel)

	return log
}

func startHealth(t *testing.T) *HealthMetrics {
	t.Helper()

	h := NewHealthMetrics(testLog(), HealthConfig{
		Addr: "127.0.0.1:0",
	})

	require.NoError(t, h.Start(context.Background()))

	t.Cleanup(func() {
		h.Stop()
	})

	// Give server a moment to start serving.
	time.Sleep(50 * time.Millisecond)

	return h
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestHealthMetrics_StartStop(t *testing.T) {
	h := startHealth(t)
	assert.NotEmpty(t, h.Addr())
	assert.NotEqual(t, "127.0.0.1:0", h.Addr())
}

func TestHealthMetrics_MetricsEndpoint(t *testing.T) {
	h := startHealth(t)

	h.ReportCycles.Inc()
	h.ReportCycles.Inc()
	h.ReportsEmitted.Inc()
	h.EmitErrors.Inc()
	h.WindowEvents.WithLabelValues(DirectionIncoming).Add(11)
	h.WindowTags.Set(3)
	h.ReporterRunning.Set(1)

	status, body := get(t, fmt.Sprintf("http://%s/metrics", h.Addr()))
	assert.Equal(t, http.StatusOK, status)

	assert.Contains(t, body, "throughput_report_cycles_total 2")
	assert.Contains(t, body, "throughput_reports_emitted_total 1")
	assert.Contains(t, body, "throughput_emit_errors_total 1")
	assert.Contains(t, body, `throughput_window_events_total{direction="incoming"} 11`)
	assert.Contains(t, body, "throughput_window_tags 3")
	assert.Contains(t, body, "throughput_reporter_running 1")
}

func TestHealthMetrics_HealthzResponse(t *testing.T) {
	h := startHealth(t)

	status, body := get(t, fmt.Sprintf("http://%s/healthz", h.Addr()))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body)
}

func TestHealthMetrics_HealthzFailsWhenRequiredReporterStops(t *testing.T) {
	h := startHealth(t)
	url := fmt.Sprintf("http://%s/healthz", h.Addr())

	h.RequireReporter()

	status, body := get(t, url)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "reporter stopped", body)

	h.SetReporterRunning(true)

	status, body = get(t, url)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.ReporterRunning))

	h.SetReporterRunning(false)

	status, _ = get(t, url)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, float64(0), testutil.ToFloat64(h.ReporterRunning))
}

func TestHealthMetrics_HealthyWithoutRequiredReporter(t *testing.T) {
	h := NewHealthMetrics(testLog(), HealthConfig{})

	assert.True(t, h.Healthy())

	h.SetReporterRunning(false)
	assert.True(t, h.Healthy())
}

func TestHealthMetrics_DisabledWithoutAddr(t *testing.T) {
	h := NewHealthMetrics(testLog(), HealthConfig{})

	require.NoError(t, h.Start(context.Background()))
	assert.Nil(t, h.server)
	assert.Empty(t, h.Addr())

	// Metrics are still collected without a server.
	h.ReportsEmitted.Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(h.ReportsEmitted))
}

func TestHealthMetrics_StopIdempotent(t *testing.T) {
	h := NewHealthMetrics(testLog(), HealthConfig{})

	assert.NoError(t, h.Stop())
	assert.NoError(t, h.Stop())
}

func TestHealthMetrics_AddrBeforeStart(t *testing.T) {
	h := NewHealthMetrics(testLog(), HealthConfig{
		Addr: ":9999",
	})

	assert.Equal(t, ":9999", h.Addr())
}
