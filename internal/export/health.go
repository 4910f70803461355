package export

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// HealthConfig configures the Prometheus health metrics server.
type HealthConfig struct {
	// Addr is the listen address for the health metrics server.
	// Empty disables the server; metrics are still collected.
	Addr string `yaml:"addr"`
}

// Direction label values for WindowEvents.
const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// HealthMetrics exposes Prometheus metrics describing the reporter itself.
// It never exports the measured per-tag rates.
type HealthMetrics struct {
	log      logrus.FieldLogger
	addr     string
	server   *http.Server
	listener net.Listener
	registry *prometheus.Registry

	ReportCycles    prometheus.Counter
	ReportsEmitted  prometheus.Counter
	EmitErrors      prometheus.Counter
	WindowEvents    *prometheus.CounterVec // direction
	WindowTags      prometheus.Gauge
	DrainDuration   prometheus.Histogram
	ReporterRunning prometheus.Gauge

	reporterRequired atomic.Bool
	reporterRunning  atomic.Bool
}

// NewHealthMetrics creates a new health metrics server.
func NewHealthMetrics(
	log logrus.FieldLogger,
	cfg HealthConfig,
) *HealthMetrics {
	reg := prometheus.NewRegistry()

	h := &HealthMetrics{
		log:      log.WithField("component", "health"),
		addr:     cfg.Addr,
		registry: reg,

		ReportCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "throughput",
			Name:      "report_cycles_total",
			Help:      "Total reporting windows drained.",
		}),
		ReportsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "throughput",
			Name:      "reports_emitted_total",
			Help:      "Total report lines successfully emitted.",
		}),
		EmitErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "throughput",
			Name:      "emit_errors_total",
			Help:      "Total report emits that failed or panicked.",
		}),
		WindowEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "throughput",
			Name:      "window_events_total",
			Help:      "Total recorded events drained, by direction.",
		}, []string{"direction"}),
		WindowTags: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "throughput",
			Name:      "window_tags",
			Help:      "Number of distinct tags in the last drained window.",
		}),
		DrainDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "throughput",
			Name:      "drain_duration_seconds",
			Help:      "Time spent draining and formatting a window.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		ReporterRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "throughput",
			Name:      "reporter_running",
			Help:      "1 while the periodic reporter is running.",
		}),
	}

	reg.MustRegister(
		h.ReportCycles,
		h.ReportsEmitted,
		h.EmitErrors,
		h.WindowEvents,
		h.WindowTags,
		h.DrainDuration,
		h.ReporterRunning,
	)

	return h
}

// Registry returns the registry backing the metrics.
func (h *HealthMetrics) Registry() *prometheus.Registry {
	return h.registry
}

// RequireReporter makes /healthz fail whenever the reporter is not running.
func (h *HealthMetrics) RequireReporter() {
	h.reporterRequired.Store(true)
}

// SetReporterRunning records the reporter loop state.
func (h *HealthMetrics) SetReporterRunning(running bool) {
	h.reporterRunning.Store(running)

	if running {
		h.ReporterRunning.Set(1)
	} else {
		h.ReporterRunning.Set(0)
	}
}

// Healthy reports false only when a required reporter has stopped.
func (h *HealthMetrics) Healthy() bool {
	return !h.reporterRequired.Load() || h.reporterRunning.Load()
}

// Start begins serving the /metrics endpoint. It is a no-op when no
// address is configured.
func (h *HealthMetrics) Start(_ context.Context) error {
	if h.addr == "" {
		h.log.Debug("Health metrics server disabled")

		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		h.registry,
		promhttp.HandlerOpts{},
	))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !h.Healthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, "reporter stopped")

			return
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", h.addr, err)
	}

	h.listener = ln

	h.server = &http.Server{
		Handler: mux,
	}

	go func() {
		h.log.WithField("addr", ln.Addr().String()).
			Info("Health metrics server started")

		if err := h.server.Serve(ln); err != nil &&
			err != http.ErrServerClosed {
			h.log.WithError(err).
				Error("Health metrics server error")
		}
	}()

	return nil
}

// Addr returns the actual listener address. Useful when started
// with ":0" to get the OS-assigned port.
func (h *HealthMetrics) Addr() string {
	if h.listener != nil {
		return h.listener.Addr().String()
	}

	return h.addr
}

// Stop shuts down the health metrics server.
func (h *HealthMetrics) Stop() error {
	if h.server == nil {
		return nil
	}

	return h.server.Close()
}
