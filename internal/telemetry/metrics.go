// Package telemetry exposes Prometheus metrics for the Sentinel pipeline.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/projectsentinel/sentinel-go/internal/logging"
)

// Metrics holds the pipeline instrumentation. A nil *Metrics is valid and
// turns every record method into a no-op so callers never need nil checks.
type Metrics struct {
	registry *prometheus.Registry

	recordsIngested    *prometheus.CounterVec
	recordsMalformed   prometheus.Counter
	recordsDroppedLate prometheus.Counter
	queueDropped       prometheus.Counter
	windowsClosed      prometheus.Counter
	eventsEmitted      *prometheus.CounterVec
	eventsDeduplicated prometheus.Counter
	ruleFailures       *prometheus.CounterVec
	sinkErrors         *prometheus.CounterVec
}

// NewMetrics creates and registers the pipeline metrics on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.recordsIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_records_ingested_total",
		Help: "Records accepted by the window manager, by record kind.",
	}, []string{"kind"})

	m.recordsMalformed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_records_malformed_total",
		Help: "Records rejected at ingestion for failing validation.",
	})

	m.recordsDroppedLate = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_records_dropped_late_total",
		Help: "Records dropped for arriving after their window's lateness bound.",
	})

	m.queueDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_queue_dropped_total",
		Help: "Records dropped by the ingest queue under the drop-oldest policy.",
	})

	m.windowsClosed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_windows_closed_total",
		Help: "Correlation windows closed and evaluated.",
	})

	m.eventsEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_events_emitted_total",
		Help: "Events handed to sinks, by event name.",
	}, []string{"event"})

	m.eventsDeduplicated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_events_deduplicated_total",
		Help: "Events suppressed by the per-window deduplication key.",
	})

	m.ruleFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_rule_failures_total",
		Help: "Detection rule evaluations that panicked and were isolated.",
	}, []string{"rule"})

	m.sinkErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_sink_errors_total",
		Help: "Event sink write failures, by sink.",
	}, []string{"sink"})

	m.registry.MustRegister(
		m.recordsIngested,
		m.recordsMalformed,
		m.recordsDroppedLate,
		m.queueDropped,
		m.windowsClosed,
		m.eventsEmitted,
		m.eventsDeduplicated,
		m.ruleFailures,
		m.sinkErrors,
	)

	return m
}

// Handler returns an HTTP handler serving the metrics registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordIngested(kind string) {
	if m == nil {
		return
	}
	m.recordsIngested.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordMalformed() {
	if m == nil {
		return
	}
	m.recordsMalformed.Inc()
}

func (m *Metrics) RecordDroppedLate() {
	if m == nil {
		return
	}
	m.recordsDroppedLate.Inc()
}

func (m *Metrics) QueueDropped() {
	if m == nil {
		return
	}
	m.queueDropped.Inc()
}

func (m *Metrics) WindowClosed() {
	if m == nil {
		return
	}
	m.windowsClosed.Inc()
}

func (m *Metrics) EventEmitted(name string) {
	if m == nil {
		return
	}
	m.eventsEmitted.WithLabelValues(name).Inc()
}

func (m *Metrics) EventDeduplicated() {
	if m == nil {
		return
	}
	m.eventsDeduplicated.Inc()
}

func (m *Metrics) RuleFailure(rule string) {
	if m == nil {
		return
	}
	m.ruleFailures.WithLabelValues(rule).Inc()
}

func (m *Metrics) SinkError(sink string) {
	if m == nil {
		return
	}
	m.sinkErrors.WithLabelValues(sink).Inc()
}

// Serve runs a metrics HTTP server on the given address until ctx is done.
func (m *Metrics) Serve(ctx context.Context, listen string) error {
	logger := logging.ForService("telemetry")

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("telemetry endpoint listening", "listen", listen)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
