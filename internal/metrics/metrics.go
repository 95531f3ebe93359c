// Package metrics provides Prometheus instrumentation for the gatewise SDK.
//
// All metrics are registered in a custom [prometheus.Registry] (not the global
// default) so that embedding applications can expose SDK metrics on their own
// terms without namespace collisions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors used by the SDK.
type Metrics struct {
	Registry *prometheus.Registry

	EvaluationsTotal   *prometheus.CounterVec
	EvaluationDuration *prometheus.HistogramVec
	SyncsTotal         *prometheus.CounterVec
	SyncDuration       prometheus.Histogram
	EventQueueDepth    prometheus.Gauge
	EventsTotal        *prometheus.CounterVec
}

// New creates and registers all SDK metrics in a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		EvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatewise_evaluations_total",
			Help: "Total number of gate, config, and layer evaluations.",
		}, []string{"kind", "reason"}),

		EvaluationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gatewise_evaluation_duration_seconds",
			Help:    "Evaluation latency in seconds.",
			Buckets: []float64{.000005, .00001, .000025, .00005, .0001, .00025, .0005, .001, .0025},
		}, []string{"kind"}),

		SyncsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatewise_spec_syncs_total",
			Help: "Total number of spec sync attempts by source and outcome.",
		}, []string{"source", "status"}),

		SyncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gatewise_spec_sync_duration_seconds",
			Help:    "Spec sync round-trip latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),

		EventQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gatewise_event_queue_depth",
			Help: "Number of events currently buffered for delivery.",
		}),

		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatewise_events_total",
			Help: "Total number of events by outcome (queued, flushed, dropped, deduped).",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.EvaluationsTotal,
		m.EvaluationDuration,
		m.SyncsTotal,
		m.SyncDuration,
		m.EventQueueDepth,
		m.EventsTotal,
	)

	return m
}

// Handler returns an [http.Handler] that serves Prometheus metrics, for
// applications that want to mount the SDK registry on their own mux.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// RecordEvaluation observes one evaluation of the given kind ("gate",
// "config", or "layer") with its result reason and latency.
func (m *Metrics) RecordEvaluation(kind, reason string, elapsed time.Duration) {
	m.EvaluationsTotal.WithLabelValues(kind, reason).Inc()
	m.EvaluationDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// RecordSync observes one spec sync attempt.
func (m *Metrics) RecordSync(source string, err error, elapsed time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.SyncsTotal.WithLabelValues(source, status).Inc()
	m.SyncDuration.Observe(elapsed.Seconds())
}

// RecordEvent counts one event outcome: "queued", "flushed", "dropped", or
// "deduped".
func (m *Metrics) RecordEvent(outcome string, n int) {
	m.EventsTotal.WithLabelValues(outcome).Add(float64(n))
}

// SetEventQueueDepth updates the buffered event gauge.
func (m *Metrics) SetEventQueueDepth(depth int) {
	m.EventQueueDepth.Set(float64(depth))
}
