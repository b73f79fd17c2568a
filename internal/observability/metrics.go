// Package observability exposes Prometheus instruments for the speech pipeline.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the dispatcher.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Responses      *prometheus.CounterVec
	Sessions       *prometheus.CounterVec
	Batches        prometheus.Counter
	BackendErrors  *prometheus.CounterVec
	LaunchFailures prometheus.Counter
	QueueDepth     prometheus.Gauge
	FlushLatency   prometheus.Histogram
}

// NewMetrics creates the instruments on a private registry.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Responses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Responses by output mode.",
		}, []string{"mode"}),
		Sessions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Finished speech sessions by outcome.",
		}, []string{"outcome"}),
		Batches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_spoken_total",
			Help:      "Word batches handed to the speech backend.",
		}),
		BackendErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_errors_total",
			Help:      "Backend failures by operation.",
		}, []string{"op"}),
		LaunchFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "launch_failures_total",
			Help:      "Spoken responses that could not be scheduled.",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Spoken responses waiting for the speech worker.",
		}),
		FlushLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_latency_ms",
			Help:      "Time the backend took to play one batch, in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2000, 4000, 8000},
		}),
	}
}

// Registry returns the registry the instruments are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveResponse counts a response delivered in mode ("text" or "spoken").
func (m *Metrics) ObserveResponse(mode string) {
	if m == nil {
		return
	}
	m.Responses.WithLabelValues(mode).Inc()
}

// ObserveSession counts a finished session by outcome.
func (m *Metrics) ObserveSession(outcome string) {
	if m == nil {
		return
	}
	m.Sessions.WithLabelValues(outcome).Inc()
}

// ObserveBatch counts one batch handed to the backend.
func (m *Metrics) ObserveBatch() {
	if m == nil {
		return
	}
	m.Batches.Inc()
}

// ObserveBackendError counts a failed backend call by op ("say" or "flush").
func (m *Metrics) ObserveBackendError(op string) {
	if m == nil {
		return
	}
	m.BackendErrors.WithLabelValues(op).Inc()
}

// ObserveLaunchFailure counts a spoken response that could not be queued.
func (m *Metrics) ObserveLaunchFailure() {
	if m == nil {
		return
	}
	m.LaunchFailures.Inc()
}

// SetQueueDepth records how many spoken responses are waiting.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

// ObserveFlush records how long a flush took to play.
func (m *Metrics) ObserveFlush(d time.Duration) {
	if m == nil {
		return
	}
	m.FlushLatency.Observe(float64(d.Milliseconds()))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
