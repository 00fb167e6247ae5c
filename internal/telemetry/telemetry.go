package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deluthium/dexmon/internal/model"
)

// Metrics bundles dexmon's self-instrumentation. A nil *Metrics is valid and
// records nothing, which keeps probers testable without a registry.
type Metrics struct {
	registry *prometheus.Registry

	probesTotal    *prometheus.CounterVec
	probeDuration  *prometheus.HistogramVec
	syntheticTotal *prometheus.CounterVec
	rateLimited    prometheus.Counter
}

// New creates a Metrics backed by its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		probesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dexmon_probes_total",
			Help: "Health probes by endpoint and resulting classification.",
		}, []string{"endpoint", "classification"}),
		probeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dexmon_probe_duration_seconds",
			Help:    "Wall-clock duration of health probes.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		syntheticTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dexmon_synthetic_calls_total",
			Help: "Synthetic latency calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dexmon_rate_limited_total",
			Help: "Query API requests rejected by the rate limiter.",
		}),
	}

	m.registry.MustRegister(
		m.probesTotal,
		m.probeDuration,
		m.syntheticTotal,
		m.rateLimited,
	)
	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveProbe records one health probe outcome.
func (m *Metrics) ObserveProbe(o model.ProbeOutcome) {
	if m == nil {
		return
	}
	m.probesTotal.WithLabelValues(o.Endpoint, string(o.Classification)).Inc()
	m.probeDuration.WithLabelValues(o.Endpoint).
		Observe(time.Duration(o.LatencyMs * int64(time.Millisecond)).Seconds())
}

// ObserveSyntheticCall records one latency sample.
func (m *Metrics) ObserveSyntheticCall(s model.LatencySample) {
	if m == nil {
		return
	}
	outcome := "success"
	if !s.Success {
		outcome = "failure"
	}
	m.syntheticTotal.WithLabelValues(s.Operation, outcome).Inc()
}

// ObserveRateLimited records one rate-limit rejection.
func (m *Metrics) ObserveRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}
