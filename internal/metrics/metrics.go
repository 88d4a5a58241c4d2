// Package metrics exposes Prometheus collectors for generations, validation
// failures and HTTP traffic.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonathan/soul-spirits/internal/orchestrator"
)

const namespace = "soul_spirits"

// Collector holds every metric the service records. Each Collector owns its
// registry so tests can create as many as they like.
type Collector struct {
	registry *prometheus.Registry

	transitionsTotal   *prometheus.CounterVec
	generationsTotal   *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	validationFailures *prometheus.CounterVec
	generationsActive  prometheus.Gauge
	rejectedTotal      *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New creates a Collector with its own registry, including Go runtime and
// process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		transitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_transitions_total",
				Help:      "Generation state transitions by target state",
			},
			[]string{"from", "to"},
		),
		generationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generations_total",
				Help:      "Finished generation attempts by attempt kind and outcome",
			},
			[]string{"attempt", "outcome"},
		),
		generationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generation_duration_seconds",
				Help:      "Time from submission to Complete or Error",
				Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
			},
			[]string{"attempt", "outcome"},
		),
		validationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_failures_total",
				Help:      "Rejected profile submissions by failure code",
			},
			[]string{"code"},
		),
		generationsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "generations_in_flight",
				Help:      "Generations currently running",
			},
		),
		rejectedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generations_rejected_total",
				Help:      "Generation requests refused before starting, by reason",
			},
			[]string{"reason"},
		),

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Registry returns the registry backing this Collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Observe records an orchestrator transition. It has the orchestrator.Observer
// signature, so it can be passed to orchestrator.WithObserver directly.
func (c *Collector) Observe(t orchestrator.Transition) {
	c.transitionsTotal.WithLabelValues(t.From.Name(), t.To.Name()).Inc()

	switch {
	case t.To.Name() == orchestrator.StateGeneratingRecipe:
		c.generationsActive.Inc()
	case orchestrator.InFlight(t.From) && orchestrator.Settled(t.To):
		c.generationsActive.Dec()
		outcome := "success"
		if t.To.Name() == orchestrator.StateError {
			outcome = "error"
		}
		attempt := string(t.Attempt)
		c.generationsTotal.WithLabelValues(attempt, outcome).Inc()
		if !t.Started.IsZero() {
			c.generationDuration.WithLabelValues(attempt, outcome).Observe(t.At.Sub(t.Started).Seconds())
		}
	}
}

// ValidationFailed counts a rejected profile submission.
func (c *Collector) ValidationFailed(code string) {
	c.validationFailures.WithLabelValues(code).Inc()
}

// GenerationRejected counts a generation refused before it started, for
// example when the server is at capacity.
func (c *Collector) GenerationRejected(reason string) {
	c.rejectedTotal.WithLabelValues(reason).Inc()
}

// HTTPRequest records one served request. route is the mux pattern, not the raw path.
func (c *Collector) HTTPRequest(method, route string, status int, elapsed time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, route, statusLabel(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
