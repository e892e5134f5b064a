// Package metrics provides optional Prometheus instrumentation for the
// client. The zero value disables all measurements, so the client never has
// to check for a configured backend.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "awsclient"

// Options for initializing the Prometheus metrics backend.
type Options struct {
	// Prefix overrides the default "awsclient" metric namespace.
	Prefix string

	// HistogramBuckets used by the fetch duration histogram,
	// prometheus.DefBuckets when empty.
	HistogramBuckets []float64

	// Registry to register the collectors with. A new one is created when
	// nil.
	Registry *prometheus.Registry
}

// Prometheus measures fetch calls per service, method and response code.
type Prometheus struct {
	fetchM       *prometheus.HistogramVec
	fetchErrorsM *prometheus.CounterVec
	credRefreshM prometheus.Counter

	registry *prometheus.Registry
	handler  http.Handler
}

// NewPrometheus returns a new Prometheus metrics backend.
func NewPrometheus(opts Options) *Prometheus {
	namespace := promNamespace
	if opts.Prefix != "" {
		namespace = opts.Prefix
	}
	buckets := opts.HistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	fetch := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "fetch",
		Name:      "duration_seconds",
		Help:      "Duration in seconds of an AWS API fetch.",
		Buckets:   buckets,
	}, []string{"service", "method", "code"})

	fetchErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "fetch",
		Name:      "error_total",
		Help:      "The total of AWS API error responses.",
	}, []string{"service", "code"})

	credRefresh := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "credentials",
		Name:      "invalidate_total",
		Help:      "The total of credential cache invalidations after auth failures.",
	})

	p := &Prometheus{
		fetchM:       fetch,
		fetchErrorsM: fetchErrors,
		credRefreshM: credRefresh,
		registry:     registry,
	}
	registry.MustRegister(fetch, fetchErrors, credRefresh)
	return p
}

// MeasureFetch records one fetch call.
func (p *Prometheus) MeasureFetch(service, method string, code int, start time.Time) {
	if p == nil {
		return
	}
	p.fetchM.WithLabelValues(service, method, statusLabel(code)).Observe(time.Since(start).Seconds())
	if code < 200 || code >= 300 {
		p.fetchErrorsM.WithLabelValues(service, statusLabel(code)).Inc()
	}
}

// IncCredentialsInvalidate counts one credential cache invalidation.
func (p *Prometheus) IncCredentialsInvalidate() {
	if p == nil {
		return
	}
	p.credRefreshM.Inc()
}

// CreateHandler returns the HTTP handler exposing the registry.
func (p *Prometheus) CreateHandler() http.Handler {
	if p.handler == nil {
		p.handler = promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
	}
	return p.handler
}

func statusLabel(code int) string {
	return strconv.Itoa(code)
}
