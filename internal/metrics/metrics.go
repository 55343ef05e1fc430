// Package metrics holds the Prometheus collectors exported by graphstore.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "graphstore"

// Metrics is a set of collectors on a private registry. A nil *Metrics
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec   // method, route, status
	requestDuration *prometheus.HistogramVec // route
	triplesDecoded  prometheus.Counter
	parseErrors     *prometheus.CounterVec // format, kind
	storeQuads      prometheus.Gauge
}

// New creates the collectors and registers them together with the Go
// runtime and process collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),

		triplesDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rdfpost",
			Name:      "triples_total",
			Help:      "Total number of triples decoded from RDF/POST bodies",
		}),

		parseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_errors_total",
			Help:      "Total number of rejected request bodies",
		}, []string{"format", "kind"}),

		storeQuads: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "quads",
			Help:      "Number of quads in the store after the last write",
		}),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.triplesDecoded,
		m.parseErrors,
		m.storeQuads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one served HTTP request
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// AddDecodedTriples counts triples produced by the RDF/POST decoder
func (m *Metrics) AddDecodedTriples(n int) {
	if m == nil {
		return
	}
	m.triplesDecoded.Add(float64(n))
}

// ParseError counts a rejected body by format and fault kind
func (m *Metrics) ParseError(format, kind string) {
	if m == nil {
		return
	}
	m.parseErrors.WithLabelValues(format, kind).Inc()
}

// SetStoreQuads records the current number of stored quads
func (m *Metrics) SetStoreQuads(n int) {
	if m == nil {
		return
	}
	m.storeQuads.Set(float64(n))
}
