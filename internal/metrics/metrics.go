// Package metrics holds the prometheus instruments shared by the adapter
// and gateway processes. Each process owns one Metrics value backed by its
// own registry so tests never collide on the global default registerer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "xregistry"

// Metrics is the set of instruments exported at /metrics.
type Metrics struct {
	registry *prometheus.Registry

	// RequestsTotal counts served requests.
	// Labels: route (collection/entity depth class), method, code
	RequestsTotal *prometheus.CounterVec

	// RequestDuration measures request latency in seconds.
	// Labels: route
	RequestDuration *prometheus.HistogramVec

	// UpstreamFetches counts conditional cache outcomes.
	// Labels: upstream, result (fresh, stale, miss, failed)
	UpstreamFetches *prometheus.CounterVec

	// SyncRuns counts catalog synchronization runs.
	// Labels: feed, outcome (ok, partial, failed, skipped)
	SyncRuns *prometheus.CounterVec

	// KnownNames tracks the size of each feed's name index.
	KnownNames *prometheus.GaugeVec

	// AdapterUp is 1 while the gateway sees an adapter as healthy.
	AdapterUp *prometheus.GaugeVec
}

// New creates the instruments on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests served",
		}, []string{"route", "method", "code"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"route"}),
		UpstreamFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_fetches_total",
			Help:      "Upstream fetches by conditional cache outcome",
		}, []string{"upstream", "result"}),
		SyncRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Catalog synchronization runs by outcome",
		}, []string{"feed", "outcome"}),
		KnownNames: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "known_names",
			Help:      "Number of names in the feed's name index",
		}, []string{"feed"}),
		AdapterUp: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "adapter_up",
			Help:      "Whether the gateway currently sees the adapter as healthy",
		}, []string{"adapter"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one served request.
func (m *Metrics) ObserveRequest(route, method string, code int, d time.Duration) {
	m.RequestsTotal.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveFetch records one conditional cache outcome.
func (m *Metrics) ObserveFetch(upstream, result string) {
	m.UpstreamFetches.WithLabelValues(upstream, result).Inc()
}

// ObserveSync records one synchronization run and the index size after it.
func (m *Metrics) ObserveSync(feed, outcome string, known int) {
	m.SyncRuns.WithLabelValues(feed, outcome).Inc()
	m.KnownNames.WithLabelValues(feed).Set(float64(known))
}

// SetAdapterUp flips the adapter health gauge.
func (m *Metrics) SetAdapterUp(adapter string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	m.AdapterUp.WithLabelValues(adapter).Set(v)
}
