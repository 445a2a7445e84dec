package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gallery"

// Metrics holds the gallery collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	pageFetches    *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
	mediaOps       *prometheus.CounterVec
	activeSessions prometheus.Gauge
}

// New creates the collectors and registers them, together with the Go runtime
// and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pageFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_fetch_total",
			Help:      "Page fetches by source and outcome.",
		}, []string{"source", "outcome"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "page_fetch_duration_seconds",
			Help:      "Page fetch latency by source.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		mediaOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_total",
			Help:      "Save and share operations by kind and outcome.",
		}, []string{"kind", "outcome"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Open browsing sessions.",
		}),
	}

	m.registry.MustRegister(
		m.pageFetches,
		m.fetchDuration,
		m.mediaOps,
		m.activeSessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// FetchObserved records one completed page fetch.
func (m *Metrics) FetchObserved(sourceID, outcome string, elapsed time.Duration) {
	m.pageFetches.WithLabelValues(sourceID, outcome).Inc()
	m.fetchDuration.WithLabelValues(sourceID).Observe(elapsed.Seconds())
}

// MediaObserved records one save or share attempt.
func (m *Metrics) MediaObserved(kind string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.mediaOps.WithLabelValues(kind, outcome).Inc()
}

// SetActiveSessions updates the open-session gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
