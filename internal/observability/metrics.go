package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quakewatch"

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	// Request lifecycle metrics.
	FetchRequests    *prometheus.CounterVec   // labels: window, outcome={success,cancelled,not_found,server_unavailable,http_status,network_failure}
	CacheLookups     *prometheus.CounterVec   // labels: window, result={hit,miss}
	UpstreamDuration *prometheus.HistogramVec // labels: window
	FetchSuperseded  prometheus.Counter
	RecordsDropped   prometheus.Counter

	// Dashboard metrics.
	DashboardSessions prometheus.Gauge

	// Relay metrics.
	RelayRunning       prometheus.Gauge
	RelayCycleDuration prometheus.Histogram
	EventsPublished    prometheus.Counter
	PublishErrors      prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.FetchRequests,
		m.CacheLookups,
		m.UpstreamDuration,
		m.FetchSuperseded,
		m.RecordsDropped,
		m.DashboardSessions,
		m.RelayRunning,
		m.RelayCycleDuration,
		m.EventsPublished,
		m.PublishErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "Feed fetches by time window and outcome.",
		}, []string{"window", "outcome"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Window cache lookups by time window and result.",
		}, []string{"window", "result"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "USGS feed request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"window"}),
		FetchSuperseded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_superseded_total",
			Help:      "In-flight fetches cancelled because a newer fetch started.",
		}),
		RecordsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Feed records rejected during normalization.",
		}),
		DashboardSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dashboard_sessions",
			Help:      "Open websocket dashboard sessions.",
		}),
		RelayRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relay_running",
			Help:      "1 when the relay loop is active, 0 when shut down.",
		}),
		RelayCycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "relay_cycle_duration_seconds",
			Help:      "Duration of a complete relay fetch-and-publish cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Earthquakes handed to the relay sink.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Relay batches that failed to publish after retries.",
		}),
	}
}
