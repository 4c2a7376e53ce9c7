package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for
// the watch bridge.
type Metrics struct {
	PollCycles   prometheus.Counter
	PollErrors   prometheus.Counter
	PollDuration prometheus.Histogram
	BridgeUp     prometheus.Gauge

	// Publish metrics.
	SensorPublishes *prometheus.CounterVec // labels: kind, outcome={success,error}

	// Geocoding metrics.
	GeocodeRequests *prometheus.CounterVec // labels: outcome={success,error}
	GeocodeEnabled  prometheus.Gauge
}

// NewMetrics creates and registers all bridge metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PollCycles,
		m.PollErrors,
		m.PollDuration,
		m.BridgeUp,
		m.SensorPublishes,
		m.GeocodeRequests,
		m.GeocodeEnabled,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PollCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xplorawatch",
			Name:      "poll_cycles_total",
			Help:      "Total completed watch poll cycles.",
		}),
		PollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xplorawatch",
			Name:      "poll_errors_total",
			Help:      "Total poll cycles that hit at least one error.",
		}),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "xplorawatch",
			Name:      "poll_duration_seconds",
			Help:      "Duration of one complete poll cycle over all watches.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		BridgeUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "xplorawatch",
			Name:      "bridge_up",
			Help:      "1 while the bridge poll loop is running.",
		}),
		SensorPublishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xplorawatch",
			Name:      "sensor_publishes_total",
			Help:      "Sensor values pushed to Home Assistant, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xplorawatch",
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding requests by outcome.",
		}, []string{"outcome"}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "xplorawatch",
			Name:      "geocode_enabled",
			Help:      "1 when address resolution is enabled, 0 otherwise.",
		}),
	}
}
