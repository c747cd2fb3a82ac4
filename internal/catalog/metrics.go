package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricCatalogRankTotal    = "catalog_rank_total"
	MetricCatalogRankErrors   = "catalog_rank_errors_total"
	MetricCatalogRankDuration = "catalog_rank_duration_seconds"
	MetricCatalogRankedSize   = "catalog_last_ranked_course_count"
)

// Metrics contains Prometheus metrics for catalog ranking.
// All operations are thread-safe.
type Metrics struct {
	rankTotal    prometheus.Counter
	rankErrors   prometheus.Counter
	rankDuration prometheus.Histogram
	rankedSize   prometheus.Gauge
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		rankTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricCatalogRankTotal,
			Help: "Total number of catalog ranking operations",
		}),
		rankErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricCatalogRankErrors,
			Help: "Total number of failed catalog ranking operations",
		}),
		rankDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricCatalogRankDuration,
			Help:    "Histogram of catalog ranking duration in seconds, including store reads",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		rankedSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricCatalogRankedSize,
			Help: "Number of courses scored in the most recent ranking batch",
		}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.rankTotal,
		m.rankErrors,
		m.rankDuration,
		m.rankedSize,
	}
}

func (m *Metrics) observe(seconds float64, size int, err error) {
	m.rankTotal.Inc()
	m.rankDuration.Observe(seconds)
	if err != nil {
		m.rankErrors.Inc()
		return
	}
	m.rankedSize.Set(float64(size))
}
