package promotion

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricPromotionDecisions      = "promotion_decisions_total"
	MetricPromotionApplyDuration  = "promotion_apply_duration_seconds"
	MetricPromotionActiveObserved = "promotion_active_observed"
)

// Outcome label values for promotion_decisions_total.
const (
	OutcomeAccepted     = "accepted"
	OutcomeQualityFloor = "quality_floor"
	OutcomeCapExceeded  = "cap_exceeded"
	OutcomeError        = "error"
)

// Metrics contains Prometheus metrics for promotion decisions.
// All operations are thread-safe.
type Metrics struct {
	decisions      *prometheus.CounterVec
	applyDuration  prometheus.Histogram
	activeObserved prometheus.Gauge
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricPromotionDecisions,
			Help: "Total number of promotion requests by outcome",
		}, []string{"outcome"}),
		applyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricPromotionApplyDuration,
			Help:    "Histogram of promotion apply duration in seconds, including store retries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		activeObserved: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricPromotionActiveObserved,
			Help: "Number of other active promotions seen by the most recent capped promotion check",
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

// IncDecision increments the decision counter for an outcome.
func (m *Metrics) IncDecision(outcome string) {
	m.decisions.WithLabelValues(outcome).Inc()
}

// ObserveApplyDuration records an apply duration sample.
func (m *Metrics) ObserveApplyDuration(seconds float64) {
	m.applyDuration.Observe(seconds)
}

// SetActiveObserved records the active promotion count from a cap check.
func (m *Metrics) SetActiveObserved(count int) {
	m.activeObserved.Set(float64(count))
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.decisions,
		m.applyDuration,
		m.activeObserved,
	}
}

func outcomeOf(d Decision) string {
	switch {
	case d.Accepted:
		return OutcomeAccepted
	case errors.Is(d.Err, ErrQualityFloor):
		return OutcomeQualityFloor
	case errors.Is(d.Err, ErrPromotionCapExceeded):
		return OutcomeCapExceeded
	default:
		return OutcomeError
	}
}
