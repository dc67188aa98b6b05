package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the adjudication module.
type Metrics struct {
	// Automated decisions by outcome and whether a rule matched
	DecisionsTotal *prometheus.CounterVec

	// Human overrides by final decision
	OverridesTotal *prometheus.CounterVec

	// Full evaluation latency including order and matrix loads
	EvaluateLatency prometheus.Histogram
}

// New creates a Metrics instance with all adjudication metrics registered.
func New() *Metrics {
	return &Metrics{
		DecisionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "clearvet_adjudication_decisions_total",
			Help: "Total automated decisions by outcome and match source",
		}, []string{"decision", "source"}), // source: "rule" or "default"

		OverridesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "clearvet_adjudication_overrides_total",
			Help: "Total human overrides by final decision",
		}, []string{"decision"}),

		EvaluateLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "clearvet_adjudication_evaluate_duration_seconds",
			Help:    "Duration of a full adjudication run including data loads",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// IncrementDecision records an automated decision outcome.
func (m *Metrics) IncrementDecision(decision, source string) {
	if m != nil {
		m.DecisionsTotal.WithLabelValues(decision, source).Inc()
	}
}

// IncrementOverride records a human override.
func (m *Metrics) IncrementOverride(decision string) {
	if m != nil {
		m.OverridesTotal.WithLabelValues(decision).Inc()
	}
}

// ObserveEvaluateLatency records the total evaluation duration.
func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}
