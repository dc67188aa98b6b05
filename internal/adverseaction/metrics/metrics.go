package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the adverse-action module.
type Metrics struct {
	// Successful transitions by action
	TransitionsTotal *prometheus.CounterVec

	// Transitions rejected by a guard, by action
	GuardRejections *prometheus.CounterVec

	// Document record creations that failed after the status write
	DocumentFailures prometheus.Counter
}

// New creates a Metrics instance with all adverse-action metrics registered.
func New() *Metrics {
	return &Metrics{
		TransitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "clearvet_adverse_action_transitions_total",
			Help: "Total successful adverse-action transitions by action",
		}, []string{"action"}),

		GuardRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "clearvet_adverse_action_guard_rejections_total",
			Help: "Total adverse-action transitions rejected by a guard, by action",
		}, []string{"action"}),

		DocumentFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "clearvet_adverse_action_document_failures_total",
			Help: "Document record creations that failed after the status transition committed",
		}),
	}
}

// IncrementTransition records a successful transition.
func (m *Metrics) IncrementTransition(action string) {
	if m != nil {
		m.TransitionsTotal.WithLabelValues(action).Inc()
	}
}

// IncrementGuardRejection records a transition refused by a guard.
func (m *Metrics) IncrementGuardRejection(action string) {
	if m != nil {
		m.GuardRejections.WithLabelValues(action).Inc()
	}
}

// IncrementDocumentFailure records a failed document write.
func (m *Metrics) IncrementDocumentFailure() {
	if m != nil {
		m.DocumentFailures.Inc()
	}
}
