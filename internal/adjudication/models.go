// Package adjudication evaluates an order's screening findings against a rule
// matrix and records the resulting disposition.
package adjudication

import (
	"time"

	"github.com/google/uuid"

	"clearvet/internal/matrix/models"
)

// Decision is one adjudication record. A new record is created per evaluation
// run; the only mutable part is the human override, which may be set more than
// once (last write wins, every write audited).
type Decision struct {
	ID       uuid.UUID `json:"id"`
	OrderID  uuid.UUID `json:"order_id"`
	MatrixID uuid.UUID `json:"matrix_id"`

	// MatchedRuleID is nil when no rule matched and the default disposition
	// applied.
	MatchedRuleID *uuid.UUID `json:"matched_rule_id,omitempty"`

	AutomatedDecision models.Decision `json:"automated_decision"`

	// Override fields. FinalDecision nil means no human has ruled yet.
	FinalDecision *models.Decision `json:"final_decision,omitempty"`
	OverrideNotes string           `json:"override_notes,omitempty"`
	OverriddenBy  string           `json:"overridden_by,omitempty"`
	OverriddenAt  *time.Time       `json:"overridden_at,omitempty"`

	EvaluatedAt time.Time `json:"evaluated_at"`
}
