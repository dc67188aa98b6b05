package models

import (
	"time"

	"github.com/google/uuid"

	dErrors "clearvet/pkg/domain-errors"
)

// RuleMatrix is the aggregate root for an ordered adjudication rule set.
//
// Invariants:
//   - Name is non-empty and at most 128 characters
//   - Rule order values are unique within the matrix (ties are a configuration error)
//   - A matrix referenced by any decision is deactivated, never deleted, so it
//     stays retrievable for audit
//
// The engine treats a matrix as read-only at evaluation time; authoring and
// evaluation never race on the same row.
type RuleMatrix struct {
	ID          uuid.UUID `json:"id"`
	ClientID    uuid.UUID `json:"client_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Rules in ascending evaluation order. Populated on reads that request it.
	Rules []*Rule `json:"rules,omitempty"`
}

// NewRuleMatrix validates invariants and constructs a matrix.
func NewRuleMatrix(clientID uuid.UUID, name, description string, now time.Time) (*RuleMatrix, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "matrix name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeValidation, "matrix name must be 128 characters or less")
	}
	if clientID == uuid.Nil {
		return nil, dErrors.New(dErrors.CodeValidation, "client_id is required")
	}
	return &RuleMatrix{
		ID:          uuid.New(),
		ClientID:    clientID,
		Name:        name,
		Description: description,
		Active:      false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Rule is one entry in a matrix's ordered rule list. Every populated matchable
// field must be satisfied for the rule to match; a rule with nothing populated
// and no condition tree matches every fact set (catch-all).
type Rule struct {
	ID       uuid.UUID `json:"id"`
	MatrixID uuid.UUID `json:"matrix_id"`

	// Order defines total evaluation precedence within the matrix. Lower
	// evaluates first; first match wins, exactly as a firewall rule list.
	Order int `json:"order"`

	// Matchable fields; empty string / nil means "not constrained".
	PositionCategory string   `json:"position_category,omitempty"`
	OffenseType      string   `json:"offense_type,omitempty"`
	Severity         Severity `json:"severity,omitempty"`

	// LookbackYears constrains the rule to offenses that occurred within N
	// years of evaluation time.
	LookbackYears *int `json:"lookback_years,omitempty"`

	// Condition is an optional structured predicate tree evaluated against the
	// fact map in addition to the scalar fields above.
	Condition *Condition `json:"condition,omitempty"`

	Decision  Decision  `json:"decision"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRule validates invariants and constructs a rule.
func NewRule(matrixID uuid.UUID, order int, decision Decision, now time.Time) (*Rule, error) {
	if matrixID == uuid.Nil {
		return nil, dErrors.New(dErrors.CodeValidation, "matrix_id is required")
	}
	if order < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "rule order must be non-negative")
	}
	if !decision.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "decision must be one of auto_approve, auto_reject, manual_review, conditional; got %q", decision)
	}
	return &Rule{
		ID:        uuid.New(),
		MatrixID:  matrixID,
		Order:     order,
		Decision:  decision,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Validate re-checks a rule after field mutation.
func (r *Rule) Validate() error {
	if r.Order < 0 {
		return dErrors.New(dErrors.CodeValidation, "rule order must be non-negative")
	}
	if !r.Decision.Valid() {
		return dErrors.Newf(dErrors.CodeValidation, "decision must be one of auto_approve, auto_reject, manual_review, conditional; got %q", r.Decision)
	}
	if r.Severity != "" && !r.Severity.Valid() {
		return dErrors.Newf(dErrors.CodeValidation, "severity must be one of minor, moderate, major, critical; got %q", r.Severity)
	}
	if r.LookbackYears != nil && *r.LookbackYears <= 0 {
		return dErrors.New(dErrors.CodeValidation, "lookback_years must be positive")
	}
	return r.Condition.Validate()
}
