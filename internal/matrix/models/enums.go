package models

import (
	dErrors "clearvet/pkg/domain-errors"
)

// Severity classifies an offense finding.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

// Rank gives severities their ordinal position. Matching is exact-equality
// today; the ordinal exists so an at-or-above comparison is a one-line change
// if the product ever clarifies that way.
func (s Severity) Rank() int {
	switch s {
	case SeverityMinor:
		return 1
	case SeverityModerate:
		return 2
	case SeverityMajor:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// ParseSeverity validates an incoming severity string.
func ParseSeverity(raw string) (Severity, error) {
	s := Severity(raw)
	if !s.Valid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "severity must be one of minor, moderate, major, critical; got %q", raw)
	}
	return s, nil
}

// Decision is a rule's outcome when it matches.
type Decision string

const (
	DecisionAutoApprove  Decision = "auto_approve"
	DecisionAutoReject   Decision = "auto_reject"
	DecisionManualReview Decision = "manual_review"
	DecisionConditional  Decision = "conditional"
)

func (d Decision) Valid() bool {
	switch d {
	case DecisionAutoApprove, DecisionAutoReject, DecisionManualReview, DecisionConditional:
		return true
	}
	return false
}

// ParseDecision validates an incoming decision string.
func ParseDecision(raw string) (Decision, error) {
	d := Decision(raw)
	if !d.Valid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "decision must be one of auto_approve, auto_reject, manual_review, conditional; got %q", raw)
	}
	return d, nil
}
