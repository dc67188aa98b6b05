package handler

import (
	"strings"

	"github.com/google/uuid"

	dErrors "clearvet/pkg/domain-errors"
)

// InitiateRequest is the body for POST /adverse-actions.
type InitiateRequest struct {
	OrderID uuid.UUID `json:"order_id"`
}

func (r *InitiateRequest) Validate() error {
	if r.OrderID == uuid.Nil {
		return dErrors.New(dErrors.CodeValidation, "order_id is required")
	}
	return nil
}

// SendPreNoticeRequest is the body for POST /adverse-actions/{id}/send-pre-notice.
// Method enum membership is validated by the service.
type SendPreNoticeRequest struct {
	Method string `json:"method"`
}

func (r *SendPreNoticeRequest) Validate() error {
	r.Method = strings.TrimSpace(r.Method)
	if r.Method == "" {
		return dErrors.New(dErrors.CodeValidation, "method is required")
	}
	return nil
}

// CandidateResponseRequest is the body for POST /adverse-actions/{id}/candidate-response.
type CandidateResponseRequest struct {
	Response string `json:"response"`
	Details  string `json:"details"`
	Notes    string `json:"notes"`
}

func (r *CandidateResponseRequest) Validate() error {
	r.Response = strings.TrimSpace(r.Response)
	if r.Response == "" {
		return dErrors.New(dErrors.CodeValidation, "response is required")
	}
	return nil
}

// FinalDecisionRequest is the body for POST /adverse-actions/{id}/final-decision.
type FinalDecisionRequest struct {
	Decision string `json:"decision"`
	Notes    string `json:"notes"`
}

func (r *FinalDecisionRequest) Validate() error {
	r.Decision = strings.TrimSpace(r.Decision)
	if r.Decision == "" {
		return dErrors.New(dErrors.CodeValidation, "decision is required")
	}
	return nil
}

// CancelRequest is the body for POST /adverse-actions/{id}/cancel.
type CancelRequest struct {
	Reason string `json:"reason"`
}

func (r *CancelRequest) Validate() error {
	r.Reason = strings.TrimSpace(r.Reason)
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	return nil
}
