package handler

import (
	"strings"

	"github.com/google/uuid"

	dErrors "clearvet/pkg/domain-errors"
)

// RunRequest is the body for POST /adjudication/run.
type RunRequest struct {
	OrderID  uuid.UUID  `json:"order_id"`
	MatrixID *uuid.UUID `json:"matrix_id,omitempty"`
}

func (r *RunRequest) Validate() error {
	if r.OrderID == uuid.Nil {
		return dErrors.New(dErrors.CodeValidation, "order_id is required")
	}
	if r.MatrixID != nil && *r.MatrixID == uuid.Nil {
		return dErrors.New(dErrors.CodeValidation, "matrix_id must be a valid id when present")
	}
	return nil
}

// OverrideRequest is the body for POST /adjudication/order/{id}/override.
// Decision enum membership is validated by the service.
type OverrideRequest struct {
	Decision string `json:"decision"`
	Notes    string `json:"notes"`
}

func (r *OverrideRequest) Validate() error {
	r.Decision = strings.TrimSpace(r.Decision)
	if r.Decision == "" {
		return dErrors.New(dErrors.CodeValidation, "decision is required")
	}
	return nil
}
