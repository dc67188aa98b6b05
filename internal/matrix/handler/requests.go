package handler

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"clearvet/internal/matrix/service"
	dErrors "clearvet/pkg/domain-errors"
)

// CreateMatrixRequest is the body for POST /matrices.
type CreateMatrixRequest struct {
	ClientID    uuid.UUID `json:"client_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}

func (r *CreateMatrixRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.ClientID == uuid.Nil {
		return dErrors.New(dErrors.CodeValidation, "client_id is required")
	}
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return nil
}

// RuleRequest is the body for POST /matrices/{id}/rules and PUT /rules/{id}.
// Enum membership and condition structure are validated by the service; the
// handler only checks presence.
type RuleRequest struct {
	Order            int             `json:"order"`
	PositionCategory string          `json:"position_category"`
	OffenseType      string          `json:"offense_type"`
	Severity         string          `json:"severity"`
	LookbackYears    *int            `json:"lookback_years"`
	Condition        json.RawMessage `json:"condition"`
	Decision         string          `json:"decision"`
}

func (r *RuleRequest) Validate() error {
	if strings.TrimSpace(r.Decision) == "" {
		return dErrors.New(dErrors.CodeValidation, "decision is required")
	}
	return nil
}

func (r *RuleRequest) Params() service.RuleParams {
	return service.RuleParams{
		Order:            r.Order,
		PositionCategory: r.PositionCategory,
		OffenseType:      r.OffenseType,
		Severity:         r.Severity,
		LookbackYears:    r.LookbackYears,
		ConditionJSON:    r.Condition,
		Decision:         strings.TrimSpace(r.Decision),
	}
}
