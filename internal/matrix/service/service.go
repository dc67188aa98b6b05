package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"clearvet/internal/matrix/models"
	dErrors "clearvet/pkg/domain-errors"
	"clearvet/pkg/platform/sentinel"
)

// Store persists matrices and their rules.
type Store interface {
	CreateMatrix(ctx context.Context, m *models.RuleMatrix) error
	FindMatrixByID(ctx context.Context, id uuid.UUID) (*models.RuleMatrix, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]*models.RuleMatrix, error)
	ListActiveByClient(ctx context.Context, clientID uuid.UUID) ([]*models.RuleMatrix, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool, now time.Time) error
	AddRule(ctx context.Context, r *models.Rule) error
	UpdateRule(ctx context.Context, r *models.Rule) error
	FindRuleByID(ctx context.Context, id uuid.UUID) (*models.Rule, error)
}

// Service owns matrix and rule authoring. Evaluation-side consumers read
// through the same store but never mutate.
type Service struct {
	store  Store
	logger *slog.Logger
}

// New constructs the authoring service.
func New(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// CreateMatrix registers a new, initially inactive matrix for a client.
func (s *Service) CreateMatrix(ctx context.Context, clientID uuid.UUID, name, description string) (*models.RuleMatrix, error) {
	name = strings.TrimSpace(name)
	m, err := models.NewRuleMatrix(clientID, name, description, time.Now())
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateMatrix(ctx, m); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create matrix")
	}
	s.logAudit(ctx, "matrix_created", "matrix_id", m.ID, "client_id", clientID)
	return m, nil
}

// GetMatrix fetches a matrix with its rules in evaluation order. Deactivated
// matrices stay retrievable: decisions reference them forever.
func (s *Service) GetMatrix(ctx context.Context, id uuid.UUID) (*models.RuleMatrix, error) {
	m, err := s.store.FindMatrixByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "matrix not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load matrix")
	}
	return m, nil
}

// ListMatrices returns all matrices for a client, active and inactive.
func (s *Service) ListMatrices(ctx context.Context, clientID uuid.UUID) ([]*models.RuleMatrix, error) {
	out, err := s.store.ListByClient(ctx, clientID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list matrices")
	}
	return out, nil
}

// SetActive toggles the active flag. Multiple active matrices per client are
// allowed here; the ambiguity surfaces at evaluation time when no explicit
// matrix is requested.
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.RuleMatrix, error) {
	if err := s.store.SetActive(ctx, id, active, time.Now()); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "matrix not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update matrix")
	}
	s.logAudit(ctx, "matrix_active_changed", "matrix_id", id, "active", active)
	return s.GetMatrix(ctx, id)
}

// RuleParams carries the authoring fields of a rule. ConditionJSON is the raw
// condition tree; nil means no condition.
type RuleParams struct {
	Order            int
	PositionCategory string
	OffenseType      string
	Severity         string
	LookbackYears    *int
	ConditionJSON    json.RawMessage
	Decision         string
}

func (p RuleParams) apply(r *models.Rule) error {
	decision, err := models.ParseDecision(p.Decision)
	if err != nil {
		return err
	}
	r.Order = p.Order
	r.PositionCategory = strings.TrimSpace(p.PositionCategory)
	r.OffenseType = strings.TrimSpace(p.OffenseType)
	r.Decision = decision
	r.LookbackYears = p.LookbackYears
	r.Severity = ""
	if p.Severity != "" {
		severity, err := models.ParseSeverity(p.Severity)
		if err != nil {
			return err
		}
		r.Severity = severity
	}
	r.Condition = nil
	if len(p.ConditionJSON) > 0 && string(p.ConditionJSON) != "null" {
		condition, err := models.ParseCondition(p.ConditionJSON)
		if err != nil {
			return err
		}
		r.Condition = condition
	}
	return r.Validate()
}

// AddRule appends a rule to a matrix. Duplicate order values within the matrix
// are a configuration error and rejected.
func (s *Service) AddRule(ctx context.Context, matrixID uuid.UUID, params RuleParams) (*models.Rule, error) {
	if _, err := s.GetMatrix(ctx, matrixID); err != nil {
		return nil, err
	}
	rule, err := models.NewRule(matrixID, params.Order, models.DecisionManualReview, time.Now())
	if err != nil {
		return nil, err
	}
	if err := params.apply(rule); err != nil {
		return nil, err
	}
	if err := s.store.AddRule(ctx, rule); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Newf(dErrors.CodeValidation, "rule order %d already used in matrix", rule.Order)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to add rule")
	}
	s.logAudit(ctx, "rule_added", "matrix_id", matrixID, "rule_id", rule.ID, "rule_order", rule.Order)
	return rule, nil
}

// UpdateRule replaces a rule's matchable fields, condition, and decision.
func (s *Service) UpdateRule(ctx context.Context, ruleID uuid.UUID, params RuleParams) (*models.Rule, error) {
	rule, err := s.store.FindRuleByID(ctx, ruleID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "rule not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load rule")
	}
	if err := params.apply(rule); err != nil {
		return nil, err
	}
	rule.UpdatedAt = time.Now()
	if err := s.store.UpdateRule(ctx, rule); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Newf(dErrors.CodeValidation, "rule order %d already used in matrix", rule.Order)
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "rule not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update rule")
	}
	s.logAudit(ctx, "rule_updated", "matrix_id", rule.MatrixID, "rule_id", rule.ID, "rule_order", rule.Order)
	return rule, nil
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if s.logger == nil {
		return
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
