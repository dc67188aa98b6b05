package adjudication

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"clearvet/internal/matrix/models"
	matrixstore "clearvet/internal/matrix/store"
	"clearvet/internal/order"
	"clearvet/internal/timeline"
	dErrors "clearvet/pkg/domain-errors"
)

type AdjudicationServiceSuite struct {
	suite.Suite
	ctx       context.Context
	now       time.Time
	decisions *MemoryStore
	matrices  *matrixstore.InMemory
	orders    *order.MemoryStore
	events    *timeline.MemoryStore
	service   *Service
}

func (s *AdjudicationServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	s.decisions = NewMemoryStore()
	s.matrices = matrixstore.NewInMemory()
	s.orders = order.NewMemoryStore()
	s.events = timeline.NewMemoryStore()
	s.service = New(s.decisions, s.matrices, s.orders, timeline.NewRecorder(s.events),
		WithClock(func() time.Time { return s.now }),
	)
}

func TestAdjudicationServiceSuite(t *testing.T) {
	suite.Run(t, new(AdjudicationServiceSuite))
}

func (s *AdjudicationServiceSuite) seedOrder(clientID uuid.UUID, findings ...order.Finding) *order.Order {
	o := &order.Order{
		ID:               uuid.New(),
		ClientID:         clientID,
		Status:           order.StatusInProgress,
		PositionCategory: "driver",
		Applicant:        order.Applicant{FirstName: "Dana", LastName: "Reyes", Email: "dana@example.com"},
		Findings:         findings,
		CreatedAt:        s.now,
		UpdatedAt:        s.now,
	}
	s.Require().NoError(s.orders.Create(s.ctx, o))
	return o
}

func (s *AdjudicationServiceSuite) seedMatrix(clientID uuid.UUID, active bool, rules ...*models.Rule) *models.RuleMatrix {
	m, err := models.NewRuleMatrix(clientID, "Standard Matrix", "", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.matrices.CreateMatrix(s.ctx, m))
	for _, r := range rules {
		r.MatrixID = m.ID
		s.Require().NoError(s.matrices.AddRule(s.ctx, r))
	}
	if active {
		s.Require().NoError(s.matrices.SetActive(s.ctx, m.ID, true, s.now))
	}
	return m
}

func rejectCritical() *models.Rule {
	return &models.Rule{ID: uuid.New(), Order: 1, Severity: models.SeverityCritical, Decision: models.DecisionAutoReject}
}

func approveAll() *models.Rule {
	return &models.Rule{ID: uuid.New(), Order: 99, Decision: models.DecisionAutoApprove}
}

func criticalFinding(now time.Time) order.Finding {
	return order.Finding{ID: uuid.New(), OffenseType: "assault", Severity: "critical", OffenseDate: now.AddDate(-1, 0, 0)}
}

func (s *AdjudicationServiceSuite) TestRunAdjudication() {
	s.Run("matched rule drives the decision and flags the order", func() {
		clientID := uuid.New()
		o := s.seedOrder(clientID, criticalFinding(s.now))
		m := s.seedMatrix(clientID, true, rejectCritical(), approveAll())

		d, err := s.service.RunAdjudication(s.ctx, o.ID, nil, "staff-1")
		s.Require().NoError(err)
		s.Equal(models.DecisionAutoReject, d.AutomatedDecision)
		s.Equal(m.ID, d.MatrixID)
		s.Require().NotNil(d.MatchedRuleID)
		s.Nil(d.FinalDecision)

		updated, err := s.orders.FindByID(s.ctx, o.ID)
		s.Require().NoError(err)
		s.Equal(order.StatusRequiresAction, updated.Status)

		events, err := s.events.ListByOrder(s.ctx, o.ID)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal("adjudication_run", events[0].Action)
		s.Equal("rule", events[0].Detail["match_source"])
	})

	s.Run("favorable decision leaves order status alone", func() {
		clientID := uuid.New()
		o := s.seedOrder(clientID)
		s.seedMatrix(clientID, true, approveAll())

		d, err := s.service.RunAdjudication(s.ctx, o.ID, nil, "staff-1")
		s.Require().NoError(err)
		s.Equal(models.DecisionAutoApprove, d.AutomatedDecision)

		updated, err := s.orders.FindByID(s.ctx, o.ID)
		s.Require().NoError(err)
		s.Equal(order.StatusInProgress, updated.Status)
	})

	s.Run("no rule matches applies the default decision", func() {
		clientID := uuid.New()
		o := s.seedOrder(clientID, criticalFinding(s.now))
		s.seedMatrix(clientID, true, &models.Rule{
			ID: uuid.New(), Order: 1, Severity: models.SeverityMinor, Decision: models.DecisionAutoApprove,
		})

		d, err := s.service.RunAdjudication(s.ctx, o.ID, nil, "staff-1")
		s.Require().NoError(err)
		s.Equal(models.DecisionManualReview, d.AutomatedDecision)
		s.Nil(d.MatchedRuleID)
	})

	s.Run("re-running creates a second record and keeps the first", func() {
		clientID := uuid.New()
		o := s.seedOrder(clientID, criticalFinding(s.now))
		s.seedMatrix(clientID, true, rejectCritical(), approveAll())

		first, err := s.service.RunAdjudication(s.ctx, o.ID, nil, "staff-1")
		s.Require().NoError(err)
		s.now = s.now.Add(time.Hour)
		second, err := s.service.RunAdjudication(s.ctx, o.ID, nil, "staff-1")
		s.Require().NoError(err)
		s.NotEqual(first.ID, second.ID)

		history, err := s.service.ListByOrder(s.ctx, o.ID)
		s.Require().NoError(err)
		s.Require().Len(history, 2)
		s.Equal(second.ID, history[0].ID)
	})

	s.Run("explicit matrix id bypasses active resolution", func() {
		clientID := uuid.New()
		o := s.seedOrder(clientID)
		inactive := s.seedMatrix(clientID, false, approveAll())

		d, err := s.service.RunAdjudication(s.ctx, o.ID, &inactive.ID, "staff-1")
		s.Require().NoError(err)
		s.Equal(inactive.ID, d.MatrixID)
	})

	s.Run("unknown order", func() {
		_, err := s.service.RunAdjudication(s.ctx, uuid.New(), nil, "staff-1")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unknown explicit matrix", func() {
		o := s.seedOrder(uuid.New())
		missing := uuid.New()
		_, err := s.service.RunAdjudication(s.ctx, o.ID, &missing, "staff-1")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("no active matrix", func() {
		clientID := uuid.New()
		o := s.seedOrder(clientID)
		s.seedMatrix(clientID, false, approveAll())

		_, err := s.service.RunAdjudication(s.ctx, o.ID, nil, "staff-1")
		s.True(dErrors.HasCode(err, dErrors.CodeNoActiveMatrix))
	})

	s.Run("more than one active matrix is ambiguous", func() {
		clientID := uuid.New()
		o := s.seedOrder(clientID)
		s.seedMatrix(clientID, true, approveAll())
		s.seedMatrix(clientID, true, approveAll())

		_, err := s.service.RunAdjudication(s.ctx, o.ID, nil, "staff-1")
		s.True(dErrors.HasCode(err, dErrors.CodeAmbiguousMatrix))
	})
}

func (s *AdjudicationServiceSuite) TestOverride() {
	s.Run("override sets final decision and preserves the automated one", func() {
		clientID := uuid.New()
		o := s.seedOrder(clientID, criticalFinding(s.now))
		s.seedMatrix(clientID, true, rejectCritical())

		d, err := s.service.RunAdjudication(s.ctx, o.ID, nil, "staff-1")
		s.Require().NoError(err)

		overridden, err := s.service.Override(s.ctx, o.ID, "auto_approve", "record was expunged", "reviewer-9")
		s.Require().NoError(err)
		s.Equal(d.ID, overridden.ID)
		s.Equal(models.DecisionAutoReject, overridden.AutomatedDecision)
		s.Require().NotNil(overridden.FinalDecision)
		s.Equal(models.DecisionAutoApprove, *overridden.FinalDecision)
		s.Equal("reviewer-9", overridden.OverriddenBy)
		s.Require().NotNil(overridden.OverriddenAt)
	})

	s.Run("re-override is allowed, last write wins", func() {
		clientID := uuid.New()
		o := s.seedOrder(clientID, criticalFinding(s.now))
		s.seedMatrix(clientID, true, rejectCritical())
		_, err := s.service.RunAdjudication(s.ctx, o.ID, nil, "staff-1")
		s.Require().NoError(err)

		_, err = s.service.Override(s.ctx, o.ID, "auto_approve", "", "reviewer-9")
		s.Require().NoError(err)
		second, err := s.service.Override(s.ctx, o.ID, "auto_reject", "on reflection", "reviewer-10")
		s.Require().NoError(err)
		s.Equal(models.DecisionAutoReject, *second.FinalDecision)
		s.Equal("reviewer-10", second.OverriddenBy)
	})

	s.Run("override targets the latest decision", func() {
		clientID := uuid.New()
		o := s.seedOrder(clientID, criticalFinding(s.now))
		s.seedMatrix(clientID, true, rejectCritical())

		first, err := s.service.RunAdjudication(s.ctx, o.ID, nil, "staff-1")
		s.Require().NoError(err)
		s.now = s.now.Add(time.Hour)
		second, err := s.service.RunAdjudication(s.ctx, o.ID, nil, "staff-1")
		s.Require().NoError(err)

		overridden, err := s.service.Override(s.ctx, o.ID, "auto_approve", "", "reviewer-9")
		s.Require().NoError(err)
		s.Equal(second.ID, overridden.ID)
		s.NotEqual(first.ID, overridden.ID)
	})

	s.Run("invalid decision value", func() {
		_, err := s.service.Override(s.ctx, uuid.New(), "approve", "", "reviewer-9")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("no decision exists for order", func() {
		_, err := s.service.Override(s.ctx, uuid.New(), "auto_approve", "", "reviewer-9")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *AdjudicationServiceSuite) TestListPending() {
	clientID := uuid.New()
	reviewed := s.seedOrder(clientID, criticalFinding(s.now))
	s.seedMatrix(clientID, true, &models.Rule{
		ID: uuid.New(), Order: 1, Decision: models.DecisionManualReview,
	})

	_, err := s.service.RunAdjudication(s.ctx, reviewed.ID, nil, "staff-1")
	s.Require().NoError(err)

	pending, err := s.service.ListPending(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(reviewed.ID, pending[0].OrderID)

	// An override clears the decision from the queue.
	_, err = s.service.Override(s.ctx, reviewed.ID, "auto_approve", "", "reviewer-9")
	s.Require().NoError(err)

	pending, err = s.service.ListPending(s.ctx)
	s.Require().NoError(err)
	s.Empty(pending)
}
