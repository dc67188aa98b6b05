package adjudication

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"clearvet/internal/matrix/models"
	"clearvet/pkg/platform/sentinel"
)

type DecisionStoreSuite struct {
	suite.Suite
	store *MemoryStore
	ctx   context.Context
	now   time.Time
}

func (s *DecisionStoreSuite) SetupTest() {
	s.store = NewMemoryStore()
	s.ctx = context.Background()
	s.now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestDecisionStoreSuite(t *testing.T) {
	suite.Run(t, new(DecisionStoreSuite))
}

func (s *DecisionStoreSuite) newDecision(orderID uuid.UUID, automated models.Decision, evaluatedAt time.Time) *Decision {
	return &Decision{
		ID:                uuid.New(),
		OrderID:           orderID,
		MatrixID:          uuid.New(),
		AutomatedDecision: automated,
		EvaluatedAt:       evaluatedAt,
	}
}

func (s *DecisionStoreSuite) TestCreateAndFind() {
	s.Run("creates and finds the latest by order", func() {
		orderID := uuid.New()
		older := s.newDecision(orderID, models.DecisionManualReview, s.now)
		newer := s.newDecision(orderID, models.DecisionAutoApprove, s.now.Add(time.Hour))
		s.Require().NoError(s.store.Create(s.ctx, older))
		s.Require().NoError(s.store.Create(s.ctx, newer))

		latest, err := s.store.FindLatestByOrder(s.ctx, orderID)
		s.Require().NoError(err)
		s.Equal(newer.ID, latest.ID)
	})

	s.Run("duplicate id conflicts", func() {
		d := s.newDecision(uuid.New(), models.DecisionAutoApprove, s.now)
		s.Require().NoError(s.store.Create(s.ctx, d))
		s.ErrorIs(s.store.Create(s.ctx, d), sentinel.ErrConflict)
	})

	s.Run("no decision for order", func() {
		_, err := s.store.FindLatestByOrder(s.ctx, uuid.New())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *DecisionStoreSuite) TestListByOrder() {
	orderID := uuid.New()
	first := s.newDecision(orderID, models.DecisionManualReview, s.now)
	second := s.newDecision(orderID, models.DecisionAutoReject, s.now.Add(time.Hour))
	s.Require().NoError(s.store.Create(s.ctx, first))
	s.Require().NoError(s.store.Create(s.ctx, second))
	s.Require().NoError(s.store.Create(s.ctx, s.newDecision(uuid.New(), models.DecisionAutoApprove, s.now)))

	out, err := s.store.ListByOrder(s.ctx, orderID)
	s.Require().NoError(err)
	s.Require().Len(out, 2)
	s.Equal(second.ID, out[0].ID)
	s.Equal(first.ID, out[1].ID)
}

func (s *DecisionStoreSuite) TestListPending() {
	pending := s.newDecision(uuid.New(), models.DecisionManualReview, s.now)
	resolved := s.newDecision(uuid.New(), models.DecisionManualReview, s.now.Add(time.Minute))
	approved := s.newDecision(uuid.New(), models.DecisionAutoApprove, s.now)
	s.Require().NoError(s.store.Create(s.ctx, pending))
	s.Require().NoError(s.store.Create(s.ctx, resolved))
	s.Require().NoError(s.store.Create(s.ctx, approved))

	final := models.DecisionAutoApprove
	resolved.FinalDecision = &final
	resolved.OverriddenBy = "reviewer-9"
	s.Require().NoError(s.store.UpdateOverride(s.ctx, resolved))

	out, err := s.store.ListPending(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(out, 1)
	s.Equal(pending.ID, out[0].ID)
}

func (s *DecisionStoreSuite) TestUpdateOverride() {
	s.Run("persists override fields only", func() {
		d := s.newDecision(uuid.New(), models.DecisionAutoReject, s.now)
		s.Require().NoError(s.store.Create(s.ctx, d))

		final := models.DecisionAutoApprove
		at := s.now.Add(time.Hour)
		d.FinalDecision = &final
		d.OverrideNotes = "expunged"
		d.OverriddenBy = "reviewer-9"
		d.OverriddenAt = &at
		s.Require().NoError(s.store.UpdateOverride(s.ctx, d))

		found, err := s.store.FindLatestByOrder(s.ctx, d.OrderID)
		s.Require().NoError(err)
		s.Equal(models.DecisionAutoReject, found.AutomatedDecision)
		s.Require().NotNil(found.FinalDecision)
		s.Equal(final, *found.FinalDecision)
		s.Equal("expunged", found.OverrideNotes)
	})

	s.Run("unknown decision", func() {
		s.ErrorIs(s.store.UpdateOverride(s.ctx, s.newDecision(uuid.New(), models.DecisionAutoReject, s.now)), sentinel.ErrNotFound)
	})
}
