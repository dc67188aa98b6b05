package adverseaction

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"clearvet/pkg/platform/sentinel"
)

type AdverseActionStoreSuite struct {
	suite.Suite
	store *MemoryStore
	ctx   context.Context
	now   time.Time
}

func (s *AdverseActionStoreSuite) SetupTest() {
	s.store = NewMemoryStore()
	s.ctx = context.Background()
	s.now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestAdverseActionStoreSuite(t *testing.T) {
	suite.Run(t, new(AdverseActionStoreSuite))
}

func (s *AdverseActionStoreSuite) newAction(orderID uuid.UUID, status Status) *AdverseAction {
	return &AdverseAction{
		ID:        uuid.New(),
		OrderID:   orderID,
		Status:    status,
		CreatedAt: s.now,
		UpdatedAt: s.now,
	}
}

func (s *AdverseActionStoreSuite) TestCreate() {
	s.Run("creates and finds by id", func() {
		a := s.newAction(uuid.New(), StatusInitiated)
		s.Require().NoError(s.store.Create(s.ctx, a))

		found, err := s.store.FindByID(s.ctx, a.ID)
		s.Require().NoError(err)
		s.Equal(a.OrderID, found.OrderID)
	})

	s.Run("second non-terminal action for an order conflicts", func() {
		orderID := uuid.New()
		s.Require().NoError(s.store.Create(s.ctx, s.newAction(orderID, StatusPreNoticeSent)))
		s.ErrorIs(s.store.Create(s.ctx, s.newAction(orderID, StatusInitiated)), sentinel.ErrConflict)
	})

	s.Run("terminal history does not block a new action", func() {
		orderID := uuid.New()
		s.Require().NoError(s.store.Create(s.ctx, s.newAction(orderID, StatusCancelled)))
		s.Require().NoError(s.store.Create(s.ctx, s.newAction(orderID, StatusInitiated)))
	})

	s.Run("unknown id", func() {
		_, err := s.store.FindByID(s.ctx, uuid.New())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *AdverseActionStoreSuite) TestFindActiveByOrder() {
	orderID := uuid.New()
	s.Require().NoError(s.store.Create(s.ctx, s.newAction(orderID, StatusCompleted)))
	active := s.newAction(orderID, StatusPreNoticeSent)
	s.Require().NoError(s.store.Create(s.ctx, active))

	found, err := s.store.FindActiveByOrder(s.ctx, orderID)
	s.Require().NoError(err)
	s.Equal(active.ID, found.ID)

	_, err = s.store.FindActiveByOrder(s.ctx, uuid.New())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *AdverseActionStoreSuite) TestListByOrder() {
	orderID := uuid.New()
	first := s.newAction(orderID, StatusCancelled)
	second := s.newAction(orderID, StatusInitiated)
	second.CreatedAt = s.now.Add(time.Hour)
	s.Require().NoError(s.store.Create(s.ctx, first))
	s.Require().NoError(s.store.Create(s.ctx, second))
	s.Require().NoError(s.store.Create(s.ctx, s.newAction(uuid.New(), StatusInitiated)))

	out, err := s.store.ListByOrder(s.ctx, orderID)
	s.Require().NoError(err)
	s.Require().Len(out, 2)
	s.Equal(first.ID, out[0].ID)
	s.Equal(second.ID, out[1].ID)
}

func (s *AdverseActionStoreSuite) TestUpdateFrom() {
	s.Run("writes when the expected status holds", func() {
		a := s.newAction(uuid.New(), StatusInitiated)
		s.Require().NoError(s.store.Create(s.ctx, a))

		a.Status = StatusPreNoticeSent
		s.Require().NoError(s.store.UpdateFrom(s.ctx, a, StatusInitiated))

		found, err := s.store.FindByID(s.ctx, a.ID)
		s.Require().NoError(err)
		s.Equal(StatusPreNoticeSent, found.Status)
	})

	s.Run("stale expectation fails without overwriting", func() {
		a := s.newAction(uuid.New(), StatusPreNoticeSent)
		s.Require().NoError(s.store.Create(s.ctx, a))

		stale := *a
		stale.Status = StatusCancelled
		err := s.store.UpdateFrom(s.ctx, &stale, StatusInitiated)
		s.ErrorIs(err, sentinel.ErrInvalidState)

		found, err := s.store.FindByID(s.ctx, a.ID)
		s.Require().NoError(err)
		s.Equal(StatusPreNoticeSent, found.Status)
	})

	s.Run("unknown id", func() {
		a := s.newAction(uuid.New(), StatusInitiated)
		s.ErrorIs(s.store.UpdateFrom(s.ctx, a, StatusInitiated), sentinel.ErrNotFound)
	})
}

func (s *AdverseActionStoreSuite) TestDocuments() {
	s.Run("documents attach to reads", func() {
		a := s.newAction(uuid.New(), StatusPreNoticeSent)
		s.Require().NoError(s.store.Create(s.ctx, a))

		doc := Document{
			ID:              uuid.New(),
			AdverseActionID: a.ID,
			Type:            DocumentPreNotice,
			Recipient:       "dana@example.com",
			SentAt:          s.now,
			DeliveryStatus:  "queued",
		}
		s.Require().NoError(s.store.AddDocument(s.ctx, doc))

		found, err := s.store.FindByID(s.ctx, a.ID)
		s.Require().NoError(err)
		s.Require().Len(found.Documents, 1)
		s.Equal(DocumentPreNotice, found.Documents[0].Type)
	})

	s.Run("document for unknown action", func() {
		s.ErrorIs(s.store.AddDocument(s.ctx, Document{ID: uuid.New(), AdverseActionID: uuid.New()}), sentinel.ErrNotFound)
	})
}

func (s *AdverseActionStoreSuite) TestListElapsedWaiting() {
	elapsed := s.newAction(uuid.New(), StatusPreNoticeSent)
	past := s.now.Add(-time.Hour)
	elapsed.WaitingPeriodEnd = &past

	running := s.newAction(uuid.New(), StatusPreNoticeSent)
	future := s.now.Add(time.Hour)
	running.WaitingPeriodEnd = &future

	initiated := s.newAction(uuid.New(), StatusInitiated)

	s.Require().NoError(s.store.Create(s.ctx, elapsed))
	s.Require().NoError(s.store.Create(s.ctx, running))
	s.Require().NoError(s.store.Create(s.ctx, initiated))

	out, err := s.store.ListElapsedWaiting(s.ctx, s.now)
	s.Require().NoError(err)
	s.Require().Len(out, 1)
	s.Equal(elapsed.ID, out[0].ID)
}
