package adverseaction

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"clearvet/pkg/platform/sentinel"
)

// MemoryStore holds adverse actions in memory for tests and single-process
// deployments. It enforces the same facts as the postgres schema: one
// non-terminal instance per order, and compare-status-and-set updates.
type MemoryStore struct {
	mu        sync.RWMutex
	actions   map[uuid.UUID]*AdverseAction
	documents map[uuid.UUID][]Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		actions:   make(map[uuid.UUID]*AdverseAction),
		documents: make(map[uuid.UUID][]Document),
	}
}

func (s *MemoryStore) Create(_ context.Context, a *AdverseAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.actions {
		if existing.OrderID == a.OrderID && !existing.Status.Terminal() {
			return sentinel.ErrConflict
		}
	}
	cp := *a
	s.actions[a.ID] = &cp
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id uuid.UUID) (*AdverseAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actions[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *a
	cp.Documents = append([]Document(nil), s.documents[id]...)
	return &cp, nil
}

func (s *MemoryStore) FindActiveByOrder(_ context.Context, orderID uuid.UUID) (*AdverseAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.actions {
		if a.OrderID == orderID && !a.Status.Terminal() {
			cp := *a
			cp.Documents = append([]Document(nil), s.documents[a.ID]...)
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *MemoryStore) ListByOrder(_ context.Context, orderID uuid.UUID) ([]*AdverseAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*AdverseAction
	for _, a := range s.actions {
		if a.OrderID == orderID {
			cp := *a
			cp.Documents = append([]Document(nil), s.documents[a.ID]...)
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// UpdateFrom writes the full new state if and only if the stored status still
// equals expected. A stale expectation fails with ErrInvalidState; nothing is
// overwritten.
func (s *MemoryStore) UpdateFrom(_ context.Context, a *AdverseAction, expected Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.actions[a.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Status != expected {
		return sentinel.ErrInvalidState
	}
	cp := *a
	cp.Documents = nil
	s.actions[a.ID] = &cp
	return nil
}

func (s *MemoryStore) AddDocument(_ context.Context, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.actions[doc.AdverseActionID]; !ok {
		return sentinel.ErrNotFound
	}
	s.documents[doc.AdverseActionID] = append(s.documents[doc.AdverseActionID], doc)
	return nil
}

// ListElapsedWaiting returns actions still stored as pre_notice_sent whose
// waiting period ended at or before now. Used only by the sweep loop.
func (s *MemoryStore) ListElapsedWaiting(_ context.Context, now time.Time) ([]*AdverseAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*AdverseAction
	for _, a := range s.actions {
		if a.Status == StatusPreNoticeSent && a.WaitingElapsed(now) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
