package adjudication

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"clearvet/internal/matrix/models"
	"clearvet/pkg/platform/sentinel"
)

// MemoryStore holds decisions in memory for tests and single-process
// deployments.
type MemoryStore struct {
	mu        sync.RWMutex
	decisions map[uuid.UUID]*Decision
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{decisions: make(map[uuid.UUID]*Decision)}
}

func (s *MemoryStore) Create(_ context.Context, d *Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.decisions[d.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *d
	s.decisions[d.ID] = &cp
	return nil
}

func (s *MemoryStore) FindLatestByOrder(_ context.Context, orderID uuid.UUID) (*Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *Decision
	for _, d := range s.decisions {
		if d.OrderID != orderID {
			continue
		}
		if latest == nil || d.EvaluatedAt.After(latest.EvaluatedAt) {
			latest = d
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *MemoryStore) ListByOrder(_ context.Context, orderID uuid.UUID) ([]*Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Decision
	for _, d := range s.decisions {
		if d.OrderID == orderID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EvaluatedAt.After(out[j].EvaluatedAt) })
	return out, nil
}

func (s *MemoryStore) ListPending(_ context.Context) ([]*Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Decision
	for _, d := range s.decisions {
		if d.FinalDecision == nil && d.AutomatedDecision == models.DecisionManualReview {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EvaluatedAt.Before(out[j].EvaluatedAt) })
	return out, nil
}

// UpdateOverride persists the override fields of an existing decision. The
// automated decision and evaluation metadata stay untouched.
func (s *MemoryStore) UpdateOverride(_ context.Context, d *Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.decisions[d.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	stored.FinalDecision = d.FinalDecision
	stored.OverrideNotes = d.OverrideNotes
	stored.OverriddenBy = d.OverriddenBy
	stored.OverriddenAt = d.OverriddenAt
	return nil
}
