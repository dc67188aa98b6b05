package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"clearvet/internal/matrix/models"
	"clearvet/pkg/platform/sentinel"
)

// InMemory holds matrices and rules in memory for tests and single-process
// deployments. It enforces the same uniqueness facts as the postgres schema.
type InMemory struct {
	mu       sync.RWMutex
	matrices map[uuid.UUID]*models.RuleMatrix
	rules    map[uuid.UUID]*models.Rule
}

func NewInMemory() *InMemory {
	return &InMemory{
		matrices: make(map[uuid.UUID]*models.RuleMatrix),
		rules:    make(map[uuid.UUID]*models.Rule),
	}
}

func (s *InMemory) CreateMatrix(_ context.Context, m *models.RuleMatrix) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.matrices[m.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *m
	cp.Rules = nil
	s.matrices[m.ID] = &cp
	return nil
}

func (s *InMemory) FindMatrixByID(_ context.Context, id uuid.UUID) (*models.RuleMatrix, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matrices[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *m
	cp.Rules = s.rulesForLocked(id)
	return &cp, nil
}

// rulesForLocked returns copies of a matrix's rules in ascending order.
// Caller must hold at least a read lock.
func (s *InMemory) rulesForLocked(matrixID uuid.UUID) []*models.Rule {
	var out []*models.Rule
	for _, r := range s.rules {
		if r.MatrixID == matrixID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

func (s *InMemory) ListByClient(_ context.Context, clientID uuid.UUID) ([]*models.RuleMatrix, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.RuleMatrix
	for _, m := range s.matrices {
		if m.ClientID == clientID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemory) ListActiveByClient(_ context.Context, clientID uuid.UUID) ([]*models.RuleMatrix, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.RuleMatrix
	for _, m := range s.matrices {
		if m.ClientID == clientID && m.Active {
			cp := *m
			cp.Rules = s.rulesForLocked(m.ID)
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemory) SetActive(_ context.Context, id uuid.UUID, active bool, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matrices[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	m.Active = active
	m.UpdatedAt = now
	return nil
}

func (s *InMemory) AddRule(_ context.Context, r *models.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matrices[r.MatrixID]; !ok {
		return sentinel.ErrNotFound
	}
	if s.orderTakenLocked(r.MatrixID, r.Order, r.ID) {
		return sentinel.ErrConflict
	}
	cp := *r
	s.rules[r.ID] = &cp
	return nil
}

func (s *InMemory) UpdateRule(_ context.Context, r *models.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[r.ID]; !ok {
		return sentinel.ErrNotFound
	}
	if s.orderTakenLocked(r.MatrixID, r.Order, r.ID) {
		return sentinel.ErrConflict
	}
	cp := *r
	s.rules[r.ID] = &cp
	return nil
}

func (s *InMemory) FindRuleByID(_ context.Context, id uuid.UUID) (*models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *InMemory) orderTakenLocked(matrixID uuid.UUID, order int, excludeID uuid.UUID) bool {
	for _, r := range s.rules {
		if r.MatrixID == matrixID && r.Order == order && r.ID != excludeID {
			return true
		}
	}
	return false
}
