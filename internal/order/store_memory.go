package order

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"clearvet/pkg/platform/sentinel"
)

// MemoryStore holds orders in memory for tests and single-process deployments.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[uuid.UUID]*Order)}
}

func (s *MemoryStore) Create(_ context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[o.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id uuid.UUID) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *o
	cp.Findings = append([]Finding(nil), o.Findings...)
	return &cp, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id uuid.UUID, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	return nil
}
