package hospital

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"bloodlink/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu        sync.RWMutex
	hospitals map[uuid.UUID]*Hospital
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{hospitals: make(map[uuid.UUID]*Hospital)}
}

func (s *InMemoryStore) Create(_ context.Context, h *Hospital) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.hospitals[h.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *h
	if cp.Inventory == nil {
		cp.Inventory = NewInventory()
	} else {
		cp.Inventory = h.Inventory.Clone()
	}
	s.hospitals[h.ID] = &cp
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id uuid.UUID) (*Hospital, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hospitals[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *h
	cp.Inventory = h.Inventory.Clone()
	return &cp, nil
}

func (s *InMemoryStore) GetInventory(_ context.Context, id uuid.UUID) (Inventory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hospitals[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return h.Inventory.Clone(), nil
}

// Adjust applies the action under the store lock, which gives the in-memory
// implementation the same lost-update guarantee the Postgres store gets from
// per-row atomic UPDATEs.
func (s *InMemoryStore) Adjust(_ context.Context, id uuid.UUID, key string, quantity int, action Action) (AdjustResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hospitals[id]
	if !ok {
		return AdjustResult{}, sentinel.ErrNotFound
	}
	current, ok := h.Inventory[key]
	if !ok {
		return AdjustResult{}, sentinel.ErrInvalidState
	}
	newUnits, clamped := Apply(current, quantity, action)
	h.Inventory[key] = newUnits
	return AdjustResult{Key: key, Units: newUnits, Clamped: clamped}, nil
}
