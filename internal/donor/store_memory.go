package donor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"bloodlink/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	donors map[uuid.UUID]*Donor
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{donors: make(map[uuid.UUID]*Donor)}
}

func (s *InMemoryStore) Create(_ context.Context, d *Donor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.donors[d.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *d
	s.donors[d.ID] = &cp
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id uuid.UUID) (*Donor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.donors[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *InMemoryStore) SetLastDonationDate(_ context.Context, id uuid.UUID, donatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.donors[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	t := donatedAt
	d.LastDonationDate = &t
	d.UpdatedAt = donatedAt
	return nil
}
