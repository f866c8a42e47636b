package request

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"bloodlink/internal/blood"
	"bloodlink/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[uuid.UUID]*Request
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{requests: make(map[uuid.UUID]*Request)}
}

func (s *InMemoryStore) Create(_ context.Context, r *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[r.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *r
	s.requests[r.ID] = &cp
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id uuid.UUID) (*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *InMemoryStore) ListByRequester(_ context.Context, requesterID uuid.UUID) ([]*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Request
	for _, r := range s.requests {
		if r.Requester == requesterID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) FindMatching(_ context.Context, group blood.Group) ([]*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Request
	for _, r := range s.requests {
		if r.Status == StatusPending && r.BloodGroup == group {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Urgency.Rank() != out[j].Urgency.Rank() {
			return out[i].Urgency.Rank() < out[j].Urgency.Rank()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) ListByTargetHospital(_ context.Context, hospitalID uuid.UUID) ([]*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Request
	for _, r := range s.requests {
		if r.TargetHospital.Valid && r.TargetHospital.UUID == hospitalID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) ListByFulfiller(_ context.Context, donorID uuid.UUID) ([]*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Request
	for _, r := range s.requests {
		if r.FulfilledBy.Valid && r.FulfilledBy.UUID == donorID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// Schedule holds the store lock across the precondition check and the write,
// the in-memory equivalent of the Postgres conditional UPDATE.
func (s *InMemoryStore) Schedule(_ context.Context, id uuid.UUID, commit ScheduleCommit) (*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if r.Status != StatusPending {
		return nil, sentinel.ErrInvalidState
	}
	r.Status = StatusScheduled
	r.FulfilledBy = uuid.NullUUID{UUID: commit.DonorID, Valid: true}
	r.AppointmentSlot = commit.Slot
	r.DonorMessage = commit.Message
	r.UpdatedAt = commit.Now
	cp := *r
	return &cp, nil
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status, now time.Time) (*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if r.Status != from {
		return nil, sentinel.ErrInvalidState
	}
	r.Status = to
	r.UpdatedAt = now
	cp := *r
	return &cp, nil
}

func (s *InMemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.requests, id)
	return nil
}
