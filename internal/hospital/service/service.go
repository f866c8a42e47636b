// Package service implements the inventory ledger operations on top of a
// hospital store.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"bloodlink/internal/blood"
	"bloodlink/internal/hospital"
	"bloodlink/internal/platform/metrics"
	dErrors "bloodlink/pkg/domain-errors"
	id "bloodlink/pkg/domain"
	"bloodlink/pkg/platform/sentinel"
	"bloodlink/pkg/requestcontext"
)

// Store is the persistence the ledger needs. Satisfied by both
// hospital.InMemoryStore and hospital.PostgresStore.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*hospital.Hospital, error)
	GetInventory(ctx context.Context, id uuid.UUID) (hospital.Inventory, error)
	Adjust(ctx context.Context, id uuid.UUID, key string, quantity int, action hospital.Action) (hospital.AdjustResult, error)
}

// Service guards the ledger invariants: known keys only, validated actions,
// counts never below zero. All adjustments persist immediately.
type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(store Store, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{store: store, logger: logger, metrics: m}
}

// Adjust applies one ledger adjustment for the acting hospital.
//
// A remove that exceeds stock clamps at zero. The response stays compatible
// with that quirk (no error), but the clamp is logged and counted so it is
// distinguishable operationally from a full deduction.
func (s *Service) Adjust(ctx context.Context, actor id.Actor, key string, quantity int, action string) (hospital.AdjustResult, hospital.Inventory, error) {
	if actor.Role != id.RoleHospital {
		return hospital.AdjustResult{}, nil, dErrors.New(dErrors.CodeForbidden, "only hospitals adjust inventory")
	}
	if _, err := blood.ParseInventoryKey(key); err != nil {
		return hospital.AdjustResult{}, nil, err
	}
	act, err := hospital.ParseAction(action)
	if err != nil {
		return hospital.AdjustResult{}, nil, err
	}
	if quantity < 0 {
		return hospital.AdjustResult{}, nil, dErrors.New(dErrors.CodeValidation, "quantity must not be negative")
	}

	result, err := s.store.Adjust(ctx, actor.ID, key, quantity, act)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return hospital.AdjustResult{}, nil, dErrors.New(dErrors.CodeNotFound, "hospital not found")
		}
		return hospital.AdjustResult{}, nil, dErrors.Wrap(dErrors.CodeInternal, "adjust inventory", err)
	}

	s.metrics.IncInventoryAdjusted(string(act))
	if result.Clamped {
		s.metrics.IncInventoryClamped()
		s.logger.WarnContext(ctx, "inventory remove clamped at zero",
			"request_id", requestcontext.RequestID(ctx),
			"hospital_id", actor.ID.String(),
			"blood_key", key,
			"quantity", quantity,
		)
	}

	inv, err := s.store.GetInventory(ctx, actor.ID)
	if err != nil {
		return hospital.AdjustResult{}, nil, dErrors.Wrap(dErrors.CodeInternal, "load inventory", err)
	}
	return result, inv, nil
}

// Inventory returns the acting hospital's current counters.
func (s *Service) Inventory(ctx context.Context, actor id.Actor) (hospital.Inventory, error) {
	if actor.Role != id.RoleHospital {
		return nil, dErrors.New(dErrors.CodeForbidden, "only hospitals read their inventory")
	}
	inv, err := s.store.GetInventory(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "hospital not found")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "load inventory", err)
	}
	return inv, nil
}
