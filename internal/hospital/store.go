package hospital

import (
	"context"

	"github.com/google/uuid"
)

// Store abstracts hospital persistence.
//
// Adjust must be atomic per (hospital, key) counter: concurrent adjustments
// on the same counter may interleave but must never lose an update or drive
// the count negative. The Postgres implementation relies on per-row atomic
// UPDATEs for this; any replacement storage must provide the same property.
type Store interface {
	Create(ctx context.Context, h *Hospital) error
	Get(ctx context.Context, id uuid.UUID) (*Hospital, error)
	GetInventory(ctx context.Context, id uuid.UUID) (Inventory, error)
	Adjust(ctx context.Context, id uuid.UUID, key string, quantity int, action Action) (AdjustResult, error)
}
