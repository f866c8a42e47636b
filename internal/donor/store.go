package donor

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store abstracts donor persistence. Implementations return
// sentinel.ErrNotFound when the id does not resolve.
type Store interface {
	Create(ctx context.Context, d *Donor) error
	Get(ctx context.Context, id uuid.UUID) (*Donor, error)
	// SetLastDonationDate records a completed donation. Ownership of this
	// write belongs to the fulfilment transition, not profile edits.
	SetLastDonationDate(ctx context.Context, id uuid.UUID, donatedAt time.Time) error
}
