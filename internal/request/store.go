package request

import (
	"context"
	"time"

	"github.com/google/uuid"

	"bloodlink/internal/blood"
)

// ScheduleCommit is the donor-match write: fulfiller identity, agreed slot,
// and optional message, applied together with the Pending->Scheduled status
// change in one atomic store operation.
type ScheduleCommit struct {
	DonorID uuid.UUID
	Slot    AppointmentSlot
	Message string
	Now     time.Time
}

// Store abstracts request persistence.
//
// Required property of every implementation: Schedule and UpdateStatus are
// compare-and-set — they verify the expected source status and apply the new
// status in one atomic storage operation, returning sentinel.ErrInvalidState
// when the precondition no longer holds. This is what prevents two actors
// racing on the same record (double fulfilment, match-vs-cancel) from both
// winning.
type Store interface {
	Create(ctx context.Context, r *Request) error
	Get(ctx context.Context, id uuid.UUID) (*Request, error)

	// ListByRequester returns a requester's requests, newest first.
	ListByRequester(ctx context.Context, requesterID uuid.UUID) ([]*Request, error)
	// FindMatching returns Pending requests with exactly this blood group,
	// urgency-first (critical before moderate before low) then newest first.
	FindMatching(ctx context.Context, group blood.Group) ([]*Request, error)
	// ListByTargetHospital returns requests directed at the hospital,
	// newest first, regardless of status.
	ListByTargetHospital(ctx context.Context, hospitalID uuid.UUID) ([]*Request, error)
	// ListByFulfiller returns requests a donor has committed to, most
	// recently updated first.
	ListByFulfiller(ctx context.Context, donorID uuid.UUID) ([]*Request, error)

	// Schedule applies Pending->Scheduled and the fulfiller fields in one
	// CAS write.
	Schedule(ctx context.Context, id uuid.UUID, commit ScheduleCommit) (*Request, error)
	// UpdateStatus applies from->to in one CAS write.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, now time.Time) (*Request, error)

	Delete(ctx context.Context, id uuid.UUID) error
}
