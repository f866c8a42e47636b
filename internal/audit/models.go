// Package audit keeps an append-only trail of lifecycle events per blood
// request, so a contested record (three actor roles writing to it) can be
// reconstructed after the fact.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "bloodlink/pkg/domain"
)

// Action names what happened to the request.
type Action string

const (
	ActionCreated       Action = "created"
	ActionScheduled     Action = "scheduled"
	ActionStatusChanged Action = "status_changed"
	ActionDeleted       Action = "deleted"
)

// Event is one lifecycle fact. FromStatus/ToStatus are set for transitions,
// empty otherwise.
type Event struct {
	ID         uuid.UUID
	RequestID  uuid.UUID
	ActorID    uuid.UUID
	ActorRole  id.Role
	Action     Action
	FromStatus string
	ToStatus   string
	Detail     string
	Timestamp  time.Time
}

// Store is the append-only sink.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]Event, error)
}
