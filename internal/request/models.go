// Package request holds the BloodRequest entity, its lifecycle transition
// table, and its record stores. A request is one shared record mutated by
// three actor roles (requester, donor, hospital); every mutation goes through
// the lifecycle rules in lifecycle.go and a compare-and-set store write.
package request

import (
	"time"

	"github.com/google/uuid"

	"bloodlink/internal/blood"
	dErrors "bloodlink/pkg/domain-errors"
)

// Status is the request lifecycle state.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusScheduled Status = "Scheduled"
	StatusFulfilled Status = "Fulfilled"
	StatusRejected  Status = "Rejected"
	StatusCancelled Status = "Cancelled"
)

var validStatuses = map[Status]bool{
	StatusPending:   true,
	StatusScheduled: true,
	StatusFulfilled: true,
	StatusRejected:  true,
	StatusCancelled: true,
}

// ParseStatus constructs a Status from external input.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !validStatuses[st] {
		return "", dErrors.New(dErrors.CodeValidation, "unknown status: "+s)
	}
	return st, nil
}

// Terminal reports whether no further transition may leave this status.
func (s Status) Terminal() bool {
	return s == StatusFulfilled || s == StatusRejected || s == StatusCancelled
}

// AppointmentSlot is the agreed donation slot. Date and time stay strings end
// to end; they are display values the requester and donor coordinate around,
// not scheduled machine events.
type AppointmentSlot struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// IsZero reports whether no slot has been agreed.
func (a AppointmentSlot) IsZero() bool { return a.Date == "" && a.Time == "" }

// Request is the central entity.
//
// Invariant: FulfilledBy and AppointmentSlot are either both unset (Pending,
// Cancelled, Rejected before a match) or both set (Scheduled, Fulfilled,
// Rejected after a match). Fulfiller fields are retained on reject so history
// stays reconstructible.
type Request struct {
	ID        uuid.UUID
	Requester uuid.UUID
	// TargetHospital is set only for hospital-directed requests.
	TargetHospital uuid.NullUUID

	PatientName   string
	Age           int
	PatientGender string
	BloodGroup    blood.Group
	Units         int
	Reason        string

	HospitalName    string
	DoctorName      string
	HospitalAddress string
	HospitalPhone   string

	Urgency Urgency
	Status  Status

	FulfilledBy     uuid.NullUUID
	AppointmentSlot AppointmentSlot
	DonorMessage    string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Urgency re-exports the blood package type so callers of this package deal
// with one import for request fields.
type Urgency = blood.Urgency

// CheckFulfilmentInvariant verifies the both-or-neither rule. Services call
// it after loads in paths that are about to act on fulfiller state.
func (r *Request) CheckFulfilmentInvariant() error {
	matched := r.FulfilledBy.Valid
	slotSet := !r.AppointmentSlot.IsZero()
	if matched != slotSet {
		return dErrors.New(dErrors.CodeInvariantViolation, "fulfiller and appointment slot must be set together")
	}
	return nil
}
