// Package notify delivers appointment notifications to requesters. Delivery
// is a collaborator of the lifecycle, never part of it: a send failure is
// logged and swallowed by callers, it does not roll back a state change.
package notify

import "context"

// AppointmentNotice carries everything the requester needs to coordinate a
// scheduled donation.
type AppointmentNotice struct {
	RequesterName  string
	RequesterEmail string
	PatientName    string
	DonorName      string
	DonorMobile    string
	Date           string
	Time           string
	Message        string
}

// Notifier sends an appointment confirmation. Implementations must be safe
// for concurrent use.
type Notifier interface {
	AppointmentScheduled(ctx context.Context, n AppointmentNotice) error
}
