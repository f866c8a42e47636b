package request

import (
	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
)

// The lifecycle state machine for status transitions, expressed as a lookup
// table rather than scattered conditionals.
//
//	Pending   -> Scheduled            (donor commit; separate Schedule op)
//	Pending   -> Cancelled            (requester)
//	Pending   -> Rejected             (requester or target hospital)
//	Scheduled -> Rejected             (requester or target hospital)
//	Scheduled -> Fulfilled            (requester; donor last-donation side effect)
//	Pending   -> Fulfilled            (target hospital; optional inventory deduction)
//
// Pending -> Scheduled is intentionally absent here: a donor match is a
// distinct operation with its own eligibility precondition, not a status
// update, and donor identity authorizes only that operation.

// transitionParty is who, relative to the request, attempts a transition.
type transitionParty int

const (
	partyRequester transitionParty = iota
	partyTargetHospital
)

type transitionRule struct {
	from Status
	to   Status
	by   transitionParty
}

var transitionTable = []transitionRule{
	{from: StatusPending, to: StatusCancelled, by: partyRequester},
	{from: StatusPending, to: StatusRejected, by: partyRequester},
	{from: StatusScheduled, to: StatusRejected, by: partyRequester},
	{from: StatusScheduled, to: StatusFulfilled, by: partyRequester},
	{from: StatusPending, to: StatusRejected, by: partyTargetHospital},
	{from: StatusScheduled, to: StatusRejected, by: partyTargetHospital},
	{from: StatusPending, to: StatusFulfilled, by: partyTargetHospital},
}

// Decision is what an authorized, precondition-checked transition requires
// and causes.
type Decision struct {
	// From is the expected source status for the compare-and-set write.
	From Status
	// UpdateDonorDate: stamp the fulfilling donor's lastDonationDate.
	UpdateDonorDate bool
	// AllowDeduct: the caller may opt into an inventory deduction.
	AllowDeduct bool
}

// Decide authorizes and plans a status transition. Errors:
//   - forbidden when the actor is neither the requester nor the target
//     hospital (donor identity never authorizes status updates);
//   - validation when the target status is not a transition target at all;
//   - precondition_failed when the request's current status has no rule row
//     for this actor and target (stale client state; the caller must refetch).
func Decide(actor id.Actor, req *Request, to Status) (Decision, error) {
	var party transitionParty
	switch {
	case actor.Role == id.RoleUser && actor.ID == req.Requester:
		party = partyRequester
	case actor.Role == id.RoleHospital && req.TargetHospital.Valid && actor.ID == req.TargetHospital.UUID:
		party = partyTargetHospital
	default:
		return Decision{}, dErrors.New(dErrors.CodeForbidden, "not authorized to update this request")
	}

	if to == StatusPending || to == StatusScheduled {
		return Decision{}, dErrors.New(dErrors.CodeValidation, "status cannot be set to "+string(to))
	}

	for _, rule := range transitionTable {
		if rule.by != party || rule.to != to {
			continue
		}
		if rule.from != req.Status {
			continue
		}
		d := Decision{From: rule.from}
		if to == StatusFulfilled {
			// Donor-path fulfilment stamps the donor; hospital-path
			// fulfilment may deduct inventory.
			d.UpdateDonorDate = req.FulfilledBy.Valid
			d.AllowDeduct = party == partyTargetHospital
		}
		return d, nil
	}

	return Decision{}, dErrors.New(dErrors.CodePreconditionFailed,
		"request is "+string(req.Status)+", cannot mark "+string(to))
}
