// Package eligibility decides whether a donor may accept a request today.
//
// The evaluator is pure: it takes everything it needs as arguments and reads
// no stores, so it can be re-run at the moment of donation intent. It must
// never be cached — lastDonationDate changes after every fulfilment.
package eligibility

import "time"

// Gender mirrors the donor profile field. Only Female changes evaluation
// (pregnancy question, longer recency gap).
type Gender string

const (
	Male   Gender = "Male"
	Female Gender = "Female"
	Other  Gender = "Other"
)

// Recency gaps between donations, in days.
const (
	GapDaysFemale  = 120
	GapDaysDefault = 90
)

// Status is the evaluation outcome.
type Status string

const (
	Eligible          Status = "Eligible"
	DeferredPregnancy Status = "DeferredPregnancy"
	DeferredRecency   Status = "DeferredRecency"
)

// Result carries the outcome plus the remaining wait for recency deferrals.
type Result struct {
	Status        Status
	DaysRemaining int
}

// Eligible reports whether the donor may donate now.
func (r Result) Eligible() bool { return r.Status == Eligible }

// Evaluate applies the deferral rules in order:
//  1. A pregnant female donor is deferred outright, no further checks.
//  2. A donor with no recorded donation is eligible.
//  3. Otherwise the elapsed whole days since the last donation must reach the
//     gap for the donor's gender (120 days female, 90 otherwise).
//
// The pregnancy answer is collected interactively and only meaningful when
// gender is Female; it is ignored for everyone else.
func Evaluate(gender Gender, lastDonation *time.Time, pregnant bool, now time.Time) Result {
	if gender == Female && pregnant {
		return Result{Status: DeferredPregnancy}
	}

	if lastDonation == nil || lastDonation.IsZero() {
		return Result{Status: Eligible}
	}

	elapsedDays := int(now.Sub(*lastDonation).Hours() / 24)

	gap := GapDaysDefault
	if gender == Female {
		gap = GapDaysFemale
	}

	if elapsedDays < gap {
		return Result{Status: DeferredRecency, DaysRemaining: gap - elapsedDays}
	}
	return Result{Status: Eligible}
}
