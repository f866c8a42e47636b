package blood

import (
	"strings"

	dErrors "bloodlink/pkg/domain-errors"
)

// Urgency is a request's triage priority.
type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyModerate Urgency = "moderate"
	UrgencyLow      Urgency = "low"
)

// ParseUrgency constructs an Urgency from external input. Empty input
// defaults to moderate, matching request-creation defaults.
func ParseUrgency(s string) (Urgency, error) {
	u := Urgency(strings.ToLower(strings.TrimSpace(s)))
	switch u {
	case UrgencyCritical, UrgencyModerate, UrgencyLow:
		return u, nil
	case "":
		return UrgencyModerate, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "unknown urgency: "+s)
}

// Rank orders urgencies for matching-feed sorting: critical sorts first.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyCritical:
		return 0
	case UrgencyModerate:
		return 1
	default:
		return 2
	}
}
