// Package donor holds the donor entity and its stores. The core mutates a
// single donor field — lastDonationDate — as a fulfilment side effect;
// everything else is written by profile flows outside this service's scope.
package donor

import (
	"time"

	"github.com/google/uuid"

	"bloodlink/internal/blood"
	"bloodlink/internal/eligibility"
)

// Donor is a registered donor account. BloodGroup is fixed at registration.
type Donor struct {
	ID               uuid.UUID
	FullName         string
	Email            string
	Mobile           string
	Gender           eligibility.Gender
	BloodGroup       blood.Group
	Weight           float64
	LastDonationDate *time.Time
	HasDisease       bool
	HadSurgery       bool
	IsAvailable      bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
