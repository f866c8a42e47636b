// Package domain holds identity value types shared across module boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "bloodlink/pkg/domain-errors"
)

// Role identifies which kind of account is acting. The lifecycle transition
// table authorizes transitions per role, so roles are part of the domain, not
// a transport detail.
type Role string

const (
	RoleUser     Role = "user"
	RoleDonor    Role = "donor"
	RoleHospital Role = "hospital"
)

var validRoles = map[Role]bool{
	RoleUser:     true,
	RoleDonor:    true,
	RoleHospital: true,
}

// ParseRole constructs a Role from external input (token claims). Direct
// casting bypasses validation; use this at trust boundaries.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !validRoles[r] {
		return "", dErrors.New(dErrors.CodeUnauthorized, "unknown actor role")
	}
	return r, nil
}

// Actor is the identity every core operation receives explicitly. It is set
// by the auth middleware and never read from ambient state inside services.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// IsZero reports whether the actor is unset.
func (a Actor) IsZero() bool { return a.ID == uuid.Nil }
