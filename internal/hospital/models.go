// Package hospital holds the hospital entity and its blood-unit inventory
// ledger: eight per-group counters that never go below zero.
package hospital

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"bloodlink/internal/blood"
	dErrors "bloodlink/pkg/domain-errors"
)

// Hospital is a registered hospital account with an embedded inventory.
type Hospital struct {
	ID           uuid.UUID
	HospitalName string
	Email        string
	Phone        string
	Address      string
	City         string
	Inventory    Inventory
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Inventory maps inventory keys ("A_pos" .. "O_neg") to unit counts.
// Invariant: every count >= 0 at all times.
type Inventory map[string]int

// NewInventory returns an inventory with all eight counters at zero.
func NewInventory() Inventory {
	inv := make(Inventory, len(blood.Groups))
	for _, key := range blood.InventoryKeys() {
		inv[key] = 0
	}
	return inv
}

// Clone returns a copy so callers can't mutate stored state.
func (inv Inventory) Clone() Inventory {
	cp := make(Inventory, len(inv))
	for k, v := range inv {
		cp[k] = v
	}
	return cp
}

// Action is an inventory adjustment kind.
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
	ActionSet    Action = "set"
)

// ParseAction constructs an Action from external input.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case ActionAdd, ActionRemove, ActionSet:
		return a, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "unknown inventory action: "+s)
}

// AdjustResult reports the outcome of a ledger adjustment. Clamped is true
// when a remove would have driven the counter negative and was floored at 0;
// the stored counter is Units either way.
type AdjustResult struct {
	Key     string
	Units   int
	Clamped bool
}

// Apply computes the new counter value for an action. remove clamps at zero
// rather than erroring; set overwrites unconditionally.
func Apply(current, quantity int, action Action) (newUnits int, clamped bool) {
	switch action {
	case ActionAdd:
		return current + quantity, false
	case ActionRemove:
		n := current - quantity
		if n < 0 {
			return 0, true
		}
		return n, false
	default: // ActionSet
		return quantity, false
	}
}
