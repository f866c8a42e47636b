// Package blood defines the blood-group and urgency value types and the
// mapping between display groups ("A+") and inventory counter keys ("A_pos").
package blood

import (
	"strings"

	dErrors "bloodlink/pkg/domain-errors"
)

// Group is one of the 8 ABO/Rh combinations.
// Invariant: the value must be one of the supported groups.
//
// Construct via ParseGroup at trust boundaries to enforce the allowlist;
// direct casting bypasses validation.
type Group string

const (
	GroupAPos  Group = "A+"
	GroupANeg  Group = "A-"
	GroupBPos  Group = "B+"
	GroupBNeg  Group = "B-"
	GroupABPos Group = "AB+"
	GroupABNeg Group = "AB-"
	GroupOPos  Group = "O+"
	GroupONeg  Group = "O-"
)

// Groups lists all supported groups in inventory display order.
var Groups = []Group{
	GroupAPos, GroupANeg, GroupBPos, GroupBNeg,
	GroupABPos, GroupABNeg, GroupOPos, GroupONeg,
}

var validGroups = map[Group]bool{
	GroupAPos: true, GroupANeg: true,
	GroupBPos: true, GroupBNeg: true,
	GroupABPos: true, GroupABNeg: true,
	GroupOPos: true, GroupONeg: true,
}

// ParseGroup constructs a Group from external input. Input is uppercased
// first so "o-" and "O-" are equivalent, matching registration behavior.
func ParseGroup(s string) (Group, error) {
	g := Group(strings.ToUpper(strings.TrimSpace(s)))
	if !validGroups[g] {
		return "", dErrors.New(dErrors.CodeValidation, "unknown blood group: "+s)
	}
	return g, nil
}

// InventoryKey returns the counter key for the group: "A+" -> "A_pos",
// "O-" -> "O_neg". Keys are stable identifiers in storage and on the wire.
func (g Group) InventoryKey() string {
	s := string(g)
	s = strings.ReplaceAll(s, "+", "_pos")
	s = strings.ReplaceAll(s, "-", "_neg")
	return s
}

// ParseInventoryKey validates an inventory counter key and returns its group.
// Unknown keys are rejected so a typo can never create a ninth counter.
func ParseInventoryKey(key string) (Group, error) {
	for _, g := range Groups {
		if g.InventoryKey() == key {
			return g, nil
		}
	}
	return "", dErrors.New(dErrors.CodeValidation, "invalid blood group key: "+key)
}

// InventoryKeys lists the 8 counter keys in display order.
func InventoryKeys() []string {
	keys := make([]string, 0, len(Groups))
	for _, g := range Groups {
		keys = append(keys, g.InventoryKey())
	}
	return keys
}
