// Package reaction models two-component reactions (A + B -> Product) as
// position-tagged structure records and assembles the final feature rows.
package reaction

import (
	"github.com/turtacn/rxntd/internal/domain/descriptor"
)

// Sentinel is the canonical form of a structure that failed normalization.
const Sentinel = ""

// List names one of the three parallel structure lists of a reaction table.
type List string

const (
	ListCompound1 List = "compound1"
	ListCompound2 List = "compound2"
	ListProduct   List = "product"
)

// Lists returns the three structure lists in reaction order.
func Lists() []List {
	return []List{ListCompound1, ListCompound2, ListProduct}
}

// ─────────────────────────────────────────────────────────────────────────────
// Records
// ─────────────────────────────────────────────────────────────────────────────

// RawReaction is one input row. Position is its 0-based index in the input.
type RawReaction struct {
	Position int    `json:"position"`
	ID       string `json:"id"`
	A        string `json:"compound1"`
	B        string `json:"compound2"`
	Product  string `json:"product"`
}

// Structure returns the raw structure string of list l.
func (r RawReaction) Structure(l List) string {
	switch l {
	case ListCompound1:
		return r.A
	case ListCompound2:
		return r.B
	case ListProduct:
		return r.Product
	default:
		return ""
	}
}

// StructureRecord is a structure after normalization. Canonical is Sentinel
// when normalization failed.
type StructureRecord struct {
	Position  int    `json:"position"`
	Raw       string `json:"raw"`
	Canonical string `json:"canonical"`
}

// Valid reports whether normalization succeeded.
func (s StructureRecord) Valid() bool { return s.Canonical != Sentinel }

// Row is one emitted reaction row: canonical structures plus the transform
// descriptor features in schema order.
type Row struct {
	ID       string            `json:"id"`
	Position int               `json:"position"`
	A        string            `json:"compound1"`
	B        string            `json:"compound2"`
	Product  string            `json:"product"`
	Features descriptor.Vector `json:"features"`
}

// CountInvalid returns the number of sentinel records.
func CountInvalid(records []StructureRecord) int {
	n := 0
	for _, r := range records {
		if !r.Valid() {
			n++
		}
	}
	return n
}
