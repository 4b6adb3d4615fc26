// Package descriptor defines descriptor vectors, per-family tables, the
// feature schema and the three descriptor families: elemental composition,
// ring topology and fragment pattern counts.
package descriptor

import (
	"fmt"

	"github.com/turtacn/rxntd/pkg/errors"
)

// Vector is an ordered, fixed-length list of descriptor values aligned with a
// family's feature names.
type Vector []int

// Zero returns an all-zero vector of length n.
func Zero(n int) Vector { return make(Vector, n) }

// Add returns v + o. Both vectors must have the same length.
func (v Vector) Add(o Vector) Vector {
	out := make(Vector, len(v))
	for i := range v {
		out[i] = v[i] + o[i]
	}
	return out
}

// Sub returns v - o. Both vectors must have the same length.
func (v Vector) Sub(o Vector) Vector {
	out := make(Vector, len(v))
	for i := range v {
		out[i] = v[i] - o[i]
	}
	return out
}

// Sum returns the sum of all values.
func (v Vector) Sum() int {
	s := 0
	for _, x := range v {
		s += x
	}
	return s
}

// IsZero reports whether every value is zero.
func (v Vector) IsZero() bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Table is one descriptor family evaluated over a list of structures. Every
// row carries the input position it was computed for.
type Table struct {
	Family    string
	Names     []string
	Positions []int
	Rows      []Vector
}

// NewTable returns an empty table for a family with capacity for n rows.
func NewTable(family string, names []string, n int) *Table {
	return &Table{
		Family:    family,
		Names:     names,
		Positions: make([]int, 0, n),
		Rows:      make([]Vector, 0, n),
	}
}

// Append adds the vector computed for position.
func (t *Table) Append(position int, v Vector) {
	t.Positions = append(t.Positions, position)
	t.Rows = append(t.Rows, v)
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Width returns the number of features per row.
func (t *Table) Width() int { return len(t.Names) }

// Row returns the vector at row index i.
func (t *Table) Row(i int) Vector { return t.Rows[i] }

// Validate checks that positions and rows line up and every row has the
// family width.
func (t *Table) Validate() error {
	if len(t.Positions) != len(t.Rows) {
		return errors.RowCountMismatch(t.Family+" positions", len(t.Rows), len(t.Positions))
	}
	for i, r := range t.Rows {
		if len(r) != len(t.Names) {
			return errors.New(errors.ErrCodeRowCountMismatch, "descriptor width mismatch").
				WithDetail(fmt.Sprintf("%s row %d: want %d features, got %d", t.Family, t.Positions[i], len(t.Names), len(r)))
		}
	}
	return nil
}

// alignedWith reports the first position at which t and o disagree.
func (t *Table) alignedWith(o *Table) error {
	if t.Len() != o.Len() {
		return errors.RowCountMismatch(t.Family+" vs "+o.Family, t.Len(), o.Len())
	}
	for i := range t.Positions {
		if t.Positions[i] != o.Positions[i] {
			return errors.New(errors.ErrCodeRowCountMismatch, "position misalignment").
				WithDetail(fmt.Sprintf("row %d: %d != %d", i, t.Positions[i], o.Positions[i]))
		}
	}
	return nil
}
