package descriptor

import (
	"fmt"

	"github.com/turtacn/rxntd/pkg/errors"
)

// Delta returns the transform table product - (a + b), row by row. The three
// tables must belong to the same family and be aligned by position.
func Delta(a, b, product *Table) (*Table, error) {
	for _, t := range []*Table{a, b, product} {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	if a.Family != b.Family || a.Family != product.Family {
		return nil, errors.New(errors.ErrCodeInternal, "delta across descriptor families").
			WithDetail(fmt.Sprintf("%s, %s, %s", a.Family, b.Family, product.Family))
	}
	if a.Width() != b.Width() || a.Width() != product.Width() {
		return nil, errors.New(errors.ErrCodeInternal, "delta across descriptor widths").
			WithDetail(fmt.Sprintf("%d, %d, %d", a.Width(), b.Width(), product.Width()))
	}
	if err := a.alignedWith(b); err != nil {
		return nil, err
	}
	if err := a.alignedWith(product); err != nil {
		return nil, err
	}

	out := NewTable(a.Family, a.Names, a.Len())
	for i := range a.Rows {
		out.Append(a.Positions[i], product.Rows[i].Sub(a.Rows[i].Add(b.Rows[i])))
	}
	return out, nil
}

// Concat joins tables feature-wise. All tables must be aligned by position;
// the result is named "transform".
func Concat(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return NewTable("transform", nil, 0), nil
	}
	var names []string
	for _, t := range tables {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if err := tables[0].alignedWith(t); err != nil {
			return nil, err
		}
		names = append(names, t.Names...)
	}

	out := NewTable("transform", names, tables[0].Len())
	for i, pos := range tables[0].Positions {
		row := make(Vector, 0, len(names))
		for _, t := range tables {
			row = append(row, t.Rows[i]...)
		}
		out.Append(pos, row)
	}
	return out, nil
}
