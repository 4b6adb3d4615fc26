package reaction

import (
	"fmt"

	"github.com/turtacn/rxntd/internal/domain/descriptor"
	"github.com/turtacn/rxntd/pkg/errors"
)

// ValidPositions returns, in ascending order, the positions at which all three
// records hold a canonical structure. The three lists must have equal length
// and carry the same position at every index.
func ValidPositions(a, b, product []StructureRecord) ([]int, error) {
	if err := checkAligned(a, b, product); err != nil {
		return nil, err
	}
	valid := make([]int, 0, len(a))
	for i := range a {
		if a[i].Valid() && b[i].Valid() && product[i].Valid() {
			valid = append(valid, a[i].Position)
		}
	}
	return valid, nil
}

// Assemble joins the full feature table with the valid-position set. It emits
// one Row per valid position in input order and reports the dropped
// positions. features must hold exactly one row per record, aligned by
// position.
func Assemble(ids []string, a, b, product []StructureRecord, features *descriptor.Table) ([]Row, []int, error) {
	valid, err := ValidPositions(a, b, product)
	if err != nil {
		return nil, nil, err
	}
	if len(ids) != len(a) {
		return nil, nil, errors.RowCountMismatch("id column", len(a), len(ids))
	}
	if err := features.Validate(); err != nil {
		return nil, nil, err
	}
	if features.Len() != len(a) {
		return nil, nil, errors.RowCountMismatch("feature table", len(a), features.Len())
	}
	byPosition := make(map[int]int, features.Len())
	for i, pos := range features.Positions {
		if a[i].Position != pos {
			return nil, nil, errors.New(errors.ErrCodeRowCountMismatch, "feature table misaligned").
				WithDetail(fmt.Sprintf("row %d: record position %d, feature position %d", i, a[i].Position, pos))
		}
		byPosition[pos] = i
	}

	keep := make(map[int]struct{}, len(valid))
	for _, pos := range valid {
		keep[pos] = struct{}{}
	}
	rows := make([]Row, 0, len(valid))
	dropped := make([]int, 0, len(a)-len(valid))
	for i := range a {
		pos := a[i].Position
		if _, ok := keep[pos]; !ok {
			dropped = append(dropped, pos)
			continue
		}
		rows = append(rows, Row{
			ID:       ids[i],
			Position: pos,
			A:        a[i].Canonical,
			B:        b[i].Canonical,
			Product:  product[i].Canonical,
			Features: features.Row(byPosition[pos]),
		})
	}
	return rows, dropped, nil
}

func checkAligned(a, b, product []StructureRecord) error {
	if len(b) != len(a) {
		return errors.RowCountMismatch(string(ListCompound2), len(a), len(b))
	}
	if len(product) != len(a) {
		return errors.RowCountMismatch(string(ListProduct), len(a), len(product))
	}
	for i := range a {
		if b[i].Position != a[i].Position || product[i].Position != a[i].Position {
			return errors.New(errors.ErrCodeRowCountMismatch, "structure lists misaligned").
				WithDetail(fmt.Sprintf("index %d: positions %d, %d, %d",
					i, a[i].Position, b[i].Position, product[i].Position))
		}
	}
	return nil
}
