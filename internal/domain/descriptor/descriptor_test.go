package descriptor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/rxntd/pkg/errors"
)

func elementValue(v Vector, symbol string) int {
	return v[elementIndex[symbol]]
}

func TestElementAlphabet(t *testing.T) {
	a := ElementAlphabet()
	require.Len(t, a, 21)
	assert.Equal(t, "C", a[0])
	assert.Equal(t, "Pt", a[20])

	a[0] = "X"
	assert.Equal(t, "C", ElementAlphabet()[0])
}

func TestCountElements(t *testing.T) {
	tests := []struct {
		smiles string
		want   map[string]int
		heavy  int
	}{
		{"c1ccccc1Cl", map[string]int{"C": 6, "Cl": 1}, 7},
		{"[nH]1cccc1", map[string]int{"C": 4, "N": 1}, 5},
		{"CC(=O)O", map[string]int{"C": 2, "O": 2}, 4},
		{"BrCCBr", map[string]int{"C": 2, "Br": 2}, 4},
		{"[13CH3][Pd]Cl", map[string]int{"C": 1, "Pd": 1, "Cl": 1}, 3},
		{"B(O)(O)c1ccccc1", map[string]int{"B": 1, "O": 2, "C": 6}, 9},
		{"C[Si](C)(C)Cl", map[string]int{"C": 3, "Si": 1, "Cl": 1}, 5},
		{"[Na+].[Cl-]", map[string]int{"Cl": 1}, 1},
		{"", map[string]int{}, 0},
		{"not a molecule", map[string]int{"N": 1, "O": 2, "C": 1}, 4},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.smiles, func(t *testing.T) {
			v := CountElements(tt.smiles)
			require.Len(t, v, 21)
			for sym, n := range tt.want {
				assert.Equal(t, n, elementValue(v, sym), sym)
			}
			for _, x := range v {
				assert.GreaterOrEqual(t, x, 0)
			}
			assert.Equal(t, tt.heavy, v.Sum())
		})
	}
}

func TestElementalFamily_NeverFails(t *testing.T) {
	f := NewElementalFamily()
	assert.Equal(t, FamilyElemental, f.Name())
	for _, s := range []string{"", "cc", "((((", "[", "C1CC"} {
		v, err := f.Compute(s)
		assert.NoError(t, err, s)
		assert.Len(t, v, len(f.FeatureNames()))
	}
}

func TestTopologicalFamily(t *testing.T) {
	f := NewTopologicalFamily()
	require.Len(t, f.FeatureNames(), 13)

	v, err := f.Compute("")
	require.NoError(t, err)
	assert.True(t, v.IsZero())
	assert.Len(t, v, 13)

	v, err = f.Compute("cc")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDescriptorFailed))
	assert.True(t, v.IsZero())
	assert.Len(t, v, 13)

	v, err = f.Compute("c1ccccc1")
	require.NoError(t, err)
	assert.Equal(t, 1, v[0])
}

func TestDefaultPatternTable(t *testing.T) {
	table, err := DefaultPatternTable()
	require.NoError(t, err)
	assert.Equal(t, 45, table.Len())
	names := table.Names()
	assert.Equal(t, "carboxylic_acid", names[0])
	assert.NotContains(t, names, "description")

	again, err := DefaultPatternTable()
	require.NoError(t, err)
	assert.Same(t, table, again)
}

func TestLoadPatternTable_DuplicateKeepsFirstPosition(t *testing.T) {
	src := "SMARTS\tdescription\nC\tcarbon\nO\toxygen\n[#7]\tcarbon\n"
	table, err := LoadPatternTable(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, []string{"carbon", "oxygen"}, table.Names())
	assert.Equal(t, "[#7]", table.Patterns()[0].SMARTS)
}

func TestLoadPatternTable_Comments(t *testing.T) {
	src := "# fragment table\nC\tcarbon\n\nO\toxygen\n"
	table, err := LoadPatternTable(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, []string{"carbon", "oxygen"}, table.Names())
}

func TestLoadPatternTable_Invalid(t *testing.T) {
	tests := map[string]string{
		"single column": "C\n",
		"bad smarts":    "[Q]\tbad\n",
		"header only":   "SMARTS\tdescription\n",
		"empty name":    "C\t \n",
	}
	for name, src := range tests {
		src := src
		t.Run(name, func(t *testing.T) {
			_, err := LoadPatternTable(strings.NewReader(src))
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodePatternTableInvalid))
		})
	}
}

func TestLoadPatternTableFile_Missing(t *testing.T) {
	_, err := LoadPatternTableFile("/nonexistent/rxnsmarts.tsv")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodePatternTableInvalid))
}

func TestFragmentFamily(t *testing.T) {
	table, err := LoadPatternTable(strings.NewReader(
		"SMARTS\tdescription\n[CX3](=O)[OX2H1]\tacid\n[OX2H]\thydroxyl\nc1ccccc1\tbenzene\n"))
	require.NoError(t, err)
	f := NewFragmentFamily(table)
	assert.Equal(t, []string{"acid", "hydroxyl", "benzene"}, f.FeatureNames())

	v, err := f.Compute("OC(=O)c1ccccc1")
	require.NoError(t, err)
	assert.Equal(t, Vector{1, 1, 1}, v)

	v, err = f.Compute("OCCO")
	require.NoError(t, err)
	assert.Equal(t, Vector{0, 2, 0}, v)

	v, err = f.Compute("")
	require.NoError(t, err)
	assert.Equal(t, Vector{0, 0, 0}, v)

	v, err = f.Compute("cc")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDescriptorFailed))
	assert.Equal(t, Vector{0, 0, 0}, v)
}

func tableOf(family string, names []string, rows ...Vector) *Table {
	t := NewTable(family, names, len(rows))
	for i, r := range rows {
		t.Append(i, r)
	}
	return t
}

func TestDelta_LiteralElementalExample(t *testing.T) {
	names := ElementAlphabet()
	a := tableOf(FamilyElemental, names, CountElements("CCC"))
	b := tableOf(FamilyElemental, names, CountElements("CCCCO"))
	p := tableOf(FamilyElemental, names, CountElements("CCCCCO"))

	d, err := Delta(a, b, p)
	require.NoError(t, err)
	require.Equal(t, 1, d.Len())
	assert.Equal(t, -2, elementValue(d.Row(0), "C"))
	assert.Equal(t, 0, elementValue(d.Row(0), "O"))
	assert.Equal(t, []int{0}, d.Positions)
}

func TestDelta_Vectors(t *testing.T) {
	names := []string{"x", "y"}
	a := tableOf("f", names, Vector{3, 0}, Vector{1, 1})
	b := tableOf("f", names, Vector{4, 1}, Vector{0, 0})
	p := tableOf("f", names, Vector{5, 1}, Vector{2, 2})

	d, err := Delta(a, b, p)
	require.NoError(t, err)
	assert.Equal(t, []Vector{{-2, 0}, {1, 1}}, d.Rows)
}

func TestDelta_RowCountMismatch(t *testing.T) {
	names := []string{"x"}
	a := tableOf("f", names, Vector{1}, Vector{2})
	b := tableOf("f", names, Vector{1})
	p := tableOf("f", names, Vector{1}, Vector{2})

	_, err := Delta(a, b, p)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeRowCountMismatch))
}

func TestDelta_PositionMisalignment(t *testing.T) {
	names := []string{"x"}
	a := tableOf("f", names, Vector{1}, Vector{2})
	b := tableOf("f", names, Vector{1}, Vector{2})
	p := NewTable("f", names, 2)
	p.Append(1, Vector{1})
	p.Append(0, Vector{2})

	_, err := Delta(a, b, p)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeRowCountMismatch))
}

func TestDelta_WidthMismatch(t *testing.T) {
	a := tableOf("f", []string{"x"}, Vector{1, 2})
	b := tableOf("f", []string{"x"}, Vector{1})
	p := tableOf("f", []string{"x"}, Vector{1})

	_, err := Delta(a, b, p)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeRowCountMismatch))
}

func TestConcat(t *testing.T) {
	e := tableOf("e", []string{"a", "b"}, Vector{1, 2}, Vector{3, 4})
	g := tableOf("g", []string{"c"}, Vector{5}, Vector{6})

	c, err := Concat(e, g)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, c.Names)
	assert.Equal(t, []Vector{{1, 2, 5}, {3, 4, 6}}, c.Rows)
	assert.Equal(t, []int{0, 1}, c.Positions)

	short := tableOf("s", []string{"d"}, Vector{7})
	_, err = Concat(e, short)
	assert.True(t, errors.IsCode(err, errors.ErrCodeRowCountMismatch))
}

func TestSchema(t *testing.T) {
	table, err := DefaultPatternTable()
	require.NoError(t, err)
	s, err := NewSchema(NewElementalFamily(), NewTopologicalFamily(), NewFragmentFamily(table))
	require.NoError(t, err)

	assert.Equal(t, 21+13+table.Len(), s.Width())
	assert.Equal(t, []string{FamilyElemental, FamilyTopological, FamilyFragment}, s.Families())

	header := s.Header()
	assert.Equal(t, IdentityColumns, header[:4])
	assert.Equal(t, "C", header[4])

	names, offset, ok := s.FamilyColumns(FamilyTopological)
	require.True(t, ok)
	assert.Equal(t, 21, offset)
	assert.Equal(t, "RingCount", names[0])

	_, _, ok = s.FamilyColumns("missing")
	assert.False(t, ok)

	again := MustSchema(NewElementalFamily(), NewTopologicalFamily(), NewFragmentFamily(table))
	assert.Equal(t, s.Columns(), again.Columns())
}

func TestPatternTable_Fingerprint(t *testing.T) {
	alcohol, err := LoadPatternTable(strings.NewReader("[OX2H]\talcohol\n"))
	require.NoError(t, err)
	ether, err := LoadPatternTable(strings.NewReader("[OD2]([#6])[#6]\tether\n"))
	require.NoError(t, err)
	again, err := LoadPatternTable(strings.NewReader("# same table\n[OX2H]\talcohol\n"))
	require.NoError(t, err)

	require.Equal(t, alcohol.Len(), ether.Len())
	assert.NotEqual(t, alcohol.Fingerprint(), ether.Fingerprint())
	assert.Equal(t, alcohol.Fingerprint(), again.Fingerprint())

	// Same SMARTS under another name is a different table.
	renamed, err := LoadPatternTable(strings.NewReader("[OX2H]\thydroxyl\n"))
	require.NoError(t, err)
	assert.NotEqual(t, alcohol.Fingerprint(), renamed.Fingerprint())

	assert.NotEqual(t, Fingerprint(NewFragmentFamily(alcohol)), Fingerprint(NewFragmentFamily(ether)))
	assert.Equal(t, Fingerprint(NewElementalFamily()), Fingerprint(NewElementalFamily()))
	assert.NotEqual(t, Fingerprint(NewElementalFamily()), Fingerprint(NewTopologicalFamily()))
}

func TestNewSchema_RejectsColumnCollision(t *testing.T) {
	nitrogen, err := LoadPatternTable(strings.NewReader("[NX3]\tN\n"))
	require.NoError(t, err)
	_, err = NewSchema(NewElementalFamily(), NewFragmentFamily(nitrogen))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSchemaConflict))
	assert.Contains(t, err.Error(), `"N"`)

	product, err := LoadPatternTable(strings.NewReader("[OX2H]\tProduct\n"))
	require.NoError(t, err)
	_, err = NewSchema(NewFragmentFamily(product))
	assert.True(t, errors.IsCode(err, errors.ErrCodeSchemaConflict))

	assert.Panics(t, func() { MustSchema(NewElementalFamily(), NewFragmentFamily(nitrogen)) })
}
