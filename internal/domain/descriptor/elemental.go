package descriptor

import (
	"github.com/turtacn/rxntd/pkg/chem"
)

// elementAlphabet is the ordered element alphabet of the elemental family.
var elementAlphabet = [...]string{
	"C", "N", "O", "S", "P", "F", "I", "Br", "Cl", "B",
	"Fe", "Te", "Se", "Sn", "Si", "Ti", "Al", "Cu", "Zn", "Pd", "Pt",
}

var elementIndex = func() map[string]int {
	m := make(map[string]int, len(elementAlphabet))
	for i, e := range elementAlphabet {
		m[e] = i
	}
	return m
}()

// ElementAlphabet returns a copy of the element alphabet.
func ElementAlphabet() []string {
	return append([]string(nil), elementAlphabet[:]...)
}

// CountElements tokenizes a structure string and counts heavy atoms per
// alphabet element. It never fails; unknown tokens are ignored.
func CountElements(structure string) Vector {
	v := Zero(len(elementAlphabet))
	for _, tok := range chem.Tokenize(structure) {
		sym, ok := chem.ElementFromAtomToken(tok)
		if !ok {
			continue
		}
		if i, ok := elementIndex[sym]; ok {
			v[i]++
		}
	}
	return v
}

// ElementalFamily counts atoms per element by tokenization alone.
type ElementalFamily struct{}

// NewElementalFamily returns the elemental composition family.
func NewElementalFamily() *ElementalFamily { return &ElementalFamily{} }

func (*ElementalFamily) Name() string { return FamilyElemental }

func (*ElementalFamily) FeatureNames() []string { return ElementAlphabet() }

// Compute never returns an error.
func (*ElementalFamily) Compute(structure string) (Vector, error) {
	return CountElements(structure), nil
}
