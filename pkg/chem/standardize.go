package chem

import (
	"strings"

	"github.com/turtacn/rxntd/pkg/errors"
)

// maxNormalizePasses bounds repeated application of the transform set.
const maxNormalizePasses = 10

// Transform is a named functional-group rewrite. Apply reports whether it
// changed the molecule.
type Transform struct {
	Name  string
	Apply func(m *Molecule) bool
}

// DefaultTransforms is the normalization rule set applied by Normalize.
var DefaultTransforms = []Transform{
	{Name: "Sulfone to S(=O)(=O)", Apply: sulfoneToDoubleBonds},
	{Name: "Sulfoxide to -S+(O-)-", Apply: sulfoxideToChargeSeparated},
	{Name: "Phosphine oxide to P=O", Apply: phosphineOxideToDoubleBond},
	{Name: "Recombine 1,3-separated charges", Apply: recombineSeparatedCharges},
}

// Normalize applies the transforms until none changes the molecule, then
// re-perceives aromaticity. It reports whether anything changed.
func Normalize(m *Molecule, transforms []Transform) bool {
	changed := false
	for pass := 0; pass < maxNormalizePasses; pass++ {
		applied := false
		for _, t := range transforms {
			if t.Apply(m) {
				applied = true
			}
		}
		if !applied {
			break
		}
		changed = true
	}
	if changed {
		perceiveAromaticity(m)
	}
	return changed
}

// terminalNeighbors returns bonds at atom a that lead to degree-1 atoms of the
// given element, charge and bond order.
func terminalNeighbors(m *Molecule, a, number, charge, order int) []int {
	var out []int
	for _, bi := range m.Atoms[a].Bonds {
		b := &m.Bonds[bi]
		o := b.Other(a)
		if b.Order == order && !b.Aromatic && m.Atoms[o].Number == number &&
			m.Atoms[o].Charge == charge && m.Degree(o) == 1 {
			out = append(out, bi)
		}
	}
	return out
}

// [S+2]([O-])([O-]) -> S(=O)(=O)
func sulfoneToDoubleBonds(m *Molecule) bool {
	changed := false
	for i := range m.Atoms {
		a := &m.Atoms[i]
		if a.Number != 16 || a.Charge != 2 || m.Degree(i) != 4 {
			continue
		}
		oxides := terminalNeighbors(m, i, 8, -1, 1)
		if len(oxides) < 2 {
			continue
		}
		for _, bi := range oxides[:2] {
			m.Bonds[bi].Order = 2
			m.Atoms[m.Bonds[bi].Other(i)].Charge = 0
		}
		a.Charge = 0
		changed = true
	}
	return changed
}

// [!O]S(=O)[!O] with three connections -> [S+]([O-])
func sulfoxideToChargeSeparated(m *Molecule) bool {
	changed := false
	for i := range m.Atoms {
		a := &m.Atoms[i]
		if a.Number != 16 || a.Charge != 0 || a.Aromatic || m.Degree(i) != 3 || a.HCount != 0 {
			continue
		}
		oxo := terminalNeighbors(m, i, 8, 0, 2)
		if len(oxo) != 1 {
			continue
		}
		others := 0
		for _, bi := range a.Bonds {
			if bi == oxo[0] {
				continue
			}
			if m.Atoms[m.Bonds[bi].Other(i)].Number == 8 || m.Bonds[bi].Order != 1 {
				others = -1
				break
			}
			others++
		}
		if others != 2 {
			continue
		}
		m.Bonds[oxo[0]].Order = 1
		m.Atoms[m.Bonds[oxo[0]].Other(i)].Charge = -1
		a.Charge = 1
		changed = true
	}
	return changed
}

// [P+]([O-]) with four connections -> P=O
func phosphineOxideToDoubleBond(m *Molecule) bool {
	changed := false
	for i := range m.Atoms {
		a := &m.Atoms[i]
		if a.Number != 15 || a.Charge != 1 || m.Degree(i)+a.HCount != 4 {
			continue
		}
		oxides := terminalNeighbors(m, i, 8, -1, 1)
		if len(oxides) == 0 {
			continue
		}
		m.Bonds[oxides[0]].Order = 2
		m.Atoms[m.Bonds[oxides[0]].Other(i)].Charge = 0
		a.Charge = 0
		changed = true
	}
	return changed
}

// [N,P;-1]-[C,N]=[N,P;+1]: shift the double bond so that both charges
// vanish, e.g. [N-]-C=[N+] -> N=C-N.
func recombineSeparatedCharges(m *Molecule) bool {
	changed := false
	for i := range m.Atoms {
		neg := &m.Atoms[i]
		if neg.Charge != -1 || neg.Aromatic || (neg.Number != 7 && neg.Number != 15) {
			continue
		}
		for _, b1 := range neg.Bonds {
			if m.Bonds[b1].Order != 1 || m.Bonds[b1].Aromatic {
				continue
			}
			mid := m.Bonds[b1].Other(i)
			if m.Atoms[mid].Charge != 0 || m.Atoms[mid].Aromatic {
				continue
			}
			done := false
			for _, b2 := range m.Atoms[mid].Bonds {
				if b2 == b1 || m.Bonds[b2].Order != 2 || m.Bonds[b2].Aromatic {
					continue
				}
				pos := m.Bonds[b2].Other(mid)
				pa := &m.Atoms[pos]
				if pa.Charge != 1 || pa.Aromatic || (pa.Number != 7 && pa.Number != 15) {
					continue
				}
				if neg.HCount > 0 {
					continue
				}
				m.Bonds[b1].Order = 2
				m.Bonds[b2].Order = 1
				neg.Charge = 0
				pa.Charge = 0
				done = true
				break
			}
			if done {
				changed = true
				break
			}
		}
	}
	return changed
}

// Standardize parses, sanitizes, normalizes and canonicalizes a SMILES
// string. It is the single entry point used by the structure normalizer.
func Standardize(smiles string) (string, error) {
	return DefaultStandardizer().Standardize(smiles)
}

// Standardizer turns raw SMILES into canonical SMILES.
type Standardizer struct {
	transforms []Transform
}

// NewStandardizer returns a Standardizer using the given transforms; nil
// selects DefaultTransforms.
func NewStandardizer(transforms []Transform) *Standardizer {
	if transforms == nil {
		transforms = DefaultTransforms
	}
	return &Standardizer{transforms: transforms}
}

var defaultStandardizer = NewStandardizer(nil)

// DefaultStandardizer returns the shared Standardizer with DefaultTransforms.
func DefaultStandardizer() *Standardizer { return defaultStandardizer }

// Standardize implements the parse, sanitize, normalize, write sequence.
// An empty or blank input is reported as an invalid SMILES error.
func (s *Standardizer) Standardize(smiles string) (string, error) {
	if strings.TrimSpace(smiles) == "" {
		return "", errors.New(errors.ErrCodeMoleculeInvalidSMILES, "empty structure")
	}
	m, err := ParseSMILES(smiles)
	if err != nil {
		return "", err
	}
	if err := Sanitize(m); err != nil {
		return "", err
	}
	Normalize(m, s.transforms)
	return CanonicalSMILES(m), nil
}

// MolFromSMILES parses and sanitizes a SMILES string. Analysis code uses it
// on canonical strings produced by Standardize.
func MolFromSMILES(smiles string) (*Molecule, error) {
	m, err := ParseSMILES(smiles)
	if err != nil {
		return nil, err
	}
	if err := Sanitize(m); err != nil {
		return nil, err
	}
	return m, nil
}
