package chem

// Atom is a single atom of a Molecule.
type Atom struct {
	Number   int
	Isotope  int
	Charge   int
	Aromatic bool
	// HCount is the number of attached hydrogens that are not explicit atoms.
	HCount int
	// Bracket reports whether the atom was written in brackets; bracket atoms
	// never receive implicit hydrogens.
	Bracket bool
	InRing  bool
	Bonds   []int
}

// Symbol returns the element symbol of the atom.
func (a *Atom) Symbol() string { return ElementSymbol(a.Number) }

// Bond connects two atoms. Aromatic bonds read from SMILES carry Order 0
// until kekulization assigns 1 or 2.
type Bond struct {
	Begin    int
	End      int
	Order    int
	Aromatic bool
	InRing   bool
}

// Other returns the atom at the opposite end of the bond.
func (b *Bond) Other(atom int) int {
	if b.Begin == atom {
		return b.End
	}
	return b.Begin
}

// Molecule is an undirected molecular graph.
type Molecule struct {
	Atoms []Atom
	Bonds []Bond
	// Rings holds the smallest set of smallest rings as atom cycles, with
	// RingBonds holding the matching bond indices. Populated by Sanitize.
	Rings     [][]int
	RingBonds [][]int
}

// NumAtoms returns the number of atoms, explicit hydrogens included.
func (m *Molecule) NumAtoms() int { return len(m.Atoms) }

// NumHeavyAtoms returns the number of non-hydrogen atoms.
func (m *Molecule) NumHeavyAtoms() int {
	n := 0
	for i := range m.Atoms {
		if m.Atoms[i].Number != 1 {
			n++
		}
	}
	return n
}

func (m *Molecule) addAtom(a Atom) int {
	m.Atoms = append(m.Atoms, a)
	return len(m.Atoms) - 1
}

func (m *Molecule) addBond(begin, end, order int, aromatic bool) int {
	idx := len(m.Bonds)
	m.Bonds = append(m.Bonds, Bond{Begin: begin, End: end, Order: order, Aromatic: aromatic})
	m.Atoms[begin].Bonds = append(m.Atoms[begin].Bonds, idx)
	m.Atoms[end].Bonds = append(m.Atoms[end].Bonds, idx)
	return idx
}

// BondBetween returns the index of the bond joining a and b, or -1.
func (m *Molecule) BondBetween(a, b int) int {
	for _, bi := range m.Atoms[a].Bonds {
		if m.Bonds[bi].Other(a) == b {
			return bi
		}
	}
	return -1
}

// Degree returns the number of explicit connections of atom a.
func (m *Molecule) Degree(a int) int { return len(m.Atoms[a].Bonds) }

// HeavyDegree returns the number of non-hydrogen neighbours of atom a.
func (m *Molecule) HeavyDegree(a int) int {
	n := 0
	for _, bi := range m.Atoms[a].Bonds {
		if m.Atoms[m.Bonds[bi].Other(a)].Number != 1 {
			n++
		}
	}
	return n
}

// TotalHydrogens returns implicit plus explicit-atom hydrogens on atom a.
func (m *Molecule) TotalHydrogens(a int) int {
	n := m.Atoms[a].HCount
	for _, bi := range m.Atoms[a].Bonds {
		if m.Atoms[m.Bonds[bi].Other(a)].Number == 1 {
			n++
		}
	}
	return n
}

// bondOrderSum sums bond orders at atom a, counting unassigned aromatic
// bonds as 1.
func (m *Molecule) bondOrderSum(a int) int {
	sum := 0
	for _, bi := range m.Atoms[a].Bonds {
		o := m.Bonds[bi].Order
		if o == 0 {
			o = 1
		}
		sum += o
	}
	return sum
}

// Valence returns the total valence of atom a: bond orders plus implicit
// hydrogens.
func (m *Molecule) Valence(a int) int {
	return m.bondOrderSum(a) + m.Atoms[a].HCount
}

// RingMembership returns how many SSSR rings contain atom a.
func (m *Molecule) RingMembership(a int) int {
	n := 0
	for _, ring := range m.Rings {
		for _, x := range ring {
			if x == a {
				n++
				break
			}
		}
	}
	return n
}

// SmallestRingSize returns the size of the smallest SSSR ring containing
// atom a, or 0.
func (m *Molecule) SmallestRingSize(a int) int {
	best := 0
	for _, ring := range m.Rings {
		for _, x := range ring {
			if x == a && (best == 0 || len(ring) < best) {
				best = len(ring)
			}
		}
	}
	return best
}

// RingBondCount returns the number of ring bonds at atom a.
func (m *Molecule) RingBondCount(a int) int {
	n := 0
	for _, bi := range m.Atoms[a].Bonds {
		if m.Bonds[bi].InRing {
			n++
		}
	}
	return n
}

// components returns connected components as atom index lists in ascending
// atom order.
func (m *Molecule) components() [][]int {
	seen := make([]bool, len(m.Atoms))
	var out [][]int
	for start := range m.Atoms {
		if seen[start] {
			continue
		}
		var comp []int
		stack := []int{start}
		seen[start] = true
		for len(stack) > 0 {
			a := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			comp = append(comp, a)
			for _, bi := range m.Atoms[a].Bonds {
				o := m.Bonds[bi].Other(a)
				if !seen[o] {
					seen[o] = true
					stack = append(stack, o)
				}
			}
		}
		out = append(out, comp)
	}
	return out
}
