package chem

// Topology descriptor names, in output order.
const (
	DescRingCount                = "RingCount"
	DescNumAliphaticCarbocycles  = "NumAliphaticCarbocycles"
	DescNumAliphaticHeterocycles = "NumAliphaticHeterocycles"
	DescNumAliphaticRings        = "NumAliphaticRings"
	DescNumAromaticCarbocycles   = "NumAromaticCarbocycles"
	DescNumAromaticHeterocycles  = "NumAromaticHeterocycles"
	DescNumAromaticRings         = "NumAromaticRings"
	DescNumRotatableBonds        = "NumRotatableBonds"
	DescNumSaturatedCarbocycles  = "NumSaturatedCarbocycles"
	DescNumSaturatedHeterocycles = "NumSaturatedHeterocycles"
	DescNumSaturatedRings        = "NumSaturatedRings"
	DescNumSpiroAtoms            = "NumSpiroAtoms"
	DescNumBridgeheadAtoms       = "NumBridgeheadAtoms"
)

// TopologyDescriptorNames returns a fresh copy of the topology column names.
func TopologyDescriptorNames() []string {
	return []string{
		DescRingCount,
		DescNumAliphaticCarbocycles,
		DescNumAliphaticHeterocycles,
		DescNumAliphaticRings,
		DescNumAromaticCarbocycles,
		DescNumAromaticHeterocycles,
		DescNumAromaticRings,
		DescNumRotatableBonds,
		DescNumSaturatedCarbocycles,
		DescNumSaturatedHeterocycles,
		DescNumSaturatedRings,
		DescNumSpiroAtoms,
		DescNumBridgeheadAtoms,
	}
}

// Topology holds ring and rotor counts of a sanitized molecule.
type Topology struct {
	RingCount                int
	NumAliphaticCarbocycles  int
	NumAliphaticHeterocycles int
	NumAliphaticRings        int
	NumAromaticCarbocycles   int
	NumAromaticHeterocycles  int
	NumAromaticRings         int
	NumRotatableBonds        int
	NumSaturatedCarbocycles  int
	NumSaturatedHeterocycles int
	NumSaturatedRings        int
	NumSpiroAtoms            int
	NumBridgeheadAtoms       int
}

// Values returns the counts ordered as TopologyDescriptorNames.
func (t Topology) Values() []int {
	return []int{
		t.RingCount,
		t.NumAliphaticCarbocycles,
		t.NumAliphaticHeterocycles,
		t.NumAliphaticRings,
		t.NumAromaticCarbocycles,
		t.NumAromaticHeterocycles,
		t.NumAromaticRings,
		t.NumRotatableBonds,
		t.NumSaturatedCarbocycles,
		t.NumSaturatedHeterocycles,
		t.NumSaturatedRings,
		t.NumSpiroAtoms,
		t.NumBridgeheadAtoms,
	}
}

// ComputeTopology classifies every SSSR ring of m and counts rotatable bonds,
// spiro atoms and bridgehead atoms.
//
// A ring is aromatic when all its bonds are aromatic, aliphatic otherwise,
// saturated when all its bonds are non-aromatic single bonds, and a
// heterocycle when any ring atom is not carbon.
func ComputeTopology(m *Molecule) Topology {
	var t Topology
	t.RingCount = len(m.Rings)

	for i, ring := range m.Rings {
		hetero := false
		for _, a := range ring {
			if m.Atoms[a].Number != 6 {
				hetero = true
				break
			}
		}
		aromatic, saturated := true, true
		for _, bi := range m.RingBonds[i] {
			b := &m.Bonds[bi]
			if !b.Aromatic {
				aromatic = false
			}
			if b.Aromatic || b.Order != 1 {
				saturated = false
			}
		}
		switch {
		case aromatic:
			t.NumAromaticRings++
			if hetero {
				t.NumAromaticHeterocycles++
			} else {
				t.NumAromaticCarbocycles++
			}
		default:
			t.NumAliphaticRings++
			if hetero {
				t.NumAliphaticHeterocycles++
			} else {
				t.NumAliphaticCarbocycles++
			}
			if saturated {
				t.NumSaturatedRings++
				if hetero {
					t.NumSaturatedHeterocycles++
				} else {
					t.NumSaturatedCarbocycles++
				}
			}
		}
	}

	t.NumRotatableBonds = countRotatableBonds(m)
	t.NumSpiroAtoms, t.NumBridgeheadAtoms = countSpiroAndBridgeheads(m)
	return t
}

// countRotatableBonds counts acyclic single bonds between two non-terminal
// heavy atoms, neither of which carries a triple bond.
func countRotatableBonds(m *Molecule) int {
	hasTriple := make([]bool, len(m.Atoms))
	for i := range m.Bonds {
		if m.Bonds[i].Order == 3 && !m.Bonds[i].Aromatic {
			hasTriple[m.Bonds[i].Begin] = true
			hasTriple[m.Bonds[i].End] = true
		}
	}
	n := 0
	for i := range m.Bonds {
		b := &m.Bonds[i]
		if b.InRing || b.Aromatic || b.Order != 1 {
			continue
		}
		if m.Atoms[b.Begin].Number == 1 || m.Atoms[b.End].Number == 1 {
			continue
		}
		if m.HeavyDegree(b.Begin) < 2 || m.HeavyDegree(b.End) < 2 {
			continue
		}
		if hasTriple[b.Begin] || hasTriple[b.End] {
			continue
		}
		n++
	}
	return n
}

// countSpiroAndBridgeheads inspects every pair of SSSR rings. Rings sharing
// exactly one atom make it a spiro atom; rings sharing two or more bonds make
// the ends of the shared path bridgehead atoms.
func countSpiroAndBridgeheads(m *Molecule) (int, int) {
	spiro := map[int]bool{}
	bridgehead := map[int]bool{}
	for i := 0; i < len(m.Rings); i++ {
		for j := i + 1; j < len(m.Rings); j++ {
			atoms := sharedBonds(m.Rings[i], m.Rings[j])
			if len(atoms) == 1 {
				spiro[atoms[0]] = true
				continue
			}
			bonds := sharedBonds(m.RingBonds[i], m.RingBonds[j])
			if len(bonds) < 2 {
				continue
			}
			deg := map[int]int{}
			for _, bi := range bonds {
				deg[m.Bonds[bi].Begin]++
				deg[m.Bonds[bi].End]++
			}
			for a, d := range deg {
				if d == 1 {
					bridgehead[a] = true
				}
			}
		}
	}
	return len(spiro), len(bridgehead)
}
