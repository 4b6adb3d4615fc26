package chem

import (
	"fmt"
	"sort"
	"strings"

	"github.com/turtacn/rxntd/pkg/errors"
)

// maxKekuleSteps bounds the matching search on pathological inputs.
const maxKekuleSteps = 200000

// Sanitize validates a parsed molecule and brings it to a consistent state:
// ring bonds are perceived, aromatic systems kekulized, implicit hydrogens
// assigned, valences checked, SSSR computed and aromaticity re-perceived.
func Sanitize(m *Molecule) error {
	perceiveRingBonds(m)

	for i := range m.Atoms {
		if m.Atoms[i].Aromatic && !m.Atoms[i].InRing {
			return errors.New(errors.ErrCodeMoleculeSanitizeFailed, "non-ring atom marked aromatic").
				WithDetail(fmt.Sprintf("atom %d %s", i, m.Atoms[i].Symbol()))
		}
	}
	for i := range m.Bonds {
		b := &m.Bonds[i]
		if b.Aromatic && !b.InRing {
			b.Aromatic = false
			b.Order = 1
		}
	}

	if err := kekulize(m); err != nil {
		return err
	}
	cleanupFunctionalGroups(m)
	if err := assignHydrogens(m); err != nil {
		return err
	}
	if err := checkValences(m); err != nil {
		return err
	}
	findSSSR(m)
	perceiveAromaticity(m)
	return nil
}

// kekulize assigns alternating single/double orders to unassigned aromatic
// bonds by finding a perfect matching over the aromatic atoms that still need
// a double bond.
func kekulize(m *Molecule) error {
	needs := make([]bool, len(m.Atoms))
	var pending []int
	for i := range m.Atoms {
		a := &m.Atoms[i]
		if !a.Aromatic {
			continue
		}
		hasOpenBond := false
		for _, bi := range a.Bonds {
			if m.Bonds[bi].Order == 0 {
				hasOpenBond = true
				break
			}
		}
		if !hasOpenBond {
			continue
		}
		allowed := allowedValences(a.Number, a.Charge)
		if allowed == nil {
			continue
		}
		v := m.bondOrderSum(i)
		if a.Bracket {
			v += a.HCount
		}
		target, ok := targetValence(allowed, v)
		if !ok {
			return valenceError(m, i, v)
		}
		if target > v {
			needs[i] = true
			pending = append(pending, i)
		}
	}

	matched := make([]int, len(m.Atoms))
	for i := range matched {
		matched[i] = -1
	}
	steps := 0

	options := func(a int) []int {
		var out []int
		for _, bi := range m.Atoms[a].Bonds {
			b := &m.Bonds[bi]
			if b.Order != 0 {
				continue
			}
			o := b.Other(a)
			if needs[o] && matched[o] < 0 {
				out = append(out, bi)
			}
		}
		return out
	}

	var solve func() bool
	solve = func() bool {
		steps++
		if steps > maxKekuleSteps {
			return false
		}
		best, bestOpts := -1, []int(nil)
		for _, a := range pending {
			if matched[a] >= 0 {
				continue
			}
			opts := options(a)
			if best < 0 || len(opts) < len(bestOpts) {
				best, bestOpts = a, opts
			}
			if len(opts) == 0 {
				return false
			}
		}
		if best < 0 {
			return true
		}
		for _, bi := range bestOpts {
			o := m.Bonds[bi].Other(best)
			matched[best], matched[o] = bi, bi
			if solve() {
				return true
			}
			matched[best], matched[o] = -1, -1
		}
		return false
	}

	if !solve() {
		var open []string
		for _, a := range pending {
			if matched[a] < 0 {
				open = append(open, fmt.Sprint(a))
			}
		}
		return errors.New(errors.ErrCodeMoleculeKekulizeFailed, "can't kekulize mol").
			WithDetail("unkekulized atoms: " + strings.Join(open, " "))
	}

	for bi := range m.Bonds {
		b := &m.Bonds[bi]
		if b.Order != 0 {
			continue
		}
		if matched[b.Begin] == bi {
			b.Order = 2
		} else {
			b.Order = 1
		}
	}
	return nil
}

// assignHydrogens gives unbracketed atoms the implicit hydrogen count that
// brings them to their lowest allowed valence.
func assignHydrogens(m *Molecule) error {
	for i := range m.Atoms {
		a := &m.Atoms[i]
		if a.Bracket {
			continue
		}
		allowed := allowedValences(a.Number, a.Charge)
		if allowed == nil {
			a.HCount = 0
			continue
		}
		v := m.bondOrderSum(i)
		target, ok := targetValence(allowed, v)
		if !ok {
			return valenceError(m, i, v)
		}
		a.HCount = target - v
	}
	return nil
}

func checkValences(m *Molecule) error {
	for i := range m.Atoms {
		a := &m.Atoms[i]
		allowed := allowedValences(a.Number, a.Charge)
		if allowed == nil {
			continue
		}
		v := m.Valence(i)
		if v > allowed[len(allowed)-1] {
			return valenceError(m, i, v)
		}
	}
	return nil
}

func valenceError(m *Molecule, atom, v int) error {
	return errors.New(errors.ErrCodeMoleculeValenceInvalid, "explicit valence greater than permitted").
		WithDetail(fmt.Sprintf("atom # %d %s, %d", atom, m.Atoms[atom].Symbol(), v))
}

// piContribution returns the number of pi electrons atom a donates to a ring
// and whether it can be part of an aromatic ring at all.
func piContribution(m *Molecule, a int) (int, bool) {
	at := &m.Atoms[a]
	if !canAromatic(at.Number) || !at.InRing {
		return 0, false
	}
	if m.Degree(a)+at.HCount > 3 {
		return 0, false
	}
	exocyclicAcceptor := false
	for _, bi := range at.Bonds {
		b := &m.Bonds[bi]
		switch {
		case b.Order == 2 && b.InRing:
			return 1, true
		case b.Order == 2:
			switch m.Atoms[b.Other(a)].Number {
			case 7, 8, 16:
				exocyclicAcceptor = true
			default:
				return 0, false
			}
		case b.Order >= 3:
			return 0, false
		}
	}
	if exocyclicAcceptor {
		return 0, true
	}
	free := outerElectrons(at.Number) - at.Charge - m.Valence(a)
	switch {
	case free >= 2:
		return 2, true
	case free == 1:
		return 1, true
	default:
		return 0, true
	}
}

// perceiveAromaticity applies the 4n+2 rule to each SSSR ring and to each
// pair of SSSR rings fused through a single bond.
func perceiveAromaticity(m *Molecule) {
	for i := range m.Atoms {
		m.Atoms[i].Aromatic = false
	}
	for i := range m.Bonds {
		m.Bonds[i].Aromatic = false
	}
	if len(m.Rings) == 0 {
		return
	}

	electrons := make([]int, len(m.Atoms))
	candidate := make([]bool, len(m.Atoms))
	for i := range m.Atoms {
		electrons[i], candidate[i] = piContribution(m, i)
	}

	huckel := func(atoms []int) bool {
		sum := 0
		for _, a := range atoms {
			if !candidate[a] {
				return false
			}
			sum += electrons[a]
		}
		return sum >= 2 && (sum-2)%4 == 0
	}
	mark := func(atoms, bonds []int) {
		for _, a := range atoms {
			m.Atoms[a].Aromatic = true
		}
		for _, b := range bonds {
			m.Bonds[b].Aromatic = true
		}
	}

	aromaticRing := make([]bool, len(m.Rings))
	for i, ring := range m.Rings {
		if huckel(ring) {
			aromaticRing[i] = true
			mark(ring, m.RingBonds[i])
		}
	}

	for i := 0; i < len(m.Rings); i++ {
		for j := i + 1; j < len(m.Rings); j++ {
			if aromaticRing[i] && aromaticRing[j] {
				continue
			}
			shared := sharedBonds(m.RingBonds[i], m.RingBonds[j])
			if len(shared) != 1 {
				continue
			}
			union := unionAtoms(m.Rings[i], m.Rings[j])
			if huckel(union) {
				bonds := append(append([]int{}, m.RingBonds[i]...), m.RingBonds[j]...)
				mark(union, bonds)
			}
		}
	}
}

func sharedBonds(a, b []int) []int {
	in := map[int]bool{}
	for _, x := range a {
		in[x] = true
	}
	var out []int
	for _, x := range b {
		if in[x] {
			out = append(out, x)
		}
	}
	return out
}

func unionAtoms(a, b []int) []int {
	in := map[int]bool{}
	var out []int
	for _, x := range append(append([]int{}, a...), b...) {
		if !in[x] {
			in[x] = true
			out = append(out, x)
		}
	}
	sort.Ints(out)
	return out
}

// cleanupFunctionalGroups rewrites hypervalent drawings that would otherwise
// fail the valence check into their charge-separated forms:
// neutral N(=O)=O to [N+](=O)[O-] and N=N#N to N=[N+]=[N-].
func cleanupFunctionalGroups(m *Molecule) {
	for i := range m.Atoms {
		a := &m.Atoms[i]
		if a.Number != 7 || a.Charge != 0 {
			continue
		}
		var oxo []int
		var triple = -1
		doubles := 0
		for _, bi := range a.Bonds {
			b := &m.Bonds[bi]
			o := b.Other(i)
			switch b.Order {
			case 2:
				doubles++
				if m.Atoms[o].Number == 8 && m.Atoms[o].Charge == 0 && m.Degree(o) == 1 {
					oxo = append(oxo, bi)
				}
			case 3:
				triple = bi
			}
		}
		switch {
		case len(oxo) >= 2 && m.bondOrderSum(i) == 5:
			a.Charge = 1
			b := &m.Bonds[oxo[1]]
			b.Order = 1
			m.Atoms[b.Other(i)].Charge = -1
		case doubles == 1 && triple >= 0 && m.bondOrderSum(i) == 5:
			end := m.Bonds[triple].Other(i)
			if m.Atoms[end].Number == 7 && m.Atoms[end].Charge == 0 && m.Degree(end) == 1 {
				a.Charge = 1
				m.Bonds[triple].Order = 2
				m.Atoms[end].Charge = -1
			}
		}
	}
}
