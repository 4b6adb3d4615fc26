package chem

import (
	"sort"
	"strconv"
	"strings"
)

// bondCode folds order and aromaticity into one small integer.
func bondCode(b *Bond) int {
	if b.Aromatic {
		return 5
	}
	return b.Order
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func compareKeys(a, b []int) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}

// denseRank assigns 0-based ranks so that equal keys share a rank.
func denseRank(keys [][]int) ([]int, int) {
	idx := make([]int, len(keys))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return compareKeys(keys[idx[i]], keys[idx[j]]) < 0 })
	ranks := make([]int, len(keys))
	r := 0
	for i, a := range idx {
		if i > 0 && compareKeys(keys[idx[i-1]], keys[a]) != 0 {
			r++
		}
		ranks[a] = r
	}
	if len(keys) == 0 {
		return ranks, 0
	}
	return ranks, r + 1
}

// refine iterates neighbourhood refinement until the partition is stable.
func refine(m *Molecule, ranks []int, classes int) ([]int, int) {
	for {
		keys := make([][]int, len(m.Atoms))
		for a := range m.Atoms {
			nb := make([]int, 0, len(m.Atoms[a].Bonds))
			for _, bi := range m.Atoms[a].Bonds {
				b := &m.Bonds[bi]
				nb = append(nb, ranks[b.Other(a)]*8+bondCode(b))
			}
			sort.Ints(nb)
			keys[a] = append([]int{ranks[a]}, nb...)
		}
		next, n := denseRank(keys)
		if n == classes {
			return ranks, classes
		}
		ranks, classes = next, n
	}
}

// CanonicalRanks returns a total order over the atoms that depends only on
// the molecular graph, not on input atom order.
func CanonicalRanks(m *Molecule) []int {
	keys := make([][]int, len(m.Atoms))
	for i := range m.Atoms {
		a := &m.Atoms[i]
		keys[i] = []int{
			a.Number, a.Isotope, a.Charge, boolInt(a.Aromatic), a.HCount,
			m.Degree(i), boolInt(a.InRing), m.RingMembership(i),
		}
	}
	ranks, classes := denseRank(keys)
	ranks, classes = refine(m, ranks, classes)

	for classes < len(m.Atoms) {
		count := map[int]int{}
		for _, r := range ranks {
			count[r]++
		}
		tie := -1
		for _, r := range ranks {
			if count[r] > 1 && (tie < 0 || r < tie) {
				tie = r
			}
		}
		chosen := -1
		for a, r := range ranks {
			if r == tie {
				chosen = a
				break
			}
		}
		keys := make([][]int, len(m.Atoms))
		for a, r := range ranks {
			k := r * 2
			if r == tie && a != chosen {
				k++
			}
			keys[a] = []int{k}
		}
		ranks, classes = denseRank(keys)
		ranks, classes = refine(m, ranks, classes)
	}
	return ranks
}

// ─────────────────────────────────────────────────────────────────────────────
// Writer
// ─────────────────────────────────────────────────────────────────────────────

type ringClosure struct {
	bond    int
	partner int
	opening bool
	digit   int
}

type smilesWriter struct {
	m        *Molecule
	rank     []int
	visited  []bool
	children [][]int // bond indices of DFS tree edges leaving each atom
	closures [][]*ringClosure
	seen     map[int]bool
	digits   map[int]bool
	sb       strings.Builder
}

// CanonicalSMILES writes a sanitized molecule as canonical SMILES using
// aromatic lowercase atoms. Each component starts at its lowest-ranked atom
// of minimal degree; components are ordered by that starting rank.
func CanonicalSMILES(m *Molecule) string {
	if len(m.Atoms) == 0 {
		return ""
	}
	w := &smilesWriter{
		m:        m,
		rank:     CanonicalRanks(m),
		visited:  make([]bool, len(m.Atoms)),
		children: make([][]int, len(m.Atoms)),
		closures: make([][]*ringClosure, len(m.Atoms)),
		seen:     map[int]bool{},
		digits:   map[int]bool{},
	}

	comps := m.components()
	starts := make([]int, len(comps))
	for i, comp := range comps {
		best := comp[0]
		for _, a := range comp {
			da, db := m.Degree(a), m.Degree(best)
			if da < db || (da == db && w.rank[a] < w.rank[best]) {
				best = a
			}
		}
		starts[i] = best
	}
	sort.Slice(starts, func(i, j int) bool { return w.rank[starts[i]] < w.rank[starts[j]] })

	for i, s := range starts {
		if i > 0 {
			w.sb.WriteByte('.')
		}
		w.plan(s, -1)
		w.write(s)
	}
	return w.sb.String()
}

func (w *smilesWriter) sortedBonds(a int) []int {
	bonds := append([]int{}, w.m.Atoms[a].Bonds...)
	sort.Slice(bonds, func(i, j int) bool {
		oi := w.m.Bonds[bonds[i]].Other(a)
		oj := w.m.Bonds[bonds[j]].Other(a)
		return w.rank[oi] < w.rank[oj]
	})
	return bonds
}

// plan builds the DFS spanning tree and records ring closures.
func (w *smilesWriter) plan(u, parentBond int) {
	w.visited[u] = true
	for _, bi := range w.sortedBonds(u) {
		if bi == parentBond {
			continue
		}
		v := w.m.Bonds[bi].Other(u)
		if w.visited[v] {
			if !w.seen[bi] {
				w.seen[bi] = true
				w.closures[v] = append(w.closures[v], &ringClosure{bond: bi, partner: u, opening: true})
				w.closures[u] = append(w.closures[u], &ringClosure{bond: bi, partner: v})
			}
			continue
		}
		w.seen[bi] = true
		w.children[u] = append(w.children[u], bi)
		w.plan(v, bi)
	}
}

func (w *smilesWriter) write(u int) {
	w.sb.WriteString(w.atomString(u))

	var closing, opening []*ringClosure
	for _, rc := range w.closures[u] {
		if rc.opening {
			opening = append(opening, rc)
		} else {
			closing = append(closing, rc)
		}
	}
	for _, rc := range closing {
		rc.digit = w.digitFor(rc.bond, rc.partner)
	}
	sort.Slice(closing, func(i, j int) bool { return closing[i].digit < closing[j].digit })
	for _, rc := range closing {
		w.sb.WriteString(ringDigit(rc.digit))
		delete(w.digits, rc.digit)
	}
	sort.Slice(opening, func(i, j int) bool { return w.rank[opening[i].partner] < w.rank[opening[j].partner] })
	for _, rc := range opening {
		d := 1
		for w.digits[d] {
			d++
		}
		w.digits[d] = true
		rc.digit = d
		w.sb.WriteString(w.bondString(rc.bond))
		w.sb.WriteString(ringDigit(d))
	}

	for i, bi := range w.children[u] {
		v := w.m.Bonds[bi].Other(u)
		last := i == len(w.children[u])-1
		if !last {
			w.sb.WriteByte('(')
		}
		w.sb.WriteString(w.bondString(bi))
		w.write(v)
		if !last {
			w.sb.WriteByte(')')
		}
	}
}

// digitFor finds the digit assigned when the partner opened the closure.
func (w *smilesWriter) digitFor(bond, partner int) int {
	for _, rc := range w.closures[partner] {
		if rc.bond == bond && rc.opening {
			return rc.digit
		}
	}
	return 0
}

func ringDigit(d int) string {
	if d < 10 {
		return strconv.Itoa(d)
	}
	return "%" + strconv.Itoa(d)
}

func (w *smilesWriter) bondString(bi int) string {
	b := &w.m.Bonds[bi]
	if b.Aromatic {
		return ""
	}
	switch b.Order {
	case 2:
		return "="
	case 3:
		return "#"
	case 4:
		return "$"
	}
	if w.m.Atoms[b.Begin].Aromatic && w.m.Atoms[b.End].Aromatic {
		return "-"
	}
	return ""
}

func (w *smilesWriter) atomString(a int) string {
	at := &w.m.Atoms[a]
	sym := at.Symbol()
	if at.Aromatic {
		sym = strings.ToLower(sym)
	}
	if !w.needsBracket(a) {
		return sym
	}
	var sb strings.Builder
	sb.WriteByte('[')
	if at.Isotope > 0 {
		sb.WriteString(strconv.Itoa(at.Isotope))
	}
	sb.WriteString(sym)
	if at.HCount > 0 {
		sb.WriteByte('H')
		if at.HCount > 1 {
			sb.WriteString(strconv.Itoa(at.HCount))
		}
	}
	switch {
	case at.Charge == 1:
		sb.WriteByte('+')
	case at.Charge == -1:
		sb.WriteByte('-')
	case at.Charge > 1:
		sb.WriteString("+" + strconv.Itoa(at.Charge))
	case at.Charge < -1:
		sb.WriteString(strconv.Itoa(at.Charge))
	}
	sb.WriteByte(']')
	return sb.String()
}

func (w *smilesWriter) needsBracket(a int) bool {
	at := &w.m.Atoms[a]
	if !organicSubset[at.Number] || at.Charge != 0 || at.Isotope != 0 {
		return true
	}
	return writtenHydrogens(w.m, a) != at.HCount
}

// writtenHydrogens is the hydrogen count a reader assigns to atom a when it
// is written without brackets in canonical output.
func writtenHydrogens(m *Molecule, a int) int {
	at := &m.Atoms[a]
	allowed := allowedValences(at.Number, 0)
	if allowed == nil {
		return 0
	}
	v, hasAromatic := 0, false
	for _, bi := range at.Bonds {
		b := &m.Bonds[bi]
		if b.Aromatic {
			v++
			hasAromatic = true
		} else {
			v += b.Order
		}
	}
	target, ok := targetValence(allowed, v)
	if !ok {
		return -1
	}
	if at.Aromatic && hasAromatic && target > v {
		return target - v - 1
	}
	return target - v
}
