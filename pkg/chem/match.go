package chem

// matchOrder lists query atoms so that every atom after the first of its
// component is bonded to an earlier one. Component roots keep source order,
// so atom 0 always comes first.
func (q *Query) matchOrder() []int {
	seen := make([]bool, len(q.atoms))
	order := make([]int, 0, len(q.atoms))
	for root := range q.atoms {
		if seen[root] {
			continue
		}
		seen[root] = true
		queue := []int{root}
		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			order = append(order, u)
			for _, bi := range q.adj[u] {
				b := q.bonds[bi]
				v := b.a
				if v == u {
					v = b.b
				}
				if !seen[v] {
					seen[v] = true
					queue = append(queue, v)
				}
			}
		}
	}
	return order
}

type matcher struct {
	q       *Query
	m       *Molecule
	mapping []int
	used    []bool
	exclude []bool
	root    int
}

func newMatcher(q *Query, m *Molecule, exclude []bool) *matcher {
	mt := &matcher{
		q:       q,
		m:       m,
		mapping: make([]int, len(q.atoms)),
		used:    make([]bool, len(m.Atoms)),
		exclude: exclude,
		root:    -1,
	}
	for i := range mt.mapping {
		mt.mapping[i] = -1
	}
	return mt
}

func (mt *matcher) candidates(qa int) []int {
	if mt.root >= 0 && qa == mt.q.order[0] {
		return []int{mt.root}
	}
	for _, bi := range mt.q.adj[qa] {
		b := mt.q.bonds[bi]
		other := b.a
		if other == qa {
			other = b.b
		}
		if anchor := mt.mapping[other]; anchor >= 0 {
			out := make([]int, 0, len(mt.m.Atoms[anchor].Bonds))
			for _, mb := range mt.m.Atoms[anchor].Bonds {
				out = append(out, mt.m.Bonds[mb].Other(anchor))
			}
			return out
		}
	}
	out := make([]int, len(mt.m.Atoms))
	for i := range out {
		out[i] = i
	}
	return out
}

func (mt *matcher) feasible(qa, a int) bool {
	if mt.used[a] || (mt.exclude != nil && mt.exclude[a]) {
		return false
	}
	if !mt.q.atoms[qa].matchAtom(mt.m, a) {
		return false
	}
	for _, bi := range mt.q.adj[qa] {
		b := mt.q.bonds[bi]
		other := b.a
		if other == qa {
			other = b.b
		}
		mapped := mt.mapping[other]
		if mapped < 0 {
			continue
		}
		mb := mt.m.BondBetween(a, mapped)
		if mb < 0 || !b.expr.matchBond(&mt.m.Bonds[mb]) {
			return false
		}
	}
	return true
}

func (mt *matcher) search(k int) bool {
	if k == len(mt.q.order) {
		return true
	}
	qa := mt.q.order[k]
	for _, a := range mt.candidates(qa) {
		if !mt.feasible(qa, a) {
			continue
		}
		mt.mapping[qa] = a
		mt.used[a] = true
		if mt.search(k + 1) {
			return true
		}
		mt.mapping[qa] = -1
		mt.used[a] = false
	}
	return false
}

// FirstMatch returns the first embedding of the query in m, indexed by query
// atom, trying molecule atoms in index order. Atoms flagged in exclude are
// never used. It returns nil when there is no match.
func (q *Query) FirstMatch(m *Molecule, exclude []bool) []int {
	if len(q.atoms) == 0 || len(q.atoms) > len(m.Atoms) {
		return nil
	}
	mt := newMatcher(q, m, exclude)
	if !mt.search(0) {
		return nil
	}
	return mt.mapping
}

// HasMatch reports whether the query occurs in m.
func (q *Query) HasMatch(m *Molecule) bool {
	return q.FirstMatch(m, nil) != nil
}

// hasMatchRooted reports whether the query matches with its first atom on a.
func (q *Query) hasMatchRooted(m *Molecule, a int) bool {
	if len(q.atoms) > len(m.Atoms) {
		return false
	}
	mt := newMatcher(q, m, nil)
	mt.root = a
	return mt.search(0)
}

// CountNonOverlapping counts disjoint occurrences of the query. Matches are
// taken greedily in atom order and every atom of an accepted match is
// excluded from later ones.
func (q *Query) CountNonOverlapping(m *Molecule) int {
	exclude := make([]bool, len(m.Atoms))
	n := 0
	for {
		match := q.FirstMatch(m, exclude)
		if match == nil {
			return n
		}
		n++
		for _, a := range match {
			exclude[a] = true
		}
	}
}
