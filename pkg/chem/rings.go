package chem

import (
	"math/bits"
	"sort"
)

// perceiveRingBonds marks every bond that lies on a cycle (that is, every
// bond that is not a bridge) and every atom carrying such a bond.
func perceiveRingBonds(m *Molecule) {
	n := len(m.Atoms)
	disc := make([]int, n)
	low := make([]int, n)
	for i := range disc {
		disc[i] = -1
	}
	for i := range m.Bonds {
		m.Bonds[i].InRing = true
	}
	timer := 0

	var visit func(u, parentBond int)
	visit = func(u, parentBond int) {
		disc[u] = timer
		low[u] = timer
		timer++
		for _, bi := range m.Atoms[u].Bonds {
			if bi == parentBond {
				continue
			}
			v := m.Bonds[bi].Other(u)
			if disc[v] < 0 {
				visit(v, bi)
				if low[v] < low[u] {
					low[u] = low[v]
				}
				if low[v] > disc[u] {
					m.Bonds[bi].InRing = false
				}
			} else if disc[v] < low[u] {
				low[u] = disc[v]
			}
		}
	}
	for i := 0; i < n; i++ {
		if disc[i] < 0 {
			visit(i, -1)
		}
	}

	for i := range m.Atoms {
		m.Atoms[i].InRing = false
		for _, bi := range m.Atoms[i].Bonds {
			if m.Bonds[bi].InRing {
				m.Atoms[i].InRing = true
				break
			}
		}
	}
}

// bitset is a fixed-size set of bond indices used for GF(2) cycle algebra.
type bitset []uint64

func newBitset(n int) bitset { return make(bitset, (n+63)/64) }

func (b bitset) set(i int) { b[i/64] |= 1 << uint(i%64) }

func (b bitset) xor(o bitset) {
	for i := range b {
		b[i] ^= o[i]
	}
}

func (b bitset) lowest() int {
	for i, w := range b {
		if w != 0 {
			return i*64 + bits.TrailingZeros64(w)
		}
	}
	return -1
}

func (b bitset) clone() bitset {
	c := make(bitset, len(b))
	copy(c, b)
	return c
}

type cycle struct {
	atoms []int
	bonds []int
	key   string
}

// findSSSR computes a smallest set of smallest rings using Horton's candidate
// cycles followed by greedy selection of linearly independent cycles.
func findSSSR(m *Molecule) {
	m.Rings = nil
	m.RingBonds = nil

	ringBondCount := 0
	for i := range m.Bonds {
		if m.Bonds[i].InRing {
			ringBondCount++
		}
	}
	if ringBondCount == 0 {
		return
	}

	// cyclomatic number over the ring-bond subgraph
	ringAtoms := 0
	for i := range m.Atoms {
		if m.Atoms[i].InRing {
			ringAtoms++
		}
	}
	ringComponents := 0
	seen := make([]bool, len(m.Atoms))
	for start := range m.Atoms {
		if !m.Atoms[start].InRing || seen[start] {
			continue
		}
		ringComponents++
		stack := []int{start}
		seen[start] = true
		for len(stack) > 0 {
			a := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, bi := range m.Atoms[a].Bonds {
				if !m.Bonds[bi].InRing {
					continue
				}
				o := m.Bonds[bi].Other(a)
				if !seen[o] {
					seen[o] = true
					stack = append(stack, o)
				}
			}
		}
	}
	want := ringBondCount - ringAtoms + ringComponents
	if want <= 0 {
		return
	}

	candidates := hortonCandidates(m)
	sort.SliceStable(candidates, func(i, j int) bool {
		if len(candidates[i].atoms) != len(candidates[j].atoms) {
			return len(candidates[i].atoms) < len(candidates[j].atoms)
		}
		return candidates[i].key < candidates[j].key
	})

	basis := map[int]bitset{}
	for _, c := range candidates {
		v := newBitset(len(m.Bonds))
		for _, bi := range c.bonds {
			v.set(bi)
		}
		for {
			p := v.lowest()
			if p < 0 {
				break
			}
			row, ok := basis[p]
			if !ok {
				basis[p] = v.clone()
				m.Rings = append(m.Rings, c.atoms)
				m.RingBonds = append(m.RingBonds, c.bonds)
				break
			}
			v.xor(row)
		}
		if len(m.Rings) == want {
			return
		}
	}
}

// hortonCandidates builds, for each ring atom r and ring bond (x, y), the
// cycle P(r,x) + (x,y) + P(y,r) when the two shortest paths share only r.
func hortonCandidates(m *Molecule) []cycle {
	n := len(m.Atoms)
	seen := map[string]bool{}
	var out []cycle

	for r := 0; r < n; r++ {
		if !m.Atoms[r].InRing {
			continue
		}
		parent := make([]int, n)
		parentBond := make([]int, n)
		dist := make([]int, n)
		for i := range dist {
			dist[i] = -1
			parent[i] = -1
			parentBond[i] = -1
		}
		dist[r] = 0
		queue := []int{r}
		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			nbrs := ringNeighbors(m, u)
			for _, nb := range nbrs {
				if dist[nb.atom] < 0 {
					dist[nb.atom] = dist[u] + 1
					parent[nb.atom] = u
					parentBond[nb.atom] = nb.bond
					queue = append(queue, nb.atom)
				}
			}
		}

		pathTo := func(x int) ([]int, []int) {
			var atoms, bonds []int
			for x != r {
				atoms = append(atoms, x)
				bonds = append(bonds, parentBond[x])
				x = parent[x]
			}
			atoms = append(atoms, r)
			for i, j := 0, len(atoms)-1; i < j; i, j = i+1, j-1 {
				atoms[i], atoms[j] = atoms[j], atoms[i]
			}
			for i, j := 0, len(bonds)-1; i < j; i, j = i+1, j-1 {
				bonds[i], bonds[j] = bonds[j], bonds[i]
			}
			return atoms, bonds
		}

		for bi := range m.Bonds {
			b := &m.Bonds[bi]
			if !b.InRing || dist[b.Begin] < 0 || dist[b.End] < 0 {
				continue
			}
			if parentBond[b.Begin] == bi || parentBond[b.End] == bi {
				continue
			}
			px, bx := pathTo(b.Begin)
			py, by := pathTo(b.End)
			onX := map[int]bool{}
			for _, a := range px[1:] {
				onX[a] = true
			}
			disjoint := true
			for _, a := range py[1:] {
				if onX[a] {
					disjoint = false
					break
				}
			}
			if !disjoint {
				continue
			}
			atoms := append([]int{}, px...)
			for i := len(py) - 1; i >= 1; i-- {
				atoms = append(atoms, py[i])
			}
			bonds := append([]int{}, bx...)
			bonds = append(bonds, bi)
			for i := len(by) - 1; i >= 0; i-- {
				bonds = append(bonds, by[i])
			}
			key := bondSetKey(bonds)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, cycle{atoms: atoms, bonds: bonds, key: key})
		}
	}
	return out
}

type neighbor struct {
	atom int
	bond int
}

func ringNeighbors(m *Molecule, u int) []neighbor {
	var out []neighbor
	for _, bi := range m.Atoms[u].Bonds {
		if m.Bonds[bi].InRing {
			out = append(out, neighbor{atom: m.Bonds[bi].Other(u), bond: bi})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].atom < out[j].atom })
	return out
}

func bondSetKey(bonds []int) string {
	sorted := append([]int{}, bonds...)
	sort.Ints(sorted)
	buf := make([]byte, 0, len(sorted)*4)
	for _, b := range sorted {
		buf = append(buf, byte(b>>24), byte(b>>16), byte(b>>8), byte(b))
	}
	return string(buf)
}
