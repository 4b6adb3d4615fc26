package chem

import (
	"fmt"
	"strconv"

	"github.com/turtacn/rxntd/pkg/errors"
)

type exprOp int

const (
	opPrim exprOp = iota
	opNot
	opAnd
	opOr
)

type primKind int

const (
	primTrue primKind = iota
	primAromatic
	primAliphatic
	primElement
	primIsotope
	primHCount
	primDegree
	primConnectivity
	primRingMembership
	primRingSize
	primValence
	primRingConnectivity
	primCharge
	primRecursive
)

type bondKind int

const (
	bondDefault bondKind = iota
	bondSingle
	bondDouble
	bondTriple
	bondAromatic
	bondAny
	bondRing
)

// Element aromaticity constraints for primElement.
const (
	aromEither = iota
	aromOnly
	aliphOnly
)

// expr is a node of an atom or bond expression tree.
type expr struct {
	op   exprOp
	kids []*expr

	// atom primitives
	kind  primKind
	value int
	arom  int
	sub   *Query

	// bond primitives
	bond bondKind
}

func (e *expr) matchAtom(m *Molecule, a int) bool {
	switch e.op {
	case opNot:
		return !e.kids[0].matchAtom(m, a)
	case opAnd:
		for _, k := range e.kids {
			if !k.matchAtom(m, a) {
				return false
			}
		}
		return true
	case opOr:
		for _, k := range e.kids {
			if k.matchAtom(m, a) {
				return true
			}
		}
		return false
	}

	at := &m.Atoms[a]
	switch e.kind {
	case primTrue:
		return true
	case primAromatic:
		return at.Aromatic
	case primAliphatic:
		return !at.Aromatic
	case primElement:
		if at.Number != e.value {
			return false
		}
		switch e.arom {
		case aromOnly:
			return at.Aromatic
		case aliphOnly:
			return !at.Aromatic
		}
		return true
	case primIsotope:
		return at.Isotope == e.value
	case primHCount:
		return m.TotalHydrogens(a) == e.value
	case primDegree:
		return m.Degree(a) == e.value
	case primConnectivity:
		return m.Degree(a)+at.HCount == e.value
	case primRingMembership:
		if e.value < 0 {
			return at.InRing
		}
		return m.RingMembership(a) == e.value
	case primRingSize:
		if e.value < 0 {
			return at.InRing
		}
		for _, ring := range m.Rings {
			if len(ring) != e.value {
				continue
			}
			for _, x := range ring {
				if x == a {
					return true
				}
			}
		}
		return false
	case primValence:
		return m.Valence(a) == e.value
	case primRingConnectivity:
		if e.value < 0 {
			return m.RingBondCount(a) > 0
		}
		return m.RingBondCount(a) == e.value
	case primCharge:
		return at.Charge == e.value
	case primRecursive:
		return e.sub.hasMatchRooted(m, a)
	}
	return false
}

func (e *expr) matchBond(b *Bond) bool {
	switch e.op {
	case opNot:
		return !e.kids[0].matchBond(b)
	case opAnd:
		for _, k := range e.kids {
			if !k.matchBond(b) {
				return false
			}
		}
		return true
	case opOr:
		for _, k := range e.kids {
			if k.matchBond(b) {
				return true
			}
		}
		return false
	}

	switch e.bond {
	case bondDefault:
		return b.Aromatic || b.Order == 1
	case bondSingle:
		return !b.Aromatic && b.Order == 1
	case bondDouble:
		return !b.Aromatic && b.Order == 2
	case bondTriple:
		return !b.Aromatic && b.Order == 3
	case bondAromatic:
		return b.Aromatic
	case bondAny:
		return true
	case bondRing:
		return b.InRing
	}
	return false
}

type queryBond struct {
	a, b int
	expr *expr
}

// Query is a compiled SMARTS pattern.
type Query struct {
	source string
	atoms  []*expr
	bonds  []queryBond
	adj    [][]int
	order  []int
}

// String returns the SMARTS the query was compiled from.
func (q *Query) String() string { return q.source }

// NumAtoms returns the number of query atoms.
func (q *Query) NumAtoms() int { return len(q.atoms) }

// MustParseSMARTS is like ParseSMARTS but panics on error.
func MustParseSMARTS(s string) *Query {
	q, err := ParseSMARTS(s)
	if err != nil {
		panic(err)
	}
	return q
}

// ParseSMARTS compiles a SMARTS pattern. Supported atom primitives are
// element symbols, *, a, A, #n, H, D, X, R, r, v, x, isotopes, charges and
// recursive $(...) environments combined with !, &, ',' and ';'. Supported
// bond primitives are - = # : ~ @ with the same operators. Chirality and
// directional bonds are accepted and ignored.
func ParseSMARTS(s string) (*Query, error) {
	p := &smartsParser{s: s}
	q, err := p.parse()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSMARTSInvalid, "invalid SMARTS").WithDetail(s)
	}
	return q, nil
}

type ringOpen struct {
	atom int
	bond *expr
}

type smartsParser struct {
	s   string
	pos int
}

func (p *smartsParser) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("position %d: %s", p.pos, fmt.Sprintf(format, args...))
}

func (p *smartsParser) peek() byte {
	if p.pos >= len(p.s) {
		return 0
	}
	return p.s[p.pos]
}

func (p *smartsParser) parse() (*Query, error) {
	q := &Query{source: p.s}
	prev := -1
	var branches []int
	var pending *expr
	rings := map[int]ringOpen{}

	addBond := func(a, b int, e *expr) {
		if e == nil {
			e = &expr{op: opPrim, bond: bondDefault}
		}
		q.bonds = append(q.bonds, queryBond{a: a, b: b, expr: e})
		idx := len(q.bonds) - 1
		q.adj[a] = append(q.adj[a], idx)
		q.adj[b] = append(q.adj[b], idx)
	}

	for p.pos < len(p.s) {
		c := p.peek()
		switch {
		case c == '(':
			if prev < 0 {
				return nil, p.errorf("branch without preceding atom")
			}
			branches = append(branches, prev)
			p.pos++
		case c == ')':
			if len(branches) == 0 {
				return nil, p.errorf("unbalanced ')'")
			}
			if pending != nil {
				return nil, p.errorf("bond without following atom")
			}
			prev = branches[len(branches)-1]
			branches = branches[:len(branches)-1]
			p.pos++
		case c == '.':
			if pending != nil {
				return nil, p.errorf("bond before '.'")
			}
			prev = -1
			p.pos++
		case isSMARTSBondChar(c):
			if pending != nil {
				return nil, p.errorf("consecutive bond expressions")
			}
			e, err := p.parseExpr(p.parseBondPrim, isBondPrimChar)
			if err != nil {
				return nil, err
			}
			pending = e
		case c == '%' || (c >= '0' && c <= '9'):
			if prev < 0 {
				return nil, p.errorf("ring closure without preceding atom")
			}
			d, err := p.ringNumber()
			if err != nil {
				return nil, err
			}
			if open, ok := rings[d]; ok {
				if open.atom == prev {
					return nil, p.errorf("ring closure %d bonds an atom to itself", d)
				}
				e := pending
				if e == nil {
					e = open.bond
				}
				addBond(open.atom, prev, e)
				delete(rings, d)
			} else {
				rings[d] = ringOpen{atom: prev, bond: pending}
			}
			pending = nil
		default:
			e, err := p.parseAtom()
			if err != nil {
				return nil, err
			}
			q.atoms = append(q.atoms, e)
			q.adj = append(q.adj, nil)
			idx := len(q.atoms) - 1
			if prev >= 0 {
				addBond(prev, idx, pending)
			} else if pending != nil {
				return nil, p.errorf("bond without preceding atom")
			}
			pending = nil
			prev = idx
		}
	}

	switch {
	case len(q.atoms) == 0:
		return nil, fmt.Errorf("empty pattern")
	case pending != nil:
		return nil, fmt.Errorf("pattern ends with a bond")
	case len(branches) > 0:
		return nil, fmt.Errorf("unclosed branch")
	case len(rings) > 0:
		return nil, fmt.Errorf("unclosed ring")
	}
	q.order = q.matchOrder()
	return q, nil
}

func (p *smartsParser) ringNumber() (int, error) {
	if p.peek() == '%' {
		if p.pos+2 >= len(p.s) || !isDigit(p.s[p.pos+1]) || !isDigit(p.s[p.pos+2]) {
			return 0, p.errorf("malformed %%nn ring closure")
		}
		d, _ := strconv.Atoi(p.s[p.pos+1 : p.pos+3])
		p.pos += 3
		return d, nil
	}
	d := int(p.s[p.pos] - '0')
	p.pos++
	return d, nil
}

func isSMARTSBondChar(c byte) bool {
	switch c {
	case '-', '=', '#', ':', '~', '@', '/', '\\', '!':
		return true
	}
	return false
}

func isBondPrimChar(c byte) bool { return c != '!' && isSMARTSBondChar(c) }

func isAtomPrimChar(c byte) bool {
	switch c {
	case 0, ']', ';', ',', '&', '!', ':':
		return false
	}
	return true
}

// parseExpr parses a logical expression with SMARTS precedence, lowest
// first: ';', ',', then '&' or juxtaposition, then unary '!'.
func (p *smartsParser) parseExpr(prim func() (*expr, error), starts func(byte) bool) (*expr, error) {
	left, err := p.parseOr(prim, starts)
	if err != nil {
		return nil, err
	}
	for p.peek() == ';' {
		p.pos++
		right, err := p.parseOr(prim, starts)
		if err != nil {
			return nil, err
		}
		left = &expr{op: opAnd, kids: []*expr{left, right}}
	}
	return left, nil
}

func (p *smartsParser) parseOr(prim func() (*expr, error), starts func(byte) bool) (*expr, error) {
	left, err := p.parseHighAnd(prim, starts)
	if err != nil {
		return nil, err
	}
	for p.peek() == ',' {
		p.pos++
		right, err := p.parseHighAnd(prim, starts)
		if err != nil {
			return nil, err
		}
		left = &expr{op: opOr, kids: []*expr{left, right}}
	}
	return left, nil
}

func (p *smartsParser) parseHighAnd(prim func() (*expr, error), starts func(byte) bool) (*expr, error) {
	left, err := p.parseNot(prim)
	if err != nil {
		return nil, err
	}
	for {
		c := p.peek()
		switch {
		case c == '&':
			p.pos++
		case c == '!' || (c != 0 && starts(c)):
		default:
			return left, nil
		}
		right, err := p.parseNot(prim)
		if err != nil {
			return nil, err
		}
		left = &expr{op: opAnd, kids: []*expr{left, right}}
	}
}

func (p *smartsParser) parseNot(prim func() (*expr, error)) (*expr, error) {
	if p.peek() == '!' {
		p.pos++
		k, err := p.parseNot(prim)
		if err != nil {
			return nil, err
		}
		return &expr{op: opNot, kids: []*expr{k}}, nil
	}
	return prim()
}

func (p *smartsParser) parseBondPrim() (*expr, error) {
	c := p.peek()
	e := &expr{op: opPrim}
	switch c {
	case '-', '/', '\\':
		e.bond = bondSingle
	case '=':
		e.bond = bondDouble
	case '#':
		e.bond = bondTriple
	case ':':
		e.bond = bondAromatic
	case '~':
		e.bond = bondAny
	case '@':
		e.bond = bondRing
	default:
		return nil, p.errorf("unexpected %q in bond expression", c)
	}
	p.pos++
	return e, nil
}

func atomPrim(kind primKind, value int) *expr {
	return &expr{op: opPrim, kind: kind, value: value}
}

func elementPrim(number, arom int) *expr {
	return &expr{op: opPrim, kind: primElement, value: number, arom: arom}
}

// parseAtom parses a bracket atom or an unbracketed organic-subset atom.
func (p *smartsParser) parseAtom() (*expr, error) {
	c := p.peek()
	if c == '[' {
		p.pos++
		e, err := p.parseExpr(p.parseAtomPrim, isAtomPrimChar)
		if err != nil {
			return nil, err
		}
		if p.peek() == ':' {
			p.pos++
			for isDigit(p.peek()) {
				p.pos++
			}
		}
		if p.peek() != ']' {
			return nil, p.errorf("unterminated bracket atom")
		}
		p.pos++
		return e, nil
	}

	rest := p.s[p.pos:]
	for _, sym := range []string{"Cl", "Br"} {
		if len(rest) >= 2 && rest[:2] == sym {
			n, _ := LookupElement(sym)
			p.pos += 2
			return elementPrim(n, aliphOnly), nil
		}
	}
	p.pos++
	switch c {
	case '*':
		return atomPrim(primTrue, 0), nil
	case 'a':
		return atomPrim(primAromatic, 0), nil
	case 'A':
		return atomPrim(primAliphatic, 0), nil
	case 'B', 'C', 'N', 'O', 'P', 'S', 'F', 'I':
		n, _ := LookupElement(string(c))
		return elementPrim(n, aliphOnly), nil
	case 'b', 'c', 'n', 'o', 'p', 's':
		n, _ := LookupElement(aromaticSymbols[string(c)])
		return elementPrim(n, aromOnly), nil
	}
	p.pos--
	return nil, p.errorf("unexpected %q", c)
}

// count reads an optional decimal count, returning def when absent.
func (p *smartsParser) count(def int) int {
	start := p.pos
	for isDigit(p.peek()) {
		p.pos++
	}
	if start == p.pos {
		return def
	}
	n, _ := strconv.Atoi(p.s[start:p.pos])
	return n
}

func (p *smartsParser) parseAtomPrim() (*expr, error) {
	c := p.peek()
	if c == 0 {
		return nil, p.errorf("unterminated bracket atom")
	}
	rest := p.s[p.pos:]

	switch {
	case isDigit(c):
		return atomPrim(primIsotope, p.count(0)), nil
	case c == '*':
		p.pos++
		return atomPrim(primTrue, 0), nil
	case c == '#':
		p.pos++
		if !isDigit(p.peek()) {
			return nil, p.errorf("'#' without atomic number")
		}
		return elementPrim(p.count(0), aromEither), nil
	case c == '+' || c == '-':
		p.pos++
		sign := 1
		if c == '-' {
			sign = -1
		}
		if isDigit(p.peek()) {
			return atomPrim(primCharge, sign*p.count(1)), nil
		}
		n := 1
		for p.peek() == c {
			n++
			p.pos++
		}
		return atomPrim(primCharge, sign*n), nil
	case c == '@':
		for p.peek() == '@' || p.peek() == '?' {
			p.pos++
		}
		return atomPrim(primTrue, 0), nil
	case c == '$':
		return p.parseRecursive()
	case isLower(c):
		if len(rest) >= 2 {
			if sym, ok := aromaticSymbols[rest[:2]]; ok {
				n, _ := LookupElement(sym)
				p.pos += 2
				return elementPrim(n, aromOnly), nil
			}
		}
		if sym, ok := aromaticSymbols[rest[:1]]; ok {
			n, _ := LookupElement(sym)
			p.pos++
			return elementPrim(n, aromOnly), nil
		}
		p.pos++
		switch c {
		case 'a':
			return atomPrim(primAromatic, 0), nil
		case 'r':
			return atomPrim(primRingSize, p.count(-1)), nil
		case 'v':
			return atomPrim(primValence, p.count(1)), nil
		case 'x':
			return atomPrim(primRingConnectivity, p.count(-1)), nil
		}
		p.pos--
		return nil, p.errorf("unsupported primitive %q", c)
	}

	if len(rest) >= 2 && isLower(rest[1]) {
		if n, ok := LookupElement(rest[:2]); ok {
			p.pos += 2
			return elementPrim(n, aliphOnly), nil
		}
	}
	p.pos++
	switch c {
	case 'A':
		return atomPrim(primAliphatic, 0), nil
	case 'H':
		return atomPrim(primHCount, p.count(1)), nil
	case 'D':
		return atomPrim(primDegree, p.count(1)), nil
	case 'X':
		return atomPrim(primConnectivity, p.count(1)), nil
	case 'R':
		return atomPrim(primRingMembership, p.count(-1)), nil
	}
	if n, ok := LookupElement(string(c)); ok {
		return elementPrim(n, aliphOnly), nil
	}
	p.pos--
	return nil, p.errorf("unsupported primitive %q", c)
}

func (p *smartsParser) parseRecursive() (*expr, error) {
	p.pos++
	if p.peek() != '(' {
		return nil, p.errorf("'$' must be followed by '('")
	}
	start := p.pos + 1
	depth := 0
	for ; p.pos < len(p.s); p.pos++ {
		switch p.s[p.pos] {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth == 0 {
			break
		}
	}
	if depth != 0 {
		return nil, p.errorf("unterminated recursive SMARTS")
	}
	inner := &smartsParser{s: p.s[start:p.pos]}
	p.pos++
	sub, err := inner.parse()
	if err != nil {
		return nil, fmt.Errorf("recursive SMARTS %q: %w", inner.s, err)
	}
	return &expr{op: opPrim, kind: primRecursive, sub: sub}, nil
}
