package chem

import (
	"fmt"

	"github.com/turtacn/rxntd/pkg/errors"
)

type pendingBond struct {
	set      bool
	order    int
	aromatic bool
}

type ringOpening struct {
	atom int
	bond pendingBond
}

func smilesError(s string, pos int, msg string) error {
	return errors.New(errors.ErrCodeMoleculeParsingFailed, "SMILES parse error").
		WithDetail(fmt.Sprintf("%s at position %d in %q", msg, pos, s))
}

// ParseSMILES reads a SMILES string into a Molecule without sanitizing it.
// Stereo markers are accepted and discarded. An empty string yields an empty
// molecule.
func ParseSMILES(s string) (*Molecule, error) {
	m := &Molecule{}
	prev := -1
	var bond pendingBond
	var branches []int
	rings := map[int]ringOpening{}

	connect := func(atom, pos int) error {
		if prev < 0 {
			if bond.set {
				return smilesError(s, pos, "bond without preceding atom")
			}
			prev = atom
			return nil
		}
		order, aromatic := 1, false
		if bond.set {
			order, aromatic = bond.order, bond.aromatic
		} else if m.Atoms[prev].Aromatic && m.Atoms[atom].Aromatic {
			order, aromatic = 0, true
		}
		m.addBond(prev, atom, order, aromatic)
		bond = pendingBond{}
		prev = atom
		return nil
	}

	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '(':
			if prev < 0 {
				return nil, smilesError(s, i, "branch without preceding atom")
			}
			branches = append(branches, prev)
			i++
		case c == ')':
			if len(branches) == 0 {
				return nil, smilesError(s, i, "unbalanced parenthesis")
			}
			if bond.set {
				return nil, smilesError(s, i, "bond before closing parenthesis")
			}
			prev = branches[len(branches)-1]
			branches = branches[:len(branches)-1]
			i++
		case c == '.':
			if bond.set {
				return nil, smilesError(s, i, "bond before component separator")
			}
			prev = -1
			i++
		case isBondChar(c):
			if bond.set {
				return nil, smilesError(s, i, "consecutive bond symbols")
			}
			bond = bondFromChar(c)
			i++
		case c >= '0' && c <= '9' || c == '%':
			if prev < 0 {
				return nil, smilesError(s, i, "ring closure without preceding atom")
			}
			num, next, ok := readRingNumber(s, i)
			if !ok {
				return nil, smilesError(s, i, "malformed ring closure")
			}
			if open, exists := rings[num]; exists {
				delete(rings, num)
				rb := bond
				if open.bond.set {
					if rb.set && (rb.order != open.bond.order || rb.aromatic != open.bond.aromatic) {
						return nil, smilesError(s, i, "conflicting ring closure bonds")
					}
					rb = open.bond
				}
				if open.atom == prev || m.BondBetween(open.atom, prev) >= 0 {
					return nil, smilesError(s, i, "duplicate ring closure bond")
				}
				order, aromatic := 1, false
				if rb.set {
					order, aromatic = rb.order, rb.aromatic
				} else if m.Atoms[prev].Aromatic && m.Atoms[open.atom].Aromatic {
					order, aromatic = 0, true
				}
				m.addBond(open.atom, prev, order, aromatic)
			} else {
				rings[num] = ringOpening{atom: prev, bond: bond}
			}
			bond = pendingBond{}
			i = next
		case c == '[':
			end := i + 1
			for end < len(s) && s[end] != ']' {
				end++
			}
			if end >= len(s) {
				return nil, smilesError(s, i, "unterminated bracket atom")
			}
			atom, err := parseBracketAtom(s[i+1 : end])
			if err != nil {
				return nil, smilesError(s, i, err.Error())
			}
			if err := connect(m.addAtom(atom), i); err != nil {
				return nil, err
			}
			i = end + 1
		default:
			atom, width, ok := parseOrganicAtom(s, i)
			if !ok {
				return nil, smilesError(s, i, fmt.Sprintf("unexpected character %q", c))
			}
			if err := connect(m.addAtom(atom), i); err != nil {
				return nil, err
			}
			i += width
		}
	}

	switch {
	case len(branches) > 0:
		return nil, smilesError(s, len(s), "unclosed branch")
	case len(rings) > 0:
		return nil, smilesError(s, len(s), "unclosed ring")
	case bond.set:
		return nil, smilesError(s, len(s), "dangling bond")
	}
	return m, nil
}

func isBondChar(c byte) bool {
	switch c {
	case '-', '=', '#', '$', ':', '/', '\\':
		return true
	}
	return false
}

func bondFromChar(c byte) pendingBond {
	switch c {
	case '=':
		return pendingBond{set: true, order: 2}
	case '#':
		return pendingBond{set: true, order: 3}
	case '$':
		return pendingBond{set: true, order: 4}
	case ':':
		return pendingBond{set: true, order: 0, aromatic: true}
	default:
		return pendingBond{set: true, order: 1}
	}
}

func readRingNumber(s string, i int) (int, int, bool) {
	if s[i] != '%' {
		return int(s[i] - '0'), i + 1, true
	}
	if i+2 >= len(s) || !isDigit(s[i+1]) || !isDigit(s[i+2]) {
		return 0, i, false
	}
	return int(s[i+1]-'0')*10 + int(s[i+2]-'0'), i + 3, true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isLower(c byte) bool { return c >= 'a' && c <= 'z' }

func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }

// parseOrganicAtom reads an unbracketed atom at s[i].
func parseOrganicAtom(s string, i int) (Atom, int, bool) {
	c := s[i]
	if c == '*' {
		return Atom{Number: 0}, 1, true
	}
	if i+1 < len(s) {
		two := s[i : i+2]
		if two == "Cl" || two == "Br" {
			n, _ := LookupElement(two)
			return Atom{Number: n}, 2, true
		}
	}
	switch c {
	case 'B', 'C', 'N', 'O', 'P', 'S', 'F', 'I':
		n, _ := LookupElement(string(c))
		return Atom{Number: n}, 1, true
	case 'b', 'c', 'n', 'o', 'p', 's':
		n, _ := LookupElement(aromaticSymbols[string(c)])
		return Atom{Number: n, Aromatic: true}, 1, true
	}
	return Atom{}, 0, false
}

// parseBracketAtom reads the body of a bracket atom:
// isotope? symbol chirality? hcount? charge? class?
func parseBracketAtom(body string) (Atom, error) {
	a := Atom{Bracket: true}
	i := 0
	for i < len(body) && isDigit(body[i]) {
		a.Isotope = a.Isotope*10 + int(body[i]-'0')
		i++
	}
	if i >= len(body) {
		return a, fmt.Errorf("missing element symbol")
	}

	switch {
	case body[i] == '*':
		i++
	case isLower(body[i]):
		if i+1 < len(body) {
			if sym, ok := aromaticSymbols[body[i:i+2]]; ok {
				a.Number, _ = LookupElement(sym)
				a.Aromatic = true
				i += 2
				break
			}
		}
		sym, ok := aromaticSymbols[body[i:i+1]]
		if !ok {
			return a, fmt.Errorf("unknown aromatic symbol %q", body[i:i+1])
		}
		a.Number, _ = LookupElement(sym)
		a.Aromatic = true
		i++
	case isUpper(body[i]):
		if i+1 < len(body) && isLower(body[i+1]) {
			if n, ok := LookupElement(body[i : i+2]); ok {
				a.Number = n
				i += 2
				break
			}
		}
		n, ok := LookupElement(body[i : i+1])
		if !ok {
			return a, fmt.Errorf("unknown element %q", body[i:i+1])
		}
		a.Number = n
		i++
	default:
		return a, fmt.Errorf("unexpected character %q in bracket atom", body[i])
	}

	// chirality
	for i < len(body) && body[i] == '@' {
		i++
	}
	if i+1 < len(body) {
		switch body[i : i+2] {
		case "TH", "AL", "SP", "TB", "OH":
			i += 2
			for i < len(body) && isDigit(body[i]) {
				i++
			}
		}
	}

	if i < len(body) && body[i] == 'H' {
		i++
		a.HCount = 1
		if i < len(body) && isDigit(body[i]) {
			a.HCount = 0
			for i < len(body) && isDigit(body[i]) {
				a.HCount = a.HCount*10 + int(body[i]-'0')
				i++
			}
		}
	}

	if i < len(body) && (body[i] == '+' || body[i] == '-') {
		sign := 1
		if body[i] == '-' {
			sign = -1
		}
		ch := body[i]
		i++
		switch {
		case i < len(body) && isDigit(body[i]):
			n := 0
			for i < len(body) && isDigit(body[i]) {
				n = n*10 + int(body[i]-'0')
				i++
			}
			a.Charge = sign * n
		default:
			n := 1
			for i < len(body) && body[i] == ch {
				n++
				i++
			}
			a.Charge = sign * n
		}
	}

	if i < len(body) && body[i] == ':' {
		i++
		if i >= len(body) || !isDigit(body[i]) {
			return a, fmt.Errorf("malformed atom class")
		}
		for i < len(body) && isDigit(body[i]) {
			i++
		}
	}

	if i != len(body) {
		return a, fmt.Errorf("unexpected trailing %q in bracket atom", body[i:])
	}
	return a, nil
}
