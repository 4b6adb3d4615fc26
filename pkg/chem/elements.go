// Package chem is a compact cheminformatics toolkit: SMILES parsing,
// sanitization (ring perception, kekulization, valence checks, aromaticity),
// functional-group normalization, canonical SMILES, ring/rotor descriptors and
// SMARTS substructure matching. It covers the organic chemistry found in
// reaction datasets; it is not a full replacement for a general toolkit.
package chem

import "strings"

// elementInfo describes the properties the toolkit needs for one element.
type elementInfo struct {
	Symbol string
	Number int
	// Outer is the number of valence electrons; zero for elements whose
	// valence is not checked.
	Outer int
	// Valences lists the allowed neutral valences in ascending order. A nil
	// slice means the valence is unchecked (transition metals, noble gases).
	Valences []int
}

var elementTable = []elementInfo{
	{"H", 1, 1, []int{1}},
	{"He", 2, 0, nil},
	{"Li", 3, 1, []int{1}},
	{"Be", 4, 2, []int{2}},
	{"B", 5, 3, []int{3}},
	{"C", 6, 4, []int{4}},
	{"N", 7, 5, []int{3}},
	{"O", 8, 6, []int{2}},
	{"F", 9, 7, []int{1}},
	{"Ne", 10, 0, nil},
	{"Na", 11, 1, []int{1}},
	{"Mg", 12, 2, []int{2}},
	{"Al", 13, 3, []int{3}},
	{"Si", 14, 4, []int{4}},
	{"P", 15, 5, []int{3, 5}},
	{"S", 16, 6, []int{2, 4, 6}},
	{"Cl", 17, 7, []int{1}},
	{"Ar", 18, 0, nil},
	{"K", 19, 1, []int{1}},
	{"Ca", 20, 2, []int{2}},
	{"Sc", 21, 0, nil},
	{"Ti", 22, 0, nil},
	{"V", 23, 0, nil},
	{"Cr", 24, 0, nil},
	{"Mn", 25, 0, nil},
	{"Fe", 26, 0, nil},
	{"Co", 27, 0, nil},
	{"Ni", 28, 0, nil},
	{"Cu", 29, 0, nil},
	{"Zn", 30, 0, nil},
	{"Ga", 31, 3, []int{3}},
	{"Ge", 32, 4, []int{4}},
	{"As", 33, 5, []int{3, 5}},
	{"Se", 34, 6, []int{2, 4, 6}},
	{"Br", 35, 7, []int{1}},
	{"Kr", 36, 0, nil},
	{"Rb", 37, 1, []int{1}},
	{"Sr", 38, 2, []int{2}},
	{"Y", 39, 0, nil},
	{"Zr", 40, 0, nil},
	{"Nb", 41, 0, nil},
	{"Mo", 42, 0, nil},
	{"Ru", 44, 0, nil},
	{"Rh", 45, 0, nil},
	{"Pd", 46, 0, nil},
	{"Ag", 47, 0, nil},
	{"Cd", 48, 0, nil},
	{"In", 49, 3, []int{3}},
	{"Sn", 50, 4, []int{2, 4}},
	{"Sb", 51, 5, []int{3, 5}},
	{"Te", 52, 6, []int{2, 4, 6}},
	{"I", 53, 7, []int{1, 3, 5}},
	{"Xe", 54, 0, nil},
	{"Cs", 55, 1, []int{1}},
	{"Ba", 56, 2, []int{2}},
	{"La", 57, 0, nil},
	{"Ce", 58, 0, nil},
	{"Hf", 72, 0, nil},
	{"W", 74, 0, nil},
	{"Re", 75, 0, nil},
	{"Os", 76, 0, nil},
	{"Ir", 77, 0, nil},
	{"Pt", 78, 0, nil},
	{"Au", 79, 0, nil},
	{"Hg", 80, 0, nil},
	{"Tl", 81, 3, []int{3}},
	{"Pb", 82, 4, []int{2, 4}},
	{"Bi", 83, 5, []int{3, 5}},
}

var (
	elementsBySymbol = map[string]*elementInfo{}
	elementsByNumber = map[int]*elementInfo{}
)

func init() {
	for i := range elementTable {
		e := &elementTable[i]
		elementsBySymbol[e.Symbol] = e
		elementsByNumber[e.Number] = e
	}
}

// aromaticSymbols are the lowercase symbols accepted for aromatic atoms.
var aromaticSymbols = map[string]string{
	"b": "B", "c": "C", "n": "N", "o": "O", "p": "P", "s": "S",
	"se": "Se", "as": "As", "te": "Te",
}

// organicSubset holds the atomic numbers that may be written without brackets.
var organicSubset = map[int]bool{
	0: true, 5: true, 6: true, 7: true, 8: true, 9: true,
	15: true, 16: true, 17: true, 35: true, 53: true,
}

// LookupElement returns the atomic number of a capitalised element symbol.
func LookupElement(symbol string) (int, bool) {
	e, ok := elementsBySymbol[symbol]
	if !ok {
		return 0, false
	}
	return e.Number, true
}

// ElementSymbol returns the symbol for an atomic number, "*" for 0.
func ElementSymbol(number int) string {
	if number == 0 {
		return "*"
	}
	if e, ok := elementsByNumber[number]; ok {
		return e.Symbol
	}
	return "?"
}

// allowedValences returns the permitted valences of an element carrying the
// given formal charge, using the isoelectronic neighbour for charged atoms.
// A nil result means the valence is unchecked.
func allowedValences(number, charge int) []int {
	e, ok := elementsByNumber[number]
	if !ok || e.Valences == nil {
		return nil
	}
	if charge == 0 {
		return e.Valences
	}
	eff := e.Outer - charge
	switch {
	case eff <= 0 || eff >= 8:
		return []int{0}
	case eff <= 4:
		return []int{eff}
	}
	if number <= 10 {
		return []int{8 - eff}
	}
	switch eff {
	case 5:
		return []int{3, 5}
	case 6:
		return []int{2, 4, 6}
	default:
		return []int{1, 3, 5}
	}
}

// targetValence returns the smallest allowed valence that is >= v.
func targetValence(allowed []int, v int) (int, bool) {
	for _, a := range allowed {
		if a >= v {
			return a, true
		}
	}
	return 0, false
}

// outerElectrons returns the valence electron count for aromaticity rules.
func outerElectrons(number int) int {
	if e, ok := elementsByNumber[number]; ok {
		return e.Outer
	}
	return 0
}

// canAromatic reports whether an element may take part in an aromatic ring.
func canAromatic(number int) bool {
	switch number {
	case 5, 6, 7, 8, 15, 16, 33, 34, 52:
		return true
	}
	return false
}

// ElementFromAtomToken resolves the element symbol of an atom token: an
// organic-subset symbol ("Cl", "c") or a bracket atom ("[13CH3]", "[nH]").
// Hydrogen, wildcards and unknown symbols report false.
func ElementFromAtomToken(tok string) (string, bool) {
	if tok == "" {
		return "", false
	}
	if tok[0] != '[' {
		return resolveSymbol(tok)
	}
	body := strings.TrimSuffix(strings.TrimPrefix(tok, "["), "]")
	i := 0
	for i < len(body) && body[i] >= '0' && body[i] <= '9' {
		i++
	}
	body = body[i:]
	if body == "" {
		return "", false
	}
	if body[0] >= 'a' && body[0] <= 'z' {
		if len(body) >= 2 {
			if sym, ok := aromaticSymbols[body[:2]]; ok {
				return sym, true
			}
		}
		return resolveSymbol(body[:1])
	}
	if body[0] < 'A' || body[0] > 'Z' {
		return "", false
	}
	if len(body) >= 2 && body[1] >= 'a' && body[1] <= 'z' {
		if _, ok := elementsBySymbol[body[:2]]; ok {
			return resolveSymbol(body[:2])
		}
	}
	return resolveSymbol(body[:1])
}

func resolveSymbol(s string) (string, bool) {
	if sym, ok := aromaticSymbols[s]; ok {
		return sym, true
	}
	if s == "H" {
		return "", false
	}
	if _, ok := elementsBySymbol[s]; ok {
		return s, true
	}
	return "", false
}
