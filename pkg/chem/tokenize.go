package chem

import "regexp"

// smilesTokenPattern splits SMILES into atom and syntax tokens. Two-letter
// elements outside the organic subset are listed only where the unbracketed
// form cannot be confused with an aliphatic atom followed by an aromatic one
// ("Sn" reads as S then n).
var smilesTokenPattern = regexp.MustCompile(
	`(\[[^\]]+]|Si|Ti|Al|Zn|Pd|Pt|Cu|Fe|Te|Se|Br?|Cl?|N|O|S|P|F|I|B|b|c|n|o|s|p|\(|\)|\.|=|#|-|\+|\\|/|:|~|@|\?|>|\*|\$|%[0-9]{2}|[0-9])`,
)

// Tokenize splits a SMILES string into tokens. Characters the pattern does
// not recognise are skipped.
func Tokenize(smiles string) []string {
	return smilesTokenPattern.FindAllString(smiles, -1)
}

// IsSMILES reports whether every character of s belongs to a SMILES token.
// It is a lexical check only; the string may still fail to parse.
func IsSMILES(s string) bool {
	if s == "" {
		return false
	}
	n := 0
	for _, tok := range Tokenize(s) {
		n += len(tok)
	}
	return n >= len(s)
}
