package descriptor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/turtacn/rxntd/pkg/errors"
)

// Family names.
const (
	FamilyElemental   = "elemental"
	FamilyTopological = "topological"
	FamilyFragment    = "fragment"
)

// Family computes one descriptor family for a single canonical structure.
//
// Compute must return a vector of len(FeatureNames()) for every input. The
// empty sentinel yields the zero vector and no error. An unparsable structure
// yields the zero vector together with an ErrCodeDescriptorFailed error so the
// caller can log it; the vector is still usable.
type Family interface {
	Name() string
	FeatureNames() []string
	Compute(structure string) (Vector, error)
}

// Fingerprinter is implemented by families whose output depends on more
// than their feature names, such as the fragment family's SMARTS.
type Fingerprinter interface {
	Fingerprint() string
}

// Fingerprint identifies what f computes. Two families with equal
// fingerprints produce equal vectors for every structure. Families that do
// not implement Fingerprinter are identified by name and feature names.
func Fingerprint(f Family) string {
	if fp, ok := f.(Fingerprinter); ok {
		return fp.Fingerprint()
	}
	return digest(f.Name() + "\n" + strings.Join(f.FeatureNames(), "\n"))
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}

// Schema is the ordered concatenation of the family feature names.
type Schema struct {
	families []familyColumns
	columns  []string
}

type familyColumns struct {
	name   string
	offset int
	names  []string
}

// IdentityColumns lead every output row.
var IdentityColumns = []string{"ID", "Compound1", "Compound2", "Product"}

// NewSchema builds the feature schema for families, in the given order.
// Every header column must be unique: a feature named like an identity
// column or like a feature of another family yields ErrCodeSchemaConflict.
func NewSchema(families ...Family) (*Schema, error) {
	s := &Schema{}
	owner := make(map[string]string, len(IdentityColumns))
	for _, c := range IdentityColumns {
		owner[c] = "identity"
	}
	for _, f := range families {
		names := f.FeatureNames()
		for _, n := range names {
			if prev, ok := owner[n]; ok {
				return nil, errors.New(errors.ErrCodeSchemaConflict, "duplicate schema column").
					WithDetail(fmt.Sprintf("%q in %s collides with %s", n, f.Name(), prev))
			}
			owner[n] = f.Name()
		}
		s.families = append(s.families, familyColumns{name: f.Name(), offset: len(s.columns), names: names})
		s.columns = append(s.columns, names...)
	}
	return s, nil
}

// MustSchema is NewSchema for families that are known not to collide. It
// panics on a conflict.
func MustSchema(families ...Family) *Schema {
	s, err := NewSchema(families...)
	if err != nil {
		panic("descriptor: " + err.Error())
	}
	return s
}

// Columns returns a copy of the feature column names.
func (s *Schema) Columns() []string {
	return append([]string(nil), s.columns...)
}

// Header returns the identity columns followed by the feature columns.
func (s *Schema) Header() []string {
	return append(append([]string(nil), IdentityColumns...), s.columns...)
}

// Width returns the number of feature columns.
func (s *Schema) Width() int { return len(s.columns) }

// Families returns the family names in schema order.
func (s *Schema) Families() []string {
	out := make([]string, len(s.families))
	for i, f := range s.families {
		out[i] = f.name
	}
	return out
}

// FamilyColumns returns the feature names of one family and its offset in
// the schema, or ok=false if the family is not part of the schema.
func (s *Schema) FamilyColumns(family string) (names []string, offset int, ok bool) {
	for _, f := range s.families {
		if f.name == family {
			return append([]string(nil), f.names...), f.offset, true
		}
	}
	return nil, 0, false
}
