package descriptor

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	stdliberrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/turtacn/rxntd/pkg/chem"
	"github.com/turtacn/rxntd/pkg/errors"
)

// headerName is the reserved name of the table's header entry.
const headerName = "description"

//go:embed rxnsmarts.tsv
var defaultPatternTSV []byte

// Pattern is one named fragment query.
type Pattern struct {
	Name   string
	SMARTS string
	query  *chem.Query
}

// PatternTable is an ordered, read-only set of named fragment patterns.
type PatternTable struct {
	patterns    []Pattern
	fingerprint string
}

// LoadPatternTable reads tab-separated "SMARTS<TAB>name" rows. The header
// entry named "description" is skipped and lines starting with '#' are
// comments. A name that appears again replaces the earlier SMARTS but keeps
// the earlier position. Every SMARTS must compile.
func LoadPatternTable(r io.Reader) (*PatternTable, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	t := &PatternTable{}
	index := map[string]int{}
	line := 0
	for {
		rec, err := cr.Read()
		if stdliberrors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodePatternTableInvalid, "reading pattern table")
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) < 2 {
			return nil, errors.New(errors.ErrCodePatternTableInvalid, "pattern row needs SMARTS and name").
				WithDetail(fmt.Sprintf("record %d: %q", line, strings.Join(rec, "\t")))
		}
		smarts, name := strings.TrimSpace(rec[0]), strings.TrimSpace(rec[1])
		if name == headerName {
			continue
		}
		if smarts == "" || name == "" {
			return nil, errors.New(errors.ErrCodePatternTableInvalid, "empty SMARTS or name").
				WithDetail(fmt.Sprintf("record %d", line))
		}
		q, err := chem.ParseSMARTS(smarts)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodePatternTableInvalid, "pattern does not compile").
				WithDetail(name)
		}
		p := Pattern{Name: name, SMARTS: smarts, query: q}
		if i, ok := index[name]; ok {
			t.patterns[i] = p
			continue
		}
		index[name] = len(t.patterns)
		t.patterns = append(t.patterns, p)
	}
	if len(t.patterns) == 0 {
		return nil, errors.New(errors.ErrCodePatternTableInvalid, "pattern table has no active patterns")
	}
	var sb strings.Builder
	for _, p := range t.patterns {
		sb.WriteString(p.Name)
		sb.WriteByte('\t')
		sb.WriteString(p.SMARTS)
		sb.WriteByte('\n')
	}
	t.fingerprint = digest(sb.String())
	return t, nil
}

// LoadPatternTableFile reads a pattern table from disk.
func LoadPatternTableFile(path string) (*PatternTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodePatternTableInvalid, "opening pattern table").WithDetail(path)
	}
	defer f.Close()
	return LoadPatternTable(f)
}

var (
	defaultTableOnce sync.Once
	defaultTable     *PatternTable
	defaultTableErr  error
)

// DefaultPatternTable returns the built-in reaction fragment table. It is
// parsed once per process.
func DefaultPatternTable() (*PatternTable, error) {
	defaultTableOnce.Do(func() {
		defaultTable, defaultTableErr = LoadPatternTable(bytes.NewReader(defaultPatternTSV))
	})
	return defaultTable, defaultTableErr
}

// Len returns the number of active patterns.
func (t *PatternTable) Len() int { return len(t.patterns) }

// Names returns the pattern names in load order.
func (t *PatternTable) Names() []string {
	out := make([]string, len(t.patterns))
	for i, p := range t.patterns {
		out[i] = p.Name
	}
	return out
}

// Fingerprint digests the ordered (name, SMARTS) pairs.
func (t *PatternTable) Fingerprint() string { return t.fingerprint }

// Patterns returns a copy of the patterns in load order.
func (t *PatternTable) Patterns() []Pattern {
	return append([]Pattern(nil), t.patterns...)
}

// FragmentFamily counts non-overlapping matches of every pattern.
type FragmentFamily struct {
	table *PatternTable
}

// NewFragmentFamily returns the fragment family over table.
func NewFragmentFamily(table *PatternTable) *FragmentFamily {
	return &FragmentFamily{table: table}
}

func (*FragmentFamily) Name() string { return FamilyFragment }

func (f *FragmentFamily) FeatureNames() []string { return f.table.Names() }

func (f *FragmentFamily) Fingerprint() string { return digest(FamilyFragment + "\n" + f.table.Fingerprint()) }

func (f *FragmentFamily) Compute(structure string) (Vector, error) {
	v := Zero(f.table.Len())
	if structure == "" {
		return v, nil
	}
	m, err := chem.MolFromSMILES(structure)
	if err != nil {
		return v, errors.Wrap(err, errors.ErrCodeDescriptorFailed, "fragment counts").WithDetail(structure)
	}
	for i, p := range f.table.patterns {
		v[i] = p.query.CountNonOverlapping(m)
	}
	return v, nil
}
