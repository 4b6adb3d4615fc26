// Package tabular reads reaction tables and writes transform descriptor
// tables as delimited text or JSON lines.
package tabular

import (
	"bufio"
	"encoding/csv"
	stdliberrors "errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/turtacn/rxntd/internal/domain/reaction"
	"github.com/turtacn/rxntd/pkg/chem"
	"github.com/turtacn/rxntd/pkg/errors"
)

// MinColumns is the number of leading columns a reaction table must carry:
// ID, A, B and Product.
const MinColumns = 4

// HeaderMode controls header detection on the first line.
type HeaderMode string

const (
	HeaderAuto   HeaderMode = "auto"
	HeaderAlways HeaderMode = "always"
	HeaderNever  HeaderMode = "never"
)

// ValidHeaderMode reports whether m is a known mode.
func ValidHeaderMode(m HeaderMode) bool {
	switch m {
	case HeaderAuto, HeaderAlways, HeaderNever:
		return true
	}
	return false
}

// ReadOptions configures ReadReactions.
type ReadOptions struct {
	Delimiter rune
	Header    HeaderMode
}

// DefaultReadOptions reads tab-separated input with header auto-detection.
func DefaultReadOptions() ReadOptions {
	return ReadOptions{Delimiter: '\t', Header: HeaderAuto}
}

// ReadResult is a parsed reaction table.
type ReadResult struct {
	Header    []string
	Reactions []reaction.RawReaction
}

// ReadReactions parses a delimited reaction table. Only the first four
// columns are used. A first line with fewer than four columns is an
// ErrCodeInputShape error. In auto mode the first line is a header when its
// second cell is not SMILES-like. Later rows that are short are padded with
// empty structures.
func ReadReactions(r io.Reader, opts ReadOptions) (*ReadResult, error) {
	if opts.Delimiter == 0 {
		opts.Delimiter = '\t'
	}
	if opts.Header == "" {
		opts.Header = HeaderAuto
	}
	if !ValidHeaderMode(opts.Header) {
		return nil, errors.InvalidParam("unknown header mode").WithDetail(string(opts.Header))
	}

	cr := csv.NewReader(bufio.NewReader(r))
	cr.Comma = opts.Delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	res := &ReadResult{}
	first := true
	for {
		rec, err := cr.Read()
		if stdliberrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInputReadFailed, "reading reaction table")
		}
		cells := cleanRecord(rec)
		if first {
			first = false
			if len(cells) < MinColumns {
				return nil, errors.InputShape("first line needs at least 4 columns: ID, A, B, Product").
					WithDetail(fmt.Sprintf("got %d", len(cells)))
			}
			if isHeader(cells, opts.Header) {
				res.Header = append([]string(nil), cells[:MinColumns]...)
				continue
			}
		}
		if isBlank(cells) {
			continue
		}
		for len(cells) < MinColumns {
			cells = append(cells, "")
		}
		res.Reactions = append(res.Reactions, reaction.RawReaction{
			Position: len(res.Reactions),
			ID:       cells[0],
			A:        cells[1],
			B:        cells[2],
			Product:  cells[3],
		})
	}
	if first {
		return nil, errors.InputShape("reaction table is empty")
	}
	return res, nil
}

func isHeader(cells []string, mode HeaderMode) bool {
	switch mode {
	case HeaderAlways:
		return true
	case HeaderNever:
		return false
	}
	return !chem.IsSMILES(cells[1])
}

// cleanRecord copies rec, NFKC-normalizes and trims every cell.
func cleanRecord(rec []string) []string {
	out := make([]string, len(rec))
	for i, c := range rec {
		out[i] = cleanCell(c)
	}
	return out
}

func cleanCell(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = norm.NFKC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
