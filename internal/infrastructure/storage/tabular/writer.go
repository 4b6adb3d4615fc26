package tabular

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/turtacn/rxntd/internal/domain/descriptor"
	"github.com/turtacn/rxntd/internal/domain/reaction"
	"github.com/turtacn/rxntd/pkg/errors"
)

// Format is an output encoding.
type Format string

const (
	FormatTSV   Format = "tsv"
	FormatJSONL Format = "jsonl"
)

// OutputSuffix is appended to the input base name to form the default output.
const OutputSuffix = "_TD.tsv"

// FormatForPath selects JSON lines for ".jsonl" paths and TSV otherwise.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		return FormatJSONL
	}
	return FormatTSV
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatJSONL {
		return "application/x-ndjson"
	}
	return "text/tab-separated-values"
}

// DefaultOutputPath returns "<dir>/<base>_TD.tsv" for an input path. It
// works for local paths and object keys alike.
func DefaultOutputPath(input string) string {
	dir, file := splitPath(input)
	base := strings.TrimSuffix(file, filepath.Ext(file))
	return dir + base + OutputSuffix
}

func splitPath(p string) (dir, file string) {
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return "", p
	}
	return p[:i+1], p[i+1:]
}

// WriteRows encodes rows in format f.
func WriteRows(w io.Writer, f Format, schema *descriptor.Schema, rows []reaction.Row) error {
	switch f {
	case FormatJSONL:
		return WriteJSONL(w, schema, rows)
	default:
		return WriteTSV(w, schema, rows)
	}
}

// WriteTSV writes the schema header and one tab-separated line per row.
func WriteTSV(w io.Writer, schema *descriptor.Schema, rows []reaction.Row) error {
	bw := bufio.NewWriter(w)
	cw := csv.NewWriter(bw)
	cw.Comma = '\t'

	if err := cw.Write(schema.Header()); err != nil {
		return errors.Wrap(err, errors.ErrCodeOutputWriteFailed, "writing header")
	}
	record := make([]string, 0, len(descriptor.IdentityColumns)+schema.Width())
	for _, r := range rows {
		if len(r.Features) != schema.Width() {
			return errors.RowCountMismatch("row features", schema.Width(), len(r.Features))
		}
		record = append(record[:0], r.ID, r.A, r.B, r.Product)
		for _, v := range r.Features {
			record = append(record, strconv.Itoa(v))
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, errors.ErrCodeOutputWriteFailed, "writing row").WithDetail(r.ID)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Wrap(err, errors.ErrCodeOutputWriteFailed, "flushing rows")
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrCodeOutputWriteFailed, "flushing rows")
	}
	return nil
}

// jsonRow is the JSON lines encoding of one row. Features are keyed by
// column name.
type jsonRow struct {
	ID        string         `json:"id"`
	Position  int            `json:"position"`
	Compound1 string         `json:"compound1"`
	Compound2 string         `json:"compound2"`
	Product   string         `json:"product"`
	Features  map[string]int `json:"features"`
}

// WriteJSONL writes one JSON object per row.
func WriteJSONL(w io.Writer, schema *descriptor.Schema, rows []reaction.Row) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	cols := schema.Columns()
	for _, r := range rows {
		if len(r.Features) != len(cols) {
			return errors.RowCountMismatch("row features", len(cols), len(r.Features))
		}
		jr := jsonRow{
			ID:        r.ID,
			Position:  r.Position,
			Compound1: r.A,
			Compound2: r.B,
			Product:   r.Product,
			Features:  make(map[string]int, len(cols)),
		}
		for i, c := range cols {
			jr.Features[c] = r.Features[i]
		}
		if err := enc.Encode(jr); err != nil {
			return errors.Wrap(err, errors.ErrCodeOutputWriteFailed, "encoding row").WithDetail(r.ID)
		}
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrCodeOutputWriteFailed, "flushing rows")
	}
	return nil
}
