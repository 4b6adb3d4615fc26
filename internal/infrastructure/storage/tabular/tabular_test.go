package tabular

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/rxntd/internal/domain/descriptor"
	"github.com/turtacn/rxntd/internal/domain/reaction"
	"github.com/turtacn/rxntd/pkg/errors"
)

func TestReadReactions_AutoHeader(t *testing.T) {
	src := "ID\tReactant1\tReactant2\tProduct\tYield\n" +
		"r1\tCC(=O)O\tOCC\tCC(=O)OCC\t88\n" +
		"r2\tCCBr\tO\tCCO\n"
	res, err := ReadReactions(strings.NewReader(src), DefaultReadOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "Reactant1", "Reactant2", "Product"}, res.Header)
	require.Len(t, res.Reactions, 2)
	assert.Equal(t, reaction.RawReaction{Position: 0, ID: "r1", A: "CC(=O)O", B: "OCC", Product: "CC(=O)OCC"}, res.Reactions[0])
	assert.Equal(t, 1, res.Reactions[1].Position)
}

func TestReadReactions_NoHeader(t *testing.T) {
	src := "1\tCCO\tCC(=O)O\tCCOC(C)=O\n2\tc1ccccc1\tBrBr\tBrc1ccccc1\n"
	res, err := ReadReactions(strings.NewReader(src), DefaultReadOptions())
	require.NoError(t, err)
	assert.Nil(t, res.Header)
	require.Len(t, res.Reactions, 2)
	assert.Equal(t, "1", res.Reactions[0].ID)
}

func TestReadReactions_HeaderModes(t *testing.T) {
	src := "1\tCCO\tO\tCCO\n"
	res, err := ReadReactions(strings.NewReader(src), ReadOptions{Header: HeaderAlways})
	require.NoError(t, err)
	assert.Empty(t, res.Reactions)
	assert.NotNil(t, res.Header)

	src = "ID\tA\tB\tP\n"
	res, err = ReadReactions(strings.NewReader(src), ReadOptions{Header: HeaderNever})
	require.NoError(t, err)
	require.Len(t, res.Reactions, 1)
	assert.Equal(t, "ID", res.Reactions[0].ID)

	_, err = ReadReactions(strings.NewReader(src), ReadOptions{Header: "sometimes"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
}

func TestReadReactions_ShortFirstLine(t *testing.T) {
	_, err := ReadReactions(strings.NewReader("1\tCCO\tO\n2\tC\tC\tCC\n"), DefaultReadOptions())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInputShape))
}

func TestReadReactions_Empty(t *testing.T) {
	_, err := ReadReactions(strings.NewReader(""), DefaultReadOptions())
	assert.True(t, errors.IsCode(err, errors.ErrCodeInputShape))
}

func TestReadReactions_PadsShortRowsAndSkipsBlank(t *testing.T) {
	src := "1\tCCO\tO\tCCO\n\t\t\t\n2\tCC\n"
	res, err := ReadReactions(strings.NewReader(src), DefaultReadOptions())
	require.NoError(t, err)
	require.Len(t, res.Reactions, 2)
	assert.Equal(t, reaction.RawReaction{Position: 1, ID: "2", A: "CC"}, res.Reactions[1])
}

func TestReadReactions_CleansCells(t *testing.T) {
	// Fullwidth digits and letters fold under NFKC; BOM and padding go.
	src := "\ufeffＩＤ\tA\tB\tP\n  r１ \t ＣＣＯ\tO\tCCO\r\n"
	res, err := ReadReactions(strings.NewReader(src), DefaultReadOptions())
	require.NoError(t, err)
	assert.Equal(t, "ID", res.Header[0])
	require.Len(t, res.Reactions, 1)
	assert.Equal(t, "r1", res.Reactions[0].ID)
	assert.Equal(t, "CCO", res.Reactions[0].A)
	assert.Equal(t, "CCO", res.Reactions[0].Product)
}

func TestReadReactions_Semicolon(t *testing.T) {
	res, err := ReadReactions(strings.NewReader("1;CCO;O;CCO\n"), ReadOptions{Delimiter: ';'})
	require.NoError(t, err)
	require.Len(t, res.Reactions, 1)
	assert.Equal(t, "O", res.Reactions[0].B)
}

func testSchema() *descriptor.Schema {
	return descriptor.MustSchema(stubFamily{})
}

type stubFamily struct{}

func (stubFamily) Name() string                              { return "stub" }
func (stubFamily) FeatureNames() []string                    { return []string{"C", "O"} }
func (stubFamily) Compute(string) (descriptor.Vector, error) { return descriptor.Vector{0, 0}, nil }

func testRows() []reaction.Row {
	return []reaction.Row{
		{ID: "r1", Position: 0, A: "CC(=O)O", B: "CCO", Product: "CCOC(C)=O", Features: descriptor.Vector{0, -1}},
		{ID: "r3", Position: 2, A: "C", B: "C", Product: "CC", Features: descriptor.Vector{0, 0}},
	}
}

func TestWriteTSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTSV(&buf, testSchema(), testRows()))
	want := "ID\tCompound1\tCompound2\tProduct\tC\tO\n" +
		"r1\tCC(=O)O\tCCO\tCCOC(C)=O\t0\t-1\n" +
		"r3\tC\tC\tCC\t0\t0\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteTSV_ByteIdentical(t *testing.T) {
	var a, b bytes.Buffer
	require.NoError(t, WriteRows(&a, FormatTSV, testSchema(), testRows()))
	require.NoError(t, WriteRows(&b, FormatTSV, testSchema(), testRows()))
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestWriteTSV_WidthMismatch(t *testing.T) {
	rows := []reaction.Row{{ID: "x", Features: descriptor.Vector{1}}}
	err := WriteTSV(&bytes.Buffer{}, testSchema(), rows)
	assert.True(t, errors.IsCode(err, errors.ErrCodeRowCountMismatch))
}

func TestWriteJSONL(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRows(&buf, FormatJSONL, testSchema(), testRows()))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var got jsonRow
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assert.Equal(t, "r1", got.ID)
	assert.Equal(t, "CCO", got.Compound2)
	assert.Equal(t, map[string]int{"C": 0, "O": -1}, got.Features)
}

func TestFormatForPath(t *testing.T) {
	assert.Equal(t, FormatJSONL, FormatForPath("/tmp/out.JSONL"))
	assert.Equal(t, FormatTSV, FormatForPath("/tmp/out.tsv"))
	assert.Equal(t, FormatTSV, FormatForPath("out"))
	assert.Equal(t, "application/x-ndjson", FormatJSONL.ContentType())
}

func TestDefaultOutputPath(t *testing.T) {
	assert.Equal(t, "/data/rxn_TD.tsv", DefaultOutputPath("/data/rxn.txt"))
	assert.Equal(t, "rxn_TD.tsv", DefaultOutputPath("rxn.tsv"))
	assert.Equal(t, "s3://bucket/in/rxn_TD.tsv", DefaultOutputPath("s3://bucket/in/rxn.tsv"))
}
