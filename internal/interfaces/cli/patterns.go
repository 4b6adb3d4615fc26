package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/rxntd/internal/domain/descriptor"
)

type patternEntry struct {
	Index  int    `json:"index" yaml:"index"`
	Name   string `json:"name" yaml:"name"`
	SMARTS string `json:"smarts" yaml:"smarts"`
}

type patternListing []patternEntry

func (l patternListing) TableHeaders() []string { return []string{"#", "NAME", "SMARTS"} }

func (l patternListing) TableRows() [][]string {
	rows := make([][]string, len(l))
	for i, p := range l {
		rows[i] = []string{strconv.Itoa(p.Index), p.Name, p.SMARTS}
	}
	return rows
}

func newPatternsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "patterns",
		Short: "List the fragment patterns in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			var table *descriptor.PatternTable
			if path := cc.Config.Pipeline.PatternTable; path != "" {
				table, err = descriptor.LoadPatternTableFile(path)
			} else {
				table, err = descriptor.DefaultPatternTable()
			}
			if err != nil {
				return err
			}
			patterns := table.Patterns()
			out := make(patternListing, len(patterns))
			for i, p := range patterns {
				out[i] = patternEntry{Index: i, Name: p.Name, SMARTS: p.SMARTS}
			}
			return PrintResult(cmd, out)
		},
	}
}
