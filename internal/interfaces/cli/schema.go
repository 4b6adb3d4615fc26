package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/rxntd/internal/config"
	"github.com/turtacn/rxntd/internal/domain/descriptor"
)

type schemaColumn struct {
	Index  int    `json:"index" yaml:"index"`
	Name   string `json:"name" yaml:"name"`
	Family string `json:"family" yaml:"family"`
}

type schemaListing []schemaColumn

func (l schemaListing) TableHeaders() []string { return []string{"#", "FAMILY", "COLUMN"} }

func (l schemaListing) TableRows() [][]string {
	rows := make([][]string, len(l))
	for i, c := range l {
		rows[i] = []string{strconv.Itoa(c.Index), c.Family, c.Name}
	}
	return rows
}

// describeSchema lists the output columns in order. Identity columns carry
// the family "identity".
func describeSchema(cfg *config.Config) (schemaListing, error) {
	families, err := buildFamilies(cfg)
	if err != nil {
		return nil, err
	}
	schema, err := descriptor.NewSchema(families...)
	if err != nil {
		return nil, err
	}

	var out schemaListing
	for _, name := range descriptor.IdentityColumns {
		out = append(out, schemaColumn{Index: len(out), Name: name, Family: "identity"})
	}
	for _, family := range schema.Families() {
		names, _, _ := schema.FamilyColumns(family)
		for _, name := range names {
			out = append(out, schemaColumn{Index: len(out), Name: name, Family: family})
		}
	}
	return out, nil
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "List the output columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			listing, err := describeSchema(cc.Config)
			if err != nil {
				return err
			}
			return PrintResult(cmd, listing)
		},
	}
}
