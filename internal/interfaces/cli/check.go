package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/rxntd/internal/application/transform"
	"github.com/turtacn/rxntd/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxntd/pkg/errors"
)

type checkListing []transform.CheckResult

func (l checkListing) TableHeaders() []string {
	return []string{"INPUT", "VALID", "CANONICAL", "ERROR"}
}

func (l checkListing) TableRows() [][]string {
	rows := make([][]string, len(l))
	for i, r := range l {
		rows[i] = []string{r.Input, strconv.FormatBool(r.Valid), r.Canonical, r.Error}
	}
	return rows
}

func newCheckCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "check <smiles>...",
		Short: "Standardize structures and report which are valid",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := batchContext(cmd, cc)
			defer cancel()

			p, err := buildPipeline(ctx, cc, pipelineOptions{})
			if err != nil {
				return err
			}
			defer p.Close(ctx)

			results, err := p.Service().Check(ctx, args)
			if err != nil {
				return err
			}
			if err := PrintResult(cmd, checkListing(results)); err != nil {
				return err
			}

			invalid := 0
			for _, r := range results {
				if !r.Valid {
					invalid++
				}
			}
			if invalid > 0 {
				p.logger.Debug("invalid structures", logging.Int("count", invalid))
				if strict {
					return errors.Newf(errors.ErrCodeValidation, "%d of %d structures are invalid", invalid, len(results))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero if any structure is invalid")
	return cmd
}
