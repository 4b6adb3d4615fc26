package cli

import (
	"context"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/rxntd/internal/application/transform"
	"github.com/turtacn/rxntd/internal/domain/reaction"
	"github.com/turtacn/rxntd/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxntd/internal/infrastructure/storage/tabular"
)

// computeReport describes one finished compute.
type computeReport struct {
	RunID     string `json:"run_id" yaml:"run_id"`
	Input     string `json:"input" yaml:"input"`
	Output    string `json:"output" yaml:"output"`
	InputRows int    `json:"input_rows" yaml:"input_rows"`
	Rows      int    `json:"rows" yaml:"rows"`
	Dropped   []int  `json:"dropped_positions" yaml:"dropped_positions"`
	Elapsed   string `json:"elapsed" yaml:"elapsed"`

	summary *reaction.RunSummary
}

func (r *computeReport) TableHeaders() []string {
	return []string{"RUN", "INPUT", "OUTPUT", "INPUT ROWS", "ROWS", "DROPPED", "ELAPSED"}
}

func (r *computeReport) TableRows() [][]string {
	dropped := make([]string, len(r.Dropped))
	for i, p := range r.Dropped {
		dropped[i] = strconv.Itoa(p)
	}
	return [][]string{{
		r.RunID, r.Input, r.Output,
		strconv.Itoa(r.InputRows), strconv.Itoa(r.Rows),
		strings.Join(dropped, ","), r.Elapsed,
	}}
}

func newComputeCmd() *cobra.Command {
	var (
		output string
		opts   pipelineOptions
	)

	cmd := &cobra.Command{
		Use:   "compute <input>",
		Short: "Compute transform descriptors for a reaction table",
		Long: "Reads a table of ID, reactant 1, reactant 2 and product SMILES and writes\n" +
			"one descriptor row per valid reaction. Paths may be local or s3://bucket/key.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := batchContext(cmd, cc)
			defer cancel()

			p, err := buildPipeline(ctx, cc, opts)
			if err != nil {
				return err
			}
			defer p.Close(ctx)

			report, err := p.compute(ctx, args[0], output)
			if err != nil {
				return err
			}
			return PrintResult(cmd, report)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default: <input base>_TD.tsv)")
	cmd.Flags().BoolVar(&opts.Postgres, "postgres", false, "also write rows to the postgres feature sink")
	cmd.Flags().BoolVar(&opts.Publish, "publish", false, "publish a run-completed event to kafka")
	return cmd
}

func (p *pipeline) tableIO() *tableIO {
	return &tableIO{
		objects: p.objects,
		readOptions: tabular.ReadOptions{
			Delimiter: p.cfg.DelimiterRune(),
			Header:    tabular.HeaderMode(p.cfg.Pipeline.InputHeader),
		},
		outputFormat: tabular.Format(p.cfg.Pipeline.OutputFormat),
	}
}

// compute reads input, runs the pipeline and writes output. An empty output
// selects the default path next to the input.
func (p *pipeline) compute(ctx context.Context, input, output string) (*computeReport, error) {
	if output == "" {
		output = tabular.DefaultOutputPath(input)
	}
	tio := p.tableIO()

	table, err := tio.Read(ctx, input)
	if err != nil {
		return nil, err
	}
	p.logger.Info("input read",
		logging.String("input", input),
		logging.Int("reactions", len(table.Reactions)))

	res, err := p.Service().Run(ctx, &transform.RunRequest{Source: input, Reactions: table.Reactions})
	if err != nil {
		return nil, err
	}
	if err := tio.Write(ctx, output, res.Schema, res.Rows); err != nil {
		return nil, err
	}
	p.logger.Info("output written",
		logging.String(logging.FieldRunID, res.RunID),
		logging.String("output", output),
		logging.Int("rows", len(res.Rows)))

	return &computeReport{
		RunID:     res.RunID,
		Input:     input,
		Output:    output,
		InputRows: res.Summary.InputRows,
		Rows:      len(res.Rows),
		Dropped:   res.Dropped,
		Elapsed:   res.Summary.Duration().String(),
		summary:   res.Summary,
	}, nil
}
