package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/claimlens/claimlens/internal/batch"
)

func newBatchCmd(o *rootOptions) *cobra.Command {
	var (
		workers int
		rps     float64
		format  string
		output  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "batch <file.csv>",
		Short: "Analyze every claim in a CSV file",
		Long: `Batch analyzes a CSV with a "description" column (optional "claim_id"
and "actual_severity") using a bounded worker pool. Results keep input order.

Example:
  claimlens batch sample_claims.csv
  claimlens batch claims.csv --workers 8 --format csv --output results.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := batch.ReadClaimsFile(args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("workers") {
				o.cfg.Batch.Workers = workers
			}
			if cmd.Flags().Changed("rps") {
				o.cfg.Batch.RequestsPerSecond = rps
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			a, err := buildApp(ctx, o.cfg, o.version)
			if err != nil {
				return err
			}
			defer a.Close()

			runner := batch.NewRunner(a.analyzer, batch.Options{
				Workers:  o.cfg.Batch.Workers,
				Limiter:  batch.NewLimiter(o.cfg.Batch.RequestsPerSecond, o.cfg.Batch.Burst),
				Recorder: a.metrics,
			})
			rep, runErr := runner.Run(ctx, in)

			var out io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer func() { _ = f.Close() }()
				out = f
			}
			if rep != nil {
				if err := batch.WriteResults(out, format, rep.Items); err != nil {
					return fmt.Errorf("write results: %w", err)
				}
				printBatchSummary(cmd.ErrOrStderr(), rep)
			}
			return runErr
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "number of concurrent workers (overrides batch.workers)")
	cmd.Flags().Float64Var(&rps, "rps", 0, "max analyses per second, 0 for unlimited (overrides batch.requests_per_second)")
	cmd.Flags().StringVar(&format, "format", "jsonl", "output format: jsonl or csv")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "total timeout for the batch")
	return cmd
}

func printBatchSummary(w io.Writer, rep *batch.Report) {
	fmt.Fprintf(w, "run %s: %d claims, %d failed, %s\n", rep.RunID, len(rep.Items), rep.Failed, rep.Duration.Round(time.Millisecond))
	if rep.Agreement != nil {
		fmt.Fprintf(w, "severity agreement: %d/%d (%.1f%%)\n", rep.Agreement.Matched, rep.Agreement.Compared, rep.Agreement.Rate*100)
	}
}
