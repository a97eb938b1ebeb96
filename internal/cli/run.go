package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"baserow-bridge/internal/app"
	"baserow-bridge/internal/history"
)

func runCmd(flags *globalFlags) *cobra.Command {
	var dryRun, failOnBatchErrors bool
	var format string

	c := &cobra.Command{
		Use:   "run",
		Short: "Fetch, filter and dispatch once, then exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := flags.options()
			opts.DryRun = dryRun

			cfg, cleanup, err := app.Bootstrap(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			run, err := app.RunOnce(cmd.Context(), cfg)
			if run != nil {
				if perr := printRun(cmd.OutOrStdout(), run, format); perr != nil && err == nil {
					err = perr
				}
			}
			if err != nil {
				return err
			}
			if failOnBatchErrors && run.BatchesFailed > 0 {
				return fmt.Errorf("run finished with %d failed batch(es)", run.BatchesFailed)
			}
			return nil
		},
	}

	c.Flags().BoolVar(&dryRun, "dry-run", false, "build records but do not POST them")
	c.Flags().StringVar(&format, "format", "pretty", "summary format: pretty|json|none")
	c.Flags().BoolVar(&failOnBatchErrors, "fail-on-batch-errors", false, "exit non-zero when any batch failed")
	return c
}

func printRun(w io.Writer, run *history.Run, format string) error {
	switch format {
	case "none":
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	case "pretty", "":
		status := "ok"
		if !run.Succeeded() {
			status = "failed: " + run.Error
		}
		_, err := fmt.Fprintf(w,
			"run %s %s\n  rows fetched %d, matched %d\n  records %d (empty %d, invalid %d)\n  %s dispatch: %d/%d batches ok, %d records delivered%s\n  took %s\n",
			run.ID, status,
			run.RowsFetched, run.RowsMatched,
			run.RecordsBuilt, run.EmptyDomains, run.InvalidDomains,
			run.Mode, run.BatchesTotal-run.BatchesFailed, run.BatchesTotal, run.RecordsDelivered, dryRunSuffix(run.DryRun),
			run.Duration(),
		)
		return err
	default:
		return fmt.Errorf("unknown format %q (expected pretty|json|none)", format)
	}
}

func dryRunSuffix(dry bool) string {
	if dry {
		return " (dry run)"
	}
	return ""
}
