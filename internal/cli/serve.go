package cli

import (
	"github.com/spf13/cobra"

	"baserow-bridge/internal/app"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run on SCHEDULE and serve /health and /runs on LISTEN_ADDR",
		Long: `Run the pipeline on the SCHEDULE cron expression and serve a status API:

  GET  /health       liveness and whether a run is in progress
  GET  /runs?limit=N recent runs from history, or the last run
  POST /runs         start a run now (202, or 409 while one is running)

When JWT_SECRET is set, POST /runs requires "Authorization: Bearer <token>"
with a token printed by the token command.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, cleanup, err := app.Bootstrap(flags.options())
			if err != nil {
				return err
			}
			defer cleanup()

			return app.Serve(cmd.Context(), cfg)
		},
	}
}
