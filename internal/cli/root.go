// Package cli defines the baserow-bridge command line.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"baserow-bridge/internal/app"
)

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type globalFlags struct {
	envFile  string
	logLevel string
}

func (g *globalFlags) options() app.Options {
	return app.Options{EnvFile: g.envFile, LogLevel: g.logLevel}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	run := runCmd(flags)

	cmd := &cobra.Command{
		Use:          "baserow-bridge",
		Short:        "Export matching Baserow rows to an n8n webhook",
		SilenceUsage: true,
		// Without a subcommand the bridge performs one run.
		RunE: run.RunE,
	}

	cmd.PersistentFlags().StringVar(&flags.envFile, "env-file", "", "env file to load before reading the environment (default .env, optional)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override LOG_LEVEL (debug|info|warn|error)")
	cmd.Flags().AddFlagSet(run.Flags())

	cmd.AddCommand(run, serveCmd(flags), checkCmd(flags), tokenCmd(flags))
	return cmd
}
