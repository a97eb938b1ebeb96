package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"baserow-bridge/internal/app"
)

func checkCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, cleanup, err := app.Bootstrap(flags.options())
			if err != nil {
				return err
			}
			defer cleanup()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "configuration ok")
			fmt.Fprintf(out, "  source:   %s\n", redactedSource(cfg.SourceURL()))
			fmt.Fprintf(out, "  status:   %s %s %q (filter %s)\n", cfg.StatusField, cfg.StatusMatch, cfg.TargetStatus, filterLabel(cfg.ServerSideFilter()))
			fmt.Fprintf(out, "  domain:   %s (strict %t)\n", cfg.DomainField, cfg.StrictDomains)
			fmt.Fprintf(out, "  dispatch: %s", cfg.DispatchMode)
			if cfg.Batched() {
				fmt.Fprintf(out, ", %d per batch every %s", cfg.BatchSize, cfg.BatchInterval)
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "  history:  %s\n", historyLabel(cfg.HistoryEnabled(), cfg.HistoryDriver))
			if cfg.RunLockEnabled() {
				fmt.Fprintf(out, "  lock:     %s on %s (ttl %s)\n", cfg.RunLockKey(), cfg.RedisAddr, cfg.RunLockTTL)
			} else {
				fmt.Fprintln(out, "  lock:     off")
			}
			fmt.Fprintf(out, "  api auth: %s\n", onOff(cfg.APIAuthEnabled()))
			return nil
		},
	}
}

func filterLabel(server bool) string {
	if server {
		return "server"
	}
	return "client"
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func historyLabel(enabled bool, driver string) string {
	if !enabled {
		return "off"
	}
	return driver
}

func redactedSource(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}
