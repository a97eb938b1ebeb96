package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"baserow-bridge/internal/app"
	"baserow-bridge/internal/auth"
	"baserow-bridge/internal/common/errors"
)

func tokenCmd(flags *globalFlags) *cobra.Command {
	var subject string
	var ttl time.Duration

	c := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for POST /runs, signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, cleanup, err := app.Bootstrap(flags.options())
			if err != nil {
				return err
			}
			defer cleanup()

			if !cfg.APIAuthEnabled() {
				return errors.ConfigError("JWT_SECRET is not set, POST /runs accepts any caller")
			}
			a, err := auth.New(cfg.JWTSecret, nil)
			if err != nil {
				return err
			}
			token, err := a.GenerateJWT(subject, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	c.Flags().StringVar(&subject, "subject", "operator", "subject recorded in the token")
	c.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime")
	return c
}
