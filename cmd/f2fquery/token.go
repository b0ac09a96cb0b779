package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/f2freport-api/internal/service"
)

func newTokenCommand(load configLoader) *cobra.Command {
	var (
		userID       int64
		email        string
		capabilities []string
		ttl          time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an access token with the configured JWT secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if len(capabilities) == 0 {
				capabilities = []string{cfg.Report.ViewCapability}
			}
			auth := service.NewAuthService(nil, service.AuthConfig{
				AccessTokenSecret: cfg.JWT.Secret,
				Issuer:            cfg.JWT.Issuer,
			})
			token, err := auth.IssueToken(userID, email, capabilities, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 2, "User id")
	cmd.Flags().StringVar(&email, "email", "", "User email")
	cmd.Flags().StringSliceVar(&capabilities, "capability", nil, "Granted capabilities (defaults to REPORT_CAPABILITY)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")

	return cmd
}
