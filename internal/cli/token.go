package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"live-quiz-service/internal/auth"
	"live-quiz-service/internal/config"
)

// NewTokenCmd mints an admin token signed with the configured secret.
func NewTokenCmd(configPath *string) *cobra.Command {
	var ttl string
	cmd := &cobra.Command{
		Use:   "token <admin-id>",
		Short: "Issue an admin token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwtSecret not configured")
			}
			lifetime := config.TTLDuration(ttl, cfg.TokenTTL())
			token, err := auth.NewTokenService(cfg.Auth.JWTSecret, lifetime, nil).Generate(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&ttl, "ttl", "", "token lifetime (defaults to auth.tokenTTL)")
	return cmd
}
