package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"subquestion-challenge-service/internal/auth"
	"subquestion-challenge-service/internal/config"
)

// NewTokenCmd mints a bearer token for local testing.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		userID int64
		teamID int64
		admin  bool
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a signed bearer token for an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.Secret == "" {
				return fmt.Errorf("auth secret not configured")
			}
			tok, err := auth.NewAuthenticator(cfg.Auth.Secret, cfg.TokenTTL()).Issue(userID, teamID, admin)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 1, "user id")
	cmd.Flags().Int64Var(&teamID, "team", 0, "team id (0 for individual play)")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant admin access")
	return cmd
}
