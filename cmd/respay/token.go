package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/warp/resident-payments/auth"
	"github.com/warp/resident-payments/config"
)

var (
	tokenUser string
	tokenRole string
	tokenUnit string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token (development)",
	Long: `Sign a bearer token with the configured auth.secret. In production
tokens come from the identity provider; this is for local testing.

Examples:
  respay token --user user-alice --role resident --unit a-101
  respay token --user staff-demo --role staff`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id (token subject)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(auth.RoleResident), "resident, staff or admin")
	tokenCmd.Flags().StringVar(&tokenUnit, "unit", "", "unit the user belongs to")
	_ = tokenCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	tokens := auth.NewTokens(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	tok, err := tokens.Issue(auth.Actor{ID: tokenUser, Role: auth.Role(tokenRole), UnitRef: tokenUnit})
	if err != nil {
		return fmt.Errorf("role %q: %w", tokenRole, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
