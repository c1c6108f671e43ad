package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/warp/resident-payments/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	Long: `Apply pending schema migrations and exit.

serve migrates on startup as well; run this from deploy pipelines that
keep schema changes out of the serving path.

Examples:
  respay migrate
  RESPAY_DATABASE_DRIVER=postgres RESPAY_DATABASE_URL=postgres://... respay migrate`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := openStore(context.Background(), cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "Schema up to date (%s)\n", cfg.Database.Driver)
	return nil
}
