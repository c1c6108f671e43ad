/*
main.go - Application entry point

PURPOSE:
  The respay command runs the resident payments service and its
  maintenance tasks.

COMMANDS:
  serve         Start the HTTP server and the reminder scheduler
  migrate       Create or upgrade the database schema
  token         Mint a bearer token for a user (development)
  config init   Write the default configuration file

CONFIGURATION:
  --config points at a YAML file. Every key can be overridden from the
  environment: RESPAY_DATABASE_DRIVER=postgres, RESPAY_AUTH_SECRET=...
  See config/config.go.

EXAMPLES:
  # Local development with demo scenarios
  respay config init --path respay.yaml
  RESPAY_SERVER_SCENARIOS=true respay serve --config respay.yaml

  # Against Postgres
  RESPAY_DATABASE_DRIVER=postgres \
  RESPAY_DATABASE_URL=postgres://respay@localhost/respay respay serve

SEE ALSO:
  - serve.go: Server startup and graceful shutdown
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/warp/resident-payments/api"
	"github.com/warp/resident-payments/config"
	"github.com/warp/resident-payments/ledger"
	"github.com/warp/resident-payments/notify"
	"github.com/warp/resident-payments/store/postgres"
	"github.com/warp/resident-payments/store/sqlite"
)

var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "respay",
	Short:         "Resident payments - bank transfer review and notifications",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// backend is everything the service needs from a database.
type backend interface {
	ledger.TxStore
	notify.Store
	api.Backend
	Close() error
}

// openStore opens the configured database. Both drivers migrate on open.
func openStore(ctx context.Context, cfg config.DatabaseConfig) (backend, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		s, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.Path, err)
		}
		return s, nil
	case config.DriverPostgres:
		s, err := postgres.New(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
