package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/warp/resident-payments/api"
	"github.com/warp/resident-payments/auth"
	"github.com/warp/resident-payments/config"
	"github.com/warp/resident-payments/dispatch"
	"github.com/warp/resident-payments/ledger"
	"github.com/warp/resident-payments/live"
	"github.com/warp/resident-payments/notify"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP API, the live notification stream and the due
reminder scheduler.

On SIGINT/SIGTERM the server stops accepting connections, waits for
active requests (server.shutdown_timeout), stops the scheduler and
closes the database.

Examples:
  respay serve
  respay serve --config respay.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	ctx := context.Background()

	// Initialize store
	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	// Core services
	authz := auth.NewRoleAuthorizer()
	inbox, err := notify.NewInbox(store, authz, cfg.Dispatch.Node)
	if err != nil {
		return err
	}
	hub := live.NewHub(cfg.Live.Buffer)
	audiences := buildAudiences(cfg)

	disp, err := dispatch.New(inbox, hub, audiences, cfg.Dispatch.DedupSize)
	if err != nil {
		return err
	}
	l := ledger.New(store, authz, disp)

	// Initialize handler
	handler := api.NewHandler(store, l, inbox, hub, disp)
	handler.KeepAlive = cfg.Live.KeepAlive

	router := api.NewRouter(handler, auth.NewTokens(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TokenTTL), api.RouterOptions{
		CORSOrigins: cfg.Server.CORSOrigins,
		Scenarios:   cfg.Server.Scenarios,
	})

	// Reminders
	scheduler := api.NewReminderScheduler(l, disp, audiences)
	scheduler.CheckInterval = cfg.Reminders.Interval
	scheduler.DaysBefore = cfg.Reminders.DaysBefore
	scheduler.Enabled = cfg.Reminders.Enabled
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s (database: %s)", cfg.Server.Addr, cfg.Database.Driver)
		if cfg.Server.Scenarios {
			log.Printf("Demo scenarios enabled at /api/scenarios")
		}
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-quit:
	}

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// buildAudiences resolves broadcast audiences from config. With scenarios
// enabled the demo residents are added, config entries taking precedence.
func buildAudiences(cfg *config.Config) dispatch.StaticAudiences {
	out := dispatch.StaticAudiences{}
	if cfg.Server.Scenarios {
		for k, v := range api.DemoAudiences() {
			out[k] = v
		}
	}
	for k, v := range cfg.Audiences {
		out[k] = v
	}
	return out
}
