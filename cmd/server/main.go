/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the farm management server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Resolve config (flags, FARMENGINE_* env, optional YAML file)
  2. Build the zap logger at the configured level
  3. Open the SQLite store
  4. Wire domain services, token manager and router
  5. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server --db-path=./data/farm.db --jwt-secret=changeme

  # Run with in-memory database and the demo seed route
  ./server --db-path=":memory:" --jwt-secret=changeme --demo-seed

SEE ALSO:
  - config/config.go: Key reference
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/acrefield/farm-engine/api"
	"github.com/acrefield/farm-engine/config"
	"github.com/acrefield/farm-engine/farm"
	"github.com/acrefield/farm-engine/notify"
	"github.com/acrefield/farm-engine/store/sqlite"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "server",
		Short: "Farm management API server",
		Long: `Runs the HTTP API for multi-tenant farm management: workers, shifts,
time off, payroll, task efficiency and herd health, with role-based
access control on every operation.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}
	config.RegisterFlags(rootCmd.Flags())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer store.Close()

	// Wire services and router
	dispatcher := &notify.LogDispatcher{Log: log.Named("notify")}
	services := farm.NewServices(store, log.Named("farm"), dispatcher, nil)
	tokens := api.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer)
	handler := api.NewHandler(services, log.Named("api"))
	router := api.NewRouter(handler, tokens, api.RouterConfig{
		AllowedOrigins: cfg.CORSOrigins,
		EnableDemoSeed: cfg.DemoSeed,
	})

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", cfg.Addr), zap.String("db", cfg.DBPath))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
