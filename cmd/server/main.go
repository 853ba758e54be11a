/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the batch inventory engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (environment + optional .env)
  2. Initialize logger
  3. Initialize SQLite store
  4. Create API handler with domain services
  5. Start background sweep scheduler
  6. Start HTTP server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the sweep scheduler
  4. Close database connection
  5. Exit

CONFIGURATION:
  All via environment variables; see config/config.go.

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Background sweeps
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

	"github.com/warp/inventory-engine/api"
	"github.com/warp/inventory-engine/config"
	"github.com/warp/inventory-engine/inventory"
	"github.com/warp/inventory-engine/logging"
	"github.com/warp/inventory-engine/store/sqlite"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("db_path", cfg.DBPath).Msg("failed to initialize database")
	}
	defer store.Close()

	handler := api.NewHandler(store, inventory.SystemClock{}, logging.Component(logger, "api"))
	handler.Lifecycle.AlertHorizon = cfg.AlertHorizon
	handler.OpeningStock.EditWindow = cfg.EditWindow

	scheduler := api.NewSweepScheduler(handler, logging.Component(logger, "scheduler"))
	scheduler.LifecycleInterval = cfg.LifecycleSweepInterval
	scheduler.SnapshotInterval = cfg.SnapshotSweepInterval
	scheduler.Start()
	defer scheduler.Stop()

	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Port).Str("db_path", cfg.DBPath).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
