/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the vendor invoice engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and environment configuration
  2. Initialize zerolog
  3. Open SQLite store and seed approver membership
  4. Wire the lifecycle service and API handler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for an in-memory database

ENVIRONMENT:
  PORT, DB_PATH, LOG_LEVEL, LOG_FORMAT, LOG_OUTPUT, CORS_ORIGINS,
  SENDBACK_RESUME (restart|level), APPROVER_LEVEL1, APPROVER_LEVEL2
  (comma-separated login ids).

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Environment configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/warp/invoice-engine/api"
	"github.com/warp/invoice-engine/config"
	"github.com/warp/invoice-engine/engine"
	"github.com/warp/invoice-engine/logging"
	"github.com/warp/invoice-engine/store/sqlite"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := logging.Setup(cfg.GetLoggerConfig()); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	logger := logging.WithComponent("server")

	port := flag.String("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.SeedMembership(ctx, cfg.ApproverLevel1, cfg.ApproverLevel2); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed approver membership")
	}

	lc := engine.NewLifecycle(store, store)
	lc.ResumeFromSentBack = cfg.ResumeFromSentBack()

	handler := api.NewHandler(lc, store, store, logging.WithComponent("api"))
	router := api.NewRouter(handler, logging.WithComponent("http"), cfg.CORSOrigins)

	srv := &http.Server{
		Addr:    ":" + *port,
		Handler: router,
	}

	go func() {
		logger.Info().
			Str("port", *port).
			Str("db", *dbPath).
			Str("sendbackResume", cfg.SendBackResume).
			Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}
	logger.Info().Msg("server stopped")
}
