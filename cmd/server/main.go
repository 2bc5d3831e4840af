/*
main.go - HTTP replay service entry point

PURPOSE:
  Starts the replay API. Each upload is replayed by its own engine; when a
  database path is configured the reports are saved to SQLite.

STARTUP SEQUENCE:
  1. Parse command-line flags and the optional YAML config
  2. Initialize the SQLite report store (if configured)
  3. Create API handler and router
  4. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config     YAML config file (optional)
  -addr       listen address (overrides config, default ":8080")
  -db         SQLite path for run reports (overrides config)
              Use ":memory:" for an in-memory database
  -log-level  debug, info, warn, error (overrides config)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (http.shutdown_timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  ./server -db=./runs.db
  curl --data-binary @transactions.csv -H 'Accept: text/csv' localhost:8080/api/runs

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - config/config.go: YAML config
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/warp/payments-engine/api"
	"github.com/warp/payments-engine/config"
	"github.com/warp/payments-engine/observability"
	"github.com/warp/payments-engine/store/sqlite"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	addr := flag.String("addr", "", "HTTP listen address")
	dbPath := flag.String("db", "", "SQLite database path for run reports")
	logLevel := flag.String("log-level", "", "log level (debug, info, warn, error)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := observability.NewLogger(os.Stderr, "server", "info")
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}
	if *dbPath != "" {
		cfg.SQLite.Path = *dbPath
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	log := observability.NewLogger(os.Stderr, "server", cfg.LogLevel)

	// A nil *sqlite.Store must not reach the handler as a non-nil interface.
	var store api.RunStore
	if cfg.SQLite.Path != "" {
		s, err := sqlite.New(cfg.SQLite.Path)
		if err != nil {
			log.Fatal().Err(err).Str("db", cfg.SQLite.Path).Msg("failed to initialize database")
		}
		defer s.Close()
		store = s
	}

	handler := api.NewHandler(store, log, cfg.HTTP.MaxBodyBytes)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Bool("store", store != nil).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}
