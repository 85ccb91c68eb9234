/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the billing engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (YAML file and/or environment)
  2. Build the zap logger
  3. Open the configured store (memory, sqlite or postgres)
  4. Create the accounting service and API handler
  5. Start the resync scheduler when enabled
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to a YAML config file (default: none, environment only)

ENVIRONMENT:
  BILLING_* variables override the file. See config/config.go.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the resync scheduler
  2. Stop accepting new connections
  3. Wait for active requests (http.shutdown_timeout)
  4. Close the store

EXAMPLES:
  # Local YAML config
  ./server -config=config/local.yaml

  # In-memory store, console logs
  BILLING_STORAGE_DRIVER=memory BILLING_LOG_FORMAT=console ./server

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Settings and defaults
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/warp/billing-engine/accounting"
	"github.com/warp/billing-engine/api"
	"github.com/warp/billing-engine/config"
	"github.com/warp/billing-engine/generic"
	"github.com/warp/billing-engine/logger"
	"github.com/warp/billing-engine/store/memory"
	"github.com/warp/billing-engine/store/postgres"
	"github.com/warp/billing-engine/store/sqlite"
)

// store is what every storage driver provides.
type store interface {
	accounting.Repository
	api.Resetter
}

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	repo, closeStore, err := openStore(ctx, cfg.Storage, log.Logger)
	if err != nil {
		log.Fatal("Failed to initialize store", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer closeStore()

	loc, err := cfg.Billing.Location()
	if err != nil {
		log.Fatal("Invalid billing timezone", zap.Error(err))
	}
	svc := accounting.NewService(repo, log.Logger, accounting.Options{
		DefaultCapacity: generic.Hours(cfg.Billing.DailyCapacity),
		Window:          cfg.Billing.Window(),
		Location:        loc,
	})

	handler := api.NewHandler(svc, repo, log.Logger)
	router := api.NewRouter(handler, cfg.HTTP.AllowedOrigins, log.Logger)

	resync := api.NewResyncScheduler(svc, cfg.Resync.Interval, log.Logger)
	resync.Enabled = cfg.Resync.Enabled
	resync.Start()

	server := &http.Server{
		Addr:         cfg.HTTP.Address(),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", server.Addr), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")
	resync.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
}

// openStore returns the configured store and a function that releases it.
func openStore(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (store, func(), error) {
	switch cfg.Driver {
	case config.DriverMemory:
		log.Info("Using in-memory store")
		return memory.NewMemory(), func() {}, nil

	case config.DriverSQLite:
		if cfg.SQLitePath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
				return nil, nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		s, err := sqlite.New(cfg.SQLitePath, log)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil

	case config.DriverPostgres:
		s, err := postgres.Open(ctx, cfg.PostgresURL, log)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
