/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the warehouse engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Build the logger
  3. Open the snapshot store for the configured driver
  4. Load the startup snapshot, or create it when missing
  5. Apply the optional import file
  6. Configure the HTTP router and start autosave
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port      HTTP server port (default: 8080)
  -store     Snapshot store: file, sqlite or memory (default: file)
  -data      Snapshot directory for the file store (default: ./data)
  -db        SQLite database path (default: ./data/warehouse.db)
  -state     Snapshot loaded at startup (default: warehouse)
  -import    Text file imported at startup
  -autosave  Autosave interval, 0 disables (default: 1m)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop autosave, which saves pending changes
  4. Close the snapshot store
  5. Exit

EXAMPLES:
  # Run with zstd snapshot files under ./data
  ./server -data=./data

  # Run against SQLite, seeding from an import file
  ./server -store=sqlite -db=./data/warehouse.db -import=seed.txt

  # Run without persistence
  ./server -store=memory -port=3000

SEE ALSO:
  - config/config.go: Environment variables and flags
  - api/server.go: Router configuration
  - manager/manager.go: Live warehouse and persistence
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/warehouse-engine/api"
	"github.com/warp/warehouse-engine/config"
	"github.com/warp/warehouse-engine/manager"
	"github.com/warp/warehouse-engine/pkg/logger"
	"github.com/warp/warehouse-engine/store/file"
	"github.com/warp/warehouse-engine/store/memory"
	"github.com/warp/warehouse-engine/store/sqlite"
	"github.com/warp/warehouse-engine/warehouse"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(2)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: !cfg.IsProduction()})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Errorw("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx := logger.WithLogger(context.Background(), log)

	// Initialize store
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.StoreDriver, err)
	}
	defer closeStore()

	m := manager.New(store, log.WithComponent("manager"))
	if err := openState(ctx, m, store, cfg.StateName); err != nil {
		return err
	}
	if cfg.ImportFile != "" {
		if err := m.ImportFile(ctx, cfg.ImportFile); err != nil {
			return fmt.Errorf("failed to import %s: %w", cfg.ImportFile, err)
		}
	}

	// Create router
	router := api.NewRouter(api.NewHandler(m), log)

	autosave := api.NewAutosaveScheduler(m, log)
	autosave.CheckInterval = cfg.AutosaveInterval
	autosave.Start()
	defer autosave.Stop()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Infow("server starting", "addr", "http://localhost:"+cfg.Port, "store", cfg.StoreDriver, "state", cfg.StateName)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}

func openStore(cfg *config.Config) (warehouse.SnapshotStore, func() error, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.DriverMemory:
		return memory.New(), func() error { return nil }, nil
	default:
		s, err := file.New(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
}

// openState loads the named snapshot, or associates a fresh warehouse with
// it when nothing has been saved under that name yet.
func openState(ctx context.Context, m *manager.Manager, store warehouse.SnapshotStore, name string) error {
	if name == "" {
		return nil
	}
	exists, err := store.Exists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to look up %s: %w", name, err)
	}
	if exists {
		return m.Load(ctx, name)
	}
	return m.SaveAs(ctx, name)
}
