/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the auto-funding server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load config (file + environment)
  2. Initialize SQLite store
  3. Create planner, budget service and API handler
  4. Start the funding scheduler
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML config file (default: $AUTOFUND_CONFIG, else env only)
  -addr    HTTP listen address, overrides http_server.address
  -db      SQLite database path, overrides storage_path
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with a config file
  ./server -config=./config/local.yaml

  # Run with in-memory database
  ./server -db=":memory:"

  # Run on different port
  ./server -addr=:3000

ENVIRONMENT:
  AUTOFUND_* variables, see config/config.go.

SEE ALSO:
  - config/config.go: Configuration
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/warp/autofund/api"
	"github.com/warp/autofund/budget"
	"github.com/warp/autofund/config"
	"github.com/warp/autofund/funding"
	"github.com/warp/autofund/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", os.Getenv(config.EnvPath), "YAML config file")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg := config.MustLoad(*configPath)
	if *addr != "" {
		cfg.HTTPServer.Address = *addr
	}
	if *dbPath != "" {
		cfg.StoragePath = *dbPath
	}
	log.Printf("Starting auto-funding server (env=%s)", cfg.Env)

	// Initialize store
	if cfg.StoragePath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.StoragePath), 0o755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
	}
	store, err := sqlite.New(cfg.StoragePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Planner and service. Both values were checked by config.Validate.
	threshold, _ := cfg.LowCashThreshold()
	income, _ := cfg.DefaultIncome()

	svc := budget.NewService(store, &funding.Planner{LowCashThreshold: threshold})
	svc.DefaultIncome = income

	handler := api.NewHandler(store, svc)

	// Scheduler
	scheduler := api.NewFundingScheduler(store, svc)
	scheduler.Enabled = cfg.Scheduler.Enabled
	scheduler.CheckInterval = cfg.Scheduler.CheckInterval
	handler.Scheduler = scheduler
	scheduler.Start()

	// Create router
	router := api.NewRouter(handler, cfg.CORSOrigins)

	// Create server
	server := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on %s", cfg.HTTPServer.Address)
		log.Printf("API available at %s/api", cfg.HTTPServer.Address)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
