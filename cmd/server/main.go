/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Timekeeper attendance server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Build the logger and load the settings file
  3. Open the record store (sqlite or jsonfile backend)
  4. Wire registry, attendance, auth and metrics into the API handler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port      HTTP server port (default: 8080)
  -db        SQLite database path (default: timekeeper.db)
             Use ":memory:" for an in-memory database
  -settings  Settings file path (default: settings.yaml)
  -records   Record backend: "sqlite" or "jsonfile" (default: sqlite)
  -data      Data directory for the jsonfile backend (default: ./data)
  -debug     Verbose console logging

  Flags fall back to PORT, DB_PATH, SETTINGS_PATH, RECORDS_BACKEND and
  DATA_DIR from the environment (or .env).

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with the default sqlite backend
  ./server -db="./data/timekeeper.db"

  # Run with one JSON file per month instead of a database
  ./server -records=jsonfile -data=./data

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/littlepine/timekeeper/api"
	"github.com/littlepine/timekeeper/attendance"
	"github.com/littlepine/timekeeper/auth"
	"github.com/littlepine/timekeeper/config"
	"github.com/littlepine/timekeeper/pkg/logger"
	"github.com/littlepine/timekeeper/pkg/metrics"
	"github.com/littlepine/timekeeper/registry"
	"github.com/littlepine/timekeeper/store/jsonfile"
	"github.com/littlepine/timekeeper/store/sqlite"
)

func main() {
	// .env is optional; real env vars win.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DB_PATH", "timekeeper.db"), "SQLite database path")
	settingsPath := flag.String("settings", envStr("SETTINGS_PATH", "settings.yaml"), "Settings file path")
	backend := flag.String("records", envStr("RECORDS_BACKEND", "sqlite"), "Record backend: sqlite or jsonfile")
	dataDir := flag.String("data", envStr("DATA_DIR", "./data"), "Data directory for the jsonfile backend")
	debug := flag.Bool("debug", false, "Verbose console logging")
	flag.Parse()

	zlog, err := logger.New(*debug)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	provider, err := config.Load(*settingsPath)
	if err != nil {
		zlog.Fatal("Failed to load settings", zap.Error(err))
	}

	// The sqlite store always backs the registry; the record store is
	// switchable.
	db, err := sqlite.New(*dbPath)
	if err != nil {
		zlog.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	var records attendance.Store = db
	if *backend == "jsonfile" {
		records, err = jsonfile.New(*dataDir)
		if err != nil {
			zlog.Fatal("Failed to initialize record store", zap.Error(err))
		}
	}

	// The kiosk clock runs in the daycare's configured timezone.
	clock := attendance.ClockFunc(func() time.Time {
		return time.Now().In(provider.Location())
	})

	// Registry and attendance reference each other (directory lookups one
	// way, record cascade the other); the purger indirection breaks the
	// construction cycle.
	purger := &recordPurger{}
	registryService := registry.NewService(db, purger, zlog)
	attendanceService := attendance.NewService(records, provider, registryService, clock, zlog)
	purger.attendance = attendanceService
	sessions := auth.NewService(db, zlog)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg, "timekeeper")

	handler := api.NewHandler(attendanceService, registryService, sessions, provider, m, zlog)
	router := api.NewRouter(handler, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zlog.Info("Server starting",
			zap.Int("port", *port),
			zap.String("records_backend", *backend),
			zap.String("settings", *settingsPath))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		zlog.Fatal("Server forced to shutdown", zap.Error(err))
	}

	zlog.Info("Server stopped")
}

type recordPurger struct {
	attendance *attendance.Service
}

func (p *recordPurger) DeleteChildRecords(ctx context.Context, childID string) (int, error) {
	return p.attendance.DeleteChildRecords(ctx, childID)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}
