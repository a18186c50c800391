/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the salon booking server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize SQLite store
  3. Load schedule config (database copy wins over the seed file)
  4. Wire reservation manager, usage ledger, reconciliation engine
  5. Configure HTTP router and start the hold sweeper
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port      HTTP server port (default: 8080)
  -db        SQLite database path (default: salon.db)
             Use ":memory:" for in-memory database
  -schedule  Seed schedule config JSON (default: schedule.json)

ENVIRONMENT:
  ADMIN_JWT_SECRET   HS256 secret for the admin API (empty disables it)
  PAYMENTS_URL       Refund gateway base URL (empty uses a no-op recorder)
  PAYMENTS_API_KEY   Refund gateway bearer token

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Stop the hold sweeper
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/salon.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Run on different port
  ./server -port=3000

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
	"github.com/lancef37/sunday-tan-website-sub000/api"
	"github.com/lancef37/sunday-tan-website-sub000/booking"
	"github.com/lancef37/sunday-tan-website-sub000/ledger"
	"github.com/lancef37/sunday-tan-website-sub000/payments"
	"github.com/lancef37/sunday-tan-website-sub000/reservation"
	"github.com/lancef37/sunday-tan-website-sub000/schedule"
	"github.com/lancef37/sunday-tan-website-sub000/store/sqlite"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "salon.db", "SQLite database path")
	schedulePath := flag.String("schedule", "schedule.json", "seed schedule config JSON")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Schedule config: the database copy wins; the seed file backs a fresh
	// database; an empty default means nothing is bookable until an admin
	// installs one.
	registry := loadSchedule(store, *schedulePath)

	// Refund gateway
	var refunds payments.Coordinator
	if url := os.Getenv("PAYMENTS_URL"); url != "" {
		refunds = payments.NewClient(url, os.Getenv("PAYMENTS_API_KEY"))
	} else {
		log.Println("PAYMENTS_URL not set; refunds will be recorded but not executed")
		refunds = payments.NewRecorder()
	}

	// Domain wiring
	clock := booking.StoredCycleClock{}
	engine := ledger.NewEngine(store, clock, refunds)
	usage := ledger.NewUsageLedger(store, clock, engine)
	manager := reservation.NewManager(store)

	handler := api.NewHandler(store, manager, usage, engine, registry)
	handler.ScheduleDB = store

	router := api.NewRouter(handler, []byte(os.Getenv("ADMIN_JWT_SECRET")))

	// Background sweep of expired holds
	sweeper := api.NewHoldSweeper(manager)
	sweeper.Start()
	defer sweeper.Stop()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// loadSchedule builds the schedule registry from the database, falling back
// to the seed file for a fresh install.
func loadSchedule(store *sqlite.Store, seedPath string) *schedule.Registry {
	ctx := context.Background()

	if version, raw, err := store.LoadScheduleConfig(ctx); err != nil {
		log.Printf("Warning: failed to load schedule config: %v", err)
	} else if raw != nil {
		if cfg, err := schedule.Parse(raw); err == nil {
			// Carry the stored version forward so the next replace does not
			// regress the sequence after a restart.
			cfg.Version = version
			log.Printf("Loaded schedule config v%d from database", version)
			return schedule.NewRegistry(cfg)
		} else {
			log.Printf("Warning: stored schedule config invalid: %v", err)
		}
	}

	if data, err := os.ReadFile(seedPath); err == nil {
		cfg, err := schedule.Parse(data)
		if err != nil {
			log.Fatalf("Invalid schedule config %s: %v", seedPath, err)
		}
		if err := store.SaveScheduleConfig(ctx, 1, data); err != nil {
			log.Printf("Warning: failed to persist seed schedule: %v", err)
		}
		log.Printf("Loaded schedule config from %s", seedPath)
		return schedule.NewRegistry(cfg)
	}

	log.Println("No schedule config found; install one via PUT /api/admin/schedule")
	return schedule.NewRegistry(&schedule.Config{})
}
