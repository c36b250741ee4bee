/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the drip engine server: the action queue,
  the executor registry, the reconciliation scheduler, and the admin
  HTTP surface. Handles configuration and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store (actions + accounts)
  3. Wire the simulated ledger client and executor registry
  4. Build engine, reconciler, scheduler, HTTP handler
  5. Start scheduler and server with graceful shutdown

COMMAND-LINE FLAGS:
  -port          HTTP server port (default: 8080)
  -db            SQLite database path (default: drip.db, ":memory:" for in-memory)
  -threshold     Pending-action count that triggers a batch (default: 3)
  -catchup-days  Maximum missed daily cycles reconciled per account (default: 7)
  -scheduler     Whether the periodic driver runs (default: true)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler (waits for an in-flight sweep)
  2. Stop accepting new connections, drain for up to 30s
  3. Close the database

NOTE:
  The ledger client here is the in-process simulation; a production
  deployment swaps in the real chain client behind the same interface.

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: The periodic driver
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

	"github.com/drip-labs/drip-engine/api"
	"github.com/drip-labs/drip-engine/ledger"
	"github.com/drip-labs/drip-engine/ops"
	"github.com/drip-labs/drip-engine/queue"
	"github.com/drip-labs/drip-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "drip.db", "SQLite database path")
	threshold := flag.Int("threshold", queue.DefaultBatchThreshold, "pending-action batch threshold")
	catchUpDays := flag.Int("catchup-days", queue.DefaultMaxCatchUpDays, "max missed daily cycles to reconcile")
	schedulerOn := flag.Bool("scheduler", true, "run the periodic driver")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Wire the engine
	client := ledger.NewSimulated()
	registry := ops.NewRegistry(client, store)
	engine := queue.NewEngine(store, registry, queue.Config{
		BatchThreshold: *threshold,
		MaxCatchUpDays: *catchUpDays,
	})
	reconciler := queue.NewReconciler(store, engine)

	// Scheduler
	scheduler := api.NewScheduler(store, engine, reconciler)
	scheduler.Enabled = *schedulerOn
	scheduler.Start()
	defer scheduler.Stop()

	// HTTP surface
	handler := api.NewHandler(store, engine, reconciler)
	handler.Scheduler = scheduler
	router := api.NewRouter(handler)

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
