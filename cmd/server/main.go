/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the tax-desk server: bank-feed sync, transaction
  enrichment, and monthly document generation behind a JSON API.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load environment settings
  2. Initialize SQLite store
  3. Build capabilities (bank feed, text generation, delivery sinks)
  4. Wire services and API handler, configure HTTP router
  5. Start background sync scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: taxdesk.db)
           Use ":memory:" for an in-memory database
  -sync    Background sync interval (default: 1h, 0 disables)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the sync scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/taxdesk.db"

  # Run with in-memory database, no background sync
  ./server -db=":memory:" -sync=0

ENVIRONMENT:
  See config/config.go for the credential variables that switch the
  bank feed, text generation, and delivery channels between live and
  deterministic backends.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - factory/factory.go: Capability selection
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lumo/taxdesk/api"
	"github.com/lumo/taxdesk/config"
	"github.com/lumo/taxdesk/document"
	"github.com/lumo/taxdesk/enrich"
	"github.com/lumo/taxdesk/factory"
	"github.com/lumo/taxdesk/feed"
	"github.com/lumo/taxdesk/logger"
	"github.com/lumo/taxdesk/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "taxdesk.db", "SQLite database path")
	syncEvery := flag.Duration("sync", time.Hour, "background sync interval (0 disables)")
	flag.Parse()

	log := logger.New()
	cfg := config.Load()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer store.Close()

	// Select live or deterministic backends from credentials
	caps, err := factory.Build(context.Background(), cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build capabilities")
	}

	// Wire services
	syncer := feed.NewSyncer(caps.Feed, store, feed.DefaultAccounts(), caps.Cipher, log)
	enricher := enrich.New(store, caps.TextGen, cfg.DocumentsPath, log)
	documents := document.New(store, caps.TextGen, caps.Sinks, cfg.DocumentsPath, log)

	handler := &api.Handler{
		Store:           store,
		Syncer:          syncer,
		Enricher:        enricher,
		Documents:       documents,
		AccountantEmail: cfg.AccountantEmail,
		FeedMode:        caps.FeedMode,
		TextGenMode:     caps.TextGenMode,
		Channels:        caps.Channels,
	}

	// Background sync
	scheduler := api.NewScheduler(handler, log)
	if *syncEvery > 0 {
		scheduler.CheckInterval = *syncEvery
	} else {
		scheduler.Enabled = false
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Create router
	router := api.NewRouter(handler)

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
		log.Info().
			Int("port", *port).
			Str("feed", caps.FeedMode).
			Str("textgen", caps.TextGenMode).
			Msgf("🚀 Server starting on http://localhost:%d", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
