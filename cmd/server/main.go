/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the rotation engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (optional) and parse command-line flags
  2. Initialize SQLite store and seed the built-in shift rules
  3. Build the roster engine from the stored rules
  4. Wire the API handler and router
  5. Start the lifecycle sweeper
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port            HTTP server port (default: 8080)
  -db              SQLite database path (default: rotation.db)
                   Use ":memory:" for an in-memory database
  -sweep-interval  Block lifecycle sweep interval (default: 6h)
  -sweep=false     Disable the background sweeper
  -debug           Debug-level logging

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the sweeper and close the database
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/rotation.db"

  # Run with in-memory database and a fast sweep
  ./server -db=":memory:" -sweep-interval=1m

SEE ALSO:
  - api/server.go: Router configuration
  - api/sweeper.go: Background lifecycle sweep
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

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/warp/rotation-engine/api"
	"github.com/warp/rotation-engine/factory"
	"github.com/warp/rotation-engine/roster"
	"github.com/warp/rotation-engine/schedule"
	"github.com/warp/rotation-engine/store/sqlite"
)

func main() {
	// .env is optional; flags win over nothing here since all config is flags
	_ = godotenv.Load()

	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "rotation.db", "SQLite database path")
	sweepInterval := flag.Duration("sweep-interval", 6*time.Hour, "block lifecycle sweep interval")
	sweepEnabled := flag.Bool("sweep", true, "run the background lifecycle sweeper")
	debug := flag.Bool("debug", false, "debug-level logging")
	flag.Parse()

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", *dbPath).Msg("failed to initialize database")
	}
	defer store.Close()

	ctx := context.Background()
	if err := factory.SeedRules(ctx, store); err != nil {
		log.Fatal().Err(err).Msg("failed to seed shift rules")
	}
	rules, err := store.ListShiftRules(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load shift rules")
	}
	rosterEngine := roster.New(rules, store)

	clock := schedule.SystemClock{}
	notifier := &logNotifier{log: log}

	handler := api.NewHandler(store, rosterEngine, notifier, clock, log)
	router := api.NewRouter(handler)

	sweeper := api.NewSweepRunner(handler.Lifecycle, log)
	sweeper.Interval = *sweepInterval
	sweeper.Enabled = *sweepEnabled
	sweeper.Start()
	defer sweeper.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", *port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// logNotifier writes notifications to the log. A real deployment plugs a
// push or mail channel in here instead.
type logNotifier struct {
	log zerolog.Logger
}

func (n *logNotifier) Notify(_ context.Context, note schedule.Notification) error {
	n.log.Info().
		Str("type", string(note.Type)).
		Str("priority", string(note.Priority)).
		Int("recipients", len(note.Recipients)).
		Str("title", note.Title).
		Msg("notification")
	return nil
}
