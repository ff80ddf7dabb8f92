/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the CRM engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load configuration
  2. Initialize logger and store
  3. Build the reminder job (notifier, claim store) and its scheduler
  4. Create API handler and router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to a YAML config file (default: ./config.yaml if present)
  -port    HTTP server port, overrides server.port
  -db      Database DSN, overrides database.dsn
           Use ":memory:" for an in-memory SQLite database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the reminder scheduler, waiting for a running sweep
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close broker and database connections
  5. Exit

EXAMPLES:
  # Run with defaults (SQLite crm.db, port 8080)
  ./server

  # Postgres, console logs
  CRM_DATABASE_DRIVER=postgres CRM_DATABASE_DSN=postgres://... CRM_LOG_FORMAT=console ./server

ENVIRONMENT:
  Every config key can be set as CRM_<SECTION>_<KEY>; see config/config.go.

SEE ALSO:
  - config/config.go: Configuration keys and defaults
  - api/server.go: Router configuration
  - reminder/scheduler.go: Reminder schedule
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

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/warp/crm-engine/api"
	"github.com/warp/crm-engine/calendar"
	"github.com/warp/crm-engine/config"
	"github.com/warp/crm-engine/crm"
	"github.com/warp/crm-engine/logging"
	"github.com/warp/crm-engine/notify"
	"github.com/warp/crm-engine/recurrence"
	"github.com/warp/crm-engine/reminder"
	"github.com/warp/crm-engine/store/sqlstore"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "Path to config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dsn := flag.String("db", "", "Database DSN (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dsn != "" {
		cfg.Database.DSN = *dsn
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
}

func run(cfg config.Config, logger zerolog.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	rule, err := cfg.MonthRule()
	if err != nil {
		return err
	}
	mode, err := reminder.ParseMode(cfg.Reminder.Mode)
	if err != nil {
		return err
	}
	planner := recurrence.Planner{Rule: rule}
	clock := calendar.SystemClock{}

	// Initialize store
	store, err := sqlstore.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	notifier, closeNotifier, err := newNotifier(cfg, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	claimer, closeClaimer, err := newClaimer(cfg, store)
	if err != nil {
		return err
	}
	defer closeClaimer()

	job := &reminder.Job{
		Source:       store,
		Notifier:     notifier,
		Claimer:      claimer,
		Planner:      planner,
		Mode:         mode,
		WindowMonths: cfg.Reminder.WindowMonths,
		Recipient:    cfg.Reminder.Recipient,
		Logger:       logger,
	}
	scheduler := reminder.NewScheduler(job, clock, loc, cfg.Reminder.Spec)
	scheduler.Enabled = cfg.Reminder.Enabled
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start reminder scheduler: %w", err)
	}
	if next, ok := scheduler.NextRun(); ok {
		logger.Info().Time("next_run", next).Str("mode", string(mode)).Msg("next reminder sweep")
	}

	// Initialize handler
	handler := api.NewHandler(store, clock, loc, planner, logger)
	handler.Reminders = scheduler

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(handler, cfg.CORS.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().
			Int("port", cfg.Server.Port).
			Str("driver", cfg.Database.Driver).
			Str("timezone", loc.String()).
			Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		scheduler.Stop()
		return err
	}

	logger.Info().Msg("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info().Msg("server stopped")
	return nil
}

// newNotifier publishes to RabbitMQ when amqp.url is set, otherwise logs.
func newNotifier(cfg config.Config, logger zerolog.Logger) (notify.Notifier, func(), error) {
	if cfg.AMQP.URL == "" {
		return notify.NewLogNotifier(logger), func() {}, nil
	}
	n, err := notify.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.RoutingKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	logger.Info().Str("exchange", cfg.AMQP.Exchange).Msg("publishing reminders to broker")
	return n, func() { n.Close() }, nil
}

func newClaimer(cfg config.Config, store *sqlstore.Store) (crm.ClaimStore, func(), error) {
	switch cfg.Reminder.Claims {
	case config.ClaimsSQL:
		return store, func() {}, nil
	case config.ClaimsRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return reminder.NewRedisClaimer(client, cfg.Reminder.WindowMonths), func() { client.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}
