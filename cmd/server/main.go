package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	h "github.com/gorilla/handlers"
	"github.com/rs/zerolog"
	tc "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/daybook-app/daybook-api/internal/config"
	"github.com/daybook-app/daybook-api/internal/handlers"
	"github.com/daybook-app/daybook-api/internal/middleware"
	"github.com/daybook-app/daybook-api/internal/migration"
	"github.com/daybook-app/daybook-api/internal/reminder"
	"github.com/daybook-app/daybook-api/internal/repository"
	"github.com/daybook-app/daybook-api/internal/routes"
	"github.com/daybook-app/daybook-api/internal/scheduler"
	"github.com/daybook-app/daybook-api/internal/settings"
	tmp "github.com/daybook-app/daybook-api/internal/temporal"
	"github.com/daybook-app/daybook-api/internal/temporal/activities"
	"github.com/daybook-app/daybook-api/internal/temporal/workflows"

	_ "github.com/lib/pq" // PostgreSQL driver
)

type application struct {
	config    *config.Config
	db        *sql.DB
	logger    zerolog.Logger
	reminders reminder.Coordinator
	gate      *settings.Gate
}

func main() {
	// Set up structured, level-based logging.
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.SetFlags(0)
	log.SetOutput(logger)

	// Load configuration.
	cfg := config.Load()

	// Initialize database connection.
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to the database")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ping database")
	}

	// Run database migrations.
	migration.RunMigrations(cfg.DatabaseURL)

	// Repositories
	ledgerRepo := repository.NewLedgerRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	birthdayRepo := repository.NewBirthdayRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	userRepo := repository.NewUserRepository(db)

	perms := settings.NewPermissionSource(settingsRepo)

	// The delivery hook closes over the coordinator, which in turn needs
	// the scheduler; the hook only runs once alerts fire, well after both
	// are wired.
	var reminders reminder.Coordinator
	deliver := func(ctx context.Context, handle string) {
		if err := reminders.MarkDelivered(ctx, handle); err != nil {
			logger.Error().Err(err).Str("handle", handle).Msg("failed to record delivery")
		}
	}

	var (
		sched          scheduler.Scheduler
		localSched     *scheduler.LocalScheduler
		temporalClient tc.Client
	)
	switch cfg.Scheduler.Driver {
	case "temporal":
		temporalClient, err = tc.Dial(tc.Options{
			HostPort: cfg.Scheduler.TemporalHost,
			Logger:   tmp.NewLoggerAdapter(logger),
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("Unable to create Temporal client")
		}
		defer temporalClient.Close()
		sched = scheduler.NewTemporalScheduler(temporalClient, perms, logger)
	default:
		localSched = scheduler.NewLocalScheduler(perms, deliver, logger)
		localSched.Start()
		defer localSched.Stop()
		sched = localSched
	}

	gate := settings.NewGate(settingsRepo, ledgerRepo, sched, logger, taskRepo, birthdayRepo)
	reminders = reminder.NewCoordinator(ledgerRepo, sched, gate, logger, taskRepo, birthdayRepo)

	app := &application{
		config:    cfg,
		db:        db,
		logger:    logger,
		reminders: reminders,
		gate:      gate,
	}

	// Start the alert worker when Temporal backs the scheduler.
	var alertWorker worker.Worker
	if temporalClient != nil {
		alertWorker = app.startAlertWorker(temporalClient, logger)
	}

	// Initialize the HTTP router and middleware.
	router := app.initRouter(userRepo, taskRepo, birthdayRepo, ledgerRepo)
	loggedRouter := middleware.LoggingMiddleware(app.logger)(router)
	corsHandler := h.CORS(
		h.AllowedOrigins(cfg.AllowedOrigins),
		h.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		h.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		h.AllowCredentials(),
	)(loggedRouter)

	// Start the HTTP server and handle graceful shutdown.
	app.startServer(corsHandler, alertWorker, logger)

	logger.Info().Msg("Application terminated.")
}

// initRouter sets up all HTTP handlers and returns the router.
func (app *application) initRouter(
	userRepo repository.UserRepository,
	taskRepo repository.TaskRepository,
	birthdayRepo repository.BirthdayRepository,
	ledgerRepo repository.LedgerRepository,
) http.Handler {
	authHandler := handlers.NewAuthHandler(userRepo, app.config.JWTSecret, app.logger)
	taskHandler := handlers.NewTaskHandler(taskRepo, app.reminders, app.logger)
	birthdayHandler := handlers.NewBirthdayHandler(birthdayRepo, app.reminders, app.logger)
	reminderHandler := handlers.NewReminderHandler(app.reminders, birthdayRepo, app.logger)
	notificationHandler := handlers.NewNotificationHandler(ledgerRepo, app.reminders, app.logger)
	settingsHandler := handlers.NewSettingsHandler(app.gate, app.logger)

	return routes.NewRouter(authHandler, taskHandler, birthdayHandler, reminderHandler, notificationHandler, settingsHandler)
}

func (app *application) startAlertWorker(client tc.Client, logger zerolog.Logger) worker.Worker {
	activityImpl := &activities.Activities{
		Reminders: app.reminders,
	}

	w := worker.New(client, tmp.TaskQueueName, worker.Options{})

	w.RegisterWorkflow(workflows.AlertWorkflow)
	w.RegisterActivity(activityImpl)

	// Start the worker in a goroutine so it doesn't block.
	go func() {
		logger.Info().Msg("Starting alert worker...")
		if err := w.Run(worker.InterruptCh()); err != nil {
			logger.Fatal().Err(err).Msg("Unable to start worker")
		}
	}()

	return w
}

// startServer launches the HTTP server and handles graceful shutdown.
func (app *application) startServer(handler http.Handler, alertWorker worker.Worker, logger zerolog.Logger) {
	server := &http.Server{
		Addr:    ":" + app.config.ServerPort,
		Handler: handler,
	}

	// Channel to listen for server errors
	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	// Wait for an interrupt signal or a server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Msgf("Received signal: %s. Shutting down...", sig)
	case err := <-serverErrCh:
		logger.Error().Err(err).Msg("Server error occurred")
	}

	// Gracefully shut down the HTTP server.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server shutdown complete.")
	}

	if alertWorker != nil {
		logger.Info().Msg("Stopping alert worker...")
		alertWorker.Stop()
		logger.Info().Msg("Alert worker stopped.")
	}
}
