package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "credit-engine/docs"
	"credit-engine/internal/api"
	"credit-engine/internal/batch"
	"credit-engine/internal/config"
	"credit-engine/internal/domain/customer"
	"credit-engine/internal/domain/loan"
	"credit-engine/internal/event"
	"credit-engine/internal/infrastructure/cache"
	"credit-engine/internal/infrastructure/database/postgres"
	"credit-engine/internal/infrastructure/logging"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// @title Credit Engine API
// @version 1.0
// @description This is the API documentation for the Credit Engine service.

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, logger := initializeApp()

	dbPool := initializeDatabase(cfg, logger)
	defer closeDatabase(dbPool, logger)

	rabbitMQConn, publisher := setupPublisher(cfg, logger)
	redisClient, store := initializeCache(cfg, logger)

	svcs, installmentRepo := initializeServices(cfg, dbPool, publisher, store, logger)

	reminderJob := batch.NewInstallmentReminderJob(installmentRepo, publisher, cfg.Batch.ReminderWindow, logger)
	cronScheduler := startBatchJobs(cfg, logger, reminderJob)

	router := api.SetupRouter(svcs, cfg, logger)

	srv, serverErrors, shutdownChan := startServer(cfg, router, logger)
	handleShutdown(srv, cronScheduler, rabbitMQConn, redisClient, shutdownChan, serverErrors, logger)
}

func initializeApp() (*config.Config, *slog.Logger) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.Logger)
	slog.SetDefault(logger)
	logger.Info("Application starting...", "config_source", viper.ConfigFileUsed())

	return cfg, logger
}

func initializeDatabase(cfg *config.Config, logger *slog.Logger) *pgxpool.Pool {
	logger.Info("Initializing database connection pool...")
	dbPool, err := postgres.NewConnectionPool(context.Background(), cfg.Database, logger)
	if err != nil {
		logger.Error("Failed to initialize database connection pool", "error", err)
		os.Exit(1)
	}
	return dbPool
}

func closeDatabase(dbPool *pgxpool.Pool, logger *slog.Logger) {
	logger.Info("Closing database connection pool...")
	dbPool.Close()
}

// setupPublisher connects to RabbitMQ when messaging is enabled; otherwise
// the rest of the application publishes into a no-op sink.
func setupPublisher(cfg *config.Config, logger *slog.Logger) (*amqp.Connection, event.Publisher) {
	if !cfg.RabbitMQ.Enabled {
		logger.Info("RabbitMQ disabled, events will not be published.")
		return nil, event.NoopPublisher{}
	}

	conn, err := connectRabbitMQ(rabbitMQURI(cfg.RabbitMQ), logger)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}

	publisher, err := event.NewRabbitMQPublisher(conn, cfg.RabbitMQ.ExchangeName, logger)
	if err != nil {
		logger.Error("Failed to initialize RabbitMQ publisher", "error", err)
		os.Exit(1)
	}
	return conn, publisher
}

func rabbitMQURI(cfg config.RabbitMQConfig) string {
	if cfg.Username != "" {
		return fmt.Sprintf("amqp://%s:%s@%s:%d", cfg.Username, cfg.Password, cfg.Host, cfg.Port)
	}
	return fmt.Sprintf("amqp://%s:%d", cfg.Host, cfg.Port)
}

func connectRabbitMQ(uri string, logger *slog.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	retryCount := 5
	for i := 1; i <= retryCount; i++ {
		conn, err = amqp.Dial(uri)
		if err == nil {
			logger.Info("Successfully connected to RabbitMQ")

			go func() {
				blockChan := conn.NotifyBlocked(make(chan amqp.Blocking))
				closeChan := conn.NotifyClose(make(chan *amqp.Error))

				select {
				case b := <-blockChan:
					logger.Warn("RabbitMQ Connection Blocked", "reason", b.Reason)
				case e := <-closeChan:
					logger.Error("RabbitMQ Connection Closed", slog.Any("error", e))
				}
			}()

			return conn, nil
		}
		logger.Warn("Failed to connect to RabbitMQ, retrying...",
			slog.Int("attempt", i),
			slog.Int("max_attempts", retryCount),
			slog.Any("error", err),
		)
		time.Sleep(time.Duration(i*2) * time.Second)
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", retryCount, err)
}

// initializeCache connects the loan read cache when redis is enabled. A nil
// store is the supported "caching disabled" mode downstream.
func initializeCache(cfg *config.Config, logger *slog.Logger) (*redis.Client, cache.Store) {
	if !cfg.Redis.Enabled {
		logger.Info("Redis disabled, loan reads will not be cached.")
		return nil, nil
	}

	client, err := cache.OpenRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err, "addr", cfg.Redis.Addr)
		os.Exit(1)
	}
	logger.Info("Redis client connected successfully.", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)
	return client, cache.NewRedisStore(client)
}

func initializeServices(
	cfg *config.Config,
	dbPool *pgxpool.Pool,
	publisher event.Publisher,
	store cache.Store,
	logger *slog.Logger,
) (api.Services, loan.InstallmentRepository) {
	logger.Info("Initializing application components...")

	loanRepo := postgres.NewLoanRepository(dbPool, logger)
	installmentRepo := postgres.NewInstallmentRepository(dbPool, logger)
	customerRepo := postgres.NewCustomerRepository(dbPool, logger)

	installmentService := loan.NewInstallmentService(installmentRepo, logger)
	loanService := loan.NewService(loanRepo, customerRepo, publisher, store, cfg.Redis.LoanTTL, logger)
	paymentService := loan.NewPaymentService(loanRepo, installmentService, customerRepo, publisher, store, logger)
	customerService := customer.NewService(customerRepo, logger)

	return api.Services{
		Loans:        loanService,
		Payments:     paymentService,
		Installments: installmentService,
		Customers:    customerService,
	}, installmentRepo
}

func startBatchJobs(cfg *config.Config, logger *slog.Logger, reminderJob *batch.InstallmentReminderJob) *cron.Cron {
	logger.Info("Initializing batch job scheduler...")
	c := cron.New()

	scheduleSpec := cfg.Batch.ReminderSchedule
	if scheduleSpec == "" {
		scheduleSpec = "0 8 * * *"
		logger.Warn("Installment reminder schedule not configured, using default", "schedule", scheduleSpec)
	}
	jobTimeout := cfg.Batch.ReminderTimeout
	if jobTimeout <= 0 {
		jobTimeout = 5 * time.Minute
	}

	jobID, err := c.AddJob(scheduleSpec, cron.FuncJob(func() {
		jobLogger := logger.With("job_name", "InstallmentReminder")
		jobLogger.Info("Cron triggered: Running installment reminder job.")

		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		if runErr := reminderJob.Run(ctx); runErr != nil {
			jobLogger.Error("Installment reminder job finished with error", slog.Any("error", runErr))
		} else {
			jobLogger.Info("Installment reminder job finished successfully.")
		}
	}))

	if err != nil {
		logger.Error("Failed to schedule installment reminder job", "schedule", scheduleSpec, slog.Any("error", err))
	} else {
		logger.Info("Scheduled installment reminder job", "schedule", scheduleSpec, "job_id", jobID)
	}

	c.Start()
	logger.Info("Cron scheduler started.")
	return c
}

func startServer(cfg *config.Config, router http.Handler, logger *slog.Logger) (*http.Server, <-chan error, <-chan os.Signal) {
	logger.Info("Setting up HTTP server...", "port", cfg.Server.Port)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("Server listening on port %d", cfg.Server.Port))
		err := srv.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			serverErrors <- err
		} else {
			logger.Info("Server closed gracefully.")
			serverErrors <- nil
		}
	}()
	return srv, serverErrors, shutdownChan
}

func handleShutdown(srv *http.Server, cronScheduler *cron.Cron, rabbitConn *amqp.Connection, redisClient *redis.Client,
	shutdownChan <-chan os.Signal, serverErrors <-chan error, logger *slog.Logger) {
	logger.Info("Shutdown handler started. Waiting for signal or server error...")

	triggerReason := waitForShutdownTrigger(shutdownChan, serverErrors, logger)

	logger.Info("Starting graceful shutdown...", "trigger", triggerReason)

	stopCronScheduler(cronScheduler, logger)
	closeRabbitMQConnection(rabbitConn, logger)
	closeRedisClient(redisClient, logger)
	shutdownHTTPServer(srv, serverErrors, logger)

	logger.Info("Application shutdown process complete.")
}

func waitForShutdownTrigger(shutdownChan <-chan os.Signal, serverErrors <-chan error, logger *slog.Logger) string {
	select {
	case sig := <-shutdownChan:
		logger.Info("Shutdown signal received.", "signal", sig.String())
		return "signal: " + sig.String()
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server exited unexpectedly before signal", "error", err)
			os.Exit(1)
		}
		logger.Info("Server goroutine finished before signal.", "error", err)
		return "server exited"
	}
}

func stopCronScheduler(cronScheduler *cron.Cron, logger *slog.Logger) {
	logger.Info("Stopping cron scheduler...")
	cronCtx := cronScheduler.Stop()
	select {
	case <-cronCtx.Done():
		logger.Info("Cron scheduler stopped gracefully.")
	case <-time.After(15 * time.Second):
		logger.Warn("Cron scheduler shutdown timed out.")
	}
}

func closeRabbitMQConnection(rabbitConn *amqp.Connection, logger *slog.Logger) {
	if rabbitConn == nil {
		logger.Info("RabbitMQ connection was not established, skipping close.")
		return
	}
	if rabbitConn.IsClosed() {
		logger.Info("RabbitMQ connection already closed, skipping close.")
		return
	}
	logger.Info("Closing RabbitMQ connection...")
	if err := rabbitConn.Close(); err != nil {
		logger.Error("Failed to close RabbitMQ connection gracefully", slog.Any("error", err))
	} else {
		logger.Info("RabbitMQ connection closed.")
	}
}

func closeRedisClient(redisClient *redis.Client, logger *slog.Logger) {
	if redisClient == nil {
		logger.Info("Redis client was not initialized, skipping close.")
		return
	}
	logger.Info("Closing Redis client connection...")
	if err := redisClient.Close(); err != nil {
		logger.Error("Failed to close Redis client connection gracefully", "error", err)
	} else {
		logger.Info("Redis client connection closed.")
	}
}

func shutdownHTTPServer(srv *http.Server, serverErrors <-chan error, logger *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger.Info("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server graceful shutdown failed", "error", err)
		}
		if err := srv.Close(); err != nil {
			logger.Error("HTTP server forced close failed", "error", err)
		}
	} else {
		logger.Info("HTTP server gracefully stopped.")
	}

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Server goroutine exited with unexpected error after shutdown", "error", err)
		} else {
			logger.Info("Server goroutine confirmed exit.")
		}
	case <-time.After(5 * time.Second):
		logger.Warn("Timed out waiting for server goroutine confirmation.")
	}
}
