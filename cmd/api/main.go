package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-autograder/internal/bootstrap"
	"github.com/noah-isme/gema-autograder/internal/config"
	"github.com/noah-isme/gema-autograder/internal/database"
	"github.com/noah-isme/gema-autograder/internal/handler"
	"github.com/noah-isme/gema-autograder/internal/logging"
	"github.com/noah-isme/gema-autograder/internal/middleware"
	"github.com/noah-isme/gema-autograder/internal/repository"
	"github.com/noah-isme/gema-autograder/internal/router"
	"github.com/noah-isme/gema-autograder/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		File:    cfg.LogFile,
		Service: "api",
	})

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	if redisClient != nil {
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis url not set, problem detail cache disabled")
	}

	exec, closeRunner, err := bootstrap.Runner(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create code runner")
	}
	defer closeRunner()

	assistant, selector := bootstrap.Assistant(cfg, logger)

	validate := validator.New(validator.WithRequiredStructEnabled())

	problemRepo := repository.NewProblemRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	fixLogRepo := repository.NewFixLogRepository(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	problemService := service.NewProblemService(problemRepo, submissionRepo, assistant, validate, redisClient, cfg.DashboardCacheTTL, logger)

	dispatcher := service.NewDispatcher(
		service.NewEnrichmentService(submissionRepo, assistant, problemService, logger),
		service.DispatcherConfig{Workers: cfg.EnrichmentWorkers, QueueSize: cfg.EnrichmentQueueSize},
		logger,
	)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	var enqueuer service.EnrichmentEnqueuer = dispatcher
	if cfg.NATSURL != "" {
		conn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer conn.Drain()

		natsDispatcher := service.NewNATSDispatcher(conn, cfg.EnrichmentSubject, dispatcher, logger)
		if err := natsDispatcher.Consume(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to consume enrichment tasks")
		}
		enqueuer = natsDispatcher
	}

	submissionService := service.NewSubmissionService(problemRepo, submissionRepo, exec, enqueuer, problemService, validate, logger, service.SubmissionConfig{
		ExecutionTimeout: cfg.ExecutionTimeout,
	})
	fixLogService := service.NewFixLogService(fixLogRepo, exec, assistant, validate, service.FixLogConfig{
		ScratchDir: cfg.FixScratchDir,
		Timeout:    cfg.ExecutionTimeout,
	}, logger)

	problemHandler := handler.NewProblemHandler(problemService, logger)
	submissionHandler := handler.NewSubmissionHandler(submissionService, middleware.RateLimit("submit", cfg.SubmissionRateLimit, time.Minute), logger)
	fixLogHandler := handler.NewFixLogHandler(fixLogService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		ProblemHandler:    problemHandler,
		SubmissionHandler: submissionHandler,
		FixLogHandler:     fixLogHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
		AIEnabled:         !selector.Disabled(),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, logger)
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
