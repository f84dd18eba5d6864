// Package main is the entrypoint for the convtrack API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/convtrack/convtrack/internal/attribution"
	"github.com/convtrack/convtrack/internal/auth"
	"github.com/convtrack/convtrack/internal/cache"
	"github.com/convtrack/convtrack/internal/config"
	"github.com/convtrack/convtrack/internal/forwarder"
	"github.com/convtrack/convtrack/internal/handler"
	"github.com/convtrack/convtrack/internal/matching"
	"github.com/convtrack/convtrack/internal/metrics"
	"github.com/convtrack/convtrack/internal/middleware"
	"github.com/convtrack/convtrack/internal/repository"
	"github.com/convtrack/convtrack/internal/sales"
	"github.com/convtrack/convtrack/internal/server"
)

func main() {
	ctx := context.Background()

	// Development convenience; ignored when no .env file exists
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	// Repositories
	visitorRepo := repository.NewVisitorRepository(repo)
	forwardLogRepo := repository.NewForwardLogRepository(repo)

	// Pipeline components
	recorder := metrics.NewInMemory()
	engine := matching.NewEngine(cfg.MatchWindowMinutes(), cfg.MatchThreshold)
	salesClient := sales.NewClient(cfg.PaymentAuthURL, cfg.PaymentAPIURL, cfg.PaymentClientID, cfg.PaymentClientSecret, logger)
	conversionForwarder := forwarder.New(cfg.AdsAPIURL, cfg.AdsPixelID, cfg.AdsAccessToken, cfg.AdsTestEventCode, forwardLogRepo, recorder, logger)

	attributionService := attribution.NewService(
		engine,
		visitorRepo,
		cacheClient,
		conversionForwarder,
		salesClient,
		recorder,
		logger,
		attribution.Config{
			DedupTTL:       cfg.DedupTTL,
			PollWindow:     cfg.PollWindow,
			PollMaxResults: cfg.PollMaxResults,
		},
	)

	runner := attribution.NewRunner(attributionService, visitorRepo, forwardLogRepo, logger, attribution.RunnerConfig{
		PollInterval:        cfg.PollInterval,
		TelemetryRetention:  cfg.TelemetryRetention,
		ForwardLogRetention: cfg.ForwardLogRetention,
	})

	// Handlers
	healthHandler := handler.NewHealthHandler(repo, cacheClient)
	telemetryHandler := handler.NewTelemetryHandler(visitorRepo, recorder, logger, cfg.MaxRequestBodySize)
	webhookHandler := handler.NewSaleWebhookHandler(attributionService, logger, cfg.MaxRequestBodySize)
	adminHandler := handler.NewAdminHandler(visitorRepo, forwardLogRepo, conversionForwarder, attributionService, recorder, logger)

	adminVerifier := auth.NewAdminKeyVerifier(cfg.AdminAPIKeyHash, cacheClient)
	if !adminVerifier.Enabled() {
		logger.Warn("ADMIN_API_KEY_HASH not set, operational endpoints disabled")
	}

	r := setupRouter(healthHandler, telemetryHandler, webhookHandler, adminHandler, adminVerifier, logger)

	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	// Runner registered first so it shuts down last
	srv.OnShutdown("attribution_runner", runner.Shutdown)
	go func() {
		if err := runner.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("attribution runner exited", "error", err)
		}
	}()

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"poll_interval", cfg.PollInterval.String(),
		"match_threshold", cfg.MatchThreshold,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	healthHandler *handler.HealthHandler,
	telemetryHandler *handler.TelemetryHandler,
	webhookHandler *handler.SaleWebhookHandler,
	adminHandler *handler.AdminHandler,
	adminVerifier *auth.AdminKeyVerifier,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	// Health endpoints (no auth required)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)

	r.Route("/api/v1", func(r chi.Router) {
		// Public ingestion surface
		r.Post("/telemetry/visitor", telemetryHandler.Ingest)
		r.Post("/sales/webhook", webhookHandler.Receive)

		// Operational surface behind API-key auth
		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminAuth(adminVerifier, adminVerifier.Enabled(), logger))

			r.Get("/stats", adminHandler.Stats)
			r.Get("/conversions/logs", adminHandler.Logs)
			r.Post("/conversions/test", adminHandler.TestSend)
			r.Post("/sales/check", adminHandler.CheckSales)
		})
	})

	// 404 and 405 handlers
	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
