package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"

	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/logging"
	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/routes"
	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/storage"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	// Structured logging (JSON to stdout)
	stdout := logging.Setup(os.Getenv("APP_ENV"))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(database.DB); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// Database log handler (ERROR+ async batch)
	dbLogHandler := logging.NewDBHandler(database.DB, 5*time.Second)
	slog.SetDefault(slog.New(logging.NewMultiHandler(stdout, dbLogHandler)))

	// Log cleanup
	cleanup, err := logging.StartCleanup(database.DB, cfg.LogRetain)
	if err != nil {
		slog.Error("log cleanup scheduling failed", "error", err)
		os.Exit(1)
	}

	// Identity: provider tokens first when configured, then local sessions
	sessions := services.NewSessionScheme(cfg.JWTSecret)
	var schemes []services.CredentialScheme
	if cfg.IdentityProviderEnabled() {
		keys := services.NewKeySetCache(services.JWKSURL(cfg.IdPDomain), cfg.IdPJWKSTTL)
		schemes = append(schemes, services.NewProviderScheme(cfg.IdPDomain, cfg.IdPAudience, keys))
		slog.Info("identity provider enabled", "domain", cfg.IdPDomain)
	}
	schemes = append(schemes, sessions)
	resolver := services.NewIdentityResolver(schemes...)

	// Services
	auditService := services.NewAuditService(database.DB)
	accountService := services.NewAccountService(services.NewGormAccountStore(database.DB), cfg.AdminEmailList())
	authService := services.NewAuthService(database.DB, cfg, sessions)
	userService := services.NewUserService(database.DB, cfg, auditService)
	eventService := services.NewEventService(database.DB, cfg, auditService)

	if cfg.SeedDemo {
		if _, err := services.SeedDemo(context.Background(), database.DB); err != nil {
			slog.Error("demo seed failed", "error", err)
		}
	}

	// Rate-limit storage shared through Redis when configured
	var limiterStore fiber.Storage
	if cfg.RedisURL != "" {
		redisStore, err := storage.NewRedisStorage(cfg.RedisURL, "checkin:limiter:")
		if err != nil {
			slog.Error("redis unavailable, using in-memory rate limits", "error", err)
		} else {
			limiterStore = redisStore
			defer redisStore.Close()
		}
	}

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${locals:requestid}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	// Routes
	routes.Setup(app, cfg, routes.Handlers{
		Auth:    handlers.NewAuthHandler(authService),
		Health:  handlers.NewHealthHandler(database.Ping),
		User:    handlers.NewUserHandler(userService, auditService),
		Event:   handlers.NewEventHandler(eventService),
		Webhook: handlers.NewWebhookHandler(userService),
	}, middleware.Authenticate(resolver, accountService), limiterStore)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port, "db_driver", cfg.DBDriver)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	<-cleanup.Stop().Done()

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// Drain buffered error logs before the database goes away
	dbLogHandler.Stop()
	slog.SetDefault(slog.New(stdout))
	sentry.Flush(2 * time.Second)

	// Close database connections
	if sqlDB, err := database.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error",
			"method", c.Method(), "path", c.Path(),
			"request_id", middleware.RequestID(c), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
