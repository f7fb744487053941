package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hostly/api/routes"
	"hostly/internal/app"
	"hostly/internal/memstore"
	"hostly/internal/notifications"
	"hostly/internal/shared/config"
	"hostly/internal/shared/database"
	"hostly/internal/sweeper"
	"hostly/pkg/logger"
	"hostly/pkg/ratelimit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	appLogger := logger.GetDefault()

	// Smart environment loading
	if err := godotenv.Load(); err != nil {
		if os.Getenv("GIN_MODE") == "release" || os.Getenv("DOCKER_CONTAINER") == "true" {
			appLogger.Info("Production environment: using container environment variables")
		} else {
			appLogger.Info("No .env file found, using system environment variables")
		}
	} else {
		appLogger.Info("Development environment: loaded .env file")
	}

	// Load config
	cfg := config.Load()

	// Set Gin mode (debug/release)
	gin.SetMode(cfg.GinMode)

	// Initialize DB
	db, err := database.InitDB(cfg)
	if err != nil {
		appLogger.Error("failed to connect", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	stores, err := buildStores(cfg, db)
	if err != nil {
		appLogger.Error("failed to prepare stores", slog.Any("error", err))
		os.Exit(1)
	}

	clock := clockwork.NewRealClock()

	// Notifications
	sender, closeSender, err := app.NewSender(cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize notification sender, falling back to log", slog.Any("error", err))
		sender, closeSender = notifications.NewLogSender(appLogger), func() error { return nil }
	}
	dispatcher := notifications.NewDispatcher(sender, appLogger, clock, cfg.Booking.NotificationTimeout)

	notificationCtx, notificationCancel := context.WithCancel(context.Background())
	defer notificationCancel()

	if cfg.NotifyDriver == app.NotifyKafka {
		consumer, err := notifications.NewConsumer(notifications.DefaultConsumerConfig(cfg.Kafka), app.DeliverySender(cfg, appLogger), clock, appLogger)
		if err != nil {
			appLogger.Error("Failed to start notification consumer", slog.Any("error", err))
		} else {
			consumer.Start(notificationCtx)
			defer func() {
				appLogger.Info("Stopping notification consumer...")
				notificationCancel()
				if err := consumer.Stop(); err != nil {
					appLogger.Error("Error stopping notification consumer", slog.Any("error", err))
				}
			}()
		}
	}

	opts := app.Options{
		Config:   cfg,
		Stores:   stores,
		Notifier: dispatcher,
		Clock:    clock,
		Log:      appLogger,
	}
	if db.Redis != nil {
		opts.Redis = db.Redis
	}

	application, err := app.New(opts)
	if err != nil {
		appLogger.Error("Failed to assemble services", slog.Any("error", err))
		os.Exit(1)
	}

	// Background jobs
	jobs, err := application.NewJobProcessor()
	if err != nil {
		appLogger.Error("Failed to create job scheduler", slog.Any("error", err))
		os.Exit(1)
	}
	jobCtx, jobCancel := context.WithCancel(context.Background())
	defer jobCancel()
	if err := jobs.Start(jobCtx); err != nil {
		appLogger.Error("Failed to start background jobs", slog.Any("error", err))
		jobs = nil
	}

	// Initialize Rate Limiter
	var rateLimiter *ratelimit.RateLimiter
	switch {
	case !cfg.RateLimit.Enabled:
		appLogger.Info("Rate limiting disabled")
	case db.Redis == nil:
		appLogger.Warn("Rate limiting disabled: Redis unavailable")
	default:
		rateLimiter = ratelimit.NewRateLimiter(db.Redis, &ratelimit.Config{
			Enabled:                 cfg.RateLimit.Enabled,
			WindowDuration:          cfg.RateLimit.WindowDuration,
			DefaultRequests:         cfg.RateLimit.DefaultRequests,
			PublicRequests:          cfg.RateLimit.PublicRequests,
			BookingRequests:         cfg.RateLimit.BookingRequests,
			BookingCriticalRequests: cfg.RateLimit.BookingCriticalRequests,
			AdminRequests:           cfg.RateLimit.AdminRequests,
			UserRequests:            cfg.RateLimit.UserRequests,
			HealthRequests:          cfg.RateLimit.HealthRequests,
			WhitelistedIPs:          cfg.RateLimit.WhitelistedIPs,
		})
		appLogger.Info("Rate limiter initialized",
			slog.Duration("window", cfg.RateLimit.WindowDuration),
			slog.Int("default_requests", cfg.RateLimit.DefaultRequests),
		)
	}

	// Setup router with rate limiter
	router := setupRouter(cfg, db, application, jobs, rateLimiter)

	// HTTP server
	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        router,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		appLogger.Info("🚀 Server running",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("health_check", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
			slog.String("api_base", cfg.GetAPIBasePath()),
			slog.String("version", Version),
			slog.String("commit", GitCommit),
			slog.String("store", cfg.StoreDriver),
			slog.String("notify", cfg.NotifyDriver),
			slog.Bool("redis", db.Redis != nil),
			slog.Bool("rate_limiting", rateLimiter != nil),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed", slog.Any("error", err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Forced shutdown", slog.Any("error", err))
	}

	if jobs != nil {
		if err := jobs.Stop(); err != nil {
			appLogger.Error("Error stopping background jobs", slog.Any("error", err))
		}
	}

	// Let in-flight notifications finish before the sender goes away
	dispatcher.Wait()
	if err := closeSender(); err != nil {
		appLogger.Error("Error closing notification sender", slog.Any("error", err))
	}

	appLogger.Info("Server exited gracefully")
}

func buildStores(cfg *config.Config, db *database.DB) (app.Stores, error) {
	if cfg.UsesMemoryStore() {
		return app.MemoryStores(memstore.New()), nil
	}
	if err := app.Migrate(db.PostgreSQL); err != nil {
		return app.Stores{}, fmt.Errorf("migrate: %w", err)
	}
	return app.PostgresStores(db.PostgreSQL), nil
}

func setupRouter(cfg *config.Config, db *database.DB, application *app.App, jobs *sweeper.JobProcessor, rateLimiter *ratelimit.RateLimiter) *gin.Engine {
	engine := gin.New()
	appLogger := logger.GetDefault()

	// Built-in middleware: logs requests + recovers from panics
	engine.Use(RequestLoggerMiddleware(appLogger), gin.Recovery())

	// CORS configuration
	engine.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-RateLimit-*"},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Global rate limiting middleware (applied to all routes)
	if rateLimiter != nil {
		engine.Use(ratelimit.Middleware(rateLimiter))
	}

	appRouter := routes.NewRouter(cfg, db, application, jobs)
	appRouter.SetupRoutes(engine)

	return engine
}

func RequestLoggerMiddleware(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.LogHTTPRequest(c, time.Since(start))
	}
}
