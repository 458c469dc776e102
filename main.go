package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/dineflow/dineflow-engine/pkg/auth"
	"github.com/dineflow/dineflow-engine/pkg/config"
	"github.com/dineflow/dineflow-engine/pkg/database"
	"github.com/dineflow/dineflow-engine/pkg/handlers"
	"github.com/dineflow/dineflow-engine/pkg/logging"
	"github.com/dineflow/dineflow-engine/pkg/middleware"
	"github.com/dineflow/dineflow-engine/pkg/repositories"
	"github.com/dineflow/dineflow-engine/pkg/retry"
	"github.com/dineflow/dineflow-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.Bool("scheduler_enabled", cfg.Scheduler.Enabled),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())))

	// Connect to PostgreSQL with retry (the database may still be starting)
	connStr := cfg.Database.ConnectionString()
	db, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*database.DB, error) {
		return database.NewConnection(ctx, &database.Config{
			URL:            connStr,
			MaxConnections: cfg.Database.MaxConnections,
		})
	})
	if err != nil {
		logger.Fatal("Failed to connect to database",
			zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	// Run migrations using database/sql (required by golang-migrate)
	sqlDB, err := sql.Open("pgx", connStr)
	if err != nil {
		logger.Fatal("Failed to open migration connection",
			zap.String("error", logging.SanitizeError(err)))
	}
	if err := database.RunMigrations(sqlDB, cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations",
			zap.String("error", logging.SanitizeError(err)))
	}
	_ = sqlDB.Close()

	// Repositories
	menuRepo := repositories.NewMenuRepository()
	orderRepo := repositories.NewOrderRepository()
	sessionRepo := repositories.NewSessionRepository()
	recRepo := repositories.NewRecommendationRepository()

	// Services
	recommendationService := services.NewRecommendationService(
		db, menuRepo, orderRepo, recRepo, cfg.Recommender, logger)
	trendService := services.NewTrendService(recRepo, logger)
	analyticsService := services.NewAnalyticsService(recRepo, trendService, cfg.Recommender, logger)
	cartService := services.NewCartService(sessionRepo, recRepo, logger)

	// Authentication
	var verifier auth.TokenVerifier
	if cfg.Auth.EnableVerification {
		verifier = auth.NewTokenVerifier(cfg.Auth.SigningKey)
	} else {
		logger.Warn("Staff token verification is DISABLED; do not run this way in production")
		verifier = auth.NewNoopVerifier()
	}
	authService := auth.NewAuthService(verifier, logger)
	authMiddleware := auth.NewMiddleware(authService, logger)
	guestStore := auth.NewGuestSessionStore(cfg.Auth.GuestCookieSecret)

	// HTTP routes
	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewRecommendationsHandler(recommendationService, analyticsService, logger).
		RegisterRoutes(mux, authMiddleware)
	handlers.NewCartHandler(cartService, guestStore, logger).RegisterRoutes(mux)

	root := middleware.RequestLogger(logger)(database.WithQuerierContext(db)(mux.ServeHTTP))

	// Background rebuild loop
	if cfg.Scheduler.Enabled {
		scheduler := services.NewRebuildScheduler(recommendationService, cfg.Scheduler, logger)
		scheduler.Start()
		defer scheduler.Stop()
	}

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting dineflow-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", zap.Error(err))
		}
	}
}

// newLogger builds a production logger outside local development so log
// output stays machine-parseable in deployed environments.
func newLogger(env string) (*zap.Logger, error) {
	switch env {
	case "local", "dev", "development", "test":
		return zap.NewDevelopment()
	default:
		return zap.NewProduction()
	}
}
