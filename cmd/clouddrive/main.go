package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clouddrive/clouddrive-bfa-go/internal/config"
	"github.com/clouddrive/clouddrive-bfa-go/internal/domain"
	"github.com/clouddrive/clouddrive-bfa-go/internal/handler"
	"github.com/clouddrive/clouddrive-bfa-go/internal/infra/cache"
	"github.com/clouddrive/clouddrive-bfa-go/internal/infra/observability"
	"github.com/clouddrive/clouddrive-bfa-go/internal/infra/resilience"
	"github.com/clouddrive/clouddrive-bfa-go/internal/infra/supabase"
	"github.com/clouddrive/clouddrive-bfa-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Duration("pending_request_ttl", cfg.PendingRequestTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
	)

	if cfg.SupabaseURL == "" {
		logger.Fatal("SUPABASE_URL is required")
	}
	if cfg.SupabaseJWTSecret == "" {
		logger.Fatal("SUPABASE_JWT_SECRET is required")
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "clouddrive-bfa")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	profileCache := cache.New[domain.Profile](cfg.CacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("supabase")
	bulkhead := resilience.NewBulkhead(cfg.MaxConcurrency)

	// --- Supabase client ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	supabaseClient := supabase.NewClient(
		httpClient,
		cfg.SupabaseURL,
		cfg.SupabaseAnonKey,
		cfg.SupabaseServiceKey,
		cb,
		resilienceCfg,
		logger,
	)

	// --- Services ---
	subSvc := service.NewSubscriptionService(supabaseClient, profileCache, metrics, logger, cfg.PendingRequestTTL)
	adminSvc := service.NewAdminService(supabaseClient, supabaseClient, profileCache, bulkhead, metrics, logger)
	authSvc := service.NewAuthService(supabaseClient, cfg.SupabaseJWTSecret, logger)
	contactSvc := service.NewContactService(supabaseClient, metrics, logger)

	// --- Router ---
	router := handler.NewRouter(subSvc, adminSvc, authSvc, contactSvc, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
