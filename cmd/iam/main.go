package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmeireles/escolar-iam-go/internal/config"
	"github.com/dmeireles/escolar-iam-go/internal/domain"
	"github.com/dmeireles/escolar-iam-go/internal/handler"
	"github.com/dmeireles/escolar-iam-go/internal/infra/cache"
	"github.com/dmeireles/escolar-iam-go/internal/infra/memstore"
	"github.com/dmeireles/escolar-iam-go/internal/infra/observability"
	"github.com/dmeireles/escolar-iam-go/internal/infra/postgrest"
	"github.com/dmeireles/escolar-iam-go/internal/infra/resilience"
	"github.com/dmeireles/escolar-iam-go/internal/port"
	"github.com/dmeireles/escolar-iam-go/internal/service"

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
		zap.Bool("use_postgrest", cfg.UsePostgREST),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("jwt_access_ttl", cfg.JWTAccessTTL),
		zap.Int("bcrypt_cost", cfg.BcryptCost),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "escolar-iam")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	tenantCache := cache.New[*domain.Tenant](cfg.CacheTTL)

	// --- Stores ---
	var userStore port.AuthUserStore
	var tenantStore port.TenantStore

	if cfg.UsePostgREST && cfg.PostgRESTURL != "" {
		logger.Info("using PostgREST as data backend",
			zap.String("postgrest_url", cfg.PostgRESTURL),
		)
		resilienceCfg := resilience.Config{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.InitialBackoff,
			MaxConcurrency: cfg.MaxConcurrency,
		}
		cb := resilience.NewCircuitBreaker("postgrest")
		httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
		pgClient := postgrest.NewClient(
			httpClient,
			cfg.PostgRESTURL,
			cfg.PostgRESTAPIKey,
			cfg.PostgRESTServiceKey,
			cb,
			resilienceCfg,
			logger,
		)
		userStore = postgrest.NewAuthUserStore(pgClient, logger)
		tenantStore = postgrest.NewTenantStore(pgClient, logger)
	} else {
		logger.Warn("PostgREST not configured, using in-memory store (data is volatile)")
		store := memstore.New()
		userStore = store
		tenantStore = store
	}

	// --- Services ---
	hasher := service.NewBcryptHasher(cfg.BcryptCost, metrics)
	tokens := service.NewTokenService(cfg.JWTSecret, cfg.JWTAccessTTL)
	policies := service.NewPoliciesService(metrics, logger)

	authSvc := service.NewAuthService(
		userStore,
		tenantStore,
		tenantCache,
		hasher,
		tokens,
		int(cfg.JWTAccessTTL.Seconds()),
		cfg.MaxConcurrency,
		metrics,
		logger,
	)
	tenantSvc := service.NewTenantService(tenantStore, tenantCache, policies, logger)

	// --- Router ---
	router := handler.NewRouter(authSvc, tenantSvc, tokens, metrics, logger)

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
