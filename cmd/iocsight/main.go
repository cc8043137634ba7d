package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/iocsight/internal/config"
	"github.com/kailas-cloud/iocsight/internal/db"
	dbRedis "github.com/kailas-cloud/iocsight/internal/db/redis"
	"github.com/kailas-cloud/iocsight/internal/domain"
	logpkg "github.com/kailas-cloud/iocsight/internal/logger"
	"github.com/kailas-cloud/iocsight/internal/metrics"
	budgetrepo "github.com/kailas-cloud/iocsight/internal/repository/budget"
	"github.com/kailas-cloud/iocsight/internal/repository/embcache"
	indexrepo "github.com/kailas-cloud/iocsight/internal/repository/index"
	chiTransport "github.com/kailas-cloud/iocsight/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/iocsight/internal/transport/openai"
	analysisuc "github.com/kailas-cloud/iocsight/internal/usecase/analysis"
	dashboarduc "github.com/kailas-cloud/iocsight/internal/usecase/dashboard"
	embeddinguc "github.com/kailas-cloud/iocsight/internal/usecase/embedding"
	generationuc "github.com/kailas-cloud/iocsight/internal/usecase/generation"
	healthuc "github.com/kailas-cloud/iocsight/internal/usecase/health"
	searchuc "github.com/kailas-cloud/iocsight/internal/usecase/search"
	usageuc "github.com/kailas-cloud/iocsight/internal/usecase/usage"
	"github.com/kailas-cloud/iocsight/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting iocsight API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("namespace", cfg.Index.Namespace),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()

	// Single BudgetTracker shared across embedding, generation and usage.
	var budget *usageuc.BudgetTracker
	if cfg.Budget.DailyTokenLimit > 0 || cfg.Budget.MonthlyTokenLimit > 0 {
		action := usageuc.BudgetActionWarn
		if cfg.Budget.Action == "reject" {
			action = usageuc.BudgetActionReject
		}
		budget = usageuc.NewBudgetTracker(
			cfg.Generation.Provider, cfg.Budget.DailyTokenLimit, cfg.Budget.MonthlyTokenLimit, action, logger,
		)
		// Connect persistence store and load current counters from DB.
		budgetStore := budgetrepo.New(store, 48*time.Hour, 62*24*time.Hour)
		budget.WithStore(ctx, budgetStore)
	}

	embedder := buildEmbedder(cfg, store, budget, logger)
	generator := buildGenerator(cfg, budget, logger)
	logger.Info("Providers created",
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.String("generation_provider", cfg.Generation.Provider),
		zap.String("generation_model", cfg.Generation.Model),
	)

	indexRepo := indexrepo.New(store)

	// Use case services
	searchSvc := searchuc.New(embedder, indexRepo, cfg.Index.Namespace)
	analysisSvc := analysisuc.New(embedder, indexRepo, generator, cfg.Index.Namespace)

	var limiter *rate.Limiter
	if cfg.Dashboard.RateLimitPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Dashboard.RateLimitPerSec), 1)
	}
	dashboardSvc := dashboarduc.New(
		embedder, indexRepo, analysisSvc,
		cfg.Index.Namespace, cfg.Dashboard.Seed, cfg.Dashboard.TopK, cfg.Dashboard.Concurrency,
		limiter, logger,
	)

	// Usage service reads from the shared BudgetTracker
	var budgetReader usageuc.BudgetReader
	if budget != nil {
		budgetReader = budget
	}
	usageSvc := usageuc.New(budgetReader)

	healthSvc := healthuc.New(store,
		newProviderHealthChecker(embedder),
		generatorHealthChecker{gen: generator},
	)

	server := chiTransport.NewServer(searchSvc, analysisSvc, dashboardSvc, usageSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented.
func buildEmbedder(
	cfg config.Config, store db.Store, budget *usageuc.BudgetTracker, logger *zap.Logger,
) domain.Embedder {
	// Base provider (with transport metrics built-in)
	base := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if cfg.Embedding.CacheTTLSec > 0 {
		ttl := time.Duration(cfg.Embedding.CacheTTLSec) * time.Second
		embedder = embcache.New(base, store, ttl, metrics.EmbeddingCacheTotal, logger)
	}

	// Pass nil interface (not typed nil pointer!) if budget is not configured.
	// Go gotcha: (*BudgetTracker)(nil) wrapped in BudgetChecker != nil.
	var checker embeddinguc.BudgetChecker
	if budget != nil {
		checker = budget
	}

	return embeddinguc.NewInstrumentedEmbedder(
		embedder, cfg.Embedding.Provider, cfg.Embedding.Model, checker, logger,
	)
}

// buildGenerator assembles the generator chain: OpenAI-compatible -> Instrumented.
func buildGenerator(
	cfg config.Config, budget *usageuc.BudgetTracker, logger *zap.Logger,
) domain.Generator {
	var timeout time.Duration
	if cfg.Generation.RequestTimeoutSec > 0 {
		timeout = time.Duration(cfg.Generation.RequestTimeoutSec) * time.Second
	}

	base := openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIKey:         cfg.Generation.APIKey,
		BaseURL:        cfg.Generation.BaseURL,
		Model:          cfg.Generation.Model,
		Temperature:    cfg.Generation.Temperature,
		TopP:           cfg.Generation.TopP,
		RequestTimeout: timeout,
		Provider:       cfg.Generation.Provider,
		Logger:         logger,
	})

	var checker generationuc.BudgetChecker
	if budget != nil {
		checker = budget
	}

	return generationuc.NewInstrumentedGenerator(
		base, cfg.Generation.Provider, cfg.Generation.Model, checker, logger,
	)
}

// providerHealthChecker wraps domain.Embedder to implement health.ProviderChecker.
type providerHealthChecker struct {
	embedder domain.Embedder
}

func newProviderHealthChecker(embedder domain.Embedder) *providerHealthChecker {
	return &providerHealthChecker{embedder: embedder}
}

func (h *providerHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// generatorHealthChecker wraps domain.Generator to implement health.ProviderChecker.
type generatorHealthChecker struct {
	gen domain.Generator
}

func (h generatorHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.gen.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("generation health check: %w", err)
		}
	}
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
