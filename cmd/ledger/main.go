package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sachin12054/ai-expense-ledger-go/internal/config"
	"github.com/sachin12054/ai-expense-ledger-go/internal/domain"
	"github.com/sachin12054/ai-expense-ledger-go/internal/handler"
	"github.com/sachin12054/ai-expense-ledger-go/internal/infra/cache"
	"github.com/sachin12054/ai-expense-ledger-go/internal/infra/docstore"
	"github.com/sachin12054/ai-expense-ledger-go/internal/infra/insights"
	"github.com/sachin12054/ai-expense-ledger-go/internal/infra/observability"
	"github.com/sachin12054/ai-expense-ledger-go/internal/infra/resilience"
	"github.com/sachin12054/ai-expense-ledger-go/internal/service"

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
		zap.String("docstore_url", cfg.DocstoreURL),
		zap.String("insights_url", cfg.InsightsURL),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("watch_interval", cfg.WatchInterval),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "expense-ledger")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	aggCache := cache.New[domain.AccountAggregates](cfg.CacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("external-apis")

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	store := docstore.NewClient(
		httpClient,
		cfg.DocstoreURL,
		cfg.DocstoreAPIKey,
		cb,
		resilienceCfg,
		cfg.WatchInterval,
		logger,
	)
	insightsClient := insights.NewClient(httpClient, cfg.InsightsURL, cb, resilienceCfg)

	// --- Sync forwarder ---
	forwarder := service.NewForwarder(insightsClient, cfg.SyncBuffer, cfg.SyncTimeout, metrics, logger)
	forwarder.Start()
	defer forwarder.Shutdown()

	// --- Services ---
	watcher := service.NewAggregateWatcher(store, aggCache, logger)
	defer watcher.Close()

	ledgerSvc := service.NewLedgerService(store, insightsClient, forwarder, aggCache, metrics, logger).
		WithWatcher(watcher)
	verifier := service.NewTokenVerifier(cfg.JWTSecret)

	// --- Router ---
	router := handler.NewRouter(ledgerSvc, verifier, metrics, logger)

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
