package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/seal-console/internal/config"
	"github.com/boddenberg/seal-console/internal/domain"
	"github.com/boddenberg/seal-console/internal/handler"
	"github.com/boddenberg/seal-console/internal/infra/cache"
	"github.com/boddenberg/seal-console/internal/infra/gateway"
	"github.com/boddenberg/seal-console/internal/infra/launcher"
	"github.com/boddenberg/seal-console/internal/infra/observability"
	"github.com/boddenberg/seal-console/internal/infra/resilience"
	"github.com/boddenberg/seal-console/internal/infra/supabase"
	"github.com/boddenberg/seal-console/internal/onboarding"
	"github.com/boddenberg/seal-console/internal/pipeline"
	"github.com/boddenberg/seal-console/internal/service"
	"github.com/boddenberg/seal-console/internal/session"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("api_url", cfg.APIURL),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("schedule_poll_interval", cfg.SchedulePollInterval),
		zap.Bool("dev_mode", cfg.DevMode),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "seal-console")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	trainingCache := cache.New[*domain.TrainingOverview](cfg.CacheTTL)
	defer trainingCache.Close()
	boardCache := cache.New[*pipeline.Collection](cfg.CacheTTL)
	defer boardCache.Close()
	workspaceCache := cache.New[any](cfg.CacheTTL)
	defer workspaceCache.Close()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
	}
	apiBreaker := resilience.NewCircuitBreaker("seal-api", resilience.IsOutage, logger)
	authBreaker := resilience.NewCircuitBreaker("identity", resilience.IsOutage, logger)

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	auth := supabase.NewAuth(httpClient, cfg.SupabaseURL, cfg.SupabaseAnonKey, authBreaker,
		supabase.NewSessionFile(cfg.SessionFile), logger)
	defer auth.Close()

	store := session.NewStore(auth, nil, logger)
	defer store.Close()

	api := gateway.NewClient(httpClient, cfg.APIURL, store, apiBreaker, resilienceCfg, logger,
		gateway.WithDevMode(cfg.DevMode),
		gateway.WithMetrics(metrics),
	)
	store.SetProfileFetcher(api)

	opener := launcher.New(cfg.OpenerCommand, logger)
	defer opener.Wait()

	// --- Services ---
	machine := onboarding.NewMachine(api, store, opener, trainingCache, onboarding.Config{
		SchedulingURL: cfg.SchedulingURL,
		ContractURL:   cfg.ContractURL,
		PollInterval:  cfg.SchedulePollInterval,
	}, logger, onboarding.WithPollRecorder(metrics.IncrPollTick))
	defer machine.Close()

	engine := pipeline.NewEngine(api, store, boardCache, logger, pipeline.WithMetrics(metrics))
	workspace := service.NewWorkspace(api, engine, store, workspaceCache, metrics, logger)

	store.Subscribe(machine.Observe)
	store.Subscribe(engine.Observe)

	initCtx, cancelInit := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	if err := store.Initialize(initCtx); err != nil {
		logger.Warn("session initialization failed, starting signed out", zap.Error(err))
	}
	cancelInit()

	// --- Router ---
	svc := handler.Services{
		Session:     store,
		Onboarding:  machine,
		Pipeline:    engine,
		Workspace:   workspace,
		Health:      []handler.HealthReporter{api},
		Metrics:     metrics,
		CORSOrigins: cfg.CORSOrigins,
	}
	if api.DevMode() {
		svc.Dev = api
		logger.Warn("dev mode enabled, simulation routes mounted")
	}
	router := handler.NewRouter(svc, logger)

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
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
		logger.Error("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
