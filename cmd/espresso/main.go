package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	esphttp "github.com/catalpa-cl/espresso/internal/adapter/http"
	espnats "github.com/catalpa-cl/espresso/internal/adapter/nats"
	espotel "github.com/catalpa-cl/espresso/internal/adapter/otel"
	"github.com/catalpa-cl/espresso/internal/adapter/postgres"
	"github.com/catalpa-cl/espresso/internal/adapter/ristretto"
	"github.com/catalpa-cl/espresso/internal/adapter/ws"
	"github.com/catalpa-cl/espresso/internal/config"
	"github.com/catalpa-cl/espresso/internal/logger"
	"github.com/catalpa-cl/espresso/internal/resilience"
	"github.com/catalpa-cl/espresso/internal/secrets"
	"github.com/catalpa-cl/espresso/internal/service"
	"github.com/catalpa-cl/espresso/internal/tokens"
)

func main() {
	args := os.Args[1:]
	if len(args) > 0 && args[0] == "admin" {
		if err := runAdmin(args[1:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := run(args); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return err
	}
	cfg, cfgPath, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"language", cfg.Engine.Language,
	)

	ctx := context.Background()

	// --- Secrets ---
	vault, err := secrets.NewVault(secrets.EnvLoader("ESPRESSO_ENCRYPTION_KEY"))
	if err != nil {
		return fmt.Errorf("secrets: %w", err)
	}
	keyHex := vault.Get("ESPRESSO_ENCRYPTION_KEY")
	if keyHex == "" {
		keyHex = cfg.Secrets.EncryptionKey
	}
	if keyHex == "" {
		return fmt.Errorf("ESPRESSO_ENCRYPTION_KEY is required (hex-encoded 32 bytes)")
	}
	slog.Info("encryption key loaded", "key", vault.Redacted("ESPRESSO_ENCRYPTION_KEY"))

	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return fmt.Errorf("encryption key: %w", err)
	}
	cipher, err := secrets.NewCipher(key)
	if err != nil {
		return fmt.Errorf("encryption key: %w", err)
	}

	// --- Infrastructure ---

	// PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	// NATS
	queue, err := espnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()
	slog.Info("nats connected", "url", cfg.NATS.URL)

	// Cache
	cache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer cache.Close()

	// Metrics (no-op when no OTLP endpoint is configured)
	shutdownMeter, err := espotel.InitMeter(ctx, cfg.Otel.ServiceName, cfg.Otel.Endpoint)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownMeter(shutdownCtx)
	}()
	metrics, err := espotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Services ---
	hub := ws.NewHub(cfg.Server.CORSOrigin)
	store := postgres.NewStore(pool)

	catalogSvc := service.NewCatalogService(store, cache, cfg.Cache.CatalogTTL)
	providerSvc := service.NewProviderService(store, cipher, catalogSvc, queue)
	modelSvc := service.NewModelService(store, catalogSvc)
	feedbackSvc := service.NewFeedbackService(store)
	recorderSvc := service.NewRecorderService(store, queue, hub)
	quotaSvc := service.NewQuotaService(store, tokens.NewEstimator(cfg.Engine.Language))

	invoker := resilience.NewInvoker(
		resilience.NewBreakerSet(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	orchestratorSvc := service.NewOrchestratorService(
		store, catalogSvc, providerSvc, quotaSvc, recorderSvc, invoker, metrics)
	orchestratorSvc.SetRecordTimeout(cfg.Engine.RecordTimeout)

	// --- HTTP ---
	handlers := &esphttp.Handlers{
		Feedbacks:    feedbackSvc,
		Providers:    providerSvc,
		Models:       modelSvc,
		Catalog:      catalogSvc,
		Recorder:     recorderSvc,
		Orchestrator: orchestratorSvc,
		Hub:          hub,
		StreamBuffer: cfg.Engine.StreamBuffer,
	}

	r := chi.NewRouter()

	r.Use(esphttp.CORS(cfg.Server.CORSOrigin))
	r.Use(esphttp.SecurityHeaders)
	r.Use(esphttp.CorrelationID)
	r.Use(esphttp.Logger)
	r.Use(espotel.HTTPMiddleware(cfg.Otel.ServiceName))
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	esphttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Generous write timeout: SSE run streams stay open for the
		// duration of a full feedback session.
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := queue.Drain(); err != nil {
		slog.Warn("nats drain failed", "error", err)
	}
	return srv.Shutdown(shutdownCtx)
}
