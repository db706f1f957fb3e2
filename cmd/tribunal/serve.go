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

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	thttp "github.com/forensiq/tribunal/internal/adapter/http"
	"github.com/forensiq/tribunal/internal/adapter/litellm"
	"github.com/forensiq/tribunal/internal/adapter/llmcache"
	tmcp "github.com/forensiq/tribunal/internal/adapter/mcp"
	tnats "github.com/forensiq/tribunal/internal/adapter/nats"
	"github.com/forensiq/tribunal/internal/adapter/natskv"
	"github.com/forensiq/tribunal/internal/adapter/otel"
	"github.com/forensiq/tribunal/internal/adapter/postgres"
	"github.com/forensiq/tribunal/internal/adapter/ristretto"
	"github.com/forensiq/tribunal/internal/adapter/tiered"
	"github.com/forensiq/tribunal/internal/adapter/ws"
	"github.com/forensiq/tribunal/internal/config"
	"github.com/forensiq/tribunal/internal/logger"
	"github.com/forensiq/tribunal/internal/middleware"
	"github.com/forensiq/tribunal/internal/port/eventbus"
	"github.com/forensiq/tribunal/internal/render"
	"github.com/forensiq/tribunal/internal/secrets"
	"github.com/forensiq/tribunal/internal/service"
)

const version = "0.1.0"

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(log)

	log.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"judge_model", cfg.LiteLLM.Model,
	)

	ctx := context.Background()

	// Secret vault with SIGHUP hot reload, so key rotation does not need a
	// restart.
	vault, err := secrets.NewVault(secrets.EnvLoader("LITELLM_MASTER_KEY"))
	if err != nil {
		return fmt.Errorf("secrets: %w", err)
	}
	if key := vault.Get("LITELLM_MASTER_KEY"); key != "" {
		cfg.LiteLLM.MasterKey = key
	}
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			if reloadErr := vault.Reload(); reloadErr != nil {
				log.Error("secret reload failed", "error", reloadErr)
			} else {
				log.Info("secrets reloaded")
			}
		}
	}()

	// --- Telemetry ---

	var metrics *otel.Metrics
	if cfg.Telemetry.Enabled {
		shutdown, otelErr := otel.Init(ctx, cfg.Logging.Service, cfg.Telemetry.OTLPEndpoint)
		if otelErr != nil {
			return fmt.Errorf("otel: %w", otelErr)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if sdErr := shutdown(shutdownCtx); sdErr != nil {
				log.Error("otel shutdown failed", "error", sdErr)
			}
		}()
		metrics, otelErr = otel.NewMetrics()
		if otelErr != nil {
			return fmt.Errorf("otel metrics: %w", otelErr)
		}
	}

	// --- Infrastructure ---

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	log.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	log.Info("migrations applied")

	bus, err := tnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() {
		if drainErr := bus.Drain(); drainErr != nil {
			log.Error("nats drain failed", "error", drainErr)
		}
	}()

	// --- LLM client with circuit breaker and tiered completion cache ---

	llmClient := litellm.NewClient(cfg.LiteLLM.URL, cfg.LiteLLM.MasterKey)
	llmClient.SetBreaker(newBreaker(cfg))

	l1, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	kv, err := bus.KeyValue(ctx, "tribunal_llm_cache")
	if err != nil {
		return fmt.Errorf("nats kv: %w", err)
	}
	completionCache := tiered.New(l1, natskv.New(kv), cfg.Cache.TTL)
	cachedLLM := llmcache.New(llmClient, completionCache, cfg.Cache.TTL, log)

	// --- Pipeline and services ---

	hub := ws.NewHub()
	events := eventbus.Multi{bus, hub}

	runner, err := buildRunner(cfg, log, cachedLLM, events)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	auditSvc := service.NewAuditService(
		log,
		runner,
		postgres.NewStore(pool),
		render.New(cfg.Pipeline.OutputDir),
		metrics,
	)

	// --- MCP ---

	if cfg.MCP.Enabled {
		mcpSrv := tmcp.NewServer(tmcp.ServerConfig{
			Addr:    cfg.MCP.Addr,
			Name:    "tribunal",
			Version: version,
			APIKey:  cfg.MCP.APIKey,
		}, tmcp.ServerDeps{
			Auditor: auditSvc,
			Reports: auditSvc,
			Log:     log,
		})
		if err := mcpSrv.Start(); err != nil {
			return fmt.Errorf("mcp: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if stopErr := mcpSrv.Stop(stopCtx); stopErr != nil {
				log.Error("mcp shutdown failed", "error", stopErr)
			}
		}()
	}

	// --- HTTP ---

	handlers := &thttp.Handlers{
		Audits:  auditSvc,
		LiteLLM: llmClient,
		Hub:     hub,
		DB:      pool,
		Version: version,
	}

	limiter := middleware.NewRateLimiter(5, 20)
	stopCleanup := limiter.StartCleanup(time.Minute, 10*time.Minute)
	defer stopCleanup()

	r := chi.NewRouter()
	r.Use(thttp.CORS(cfg.Server.CORSOrigin))
	r.Use(thttp.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(thttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(limiter.Handler)
	r.Use(middleware.BearerAuth(cfg.Server.APITokenHash))
	if cfg.Telemetry.Enabled {
		r.Use(otel.HTTPMiddleware(cfg.Logging.Service))
	}

	thttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Audits block until the verdict; the write timeout must cover a
		// full pipeline run.
		WriteTimeout: cfg.Pipeline.DetectiveTimeout + cfg.Pipeline.JudgeTimeout + time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("starting server", "addr", addr)
		if serveErr := srv.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			log.Error("server failed", "error", serveErr)
		}
	}()

	<-done
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
