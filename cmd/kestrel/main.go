// Kestrel - Rule-based risk scoring for payment charges.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/opensource-finance/osprey/internal/api"
	"github.com/opensource-finance/osprey/internal/bus"
	"github.com/opensource-finance/osprey/internal/domain"
	"github.com/opensource-finance/osprey/internal/explain"
	"github.com/opensource-finance/osprey/internal/reference"
	"github.com/opensource-finance/osprey/internal/repository"
	"github.com/opensource-finance/osprey/internal/risk"
	"github.com/opensource-finance/osprey/internal/rules"
	"github.com/opensource-finance/osprey/internal/scoring"
	"github.com/opensource-finance/osprey/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Load .env if present; real environment wins.
	_ = godotenv.Load()

	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KESTREL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()
	if os.Getenv("KESTREL_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}
	applyEnvOverrides(cfg)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"rules_source", cfg.Rules.SourcePath,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize reference lists
	lists, err := reference.NewLists(cfg.Reference.SourcePath)
	if err != nil {
		slog.Error("failed to load reference lists", "error", err)
		os.Exit(1)
	}
	slog.Info("reference lists loaded",
		"risky_domains", len(lists.RiskyDomains()),
		"currencies", len(lists.SupportedCurrencies()),
	)

	// Initialize condition evaluator
	evaluator, err := rules.NewEvaluator(lists)
	if err != nil {
		slog.Error("failed to initialize condition evaluator", "error", err)
		os.Exit(1)
	}

	// Initialize rule store from the declarative source
	store := rules.NewStore(rules.NewFileSource(cfg.Rules.SourcePath), evaluator)
	if _, err := store.Load(); err != nil {
		slog.Error("failed to load rules", "source", cfg.Rules.SourcePath, "error", err)
		os.Exit(1)
	}
	slog.Info("rule store initialized", "rules_count", store.RulesCount())

	// Initialize scoring engine
	engine := scoring.NewEngine(store, evaluator, cfg.Scoring.HighRiskThreshold)
	slog.Info("scoring engine initialized", "threshold", cfg.Scoring.HighRiskThreshold)

	// Initialize explanation cache and generator
	cacheImpl, err := explain.NewCache(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize explanation cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("explanation cache initialized", "type", cfg.Cache.Type)

	var generator explain.Generator
	if cfg.Explain.ProviderURL != "" {
		generator = explain.NewHTTPGenerator(cfg.Explain)
		slog.Info("explanation provider configured", "model", cfg.Explain.Model)
	} else {
		slog.Info("no explanation provider configured, using deterministic fallback")
	}

	explainer := explain.NewExplainer(cacheImpl, generator)

	// Initialize risk service
	service := risk.NewService(store, engine, explainer)

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize async audit worker (Pro tier, or opt-in)
	asyncAudit := cfg.Tier == domain.TierPro || os.Getenv("KESTREL_ASYNC_AUDIT") == "true"
	var auditWorker *worker.Worker
	if asyncAudit {
		auditWorker = worker.NewWorker(busImpl, repo)
		if err := auditWorker.Start(); err != nil {
			slog.Error("failed to start audit worker", "error", err)
			os.Exit(1)
		}
	}

	// Watch declarative sources for hot reload
	watcher := reference.NewSourceWatcher()
	watchAnything := false
	if cfg.Rules.WatchSource && cfg.Rules.SourcePath != "" {
		if err := watcher.Watch(cfg.Rules.SourcePath, store.Reload); err != nil {
			slog.Warn("failed to watch rule source", "error", err)
		} else {
			watchAnything = true
		}
	}
	if cfg.Reference.WatchSource && cfg.Reference.SourcePath != "" {
		if err := watcher.Watch(cfg.Reference.SourcePath, lists.Reload); err != nil {
			slog.Warn("failed to watch reference source", "error", err)
		} else {
			watchAnything = true
		}
	}
	if watchAnything {
		go func() {
			if err := watcher.Run(ctx); err != nil {
				slog.Error("source watcher stopped", "error", err)
			}
		}()
	}

	// Initialize Server
	handler := api.NewHandler(service, repo, busImpl, cacheImpl, asyncAudit)
	srv := api.NewServer(cfg.Server, handler)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	if auditWorker != nil {
		if err := auditWorker.Stop(); err != nil {
			slog.Error("failed to stop audit worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

// applyEnvOverrides layers environment settings over tier defaults.
func applyEnvOverrides(cfg *domain.Config) {
	if v := os.Getenv("KESTREL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("KESTREL_RULES_PATH"); v != "" {
		cfg.Rules.SourcePath = v
	}
	if v := os.Getenv("KESTREL_REFERENCE_PATH"); v != "" {
		cfg.Reference.SourcePath = v
	}
	if v := os.Getenv("KESTREL_HIGH_RISK_THRESHOLD"); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil && t > 0 {
			cfg.Scoring.HighRiskThreshold = t
		}
	}
	if v := os.Getenv("KESTREL_EXPLAIN_URL"); v != "" {
		cfg.Explain.ProviderURL = v
	}
	if v := os.Getenv("KESTREL_EXPLAIN_KEY"); v != "" {
		cfg.Explain.ProviderKey = v
	}
	if v := os.Getenv("KESTREL_EXPLAIN_MODEL"); v != "" {
		cfg.Explain.Model = v
	}
	if v := os.Getenv("KESTREL_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("KESTREL_POSTGRES_HOST"); v != "" {
		cfg.Repository.PostgresHost = v
	}
	if v := os.Getenv("KESTREL_POSTGRES_PASSWORD"); v != "" {
		cfg.Repository.PostgresPassword = v
	}
	if v := os.Getenv("KESTREL_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("KESTREL_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               KESTREL                     ║")
	fmt.Println("  ║     Charge Risk Screening Engine          ║")
	fmt.Println("  ║      Every charge, weighed.               ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /api/v1/charges                  - Screen a charge")
	fmt.Println("    GET  /api/v1/charges/{id}             - Get charge by ID")
	fmt.Println("    GET  /api/v1/charges/{id}/assessments - List assessments for a charge")
	fmt.Println("    GET  /api/v1/assessments/{id}         - Get assessment by ID")
	fmt.Println("    GET  /api/v1/rules                    - List active rules")
	fmt.Println("    POST /api/v1/rules/reload             - Hot-reload rules from source")
	fmt.Println("    GET  /api/v1/explanations/cache       - Explanation cache size")
	fmt.Println("    DEL  /api/v1/explanations/cache       - Clear explanation cache")
	fmt.Println("    GET  /health                          - Health check")
	fmt.Println("    GET  /metrics                         - Prometheus metrics")
	fmt.Println()
}
