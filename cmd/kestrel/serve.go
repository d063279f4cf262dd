package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/opensource-finance/kestrel/internal/api"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/decision"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/metrics"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/rulepack"
	"github.com/opensource-finance/kestrel/internal/worker"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the assessment HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}

	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		return err
	}
	if cfg.Tier == domain.TierPro {
		slog.Info("running in Pro tier mode")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"rulepack", cfg.Rulepack.Path,
		"rulepack_watch", cfg.Rulepack.Watch,
	)

	// Cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("failed to initialize event bus: %w", err)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	m := metrics.New(prometheus.DefaultRegisterer)

	// Load the rulepack; the service does not start without one
	store := rulepack.NewStore(cfg.Rulepack.Path)
	store.OnReload = rulepack.AuditHook(repo, busImpl, m)
	if _, err := store.Load(ctx); err != nil {
		return fmt.Errorf("failed to load rulepack: %w", err)
	}

	if cfg.Rulepack.Watch {
		watcher, err := rulepack.NewWatcher(cfg.Rulepack.Path, store, cfg.Rulepack.WatchDebounce)
		if err != nil {
			return fmt.Errorf("failed to create rulepack watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("failed to start rulepack watcher: %w", err)
		}
		defer watcher.Stop()
	}

	// SIGHUP reloads the rulepack in place
	hupCh := make(chan os.Signal, 1)
	signal.Notify(hupCh, syscall.SIGHUP)
	defer signal.Stop(hupCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hupCh:
				slog.Info("received SIGHUP, reloading rulepack")
				_, _ = store.Reload(ctx, rulepack.TriggerSignal)
			}
		}
	}()

	processor := decision.NewProcessor(store, m)

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("KESTREL_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, cacheImpl, processor)
		asyncWorker.CacheTTL = cfg.Cache.AssessmentTTL

		tenantIDs := tenantList(os.Getenv("KESTREL_TENANTS"))
		if err := asyncWorker.Start(worker.Config{TenantIDs: tenantIDs}); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, api.Deps{
		Repo:          repo,
		Cache:         cacheImpl,
		Bus:           busImpl,
		Rulepacks:     store,
		Processor:     processor,
		Gatherer:      prometheus.DefaultGatherer,
		Version:       Version,
		AssessmentTTL: cfg.Cache.AssessmentTTL,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"rulepack_version", store.Current().Version(),
	)

	printBanner(cfg, Version, store.Current())

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
	case serveErr = <-errCh:
		slog.Error("server failed", "error", serveErr)
	}

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
	return serveErr
}

func printBanner(cfg *domain.Config, version string, snap *rulepack.Snapshot) {
	fmt.Println()
	fmt.Println("  KESTREL")
	fmt.Println("  Source-of-wealth risk assessment")
	fmt.Println()
	fmt.Printf("  Version:   %s\n", version)
	fmt.Printf("  Tier:      %s\n", cfg.Tier)
	fmt.Printf("  Rulepack:  %s (%s)\n", snap.Version(), cfg.Rulepack.Path)
	fmt.Printf("  Server:    http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /evaluate                   - Assess a case")
	fmt.Println("    POST /cases                      - Queue a case for async assessment")
	fmt.Println("    GET  /assessments/{id}           - Get assessment by ID")
	fmt.Println("    GET  /cases/{caseID}/assessments - Assessment history of a case")
	fmt.Println("    GET  /rulepack                   - Active rulepack")
	fmt.Println("    GET  /rulepack/history           - Rulepack load history")
	fmt.Println("    POST /rulepack/reload            - Reload the rulepack file")
	fmt.Println("    GET  /health                     - Health check")
	fmt.Println("    GET  /metrics                    - Prometheus metrics")
	fmt.Println()
}
