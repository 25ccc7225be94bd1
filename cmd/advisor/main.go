package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/af-corp/aegis-advisor/internal/api"
	"github.com/af-corp/aegis-advisor/internal/budget"
	"github.com/af-corp/aegis-advisor/internal/config"
	"github.com/af-corp/aegis-advisor/internal/discovery"
	"github.com/af-corp/aegis-advisor/internal/eligibility"
	"github.com/af-corp/aegis-advisor/internal/health"
	"github.com/af-corp/aegis-advisor/internal/policy"
	"github.com/af-corp/aegis-advisor/internal/recommend"
	"github.com/af-corp/aegis-advisor/internal/selection"
	"github.com/af-corp/aegis-advisor/internal/store"
	"github.com/af-corp/aegis-advisor/internal/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

var version = "dev"

// backends groups the stores the services run on.
type backends struct {
	selections selection.StateStore
	ledger     budget.Ledger
	alerts     budget.AlertStore
	budgets    budget.ConfigStore
	samples    discovery.SampleStore
	close      func()
}

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	loader := config.NewLoader(*configDir, logger)
	if err := loader.Load(); err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	cfg := loader.Config()
	logger = newLogger(cfg.Telemetry)
	slog.SetDefault(logger)

	if err := loader.Watch(); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}

	rdb := connectRedis(cfg.Redis, logger)
	if rdb != nil {
		defer rdb.Close()
	}

	be, err := openBackends(cfg, rdb, logger)
	if err != nil {
		logger.Error("failed to open storage", "backend", cfg.Storage.Backend, "error", err)
		os.Exit(1)
	}
	defer be.close()

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	tracker := health.NewTracker(cfg.Health.FailureThreshold, cfg.Health.RecoveryProbeInterval)

	// Eligibility gate
	evaluator := policy.NewEvaluator(func() config.PolicyConfig { return loader.Config().Policy })
	if cfg.Policy.Enabled {
		if err := evaluator.Load(); err != nil {
			logger.Error("failed to load policies", "path", cfg.Policy.BundlePath, "error", err)
			os.Exit(1)
		}
	}
	gate := eligibility.NewChain(
		eligibility.HealthCheck{},
		eligibility.AvailabilityCheck{},
		eligibility.NewHardwareCheck(hostProfile(cfg.Host)),
		evaluator,
	)
	gate.OnReject(metrics.RecordEligibilityRejection)

	loc, err := time.LoadLocation(cfg.Budget.Timezone)
	if err != nil {
		logger.Error("invalid budget timezone", "timezone", cfg.Budget.Timezone, "error", err)
		os.Exit(1)
	}
	budgets := budget.NewTracker(be.ledger, be.alerts, be.budgets,
		budget.Options{Location: loc, MinElapsed: cfg.Budget.MinElapsed}, metrics, logger)
	seedBudgets(budgets, loader.Budgets(), logger)

	loader.OnReload(func() {
		logger.Info("candidate pool reloaded", "candidates", len(loader.Candidates().Pool()))
		seedBudgets(budgets, loader.Budgets(), logger)
		if loader.Config().Policy.Enabled {
			if err := evaluator.Load(); err != nil {
				logger.Error("failed to reload policies", "error", err)
			}
		}
	})

	handler := api.NewHandler(api.Deps{
		Candidates: discovery.NewConfigSource(loader.Candidates, tracker),
		Metrics:    discovery.NewMetrics(loader.Candidates, be.samples),
		Gate:       gate,
		Ranker: recommend.NewRanker(nil, recommend.Options{
			Tolerance:  cfg.Scoring.Tolerance,
			MaxReasons: cfg.Scoring.MaxReasons,
		}, logger),
		Selection: selection.NewService(be.selections, gate, metrics, cfg.Selection.MaxCASRetries, logger),
		Budgets:   budgets,
		Health:    tracker,
		Config:    loader.Config,
		Telemetry: metrics,
		Logger:    logger,
		Version:   version,
	})

	// Router setup
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(api.RequestID)
	handler.Routes(r)
	r.Handle(cfg.Telemetry.MetricsPath, promhttp.Handler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("advisor starting", "addr", addr, "version", version, "storage", cfg.Storage.Backend)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("advisor stopped")
}

func newLogger(cfg config.TelemetryConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func connectRedis(cfg config.RedisConfig, logger *slog.Logger) *redis.Client {
	if len(cfg.Addresses) == 0 || cfg.Addresses[0] == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addresses[0],
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Warn("redis not reachable (selection cache and alert marks disabled)", "error", err)
		rdb.Close()
		return nil
	}
	logger.Info("redis connected")
	return rdb
}

func openBackends(cfg *config.Config, rdb *redis.Client, logger *slog.Logger) (*backends, error) {
	if cfg.Storage.Backend == "memory" {
		mem := store.NewMemoryStore()
		logger.Warn("using in-memory storage, state is lost on restart")
		return &backends{
			selections: mem,
			ledger:     mem,
			alerts:     mem,
			budgets:    mem,
			samples:    mem,
			close:      func() {},
		}, nil
	}

	dbPool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := dbPool.Ping(context.Background()); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("database connected")

	pg := store.NewPostgresStore(dbPool)
	return &backends{
		selections: store.NewCachedSelectionStore(pg, rdb, cfg.Redis.CacheTTL),
		ledger:     pg,
		alerts:     store.NewRedisAlertMarks(pg, rdb),
		budgets:    pg,
		samples:    pg,
		close:      dbPool.Close,
	}, nil
}

// hostProfile returns nil when no hardware is configured, which disables
// the compatibility check.
func hostProfile(h config.HostConfig) func() eligibility.Host {
	if len(h.CPUFeatures) == 0 && !h.HasGPU && h.RAMBytes == 0 && h.VRAMBytes == 0 {
		return nil
	}
	host := eligibility.Host{
		CPUFeatures: h.CPUFeatures,
		HasGPU:      h.HasGPU,
		RAMBytes:    h.RAMBytes,
		VRAMBytes:   h.VRAMBytes,
	}
	return func() eligibility.Host { return host }
}

// seedBudgets replaces the stored budget set with budgets.yaml when the file
// declares any budgets.
func seedBudgets(t *budget.Tracker, seed *config.BudgetsConfig, logger *slog.Logger) {
	if seed == nil || len(seed.Budgets) == 0 {
		return
	}
	if err := t.SaveConfigs(context.Background(), seed.Budgets); err != nil {
		logger.Error("failed to seed budgets from config", "error", err)
		return
	}
	logger.Info("budgets seeded from config", "count", len(seed.Budgets))
}
