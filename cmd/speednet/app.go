package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/speednet/internal/application"
	"github.com/example/speednet/internal/cache"
	"github.com/example/speednet/internal/config"
	httptransport "github.com/example/speednet/internal/http"
	"github.com/example/speednet/internal/persistence"
	"github.com/example/speednet/internal/persistence/memory"
	"github.com/example/speednet/internal/persistence/sqlite"
)

// app owns the wired collaborators for one process.
type app struct {
	logger   *slog.Logger
	store    persistence.Store
	cache    cache.Cache
	registry *prometheus.Registry
	handler  http.Handler
	closers  []func() error
}

func buildApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{logger: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	backend, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	if closeCache != nil {
		a.closers = append(a.closers, closeCache)
	}
	a.cache = cache.Instrument(backend, cache.NewMetrics(a.registry))

	opts := application.Options{
		Logger:     logger,
		ListTTL:    cfg.ListCacheTTL,
		RuntimeTTL: cfg.RuntimeCacheTTL,
	}
	sessions := application.NewSessionService(a.store, a.cache, opts)
	signups := application.NewSignupService(a.store, a.cache, opts)
	cards := application.NewCardService(a.store, opts)

	a.handler = httptransport.NewRouter(httptransport.RouterConfig{
		Sessions:       httptransport.NewSessionHandler(sessions, logger),
		Signups:        httptransport.NewSignupHandler(signups, logger),
		Cards:          httptransport.NewCardHandler(cards, logger),
		Metrics:        httptransport.NewMetrics(a.registry),
		MetricsHandler: promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}),
		Health:         a.health,
		Logger:         logger,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.Scope(),
		},
	})
	return a, nil
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (persistence.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return memory.New(), nil
	default:
		store, err := sqlite.Open(ctx, cfg.SQLiteDSN, sqlite.DefaultOptions(), logger)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		return store, nil
	}
}

func openCache(ctx context.Context, cfg config.Config) (cache.Cache, func() error, error) {
	switch cfg.Cache {
	case config.CacheNone:
		return cache.Nop{}, nil, nil
	case config.CacheRedis:
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		redisCache, err := cache.NewRedis(dialCtx, cache.RedisOptions{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open cache: %w", err)
		}
		return redisCache, redisCache.Close, nil
	default:
		return cache.NewMemory(cfg.CacheMaxEntries, time.Now), nil, nil
	}
}

// health confirms the store still answers a read.
func (a *app) health(ctx context.Context) error {
	return a.store.View(ctx, func(tx persistence.Tx) error {
		_, err := tx.FindSessions(ctx, persistence.SessionFilter{IDs: []string{"healthz"}})
		return err
	})
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Error("failed to release resources", "error", err)
	}
}

func migrate(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.Store != config.StoreSQLite {
		return fmt.Errorf("migrate requires SPEEDNET_STORE=%s, got %q", config.StoreSQLite, cfg.Store)
	}
	store, err := sqlite.Open(ctx, cfg.SQLiteDSN, sqlite.DefaultOptions(), logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
