package client

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rafaeljc/heimdall-sdk/internal/cache"
	"github.com/rafaeljc/heimdall-sdk/internal/config"
	"github.com/rafaeljc/heimdall-sdk/internal/configservice"
	"github.com/rafaeljc/heimdall-sdk/internal/database"
	"github.com/rafaeljc/heimdall-sdk/internal/fetcher"
	"github.com/rafaeljc/heimdall-sdk/internal/observability"
	"github.com/rafaeljc/heimdall-sdk/internal/override"
)

// Runtime is a client built from configuration together with the cache
// backend opened for it.
type Runtime struct {
	Client *Client
	Store  cache.Store

	closeStore func()
}

// NewRuntime builds the client described by cfg. The cache backend is opened
// (and for Postgres its table created) before the client starts polling.
func NewRuntime(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Runtime, error) {
	opts, err := optionsFromConfig(&cfg.SDK)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	opts.Store = store
	opts.Logger = log
	c, err := New(opts)
	if err != nil {
		closeStore()
		return nil, err
	}

	return &Runtime{Client: c, Store: store, closeStore: closeStore}, nil
}

// Checkers returns the readiness checks: the client and, when it can report
// its health, the cache backend.
func (r *Runtime) Checkers() []observability.Checker {
	checkers := []observability.Checker{r.Client}
	if checker, ok := r.Store.(observability.Checker); ok {
		checkers = append(checkers, checker)
	}
	return checkers
}

// Close stops the client, then releases the cache backend.
func (r *Runtime) Close() {
	r.Client.Close()
	r.closeStore()
}

func optionsFromConfig(cfg *config.SDKConfig) (Options, error) {
	mode, err := configservice.ParsePollingMode(cfg.PollingMode)
	if err != nil {
		return Options{}, err
	}
	governance, err := fetcher.ParseDataGovernance(cfg.DataGovernance)
	if err != nil {
		return Options{}, err
	}

	opts := Options{
		SDKKey:         cfg.Key,
		BaseURL:        cfg.BaseURL,
		DataGovernance: governance,
		PollingMode:    mode,
		PollInterval:   cfg.PollInterval,
		MaxInitWait:    cfg.MaxInitWait,
		CacheTTL:       cfg.CacheTTL,
		HTTPTimeout:    cfg.HTTPTimeout,
		Offline:        cfg.Offline,
	}
	if opts.MaxInitWait == 0 {
		opts.MaxInitWait = -1
	}

	if cfg.OverrideFile != "" {
		behavior, err := override.ParseBehavior(cfg.OverrideBehavior)
		if err != nil {
			return Options{}, err
		}
		opts.Overrides, err = override.FromFile(cfg.OverrideFile, behavior)
		if err != nil {
			return Options{}, err
		}
	}
	return opts, nil
}

func openStore(ctx context.Context, cfg *config.Config) (cache.Store, func(), error) {
	noop := func() {}

	switch cfg.Cache.Backend {
	case config.CacheBackendMemory:
		store, err := cache.NewMemoryStore(cfg.Cache.MemoryCapacity, cfg.Cache.MemoryTTL)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create memory cache: %w", err)
		}
		return store, store.Close, nil

	case config.CacheBackendRedis:
		rdb, err := cache.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, noop, err
		}
		return cache.NewRedisStore(rdb, cfg.Cache.RedisTTL), func() { _ = rdb.Close() }, nil

	case config.CacheBackendPostgres:
		pool, err := database.NewPostgresPool(ctx, &cfg.Database)
		if err != nil {
			return nil, noop, err
		}
		store := cache.NewPostgresStore(pool, cfg.Cache.PostgresTable)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, noop, err
		}
		return store, pool.Close, nil

	default:
		return nil, noop, nil
	}
}
