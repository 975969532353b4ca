// Package app builds the milestone service from configuration. The HTTP
// server, the MCP server and the CLI share it.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"milestonez/internal/config"
	"milestonez/internal/llm"
	"milestonez/internal/repository"
	"milestonez/internal/service"
	"milestonez/pkg/db"
	"milestonez/pkg/mq"
	redisclient "milestonez/pkg/redis"
	"milestonez/pkg/util"
)

type App struct {
	Service   *service.MilestoneService
	Store     repository.HistoryStore
	Provider  *llm.Guarded
	Publisher *mq.Publisher // nil 表示未配置 MQ

	closers []func()
}

// New opens the store, the provider and the optional Redis and RabbitMQ
// connections. Optional backends that fail to connect are logged and skipped.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	a := &App{}

	store, err := openStore(ctx, cfg.Store, log)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.closers = append(a.closers, func() { _ = store.Close() })

	if err := store.EnsureSchema(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	provider, err := openProvider(ctx, cfg.LLM)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Provider = llm.NewGuarded(provider, cfg.LLM.Breaker, log)
	log.Info("LLM provider ready",
		zap.String("provider", provider.Name()),
		zap.String("default_model", cfg.Service.DefaultModel),
	)

	var publisher service.EventPublisher
	if cfg.MQ.URL != "" {
		p, err := mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			log.Warn("MQ unavailable, events disabled", zap.Error(err))
		} else {
			a.Publisher = p
			publisher = p
			a.closers = append(a.closers, p.Close)
		}
	}

	var deduper service.Deduper
	if cfg.Redis.Addr != "" {
		rdb, err := redisclient.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn("Redis unavailable, idempotency disabled", zap.Error(err))
		} else {
			deduper = util.NewDeduper(rdb, cfg.Service.IdempotencyTTL, log)
			a.closers = append(a.closers, func() { _ = rdb.Close() })
		}
	}

	a.Service = service.NewMilestoneService(a.Provider, store, publisher, deduper, service.Options{
		DefaultModel:   cfg.Service.DefaultModel,
		EvaluateAlways: cfg.Service.EvaluateAlways,
	}, log)
	return a, nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// PublisherReady reports whether events can be published. A nil publisher counts as ready.
func (a *App) PublisherReady() bool {
	return a.Publisher == nil || a.Publisher.IsConnected()
}

func openStore(ctx context.Context, cfg config.StoreConfig, log *zap.Logger) (repository.HistoryStore, error) {
	switch cfg.Driver {
	case config.StorePostgres:
		pool, err := db.NewConnection(ctx, cfg.DB, log)
		if err != nil {
			return nil, fmt.Errorf("failed to init postgres: %w", err)
		}
		return repository.NewPostgresHistoryRepository(pool, log), nil
	default:
		conn, err := db.NewSQLite(ctx, cfg.SQLite, log)
		if err != nil {
			return nil, fmt.Errorf("failed to init sqlite: %w", err)
		}
		return repository.NewSQLiteHistoryRepository(conn, log), nil
	}
}

func openProvider(ctx context.Context, cfg config.LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return llm.NewGeminiClient(ctx, cfg.Gemini)
	default:
		return llm.NewAzureClient(cfg.Azure)
	}
}
