// Package app wires the store, searcher, queue, detection service and
// worker from a configuration.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/viant/sqlite-dedup/config"
	"github.com/viant/sqlite-dedup/duplicate"
	"github.com/viant/sqlite-dedup/metrics"
	"github.com/viant/sqlite-dedup/queue"
	"github.com/viant/sqlite-dedup/queue/kafka"
	"github.com/viant/sqlite-dedup/queue/redis"
	"github.com/viant/sqlite-dedup/search"
	"github.com/viant/sqlite-dedup/store"
	"github.com/viant/sqlite-dedup/worker"
)

// App is a fully wired service.
type App struct {
	Config   config.Config
	Store    *store.Store
	Searcher search.Searcher
	Queue    queue.Queue
	Service  *duplicate.Service
	Runner   *worker.Runner
	Registry *prometheus.Registry
	Logger   zerolog.Logger
}

// New builds an App. Feature flags are read from provider on every job.
func New(ctx context.Context, provider *config.Provider, logger zerolog.Logger) (*App, error) {
	cfg := provider.Config()
	st, err := store.Open(ctx, cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Store: st, Logger: logger, Registry: prometheus.NewRegistry()}
	if err := a.wire(ctx, provider); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context, provider *config.Provider) error {
	var err error
	if a.Searcher, err = search.New(a.Config.Search.Backend, a.Store, a.Logger); err != nil {
		return err
	}
	if a.Queue, err = OpenQueue(ctx, a.Config.Queue, a.Logger); err != nil {
		return err
	}
	observer, err := metrics.New(a.Registry)
	if err != nil {
		return err
	}
	a.Service, err = duplicate.New(duplicate.Deps{
		Source:   a.Store,
		Searcher: a.Searcher,
		Store:    a.Store,
		Queue:    a.Queue,
		Features: provider,
	},
		duplicate.WithBatchSize(a.Config.Queue.BatchSize),
		duplicate.WithLogger(a.Logger),
		duplicate.WithObserver(observer),
	)
	if err != nil {
		return err
	}
	a.Runner, err = worker.New(a.Queue, a.Service, a.Config.Worker, a.Logger)
	return err
}

// OpenQueue connects the configured queue backend.
func OpenQueue(ctx context.Context, cfg config.Queue, logger zerolog.Logger) (queue.Queue, error) {
	switch cfg.Backend {
	case "", "memory":
		return queue.NewMemory(cfg.MaxAttempts, logger), nil
	case "kafka":
		q, err := kafka.New(kafka.Config{
			Brokers:     cfg.Kafka.Brokers,
			Topic:       cfg.Kafka.Topic,
			GroupID:     cfg.Kafka.GroupID,
			MaxAttempts: cfg.MaxAttempts,
		}, logger)
		if err != nil {
			return nil, err
		}
		return q, nil
	case "redis":
		q, err := redis.New(ctx, redis.Config{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			Key:         cfg.Redis.Key,
			MaxAttempts: cfg.MaxAttempts,
		}, logger)
		if err != nil {
			return nil, err
		}
		return q, nil
	}
	return nil, fmt.Errorf("app: unknown queue backend %q", cfg.Backend)
}

// Close releases the queue and the store.
func (a *App) Close() error {
	var err error
	if a.Queue != nil {
		err = a.Queue.Close()
	}
	if cerr := a.Store.Close(); err == nil {
		err = cerr
	}
	return err
}
