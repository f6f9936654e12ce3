package main

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/okian/xpand/internal/adapters/lock"
	"github.com/okian/xpand/internal/adapters/notify"
	"github.com/okian/xpand/internal/adapters/repository"
	"github.com/okian/xpand/internal/app"
	"github.com/okian/xpand/internal/config"
	"github.com/okian/xpand/internal/domain/matching"
	"github.com/okian/xpand/internal/domain/sla"
	"github.com/okian/xpand/pkg/logger"
)

// components is the fully wired object graph for one process.
type components struct {
	store   repository.Store
	engine  *matching.Engine
	monitor *sla.Monitor
	service *app.Service

	closers []func() error
}

// Close releases everything opened by wire, last opened first.
func (c *components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// wire builds the store, locker, notifiers, engine, monitor and service
// described by cfg.
func wire(ctx context.Context, cfg *config.Config, log logger.Logger) (_ *components, err error) {
	c := &components{}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.store = store
	c.closers = append(c.closers, store.Close)

	engineOpts := []matching.Option{matching.WithLogger(log)}
	if cfg.RedisAddr != "" {
		rdb, err := lock.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, rdb.Close)
		locker := lock.NewRedisLocker(rdb, lock.WithTTL(cfg.LockTTL), lock.WithLogger(log))
		engineOpts = append(engineOpts, matching.WithLocker(locker))
		log.Info(ctx, "project locks backed by redis", logger.String("addr", cfg.RedisAddr))
	}

	notifiers := notify.Multi{notify.NewLogNotifier(log)}
	if cfg.PubSubProject != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSubProject)
		if err != nil {
			return nil, fmt.Errorf("pubsub client: %w", err)
		}
		c.closers = append(c.closers, client.Close)
		ps := notify.NewPubSubNotifier(client, cfg.PubSubTopic)
		c.closers = append(c.closers, func() error { ps.Stop(); return nil })
		notifiers = append(notifiers, ps)
		log.Info(ctx, "notifications published to pubsub",
			logger.String("project", cfg.PubSubProject),
			logger.String("topic", cfg.PubSubTopic))
	}

	c.engine, err = matching.New(
		matching.Config{Weights: cfg.Weights(), TopN: cfg.TopMatchesCount},
		store, store, store, notifiers,
		engineOpts...,
	)
	if err != nil {
		return nil, err
	}
	c.monitor = sla.New(store, notifiers, sla.WithLogger(log))
	c.service = app.New(c.engine, c.monitor, store,
		app.WithWorkerCount(cfg.RefreshWorkers),
		app.WithLogger(log),
	)
	return c, nil
}

func openStore(_ context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.Store {
	case config.StoreMySQL:
		return repository.OpenMySQL(cfg.MySQLDSN,
			repository.WithMaxOpenConns(cfg.MySQLMaxOpenConns),
			repository.WithTracing(cfg.MySQLTracing),
		)
	default:
		return repository.NewMemoryStore(), nil
	}
}
