package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"build-notifier/internal/config"
	"build-notifier/internal/domain"
	"build-notifier/internal/domain/ports/adapter"
	"build-notifier/internal/domain/ports/repository"
	"build-notifier/internal/infra/bus/kafka"
	"build-notifier/internal/infra/bus/natsbus"
	"build-notifier/internal/infra/db/memstore"
	pg "build-notifier/internal/infra/db/postgres"
	"build-notifier/internal/infra/db/sqlite"
	"build-notifier/internal/infra/dedupe"
	red "build-notifier/internal/infra/redis"
)

func openStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (repository.SubscriptionRepository, func(), error) {
	switch cfg.Database.Driver {
	case "sqlite":
		s, err := sqlite.Open(cfg.Database.Path, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	case "postgres":
		pool, err := pg.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		repo := pg.NewSubscriptionRepo(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		statsCtx, stopStats := context.WithCancel(ctx)
		go pg.ReportPoolStats(statsCtx, pool, 15*time.Second)
		return repo, func() { stopStats(); pool.Close() }, nil
	case "memory":
		logger.Warn().Msg("subscriptions are kept in memory and lost on restart")
		return memstore.New(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("database driver %q: %w", cfg.Database.Driver, domain.ErrUnknownDriver)
}

func openBus(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (adapter.Bus, error) {
	switch cfg.Bus.Driver {
	case "kafka":
		return kafka.New(kafka.Config{Brokers: cfg.Bus.Kafka.Brokers, GroupID: cfg.Bus.Kafka.GroupID}, logger)
	case "redis":
		c, err := red.NewClient(ctx, red.Options{URL: cfg.Bus.Redis.URL, Password: cfg.Bus.Redis.Password, DB: cfg.Bus.Redis.DB})
		if err != nil {
			return nil, fmt.Errorf("redis bus: %w", err)
		}
		return red.NewStreamBus(c, cfg.Bus.Redis.Group, cfg.Bus.Redis.Block), nil
	case "nats":
		return natsbus.Connect(cfg.Bus.NATS.URL, cfg.Service.Name, logger)
	case "memory":
		// Nothing in-process answers the registration request.
		return nil, fmt.Errorf("bus driver %q: %w", cfg.Bus.Driver, domain.ErrDriverNotStandalone)
	}
	return nil, fmt.Errorf("bus driver %q: %w", cfg.Bus.Driver, domain.ErrUnknownDriver)
}

// openDeduper prefers Redis so that replicas share the seen set.
func openDeduper(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (adapter.Deduper, func(), error) {
	if cfg.Redis.URL == "" {
		return dedupe.New(cfg.Redis.DedupeTTL, 10000), func() {}, nil
	}
	c, err := red.NewClient(ctx, red.Options{URL: cfg.Redis.URL, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		return nil, nil, fmt.Errorf("redis dedupe: %w", err)
	}
	logger.Info().Msg("webhook dedupe backed by redis")
	return red.NewDedupe(c, cfg.Redis.DedupeTTL), func() { _ = c.Close() }, nil
}
