// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"build-notifier/internal/application"
	"build-notifier/internal/config"
	"build-notifier/internal/domain"
	"build-notifier/internal/domain/model"
	"build-notifier/internal/domain/ports/adapter"
	"build-notifier/internal/infra/adapters/username"
	httpapi "build-notifier/internal/infra/http"
	"build-notifier/internal/infra/i18n"
	"build-notifier/internal/infra/logging"
	"build-notifier/internal/infra/metrics"
	"build-notifier/internal/infra/worker"
	"build-notifier/internal/session"
	"build-notifier/internal/usecase"
)

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, no sampling)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		if errors.Is(err, domain.ErrRegistrationCancelled) {
			logger.Warn().Err(err).Msg("stopped before registration completed")
			os.Exit(1)
		}
		logger.Fatal().Err(err).Msg("build-notifier stopped")
	}
	logger.Info().Msg("build-notifier stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Bot.Language)
	if err != nil {
		return err
	}

	// ---- Subscription store ----
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// ---- Bus ----
	bus, err := openBus(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logger.Warn().Err(err).Msg("bus close")
		}
	}()

	// ---- Registration handshake ----
	desc := model.ServiceDescription{
		Name:        cfg.Service.Name,
		Description: cfg.Service.Description,
		Commands:    cfg.Service.Commands,
	}
	registrar := application.NewRegistrar(bus, desc, application.RegistrationConfig{
		RequestTopic:   cfg.Registration.RequestTopic,
		ResponseTopic:  cfg.Registration.ResponseTopic,
		AttemptTimeout: cfg.Registration.AttemptTimeout,
		RetryDelay:     cfg.Registration.RetryDelay,
	}, logger)
	info, err := registrar.Register(ctx)
	if err != nil {
		return err
	}

	// The producer outlives the root context so shutdown notices still go out.
	producerCtx, stopProducer := context.WithCancel(context.WithoutCancel(ctx))
	defer stopProducer()
	producer := application.NewProducer(bus, info.ProduceTopic, cfg.Router.QueueSize, logger).
		WithRetry(cfg.Router.PublishAttempts, cfg.Router.PublishRetryDelay)
	go producer.Run(producerCtx)

	pool := worker.NewPool(cfg.Router.Workers, cfg.Router.QueueSize, logging.Component(logger, "worker"))
	pool.Start(context.WithoutCancel(ctx))

	// ---- Sessions ----
	factory := session.NewFactory(store, producer, tr, session.Config{
		InactivityTimeout: cfg.Session.InactivityTimeout,
		WatchdogInterval:  cfg.Session.WatchdogInterval,
		PageSize:          cfg.Session.PageSize,
	}, logger)
	manager := session.NewManager(factory, producer, tr, logger)

	// ---- Use cases ----
	var resolver adapter.UsernameResolver
	if cfg.UsernameAPI.URL != "" {
		resolver = username.New(cfg.UsernameAPI.URL, cfg.UsernameAPI.Timeout)
	}
	deduper, closeDedupe, err := openDeduper(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDedupe()
	subscriptionUC := usecase.NewSubscriptionUseCase(store, producer, tr, logger)
	notificationUC := usecase.NewNotificationUseCase(store, producer, deduper, resolver, tr, logger)

	// ---- HTTP ----
	server := httpapi.NewServer(cfg.HTTP.Addr, notificationUC, pool, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Router ----
	router := application.NewRouter(bus, *info, application.RouterConfig{
		WebhookTopic:   cfg.Bus.Topics.Webhook,
		ConsumeBackoff: cfg.Router.ConsumeBackoff,
		ErrorDelay:     cfg.Router.ErrorDelay,
	}, manager, subscriptionUC, notificationUC, pool, logger)
	routerErr := router.Run(ctx)
	logger.Info().Err(routerErr).Msg("shutdown requested")

	// ---- Graceful shutdown ----
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	manager.Shutdown()
	pool.Stop()
	stopProducer()
	select {
	case <-producer.Done():
	case <-shutdownCtx.Done():
		logger.Warn().Msg("producer flush timed out")
	}

	if routerErr != nil && !errors.Is(routerErr, context.Canceled) {
		return routerErr
	}
	return nil
}
