package application

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"build-notifier/internal/domain/model"
	"build-notifier/internal/domain/ports/adapter"
	"build-notifier/internal/infra/metrics"
	"build-notifier/internal/infra/worker"
)

// SessionManager is the part of session.Manager the router drives.
type SessionManager interface {
	StartSession(ctx context.Context, msg *model.BotMessage) bool
	Route(ctx context.Context, msg *model.BotMessage) bool
}

type CommandHandler interface {
	Handle(ctx context.Context, msg *model.BotMessage) error
}

type BuildNotifier interface {
	Notify(ctx context.Context, w *model.BuildWebhook) (int, error)
}

type TaskSubmitter interface {
	Submit(name string, task worker.Task) error
}

type RouterConfig struct {
	WebhookTopic   string
	ConsumeBackoff time.Duration
	ErrorDelay     time.Duration
}

// Router consumes the assigned command topic and the webhook topic and
// dispatches each message to sessions, stateless commands or notifications.
type Router struct {
	sub      adapter.Subscriber
	info     model.RegistrationInfo
	cfg      RouterConfig
	sessions SessionManager
	commands CommandHandler
	notifier BuildNotifier
	pool     TaskSubmitter
	log      zerolog.Logger
}

func NewRouter(
	sub adapter.Subscriber,
	info model.RegistrationInfo,
	cfg RouterConfig,
	sessions SessionManager,
	commands CommandHandler,
	notifier BuildNotifier,
	pool TaskSubmitter,
	logger *zerolog.Logger,
) *Router {
	if cfg.ConsumeBackoff <= 0 {
		cfg.ConsumeBackoff = time.Second
	}
	if cfg.ErrorDelay <= 0 {
		cfg.ErrorDelay = time.Second
	}
	return &Router{
		sub:      sub,
		info:     info,
		cfg:      cfg,
		sessions: sessions,
		commands: commands,
		notifier: notifier,
		pool:     pool,
		log:      logger.With().Str("component", "router").Logger(),
	}
}

// Run blocks until ctx is cancelled and returns ctx.Err().
func (r *Router) Run(ctx context.Context) error {
	topics := []string{r.info.ConsumeTopic, r.cfg.WebhookTopic}
	var consumer adapter.Consumer
	for consumer == nil {
		c, err := r.sub.Subscribe(ctx, topics...)
		if err != nil {
			r.log.Error().Err(err).Strs("topics", topics).Msg("subscribe failed")
			if !sleep(ctx, r.cfg.ConsumeBackoff) {
				return ctx.Err()
			}
			continue
		}
		consumer = c
	}
	defer consumer.Close()
	r.log.Info().Strs("topics", topics).Msg("router started")

	for {
		m, err := consumer.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.IncBusMessage("consume_error")
			r.log.Error().Err(err).Msg("consume failed")
			if !sleep(ctx, r.cfg.ConsumeBackoff) {
				return ctx.Err()
			}
			continue
		}
		if err := r.dispatch(ctx, m); err != nil {
			r.log.Error().Err(err).Str("topic", m.Topic).Msg("dispatch failed")
			if !sleep(ctx, r.cfg.ErrorDelay) {
				return ctx.Err()
			}
		}
	}
}

func (r *Router) dispatch(ctx context.Context, m adapter.Message) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.IncBusMessage("panic")
			err = fmt.Errorf("dispatch panic: %v", rec)
		}
	}()

	switch m.Topic {
	case r.info.ConsumeTopic:
		if msg, perr := model.ParseBotMessage(m.Value); perr == nil {
			return r.handleBotMessage(ctx, msg)
		}
	case r.cfg.WebhookTopic:
		if w, perr := model.ParseBuildWebhook(m.Value); perr == nil {
			return r.handleWebhook(w)
		}
	}
	metrics.IncBusMessage("unknown")
	r.log.Warn().Str("topic", m.Topic).Int("size", len(m.Value)).Msg("unknown payload skipped")
	return nil
}

func (r *Router) handleBotMessage(ctx context.Context, msg *model.BotMessage) error {
	cmd := model.NormalizeCommand(msg.Command())
	log := r.log.With().Str("chat_id", msg.ChatID()).Str("correlation_id", msg.CorrelationID).Logger()

	switch {
	case model.IsSessionCommand(cmd):
		metrics.IncBusMessage("session_command")
		if !r.sessions.StartSession(ctx, msg) {
			log.Debug().Str("command", cmd).Msg("session already active")
		}
		return nil
	case model.IsStatelessCommand(cmd):
		metrics.IncBusMessage("command")
		return r.pool.Submit("command "+cmd, func(ctx context.Context) error {
			return r.commands.Handle(ctx, msg)
		})
	default:
		metrics.IncBusMessage("session_input")
		if !r.sessions.Route(ctx, msg) {
			log.Debug().Msg("no active session for input")
		}
		return nil
	}
}

func (r *Router) handleWebhook(w *model.BuildWebhook) error {
	if w.ServiceName != r.info.ServiceName {
		metrics.IncBusMessage("foreign_webhook")
		r.log.Info().Str("target", w.ServiceName).Str("uuid", w.UUID).Msg("webhook for another service")
		return nil
	}
	metrics.IncBusMessage("webhook")
	return r.pool.Submit("notify "+w.UUID, func(ctx context.Context) error {
		_, err := r.notifier.Notify(ctx, w)
		return err
	})
}
