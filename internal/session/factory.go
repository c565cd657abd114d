package session

import (
	"time"

	"github.com/rs/zerolog"

	"build-notifier/internal/domain/model"
	"build-notifier/internal/domain/ports/repository"
)

// Factory builds sessions bound to the shared store, sink and translator.
type Factory struct {
	store repository.SubscriptionRepository
	sink  Sink
	tr    Translator
	cfg   Config
	now   func() time.Time
	log   *zerolog.Logger
}

func NewFactory(store repository.SubscriptionRepository, sink Sink, tr Translator, cfg Config, logger *zerolog.Logger) *Factory {
	if cfg.InactivityTimeout <= 0 {
		cfg.InactivityTimeout = 2 * time.Minute
	}
	if cfg.WatchdogInterval <= 0 {
		cfg.WatchdogInterval = min(time.Minute, cfg.InactivityTimeout)
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = model.DefaultPageSize
	}
	return &Factory{store: store, sink: sink, tr: tr, cfg: cfg, now: time.Now, log: logger}
}

// New returns a session that has not been started yet.
func (f *Factory) New(chatID string, flow Flow) *Session {
	return &Session{
		chatID:  chatID,
		flow:    flow,
		mailbox: NewMailbox(),
		done:    make(chan struct{}),
		store:   f.store,
		sink:    f.sink,
		tr:      f.tr,
		cfg:     f.cfg,
		now:     f.now,
		log:     f.log.With().Str("component", "session").Str("chat_id", chatID).Str("flow", string(flow)).Logger(),
		state:   StateIdle,
	}
}
