package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"build-notifier/internal/domain"
	"build-notifier/internal/domain/model"
	"build-notifier/internal/domain/ports/adapter"
	"build-notifier/internal/domain/ports/repository"
)

// Sink delivers outbound session messages.
type Sink = adapter.MessageSender

type Translator = adapter.Translator

type State int

const (
	StateIdle State = iota
	StateAwaitingInput
	StateBrowsingPage
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateAwaitingInput:
		return "awaiting_input"
	case StateBrowsingPage:
		return "browsing_page"
	case StateEnded:
		return "ended"
	default:
		return "idle"
	}
}

// Flow is the conversation a session runs.
type Flow string

const (
	FlowSubscribe   Flow = "subscribe"
	FlowUnsubscribe Flow = "unsubscribe"
)

// FlowForCommand maps a session starting command to its flow.
func FlowForCommand(token string) (Flow, bool) {
	switch model.NormalizeCommand(token) {
	case model.CommandSubscribeSession:
		return FlowSubscribe, true
	case model.CommandUnsubscribeSession:
		return FlowUnsubscribe, true
	}
	return "", false
}

// EndReason tells how a session finished.
type EndReason string

const (
	EndCompleted EndReason = "completed"
	EndTimeout   EndReason = "timeout"
	EndCancelled EndReason = "cancelled"
	EndFailed    EndReason = "failed"
)

type Config struct {
	InactivityTimeout time.Duration
	WatchdogInterval  time.Duration
	PageSize          int
}

// Session is one chat conversation. All fields except the mailbox and the
// activity clock are owned by the goroutine running Run.
type Session struct {
	chatID  string
	flow    Flow
	mailbox *Mailbox
	done    chan struct{}

	store repository.SubscriptionRepository
	sink  Sink
	tr    Translator
	cfg   Config
	now   func() time.Time
	log   zerolog.Logger

	lastActivity atomic.Int64

	state         State
	pagination    *model.PaginationState
	correlationID string
}

func (s *Session) ChatID() string { return s.chatID }

func (s *Session) Flow() Flow { return s.flow }

// Enqueue hands an inbound message to the session without blocking. It
// reports false once the session has ended.
func (s *Session) Enqueue(msg *model.BotMessage) bool { return s.mailbox.Enqueue(msg) }

// Done is closed once Run has returned.
func (s *Session) Done() <-chan struct{} { return s.done }

// Run drives the conversation until it ends, times out or ctx is cancelled.
// It must be called once.
func (s *Session) Run(ctx context.Context, initial *model.BotMessage) (reason EndReason) {
	defer close(s.done)
	defer s.closeMailbox()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(domain.ErrSessionClosed)

	if ctx.Err() != nil {
		return s.interrupted(ctx)
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("session_state", s.state.String()).Msg("session panicked")
			reason = s.fail(ctx, fmt.Errorf("panic: %v", r))
		}
	}()

	s.touch()
	go s.watchdog(ctx, cancel)

	s.correlationID = initial.CorrelationID
	if err := s.start(ctx); err != nil {
		return s.fail(ctx, err)
	}

	for s.state != StateEnded {
		msg, err := s.mailbox.Receive(ctx)
		if err != nil {
			return s.interrupted(ctx)
		}
		s.touch()
		s.correlationID = msg.CorrelationID
		s.log.Debug().Str("session_state", s.state.String()).Str("correlation_id", msg.CorrelationID).Msg("session input")

		if err := s.handle(ctx, msg); err != nil {
			return s.fail(ctx, err)
		}
	}
	return EndCompleted
}

func (s *Session) start(ctx context.Context) error {
	switch s.flow {
	case FlowSubscribe:
		return s.startSubscribe(ctx)
	case FlowUnsubscribe:
		return s.startUnsubscribe(ctx)
	}
	return fmt.Errorf("unknown flow %q: %w", s.flow, domain.ErrInvalidArgument)
}

func (s *Session) handle(ctx context.Context, msg *model.BotMessage) error {
	text := strings.TrimSpace(msg.Text())
	switch s.state {
	case StateAwaitingInput:
		return s.handleSubscribe(ctx, text)
	case StateBrowsingPage:
		return s.handleUnsubscribe(ctx, text)
	}
	return nil
}

// interrupted handles a cancelled scope: inactivity sends a notice, anything
// else ends quietly.
func (s *Session) interrupted(ctx context.Context) EndReason {
	s.state = StateEnded
	if errors.Is(context.Cause(ctx), domain.ErrSessionInactive) {
		s.log.Info().Msg("session timed out")
		s.reply(context.WithoutCancel(ctx), model.StatusCompleted, s.tr.Markdown("md.session.timeout"), nil)
		return EndTimeout
	}
	s.log.Debug().Err(context.Cause(ctx)).Msg("session cancelled")
	return EndCancelled
}

// fail reports err to the chat and ends the session.
func (s *Session) fail(ctx context.Context, err error) EndReason {
	if ctx.Err() != nil {
		return s.interrupted(ctx)
	}
	s.state = StateEnded
	s.log.Error().Err(err).Msg("session failed")
	s.reply(context.WithoutCancel(ctx), model.StatusCompleted, s.tr.Markdown("md.session.failed"), nil)
	return EndFailed
}

func (s *Session) watchdog(ctx context.Context, cancel context.CancelCauseFunc) {
	t := time.NewTicker(s.cfg.WatchdogInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if s.idle() >= s.cfg.InactivityTimeout {
				cancel(domain.ErrSessionInactive)
				return
			}
		}
	}
}

func (s *Session) touch() { s.lastActivity.Store(s.now().UnixNano()) }

func (s *Session) idle() time.Duration {
	return s.now().Sub(time.Unix(0, s.lastActivity.Load()))
}

// reply sends a MarkdownV2 message to the chat, echoing the latest correlation id.
func (s *Session) reply(ctx context.Context, status, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	msg := model.NewTextMessage(s.chatID, text, status, s.correlationID).WithMarkdown()
	if markup != nil {
		msg.WithKeyboard(markup)
	}
	s.touch()
	if err := s.sink.Send(ctx, msg); err != nil {
		s.log.Warn().Err(err).Str("status", status).Msg("failed to send session reply")
	}
}

// end sends the terminal message and moves to StateEnded.
func (s *Session) end(ctx context.Context, text string) {
	s.reply(ctx, model.StatusCompleted, text, nil)
	s.state = StateEnded
	s.closeMailbox()
}

func (s *Session) closeMailbox() {
	if left := s.mailbox.Close(); len(left) > 0 {
		s.log.Debug().Int("discarded", len(left)).Msg("session ended with unread input")
	}
}
