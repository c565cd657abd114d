package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"build-notifier/internal/domain/model"
	"build-notifier/internal/infra/metrics"
)

type handle struct {
	session *Session
	cancel  context.CancelFunc
}

// Manager owns the chat -> session table. At most one session exists per chat.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*handle
	wg       sync.WaitGroup

	factory *Factory
	sink    Sink
	tr      Translator
	log     zerolog.Logger
}

func NewManager(factory *Factory, sink Sink, tr Translator, logger *zerolog.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*handle),
		factory:  factory,
		sink:     sink,
		tr:       tr,
		log:      logger.With().Str("component", "session_manager").Logger(),
	}
}

// StartSession starts the flow named by msg's command unless the chat already
// has a session. It reports whether a new session was started.
func (m *Manager) StartSession(ctx context.Context, msg *model.BotMessage) bool {
	chatID := msg.ChatID()
	flow, ok := FlowForCommand(msg.Command())
	if !ok || chatID == "" {
		m.log.Warn().Str("chat_id", chatID).Str("command", msg.Command()).Msg("not a session command")
		return false
	}

	sctx, cancel := context.WithCancel(ctx)
	h := &handle{session: m.factory.New(chatID, flow), cancel: cancel}

	m.mu.Lock()
	if _, exists := m.sessions[chatID]; exists {
		m.mu.Unlock()
		cancel()
		m.log.Debug().Str("chat_id", chatID).Msg("session already active")
		return false
	}
	m.sessions[chatID] = h
	active := len(m.sessions)
	m.mu.Unlock()

	metrics.IncSessionStarted(string(flow))
	metrics.SetSessionsActive(active)
	m.log.Info().Str("chat_id", chatID).Str("flow", string(flow)).Msg("session started")

	m.wg.Add(1)
	go m.run(sctx, h, msg)
	return true
}

func (m *Manager) run(ctx context.Context, h *handle, initial *model.BotMessage) {
	reason := EndFailed
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Str("chat_id", h.session.ChatID()).Interface("panic", r).Msg("session runner panicked")
		}
		h.cancel()
		m.removeIfSame(h)
		metrics.IncSessionEnded(string(reason))
		m.log.Info().Str("chat_id", h.session.ChatID()).Str("reason", string(reason)).Msg("session ended")
		m.wg.Done()
	}()
	reason = h.session.Run(ctx, initial)
}

// removeIfSame drops the entry only while it still points at h.
func (m *Manager) removeIfSame(h *handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chatID := h.session.ChatID()
	if cur, ok := m.sessions[chatID]; ok && cur == h {
		delete(m.sessions, chatID)
	}
	metrics.SetSessionsActive(len(m.sessions))
}

// Route hands msg to the chat's session. Without a running session the chat
// gets a "no active session" notice, including a session that has ended but
// is not yet removed from the table.
func (m *Manager) Route(ctx context.Context, msg *model.BotMessage) bool {
	chatID := msg.ChatID()
	m.mu.Lock()
	h, ok := m.sessions[chatID]
	m.mu.Unlock()

	if ok && h.session.Enqueue(msg) {
		return true
	}

	m.log.Warn().Str("chat_id", chatID).Str("correlation_id", msg.CorrelationID).Msg("no active session for message")
	notice := model.NewTextMessage(chatID, m.tr.Markdown("md.session.none"), model.StatusCompleted, msg.CorrelationID).WithMarkdown()
	if err := m.sink.Send(ctx, notice); err != nil {
		m.log.Warn().Err(err).Str("chat_id", chatID).Msg("failed to send no-session notice")
	}
	return false
}

// StopSession cancels the chat's session and waits for it. Unknown chats are ignored.
func (m *Manager) StopSession(chatID string) {
	m.mu.Lock()
	h, ok := m.sessions[chatID]
	if ok {
		delete(m.sessions, chatID)
	}
	active := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return
	}
	metrics.SetSessionsActive(active)
	h.cancel()
	<-h.session.Done()
}

// Shutdown stops every session and waits for their goroutines.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	chats := make([]string, 0, len(m.sessions))
	for chatID := range m.sessions {
		chats = append(chats, chatID)
	}
	m.mu.Unlock()

	for _, chatID := range chats {
		m.StopSession(chatID)
	}
	m.wg.Wait()
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Has reports whether chatID has an active session.
func (m *Manager) Has(chatID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[chatID]
	return ok
}
