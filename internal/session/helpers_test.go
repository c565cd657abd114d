package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"build-notifier/internal/domain/model"
	"build-notifier/internal/infra/db/memstore"
	"build-notifier/internal/infra/i18n"
)

type recordingSink struct {
	mu   sync.Mutex
	msgs []*model.BotMessage
	err  error
}

func (r *recordingSink) Send(_ context.Context, msg *model.BotMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return r.err
}

func (r *recordingSink) messages() []*model.BotMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.BotMessage(nil), r.msgs...)
}

// wait blocks until at least n messages were sent and returns them.
func (r *recordingSink) wait(t *testing.T, n int) []*model.BotMessage {
	t.Helper()
	require.Eventually(t, func() bool { return len(r.messages()) >= n }, defaultWait, tick,
		"expected %d messages", n)
	return r.messages()
}

// failingStore fails every call after the embedded store would have succeeded.
type failingStore struct {
	*memstore.Store
}

var errStore = errors.New("store down")

func (f failingStore) Add(context.Context, string, string) (bool, error) { return false, errStore }

func (f failingStore) Delete(context.Context, string, string) (bool, error) {
	return false, errStore
}

type fixture struct {
	store *memstore.Store
	sink  *recordingSink
	mgr   *Manager
}

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func newTranslator(t *testing.T) *i18n.Translator {
	t.Helper()
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	require.NoError(t, err)
	return tr
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{store: memstore.New(), sink: &recordingSink{}}
	tr := newTranslator(t)
	factory := NewFactory(f.store, f.sink, tr, cfg, newTestLogger())
	f.mgr = NewManager(factory, f.sink, tr, newTestLogger())
	t.Cleanup(f.mgr.Shutdown)
	return f
}

func (f *fixture) seed(t *testing.T, chatID string, n int) []string {
	t.Helper()
	var plans []string
	for i := 1; i <= n; i++ {
		plan := fmt.Sprintf("P%d - Plan", i)
		_, err := f.store.Add(context.Background(), plan, chatID)
		require.NoError(t, err)
		plans = append(plans, plan)
	}
	return plans
}

func (f *fixture) waitEnded(t *testing.T, chatID string) {
	t.Helper()
	require.Eventually(t, func() bool { return !f.mgr.Has(chatID) }, defaultWait, tick,
		"session for %s should have ended", chatID)
}

func message(chatID, text, correlationID string) *model.BotMessage {
	return &model.BotMessage{
		Method:        model.MethodSendMessage,
		CorrelationID: correlationID,
		Data:          &model.MessageData{ChatID: chatID, Text: text, Method: model.MethodSendMessage},
	}
}

// callbacks returns the callback tokens of every keyboard row.
func callbacks(msg *model.BotMessage) [][]string {
	if msg.Data.ReplyMarkup == nil {
		return nil
	}
	var out [][]string
	for _, row := range msg.Data.ReplyMarkup.InlineKeyboard {
		var tokens []string
		for _, b := range row {
			if b.CallbackData != nil {
				tokens = append(tokens, *b.CallbackData)
			}
		}
		out = append(out, tokens)
	}
	return out
}

func longTimeouts() Config {
	return Config{InactivityTimeout: time.Minute, WatchdogInterval: time.Minute}
}

const (
	defaultWait = 2 * time.Second
	tick        = 5 * time.Millisecond
)
