// File: internal/usecase/mocks_test.go
package usecase_test

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"build-notifier/internal/domain/model"
	"build-notifier/internal/infra/i18n"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func newTranslator(t *testing.T) *i18n.Translator {
	t.Helper()
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		t.Fatalf("load translator: %v", err)
	}
	return tr
}

type mockSender struct {
	mu       sync.Mutex
	sent     []*model.BotMessage
	SendFunc func(ctx context.Context, msg *model.BotMessage) error
}

func (m *mockSender) Send(ctx context.Context, msg *model.BotMessage) error {
	if m.SendFunc != nil {
		if err := m.SendFunc(ctx, msg); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mockSender) messages() []*model.BotMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.BotMessage(nil), m.sent...)
}

type mockDeduper struct {
	ClaimFunc func(ctx context.Context, key string) (bool, error)
}

func (m *mockDeduper) Claim(ctx context.Context, key string) (bool, error) {
	return m.ClaimFunc(ctx, key)
}

type mockResolver struct {
	ResolveFunc func(ctx context.Context, login string) (string, error)
}

func (m *mockResolver) Resolve(ctx context.Context, login string) (string, error) {
	return m.ResolveFunc(ctx, login)
}

type failingRepo struct {
	err error
}

func (f failingRepo) Add(context.Context, string, string) (bool, error)    { return false, f.err }
func (f failingRepo) Delete(context.Context, string, string) (bool, error) { return false, f.err }
func (f failingRepo) DeleteAll(context.Context, string) (bool, error)      { return false, f.err }
func (f failingRepo) ListPlans(context.Context, string) ([]string, error)  { return nil, f.err }
func (f failingRepo) ListChats(context.Context, string) ([]string, error)  { return nil, f.err }

func botMessage(chatID, text, correlationID string) *model.BotMessage {
	return &model.BotMessage{
		Method:        model.MethodSendMessage,
		CorrelationID: correlationID,
		Data:          &model.MessageData{ChatID: chatID, Text: text},
	}
}
