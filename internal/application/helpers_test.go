package application

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"build-notifier/internal/domain/model"
	"build-notifier/internal/domain/ports/adapter"
	"build-notifier/internal/infra/bus/membus"
)

const (
	defaultWait = 2 * time.Second
	tick        = 5 * time.Millisecond
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// readyBus signals once a subscription has been opened.
type readyBus struct {
	*membus.Bus
	ready chan struct{}
	once  sync.Once
}

func newReadyBus() *readyBus {
	return &readyBus{Bus: membus.New(), ready: make(chan struct{})}
}

func (b *readyBus) Subscribe(ctx context.Context, topics ...string) (adapter.Consumer, error) {
	c, err := b.Bus.Subscribe(ctx, topics...)
	if err == nil {
		b.once.Do(func() { close(b.ready) })
	}
	return c, err
}

func (b *readyBus) waitReady(t *testing.T) {
	t.Helper()
	select {
	case <-b.ready:
	case <-time.After(defaultWait):
		t.Fatal("subscription was never opened")
	}
}

// flakyPublisher fails the first n publishes.
type flakyPublisher struct {
	adapter.Bus
	mu    sync.Mutex
	fails int
	calls int
}

var errPublish = errors.New("broker unavailable")

func (f *flakyPublisher) Publish(ctx context.Context, topic string, value []byte) error {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.fails
	f.mu.Unlock()
	if fail {
		return errPublish
	}
	return f.Bus.Publish(ctx, topic, value)
}

func (f *flakyPublisher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func botMessage(t *testing.T, chatID, text string) []byte {
	return mustJSON(t, model.NewTextMessage(chatID, text, "", "corr-"+chatID))
}

func subscribeTopic(t *testing.T, bus adapter.Subscriber, topic string) adapter.Consumer {
	t.Helper()
	c, err := bus.Subscribe(context.Background(), topic)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func next(t *testing.T, c adapter.Consumer) adapter.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), defaultWait)
	defer cancel()
	m, err := c.Next(ctx)
	require.NoError(t, err)
	return m
}
