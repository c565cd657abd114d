package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"build-notifier/internal/domain/model"
	"build-notifier/internal/infra/worker"
)

type fakeSessions struct {
	mu      sync.Mutex
	started []string
	routed  []string
	panics  int
}

func (f *fakeSessions) StartSession(_ context.Context, msg *model.BotMessage) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panics > 0 {
		f.panics--
		panic("session table corrupted")
	}
	f.started = append(f.started, msg.Text())
	return true
}

func (f *fakeSessions) Route(_ context.Context, msg *model.BotMessage) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routed = append(f.routed, msg.Text())
	return true
}

func (f *fakeSessions) snapshot() (started, routed []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.started...), append([]string(nil), f.routed...)
}

type fakeCommands struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeCommands) Handle(_ context.Context, msg *model.BotMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, msg.Text())
	return nil
}

func (f *fakeCommands) handled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type fakeNotifier struct {
	mu    sync.Mutex
	uuids []string
}

func (f *fakeNotifier) Notify(_ context.Context, w *model.BuildWebhook) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uuids = append(f.uuids, w.UUID)
	return 1, nil
}

func (f *fakeNotifier) notified() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uuids...)
}

// inlineSubmitter runs tasks on the calling goroutine.
type inlineSubmitter struct {
	err error
}

func (s inlineSubmitter) Submit(_ string, task worker.Task) error {
	if s.err != nil {
		return s.err
	}
	return task(context.Background())
}

type routerFixture struct {
	bus      *readyBus
	sessions *fakeSessions
	commands *fakeCommands
	notifier *fakeNotifier
	done     chan error
	cancel   context.CancelFunc
}

func newRouterFixture(t *testing.T, submitter TaskSubmitter) *routerFixture {
	t.Helper()
	f := &routerFixture{
		bus:      newReadyBus(),
		sessions: &fakeSessions{},
		commands: &fakeCommands{},
		notifier: &fakeNotifier{},
		done:     make(chan error, 1),
	}
	info := model.RegistrationInfo{ServiceName: "build-notifier", ConsumeTopic: "commands", ProduceTopic: "replies"}
	cfg := RouterConfig{WebhookTopic: "bamboo-webhook", ConsumeBackoff: 10 * time.Millisecond, ErrorDelay: 10 * time.Millisecond}
	r := NewRouter(f.bus, info, cfg, f.sessions, f.commands, f.notifier, submitter, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go func() { f.done <- r.Run(ctx) }()
	f.bus.waitReady(t)
	t.Cleanup(cancel)
	return f
}

func (f *routerFixture) publish(t *testing.T, topic string, value []byte) {
	t.Helper()
	require.NoError(t, f.bus.Publish(context.Background(), topic, value))
}

func webhook(t *testing.T, service, uuid string) []byte {
	return mustJSON(t, model.BuildWebhook{
		ServiceName: service,
		UUID:        uuid,
		Build:       model.BuildInfo{BuildResultKey: "PROJ-PLAN-7", Status: "FAILED", BuildPlanName: "PROJ-PLAN"},
	})
}

func TestRouter_Run(t *testing.T) {
	t.Run("should start sessions for session commands", func(t *testing.T) {
		f := newRouterFixture(t, inlineSubmitter{})
		f.publish(t, "commands", botMessage(t, "1", model.CommandSubscribeSession))
		f.publish(t, "commands", botMessage(t, "2", "/UnsubFailedBuildNotifierWithSession@my_bot"))

		require.Eventually(t, func() bool {
			started, _ := f.sessions.snapshot()
			return len(started) == 2
		}, defaultWait, tick)
		assert.Empty(t, f.commands.handled())
	})

	t.Run("should hand stateless commands to the worker pool", func(t *testing.T) {
		f := newRouterFixture(t, inlineSubmitter{})
		f.publish(t, "commands", botMessage(t, "1", model.CommandSubscribe+" PROJ-PLAN"))
		f.publish(t, "commands", botMessage(t, "1", model.CommandListSubscriptions))

		require.Eventually(t, func() bool { return len(f.commands.handled()) == 2 }, defaultWait, tick)
		started, routed := f.sessions.snapshot()
		assert.Empty(t, started)
		assert.Empty(t, routed)
	})

	t.Run("should route other input to the chat session", func(t *testing.T) {
		f := newRouterFixture(t, inlineSubmitter{})
		f.publish(t, "commands", botMessage(t, "1", "PROJ-PLAN"))
		f.publish(t, "commands", botMessage(t, "1", model.TokenNextPage))

		require.Eventually(t, func() bool {
			_, routed := f.sessions.snapshot()
			return len(routed) == 2
		}, defaultWait, tick)
		_, routed := f.sessions.snapshot()
		assert.Equal(t, []string{"PROJ-PLAN", model.TokenNextPage}, routed)
	})

	t.Run("should notify only for webhooks addressed to this service", func(t *testing.T) {
		f := newRouterFixture(t, inlineSubmitter{})
		f.publish(t, "bamboo-webhook", webhook(t, "someone-else", "u-1"))
		f.publish(t, "bamboo-webhook", webhook(t, "build-notifier", "u-2"))

		require.Eventually(t, func() bool { return len(f.notifier.notified()) == 1 }, defaultWait, tick)
		assert.Equal(t, []string{"u-2"}, f.notifier.notified())
	})

	t.Run("should skip unknown payloads and keep consuming", func(t *testing.T) {
		f := newRouterFixture(t, inlineSubmitter{})
		f.publish(t, "commands", []byte("garbage"))
		f.publish(t, "bamboo-webhook", []byte(`{"uuid":"no-service"}`))
		f.publish(t, "commands", botMessage(t, "1", "after"))

		require.Eventually(t, func() bool {
			_, routed := f.sessions.snapshot()
			return len(routed) == 1
		}, defaultWait, tick)
		assert.Empty(t, f.notifier.notified())
	})

	t.Run("should survive a dispatch panic", func(t *testing.T) {
		f := newRouterFixture(t, inlineSubmitter{})
		f.sessions.mu.Lock()
		f.sessions.panics = 1
		f.sessions.mu.Unlock()

		f.publish(t, "commands", botMessage(t, "1", model.CommandSubscribeSession))
		f.publish(t, "commands", botMessage(t, "2", model.CommandSubscribeSession))

		require.Eventually(t, func() bool {
			started, _ := f.sessions.snapshot()
			return len(started) == 1
		}, defaultWait, tick)
	})

	t.Run("should keep consuming when the pool rejects a task", func(t *testing.T) {
		f := newRouterFixture(t, inlineSubmitter{err: errors.New("queue full")})
		f.publish(t, "commands", botMessage(t, "1", model.CommandSubscribe+" A-B"))
		f.publish(t, "commands", botMessage(t, "1", "text"))

		require.Eventually(t, func() bool {
			_, routed := f.sessions.snapshot()
			return len(routed) == 1
		}, defaultWait, tick)
	})

	t.Run("should return the context error on cancel", func(t *testing.T) {
		f := newRouterFixture(t, inlineSubmitter{})
		f.cancel()
		select {
		case err := <-f.done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(defaultWait):
			t.Fatal("router did not stop")
		}
	})
}
