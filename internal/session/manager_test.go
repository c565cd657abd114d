package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"build-notifier/internal/domain/model"
)

func TestManager_StartSession(t *testing.T) {
	ctx := context.Background()

	t.Run("should keep one session per chat", func(t *testing.T) {
		f := newFixture(t, longTimeouts())
		assert.True(t, f.mgr.StartSession(ctx, message("C1", model.CommandSubscribeSession, "")))
		assert.False(t, f.mgr.StartSession(ctx, message("C1", model.CommandSubscribeSession, "")))
		assert.False(t, f.mgr.StartSession(ctx, message("C1", model.CommandUnsubscribeSession, "")))
		assert.Equal(t, 1, f.mgr.Count())
		assert.Len(t, f.sink.wait(t, 1), 1)
	})

	t.Run("should let only one of many concurrent starts win", func(t *testing.T) {
		f := newFixture(t, longTimeouts())
		var wg sync.WaitGroup
		wins := make(chan bool, 50)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				wins <- f.mgr.StartSession(ctx, message("C1", model.CommandSubscribeSession, ""))
			}()
		}
		wg.Wait()
		close(wins)

		n := 0
		for w := range wins {
			if w {
				n++
			}
		}
		assert.Equal(t, 1, n)
		assert.Equal(t, 1, f.mgr.Count())
	})

	t.Run("should run sessions of different chats side by side", func(t *testing.T) {
		f := newFixture(t, longTimeouts())
		f.mgr.StartSession(ctx, message("C1", model.CommandSubscribeSession, ""))
		f.mgr.StartSession(ctx, message("C2", model.CommandSubscribeSession, ""))
		assert.Equal(t, 2, f.mgr.Count())
	})

	t.Run("should refuse a non-session command", func(t *testing.T) {
		f := newFixture(t, longTimeouts())
		assert.False(t, f.mgr.StartSession(ctx, message("C1", model.CommandSubscribe, "")))
		assert.Zero(t, f.mgr.Count())
	})
}

func TestManager_Route(t *testing.T) {
	ctx := context.Background()

	t.Run("should answer when no session is active", func(t *testing.T) {
		f := newFixture(t, longTimeouts())
		assert.False(t, f.mgr.Route(ctx, message("C9", "hello", "k9")))

		msg := f.sink.wait(t, 1)[0]
		assert.Equal(t, "C9", msg.ChatID())
		assert.Equal(t, "k9", msg.CorrelationID)
		assert.Equal(t, model.StatusCompleted, msg.Status)
	})

	t.Run("should answer when the session ended but is still in the table", func(t *testing.T) {
		f := newFixture(t, longTimeouts())
		s := f.mgr.factory.New("C5", FlowSubscribe)
		s.mailbox.Close()
		f.mgr.mu.Lock()
		f.mgr.sessions["C5"] = &handle{session: s, cancel: func() {}}
		f.mgr.mu.Unlock()
		t.Cleanup(func() {
			f.mgr.mu.Lock()
			delete(f.mgr.sessions, "C5")
			f.mgr.mu.Unlock()
		})

		assert.False(t, f.mgr.Route(ctx, message("C5", "too late", "k5")))
		msg := f.sink.wait(t, 1)[0]
		assert.Equal(t, "C5", msg.ChatID())
		assert.Equal(t, "k5", msg.CorrelationID)
		assert.Equal(t, model.StatusCompleted, msg.Status)
	})
}

func TestManager_StopSession(t *testing.T) {
	t.Run("should be idempotent", func(t *testing.T) {
		f := newFixture(t, longTimeouts())
		f.mgr.StartSession(context.Background(), message("C1", model.CommandSubscribeSession, ""))
		f.sink.wait(t, 1)

		f.mgr.StopSession("C1")
		assert.Zero(t, f.mgr.Count())
		f.mgr.StopSession("C1")
		f.mgr.StopSession("unknown")
		assert.Zero(t, f.mgr.Count())
	})

	t.Run("should allow a new session after stop", func(t *testing.T) {
		f := newFixture(t, longTimeouts())
		f.mgr.StartSession(context.Background(), message("C1", model.CommandSubscribeSession, ""))
		f.mgr.StopSession("C1")
		assert.True(t, f.mgr.StartSession(context.Background(), message("C1", model.CommandSubscribeSession, "")))
		assert.Equal(t, 1, f.mgr.Count())
	})

	t.Run("should stop sessions when the root context is cancelled", func(t *testing.T) {
		f := newFixture(t, longTimeouts())
		ctx, cancel := context.WithCancel(context.Background())
		f.mgr.StartSession(ctx, message("C1", model.CommandSubscribeSession, ""))
		f.mgr.StartSession(ctx, message("C2", model.CommandSubscribeSession, ""))
		f.sink.wait(t, 2)

		cancel()
		require.Eventually(t, func() bool { return f.mgr.Count() == 0 }, defaultWait, tick)
		assert.Len(t, f.sink.messages(), 2, "cancellation ends sessions quietly")
	})

	t.Run("should not remove a newer session of the same chat", func(t *testing.T) {
		f := newFixture(t, longTimeouts())
		old := &handle{session: f.mgr.factory.New("C1", FlowSubscribe), cancel: func() {}}
		newer := &handle{session: f.mgr.factory.New("C1", FlowSubscribe), cancel: func() {}}

		f.mgr.mu.Lock()
		f.mgr.sessions["C1"] = newer
		f.mgr.mu.Unlock()

		f.mgr.removeIfSame(old)
		assert.True(t, f.mgr.Has("C1"))
		f.mgr.removeIfSame(newer)
		assert.False(t, f.mgr.Has("C1"))
	})

	t.Run("should shut down every session", func(t *testing.T) {
		f := newFixture(t, longTimeouts())
		for _, chat := range []string{"C1", "C2", "C3"} {
			f.mgr.StartSession(context.Background(), message(chat, model.CommandSubscribeSession, ""))
		}
		f.mgr.Shutdown()
		assert.Zero(t, f.mgr.Count())
	})
}

func TestSession_Inactivity(t *testing.T) {
	cfg := Config{InactivityTimeout: 60 * time.Millisecond, WatchdogInterval: 10 * time.Millisecond}

	t.Run("should time out while awaiting input", func(t *testing.T) {
		f := newFixture(t, cfg)
		f.mgr.StartSession(context.Background(), message("C1", model.CommandSubscribeSession, ""))

		f.waitEnded(t, "C1")
		msgs := f.sink.wait(t, 2)
		assert.Equal(t, model.StatusCompleted, msgs[1].Status)
		assert.Contains(t, msgs[1].Data.Text, "timed out")
	})

	t.Run("should keep an active session alive", func(t *testing.T) {
		f := newFixture(t, Config{InactivityTimeout: 250 * time.Millisecond, WatchdogInterval: 10 * time.Millisecond})
		f.seed(t, "C1", 12)
		f.mgr.StartSession(context.Background(), message("C1", model.CommandUnsubscribeSession, ""))
		for i := 0; i < 8; i++ {
			time.Sleep(50 * time.Millisecond)
			tok := model.TokenNextPage
			if i%2 == 1 {
				tok = model.TokenPreviousPage
			}
			f.mgr.Route(context.Background(), message("C1", tok, ""))
		}
		assert.True(t, f.mgr.Has("C1"))
	})
}
