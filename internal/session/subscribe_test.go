package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"build-notifier/internal/domain/model"
	"build-notifier/internal/infra/db/memstore"
)

func TestSubscribeFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("should subscribe and end on a valid plan name", func(t *testing.T) {
		f := newFixture(t, longTimeouts())
		require.True(t, f.mgr.StartSession(ctx, message("C1", model.CommandSubscribeSession, "k1")))

		prompt := f.sink.wait(t, 1)[0]
		assert.Equal(t, model.StatusInProgress, prompt.Status)
		assert.Equal(t, "k1", prompt.CorrelationID)
		assert.Equal(t, "MarkdownV2", prompt.Data.ParseMode)
		assert.Equal(t, [][]string{{model.TokenCloseSession}}, callbacks(prompt))

		f.mgr.Route(ctx, message("C1", "Proj - Plan", "k2"))
		f.waitEnded(t, "C1")

		msgs := f.sink.wait(t, 2)
		last := msgs[len(msgs)-1]
		assert.Equal(t, model.StatusCompleted, last.Status)
		assert.Equal(t, "k2", last.CorrelationID)

		plans, err := f.store.ListPlans(ctx, "C1")
		require.NoError(t, err)
		assert.Equal(t, []string{"Proj - Plan"}, plans)
	})

	t.Run("should normalize the plan name before storing", func(t *testing.T) {
		f := newFixture(t, longTimeouts())
		f.mgr.StartSession(ctx, message("C1", model.CommandSubscribeSession, ""))
		f.sink.wait(t, 1)
		f.mgr.Route(ctx, message("C1", "  Proj  -  Plan ", ""))
		f.waitEnded(t, "C1")

		plans, _ := f.store.ListPlans(ctx, "C1")
		assert.Equal(t, []string{"Proj - Plan"}, plans)
	})

	t.Run("should re-prompt on an invalid name without touching the store", func(t *testing.T) {
		f := newFixture(t, longTimeouts())
		f.mgr.StartSession(ctx, message("C1", model.CommandSubscribeSession, ""))
		f.sink.wait(t, 1)

		f.mgr.Route(ctx, message("C1", "no separator here", ""))
		reprompt := f.sink.wait(t, 2)[1]
		assert.Equal(t, model.StatusInProgress, reprompt.Status)
		assert.Contains(t, reprompt.Data.Text, "Project")
		assert.Equal(t, [][]string{{model.TokenCloseSession}}, callbacks(reprompt))
		assert.True(t, f.mgr.Has("C1"))

		plans, _ := f.store.ListPlans(ctx, "C1")
		assert.Empty(t, plans)
	})

	t.Run("should end on the close keyword in any case", func(t *testing.T) {
		f := newFixture(t, longTimeouts())
		f.mgr.StartSession(ctx, message("C1", model.CommandSubscribeSession, ""))
		f.sink.wait(t, 1)

		f.mgr.Route(ctx, message("C1", "CLOSE_FAILED_BUILD_NOTIFIER_SESSION", ""))
		f.waitEnded(t, "C1")
		assert.Equal(t, model.StatusCompleted, f.sink.wait(t, 2)[1].Status)
	})

	t.Run("should end when already subscribed", func(t *testing.T) {
		f := newFixture(t, longTimeouts())
		_, _ = f.store.Add(ctx, "Proj - Plan", "C1")
		f.mgr.StartSession(ctx, message("C1", model.CommandSubscribeSession, ""))
		f.sink.wait(t, 1)

		f.mgr.Route(ctx, message("C1", "Proj - Plan", ""))
		f.waitEnded(t, "C1")
		assert.Equal(t, model.StatusCompleted, f.sink.wait(t, 2)[1].Status)

		plans, _ := f.store.ListPlans(ctx, "C1")
		assert.Equal(t, []string{"Proj - Plan"}, plans)
	})

	t.Run("should report a store failure and end", func(t *testing.T) {
		sink := &recordingSink{}
		tr := newTranslator(t)
		factory := NewFactory(failingStore{memstore.New()}, sink, tr, longTimeouts(), newTestLogger())
		mgr := NewManager(factory, sink, tr, newTestLogger())
		t.Cleanup(mgr.Shutdown)

		mgr.StartSession(ctx, message("C1", model.CommandSubscribeSession, ""))
		sink.wait(t, 1)
		mgr.Route(ctx, message("C1", "Proj - Plan", ""))

		require.Eventually(t, func() bool { return mgr.Count() == 0 }, defaultWait, tick)
		msgs := sink.wait(t, 2)
		assert.Equal(t, model.StatusCompleted, msgs[1].Status)
		assert.Contains(t, msgs[1].Data.Text, "Something went wrong")
	})
}
