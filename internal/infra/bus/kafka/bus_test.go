package kafka

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupFor(t *testing.T) {
	t.Run("should not depend on topic order", func(t *testing.T) {
		assert.Equal(t, groupFor("svc", []string{"b", "a"}), groupFor("svc", []string{"a", "b"}))
		assert.Equal(t, "svc.a+b", groupFor("svc", []string{"b", "a"}))
	})

	t.Run("should keep distinct topic sets apart", func(t *testing.T) {
		assert.NotEqual(t, groupFor("svc", []string{"a"}), groupFor("svc", []string{"a", "b"}))
	})
}

func TestNew(t *testing.T) {
	log := zerolog.Nop()

	t.Run("should require brokers", func(t *testing.T) {
		_, err := New(Config{GroupID: "svc"}, &log)
		require.Error(t, err)
	})

	t.Run("should close idempotently", func(t *testing.T) {
		b, err := New(Config{Brokers: []string{"localhost:9092"}, GroupID: "svc"}, &log)
		require.NoError(t, err)
		require.NoError(t, b.Close())
		require.NoError(t, b.Close())

		_, err = b.Subscribe(t.Context(), "topic")
		assert.Error(t, err)
	})
}
