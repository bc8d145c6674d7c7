package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract checks the behaviour every backend shares. The store must
// be configured with clk and a MaxMessages of 4.
func runStoreContract(t *testing.T, store Store, clk *clockwork.FakeClock) {
	t.Helper()
	ctx := context.Background()

	t.Run("unknown thread", func(t *testing.T) {
		_, err := store.Load(ctx, "missing")
		require.ErrorIs(t, err, ErrThreadNotFound)
	})

	t.Run("append and load", func(t *testing.T) {
		require.NoError(t, store.Append(ctx, "t1",
			Message{Role: "user", Content: "hola"},
			Message{Role: "assistant", Content: "¡Hola! Soy Galleta 🍪"},
		))
		clk.Advance(time.Minute)
		require.NoError(t, store.Append(ctx, "t1", Message{Role: "user", Content: "¿qué viajes hay?"}))

		msgs, err := store.Load(ctx, "t1")
		require.NoError(t, err)
		require.Len(t, msgs, 3)
		assert.Equal(t, "hola", msgs[0].Content)
		assert.Equal(t, "assistant", msgs[1].Role)
		assert.Equal(t, "¡Hola! Soy Galleta 🍪", msgs[1].Content)
		assert.True(t, msgs[0].CreatedAt.Equal(clk.Now().Add(-time.Minute).UTC()), "got %s", msgs[0].CreatedAt)
		assert.True(t, msgs[2].CreatedAt.Equal(clk.Now().UTC()), "got %s", msgs[2].CreatedAt)
	})

	t.Run("threads are isolated", func(t *testing.T) {
		require.NoError(t, store.Append(ctx, "t2", Message{Role: "user", Content: "otro"}))
		msgs, err := store.Load(ctx, "t2")
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, "otro", msgs[0].Content)
	})

	t.Run("keeps most recent", func(t *testing.T) {
		for i := range 6 {
			require.NoError(t, store.Append(ctx, "t3", Message{Role: "user", Content: fmt.Sprintf("m%d", i)}))
		}
		msgs, err := store.Load(ctx, "t3")
		require.NoError(t, err)
		require.Len(t, msgs, 4)
		assert.Equal(t, "m2", msgs[0].Content)
		assert.Equal(t, "m5", msgs[3].Content)
	})

	t.Run("empty append is a no-op", func(t *testing.T) {
		require.NoError(t, store.Append(ctx, "t4"))
		_, err := store.Load(ctx, "t4")
		require.ErrorIs(t, err, ErrThreadNotFound)
	})
}
