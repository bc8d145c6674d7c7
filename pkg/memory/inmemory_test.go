package memory

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_InMemory_Contract(t *testing.T) {
	clk := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	store, err := NewInMemory(InMemoryConfig{Clock: clk, MaxMessages: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	runStoreContract(t, store, clk)
}

func TestMemory_InMemory_Expires(t *testing.T) {
	store, err := NewInMemory(InMemoryConfig{TTL: 50 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "t", Message{Role: "user", Content: "hola"}))
	assert.Equal(t, 1, store.Threads())

	require.Eventually(t, func() bool {
		_, err := store.Load(ctx, "t")
		return err == ErrThreadNotFound
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMemory_InMemory_LoadReturnsCopy(t *testing.T) {
	store, err := NewInMemory(InMemoryConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "t", Message{Role: "user", Content: "hola"}))
	msgs, err := store.Load(ctx, "t")
	require.NoError(t, err)
	msgs[0].Content = "cambiado"

	again, err := store.Load(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "hola", again[0].Content)
}

func TestMemory_InMemoryConfig_Validate(t *testing.T) {
	cfg := InMemoryConfig{}
	require.NoError(t, cfg.Validate())
	assert.NotNil(t, cfg.Clock)
	assert.Equal(t, DefaultMaxMessages, cfg.MaxMessages)

	cfg = InMemoryConfig{TTL: -time.Second}
	require.Error(t, cfg.Validate())
}
