package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/teleconsult/internal/domain/providers"
)

func TestMemoryAdapter(t *testing.T) {
	ctx := context.Background()

	t.Run("miss on absent key", func(t *testing.T) {
		c := NewMemoryAdapter()
		_, err := c.Get(ctx, "missing")
		assert.ErrorIs(t, err, providers.ErrCacheMiss)
	})

	t.Run("set then get", func(t *testing.T) {
		c := NewMemoryAdapter()
		require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

		got, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), got)
	})

	t.Run("expires after ttl", func(t *testing.T) {
		now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
		c := NewMemoryAdapter()
		c.now = func() time.Time { return now }

		require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
		now = now.Add(time.Minute)

		_, err := c.Get(ctx, "k")
		assert.ErrorIs(t, err, providers.ErrCacheMiss)
	})

	t.Run("delete many", func(t *testing.T) {
		c := NewMemoryAdapter()
		require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
		require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))

		require.NoError(t, c.Delete(ctx, "a", "b"))

		_, err := c.Get(ctx, "a")
		assert.ErrorIs(t, err, providers.ErrCacheMiss)
		_, err = c.Get(ctx, "b")
		assert.ErrorIs(t, err, providers.ErrCacheMiss)
	})
}
