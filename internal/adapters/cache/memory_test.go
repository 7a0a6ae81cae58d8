package cache

import (
	"context"
	"testing"
	"time"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheGetSet(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()

	_, err := c.Get(ctx, "lookup:X1")
	require.ErrorIs(t, err, utils.ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "lookup:X1", []byte(`{"productId":1}`), 0))
	data, err := c.Get(ctx, "lookup:X1")
	require.NoError(t, err)
	require.JSONEq(t, `{"productId":1}`, string(data))

	require.NoError(t, c.Set(ctx, "short", []byte("v"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)
	_, err = c.Get(ctx, "short")
	require.ErrorIs(t, err, utils.ErrCacheMiss)
}

func TestMemoryCacheDeleteByPattern(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()
	for _, k := range []string{"lookup:A", "lookup:B", "lock:sku:A"} {
		require.NoError(t, c.Set(ctx, k, []byte("1"), 0))
	}

	require.NoError(t, c.DeleteByPattern(ctx, "lookup:*"))
	_, err := c.Get(ctx, "lookup:A")
	require.ErrorIs(t, err, utils.ErrCacheMiss)
	_, err = c.Get(ctx, "lock:sku:A")
	require.NoError(t, err)
}

func TestMemoryCacheLock(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()

	ok, err := c.Lock(ctx, "lock:sku:A", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = c.Lock(ctx, "lock:sku:A", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Unlock(ctx, "lock:sku:A"))
	ok, err = c.Lock(ctx, "lock:sku:A", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}
