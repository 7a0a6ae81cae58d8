package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/cache"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/logger"
	"github.com/stretchr/testify/require"
)

func TestKeyedLockerSerializesSameSKU(t *testing.T) {
	l := NewKeyedLocker()
	var active, maxActive int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "S1")
			if err != nil {
				return
			}
			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
			unlock()
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), maxActive)
	require.Empty(t, l.locks)
}

func TestKeyedLockerHonoursContext(t *testing.T) {
	l := NewKeyedLocker()
	unlock, err := l.Lock(context.Background(), "S1")
	require.NoError(t, err)
	defer unlock()

	other, err := l.Lock(context.Background(), "S2")
	require.NoError(t, err)
	other()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "S1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCacheLockerReleasesDistributedLock(t *testing.T) {
	c := cache.NewMemoryCache(time.Minute)
	l := NewCacheLocker(c, time.Minute, logger.NewNopLogger())
	l.poll = time.Millisecond
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "S1")
	require.NoError(t, err)
	held, err := c.Lock(ctx, "lock:sku:S1", time.Minute)
	require.NoError(t, err)
	require.False(t, held)

	unlock()
	again, err := l.Lock(ctx, "S1")
	require.NoError(t, err)
	again()
}
