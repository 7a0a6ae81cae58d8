package cache

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/utils"
	"github.com/athebyme/gomarket-platform/catalog-sync/pkg/interfaces"
	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache CachePort внутри процесса для запуска без Redis и для тестов
type MemoryCache struct {
	store *gocache.Cache
	mu    sync.Mutex
}

func NewMemoryCache(cleanupInterval time.Duration) interfaces.CachePort {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	return &MemoryCache{store: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := m.store.Get(key)
	if !ok {
		return nil, utils.ErrCacheMiss
	}
	data, _ := v.([]byte)
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	data := make([]byte, len(value))
	copy(data, value)
	m.store.Set(key, data, ttl(expiration))
	return nil
}

func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.store.Delete(key)
	return nil
}

// DeleteByPattern поддерживает glob-шаблоны в стиле Redis: "lookup:*"
func (m *MemoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	for key := range m.store.Items() {
		if ok, _ := path.Match(pattern, key); ok {
			m.store.Delete(key)
		}
	}
	return nil
}

func (m *MemoryCache) Lock(ctx context.Context, key string, expiration time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Add(key, []byte{1}, ttl(expiration)); err != nil {
		return false, nil
	}
	return true, nil
}

func (m *MemoryCache) Unlock(ctx context.Context, key string) error {
	m.store.Delete(key)
	return nil
}

func (m *MemoryCache) Ping(ctx context.Context) error { return nil }

func (m *MemoryCache) Close() error {
	m.store.Flush()
	return nil
}

// ttl переводит "без срока" CachePort в константу go-cache
func ttl(d time.Duration) time.Duration {
	if d <= 0 {
		return gocache.NoExpiration
	}
	return d
}
