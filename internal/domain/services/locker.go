package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/athebyme/gomarket-platform/catalog-sync/pkg/interfaces"
)

// KeyedLocker мьютекс на SKU внутри процесса
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]*keyedEntry)}
}

// Lock блокирует SKU до вызова unlock или отмены ctx
func (l *KeyedLocker) Lock(ctx context.Context, sku string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[sku]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		l.locks[sku] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(sku, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.release(sku, e)
		})
	}, nil
}

func (l *KeyedLocker) release(sku string, e *keyedEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, sku)
	}
}

// CacheLocker распределенная блокировка SKU через CachePort (Redis SETNX)
// поверх блокировки внутри процесса
type CacheLocker struct {
	local  *KeyedLocker
	cache  interfaces.CachePort
	ttl    time.Duration
	poll   time.Duration
	logger interfaces.LoggerPort
}

func NewCacheLocker(cache interfaces.CachePort, ttl time.Duration, logger interfaces.LoggerPort) *CacheLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &CacheLocker{local: NewKeyedLocker(), cache: cache, ttl: ttl, poll: 100 * time.Millisecond, logger: logger}
}

func (l *CacheLocker) Lock(ctx context.Context, sku string) (func(), error) {
	unlockLocal, err := l.local.Lock(ctx, sku)
	if err != nil {
		return nil, err
	}

	key := "lock:sku:" + sku
	for {
		ok, err := l.cache.Lock(ctx, key, l.ttl)
		if err != nil {
			unlockLocal()
			return nil, fmt.Errorf("failed to acquire sku lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			unlockLocal()
			return nil, ctx.Err()
		case <-time.After(l.poll):
		}
	}

	return func() {
		// ctx операции может быть уже отменен, освобождаем независимо от него
		if err := l.cache.Unlock(context.Background(), key); err != nil {
			l.logger.Warn("Не удалось освободить блокировку SKU",
				interfaces.LogField{Key: "sku", Value: sku},
				interfaces.LogField{Key: "error", Value: err.Error()})
		}
		unlockLocal()
	}, nil
}
