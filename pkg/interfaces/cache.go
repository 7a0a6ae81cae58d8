package interfaces

import (
	"context"
	"time"
)

// CachePort определяет интерфейс кэша идентификаторов и распределённых блокировок.
// Реализации: Redis для production и in-memory для одиночного процесса и тестов.
type CachePort interface {
	// Get получает значение из кэша по ключу.
	// Возвращает utils.ErrCacheMiss, если значение не найдено
	Get(ctx context.Context, key string) ([]byte, error)

	// Set сохраняет значение в кэше; expiration == 0 означает хранение без срока
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error

	// Delete удаляет значение из кэша по ключу
	Delete(ctx context.Context, key string) error

	// DeleteByPattern удаляет все значения по шаблону, например "lookup:*"
	DeleteByPattern(ctx context.Context, pattern string) error

	// Lock пытается получить блокировку, возвращает true при успехе
	Lock(ctx context.Context, key string, expiration time.Duration) (bool, error)

	// Unlock освобождает блокировку
	Unlock(ctx context.Context, key string) error

	// Ping проверяет доступность кэша
	Ping(ctx context.Context) error

	Close() error
}
