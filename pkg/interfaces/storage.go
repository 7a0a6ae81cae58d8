package interfaces

import (
	"context"
)

// StoragePort определяет общий жизненный цикл постоянного хранилища.
// Репозитории конкретных таблиц описаны в internal/domain/ports
type StoragePort interface {
	// Migrate создает таблицы, если их еще нет
	Migrate(ctx context.Context) error

	// Ping проверяет соединение с хранилищем
	Ping(ctx context.Context) error

	// Close закрывает соединение с хранилищем
	Close() error
}
