// Package storage выбирает бэкенд хранения по имени драйвера
package storage

import (
	"context"
	"fmt"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/storage/memory"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/storage/postgres"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/storage/sqlite"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/ports"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/utils"
	"github.com/athebyme/gomarket-platform/catalog-sync/pkg/interfaces"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Options параметры подключения; используется только поле выбранного драйвера
type Options struct {
	Driver      string
	PostgresDSN string
	SQLitePath  string
}

// New открывает хранилище и применяет схему
func New(ctx context.Context, opts Options, logger interfaces.LoggerPort) (ports.Store, error) {
	var (
		store ports.Store
		err   error
	)
	switch opts.Driver {
	case DriverPostgres:
		store, err = postgres.NewStorage(ctx, opts.PostgresDSN, logger)
	case DriverSQLite, "":
		store, err = sqlite.NewStorage(ctx, opts.SQLitePath)
	case DriverMemory:
		store = memory.NewStorage()
	default:
		return nil, fmt.Errorf("%w: %s", utils.ErrStorageUnknownDriver, opts.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	logger.Info("Хранилище инициализировано", interfaces.LogField{Key: "driver", Value: opts.Driver})
	return store, nil
}
