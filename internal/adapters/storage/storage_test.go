package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestNewSelectsDriver(t *testing.T) {
	ctx := context.Background()
	log := logger.NewNopLogger()

	for _, opts := range []Options{
		{Driver: DriverMemory},
		{Driver: DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "sync.db")},
		{SQLitePath: filepath.Join(t.TempDir(), "default.db")},
	} {
		store, err := New(ctx, opts, log)
		require.NoError(t, err, opts.Driver)
		require.NoError(t, store.Ping(ctx))

		require.NoError(t, store.UpsertLookup(ctx, &models.LookupRecord{SKU: "S1", ProductID: 1}))
		rec, err := store.GetLookup(ctx, "S1")
		require.NoError(t, err)
		require.Equal(t, int64(1), rec.ProductID)
		require.NoError(t, store.Close())
	}
}

func TestNewUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), Options{Driver: "mongo"}, logger.NewNopLogger())
	require.ErrorIs(t, err, utils.ErrStorageUnknownDriver)
}
