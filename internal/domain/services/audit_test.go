package services

import (
	"context"
	"testing"
	"time"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/storage/memory"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestAuditRunLifecycle(t *testing.T) {
	store := memory.NewStorage()
	svc := NewAuditService(store, logger.NewNopLogger())
	ctx := context.Background()

	run, err := svc.Start(ctx, "")
	require.NoError(t, err)
	require.Equal(t, "api", run.TriggeredBy)

	_, err = svc.AppendItem(ctx, run.ID, "A", models.OpCreate, models.ItemOK, "")
	require.NoError(t, err)
	_, err = svc.AppendItem(ctx, run.ID, "B", models.OpUpdate, models.ItemOK, "")
	require.NoError(t, err)
	_, err = svc.AppendItem(ctx, run.ID, "C", models.OpUpdate, models.ItemFail, "boom")
	require.NoError(t, err)

	finished, err := svc.Finish(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, finished.FinishedAt)
	require.NotNil(t, finished.DurationMs)
	require.Equal(t, 1, finished.Created)
	require.Equal(t, 1, finished.Updated)
	require.Equal(t, 1, finished.Failed)

	_, err = svc.Finish(ctx, run.ID)
	require.ErrorIs(t, err, utils.ErrRunAlreadyFinished)

	details, err := svc.Details(ctx, run.ID, 1, 2)
	require.NoError(t, err)
	require.Len(t, details.Items, 2)
	require.Equal(t, int64(3), details.Pagination.TotalItems)
	// элементы в порядке записи
	require.Equal(t, "A", details.Items[0].SKU)

	_, err = svc.Details(ctx, "missing", 1, 10)
	require.ErrorIs(t, err, utils.ErrRunNotFound)
}

func TestAuditRecentClampsLimit(t *testing.T) {
	store := memory.NewStorage()
	svc := NewAuditService(store, logger.NewNopLogger())
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	ctx := context.Background()

	var last string
	for i := 0; i < 25; i++ {
		run, err := svc.Start(ctx, "test")
		require.NoError(t, err)
		last = run.ID
	}

	runs, err := svc.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	require.Equal(t, last, runs[0].ID)

	runs, err = svc.Recent(ctx, 100)
	require.NoError(t, err)
	require.Len(t, runs, 20)
}
