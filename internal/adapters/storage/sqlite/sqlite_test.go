package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(context.Background(), filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStorage_Lookup(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	rec, err := s.GetLookup(ctx, "SKU-1")
	require.NoError(t, err)
	assert.Nil(t, rec)

	require.NoError(t, s.UpsertLookup(ctx, &models.LookupRecord{SKU: "SKU-1", ProductID: 10}))
	rec, err = s.GetLookup(ctx, "SKU-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(10), rec.ProductID)
	assert.Nil(t, rec.VariantID)

	vid := int64(20)
	require.NoError(t, s.UpsertLookup(ctx, &models.LookupRecord{SKU: "SKU-1", ProductID: 10, VariantID: &vid}))
	rec, err = s.GetLookup(ctx, "SKU-1")
	require.NoError(t, err)
	require.NotNil(t, rec.VariantID)
	assert.Equal(t, int64(20), *rec.VariantID)

	require.NoError(t, s.ClearLookup(ctx))
	rec, err = s.GetLookup(ctx, "SKU-1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestStorage_ImagesUniquePerFilename(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	img := &models.ImageTrackingRecord{
		SKU: "SKU-1", ProductID: 10, PIMImageURL: "https://pim/a.jpg", PIMFilename: "a.jpg", RemoteImageID: 1,
	}
	require.NoError(t, s.SaveImage(ctx, img))
	img.RemoteImageID = 2
	require.NoError(t, s.SaveImage(ctx, img))

	list, err := s.ListImages(ctx, "SKU-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(2), list[0].RemoteImageID)

	require.NoError(t, s.DeleteImages(ctx, "SKU-1"))
	list, err = s.ListImages(ctx, "SKU-1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStorage_RunCountersAndFinish(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	started := time.Now().Add(-2 * time.Second).UTC()
	require.NoError(t, s.CreateRun(ctx, &models.ImportRun{ID: "run-1", StartedAt: started, TriggeredBy: "test"}))

	items := []*models.ImportItem{
		{ID: "01", RunID: "run-1", SKU: "A", Op: models.OpCreate, Status: models.ItemOK},
		{ID: "02", RunID: "run-1", SKU: "B", Op: models.OpUpdate, Status: models.ItemOK},
		{ID: "03", RunID: "run-1", SKU: "C", Op: models.OpUpdate, Status: models.ItemFail, Message: "boom"},
	}
	for _, it := range items {
		it.CreatedAt = time.Now()
		require.NoError(t, s.AppendItem(ctx, it))
	}

	err := s.AppendItem(ctx, &models.ImportItem{ID: "04", RunID: "missing", Op: models.OpCreate, Status: models.ItemOK})
	assert.ErrorIs(t, err, utils.ErrRunNotFound)

	run, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 1, run.Created)
	assert.Equal(t, 1, run.Updated)
	assert.Equal(t, 1, run.Failed)
	assert.Nil(t, run.FinishedAt)

	page, total, err := s.ListItems(ctx, "run-1", 1, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 2)
	assert.Equal(t, "B", page[0].SKU)
	assert.Equal(t, "boom", page[1].Message)

	finished, err := s.FinishRun(ctx, "run-1", time.Now())
	require.NoError(t, err)
	require.NotNil(t, finished.DurationMs)
	assert.GreaterOrEqual(t, *finished.DurationMs, int64(2000))

	_, err = s.FinishRun(ctx, "run-1", time.Now())
	assert.ErrorIs(t, err, utils.ErrRunAlreadyFinished)
	_, err = s.FinishRun(ctx, "nope", time.Now())
	assert.ErrorIs(t, err, utils.ErrRunNotFound)

	missing, err := s.GetRun(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStorage_ListRecentRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, s.CreateRun(ctx, &models.ImportRun{
			ID: id, StartedAt: base.Add(time.Duration(i) * time.Minute), TriggeredBy: "test",
		}))
	}

	runs, err := s.ListRecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "mid", runs[1].ID)
}

func TestStorage_Directory(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	require.NoError(t, s.UpsertReference(ctx, models.Brands, models.Reference{ID: 7, Title: "Acme"}))
	require.NoError(t, s.UpsertReference(ctx, models.Brands, models.Reference{ID: 3, Title: "ACME"}))

	id, ok, err := s.FindReferenceID(ctx, models.Brands, " acme ")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(3), id)

	_, ok, err = s.FindReferenceID(ctx, models.Suppliers, "acme")
	require.NoError(t, err)
	assert.False(t, ok)

	name, ok, err := s.FindReferenceName(ctx, models.Brands, 7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Acme", name)

	require.NoError(t, s.ClearDirectory(ctx, models.Brands))
	_, ok, err = s.FindReferenceName(ctx, models.Brands, 7)
	require.NoError(t, err)
	assert.False(t, ok)

	err = s.UpsertReference(ctx, models.DirectoryKind("colors"), models.Reference{ID: 1})
	assert.ErrorIs(t, err, utils.ErrValidationMissing)
}

func TestStorage_Exclusions(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	require.NoError(t, s.SaveExclusion(ctx, &models.Exclusion{SKU: "X", Reason: "discontinued"}))
	excluded, err := s.IsExcluded(ctx, "X")
	require.NoError(t, err)
	assert.True(t, excluded)

	list, err := s.ListExclusions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "discontinued", list[0].Reason)

	require.NoError(t, s.DeleteExclusion(ctx, "X"))
	excluded, err = s.IsExcluded(ctx, "X")
	require.NoError(t, err)
	assert.False(t, excluded)
}
