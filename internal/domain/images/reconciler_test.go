package images

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/storage/memory"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/stretchr/testify/require"
)

type fakeImageCatalog struct {
	images   []models.RemoteImage
	nextID   int64
	deleted  []int64
	uploaded []string
	failList bool
}

func (f *fakeImageCatalog) ListProductImages(ctx context.Context, productID int64) ([]models.RemoteImage, error) {
	if f.failList {
		return nil, errors.New("boom")
	}
	return append([]models.RemoteImage(nil), f.images...), nil
}

func (f *fakeImageCatalog) DeleteProductImage(ctx context.Context, productID, imageID int64) error {
	f.deleted = append(f.deleted, imageID)
	kept := f.images[:0]
	for _, img := range f.images {
		if img.ID != imageID {
			kept = append(kept, img)
		}
	}
	f.images = kept
	return nil
}

func (f *fakeImageCatalog) UploadProductImage(ctx context.Context, productID int64, filename, attachment string) (*models.RemoteImage, error) {
	f.nextID++
	img := models.RemoteImage{ID: 100 + f.nextID, Src: "https://cdn.example/" + filename}
	f.images = append(f.images, img)
	f.uploaded = append(f.uploaded, filename)
	return &img, nil
}

type fakeDownloader struct {
	fail map[string]bool
}

func (d fakeDownloader) Download(ctx context.Context, url string) ([]byte, error) {
	if d.fail[url] {
		return nil, errors.New("404")
	}
	return []byte("img:" + url), nil
}

func trackedNames(t *testing.T, store *memory.Storage, sku string) []string {
	t.Helper()
	recs, err := store.ListImages(context.Background(), sku)
	require.NoError(t, err)
	names := make([]string, 0, len(recs))
	for _, r := range recs {
		names = append(names, r.PIMFilename)
	}
	sort.Strings(names)
	return names
}

func TestReconcileChangeDetection(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStorage()
	catalog := &fakeImageCatalog{}
	r := NewReconciler(catalog, store, fakeDownloader{}, logger.NewNopLogger())

	report, err := r.Reconcile(ctx, "X1", 7, []string{"https://pim/a.jpg?v=1", "https://pim/b.jpg"})
	require.NoError(t, err)
	require.Equal(t, ResultReplaced, report.Result)
	require.Equal(t, 2, report.Uploaded)
	require.Equal(t, []string{"a.jpg", "b.jpg"}, trackedNames(t, store, "X1"))

	catalog.deleted, catalog.uploaded = nil, nil
	report, err = r.Reconcile(ctx, "X1", 7, []string{"https://pim/A.jpg?v=2", "https://pim/b.jpg?w=300"})
	require.NoError(t, err)
	require.Equal(t, ResultUnchanged, report.Result)
	require.Empty(t, catalog.deleted)
	require.Empty(t, catalog.uploaded)

	report, err = r.Reconcile(ctx, "X1", 7, []string{"https://pim/a.jpg", "https://pim/c.jpg"})
	require.NoError(t, err)
	require.Equal(t, ResultReplaced, report.Result)
	require.Equal(t, 2, report.Deleted)
	require.ElementsMatch(t, []int64{101, 102}, catalog.deleted)
	require.Equal(t, []string{"a.jpg", "c.jpg"}, catalog.uploaded)
	require.Equal(t, []string{"a.jpg", "c.jpg"}, trackedNames(t, store, "X1"))
}

func TestReconcileSkipsEmptyAndInvalid(t *testing.T) {
	catalog := &fakeImageCatalog{}
	r := NewReconciler(catalog, memory.NewStorage(), fakeDownloader{}, logger.NewNopLogger())

	report, err := r.Reconcile(context.Background(), "X1", 7, []string{"", "ftp://x/a.jpg", "  "})
	require.NoError(t, err)
	require.Equal(t, ResultSkipped, report.Result)
	require.Empty(t, catalog.uploaded)
}

func TestReconcileContinuesAfterBrokenImage(t *testing.T) {
	store := memory.NewStorage()
	catalog := &fakeImageCatalog{failList: true}
	dl := fakeDownloader{fail: map[string]bool{"https://pim/broken.jpg": true}}
	r := NewReconciler(catalog, store, dl, logger.NewNopLogger())

	report, err := r.Reconcile(context.Background(), "X2", 9,
		[]string{"@\"https://pim/broken.jpg\"", "https://pim/ok.jpg", "https://pim/ok.jpg"})
	require.NoError(t, err)
	require.Equal(t, 1, report.Uploaded)
	require.Len(t, report.Failed, 1)
	require.Equal(t, []string{"ok.jpg"}, trackedNames(t, store, "X2"))
}

func TestNormalizeAndFilename(t *testing.T) {
	require.Equal(t, []string{"https://a/x.JPG?y=1", "http://b/y.png"},
		Normalize([]string{" @https://a/x.JPG?y=1 ", "'http://b/y.png'", "https://a/x.JPG?y=1", "a.jpg"}))
	require.Equal(t, "x.jpg", Filename("https://a/x.JPG?y=1"))
	require.Equal(t, []string{"a", "b"}, SplitURLs(" a , ,b"))
	require.Nil(t, SplitURLs(" "))
}
