package services

import (
	"context"
	"testing"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestSyncImagesBySKUReplacesRemoteSet(t *testing.T) {
	h := newHarness(t, mustMapping(t, basicPairs...))
	ctx := context.Background()
	pid := h.srv.AddProduct(map[string]interface{}{"visibility": "visible"}, nil)
	h.srv.AddVariant(pid, map[string]interface{}{"sku": "IMG1"})
	h.srv.AddImage(pid, "https://cdn.webshopapp.test/old.jpg")

	res := h.orch.SyncImages(ctx, "IMG1", 0, []string{"https://pim.test/media/A.jpg"})
	require.NoError(t, res.Err())
	require.Equal(t, models.StatusUpdated, res.Status)
	require.Equal(t, pid, *res.ProductID)
	require.Equal(t, []string{"https://cdn.webshopapp.test/a.jpg"}, h.srv.Images(pid))

	items := h.lastRun(t).Items
	require.Len(t, items, 1)
	require.Equal(t, "IMG1", items[0].SKU)
	require.Equal(t, models.OpUpdate, items[0].Op)
	require.Equal(t, models.ItemOK, items[0].Status)

	h.srv.ResetCalls()
	res = h.orch.SyncImages(ctx, "IMG1", 0, []string{"https://pim.test/media/a.jpg?v=2"})
	require.Equal(t, models.StatusUnchanged, res.Status)
	require.Zero(t, h.srv.Mutations())
}

func TestSyncImagesUnknownSKUIsNotFound(t *testing.T) {
	h := newHarness(t, mustMapping(t, basicPairs...))

	res := h.orch.SyncImages(context.Background(), "NOPE", 0, []string{"https://pim.test/a.jpg"})
	require.Equal(t, models.StatusFailed, res.Status)
	require.ErrorIs(t, res.Err(), utils.ErrNotFound)
	require.Nil(t, res.ProductID)
	require.Zero(t, h.srv.Mutations())
}

func TestSyncImagesByProductID(t *testing.T) {
	h := newHarness(t, mustMapping(t, basicPairs...))
	ctx := context.Background()
	pid := h.srv.AddProduct(map[string]interface{}{"visibility": "visible"}, nil)

	res := h.orch.SyncImages(ctx, "", pid, []string{"https://pim.test/x.jpg", "https://pim.test/y.jpg"})
	require.NoError(t, res.Err())
	require.Equal(t, "product-"+itoa(pid), res.SKU)
	require.Len(t, h.srv.Images(pid), 2)

	tracked, err := h.store.ListImages(ctx, res.SKU)
	require.NoError(t, err)
	require.Len(t, tracked, 2)

	res = h.orch.SyncImages(ctx, "", 0, nil)
	require.ErrorIs(t, res.Err(), utils.ErrValidationMissing)
}
