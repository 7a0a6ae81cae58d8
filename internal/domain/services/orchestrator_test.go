package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/utils"
	"github.com/stretchr/testify/require"
)

var basicPairs = [][2]string{
	{"SKU", "Variant: sku"},
	{"Price", "Variant: priceIncl"},
	{"Brand", "Product: brand.title"},
}

func TestSyncCreatesProductAndVariant(t *testing.T) {
	h := newHarness(t, mustMapping(t, basicPairs...))
	ctx := context.Background()
	require.NoError(t, h.store.UpsertReference(ctx, models.Brands, models.Reference{ID: 9, Title: "Acme"}))

	rec := models.PIMRecord{"SKU": "X1", "Price": "10.00", "Brand": "acme"}
	res := h.orch.Sync(ctx, rec, nil)
	require.NoError(t, res.Err())
	require.Equal(t, models.StatusCreated, res.Status)
	require.NotNil(t, res.ProductID)
	require.NotNil(t, res.VariantID)

	require.Equal(t, 1, h.srv.Count(http.MethodPost, "products"))
	require.Equal(t, 1, h.srv.Count(http.MethodPost, "variants"))
	for _, c := range h.srv.Calls() {
		if c.Method == http.MethodPost && c.Path == "variants" {
			variant := c.Body["variant"].(map[string]interface{})
			require.Equal(t, "10.00", variant["priceIncl"])
			require.Equal(t, "X1", variant["articleCode"])
		}
	}

	product := h.srv.Product(*res.ProductID, "nl")
	require.Equal(t, "visible", product["visibility"])
	require.Equal(t, map[string]interface{}{"resource": map[string]interface{}{"id": int64(9)}}, product["brand"])

	lookup, err := h.store.GetLookup(ctx, "X1")
	require.NoError(t, err)
	require.Equal(t, *res.ProductID, lookup.ProductID)
	require.Equal(t, *res.VariantID, *lookup.VariantID)

	run := h.lastRun(t)
	require.NotNil(t, run.Run.FinishedAt)
	require.Len(t, run.Items, 1)
	require.Equal(t, models.OpCreate, run.Items[0].Op)
	require.Equal(t, models.ItemOK, run.Items[0].Status)
	require.Equal(t, 1, run.Run.Created)
}

func TestCreateProductDuplicateGuard(t *testing.T) {
	h := newHarness(t, mustMapping(t, basicPairs...))
	pid := h.srv.AddProduct(map[string]interface{}{"visibility": "visible"}, nil)
	h.srv.AddVariant(pid, map[string]interface{}{"sku": "X1"})

	res := h.orch.CreateProduct(context.Background(), models.PIMRecord{"SKU": "X1", "Price": "10.00"}, nil)
	require.Equal(t, models.StatusConflict, res.Status)
	require.True(t, errors.Is(res.Err(), utils.ErrConflict))
	require.Equal(t, pid, *res.ProductID)
	require.Zero(t, h.srv.Count(http.MethodPost, "products"))
	require.Empty(t, h.lastRun(t).Items)
}

func TestCreateVariantRequiresProduct(t *testing.T) {
	h := newHarness(t, mustMapping(t, basicPairs...))
	res := h.orch.CreateVariant(context.Background(), models.PIMRecord{"SKU": "NEW"}, nil)
	require.Equal(t, models.StatusFailed, res.Status)
	require.ErrorIs(t, res.Err(), utils.ErrValidationMissing)
	require.Zero(t, h.srv.Mutations())
}

func TestCreateProductThenVariantUpdatesDefaultVariant(t *testing.T) {
	h := newHarness(t, mustMapping(t, basicPairs...))
	ctx := context.Background()
	rec := models.PIMRecord{"SKU": "X2", "Price": "5"}

	created := h.orch.CreateProduct(ctx, rec, nil)
	require.Equal(t, models.StatusProductCreated, created.Status)
	// удаленный каталог создает вариант по умолчанию вместе с товаром
	defaultID := h.srv.AddVariant(*created.ProductID, map[string]interface{}{"title": "Standaard"})

	res := h.orch.CreateVariant(ctx, rec, nil)
	require.Equal(t, models.StatusVariantCreated, res.Status)
	require.Equal(t, defaultID, *res.VariantID)
	require.Zero(t, h.srv.Count(http.MethodPost, "variants"))

	v := h.srv.Variant(defaultID)
	require.Equal(t, "X2", v["sku"])
	require.Equal(t, "Standaard", v["title"])
	require.Equal(t, "5", v["priceIncl"])
}

func TestCreateProductLocales(t *testing.T) {
	m := mustMapping(t,
		[2]string{"SKU", "Variant: sku"},
		[2]string{"Titel", "Product: title (NL)"},
		[2]string{"Title", "Product: title (EN)"},
	)
	h := newHarness(t, m, "nl", "de", "en")

	res := h.orch.CreateProduct(context.Background(), models.PIMRecord{"SKU": "L1", "Titel": "Fiets", "Title": "Bike"}, nil)
	require.NoError(t, res.Err())

	require.Equal(t, "Fiets", h.srv.Product(*res.ProductID, "nl")["title"])
	require.Equal(t, "Bike", h.srv.Product(*res.ProductID, "en")["title"])
	// для немецкой локали маппинга нет, текст очищается
	require.Equal(t, "", h.srv.Product(*res.ProductID, "de")["title"])
}

func TestUpdateExistingIsIdempotent(t *testing.T) {
	m := mustMapping(t,
		[2]string{"SKU", "Variant: sku"},
		[2]string{"Price", "Variant: priceIncl"},
		[2]string{"Title", "Product: title"},
	)
	h := newHarness(t, m)
	ctx := context.Background()
	pid := h.srv.AddProduct(nil, map[string]map[string]interface{}{"nl": {"title": "Oud"}})
	vid := h.srv.AddVariant(pid, map[string]interface{}{"sku": "U1", "priceIncl": 12.9})
	rec := models.PIMRecord{"SKU": "U1", "Price": "12.90", "Title": "Nieuw"}

	compared, err := h.orch.CompareBatch(ctx, []models.PIMRecord{rec}, nil)
	require.NoError(t, err)
	require.Len(t, compared, 1)
	require.Equal(t, models.StatusDifferent, compared[0].Status)
	require.Len(t, compared[0].Differences, 1)
	require.Equal(t, "product.title", compared[0].Differences[0].Key)

	res := h.orch.UpdateExisting(ctx, rec, compared[0].Differences, compared[0].Snapshot, nil)
	require.NoError(t, res.Err())
	require.Equal(t, models.StatusUpdated, res.Status)
	require.Equal(t, vid, *res.VariantID)
	require.Equal(t, "Nieuw", h.srv.Product(pid, "nl")["title"])

	again, err := h.orch.CompareBatch(ctx, []models.PIMRecord{rec}, nil)
	require.NoError(t, err)
	require.Equal(t, models.StatusUnchanged, again[0].Status)
	require.Empty(t, again[0].Differences)

	h.srv.ResetCalls()
	res = h.orch.UpdateExisting(ctx, rec, again[0].Differences, again[0].Snapshot, nil)
	require.Equal(t, models.StatusUnchanged, res.Status)
	require.Zero(t, h.srv.Mutations())
}

func TestUpdateExistingPartialFailure(t *testing.T) {
	m := mustMapping(t,
		[2]string{"SKU", "Variant: sku"},
		[2]string{"Price", "Variant: priceIncl"},
		[2]string{"Title", "Product: title"},
	)
	h := newHarness(t, m)
	ctx := context.Background()
	pid := h.srv.AddProduct(nil, map[string]map[string]interface{}{"nl": {"title": "Oud"}})
	vid := h.srv.AddVariant(pid, map[string]interface{}{"sku": "P1", "priceIncl": "1.00"})
	rec := models.PIMRecord{"SKU": "P1", "Price": "2.00", "Title": "Nieuw"}

	compared, err := h.orch.CompareBatch(ctx, []models.PIMRecord{rec}, nil)
	require.NoError(t, err)
	require.Len(t, compared[0].Differences, 2)

	h.srv.Fail(http.MethodPut, "variants/"+itoa(vid), http.StatusBadRequest)
	res := h.orch.UpdateExisting(ctx, rec, compared[0].Differences, compared[0].Snapshot, nil)
	require.Equal(t, models.StatusPartialFailure, res.Status)
	require.ErrorIs(t, res.Err(), utils.ErrPartialApply)
	require.Contains(t, res.Details, "injected failure")
	require.Equal(t, "Nieuw", h.srv.Product(pid, "nl")["title"])

	run := h.lastRun(t)
	require.Len(t, run.Items, 1)
	require.Equal(t, models.ItemFail, run.Items[0].Status)
	require.Equal(t, 1, run.Run.Failed)
}

func TestSyncBatchAuditCompleteness(t *testing.T) {
	h := newHarness(t, mustMapping(t, basicPairs...))
	ctx := context.Background()
	pid := h.srv.AddProduct(nil, nil)
	vid := h.srv.AddVariant(pid, map[string]interface{}{"sku": "OLD", "priceIncl": "1.00"})
	h.srv.Fail(http.MethodPut, "variants/"+itoa(vid), http.StatusInternalServerError)
	_, err := h.exclusions.Exclude(ctx, "SKIP", "manual", true)
	require.NoError(t, err)

	recs := []models.PIMRecord{
		{"SKU": "N1", "Price": "3.00"},
		{"SKU": "OLD", "Price": "4.00"},
		{"SKU": "SKIP", "Price": "1.00"},
		{"SKU": "N2", "Price": "5.00"},
	}
	batch, err := h.orch.SyncBatch(ctx, recs, nil, "test")
	require.NoError(t, err)
	require.Len(t, batch.Results, 4)
	require.Equal(t, models.StatusCreated, batch.Results[0].Status)
	require.Equal(t, models.StatusFailed, batch.Results[1].Status)
	require.Equal(t, models.StatusExcluded, batch.Results[2].Status)
	require.Equal(t, models.StatusCreated, batch.Results[3].Status)

	run := batch.Run
	require.NotNil(t, run.FinishedAt)
	require.NotNil(t, run.DurationMs)
	require.Equal(t, 2, run.Created)
	require.Equal(t, 1, run.Failed)
	require.Equal(t, run.Total(), len(h.itemsOf(t, run.ID)))

	_, err = h.audit.Finish(ctx, run.ID)
	require.ErrorIs(t, err, utils.ErrRunAlreadyFinished)
}

func TestSyncBatchStopsOnCancel(t *testing.T) {
	h := newHarness(t, mustMapping(t, basicPairs...))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch, err := h.orch.SyncBatch(ctx, []models.PIMRecord{{"SKU": "C1"}}, nil, "test")
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, batch.Results)
	require.NotNil(t, batch.Run.FinishedAt)
}

func TestSyncImagesOnlyOnFilenameChange(t *testing.T) {
	m := mustMapping(t,
		[2]string{"SKU", "Variant: sku"},
		[2]string{"Images", "Product: images.resource.url"},
	)
	h := newHarness(t, m)
	ctx := context.Background()

	res := h.orch.Sync(ctx, models.PIMRecord{"SKU": "I1", "Images": "https://pim.test/a.jpg,https://pim.test/b.jpg"}, nil)
	require.NoError(t, res.Err())
	pid := *res.ProductID
	require.Len(t, h.srv.Images(pid), 2)

	h.srv.ResetCalls()
	res = h.orch.Sync(ctx, models.PIMRecord{"SKU": "I1", "Images": "https://pim.test/a.jpg?v=2, https://pim.test/b.jpg?v=2"}, nil)
	require.Equal(t, models.StatusUnchanged, res.Status)
	require.Zero(t, h.srv.Mutations())

	h.srv.ResetCalls()
	res = h.orch.Sync(ctx, models.PIMRecord{"SKU": "I1", "Images": "https://pim.test/a.jpg,https://pim.test/c.jpg"}, nil)
	require.Equal(t, models.StatusUpdated, res.Status)
	require.Equal(t, 2, h.srv.Count(http.MethodDelete, "products"))
	require.Equal(t, 2, h.srv.Count(http.MethodPost, "products"))

	tracked, err := h.store.ListImages(ctx, "I1")
	require.NoError(t, err)
	names := make([]string, 0, len(tracked))
	for _, img := range tracked {
		names = append(names, img.PIMFilename)
	}
	require.ElementsMatch(t, []string{"a.jpg", "c.jpg"}, names)
}

func TestSyncSkipsExcluded(t *testing.T) {
	h := newHarness(t, mustMapping(t, basicPairs...))
	ctx := context.Background()
	_, err := h.exclusions.Exclude(ctx, "E1", "", true)
	require.NoError(t, err)

	res := h.orch.Sync(ctx, models.PIMRecord{"SKU": "E1"}, nil)
	require.Equal(t, models.StatusExcluded, res.Status)
	require.Empty(t, h.srv.Calls())
}

func TestCompareBatchFallsBackToEAN(t *testing.T) {
	h := newHarness(t, mustMapping(t, basicPairs...))
	pid := h.srv.AddProduct(nil, nil)
	h.srv.AddVariant(pid, map[string]interface{}{"sku": "OTHER", "ean": "8710000000001", "priceIncl": "1"})

	results, err := h.orch.CompareBatch(context.Background(), []models.PIMRecord{
		{"SKU": "E2", "EAN": "8710000000001", "Price": "1"},
		{"SKU": "MISSING"},
	}, nil)
	require.NoError(t, err)
	require.True(t, results[0].Exists)
	require.Equal(t, pid, results[0].Snapshot.ProductID())
	// sku отличается, остальное совпадает
	require.Len(t, results[0].Differences, 1)
	require.Equal(t, models.StatusNotFound, results[1].Status)
	require.NotNil(t, results[1].Differences)
}

func TestAmbiguousMappingRejected(t *testing.T) {
	h := newHarness(t, mustMapping(t, basicPairs...))
	m := mustMapping(t, [2]string{"Price", "Variant: priceIncl"}, [2]string{"Prijs", "Variant: priceIncl"})

	res := h.orch.Sync(context.Background(), models.PIMRecord{"SKU": "A1"}, m)
	require.ErrorIs(t, res.Err(), utils.ErrAmbiguousMapping)
	require.Empty(t, h.srv.Calls())
}
