package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/cache"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/stretchr/testify/require"
)

func TestLookupResolveOrder(t *testing.T) {
	h := newHarness(t, mustMapping(t, basicPairs...))
	ctx := context.Background()
	c := cache.NewMemoryCache(time.Minute)
	svc := NewLookupService(h.store, h.client, c, time.Minute, logger.NewNopLogger())

	require.Nil(t, svc.Resolve(ctx, "L1"))

	pid := h.srv.AddProduct(nil, nil)
	vid := h.srv.AddVariant(pid, map[string]interface{}{"sku": "L1"})
	// вариант с похожим SKU не считается совпадением
	h.srv.AddVariant(pid, map[string]interface{}{"sku": "L10"})

	r := svc.Resolve(ctx, "L1")
	require.NotNil(t, r)
	require.Equal(t, models.SourceAPI, r.Source)
	require.Equal(t, pid, r.ProductID)
	require.Equal(t, vid, *r.VariantID)

	h.srv.ResetCalls()
	r = svc.Resolve(ctx, "L1")
	require.Equal(t, models.SourceCache, r.Source)
	require.Empty(t, h.srv.Calls())

	stored, err := h.store.GetLookup(ctx, "L1")
	require.NoError(t, err)
	require.Equal(t, pid, stored.ProductID)
}

func TestLookupSwallowsRemoteErrors(t *testing.T) {
	h := newHarness(t, mustMapping(t, basicPairs...))
	h.srv.Fail(http.MethodGet, "variants", http.StatusInternalServerError)

	require.Nil(t, h.lookup.Resolve(context.Background(), "DOWN"))
}

func TestLookupUpsertLastWriterWins(t *testing.T) {
	h := newHarness(t, mustMapping(t, basicPairs...))
	ctx := context.Background()
	first, second := int64(1), int64(2)

	require.NoError(t, h.lookup.Upsert(ctx, &models.LookupRecord{SKU: "W1", ProductID: 10, VariantID: &first}))
	require.NoError(t, h.lookup.Upsert(ctx, &models.LookupRecord{SKU: "W1", ProductID: 10, VariantID: &second}))

	r := h.lookup.Resolve(ctx, "W1")
	require.Equal(t, second, *r.VariantID)
	require.Error(t, h.lookup.Upsert(ctx, &models.LookupRecord{SKU: "W2"}))

	require.NoError(t, h.lookup.Clear(ctx))
	stored, err := h.store.GetLookup(ctx, "W1")
	require.NoError(t, err)
	require.Nil(t, stored)
}
