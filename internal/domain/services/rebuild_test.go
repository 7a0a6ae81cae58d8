package services

import (
	"context"
	"testing"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/stretchr/testify/require"
)

func TestRebuildPagesThroughCatalog(t *testing.T) {
	h := newHarness(t, mustMapping(t, basicPairs...))
	ctx := context.Background()
	pid := h.srv.AddProduct(nil, nil)
	for _, sku := range []string{"R1", "R2", "R3"} {
		h.srv.AddVariant(pid, map[string]interface{}{"sku": sku})
	}
	h.srv.AddVariant(pid, map[string]interface{}{"title": "zonder sku"})
	h.srv.AddReference("brands", 1, "Acme")
	h.srv.AddReference("brands", 2, "Globex")
	h.srv.AddReference("suppliers", 7, "Initech")
	require.NoError(t, h.lookup.Upsert(ctx, &models.LookupRecord{SKU: "STALE", ProductID: 1}))

	svc := NewRebuildService(h.client, h.lookup, h.store, 2, 0, logger.NewNopLogger())
	stats, err := svc.Rebuild(ctx, true)
	require.NoError(t, err)
	require.Equal(t, &RebuildStats{Variants: 3, Brands: 2, Suppliers: 1}, stats)

	stale, err := h.store.GetLookup(ctx, "STALE")
	require.NoError(t, err)
	require.Nil(t, stale)
	r2, err := h.store.GetLookup(ctx, "R2")
	require.NoError(t, err)
	require.Equal(t, pid, r2.ProductID)

	id, ok, err := h.store.FindReferenceID(ctx, models.Brands, "globex")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(2), id)
}

func TestDiscoverFields(t *testing.T) {
	h := newHarness(t, mustMapping(t, basicPairs...), "nl", "en")
	pid := h.srv.AddProduct(
		map[string]interface{}{"visibility": "visible", "brand": map[string]interface{}{"resource": map[string]interface{}{"id": 1}}},
		map[string]map[string]interface{}{"nl": {"title": "Fiets"}, "en": {"title": "Bike"}},
	)
	h.srv.AddVariant(pid, map[string]interface{}{"sku": "F1", "priceIncl": 9.5})

	fields, err := h.orch.DiscoverFields(context.Background())
	require.NoError(t, err)

	keys := make(map[string]FieldInfo)
	for _, f := range fields {
		keys[f.Key] = f
	}
	require.Contains(t, keys, "product.title (en)")
	require.Equal(t, "Product: title (EN)", keys["product.title (en)"].Label)
	require.Contains(t, keys, "product.visibility (nl)")
	require.Contains(t, keys, "product.brand.title")
	require.Contains(t, keys, "variant.priceIncl")
	require.Equal(t, "variant", keys["variant.sku"].Category)
	require.NotContains(t, keys, "variant.id")
	require.NotContains(t, keys, "product.images.resource.url")
}
