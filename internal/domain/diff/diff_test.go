package diff

import (
	"testing"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/mapping"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/stretchr/testify/require"
)

func priceSnapshot(price string) *models.RemoteSnapshot {
	return &models.RemoteSnapshot{
		Variant: &models.RemoteVariant{ID: 1, ProductID: 2, Raw: []byte(`{"sku": "X1", "priceIncl": ` + price + `}`)},
		Products: map[string]*models.RemoteProduct{
			"nl": {ID: 2, Raw: []byte(`{"title": "Fiets", "content": "<p>Mooi &amp; snel</p>", "brand": {"resource": {"id": 3}}}`)},
			"en": {ID: 2, Raw: []byte(`{"title": {"nl": "Fiets", "en": "Bike"}}`)},
		},
		BrandName: "Other",
	}
}

func testMapping(t *testing.T) *mapping.Mapping {
	t.Helper()
	m, err := mapping.FromPairs([][2]string{
		{"SKU", "Variant: sku"},
		{"Price", "Variant: priceIncl"},
		{"Brand", "Product: brand.title"},
		{"Content", "Product: content (NL)"},
		{"TitleEN", "Product: title (EN)"},
	})
	require.NoError(t, err)
	return m
}

func TestCompareNumericTolerance(t *testing.T) {
	e := NewEngine()
	m := testMapping(t)
	rec := models.PIMRecord{"SKU": "X1", "Price": "19.90", "Brand": "Acme", "Content": "Mooi & snel", "TitleEN": "Bike"}

	require.Empty(t, e.Compare(rec, priceSnapshot("19.9"), m))

	diffs := e.Compare(rec, priceSnapshot("20.00"), m)
	require.Len(t, diffs, 1)
	require.Equal(t, "variant.priceIncl", diffs[0].Key)
	require.Equal(t, "19.90", diffs[0].PIMValue)
	require.Equal(t, "20.00", diffs[0].RemoteValue)
	require.Equal(t, "Price", diffs[0].SourceField)
}

func TestCompareExcludesReferenceFields(t *testing.T) {
	e := NewEngine()
	rec := models.PIMRecord{"SKU": "X1", "Price": "19.9", "Brand": "Completely different", "Content": "Mooi & snel", "TitleEN": "Bike"}
	require.Empty(t, e.Compare(rec, priceSnapshot("19.9"), testMapping(t)))
}

func TestCompareLanguageMissingIsDifference(t *testing.T) {
	e := NewEngine()
	m, err := mapping.FromPairs([][2]string{{"TitleDE", "Product: title (DE)"}})
	require.NoError(t, err)

	diffs := e.Compare(models.PIMRecord{"TitleDE": "Fiets"}, priceSnapshot("1"), m)
	require.Len(t, diffs, 1)
	require.Equal(t, "", diffs[0].RemoteValue)
}

func TestEqual(t *testing.T) {
	e := NewEngine()
	require.True(t, e.Equal("  ", ""))
	require.True(t, e.Equal("29.90", "29.9"))
	require.True(t, e.Equal("10", "10.000"))
	require.False(t, e.Equal("10", "10 EUR"))
	require.True(t, e.Equal("<b>Bold</b> text", "Bold text"))
	require.True(t, e.Equal("Tom &amp; Jerry", "Tom & Jerry"))
	require.False(t, e.Equal("a", "b"))
	require.False(t, e.Equal("", "0"))
	require.True(t, e.Equal("NaN", "NaN"))
	require.True(t, e.Equal("nan", "nan"))
	require.False(t, e.Equal("NaN", "nan"))
	require.True(t, e.Equal("Inf", "Inf"))
}
