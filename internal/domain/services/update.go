package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/images"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/mapping"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/utils"
	"github.com/athebyme/gomarket-platform/catalog-sync/pkg/interfaces"
)

// UpdateExisting применяет расхождения к существующему товару и варианту из снимка.
// Каждое удаленное изменение выполняется независимо от остальных
func (o *Orchestrator) UpdateExisting(ctx context.Context, rec models.PIMRecord, diffs []models.DiffEntry,
	snapshot *models.RemoteSnapshot, m *mapping.Mapping) *models.SyncResult {
	sku := rec.SKU()
	m, err := o.mappingOrDefault(m)
	if err != nil {
		return failedBeforeStart(sku, err)
	}
	productID := snapshot.ProductID()
	if productID == 0 {
		return failedBeforeStart(sku, fmt.Errorf("%w: product id in remote snapshot", utils.ErrValidationMissing))
	}
	if snapshot.Variant == nil || snapshot.Variant.ID == 0 {
		return failedBeforeStart(sku, fmt.Errorf("%w: variant in remote snapshot", utils.ErrValidationMissing))
	}
	variantID := snapshot.Variant.ID

	return o.execute(ctx, sku, models.OpUpdate, "update-existing", func(ctx context.Context, st *opState) *models.SyncResult {
		res := &models.SyncResult{ProductID: &productID, VariantID: &variantID}
		return o.applyUpdate(ctx, st, res, rec, m, diffs, productID, variantID)
	})
}

// updateGroups расхождения, разложенные по удаленным вызовам
type updateGroups struct {
	variant map[string]interface{}
	shared  map[string]interface{}
	locales map[string]map[string]interface{}
	// product число расхождений товара; вызов базовой локали только при product > 0
	product int
}

func groupDiffs(diffs []models.DiffEntry, base string) *updateGroups {
	g := &updateGroups{
		variant: make(map[string]interface{}),
		shared:  make(map[string]interface{}),
		locales: make(map[string]map[string]interface{}),
	}
	for _, d := range diffs {
		f, err := mapping.ParseKey(d.Key)
		if err != nil || f.IsReference() || f.IsBrand() || f.IsSupplier() {
			continue
		}
		value := valueString(d.PIMValue)
		switch {
		case f.Namespace == mapping.NamespaceVariant:
			setPath(g.variant, f.Path, value)
			continue
		case f.Language != "" && f.Language != base:
			// пустые значения в дополнительных локалях не отправляются
			if value == "" {
				continue
			}
			if g.locales[f.Language] == nil {
				g.locales[f.Language] = make(map[string]interface{})
			}
			setPath(g.locales[f.Language], f.Path, value)
		default:
			setPath(g.shared, f.Path, value)
		}
		g.product++
	}
	return g
}

func (o *Orchestrator) applyUpdate(ctx context.Context, st *opState, res *models.SyncResult, rec models.PIMRecord,
	m *mapping.Mapping, diffs []models.DiffEntry, productID, variantID int64) *models.SyncResult {
	base := o.opts.BaseLanguage
	g := groupDiffs(diffs, base)

	if len(g.variant) > 0 {
		g.variant["articleCode"] = st.sku
		if err := st.mutation(o.catalog.UpdateVariant(ctx, variantID, g.variant)); err != nil {
			o.warnMutation(ctx, "Не удалось обновить вариант", productID, err)
		}
	}

	langs := make([]string, 0, len(g.locales))
	for lang := range g.locales {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	for _, lang := range langs {
		if err := st.mutation(o.catalog.UpdateProduct(ctx, lang, productID, g.locales[lang])); err != nil {
			o.warnMutation(ctx, "Не удалось обновить локаль товара "+lang, productID, err)
		}
	}

	if g.product > 0 {
		payload := g.shared
		if field, ok := m.BrandField(); ok {
			if id := o.referenceID(ctx, models.Brands, rec.Value(field)); id != 0 {
				payload["brand"] = id
			}
		}
		if field, ok := m.SupplierField(); ok {
			if id := o.referenceID(ctx, models.Suppliers, rec.Value(field)); id != 0 {
				payload["supplier"] = id
			}
		}
		payload["visibility"] = "visible"
		if err := st.mutation(o.catalog.UpdateProduct(ctx, base, productID, payload)); err != nil {
			o.warnMutation(ctx, "Не удалось обновить товар", productID, err)
		}
	}

	if field, ok := m.ImagesField(); ok {
		o.syncImages(ctx, st, productID, images.SplitURLs(rec[field]))
	}

	if st.attempted == 0 {
		res.Status = models.StatusUnchanged
	} else {
		res.Status = models.StatusUpdated
	}
	return res
}

func (o *Orchestrator) warnMutation(ctx context.Context, msg string, productID int64, err error) {
	o.logger.WarnWithContext(ctx, msg,
		interfaces.LogField{Key: "product_id", Value: productID},
		interfaces.LogField{Key: "error", Value: err.Error()},
	)
}

// valueString приводит значение расхождения, пришедшее из JSON, к строке
func valueString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
