package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/mapping"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/metrics"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/utils"
	"github.com/athebyme/gomarket-platform/catalog-sync/pkg/interfaces"
)

// CompareBatch сравнивает записи PIM с удаленным каталогом без изменений.
// При отмене контекста возвращаются уже полученные результаты и ошибка контекста
func (o *Orchestrator) CompareBatch(ctx context.Context, recs []models.PIMRecord, m *mapping.Mapping) ([]*models.CompareResult, error) {
	m, err := o.mappingOrDefault(m)
	if err != nil {
		return nil, err
	}
	results := make([]*models.CompareResult, 0, len(recs))
	for i, rec := range recs {
		if i > 0 {
			if err := o.pause(ctx, o.opts.ItemDelay); err != nil {
				return results, err
			}
		}
		results = append(results, o.compareOne(ctx, rec, m))
	}
	return results, nil
}

func (o *Orchestrator) compareOne(ctx context.Context, rec models.PIMRecord, m *mapping.Mapping) *models.CompareResult {
	sku := rec.SKU()
	res := &models.CompareResult{SKU: sku, Differences: []models.DiffEntry{}}
	if sku == "" {
		res.Status = models.StatusFailed
		res.Error = fmt.Errorf("%w: sku", utils.ErrValidationMissing).Error()
		return res
	}
	ctx = withSKU(ctx, sku)
	if o.exclusions != nil && o.exclusions.IsExcluded(ctx, sku) {
		res.Status = models.StatusExcluded
		return res
	}

	productID, variantID, err := o.locate(ctx, rec)
	if err != nil {
		res.Status = models.StatusFailed
		res.Error = err.Error()
		return res
	}
	if productID == 0 {
		res.Status = models.StatusNotFound
		return res
	}
	res.Exists = true

	snapshot, err := o.Snapshot(ctx, productID, variantID, m)
	if err != nil {
		o.logger.WarnWithContext(ctx, "Не удалось получить снимок товара",
			interfaces.LogField{Key: "product_id", Value: productID},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
		res.Status = models.StatusFailed
		res.Error = err.Error()
		return res
	}
	res.Snapshot = snapshot
	res.Differences = o.diff.Compare(rec, snapshot, m)
	metrics.DiffSize.Observe(float64(len(res.Differences)))
	if len(res.Differences) > 0 {
		res.Status = models.StatusDifferent
	} else {
		res.Status = models.StatusUnchanged
	}
	return res
}

// locate находит товар по SKU, а при промахе по точному совпадению EAN
func (o *Orchestrator) locate(ctx context.Context, rec models.PIMRecord) (int64, *int64, error) {
	if r := o.lookup.Resolve(ctx, rec.SKU()); r != nil {
		return r.ProductID, r.VariantID, nil
	}
	ean := rec.EAN()
	if ean == "" {
		return 0, nil, nil
	}
	variants, err := o.catalog.FindVariantsByEAN(ctx, ean)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return 0, nil, nil
		}
		return 0, nil, fmt.Errorf("failed to find variant by ean: %w", err)
	}
	for _, v := range variants {
		if strings.TrimSpace(v.EAN) == ean && v.ProductID != 0 {
			id := v.ID
			return v.ProductID, &id, nil
		}
	}
	return 0, nil, nil
}

// Snapshot загружает вариант, товар в каждой локали и имена бренда и поставщика.
// Ошибка базовой локали фатальна, остальные локали пропускаются
func (o *Orchestrator) Snapshot(ctx context.Context, productID int64, variantID *int64, m *mapping.Mapping) (*models.RemoteSnapshot, error) {
	base := o.opts.BaseLanguage
	snap := &models.RemoteSnapshot{
		Products:     make(map[string]*models.RemoteProduct),
		BaseLanguage: base,
	}

	if variantID != nil {
		v, err := o.catalog.GetVariant(ctx, *variantID)
		if err != nil {
			return nil, fmt.Errorf("failed to get variant %d: %w", *variantID, err)
		}
		snap.Variant = v
	} else {
		variants, err := o.catalog.ListProductVariants(ctx, productID)
		if err != nil {
			return nil, fmt.Errorf("failed to list product variants: %w", err)
		}
		if len(variants) > 0 {
			snap.Variant = variants[0]
		}
	}

	for _, lang := range o.languages(m) {
		if err := o.pause(ctx, o.opts.ListDelay); err != nil {
			return nil, err
		}
		p, err := o.catalog.GetProduct(ctx, lang, productID)
		if err != nil {
			if lang == base {
				return nil, fmt.Errorf("failed to get product %d: %w", productID, err)
			}
			o.logger.WarnWithContext(ctx, "Локаль товара недоступна, пропускаем",
				interfaces.LogField{Key: "product_id", Value: productID},
				interfaces.LogField{Key: "lang", Value: lang},
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
			continue
		}
		snap.Products[lang] = p
	}

	product := snap.BaseProduct()
	snap.BrandName = o.referenceName(ctx, models.Brands, product.Get("brand.resource.id").Int())
	snap.SupplierName = o.referenceName(ctx, models.Suppliers, product.Get("supplier.resource.id").Int())
	return snap, nil
}

// referenceName имя бренда или поставщика: справочник, затем удаленный API
func (o *Orchestrator) referenceName(ctx context.Context, kind models.DirectoryKind, id int64) string {
	if id == 0 {
		return ""
	}
	if o.directory != nil {
		name, ok, err := o.directory.FindReferenceName(ctx, kind, id)
		if err == nil && ok {
			return name
		}
	}
	ref, err := o.catalog.GetReference(ctx, kind, id)
	if err != nil {
		o.logger.WarnWithContext(ctx, "Не удалось получить элемент справочника",
			interfaces.LogField{Key: "kind", Value: string(kind)},
			interfaces.LogField{Key: "id", Value: id},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
		return ""
	}
	if o.directory != nil && ref.Title != "" {
		if err := o.directory.UpsertReference(ctx, kind, *ref); err != nil {
			o.logger.WarnWithContext(ctx, "Не удалось сохранить элемент справочника",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}
	return ref.Title
}
