package services

import (
	"context"
	"fmt"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/images"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/mapping"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/utils"
	"github.com/athebyme/gomarket-platform/catalog-sync/pkg/interfaces"
)

// CreateProduct создает товар по записи PIM (без варианта).
// Если SKU уже известен удаленному каталогу, возвращается статус conflict без вызова создания
func (o *Orchestrator) CreateProduct(ctx context.Context, rec models.PIMRecord, m *mapping.Mapping) *models.SyncResult {
	sku := rec.SKU()
	m, err := o.mappingOrDefault(m)
	if err != nil {
		return failedBeforeStart(sku, err)
	}

	return o.execute(ctx, sku, models.OpCreate, "create-product", func(ctx context.Context, st *opState) *models.SyncResult {
		res := &models.SyncResult{}
		if r := o.lookup.Resolve(ctx, sku); r != nil {
			return failResult(res, conflictFrom(sku, r))
		}

		productID, err := o.createProduct(ctx, st, rec, m, true)
		if err != nil {
			return failResult(res, err)
		}
		res.ProductID = &productID
		res.Status = models.StatusProductCreated
		return res
	})
}

// CreateVariant создает или обновляет вариант по умолчанию для уже созданного товара
func (o *Orchestrator) CreateVariant(ctx context.Context, rec models.PIMRecord, m *mapping.Mapping) *models.SyncResult {
	sku := rec.SKU()
	m, err := o.mappingOrDefault(m)
	if err != nil {
		return failedBeforeStart(sku, err)
	}

	return o.execute(ctx, sku, models.OpCreate, "create-variant", func(ctx context.Context, st *opState) *models.SyncResult {
		res := &models.SyncResult{}
		r := o.lookup.Resolve(ctx, sku)
		if r == nil {
			return res.Fail(models.StatusFailed,
				fmt.Errorf("%w: product id not found for sku %s, create product first", utils.ErrValidationMissing, sku))
		}
		res.ProductID = &r.ProductID

		variantID, err := o.createVariant(ctx, st, rec, m, r.ProductID)
		if err != nil {
			return failResult(res, err)
		}
		res.VariantID = &variantID
		res.Status = models.StatusVariantCreated
		return res
	})
}

// createProduct: создание в базовой локали, обновления остальных локалей,
// принудительная видимость отдельным вызовом, изображения.
// remember=false откладывает запись в lookup до создания варианта
func (o *Orchestrator) createProduct(ctx context.Context, st *opState, rec models.PIMRecord, m *mapping.Mapping, remember bool) (int64, error) {
	sku := st.sku
	base := o.opts.BaseLanguage
	plan := o.planProduct(ctx, rec, m)

	created, err := o.catalog.CreateProduct(ctx, base, plan.basePayload(base))
	if st.mutation(err) != nil {
		// создание могло упасть из-за уже существующего SKU
		if r := o.lookup.Resolve(ctx, sku); r != nil {
			return 0, conflictFrom(sku, r)
		}
		return 0, fmt.Errorf("failed to create product: %w", err)
	}
	productID := created.ID
	o.logger.InfoWithContext(ctx, "Товар создан",
		interfaces.LogField{Key: "product_id", Value: productID},
		interfaces.LogField{Key: "brand_id", Value: plan.brandID},
		interfaces.LogField{Key: "supplier_id", Value: plan.supplierID},
	)

	for _, lang := range o.languages(m) {
		if lang == base {
			continue
		}
		payload := plan.localePayload(lang)
		if len(payload) == 0 {
			continue
		}
		if err := st.mutation(o.catalog.UpdateProduct(ctx, lang, productID, payload)); err != nil {
			o.logger.WarnWithContext(ctx, "Не удалось обновить локаль товара",
				interfaces.LogField{Key: "product_id", Value: productID},
				interfaces.LogField{Key: "lang", Value: lang},
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
		}
	}

	// удаленный каталог может сбросить видимость при создании
	visibility := map[string]interface{}{"visibility": "visible"}
	if err := st.mutation(o.catalog.UpdateProduct(ctx, base, productID, visibility)); err != nil {
		o.logger.WarnWithContext(ctx, "Не удалось установить видимость товара",
			interfaces.LogField{Key: "product_id", Value: productID},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
	}

	o.syncImages(ctx, st, productID, plan.images)

	if remember {
		o.remember(ctx, &models.LookupRecord{SKU: sku, ProductID: productID})
	}
	return productID, nil
}

// createVariant обновляет первый существующий вариант товара или создает новый
func (o *Orchestrator) createVariant(ctx context.Context, st *opState, rec models.PIMRecord, m *mapping.Mapping, productID int64) (int64, error) {
	sku := st.sku
	existing, err := o.catalog.ListProductVariants(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("failed to list product variants: %w", err)
	}

	var variantID int64
	if len(existing) > 0 {
		current := existing[0]
		payload := variantPayload(sku, rec, m, current.Title)
		if err := st.mutation(o.catalog.UpdateVariant(ctx, current.ID, payload)); err != nil {
			return 0, fmt.Errorf("failed to update default variant %d: %w", current.ID, err)
		}
		variantID = current.ID
	} else {
		payload := variantPayload(sku, rec, m, "")
		payload["product"] = productID
		created, err := o.catalog.CreateVariant(ctx, payload)
		if st.mutation(err) != nil {
			return 0, fmt.Errorf("failed to create variant: %w", err)
		}
		variantID = created.ID
	}

	o.logger.InfoWithContext(ctx, "Вариант синхронизирован",
		interfaces.LogField{Key: "product_id", Value: productID},
		interfaces.LogField{Key: "variant_id", Value: variantID},
		interfaces.LogField{Key: "updated_existing", Value: len(existing) > 0},
	)
	vid := variantID
	o.remember(ctx, &models.LookupRecord{SKU: sku, ProductID: productID, VariantID: &vid})
	return variantID, nil
}

func (o *Orchestrator) remember(ctx context.Context, rec *models.LookupRecord) {
	if err := o.lookup.Upsert(ctx, rec); err != nil {
		o.logger.ErrorWithContext(ctx, "Не удалось обновить variant_lookup",
			interfaces.LogField{Key: "product_id", Value: rec.ProductID},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
	}
}

// syncImages сверка изображений; полная замена считается удаленным изменением
func (o *Orchestrator) syncImages(ctx context.Context, st *opState, productID int64, urls []string) *images.Report {
	if o.images == nil || len(urls) == 0 {
		return nil
	}
	report, err := o.images.Reconcile(ctx, st.sku, productID, urls)
	if err != nil {
		st.mutation(fmt.Errorf("images: %w", err))
		return report
	}
	if report.Result == images.ResultReplaced {
		st.mutation(nil)
	}
	return report
}
