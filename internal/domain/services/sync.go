package services

import (
	"context"
	"fmt"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/mapping"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/metrics"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/utils"
	"github.com/athebyme/gomarket-platform/catalog-sync/pkg/interfaces"
)

// BatchResult итог пакетной синхронизации
type BatchResult struct {
	Run     *models.ImportRun    `json:"run"`
	Results []*models.SyncResult `json:"results"`
}

// Sync полный цикл для одной записи PIM: разрешение SKU, создание или обновление, изображения
func (o *Orchestrator) Sync(ctx context.Context, rec models.PIMRecord, m *mapping.Mapping) *models.SyncResult {
	sku := rec.SKU()
	m, err := o.mappingOrDefault(m)
	if err != nil {
		return failedBeforeStart(sku, err)
	}
	if sku != "" && o.exclusions != nil && o.exclusions.IsExcluded(ctx, sku) {
		metrics.SyncOutcomes.WithLabelValues(models.OpUpdate, models.StatusExcluded).Inc()
		return &models.SyncResult{SKU: sku, Status: models.StatusExcluded}
	}

	return o.execute(ctx, sku, models.OpUpdate, "sync", func(ctx context.Context, st *opState) *models.SyncResult {
		res := &models.SyncResult{}
		r := o.lookup.Resolve(ctx, sku)
		if r == nil {
			// повторная проверка перед созданием
			if again := o.lookup.Resolve(ctx, sku); again != nil {
				return failResult(res, conflictFrom(sku, again))
			}
			st.op = models.OpCreate
			return o.createFull(ctx, st, res, rec, m)
		}

		res.ProductID = &r.ProductID
		if r.VariantID == nil {
			st.op = models.OpCreate
			variantID, err := o.createVariant(ctx, st, rec, m, r.ProductID)
			if err != nil {
				return failResult(res, err)
			}
			res.VariantID = &variantID
			res.Status = models.StatusVariantCreated
			return res
		}

		res.VariantID = r.VariantID
		snapshot, err := o.Snapshot(ctx, r.ProductID, r.VariantID, m)
		if err != nil {
			return failResult(res, fmt.Errorf("failed to load remote snapshot: %w", err))
		}
		diffs := o.diff.Compare(rec, snapshot, m)
		metrics.DiffSize.Observe(float64(len(diffs)))
		o.logger.DebugWithContext(ctx, "Расхождения вычислены",
			interfaces.LogField{Key: "product_id", Value: r.ProductID},
			interfaces.LogField{Key: "differences", Value: len(diffs)},
		)
		return o.applyUpdate(ctx, st, res, rec, m, diffs, r.ProductID, *r.VariantID)
	})
}

// createFull создает товар и вариант. Если вариант не создан, в lookup остается только товар
func (o *Orchestrator) createFull(ctx context.Context, st *opState, res *models.SyncResult, rec models.PIMRecord, m *mapping.Mapping) *models.SyncResult {
	productID, err := o.createProduct(ctx, st, rec, m, false)
	if err != nil {
		return failResult(res, err)
	}
	res.ProductID = &productID

	variantID, err := o.createVariant(ctx, st, rec, m, productID)
	if err != nil {
		o.remember(ctx, &models.LookupRecord{SKU: st.sku, ProductID: productID})
		res.Details = details(err)
		return res.Fail(models.StatusPartialFailure, fmt.Errorf("%w: %w", utils.ErrPartialApply, err))
	}
	res.VariantID = &variantID
	res.Status = models.StatusCreated
	return res
}

// SyncBatch синхронизирует записи последовательно в одном прогоне импорта.
// Прогон завершается всегда, в том числе при отмене контекста
func (o *Orchestrator) SyncBatch(ctx context.Context, recs []models.PIMRecord, m *mapping.Mapping, triggeredBy string) (*BatchResult, error) {
	m, err := o.mappingOrDefault(m)
	if err != nil {
		return nil, err
	}
	run, err := o.audit.Start(ctx, triggeredBy)
	if err != nil {
		return nil, fmt.Errorf("failed to start import run: %w", err)
	}
	runCtx := WithRun(ctx, run.ID)
	o.logger.InfoWithContext(runCtx, "Пакетная синхронизация запущена",
		interfaces.LogField{Key: "records", Value: len(recs)})

	batch := &BatchResult{Run: run, Results: make([]*models.SyncResult, 0, len(recs))}
	var stopErr error
	for i, rec := range recs {
		if i > 0 {
			if stopErr = o.pause(runCtx, o.opts.ItemDelay); stopErr != nil {
				break
			}
		} else if stopErr = runCtx.Err(); stopErr != nil {
			break
		}
		batch.Results = append(batch.Results, o.Sync(runCtx, rec, m))
	}

	finished, err := o.audit.Finish(context.WithoutCancel(runCtx), run.ID)
	if err != nil {
		o.logger.ErrorWithContext(runCtx, "Не удалось завершить прогон импорта",
			interfaces.LogField{Key: "error", Value: err.Error()})
	} else {
		batch.Run = finished
	}

	if stopErr != nil {
		o.logger.WarnWithContext(runCtx, "Пакетная синхронизация прервана",
			interfaces.LogField{Key: "processed", Value: len(batch.Results)},
			interfaces.LogField{Key: "error", Value: stopErr.Error()},
		)
		return batch, stopErr
	}
	o.logger.InfoWithContext(runCtx, "Пакетная синхронизация завершена",
		interfaces.LogField{Key: "created", Value: batch.Run.Created},
		interfaces.LogField{Key: "updated", Value: batch.Run.Updated},
		interfaces.LogField{Key: "failed", Value: batch.Run.Failed},
	)
	return batch, nil
}
