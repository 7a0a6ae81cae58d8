package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/images"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/utils"
)

// ErrImagesDisabled сверка изображений не настроена
var ErrImagesDisabled = errors.New("image reconciler is not configured")

// SyncImages сверяет изображения товара отдельно от синхронизации полей.
// При productID == 0 товар находится по SKU; неизвестный SKU дает ErrNotFound.
// Без SKU изображения отслеживаются под ключом product-<id>
func (o *Orchestrator) SyncImages(ctx context.Context, sku string, productID int64, urls []string) *models.SyncResult {
	if o.images == nil {
		return failedBeforeStart(sku, ErrImagesDisabled)
	}
	if sku == "" && productID > 0 {
		sku = fmt.Sprintf("product-%d", productID)
	}

	return o.execute(ctx, sku, models.OpUpdate, "sync-images", func(ctx context.Context, st *opState) *models.SyncResult {
		res := &models.SyncResult{}
		id := productID
		if id == 0 {
			r := o.lookup.Resolve(ctx, sku)
			if r == nil {
				return res.Fail(models.StatusFailed,
					fmt.Errorf("%w: product id not found for sku %s", utils.ErrNotFound, sku))
			}
			id = r.ProductID
		}
		res.ProductID = &id

		report := o.syncImages(ctx, st, id, urls)
		if report != nil && report.Result == images.ResultReplaced {
			res.Status = models.StatusUpdated
			return res
		}
		res.Status = models.StatusUnchanged
		return res
	})
}
