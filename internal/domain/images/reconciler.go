// Package images сверяет набор изображений товара с PIM полной заменой
package images

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/ports"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/metrics"
	"github.com/athebyme/gomarket-platform/catalog-sync/pkg/interfaces"
)

// Результат прохода сверки
const (
	ResultSkipped   = "skipped"
	ResultUnchanged = "unchanged"
	ResultReplaced  = "replaced"
)

// Report итог сверки изображений одного SKU
type Report struct {
	Result   string
	Deleted  int
	Uploaded int
	Failed   []string
}

// Reconciler выполняет сверку изображений
type Reconciler struct {
	catalog    ports.ImageCatalog
	tracking   ports.ImageTrackingRepository
	downloader ports.ImageDownloader
	logger     interfaces.LoggerPort
	now        func() time.Time
}

// NewReconciler создает сверку изображений
func NewReconciler(catalog ports.ImageCatalog, tracking ports.ImageTrackingRepository,
	downloader ports.ImageDownloader, logger interfaces.LoggerPort) *Reconciler {
	return &Reconciler{
		catalog:    catalog,
		tracking:   tracking,
		downloader: downloader,
		logger:     logger,
		now:        time.Now,
	}
}

// Reconcile приводит изображения товара к списку urls.
// Если набор имен файлов совпадает с отслеживаемым, удаленных вызовов нет.
// Иначе все изображения товара удаляются и загружаются заново; ошибки
// отдельных изображений попадают в Report.Failed и не прерывают проход
func (r *Reconciler) Reconcile(ctx context.Context, sku string, productID int64, urls []string) (*Report, error) {
	normalized := Normalize(urls)
	if len(normalized) == 0 {
		metrics.ImagePasses.WithLabelValues(ResultSkipped).Inc()
		return &Report{Result: ResultSkipped}, nil
	}

	tracked, err := r.tracking.ListImages(ctx, sku)
	if err != nil {
		return nil, fmt.Errorf("failed to load tracked images: %w", err)
	}

	current := make(map[string]bool, len(normalized))
	for _, u := range normalized {
		current[Filename(u)] = true
	}
	trackedNames := make(map[string]bool, len(tracked))
	for _, t := range tracked {
		trackedNames[t.PIMFilename] = true
	}

	if len(tracked) > 0 && sameSet(current, trackedNames) {
		r.logger.DebugWithContext(ctx, "Изображения не изменились",
			interfaces.LogField{Key: "product_id", Value: productID},
			interfaces.LogField{Key: "count", Value: len(tracked)},
		)
		metrics.ImagePasses.WithLabelValues(ResultUnchanged).Inc()
		return &Report{Result: ResultUnchanged}, nil
	}

	r.logger.InfoWithContext(ctx, "Изображения изменились, выполняется полная замена",
		interfaces.LogField{Key: "product_id", Value: productID},
		interfaces.LogField{Key: "pim_count", Value: len(normalized)},
		interfaces.LogField{Key: "tracked_count", Value: len(tracked)},
	)

	report := &Report{Result: ResultReplaced}
	r.deleteRemote(ctx, productID, report)

	if err := r.tracking.DeleteImages(ctx, sku); err != nil {
		return report, fmt.Errorf("failed to clear image tracking: %w", err)
	}

	for _, u := range normalized {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := r.upload(ctx, sku, productID, u); err != nil {
			r.logger.WarnWithContext(ctx, "Изображение пропущено",
				interfaces.LogField{Key: "product_id", Value: productID},
				interfaces.LogField{Key: "url", Value: u},
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
			report.Failed = append(report.Failed, fmt.Sprintf("%s: %v", u, err))
			continue
		}
		report.Uploaded++
	}

	metrics.ImagePasses.WithLabelValues(ResultReplaced).Inc()
	r.logger.InfoWithContext(ctx, "Синхронизация изображений завершена",
		interfaces.LogField{Key: "product_id", Value: productID},
		interfaces.LogField{Key: "deleted", Value: report.Deleted},
		interfaces.LogField{Key: "uploaded", Value: report.Uploaded},
		interfaces.LogField{Key: "skipped", Value: len(report.Failed)},
	)
	return report, nil
}

func (r *Reconciler) deleteRemote(ctx context.Context, productID int64, report *Report) {
	existing, err := r.catalog.ListProductImages(ctx, productID)
	if err != nil {
		r.logger.WarnWithContext(ctx, "Не удалось получить изображения товара",
			interfaces.LogField{Key: "product_id", Value: productID},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
		return
	}

	for _, img := range existing {
		if img.ID == 0 {
			continue
		}
		if err := r.catalog.DeleteProductImage(ctx, productID, img.ID); err != nil {
			metrics.ImageOperations.WithLabelValues("delete", "error").Inc()
			r.logger.WarnWithContext(ctx, "Не удалось удалить изображение",
				interfaces.LogField{Key: "product_id", Value: productID},
				interfaces.LogField{Key: "image_id", Value: img.ID},
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
			continue
		}
		metrics.ImageOperations.WithLabelValues("delete", "success").Inc()
		report.Deleted++
	}
}

func (r *Reconciler) upload(ctx context.Context, sku string, productID int64, url string) error {
	data, err := r.downloader.Download(ctx, url)
	if err != nil {
		metrics.ImageOperations.WithLabelValues("download", "error").Inc()
		return fmt.Errorf("download: %w", err)
	}

	filename := Filename(url)
	img, err := r.catalog.UploadProductImage(ctx, productID, filename, base64.StdEncoding.EncodeToString(data))
	if err != nil {
		metrics.ImageOperations.WithLabelValues("upload", "error").Inc()
		return fmt.Errorf("upload: %w", err)
	}
	metrics.ImageOperations.WithLabelValues("upload", "success").Inc()

	rec := &models.ImageTrackingRecord{
		SKU:            sku,
		ProductID:      productID,
		PIMImageURL:    url,
		PIMFilename:    filename,
		RemoteImageURL: img.Src,
		RemoteImageID:  img.ID,
		CreatedAt:      r.now().UTC(),
	}
	if err := r.tracking.SaveImage(ctx, rec); err != nil {
		return fmt.Errorf("track: %w", err)
	}
	return nil
}
