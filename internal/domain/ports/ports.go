package ports

import (
	"context"
	"time"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/athebyme/gomarket-platform/catalog-sync/pkg/interfaces"
)

// LookupRepository таблица variant_lookup. Отсутствие записи - nil, nil
type LookupRepository interface {
	GetLookup(ctx context.Context, sku string) (*models.LookupRecord, error)
	UpsertLookup(ctx context.Context, rec *models.LookupRecord) error
	ClearLookup(ctx context.Context) error
}

// ImageTrackingRepository таблица image_tracking, уникальность (sku, pim_filename)
type ImageTrackingRepository interface {
	ListImages(ctx context.Context, sku string) ([]*models.ImageTrackingRecord, error)
	DeleteImages(ctx context.Context, sku string) error
	SaveImage(ctx context.Context, rec *models.ImageTrackingRecord) error
}

// AuditRepository таблицы import_runs и import_items
type AuditRepository interface {
	CreateRun(ctx context.Context, run *models.ImportRun) error
	// AppendItem атомарно добавляет элемент и увеличивает счетчик прогона
	AppendItem(ctx context.Context, item *models.ImportItem) error
	// FinishRun проставляет finished_at и duration_ms один раз,
	// повторный вызов возвращает utils.ErrRunAlreadyFinished
	FinishRun(ctx context.Context, runID string, finishedAt time.Time) (*models.ImportRun, error)
	GetRun(ctx context.Context, runID string) (*models.ImportRun, error)
	ListRecentRuns(ctx context.Context, limit int) ([]*models.ImportRun, error)
	ListItems(ctx context.Context, runID string, offset, limit int) ([]*models.ImportItem, int64, error)
}

// DirectoryRepository справочники brands и suppliers (id -> name)
type DirectoryRepository interface {
	UpsertReference(ctx context.Context, kind models.DirectoryKind, ref models.Reference) error
	// FindReferenceID ищет id по имени без учета регистра
	FindReferenceID(ctx context.Context, kind models.DirectoryKind, name string) (int64, bool, error)
	FindReferenceName(ctx context.Context, kind models.DirectoryKind, id int64) (string, bool, error)
	ClearDirectory(ctx context.Context, kind models.DirectoryKind) error
}

// ExclusionRepository таблица exclusions
type ExclusionRepository interface {
	ListExclusions(ctx context.Context) ([]*models.Exclusion, error)
	SaveExclusion(ctx context.Context, e *models.Exclusion) error
	DeleteExclusion(ctx context.Context, sku string) error
	IsExcluded(ctx context.Context, sku string) (bool, error)
}

// Store объединяет все репозитории одного бэкенда хранения
type Store interface {
	interfaces.StoragePort
	LookupRepository
	ImageTrackingRepository
	AuditRepository
	DirectoryRepository
	ExclusionRepository
}

// VariantCatalog операции над вариантами удаленного каталога
type VariantCatalog interface {
	FindVariantsBySKU(ctx context.Context, sku string) ([]*models.RemoteVariant, error)
	FindVariantsByEAN(ctx context.Context, ean string) ([]*models.RemoteVariant, error)
	ListVariants(ctx context.Context, page, limit int) ([]*models.RemoteVariant, error)
	ListProductVariants(ctx context.Context, productID int64) ([]*models.RemoteVariant, error)
	GetVariant(ctx context.Context, variantID int64) (*models.RemoteVariant, error)
	CreateVariant(ctx context.Context, payload map[string]interface{}) (*models.RemoteVariant, error)
	UpdateVariant(ctx context.Context, variantID int64, payload map[string]interface{}) error
}

// ProductCatalog операции над товарами; lang задает локаль запроса
type ProductCatalog interface {
	ListProducts(ctx context.Context, lang string, page, limit int) ([]*models.RemoteProduct, error)
	GetProduct(ctx context.Context, lang string, productID int64) (*models.RemoteProduct, error)
	CreateProduct(ctx context.Context, lang string, payload map[string]interface{}) (*models.RemoteProduct, error)
	UpdateProduct(ctx context.Context, lang string, productID int64, payload map[string]interface{}) error
}

// ReferenceCatalog справочники брендов и поставщиков
type ReferenceCatalog interface {
	ListReferences(ctx context.Context, kind models.DirectoryKind, page, limit int) ([]models.Reference, error)
	GetReference(ctx context.Context, kind models.DirectoryKind, id int64) (*models.Reference, error)
}

// ImageCatalog изображения товара
type ImageCatalog interface {
	ListProductImages(ctx context.Context, productID int64) ([]models.RemoteImage, error)
	DeleteProductImage(ctx context.Context, productID, imageID int64) error
	// UploadProductImage загружает изображение, attachment - base64 содержимого
	UploadProductImage(ctx context.Context, productID int64, filename, attachment string) (*models.RemoteImage, error)
}

// CatalogPort полный клиент удаленного каталога
type CatalogPort interface {
	VariantCatalog
	ProductCatalog
	ReferenceCatalog
	ImageCatalog
}

// ImageDownloader скачивает изображение по URL из PIM
type ImageDownloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// Locker сериализует операции над одним SKU
type Locker interface {
	Lock(ctx context.Context, sku string) (unlock func(), err error)
}

// EventPublisher публикует результаты синхронизации
type EventPublisher interface {
	PublishSyncResult(ctx context.Context, op string, result *models.SyncResult) error
}
