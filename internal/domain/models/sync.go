package models

import "time"

// LookupRecord связывает SKU с идентификаторами удаленного каталога.
// ProductID устанавливается раньше VariantID
type LookupRecord struct {
	SKU       string `json:"sku"`
	ProductID int64  `json:"productId"`
	VariantID *int64 `json:"variantId,omitempty"`
}

// Источник разрешения SKU
const (
	SourceCache = "cache"
	SourceAPI   = "api"
)

// Resolution результат разрешения SKU
type Resolution struct {
	ProductID int64  `json:"productId"`
	VariantID *int64 `json:"variantId,omitempty"`
	Source    string `json:"source"`
}

// DiffEntry одно расхождение поля между PIM и удаленным каталогом
type DiffEntry struct {
	Key         string      `json:"key"`
	PIMValue    interface{} `json:"pim"`
	RemoteValue interface{} `json:"ls"`
	SourceField string      `json:"field"`
}

// Статусы результата операции синхронизации
const (
	StatusProductCreated = "product_created"
	StatusVariantCreated = "variant_created"
	StatusCreated        = "created"
	StatusUpdated        = "updated"
	StatusUnchanged      = "unchanged"
	StatusConflict       = "conflict"
	StatusPartialFailure = "partial_failure"
	StatusFailed         = "failed"
	StatusExcluded       = "excluded"
	StatusNotFound       = "not_found"
	StatusDifferent      = "different"
)

// SyncResult результат операции над одним SKU
type SyncResult struct {
	Status    string `json:"status"`
	SKU       string `json:"sku"`
	ProductID *int64 `json:"productId,omitempty"`
	VariantID *int64 `json:"variantId,omitempty"`
	Error     string `json:"error,omitempty"`
	// Details - тело ответа удаленного API, если ошибка пришла от него
	Details string `json:"details,omitempty"`

	err error
}

// Err возвращает исходную ошибку результата для errors.Is
func (r *SyncResult) Err() error {
	return r.err
}

// Fail помечает результат как ошибочный
func (r *SyncResult) Fail(status string, err error) *SyncResult {
	r.Status = status
	r.err = err
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// CompareResult результат сравнения одной записи PIM
type CompareResult struct {
	SKU         string          `json:"sku"`
	Exists      bool            `json:"exists"`
	Status      string          `json:"status"`
	Differences []DiffEntry     `json:"differences"`
	Snapshot    *RemoteSnapshot `json:"snapshot,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// ImageTrackingRecord одно синхронизированное изображение товара
type ImageTrackingRecord struct {
	SKU            string    `json:"sku"`
	ProductID      int64     `json:"product_id"`
	PIMImageURL    string    `json:"pim_image_url"`
	PIMFilename    string    `json:"pim_filename"`
	RemoteImageURL string    `json:"remote_image_url"`
	RemoteImageID  int64     `json:"remote_image_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// Операции и статусы элементов аудита
const (
	OpCreate = "create"
	OpUpdate = "update"

	ItemOK   = "ok"
	ItemFail = "fail"
)

// ImportRun прогон синхронизации, объединяющий элементы
type ImportRun struct {
	ID          string     `json:"id"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	TriggeredBy string     `json:"triggered_by"`
	Created     int        `json:"created"`
	Updated     int        `json:"updated"`
	Failed      int        `json:"failed"`
	DurationMs  *int64     `json:"duration_ms,omitempty"`
}

// Total возвращает число завершенных элементов
func (r *ImportRun) Total() int {
	return r.Created + r.Updated + r.Failed
}

// ImportItem результат одной попытки изменения по SKU, не изменяется после записи
type ImportItem struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	SKU       string    `json:"sku"`
	Op        string    `json:"op"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// CounterColumn возвращает счетчик прогона, увеличиваемый этим элементом
func (i *ImportItem) CounterColumn() string {
	if i.Status != ItemOK {
		return "failed"
	}
	if i.Op == OpCreate {
		return "created"
	}
	return "updated"
}

// Exclusion SKU, исключенный из пакетной синхронизации
type Exclusion struct {
	SKU       string    `json:"sku"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// DirectoryKind тип справочника
type DirectoryKind string

const (
	Brands    DirectoryKind = "brands"
	Suppliers DirectoryKind = "suppliers"
)
