package handlers

import (
	"context"
	"net/http"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/messaging"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/mapping"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/services"
	"github.com/athebyme/gomarket-platform/catalog-sync/pkg/interfaces"
)

// SyncEngine операции движка синхронизации, доступные через HTTP
type SyncEngine interface {
	CreateProduct(ctx context.Context, rec models.PIMRecord, m *mapping.Mapping) *models.SyncResult
	CreateVariant(ctx context.Context, rec models.PIMRecord, m *mapping.Mapping) *models.SyncResult
	UpdateExisting(ctx context.Context, rec models.PIMRecord, diffs []models.DiffEntry,
		snapshot *models.RemoteSnapshot, m *mapping.Mapping) *models.SyncResult
	Sync(ctx context.Context, rec models.PIMRecord, m *mapping.Mapping) *models.SyncResult
	SyncBatch(ctx context.Context, recs []models.PIMRecord, m *mapping.Mapping, triggeredBy string) (*services.BatchResult, error)
	CompareBatch(ctx context.Context, recs []models.PIMRecord, m *mapping.Mapping) ([]*models.CompareResult, error)
	DiscoverFields(ctx context.Context) ([]services.FieldInfo, error)
	SyncImages(ctx context.Context, sku string, productID int64, urls []string) *models.SyncResult
}

// FeedSource загружает записи фида PIM
type FeedSource interface {
	Fetch(ctx context.Context, url string) ([]models.PIMRecord, error)
}

// SyncHandler обработчик операций синхронизации
type SyncHandler struct {
	engine SyncEngine
	feed   FeedSource
	// bus может быть nil, тогда фид обрабатывается в запросе
	bus            interfaces.MessagingPort
	commandTopic   string
	defaultFeedURL string
	logger         interfaces.LoggerPort
}

// SyncHandlerConfig зависимости SyncHandler
type SyncHandlerConfig struct {
	Engine         SyncEngine
	Feed           FeedSource
	Bus            interfaces.MessagingPort
	CommandTopic   string
	DefaultFeedURL string
	Logger         interfaces.LoggerPort
}

func NewSyncHandler(cfg SyncHandlerConfig) *SyncHandler {
	if cfg.CommandTopic == "" {
		cfg.CommandTopic = messaging.DefaultCommandTopic
	}
	return &SyncHandler{
		engine:         cfg.Engine,
		feed:           cfg.Feed,
		bus:            cfg.Bus,
		commandTopic:   cfg.CommandTopic,
		defaultFeedURL: cfg.DefaultFeedURL,
		logger:         cfg.Logger,
	}
}

type recordRequest struct {
	Record  models.PIMRecord `json:"record"`
	Mapping *mapping.Mapping `json:"mapping,omitempty"`
}

type updateRequest struct {
	Record   models.PIMRecord       `json:"record"`
	Diffs    []models.DiffEntry     `json:"diffs"`
	Snapshot *models.RemoteSnapshot `json:"snapshot"`
	Mapping  *mapping.Mapping       `json:"mapping,omitempty"`
}

type batchRequest struct {
	Records     []models.PIMRecord `json:"records"`
	Mapping     *mapping.Mapping   `json:"mapping,omitempty"`
	TriggeredBy string             `json:"triggered_by,omitempty"`
	// URL фида, если записи не переданы
	URL string `json:"url,omitempty"`
}

type imagesRequest struct {
	SKU       string   `json:"sku,omitempty"`
	ProductID int64    `json:"productId,omitempty"`
	URLs      []string `json:"urls"`
}

func (h *SyncHandler) decodeRecord(w http.ResponseWriter, r *http.Request) (*recordRequest, bool) {
	var req recordRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return nil, false
	}
	if req.Record == nil {
		badRequest(w, r, "record is required")
		return nil, false
	}
	return &req, true
}

// CreateProduct POST /products
func (h *SyncHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRecord(w, r)
	if !ok {
		return
	}
	writeResult(w, r, h.engine.CreateProduct(r.Context(), req.Record, req.Mapping))
}

// CreateVariant POST /variants
func (h *SyncHandler) CreateVariant(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRecord(w, r)
	if !ok {
		return
	}
	writeResult(w, r, h.engine.CreateVariant(r.Context(), req.Record, req.Mapping))
}

// UpdateExisting POST /products/update
func (h *SyncHandler) UpdateExisting(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if req.Record == nil || req.Snapshot == nil {
		badRequest(w, r, "record and snapshot are required")
		return
	}
	writeResult(w, r, h.engine.UpdateExisting(r.Context(), req.Record, req.Diffs, req.Snapshot, req.Mapping))
}

// Sync POST /sync
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRecord(w, r)
	if !ok {
		return
	}
	writeResult(w, r, h.engine.Sync(r.Context(), req.Record, req.Mapping))
}

// SyncBatch POST /sync/batch
func (h *SyncHandler) SyncBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if len(req.Records) == 0 {
		badRequest(w, r, "records are required")
		return
	}
	h.runBatch(w, r, req.Records, req.Mapping, triggeredBy(req.TriggeredBy, "api-batch"))
}

// SyncFeed POST /sync/feed. С шиной команд ставит sync_feed в очередь,
// без нее загружает фид и синхронизирует в запросе
func (h *SyncHandler) SyncFeed(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			badRequest(w, r, err.Error())
			return
		}
	}
	url := req.URL
	if url == "" {
		url = h.defaultFeedURL
	}
	if url == "" {
		badRequest(w, r, "feed url is required (IMPORT_URL)")
		return
	}

	by := triggeredBy(req.TriggeredBy, "api-feed")
	if h.bus != nil {
		body, err := messaging.NewCommand(messaging.CommandSyncFeed,
			messaging.FeedPayload{URL: url, Mapping: req.Mapping}, by)
		if err == nil {
			err = h.bus.Publish(r.Context(), h.commandTopic, body)
		}
		if err != nil {
			h.logger.ErrorWithContext(r.Context(), "Не удалось поставить синхронизацию фида в очередь",
				interfaces.LogField{Key: "error", Value: err.Error()})
			writeError(w, r, err, "", "")
			return
		}
		writeData(w, r, http.StatusAccepted, map[string]interface{}{
			"queued":       true,
			"command_type": messaging.CommandSyncFeed,
			"url":          url,
		}, nil)
		return
	}

	recs, err := h.feed.Fetch(r.Context(), url)
	if err != nil {
		writeError(w, r, err, "", "")
		return
	}
	h.runBatch(w, r, recs, req.Mapping, by)
}

func (h *SyncHandler) runBatch(w http.ResponseWriter, r *http.Request, recs []models.PIMRecord, m *mapping.Mapping, by string) {
	batch, err := h.engine.SyncBatch(r.Context(), recs, m, by)
	if batch == nil {
		writeError(w, r, err, "", "")
		return
	}
	meta := map[string]interface{}{"records": len(recs), "processed": len(batch.Results)}
	if err != nil {
		meta["interrupted"] = err.Error()
	}
	writeData(w, r, http.StatusOK, batch, meta)
}

// Compare POST /compare: записи в теле или url фида
func (h *SyncHandler) Compare(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	recs := req.Records
	if len(recs) == 0 {
		url := req.URL
		if url == "" {
			url = h.defaultFeedURL
		}
		if url == "" {
			badRequest(w, r, "records or feed url are required")
			return
		}
		var err error
		if recs, err = h.feed.Fetch(r.Context(), url); err != nil {
			writeError(w, r, err, "", "")
			return
		}
	}

	results, err := h.engine.CompareBatch(r.Context(), recs, req.Mapping)
	if err != nil && results == nil {
		writeError(w, r, err, "", "")
		return
	}
	meta := map[string]interface{}{"records": len(recs), "compared": len(results)}
	if err != nil {
		meta["interrupted"] = err.Error()
	}
	writeData(w, r, http.StatusOK, results, meta)
}

func decodeImages(w http.ResponseWriter, r *http.Request) (*imagesRequest, bool) {
	var req imagesRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return nil, false
	}
	if req.URLs == nil {
		badRequest(w, r, "urls are required")
		return nil, false
	}
	return &req, true
}

// SyncImagesBySKU POST /images/sync-by-sku: товар берется из variant_lookup
func (h *SyncHandler) SyncImagesBySKU(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeImages(w, r)
	if !ok {
		return
	}
	if req.SKU == "" {
		badRequest(w, r, "sku is required")
		return
	}
	writeResult(w, r, h.engine.SyncImages(r.Context(), req.SKU, 0, req.URLs))
}

// SyncImagesByID POST /images/sync-by-id
func (h *SyncHandler) SyncImagesByID(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeImages(w, r)
	if !ok {
		return
	}
	if req.ProductID <= 0 {
		badRequest(w, r, "productId is required")
		return
	}
	writeResult(w, r, h.engine.SyncImages(r.Context(), req.SKU, req.ProductID, req.URLs))
}

// Fields GET /fields
func (h *SyncHandler) Fields(w http.ResponseWriter, r *http.Request) {
	fields, err := h.engine.DiscoverFields(r.Context())
	if err != nil {
		h.logger.ErrorWithContext(r.Context(), "Ошибка получения полей каталога",
			interfaces.LogField{Key: "error", Value: err.Error()})
		writeError(w, r, err, "", "")
		return
	}
	writeData(w, r, http.StatusOK, fields, map[string]interface{}{"count": len(fields)})
}

func triggeredBy(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
