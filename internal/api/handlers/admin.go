package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/services"
	"github.com/athebyme/gomarket-platform/catalog-sync/pkg/interfaces"
	pkgutils "github.com/athebyme/gomarket-platform/catalog-sync/pkg/utils"
	"github.com/go-chi/chi/v5"
)

// AuditReader запросы к журналу прогонов импорта
type AuditReader interface {
	Recent(ctx context.Context, limit int) ([]*models.ImportRun, error)
	Details(ctx context.Context, runID string, page, pageSize int) (*services.RunDetails, error)
}

// ExclusionManager управление исключенными SKU
type ExclusionManager interface {
	List(ctx context.Context) ([]*models.Exclusion, error)
	Exclude(ctx context.Context, sku, reason string, remember bool) (*models.Exclusion, error)
	Unexclude(ctx context.Context, sku string) error
}

// LookupRebuilder перестраивает локальную таблицу соответствий
type LookupRebuilder interface {
	Rebuild(ctx context.Context, clear bool) (*services.RebuildStats, error)
}

// AdminHandler журнал импорта, исключения, перестроение lookup
type AdminHandler struct {
	audit      AuditReader
	exclusions ExclusionManager
	rebuild    LookupRebuilder
	logger     interfaces.LoggerPort
}

func NewAdminHandler(audit AuditReader, exclusions ExclusionManager, rebuild LookupRebuilder, logger interfaces.LoggerPort) *AdminHandler {
	return &AdminHandler{audit: audit, exclusions: exclusions, rebuild: rebuild, logger: logger}
}

// ListRuns GET /import-runs?limit=
func (h *AdminHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.audit.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, r, err, "", "")
		return
	}
	writeData(w, r, http.StatusOK, runs, nil)
}

// GetRun GET /import-runs/{id}?page=&page_size=
func (h *AdminHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p := pkgutils.PaginationFromQuery(r.URL.Query(), 100, 500)
	details, err := h.audit.Details(r.Context(), id, p.Page, p.PageSize)
	if err != nil {
		writeError(w, r, err, "", "")
		return
	}
	writeData(w, r, http.StatusOK, details, nil)
}

type exclusionRequest struct {
	SKU    string `json:"sku"`
	Reason string `json:"reason"`
	// Remember по умолчанию true
	Remember *bool `json:"remember,omitempty"`
}

// ListExclusions GET /exclusions
func (h *AdminHandler) ListExclusions(w http.ResponseWriter, r *http.Request) {
	list, err := h.exclusions.List(r.Context())
	if err != nil {
		writeError(w, r, err, "", "")
		return
	}
	writeData(w, r, http.StatusOK, list, map[string]interface{}{"count": len(list)})
}

// Exclude POST /exclusions
func (h *AdminHandler) Exclude(w http.ResponseWriter, r *http.Request) {
	var req exclusionRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	remember := req.Remember == nil || *req.Remember
	e, err := h.exclusions.Exclude(r.Context(), req.SKU, req.Reason, remember)
	if err != nil {
		writeError(w, r, err, req.SKU, "")
		return
	}
	writeData(w, r, http.StatusCreated, e, map[string]interface{}{"remembered": remember})
}

// Unexclude DELETE /exclusions/{sku}
func (h *AdminHandler) Unexclude(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")
	if strings.TrimSpace(sku) == "" {
		badRequest(w, r, "sku is required")
		return
	}
	if err := h.exclusions.Unexclude(r.Context(), sku); err != nil {
		writeError(w, r, err, sku, "")
		return
	}
	writeData(w, r, http.StatusOK, map[string]interface{}{"sku": sku, "excluded": false}, nil)
}

// RebuildLookup POST /lookup/rebuild?clear=true
func (h *AdminHandler) RebuildLookup(w http.ResponseWriter, r *http.Request) {
	clear, _ := strconv.ParseBool(r.URL.Query().Get("clear"))
	stats, err := h.rebuild.Rebuild(r.Context(), clear)
	if err != nil {
		h.logger.ErrorWithContext(r.Context(), "Ошибка перестроения lookup",
			interfaces.LogField{Key: "error", Value: err.Error()})
		writeError(w, r, err, "", "")
		return
	}
	writeData(w, r, http.StatusOK, stats, map[string]interface{}{"cleared": clear})
}

// Pinger проверка доступности зависимости
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health GET /health: 503, если хранилище недоступно
func Health(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("storage unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}
