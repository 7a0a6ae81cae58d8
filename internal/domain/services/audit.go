package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/ports"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/metrics"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/utils"
	"github.com/athebyme/gomarket-platform/catalog-sync/pkg/interfaces"
	pkgutils "github.com/athebyme/gomarket-platform/catalog-sync/pkg/utils"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const (
	defaultRecentRuns = 3
	maxRecentRuns     = 20
	maxItemsPageSize  = 500
)

// AuditService журнал прогонов импорта
type AuditService struct {
	repo   ports.AuditRepository
	logger interfaces.LoggerPort
	now    func() time.Time
}

// NewAuditService создает сервис аудита
func NewAuditService(repo ports.AuditRepository, logger interfaces.LoggerPort) *AuditService {
	return &AuditService{repo: repo, logger: logger, now: time.Now}
}

// Start открывает прогон
func (s *AuditService) Start(ctx context.Context, triggeredBy string) (*models.ImportRun, error) {
	if strings.TrimSpace(triggeredBy) == "" {
		triggeredBy = "api"
	}
	run := &models.ImportRun{
		ID:          uuid.New().String(),
		StartedAt:   s.now().UTC(),
		TriggeredBy: triggeredBy,
	}
	if err := s.repo.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create import run: %w", err)
	}
	metrics.ActiveRuns.Inc()
	return run, nil
}

// AppendItem записывает результат попытки изменения и увеличивает счетчик прогона
func (s *AuditService) AppendItem(ctx context.Context, runID, sku, op, status, message string) (*models.ImportItem, error) {
	item := &models.ImportItem{
		ID:        ulid.Make().String(),
		RunID:     runID,
		SKU:       sku,
		Op:        op,
		Status:    status,
		Message:   message,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.AppendItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to append import item: %w", err)
	}
	return item, nil
}

// Finish завершает прогон. Повторное завершение - utils.ErrRunAlreadyFinished
func (s *AuditService) Finish(ctx context.Context, runID string) (*models.ImportRun, error) {
	run, err := s.repo.FinishRun(ctx, runID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to finish import run: %w", err)
	}
	metrics.ActiveRuns.Dec()
	s.logger.InfoWithContext(ctx, "Прогон импорта завершен",
		interfaces.LogField{Key: "created", Value: run.Created},
		interfaces.LogField{Key: "updated", Value: run.Updated},
		interfaces.LogField{Key: "failed", Value: run.Failed},
	)
	return run, nil
}

// Recent последние прогоны, limit ограничен 1..20, по умолчанию 3
func (s *AuditService) Recent(ctx context.Context, limit int) ([]*models.ImportRun, error) {
	if limit <= 0 {
		limit = defaultRecentRuns
	}
	if limit > maxRecentRuns {
		limit = maxRecentRuns
	}
	runs, err := s.repo.ListRecentRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list import runs: %w", err)
	}
	return runs, nil
}

// RunDetails прогон и страница его элементов
type RunDetails struct {
	Run        *models.ImportRun    `json:"run"`
	Items      []*models.ImportItem `json:"items"`
	Pagination *pkgutils.Pagination `json:"pagination"`
}

// Details возвращает прогон с элементами
func (s *AuditService) Details(ctx context.Context, runID string, page, pageSize int) (*RunDetails, error) {
	run, err := s.repo.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get import run: %w", err)
	}
	if run == nil {
		return nil, utils.ErrRunNotFound
	}

	p := pkgutils.NewPagination(page, pageSize, maxItemsPageSize)
	items, total, err := s.repo.ListItems(ctx, runID, p.Offset(), p.Limit())
	if err != nil {
		return nil, fmt.Errorf("failed to list import items: %w", err)
	}
	p.SetTotal(total)
	return &RunDetails{Run: run, Items: items, Pagination: p}, nil
}
