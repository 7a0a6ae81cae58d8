package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/ports"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/utils"
	"github.com/athebyme/gomarket-platform/catalog-sync/pkg/interfaces"
)

// ExclusionService SKU, пропускаемые пакетной синхронизацией и сравнением
type ExclusionService struct {
	repo   ports.ExclusionRepository
	logger interfaces.LoggerPort
	now    func() time.Time
}

func NewExclusionService(repo ports.ExclusionRepository, logger interfaces.LoggerPort) *ExclusionService {
	return &ExclusionService{repo: repo, logger: logger, now: time.Now}
}

func (s *ExclusionService) List(ctx context.Context) ([]*models.Exclusion, error) {
	list, err := s.repo.ListExclusions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list exclusions: %w", err)
	}
	return list, nil
}

// Exclude исключает SKU. При remember=false ничего не сохраняется
func (s *ExclusionService) Exclude(ctx context.Context, sku, reason string, remember bool) (*models.Exclusion, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, fmt.Errorf("%w: sku", utils.ErrValidationMissing)
	}
	e := &models.Exclusion{SKU: sku, Reason: strings.TrimSpace(reason), CreatedAt: s.now().UTC()}
	if !remember {
		return e, nil
	}
	if err := s.repo.SaveExclusion(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to save exclusion: %w", err)
	}
	s.logger.InfoWithContext(ctx, "SKU исключен из синхронизации",
		interfaces.LogField{Key: "sku", Value: sku},
		interfaces.LogField{Key: "reason", Value: e.Reason},
	)
	return e, nil
}

func (s *ExclusionService) Unexclude(ctx context.Context, sku string) error {
	if err := s.repo.DeleteExclusion(ctx, strings.TrimSpace(sku)); err != nil {
		return fmt.Errorf("failed to delete exclusion: %w", err)
	}
	return nil
}

// IsExcluded при ошибке хранилища SKU считается не исключенным
func (s *ExclusionService) IsExcluded(ctx context.Context, sku string) bool {
	excluded, err := s.repo.IsExcluded(ctx, sku)
	if err != nil {
		s.logger.WarnWithContext(ctx, "Ошибка проверки исключений",
			interfaces.LogField{Key: "error", Value: err.Error()})
		return false
	}
	return excluded
}
