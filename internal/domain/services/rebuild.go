package services

import (
	"context"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/ports"
	"github.com/athebyme/gomarket-platform/catalog-sync/pkg/interfaces"
)

// DefaultRebuildPageSize максимальный размер страницы списков удаленного API
const DefaultRebuildPageSize = 250

// RebuildStats счетчики перестроения кэша идентификаторов
type RebuildStats struct {
	Variants  int `json:"variants"`
	Brands    int `json:"brands"`
	Suppliers int `json:"suppliers"`
}

// RebuildService заполняет variant_lookup и справочники полным обходом удаленного каталога
type RebuildService struct {
	catalog   ports.CatalogPort
	lookup    *LookupService
	directory ports.DirectoryRepository
	logger    interfaces.LoggerPort
	pageSize  int
	delay     time.Duration
}

// NewRebuildService создает сервис; delay - пауза между страницами
func NewRebuildService(catalog ports.CatalogPort, lookup *LookupService, directory ports.DirectoryRepository,
	pageSize int, delay time.Duration, logger interfaces.LoggerPort) *RebuildService {
	if pageSize <= 0 || pageSize > DefaultRebuildPageSize {
		pageSize = DefaultRebuildPageSize
	}
	return &RebuildService{
		catalog:   catalog,
		lookup:    lookup,
		directory: directory,
		logger:    logger,
		pageSize:  pageSize,
		delay:     delay,
	}
}

// Rebuild обходит варианты, бренды и поставщиков. clear очищает таблицы перед обходом
func (s *RebuildService) Rebuild(ctx context.Context, clear bool) (*RebuildStats, error) {
	if clear {
		if err := s.lookup.Clear(ctx); err != nil {
			return nil, err
		}
		for _, kind := range []models.DirectoryKind{models.Brands, models.Suppliers} {
			if err := s.directory.ClearDirectory(ctx, kind); err != nil {
				return nil, fmt.Errorf("failed to clear %s: %w", kind, err)
			}
		}
	}

	stats := &RebuildStats{}
	var err error
	if stats.Variants, err = s.variants(ctx); err != nil {
		return stats, err
	}
	if stats.Brands, err = s.references(ctx, models.Brands); err != nil {
		return stats, err
	}
	if stats.Suppliers, err = s.references(ctx, models.Suppliers); err != nil {
		return stats, err
	}

	s.logger.InfoWithContext(ctx, "Кэш идентификаторов перестроен",
		interfaces.LogField{Key: "variants", Value: stats.Variants},
		interfaces.LogField{Key: "brands", Value: stats.Brands},
		interfaces.LogField{Key: "suppliers", Value: stats.Suppliers},
	)
	return stats, nil
}

func (s *RebuildService) variants(ctx context.Context) (int, error) {
	count := 0
	for page := 1; ; page++ {
		if err := s.wait(ctx, page); err != nil {
			return count, err
		}
		variants, err := s.catalog.ListVariants(ctx, page, s.pageSize)
		if err != nil {
			return count, fmt.Errorf("failed to list variants page %d: %w", page, err)
		}
		for _, v := range variants {
			if v.SKU == "" || v.ProductID == 0 {
				continue
			}
			id := v.ID
			if err := s.lookup.Upsert(ctx, &models.LookupRecord{SKU: v.SKU, ProductID: v.ProductID, VariantID: &id}); err != nil {
				s.logger.WarnWithContext(ctx, "Пропущен вариант при перестроении",
					interfaces.LogField{Key: "variant_id", Value: v.ID},
					interfaces.LogField{Key: "error", Value: err.Error()},
				)
				continue
			}
			count++
		}
		if len(variants) < s.pageSize {
			return count, nil
		}
	}
}

func (s *RebuildService) references(ctx context.Context, kind models.DirectoryKind) (int, error) {
	count := 0
	for page := 1; ; page++ {
		if err := s.wait(ctx, page); err != nil {
			return count, err
		}
		refs, err := s.catalog.ListReferences(ctx, kind, page, s.pageSize)
		if err != nil {
			return count, fmt.Errorf("failed to list %s page %d: %w", kind, page, err)
		}
		for _, ref := range refs {
			if ref.ID == 0 || ref.Title == "" {
				continue
			}
			if err := s.directory.UpsertReference(ctx, kind, ref); err != nil {
				return count, fmt.Errorf("failed to save %s %d: %w", kind, ref.ID, err)
			}
			count++
		}
		if len(refs) < s.pageSize {
			return count, nil
		}
	}
}

func (s *RebuildService) wait(ctx context.Context, page int) error {
	if page == 1 || s.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
