package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/ports"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/metrics"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/utils"
	"github.com/athebyme/gomarket-platform/catalog-sync/pkg/interfaces"
)

const lookupCachePrefix = "lookup:"

// LookupService кэш идентификаторов SKU -> (productId, variantId).
// Порядок разрешения: кэш (CachePort), таблица variant_lookup, удаленный API
type LookupService struct {
	repo     ports.LookupRepository
	catalog  ports.VariantCatalog
	cache    interfaces.CachePort
	cacheTTL time.Duration
	logger   interfaces.LoggerPort
}

// NewLookupService создает сервис. cache может быть nil
func NewLookupService(repo ports.LookupRepository, catalog ports.VariantCatalog, cache interfaces.CachePort,
	cacheTTL time.Duration, logger interfaces.LoggerPort) *LookupService {
	return &LookupService{repo: repo, catalog: catalog, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// Resolve разрешает SKU. Возвращает nil, если SKU не найден или источник недоступен:
// ошибки хранилища и удаленного API только логируются
func (s *LookupService) Resolve(ctx context.Context, sku string) *models.Resolution {
	if rec := s.cached(ctx, sku); rec != nil {
		metrics.LookupResolutions.WithLabelValues(models.SourceCache).Inc()
		return &models.Resolution{ProductID: rec.ProductID, VariantID: rec.VariantID, Source: models.SourceCache}
	}

	rec, err := s.repo.GetLookup(ctx, sku)
	if err != nil {
		s.logger.WarnWithContext(ctx, "Ошибка чтения variant_lookup, считаем промахом",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
	if rec != nil && rec.ProductID != 0 {
		s.store(ctx, rec)
		metrics.LookupResolutions.WithLabelValues(models.SourceCache).Inc()
		return &models.Resolution{ProductID: rec.ProductID, VariantID: rec.VariantID, Source: models.SourceCache}
	}

	variant, err := s.findRemote(ctx, sku)
	if err != nil {
		s.logger.WarnWithContext(ctx, "Ошибка поиска SKU в удаленном каталоге, считаем промахом",
			interfaces.LogField{Key: "error", Value: err.Error()})
		metrics.LookupResolutions.WithLabelValues("error").Inc()
		return nil
	}
	if variant == nil {
		metrics.LookupResolutions.WithLabelValues("miss").Inc()
		return nil
	}

	variantID := variant.ID
	found := &models.LookupRecord{SKU: sku, ProductID: variant.ProductID, VariantID: &variantID}
	if err := s.Upsert(ctx, found); err != nil {
		s.logger.WarnWithContext(ctx, "Не удалось сохранить найденный SKU в variant_lookup",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
	metrics.LookupResolutions.WithLabelValues(models.SourceAPI).Inc()
	return &models.Resolution{ProductID: found.ProductID, VariantID: found.VariantID, Source: models.SourceAPI}
}

// findRemote ищет вариант с точно совпадающим SKU
func (s *LookupService) findRemote(ctx context.Context, sku string) (*models.RemoteVariant, error) {
	variants, err := s.catalog.FindVariantsBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	for _, v := range variants {
		if v.SKU == sku && v.ProductID != 0 {
			return v, nil
		}
	}
	return nil, nil
}

// Upsert идемпотентная запись, при конфликте побеждает последний variantId
func (s *LookupService) Upsert(ctx context.Context, rec *models.LookupRecord) error {
	if rec.SKU == "" || rec.ProductID == 0 {
		return fmt.Errorf("%w: sku and product id", utils.ErrValidationMissing)
	}
	if err := s.repo.UpsertLookup(ctx, rec); err != nil {
		return fmt.Errorf("failed to upsert lookup: %w", err)
	}
	s.store(ctx, rec)
	return nil
}

// Clear очищает таблицу и кэш
func (s *LookupService) Clear(ctx context.Context) error {
	if err := s.repo.ClearLookup(ctx); err != nil {
		return fmt.Errorf("failed to clear lookup: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, lookupCachePrefix+"*"); err != nil {
			s.logger.WarnWithContext(ctx, "Не удалось очистить кэш lookup",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}
	return nil
}

func (s *LookupService) cached(ctx context.Context, sku string) *models.LookupRecord {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.Get(ctx, lookupCachePrefix+sku)
	if err != nil {
		if !errors.Is(err, utils.ErrCacheMiss) {
			metrics.CacheOperations.WithLabelValues("get", "error").Inc()
			s.logger.WarnWithContext(ctx, "Ошибка чтения кэша lookup",
				interfaces.LogField{Key: "error", Value: err.Error()})
		} else {
			metrics.CacheOperations.WithLabelValues("get", "miss").Inc()
		}
		return nil
	}
	var rec models.LookupRecord
	if err := json.Unmarshal(data, &rec); err != nil || rec.ProductID == 0 {
		return nil
	}
	metrics.CacheOperations.WithLabelValues("get", "hit").Inc()
	return &rec
}

func (s *LookupService) store(ctx context.Context, rec *models.LookupRecord) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, lookupCachePrefix+rec.SKU, data, s.cacheTTL); err != nil {
		metrics.CacheOperations.WithLabelValues("set", "error").Inc()
		s.logger.WarnWithContext(ctx, "Ошибка записи кэша lookup",
			interfaces.LogField{Key: "error", Value: err.Error()})
		return
	}
	metrics.CacheOperations.WithLabelValues("set", "success").Inc()
}
