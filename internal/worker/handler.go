// Package worker исполняет команды шины catalog-sync-commands
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/messaging"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/mapping"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/services"
	"github.com/athebyme/gomarket-platform/catalog-sync/pkg/interfaces"
)

// Engine операции движка, вызываемые командами
type Engine interface {
	Sync(ctx context.Context, rec models.PIMRecord, m *mapping.Mapping) *models.SyncResult
	SyncBatch(ctx context.Context, recs []models.PIMRecord, m *mapping.Mapping, triggeredBy string) (*services.BatchResult, error)
	CompareBatch(ctx context.Context, recs []models.PIMRecord, m *mapping.Mapping) ([]*models.CompareResult, error)
	SyncImages(ctx context.Context, sku string, productID int64, urls []string) *models.SyncResult
}

type FeedSource interface {
	Fetch(ctx context.Context, url string) ([]models.PIMRecord, error)
}

type LookupRebuilder interface {
	Rebuild(ctx context.Context, clear bool) (*services.RebuildStats, error)
}

// Handler разбирает команду и вызывает движок
type Handler struct {
	engine         Engine
	feed           FeedSource
	rebuild        LookupRebuilder
	defaultFeedURL string
	logger         interfaces.LoggerPort
}

func NewHandler(engine Engine, feed FeedSource, rebuild LookupRebuilder, defaultFeedURL string, logger interfaces.LoggerPort) *Handler {
	return &Handler{
		engine:         engine,
		feed:           feed,
		rebuild:        rebuild,
		defaultFeedURL: defaultFeedURL,
		logger:         logger,
	}
}

// Handle реализует interfaces.MessageHandler. Неизвестная команда пропускается без ошибки
func (h *Handler) Handle(ctx context.Context, msg *interfaces.Message) error {
	start := time.Now()

	var cmd messaging.Command
	if err := json.Unmarshal(msg.Value, &cmd); err != nil {
		h.logger.ErrorWithContext(ctx, "Ошибка декодирования команды",
			interfaces.LogField{Key: "message_id", Value: msg.ID},
			interfaces.LogField{Key: "error", Value: err.Error()})
		return fmt.Errorf("failed to decode command: %w", err)
	}

	h.logger.InfoWithContext(ctx, "Получена команда",
		interfaces.LogField{Key: "message_id", Value: msg.ID},
		interfaces.LogField{Key: "command_type", Value: cmd.CommandType},
	)

	var err error
	switch cmd.CommandType {
	case messaging.CommandSyncSKU:
		err = h.syncSKU(ctx, cmd)
	case messaging.CommandSyncFeed:
		err = h.syncFeed(ctx, cmd)
	case messaging.CommandCompareFeed:
		err = h.compareFeed(ctx, cmd)
	case messaging.CommandRebuildLookup:
		err = h.rebuildLookup(ctx, cmd)
	case messaging.CommandSyncImages:
		err = h.syncImages(ctx, cmd)
	default:
		h.logger.WarnWithContext(ctx, "Неизвестный тип команды",
			interfaces.LogField{Key: "command_type", Value: cmd.CommandType})
		return nil
	}
	if err != nil {
		h.logger.ErrorWithContext(ctx, "Ошибка обработки команды",
			interfaces.LogField{Key: "command_type", Value: cmd.CommandType},
			interfaces.LogField{Key: "error", Value: err.Error()})
		return err
	}

	h.logger.InfoWithContext(ctx, "Команда успешно обработана",
		interfaces.LogField{Key: "command_type", Value: cmd.CommandType},
		interfaces.LogField{Key: "duration", Value: time.Since(start).String()},
	)
	return nil
}

func decodePayload(cmd messaging.Command, dst interface{}) error {
	if len(cmd.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(cmd.Payload, dst); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", cmd.CommandType, err)
	}
	return nil
}

// syncSKU ошибка результата не возвращается: она уже записана в аудит
// и опубликована событием, повтор сообщения ее не исправит
func (h *Handler) syncSKU(ctx context.Context, cmd messaging.Command) error {
	var p messaging.SyncSKUPayload
	if err := decodePayload(cmd, &p); err != nil {
		return err
	}
	res := h.engine.Sync(ctx, p.Record, p.Mapping)
	h.logger.InfoWithContext(ctx, "Синхронизация SKU завершена",
		interfaces.LogField{Key: "sku", Value: res.SKU},
		interfaces.LogField{Key: "status", Value: res.Status},
	)
	return nil
}

// syncImages как и syncSKU, результат уже в аудите и событии
func (h *Handler) syncImages(ctx context.Context, cmd messaging.Command) error {
	var p messaging.SyncImagesPayload
	if err := decodePayload(cmd, &p); err != nil {
		return err
	}
	res := h.engine.SyncImages(ctx, p.SKU, p.ProductID, p.URLs)
	h.logger.InfoWithContext(ctx, "Синхронизация изображений завершена",
		interfaces.LogField{Key: "sku", Value: res.SKU},
		interfaces.LogField{Key: "status", Value: res.Status},
	)
	return nil
}

func (h *Handler) fetch(ctx context.Context, url string) ([]models.PIMRecord, error) {
	if url == "" {
		url = h.defaultFeedURL
	}
	return h.feed.Fetch(ctx, url)
}

func (h *Handler) syncFeed(ctx context.Context, cmd messaging.Command) error {
	var p messaging.FeedPayload
	if err := decodePayload(cmd, &p); err != nil {
		return err
	}
	recs, err := h.fetch(ctx, p.URL)
	if err != nil {
		return err
	}
	by := cmd.TriggeredBy
	if by == "" {
		by = "worker-feed"
	}
	batch, err := h.engine.SyncBatch(ctx, recs, p.Mapping, by)
	if err != nil {
		return err
	}
	h.logger.InfoWithContext(ctx, "Синхронизация фида завершена",
		interfaces.LogField{Key: "run_id", Value: batch.Run.ID},
		interfaces.LogField{Key: "created", Value: batch.Run.Created},
		interfaces.LogField{Key: "updated", Value: batch.Run.Updated},
		interfaces.LogField{Key: "failed", Value: batch.Run.Failed},
	)
	return nil
}

func (h *Handler) compareFeed(ctx context.Context, cmd messaging.Command) error {
	var p messaging.FeedPayload
	if err := decodePayload(cmd, &p); err != nil {
		return err
	}
	recs, err := h.fetch(ctx, p.URL)
	if err != nil {
		return err
	}
	results, err := h.engine.CompareBatch(ctx, recs, p.Mapping)
	if err != nil {
		return err
	}

	byStatus := make(map[string]int)
	for _, r := range results {
		byStatus[r.Status]++
	}
	h.logger.InfoWithContext(ctx, "Сравнение фида завершено",
		interfaces.LogField{Key: "records", Value: len(results)},
		interfaces.LogField{Key: "statuses", Value: byStatus},
	)
	return nil
}

func (h *Handler) rebuildLookup(ctx context.Context, cmd messaging.Command) error {
	var p messaging.RebuildPayload
	if err := decodePayload(cmd, &p); err != nil {
		return err
	}
	stats, err := h.rebuild.Rebuild(ctx, p.Clear)
	if err != nil {
		return err
	}
	h.logger.InfoWithContext(ctx, "Lookup перестроен",
		interfaces.LogField{Key: "variants", Value: stats.Variants},
		interfaces.LogField{Key: "brands", Value: stats.Brands},
		interfaces.LogField{Key: "suppliers", Value: stats.Suppliers},
	)
	return nil
}
