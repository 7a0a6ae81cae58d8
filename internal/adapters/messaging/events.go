package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/mapping"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/athebyme/gomarket-platform/catalog-sync/pkg/interfaces"
)

const (
	DefaultCommandTopic = "catalog-sync-commands"
	DefaultEventTopic   = "catalog-sync-events"
)

// Типы команд воркера
const (
	CommandSyncSKU       = "sync_sku"
	CommandSyncFeed      = "sync_feed"
	CommandCompareFeed   = "compare_feed"
	CommandRebuildLookup = "rebuild_lookup"
	CommandSyncImages    = "sync_images"
)

const SyncCompletedEvent = "sync_completed"

// Command сообщение шины команд
type Command struct {
	CommandType string          `json:"command_type"`
	Payload     json.RawMessage `json:"payload"`
	TriggeredBy string          `json:"triggered_by,omitempty"`
}

// SyncSKUPayload одна запись PIM и необязательный маппинг
type SyncSKUPayload struct {
	Record  models.PIMRecord `json:"record"`
	Mapping *mapping.Mapping `json:"mapping,omitempty"`
}

// FeedPayload пакетная команда по фиду; пустой URL означает фид по умолчанию
type FeedPayload struct {
	URL     string           `json:"url,omitempty"`
	Mapping *mapping.Mapping `json:"mapping,omitempty"`
}

// SyncImagesPayload сверка изображений по SKU или по идентификатору товара
type SyncImagesPayload struct {
	SKU       string   `json:"sku,omitempty"`
	ProductID int64    `json:"productId,omitempty"`
	URLs      []string `json:"urls"`
}

type RebuildPayload struct {
	Clear bool `json:"clear"`
}

// SyncCompleted событие о результате операции над SKU
type SyncCompleted struct {
	EventType  string    `json:"event_type"`
	Op         string    `json:"op"`
	SKU        string    `json:"sku"`
	Status     string    `json:"status"`
	ProductID  *int64    `json:"product_id,omitempty"`
	VariantID  *int64    `json:"variant_id,omitempty"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewCommand кодирует payload в команду
func NewCommand(commandType string, payload interface{}, triggeredBy string) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal command payload: %w", err)
	}
	return json.Marshal(Command{CommandType: commandType, Payload: raw, TriggeredBy: triggeredBy})
}

// EventPublisher публикует события sync_completed с ключом SKU
type EventPublisher struct {
	bus   interfaces.MessagingPort
	topic string
}

func NewEventPublisher(bus interfaces.MessagingPort, topic string) *EventPublisher {
	if topic == "" {
		topic = DefaultEventTopic
	}
	return &EventPublisher{bus: bus, topic: topic}
}

func (p *EventPublisher) PublishSyncResult(ctx context.Context, op string, result *models.SyncResult) error {
	event := SyncCompleted{
		EventType:  SyncCompletedEvent,
		Op:         op,
		SKU:        result.SKU,
		Status:     result.Status,
		ProductID:  result.ProductID,
		VariantID:  result.VariantID,
		Error:      result.Error,
		OccurredAt: time.Now().UTC(),
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal sync event: %w", err)
	}
	return p.bus.PublishWithKey(ctx, p.topic, result.SKU, body)
}
