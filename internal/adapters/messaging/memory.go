package messaging

import (
	"context"
	"sync"
	"time"

	"github.com/athebyme/gomarket-platform/catalog-sync/pkg/interfaces"
	"github.com/google/uuid"
)

// MemoryBus шина в памяти процесса для запуска без Kafka и для тестов.
// Подписчики получают только сообщения, опубликованные после подписки
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[string]map[string]interfaces.MessageHandler
	sent     []*interfaces.Message
	logger   interfaces.LoggerPort
}

func NewMemoryBus(logger interfaces.LoggerPort) *MemoryBus {
	return &MemoryBus{
		handlers: make(map[string]map[string]interfaces.MessageHandler),
		logger:   logger,
	}
}

func (b *MemoryBus) Publish(ctx context.Context, topic string, message []byte) error {
	return b.PublishWithKey(ctx, topic, "", message)
}

// PublishWithKey доставляет сообщение подписчикам синхронно
func (b *MemoryBus) PublishWithKey(ctx context.Context, topic string, key string, message []byte) error {
	msg := &interfaces.Message{
		ID:          uuid.New().String(),
		Topic:       topic,
		Key:         key,
		Value:       append([]byte(nil), message...),
		Headers:     map[string]string{},
		PublishedAt: time.Now(),
	}

	b.mu.Lock()
	b.sent = append(b.sent, msg)
	handlers := make([]interfaces.MessageHandler, 0, len(b.handlers[topic]))
	for _, h := range b.handlers[topic] {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		if err := h(ctx, msg); err != nil {
			b.logger.Error("Ошибка обработки сообщения",
				interfaces.LogField{Key: "topic", Value: topic},
				interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, topic string, handler interfaces.MessageHandler) (func() error, error) {
	id := uuid.New().String()
	b.mu.Lock()
	if b.handlers[topic] == nil {
		b.handlers[topic] = make(map[string]interfaces.MessageHandler)
	}
	b.handlers[topic][id] = handler
	b.mu.Unlock()

	return func() error {
		b.mu.Lock()
		delete(b.handlers[topic], id)
		b.mu.Unlock()
		return nil
	}, nil
}

// Sent опубликованные сообщения темы
func (b *MemoryBus) Sent(topic string) []*interfaces.Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []*interfaces.Message
	for _, m := range b.sent {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

func (b *MemoryBus) Close() error { return nil }
