package interfaces

import (
	"context"
	"time"
)

// Message представляет сообщение шины команд и событий
type Message struct {
	ID          string            `json:"id"`
	Topic       string            `json:"topic"`
	Key         string            `json:"key"`
	Value       []byte            `json:"value"`
	Headers     map[string]string `json:"headers"`
	PublishedAt time.Time         `json:"published_at"`
}

// MessageHandler определяет функцию обработчика сообщений
type MessageHandler func(ctx context.Context, msg *Message) error

// ConsumerConfig содержит настройки для подписчика на сообщения
type ConsumerConfig struct {
	GroupID            string        // ID группы потребителей
	AutoOffsetReset    string        // earliest | latest
	AutoCommit         bool          // Автоматически подтверждать полученные сообщения
	AutoCommitInterval time.Duration // Интервал автоматического подтверждения
	PollTimeout        time.Duration // Таймаут для опроса новых сообщений
	MaxRedeliveries    int           // Повторные доставки после ошибки обработчика
	RedeliveryBackoff  time.Duration // Пауза перед повторной доставкой
}

// MessagingPort определяет интерфейс брокера сообщений
type MessagingPort interface {
	Publish(ctx context.Context, topic string, message []byte) error

	// PublishWithKey публикует сообщение с ключом партиционирования (SKU)
	PublishWithKey(ctx context.Context, topic string, key string, message []byte) error

	Subscribe(ctx context.Context, topic string, handler MessageHandler) (func() error, error)

	Close() error
}
