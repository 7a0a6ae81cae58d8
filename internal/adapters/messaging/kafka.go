package messaging

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/metrics"
	"github.com/athebyme/gomarket-platform/catalog-sync/pkg/interfaces"
	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/google/uuid"
)

type subscription struct {
	consumer *kafka.Consumer
	cancel   context.CancelFunc
	done     chan struct{}
}

// KafkaMessaging реализация MessagingPort с использованием Kafka
type KafkaMessaging struct {
	producer       *kafka.Producer
	subs           map[string]*subscription
	consumersMutex sync.Mutex
	brokers        string
	groupID        string
	logger         interfaces.LoggerPort
}

// NewKafkaMessaging создает продюсер; потребители создаются при подписке
func NewKafkaMessaging(brokers []string, groupID string, logger interfaces.LoggerPort) (*KafkaMessaging, error) {
	joined := strings.Join(brokers, ",")
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": joined,
		"client.id":         "catalog-sync-producer",
		"acks":              "all",
		"retries":           5,
		"retry.backoff.ms":  500,
		"compression.type":  "snappy",
		"linger.ms":         10,
		"batch.size":        16384,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	k := &KafkaMessaging{
		producer: producer,
		subs:     make(map[string]*subscription),
		brokers:  joined,
		groupID:  groupID,
		logger:   logger,
	}
	go k.deliveryReports()
	return k, nil
}

// deliveryReports читает отчеты о доставке, иначе канал Events переполнится
func (k *KafkaMessaging) deliveryReports() {
	for ev := range k.producer.Events() {
		m, ok := ev.(*kafka.Message)
		if !ok || m.TopicPartition.Error == nil {
			continue
		}
		topic := ""
		if m.TopicPartition.Topic != nil {
			topic = *m.TopicPartition.Topic
		}
		k.logger.Error("Сообщение не доставлено",
			interfaces.LogField{Key: "topic", Value: topic},
			interfaces.LogField{Key: "key", Value: string(m.Key)},
			interfaces.LogField{Key: "error", Value: m.TopicPartition.Error.Error()})
	}
}

func newKafkaMessage(topic, key string, value []byte) *kafka.Message {
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          value,
		Headers: []kafka.Header{
			{Key: "message_id", Value: []byte(uuid.New().String())},
			{Key: "timestamp", Value: []byte(strconv.FormatInt(time.Now().UnixNano(), 10))},
		},
	}
	if key != "" {
		msg.Key = []byte(key)
	}
	return msg
}

func fromKafkaMessage(msg *kafka.Message) *interfaces.Message {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}

	publishedAt := msg.Timestamp
	if ts, err := strconv.ParseInt(headers["timestamp"], 10, 64); err == nil {
		publishedAt = time.Unix(0, ts)
	}

	topic := ""
	if msg.TopicPartition.Topic != nil {
		topic = *msg.TopicPartition.Topic
	}

	return &interfaces.Message{
		ID:          headers["message_id"],
		Topic:       topic,
		Key:         string(msg.Key),
		Value:       msg.Value,
		Headers:     headers,
		PublishedAt: publishedAt,
	}
}

// Publish публикует сообщение в указанную тему
func (k *KafkaMessaging) Publish(ctx context.Context, topic string, message []byte) error {
	return k.PublishWithKey(ctx, topic, "", message)
}

// PublishWithKey публикует сообщение с указанным ключом
func (k *KafkaMessaging) PublishWithKey(ctx context.Context, topic string, key string, message []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := k.producer.Produce(newKafkaMessage(topic, key, message), nil); err != nil {
		return fmt.Errorf("failed to produce message to %s: %w", topic, err)
	}
	return nil
}

// Subscribe подписывается на тему; handler вызывается последовательно.
// После ошибки обработчика потребитель возвращается к тому же offset и
// доставляет сообщение повторно, пока не исчерпаны MaxRedeliveries;
// затем сообщение пропускается с коммитом
func (k *KafkaMessaging) Subscribe(ctx context.Context, topic string, handler interfaces.MessageHandler) (func() error, error) {
	cfg := &interfaces.ConsumerConfig{
		GroupID:           k.groupID,
		AutoOffsetReset:   "earliest",
		PollTimeout:       100 * time.Millisecond,
		MaxRedeliveries:   3,
		RedeliveryBackoff: time.Second,
	}

	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":     k.brokers,
		"group.id":              cfg.GroupID,
		"auto.offset.reset":     cfg.AutoOffsetReset,
		"enable.auto.commit":    cfg.AutoCommit,
		"session.timeout.ms":    30000,
		"max.poll.interval.ms":  900000,
		"heartbeat.interval.ms": 3000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}
	if err := consumer.Subscribe(topic, nil); err != nil {
		consumer.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	consumeCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{consumer: consumer, cancel: cancel, done: make(chan struct{})}
	id := uuid.New().String()
	k.consumersMutex.Lock()
	k.subs[id] = sub
	k.consumersMutex.Unlock()

	go func() {
		defer close(sub.done)
		k.consume(consumeCtx, consumer, topic, handler, cfg)
	}()

	unsubscribe := func() error {
		k.consumersMutex.Lock()
		_, ok := k.subs[id]
		delete(k.subs, id)
		k.consumersMutex.Unlock()
		if !ok {
			return nil
		}
		return sub.stop()
	}
	return unsubscribe, nil
}

// stop останавливает цикл опроса и закрывает потребителя
func (s *subscription) stop() error {
	s.cancel()
	<-s.done
	return s.consumer.Close()
}

func (k *KafkaMessaging) consume(ctx context.Context, consumer *kafka.Consumer, topic string,
	handler interfaces.MessageHandler, cfg *interfaces.ConsumerConfig) {
	retries := newRedeliveries(cfg.MaxRedeliveries)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ev := consumer.Poll(int(cfg.PollTimeout.Milliseconds()))
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			start := time.Now()
			metrics.ActiveWorkers.Inc()
			err := handler(ctx, fromKafkaMessage(e))
			metrics.ActiveWorkers.Dec()
			metrics.MessageProcessingDuration.WithLabelValues(topic).Observe(time.Since(start).Seconds())

			key := offsetKey(e.TopicPartition)
			if err != nil {
				metrics.MessagesProcessed.WithLabelValues(topic, "error").Inc()
				k.logger.Error("Ошибка обработки сообщения",
					interfaces.LogField{Key: "topic", Value: topic},
					interfaces.LogField{Key: "key", Value: string(e.Key)},
					interfaces.LogField{Key: "offset", Value: key},
					interfaces.LogField{Key: "error", Value: err.Error()})
				if k.redeliver(ctx, consumer, e, retries, cfg) {
					continue
				}
			} else {
				metrics.MessagesProcessed.WithLabelValues(topic, "success").Inc()
			}
			retries.done(key)

			if !cfg.AutoCommit {
				if _, err := consumer.CommitMessage(e); err != nil {
					k.logger.Warn("Не удалось подтвердить сообщение",
						interfaces.LogField{Key: "topic", Value: topic},
						interfaces.LogField{Key: "error", Value: err.Error()})
				}
			}

		case kafka.Error:
			k.logger.Error("Ошибка Kafka",
				interfaces.LogField{Key: "topic", Value: topic},
				interfaces.LogField{Key: "code", Value: e.Code().String()},
				interfaces.LogField{Key: "error", Value: e.Error()})
			if e.Code() == kafka.ErrAllBrokersDown {
				return
			}
		}
	}
}

// redeliver возвращает потребителя к offset сообщения. false означает,
// что попытки исчерпаны и сообщение нужно пропустить
func (k *KafkaMessaging) redeliver(ctx context.Context, consumer *kafka.Consumer, msg *kafka.Message,
	retries *redeliveries, cfg *interfaces.ConsumerConfig) bool {
	key := offsetKey(msg.TopicPartition)
	if !retries.failed(key) {
		k.logger.Error("Сообщение пропущено после повторных доставок",
			interfaces.LogField{Key: "offset", Value: key},
			interfaces.LogField{Key: "attempts", Value: cfg.MaxRedeliveries + 1})
		return false
	}

	if err := consumer.Seek(msg.TopicPartition, 1000); err != nil {
		k.logger.Error("Не удалось вернуться к сообщению, оно будет пропущено",
			interfaces.LogField{Key: "offset", Value: key},
			interfaces.LogField{Key: "error", Value: err.Error()})
		return false
	}

	t := time.NewTimer(cfg.RedeliveryBackoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
	return true
}

// redeliveries считает неудачные попытки обработки по позиции сообщения
type redeliveries struct {
	max      int
	attempts map[string]int
}

func newRedeliveries(max int) *redeliveries {
	return &redeliveries{max: max, attempts: make(map[string]int)}
}

// failed отмечает ошибку; true пока повторная доставка еще разрешена
func (r *redeliveries) failed(key string) bool {
	r.attempts[key]++
	if r.attempts[key] > r.max {
		delete(r.attempts, key)
		return false
	}
	return true
}

func (r *redeliveries) done(key string) {
	delete(r.attempts, key)
}

func offsetKey(tp kafka.TopicPartition) string {
	return fmt.Sprintf("%d@%d", tp.Partition, tp.Offset)
}

// Close закрывает потребителей и дожидается отправки сообщений продюсера
func (k *KafkaMessaging) Close() error {
	k.consumersMutex.Lock()
	subs := k.subs
	k.subs = make(map[string]*subscription)
	k.consumersMutex.Unlock()
	for _, sub := range subs {
		if err := sub.stop(); err != nil {
			k.logger.Warn("Ошибка закрытия потребителя", interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}

	if remaining := k.producer.Flush(15 * 1000); remaining > 0 {
		k.logger.Warn("Не все сообщения отправлены перед закрытием",
			interfaces.LogField{Key: "remaining", Value: remaining})
	}
	k.producer.Close()
	return nil
}
