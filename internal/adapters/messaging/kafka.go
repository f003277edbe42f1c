package messaging

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/athebyme/gomarket-sourcing/pkg/errors"
	"github.com/athebyme/gomarket-sourcing/pkg/interfaces"
	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/google/uuid"
)

// KafkaMessaging реализация MessagingPort с использованием Kafka
type KafkaMessaging struct {
	producer       *kafka.Producer
	consumers      map[string]*subscription
	consumersMutex sync.Mutex
	brokers        string
	consumerConfig interfaces.ConsumerConfig
	logger         interfaces.LoggerPort
	closed         bool
	closedMutex    sync.RWMutex
}

type subscription struct {
	consumer *kafka.Consumer
	cancel   context.CancelFunc
	done     chan struct{}
}

// stop останавливает цикл чтения и закрывает потребителя
func (s *subscription) stop() error {
	s.cancel()
	<-s.done
	return s.consumer.Close()
}

// NewKafkaMessaging создает новый экземпляр KafkaMessaging
func NewKafkaMessaging(brokers []string, producerConfig interfaces.ProducerConfig, consumerConfig interfaces.ConsumerConfig, logger interfaces.LoggerPort) (*KafkaMessaging, error) {
	bootstrap := strings.Join(brokers, ",")

	configMap := &kafka.ConfigMap{
		"bootstrap.servers":            bootstrap,
		"client.id":                    producerConfig.ClientID,
		"acks":                         "all", // максимальная надежность
		"retries":                      producerConfig.MaxRetries,
		"retry.backoff.ms":             int(producerConfig.RetryBackoff.Milliseconds()),
		"compression.type":             producerConfig.Compression,
		"linger.ms":                    producerConfig.LingerMs,
		"batch.size":                   producerConfig.BatchSize,
		"message.max.bytes":            1000000,
		"queue.buffering.max.messages": 100000,
		"enable.idempotence":           producerConfig.Idempotent,
	}

	producer, err := kafka.NewProducer(configMap)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Kafka producer: %w", err)
	}

	if consumerConfig.PollTimeout <= 0 {
		consumerConfig.PollTimeout = 100 * time.Millisecond
	}
	if consumerConfig.AutoOffsetReset == "" {
		consumerConfig.AutoOffsetReset = "latest"
	}

	return &KafkaMessaging{
		producer:       producer,
		consumers:      make(map[string]*subscription),
		brokers:        bootstrap,
		consumerConfig: consumerConfig,
		logger:         logger,
	}, nil
}

// messageToKafkaMessage преобразует сообщение в kafka.Message
func messageToKafkaMessage(topic string, message []byte, key string, headers map[string]string) *kafka.Message {
	kafkaHeaders := make([]kafka.Header, 0, len(headers)+2)
	for k, v := range headers {
		kafkaHeaders = append(kafkaHeaders, kafka.Header{Key: k, Value: []byte(v)})
	}

	// служебные заголовки
	kafkaHeaders = append(kafkaHeaders,
		kafka.Header{Key: "message_id", Value: []byte(uuid.New().String())},
		kafka.Header{Key: "timestamp", Value: []byte(strconv.FormatInt(time.Now().UnixNano(), 10))},
	)

	var keyBytes []byte
	if key != "" {
		keyBytes = []byte(key)
	}

	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          message,
		Key:            keyBytes,
		Headers:        kafkaHeaders,
	}
}

// kafkaMessageToMessage преобразует kafka.Message в Message
func kafkaMessageToMessage(msg *kafka.Message) *interfaces.Message {
	headers := make(map[string]string, len(msg.Headers))
	for _, header := range msg.Headers {
		headers[header.Key] = string(header.Value)
	}

	var key string
	if msg.Key != nil {
		key = string(msg.Key)
	}

	publishedAt := msg.Timestamp
	if ts, ok := headers["timestamp"]; ok {
		if nanos, err := strconv.ParseInt(ts, 10, 64); err == nil {
			publishedAt = time.Unix(0, nanos)
		}
	}
	if publishedAt.IsZero() {
		publishedAt = time.Now()
	}

	var topic string
	if msg.TopicPartition.Topic != nil {
		topic = *msg.TopicPartition.Topic
	}

	return &interfaces.Message{
		ID:          headers["message_id"],
		Topic:       topic,
		Key:         key,
		Value:       msg.Value,
		Headers:     headers,
		PublishedAt: publishedAt,
	}
}

func (k *KafkaMessaging) isClosed() bool {
	k.closedMutex.RLock()
	defer k.closedMutex.RUnlock()
	return k.closed
}

// Publish публикует сообщение в указанную тему
func (k *KafkaMessaging) Publish(ctx context.Context, topic string, message []byte) error {
	return k.produce(ctx, messageToKafkaMessage(topic, message, "", nil))
}

// PublishWithKey публикует сообщение с указанным ключом
func (k *KafkaMessaging) PublishWithKey(ctx context.Context, topic string, key string, message []byte) error {
	return k.produce(ctx, messageToKafkaMessage(topic, message, key, nil))
}

// produce отправляет сообщение и ждет подтверждения доставки
func (k *KafkaMessaging) produce(ctx context.Context, msg *kafka.Message) error {
	if k.isClosed() {
		return errors.ErrMessagingClosed
	}

	delivery := make(chan kafka.Event, 1)
	if err := k.producer.Produce(msg, delivery); err != nil {
		return fmt.Errorf("ошибка отправки в %s: %w", *msg.TopicPartition.Topic, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case ev := <-delivery:
		m, ok := ev.(*kafka.Message)
		if !ok {
			return fmt.Errorf("неожиданное событие доставки: %v", ev)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("ошибка доставки в %s: %w", *msg.TopicPartition.Topic, m.TopicPartition.Error)
		}
		return nil
	}
}

// Subscribe подписывается на тему; сообщения обрабатываются в отдельной горутине до отмены ctx
func (k *KafkaMessaging) Subscribe(ctx context.Context, topic string, handler interfaces.MessageHandler) (func() error, error) {
	if k.isClosed() {
		return nil, errors.ErrMessagingClosed
	}

	config := k.consumerConfig
	handlerID := uuid.New().String()

	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":        k.brokers,
		"group.id":                 config.GroupID,
		"auto.offset.reset":        config.AutoOffsetReset,
		"enable.auto.commit":       config.AutoCommit,
		"auto.commit.interval.ms":  int(config.AutoCommitInterval.Milliseconds()),
		"session.timeout.ms":       30000,
		"max.poll.interval.ms":     300000,
		"heartbeat.interval.ms":    3000,
		"fetch.min.bytes":          1,
		"fetch.wait.max.ms":        500,
		"reconnect.backoff.ms":     50,
		"reconnect.backoff.max.ms": 10000,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Kafka consumer: %w", err)
	}

	if err := consumer.Subscribe(topic, nil); err != nil {
		consumer.Close()
		return nil, fmt.Errorf("ошибка подписки на топик %s: %w", topic, err)
	}

	consumeCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{consumer: consumer, cancel: cancel, done: make(chan struct{})}

	k.consumersMutex.Lock()
	k.consumers[handlerID] = sub
	k.consumersMutex.Unlock()

	go func() {
		defer close(sub.done)
		k.consumeMessages(consumeCtx, consumer, topic, handler, config)
	}()

	unsubscribe := func() error {
		k.consumersMutex.Lock()
		_, ok := k.consumers[handlerID]
		delete(k.consumers, handlerID)
		k.consumersMutex.Unlock()

		if !ok {
			return nil
		}
		return sub.stop()
	}

	return unsubscribe, nil
}

// consumeMessages читает сообщения из Kafka до отмены контекста
func (k *KafkaMessaging) consumeMessages(ctx context.Context, consumer *kafka.Consumer, topic string, handler interfaces.MessageHandler, config interfaces.ConsumerConfig) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ev := consumer.Poll(int(config.PollTimeout.Milliseconds()))
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			msg := kafkaMessageToMessage(e)

			if err := handler(ctx, msg); err != nil {
				k.logger.Error("Ошибка обработки сообщения",
					interfaces.LogField{Key: "topic", Value: topic},
					interfaces.LogField{Key: "message_id", Value: msg.ID},
					interfaces.LogField{Key: "error", Value: err.Error()},
				)
				continue
			}

			if !config.AutoCommit {
				if _, err := consumer.CommitMessage(e); err != nil {
					k.logger.Error("Ошибка подтверждения сообщения",
						interfaces.LogField{Key: "topic", Value: topic},
						interfaces.LogField{Key: "error", Value: err.Error()},
					)
				}
			}

		case kafka.Error:
			k.logger.Warn("Ошибка Kafka",
				interfaces.LogField{Key: "topic", Value: topic},
				interfaces.LogField{Key: "code", Value: e.Code().String()},
				interfaces.LogField{Key: "error", Value: e.Error()},
			)
			if e.Code() == kafka.ErrAllBrokersDown {
				return
			}

		case kafka.PartitionEOF:
			k.logger.Debug("Достигнут конец партиции", interfaces.LogField{Key: "topic", Value: topic})

		default:
		}
	}
}

// EnsureTopics создает недостающие темы
func (k *KafkaMessaging) EnsureTopics(ctx context.Context, partitions, replicationFactor int, topics ...string) error {
	adminClient, err := kafka.NewAdminClientFromProducer(k.producer)
	if err != nil {
		return fmt.Errorf("ошибка создания Kafka admin client: %w", err)
	}
	defer adminClient.Close()

	specs := make([]kafka.TopicSpecification, 0, len(topics))
	for _, topic := range topics {
		specs = append(specs, kafka.TopicSpecification{
			Topic:             topic,
			NumPartitions:     partitions,
			ReplicationFactor: replicationFactor,
		})
	}

	result, err := adminClient.CreateTopics(ctx, specs, kafka.SetAdminOperationTimeout(30*time.Second))
	if err != nil {
		return fmt.Errorf("ошибка создания топиков: %w", err)
	}

	for _, r := range result {
		if code := r.Error.Code(); code != kafka.ErrNoError && code != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("ошибка создания топика %s: %s", r.Topic, r.Error.String())
		}
	}
	return nil
}

// Close останавливает потребителей и дожидается отправки сообщений
func (k *KafkaMessaging) Close() error {
	k.closedMutex.Lock()
	if k.closed {
		k.closedMutex.Unlock()
		return nil
	}
	k.closed = true
	k.closedMutex.Unlock()

	k.consumersMutex.Lock()
	subs := k.consumers
	k.consumers = make(map[string]*subscription)
	k.consumersMutex.Unlock()

	for _, sub := range subs {
		if err := sub.stop(); err != nil {
			k.logger.Warn("Ошибка закрытия Kafka consumer", interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}

	k.producer.Flush(15 * 1000) // ждем до 15 секунд отправки всех сообщений
	k.producer.Close()

	return nil
}
