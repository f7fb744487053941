package notifications

import (
	"context"
	"fmt"
	"time"

	"hostly/internal/shared/config"
	"hostly/pkg/logger"

	"github.com/IBM/sarama"
)

// KafkaProducerConfig contains configuration for the Kafka notification producer
type KafkaProducerConfig struct {
	Brokers          []string
	Topic            string
	RetryMax         int
	Timeout          time.Duration
	RequiredAcks     sarama.RequiredAcks
	CompressionType  sarama.CompressionCodec
	IdempotentWrites bool
	MaxMessageBytes  int
}

// DefaultKafkaProducerConfig returns a default producer configuration
func DefaultKafkaProducerConfig(cfg config.KafkaConfig) *KafkaProducerConfig {
	return &KafkaProducerConfig{
		Brokers:          cfg.Brokers,
		Topic:            cfg.Topic,
		RetryMax:         3,
		Timeout:          10 * time.Second,
		RequiredAcks:     sarama.WaitForAll, // Wait for all in-sync replicas
		CompressionType:  sarama.CompressionSnappy,
		IdempotentWrites: true,
		MaxMessageBytes:  1000000, // 1MB
	}
}

// SaramaConfig translates the producer settings into a sarama config
func (c *KafkaProducerConfig) SaramaConfig() *sarama.Config {
	saramaConfig := sarama.NewConfig()

	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = c.RequiredAcks
	saramaConfig.Producer.Compression = c.CompressionType
	saramaConfig.Producer.Retry.Max = c.RetryMax
	saramaConfig.Producer.Timeout = c.Timeout
	saramaConfig.Producer.Idempotent = c.IdempotentWrites
	saramaConfig.Producer.MaxMessageBytes = c.MaxMessageBytes

	if c.IdempotentWrites {
		saramaConfig.Net.MaxOpenRequests = 1
	}

	// Keep one recipient's messages ordered on one partition
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner
	return saramaConfig
}

// KafkaSender publishes rendered messages to the notification topic; the
// consumer workers pick them up and deliver them by email.
type KafkaSender struct {
	producer sarama.SyncProducer
	topic    string
	log      *logger.Logger
}

// NewKafkaSender dials the brokers and returns a ready sender
func NewKafkaSender(cfg *KafkaProducerConfig, log *logger.Logger) (*KafkaSender, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, cfg.SaramaConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return NewKafkaSenderWithProducer(producer, cfg.Topic, log), nil
}

func NewKafkaSenderWithProducer(producer sarama.SyncProducer, topic string, log *logger.Logger) *KafkaSender {
	return &KafkaSender{
		producer: producer,
		topic:    topic,
		log:      log.WithComponent("kafka-producer"),
	}
}

func (ks *KafkaSender) Send(ctx context.Context, msg Message) error {
	payload, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	partition, offset, err := ks.producer.SendMessage(&sarama.ProducerMessage{
		Topic:     ks.topic,
		Key:       sarama.StringEncoder(msg.GetPartitionKey()),
		Value:     sarama.ByteEncoder(payload),
		Headers:   createHeaders(msg),
		Timestamp: msg.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to send notification to Kafka: %w", err)
	}

	ks.log.DebugContext(ctx, "Notification published",
		"topic", ks.topic,
		"partition", partition,
		"offset", offset,
		"type", string(msg.Type),
	)
	return nil
}

func (ks *KafkaSender) Close() error {
	if err := ks.producer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	return nil
}

func createHeaders(msg Message) []sarama.RecordHeader {
	headers := []sarama.RecordHeader{
		{Key: []byte("notification_id"), Value: []byte(msg.ID.String())},
		{Key: []byte("notification_type"), Value: []byte(msg.Type)},
		{Key: []byte("priority"), Value: []byte(msg.Priority)},
		{Key: []byte("producer"), Value: []byte("hostly-notifications")},
		{Key: []byte("created_at"), Value: []byte(msg.CreatedAt.Format(time.RFC3339))},
	}

	if msg.EventID != nil {
		headers = append(headers, sarama.RecordHeader{Key: []byte("event_id"), Value: []byte(msg.EventID.String())})
	}
	if msg.BookingID != nil {
		headers = append(headers, sarama.RecordHeader{Key: []byte("booking_id"), Value: []byte(msg.BookingID.String())})
	}
	if msg.WaitlistEntryID != nil {
		headers = append(headers, sarama.RecordHeader{Key: []byte("waitlist_entry_id"), Value: []byte(msg.WaitlistEntryID.String())})
	}
	if msg.ExpiresAt != nil {
		headers = append(headers, sarama.RecordHeader{Key: []byte("expires_at"), Value: []byte(msg.ExpiresAt.Format(time.RFC3339))})
	}
	return headers
}
