package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"hostly/internal/shared/config"
	"hostly/pkg/logger"

	"github.com/IBM/sarama"
	"github.com/jonboulle/clockwork"
)

type ConsumerConfig struct {
	Brokers              []string
	GroupID              string
	Topics               []string
	SessionTimeout       time.Duration
	Heartbeat            time.Duration
	MaxProcessingTime    time.Duration
	OffsetOldest         bool
	MaxRetries           int
	RetryBackoffDuration time.Duration
	Workers              int
}

func DefaultConsumerConfig(cfg config.KafkaConfig) *ConsumerConfig {
	return &ConsumerConfig{
		Brokers:              cfg.Brokers,
		GroupID:              cfg.ConsumerGroup,
		Topics:               []string{cfg.Topic},
		SessionTimeout:       30 * time.Second,
		Heartbeat:            3 * time.Second,
		MaxProcessingTime:    5 * time.Minute,
		MaxRetries:           3,
		RetryBackoffDuration: time.Second,
		Workers:              cfg.Workers,
	}
}

// Consumer drains the notification topic and hands each message to a Sender
type Consumer struct {
	consumerGroup sarama.ConsumerGroup
	config        *ConsumerConfig
	handler       *ConsumerGroupHandler
	log           *logger.Logger
	wg            sync.WaitGroup
}

func NewConsumer(cfg *ConsumerConfig, sender Sender, clock clockwork.Clock, log *logger.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Consumer.Group.Session.Timeout = cfg.SessionTimeout
	saramaConfig.Consumer.Group.Heartbeat.Interval = cfg.Heartbeat
	saramaConfig.Consumer.MaxProcessingTime = cfg.MaxProcessingTime
	saramaConfig.Consumer.Return.Errors = true
	saramaConfig.Consumer.Offsets.AutoCommit.Enable = true
	saramaConfig.Consumer.Offsets.AutoCommit.Interval = time.Second
	if cfg.OffsetOldest {
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	}

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	log = log.WithComponent("kafka-consumer")
	return &Consumer{
		consumerGroup: group,
		config:        cfg,
		handler:       NewConsumerGroupHandler(sender, clock, cfg.MaxRetries, cfg.RetryBackoffDuration, log),
		log:           log,
	}, nil
}

// Start launches the worker goroutines; they stop when ctx is cancelled
func (c *Consumer) Start(ctx context.Context) {
	workers := c.config.Workers
	if workers < 1 {
		workers = 1
	}

	go func() {
		for err := range c.consumerGroup.Errors() {
			c.log.Error("Consumer group error", "error", err)
		}
	}()

	for i := 0; i < workers; i++ {
		c.wg.Add(1)
		go func(workerID int) {
			defer c.wg.Done()
			c.runWorker(ctx, workerID)
		}(i)
	}
	c.log.Info("Notification consumers started", "workers", workers, "topics", c.config.Topics)
}

func (c *Consumer) runWorker(ctx context.Context, workerID int) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.consumerGroup.Consume(ctx, c.config.Topics, c.handler); err != nil {
			c.log.Warn("Error consuming messages", "worker", workerID, "error", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
		}
	}
}

// Stop closes the group and waits for the workers
func (c *Consumer) Stop() error {
	err := c.consumerGroup.Close()
	c.wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to close consumer group: %w", err)
	}
	return nil
}

type ConsumerGroupHandler struct {
	sender     Sender
	clock      clockwork.Clock
	maxRetries int
	backoff    time.Duration
	log        *logger.Logger
}

func NewConsumerGroupHandler(sender Sender, clock clockwork.Clock, maxRetries int, backoff time.Duration, log *logger.Logger) *ConsumerGroupHandler {
	return &ConsumerGroupHandler{
		sender:     sender,
		clock:      clock,
		maxRetries: maxRetries,
		backoff:    backoff,
		log:        log,
	}
}

func (h *ConsumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *ConsumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *ConsumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.processMessage(session.Context(), message); err != nil {
				h.log.Error("Error processing notification",
					"topic", message.Topic,
					"partition", message.Partition,
					"offset", message.Offset,
					"error", err,
				)
			}
			// Retries already happened in executeWithRetry
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

func (h *ConsumerGroupHandler) processMessage(ctx context.Context, message *sarama.ConsumerMessage) error {
	var msg Message
	if err := json.Unmarshal(message.Value, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal notification: %w", err)
	}

	if msg.IsExpired(h.clock.Now()) {
		h.log.Debug("Notification expired, skipping", "notification_id", msg.ID.String())
		return nil
	}

	return h.executeWithRetry(ctx, msg)
}

func (h *ConsumerGroupHandler) executeWithRetry(ctx context.Context, msg Message) error {
	var err error
	for attempt := 0; attempt <= h.maxRetries; attempt++ {
		if err = h.sender.Send(ctx, msg); err == nil {
			return nil
		}
		if attempt == h.maxRetries {
			break
		}

		// Exponential backoff
		delay := h.backoff * time.Duration(1<<attempt)
		select {
		case <-h.clock.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("delivery failed after %d attempts: %w", h.maxRetries+1, err)
}
