package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/StorefrontFeed/internal/domain"
	"github.com/StorefrontFeed/internal/infra/metrics"
	"github.com/segmentio/kafka-go"
)

// Reader is the subset of *kafka.Reader the consumer needs.
type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type KafkaConsumer struct {
	reader      Reader
	dlqProducer domain.EventProducer
}

func NewKafkaConsumer(brokers []string, topic string, groupID string, dlqProducer domain.EventProducer) *KafkaConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	slog.Info("Kafka Consumer initialized", "brokers", brokers, "topic", topic, "group", groupID)
	return NewConsumerWithReader(r, dlqProducer)
}

// NewConsumerWithReader wraps an existing reader.
func NewConsumerWithReader(r Reader, dlqProducer domain.EventProducer) *KafkaConsumer {
	return &KafkaConsumer{
		reader:      r,
		dlqProducer: dlqProducer,
	}
}

type MessageHandler func(ctx context.Context, event *domain.PageEvent) error

// Start reads page events until ctx is cancelled or the reader fails.
// Events the handler rejects are forwarded to the dead letter queue.
func (c *KafkaConsumer) Start(ctx context.Context, handler MessageHandler) {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				slog.Error("Error reading kafka message", "error", err)
			}
			break
		}

		var event domain.PageEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			slog.Error("Error unmarshaling page event", "error", err)
			continue
		}

		slog.Debug("Received page event from Kafka", "feed_id", event.FeedID, "partition", m.Partition)

		if err := handler(ctx, &event); err != nil {
			slog.Error("Error handling page event", "feed_id", event.FeedID, "page", event.Page, "error", err)

			// Publish to Dead Letter Queue
			if c.dlqProducer != nil {
				slog.Info("Publishing failed event to DLQ", "feed_id", event.FeedID)
				if dlqErr := c.dlqProducer.Publish(ctx, &event); dlqErr != nil {
					slog.Error("Failed to publish to DLQ", "feed_id", event.FeedID, "error", dlqErr)
				} else {
					metrics.DLQMessagesPublished.WithLabelValues(event.Category).Inc()
				}
			}
		}
	}
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
