package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/StorefrontFeed/internal/domain"
	"github.com/segmentio/kafka-go"
)

// Writer is the subset of *kafka.Writer the producer needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaProducer struct {
	writer Writer
}

var _ domain.EventProducer = (*KafkaProducer)(nil)

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{}, // Hash balancer ensures messages with same key go to same partition
		AllowAutoTopicCreation: true,
	}
	slog.Info("Kafka Producer initialized", "brokers", brokers, "topic", topic)
	return &KafkaProducer{writer: w}
}

// NewProducerWithWriter wraps an existing writer.
func NewProducerWithWriter(w Writer) *KafkaProducer {
	return &KafkaProducer{writer: w}
}

func (p *KafkaProducer) Publish(ctx context.Context, event *domain.PageEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	// Keyed by feed so the pages of one feed stay ordered on a partition.
	msg := kafka.Message{
		Key:   []byte(event.FeedID),
		Value: payload,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		slog.Error("Failed to write to kafka", "error", err)
		return err
	}

	slog.Debug("Published page event to Kafka", "feed_id", event.FeedID, "page", event.Page, "products", len(event.ProductIDs))
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
