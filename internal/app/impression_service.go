package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/StorefrontFeed/internal/domain"
	"github.com/StorefrontFeed/internal/infra/metrics"
	"github.com/StorefrontFeed/internal/infra/queue"
)

// EventConsumer delivers page events to a handler until its context ends.
type EventConsumer interface {
	Start(ctx context.Context, handler queue.MessageHandler)
	Close() error
}

// ImpressionSyncService counts how often each product was shown by
// applying page events to the mirror's impression counters.
type ImpressionSyncService struct {
	consumer EventConsumer
	repo     domain.ProductWriter
}

func NewImpressionSyncService(consumer EventConsumer, repo domain.ProductWriter) *ImpressionSyncService {
	return &ImpressionSyncService{
		consumer: consumer,
		repo:     repo,
	}
}

func (s *ImpressionSyncService) Start(ctx context.Context) {
	slog.Info("Starting impression sync service (Kafka Consumer)")
	go s.consumer.Start(ctx, s.handleEvent)
}

func (s *ImpressionSyncService) handleEvent(ctx context.Context, event *domain.PageEvent) error {
	start := time.Now()
	slog.Debug("Consuming page event", "feed_id", event.FeedID, "page", event.Page, "products", len(event.ProductIDs))

	err := s.repo.RecordImpressions(ctx, event.ProductIDs)
	metrics.ImpressionSyncDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		slog.Error("Failed to record impressions", "feed_id", event.FeedID, "error", err)
		metrics.ImpressionSyncErrors.WithLabelValues(event.Category).Inc()
		return err
	}

	metrics.ImpressionSyncSuccess.WithLabelValues(event.Category).Inc()
	return nil
}

func (s *ImpressionSyncService) Stop() error {
	return s.consumer.Close()
}
