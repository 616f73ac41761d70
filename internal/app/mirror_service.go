package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/StorefrontFeed/internal/domain"
	"github.com/StorefrontFeed/internal/feed"
	"github.com/StorefrontFeed/internal/infra/metrics"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// PageSink receives the pages applied to mounted feeds.
type PageSink interface {
	Submit(ctx context.Context, feedID string, page feed.Page)
}

// MirrorService copies every applied feed page into the product mirror and
// announces it as a PageEvent. Pages are processed by a fixed worker pool.
type MirrorService struct {
	repo          domain.Repository
	eventProducer domain.EventProducer
	workerCount   int
	jobs          chan mirrorJob
	wg            sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type mirrorJob struct {
	feedID string
	page   feed.Page
}

var _ PageSink = (*MirrorService)(nil)

func NewMirrorService(repo domain.Repository, eventProducer domain.EventProducer, workerCount int) *MirrorService {
	return &MirrorService{
		repo:          repo,
		eventProducer: eventProducer,
		workerCount:   workerCount,
		jobs:          make(chan mirrorJob, workerCount*16), // Buffer to absorb scroll bursts
	}
}

// Start runs the workers until ctx is cancelled, then drains the queue.
func (s *MirrorService) Start(ctx context.Context) {
	slog.Info("Starting mirror service", "workers", s.workerCount)

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	<-ctx.Done()
	slog.Info("Context cancelled, stopping mirror service...")

	s.mu.Lock()
	s.closed = true
	close(s.jobs)
	s.mu.Unlock()

	s.wg.Wait()
	slog.Info("All mirror workers stopped")
}

// Submit queues a page without blocking the feed. When the queue is full the
// page is dropped and counted.
func (s *MirrorService) Submit(_ context.Context, feedID string, page feed.Page) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}

	select {
	case s.jobs <- mirrorJob{feedID: feedID, page: page}:
	default:
		metrics.ProductsMirrored.WithLabelValues(page.Ticket.Filter.Category, "dropped").Add(float64(len(page.Products)))
		slog.Warn("Mirror queue full, dropping page", "feed_id", feedID, "page", page.Ticket.Page)
	}
}

func (s *MirrorService) worker(ctx context.Context, id int) {
	defer s.wg.Done()
	slog.Debug("Mirror worker started", "worker_id", id)

	// Range over channel handles closing correctly: exits loop when closed and empty
	for j := range s.jobs {
		if err := s.processPage(context.WithoutCancel(ctx), j.feedID, j.page); err != nil {
			slog.Error("Mirroring page failed", "feed_id", j.feedID, "page", j.page.Ticket.Page, "error", err)
			metrics.ProductsMirrored.WithLabelValues(j.page.Ticket.Filter.Category, "error").Add(float64(len(j.page.Products)))
		}
	}
	slog.Debug("Mirror worker stopped", "worker_id", id)
}

func (s *MirrorService) processPage(ctx context.Context, feedID string, page feed.Page) error {
	tr := otel.Tracer("storefront-feed")
	ctx, span := tr.Start(ctx, "mirror.processPage")
	defer span.End()

	category := page.Ticket.Filter.Category
	span.SetAttributes(
		attribute.String("feed_id", feedID),
		attribute.String("category", category),
		attribute.Int("page", page.Ticket.Page),
	)

	// Dedup within page
	products := lo.UniqBy(page.Products, func(p domain.Product) string { return p.ID })
	if len(products) == 0 {
		return nil
	}

	// 1. Calculate Hashes
	ids := make([]string, 0, len(products))
	for i := range products {
		if products[i].ContentHash == "" {
			products[i].ContentHash = products[i].ComputeHash()
		}
		if products[i].Category == "" {
			products[i].Category = category
		}
		ids = append(ids, products[i].ID)
	}

	// 2. Fetch Existing Hashes
	existingHashes, err := s.repo.GetContentHashes(ctx, ids)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to fetch hashes: %w", err)
	}

	// 3. Identify Changed Products
	changed := lo.Filter(products, func(p domain.Product, _ int) bool {
		oldHash, exists := existingHashes[p.ID]
		return !exists || oldHash != p.ContentHash
	})
	if skipped := len(products) - len(changed); skipped > 0 {
		metrics.ProductsUnchangedSkipped.WithLabelValues(category).Add(float64(skipped))
	}

	// 4. Bulk Upsert changed products
	if len(changed) > 0 {
		if err := s.repo.BulkUpsert(ctx, changed); err != nil {
			span.RecordError(err)
			return fmt.Errorf("bulk upsert failed: %w", err)
		}
		slog.Debug("Mirrored changed products", "feed_id", feedID, "category", category, "count", len(changed))
	}
	metrics.ProductsMirrored.WithLabelValues(category, "success").Add(float64(len(changed)))

	// 5. Publish page event
	// Initialize published metrics to ensure they appear in Grafana even if 0
	metrics.PageEventsPublished.WithLabelValues(category).Add(0)
	metrics.PublishErrors.WithLabelValues(category).Add(0)

	event := &domain.PageEvent{
		FeedID:     feedID,
		Category:   category,
		Query:      page.Ticket.Filter.Query,
		Page:       page.Ticket.Page,
		ProductIDs: ids,
		LoadedAt:   time.Now().UTC(),
	}
	if err := s.eventProducer.Publish(ctx, event); err != nil {
		// Continue even if publish fails, data is in DB
		slog.Error("Error publishing page event", "feed_id", feedID, "page", page.Ticket.Page, "error", err)
		metrics.PublishErrors.WithLabelValues(category).Inc()
		return nil
	}
	metrics.PageEventsPublished.WithLabelValues(category).Inc()
	return nil
}
