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
	"github.com/StorefrontFeed/pkg/logging"
	"github.com/google/uuid"
)

// FeedConfig holds the settings of every mounted feed.
type FeedConfig struct {
	PageSize     int
	ScrollMargin float64
	FetchTimeout time.Duration
	MaxSessions  int
	IdleTTL      time.Duration
}

// FeedService hosts the feed sessions of rendering clients. Each session owns
// one feed.Controller; sessions that are not touched for IdleTTL are unmounted.
type FeedService struct {
	fetcher domain.PageFetcher
	sink    PageSink
	cfg     FeedConfig
	sampler *logging.ErrorSampler
	now     func() time.Time

	mu    sync.Mutex
	feeds map[uuid.UUID]*feedSession
}

type feedSession struct {
	ctrl     *feed.Controller
	lastSeen time.Time
}

// NewFeedService creates the session registry. sink may be nil.
func NewFeedService(fetcher domain.PageFetcher, sink PageSink, cfg FeedConfig) *FeedService {
	if cfg.PageSize <= 0 {
		cfg.PageSize = feed.DefaultPageSize
	}
	if cfg.ScrollMargin < 0 {
		cfg.ScrollMargin = feed.DefaultScrollMargin
	}
	return &FeedService{
		fetcher: fetcher,
		sink:    sink,
		cfg:     cfg,
		sampler: logging.NewErrorSampler(10),
		now:     time.Now,
		feeds:   make(map[uuid.UUID]*feedSession),
	}
}

// Mount validates filter, creates a feed for it and starts the first page fetch.
func (s *FeedService) Mount(ctx context.Context, filter domain.Filter) (uuid.UUID, feed.Snapshot, error) {
	filter = filter.Normalize()
	if err := filter.Validate(); err != nil {
		return uuid.Nil, feed.Snapshot{}, err
	}

	s.mu.Lock()
	if s.cfg.MaxSessions > 0 && len(s.feeds) >= s.cfg.MaxSessions {
		s.mu.Unlock()
		return uuid.Nil, feed.Snapshot{}, fmt.Errorf("%w: limit %d", domain.ErrTooManyFeeds, s.cfg.MaxSessions)
	}
	id := uuid.New()
	ctrl := s.newController(id)
	s.feeds[id] = &feedSession{ctrl: ctrl, lastSeen: s.now()}
	s.mu.Unlock()

	metrics.FeedsActive.Inc()
	slog.Info("Feed mounted", "feed_id", id, "filter", filter.String())

	ctrl.Initialize(ctx, filter)
	return id, ctrl.Snapshot(), nil
}

func (s *FeedService) newController(id uuid.UUID) *feed.Controller {
	opts := []feed.Option{
		feed.WithPageSize(s.cfg.PageSize),
		feed.WithScrollMargin(s.cfg.ScrollMargin),
		feed.WithFetchTimeout(s.cfg.FetchTimeout),
		feed.WithLogger(slog.Default().With("feed_id", id.String())),
		feed.WithErrorSampler(s.sampler),
	}
	if s.sink != nil {
		feedID := id.String()
		opts = append(opts, feed.WithPageHook(func(ctx context.Context, p feed.Page) {
			s.sink.Submit(ctx, feedID, p)
		}))
	}
	return feed.NewController(s.fetcher, opts...)
}

// Get returns the current snapshot of a feed.
func (s *FeedService) Get(id uuid.UUID) (feed.Snapshot, error) {
	ctrl, err := s.touch(id)
	if err != nil {
		return feed.Snapshot{}, err
	}
	return ctrl.Snapshot(), nil
}

// Scroll reports a viewport position. It returns whether a page fetch was issued.
func (s *FeedService) Scroll(ctx context.Context, id uuid.UUID, v feed.Viewport) (bool, feed.Snapshot, error) {
	ctrl, err := s.touch(id)
	if err != nil {
		return false, feed.Snapshot{}, err
	}
	issued := ctrl.OnScroll(ctx, v)
	return issued, ctrl.Snapshot(), nil
}

// Next is a near-bottom signal without a viewport.
func (s *FeedService) Next(ctx context.Context, id uuid.UUID) (bool, feed.Snapshot, error) {
	ctrl, err := s.touch(id)
	if err != nil {
		return false, feed.Snapshot{}, err
	}
	issued := ctrl.OnScrollNearBottom(ctx)
	return issued, ctrl.Snapshot(), nil
}

// Retry reloads the feed's current filter from page 0.
func (s *FeedService) Retry(ctx context.Context, id uuid.UUID) (feed.Snapshot, error) {
	ctrl, err := s.touch(id)
	if err != nil {
		return feed.Snapshot{}, err
	}
	ctrl.Retry(ctx)
	return ctrl.Snapshot(), nil
}

// ChangeFilter resets a mounted feed to a new filter.
func (s *FeedService) ChangeFilter(ctx context.Context, id uuid.UUID, filter domain.Filter) (feed.Snapshot, error) {
	filter = filter.Normalize()
	if err := filter.Validate(); err != nil {
		return feed.Snapshot{}, err
	}
	ctrl, err := s.touch(id)
	if err != nil {
		return feed.Snapshot{}, err
	}
	ctrl.Initialize(ctx, filter)
	return ctrl.Snapshot(), nil
}

// Unmount closes a feed. Its in-flight request is cancelled.
func (s *FeedService) Unmount(id uuid.UUID) error {
	s.mu.Lock()
	sess, ok := s.feeds[id]
	if ok {
		delete(s.feeds, id)
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("feed %s: %w", id, domain.ErrFeedNotFound)
	}
	sess.ctrl.Close()
	metrics.FeedsActive.Dec()
	slog.Info("Feed unmounted", "feed_id", id)
	return nil
}

// Len returns the number of mounted feeds.
func (s *FeedService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.feeds)
}

func (s *FeedService) touch(id uuid.UUID) (*feed.Controller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.feeds[id]
	if !ok {
		return nil, fmt.Errorf("feed %s: %w", id, domain.ErrFeedNotFound)
	}
	sess.lastSeen = s.now()
	return sess.ctrl, nil
}

// Start runs the idle reaper until ctx is cancelled, then unmounts every
// feed and waits for their fetches to finish.
func (s *FeedService) Start(ctx context.Context) {
	interval := s.cfg.IdleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	slog.Info("Starting feed service", "idle_ttl", s.cfg.IdleTTL, "max_sessions", s.cfg.MaxSessions)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Context cancelled, stopping feed service...")
			s.closeAll()
			return
		case <-ticker.C:
			if n := s.ReapIdle(); n > 0 {
				slog.Info("Reaped idle feeds", "count", n)
			}
		}
	}
}

// ReapIdle unmounts feeds idle for longer than IdleTTL and returns how many.
func (s *FeedService) ReapIdle() int {
	if s.cfg.IdleTTL <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.cfg.IdleTTL)

	s.mu.Lock()
	var idle []*feed.Controller
	for id, sess := range s.feeds {
		if sess.lastSeen.Before(cutoff) {
			idle = append(idle, sess.ctrl)
			delete(s.feeds, id)
		}
	}
	s.mu.Unlock()

	for _, ctrl := range idle {
		ctrl.Close()
		metrics.FeedsActive.Dec()
	}
	return len(idle)
}

func (s *FeedService) closeAll() {
	s.mu.Lock()
	ctrls := make([]*feed.Controller, 0, len(s.feeds))
	for id, sess := range s.feeds {
		ctrls = append(ctrls, sess.ctrl)
		delete(s.feeds, id)
	}
	s.mu.Unlock()

	for _, ctrl := range ctrls {
		ctrl.Close()
		metrics.FeedsActive.Dec()
	}
	for _, ctrl := range ctrls {
		ctrl.Wait()
	}
	slog.Info("All feeds closed", "count", len(ctrls))
}
