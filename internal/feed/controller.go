package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/StorefrontFeed/internal/domain"
	"github.com/StorefrontFeed/internal/infra/metrics"
	"github.com/StorefrontFeed/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultPageSize is the number of products requested per page.
const DefaultPageSize = 10

// Page is a page of products that was applied to a feed.
type Page struct {
	Ticket   Ticket
	Products []domain.Product
}

// Snapshot is an immutable copy of a feed's state for rendering.
type Snapshot struct {
	Generation uint64           `json:"generation"`
	Filter     domain.Filter    `json:"filter"`
	Items      []domain.Product `json:"items"`
	Cursor     int              `json:"cursor"`
	Phase      Phase            `json:"phase"`
	InFlight   bool             `json:"inFlight"`
	Exhausted  bool             `json:"exhausted"`
	Error      string           `json:"error,omitempty"`
	Err        error            `json:"-"`

	version uint64
}

// Controller owns one FeedState. All transitions run under its mutex; the
// fetch itself runs in a goroutine and re-enters through complete.
type Controller struct {
	fetcher      domain.PageFetcher
	pageSize     int
	scrollMargin float64
	fetchTimeout time.Duration
	listener     func(Snapshot)
	pageHook     func(context.Context, Page)
	logger       *slog.Logger
	sampler      *logging.ErrorSampler

	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	closed  bool
	version uint64
	wg      sync.WaitGroup

	notifyMu  sync.Mutex
	delivered uint64
}

// NewController creates an idle controller. Nothing is fetched until Initialize.
func NewController(fetcher domain.PageFetcher, opts ...Option) *Controller {
	c := &Controller{
		fetcher:      fetcher,
		pageSize:     DefaultPageSize,
		scrollMargin: DefaultScrollMargin,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sampler == nil {
		c.sampler = logging.NewErrorSampler(10)
	}
	return c
}

// PageSize returns the configured page size.
func (c *Controller) PageSize() int {
	return c.pageSize
}

// Initialize resets the feed for filter and fetches page 0. A request still
// in flight for an earlier filter is cancelled and its result discarded.
func (c *Controller) Initialize(ctx context.Context, filter domain.Filter) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	snap := c.initializeLocked(ctx, filter)
	c.mu.Unlock()

	c.notify(snap)
}

// Retry re-initializes the current filter; page 0 replaces the loaded items.
// It returns false when the feed was never initialized or is closed.
func (c *Controller) Retry(ctx context.Context) bool {
	c.mu.Lock()
	if c.closed || c.state.generation == 0 {
		c.mu.Unlock()
		return false
	}
	snap := c.initializeLocked(ctx, c.state.Filter)
	c.mu.Unlock()

	c.notify(snap)
	return true
}

func (c *Controller) initializeLocked(ctx context.Context, filter domain.Filter) Snapshot {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	t := c.state.Initialize(filter)
	c.logger.Debug("Feed initialized", "filter", filter.String(), "generation", t.Generation)
	c.startLocked(ctx, t)
	return c.snapshotLocked()
}

// OnScrollNearBottom requests the next page. It is a no-op while a fetch is
// in flight or after the feed is exhausted, and reports whether a fetch was issued.
func (c *Controller) OnScrollNearBottom(ctx context.Context) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	t, ok := c.state.ScrollNearBottom()
	if !ok {
		reason := "in_flight"
		switch {
		case c.state.Exhausted():
			reason = "exhausted"
		case c.state.generation == 0:
			reason = "uninitialized"
		}
		c.mu.Unlock()
		metrics.ScrollSignalsIgnored.WithLabelValues(reason).Inc()
		return false
	}
	c.startLocked(ctx, t)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return true
}

// OnScroll forwards a viewport report as a near-bottom signal when the
// remaining scroll distance is within the scroll margin.
func (c *Controller) OnScroll(ctx context.Context, v Viewport) bool {
	if !v.NearBottom(c.scrollMargin) {
		return false
	}
	return c.OnScrollNearBottom(ctx)
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Close unmounts the feed. The in-flight request is cancelled, late results
// are discarded and further events are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Wait blocks until no fetch goroutine of this controller is running.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) startLocked(ctx context.Context, t Ticket) {
	// The fetch outlives the caller's request; keep its values, drop its cancellation.
	base := context.WithoutCancel(ctx)
	var (
		fetchCtx context.Context
		cancel   context.CancelFunc
	)
	if c.fetchTimeout > 0 {
		fetchCtx, cancel = context.WithTimeout(base, c.fetchTimeout)
	} else {
		fetchCtx, cancel = context.WithCancel(base)
	}
	c.cancel = cancel

	c.wg.Add(1)
	go c.fetch(fetchCtx, cancel, t)
}

func (c *Controller) fetch(ctx context.Context, cancel context.CancelFunc, t Ticket) {
	defer c.wg.Done()
	defer cancel()

	tr := otel.Tracer("storefront-feed")
	ctx, span := tr.Start(ctx, "feed.fetchPage")
	defer span.End()
	span.SetAttributes(
		attribute.String("category", t.Filter.Category),
		attribute.Int("page", t.Page),
		attribute.Int64("generation", int64(t.Generation)),
	)

	var (
		products []domain.Product
		err      error
	)
	start := time.Now()

	// Completion always runs so the feed never stays in Fetching.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page fetcher panicked: %v", r)
		}
		metrics.FeedFetchDuration.WithLabelValues(t.Filter.Category).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		c.complete(ctx, t, products, err)
	}()

	products, err = c.fetcher.FetchPage(ctx, t.Filter, t.Page, c.pageSize)
}

func (c *Controller) complete(ctx context.Context, t Ticket, products []domain.Product, err error) {
	var fetchErr *domain.FetchError
	if err != nil {
		fetchErr = &domain.FetchError{Filter: t.Filter, Page: t.Page, Err: err}
	}

	c.mu.Lock()
	applied := false
	if !c.closed {
		if fetchErr != nil {
			applied = c.state.Fail(t, fetchErr)
		} else {
			applied = c.state.Succeed(t, products, c.pageSize)
		}
	}
	if applied {
		c.cancel = nil
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	category := t.Filter.Category
	if !applied {
		metrics.StaleResponsesDiscarded.WithLabelValues(category).Inc()
		c.logger.Debug("Discarding stale page response",
			"filter", t.Filter.String(), "page", t.Page, "generation", t.Generation)
		return
	}

	if fetchErr != nil {
		metrics.FeedFetches.WithLabelValues(category, "error").Inc()
		if ok, n := c.sampler.Sample(category); ok {
			c.logger.Warn("Feed page fetch failed",
				"filter", t.Filter.String(),
				"page", t.Page,
				"occurrences", n,
				"error", err)
		}
		c.notify(snap)
		return
	}

	c.sampler.Reset(category)
	metrics.FeedFetches.WithLabelValues(category, "success").Inc()
	c.logger.Debug("Feed page applied",
		"filter", t.Filter.String(),
		"page", t.Page,
		"products_on_page", len(products),
		"total_products", len(snap.Items),
		"exhausted", snap.Exhausted)

	if c.pageHook != nil && len(products) > 0 {
		c.pageHook(context.WithoutCancel(ctx), Page{Ticket: t, Products: products})
	}
	c.notify(snap)
}

func (c *Controller) snapshotLocked() Snapshot {
	s := &c.state
	c.version++
	snap := Snapshot{
		version:    c.version,
		Generation: s.generation,
		Filter:     s.Filter,
		Items:      append([]domain.Product{}, s.Items...),
		Cursor:     s.Cursor,
		Phase:      s.Phase,
		InFlight:   s.InFlight(),
		Exhausted:  s.Exhausted(),
		Err:        s.Err,
	}
	if s.Err != nil {
		snap.Error = s.Err.Error()
	}
	return snap
}

// notify delivers snap unless a newer snapshot was already delivered.
func (c *Controller) notify(snap Snapshot) {
	if c.listener == nil {
		return
	}
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if snap.version <= c.delivered {
		return
	}
	c.delivered = snap.version
	c.listener(snap)
}
