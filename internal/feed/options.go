package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/StorefrontFeed/pkg/logging"
)

// Option configures a Controller.
type Option func(*Controller)

// WithPageSize sets the number of products requested per page.
func WithPageSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithScrollMargin sets the near-bottom threshold used by OnScroll, in pixels.
func WithScrollMargin(px float64) Option {
	return func(c *Controller) {
		if px >= 0 {
			c.scrollMargin = px
		}
	}
}

// WithFetchTimeout bounds every page fetch. Zero means no bound.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.fetchTimeout = d
	}
}

// WithListener registers a callback receiving a snapshot after every transition.
// Snapshots arrive in transition order; one superseded before delivery is
// skipped. Calls are serialized and must not re-enter the controller.
func WithListener(fn func(Snapshot)) Option {
	return func(c *Controller) {
		c.listener = fn
	}
}

// WithPageHook registers a callback for every non-empty page applied to the feed.
func WithPageHook(fn func(context.Context, Page)) Option {
	return func(c *Controller) {
		c.pageHook = fn
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithErrorSampler shares a fetch error sampler between controllers.
func WithErrorSampler(s *logging.ErrorSampler) Option {
	return func(c *Controller) {
		c.sampler = s
	}
}
