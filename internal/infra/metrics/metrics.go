package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FeedFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_page_fetches_total",
			Help: "The total number of feed page fetches by outcome",
		},
		[]string{"category", "status"},
	)

	FeedFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_page_fetch_duration_seconds",
			Help:    "Duration of feed page fetches",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"category"},
	)

	StaleResponsesDiscarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_stale_responses_discarded_total",
			Help: "Page responses discarded because their filter or cursor is no longer active",
		},
		[]string{"category"},
	)

	ScrollSignalsIgnored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_scroll_signals_ignored_total",
			Help: "Near-bottom signals ignored because a fetch is in flight or the feed is exhausted",
		},
		[]string{"reason"},
	)

	FeedsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feed_sessions_active",
			Help: "Number of mounted feed sessions",
		},
	)

	CatalogRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_request_retries_total",
			Help: "Retried catalog listing requests",
		},
		[]string{"category"},
	)

	ProductsMirrored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "products_mirrored_total",
			Help: "Products written to the mirror by outcome",
		},
		[]string{"category", "status"},
	)

	ProductsUnchangedSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "products_unchanged_skipped_total",
			Help: "Products not re-published because their content hash did not change",
		},
		[]string{"category"},
	)

	PageEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "page_events_published_total",
			Help: "Page events published to Kafka",
		},
		[]string{"category"},
	)

	PublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "page_event_publish_errors_total",
			Help: "Page events that failed to publish",
		},
		[]string{"category"},
	)

	DLQMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_published_total",
			Help: "Total number of messages published to DLQ",
		},
		[]string{"category"},
	)

	ImpressionSyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "impression_sync_duration_seconds",
			Help:    "Duration of impression counter updates",
			Buckets: prometheus.DefBuckets,
		},
	)

	ImpressionSyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "impression_sync_errors_total",
			Help: "Total number of impression sync errors",
		},
		[]string{"category"},
	)

	ImpressionSyncSuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "impression_events_processed_total",
			Help: "Total number of page events applied to impression counters",
		},
		[]string{"category"},
	)
)
