package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Product is the normalized product card shown in a storefront feed.
type Product struct {
	ID          string    `json:"id" bson:"_id"`
	Title       string    `json:"title" bson:"title"`
	Price       int64     `json:"price" bson:"price"`
	ImageURL    string    `json:"image_url" bson:"image_url"`
	Category    string    `json:"category,omitempty" bson:"category"`
	FetchedAt   time.Time `json:"fetched_at,omitempty" bson:"fetched_at"`
	ContentHash string    `json:"-" bson:"content_hash"`
}

// ComputeHash generates a deterministic hash of the card's visible content.
// FetchedAt and Category are excluded so a re-fetch of the same card hashes identically.
func (p *Product) ComputeHash() string {
	hasher := sha256.New()
	hasher.Write([]byte(p.ID))
	hasher.Write([]byte(p.Title))
	hasher.Write([]byte(strconv.FormatInt(p.Price, 10)))
	hasher.Write([]byte(p.ImageURL))
	return hex.EncodeToString(hasher.Sum(nil))
}

// PageEvent is published for every feed page applied to a feed session.
type PageEvent struct {
	FeedID     string    `json:"feed_id"`
	Category   string    `json:"category"`
	Query      string    `json:"query,omitempty"`
	Page       int       `json:"page"`
	ProductIDs []string  `json:"product_ids"`
	LoadedAt   time.Time `json:"loaded_at"`
}

// PageFetcher is the data boundary of a feed: it returns one page of products
// for the filter. page is zero-based.
type PageFetcher interface {
	FetchPage(ctx context.Context, filter Filter, page, pageSize int) ([]Product, error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc func(ctx context.Context, filter Filter, page, pageSize int) ([]Product, error)

func (f PageFetcherFunc) FetchPage(ctx context.Context, filter Filter, page, pageSize int) ([]Product, error) {
	return f(ctx, filter, page, pageSize)
}

// ProductWriter handles mirror persistence operations.
type ProductWriter interface {
	BulkUpsert(ctx context.Context, products []Product) error
	RecordImpressions(ctx context.Context, ids []string) error
}

// ProductReader handles mirror lookups.
type ProductReader interface {
	GetByID(ctx context.Context, id string) (*Product, error)
}

// HashReader handles content hash retrieval for deduplication.
type HashReader interface {
	GetContentHashes(ctx context.Context, ids []string) (map[string]string, error)
}

// Repository is the product mirror.
type Repository interface {
	ProductWriter
	ProductReader
	HashReader
}

// EventProducer publishes page events to a queue.
type EventProducer interface {
	Publish(ctx context.Context, event *PageEvent) error
	Close() error
}
