package factory

import (
	"errors"
	"fmt"

	"github.com/StorefrontFeed/internal/app"
	"github.com/StorefrontFeed/internal/domain"
	"github.com/StorefrontFeed/internal/infra/catalog"
	"github.com/StorefrontFeed/internal/infra/queue"
	"github.com/StorefrontFeed/internal/infra/repository"
	"github.com/StorefrontFeed/pkg/config"
	"go.mongodb.org/mongo-driver/mongo"
)

// NewMongoRepository creates the product mirror repository.
func NewMongoRepository(client *mongo.Client, cfg *config.Config) (domain.Repository, error) {
	if cfg.MongoDBName == "" {
		return nil, errors.New("mongo database name not configured")
	}
	if cfg.MongoColl == "" {
		return nil, errors.New("mongo collection name not configured")
	}
	return repository.NewMongoRepository(client, cfg.MongoDBName, cfg.MongoColl)
}

// NewEventProducer wraps the Kafka producer as an EventProducer.
func NewEventProducer(p *queue.KafkaProducer) (domain.EventProducer, error) {
	if p == nil {
		return nil, errors.New("kafka producer is nil")
	}
	return p, nil
}

// NewMirrorService creates the page mirroring worker pool.
func NewMirrorService(repo domain.Repository, eventProducer domain.EventProducer, cfg *config.Config) (*app.MirrorService, error) {
	if repo == nil {
		return nil, errors.New("repository is nil")
	}
	if eventProducer == nil {
		return nil, errors.New("event producer is nil")
	}
	if cfg.MirrorWorkers <= 0 || cfg.MirrorWorkers > 100 {
		return nil, fmt.Errorf("invalid mirror worker count: %d (must be 1-100)", cfg.MirrorWorkers)
	}
	return app.NewMirrorService(repo, eventProducer, cfg.MirrorWorkers), nil
}

// NewFeedService creates the feed session registry with validation.
func NewFeedService(client *catalog.Client, mirror *app.MirrorService, cfg *config.Config) (*app.FeedService, error) {
	if client == nil {
		return nil, errors.New("catalog client is nil")
	}
	if cfg.FeedPageSize < 1 || cfg.FeedPageSize > 100 {
		return nil, fmt.Errorf("invalid feed page size: %d (must be 1-100)", cfg.FeedPageSize)
	}
	if cfg.FeedScrollMargin < 0 {
		return nil, fmt.Errorf("invalid scroll margin: %v", cfg.FeedScrollMargin)
	}
	if cfg.FeedMaxSessions < 1 {
		return nil, fmt.Errorf("invalid max feed sessions: %d", cfg.FeedMaxSessions)
	}

	return app.NewFeedService(client, mirror, app.FeedConfig{
		PageSize:     cfg.FeedPageSize,
		ScrollMargin: cfg.FeedScrollMargin,
		FetchTimeout: cfg.FeedFetchTimeout,
		MaxSessions:  cfg.FeedMaxSessions,
		IdleTTL:      cfg.FeedIdleTTL,
	}), nil
}

// NewImpressionSyncService creates the impression counter consumer.
func NewImpressionSyncService(consumer *queue.KafkaConsumer, repo domain.Repository) (*app.ImpressionSyncService, error) {
	if consumer == nil {
		return nil, errors.New("kafka consumer is nil")
	}
	if repo == nil {
		return nil, errors.New("repository is nil")
	}
	return app.NewImpressionSyncService(consumer, repo), nil
}

// NewReadinessWaiter creates the dependency readiness checker.
func NewReadinessWaiter(mongoClient *mongo.Client, client *catalog.Client, cfg *config.Config) *app.ReadinessWaiter {
	return app.NewReadinessWaiter(mongoClient, cfg.KafkaBrokers, cfg.KafkaTopic, client)
}
