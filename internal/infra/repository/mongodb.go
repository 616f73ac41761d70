package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/StorefrontFeed/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepository is the product mirror. Documents are keyed by product id
// and carry an impressions counter next to the card fields.
type MongoRepository struct {
	db         *mongo.Database
	collection *mongo.Collection
}

var _ domain.Repository = (*MongoRepository)(nil)

func NewMongoRepository(client *mongo.Client, dbName, collectionName string) (*MongoRepository, error) {
	db := client.Database(dbName)
	repo := &MongoRepository{
		db:         db,
		collection: db.Collection(collectionName),
	}

	if err := repo.createIndexes(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return repo, nil
}

func (r *MongoRepository) createIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "category", Value: 1},
				{Key: "fetched_at", Value: -1},
			},
			Options: options.Index().SetName("category_fetched_at_idx"),
		},
		{
			Keys: bson.D{
				{Key: "impressions", Value: -1},
			},
			Options: options.Index().SetName("impressions_idx"),
		},
	}

	opts := options.CreateIndexes().SetMaxTime(10 * time.Second)
	_, err := r.collection.Indexes().CreateMany(ctx, models, opts)
	return err
}

func (r *MongoRepository) BulkUpsert(ctx context.Context, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(products))
	for _, product := range products {
		filter := bson.M{"_id": product.ID}
		update := bson.M{"$set": product}
		model := mongo.NewUpdateOneModel().SetFilter(filter).SetUpdate(update).SetUpsert(true)
		models = append(models, model)
	}

	opts := options.BulkWrite().SetOrdered(false)
	_, err := r.collection.BulkWrite(ctx, models, opts)
	if err != nil {
		return fmt.Errorf("failed to bulk upsert products: %w", err)
	}
	return nil
}

// RecordImpressions increments the impression counter of every id once per
// occurrence. Unknown ids are skipped.
func (r *MongoRepository) RecordImpressions(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	counts := make(map[string]int, len(ids))
	for _, id := range ids {
		counts[id]++
	}

	models := make([]mongo.WriteModel, 0, len(counts))
	for id, n := range counts {
		model := mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": id}).
			SetUpdate(bson.M{"$inc": bson.M{"impressions": n}})
		models = append(models, model)
	}

	opts := options.BulkWrite().SetOrdered(false)
	if _, err := r.collection.BulkWrite(ctx, models, opts); err != nil {
		return fmt.Errorf("failed to record impressions: %w", err)
	}
	return nil
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	var product domain.Product
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product %s: %w", id, err)
	}
	return &product, nil
}

// Impressions returns the impression counter of a product.
func (r *MongoRepository) Impressions(ctx context.Context, id string) (int64, error) {
	opts := options.FindOne().SetProjection(bson.M{"impressions": 1})
	var doc struct {
		Impressions int64 `bson:"impressions"`
	}
	err := r.collection.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}
	return doc.Impressions, err
}

func (r *MongoRepository) GetContentHashes(ctx context.Context, ids []string) (map[string]string, error) {
	filter := bson.M{"_id": bson.M{"$in": ids}}
	opts := options.Find()
	// Only fetch _id and content_hash
	opts.SetProjection(bson.M{"_id": 1, "content_hash": 1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			slog.Warn("Failed to close cursor", "error", err)
		}
	}()

	results := make(map[string]string)
	for cursor.Next(ctx) {
		var doc struct {
			ID          string `bson:"_id"`
			ContentHash string `bson:"content_hash"`
		}
		if err := cursor.Decode(&doc); err != nil {
			continue // Skip malformed
		}
		results[doc.ID] = doc.ContentHash
	}
	return results, cursor.Err()
}

// Ping checks the connection for readiness probes.
func (r *MongoRepository) Ping(ctx context.Context) error {
	return r.db.Client().Ping(ctx, nil)
}
