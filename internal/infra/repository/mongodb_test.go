package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/StorefrontFeed/internal/domain"
	"github.com/StorefrontFeed/internal/infra/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestMongoRepository_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	mongodbContainer, err := mongodb.Run(ctx, "mongo:6")
	require.NoError(t, err)
	defer func() {
		if err := mongodbContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}()

	endpoint, err := mongodbContainer.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(endpoint))
	require.NoError(t, err)
	defer func() {
		if err := client.Disconnect(ctx); err != nil {
			t.Logf("failed to disconnect client: %s", err)
		}
	}()

	repo, err := repository.NewMongoRepository(client, "test_storefront", "products")
	require.NoError(t, err)
	require.NoError(t, repo.Ping(ctx))

	t.Run("BulkUpsert and GetByID", func(t *testing.T) {
		product := domain.Product{
			ID:        "p-1",
			Title:     "Linen shirt",
			Price:     39000,
			ImageURL:  "http://img/p-1.png",
			Category:  "SUMMER",
			FetchedAt: time.Now().Truncate(time.Millisecond).UTC(),
		}
		product.ContentHash = product.ComputeHash()

		require.NoError(t, repo.BulkUpsert(ctx, []domain.Product{product}))

		fetched, err := repo.GetByID(ctx, "p-1")
		require.NoError(t, err)
		assert.Equal(t, product.Title, fetched.Title)
		assert.Equal(t, product.Price, fetched.Price)
		assert.Equal(t, product.ContentHash, fetched.ContentHash)
		assert.WithinDuration(t, product.FetchedAt, fetched.FetchedAt, time.Millisecond)

		product.Price = 29000
		require.NoError(t, repo.BulkUpsert(ctx, []domain.Product{product}))
		fetched, err = repo.GetByID(ctx, "p-1")
		require.NoError(t, err)
		assert.Equal(t, int64(29000), fetched.Price)
	})

	t.Run("GetByID unknown", func(t *testing.T) {
		_, err := repo.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("GetContentHashes", func(t *testing.T) {
		products := []domain.Product{
			{ID: "b1", Title: "Batch 1", ContentHash: "h1"},
			{ID: "b2", Title: "Batch 2", ContentHash: "h2"},
		}
		require.NoError(t, repo.BulkUpsert(ctx, products))

		hashes, err := repo.GetContentHashes(ctx, []string{"b1", "b2", "non-existent"})
		require.NoError(t, err)
		assert.Equal(t, "h1", hashes["b1"])
		assert.Equal(t, "h2", hashes["b2"])
		assert.Len(t, hashes, 2)
	})

	t.Run("RecordImpressions", func(t *testing.T) {
		require.NoError(t, repo.RecordImpressions(ctx, []string{"b1", "b1", "b2", "unknown"}))
		require.NoError(t, repo.RecordImpressions(ctx, []string{"b1"}))

		n, err := repo.Impressions(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		n, err = repo.Impressions(ctx, "b2")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		require.NoError(t, repo.BulkUpsert(ctx, []domain.Product{{ID: "b1", Title: "Batch 1 renamed"}}))
		n, err = repo.Impressions(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, int64(3), n, "upserts keep the counter")
	})
}
