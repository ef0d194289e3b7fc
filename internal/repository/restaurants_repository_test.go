package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/fuzzyrestaurants/finder/internal/huberrors"
	"github.com/fuzzyrestaurants/finder/internal/models"
	"github.com/fuzzyrestaurants/finder/migrations"
	"github.com/fuzzyrestaurants/finder/pkg/database"
)

const testModel = "test-model"

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping Postgres integration test in -short mode")
	}

	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "pgvector/pgvector:pg16",
		postgres.WithDatabase("finder"),
		postgres.WithUsername("finder"),
		postgres.WithPassword("finder"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	db, err := database.OpenMigrated(ctx, dsn, migrations.FS, database.WithAfterConnect(pgxvec.RegisterTypes))
	require.NoError(t, err)
	t.Cleanup(db.Close)

	return db
}

func testRestaurant(id string, reviews ...string) *models.Restaurant {
	return &models.Restaurant{
		ID:          id,
		Name:        "Trattoria " + id,
		City:        "Rome",
		URL:         "/Restaurant_Review-" + id,
		Location:    models.Location{Latitude: 41.9, Longitude: 12.5},
		CuisineTags: []string{"Italian", "Pizza"},
		PriceTier:   0.5,
		Rating:      0.01,
		Reviews:     reviews,
	}
}

func TestRestaurantsRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRestaurantsRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.UpsertRestaurant(ctx, testRestaurant("r1", "great pasta", "slow service"), testModel))
	require.NoError(t, repo.UpsertRestaurant(ctx, testRestaurant("r2", "fine wine"), testModel))

	t.Run("new reviews need embeddings", func(t *testing.T) {
		ids, err := repo.ListRestaurantIDsMissingEmbeddings(ctx, testModel)
		require.NoError(t, err)
		assert.Equal(t, []string{"r1", "r2"}, ids)

		complete, err := repo.ListComplete(ctx, testModel)
		require.NoError(t, err)
		assert.Empty(t, complete)
	})

	t.Run("embedding every review completes the restaurant", func(t *testing.T) {
		reviews, err := repo.ListReviewsWithoutEmbedding(ctx, "r1", testModel)
		require.NoError(t, err)
		require.Len(t, reviews, 2)
		assert.Equal(t, "great pasta", reviews[0].Text)

		for _, rev := range reviews {
			require.NoError(t, repo.SetReviewEmbedding(ctx, rev.RestaurantID, rev.Position, testModel, []float32{1, 0, float32(rev.Position)}))
		}

		complete, err := repo.ListComplete(ctx, testModel)
		require.NoError(t, err)
		require.Len(t, complete, 1)

		r1 := complete[0]
		assert.Equal(t, "r1", r1.ID)
		assert.Equal(t, []string{"Italian", "Pizza"}, r1.CuisineTags)
		assert.Equal(t, []string{"great pasta", "slow service"}, r1.Reviews)
		assert.Equal(t, [][]float32{{1, 0, 0}, {1, 0, 1}}, r1.ReviewEmbeddings)

		ids, err := repo.ListRestaurantIDsMissingEmbeddings(ctx, testModel)
		require.NoError(t, err)
		assert.Equal(t, []string{"r2"}, ids)
	})

	t.Run("changed review text drops its embedding", func(t *testing.T) {
		require.NoError(t, repo.UpsertRestaurant(ctx, testRestaurant("r1", "great pasta", "fast service"), testModel))

		reviews, err := repo.ListReviewsWithoutEmbedding(ctx, "r1", testModel)
		require.NoError(t, err)
		require.Len(t, reviews, 1)
		assert.Equal(t, 1, reviews[0].Position)
	})

	t.Run("embeddings carried on upsert are stored", func(t *testing.T) {
		rest := testRestaurant("r3", "cozy")
		rest.ReviewEmbeddings = [][]float32{{0, 1, 0}}
		require.NoError(t, repo.UpsertRestaurant(ctx, rest, testModel))

		reviews, err := repo.ListReviewsWithoutEmbedding(ctx, "r3", testModel)
		require.NoError(t, err)
		assert.Empty(t, reviews)
	})

	t.Run("unknown restaurant", func(t *testing.T) {
		_, err := repo.ListReviewsWithoutEmbedding(ctx, "nope", testModel)
		assert.ErrorIs(t, err, huberrors.ErrNotFound)

		err = repo.SetReviewEmbedding(ctx, "nope", 0, testModel, []float32{1})
		assert.ErrorIs(t, err, huberrors.ErrNotFound)
	})

	t.Run("count", func(t *testing.T) {
		n, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})
}
