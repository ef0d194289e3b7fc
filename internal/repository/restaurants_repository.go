package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/fuzzyrestaurants/finder/internal/huberrors"
	"github.com/fuzzyrestaurants/finder/internal/models"
)

// errEmbeddingScanInvalidType is returned when Scan receives a type other than []byte.
var errEmbeddingScanInvalidType = errors.New("embedding: expected []byte")

// nullableEmbedding scans a vector column that may be NULL (pgvector.Vector.Scan panics on NULL).
type nullableEmbedding []float32

func (n *nullableEmbedding) Scan(src any) error {
	if src == nil {
		*n = nil

		return nil
	}

	buf, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("%w: got %T", errEmbeddingScanInvalidType, src)
	}

	if len(buf) == 0 {
		*n = nil

		return nil
	}

	var vec pgvector.Vector

	if err := vec.DecodeBinary(buf); err != nil {
		return fmt.Errorf("embedding decode: %w", err)
	}

	*n = vec.Slice()

	return nil
}

// RestaurantsRepository handles data access for restaurants and their reviews.
type RestaurantsRepository struct {
	db *pgxpool.Pool
}

// NewRestaurantsRepository creates a new restaurants repository.
func NewRestaurantsRepository(db *pgxpool.Pool) *RestaurantsRepository {
	return &RestaurantsRepository{db: db}
}

// UpsertRestaurant inserts or replaces a restaurant and its reviews. Reviews whose
// text changed lose their embedding; reviews beyond the new count are deleted.
// Review embeddings carried on r are stored as-is when present.
func (r *RestaurantsRepository) UpsertRestaurant(ctx context.Context, rest *models.Restaurant, model string) error {
	now := time.Now()

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO restaurants
				(id, name, city, url, latitude, longitude, cuisine_tags, price_tier, rating, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name, city = EXCLUDED.city, url = EXCLUDED.url,
				latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude,
				cuisine_tags = EXCLUDED.cuisine_tags, price_tier = EXCLUDED.price_tier,
				rating = EXCLUDED.rating, updated_at = EXCLUDED.updated_at`,
			rest.ID, rest.Name, rest.City, rest.URL, rest.Location.Latitude, rest.Location.Longitude,
			rest.CuisineTags, rest.PriceTier, rest.Rating, now,
		)
		if err != nil {
			return fmt.Errorf("upsert restaurant: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM restaurant_reviews WHERE restaurant_id = $1 AND position >= $2`,
			rest.ID, len(rest.Reviews),
		); err != nil {
			return fmt.Errorf("trim reviews: %w", err)
		}

		batch := &pgx.Batch{}

		for i, text := range rest.Reviews {
			var (
				vec      *pgvector.Vector
				vecModel *string
			)

			if i < len(rest.ReviewEmbeddings) && len(rest.ReviewEmbeddings[i]) > 0 {
				v := pgvector.NewVector(rest.ReviewEmbeddings[i])
				vec = &v
				vecModel = &model
			}

			batch.Queue(`
				INSERT INTO restaurant_reviews (restaurant_id, position, review, embedding, model, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (restaurant_id, position) DO UPDATE SET
					review = EXCLUDED.review,
					embedding = CASE
						WHEN EXCLUDED.embedding IS NOT NULL THEN EXCLUDED.embedding
						WHEN restaurant_reviews.review = EXCLUDED.review THEN restaurant_reviews.embedding
					END,
					model = CASE
						WHEN EXCLUDED.embedding IS NOT NULL THEN EXCLUDED.model
						WHEN restaurant_reviews.review = EXCLUDED.review THEN restaurant_reviews.model
					END,
					updated_at = EXCLUDED.updated_at`,
				rest.ID, i, text, vec, vecModel, now,
			)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("upsert reviews: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("restaurant %s: %w", rest.ID, err)
	}

	return nil
}

// ListRestaurantIDsMissingEmbeddings returns IDs of restaurants with at least one
// review that has no embedding for model.
func (r *RestaurantsRepository) ListRestaurantIDsMissingEmbeddings(ctx context.Context, model string) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT restaurant_id FROM restaurant_reviews
		WHERE embedding IS NULL OR model IS DISTINCT FROM $1
		ORDER BY restaurant_id`, model)
	if err != nil {
		return nil, fmt.Errorf("list restaurants missing embeddings: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan restaurant id: %w", err)
	}

	return ids, nil
}

// ListReviewsWithoutEmbedding returns the reviews of restaurantID that still need
// an embedding for model, ordered by position. Returns a NotFoundError when the
// restaurant does not exist.
func (r *RestaurantsRepository) ListReviewsWithoutEmbedding(
	ctx context.Context, restaurantID, model string,
) ([]models.Review, error) {
	var exists bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM restaurants WHERE id = $1)`, restaurantID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check restaurant: %w", err)
	}

	if !exists {
		return nil, huberrors.NewNotFoundError("restaurant", "restaurant not found: "+restaurantID)
	}

	rows, err := r.db.Query(ctx, `
		SELECT restaurant_id, position, review FROM restaurant_reviews
		WHERE restaurant_id = $1 AND (embedding IS NULL OR model IS DISTINCT FROM $2)
		ORDER BY position`, restaurantID, model)
	if err != nil {
		return nil, fmt.Errorf("list reviews without embedding: %w", err)
	}
	defer rows.Close()

	var reviews []models.Review

	for rows.Next() {
		var rev models.Review
		if err := rows.Scan(&rev.RestaurantID, &rev.Position, &rev.Text); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}

		reviews = append(reviews, rev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reviews: %w", err)
	}

	return reviews, nil
}

// SetReviewEmbedding stores the embedding of one review.
func (r *RestaurantsRepository) SetReviewEmbedding(
	ctx context.Context, restaurantID string, position int, model string, embedding []float32,
) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE restaurant_reviews SET embedding = $3, model = $4, updated_at = $5
		WHERE restaurant_id = $1 AND position = $2`,
		restaurantID, position, pgvector.NewVector(embedding), model, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("set review embedding: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return huberrors.NewNotFoundError("review", fmt.Sprintf("review %d of %s not found", position, restaurantID))
	}

	return nil
}

// ListComplete returns every restaurant whose reviews all carry an embedding for
// model, ordered by ID, with reviews in position order.
func (r *RestaurantsRepository) ListComplete(ctx context.Context, model string) ([]models.Restaurant, error) {
	rows, err := r.db.Query(ctx, `
		SELECT r.id, r.name, r.city, r.url, r.latitude, r.longitude, r.cuisine_tags,
		       r.price_tier, r.rating, rv.review, rv.embedding
		FROM restaurants r
		JOIN restaurant_reviews rv ON rv.restaurant_id = r.id
		WHERE NOT EXISTS (
			SELECT 1 FROM restaurant_reviews m
			WHERE m.restaurant_id = r.id AND (m.embedding IS NULL OR m.model IS DISTINCT FROM $1)
		)
		ORDER BY r.id, rv.position`, model)
	if err != nil {
		return nil, fmt.Errorf("list complete restaurants: %w", err)
	}
	defer rows.Close()

	var restaurants []models.Restaurant

	for rows.Next() {
		var (
			rest      models.Restaurant
			review    string
			embedding nullableEmbedding
		)

		if err := rows.Scan(
			&rest.ID, &rest.Name, &rest.City, &rest.URL, &rest.Location.Latitude, &rest.Location.Longitude,
			&rest.CuisineTags, &rest.PriceTier, &rest.Rating, &review, &embedding,
		); err != nil {
			return nil, fmt.Errorf("scan restaurant: %w", err)
		}

		if n := len(restaurants); n == 0 || restaurants[n-1].ID != rest.ID {
			restaurants = append(restaurants, rest)
		}

		last := &restaurants[len(restaurants)-1]
		last.Reviews = append(last.Reviews, review)
		last.ReviewEmbeddings = append(last.ReviewEmbeddings, []float32(embedding))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating restaurants: %w", err)
	}

	return restaurants, nil
}

// Count returns the number of stored restaurants.
func (r *RestaurantsRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM restaurants`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count restaurants: %w", err)
	}

	return n, nil
}
