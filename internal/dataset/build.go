package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/fuzzyrestaurants/finder/internal/models"
)

// DefaultEmbedConcurrency bounds concurrent embedding calls during a build.
const DefaultEmbedConcurrency = 4

// Geocoder resolves a city name to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, place string) (models.Location, error)
}

// ReviewEmbedder embeds a batch of review texts, preserving order.
type ReviewEmbedder interface {
	CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error)
}

// BuilderParams configures NewBuilder.
type BuilderParams struct {
	Geocoder Geocoder
	// Embedder is optional; without it reviews are left unembedded for the
	// background worker.
	Embedder    ReviewEmbedder
	Concurrency int
	// RateLimiter throttles embedding calls; optional.
	RateLimiter *rate.Limiter
	Logger      *slog.Logger
}

// Builder turns cleaned rows into catalog restaurants.
type Builder struct {
	geocoder    Geocoder
	embedder    ReviewEmbedder
	concurrency int
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(p BuilderParams) (*Builder, error) {
	if p.Geocoder == nil {
		return nil, errors.New("dataset: geocoder is required")
	}

	concurrency := p.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultEmbedConcurrency
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Builder{
		geocoder:    p.Geocoder,
		embedder:    p.Embedder,
		concurrency: concurrency,
		limiter:     p.RateLimiter,
		logger:      logger,
	}, nil
}

// Build geocodes each distinct city once, drops rows whose city cannot be
// resolved and, when an embedder is configured, embeds every review.
// Restaurants keep the order of rows.
func (b *Builder) Build(ctx context.Context, rows []Row, stats *Stats) ([]models.Restaurant, error) {
	locations, err := b.geocodeCities(ctx, rows, stats)
	if err != nil {
		return nil, err
	}

	restaurants := make([]models.Restaurant, 0, len(rows))

	for _, row := range rows {
		loc, ok := locations[row.City]
		if !ok {
			stats.skip(SkipGeocodingFailed)

			continue
		}

		restaurants = append(restaurants, models.Restaurant{
			ID:          row.ID,
			Name:        row.Name,
			City:        row.City,
			URL:         row.URL,
			Location:    loc,
			CuisineTags: row.CuisineTags,
			PriceTier:   row.PriceTier,
			Rating:      row.Rating,
			Reviews:     row.Reviews,
		})
	}

	if b.embedder != nil {
		embedded, err := b.embedAll(ctx, restaurants)
		if err != nil {
			return nil, err
		}

		stats.ReviewsEmbedded += embedded
	}

	stats.Restaurants = len(restaurants)

	return restaurants, nil
}

func (b *Builder) geocodeCities(ctx context.Context, rows []Row, stats *Stats) (map[string]models.Location, error) {
	locations := make(map[string]models.Location)
	failed := make(map[string]struct{})

	for _, row := range rows {
		if _, ok := locations[row.City]; ok {
			continue
		}

		if _, ok := failed[row.City]; ok {
			continue
		}

		loc, err := b.geocoder.Geocode(ctx, row.City)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("geocode cities: %w", ctx.Err())
			}

			b.logger.WarnContext(ctx, "dataset: city not geocoded, dropping its restaurants", "city", row.City, "error", err)
			failed[row.City] = struct{}{}
			stats.CitiesFailed++

			continue
		}

		locations[row.City] = loc
		stats.CitiesGeocoded++
	}

	return locations, nil
}

func (b *Builder) embedAll(ctx context.Context, restaurants []models.Restaurant) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i := range restaurants {
		r := &restaurants[i]

		g.Go(func() error {
			if b.limiter != nil {
				if err := b.limiter.Wait(gctx); err != nil {
					return fmt.Errorf("rate limit wait: %w", err)
				}
			}

			vectors, err := b.embedder.CreateEmbeddings(gctx, r.Reviews)
			if err != nil {
				return fmt.Errorf("embed reviews of %s: %w", r.ID, err)
			}

			if len(vectors) != len(r.Reviews) {
				return fmt.Errorf("embed reviews of %s: got %d vectors for %d reviews", r.ID, len(vectors), len(r.Reviews))
			}

			r.ReviewEmbeddings = vectors

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	total := 0
	for i := range restaurants {
		total += len(restaurants[i].ReviewEmbeddings)
	}

	b.logger.InfoContext(ctx, "dataset: reviews embedded", "restaurants", len(restaurants), "reviews", total)

	return total, nil
}
