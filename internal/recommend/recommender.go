// Package recommend ranks catalog restaurants against a user query: a geo
// proximity filter, a cuisine filter, review text similarity and a weighted
// cosine score feed a top-K selection.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fuzzyrestaurants/finder/internal/catalog"
	"github.com/fuzzyrestaurants/finder/internal/huberrors"
	"github.com/fuzzyrestaurants/finder/internal/models"
	"github.com/fuzzyrestaurants/finder/pkg/embeddings"
)

// Defaults for RecommenderParams.
const (
	DefaultNearestCities = 5
	DefaultTopK          = 10
)

const tracerName = "github.com/fuzzyrestaurants/finder/internal/recommend"

// ErrQueryEmbedding wraps failures of the Embedder.
var ErrQueryEmbedding = errors.New("embed query")

// Geocoder resolves a place name to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, place string) (models.Location, error)
}

// Embedder turns text into an embedding in the same space as the catalog's
// review embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// RecommenderParams holds dependencies and tuning for NewRecommender.
type RecommenderParams struct {
	Catalog  *catalog.Catalog
	Geocoder Geocoder
	Embedder Embedder
	// NearestCities is how many closest known cities the geo filter keeps (0 = default).
	NearestCities int
	// TopK is the maximum number of results (0 = default).
	TopK int
	// Weights overrides DefaultWeights.
	Weights []float64
	Logger  *slog.Logger
}

// Recommender runs the recommendation pipeline over an immutable catalog. It is
// safe for concurrent use.
type Recommender struct {
	catalog       *catalog.Catalog
	geocoder      Geocoder
	embedder      Embedder
	scorer        *Scorer
	nearestCities int
	topK          int
	logger        *slog.Logger
	tracer        trace.Tracer
}

// NewRecommender creates a Recommender.
func NewRecommender(p RecommenderParams) (*Recommender, error) {
	if p.Catalog == nil || p.Geocoder == nil || p.Embedder == nil {
		return nil, errors.New("recommend: catalog, geocoder and embedder are required")
	}

	weights := p.Weights
	if weights == nil {
		weights = DefaultWeights
	}

	scorer, err := NewScorer(weights)
	if err != nil {
		return nil, err
	}

	nearest := p.NearestCities
	if nearest <= 0 {
		nearest = DefaultNearestCities
	}

	topK := p.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Recommender{
		catalog:       p.Catalog,
		geocoder:      p.Geocoder,
		embedder:      p.Embedder,
		scorer:        scorer,
		nearestCities: nearest,
		topK:          topK,
		logger:        logger,
		tracer:        otel.Tracer(tracerName),
	}, nil
}

// Catalog returns the catalog the recommender scans.
func (r *Recommender) Catalog() *catalog.Catalog {
	return r.catalog
}

// Recommend ranks restaurants for req. Geocoding and embedding failures are
// returned as-is; restaurants with degenerate vectors are skipped and counted in
// Excluded. Fewer than TopK results is not an error.
func (r *Recommender) Recommend(ctx context.Context, req models.RecommendRequest) (*models.Recommendation, error) {
	ctx, span := r.tracer.Start(ctx, "recommend.Recommend")
	defer span.End()

	rec, err := r.recommend(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}

	span.SetAttributes(
		attribute.Int("recommend.nearby", rec.Nearby),
		attribute.Int("recommend.candidates", rec.Candidates),
		attribute.Int("recommend.excluded", rec.Excluded),
		attribute.Int("recommend.results", len(rec.Restaurants)),
	)

	return rec, nil
}

func (r *Recommender) recommend(ctx context.Context, req models.RecommendRequest) (*models.Recommendation, error) {
	if !req.PriceRange.IsValid() {
		return nil, huberrors.NewValidationError("price_range", fmt.Sprintf("invalid price range %d", req.PriceRange))
	}

	location, err := r.geocode(ctx, req.City)
	if err != nil {
		return nil, err
	}

	queryEmbedding, err := r.embedQuery(ctx, req.Utterance)
	if err != nil {
		return nil, err
	}

	query := &models.Query{
		Location:       location,
		QueryEmbedding: queryEmbedding,
		PriceTier:      req.PriceRange.Tier(),
		Cuisines:       CuisineSet(req.Cuisines),
	}

	nearest := NearestCities(r.catalog.Cities(), query.Location, r.nearestCities)
	nearby := FilterByCities(r.catalog.Restaurants(), nearest)
	candidates := FilterByCuisine(nearby, query.Cuisines)

	ranked, excluded := r.score(ctx, query, candidates)

	rec := &models.Recommendation{
		Restaurants:   TopK(ranked, r.topK),
		NearestCities: make([]string, len(nearest)),
		Nearby:        len(nearby),
		Candidates:    len(candidates),
		Excluded:      excluded,
	}

	for i, c := range nearest {
		rec.NearestCities[i] = c.Name
	}

	return rec, nil
}

func (r *Recommender) geocode(ctx context.Context, place string) (models.Location, error) {
	ctx, span := r.tracer.Start(ctx, "recommend.geocode")
	defer span.End()

	loc, err := r.geocoder.Geocode(ctx, place)
	if err != nil {
		span.RecordError(err)

		return models.Location{}, fmt.Errorf("geocode %q: %w", place, err)
	}

	return loc, nil
}

func (r *Recommender) embedQuery(ctx context.Context, utterance string) ([]float32, error) {
	ctx, span := r.tracer.Start(ctx, "recommend.embed_query")
	defer span.End()

	vec, err := r.embedder.Embed(ctx, utterance)
	if err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("%w: %w", ErrQueryEmbedding, err)
	}

	if !embeddings.IsFinite(vec) {
		return nil, huberrors.NewDegenerateVectorError("query", "query embedding has non-finite components")
	}

	if embeddings.IsZero(vec) {
		return nil, huberrors.NewDegenerateVectorError("query", "query embedding has zero norm")
	}

	if dim := r.catalog.Dimension(); len(vec) != dim {
		return nil, huberrors.NewDegenerateVectorError("query",
			fmt.Sprintf("query embedding has dimension %d, catalog uses %d", len(vec), dim))
	}

	return vec, nil
}

func (r *Recommender) score(
	ctx context.Context, query *models.Query, candidates []*models.Restaurant,
) ([]models.RankedRestaurant, int) {
	_, span := r.tracer.Start(ctx, "recommend.score", trace.WithAttributes(
		attribute.Int("recommend.candidates", len(candidates)),
	))
	defer span.End()

	target := query.Target()
	ranked := make([]models.RankedRestaurant, 0, len(candidates))
	excluded := 0

	for _, rest := range candidates {
		sim, err := TextSimilarity(query.QueryEmbedding, rest)
		if err == nil {
			var score float64

			score, err = r.scorer.Score(rest.ID, Features(rest, sim), target)
			if err == nil {
				ranked = append(ranked, models.NewRankedRestaurant(rest, sim, score))

				continue
			}
		}

		excluded++

		r.logger.DebugContext(ctx, "Excluded restaurant from ranking", "restaurant_id", rest.ID, "error", err)
	}

	return ranked, excluded
}
