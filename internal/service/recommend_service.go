package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/fuzzyrestaurants/finder/internal/huberrors"
	"github.com/fuzzyrestaurants/finder/internal/models"
	"github.com/fuzzyrestaurants/finder/internal/observability"
	"github.com/fuzzyrestaurants/finder/internal/recommend"
)

// Recommender is the core pipeline (recommend.Recommender).
type Recommender interface {
	Recommend(ctx context.Context, req models.RecommendRequest) (*models.Recommendation, error)
}

// RecommendService runs recommendation requests with metrics and logging.
type RecommendService struct {
	recommender Recommender
	metrics     observability.RecommendMetrics
	logger      *slog.Logger
}

// RecommendServiceParams configures NewRecommendService. Metrics may be nil.
type RecommendServiceParams struct {
	Recommender Recommender
	Metrics     observability.RecommendMetrics
	Logger      *slog.Logger
}

// NewRecommendService creates a RecommendService.
func NewRecommendService(p RecommendServiceParams) *RecommendService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &RecommendService{recommender: p.Recommender, metrics: p.Metrics, logger: logger}
}

// Recommend normalizes req and returns the ranked restaurants.
func (s *RecommendService) Recommend(ctx context.Context, req models.RecommendRequest) (*models.Recommendation, error) {
	start := time.Now()

	req.City = strings.TrimSpace(req.City)
	if req.City == "" {
		s.record(ctx, "invalid_request", start, nil)

		return nil, huberrors.NewValidationError("city", "city is required")
	}

	rec, err := s.recommender.Recommend(ctx, req)
	if err != nil {
		outcome := classifyError(err)
		s.record(ctx, outcome, start, nil)

		if outcome == "error" {
			s.logger.ErrorContext(ctx, "recommendation failed", "city", req.City, "error", err)
		} else {
			s.logger.InfoContext(ctx, "recommendation rejected", "city", req.City, "outcome", outcome, "error", err)
		}

		return nil, err
	}

	outcome := "ok"
	if len(rec.Restaurants) == 0 {
		outcome = "empty"
	}

	s.record(ctx, outcome, start, rec)

	s.logger.InfoContext(ctx, "recommendation served",
		"city", req.City,
		"cuisines", len(req.Cuisines),
		"price_range", req.PriceRange.String(),
		"nearest_cities", rec.NearestCities,
		"candidates", rec.Candidates,
		"excluded", rec.Excluded,
		"results", len(rec.Restaurants),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return rec, nil
}

func (s *RecommendService) record(ctx context.Context, outcome string, start time.Time, rec *models.Recommendation) {
	if s.metrics == nil {
		return
	}

	s.metrics.RecordRecommendation(ctx, outcome, time.Since(start))

	if rec == nil {
		return
	}

	s.metrics.RecordCandidates(ctx, "nearby", rec.Nearby)
	s.metrics.RecordCandidates(ctx, "cuisine", rec.Candidates)
	s.metrics.RecordCandidates(ctx, "ranked", rec.Candidates-rec.Excluded)
	s.metrics.RecordCandidates(ctx, "returned", len(rec.Restaurants))

	if rec.Excluded > 0 {
		s.metrics.RecordExcluded(ctx, "degenerate_vector", rec.Excluded)
	}
}

// classifyError maps a pipeline error to a bounded outcome label.
func classifyError(err error) string {
	switch {
	case errors.Is(err, huberrors.ErrValidation):
		return "invalid_request"
	case errors.Is(err, huberrors.ErrGeocoding):
		return "geocoding_failed"
	case errors.Is(err, huberrors.ErrDegenerateVector):
		return "degenerate_query"
	case errors.Is(err, recommend.ErrQueryEmbedding):
		return "embedding_failed"
	default:
		return "error"
	}
}
