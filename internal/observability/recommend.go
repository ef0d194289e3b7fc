package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RecommendMetrics records recommendation request metrics.
type RecommendMetrics interface {
	RecordRecommendation(ctx context.Context, outcome string, duration time.Duration)
	RecordCandidates(ctx context.Context, stage string, count int)
	RecordExcluded(ctx context.Context, reason string, count int)
}

type recommendMetrics struct {
	requests   metric.Int64Counter
	duration   metric.Float64Histogram
	candidates metric.Int64Histogram
	excluded   metric.Int64Counter
}

// candidateBuckets cover catalogs from a handful to tens of thousands of restaurants per city set.
var candidateBuckets = []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// NewRecommendMetrics creates RecommendMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewRecommendMetrics(meter metric.Meter) (RecommendMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	requests, err := meter.Int64Counter(
		MetricNameRecommendations,
		metric.WithDescription("Recommendation requests by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("create recommendations counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameRecommendationDuration,
		metric.WithDescription("End-to-end recommendation latency (seconds), including geocoding and query embedding"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create recommendation duration histogram: %w", err)
	}

	candidates, err := meter.Int64Histogram(
		MetricNameCandidates,
		metric.WithDescription("Restaurants remaining after each pipeline stage (nearby, cuisine, ranked, returned)"),
		metric.WithExplicitBucketBoundaries(candidateBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create candidates histogram: %w", err)
	}

	excluded, err := meter.Int64Counter(
		MetricNameExcluded,
		metric.WithDescription("Restaurants dropped from a ranking because a similarity was undefined"),
	)
	if err != nil {
		return nil, fmt.Errorf("create excluded counter: %w", err)
	}

	return &recommendMetrics{
		requests:   requests,
		duration:   duration,
		candidates: candidates,
		excluded:   excluded,
	}, nil
}

func (m *recommendMetrics) RecordRecommendation(ctx context.Context, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String(AttrOutcome, NormalizeReason(outcome, AllowedRecommendOutcomes)))
	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, duration.Seconds(), attrs)
}

func (m *recommendMetrics) RecordCandidates(ctx context.Context, stage string, count int) {
	m.candidates.Record(ctx, int64(count),
		metric.WithAttributes(attribute.String(AttrStage, NormalizeReason(stage, AllowedStages))))
}

func (m *recommendMetrics) RecordExcluded(ctx context.Context, reason string, count int) {
	if count <= 0 {
		return
	}

	m.excluded.Add(ctx, int64(count),
		metric.WithAttributes(attribute.String(AttrReason, NormalizeReason(reason, AllowedExcludedReasons))))
}

// GeocoderMetrics records outbound geocoder lookups.
type GeocoderMetrics interface {
	RecordGeocode(ctx context.Context, status string)
}

type geocoderMetrics struct {
	requests metric.Int64Counter
}

// NewGeocoderMetrics creates GeocoderMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewGeocoderMetrics(meter metric.Meter) (GeocoderMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	requests, err := meter.Int64Counter(
		MetricNameGeocoderRequests,
		metric.WithDescription("Geocoder lookups by status (ok, not_found, error, circuit_open)"),
	)
	if err != nil {
		return nil, fmt.Errorf("create geocoder requests counter: %w", err)
	}

	return &geocoderMetrics{requests: requests}, nil
}

func (g *geocoderMetrics) RecordGeocode(ctx context.Context, status string) {
	g.requests.Add(ctx, 1,
		metric.WithAttributes(attribute.String(AttrStatus, NormalizeReason(status, AllowedGeocoderStatuses))))
}

// APIMetrics records API-level rejections (body limit exceeded, rate limited).
type APIMetrics interface {
	RecordRequestBodyTooLarge(ctx context.Context)
	RecordRateLimited(ctx context.Context)
}

type apiMetrics struct {
	requestBodyTooLarge metric.Int64Counter
	rateLimited         metric.Int64Counter
}

// NewAPIMetrics creates APIMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewAPIMetrics(meter metric.Meter) (APIMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	tooLarge, err := meter.Int64Counter(
		MetricNameRequestBodyTooLarge,
		metric.WithDescription("Requests rejected because the body exceeded the configured limit (413)"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create request body too large counter: %w", err)
	}

	rateLimited, err := meter.Int64Counter(
		MetricNameRateLimited,
		metric.WithDescription("Requests rejected by the per-client rate limiter (429)"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create rate limited counter: %w", err)
	}

	return &apiMetrics{requestBodyTooLarge: tooLarge, rateLimited: rateLimited}, nil
}

func (a *apiMetrics) RecordRequestBodyTooLarge(ctx context.Context) {
	a.requestBodyTooLarge.Add(ctx, 1)
}

func (a *apiMetrics) RecordRateLimited(ctx context.Context) {
	a.rateLimited.Add(ctx, 1)
}
