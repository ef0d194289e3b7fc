package geocoding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fuzzyrestaurants/finder/internal/models"
	"github.com/fuzzyrestaurants/finder/internal/observability"
	"github.com/fuzzyrestaurants/finder/pkg/cache"
)

const cacheName = "geocode"

// CachingGeocoderParams configures NewCachingGeocoder.
type CachingGeocoderParams struct {
	Next    Geocoder
	Size    int
	TTL     time.Duration
	Metrics observability.CacheMetrics
	Logger  *slog.Logger
}

// CachingGeocoder memoizes successful lookups of Next. Failures are not cached.
type CachingGeocoder struct {
	next    Geocoder
	cache   *cache.Cache[string, models.Location]
	metrics observability.CacheMetrics
	logger  *slog.Logger
}

// NewCachingGeocoder wraps p.Next with an LRU cache keyed by normalized place name.
func NewCachingGeocoder(p CachingGeocoderParams) (*CachingGeocoder, error) {
	c, err := cache.New[string, models.Location](p.Size, p.TTL, func(k string) string { return k })
	if err != nil {
		return nil, fmt.Errorf("geocode cache: %w", err)
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &CachingGeocoder{next: p.Next, cache: c, metrics: p.Metrics, logger: logger}, nil
}

// Geocode implements Geocoder.
func (g *CachingGeocoder) Geocode(ctx context.Context, place string) (models.Location, error) {
	key := normalizePlace(place)

	loc, outcome, err := g.cache.Load(ctx, key, func(ctx context.Context, _ string) (models.Location, error) {
		return g.next.Geocode(ctx, place)
	})

	if g.metrics != nil {
		if outcome == cache.Hit {
			g.metrics.RecordHit(ctx, cacheName)
		} else {
			g.metrics.RecordMiss(ctx, cacheName)
		}
	}

	if err != nil {
		return models.Location{}, err
	}

	g.logger.DebugContext(ctx, "geocoded place", "place", place, "cache", outcome.String())

	return loc, nil
}
