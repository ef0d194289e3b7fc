package geocoding

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/fuzzyrestaurants/finder/internal/catalog"
	"github.com/fuzzyrestaurants/finder/internal/observability"
)

// StackParams configures NewStack.
type StackParams struct {
	// Cities are resolved locally before any remote lookup.
	Cities       []catalog.City
	Nominatim    NominatimOptions
	CacheSize    int
	CacheTTL     time.Duration
	CacheMetrics observability.CacheMetrics
	Logger       *slog.Logger
}

// NewStack builds the serving geocoder: catalog cities first, then Nominatim
// behind a circuit breaker and an LRU cache.
func NewStack(p StackParams) (Chain, error) {
	breaker := NewCircuitBreaker(CircuitBreakerParams{
		Next:    NewNominatimClient(p.Nominatim),
		Metrics: p.Nominatim.Metrics,
		Logger:  p.Logger,
	})

	cached, err := NewCachingGeocoder(CachingGeocoderParams{
		Next:    breaker,
		Size:    p.CacheSize,
		TTL:     p.CacheTTL,
		Metrics: p.CacheMetrics,
		Logger:  p.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create geocoder cache: %w", err)
	}

	return Chain{NewCatalogGeocoder(p.Cities), cached}, nil
}
