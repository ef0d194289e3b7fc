package geocoding

import (
	"context"
	"errors"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/fuzzyrestaurants/finder/internal/models"
	"github.com/fuzzyrestaurants/finder/internal/observability"
)

// Breaker defaults.
const (
	DefaultBreakerFailures = 5
	DefaultBreakerTimeout  = 30 * time.Second
	breakerHalfOpenProbes  = 1
)

// CircuitBreakerParams configures NewCircuitBreaker.
type CircuitBreakerParams struct {
	Next Geocoder
	// Failures is the number of consecutive failures that opens the circuit (default: 5).
	Failures uint32
	// Timeout is how long the circuit stays open before probing (default: 30s).
	Timeout time.Duration
	Metrics observability.GeocoderMetrics
	Logger  *slog.Logger
}

// CircuitBreaker fails fast while the wrapped geocoder keeps failing.
// Unknown places count as successes: the upstream answered.
type CircuitBreaker struct {
	next    Geocoder
	cb      *gobreaker.CircuitBreaker[models.Location]
	metrics observability.GeocoderMetrics
}

// NewCircuitBreaker wraps p.Next with a circuit breaker.
func NewCircuitBreaker(p CircuitBreakerParams) *CircuitBreaker {
	failures := p.Failures
	if failures == 0 {
		failures = DefaultBreakerFailures
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultBreakerTimeout
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cb := gobreaker.NewCircuitBreaker[models.Location](gobreaker.Settings{
		Name:        "geocoder",
		MaxRequests: breakerHalfOpenProbes,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoResults) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &CircuitBreaker{next: p.Next, cb: cb, metrics: p.Metrics}
}

// Geocode implements Geocoder.
func (b *CircuitBreaker) Geocode(ctx context.Context, place string) (models.Location, error) {
	loc, err := b.cb.Execute(func() (models.Location, error) {
		return b.next.Geocode(ctx, place)
	})
	if err == nil {
		return loc, nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		if b.metrics != nil {
			b.metrics.RecordGeocode(ctx, "circuit_open")
		}

		return models.Location{}, unavailable(place, err)
	}

	return models.Location{}, err
}

// State returns the current breaker state name (closed, half-open, open).
func (b *CircuitBreaker) State() string {
	return b.cb.State().String()
}
