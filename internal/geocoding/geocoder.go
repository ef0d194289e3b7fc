// Package geocoding resolves free-form place names to coordinates.
package geocoding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fuzzyrestaurants/finder/internal/huberrors"
	"github.com/fuzzyrestaurants/finder/internal/models"
)

var (
	// ErrNoResults is wrapped by GeocodingErrors for places the geocoder does not know.
	ErrNoResults = errors.New("no geocoding results")
	// ErrUnavailable is wrapped by GeocodingErrors when the geocoder could not be reached.
	ErrUnavailable = errors.New("geocoder unavailable")
)

// Geocoder resolves a place name to a location.
type Geocoder interface {
	Geocode(ctx context.Context, place string) (models.Location, error)
}

func notFound(place string) error {
	return &huberrors.GeocodingError{Place: place, Err: ErrNoResults}
}

func unavailable(place string, cause error) error {
	return &huberrors.GeocodingError{
		Place:   place,
		Message: "geocoder unavailable",
		Err:     fmt.Errorf("%w: %w", ErrUnavailable, cause),
	}
}

// IsUnavailable reports whether err means the geocoder could not answer, as
// opposed to answering that the place is unknown.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

func normalizePlace(place string) string {
	return strings.ToLower(strings.Join(strings.Fields(place), " "))
}

// Chain tries each geocoder in order and returns the first location found.
type Chain []Geocoder

// Geocode implements Geocoder. When every geocoder fails, an unavailability
// error wins over a not-found so callers can tell outages from unknown places.
func (c Chain) Geocode(ctx context.Context, place string) (models.Location, error) {
	var firstUnavailable, last error

	for _, g := range c {
		loc, err := g.Geocode(ctx, place)
		if err == nil {
			return loc, nil
		}

		if ctx.Err() != nil {
			return models.Location{}, fmt.Errorf("geocode %q: %w", place, ctx.Err())
		}

		if firstUnavailable == nil && IsUnavailable(err) {
			firstUnavailable = err
		}

		last = err
	}

	if firstUnavailable != nil {
		return models.Location{}, firstUnavailable
	}

	if last == nil {
		return models.Location{}, notFound(place)
	}

	return models.Location{}, last
}
