package geocoding

import (
	"context"

	"github.com/fuzzyrestaurants/finder/internal/catalog"
	"github.com/fuzzyrestaurants/finder/internal/models"
)

// StaticGeocoder answers from a fixed table. Lookups ignore case and repeated whitespace.
type StaticGeocoder struct {
	places map[string]models.Location
}

// NewStaticGeocoder creates a StaticGeocoder over places.
func NewStaticGeocoder(places map[string]models.Location) *StaticGeocoder {
	m := make(map[string]models.Location, len(places))
	for name, loc := range places {
		m[normalizePlace(name)] = loc
	}

	return &StaticGeocoder{places: m}
}

// NewCatalogGeocoder seeds a StaticGeocoder with the catalog's city table.
func NewCatalogGeocoder(cities []catalog.City) *StaticGeocoder {
	places := make(map[string]models.Location, len(cities))
	for _, c := range cities {
		places[c.Name] = c.Location
	}

	return NewStaticGeocoder(places)
}

// Geocode implements Geocoder.
func (s *StaticGeocoder) Geocode(_ context.Context, place string) (models.Location, error) {
	loc, ok := s.places[normalizePlace(place)]
	if !ok {
		return models.Location{}, notFound(place)
	}

	return loc, nil
}

// Len returns the number of known places.
func (s *StaticGeocoder) Len() int {
	return len(s.places)
}
