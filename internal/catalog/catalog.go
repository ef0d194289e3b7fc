// Package catalog holds the immutable, in-memory set of restaurants that every
// recommendation request scans, plus the sources it can be loaded from.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/fuzzyrestaurants/finder/internal/models"
	"github.com/fuzzyrestaurants/finder/pkg/embeddings"
)

// Catalog validation errors.
var (
	ErrEmptyCatalog      = errors.New("catalog is empty")
	ErrDuplicateID       = errors.New("duplicate restaurant id")
	ErrInvalidRestaurant = errors.New("invalid restaurant")
)

// Source loads catalog entities from storage.
type Source interface {
	Load(ctx context.Context) ([]models.Restaurant, error)
}

// City is a known city and the coordinate used for proximity ranking.
type City struct {
	Name     string
	Location models.Location
}

// Catalog is a validated, read-only set of restaurants. It is safe for
// concurrent use because nothing mutates it after New returns.
type Catalog struct {
	restaurants []models.Restaurant
	cities      []City
	cuisines    []string
	dimension   int
}

// New validates restaurants and builds a catalog. The first restaurant seen
// for a city supplies that city's coordinate.
func New(restaurants []models.Restaurant) (*Catalog, error) {
	if len(restaurants) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		restaurants: make([]models.Restaurant, len(restaurants)),
		dimension:   -1,
	}
	copy(c.restaurants, restaurants)

	seenIDs := make(map[string]struct{}, len(restaurants))
	seenCities := make(map[string]struct{})
	cuisineSet := make(map[string]struct{})

	for i := range c.restaurants {
		r := &c.restaurants[i]

		if err := c.validate(r); err != nil {
			return nil, err
		}

		if _, dup := seenIDs[r.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, r.ID)
		}

		seenIDs[r.ID] = struct{}{}

		if _, ok := seenCities[r.City]; !ok {
			seenCities[r.City] = struct{}{}
			c.cities = append(c.cities, City{Name: r.City, Location: r.Location})
		}

		for _, tag := range r.CuisineTags {
			cuisineSet[tag] = struct{}{}
		}
	}

	c.cuisines = make([]string, 0, len(cuisineSet))
	for tag := range cuisineSet {
		c.cuisines = append(c.cuisines, tag)
	}

	sort.Strings(c.cuisines)

	return c, nil
}

// Load reads restaurants from src and builds a catalog.
func Load(ctx context.Context, src Source) (*Catalog, error) {
	restaurants, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	return New(restaurants)
}

func (c *Catalog) validate(r *models.Restaurant) error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w %q: %s", ErrInvalidRestaurant, r.ID, fmt.Sprintf(format, args...))
	}

	switch {
	case r.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidRestaurant)
	case r.City == "":
		return invalid("empty city")
	case len(r.CuisineTags) == 0:
		return invalid("no cuisine tags")
	// Negated so NaN, which fails every comparison, is rejected too.
	case !(r.PriceTier >= 0 && r.PriceTier <= 1):
		return invalid("price tier %v outside [0, 1]", r.PriceTier)
	case !(r.Rating >= 0 && r.Rating <= 1):
		return invalid("rating %v outside [0, 1]", r.Rating)
	case len(r.Reviews) == 0:
		return invalid("no reviews")
	case len(r.ReviewEmbeddings) != len(r.Reviews):
		return invalid("%d reviews but %d embeddings", len(r.Reviews), len(r.ReviewEmbeddings))
	}

	if err := r.Location.Validate(); err != nil {
		return invalid("%v", err)
	}

	for i, vec := range r.ReviewEmbeddings {
		if c.dimension == -1 {
			c.dimension = len(vec)
		}

		if len(vec) == 0 || len(vec) != c.dimension {
			return invalid("review %d: %v (got %d, want %d)", i, embeddings.ErrDimensionMismatch, len(vec), c.dimension)
		}

		if !embeddings.IsFinite(vec) {
			return invalid("review %d: %v", i, embeddings.ErrNonFinite)
		}
	}

	return nil
}

// Restaurants returns the catalog entities. Callers must not modify them.
func (c *Catalog) Restaurants() []models.Restaurant {
	return c.restaurants
}

// Cities returns the known cities in catalog order.
func (c *Catalog) Cities() []City {
	return append([]City(nil), c.cities...)
}

// CuisineStyles returns the sorted cuisine vocabulary.
func (c *Catalog) CuisineStyles() []string {
	return append([]string(nil), c.cuisines...)
}

// Dimension returns the shared review embedding dimension.
func (c *Catalog) Dimension() int {
	return c.dimension
}

// Len returns the number of restaurants.
func (c *Catalog) Len() int {
	return len(c.restaurants)
}
