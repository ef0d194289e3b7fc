package recommend

import (
	"sort"

	"github.com/fuzzyrestaurants/finder/internal/catalog"
	"github.com/fuzzyrestaurants/finder/internal/models"
	"github.com/fuzzyrestaurants/finder/pkg/geo"
)

// CityDistance is a known city and its great-circle distance from a query location.
type CityDistance struct {
	Name       string
	DistanceKm float64
}

// NearestCities returns up to n known cities ordered by distance from origin.
// Equal distances are ordered by city name.
func NearestCities(cities []catalog.City, origin models.Location, n int) []CityDistance {
	ranked := make([]CityDistance, len(cities))
	for i, c := range cities {
		ranked[i] = CityDistance{Name: c.Name, DistanceKm: geo.HaversineKm(origin, c.Location)}
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].DistanceKm != ranked[j].DistanceKm {
			return ranked[i].DistanceKm < ranked[j].DistanceKm
		}

		return ranked[i].Name < ranked[j].Name
	})

	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}

	return ranked
}

// FilterByCities returns the restaurants located in one of cities, in catalog order.
func FilterByCities(restaurants []models.Restaurant, cities []CityDistance) []*models.Restaurant {
	keep := make(map[string]struct{}, len(cities))
	for _, c := range cities {
		keep[c.Name] = struct{}{}
	}

	out := make([]*models.Restaurant, 0)

	for i := range restaurants {
		if _, ok := keep[restaurants[i].City]; ok {
			out = append(out, &restaurants[i])
		}
	}

	return out
}
