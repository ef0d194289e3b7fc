package service

import (
	"github.com/fuzzyrestaurants/finder/internal/catalog"
	"github.com/fuzzyrestaurants/finder/internal/models"
)

// CatalogService exposes read-only views of the catalog for option lists.
type CatalogService struct {
	catalog *catalog.Catalog
}

// NewCatalogService creates a CatalogService.
func NewCatalogService(c *catalog.Catalog) *CatalogService {
	return &CatalogService{catalog: c}
}

// ListCities returns every known city with its coordinate, in catalog order.
func (s *CatalogService) ListCities() *models.ListCitiesResponse {
	cities := s.catalog.Cities()

	data := make([]models.CityOption, len(cities))
	for i, c := range cities {
		data[i] = models.CityOption{Name: c.Name, Location: c.Location}
	}

	return &models.ListCitiesResponse{Data: data}
}

// ListCuisines returns the sorted distinct cuisine styles.
func (s *CatalogService) ListCuisines() *models.ListCuisinesResponse {
	return &models.ListCuisinesResponse{Data: s.catalog.CuisineStyles()}
}

// Count returns the number of restaurants in the catalog.
func (s *CatalogService) Count() int {
	return s.catalog.Len()
}
