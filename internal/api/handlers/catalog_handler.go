package handlers

import (
	"net/http"

	"github.com/fuzzyrestaurants/finder/internal/api/response"
	"github.com/fuzzyrestaurants/finder/internal/models"
)

// CatalogService lists the cities and cuisine styles a query may use.
type CatalogService interface {
	ListCities() *models.ListCitiesResponse
	ListCuisines() *models.ListCuisinesResponse
}

// CatalogHandler handles HTTP requests for catalog metadata.
type CatalogHandler struct {
	service CatalogService
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(service CatalogService) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// ListCities handles GET /v1/cities.
func (h *CatalogHandler) ListCities(w http.ResponseWriter, _ *http.Request) {
	response.RespondJSON(w, http.StatusOK, h.service.ListCities())
}

// ListCuisines handles GET /v1/cuisines.
func (h *CatalogHandler) ListCuisines(w http.ResponseWriter, _ *http.Request) {
	response.RespondJSON(w, http.StatusOK, h.service.ListCuisines())
}
