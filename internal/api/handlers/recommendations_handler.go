package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/fuzzyrestaurants/finder/internal/api/response"
	"github.com/fuzzyrestaurants/finder/internal/api/validation"
	"github.com/fuzzyrestaurants/finder/internal/geocoding"
	"github.com/fuzzyrestaurants/finder/internal/huberrors"
	"github.com/fuzzyrestaurants/finder/internal/models"
)

// RecommendService produces ranked restaurants for a request.
type RecommendService interface {
	Recommend(ctx context.Context, req models.RecommendRequest) (*models.Recommendation, error)
}

// RecommendationsHandler handles HTTP requests for restaurant recommendations.
type RecommendationsHandler struct {
	service RecommendService
}

// NewRecommendationsHandler creates a new recommendations handler.
func NewRecommendationsHandler(service RecommendService) *RecommendationsHandler {
	return &RecommendationsHandler{service: service}
}

// Create handles POST /v1/recommendations with a JSON body.
func (h *RecommendationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.RecommendRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		response.RespondBadRequest(w, "Invalid request body: "+err.Error())

		return
	}

	h.recommend(w, r, req)
}

// Get handles GET /v1/recommendations?city=&cuisines=&utterance=&price_range=.
func (h *RecommendationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	var req models.RecommendRequest

	if err := validation.DecodeQueryParams(r, &req); err != nil {
		response.RespondBadRequest(w, err.Error())

		return
	}

	h.recommend(w, r, req)
}

func (h *RecommendationsHandler) recommend(w http.ResponseWriter, r *http.Request, req models.RecommendRequest) {
	if err := validation.ValidateStruct(&req); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	rec, err := h.service.Recommend(r.Context(), req)
	if err != nil {
		respondRecommendError(r.Context(), w, err)

		return
	}

	response.RespondJSON(w, http.StatusOK, rec)
}

// respondRecommendError maps service errors to Problem Details responses.
func respondRecommendError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, huberrors.ErrValidation):
		response.RespondBadRequest(w, err.Error())
	case errors.Is(err, huberrors.ErrGeocoding) && geocoding.IsUnavailable(err):
		slog.WarnContext(ctx, "geocoder unavailable", "error", err)
		response.RespondServiceUnavailable(w, "geocoder unavailable, try again later")
	case errors.Is(err, huberrors.ErrGeocoding):
		response.RespondUnprocessableEntity(w, "Geocoding Failed", geocodingDetail(err))
	case errors.Is(err, huberrors.ErrDegenerateVector):
		response.RespondUnprocessableEntity(w, "Degenerate Query", err.Error())
	default:
		slog.ErrorContext(ctx, "recommendation failed", "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")
	}
}

func geocodingDetail(err error) string {
	var geoErr *huberrors.GeocodingError
	if errors.As(err, &geoErr) && geoErr.Place != "" {
		return "location could not be resolved: " + geoErr.Place
	}

	return err.Error()
}
