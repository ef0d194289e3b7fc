package geocoding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/fuzzyrestaurants/finder/internal/models"
	"github.com/fuzzyrestaurants/finder/internal/observability"
)

const (
	// DefaultNominatimURL is the public OpenStreetMap Nominatim endpoint.
	DefaultNominatimURL = "https://nominatim.openstreetmap.org"
	// DefaultUserAgent identifies the application as Nominatim's usage policy requires.
	DefaultUserAgent = "fuzzy-restaurants/1.0"
	// DefaultRateLimit is the Nominatim policy maximum (requests per second).
	DefaultRateLimit = 1.0

	maxErrorBody = 512
)

// NominatimOptions configures the Nominatim client.
type NominatimOptions struct {
	// BaseURL is the Nominatim server (default: DefaultNominatimURL)
	BaseURL string
	// UserAgent is sent with every request (default: DefaultUserAgent)
	UserAgent string
	// RateLimit in requests per second (default: 1)
	RateLimit float64
	// RetryMax is the maximum number of retries (default: 3)
	RetryMax int
	// Timeout is the HTTP client timeout (default: 10 seconds)
	Timeout time.Duration
	// Metrics records geocoder request statuses; optional.
	Metrics observability.GeocoderMetrics
}

// NominatimClient geocodes with the OpenStreetMap Nominatim search API.
type NominatimClient struct {
	baseURL    string
	userAgent  string
	httpClient *retryablehttp.Client
	limiter    *rate.Limiter
	metrics    observability.GeocoderMetrics
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NewNominatimClient creates a Nominatim client.
func NewNominatimClient(opts NominatimOptions) *NominatimClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultNominatimURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = DefaultRateLimit
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryMax == 0 {
		opts.RetryMax = 3
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.HTTPClient.Timeout = opts.Timeout
	retryClient.Logger = nil

	return &NominatimClient{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		userAgent:  opts.UserAgent,
		httpClient: retryClient,
		limiter:    rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		metrics:    opts.Metrics,
	}
}

// Geocode implements Geocoder.
func (c *NominatimClient) Geocode(ctx context.Context, place string) (models.Location, error) {
	loc, status, err := c.geocode(ctx, place)
	if c.metrics != nil {
		c.metrics.RecordGeocode(ctx, status)
	}

	return loc, err
}

func (c *NominatimClient) geocode(ctx context.Context, place string) (models.Location, string, error) {
	query := strings.TrimSpace(place)
	if query == "" {
		return models.Location{}, "not_found", notFound(place)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return models.Location{}, "error", fmt.Errorf("geocoder rate limit: %w", err)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "jsonv2")
	params.Set("limit", "1")

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return models.Location{}, "error", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return models.Location{}, "error", fmt.Errorf("geocode %q: %w", place, ctx.Err())
		}

		return models.Location{}, "error", unavailable(place, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return models.Location{}, "error", unavailable(place,
			fmt.Errorf("nominatim status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return models.Location{}, "error", unavailable(place, fmt.Errorf("decode response: %w", err))
	}

	if len(places) == 0 {
		return models.Location{}, "not_found", notFound(place)
	}

	loc, err := places[0].location()
	if err != nil {
		return models.Location{}, "error", unavailable(place, err)
	}

	return loc, "ok", nil
}

func (p nominatimPlace) location() (models.Location, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return models.Location{}, fmt.Errorf("parse lat %q: %w", p.Lat, err)
	}

	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return models.Location{}, fmt.Errorf("parse lon %q: %w", p.Lon, err)
	}

	loc := models.Location{Latitude: lat, Longitude: lon}
	if err := loc.Validate(); err != nil {
		return models.Location{}, errors.Join(errors.New("nominatim returned an invalid location"), err)
	}

	return loc, nil
}
