package geocoding

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuzzyrestaurants/finder/internal/catalog"
	"github.com/fuzzyrestaurants/finder/internal/huberrors"
	"github.com/fuzzyrestaurants/finder/internal/models"
)

type geocoderFunc func(ctx context.Context, place string) (models.Location, error)

func (f geocoderFunc) Geocode(ctx context.Context, place string) (models.Location, error) {
	return f(ctx, place)
}

type recordingGeocoderMetrics struct {
	statuses []string
}

func (m *recordingGeocoderMetrics) RecordGeocode(_ context.Context, status string) {
	m.statuses = append(m.statuses, status)
}

type countingCacheMetrics struct {
	hits, misses int
}

func (m *countingCacheMetrics) RecordHit(context.Context, string)  { m.hits++ }
func (m *countingCacheMetrics) RecordMiss(context.Context, string) { m.misses++ }

var paris = models.Location{Latitude: 48.8566, Longitude: 2.3522}

func newNominatim(t *testing.T, handler http.HandlerFunc, metrics *recordingGeocoderMetrics) *NominatimClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts := NominatimOptions{BaseURL: server.URL, RateLimit: 1000, RetryMax: -1, UserAgent: "finder-test"}
	if metrics != nil {
		opts.Metrics = metrics
	}

	return NewNominatimClient(opts)
}

func TestNominatimClient_Geocode(t *testing.T) {
	metrics := &recordingGeocoderMetrics{}
	client := newNominatim(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Paris", r.URL.Query().Get("q"))
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "finder-test", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"48.8566","lon":"2.3522","display_name":"Paris, France"}]`))
	}, metrics)

	loc, err := client.Geocode(context.Background(), "  Paris ")
	require.NoError(t, err)
	assert.InDelta(t, paris.Latitude, loc.Latitude, 1e-9)
	assert.InDelta(t, paris.Longitude, loc.Longitude, 1e-9)
	assert.Equal(t, []string{"ok"}, metrics.statuses)
}

func TestNominatimClient_NoResults(t *testing.T) {
	metrics := &recordingGeocoderMetrics{}
	client := newNominatim(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}, metrics)

	_, err := client.Geocode(context.Background(), "Xyzzy")
	require.Error(t, err)
	assert.ErrorIs(t, err, huberrors.ErrGeocoding)
	assert.ErrorIs(t, err, ErrNoResults)
	assert.False(t, IsUnavailable(err))

	var gerr *huberrors.GeocodingError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "Xyzzy", gerr.Place)
	assert.Equal(t, []string{"not_found"}, metrics.statuses)
}

func TestNominatimClient_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"bad status", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "slow down", http.StatusBadRequest)
		}},
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}},
		{"malformed body", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"not":"a list"`))
		}},
		{"bad coordinates", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`[{"lat":"north","lon":"2.35"}]`))
		}},
		{"out of range", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`[{"lat":"123.0","lon":"2.35"}]`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := &recordingGeocoderMetrics{}
			client := newNominatim(t, tt.handler, metrics)

			_, err := client.Geocode(context.Background(), "Paris")
			require.Error(t, err)
			assert.True(t, IsUnavailable(err))
			assert.ErrorIs(t, err, huberrors.ErrGeocoding)
			assert.Equal(t, []string{"error"}, metrics.statuses)
		})
	}
}

func TestNominatimClient_BlankPlace(t *testing.T) {
	var calls atomic.Int32
	client := newNominatim(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`[]`))
	}, nil)

	_, err := client.Geocode(context.Background(), "   ")
	require.ErrorIs(t, err, ErrNoResults)
	assert.Zero(t, calls.Load())
}

func TestStaticGeocoder(t *testing.T) {
	g := NewCatalogGeocoder([]catalog.City{
		{Name: "Paris", Location: paris},
		{Name: "Le Mans", Location: models.Location{Latitude: 48.0, Longitude: 0.2}},
	})
	assert.Equal(t, 2, g.Len())

	loc, err := g.Geocode(context.Background(), "PARIS")
	require.NoError(t, err)
	assert.Equal(t, paris, loc)

	_, err = g.Geocode(context.Background(), " le   mans ")
	require.NoError(t, err)

	_, err = g.Geocode(context.Background(), "Atlantis")
	require.ErrorIs(t, err, huberrors.ErrGeocoding)
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestCachingGeocoder(t *testing.T) {
	var calls atomic.Int32
	metrics := &countingCacheMetrics{}

	g, err := NewCachingGeocoder(CachingGeocoderParams{
		Next: geocoderFunc(func(_ context.Context, place string) (models.Location, error) {
			calls.Add(1)
			if place == "Atlantis" {
				return models.Location{}, notFound(place)
			}

			return paris, nil
		}),
		Size:    8,
		Metrics: metrics,
	})
	require.NoError(t, err)

	ctx := context.Background()
	for _, place := range []string{"Paris", "paris", " PARIS "} {
		loc, err := g.Geocode(ctx, place)
		require.NoError(t, err)
		assert.Equal(t, paris, loc)
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 2, metrics.hits)
	assert.Equal(t, 1, metrics.misses)

	for range 2 {
		_, err := g.Geocode(ctx, "Atlantis")
		require.ErrorIs(t, err, ErrNoResults)
	}
	assert.Equal(t, int32(3), calls.Load(), "failures are not cached")
}

func TestNewCachingGeocoder_InvalidSize(t *testing.T) {
	_, err := NewCachingGeocoder(CachingGeocoderParams{Next: NewStaticGeocoder(nil)})
	require.Error(t, err)
}

func TestCircuitBreaker_OpensOnUnavailable(t *testing.T) {
	var calls atomic.Int32
	metrics := &recordingGeocoderMetrics{}

	b := NewCircuitBreaker(CircuitBreakerParams{
		Next: geocoderFunc(func(_ context.Context, place string) (models.Location, error) {
			calls.Add(1)

			return models.Location{}, unavailable(place, errors.New("connection refused"))
		}),
		Failures: 2,
		Metrics:  metrics,
	})

	ctx := context.Background()
	for range 2 {
		_, err := b.Geocode(ctx, "Paris")
		require.True(t, IsUnavailable(err))
	}
	assert.Equal(t, "open", b.State())

	_, err := b.Geocode(ctx, "Paris")
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
	assert.ErrorIs(t, err, huberrors.ErrGeocoding)
	assert.Equal(t, int32(2), calls.Load(), "open circuit must not call through")
	assert.Equal(t, []string{"circuit_open"}, metrics.statuses)
}

func TestCircuitBreaker_NotFoundDoesNotTrip(t *testing.T) {
	b := NewCircuitBreaker(CircuitBreakerParams{Next: NewStaticGeocoder(nil), Failures: 1})

	for range 3 {
		_, err := b.Geocode(context.Background(), "Atlantis")
		require.ErrorIs(t, err, ErrNoResults)
	}
	assert.Equal(t, "closed", b.State())
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	static := NewStaticGeocoder(map[string]models.Location{"Paris": paris})
	down := geocoderFunc(func(_ context.Context, place string) (models.Location, error) {
		return models.Location{}, unavailable(place, errors.New("down"))
	})

	t.Run("first success wins", func(t *testing.T) {
		loc, err := Chain{static, down}.Geocode(ctx, "Paris")
		require.NoError(t, err)
		assert.Equal(t, paris, loc)
	})

	t.Run("falls through to next", func(t *testing.T) {
		loc, err := Chain{down, static}.Geocode(ctx, "paris")
		require.NoError(t, err)
		assert.Equal(t, paris, loc)
	})

	t.Run("unavailable wins over not found", func(t *testing.T) {
		_, err := Chain{static, down}.Geocode(ctx, "Atlantis")
		require.Error(t, err)
		assert.True(t, IsUnavailable(err))
	})

	t.Run("all not found", func(t *testing.T) {
		_, err := Chain{static}.Geocode(ctx, "Atlantis")
		require.ErrorIs(t, err, ErrNoResults)
	})

	t.Run("empty chain", func(t *testing.T) {
		_, err := Chain{}.Geocode(ctx, "Paris")
		require.ErrorIs(t, err, huberrors.ErrGeocoding)
	})
}

func TestNewStack(t *testing.T) {
	var remoteCalls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		remoteCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"45.4642","lon":"9.1900","display_name":"Milano"}]`))
	}))
	t.Cleanup(server.Close)

	cacheMetrics := &countingCacheMetrics{}

	stack, err := NewStack(StackParams{
		Cities:       []catalog.City{{Name: "Paris", Location: paris}},
		Nominatim:    NominatimOptions{BaseURL: server.URL, RateLimit: 1000, RetryMax: 0},
		CacheSize:    8,
		CacheMetrics: cacheMetrics,
	})
	require.NoError(t, err)

	loc, err := stack.Geocode(context.Background(), "paris")
	require.NoError(t, err)
	assert.Equal(t, paris, loc)
	assert.Equal(t, int32(0), remoteCalls.Load())

	for range 2 {
		loc, err = stack.Geocode(context.Background(), "Milan")
		require.NoError(t, err)
		assert.InDelta(t, 45.4642, loc.Latitude, 1e-9)
	}

	assert.Equal(t, int32(1), remoteCalls.Load())
	assert.Equal(t, 1, cacheMetrics.hits)
	assert.Equal(t, 1, cacheMetrics.misses)
}
