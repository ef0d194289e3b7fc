package catalog

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuzzyrestaurants/finder/internal/models"
)

func restaurant(id, city string, loc models.Location, tags ...string) models.Restaurant {
	return models.Restaurant{
		ID:               id,
		Name:             "Restaurant " + id,
		City:             city,
		Location:         loc,
		CuisineTags:      tags,
		PriceTier:        0.5,
		Rating:           0.2,
		Reviews:          []string{"good food"},
		ReviewEmbeddings: [][]float32{{1, 0, 0}},
	}
}

var (
	rome  = models.Location{Latitude: 41.9028, Longitude: 12.4964}
	milan = models.Location{Latitude: 45.4642, Longitude: 9.19}
)

func TestNew(t *testing.T) {
	c, err := New([]models.Restaurant{
		restaurant("a", "Rome", rome, "Italian", "Pizza"),
		restaurant("b", "Milan", milan, "Japanese"),
		restaurant("c", "Rome", models.Location{Latitude: 41.8, Longitude: 12.4}, "Italian"),
	})
	require.NoError(t, err)

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, 3, c.Dimension())
	assert.Equal(t, []string{"Italian", "Japanese", "Pizza"}, c.CuisineStyles())
	assert.Equal(t, []City{{Name: "Rome", Location: rome}, {Name: "Milan", Location: milan}}, c.Cities())
}

func TestNew_validation(t *testing.T) {
	valid := restaurant("a", "Rome", rome, "Italian")

	tests := []struct {
		name   string
		mutate func(r *models.Restaurant)
		want   error
	}{
		{"empty id", func(r *models.Restaurant) { r.ID = "" }, ErrInvalidRestaurant},
		{"no cuisine tags", func(r *models.Restaurant) { r.CuisineTags = nil }, ErrInvalidRestaurant},
		{"price tier out of range", func(r *models.Restaurant) { r.PriceTier = 1.5 }, ErrInvalidRestaurant},
		{"rating out of range", func(r *models.Restaurant) { r.Rating = -0.1 }, ErrInvalidRestaurant},
		{"NaN rating", func(r *models.Restaurant) { r.Rating = math.NaN() }, ErrInvalidRestaurant},
		{"NaN price tier", func(r *models.Restaurant) { r.PriceTier = math.NaN() }, ErrInvalidRestaurant},
		{"infinite rating", func(r *models.Restaurant) { r.Rating = math.Inf(1) }, ErrInvalidRestaurant},
		{"NaN embedding component", func(r *models.Restaurant) {
			r.ReviewEmbeddings = [][]float32{{1, float32(math.NaN()), 0}}
		}, ErrInvalidRestaurant},
		{"infinite embedding component", func(r *models.Restaurant) {
			r.ReviewEmbeddings = [][]float32{{float32(math.Inf(-1)), 0, 0}}
		}, ErrInvalidRestaurant},
		{"no reviews", func(r *models.Restaurant) { r.Reviews, r.ReviewEmbeddings = nil, nil }, ErrInvalidRestaurant},
		{"embedding count mismatch", func(r *models.Restaurant) { r.Reviews = append(r.Reviews, "x") }, ErrInvalidRestaurant},
		{"bad latitude", func(r *models.Restaurant) { r.Location.Latitude = 100 }, ErrInvalidRestaurant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			r.Reviews = append([]string(nil), valid.Reviews...)
			tt.mutate(&r)

			_, err := New([]models.Restaurant{r})
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("empty", func(t *testing.T) {
		_, err := New(nil)
		assert.ErrorIs(t, err, ErrEmptyCatalog)
	})

	t.Run("duplicate id", func(t *testing.T) {
		_, err := New([]models.Restaurant{valid, valid})
		assert.ErrorIs(t, err, ErrDuplicateID)
	})

	t.Run("mixed embedding dimensions", func(t *testing.T) {
		other := restaurant("b", "Rome", rome, "Italian")
		other.ReviewEmbeddings = [][]float32{{1, 0}}

		_, err := New([]models.Restaurant{valid, other})
		assert.ErrorIs(t, err, ErrInvalidRestaurant)
	})
}

func TestNew_does_not_alias_input(t *testing.T) {
	input := []models.Restaurant{restaurant("a", "Rome", rome, "Italian")}

	c, err := New(input)
	require.NoError(t, err)

	input[0].Name = "changed"
	assert.Equal(t, "Restaurant a", c.Restaurants()[0].Name)
}

func TestFileSinkAndSource(t *testing.T) {
	restaurants := []models.Restaurant{
		restaurant("a", "Rome", rome, "Italian"),
		restaurant("b", "Milan", milan, "Japanese", "Sushi"),
	}

	for _, name := range []string{"catalog.json", "catalog.json.gz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			ctx := context.Background()

			require.NoError(t, NewFileSink(path, "mock").Write(ctx, restaurants))

			c, err := Load(ctx, NewFileSource(path))
			require.NoError(t, err)
			assert.Equal(t, restaurants, c.Restaurants())
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := NewFileSource(filepath.Join(t.TempDir(), "nope.json")).Load(context.Background())
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("wrong version", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "old.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"version":99,"restaurants":[]}`), 0o600))

		_, err := NewFileSource(path).Load(context.Background())
		assert.ErrorContains(t, err, "unsupported catalog version")
	})
}

type listerFunc func(ctx context.Context, model string) ([]models.Restaurant, error)

func (f listerFunc) ListComplete(ctx context.Context, model string) ([]models.Restaurant, error) {
	return f(ctx, model)
}

func TestPostgresSource(t *testing.T) {
	var gotModel string

	src := NewPostgresSource(listerFunc(func(_ context.Context, model string) ([]models.Restaurant, error) {
		gotModel = model

		return []models.Restaurant{restaurant("a", "Rome", rome, "Italian")}, nil
	}), "all-MiniLM-L6-v2")

	c, err := Load(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, "all-MiniLM-L6-v2", gotModel)

	boom := errors.New("db down")
	_, err = Load(context.Background(), NewPostgresSource(listerFunc(func(context.Context, string) ([]models.Restaurant, error) {
		return nil, boom
	}), "m"))
	assert.ErrorIs(t, err, boom)
}
