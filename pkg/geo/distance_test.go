package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	paris  = Point{Latitude: 48.8566, Longitude: 2.3522}
	london = Point{Latitude: 51.5074, Longitude: -0.1278}
	madrid = Point{Latitude: 40.4168, Longitude: -3.7038}
)

func TestHaversineKm(t *testing.T) {
	t.Run("same point is zero", func(t *testing.T) {
		assert.InDelta(t, 0, HaversineKm(paris, paris), 1e-9)
	})

	t.Run("paris to london", func(t *testing.T) {
		assert.InDelta(t, 343.5, HaversineKm(paris, london), 2)
	})

	t.Run("symmetric", func(t *testing.T) {
		assert.InDelta(t, HaversineKm(paris, madrid), HaversineKm(madrid, paris), 1e-9)
	})

	t.Run("antipodes are half the circumference", func(t *testing.T) {
		d := HaversineKm(Point{0, 0}, Point{0, 180})
		assert.InDelta(t, 3.14159265*EarthRadiusKm, d, 1)
	})
}

func TestPointValidate(t *testing.T) {
	assert.NoError(t, paris.Validate())
	assert.Error(t, Point{Latitude: 91}.Validate())
	assert.Error(t, Point{Longitude: -181}.Validate())
}
