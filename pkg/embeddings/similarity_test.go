package embeddings

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{0.2, 0.4, 0.1}, []float32{0.2, 0.4, 0.1}, 1},
		{"scaled copy", []float32{1, 2, 3}, []float32{2, 4, 6}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, -1}, []float32{-1, 1}, -1},
		{"45 degrees", []float32{1, 0}, []float32{1, 1}, 1 / math.Sqrt2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, -1.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}

	t.Run("zero norm", func(t *testing.T) {
		_, err := CosineSimilarity([]float32{0, 0}, []float32{1, 0})
		assert.ErrorIs(t, err, ErrZeroNorm)

		_, err = CosineSimilarity([]float32{1, 0}, []float32{0, 0})
		assert.ErrorIs(t, err, ErrZeroNorm)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0})
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("non-finite components", func(t *testing.T) {
		nan := float32(math.NaN())
		inf := float32(math.Inf(1))

		_, err := CosineSimilarity([]float32{1, nan}, []float32{1, 0})
		assert.ErrorIs(t, err, ErrNonFinite)

		_, err = CosineSimilarity([]float32{1, 0}, []float32{inf, 0})
		assert.ErrorIs(t, err, ErrNonFinite)
	})
}

func TestMeanCosineSimilarity(t *testing.T) {
	query := []float32{1, 0}

	t.Run("mean of pairwise similarities", func(t *testing.T) {
		got, err := MeanCosineSimilarity(query, [][]float32{{1, 0}, {0, 1}, {-1, 0}})
		require.NoError(t, err)
		assert.InDelta(t, 0.0, got, 1e-9)
	})

	t.Run("all identical to query", func(t *testing.T) {
		got, err := MeanCosineSimilarity(query, [][]float32{{1, 0}, {1, 0}})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, got, 1e-9)
	})

	t.Run("empty set", func(t *testing.T) {
		_, err := MeanCosineSimilarity(query, nil)
		assert.ErrorIs(t, err, ErrNoVectors)
	})

	t.Run("zero query", func(t *testing.T) {
		_, err := MeanCosineSimilarity([]float32{0, 0}, [][]float32{{1, 0}})
		assert.ErrorIs(t, err, ErrZeroNorm)
	})

	t.Run("non-finite query", func(t *testing.T) {
		_, err := MeanCosineSimilarity([]float32{float32(math.NaN()), 0}, [][]float32{{1, 0}})
		assert.ErrorIs(t, err, ErrNonFinite)
	})

	t.Run("non-finite review fails the set", func(t *testing.T) {
		_, err := MeanCosineSimilarity(query, [][]float32{{1, 0}, {float32(math.NaN()), 1}})
		assert.ErrorIs(t, err, ErrNonFinite)
	})

	t.Run("one degenerate review fails the set", func(t *testing.T) {
		_, err := MeanCosineSimilarity(query, [][]float32{{1, 0}, {0, 0}})
		assert.ErrorIs(t, err, ErrZeroNorm)
	})
}

func TestWeightedCosineSimilarity(t *testing.T) {
	w := []float64{0.35, 0.18, 0.12}

	t.Run("identical vectors score 1", func(t *testing.T) {
		got, err := WeightedCosineSimilarity([]float64{1, 0.5, 1}, []float64{1, 0.5, 1}, w)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, got, 1e-12)
	})

	t.Run("matches hand computation", func(t *testing.T) {
		x := []float64{0.2, 1, 0.4}
		y := []float64{1, 0.5, 1}

		dot := 0.35*0.2*1 + 0.18*1*0.5 + 0.12*0.4*1
		xx := 0.35*0.2*0.2 + 0.18*1*1 + 0.12*0.4*0.4
		yy := 0.35*1*1 + 0.18*0.5*0.5 + 0.12*1*1
		want := dot / (math.Sqrt(xx) * math.Sqrt(yy))

		got, err := WeightedCosineSimilarity(x, y, w)
		require.NoError(t, err)
		assert.InDelta(t, want, got, 1e-12)
	})

	t.Run("zero dimension weight ignores that feature", func(t *testing.T) {
		a, err := WeightedCosineSimilarity([]float64{1, 0}, []float64{1, 5}, []float64{1, 0})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, a, 1e-12)
	})

	t.Run("non-finite feature", func(t *testing.T) {
		_, err := WeightedCosineSimilarity([]float64{math.NaN(), 0.5, 1}, []float64{1, 0.5, 1}, w)
		assert.ErrorIs(t, err, ErrNonFinite)

		_, err = WeightedCosineSimilarity([]float64{1, 0.5, 1}, []float64{1, math.Inf(-1), 1}, w)
		assert.ErrorIs(t, err, ErrNonFinite)
	})

	t.Run("zero vector", func(t *testing.T) {
		_, err := WeightedCosineSimilarity([]float64{0, 0, 0}, []float64{1, 0.5, 1}, w)
		assert.ErrorIs(t, err, ErrZeroNorm)
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := WeightedCosineSimilarity([]float64{1, 1}, []float64{1, 0.5, 1}, w)
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("negative weight rejected", func(t *testing.T) {
		_, err := WeightedCosineSimilarity([]float64{1}, []float64{1}, []float64{-0.1})
		assert.Error(t, err)
	})
}
