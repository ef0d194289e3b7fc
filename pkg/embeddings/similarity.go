package embeddings

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrZeroNorm is returned when a similarity involves a vector of zero length.
	ErrZeroNorm = errors.New("embeddings: zero-norm vector")
	// ErrDimensionMismatch is returned when two vectors have different lengths.
	ErrDimensionMismatch = errors.New("embeddings: dimension mismatch")
	// ErrNoVectors is returned when a mean similarity is requested over an empty set.
	ErrNoVectors = errors.New("embeddings: no vectors")
	// ErrNonFinite is returned when a vector holds NaN or Inf, or the result is not finite.
	ErrNonFinite = errors.New("embeddings: non-finite value")
)

// Dot returns the dot product of a and b accumulated in float64.
// Callers must ensure len(a) == len(b).
func Dot(a, b []float32) float64 {
	sum := 0.0
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}

	return sum
}

// CosineSimilarity returns dot(a,b) / (|a| * |b|), clamped to [-1, 1].
// Returns ErrZeroNorm when either vector has zero length and ErrDimensionMismatch
// when the lengths differ.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	normA := Norm(a)
	normB := Norm(b)

	if !isFinite(normA) || !isFinite(normB) {
		return 0, ErrNonFinite
	}

	if normA == 0 || normB == 0 {
		return 0, ErrZeroNorm
	}

	return finiteClamp(Dot(a, b) / (normA * normB))
}

// MeanCosineSimilarity returns the arithmetic mean of CosineSimilarity(query, v)
// over vectors. The first failing pair aborts the computation.
func MeanCosineSimilarity(query []float32, vectors [][]float32) (float64, error) {
	if len(vectors) == 0 {
		return 0, ErrNoVectors
	}

	switch n := Norm(query); {
	case !isFinite(n):
		return 0, ErrNonFinite
	case n == 0:
		return 0, ErrZeroNorm
	}

	sum := 0.0

	for i, v := range vectors {
		sim, err := CosineSimilarity(query, v)
		if err != nil {
			return 0, fmt.Errorf("vector %d: %w", i, err)
		}

		sum += sim
	}

	return sum / float64(len(vectors)), nil
}

// WeightedCosineSimilarity returns
//
//	Σ wᵢ·xᵢ·yᵢ / (sqrt(Σ wᵢ·xᵢ²) · sqrt(Σ wᵢ·yᵢ²))
//
// x, y and w must have the same length and every weight must be non-negative.
// Returns ErrZeroNorm when either weighted norm is zero.
func WeightedCosineSimilarity(x, y, w []float64) (float64, error) {
	if len(x) != len(y) || len(x) != len(w) {
		return 0, fmt.Errorf("%w: x=%d y=%d w=%d", ErrDimensionMismatch, len(x), len(y), len(w))
	}

	var dot, xx, yy float64

	for i := range x {
		if w[i] < 0 {
			return 0, fmt.Errorf("embeddings: negative weight %v at index %d", w[i], i)
		}

		dot += w[i] * x[i] * y[i]
		xx += w[i] * x[i] * x[i]
		yy += w[i] * y[i] * y[i]
	}

	if !isFinite(xx) || !isFinite(yy) {
		return 0, ErrNonFinite
	}

	if xx == 0 || yy == 0 {
		return 0, ErrZeroNorm
	}

	return finiteClamp(dot / (math.Sqrt(xx) * math.Sqrt(yy)))
}

// finiteClamp clamps v to [-1, 1]. math.Max and math.Min pass NaN through,
// so NaN is reported instead of clamped.
func finiteClamp(v float64) (float64, error) {
	if math.IsNaN(v) {
		return 0, ErrNonFinite
	}

	return math.Max(-1, math.Min(1, v)), nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
