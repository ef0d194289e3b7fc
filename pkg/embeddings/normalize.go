// Package embeddings provides vector math for embedding vectors: L2 normalization,
// cosine similarity, mean similarity over a set of vectors and weighted cosine similarity.
package embeddings

import (
	"math"
)

// NormalizeL2 scales vector to unit length in place.
// A zero vector is left unchanged.
func NormalizeL2(vector []float32) {
	sumSquares := 0.0
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}

	if sumSquares == 0 {
		return
	}

	magnitude := math.Sqrt(sumSquares)
	for i := range vector {
		vector[i] = float32(float64(vector[i]) / magnitude)
	}
}

// Norm returns the Euclidean length of vector.
func Norm(vector []float32) float64 {
	sumSquares := 0.0
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}

	return math.Sqrt(sumSquares)
}

// IsFinite reports whether every component of vector is neither NaN nor Inf.
func IsFinite(vector []float32) bool {
	for _, v := range vector {
		if !isFinite(float64(v)) {
			return false
		}
	}

	return true
}

// IsZero reports whether every component of vector is zero (or vector is empty).
func IsZero(vector []float32) bool {
	for _, v := range vector {
		if v != 0 {
			return false
		}
	}

	return true
}
