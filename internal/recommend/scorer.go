package recommend

import (
	"errors"
	"fmt"

	"github.com/fuzzyrestaurants/finder/internal/models"
	"github.com/fuzzyrestaurants/finder/pkg/embeddings"
)

// DefaultWeights weigh (rating, price tier, text similarity).
var DefaultWeights = []float64{0.35, 0.18, 0.12}

// Scorer ranks restaurants by weighted cosine similarity between their feature
// vector and the query's target vector.
type Scorer struct {
	weights []float64
}

// NewScorer creates a Scorer. weights must hold one non-negative value per
// feature and at least one positive value.
func NewScorer(weights []float64) (*Scorer, error) {
	if len(weights) != featureCount {
		return nil, fmt.Errorf("scorer: want %d weights, got %d", featureCount, len(weights))
	}

	total := 0.0

	for i, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("scorer: weight %d is negative (%v)", i, w)
		}

		total += w
	}

	if total == 0 {
		return nil, errors.New("scorer: all weights are zero")
	}

	return &Scorer{weights: append([]float64(nil), weights...)}, nil
}

const featureCount = 3

// Features returns the feature vector of r given its text similarity.
func Features(r *models.Restaurant, similarity float64) []float64 {
	return []float64{r.Rating, r.PriceTier, similarity}
}

// Score compares a restaurant feature vector against target. Higher is better.
func (s *Scorer) Score(id string, features, target []float64) (float64, error) {
	score, err := embeddings.WeightedCosineSimilarity(features, target, s.weights)
	if err != nil {
		return 0, degenerate(id, err)
	}

	return score, nil
}
