package recommend

import (
	"errors"

	"github.com/fuzzyrestaurants/finder/internal/huberrors"
	"github.com/fuzzyrestaurants/finder/internal/models"
	"github.com/fuzzyrestaurants/finder/pkg/embeddings"
)

// TextSimilarity returns the mean cosine similarity between query and every
// review embedding of r. Degenerate vectors yield a DegenerateVectorError.
func TextSimilarity(query []float32, r *models.Restaurant) (float64, error) {
	sim, err := embeddings.MeanCosineSimilarity(query, r.ReviewEmbeddings)
	if err != nil {
		return 0, degenerate(r.ID, err)
	}

	return sim, nil
}

func degenerate(subject string, err error) error {
	if errors.Is(err, embeddings.ErrZeroNorm) ||
		errors.Is(err, embeddings.ErrDimensionMismatch) ||
		errors.Is(err, embeddings.ErrNoVectors) ||
		errors.Is(err, embeddings.ErrNonFinite) {
		return huberrors.NewDegenerateVectorError(subject, err.Error())
	}

	return err
}
