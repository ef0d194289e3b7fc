package recommend

import (
	"sort"

	"github.com/fuzzyrestaurants/finder/internal/models"
)

// TopK orders ranked by score descending (ID ascending on ties), keeps the first
// k and assigns ranks starting at 1. It sorts ranked in place.
func TopK(ranked []models.RankedRestaurant, k int) []models.RankedRestaurant {
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}

		return ranked[i].ID < ranked[j].ID
	})

	if k >= 0 && len(ranked) > k {
		ranked = ranked[:k]
	}

	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	return ranked
}
