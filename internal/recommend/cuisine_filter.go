package recommend

import (
	"strings"

	"github.com/fuzzyrestaurants/finder/internal/models"
)

// CuisineSet builds a case-insensitive lookup set from requested cuisine names.
// Blank names are ignored.
func CuisineSet(cuisines []string) map[string]struct{} {
	set := make(map[string]struct{}, len(cuisines))

	for _, c := range cuisines {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			set[c] = struct{}{}
		}
	}

	return set
}

// FilterByCuisine keeps restaurants with at least one tag in requested.
// An empty requested set keeps everything.
func FilterByCuisine(restaurants []*models.Restaurant, requested map[string]struct{}) []*models.Restaurant {
	out := make([]*models.Restaurant, 0, len(restaurants))

	if len(requested) == 0 {
		return append(out, restaurants...)
	}

	for _, r := range restaurants {
		for _, tag := range r.CuisineTags {
			if _, ok := requested[strings.ToLower(tag)]; ok {
				out = append(out, r)

				break
			}
		}
	}

	return out
}
