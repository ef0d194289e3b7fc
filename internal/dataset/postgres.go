package dataset

import (
	"context"
	"fmt"

	"github.com/fuzzyrestaurants/finder/internal/models"
)

// RestaurantUpserter persists restaurants (repository.RestaurantsRepository).
type RestaurantUpserter interface {
	UpsertRestaurant(ctx context.Context, r *models.Restaurant, model string) error
}

// UpsertAll writes every restaurant and returns how many were written before
// the first error.
func UpsertAll(ctx context.Context, upserter RestaurantUpserter, restaurants []models.Restaurant, model string) (int, error) {
	for i := range restaurants {
		if err := upserter.UpsertRestaurant(ctx, &restaurants[i], model); err != nil {
			return i, fmt.Errorf("upsert restaurant %s: %w", restaurants[i].ID, err)
		}
	}

	return len(restaurants), nil
}
