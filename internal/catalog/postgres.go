package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fuzzyrestaurants/finder/internal/models"
)

// CompleteRestaurantsLister is the repository capability PostgresSource needs.
type CompleteRestaurantsLister interface {
	ListComplete(ctx context.Context, model string) ([]models.Restaurant, error)
}

// PostgresSource loads the restaurants whose reviews have all been embedded
// with Model. Restaurants still waiting on the embedding worker are skipped.
type PostgresSource struct {
	repo  CompleteRestaurantsLister
	model string
}

// NewPostgresSource creates a PostgresSource.
func NewPostgresSource(repo CompleteRestaurantsLister, model string) *PostgresSource {
	return &PostgresSource{repo: repo, model: model}
}

// Load implements Source.
func (s *PostgresSource) Load(ctx context.Context) ([]models.Restaurant, error) {
	restaurants, err := s.repo.ListComplete(ctx, s.model)
	if err != nil {
		return nil, fmt.Errorf("postgres catalog source: %w", err)
	}

	slog.InfoContext(ctx, "Loaded catalog from Postgres", "restaurants", len(restaurants), "model", s.model)

	return restaurants, nil
}
