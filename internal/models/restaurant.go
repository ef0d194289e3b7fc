package models

import (
	"github.com/fuzzyrestaurants/finder/pkg/geo"
)

// Location is a coordinate in raw decimal degrees. Catalog entities and resolved
// user places use the same representation.
type Location = geo.Point

// Restaurant is one catalog entity. Entities are built offline and never mutated
// once a catalog has been loaded.
type Restaurant struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	City        string   `json:"city"`
	URL         string   `json:"url,omitempty"`
	Location    Location `json:"location"`
	CuisineTags []string `json:"cuisine_tags"`
	// PriceTier is in [0, 1]; see PriceRange.Tier.
	PriceTier float64 `json:"price_tier"`
	// Rating is the raw rating divided by the review count, in [0, 1].
	Rating           float64     `json:"rating"`
	Reviews          []string    `json:"reviews"`
	ReviewEmbeddings [][]float32 `json:"review_embeddings"`
}

// Review is a single cleaned review of a restaurant together with its embedding,
// as stored in Postgres. Embedding is nil until the review has been embedded.
type Review struct {
	RestaurantID string    `json:"restaurant_id"`
	Position     int       `json:"position"`
	Text         string    `json:"text"`
	Embedding    []float32 `json:"embedding,omitempty"`
	Model        string    `json:"model,omitempty"`
}
