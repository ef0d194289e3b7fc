package models

// RecommendRequest is the raw query supplied by a user.
type RecommendRequest struct {
	City       string     `json:"city" form:"city" validate:"required,not_blank,max=255,no_null_bytes"`
	Cuisines   []string   `json:"cuisines,omitempty" form:"cuisines" validate:"omitempty,max=64,dive,min=1,max=64,no_null_bytes"`
	Utterance  string     `json:"utterance" form:"utterance" validate:"max=2000,no_null_bytes"`
	PriceRange PriceRange `json:"price_range" form:"price_range" validate:"price_range"`
}

// Query is the derived, per-request form of a RecommendRequest.
type Query struct {
	Location       Location
	QueryEmbedding []float32
	PriceTier      float64
	Cuisines       map[string]struct{}
}

// Target returns the ideal feature vector (rating, price tier, text similarity)
// that candidate restaurants are scored against.
func (q *Query) Target() []float64 {
	return []float64{1.0, q.PriceTier, 1.0}
}

// RankedRestaurant is a restaurant's display metadata plus its score and rank.
type RankedRestaurant struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	City           string     `json:"city"`
	URL            string     `json:"url,omitempty"`
	Location       Location   `json:"location"`
	CuisineTags    []string   `json:"cuisine_tags"`
	PriceTier      float64    `json:"price_tier"`
	PriceRange     PriceRange `json:"price_range"`
	Rating         float64    `json:"rating"`
	Reviews        []string   `json:"reviews,omitempty"`
	TextSimilarity float64    `json:"text_similarity"`
	Score          float64    `json:"score"`
	Rank           int        `json:"rank"`
}

// NewRankedRestaurant copies display metadata from r.
func NewRankedRestaurant(r *Restaurant, similarity, score float64) RankedRestaurant {
	return RankedRestaurant{
		ID:             r.ID,
		Name:           r.Name,
		City:           r.City,
		URL:            r.URL,
		Location:       r.Location,
		CuisineTags:    r.CuisineTags,
		PriceTier:      r.PriceTier,
		PriceRange:     PriceRangeForTier(r.PriceTier),
		Rating:         r.Rating,
		Reviews:        r.Reviews,
		TextSimilarity: similarity,
		Score:          score,
	}
}

// Recommendation is the result of one recommendation request.
type Recommendation struct {
	Restaurants   []RankedRestaurant `json:"restaurants"`
	NearestCities []string           `json:"nearest_cities"`
	// Nearby is the number of restaurants located in NearestCities.
	Nearby int `json:"nearby"`
	// Candidates is the number of restaurants that survived both filters.
	Candidates int `json:"candidates"`
	// Excluded counts candidates dropped because their vectors were degenerate.
	Excluded int `json:"excluded"`
}

// CityOption is a known city and its coordinate.
type CityOption struct {
	Name     string   `json:"name"`
	Location Location `json:"location"`
}

// ListCitiesResponse is the response body of GET /v1/cities.
type ListCitiesResponse struct {
	Data []CityOption `json:"data"`
}

// ListCuisinesResponse is the response body of GET /v1/cuisines.
type ListCuisinesResponse struct {
	Data []string `json:"data"`
}
