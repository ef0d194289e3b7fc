// Package dataset builds the restaurant catalog from the TripAdvisor
// TA_restaurants_curated.csv export: parse, clean, geocode and embed.
package dataset

import (
	"math"
	"regexp"
	"strings"

	"github.com/fuzzyrestaurants/finder/internal/models"
)

var (
	nonWordRun     = regexp.MustCompile(`[^\p{L}\p{N}_]+`)
	punctuation    = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	leadingSpace   = regexp.MustCompile(`^\s`)
	digitRun       = regexp.MustCompile(`\p{Nd}+`)
	headerSpaceRun = regexp.MustCompile(` `)
)

// emptyReviews is how the export spells a restaurant without reviews.
const emptyReviews = "[[], []]"

// NormalizeHeader lower-cases a column name and replaces spaces with underscores.
func NormalizeHeader(h string) string {
	return headerSpaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(h)), "_")
}

// ParseCuisineStyle turns the exported list literal, e.g. "['Italian', 'Pizza']",
// into its words. Runs of non-word characters become single spaces and the
// first and last tokens (the bracket remnants) are dropped, so multi-word
// styles such as "Vegetarian Friendly" yield one tag per word.
func ParseCuisineStyle(raw string) []string {
	tokens := strings.Split(nonWordRun.ReplaceAllString(raw, " "), " ")
	if len(tokens) < 2 {
		return nil
	}

	tags := make([]string, 0, len(tokens)-2)
	for _, t := range tokens[1 : len(tokens)-1] {
		if t != "" {
			tags = append(tags, t)
		}
	}

	return tags
}

// CleanReviews splits the exported review literal on commas and cleans each
// piece: punctuation is removed, then one leading whitespace character, then
// digit runs. Empty pieces are dropped, which also removes the review dates.
func CleanReviews(raw string) []string {
	if strings.TrimSpace(raw) == emptyReviews {
		return nil
	}

	var reviews []string

	for _, piece := range strings.Split(raw, ",") {
		piece = punctuation.ReplaceAllString(piece, "")
		piece = leadingSpace.ReplaceAllString(piece, "")
		piece = digitRun.ReplaceAllString(piece, "")

		if piece != "" {
			reviews = append(reviews, piece)
		}
	}

	return reviews
}

// ParsePriceTier maps the export's price symbols to a tier: "$" is 0,
// "$$ - $$$" is 0.5 and anything else is 1.
func ParsePriceTier(raw string) float64 {
	switch strings.TrimSpace(raw) {
	case "$":
		return models.PriceLow.Tier()
	case "$$ - $$$":
		return models.PriceMid.Tier()
	default:
		return models.PriceHigh.Tier()
	}
}

// NormalizeRating divides the raw rating by the review count and clamps the
// result into [0, 1]. The second result reports whether clamping happened.
func NormalizeRating(rating, reviewCount float64) (float64, bool) {
	v := rating / reviewCount
	if math.IsNaN(v) {
		return 0, true
	}

	switch {
	case v < 0:
		return 0, true
	case v > 1:
		return 1, true
	default:
		return v, false
	}
}
