package dataset

import (
	"log/slog"
	"maps"
	"slices"
)

// Stats summarizes a dataset build.
type Stats struct {
	RowsRead        int
	Skipped         map[string]int
	RatingsClamped  int
	CitiesGeocoded  int
	CitiesFailed    int
	ReviewsEmbedded int
	Restaurants     int
}

func (s *Stats) skip(reason string) {
	s.skipN(reason, 1)
}

func (s *Stats) skipN(reason string, n int) {
	if s.Skipped == nil {
		s.Skipped = make(map[string]int)
	}

	s.Skipped[reason] += n
}

// TotalSkipped returns the number of skipped rows across all reasons.
func (s *Stats) TotalSkipped() int {
	total := 0
	for _, n := range s.Skipped {
		total += n
	}

	return total
}

// LogValue implements slog.LogValuer.
func (s *Stats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("rows_read", s.RowsRead),
		slog.Int("restaurants", s.Restaurants),
		slog.Int("cities_geocoded", s.CitiesGeocoded),
		slog.Int("cities_failed", s.CitiesFailed),
		slog.Int("reviews_embedded", s.ReviewsEmbedded),
		slog.Int("ratings_clamped", s.RatingsClamped),
	}

	for _, reason := range slices.Sorted(maps.Keys(s.Skipped)) {
		attrs = append(attrs, slog.Int("skipped_"+reason, s.Skipped[reason]))
	}

	return slog.GroupValue(attrs...)
}
