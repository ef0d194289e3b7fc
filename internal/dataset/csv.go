package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Skip reasons recorded in Stats.Skipped.
const (
	SkipMissingField    = "missing_field"
	SkipInvalidNumber   = "invalid_number"
	SkipNoCuisine       = "no_cuisine"
	SkipNoReviews       = "no_reviews"
	SkipDuplicateID     = "duplicate_id"
	SkipGeocodingFailed = "geocoding_failed"
)

// Columns the build needs, after NormalizeHeader.
const (
	colName         = "name"
	colCity         = "city"
	colCuisineStyle = "cuisine_style"
	colRating       = "rating"
	colPriceRange   = "price_range"
	colReviewCount  = "number_of_reviews"
	colReviews      = "reviews"
	colURL          = "url_ta"
	colID           = "id_ta"
)

var requiredColumns = []string{
	colName, colCity, colCuisineStyle, colRating, colPriceRange, colReviewCount, colReviews, colURL, colID,
}

// ErrMissingColumn is returned when the CSV header lacks a required column.
var ErrMissingColumn = errors.New("dataset: missing column")

// Row is one cleaned CSV row, not yet geocoded or embedded.
type Row struct {
	ID            string
	Name          string
	City          string
	URL           string
	CuisineTags   []string
	PriceTier     float64
	Rating        float64
	Reviews       []string
	RatingClamped bool
}

// ReadCSV parses the export. Rows with any empty cell, unparsable numbers, no
// cuisine tags, no reviews or an ID seen before are skipped and counted in stats.
func ReadCSV(r io.Reader, stats *Stats) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[NormalizeHeader(h)] = i
	}

	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w %q", ErrMissingColumn, col)
		}
	}

	var (
		rows []Row
		seen = make(map[string]struct{})
	)

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", stats.RowsRead+1, err)
		}

		stats.RowsRead++

		row, reason := parseRow(record, len(header), index)
		if reason == "" {
			if _, dup := seen[row.ID]; dup {
				reason = SkipDuplicateID
			}
		}

		if reason != "" {
			stats.skip(reason)

			continue
		}

		seen[row.ID] = struct{}{}

		if row.RatingClamped {
			stats.RatingsClamped++
		}

		rows = append(rows, row)
	}

	return rows, nil
}

func parseRow(record []string, width int, index map[string]int) (Row, string) {
	if len(record) < width {
		return Row{}, SkipMissingField
	}

	for _, cell := range record[:width] {
		if strings.TrimSpace(cell) == "" {
			return Row{}, SkipMissingField
		}
	}

	get := func(col string) string { return strings.TrimSpace(record[index[col]]) }

	rating, err := strconv.ParseFloat(get(colRating), 64)
	if err != nil {
		return Row{}, SkipInvalidNumber
	}

	reviewCount, err := strconv.ParseFloat(get(colReviewCount), 64)
	if err != nil || reviewCount <= 0 {
		return Row{}, SkipInvalidNumber
	}

	tags := ParseCuisineStyle(get(colCuisineStyle))
	if len(tags) == 0 {
		return Row{}, SkipNoCuisine
	}

	reviews := CleanReviews(get(colReviews))
	if len(reviews) == 0 {
		return Row{}, SkipNoReviews
	}

	normalized, clamped := NormalizeRating(rating, reviewCount)

	return Row{
		ID:            get(colID),
		Name:          get(colName),
		City:          get(colCity),
		URL:           get(colURL),
		CuisineTags:   tags,
		PriceTier:     ParsePriceTier(get(colPriceRange)),
		Rating:        normalized,
		Reviews:       reviews,
		RatingClamped: clamped,
	}, ""
}
