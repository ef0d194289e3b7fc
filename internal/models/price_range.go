package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPriceRange is returned when a price range string is not recognised.
var ErrInvalidPriceRange = errors.New("invalid price range")

// PriceRange is the user-facing price bracket of a query.
type PriceRange uint8

// Price range constants; accepted spellings are listed in priceRangeMap.
const (
	PriceLow PriceRange = iota
	PriceMid
	PriceHigh
)

// priceRangeMap maps accepted spellings to PriceRange values.
var priceRangeMap = map[string]PriceRange{
	"low":  PriceLow,
	"$":    PriceLow,
	"mid":  PriceMid,
	"$$":   PriceMid,
	"high": PriceHigh,
	"$$$":  PriceHigh,
}

// priceTiers is the numeric scale shared by queries and catalog entities.
var priceTiers = [...]float64{
	PriceLow:  0.0,
	PriceMid:  0.5,
	PriceHigh: 1.0,
}

var priceNames = [...]string{
	PriceLow:  "low",
	PriceMid:  "mid",
	PriceHigh: "high",
}

var priceSymbols = [...]string{
	PriceLow:  "$",
	PriceMid:  "$$",
	PriceHigh: "$$$",
}

// ParsePriceRange converts "low"/"mid"/"high" (or "$", "$$", "$$$") to a PriceRange.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParsePriceRange(s string) (PriceRange, error) {
	p, ok := priceRangeMap[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPriceRange, s)
	}

	return p, nil
}

// IsValid reports whether p is one of the defined price ranges.
func (p PriceRange) IsValid() bool {
	return p <= PriceHigh
}

// String returns the canonical name ("low", "mid", "high"), or "" for invalid values.
func (p PriceRange) String() string {
	if !p.IsValid() {
		return ""
	}

	return priceNames[p]
}

// Symbol returns the dollar-sign form used when rendering results.
func (p PriceRange) Symbol() string {
	if !p.IsValid() {
		return ""
	}

	return priceSymbols[p]
}

// Tier returns the numeric price tier in [0, 1].
func (p PriceRange) Tier() float64 {
	if !p.IsValid() {
		return 0
	}

	return priceTiers[p]
}

// PriceRangeForTier maps a catalog price tier back to the closest PriceRange.
func PriceRangeForTier(tier float64) PriceRange {
	switch {
	case tier < 0.25:
		return PriceLow
	case tier < 0.75:
		return PriceMid
	default:
		return PriceHigh
	}
}

// PriceRangeNames returns the canonical names in ascending order.
func PriceRangeNames() []string {
	return append([]string(nil), priceNames[:]...)
}

// MarshalText implements encoding.TextMarshaler.
func (p PriceRange) MarshalText() ([]byte, error) {
	if !p.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPriceRange, p)
	}

	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PriceRange) UnmarshalText(text []byte) error {
	parsed, err := ParsePriceRange(string(text))
	if err != nil {
		return err
	}

	*p = parsed

	return nil
}
