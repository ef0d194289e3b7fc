package render

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuzzyrestaurants/finder/internal/models"
)

func TestMarkdown(t *testing.T) {
	rec := &models.Recommendation{
		NearestCities: []string{"Amsterdam", "Rotterdam"},
		Candidates:    12,
		Restaurants: []models.RankedRestaurant{
			{
				Rank:        1,
				Name:        "De Silveren Spiegel",
				City:        "Amsterdam",
				URL:         "/Restaurant_Review-g188590-d693419",
				CuisineTags: []string{"Dutch", "European"},
				PriceRange:  models.PriceHigh,
				Reviews:     []string{"Great food", "Nice"},
			},
			{
				Rank:        2,
				Name:        "Cafe [Noord]",
				City:        "Rotterdam",
				CuisineTags: []string{"Cafe"},
				PriceRange:  models.PriceLow,
				Reviews:     []string{"Cozy"},
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Markdown(&buf, rec))

	out := buf.String()
	assert.Contains(t, out, "_Nearest cities: Amsterdam, Rotterdam (12 candidates)_")
	assert.Contains(t, out, "## 1. [De Silveren Spiegel](https://tripadvisor.com/Restaurant_Review-g188590-d693419)\n### Amsterdam")
	assert.Contains(t, out, "Cuisine style: Dutch, European")
	assert.Contains(t, out, "Price range: $$$")
	assert.Contains(t, out, "Reviews: Great food, Nice")
	assert.Contains(t, out, `## 2. Cafe \[Noord\]`)
	assert.Contains(t, out, "Price range: $\n")
	assert.NotContains(t, out, "No restaurants matched.")
}

func TestMarkdown_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Markdown(&buf, &models.Recommendation{NearestCities: []string{"Oslo"}}))

	assert.Contains(t, buf.String(), "No restaurants matched.")
}

func TestLink(t *testing.T) {
	assert.Equal(t, "Plain", link(models.RankedRestaurant{Name: "Plain"}))
	assert.Equal(t, "[Abs](https://example.com/x)", link(models.RankedRestaurant{Name: "Abs", URL: "https://example.com/x"}))
}
