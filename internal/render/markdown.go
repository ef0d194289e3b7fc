// Package render formats recommendation results as Markdown.
package render

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/fuzzyrestaurants/finder/internal/models"
)

// TripAdvisorBaseURL prefixes the relative review URLs stored in the catalog.
const TripAdvisorBaseURL = "https://tripadvisor.com"

const markdownTemplate = `{{- if .NearestCities }}_Nearest cities: {{ join .NearestCities ", " }} ({{ .Candidates }} candidates)_
{{ end }}
{{- range .Restaurants }}
## {{ .Rank }}. {{ link . }}
### {{ .City }}

Cuisine style: {{ join .CuisineTags ", " }}

Price range: {{ .PriceRange.Symbol }}

Reviews: {{ join .Reviews ", " }}
{{ else }}
No restaurants matched.
{{ end -}}
`

var markdown = template.Must(template.New("recommendation").Funcs(template.FuncMap{
	"join": strings.Join,
	"link": link,
}).Parse(markdownTemplate))

// Markdown writes rec as Markdown: one section per ranked restaurant with its
// city, cuisine styles, price symbol and reviews.
func Markdown(w io.Writer, rec *models.Recommendation) error {
	if err := markdown.Execute(w, rec); err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}

	return nil
}

func link(r models.RankedRestaurant) string {
	name := escape(r.Name)

	switch {
	case r.URL == "":
		return name
	case strings.HasPrefix(r.URL, "http://"), strings.HasPrefix(r.URL, "https://"):
		return fmt.Sprintf("[%s](%s)", name, r.URL)
	default:
		return fmt.Sprintf("[%s](%s%s)", name, TripAdvisorBaseURL, r.URL)
	}
}

var markdownEscaper = strings.NewReplacer(`[`, `\[`, `]`, `\]`)

func escape(s string) string {
	return markdownEscaper.Replace(s)
}
