// Command recommend answers one recommendation query from the terminal and
// prints the results as Markdown.
//
// Usage:
//
//	go run ./cmd/recommend -city "Milan" -cuisine Italian -cuisine Pizza -utterance "cozy place with fresh pasta" -price mid
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fuzzyrestaurants/finder/internal/catalog"
	"github.com/fuzzyrestaurants/finder/internal/config"
	"github.com/fuzzyrestaurants/finder/internal/geocoding"
	"github.com/fuzzyrestaurants/finder/internal/models"
	"github.com/fuzzyrestaurants/finder/internal/observability"
	"github.com/fuzzyrestaurants/finder/internal/recommend"
	"github.com/fuzzyrestaurants/finder/internal/render"
	"github.com/fuzzyrestaurants/finder/internal/repository"
	"github.com/fuzzyrestaurants/finder/internal/service"
)

const (
	exitSuccess = 0
	exitFailure = 1
)

// cuisineFlag collects repeated -cuisine flags; each may hold a comma-separated list.
type cuisineFlag []string

func (c *cuisineFlag) String() string {
	return strings.Join(*c, ",")
}

func (c *cuisineFlag) Set(v string) error {
	for _, tag := range strings.Split(v, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			*c = append(*c, tag)
		}
	}

	return nil
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)

		return exitFailure
	}

	// Logs go to stderr so stdout is just the Markdown.
	observability.SetupLogging(os.Stderr, cfg.LogLevel)

	var (
		req      models.RecommendRequest
		cuisines cuisineFlag
		price    string
	)

	flag.StringVar(&req.City, "city", "", "Where to search, e.g. \"Milan\" (required)")
	flag.Var(&cuisines, "cuisine", "Cuisine style to include; repeat or comma-separate")
	flag.StringVar(&req.Utterance, "utterance", "", "Free-text description of the place you want")
	flag.StringVar(&price, "price", "low", "Price range: low, mid, high (or $, $$, $$$)")
	flag.Parse()

	if strings.TrimSpace(req.City) == "" {
		fmt.Fprintln(os.Stderr, "Error: -city is required")
		flag.Usage()

		return exitFailure
	}

	req.Cuisines = cuisines

	req.PriceRange, err = models.ParsePriceRange(price)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)

		return exitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()

	rec, err := recommendOnce(ctx, cfg, req)
	if err != nil {
		slog.Error("Recommendation failed", "error", err)

		if errors.Is(err, geocoding.ErrNoResults) {
			fmt.Fprintf(os.Stderr, "Could not find %q. Try a nearby city name.\n", req.City)
		}

		return exitFailure
	}

	if err := render.Markdown(os.Stdout, rec); err != nil {
		slog.Error("Failed to render results", "error", err)

		return exitFailure
	}

	fmt.Printf("\n_Answered in %s._\n", time.Since(start).Round(time.Millisecond))

	return exitSuccess
}

func recommendOnce(ctx context.Context, cfg *config.Config, req models.RecommendRequest) (*models.Recommendation, error) {
	client, err := service.NewEmbeddingClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}

	cat, err := loadCatalog(ctx, cfg, client.Model())
	if err != nil {
		return nil, err
	}

	embedder, err := service.NewQueryEmbedder(service.QueryEmbedderParams{
		Client:           client,
		DefaultUtterance: cfg.DefaultUtterance,
		CacheSize:        1,
	})
	if err != nil {
		return nil, err
	}

	geocoder, err := geocoding.NewStack(geocoding.StackParams{
		Cities: cat.Cities(),
		Nominatim: geocoding.NominatimOptions{
			BaseURL:   cfg.GeocoderURL,
			UserAgent: cfg.GeocoderUserAgent,
			RateLimit: cfg.GeocoderRateLimit,
			Timeout:   cfg.GeocoderTimeout,
		},
		CacheSize: 1,
	})
	if err != nil {
		return nil, err
	}

	recommender, err := recommend.NewRecommender(recommend.RecommenderParams{
		Catalog:       cat,
		Geocoder:      geocoder,
		Embedder:      embedder,
		NearestCities: cfg.NearestCities,
		TopK:          cfg.TopK,
	})
	if err != nil {
		return nil, err
	}

	return service.NewRecommendService(service.RecommendServiceParams{Recommender: recommender}).Recommend(ctx, req)
}

func loadCatalog(ctx context.Context, cfg *config.Config, model string) (*catalog.Catalog, error) {
	if cfg.CatalogSource != config.CatalogSourcePostgres {
		cat, err := catalog.Load(ctx, catalog.NewFileSource(cfg.CatalogPath))
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}

		return cat, nil
	}

	db, err := repository.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	cat, err := catalog.Load(ctx, catalog.NewPostgresSource(repository.NewRestaurantsRepository(db), model))
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	return cat, nil
}
