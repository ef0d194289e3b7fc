// Command build-catalog turns the TripAdvisor restaurants CSV into a catalog.
//
// Usage:
//
//	go run ./cmd/build-catalog -csv data/TA_restaurants_curated.csv -out data/restaurants.json.gz
//	go run ./cmd/build-catalog -csv data/TA_restaurants_curated.csv -sink postgres
//
// The file sink embeds every review inline. The postgres sink stores restaurants
// without vectors and enqueues review embedding jobs for cmd/embed-worker.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"golang.org/x/time/rate"

	"github.com/fuzzyrestaurants/finder/internal/catalog"
	"github.com/fuzzyrestaurants/finder/internal/config"
	"github.com/fuzzyrestaurants/finder/internal/dataset"
	"github.com/fuzzyrestaurants/finder/internal/geocoding"
	"github.com/fuzzyrestaurants/finder/internal/models"
	"github.com/fuzzyrestaurants/finder/internal/observability"
	"github.com/fuzzyrestaurants/finder/internal/repository"
	"github.com/fuzzyrestaurants/finder/internal/service"
	"github.com/fuzzyrestaurants/finder/pkg/database"
)

const (
	sinkFile     = "file"
	sinkPostgres = "postgres"

	enqueueRetries    = 3
	enqueueMaxBackoff = 5 * time.Second

	exitSuccess = 0
	exitFailure = 1
)

var errUnknownSink = errors.New("unknown sink")

// options holds the command line flags.
type options struct {
	CSVPath string
	Sink    string
	OutPath string
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

	observability.SetupLogging(os.Stderr, cfg.LogLevel)

	opts := options{}
	flag.StringVar(&opts.CSVPath, "csv", "", "Path to the restaurants CSV file (required)")
	flag.StringVar(&opts.Sink, "sink", sinkFile, "Where to write the catalog: file or postgres")
	flag.StringVar(&opts.OutPath, "out", cfg.CatalogPath, "Output path for the file sink (.gz is compressed)")
	flag.Parse()

	if opts.CSVPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -csv is required")
		flag.Usage()

		return exitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()

	stats, err := build(ctx, cfg, opts)
	if err != nil {
		slog.Error("Catalog build failed", "error", err)

		return exitFailure
	}

	slog.Info("Catalog build complete", "stats", stats, "elapsed", time.Since(start).Round(time.Millisecond))

	return exitSuccess
}

func build(ctx context.Context, cfg *config.Config, opts options) (*dataset.Stats, error) {
	if opts.Sink != sinkFile && opts.Sink != sinkPostgres {
		return nil, fmt.Errorf("%w: %q", errUnknownSink, opts.Sink)
	}

	f, err := os.Open(opts.CSVPath)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	stats := &dataset.Stats{}

	rows, err := dataset.ReadCSV(f, stats)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	client, err := service.NewEmbeddingClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}

	params := dataset.BuilderParams{
		Geocoder: geocoding.NewNominatimClient(geocoding.NominatimOptions{
			BaseURL:   cfg.GeocoderURL,
			UserAgent: cfg.GeocoderUserAgent,
			RateLimit: cfg.GeocoderRateLimit,
			Timeout:   cfg.GeocoderTimeout,
		}),
		Concurrency: cfg.EmbeddingMaxConcurrent,
		RateLimiter: rate.NewLimiter(rate.Limit(cfg.EmbeddingRateLimit), 1),
	}
	if opts.Sink == sinkFile {
		params.Embedder = client
	}

	builder, err := dataset.NewBuilder(params)
	if err != nil {
		return nil, err
	}

	restaurants, err := builder.Build(ctx, rows, stats)
	if err != nil {
		return nil, fmt.Errorf("build restaurants: %w", err)
	}

	if opts.Sink == sinkFile {
		if err := catalog.NewFileSink(opts.OutPath, client.Model()).Write(ctx, restaurants); err != nil {
			return nil, fmt.Errorf("write catalog: %w", err)
		}

		slog.Info("Catalog written", "path", opts.OutPath, "restaurants", len(restaurants))

		return stats, nil
	}

	if err := storeAndEnqueue(ctx, cfg, restaurants, client.Model()); err != nil {
		return nil, err
	}

	return stats, nil
}

// storeAndEnqueue upserts restaurants into Postgres and enqueues an embedding
// job for every restaurant that still has reviews without vectors.
func storeAndEnqueue(ctx context.Context, cfg *config.Config, restaurants []models.Restaurant, model string) error {
	db, err := repository.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repository.NewRestaurantsRepository(db)

	stored, err := dataset.UpsertAll(ctx, repo, restaurants, model)
	if err != nil {
		return fmt.Errorf("store restaurants: %w", err)
	}

	slog.Info("Restaurants stored", "restaurants", stored)

	riverClient, err := newInsertOnlyClient(ctx, db)
	if err != nil {
		return err
	}

	enqueuer := service.NewReviewEmbeddingEnqueuer(service.ReviewEmbeddingEnqueuerParams{
		Inserter: service.NewRetryingReviewEmbeddingInserter(riverClient, service.RetryingInserterConfig{
			MaxRetries: enqueueRetries,
			MaxBackoff: enqueueMaxBackoff,
		}),
		Lister:      repo,
		Model:       model,
		MaxAttempts: cfg.EmbeddingMaxAttempts,
	})

	enqueued, err := enqueuer.EnqueueMissing(ctx)
	if err != nil {
		return fmt.Errorf("enqueue embedding jobs: %w", err)
	}

	fmt.Printf("Stored %d restaurant(s), enqueued %d embedding job(s).\n", stored, enqueued)

	return nil
}

// newInsertOnlyClient returns a River client that only inserts jobs; the
// embed-worker command processes them.
func newInsertOnlyClient(ctx context.Context, db *pgxpool.Pool) (*river.Client[pgx.Tx], error) {
	if err := database.MigrateRiver(ctx, db); err != nil {
		return nil, err
	}

	client, err := river.NewClient(riverpgxv5.New(db), &river.Config{})
	if err != nil {
		return nil, fmt.Errorf("create River client: %w", err)
	}

	return client, nil
}
