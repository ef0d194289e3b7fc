// Command embed-worker runs the River workers that embed restaurant reviews
// stored in Postgres. On start it enqueues a job for every restaurant that is
// still missing review vectors for the configured model.
package main

import (
	"context"
	"errors"
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

	"github.com/fuzzyrestaurants/finder/internal/config"
	"github.com/fuzzyrestaurants/finder/internal/observability"
	"github.com/fuzzyrestaurants/finder/internal/repository"
	"github.com/fuzzyrestaurants/finder/internal/service"
	"github.com/fuzzyrestaurants/finder/internal/workers"
	"github.com/fuzzyrestaurants/finder/pkg/database"
)

const (
	jobTimeout        = 60 * time.Second
	enqueueRetries    = 3
	enqueueMaxBackoff = 5 * time.Second
	shutdownTimeout   = 30 * time.Second

	exitSuccess = 0
	exitFailure = 1
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)

		return exitFailure
	}

	observability.SetupLogging(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	meterProvider, err := observability.NewMeterProvider(ctx, observability.MeterProviderConfig{
		ServiceName: cfg.ServiceName + "-worker",
		Exporter:    cfg.OtelMetricsExporter,
	})
	if err != nil {
		slog.Error("Failed to create meter provider", "error", err)

		return exitFailure
	}

	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			slog.Error("shutdown meter provider", "error", err)
		}
	}()

	metrics, err := observability.NewMetrics(meterProvider.MeterOrNil())
	if err != nil {
		slog.Error("Failed to create metrics", "error", err)

		return exitFailure
	}

	db, err := repository.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)

		return exitFailure
	}
	defer db.Close()

	if err := database.MigrateRiver(ctx, db); err != nil {
		slog.Error("Failed to migrate River", "error", err)

		return exitFailure
	}

	client, err := service.NewEmbeddingClient(ctx, cfg)
	if err != nil {
		slog.Error("Failed to create embedding client", "error", err)

		return exitFailure
	}

	repo := repository.NewRestaurantsRepository(db)

	riverClient, err := initRiver(db, cfg, repo, client, metrics.Embedding)
	if err != nil {
		slog.Error("Failed to initialize River", "error", err)

		return exitFailure
	}

	enqueuer := service.NewReviewEmbeddingEnqueuer(service.ReviewEmbeddingEnqueuerParams{
		Inserter: service.NewRetryingReviewEmbeddingInserter(riverClient, service.RetryingInserterConfig{
			MaxRetries: enqueueRetries,
			MaxBackoff: enqueueMaxBackoff,
			Metrics:    metrics.Embedding,
		}),
		Lister:      repo,
		Model:       client.Model(),
		MaxAttempts: cfg.EmbeddingMaxAttempts,
		Metrics:     metrics.Embedding,
	})

	enqueued, err := enqueuer.EnqueueMissing(ctx)
	if err != nil {
		slog.Error("Failed to enqueue missing embeddings", "error", err)

		return exitFailure
	}

	slog.Info("Review embedding worker starting",
		"model", client.Model(),
		"enqueued", enqueued,
		"workers", cfg.EmbeddingMaxConcurrent,
		"rate_limit", cfg.EmbeddingRateLimit,
	)

	if err := riverClient.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Failed to start River", "error", err)

		return exitFailure
	}

	<-ctx.Done()

	slog.Info("Stopping River job queue...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stop waits for in-flight jobs to complete.
	if err := riverClient.Stop(shutdownCtx); err != nil {
		slog.Error("River forced to shutdown", "error", err)

		return exitFailure
	}

	slog.Info("River job queue stopped")

	return exitSuccess
}

// initRiver creates the River client with the review embedding worker registered.
func initRiver(
	db *pgxpool.Pool,
	cfg *config.Config,
	repo *repository.RestaurantsRepository,
	client service.EmbeddingClient,
	metrics observability.EmbeddingMetrics,
) (*river.Client[pgx.Tx], error) {
	// Shared across workers so the provider sees at most EmbeddingRateLimit calls per second.
	rateLimiter := rate.NewLimiter(rate.Limit(cfg.EmbeddingRateLimit), 1)

	embeddingWorker := workers.NewReviewEmbeddingWorker(workers.ReviewEmbeddingWorkerDeps{
		Store:       repo,
		Client:      client,
		RateLimiter: rateLimiter,
		Metrics:     metrics,
	})

	riverWorkers := river.NewWorkers()
	river.AddWorker(riverWorkers, embeddingWorker)

	riverClient, err := river.NewClient(riverpgxv5.New(db), &river.Config{
		Queues: map[string]river.QueueConfig{
			service.EmbeddingsQueueName: {MaxWorkers: cfg.EmbeddingMaxConcurrent},
		},
		Workers:      riverWorkers,
		ErrorHandler: &workers.ErrorHandler{},
		JobTimeout:   jobTimeout,
		MaxAttempts:  cfg.EmbeddingMaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("create River client: %w", err)
	}

	return riverClient, nil
}
