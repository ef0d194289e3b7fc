// Package workers provides River job workers for background review embedding.
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"
	"golang.org/x/time/rate"

	"github.com/fuzzyrestaurants/finder/internal/huberrors"
	"github.com/fuzzyrestaurants/finder/internal/models"
	"github.com/fuzzyrestaurants/finder/internal/observability"
	"github.com/fuzzyrestaurants/finder/internal/service"
)

const reviewEmbeddingTimeout = 60 * time.Second

// reviewStore is the minimal repository surface the worker needs.
type reviewStore interface {
	ListReviewsWithoutEmbedding(ctx context.Context, restaurantID, model string) ([]models.Review, error)
	SetReviewEmbedding(ctx context.Context, restaurantID string, position int, model string, embedding []float32) error
}

// ReviewEmbeddingWorkerDeps holds the dependencies for the review embedding worker.
type ReviewEmbeddingWorkerDeps struct {
	Store  reviewStore
	Client service.EmbeddingClient
	// RateLimiter throttles provider calls across all workers; optional.
	RateLimiter *rate.Limiter
	// Metrics may be nil when metrics are disabled.
	Metrics observability.EmbeddingMetrics
	Logger  *slog.Logger
}

// ReviewEmbeddingWorker embeds the reviews of one restaurant and stores the vectors.
type ReviewEmbeddingWorker struct {
	river.WorkerDefaults[service.ReviewEmbeddingArgs]

	deps ReviewEmbeddingWorkerDeps
}

// NewReviewEmbeddingWorker creates a ReviewEmbeddingWorker.
func NewReviewEmbeddingWorker(deps ReviewEmbeddingWorkerDeps) *ReviewEmbeddingWorker {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &ReviewEmbeddingWorker{deps: deps}
}

// Timeout limits how long a single embedding job can run.
func (w *ReviewEmbeddingWorker) Timeout(*river.Job[service.ReviewEmbeddingArgs]) time.Duration {
	return reviewEmbeddingTimeout
}

// Work loads the reviews still missing a vector, embeds them in one batch and
// persists each vector. Provider errors are retried until the last attempt.
func (w *ReviewEmbeddingWorker) Work(ctx context.Context, job *river.Job[service.ReviewEmbeddingArgs]) error {
	args := job.Args
	start := time.Now()
	logger := w.deps.Logger.With("restaurant_id", args.RestaurantID, "model", args.Model, "job_id", job.ID)

	if args.Model != w.deps.Client.Model() {
		w.finish(ctx, start, "failed_final")
		logger.ErrorContext(ctx, "embedding: job model does not match worker client", "client_model", w.deps.Client.Model())

		return nil
	}

	reviews, err := w.deps.Store.ListReviewsWithoutEmbedding(ctx, args.RestaurantID, args.Model)
	if err != nil {
		w.recordWorkerError(ctx, "list_reviews")

		if errors.Is(err, huberrors.ErrNotFound) {
			w.finish(ctx, start, "failed_final")
			logger.WarnContext(ctx, "embedding: restaurant not found", "error", err)

			return nil // no retry when restaurant is gone
		}

		return w.retryOrGiveUp(ctx, job, start, logger, fmt.Errorf("list reviews: %w", err))
	}

	if len(reviews) == 0 {
		w.finish(ctx, start, "nothing_to_do")
		logger.DebugContext(ctx, "embedding: nothing to do")

		return nil
	}

	if w.deps.RateLimiter != nil {
		if err := w.deps.RateLimiter.Wait(ctx); err != nil {
			w.recordWorkerError(ctx, "rate_limit")

			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	texts := make([]string, len(reviews))
	for i, r := range reviews {
		texts[i] = r.Text
	}

	vectors, err := w.deps.Client.CreateEmbeddings(ctx, texts)
	if err != nil {
		w.recordWorkerError(ctx, "embed")

		return w.retryOrGiveUp(ctx, job, start, logger, fmt.Errorf("create embeddings: %w", err))
	}

	if len(vectors) != len(reviews) {
		w.recordWorkerError(ctx, "embed")

		return w.retryOrGiveUp(ctx, job, start, logger,
			fmt.Errorf("provider returned %d vectors for %d reviews", len(vectors), len(reviews)))
	}

	for i, r := range reviews {
		if err := w.deps.Store.SetReviewEmbedding(ctx, args.RestaurantID, r.Position, args.Model, vectors[i]); err != nil {
			w.recordWorkerError(ctx, "store")

			return w.retryOrGiveUp(ctx, job, start, logger,
				fmt.Errorf("store embedding for review %d: %w", r.Position, err))
		}
	}

	if w.deps.Metrics != nil {
		w.deps.Metrics.RecordReviewsEmbedded(ctx, len(reviews))
	}

	w.finish(ctx, start, "success")
	logger.InfoContext(ctx, "embedding: stored", "reviews", len(reviews))

	return nil
}

// retryOrGiveUp returns err so River retries, or nil on the last attempt so the
// job is not retried forever.
func (w *ReviewEmbeddingWorker) retryOrGiveUp(
	ctx context.Context,
	job *river.Job[service.ReviewEmbeddingArgs],
	start time.Time,
	logger *slog.Logger,
	err error,
) error {
	if job.Attempt >= job.MaxAttempts {
		w.finish(ctx, start, "failed_final")
		logger.ErrorContext(ctx, "embedding: failed (final attempt)", "attempt", job.Attempt, "error", err)

		return nil
	}

	w.finish(ctx, start, "failed_retry")
	logger.WarnContext(ctx, "embedding: failed, will retry", "attempt", job.Attempt, "error", err)

	return err
}

func (w *ReviewEmbeddingWorker) finish(ctx context.Context, start time.Time, outcome string) {
	if w.deps.Metrics == nil {
		return
	}

	w.deps.Metrics.RecordEmbeddingOutcome(ctx, outcome)
	w.deps.Metrics.RecordEmbeddingDuration(ctx, time.Since(start), outcome)
}

func (w *ReviewEmbeddingWorker) recordWorkerError(ctx context.Context, reason string) {
	if w.deps.Metrics != nil {
		w.deps.Metrics.RecordWorkerError(ctx, reason)
	}
}
