package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/fuzzyrestaurants/finder/internal/observability"
)

const uniqueByPeriodEmbedding = 24 * time.Hour

// MissingEmbeddingsLister lists restaurants with reviews lacking an embedding for a model.
type MissingEmbeddingsLister interface {
	ListRestaurantIDsMissingEmbeddings(ctx context.Context, model string) ([]string, error)
}

// ReviewEmbeddingEnqueuerParams configures NewReviewEmbeddingEnqueuer.
type ReviewEmbeddingEnqueuerParams struct {
	Inserter    ReviewEmbeddingInserter
	Lister      MissingEmbeddingsLister
	Model       string
	QueueName   string
	MaxAttempts int
	// Metrics may be nil when metrics are disabled.
	Metrics observability.EmbeddingMetrics
	Logger  *slog.Logger
}

// ReviewEmbeddingEnqueuer enqueues one review_embedding job per restaurant.
type ReviewEmbeddingEnqueuer struct {
	inserter    ReviewEmbeddingInserter
	lister      MissingEmbeddingsLister
	model       string
	queueName   string
	maxAttempts int
	metrics     observability.EmbeddingMetrics
	logger      *slog.Logger
}

// NewReviewEmbeddingEnqueuer creates a ReviewEmbeddingEnqueuer.
func NewReviewEmbeddingEnqueuer(p ReviewEmbeddingEnqueuerParams) *ReviewEmbeddingEnqueuer {
	queue := p.QueueName
	if queue == "" {
		queue = EmbeddingsQueueName
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ReviewEmbeddingEnqueuer{
		inserter:    p.Inserter,
		lister:      p.Lister,
		model:       p.Model,
		queueName:   queue,
		maxAttempts: p.MaxAttempts,
		metrics:     p.Metrics,
		logger:      logger,
	}
}

// Enqueue inserts a job for restaurantID.
func (e *ReviewEmbeddingEnqueuer) Enqueue(ctx context.Context, restaurantID string) error {
	opts := &river.InsertOpts{
		Queue:       e.queueName,
		MaxAttempts: e.maxAttempts,
		UniqueOpts:  river.UniqueOpts{ByArgs: true, ByPeriod: uniqueByPeriodEmbedding},
	}

	_, err := e.inserter.Insert(ctx, ReviewEmbeddingArgs{RestaurantID: restaurantID, Model: e.model}, opts)
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordProviderError(ctx, "enqueue_failed")
		}

		return fmt.Errorf("enqueue review embedding for %s: %w", restaurantID, err)
	}

	if e.metrics != nil {
		e.metrics.RecordJobsEnqueued(ctx, 1)
	}

	return nil
}

// EnqueueMissing enqueues a job for every restaurant whose reviews lack
// embeddings. Individual enqueue failures are logged and counted; the number of
// jobs enqueued is returned.
func (e *ReviewEmbeddingEnqueuer) EnqueueMissing(ctx context.Context) (int, error) {
	ids, err := e.lister.ListRestaurantIDsMissingEmbeddings(ctx, e.model)
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordProviderError(ctx, "list_failed")
		}

		return 0, fmt.Errorf("list restaurants missing embeddings: %w", err)
	}

	enqueued := 0

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return enqueued, err
		}

		if err := e.Enqueue(ctx, id); err != nil {
			e.logger.ErrorContext(ctx, "embedding: enqueue failed", "restaurant_id", id, "error", err)

			continue
		}

		enqueued++
	}

	e.logger.InfoContext(ctx, "embedding: jobs enqueued",
		"model", e.model,
		"restaurants", len(ids),
		"enqueued", enqueued,
	)

	return enqueued, nil
}
