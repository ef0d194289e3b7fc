package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/fuzzyrestaurants/finder/internal/observability"
)

const (
	defaultInitialBackoffWhenZero = 500 * time.Millisecond
	backoffMultiplier             = 2
)

// RetryingReviewEmbeddingInserter wraps a ReviewEmbeddingInserter and retries Insert
// on failure with exponential backoff and jitter. Use for transient River/DB errors.
type RetryingReviewEmbeddingInserter struct {
	inner          ReviewEmbeddingInserter
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	metrics        observability.EmbeddingMetrics
}

// RetryingInserterConfig holds configuration for the retrying inserter.
type RetryingInserterConfig struct {
	MaxRetries     int           // Retries after the first attempt (total attempts = 1 + MaxRetries).
	InitialBackoff time.Duration // Backoff after first failure; doubles each attempt, capped by MaxBackoff.
	MaxBackoff     time.Duration
	Metrics        observability.EmbeddingMetrics
}

// NewRetryingReviewEmbeddingInserter returns an inserter that retries Insert with
// exponential backoff and jitter.
func NewRetryingReviewEmbeddingInserter(
	inner ReviewEmbeddingInserter, cfg RetryingInserterConfig,
) *RetryingReviewEmbeddingInserter {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoffWhenZero
	}

	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}

	return &RetryingReviewEmbeddingInserter{
		inner:          inner,
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		metrics:        cfg.Metrics,
	}
}

// Insert calls the inner inserter, retrying up to maxRetries times.
// Context cancellation during backoff aborts immediately.
func (r *RetryingReviewEmbeddingInserter) Insert(
	ctx context.Context, args river.JobArgs, opts *river.InsertOpts,
) (*rivertype.JobInsertResult, error) {
	var lastErr error

	backoff := r.initialBackoff

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		res, err := r.inner.Insert(ctx, args, opts)
		if err == nil {
			return res, nil
		}

		lastErr = err

		if attempt == r.maxRetries {
			break
		}

		if r.metrics != nil {
			r.metrics.RecordProviderError(ctx, "enqueue_retry")
		}

		sleep := jitter(backoff)
		slog.WarnContext(ctx, "embedding enqueue failed, retrying after backoff",
			"kind", args.Kind(),
			"attempt", attempt+1,
			"max_attempts", r.maxRetries+1,
			"backoff", sleep,
			"error", err,
		)

		if err := sleepContext(ctx, sleep); err != nil {
			return nil, err
		}

		backoff = min(backoff*backoffMultiplier, r.maxBackoff)
	}

	return nil, lastErr
}

// jitter returns a duration between 50% and 100% of d.
func jitter(d time.Duration) time.Duration {
	half := d / 2
	if half <= 0 {
		return d
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return half
	}

	//nolint:gosec // G115: modulo result is in [0, half), safe to convert to int64
	return half + time.Duration(int64(binary.BigEndian.Uint64(buf[:])%uint64(half)))
}

// sleepContext blocks for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

var _ ReviewEmbeddingInserter = (*RetryingReviewEmbeddingInserter)(nil)
