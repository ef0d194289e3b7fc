package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/fuzzyrestaurants/finder/internal/huberrors"
	"github.com/fuzzyrestaurants/finder/internal/models"
	"github.com/fuzzyrestaurants/finder/internal/service"
)

type storedEmbedding struct {
	position  int
	embedding []float32
}

type mockReviewStore struct {
	reviews []models.Review
	listErr error
	setErr  error
	stored  []storedEmbedding
}

func (m *mockReviewStore) ListReviewsWithoutEmbedding(_ context.Context, _, _ string) ([]models.Review, error) {
	return m.reviews, m.listErr
}

func (m *mockReviewStore) SetReviewEmbedding(_ context.Context, _ string, position int, _ string, embedding []float32) error {
	if m.setErr != nil {
		return m.setErr
	}

	m.stored = append(m.stored, storedEmbedding{position, embedding})

	return nil
}

type mockEmbeddingClient struct {
	model string
	err   error
	short bool
	calls int
}

func (m *mockEmbeddingClient) CreateEmbedding(_ context.Context, input string) ([]float32, error) {
	return []float32{float32(len(input))}, m.err
}

func (m *mockEmbeddingClient) CreateEmbeddings(_ context.Context, inputs []string) ([][]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}

	n := len(inputs)
	if m.short {
		n--
	}

	out := make([][]float32, n)
	for i := range out {
		out[i] = []float32{float32(len(inputs[i])), 1}
	}

	return out, nil
}

func (m *mockEmbeddingClient) Model() string { return m.model }

type recordingMetrics struct {
	outcomes []string
	errors   []string
	embedded int
}

func (m *recordingMetrics) RecordJobsEnqueued(context.Context, int64)   {}
func (m *recordingMetrics) RecordProviderError(context.Context, string) {}
func (m *recordingMetrics) RecordEmbeddingOutcome(_ context.Context, status string) {
	m.outcomes = append(m.outcomes, status)
}
func (m *recordingMetrics) RecordWorkerError(_ context.Context, reason string) {
	m.errors = append(m.errors, reason)
}
func (m *recordingMetrics) RecordEmbeddingDuration(context.Context, time.Duration, string) {}
func (m *recordingMetrics) RecordReviewsEmbedded(_ context.Context, n int)                 { m.embedded += n }

func newJob(attempt, maxAttempts int, model string) *river.Job[service.ReviewEmbeddingArgs] {
	return &river.Job[service.ReviewEmbeddingArgs]{
		JobRow: &rivertype.JobRow{ID: 7, Attempt: attempt, MaxAttempts: maxAttempts},
		Args:   service.ReviewEmbeddingArgs{RestaurantID: "d1", Model: model},
	}
}

func TestReviewEmbeddingWorker_Work(t *testing.T) {
	ctx := context.Background()
	reviews := []models.Review{
		{RestaurantID: "d1", Position: 0, Text: "great pasta"},
		{RestaurantID: "d1", Position: 1, Text: "slow"},
	}

	t.Run("embeds and stores every review", func(t *testing.T) {
		store := &mockReviewStore{reviews: reviews}
		client := &mockEmbeddingClient{model: "m"}
		metrics := &recordingMetrics{}
		w := NewReviewEmbeddingWorker(ReviewEmbeddingWorkerDeps{
			Store: store, Client: client, Metrics: metrics,
			RateLimiter: rate.NewLimiter(rate.Inf, 1),
		})

		require.NoError(t, w.Work(ctx, newJob(1, 3, "m")))

		assert.Equal(t, []storedEmbedding{
			{0, []float32{11, 1}},
			{1, []float32{4, 1}},
		}, store.stored)
		assert.Equal(t, []string{"success"}, metrics.outcomes)
		assert.Equal(t, 2, metrics.embedded)
	})

	t.Run("nothing to do", func(t *testing.T) {
		client := &mockEmbeddingClient{model: "m"}
		metrics := &recordingMetrics{}
		w := NewReviewEmbeddingWorker(ReviewEmbeddingWorkerDeps{Store: &mockReviewStore{}, Client: client, Metrics: metrics})

		require.NoError(t, w.Work(ctx, newJob(1, 3, "m")))
		assert.Zero(t, client.calls)
		assert.Equal(t, []string{"nothing_to_do"}, metrics.outcomes)
	})

	t.Run("missing restaurant is not retried", func(t *testing.T) {
		store := &mockReviewStore{listErr: huberrors.NewNotFoundError("restaurant", "gone")}
		metrics := &recordingMetrics{}
		w := NewReviewEmbeddingWorker(ReviewEmbeddingWorkerDeps{Store: store, Client: &mockEmbeddingClient{model: "m"}, Metrics: metrics})

		require.NoError(t, w.Work(ctx, newJob(1, 3, "m")))
		assert.Equal(t, []string{"failed_final"}, metrics.outcomes)
		assert.Equal(t, []string{"list_reviews"}, metrics.errors)
	})

	t.Run("provider failure retries before last attempt", func(t *testing.T) {
		metrics := &recordingMetrics{}
		w := NewReviewEmbeddingWorker(ReviewEmbeddingWorkerDeps{
			Store:   &mockReviewStore{reviews: reviews},
			Client:  &mockEmbeddingClient{model: "m", err: errors.New("429")},
			Metrics: metrics,
		})

		err := w.Work(ctx, newJob(1, 3, "m"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "429")
		assert.Equal(t, []string{"failed_retry"}, metrics.outcomes)
		assert.Equal(t, []string{"embed"}, metrics.errors)
	})

	t.Run("provider failure on last attempt gives up", func(t *testing.T) {
		metrics := &recordingMetrics{}
		w := NewReviewEmbeddingWorker(ReviewEmbeddingWorkerDeps{
			Store:   &mockReviewStore{reviews: reviews},
			Client:  &mockEmbeddingClient{model: "m", err: errors.New("429")},
			Metrics: metrics,
		})

		require.NoError(t, w.Work(ctx, newJob(3, 3, "m")))
		assert.Equal(t, []string{"failed_final"}, metrics.outcomes)
	})

	t.Run("short provider response retries", func(t *testing.T) {
		store := &mockReviewStore{reviews: reviews}
		w := NewReviewEmbeddingWorker(ReviewEmbeddingWorkerDeps{Store: store, Client: &mockEmbeddingClient{model: "m", short: true}})

		require.Error(t, w.Work(ctx, newJob(1, 3, "m")))
		assert.Empty(t, store.stored)
	})

	t.Run("store failure retries", func(t *testing.T) {
		metrics := &recordingMetrics{}
		w := NewReviewEmbeddingWorker(ReviewEmbeddingWorkerDeps{
			Store:   &mockReviewStore{reviews: reviews, setErr: errors.New("conn reset")},
			Client:  &mockEmbeddingClient{model: "m"},
			Metrics: metrics,
		})

		require.Error(t, w.Work(ctx, newJob(2, 3, "m")))
		assert.Equal(t, []string{"store"}, metrics.errors)
	})

	t.Run("model mismatch is dropped", func(t *testing.T) {
		client := &mockEmbeddingClient{model: "other"}
		w := NewReviewEmbeddingWorker(ReviewEmbeddingWorkerDeps{Store: &mockReviewStore{reviews: reviews}, Client: client})

		require.NoError(t, w.Work(ctx, newJob(1, 3, "m")))
		assert.Zero(t, client.calls)
	})

	t.Run("cancelled rate limit wait", func(t *testing.T) {
		limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
		limiter.Allow()

		cctx, cancel := context.WithCancel(ctx)
		cancel()

		metrics := &recordingMetrics{}
		w := NewReviewEmbeddingWorker(ReviewEmbeddingWorkerDeps{
			Store: &mockReviewStore{reviews: reviews}, Client: &mockEmbeddingClient{model: "m"},
			RateLimiter: limiter, Metrics: metrics,
		})

		require.Error(t, w.Work(cctx, newJob(1, 3, "m")))
		assert.Equal(t, []string{"rate_limit"}, metrics.errors)
	})
}

func TestReviewEmbeddingWorker_Timeout(t *testing.T) {
	w := NewReviewEmbeddingWorker(ReviewEmbeddingWorkerDeps{})
	assert.Equal(t, reviewEmbeddingTimeout, w.Timeout(nil))
}
