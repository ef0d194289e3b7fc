package service

import (
	"context"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

const (
	reviewEmbeddingKind = "review_embedding"
	// EmbeddingsQueueName is the River queue used for review embedding jobs.
	EmbeddingsQueueName = "embeddings"
)

// ReviewEmbeddingInserter inserts embedding jobs (e.g. River client).
type ReviewEmbeddingInserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// ReviewEmbeddingArgs is the job payload for embedding every review of one
// restaurant that has no vector for Model yet. Uniqueness is by restaurant and
// model so repeated enqueues of the same backlog do not create duplicate jobs.
type ReviewEmbeddingArgs struct {
	RestaurantID string `json:"restaurant_id" river:"unique"`
	Model        string `json:"model" river:"unique"`
}

// Kind returns the River job kind.
func (ReviewEmbeddingArgs) Kind() string { return reviewEmbeddingKind }

var _ river.JobArgs = ReviewEmbeddingArgs{}
