// Package embeddings provides text embedding clients that are not tied to a
// hosted vendor SDK: a deterministic mock and a client for self-hosted
// OpenAI-compatible embedding servers.
package embeddings

import "context"

// Client generates text embeddings.
type Client interface {
	// CreateEmbedding returns the embedding vector for input.
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)

	// CreateEmbeddings embeds several inputs in one call, preserving order.
	CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error)
}
