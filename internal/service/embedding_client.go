package service

import (
	"context"
	"fmt"

	"github.com/fuzzyrestaurants/finder/internal/config"
	"github.com/fuzzyrestaurants/finder/internal/embeddings"
	"github.com/fuzzyrestaurants/finder/internal/googleai"
	"github.com/fuzzyrestaurants/finder/internal/openai"
)

// EmbeddingClient generates embedding vectors for text.
// Implemented by provider-specific clients (OpenAI, Google Gemini, local OpenAI-compatible, mock).
type EmbeddingClient interface {
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
	CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error)
	// Model names the vector space; stored alongside review embeddings.
	Model() string
}

var (
	_ EmbeddingClient = (*openai.Client)(nil)
	_ EmbeddingClient = (*googleai.Client)(nil)
	_ EmbeddingClient = (*embeddings.OpenAIClient)(nil)
	_ EmbeddingClient = (*embeddings.MockClient)(nil)
)

// NewEmbeddingClient builds the client selected by cfg.EmbeddingProvider.
func NewEmbeddingClient(ctx context.Context, cfg *config.Config) (EmbeddingClient, error) {
	switch cfg.EmbeddingProvider {
	case config.EmbeddingProviderOpenAI:
		var opts []openai.ClientOption
		if cfg.EmbeddingModel != "" {
			opts = append(opts, openai.WithModel(cfg.EmbeddingModel))
		}
		if cfg.EmbeddingDimensions > 0 {
			opts = append(opts, openai.WithDimensions(cfg.EmbeddingDimensions))
		}
		if cfg.EmbeddingBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.EmbeddingBaseURL))
		}

		return openai.NewClient(cfg.EmbeddingProviderAPIKey, opts...), nil
	case config.EmbeddingProviderGoogle:
		var opts []googleai.ClientOption
		if cfg.EmbeddingModel != "" {
			opts = append(opts, googleai.WithModel(cfg.EmbeddingModel))
		}
		if cfg.EmbeddingDimensions > 0 {
			opts = append(opts, googleai.WithDimensions(cfg.EmbeddingDimensions))
		}
		if cfg.EmbeddingBaseURL != "" {
			opts = append(opts, googleai.WithBaseURL(cfg.EmbeddingBaseURL))
		}

		client, err := googleai.NewClient(ctx, cfg.EmbeddingProviderAPIKey, opts...)
		if err != nil {
			return nil, fmt.Errorf("google embedding client: %w", err)
		}

		return client, nil
	case config.EmbeddingProviderLocal:
		return embeddings.NewOpenAIClient(embeddings.OpenAIClientConfig{
			BaseURL:    cfg.EmbeddingBaseURL,
			APIKey:     cfg.EmbeddingProviderAPIKey,
			Model:      cfg.EmbeddingModel,
			Dimensions: cfg.EmbeddingDimensions,
		}), nil
	case config.EmbeddingProviderMock:
		if cfg.EmbeddingDimensions > 0 {
			return embeddings.NewMockClientWithDimensions(cfg.EmbeddingDimensions), nil
		}

		return embeddings.NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
}
