package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Default model served by the local embedding server.
const (
	DefaultLocalModel      = "sentence-transformers/all-MiniLM-L6-v2"
	DefaultLocalDimensions = 384
)

var (
	// ErrEmptyInput is returned when an input text is blank.
	ErrEmptyInput = errors.New("embeddings: input text is empty")
	// ErrUnexpectedResponse is returned when the server does not return one vector per input.
	ErrUnexpectedResponse = errors.New("embeddings: unexpected response")
)

// OpenAIClient talks to any server implementing the OpenAI /embeddings API,
// typically a self-hosted sentence-transformers model.
type OpenAIClient struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

var _ Client = (*OpenAIClient)(nil)

// OpenAIClientConfig configures NewOpenAIClient.
type OpenAIClientConfig struct {
	BaseURL string
	// APIKey may be empty for unauthenticated local servers.
	APIKey string
	// Model defaults to DefaultLocalModel.
	Model string
	// Dimensions is the expected vector length; 0 skips the check.
	Dimensions int
}

// NewOpenAIClient creates a client for an OpenAI-compatible embeddings server.
func NewOpenAIClient(cfg OpenAIClientConfig) *OpenAIClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultLocalModel
	}

	return &OpenAIClient{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(model),
		dimensions: cfg.Dimensions,
	}
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string {
	return string(c.model)
}

// CreateEmbedding implements Client.
func (c *OpenAIClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	out, err := c.CreateEmbeddings(ctx, []string{input})
	if err != nil {
		return nil, err
	}

	return out[0], nil
}

// CreateEmbeddings implements Client.
func (c *OpenAIClient) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInputs
	}

	for i, in := range inputs {
		if strings.TrimSpace(in) == "" {
			return nil, fmt.Errorf("%w (index %d)", ErrEmptyInput, i)
		}
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: inputs,
		Model: c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}

	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", ErrUnexpectedResponse, len(resp.Data), len(inputs))
	}

	out := make([][]float32, len(inputs))

	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("%w: index %d out of range", ErrUnexpectedResponse, d.Index)
		}

		if c.dimensions > 0 && len(d.Embedding) != c.dimensions {
			return nil, fmt.Errorf("%w: dimension %d, want %d", ErrUnexpectedResponse, len(d.Embedding), c.dimensions)
		}

		out[d.Index] = d.Embedding
	}

	return out, nil
}
