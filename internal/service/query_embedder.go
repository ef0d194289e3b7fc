package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fuzzyrestaurants/finder/internal/observability"
	"github.com/fuzzyrestaurants/finder/pkg/cache"
)

const queryEmbeddingCacheName = "query_embedding"

// QueryEmbedderParams configures NewQueryEmbedder.
type QueryEmbedderParams struct {
	Client EmbeddingClient
	// DefaultUtterance replaces a blank utterance. Required.
	DefaultUtterance string
	CacheSize        int
	CacheTTL         time.Duration
	Metrics          observability.CacheMetrics
	Logger           *slog.Logger
}

// QueryEmbedder embeds user utterances for the recommender. Identical
// utterances are served from an LRU cache and concurrent misses share one call.
type QueryEmbedder struct {
	client           EmbeddingClient
	defaultUtterance string
	cache            *cache.Cache[string, []float32]
	metrics          observability.CacheMetrics
	logger           *slog.Logger
}

// NewQueryEmbedder creates a QueryEmbedder.
func NewQueryEmbedder(p QueryEmbedderParams) (*QueryEmbedder, error) {
	if p.Client == nil {
		return nil, errors.New("query embedder: client is required")
	}

	if strings.TrimSpace(p.DefaultUtterance) == "" {
		return nil, errors.New("query embedder: default utterance is required")
	}

	c, err := cache.New[string, []float32](p.CacheSize, p.CacheTTL, func(k string) string { return k })
	if err != nil {
		return nil, fmt.Errorf("query embedding cache: %w", err)
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &QueryEmbedder{
		client:           p.Client,
		defaultUtterance: strings.TrimSpace(p.DefaultUtterance),
		cache:            c,
		metrics:          p.Metrics,
		logger:           logger,
	}, nil
}

// Embed returns the embedding for utterance. The returned slice is shared with
// the cache and must not be modified.
func (e *QueryEmbedder) Embed(ctx context.Context, utterance string) ([]float32, error) {
	text := strings.TrimSpace(utterance)
	if text == "" {
		text = e.defaultUtterance
	}

	vec, outcome, err := e.cache.Load(ctx, text, func(ctx context.Context, key string) ([]float32, error) {
		start := time.Now()

		v, err := e.client.CreateEmbedding(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("create embedding (%s): %w", e.client.Model(), err)
		}

		e.logger.DebugContext(ctx, "embedded query", "model", e.client.Model(), "duration_ms", time.Since(start).Milliseconds())

		return v, nil
	})

	if e.metrics != nil {
		if outcome == cache.Hit {
			e.metrics.RecordHit(ctx, queryEmbeddingCacheName)
		} else {
			e.metrics.RecordMiss(ctx, queryEmbeddingCacheName)
		}
	}

	if err != nil {
		return nil, err
	}

	return vec, nil
}

// Model returns the underlying client's model name.
func (e *QueryEmbedder) Model() string {
	return e.client.Model()
}

// CacheStats returns the query cache counters.
func (e *QueryEmbedder) CacheStats() cache.Stats {
	return e.cache.Stats()
}
