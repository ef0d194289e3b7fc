package googleai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_CreateEmbeddings(t *testing.T) {
	var requests int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++

		assert.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-embedding-001:batchEmbedContents"), r.URL.Path)

		var body struct {
			Requests []json.RawMessage `json:"requests"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		embeddings := make([]map[string]any, len(body.Requests))
		for i := range body.Requests {
			embeddings[i] = map[string]any{"values": []float32{float32(i + 1), 0, 0}}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": embeddings})
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(), "test-key", WithBaseURL(srv.URL), WithDimensions(3))
	require.NoError(t, err)

	out, err := c.CreateEmbeddings(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0, 0}, {2, 0, 0}}, out)
	assert.Equal(t, 1, requests)
}

func TestClient_rejectsBadInput(t *testing.T) {
	c, err := NewClient(context.Background(), "test-key", WithBaseURL("http://127.0.0.1:1"))
	require.NoError(t, err)

	_, err = c.CreateEmbedding(context.Background(), " ")
	assert.ErrorIs(t, err, ErrEmptyInput)

	c.dimensions = 0
	_, err = c.CreateEmbedding(context.Background(), "x")
	assert.ErrorIs(t, err, ErrInvalidDims)
}
