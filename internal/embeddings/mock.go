package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	vecmath "github.com/fuzzyrestaurants/finder/pkg/embeddings"
)

// DefaultMockDimensions matches all-MiniLM-L6-v2, the model the catalog is built with.
const DefaultMockDimensions = 384

// ErrNoInputs is returned when CreateEmbeddings is called without inputs.
var ErrNoInputs = errors.New("embeddings: no inputs")

// MockClient produces deterministic unit vectors seeded from the SHA-256 of the
// input text. Equal texts give equal vectors; the empty string is accepted.
type MockClient struct {
	dimensions int
}

// NewMockClient creates a mock client with DefaultMockDimensions.
func NewMockClient() *MockClient {
	return &MockClient{dimensions: DefaultMockDimensions}
}

// NewMockClientWithDimensions creates a mock client with custom dimensions.
func NewMockClientWithDimensions(dimensions int) *MockClient {
	return &MockClient{dimensions: dimensions}
}

// CreateEmbedding implements Client.
func (c *MockClient) CreateEmbedding(_ context.Context, input string) ([]float32, error) {
	return c.embed(input), nil
}

// CreateEmbeddings implements Client.
func (c *MockClient) CreateEmbeddings(_ context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInputs
	}

	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		out[i] = c.embed(in)
	}

	return out, nil
}

// embed stretches the text hash over the vector by re-hashing with a block
// counter, maps each 32-bit word to [-1, 1] and normalizes.
func (c *MockClient) embed(text string) []float32 {
	vec := make([]float32, c.dimensions)
	seed := sha256.Sum256([]byte(text))

	var block [sha256.Size]byte

	for i := range vec {
		word := i % (sha256.Size / 4)
		if word == 0 {
			var counter [4]byte
			binary.BigEndian.PutUint32(counter[:], uint32(i)) //nolint:gosec // dimensions fit in uint32
			block = sha256.Sum256(append(seed[:], counter[:]...))
		}

		u := binary.BigEndian.Uint32(block[word*4:])
		vec[i] = float32(float64(u)/float64(^uint32(0))*2 - 1)
	}

	vecmath.NormalizeL2(vec)

	return vec
}

var _ Client = (*MockClient)(nil)

// Model returns a name that identifies the mock's vector space.
func (c *MockClient) Model() string {
	return fmt.Sprintf("mock-sha256-%d", c.dimensions)
}
