package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"
)

// MockEmbedder is a deterministic embedder for tests and offline runs.
// Each token contributes to a hashed bag-of-words projection, so similar
// texts land near each other and byte-identical inputs always produce
// byte-identical vectors across runs and processes.
type MockEmbedder struct {
	dims int
}

// NewMock creates a MockEmbedder with the given dimensionality.
func NewMock(dims int) *MockEmbedder {
	if dims <= 0 {
		dims = 384
	}
	return &MockEmbedder{dims: dims}
}

func (m *MockEmbedder) ID() string { return "mock-deterministic" }

func (m *MockEmbedder) Dimensions() int { return m.dims }

// Embed hashes each token into a handful of vector positions. The query
// kind shares the document space, which is what makes the mock usable for
// end-to-end retrieval tests.
func (m *MockEmbedder) Embed(_ context.Context, _ Kind, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, m.dims)
		for _, tok := range tokenize(text) {
			sum := sha256.Sum256([]byte(tok))
			// Three projections per token, signed by a hash bit.
			for p := 0; p < 3; p++ {
				idx := binary.BigEndian.Uint32(sum[p*4:]) % uint32(m.dims)
				sign := float32(1)
				if sum[12+p]&1 == 1 {
					sign = -1
				}
				weight := float32(1) / float32(math.Sqrt(float64(p+1)))
				v[idx] += sign * weight
			}
		}
		out[i] = Normalize(v)
	}
	return out, nil
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	var toks []string
	for _, f := range fields {
		if len(f) >= 2 {
			toks = append(toks, f)
		}
	}
	return toks
}
