// Package embed provides the text-to-vector capability behind vector
// retrieval. All vectors are unit-normalized so cosine similarity reduces
// to a dot product.
package embed

import (
	"context"
	"math"
)

// Kind distinguishes query-side from document-side embedding. BGE-family
// models apply different prefixes to each side.
type Kind string

const (
	KindQuery    Kind = "query"
	KindDocument Kind = "document"
)

// Embedder is the capability consumed by the indexer and retriever.
// Implementations must return one unit-normalized vector per input text.
type Embedder interface {
	Embed(ctx context.Context, kind Kind, texts []string) ([][]float32, error)
	ID() string
	Dimensions() int
}

// Normalize scales v to unit length in place and returns it. A zero vector
// is left unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}

// Dot returns the dot product of two equal-length vectors. For
// unit-normalized vectors this equals cosine similarity.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
