package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildBM25(t *testing.T, docs map[string]string) *BM25Index {
	t.Helper()
	idx := NewBM25(DefaultBM25Options())
	for id, text := range docs {
		idx.Add(id, text)
	}
	idx.Build()
	return idx
}

func TestBM25RanksMatchingDocFirst(t *testing.T) {
	t.Parallel()

	idx := buildBM25(t, map[string]string{
		"pricing": "Acme pricing starts at twenty nine dollars per month for small teams.",
		"about":   "Acme was founded in Berlin and builds audit software.",
		"contact": "Reach the Acme support team by email or phone.",
	})

	hits := idx.Search("how much does pricing cost per month", 10)
	require.NotEmpty(t, hits)
	assert.Equal(t, "pricing", hits[0].ChunkID)
	assert.Greater(t, hits[0].Score, 0.0)
}

func TestBM25SearchBeforeBuild(t *testing.T) {
	t.Parallel()

	idx := NewBM25(DefaultBM25Options())
	idx.Add("a", "some text")
	assert.Nil(t, idx.Search("text", 5))
}

func TestBM25EmptyIndex(t *testing.T) {
	t.Parallel()

	idx := NewBM25(DefaultBM25Options())
	idx.Build()
	assert.Nil(t, idx.Search("anything", 5))
	assert.Zero(t, idx.Len())
}

func TestBM25TopKTruncation(t *testing.T) {
	t.Parallel()

	idx := buildBM25(t, map[string]string{
		"a": "shared keyword alpha",
		"b": "shared keyword beta",
		"c": "shared keyword gamma",
	})
	hits := idx.Search("shared keyword", 2)
	assert.Len(t, hits, 2)
}

func TestBM25DeterministicTieBreak(t *testing.T) {
	t.Parallel()

	idx := buildBM25(t, map[string]string{
		"b": "identical words here",
		"a": "identical words here",
	})
	hits := idx.Search("identical words", 10)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ChunkID, "equal scores break on chunk ID")
}

func TestBM25Tokenize(t *testing.T) {
	t.Parallel()

	idx := NewBM25(DefaultBM25Options())
	tokens := idx.tokenize("The pricing, AND the API: $29 per-month!")
	assert.Equal(t, []string{"pricing", "api", "per", "month"}, tokens,
		"stopwords and short tokens drop, punctuation splits")
}

func TestBM25NoStopwordFiltering(t *testing.T) {
	t.Parallel()

	idx := NewBM25(BM25Options{MinTokenLen: 3, UseStopwords: false})
	tokens := idx.tokenize("the pricing and the api")
	assert.Contains(t, tokens, "the")
	assert.Contains(t, tokens, "and")
}

func TestBM25RareTermOutweighsCommon(t *testing.T) {
	t.Parallel()

	idx := buildBM25(t, map[string]string{
		"a": "platform platform platform audit",
		"b": "platform webhook",
		"c": "platform dashboard",
	})
	hits := idx.Search("webhook", 10)
	require.NotEmpty(t, hits)
	assert.Equal(t, "b", hits[0].ChunkID)
	assert.Len(t, hits, 1, "docs without the term never score")
}
