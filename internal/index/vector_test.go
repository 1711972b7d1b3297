package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findable-hq/findable/internal/embed"
)

func TestVectorSearchRanksBySimilarity(t *testing.T) {
	t.Parallel()

	emb := embed.NewMock(64)
	idx := NewVector(emb.ID())

	texts := map[string]string{
		"pricing": "pricing plans cost dollars per month subscription",
		"about":   "company history founders berlin office",
	}
	for id, text := range texts {
		vecs, err := emb.Embed(context.Background(), embed.KindDocument, []string{text})
		require.NoError(t, err)
		idx.Add(id, vecs[0])
	}

	qv, err := emb.Embed(context.Background(), embed.KindQuery, []string{"how much does the subscription cost"})
	require.NoError(t, err)

	hits := idx.Search(qv[0], 10)
	require.Len(t, hits, 2)
	assert.Equal(t, "pricing", hits[0].ChunkID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestVectorSearchEmpty(t *testing.T) {
	t.Parallel()

	idx := NewVector("mock-deterministic")
	assert.Nil(t, idx.Search([]float32{1, 0}, 5))
	assert.Zero(t, idx.Len())
}

func TestVectorTieBreakOnChunkID(t *testing.T) {
	t.Parallel()

	idx := NewVector("mock-deterministic")
	v := []float32{1, 0, 0}
	idx.Add("b", v)
	idx.Add("a", v)

	hits := idx.Search(v, 10)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ChunkID)
}

func TestVectorTopK(t *testing.T) {
	t.Parallel()

	idx := NewVector("mock-deterministic")
	idx.Add("a", []float32{1, 0})
	idx.Add("b", []float32{0.9, 0.1})
	idx.Add("c", []float32{0, 1})

	hits := idx.Search([]float32{1, 0}, 2)
	assert.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ChunkID)
}
