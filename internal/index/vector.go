package index

import (
	"sort"

	"github.com/findable-hq/findable/internal/embed"
)

// VectorIndex is a flat cosine-similarity index over unit-normalized
// chunk embeddings. Flat scan is the right shape here: a run indexes at
// most a few thousand chunks.
type VectorIndex struct {
	modelID  string
	chunkIDs []string
	vectors  [][]float32
}

// NewVector creates an empty index bound to an embedding model. The
// retriever checks this ID against its query-side embedder to prevent a
// silent embedding-space mismatch.
func NewVector(modelID string) *VectorIndex {
	return &VectorIndex{modelID: modelID}
}

// ModelID returns the embedding model this index was built with.
func (idx *VectorIndex) ModelID() string { return idx.modelID }

// Len returns the number of indexed vectors.
func (idx *VectorIndex) Len() int { return len(idx.chunkIDs) }

// Add indexes one chunk vector.
func (idx *VectorIndex) Add(chunkID string, vector []float32) {
	idx.chunkIDs = append(idx.chunkIDs, chunkID)
	idx.vectors = append(idx.vectors, vector)
}

// Search returns the top-K chunks by cosine similarity to the query
// vector. Ties break on chunk ID for determinism.
func (idx *VectorIndex) Search(query []float32, topK int) []Hit {
	if len(idx.chunkIDs) == 0 {
		return nil
	}
	hits := make([]Hit, len(idx.chunkIDs))
	for i := range idx.chunkIDs {
		hits[i] = Hit{ChunkID: idx.chunkIDs[i], Score: embed.Dot(query, idx.vectors[i])}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}
