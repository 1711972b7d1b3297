// Package retrieve fuses the per-run BM25 and vector indexes with
// Reciprocal Rank Fusion and applies the per-page diversity constraint.
package retrieve

import (
	"context"
	"fmt"
	"sort"

	"github.com/findable-hq/findable/internal/embed"
	"github.com/findable-hq/findable/internal/index"
	"github.com/findable-hq/findable/internal/model"
)

// rrfScale maps raw RRF scores (roughly [0, 0.03] for two lists at k=60)
// onto [0,1]. The normalization is part of the retrieval-to-scoring
// contract: skipping it caps achievable question scores near 0.6 because
// raw RRF never approaches 1.
const rrfScale = 0.02

// NormalizeRRF maps a raw RRF score to [0,1]. Monotonic in raw and
// clamped at 1. Every consumer of RRF scores (the per-question score and
// any aggregate relevance metric) must go through this.
func NormalizeRRF(raw float64) float64 {
	norm := raw / rrfScale
	if norm > 1 {
		norm = 1
	}
	if norm < 0 {
		norm = 0
	}
	return norm
}

// Options tune fusion and diversity.
type Options struct {
	TopK         int     // candidates pulled from each index
	RRFK         int     // rank constant in 1/(k+rank)
	VectorWeight float64
	BM25Weight   float64
	PerPageCap   int // max chunks per page inside the top-N
}

// DefaultOptions returns the shipped retrieval defaults.
func DefaultOptions() Options {
	return Options{TopK: 50, RRFK: 60, VectorWeight: 1, BM25Weight: 1, PerPageCap: 2}
}

func (o *Options) applyDefaults() {
	if o.TopK <= 0 {
		o.TopK = 50
	}
	if o.RRFK <= 0 {
		o.RRFK = 60
	}
	if o.VectorWeight <= 0 && o.BM25Weight <= 0 {
		o.VectorWeight, o.BM25Weight = 1, 1
	}
	if o.PerPageCap <= 0 {
		o.PerPageCap = 2
	}
}

// Retriever runs hybrid search over one run's immutable indexes.
type Retriever struct {
	bm25     *index.BM25Index
	vectors  *index.VectorIndex
	embedder embed.Embedder
	chunks   map[string]*model.Chunk
	opts     Options
}

// New wires a Retriever. It panics when the query-side embedder does not
// match the model the vector index was built with: a mismatch between the
// two embedding spaces produces near-random retrieval with no error
// signal anywhere downstream, so it must fail loudly at construction.
func New(bm25 *index.BM25Index, vectors *index.VectorIndex, embedder embed.Embedder, chunks []model.Chunk, opts Options) *Retriever {
	if vectors.ModelID() != embedder.ID() {
		panic(fmt.Sprintf(
			"retrieve: query embedder %q does not match index model %q",
			embedder.ID(), vectors.ModelID(),
		))
	}
	opts.applyDefaults()

	byID := make(map[string]*model.Chunk, len(chunks))
	for i := range chunks {
		byID[chunks[i].ID] = &chunks[i]
	}
	return &Retriever{
		bm25:     bm25,
		vectors:  vectors,
		embedder: embedder,
		chunks:   byID,
		opts:     opts,
	}
}

// Chunk returns the indexed chunk for an ID.
func (r *Retriever) Chunk(id string) *model.Chunk {
	return r.chunks[id]
}

// Search retrieves the fused top-N chunks for a query. Items absent from
// one index contribute zero from that list. The per-page cap demotes
// overflow chunks to the tail rather than dropping them.
func (r *Retriever) Search(ctx context.Context, query string, topN int) ([]model.RetrievedChunk, error) {
	if topN <= 0 {
		topN = 7
	}

	qv, err := r.embedder.Embed(ctx, embed.KindQuery, []string{query})
	if err != nil {
		return nil, err
	}

	vecHits := r.vectors.Search(qv[0], r.opts.TopK)
	bm25Hits := r.bm25.Search(query, r.opts.TopK)

	fused := make(map[string]float64)
	for rank, h := range vecHits {
		fused[h.ChunkID] += r.opts.VectorWeight / float64(r.opts.RRFK+rank+1)
	}
	for rank, h := range bm25Hits {
		fused[h.ChunkID] += r.opts.BM25Weight / float64(r.opts.RRFK+rank+1)
	}

	ranked := make([]model.RetrievedChunk, 0, len(fused))
	for id, score := range fused {
		rc := model.RetrievedChunk{ChunkID: id, RRFScore: score}
		if c := r.chunks[id]; c != nil {
			rc.PageURL = c.PageURL
		}
		ranked = append(ranked, rc)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].RRFScore != ranked[j].RRFScore {
			return ranked[i].RRFScore > ranked[j].RRFScore
		}
		return ranked[i].ChunkID < ranked[j].ChunkID
	})

	return diversify(ranked, topN, r.opts.PerPageCap), nil
}

// diversify caps chunks-per-page within the head of the list; overflow is
// demoted behind the diverse head, preserving relative order. The cap is
// waived when every candidate comes from one page: a single-page site
// cannot diversify and should not be starved of context for it.
func diversify(ranked []model.RetrievedChunk, topN, perPageCap int) []model.RetrievedChunk {
	pages := make(map[string]bool)
	for _, rc := range ranked {
		pages[rc.PageURL] = true
	}
	if len(pages) <= 1 {
		if len(ranked) > topN {
			return ranked[:topN]
		}
		return ranked
	}

	var head, tail []model.RetrievedChunk
	perPage := make(map[string]int)
	for _, rc := range ranked {
		if perPage[rc.PageURL] < perPageCap {
			perPage[rc.PageURL]++
			head = append(head, rc)
		} else {
			tail = append(tail, rc)
		}
	}
	out := append(head, tail...)
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}
