// Package index holds the two per-run chunk indexes: a BM25 inverted
// index for lexical matching and a flat vector index for semantic
// matching. Both are built once behind the pipeline's build barrier and
// read-only afterwards, so searches need no locks.
package index

import (
	"math"
	"sort"
	"strings"
)

// Hit is one scored index result.
type Hit struct {
	ChunkID string
	Score   float64
}

// BM25Options tune the ranking function.
type BM25Options struct {
	K1           float64
	B            float64
	MinTokenLen  int
	UseStopwords bool
}

// DefaultBM25Options returns the shipped BM25 parameters.
func DefaultBM25Options() BM25Options {
	return BM25Options{K1: 1.5, B: 0.75, MinTokenLen: 3, UseStopwords: true}
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "was": true,
	"what": true, "when": true, "where": true, "who": true, "will": true,
	"with": true, "this": true, "that": true, "from": true, "they": true,
	"how": true, "does": true, "has": true, "have": true, "your": true,
}

type posting struct {
	doc  int
	freq int
}

// BM25Index is an inverted index over chunk texts.
type BM25Index struct {
	opts     BM25Options
	chunkIDs []string
	docLens  []int
	avgLen   float64
	postings map[string][]posting
	built    bool
}

// NewBM25 creates an empty index.
func NewBM25(opts BM25Options) *BM25Index {
	if opts.K1 <= 0 {
		opts.K1 = 1.5
	}
	if opts.B <= 0 {
		opts.B = 0.75
	}
	if opts.MinTokenLen <= 0 {
		opts.MinTokenLen = 3
	}
	return &BM25Index{
		opts:     opts,
		postings: make(map[string][]posting),
	}
}

// Add indexes one chunk. Must not be called after Build.
func (idx *BM25Index) Add(chunkID, text string) {
	doc := len(idx.chunkIDs)
	idx.chunkIDs = append(idx.chunkIDs, chunkID)

	tokens := idx.tokenize(text)
	idx.docLens = append(idx.docLens, len(tokens))

	freqs := make(map[string]int)
	for _, t := range tokens {
		freqs[t]++
	}
	for term, f := range freqs {
		idx.postings[term] = append(idx.postings[term], posting{doc: doc, freq: f})
	}
}

// Build finalizes document statistics. Search before Build returns nil.
func (idx *BM25Index) Build() {
	total := 0
	for _, l := range idx.docLens {
		total += l
	}
	if len(idx.docLens) > 0 {
		idx.avgLen = float64(total) / float64(len(idx.docLens))
	}
	idx.built = true
}

// Len returns the number of indexed chunks.
func (idx *BM25Index) Len() int { return len(idx.chunkIDs) }

// Search returns the top-K chunks by BM25 score for the query.
func (idx *BM25Index) Search(query string, topK int) []Hit {
	if !idx.built || len(idx.chunkIDs) == 0 {
		return nil
	}

	scores := make(map[int]float64)
	n := float64(len(idx.chunkIDs))

	for _, term := range idx.tokenize(query) {
		plist, ok := idx.postings[term]
		if !ok {
			continue
		}
		df := float64(len(plist))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		for _, p := range plist {
			tf := float64(p.freq)
			dl := float64(idx.docLens[p.doc])
			denom := tf + idx.opts.K1*(1-idx.opts.B+idx.opts.B*dl/idx.avgLen)
			scores[p.doc] += idf * (tf * (idx.opts.K1 + 1)) / denom
		}
	}

	hits := make([]Hit, 0, len(scores))
	for doc, s := range scores {
		hits = append(hits, Hit{ChunkID: idx.chunkIDs[doc], Score: s})
	}
	// Stable order: score descending, chunk ID ascending on ties, so
	// retrieval stays deterministic for identical inputs.
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

func (idx *BM25Index) tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	var tokens []string
	for _, f := range fields {
		if len(f) < idx.opts.MinTokenLen {
			continue
		}
		if idx.opts.UseStopwords && stopwords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}
