package embed

import (
	"context"
	"sync"
)

// CachedEmbedder wraps an Embedder with a process-wide cache keyed by
// (model_id, kind, content_hash). Entries are written once and read many
// times; identical chunk text across pages embeds only once per run.
type CachedEmbedder struct {
	inner Embedder

	mu    sync.RWMutex
	cache map[string][]float32
}

// NewCached wraps inner with a cache.
func NewCached(inner Embedder) *CachedEmbedder {
	return &CachedEmbedder{
		inner: inner,
		cache: make(map[string][]float32),
	}
}

func (c *CachedEmbedder) ID() string { return c.inner.ID() }

func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

// EmbedHashed embeds texts with caller-supplied content hashes, consulting
// the cache first and embedding only the misses.
func (c *CachedEmbedder) EmbedHashed(ctx context.Context, kind Kind, texts, hashes []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	c.mu.RLock()
	for i := range texts {
		if v, ok := c.cache[c.key(kind, hashes[i])]; ok {
			out[i] = v
		} else {
			missTexts = append(missTexts, texts[i])
			missIdx = append(missIdx, i)
		}
	}
	c.mu.RUnlock()

	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := c.inner.Embed(ctx, kind, missTexts)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	for j, v := range vectors {
		i := missIdx[j]
		out[i] = v
		c.cache[c.key(kind, hashes[i])] = v
	}
	c.mu.Unlock()

	return out, nil
}

// Embed satisfies Embedder without caching; use EmbedHashed when content
// hashes are available.
func (c *CachedEmbedder) Embed(ctx context.Context, kind Kind, texts []string) ([][]float32, error) {
	return c.inner.Embed(ctx, kind, texts)
}

func (c *CachedEmbedder) key(kind Kind, hash string) string {
	return c.inner.ID() + "|" + string(kind) + "|" + hash
}
