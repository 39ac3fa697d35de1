package embedding

import (
	"context"
	"crypto/sha256"

	lru "github.com/hashicorp/golang-lru/v2"

	"ctxopt/internal/port"
)

const DefaultCacheSize = 10000

var _ port.Embedder = (*CachedEmbedder)(nil)

// CachedEmbedder memoizes vectors by content hash. Only texts missing from
// the cache are sent to the wrapped embedder.
type CachedEmbedder struct {
	inner port.Embedder
	cache *lru.Cache[[32]byte, []float32]
}

func NewCachedEmbedder(inner port.Embedder, size int) *CachedEmbedder {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[[32]byte, []float32](size)
	if err != nil {
		cache, _ = lru.New[[32]byte, []float32](DefaultCacheSize)
	}
	return &CachedEmbedder{inner: inner, cache: cache}
}

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missing []string
		at      []int
	)
	for i, t := range texts {
		if v, ok := c.cache.Get(sha256.Sum256([]byte(t))); ok {
			out[i] = v
			continue
		}
		missing = append(missing, t)
		at = append(at, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := c.inner.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, v := range vecs {
		if j >= len(at) {
			break
		}
		out[at[j]] = v
		c.cache.Add(sha256.Sum256([]byte(missing[j])), v)
	}
	return out, nil
}

func (c *CachedEmbedder) Dimension() int    { return c.inner.Dimension() }
func (c *CachedEmbedder) ModelName() string { return c.inner.ModelName() }

// Len is the number of cached vectors.
func (c *CachedEmbedder) Len() int { return c.cache.Len() }
