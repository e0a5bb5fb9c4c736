package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedEmbedder memoizes embedding calls by content hash. Safe because
// embeddings are deterministic for a fixed model; the TTL only bounds
// memory, not correctness.
type CachedEmbedder struct {
	inner IEmbedder
	cache *expirable.LRU[string, []float32]
}

func NewCachedEmbedder(inner IEmbedder) *CachedEmbedder {
	cache := expirable.NewLRU[string, []float32](10000, nil, 2*time.Hour)
	return &CachedEmbedder{inner: inner, cache: cache}
}

func (e *CachedEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	key := e.cacheKey(text, taskType)
	if cached, ok := e.cache.Get(key); ok {
		return cached, nil
	}
	emb, err := e.inner.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	e.cache.Add(key, emb)
	return emb, nil
}

func (e *CachedEmbedder) ModelName() string {
	return e.inner.ModelName()
}

func (e *CachedEmbedder) cacheKey(text, taskType string) string {
	hash := sha256.Sum256([]byte(text))
	return e.inner.ModelName() + ":" + taskType + ":" + hex.EncodeToString(hash[:])
}
