package vectorstore

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// CachedEmbeddingProvider memoizes embeddings of an underlying provider by text.
type CachedEmbeddingProvider struct {
	inner EmbeddingProvider
	cache *ristretto.Cache
}

// NewCachedEmbeddingProvider wraps inner with a cache holding up to size embeddings.
func NewCachedEmbeddingProvider(inner EmbeddingProvider, size int) (*CachedEmbeddingProvider, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: int64(size) * 10,
		MaxCost:     int64(size),
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return &CachedEmbeddingProvider{inner: inner, cache: cache}, nil
}

func (p *CachedEmbeddingProvider) Dimension() int {
	return p.inner.Dimension()
}

func (p *CachedEmbeddingProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// GenerateEmbeddings serves cached texts and sends only the misses to the
// underlying provider, in one batch.
func (p *CachedEmbeddingProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		if v, ok := p.cache.Get(text); ok {
			embeddings[i] = v.([]float32)
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return embeddings, nil
	}

	fresh, err := p.inner.GenerateEmbeddings(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missing) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(missing), len(fresh))
	}

	for j, emb := range fresh {
		embeddings[missingIdx[j]] = emb
		p.cache.Set(missing[j], emb, 1)
	}
	p.cache.Wait()

	return embeddings, nil
}

// Close releases the cache.
func (p *CachedEmbeddingProvider) Close() {
	p.cache.Close()
}
