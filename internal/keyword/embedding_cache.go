package keyword

import (
	"context"
	"sync"

	"github.com/Osyna/QuestionAir/internal/domain"
	"golang.org/x/sync/singleflight"
)

// EmbeddingCache memoises keyword embeddings for the lifetime of one run.
// Concurrent misses on the same keyword share a single call; the first
// stored vector is kept.
type EmbeddingCache struct {
	svc     domain.EmbeddingService
	mu      sync.RWMutex
	vectors map[string][]float32
	group   singleflight.Group
}

func NewEmbeddingCache(svc domain.EmbeddingService) *EmbeddingCache {
	return &EmbeddingCache{
		svc:     svc,
		vectors: make(map[string][]float32),
	}
}

// Get returns the embedding of keyword, calling the service on a miss.
func (c *EmbeddingCache) Get(ctx context.Context, keyword string) ([]float32, error) {
	c.mu.RLock()
	vec, ok := c.vectors[keyword]
	c.mu.RUnlock()
	if ok {
		return vec, nil
	}

	v, err, _ := c.group.Do(keyword, func() (interface{}, error) {
		generated, err := c.svc.Generate(ctx, keyword)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if existing, ok := c.vectors[keyword]; ok {
			generated = existing
		} else {
			c.vectors[keyword] = generated
		}
		c.mu.Unlock()
		return generated, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// Len returns the number of cached keywords.
func (c *EmbeddingCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.vectors)
}
