package embedding

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"github.com/Osyna/QuestionAir/internal/cache"
	"github.com/Osyna/QuestionAir/internal/domain"
	"github.com/tmc/langchaingo/embeddings"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL applies when no TTL is configured.
const DefaultCacheTTL = 168 * time.Hour

// EmbeddingService implements domain.EmbeddingService on top of a
// langchaingo embedder. When a cache is configured, vectors are stored
// gob-encoded under a key derived from provider, model and text hash, and
// concurrent misses for the same text share one embedder call.
type EmbeddingService struct {
	embedder embeddings.Embedder
	provider string
	model    string
	cache    domain.Cache
	ttl      time.Duration
	sfGroup  singleflight.Group
	logger   *zap.Logger
}

func newEmbeddingService(embedder embeddings.Embedder, provider, model string, c domain.Cache, ttl time.Duration, logger *zap.Logger) *EmbeddingService {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmbeddingService{
		embedder: embedder,
		provider: provider,
		model:    model,
		cache:    c,
		ttl:      ttl,
		logger:   logger.With(zap.String("provider", provider), zap.String("model", model)),
	}
}

// Generate returns the embedding of text. Embedder failures are reported as
// EMBEDDING_UNAVAILABLE; cache failures are logged and bypassed.
func (s *EmbeddingService) Generate(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("input text cannot be empty for embedding")
	}

	cacheKey := cache.EmbeddingKey(s.provider, s.model, text)
	if vec, ok := s.fromCache(ctx, cacheKey); ok {
		return vec, nil
	}

	res, err, _ := s.sfGroup.Do(cacheKey, func() (interface{}, error) {
		vec, err := s.embedder.EmbedQuery(ctx, text)
		if err != nil {
			return nil, domain.NewEmbeddingUnavailableError(
				fmt.Errorf("failed to generate embedding using %s: %w", s.provider, err))
		}
		if len(vec) == 0 {
			return nil, domain.NewEmbeddingUnavailableError(
				fmt.Errorf("received empty embedding from %s", s.provider))
		}
		s.toCache(ctx, cacheKey, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return res.([]float32), nil
}

func (s *EmbeddingService) fromCache(ctx context.Context, key string) ([]float32, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.logger.Warn("Embedding cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var vec []float32
	if err := gob.NewDecoder(bytes.NewReader([]byte(data))).Decode(&vec); err != nil || len(vec) == 0 {
		s.logger.Warn("Discarding undecodable cached embedding", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return vec, true
}

func (s *EmbeddingService) toCache(ctx context.Context, key string, vec []float32) {
	if s.cache == nil {
		return
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(vec); err != nil {
		s.logger.Warn("Failed to encode embedding for caching", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, key, buf.String(), s.ttl); err != nil {
		s.logger.Warn("Failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
}

var _ domain.EmbeddingService = (*EmbeddingService)(nil)
