package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"
)

// batchEmbedder is the uncached batching layer underneath the Service.
type batchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Service is the embedding entry point used by the pipelines: a bounded
// content-addressed cache in front of the batching Embedder. A cache hit
// returns the stored vector without a network call; failed backend results
// never populate the cache.
//
// Single-text calls for the same content are coalesced, so the
// check-then-insert sequence is atomic per key in the common path. Batch
// calls only consult the cache up front; two overlapping batches may still
// embed the same text twice. That duplicate call is a cost inefficiency,
// not a correctness problem, and is accepted as a relaxed guarantee.
type Service struct {
	embedder batchEmbedder
	cache    *Cache
	flight   singleflight.Group
	logger   *slog.Logger
}

// NewService wraps embedder with cache. A nil logger uses slog.Default().
func NewService(embedder *Embedder, cache *Cache, logger *slog.Logger) *Service {
	return newService(embedder, cache, logger)
}

func newService(embedder batchEmbedder, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		embedder: embedder,
		cache:    cache,
		logger:   logger,
	}
}

// Embed returns the vector for a single text, from cache when possible.
// Concurrent calls for identical text share one backend call.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := s.cache.Get(text); ok {
		return v, nil
	}

	key := CacheKey(text)
	result, err, _ := s.flight.Do(key, func() (any, error) {
		// Re-check under the flight: another caller may have filled
		// the cache while we queued.
		if v, ok := s.cache.Get(text); ok {
			return v, nil
		}
		vectors, err := s.embedder.EmbedBatch(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		s.cache.Put(text, vectors[0])
		return vectors[0], nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]float32), nil
}

// EmbedBatch returns one vector per input text, in input order. Cache hits
// are filled immediately; only misses go to the backend, and their results
// are written back both at the original index and into the cache.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))
	var missTexts []string
	var missIndex []int
	for i, text := range texts {
		if v, ok := s.cache.Get(text); ok {
			vectors[i] = v
			continue
		}
		missTexts = append(missTexts, text)
		missIndex = append(missIndex, i)
	}

	if len(missTexts) > 0 {
		embedded, err := s.embedder.EmbedBatch(ctx, missTexts)
		if err != nil {
			return nil, fmt.Errorf("embed %d uncached texts: %w", len(missTexts), err)
		}
		for j, v := range embedded {
			i := missIndex[j]
			vectors[i] = v
			s.cache.Put(texts[i], v)
		}
	}

	s.logger.Debug("embedded batch",
		"texts", len(texts), "hits", len(texts)-len(missTexts), "misses", len(missTexts))
	return vectors, nil
}

// Cache exposes the underlying cache for persistence and maintenance.
func (s *Service) Cache() *Cache {
	return s.cache
}
