package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"golang.org/x/sync/errgroup"

	"github.com/docstack/ragpipe/internal/apperr"
)

const (
	// DefaultBatchSize bounds texts per backend call. OpenAI accepts up
	// to 2048 inputs per request, but smaller batches reduce
	// tokens-per-minute pressure.
	DefaultBatchSize = 100

	// DefaultConcurrency bounds parallel sub-batch calls. Sub-batches
	// are independent and commutative, so parallelizing them is safe.
	DefaultConcurrency = 4
)

// backend is the raw embedding call the Embedder retries and batches.
type backend interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, Usage, error)
}

// Embedder batches embedding requests and retries transient failures with
// exponential backoff. Results preserve input order.
type Embedder struct {
	client      backend
	batchSize   int
	concurrency int
}

// NewEmbedder creates an Embedder over client. Non-positive batchSize or
// concurrency fall back to the defaults.
func NewEmbedder(client *Client, batchSize, concurrency int) *Embedder {
	return newEmbedder(client, batchSize, concurrency)
}

func newEmbedder(client backend, batchSize, concurrency int) *Embedder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Embedder{
		client:      client,
		batchSize:   batchSize,
		concurrency: concurrency,
	}
}

// EmbedBatch generates one vector per input text, in input order. Texts are
// partitioned into sub-batches embedded in parallel up to the concurrency
// bound; each sub-batch retries on rate-limit and server errors before the
// whole call fails with ErrEmbeddingBackend.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		g.Go(func() error {
			batch, err := e.embedWithRetry(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("batch %d-%d: %w", start, end, err)
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// embedWithRetry embeds a single sub-batch, retrying transient failures.
// Non-transient errors fail immediately.
func (e *Embedder) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32

	operation := func() error {
		v, _, err := e.client.CreateEmbeddings(ctx, texts)
		if err != nil {
			if isTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		vectors = v
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrEmbeddingBackend, err)
	}
	return vectors, nil
}

// isTransient reports whether err is worth retrying: rate limits and server
// errors are; malformed requests and auth failures are not.
func isTransient(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}
