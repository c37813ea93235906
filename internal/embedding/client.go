// Package embedding converts text to fixed-dimension vectors. A bounded
// content-addressed cache sits in front of the OpenAI backend; misses are
// batched, rate limited, and retried with exponential backoff before being
// surfaced as an embedding backend failure.
package embedding

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"
)

const (
	// Model is the default embedding model identifier.
	Model = "text-embedding-3-small"

	// Dimension is the vector dimension produced by Model. This matches
	// the vector index collection configuration.
	Dimension = 1536
)

// Usage carries backend token counters for cost accounting.
type Usage struct {
	PromptTokens int64
	TotalTokens  int64
}

// Client wraps the OpenAI embeddings API with client-side rate limiting.
type Client struct {
	api     openai.Client
	limiter *rate.Limiter
	model   string
}

// NewClient creates an OpenAI embedding client. requestsPerMinute bounds
// outbound calls; zero disables the limiter.
func NewClient(apiKey, model string, requestsPerMinute int) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	if model == "" {
		model = Model
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), requestsPerMinute)
	}

	return &Client{
		api:     openai.NewClient(option.WithAPIKey(apiKey)),
		limiter: limiter,
		model:   model,
	}, nil
}

// CreateEmbeddings issues a single backend call for texts and returns one
// vector per input, in input order. Retry policy lives in the Embedder; this
// method fails on the first error.
func (c *Client) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, Usage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, Usage{}, err
	}

	resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model: c.model,
	})
	if err != nil {
		return nil, Usage{}, err
	}
	if len(resp.Data) != len(texts) {
		return nil, Usage{}, fmt.Errorf("backend returned %d embeddings for %d inputs",
			len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		vectors[i] = toFloat32(data.Embedding)
	}
	usage := Usage{
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}
	return vectors, usage, nil
}

// toFloat32 converts the API's float64 vectors to float32 for storage.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
