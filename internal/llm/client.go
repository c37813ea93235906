// Package llm wraps the OpenAI chat completion API behind a small
// generation interface used by the answering, summarization, and
// extraction layers.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"

	"github.com/docstack/ragpipe/internal/apperr"
)

const (
	// DefaultModel is the chat model used when none is configured.
	DefaultModel = openai.ChatModelGPT4o

	// DefaultMaxInputTokens bounds prompt size before truncation.
	DefaultMaxInputTokens = 16000

	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 10 * time.Second
	maxElapsed     = 60 * time.Second
)

// Usage reports token consumption for a single generation call.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

// Options control a single generation request.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int64

	hasTemperature bool
}

// Option mutates generation options.
type Option func(*Options)

// WithModel overrides the model for this request.
func WithModel(model string) Option {
	return func(o *Options) { o.Model = model }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Options) {
		o.Temperature = t
		o.hasTemperature = true
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int64) Option {
	return func(o *Options) { o.MaxTokens = n }
}

// Client generates chat completions with rate limiting and retry on
// transient failures.
type Client struct {
	api            openai.Client
	limiter        *rate.Limiter
	model          string
	maxInputTokens int
}

// NewClient creates a chat client. requestsPerMinute of 0 disables
// rate limiting, model of "" uses DefaultModel.
func NewClient(apiKey, model string, requestsPerMinute int) *Client {
	if model == "" {
		model = DefaultModel
	}
	var limiter *rate.Limiter
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1)
	}
	return &Client{
		api:            openai.NewClient(option.WithAPIKey(apiKey)),
		limiter:        limiter,
		model:          model,
		maxInputTokens: DefaultMaxInputTokens,
	}
}

// Generate produces a completion for the given prompt and returns the
// raw text together with token usage.
func (c *Client) Generate(ctx context.Context, prompt string, opts ...Option) (string, Usage, error) {
	return c.complete(ctx, prompt, false, opts)
}

// GenerateJSON requests a JSON object completion and unmarshals it into
// out. A response that does not parse as JSON is reported as a
// generation backend error; no attempt is made to repair the output.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, out any, opts ...Option) (Usage, error) {
	text, usage, err := c.complete(ctx, prompt, true, opts)
	if err != nil {
		return usage, err
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return usage, fmt.Errorf("%w: response is not valid JSON: %v", apperr.ErrGenerationBackend, err)
	}
	return usage, nil
}

func (c *Client) complete(ctx context.Context, prompt string, jsonMode bool, opts []Option) (string, Usage, error) {
	var options Options
	for _, opt := range opts {
		opt(&options)
	}
	model := c.model
	if options.Model != "" {
		model = options.Model
	}

	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(c.truncate(prompt)),
		},
		Model: model,
	}
	if options.hasTemperature {
		params.Temperature = openai.Float(options.Temperature)
	}
	if options.MaxTokens > 0 {
		params.MaxTokens = openai.Int(options.MaxTokens)
	}
	if jsonMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{
				Type: "json_object",
			},
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", Usage{}, err
		}
	}

	var resp *openai.ChatCompletion
	operation := func() error {
		var err error
		resp, err = c.api.Chat.Completions.New(ctx, params)
		if err != nil {
			if isTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(errors.New("no completion choices returned"))
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(newBackoff(), ctx)); err != nil {
		return "", Usage{}, fmt.Errorf("%w: %v", apperr.ErrGenerationBackend, err)
	}

	usage := Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	return resp.Choices[0].Message.Content, usage, nil
}

// truncate bounds the prompt to the input token budget using the rough
// 4 characters per token estimate, cutting on a rune boundary.
func (c *Client) truncate(prompt string) string {
	maxChars := c.maxInputTokens * 4
	if len(prompt) <= maxChars {
		return prompt
	}
	for maxChars > 0 && !utf8.RuneStart(prompt[maxChars]) {
		maxChars--
	}
	return prompt[:maxChars]
}

func isTransient(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}

func newBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialBackoff
	b.MaxInterval = maxBackoff
	b.MaxElapsedTime = maxElapsed
	return b
}
