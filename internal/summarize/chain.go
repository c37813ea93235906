// Package summarize produces document summaries, falling back to a
// map-reduce strategy for documents too long for a single completion.
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/docstack/ragpipe/internal/apperr"
	"github.com/docstack/ragpipe/internal/llm"
	"github.com/docstack/ragpipe/internal/splitter"
)

// Length selects how long the summary should be.
type Length string

const (
	LengthBrief    Length = "brief"
	LengthStandard Length = "standard"
	LengthDetailed Length = "detailed"
)

// DocType selects the summary framing.
type DocType string

const (
	DocTypeGeneral   DocType = "general"
	DocTypeTechnical DocType = "technical"
)

const (
	// maxSingleTokens is the estimated token budget above which a
	// document is summarized with map-reduce instead of one pass.
	maxSingleTokens = 4000

	sectionChunkSize = 3000
	sectionOverlap   = 200

	defaultMapConcurrency = 4
)

// Method reports which strategy produced a summary.
type Method string

const (
	MethodSinglePass Method = "single_pass"
	MethodMapReduce  Method = "map_reduce"
)

// Generator produces completions for summary prompts.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, llm.Usage, error)
}

// Result is a produced summary with its strategy metadata.
type Result struct {
	Summary  string
	Length   Length
	DocType  DocType
	Method   Method
	Sections int
	Usage    llm.Usage
}

// Chain summarizes text.
type Chain struct {
	generator   Generator
	splitter    *splitter.Splitter
	concurrency int
	logger      *slog.Logger
}

// NewChain creates a summarization chain. A nil logger falls back to
// slog.Default().
func NewChain(generator Generator, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		generator:   generator,
		splitter:    splitter.New(sectionChunkSize, sectionOverlap, nil),
		concurrency: defaultMapConcurrency,
		logger:      logger,
	}
}

// Summarize produces a summary of text. Documents whose estimated token
// count exceeds the single-pass budget are summarized section by
// section and the section summaries combined.
func (c *Chain) Summarize(ctx context.Context, text string, length Length, docType DocType) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is empty", apperr.ErrValidation)
	}
	if err := validate(length, docType); err != nil {
		return nil, err
	}

	if splitter.EstimateTokens(text) > maxSingleTokens {
		c.logger.Info("document too long for single pass, using map-reduce",
			"estimated_tokens", splitter.EstimateTokens(text))
		return c.mapReduce(ctx, text, length, docType)
	}

	summary, usage, err := c.generator.Generate(ctx, summaryPrompt(text, length, docType),
		llm.WithTemperature(0.3), llm.WithMaxTokens(1000))
	if err != nil {
		return nil, err
	}

	return &Result{
		Summary:  strings.TrimSpace(summary),
		Length:   length,
		DocType:  docType,
		Method:   MethodSinglePass,
		Sections: 1,
		Usage:    usage,
	}, nil
}

// mapReduce splits the document into sections, summarizes each, then
// combines the section summaries in original order, grouping them so
// each reduce call stays within the token budget.
func (c *Chain) mapReduce(ctx context.Context, text string, length Length, docType DocType) (*Result, error) {
	sections := c.splitter.SplitText(text)
	c.logger.Info("split document for map-reduce", "sections", len(sections))

	summaries := make([]string, len(sections))
	var (
		mu    sync.Mutex
		usage llm.Usage
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, section := range sections {
		g.Go(func() error {
			out, u, err := c.generator.Generate(gctx, mapPrompt(section),
				llm.WithTemperature(0.3), llm.WithMaxTokens(1000))
			if err != nil {
				return fmt.Errorf("summarizing section %d: %w", i, err)
			}
			mu.Lock()
			summaries[i] = strings.TrimSpace(out)
			usage = addUsage(usage, u)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	final, reduceUsage, err := c.reduce(ctx, summaries)
	if err != nil {
		return nil, err
	}
	usage = addUsage(usage, reduceUsage)

	return &Result{
		Summary:  final,
		Length:   length,
		DocType:  docType,
		Method:   MethodMapReduce,
		Sections: len(sections),
		Usage:    usage,
	}, nil
}

// reduce repeatedly combines summaries in original order until a single
// summary remains. Each combine call takes as many consecutive
// summaries as fit the token budget.
func (c *Chain) reduce(ctx context.Context, summaries []string) (string, llm.Usage, error) {
	var usage llm.Usage
	for len(summaries) > 1 {
		var next []string
		for start := 0; start < len(summaries); {
			end := start + 1
			size := splitter.EstimateTokens(summaries[start])
			for end < len(summaries) {
				n := splitter.EstimateTokens(summaries[end])
				if size+n > maxSingleTokens {
					break
				}
				size += n
				end++
			}
			joined := strings.Join(summaries[start:end], "\n\n")
			out, u, err := c.generator.Generate(ctx, reducePrompt(joined),
				llm.WithTemperature(0.3), llm.WithMaxTokens(1000))
			if err != nil {
				return "", usage, err
			}
			usage = addUsage(usage, u)
			next = append(next, strings.TrimSpace(out))
			start = end
		}
		summaries = next
	}
	return summaries[0], usage, nil
}

func validate(length Length, docType DocType) error {
	switch length {
	case LengthBrief, LengthStandard, LengthDetailed:
	default:
		return fmt.Errorf("%w: unknown summary length %q", apperr.ErrValidation, length)
	}
	switch docType {
	case DocTypeGeneral, DocTypeTechnical:
	default:
		return fmt.Errorf("%w: unknown document type %q", apperr.ErrValidation, docType)
	}
	return nil
}

func addUsage(a, b llm.Usage) llm.Usage {
	return llm.Usage{
		PromptTokens:     a.PromptTokens + b.PromptTokens,
		CompletionTokens: a.CompletionTokens + b.CompletionTokens,
		TotalTokens:      a.TotalTokens + b.TotalTokens,
	}
}
