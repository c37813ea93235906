// Package rag answers natural-language questions over indexed
// documents: retrieve passages by vector similarity, assemble a cited
// context block, and run a single generation call.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docstack/ragpipe/internal/apperr"
	"github.com/docstack/ragpipe/internal/llm"
	"github.com/docstack/ragpipe/internal/vectorstore"
)

// DefaultTopK is how many passages are retrieved when the request does
// not say.
const DefaultTopK = 5

// Embedder produces a query vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher is the slice of the vector index the pipeline needs.
type Searcher interface {
	Query(ctx context.Context, vector []float32, topK int, namespace string, filter, exclude map[string]string) ([]vectorstore.Match, error)
	Fetch(ctx context.Context, ids []string, namespace string) (map[string]vectorstore.Entry, error)
}

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, llm.Usage, error)
}

// AskRequest describes one question.
type AskRequest struct {
	Question  string
	Namespace string
	TopK      int
	// Filter restricts retrieval to matching metadata.
	Filter map[string]string
	// SessionID enables conversational mode with history.
	SessionID string
	// IncludeSources asks the model to cite source ids in its answer.
	IncludeSources bool
}

// Source is one retrieved passage that backed the answer.
type Source struct {
	ID       string
	Score    float32
	Text     string
	Metadata map[string]string
}

// Answer is the generated response together with its provenance.
type Answer struct {
	Text    string
	Sources []Source
	Usage   llm.Usage
}

// Pipeline wires embedding, retrieval, and generation.
type Pipeline struct {
	embedder  Embedder
	store     Searcher
	generator Generator
	history   *History
	logger    *slog.Logger
}

// New creates a pipeline. A nil logger falls back to slog.Default().
func New(embedder Embedder, store Searcher, generator Generator, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		embedder:  embedder,
		store:     store,
		generator: generator,
		history:   NewHistory(DefaultHistoryTurns),
		logger:    logger,
	}
}

// Answer retrieves passages for the question and generates a response.
// Retrieval failures are reported before any generation call. When
// generation itself fails the retrieved sources are still returned so
// the caller can fall back to plain search results.
func (p *Pipeline) Answer(ctx context.Context, req AskRequest) (*Answer, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, fmt.Errorf("%w: question is empty", apperr.ErrValidation)
	}
	topK := req.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := p.embedder.Embed(ctx, req.Question)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", apperr.ErrRetrieval, err)
	}

	matches, err := p.store.Query(ctx, vector, topK, req.Namespace, req.Filter, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: querying index: %v", apperr.ErrRetrieval, err)
	}

	sources := toSources(matches)
	prompt := p.buildPrompt(req, sources)

	text, usage, err := p.generator.Generate(ctx, prompt,
		llm.WithTemperature(0.2), llm.WithMaxTokens(500))
	if err != nil {
		// Return what retrieval found even though generation failed.
		return &Answer{Sources: sources}, err
	}
	text = strings.TrimSpace(text)

	if req.SessionID != "" {
		p.history.Append(req.SessionID, Turn{Question: req.Question, Answer: text})
	}

	p.logger.Info("answered question",
		"sources", len(sources),
		"tokens", usage.TotalTokens,
		"conversational", req.SessionID != "")

	return &Answer{Text: text, Sources: sources, Usage: usage}, nil
}

// Search runs plain semantic retrieval without generation.
func (p *Pipeline) Search(ctx context.Context, query string, topK int, namespace string, filter map[string]string) ([]Source, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is empty", apperr.ErrValidation)
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", apperr.ErrRetrieval, err)
	}
	matches, err := p.store.Query(ctx, vector, topK, namespace, filter, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: querying index: %v", apperr.ErrRetrieval, err)
	}
	return toSources(matches), nil
}

// FindSimilar returns the documents nearest to the given document,
// excluding the document itself. The lookup uses the stored vector of
// the document's first chunk.
func (p *Pipeline) FindSimilar(ctx context.Context, documentID string, topK int, namespace string) ([]Source, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	anchorID := documentID + "_chunk_0"
	fetched, err := p.store.Fetch(ctx, []string{anchorID}, namespace)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching document vector: %v", apperr.ErrRetrieval, err)
	}
	anchor, ok := fetched[anchorID]
	if !ok {
		return nil, fmt.Errorf("%w: document %s has no indexed chunks", apperr.ErrNotFound, documentID)
	}

	// One extra result in case the exclusion filter misses the anchor.
	matches, err := p.store.Query(ctx, anchor.Vector, topK+1, namespace,
		nil, map[string]string{"document_id": documentID})
	if err != nil {
		return nil, fmt.Errorf("%w: querying index: %v", apperr.ErrRetrieval, err)
	}

	results := make([]Source, 0, topK)
	for _, m := range matches {
		if m.Metadata["document_id"] == documentID {
			continue
		}
		results = append(results, toSource(m))
		if len(results) == topK {
			break
		}
	}

	p.logger.Info("found similar documents", "document_id", documentID, "results", len(results))
	return results, nil
}

// History exposes the conversation store for explicit clearing.
func (p *Pipeline) History() *History {
	return p.history
}

func (p *Pipeline) buildPrompt(req AskRequest, sources []Source) string {
	context := contextBlock(sources)
	if req.SessionID != "" {
		return conversationalPrompt(p.history.Transcript(req.SessionID), context, req.Question)
	}
	if req.IncludeSources {
		return qaWithSourcesPrompt(context, req.Question)
	}
	return qaPrompt(context, req.Question)
}

// contextBlock renders sources as numbered, identified passages in the
// retrieval order (descending score).
func contextBlock(sources []Source) string {
	if len(sources) == 0 {
		return "No relevant context found."
	}
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = fmt.Sprintf("[Source %d: %s]\n%s", i+1, s.ID, s.Text)
	}
	return strings.Join(parts, "\n\n")
}

func toSources(matches []vectorstore.Match) []Source {
	sources := make([]Source, len(matches))
	for i, m := range matches {
		sources[i] = toSource(m)
	}
	return sources
}

func toSource(m vectorstore.Match) Source {
	return Source{
		ID:       m.ID,
		Score:    m.Score,
		Text:     m.Metadata["text"],
		Metadata: m.Metadata,
	}
}
