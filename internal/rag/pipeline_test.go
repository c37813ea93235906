package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docstack/ragpipe/internal/apperr"
	"github.com/docstack/ragpipe/internal/llm"
	"github.com/docstack/ragpipe/internal/vectorstore"
)

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0, 0}, nil
}

type fakeSearcher struct {
	matches    []vectorstore.Match
	entries    map[string]vectorstore.Entry
	queryErr   error
	lastTopK   int
	lastFilter map[string]string
	lastExcl   map[string]string
	lastNS     string
}

func (f *fakeSearcher) Query(ctx context.Context, vector []float32, topK int, namespace string, filter, exclude map[string]string) ([]vectorstore.Match, error) {
	f.lastTopK = topK
	f.lastFilter = filter
	f.lastExcl = exclude
	f.lastNS = namespace
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.matches, nil
}

func (f *fakeSearcher) Fetch(ctx context.Context, ids []string, namespace string) (map[string]vectorstore.Entry, error) {
	out := make(map[string]vectorstore.Entry)
	for _, id := range ids {
		if e, ok := f.entries[id]; ok {
			out[id] = e
		}
	}
	return out, nil
}

type fakeGenerator struct {
	response   string
	err        error
	lastPrompt string
	calls      int
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, llm.Usage, error) {
	f.calls++
	f.lastPrompt = prompt
	if f.err != nil {
		return "", llm.Usage{}, f.err
	}
	return f.response, llm.Usage{TotalTokens: 42}, nil
}

func matchFor(id, docID, text string, score float32) vectorstore.Match {
	return vectorstore.Match{
		ID:    id,
		Score: score,
		Metadata: map[string]string{
			"document_id": docID,
			"text":        text,
		},
	}
}

func TestAnswerBuildsContextInScoreOrder(t *testing.T) {
	searcher := &fakeSearcher{matches: []vectorstore.Match{
		matchFor("doc1_chunk_0", "doc1", "first passage", 0.9),
		matchFor("doc2_chunk_3", "doc2", "second passage", 0.7),
	}}
	gen := &fakeGenerator{response: "  the answer  "}
	p := New(&fakeEmbedder{}, searcher, gen, nil)

	answer, err := p.Answer(context.Background(), AskRequest{Question: "what?", Namespace: "ns1"})
	require.NoError(t, err)

	assert.Equal(t, "the answer", answer.Text)
	assert.Equal(t, int64(42), answer.Usage.TotalTokens)
	require.Len(t, answer.Sources, 2)
	assert.Equal(t, "doc1_chunk_0", answer.Sources[0].ID)
	assert.Equal(t, "ns1", searcher.lastNS)

	first := strings.Index(gen.lastPrompt, "[Source 1: doc1_chunk_0]\nfirst passage")
	second := strings.Index(gen.lastPrompt, "[Source 2: doc2_chunk_3]\nsecond passage")
	require.GreaterOrEqual(t, first, 0)
	require.Greater(t, second, first)
}

func TestAnswerEmptyQuestion(t *testing.T) {
	p := New(&fakeEmbedder{}, &fakeSearcher{}, &fakeGenerator{}, nil)
	_, err := p.Answer(context.Background(), AskRequest{Question: "   "})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestAnswerFilterPassedThrough(t *testing.T) {
	searcher := &fakeSearcher{}
	p := New(&fakeEmbedder{}, searcher, &fakeGenerator{response: "ok"}, nil)

	_, err := p.Answer(context.Background(), AskRequest{
		Question: "q",
		TopK:     3,
		Filter:   map[string]string{"file_type": "pdf"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, searcher.lastTopK)
	assert.Equal(t, map[string]string{"file_type": "pdf"}, searcher.lastFilter)
}

func TestAnswerRetrievalFailureSkipsGeneration(t *testing.T) {
	gen := &fakeGenerator{response: "ok"}
	p := New(&fakeEmbedder{}, &fakeSearcher{queryErr: errors.New("index down")}, gen, nil)

	_, err := p.Answer(context.Background(), AskRequest{Question: "q"})
	assert.ErrorIs(t, err, apperr.ErrRetrieval)
	assert.Zero(t, gen.calls)

	p = New(&fakeEmbedder{err: errors.New("backend down")}, &fakeSearcher{}, gen, nil)
	_, err = p.Answer(context.Background(), AskRequest{Question: "q"})
	assert.ErrorIs(t, err, apperr.ErrRetrieval)
	assert.Zero(t, gen.calls)
}

func TestAnswerGenerationFailureReturnsSources(t *testing.T) {
	searcher := &fakeSearcher{matches: []vectorstore.Match{
		matchFor("doc1_chunk_0", "doc1", "passage", 0.8),
	}}
	genErr := fmt.Errorf("%w: model overloaded", apperr.ErrGenerationBackend)
	p := New(&fakeEmbedder{}, searcher, &fakeGenerator{err: genErr}, nil)

	answer, err := p.Answer(context.Background(), AskRequest{Question: "q"})
	assert.ErrorIs(t, err, apperr.ErrGenerationBackend)
	require.NotNil(t, answer)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "doc1_chunk_0", answer.Sources[0].ID)
}

func TestAnswerConversationalHistory(t *testing.T) {
	searcher := &fakeSearcher{matches: []vectorstore.Match{
		matchFor("doc1_chunk_0", "doc1", "passage", 0.8),
	}}
	gen := &fakeGenerator{response: "answer one"}
	p := New(&fakeEmbedder{}, searcher, gen, nil)
	ctx := context.Background()

	_, err := p.Answer(ctx, AskRequest{Question: "first?", SessionID: "s1"})
	require.NoError(t, err)
	assert.Contains(t, gen.lastPrompt, "No previous conversation.")

	gen.response = "answer two"
	_, err = p.Answer(ctx, AskRequest{Question: "second?", SessionID: "s1"})
	require.NoError(t, err)
	assert.Contains(t, gen.lastPrompt, "Q: first?\nA: answer one")

	// Other sessions do not see this history.
	_, err = p.Answer(ctx, AskRequest{Question: "third?", SessionID: "s2"})
	require.NoError(t, err)
	assert.Contains(t, gen.lastPrompt, "No previous conversation.")

	p.History().Clear("s1")
	assert.Empty(t, p.History().Turns("s1"))
}

func TestHistoryBounded(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.Append("s", Turn{Question: fmt.Sprintf("q%d", i), Answer: fmt.Sprintf("a%d", i)})
	}
	turns := h.Turns("s")
	require.Len(t, turns, 3)
	assert.Equal(t, "q2", turns[0].Question)
	assert.Equal(t, "q4", turns[2].Question)
}

func TestFindSimilarExcludesSelf(t *testing.T) {
	searcher := &fakeSearcher{
		entries: map[string]vectorstore.Entry{
			"doc1_chunk_0": {ID: "doc1_chunk_0", Vector: []float32{1, 0, 0}},
		},
		matches: []vectorstore.Match{
			matchFor("doc1_chunk_0", "doc1", "self", 1.0),
			matchFor("doc2_chunk_0", "doc2", "close", 0.9),
			matchFor("doc3_chunk_0", "doc3", "further", 0.6),
		},
	}
	p := New(&fakeEmbedder{}, searcher, &fakeGenerator{}, nil)

	results, err := p.FindSimilar(context.Background(), "doc1", 2, "ns1")
	require.NoError(t, err)

	assert.Equal(t, 3, searcher.lastTopK, "requests one extra result")
	assert.Equal(t, map[string]string{"document_id": "doc1"}, searcher.lastExcl)
	require.Len(t, results, 2)
	assert.Equal(t, "doc2_chunk_0", results[0].ID)
	assert.Equal(t, "doc3_chunk_0", results[1].ID)
}

func TestSearchReturnsMatches(t *testing.T) {
	searcher := &fakeSearcher{matches: []vectorstore.Match{
		matchFor("doc1_chunk_0", "doc1", "passage one", 0.9),
		matchFor("doc2_chunk_1", "doc2", "passage two", 0.5),
	}}
	p := New(&fakeEmbedder{}, searcher, &fakeGenerator{}, nil)

	results, err := p.Search(context.Background(), "query", 2, "ns1", nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "passage one", results[0].Text)
	assert.Equal(t, float32(0.9), results[0].Score)

	_, err = p.Search(context.Background(), " ", 2, "ns1", nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestFindSimilarUnknownDocument(t *testing.T) {
	p := New(&fakeEmbedder{}, &fakeSearcher{}, &fakeGenerator{}, nil)
	_, err := p.FindSimilar(context.Background(), "missing", 5, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
