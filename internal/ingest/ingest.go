// Package ingest orchestrates the upload-and-process path: register the
// document, load it, split it into chunks, embed them, and index the
// vectors in the tenant's namespace.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/docstack/ragpipe/internal/loader"
	"github.com/docstack/ragpipe/internal/registry"
	"github.com/docstack/ragpipe/internal/splitter"
	"github.com/docstack/ragpipe/internal/vectorstore"
)

// metadataTextLimit caps how much chunk text is stored in the index
// payload for display alongside search results.
const metadataTextLimit = 1000

// Embedder is the embedding surface ingestion needs.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Indexer is the vector index surface ingestion needs.
type Indexer interface {
	Upsert(ctx context.Context, entries []vectorstore.Entry, namespace string) (vectorstore.UpsertResult, error)
	DeleteByFilter(ctx context.Context, filter map[string]string, namespace string) error
}

// Result reports a completed ingestion.
type Result struct {
	DocumentID string
	Chunks     int
	Upserted   int
}

// Service runs the ingestion pipeline.
type Service struct {
	loader   *loader.Loader
	splitter *splitter.Adaptive
	markdown *splitter.Markdown
	embedder Embedder
	index    Indexer
	registry registry.Registry
	logger   *slog.Logger
}

// New creates an ingestion service. A nil logger falls back to
// slog.Default().
func New(ld *loader.Loader, sp *splitter.Adaptive, embedder Embedder, index Indexer, reg registry.Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		loader:   ld,
		splitter: sp,
		markdown: splitter.NewMarkdown(),
		embedder: embedder,
		index:    index,
		registry: reg,
		logger:   logger,
	}
}

// Process ingests one document end to end. The document is registered
// as processing immediately; any failure marks it failed with the error
// recorded, so callers can inspect what went wrong later.
func (s *Service) Process(ctx context.Context, content []byte, filename, declaredType, namespace string) (*Result, error) {
	docID := uuid.New().String()
	doc := registry.Document{
		ID:       docID,
		Filename: filename,
		FileType: strings.ToLower(strings.TrimPrefix(declaredType, ".")),
		Size:     int64(len(content)),
		Status:   registry.StatusProcessing,
	}
	if err := s.registry.Put(ctx, doc); err != nil {
		return nil, fmt.Errorf("registering document: %w", err)
	}

	result, err := s.process(ctx, &doc, content, namespace)
	if err != nil {
		doc.Status = registry.StatusFailed
		doc.Error = err.Error()
		if putErr := s.registry.Put(ctx, doc); putErr != nil {
			s.logger.Error("recording ingestion failure", "document_id", docID, "error", putErr)
		}
		return nil, err
	}

	doc.Status = registry.StatusCompleted
	doc.Error = ""
	if err := s.registry.Put(ctx, doc); err != nil {
		return nil, fmt.Errorf("recording ingestion result: %w", err)
	}

	s.logger.Info("ingested document",
		"document_id", docID,
		"filename", filename,
		"chunks", result.Chunks,
		"namespace", namespace)
	return result, nil
}

func (s *Service) process(ctx context.Context, doc *registry.Document, content []byte, namespace string) (*Result, error) {
	segments, err := s.loader.LoadBytes(content, doc.Filename, doc.FileType)
	if err != nil {
		return nil, err
	}
	if doc.FileType == "md" {
		segments, err = s.sectionMarkdown(segments)
		if err != nil {
			return nil, err
		}
	}

	var (
		texts   []string
		entries []vectorstore.Entry
		full    []string
	)
	nextIndex := 0
	for _, seg := range segments {
		full = append(full, seg.Text)
		for _, chunk := range s.splitter.Split(seg.Text, nextIndex) {
			entry := vectorstore.Entry{
				ID: fmt.Sprintf("%s_chunk_%d", doc.ID, chunk.Index),
				Metadata: map[string]string{
					"document_id":  doc.ID,
					"chunk_index":  strconv.Itoa(chunk.Index),
					"content_type": string(chunk.ContentType),
					"char_length":  strconv.Itoa(chunk.CharLen),
					"text":         truncate(chunk.Text, metadataTextLimit),
				},
			}
			for k, v := range seg.Metadata {
				if _, ok := entry.Metadata[k]; !ok {
					entry.Metadata[k] = v
				}
			}
			entries = append(entries, entry)
			texts = append(texts, chunk.Text)
			nextIndex = chunk.Index + 1
		}
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("document %s produced no chunks", doc.ID)
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Vector = vectors[i]
	}

	upserted, err := s.index.Upsert(ctx, entries, namespace)
	if err != nil {
		return nil, err
	}

	doc.Chunks = len(entries)
	doc.Text = strings.Join(full, "\n\n")
	s.applyDocumentInfo(doc, segments)

	return &Result{
		DocumentID: doc.ID,
		Chunks:     len(entries),
		Upserted:   upserted.Upserted,
	}, nil
}

// sectionMarkdown re-segments markdown at H1/H2 boundaries so chunk
// metadata can carry the section's header path.
func (s *Service) sectionMarkdown(segments []loader.Segment) ([]loader.Segment, error) {
	var out []loader.Segment
	for _, seg := range segments {
		sections, err := s.markdown.Sections([]byte(seg.Text))
		if err != nil {
			return nil, err
		}
		for _, sec := range sections {
			md := make(map[string]string, len(seg.Metadata)+1)
			for k, v := range seg.Metadata {
				md[k] = v
			}
			if sec.HeaderPath != "" {
				md["section"] = sec.HeaderPath
			}
			out = append(out, loader.Segment{Text: sec.Text, Metadata: md})
		}
	}
	return out, nil
}

// applyDocumentInfo copies document-level fields like title, author,
// and page count out of parser metadata.
func (s *Service) applyDocumentInfo(doc *registry.Document, segments []loader.Segment) {
	lastPage := 0
	for _, seg := range segments {
		if doc.Title == "" {
			doc.Title = seg.Metadata["title"]
		}
		if doc.Author == "" {
			doc.Author = seg.Metadata["author"]
		}
		if p, err := strconv.Atoi(seg.Metadata["page"]); err == nil && p > lastPage {
			lastPage = p
		}
		if n, err := strconv.Atoi(seg.Metadata["num_pages"]); err == nil && n > lastPage {
			lastPage = n
		}
	}
	doc.Pages = lastPage
}

// Delete removes a document: its index entries first (cascade by
// document id), then its registry record.
func (s *Service) Delete(ctx context.Context, documentID, namespace string) error {
	if _, err := s.registry.Get(ctx, documentID); err != nil {
		return err
	}
	if err := s.index.DeleteByFilter(ctx, map[string]string{"document_id": documentID}, namespace); err != nil {
		return fmt.Errorf("deleting index entries for %s: %w", documentID, err)
	}
	if err := s.registry.Delete(ctx, documentID); err != nil {
		return err
	}
	s.logger.Info("deleted document", "document_id", documentID, "namespace", namespace)
	return nil
}

// truncate caps s at limit bytes, backing up so the cut never lands
// inside a multi-byte rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
