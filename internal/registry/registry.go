// Package registry tracks metadata for ingested documents.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/docstack/ragpipe/internal/apperr"
)

// ErrNotFound is returned when a document id is not registered. It wraps
// apperr.ErrNotFound so callers can match either sentinel.
var ErrNotFound = fmt.Errorf("document %w", apperr.ErrNotFound)

// Status is a document's ingestion lifecycle state.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Document is the registered metadata for one ingested document. Text
// holds the normalized full text so summarization can run without
// re-parsing the source file.
type Document struct {
	ID        string
	Filename  string
	FileType  string
	Size      int64
	Title     string
	Author    string
	Pages     int
	Chunks    int
	Status    Status
	Error     string
	Text      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Registry stores document metadata.
type Registry interface {
	Put(ctx context.Context, doc Document) error
	Get(ctx context.Context, id string) (Document, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Document, error)
	Count(ctx context.Context) (int, error)
}

// Memory is an in-memory Registry. Safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]Document
}

// NewMemory creates an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]Document)}
}

// Put inserts or replaces a document, stamping timestamps.
func (m *Memory) Put(ctx context.Context, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := m.docs[doc.ID]; ok {
		doc.CreatedAt = existing.CreatedAt
	} else {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	m.docs[doc.ID] = doc
	return nil
}

func (m *Memory) Get(ctx context.Context, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[id]; !ok {
		return ErrNotFound
	}
	delete(m.docs, id)
	return nil
}

// List returns all documents ordered by creation time, newest first.
func (m *Memory) List(ctx context.Context) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]Document, 0, len(m.docs))
	for _, doc := range m.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}

func (m *Memory) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs), nil
}
