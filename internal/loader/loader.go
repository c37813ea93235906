// Package loader normalizes raw document bytes into text segments with
// source metadata. Page-structured formats produce one segment per page so
// retrieval can cite "document X, page Y"; flat formats produce a single
// segment.
package loader

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/docstack/ragpipe/internal/apperr"
)

// Segment is one normalized piece of a loaded document. Metadata keys are
// format-dependent: "page" for paginated formats, plus "title" and "author"
// when the source carries them. Every segment has "source" and "file_type".
type Segment struct {
	Text     string
	Metadata map[string]string
}

// supportedTypes is the fixed set of declared types the loader accepts.
var supportedTypes = map[string]bool{
	"pdf":  true,
	"docx": true,
	"txt":  true,
	"md":   true,
}

// Loader converts raw bytes of a supported format into text segments.
type Loader struct {
	logger *slog.Logger
}

// New creates a Loader. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Supported reports whether declaredType is in the supported set.
func Supported(declaredType string) bool {
	return supportedTypes[normalizeType(declaredType)]
}

// LoadBytes converts content into an ordered sequence of segments. The
// declared type must be one of pdf, docx, txt, md; anything else fails with
// ErrFormatUnsupported. Conversion works entirely in memory, so there is no
// temporary storage to clean up on any exit path.
func (l *Loader) LoadBytes(content []byte, filename, declaredType string) ([]Segment, error) {
	ft := normalizeType(declaredType)
	if !supportedTypes[ft] {
		return nil, fmt.Errorf("%w: %q", apperr.ErrFormatUnsupported, declaredType)
	}

	var (
		segments []Segment
		err      error
	)
	switch ft {
	case "pdf":
		segments, err = loadPDF(content)
	case "docx":
		segments, err = loadDOCX(content)
	default:
		segments = loadText(content)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s %q: %w", ft, filename, err)
	}

	for i := range segments {
		if segments[i].Metadata == nil {
			segments[i].Metadata = make(map[string]string)
		}
		segments[i].Metadata["source"] = filename
		segments[i].Metadata["file_type"] = ft
	}

	l.logger.Debug("loaded document",
		"source", filename, "type", ft, "segments", len(segments))
	return segments, nil
}

// LoadFile reads path from disk and converts it. A missing file fails with
// ErrNotFound; the declared type is taken from the file extension.
func (l *Loader) LoadFile(path string) ([]Segment, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	return l.LoadBytes(content, filepath.Base(path), ext)
}

// loadText wraps flat text content in a single segment.
func loadText(content []byte) []Segment {
	return []Segment{{Text: string(content), Metadata: map[string]string{}}}
}

func normalizeType(t string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "."))
}
