package loader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/docstack/ragpipe/internal/apperr"
)

func TestLoadBytes_UnsupportedFormat(t *testing.T) {
	l := New(nil)

	for _, ft := range []string{"exe", "png", "", "tar.gz"} {
		_, err := l.LoadBytes([]byte("data"), "file."+ft, ft)
		if !errors.Is(err, apperr.ErrFormatUnsupported) {
			t.Errorf("type %q: expected ErrFormatUnsupported, got %v", ft, err)
		}
	}
}

func TestLoadBytes_FlatText(t *testing.T) {
	l := New(nil)

	content := "First paragraph.\n\nSecond paragraph."
	segments, err := l.LoadBytes([]byte(content), "notes.txt", "txt")
	if err != nil {
		t.Fatalf("LoadBytes failed: %v", err)
	}

	if len(segments) != 1 {
		t.Fatalf("flat text should yield exactly one segment, got %d", len(segments))
	}
	seg := segments[0]
	if seg.Text != content {
		t.Errorf("segment text should equal input")
	}
	if seg.Metadata["source"] != "notes.txt" {
		t.Errorf("expected source metadata, got %q", seg.Metadata["source"])
	}
	if seg.Metadata["file_type"] != "txt" {
		t.Errorf("expected file_type txt, got %q", seg.Metadata["file_type"])
	}
}

func TestLoadBytes_MarkdownIsFlat(t *testing.T) {
	l := New(nil)

	segments, err := l.LoadBytes([]byte("# Title\n\nBody."), "readme.md", "md")
	if err != nil {
		t.Fatalf("LoadBytes failed: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("markdown should yield one segment, got %d", len(segments))
	}
}

func TestLoadBytes_TypeNormalization(t *testing.T) {
	l := New(nil)

	// Declared types arrive with or without a dot and in mixed case.
	for _, ft := range []string{".txt", "TXT", " txt "} {
		segments, err := l.LoadBytes([]byte("text"), "f", ft)
		if err != nil {
			t.Fatalf("type %q: %v", ft, err)
		}
		if segments[0].Metadata["file_type"] != "txt" {
			t.Errorf("type %q: normalized to %q", ft, segments[0].Metadata["file_type"])
		}
	}
}

func TestLoadFile_Missing(t *testing.T) {
	l := New(nil)

	_, err := l.LoadFile(filepath.Join(t.TempDir(), "absent.txt"))
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing file, got %v", err)
	}
}

func TestLoadFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	content := "# Heading\n\nSome body text."
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	l := New(nil)
	segments, err := l.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if len(segments) != 1 || segments[0].Text != content {
		t.Errorf("unexpected segments: %+v", segments)
	}
	if segments[0].Metadata["source"] != "doc.md" {
		t.Errorf("source should be the base filename, got %q", segments[0].Metadata["source"])
	}
}

func TestSupported(t *testing.T) {
	for _, ft := range []string{"pdf", "docx", "txt", "md", ".PDF"} {
		if !Supported(ft) {
			t.Errorf("%q should be supported", ft)
		}
	}
	if Supported("csv") {
		t.Errorf("csv should not be supported")
	}
}
