package splitter

import (
	"strings"
	"testing"
)

func TestDetectContentType(t *testing.T) {
	cases := []struct {
		name string
		text string
		want ContentType
	}{
		{"fenced code", "Example:\n```go\nfunc main() {}\n```\n", ContentTypeCode},
		{"indented code", strings.Repeat("\n    indented line", 7), ContentTypeCode},
		{"table", strings.Repeat("| a | b | c |\n", 4), ContentTypeTable},
		{"prose", "Just a plain paragraph of ordinary text.", ContentTypeGeneral},
		{"empty", "", ContentTypeGeneral},
		{"few pipes", "a | b", ContentTypeGeneral},
	}
	for _, tc := range cases {
		if got := DetectContentType(tc.text); got != tc.want {
			t.Errorf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

// TestAdaptive_ProfileSelection verifies code content gets the smaller code
// chunk size while prose uses the general size.
func TestAdaptive_ProfileSelection(t *testing.T) {
	a := NewAdaptive(1000, 100)

	code := "```\n" + strings.Repeat("line := compute(line)\n", 100) + "```\n"
	for i, c := range a.Split(code, 0) {
		if c.ContentType != ContentTypeCode {
			t.Fatalf("chunk %d: expected code class, got %q", i, c.ContentType)
		}
		if len(c.Text) > codeChunkSize {
			t.Errorf("code chunk %d exceeds %d chars: %d", i, codeChunkSize, len(c.Text))
		}
	}

	prose := strings.Repeat("A sentence of plain prose for the general profile. ", 40)
	chunks := a.Split(prose, 0)
	if len(chunks) == 0 {
		t.Fatal("expected chunks for prose input")
	}
	for i, c := range chunks {
		if c.ContentType != ContentTypeGeneral {
			t.Fatalf("chunk %d: expected general class, got %q", i, c.ContentType)
		}
		if len(c.Text) > 1000 {
			t.Errorf("prose chunk %d exceeds 1000 chars: %d", i, len(c.Text))
		}
	}
}

// TestAdaptive_IndexContinuation verifies startIndex produces a strictly
// increasing sequence across segments of one document.
func TestAdaptive_IndexContinuation(t *testing.T) {
	a := NewAdaptive(100, 10)
	text := strings.Repeat("Some words to split across several chunks here. ", 20)

	first := a.Split(text, 0)
	second := a.Split(text, len(first))

	for i, c := range first {
		if c.Index != i {
			t.Errorf("first segment chunk %d: index %d", i, c.Index)
		}
	}
	for i, c := range second {
		if c.Index != len(first)+i {
			t.Errorf("second segment chunk %d: index %d, want %d", i, c.Index, len(first)+i)
		}
	}
}

func TestAdaptive_CharLen(t *testing.T) {
	a := NewAdaptive(50, 5)
	for _, c := range a.Split(strings.Repeat("words and words ", 30), 0) {
		if c.CharLen != len(c.Text) {
			t.Errorf("chunk %d: CharLen %d, len %d", c.Index, c.CharLen, len(c.Text))
		}
	}
}
