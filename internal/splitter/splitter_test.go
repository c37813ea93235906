package splitter

import (
	"fmt"
	"strings"
	"testing"
)

// TestSplitText_ShortInput verifies text below the target size comes back
// as a single chunk equal to the input, with no overlap applied.
func TestSplitText_ShortInput(t *testing.T) {
	s := New(1000, 150, nil)

	inputs := []string{
		"short",
		"a sentence that is well under the chunk size.",
		strings.Repeat("x", 999),
	}
	for _, input := range inputs {
		chunks := s.SplitText(input)
		if len(chunks) != 1 {
			t.Fatalf("expected 1 chunk for %d chars, got %d", len(input), len(chunks))
		}
		if chunks[0] != input {
			t.Errorf("single chunk should equal input, got %q", chunks[0])
		}
	}
}

// TestSplitText_Empty verifies empty input yields zero chunks without error.
func TestSplitText_Empty(t *testing.T) {
	s := New(1000, 150, nil)
	if chunks := s.SplitText(""); len(chunks) != 0 {
		t.Errorf("expected no chunks for empty input, got %d", len(chunks))
	}
}

// TestSplitText_ChunkSizeBound verifies no produced chunk exceeds the
// configured size across several size/overlap combinations.
func TestSplitText_ChunkSizeBound(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 200)

	cases := []struct{ size, overlap int }{
		{100, 20},
		{250, 50},
		{1000, 150},
		{64, 16},
	}
	for _, tc := range cases {
		s := New(tc.size, tc.overlap, nil)
		for i, chunk := range s.SplitText(text) {
			if len(chunk) > tc.size {
				t.Errorf("size=%d overlap=%d: chunk %d has %d chars",
					tc.size, tc.overlap, i, len(chunk))
			}
		}
	}
}

// TestSplitText_CharacterOverlap verifies character-level splitting shares
// exactly the configured overlap between adjacent chunks.
func TestSplitText_CharacterOverlap(t *testing.T) {
	// No separators present in the input forces character-level splitting.
	text := strings.Repeat("abcdefghij", 10) // 100 chars, no spaces
	size, overlap := 20, 5
	s := New(size, overlap, nil)

	chunks := s.SplitText(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1], chunks[i]
		if len(prev) < overlap || len(cur) < overlap {
			t.Fatalf("chunk shorter than overlap at %d", i)
		}
		if prev[len(prev)-overlap:] != cur[:overlap] {
			t.Errorf("chunks %d/%d do not share %d-char boundary: %q vs %q",
				i-1, i, overlap, prev[len(prev)-overlap:], cur[:overlap])
		}
	}
}

// TestSplitText_ProseOverlap verifies adjacent chunks of ordinary prose share
// a boundary close to the configured overlap even when every paragraph is
// longer than the overlap, so retention has to fall back to finer pieces.
func TestSplitText_ProseOverlap(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		for j := 0; j < 8; j++ {
			fmt.Fprintf(&b, "Paragraph %d sentence %d carries enough words to matter. ", i, j)
		}
		b.WriteString("\n\n")
	}
	size, overlap := 1000, 200
	s := New(size, overlap, nil)

	chunks := s.SplitText(b.String())
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1], chunks[i]
		shared := 0
		for k := min(overlap, min(len(prev), len(cur))); k > 0; k-- {
			if prev[len(prev)-k:] == cur[:k] {
				shared = k
				break
			}
		}
		if shared == 0 {
			t.Fatalf("chunks %d/%d share no boundary text", i-1, i)
		}
		if shared < overlap/2 {
			t.Errorf("chunks %d/%d share only %d chars, want at least %d",
				i-1, i, shared, overlap/2)
		}
	}
}

// TestSplitText_RoundTrip verifies concatenating chunks with their boundary
// overlaps trimmed reconstructs the original text exactly.
func TestSplitText_RoundTrip(t *testing.T) {
	texts := []string{
		strings.Repeat("Paragraph one has some words.\n\nParagraph two follows it.\n\n", 40),
		strings.Repeat("abcdefghijklmnopqrstuvwxyz", 30),
		"One line.\nAnother line with more words on it.\n" + strings.Repeat("word ", 500),
	}
	for ti, text := range texts {
		for _, cfg := range []struct{ size, overlap int }{{100, 20}, {1000, 200}, {37, 9}} {
			s := New(cfg.size, cfg.overlap, nil)
			chunks := s.SplitText(text)
			got := reconstruct(chunks, cfg.overlap)
			if got != text {
				t.Errorf("text %d size=%d overlap=%d: reconstruction mismatch (got %d chars, want %d)",
					ti, cfg.size, cfg.overlap, len(got), len(text))
			}
		}
	}
}

// reconstruct joins chunks, trimming the largest shared suffix/prefix
// boundary up to the configured overlap between each adjacent pair.
func reconstruct(chunks []string, overlap int) string {
	var b strings.Builder
	for i, chunk := range chunks {
		if i == 0 {
			b.WriteString(chunk)
			continue
		}
		prev := chunks[i-1]
		trim := 0
		max := min(overlap, min(len(prev), len(chunk)))
		for k := max; k > 0; k-- {
			if prev[len(prev)-k:] == chunk[:k] {
				trim = k
				break
			}
		}
		b.WriteString(chunk[trim:])
	}
	return b.String()
}

// TestSplitText_LargeDocumentChunkCount checks the expected scale for a
// 50,000-character document at size 1000 / overlap 200: roughly 65 chunks
// (50000 / (1000-200) = 62.5, plus boundary effects).
func TestSplitText_LargeDocumentChunkCount(t *testing.T) {
	var b strings.Builder
	i := 0
	for b.Len() < 50000 {
		fmt.Fprintf(&b, "Sentence number %d adds a bit of prose to the document body. ", i)
		i++
		if i%8 == 0 {
			b.WriteString("\n\n")
		}
	}
	text := b.String()[:50000]

	s := New(1000, 200, nil)
	chunks := s.SplitText(text)

	if len(chunks) < 55 || len(chunks) > 80 {
		t.Errorf("expected ~65 chunks for 50k chars at 1000/200, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > 1000 {
			t.Errorf("chunk %d exceeds size: %d chars", i, len(chunk))
		}
	}
}

// TestSplitText_PrefersParagraphBoundaries verifies paragraph separators win
// over finer separators when both would fit.
func TestSplitText_PrefersParagraphBoundaries(t *testing.T) {
	text := "First paragraph here.\n\nSecond paragraph here.\n\nThird paragraph here."
	s := New(30, 0, nil)

	chunks := s.SplitText(text)
	for i, chunk := range chunks {
		if strings.Contains(strings.TrimSuffix(chunk, "\n\n"), "\n\n") {
			t.Errorf("chunk %d spans a paragraph break unnecessarily: %q", i, chunk)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(strings.Repeat("a", 4000)); got != 1000 {
		t.Errorf("expected 1000 tokens for 4000 chars, got %d", got)
	}
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("expected 0 tokens for empty text, got %d", got)
	}
}
