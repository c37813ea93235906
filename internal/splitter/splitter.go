// Package splitter turns document text into retrieval-sized overlapping
// chunks. The recursive splitter prefers semantic break points (paragraphs,
// then lines, sentences, clauses, words) and falls back to character-level
// splitting, so termination is guaranteed for any input.
package splitter

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultChunkSize is the target chunk size in characters.
	DefaultChunkSize = 1000

	// DefaultOverlap is the number of characters shared between adjacent
	// chunks to preserve cross-boundary context for retrieval.
	DefaultOverlap = 150

	// charsPerToken is the conservative characters-per-token ratio used
	// for token estimation. Deliberately approximate.
	charsPerToken = 4
)

// DefaultSeparators is the separator priority list, coarsest first. The
// trailing empty string enables character-level splitting as the base case.
var DefaultSeparators = []string{"\n\n", "\n", ". ", ", ", " ", ""}

// Splitter splits text recursively on a separator priority list.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// New creates a Splitter with the given chunk size and overlap. Non-positive
// or inconsistent values fall back to the defaults; overlap must be smaller
// than the chunk size. A nil separator list uses DefaultSeparators.
func New(chunkSize, overlap int, separators []string) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultOverlap
		if overlap >= chunkSize {
			overlap = chunkSize / 5
		}
	}
	if separators == nil {
		separators = DefaultSeparators
	}
	return &Splitter{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: separators,
	}
}

// ChunkSize returns the configured target chunk size.
func (s *Splitter) ChunkSize() int { return s.chunkSize }

// Overlap returns the configured overlap between adjacent chunks.
func (s *Splitter) Overlap() int { return s.overlap }

// SplitText splits text into chunks of at most the target size. Text shorter
// than the target yields exactly one chunk equal to the input; empty text
// yields no chunks. Separators are kept attached to the piece they
// terminate, so concatenating chunks with overlaps removed reconstructs the
// input exactly.
func (s *Splitter) SplitText(text string) []string {
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= s.chunkSize {
		return []string{text}
	}
	return s.split(text, s.separators)
}

// split flattens text into separator-aligned pieces, then reassembles them
// into overlapping chunks in a single pass over the whole piece list.
func (s *Splitter) split(text string, separators []string) []string {
	return s.merge(s.decompose(text, separators))
}

// decompose splits text on the coarsest separator present and re-splits any
// piece longer than the merge granularity with the finer separators. Bounding
// piece length keeps the window retention in merge able to land within one
// piece of the configured overlap.
func (s *Splitter) decompose(text string, separators []string) []string {
	sep, rest := chooseSeparator(text, separators)
	var pieces []string
	for _, piece := range splitKeep(text, sep) {
		if utf8.RuneCountInString(piece) <= s.granularity() || len(rest) == 0 {
			// Oversized pieces with no finer separator left are only
			// reachable when a profile omits the character base case;
			// emit as-is.
			pieces = append(pieces, piece)
			continue
		}
		pieces = append(pieces, s.decompose(piece, rest)...)
	}
	return pieces
}

// granularity is the maximum piece length fed to merge. With overlap enabled
// it equals the overlap, so the retained suffix at every chunk boundary stays
// close to the configured amount; with overlap disabled pieces only need to
// fit inside a chunk.
func (s *Splitter) granularity() int {
	if s.overlap > 0 {
		return s.overlap
	}
	return s.chunkSize
}

// merge reassembles adjacent pieces into chunks up to the target size,
// sliding the window back by the overlap amount between consecutive chunks.
// Pieces are concatenated verbatim; no characters are added or removed.
func (s *Splitter) merge(pieces []string) []string {
	var chunks []string
	var window []string
	windowLen := 0

	flush := func() {
		chunks = append(chunks, strings.Join(window, ""))
	}

	for _, piece := range pieces {
		pl := utf8.RuneCountInString(piece)
		if windowLen+pl > s.chunkSize && windowLen > 0 {
			flush()
			// Retain a suffix of at most overlap characters as the
			// start of the next chunk.
			for len(window) > 0 && (windowLen > s.overlap || windowLen+pl > s.chunkSize) {
				windowLen -= utf8.RuneCountInString(window[0])
				window = window[1:]
			}
		}
		window = append(window, piece)
		windowLen += pl
	}
	if len(window) > 0 {
		flush()
	}
	return chunks
}

// chooseSeparator picks the coarsest separator present in text and returns
// it together with the finer separators remaining after it.
func chooseSeparator(text string, separators []string) (string, []string) {
	for i, sep := range separators {
		if sep == "" {
			return "", nil
		}
		if strings.Contains(text, sep) {
			return sep, separators[i+1:]
		}
	}
	// Nothing matched and no character base case: fall back to the
	// finest separator in the list.
	last := separators[len(separators)-1]
	return last, nil
}

// splitKeep splits text on sep keeping the separator attached to the
// preceding piece. An empty separator splits into individual characters.
func splitKeep(text, sep string) []string {
	if sep == "" {
		runes := []rune(text)
		pieces := make([]string, len(runes))
		for i, r := range runes {
			pieces[i] = string(r)
		}
		return pieces
	}
	parts := strings.SplitAfter(text, sep)
	pieces := parts[:0]
	for _, p := range parts {
		if p != "" {
			pieces = append(pieces, p)
		}
	}
	return pieces
}

// EstimateTokens returns a conservative token estimate for text using a
// fixed characters-per-token ratio.
func EstimateTokens(text string) int {
	return len(text) / charsPerToken
}
