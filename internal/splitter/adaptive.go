package splitter

import "strings"

// ContentType classifies text for splitting-profile selection.
type ContentType string

const (
	ContentTypeCode    ContentType = "code"
	ContentTypeTable   ContentType = "table"
	ContentTypeGeneral ContentType = "general"
)

// Profile sizes per content type. Code chunks are smaller to keep single
// functions together; table chunks are larger to avoid cutting rows apart.
const (
	codeChunkSize  = 500
	tableChunkSize = 2000
)

// Chunk is a single passage produced by adaptive splitting.
type Chunk struct {
	Text        string
	Index       int
	ContentType ContentType
	CharLen     int
}

// Adaptive selects a splitting profile per detected content type and tags
// each chunk with its class.
type Adaptive struct {
	general *Splitter
	code    *Splitter
	table   *Splitter
}

// NewAdaptive creates an adaptive splitter. chunkSize and overlap configure
// the general profile; the code and table profiles derive their own sizes.
func NewAdaptive(chunkSize, overlap int) *Adaptive {
	return &Adaptive{
		general: New(chunkSize, overlap, nil),
		code:    New(codeChunkSize, overlap, []string{"\n\n", "\n", " ", ""}),
		table:   New(tableChunkSize, overlap, []string{"\n\n", "\n", ""}),
	}
}

// Split classifies text, splits it with the matching profile, and returns
// chunks tagged with the detected class. Indexes start at startIndex so a
// caller splitting several segments of one document can keep a single
// strictly increasing sequence.
func (a *Adaptive) Split(text string, startIndex int) []Chunk {
	ct := DetectContentType(text)
	var pieces []string
	switch ct {
	case ContentTypeCode:
		pieces = a.code.SplitText(text)
	case ContentTypeTable:
		pieces = a.table.SplitText(text)
	default:
		pieces = a.general.SplitText(text)
	}

	chunks := make([]Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = Chunk{
			Text:        p,
			Index:       startIndex + i,
			ContentType: ct,
			CharLen:     len(p),
		}
	}
	return chunks
}

// DetectContentType classifies text as code, table, or general using
// cheap heuristics. It is a pure function with no failure mode; anything
// ambiguous is general.
func DetectContentType(text string) ContentType {
	if strings.Contains(text, "```") || strings.Count(text, "\n    ") > 5 {
		return ContentTypeCode
	}
	if strings.Count(text, "|") > 10 {
		return ContentTypeTable
	}
	return ContentTypeGeneral
}
