package loader

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fumiama/go-docx"
)

// loadDOCX extracts paragraph and table text into a single segment.
// Paragraphs are joined by blank lines; table content is appended after the
// body under a "Tables:" marker, matching how tabular content is kept
// adjacent to prose for retrieval.
func loadDOCX(content []byte) ([]Segment, error) {
	doc, err := docx.Parse(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	var paragraphs []string
	var tables []string
	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			if text := strings.TrimSpace(it.String()); text != "" {
				paragraphs = append(paragraphs, text)
			}
		case *docx.Table:
			if text := strings.TrimSpace(it.String()); text != "" {
				tables = append(tables, text)
			}
		}
	}

	text := strings.Join(paragraphs, "\n\n")
	if len(tables) > 0 {
		if text != "" {
			text += "\n\n"
		}
		text += "Tables:\n" + strings.Join(tables, "\n")
	}

	return []Segment{{Text: text, Metadata: map[string]string{}}}, nil
}
