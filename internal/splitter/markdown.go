package splitter

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// Section is a header-delimited region of a markdown document. Sections are
// coarser than chunks: ingestion splits each section further with the
// adaptive splitter, carrying the header path into chunk metadata so
// retrieval can cite "document X, section Y".
type Section struct {
	Index      int
	HeaderPath string // e.g. "# Guide > ## Setup"
	Text       string
}

// Markdown segments markdown sources at H1/H2 boundaries.
type Markdown struct {
	md goldmark.Markdown
}

// NewMarkdown creates a markdown sectioner.
func NewMarkdown() *Markdown {
	return &Markdown{
		md: goldmark.New(goldmark.WithParserOptions(parser.WithAutoHeadingID())),
	}
}

// Sections splits source at H1 and H2 headings. A document without headings
// is returned as a single section with an empty header path.
func (m *Markdown) Sections(source []byte) ([]Section, error) {
	doc := m.md.Parser().Parse(text.NewReader(source))

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(2),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect markdown headings: %w", err)
	}

	if len(tree.Items) == 0 {
		return []Section{{Index: 0, Text: string(source)}}, nil
	}

	headings := collectHeadings(doc)
	var sections []Section
	walkItems(tree.Items, nil, func(path []string, id string) {
		start, ok := headingStart(headings, id)
		if !ok {
			return
		}
		end := len(source)
		if after := boundaryAfter(headings, id); after >= 0 {
			end = after
		}
		body := strings.TrimSpace(string(source[start:end]))
		sections = append(sections, Section{
			Index:      len(sections),
			HeaderPath: joinHeaderPath(path),
			Text:       body,
		})
	})

	return sections, nil
}

// heading pairs a parsed heading node with its auto-generated id.
type heading struct {
	id    string
	level int
	start int
}

// collectHeadings walks the AST once and records every heading with a
// resolvable source position, in document order.
func collectHeadings(doc ast.Node) []heading {
	var hs []heading
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindHeading {
			return ast.WalkContinue, nil
		}
		h := n.(*ast.Heading)
		if h.Lines().Len() == 0 {
			return ast.WalkContinue, nil
		}
		id := ""
		if v, ok := h.AttributeString("id"); ok {
			if b, ok := v.([]byte); ok {
				id = string(b)
			}
		}
		hs = append(hs, heading{id: id, level: h.Level, start: h.Lines().At(0).Start})
		return ast.WalkContinue, nil
	})
	return hs
}

func headingStart(hs []heading, id string) (int, bool) {
	for _, h := range hs {
		if h.id == id {
			return h.start, true
		}
	}
	return 0, false
}

// boundaryAfter returns the start offset of the first H1 or H2 following id,
// or -1 if the section runs to EOF. Deeper headings stay inside the section,
// so sections partition the document without overlap.
func boundaryAfter(hs []heading, id string) int {
	seen := false
	for _, h := range hs {
		if seen && h.level <= 2 {
			return h.start
		}
		if h.id == id {
			seen = true
		}
	}
	return -1
}

// walkItems visits TOC items depth-first in document order, passing each
// item's ancestor title path and its heading id.
func walkItems(items toc.Items, ancestors []string, visit func(path []string, id string)) {
	for _, item := range items {
		path := append(append([]string(nil), ancestors...), string(item.Title))
		visit(path, string(item.ID))
		if len(item.Items) > 0 {
			walkItems(item.Items, path, visit)
		}
	}
}

// joinHeaderPath renders a title path as "# A > ## B".
func joinHeaderPath(path []string) string {
	parts := make([]string, len(path))
	for i, title := range path {
		parts[i] = strings.Repeat("#", i+1) + " " + title
	}
	return strings.Join(parts, " > ")
}
