package loader

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

// loadPDF extracts one segment per page. Pages without extractable text are
// skipped; the page number in metadata is 1-based and refers to the source
// document, not the segment position.
func loadPDF(content []byte) ([]Segment, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("parse pdf: %w", err)
	}

	numPages := r.NumPage()
	docMeta := pdfInfo(r, numPages)

	var segments []Segment
	for pageNum := 1; pageNum <= numPages; pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", pageNum, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		meta := make(map[string]string, len(docMeta)+1)
		for k, v := range docMeta {
			meta[k] = v
		}
		meta["page"] = strconv.Itoa(pageNum)
		segments = append(segments, Segment{Text: text, Metadata: meta})
	}
	return segments, nil
}

// pdfInfo pulls title/author out of the document info dictionary when
// present. Missing or malformed entries are simply omitted.
func pdfInfo(r *pdf.Reader, numPages int) map[string]string {
	meta := map[string]string{
		"num_pages": strconv.Itoa(numPages),
	}
	info := r.Trailer().Key("Info")
	if info.IsNull() {
		return meta
	}
	if title := info.Key("Title").RawString(); title != "" {
		meta["title"] = title
	}
	if author := info.Key("Author").RawString(); author != "" {
		meta["author"] = author
	}
	return meta
}
