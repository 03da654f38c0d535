// Package pdftext converts downloaded PDF bytes into a bounded plain-text
// representation and guesses a document title from it.
package pdftext

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"editalwatch/collector-service/internal/dates"
)

// DefaultMaxPages bounds how much of a document is extracted; calls state
// their essentials up front, and the cap bounds classification cost on
// large documents.
const DefaultMaxPages = 5

// titleWindow is how far into the text the title search looks.
const titleWindow = 8000

// titleLines is how many non-empty leading lines are considered.
const titleLines = 12

// genericTitles are link labels and headings too generic to serve as a
// document title.
var genericTitles = map[string]bool{
	"chamada":     true,
	"chamadas":    true,
	"edital":      true,
	"acesse aqui": true,
	"saiba mais":  true,
	"resultado":   true,
	"call":        true,
}

// Extract parses at most maxPages pages of the document and returns their
// text concatenated in page order with newline separation, plus the number
// of pages used. A page that fails to extract contributes empty text; a
// document that fails to open at all is an error. The underlying parser
// panics on some malformed documents, so that is mapped to an error too.
func Extract(data []byte, maxPages int) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, pages = "", 0
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}

	var parts []string
	for i := 1; i <= reader.NumPage() && i <= maxPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			parts = append(parts, "")
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			pageText = ""
		}
		parts = append(parts, pageText)
	}

	return strings.Join(parts, "\n"), len(parts), nil
}

// Extractor adapts the package functions to the pipeline's interface.
type Extractor struct{}

// Extract implements the pipeline's text extraction contract.
func (Extractor) Extract(data []byte, maxPages int) (string, int, error) {
	return Extract(data, maxPages)
}

// FirstTitle returns the first plausible title line from the head of the
// extracted text: a non-empty line longer than a few characters that is
// not one of the generic headings. Falls back to the first non-empty line,
// or empty when the text has none.
func FirstTitle(text string) string {
	head := dates.Prefix(text, titleWindow)

	var lines []string
	for _, ln := range strings.Split(head, "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			lines = append(lines, ln)
		}
	}
	if len(lines) == 0 {
		return ""
	}

	limit := titleLines
	if len(lines) < limit {
		limit = len(lines)
	}
	for _, ln := range lines[:limit] {
		if len([]rune(ln)) > 6 && !genericTitles[strings.ToLower(ln)] {
			return ln
		}
	}
	return lines[0]
}

// CleanTitle collapses whitespace and truncates pathological run-on titles
// produced by extracting a whole paragraph as the first line.
func CleanTitle(title string) string {
	title = strings.Join(strings.Fields(title), " ")
	if len([]rune(title)) > 300 && strings.Count(title, " ") > 50 {
		title = string([]rune(title)[:150]) + "..."
	}
	return title
}
