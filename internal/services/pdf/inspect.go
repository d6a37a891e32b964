// Package pdf inspects uploaded template PDFs before they are accepted.
//
// We use the ledongthuc/pdf library here because it is a small pure Go
// reader: it opens the file, counts pages and pulls plain text, which is all
// an upload check needs. Stamping goes through pdfcpu instead.
package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Inspection describes an uploaded PDF.
type Inspection struct {
	PageCount int   `json:"page_count"`
	WordCount int   `json:"word_count"`
	PageWords []int `json:"page_words"` // Words per page; 0 usually means a scanned page
}

// Inspect opens a PDF held in memory and reports its page count and how
// much extractable text each page has.
//
// Go Pattern: We accept []byte instead of a filename because the data comes
// from an HTTP upload (in memory), not a file on disk. The pdf library
// requires ReaderAt for random access to the PDF structure.
func Inspect(data []byte) (*Inspection, error) {
	if !ValidatePDF(data) {
		return nil, fmt.Errorf("file does not start with a PDF header")
	}

	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	pageCount := pdfReader.NumPage()
	if pageCount == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	result := &Inspection{PageCount: pageCount, PageWords: make([]int, pageCount)}
	for i := 1; i <= pageCount; i++ {
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Image-only pages have nothing to extract; that's fine for a template.
			continue
		}
		n := countWords(text)
		result.PageWords[i-1] = n
		result.WordCount += n
	}
	return result, nil
}

// countWords counts the number of words in a text string.
func countWords(text string) int {
	return len(strings.Fields(text))
}

// ValidatePDF checks if the data looks like a valid PDF by checking the magic bytes.
func ValidatePDF(data []byte) bool {
	// PDF files start with "%PDF-"
	return len(data) >= 5 && string(data[:5]) == "%PDF-"
}
