// Package extract pulls page-level text out of source documents.
package extract

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"docchat/internal/domain"
)

// PDFExtractor reads PDF files and returns one text segment per page.
// Page numbers are 1-indexed, matching how readers cite printed pages.
type PDFExtractor struct{}

// NewPDFExtractor creates a PDF page extractor.
func NewPDFExtractor() *PDFExtractor { return &PDFExtractor{} }

// Extract returns the text of every page in the PDF at path. It fails
// with ErrExtractionFailed when the file is unreadable or malformed;
// pages with no extractable text are returned with empty Text so page
// numbering stays stable.
func (e *PDFExtractor) Extract(path string) (pages []domain.Page, err error) {
	// The pdf reader panics on some malformed files; fold that into the
	// extraction error instead of crashing a batch ingest.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: %s: %v", domain.ErrExtractionFailed, path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrExtractionFailed, path, err)
	}
	defer f.Close()

	total := r.NumPage()
	pages = make([]domain.Page, 0, total)
	for i := 1; i <= total; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, domain.Page{Number: i})
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %s page %d: %v", domain.ErrExtractionFailed, path, i, err)
		}
		pages = append(pages, domain.Page{Number: i, Text: strings.TrimSpace(text)})
	}
	return pages, nil
}
