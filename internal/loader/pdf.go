package loader

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pageSource is the part of a parsed PDF the extractor needs.
type pageSource interface {
	NumPage() int
	PageText(i int) (string, error)
}

// pdfPages adapts *pdf.Reader to pageSource.
type pdfPages struct{ r *pdf.Reader }

func (p pdfPages) NumPage() int { return p.r.NumPage() }

func (p pdfPages) PageText(i int) (string, error) {
	page := p.r.Page(i)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

// ExtractPDFText returns the plain text of a PDF. With a valid inclusive
// 1-based page range each selected page is emitted under a
// "--- Page N ---" marker; otherwise the whole document is returned.
// Every call owns its buffer, so concurrent extractions are independent.
func ExtractPDFText(data []byte, startPage, endPage int) (text string, err error) {
	// The pdf package panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("loader: pdf: malformed document: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("loader: pdf: open: %w", err)
	}
	return extractPages(pdfPages{r: r}, startPage, endPage)
}

func extractPages(src pageSource, startPage, endPage int) (string, error) {
	n := src.NumPage()
	var b strings.Builder

	if !validRange(startPage, endPage) {
		for i := 1; i <= n; i++ {
			t, err := src.PageText(i)
			if err != nil {
				return "", fmt.Errorf("loader: pdf: page %d: %w", i, err)
			}
			b.WriteString(t)
		}
		return b.String(), nil
	}

	for i := startPage; i <= min(endPage, n); i++ {
		t, err := src.PageText(i)
		if err != nil {
			return "", fmt.Errorf("loader: pdf: page %d: %w", i, err)
		}
		fmt.Fprintf(&b, "\n\n--- Page %d ---\n%s", i, t)
	}
	return b.String(), nil
}

func validRange(start, end int) bool {
	return start >= 1 && end >= start
}
