package convert

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/level10nurd/documentExtraction/internal/models"
)

// PDFTextConverter reads the embedded text layer without cgo.
// Scanned documents come back blank.
type PDFTextConverter struct {
	maxPages int
}

// NewPDFTextConverter creates a pure Go converter. maxPages <= 0 reads every page.
func NewPDFTextConverter(maxPages int) *PDFTextConverter {
	return &PDFTextConverter{maxPages: maxPages}
}

// Convert reads the plain text of every page
func (c *PDFTextConverter) Convert(ctx context.Context, path string) (doc *Document, err error) {
	// the parser panics on some malformed streams
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("%w: malformed PDF: %v", models.ErrConversion, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf %s: %w", models.ErrConversion, path, err)
	}
	defer func() { _ = f.Close() }()

	numPages := r.NumPage()
	if c.maxPages > 0 && numPages > c.maxPages {
		numPages = c.maxPages
	}

	fonts := make(map[string]*pdf.Font)
	var parts []string
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrTimeout, err)
		}

		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		for _, name := range p.Fonts() {
			if _, ok := fonts[name]; !ok {
				font := p.Font(name)
				fonts[name] = &font
			}
		}

		text, err := p.GetPlainText(fonts)
		if err != nil {
			return nil, fmt.Errorf("%w: read pdf page %d: %w", models.ErrConversion, i, err)
		}
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}

	return &Document{
		Path:   path,
		Text:   strings.Join(parts, "\n\n"),
		Pages:  numPages,
		Method: MethodPDFText,
	}, nil
}
