package convert

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/level10nurd/documentExtraction/internal/models"
	"go.uber.org/zap"
)

//go:embed probe.pdf
var probePDF []byte

// FitzConverter extracts the text layer with MuPDF
type FitzConverter struct {
	maxPages int
	logger   *zap.Logger
}

// NewFitzConverter creates a MuPDF converter. maxPages <= 0 reads every page.
func NewFitzConverter(maxPages int, logger *zap.Logger) *FitzConverter {
	return &FitzConverter{maxPages: maxPages, logger: logger}
}

// Convert reads the text of every page
func (c *FitzConverter) Convert(ctx context.Context, path string) (*Document, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrConversion, err)
	}

	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open PDF: %w", models.ErrConversion, err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if c.maxPages > 0 && pageCount > c.maxPages {
		pageCount = c.maxPages
	}

	pages := make([]string, 0, pageCount)
	for pageNum := 0; pageNum < pageCount; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrTimeout, err)
		}
		text, err := doc.Text(pageNum)
		if err != nil {
			c.logger.Warn("Failed to extract page text",
				zap.String("path", path),
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}
		pages = append(pages, strings.TrimSpace(text))
	}

	c.logger.Debug("Converted PDF",
		zap.String("path", path),
		zap.Int("pages", pageCount))

	return &Document{
		Path:   path,
		Text:   strings.Join(pages, "\n\n"),
		Pages:  pageCount,
		Method: MethodFitz,
	}, nil
}

// Check opens an embedded one-page document
func (c *FitzConverter) Check(ctx context.Context) error {
	doc, err := fitz.NewFromMemory(probePDF)
	if err != nil {
		return fmt.Errorf("%w: mupdf cannot open probe document: %w", models.ErrEnvironment, err)
	}
	defer doc.Close()

	if doc.NumPage() != 1 {
		return fmt.Errorf("%w: mupdf probe returned %d pages", models.ErrEnvironment, doc.NumPage())
	}
	if _, err := doc.Text(0); err != nil {
		return fmt.Errorf("%w: mupdf cannot read probe text: %w", models.ErrEnvironment, err)
	}
	return nil
}
