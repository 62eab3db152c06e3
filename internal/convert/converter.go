package convert

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/level10nurd/documentExtraction/internal/models"
)

// Conversion methods
const (
	MethodFitz    = "fitz"
	MethodPDFText = "pdftext"
)

// Document is the text of a converted file
type Document struct {
	Path   string
	Text   string
	Pages  int
	Method string
}

// Converter turns a file into text.
// Per-file failures wrap models.ErrConversion; a broken backend wraps models.ErrEnvironment.
type Converter interface {
	Convert(ctx context.Context, path string) (*Document, error)
}

// HealthChecker is implemented by converters that can verify their backend
type HealthChecker interface {
	Check(ctx context.Context) error
}

// Chain tries converters in order until one yields text
type Chain struct {
	converters []Converter
}

// NewChain creates a chain with a primary converter and fallbacks
func NewChain(primary Converter, fallbacks ...Converter) *Chain {
	return &Chain{converters: append([]Converter{primary}, fallbacks...)}
}

// Convert returns the first document with usable text. When every converter
// returns a blank document, the last one is returned so that callers can
// classify it as image-only.
func (c *Chain) Convert(ctx context.Context, path string) (*Document, error) {
	var blank *Document
	var errs []error

	for _, conv := range c.converters {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrTimeout, err)
		}
		doc, err := conv.Convert(ctx, path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if strings.TrimSpace(StripImagePlaceholders(doc.Text)) == "" {
			blank = doc
			continue
		}
		return doc, nil
	}

	if blank != nil {
		return blank, nil
	}
	return nil, errors.Join(errs...)
}

// Check passes when any member passes or none can be checked
func (c *Chain) Check(ctx context.Context) error {
	var errs []error
	for _, conv := range c.converters {
		hc, ok := conv.(HealthChecker)
		if !ok {
			return nil
		}
		err := hc.Check(ctx)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
