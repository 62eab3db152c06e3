package invoice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/level10nurd/documentExtraction/internal/convert"
	"github.com/level10nurd/documentExtraction/internal/extractor"
	"github.com/level10nurd/documentExtraction/internal/models"
	"github.com/level10nurd/documentExtraction/internal/vendor"
	"go.uber.org/zap"
)

// LLMExtractor reads invoices that no rule set covers
type LLMExtractor interface {
	Extract(ctx context.Context, text, filename string, hint models.Vendor) (*models.Record, error)
}

// Pipeline turns one PDF into a record: convert, check for a text layer,
// detect the vendor, then extract with the vendor's rules or the LLM
type Pipeline struct {
	converter    convert.Converter
	detector     *vendor.Detector
	registry     *extractor.Registry
	llm          LLMExtractor
	minTextChars int
	logger       *zap.Logger
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLLM enables the LLM fallback for Unknown and unsupported vendors
func WithLLM(llm LLMExtractor) Option {
	return func(p *Pipeline) {
		p.llm = llm
	}
}

// WithMinTextChars sets the text length below which a document is image-only
func WithMinTextChars(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.minTextChars = n
		}
	}
}

// NewPipeline creates a pipeline
func NewPipeline(conv convert.Converter, det *vendor.Detector, reg *extractor.Registry, logger *zap.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		converter:    conv,
		detector:     det,
		registry:     reg,
		minTextChars: convert.DefaultMinTextChars,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Check probes the converter backend
func (p *Pipeline) Check(ctx context.Context) error {
	if hc, ok := p.converter.(convert.HealthChecker); ok {
		return hc.Check(ctx)
	}
	return nil
}

// Extract processes one file. Errors wrap the per-file kinds in models.
func (p *Pipeline) Extract(ctx context.Context, path string) (*models.Record, error) {
	filename := filepath.Base(path)

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrConversion, err)
	}

	doc, err := p.convert(ctx, path)
	if err != nil {
		return nil, err
	}

	det := p.detector.Detect(path, doc.Text)

	var r *models.Record
	if ex, ok := p.registry.Get(det.Vendor); ok {
		r = ex.Extract(doc.Text, filename)
	} else if p.llm != nil {
		p.logger.Info("Falling back to LLM extraction",
			zap.String("file", filename),
			zap.String("vendor", det.Vendor.String()))
		r, err = p.llm.Extract(ctx, doc.Text, filename, det.Vendor)
		if err != nil {
			return nil, err
		}
	} else if det.Vendor.IsKnown() {
		return nil, fmt.Errorf("%w: %s", models.ErrVendorNotSupported, det.Vendor)
	} else {
		return nil, fmt.Errorf("%w: %s", models.ErrDetection, filename)
	}

	r.SourcePath = path
	r.SourceModTime = info.ModTime()
	r.VendorConfidence = det.Confidence
	return r, nil
}

// DetectVendor converts a file and reports its vendor without extracting
func (p *Pipeline) DetectVendor(ctx context.Context, path string) (vendor.Detection, error) {
	doc, err := p.convert(ctx, path)
	if err != nil {
		if !errors.Is(err, models.ErrImageOnly) {
			return vendor.Detection{}, err
		}
		// Image-only files can still be placed by manifest or folder
		return p.detector.Detect(path, ""), nil
	}
	return p.detector.Detect(path, doc.Text), nil
}

func (p *Pipeline) convert(ctx context.Context, path string) (*convert.Document, error) {
	doc, err := p.converter.Convert(ctx, path)
	if err != nil {
		if errors.Is(err, models.ErrConversion) || errors.Is(err, models.ErrTimeout) || errors.Is(err, models.ErrEnvironment) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", models.ErrConversion, err)
	}
	if convert.IsImageOnly(doc.Text, p.minTextChars) {
		return nil, fmt.Errorf("%w: %s", models.ErrImageOnly, filepath.Base(path))
	}
	return doc, nil
}
