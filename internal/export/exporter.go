package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/level10nurd/documentExtraction/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Output file names inside a run directory
const (
	FileInvoices             = "invoices.csv"
	FileLineItems            = "line_items.csv"
	FileInvoicesDenormalized = "invoices_denormalized.csv"
	FileSummaryCSV           = "summary.csv"
	FileFailures             = "failures.csv"
	FileSummaryMarkdown      = "summary.md"
	FileWorkbook             = "invoices.xlsx"
)

// CSV layouts
const (
	FormatNormalized   = "normalized"
	FormatDenormalized = "denormalized"
)

// DefaultDateFormat is the Go layout used for invoice dates
const DefaultDateFormat = "2006-01-02"

// FileWriter stores an output file relative to the run directory
type FileWriter interface {
	Save(ctx context.Context, path string, content []byte) error
}

// Config controls what is exported
type Config struct {
	Format            string
	DateFormat        string
	IncludeDuplicates bool
	XLSX              bool
	Markdown          bool
}

// DefaultConfig returns the normalized layout with every report enabled
func DefaultConfig() Config {
	return Config{
		Format:     FormatNormalized,
		DateFormat: DefaultDateFormat,
		XLSX:       true,
		Markdown:   true,
	}
}

// Validate checks the layout name
func (c Config) Validate() error {
	switch c.Format {
	case FormatNormalized, FormatDenormalized, "":
		return nil
	default:
		return fmt.Errorf("unknown csv format %q", c.Format)
	}
}

// Exporter renders a run's dataset into report files
type Exporter struct {
	cfg    Config
	out    FileWriter
	logger *zap.Logger
	now    func() time.Time
}

// NewExporter creates an exporter writing through out
func NewExporter(cfg Config, out FileWriter, logger *zap.Logger) *Exporter {
	if cfg.Format == "" {
		cfg.Format = FormatNormalized
	}
	if cfg.DateFormat == "" {
		cfg.DateFormat = DefaultDateFormat
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{cfg: cfg, out: out, logger: logger, now: time.Now}
}

// ExportAll writes every configured report and returns the names written.
// It stops at the first failing report.
func (e *Exporter) ExportAll(ctx context.Context, ds *Dataset) ([]string, error) {
	type job struct {
		name   string
		render func(io.Writer, *Dataset) error
	}

	var jobs []job
	if e.cfg.Format == FormatDenormalized {
		jobs = append(jobs, job{FileInvoicesDenormalized, e.WriteDenormalized})
	} else {
		jobs = append(jobs,
			job{FileInvoices, e.WriteInvoices},
			job{FileLineItems, e.WriteLineItems})
	}
	jobs = append(jobs,
		job{FileSummaryCSV, e.WriteSummaryCSV},
		job{FileFailures, e.WriteFailures})
	if e.cfg.Markdown {
		jobs = append(jobs, job{FileSummaryMarkdown, e.WriteMarkdown})
	}
	if e.cfg.XLSX {
		jobs = append(jobs, job{FileWorkbook, e.WriteWorkbook})
	}

	written := make([]string, 0, len(jobs))
	for _, j := range jobs {
		var buf bytes.Buffer
		if err := j.render(&buf, ds); err != nil {
			return written, fmt.Errorf("failed to render %s: %w", j.name, err)
		}
		if err := e.out.Save(ctx, j.name, buf.Bytes()); err != nil {
			return written, fmt.Errorf("failed to save %s: %w", j.name, err)
		}
		e.logger.Debug("Report written", zap.String("file", j.name), zap.Int("size", buf.Len()))
		written = append(written, j.name)
	}

	e.logger.Info("Export complete",
		zap.Strings("files", written),
		zap.Int("records", len(ds.Records)),
		zap.Int("dropped_duplicates", ds.DroppedCount()))
	return written, nil
}

func (e *Exporter) date(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(e.cfg.DateFormat)
}

func money(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}

func formatConfidence(c float64) string {
	return fmt.Sprintf("%.2f", c)
}

func joinList(items []string) string {
	return strings.Join(items, "; ")
}

// dollars formats an amount as $1,234.56
func dollars(d decimal.Decimal) string {
	s := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + "$" + b.String() + "." + frac
}

func percent(f float64) string {
	return fmt.Sprintf("%.1f%%", f*100)
}

func failuresAndExcluded(result *models.BatchResult) []models.Failure {
	out := result.FailedEntries()
	return append(out, result.Excluded...)
}
