package service

import (
	"context"
	"fmt"
	"time"

	"github.com/level10nurd/documentExtraction/internal/dedup"
	"github.com/level10nurd/documentExtraction/internal/export"
	"github.com/level10nurd/documentExtraction/internal/models"
	"github.com/level10nurd/documentExtraction/internal/repository"
	"github.com/level10nurd/documentExtraction/internal/storage"
	"github.com/level10nurd/documentExtraction/internal/worker"
	"github.com/level10nurd/documentExtraction/pkg/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BatchRunner processes a list of files
type BatchRunner interface {
	Process(ctx context.Context, files []string, extract worker.ExtractFunc) (*models.BatchResult, error)
}

// RunRecorder persists a finished run
type RunRecorder interface {
	Save(ctx context.Context, run repository.Run) error
}

// SeenChecker looks invoices up in earlier runs
type SeenChecker interface {
	CheckSeen(ctx context.Context, vendor models.Vendor, invoiceNumber, excludeRun string) (*models.UniquenessCheckResult, error)
}

// RunConfig holds the inputs and outputs of one run
type RunConfig struct {
	SourceDir string
	Pattern   string
	Recursive bool
	MaxFiles  int
	OutputDir string
	Strategy  dedup.Strategy
	Tolerance decimal.Decimal
	Export    export.Config
}

// RunReport describes a completed run
type RunReport struct {
	Result      *models.BatchResult
	Files       int
	RunDir      string
	Written     []string
	Groups      []models.DuplicateGroup
	Resolutions []dedup.Resolution
	Prior       []export.PriorInvoice
	Persisted   bool
}

// RunService executes a full batch run: list, extract, deduplicate, export and persist
type RunService interface {
	Execute(ctx context.Context) (*RunReport, error)
}

type runServiceImpl struct {
	cfg     RunConfig
	batch   BatchRunner
	extract worker.ExtractFunc
	runs    RunRecorder
	seen    SeenChecker
	logger  *zap.Logger
	now     func() time.Time
}

// NewRunService creates a new RunService. runs and seen may be nil when
// runs are not persisted.
func NewRunService(
	cfg RunConfig,
	batch BatchRunner,
	extract worker.ExtractFunc,
	runs RunRecorder,
	seen SeenChecker,
	logger *zap.Logger,
) RunService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Pattern == "" {
		cfg.Pattern = worker.DefaultPattern
	}
	if cfg.Tolerance.IsNegative() {
		cfg.Tolerance = dedup.DefaultTolerance
	}
	return &runServiceImpl{
		cfg:     cfg,
		batch:   batch,
		extract: extract,
		runs:    runs,
		seen:    seen,
		logger:  logger,
		now:     time.Now,
	}
}

// Execute runs the batch. A cancelled ctx stops dispatch; the partial result
// is still exported and persisted.
func (s *runServiceImpl) Execute(ctx context.Context) (*RunReport, error) {
	files, err := worker.ListFiles(s.cfg.SourceDir, s.cfg.Pattern, s.cfg.Recursive, s.cfg.MaxFiles)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	s.logger.Info("Found invoices",
		zap.String("source_dir", s.cfg.SourceDir),
		zap.Int("count", len(files)))

	result, err := s.batch.Process(ctx, files, s.extract)
	if err != nil {
		return nil, err
	}
	logger := utils.WithRun(s.logger, result.RunID)

	// Everything after the batch finishes even when ctx was cancelled
	post := context.WithoutCancel(ctx)

	records := result.SuccessfulRecords()
	groups := dedup.NewDetector(s.cfg.Tolerance).FindDuplicates(records)
	resolutions, err := dedup.Resolve(records, groups, s.cfg.Strategy)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve duplicates: %w", err)
	}
	if len(groups) > 0 {
		logger.Info("Duplicate invoices found",
			zap.Int("groups", len(groups)),
			zap.Int("dropped", len(dedup.DroppedIndices(resolutions))))
	}

	report := &RunReport{
		Result:      result,
		Files:       len(files),
		Groups:      groups,
		Resolutions: resolutions,
		Prior:       s.checkPrior(post, result.RunID, records, logger),
	}

	runDir, err := storage.NewRunDirManager(s.cfg.OutputDir, logger).Create(s.now())
	if err != nil {
		return nil, err
	}
	report.RunDir = runDir

	fs := storage.NewLocalFileStorage(runDir, logger)
	ds := export.NewDataset(result, records, groups, resolutions)
	ds.Prior = report.Prior

	written, err := export.NewExporter(s.cfg.Export, fs, logger).ExportAll(post, ds)
	report.Written = written
	if err != nil {
		return report, fmt.Errorf("failed to export run: %w", err)
	}
	if err := fs.SaveJSON(post, storage.FileBatchResult, result); err != nil {
		return report, err
	}
	report.Written = append(report.Written, storage.FileBatchResult)

	if s.runs != nil {
		err := s.runs.Save(post, repository.Run{
			Result:      result,
			Records:     records,
			Groups:      groups,
			Resolutions: resolutions,
			SourceDir:   s.cfg.SourceDir,
			OutputDir:   runDir,
		})
		if err != nil {
			return report, fmt.Errorf("failed to persist run: %w", err)
		}
		report.Persisted = true
	}

	logger.Info("Run complete",
		zap.String("run_dir", runDir),
		zap.Int("files", len(files)),
		zap.Int("succeeded", len(result.Successes)),
		zap.Int("failed", len(result.Failures)),
		zap.Int("excluded", len(result.Excluded)),
		zap.Bool("cancelled", result.Cancelled))

	return report, nil
}

// checkPrior lists successes whose vendor and invoice number an earlier run already stored.
// Lookup errors are logged and skipped.
func (s *runServiceImpl) checkPrior(ctx context.Context, runID string, records []*models.Record, logger *zap.Logger) []export.PriorInvoice {
	if s.seen == nil {
		return nil
	}
	var prior []export.PriorInvoice
	for _, r := range records {
		if !r.HasInvoiceNumber() {
			continue
		}
		check, err := s.seen.CheckSeen(ctx, r.Vendor, r.InvoiceNumber, runID)
		if err != nil {
			logger.Warn("Failed to check earlier runs",
				zap.String("file", r.SourceFile),
				zap.Error(err))
			continue
		}
		if check.IsUnique {
			continue
		}
		logger.Warn("Invoice already processed in an earlier run",
			zap.String("file", r.SourceFile),
			zap.String("vendor", r.Vendor.String()),
			zap.String("invoice_number", r.InvoiceNumber),
			zap.String("first_run_id", check.FirstRunID))
		prior = append(prior, export.PriorInvoice{
			SourceFile:    r.SourceFile,
			Vendor:        r.Vendor,
			InvoiceNumber: r.InvoiceNumber,
			Check:         *check,
		})
	}
	return prior
}
