package worker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/level10nurd/documentExtraction/internal/confidence"
	"github.com/level10nurd/documentExtraction/internal/models"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ExtractFunc turns one file into a record
type ExtractFunc func(ctx context.Context, path string) (*models.Record, error)

// ProgressFunc is invoked after every completed unit
type ProgressFunc func(done, total int, filename string, status models.ProcessingStatus)

// HealthChecker is implemented by collaborators that can be probed before a batch
type HealthChecker interface {
	Check(ctx context.Context) error
}

// ImageOnlyPolicy decides what happens to documents without a text layer
type ImageOnlyPolicy string

const (
	ImageOnlyFail    ImageOnlyPolicy = "fail"
	ImageOnlyExclude ImageOnlyPolicy = "exclude"
)

const maxReasonLength = 200

// Config holds the batch settings
type Config struct {
	MaxWorkers             int
	MaxFiles               int
	FileTimeout            time.Duration
	LowConfidenceThreshold float64
	ImageOnlyPolicy        ImageOnlyPolicy
	Retry                  *RetryStrategy
}

// DefaultConfig returns the standard batch settings
func DefaultConfig() Config {
	return Config{
		MaxWorkers:             4,
		FileTimeout:            120 * time.Second,
		LowConfidenceThreshold: models.DefaultLowConfidenceThreshold,
		ImageOnlyPolicy:        ImageOnlyFail,
		Retry:                  NewRetryStrategy(),
	}
}

// BatchProcessor fans files out to a bounded pool and merges the outcomes
type BatchProcessor struct {
	cfg      Config
	scorer   *confidence.Scorer
	health   HealthChecker
	progress ProgressFunc
	logger   *zap.Logger
	now      func() time.Time
}

// NewBatchProcessor creates a processor. Zero config values take their defaults.
func NewBatchProcessor(cfg Config, scorer *confidence.Scorer, logger *zap.Logger) *BatchProcessor {
	defaults := DefaultConfig()
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = defaults.MaxWorkers
	}
	if cfg.FileTimeout <= 0 {
		cfg.FileTimeout = defaults.FileTimeout
	}
	if cfg.LowConfidenceThreshold <= 0 {
		cfg.LowConfidenceThreshold = defaults.LowConfidenceThreshold
	}
	if cfg.ImageOnlyPolicy == "" {
		cfg.ImageOnlyPolicy = defaults.ImageOnlyPolicy
	}
	if scorer == nil {
		scorer = confidence.NewScorer(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BatchProcessor{
		cfg:    cfg,
		scorer: scorer,
		logger: logger,
		now:    time.Now,
	}
}

// SetHealthChecker sets the collaborator probed before fan-out
func (p *BatchProcessor) SetHealthChecker(h HealthChecker) {
	p.health = h
}

// SetProgress sets the progress callback
func (p *BatchProcessor) SetProgress(fn ProgressFunc) {
	p.progress = fn
}

// outcome is the private result of one unit
type outcome struct {
	path   string
	record *models.Record
	err    error
}

// Process extracts every file and returns the merged result.
//
// Per-file errors are recorded as failures. The only error returned is an
// environment failure found by the health probe or by the first file, which is
// processed alone before the pool starts. Cancelling ctx stops dispatch; units
// already running finish on a detached context and the partial result is
// returned with Cancelled set.
func (p *BatchProcessor) Process(ctx context.Context, files []string, extract ExtractFunc) (*models.BatchResult, error) {
	if p.cfg.MaxFiles > 0 && len(files) > p.cfg.MaxFiles {
		files = files[:p.cfg.MaxFiles]
	}

	result := &models.BatchResult{
		RunID:                  uuid.NewString(),
		StartedAt:              p.now(),
		LowConfidenceThreshold: p.cfg.LowConfidenceThreshold,
		Successes:              []*models.Record{},
		Failures:               []models.Failure{},
		Excluded:               []models.Failure{},
	}
	logger := p.logger.With(zap.String("run_id", result.RunID))

	logger.Info("Batch started",
		zap.Int("files", len(files)),
		zap.Int("max_workers", p.cfg.MaxWorkers),
		zap.Duration("file_timeout", p.cfg.FileTimeout))

	if len(files) == 0 {
		result.FinishedAt = p.now()
		return result, nil
	}

	if err := p.checkEnvironment(ctx); err != nil {
		logger.Error("Environment check failed", zap.Error(err))
		return nil, err
	}

	if ctx.Err() != nil {
		result.Cancelled = true
		result.FinishedAt = p.now()
		return result, nil
	}

	first := p.runUnit(ctx, files[0], extract)
	if errors.Is(first.err, models.ErrEnvironment) {
		logger.Error("First file failed with an environment error, aborting batch",
			zap.String("path", first.path),
			zap.Error(first.err))
		return nil, fmt.Errorf("failed to process first file %s: %w", filepath.Base(first.path), first.err)
	}

	outcomes := make(chan outcome)
	done := make(chan int)
	go func() {
		done <- p.collect(result, len(files), outcomes, logger)
	}()

	outcomes <- first

	g := new(errgroup.Group)
	g.SetLimit(p.cfg.MaxWorkers)
	for _, path := range files[1:] {
		if ctx.Err() != nil {
			break
		}
		path := path
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			outcomes <- p.runUnit(ctx, path, extract)
			return nil
		})
	}
	_ = g.Wait()
	close(outcomes)
	processed := <-done

	if processed < len(files) {
		result.Cancelled = true
		logger.Warn("Batch cancelled",
			zap.Int("processed", processed),
			zap.Int("skipped", len(files)-processed))
	}

	sortResult(result)
	result.FinishedAt = p.now()

	stats := result.Statistics()
	logger.Info("Batch finished",
		zap.Int("succeeded", stats.Succeeded),
		zap.Int("failed", stats.Failed),
		zap.Int("excluded", stats.Excluded),
		zap.Float64("average_confidence", stats.AverageConfidence),
		zap.Duration("elapsed", stats.Elapsed))

	return result, nil
}

func (p *BatchProcessor) checkEnvironment(ctx context.Context) error {
	if p.health == nil {
		return nil
	}
	err := p.health.Check(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrEnvironment) {
		return fmt.Errorf("health check failed: %w", err)
	}
	return fmt.Errorf("health check failed: %w: %w", models.ErrEnvironment, err)
}

// collect is the single owner of the result slices
func (p *BatchProcessor) collect(result *models.BatchResult, total int, outcomes <-chan outcome, logger *zap.Logger) int {
	n := 0
	for o := range outcomes {
		n++
		filename := filepath.Base(o.path)
		status := models.StatusSuccess

		switch {
		case o.err == nil:
			result.Successes = append(result.Successes, o.record)
			logger.Debug("File processed",
				zap.String("path", o.path),
				zap.String("vendor", o.record.Vendor.String()),
				zap.Float64("confidence", o.record.Confidence))

		case errors.Is(o.err, models.ErrImageOnly) && p.cfg.ImageOnlyPolicy == ImageOnlyExclude:
			status = models.StatusSkipped
			result.Excluded = append(result.Excluded, models.Failure{
				Filename: filename,
				Path:     o.path,
				Status:   status,
				Reason:   shortReason(o.err),
			})
			logger.Info("File excluded", zap.String("path", o.path), zap.Error(o.err))

		default:
			status = models.StatusForError(o.err)
			result.Failures = append(result.Failures, models.Failure{
				Filename: filename,
				Path:     o.path,
				Status:   status,
				Reason:   shortReason(o.err),
			})
			logger.Warn("File failed",
				zap.String("path", o.path),
				zap.String("status", string(status)),
				zap.Error(o.err))
		}

		if p.progress != nil {
			p.progress(n, total, filename, status)
		}
	}
	return n
}

// runUnit processes one file on a context detached from batch cancellation
func (p *BatchProcessor) runUnit(ctx context.Context, path string, extract ExtractFunc) outcome {
	unitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.FileTimeout)
	defer cancel()

	var record *models.Record
	err := p.cfg.Retry.Do(unitCtx, func(ctx context.Context) error {
		r, err := p.extractOnce(ctx, path, extract)
		if err != nil {
			return err
		}
		record = r
		return nil
	})
	if err != nil {
		return outcome{path: path, err: err}
	}
	if record == nil {
		return outcome{path: path, err: fmt.Errorf("%w: extractor returned no record", models.ErrExtraction)}
	}

	if record.SourceFile == "" {
		record.SourceFile = filepath.Base(path)
	}
	if record.SourcePath == "" {
		record.SourcePath = path
	}
	p.scorer.Annotate(record)

	return outcome{path: path, record: record}
}

// extractOnce runs extract with panic capture. When ctx expires first the
// extractor's eventual result is discarded.
func (p *BatchProcessor) extractOnce(ctx context.Context, path string, extract ExtractFunc) (*models.Record, error) {
	type result struct {
		record *models.Record
		err    error
	}
	ch := make(chan result, 1)

	go func() {
		var r result
		if recovered := panics.Try(func() { r.record, r.err = extract(ctx, path) }); recovered != nil {
			r = result{err: fmt.Errorf("%w: %w", models.ErrExtraction, recovered.AsError())}
		}
		ch <- r
	}()

	select {
	case r := <-ch:
		return r.record, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w after %s", models.ErrTimeout, p.cfg.FileTimeout)
	}
}

func sortResult(result *models.BatchResult) {
	result.Successes = result.SuccessfulRecords()
	result.Failures = result.FailedEntries()
	sort.SliceStable(result.Excluded, func(i, j int) bool {
		return result.Excluded[i].Path < result.Excluded[j].Path
	})
}

// shortReason returns the first line of err, truncated
func shortReason(err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	msg = strings.TrimSpace(msg)
	if r := []rune(msg); len(r) > maxReasonLength {
		msg = string(r[:maxReasonLength-3]) + "..."
	}
	return msg
}
