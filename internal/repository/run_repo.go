package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/level10nurd/documentExtraction/internal/dedup"
	"github.com/level10nurd/documentExtraction/internal/models"
	"github.com/level10nurd/documentExtraction/pkg/database"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Run is one batch run to persist.
// Group and resolution indices refer to Records.
type Run struct {
	Result      *models.BatchResult
	Records     []*models.Record
	Groups      []models.DuplicateGroup
	Resolutions []dedup.Resolution
	SourceDir   string
	OutputDir   string
}

// RunSummary is a stored run with its headline statistics
type RunSummary struct {
	ID                string          `json:"id"`
	StartedAt         time.Time       `json:"started_at"`
	FinishedAt        *time.Time      `json:"finished_at,omitempty"`
	Cancelled         bool            `json:"cancelled"`
	SourceDir         string          `json:"source_dir"`
	OutputDir         string          `json:"output_dir"`
	Total             int             `json:"total"`
	Succeeded         int             `json:"succeeded"`
	Failed            int             `json:"failed"`
	Excluded          int             `json:"excluded"`
	AverageConfidence float64         `json:"average_confidence"`
	TotalValue        decimal.Decimal `json:"total_value"`
	CreatedAt         time.Time       `json:"created_at"`
}

// StoredFailure is a failed or excluded file of a stored run
type StoredFailure struct {
	models.Failure
	Excluded bool `json:"excluded"`
}

// StoredDuplicateGroup is a duplicate group of a stored run
type StoredDuplicateGroup struct {
	Reason   models.DuplicateReason `json:"reason"`
	Vendor   models.Vendor          `json:"vendor"`
	Key      string                 `json:"key"`
	Files    []string               `json:"files"`
	KeptFile string                 `json:"kept_file,omitempty"`
}

// RunRepository handles run database operations
type RunRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *database.DB, logger *zap.Logger) *RunRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunRepository{
		db:     db,
		logger: logger,
	}
}

// Save stores a run with its invoices, line items, failures and duplicate groups in one transaction
func (r *RunRepository) Save(ctx context.Context, run Run) error {
	if run.Result == nil || run.Result.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	res := run.Result
	stats := res.Statistics()
	dropped := dedup.DroppedIndices(run.Resolutions)

	err := r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		var finished sql.NullTime
		if !res.FinishedAt.IsZero() {
			finished = sql.NullTime{Time: res.FinishedAt, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO runs (
				id, started_at, finished_at, cancelled, source_dir, output_dir,
				total, succeeded, failed, excluded, average_confidence, total_value
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			res.RunID, res.StartedAt, finished, res.Cancelled, run.SourceDir, run.OutputDir,
			stats.Total, stats.Succeeded, stats.Failed, stats.Excluded, stats.AverageConfidence,
			stats.TotalValue.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		for i, rec := range run.Records {
			if err := insertInvoice(ctx, tx, res.RunID, rec, dropped[i]); err != nil {
				return err
			}
		}

		for _, f := range res.Failures {
			if err := insertFailure(ctx, tx, res.RunID, f, false); err != nil {
				return err
			}
		}
		for _, f := range res.Excluded {
			if err := insertFailure(ctx, tx, res.RunID, f, true); err != nil {
				return err
			}
		}

		kept := make(map[int]string)
		for _, resolution := range run.Resolutions {
			if resolution.Kept >= 0 && resolution.Kept < len(run.Records) {
				kept[resolution.Group.MinIndex()] = run.Records[resolution.Kept].SourceFile
			}
		}
		for _, g := range run.Groups {
			files := make([]string, 0, len(g.Indices))
			for _, i := range g.Indices {
				if i >= 0 && i < len(run.Records) {
					files = append(files, run.Records[i].SourceFile)
				}
			}
			filesJSON, err := json.Marshal(files)
			if err != nil {
				return fmt.Errorf("failed to marshal duplicate files: %w", err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO duplicate_groups (run_id, reason, vendor, group_key, files, kept_file)
				VALUES (?, ?, ?, ?, ?, ?)
			`, res.RunID, string(g.Reason), g.Vendor.String(), g.Key, string(filesJSON), kept[g.MinIndex()])
			if err != nil {
				return fmt.Errorf("failed to insert duplicate group: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to save run", zap.String("run_id", res.RunID), zap.Error(err))
		return err
	}

	r.logger.Info("Run saved",
		zap.String("run_id", res.RunID),
		zap.Int("invoices", len(run.Records)),
		zap.Int("failures", len(res.Failures)+len(res.Excluded)),
		zap.Int("duplicate_groups", len(run.Groups)))
	return nil
}

func insertInvoice(ctx context.Context, tx *sql.Tx, runID string, rec *models.Record, duplicate bool) error {
	errorsJSON, err := json.Marshal(rec.ExtractionErrors)
	if err != nil {
		return fmt.Errorf("failed to marshal extraction errors: %w", err)
	}

	var date sql.NullString
	if key := rec.DateKey(); key != "" {
		date = sql.NullString{String: key, Valid: true}
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO invoices (
			run_id, vendor, invoice_number, normalized_number, invoice_date, po_number,
			subtotal, sales_tax, total, source_file, source_path, confidence,
			vendor_confidence, extraction_method, extraction_errors, is_duplicate
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID, rec.Vendor.String(), rec.InvoiceNumber, models.NormalizeInvoiceNumber(rec.InvoiceNumber),
		date, rec.PONumber, rec.Subtotal, rec.SalesTax, rec.Total, rec.SourceFile, rec.SourcePath,
		rec.Confidence, rec.VendorConfidence, rec.ExtractionMethod, string(errorsJSON), duplicate,
	)
	if err != nil {
		return fmt.Errorf("failed to insert invoice %s: %w", rec.SourceFile, err)
	}

	invoiceID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	for n, item := range rec.LineItems {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO line_items (
				invoice_id, line_number, quantity, item_code, description, price_each, amount
			) VALUES (?, ?, ?, ?, ?, ?, ?)
		`, invoiceID, n+1, item.Quantity.String(), item.ItemCode, item.Description, item.PriceEach, item.Amount.String())
		if err != nil {
			return fmt.Errorf("failed to insert line item %d of %s: %w", n+1, rec.SourceFile, err)
		}
	}
	return nil
}

func insertFailure(ctx context.Context, tx *sql.Tx, runID string, f models.Failure, excluded bool) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO failures (run_id, filename, path, status, reason, excluded)
		VALUES (?, ?, ?, ?, ?, ?)
	`, runID, f.Filename, f.Path, string(f.Status), f.Reason, excluded)
	if err != nil {
		return fmt.Errorf("failed to insert failure %s: %w", f.Filename, err)
	}
	return nil
}

const runColumns = `
	id, started_at, finished_at, cancelled, COALESCE(source_dir, ''), COALESCE(output_dir, ''),
	total, succeeded, failed, excluded, average_confidence, total_value, created_at
`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*RunSummary, error) {
	var run RunSummary
	var finished sql.NullTime
	err := s.Scan(
		&run.ID,
		&run.StartedAt,
		&finished,
		&run.Cancelled,
		&run.SourceDir,
		&run.OutputDir,
		&run.Total,
		&run.Succeeded,
		&run.Failed,
		&run.Excluded,
		&run.AverageConfidence,
		&run.TotalValue,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	return &run, nil
}

// List returns runs newest first
func (r *RunRepository) List(ctx context.Context, limit, offset int) ([]*RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		r.logger.Error("Failed to list runs", zap.Error(err))
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*RunSummary{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Get returns one run, or ErrNotFound
func (r *RunRepository) Get(ctx context.Context, id string) (*RunSummary, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get run", zap.String("run_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// Failures returns the failed and excluded files of a run ordered by path
func (r *RunRepository) Failures(ctx context.Context, runID string) ([]StoredFailure, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT filename, COALESCE(path, ''), status, COALESCE(reason, ''), excluded
		FROM failures
		WHERE run_id = ?
		ORDER BY excluded, path, filename
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get failures: %w", err)
	}
	defer rows.Close()

	out := []StoredFailure{}
	for rows.Next() {
		var f StoredFailure
		var status string
		if err := rows.Scan(&f.Filename, &f.Path, &status, &f.Reason, &f.Excluded); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		f.Status = models.ProcessingStatus(status)
		out = append(out, f)
	}
	return out, rows.Err()
}

// Duplicates returns the duplicate groups of a run in detection order
func (r *RunRepository) Duplicates(ctx context.Context, runID string) ([]StoredDuplicateGroup, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT reason, vendor, group_key, files, COALESCE(kept_file, '')
		FROM duplicate_groups
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get duplicate groups: %w", err)
	}
	defer rows.Close()

	out := []StoredDuplicateGroup{}
	for rows.Next() {
		var g StoredDuplicateGroup
		var reason, vendor, files string
		if err := rows.Scan(&reason, &vendor, &g.Key, &files, &g.KeptFile); err != nil {
			return nil, fmt.Errorf("failed to scan duplicate group: %w", err)
		}
		g.Reason = models.DuplicateReason(reason)
		g.Vendor = models.Vendor(vendor)
		if err := json.Unmarshal([]byte(files), &g.Files); err != nil {
			return nil, fmt.Errorf("failed to parse duplicate files: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
