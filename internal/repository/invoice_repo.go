package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/level10nurd/documentExtraction/internal/models"
	"github.com/level10nurd/documentExtraction/pkg/database"
	"go.uber.org/zap"
)

// StoredInvoice is a persisted record
type StoredInvoice struct {
	ID          int64  `json:"id"`
	RunID       string `json:"run_id"`
	IsDuplicate bool   `json:"is_duplicate"`
	models.Record
}

// InvoiceRepository handles invoice database operations
type InvoiceRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *database.DB, logger *zap.Logger) *InvoiceRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

// CheckSeen reports whether an invoice with the same vendor and invoice number
// was stored by a run other than excludeRun. The earliest such run is reported.
func (r *InvoiceRepository) CheckSeen(ctx context.Context, vendor models.Vendor, invoiceNumber, excludeRun string) (*models.UniquenessCheckResult, error) {
	normalized := models.NormalizeInvoiceNumber(invoiceNumber)
	if normalized == "" {
		return &models.UniquenessCheckResult{
			IsUnique: true,
			Message:  "Invoice has no number",
		}, nil
	}

	query := `
		SELECT i.run_id, i.source_file, r.started_at
		FROM invoices i
		JOIN runs r ON r.id = i.run_id
		WHERE i.vendor = ? AND i.normalized_number = ? AND i.run_id <> ?
		ORDER BY r.started_at, i.id
		LIMIT 1
	`

	var runID, sourceFile string
	var startedAt time.Time
	err := r.db.QueryRowContext(ctx, query, vendor.String(), normalized, excludeRun).Scan(&runID, &sourceFile, &startedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return &models.UniquenessCheckResult{
			IsUnique: true,
			Message:  "Invoice is unique",
		}, nil
	}
	if err != nil {
		r.logger.Error("Failed to check invoice uniqueness", zap.Error(err))
		return nil, fmt.Errorf("failed to check uniqueness: %w", err)
	}

	return &models.UniquenessCheckResult{
		IsUnique:        false,
		FirstRunID:      runID,
		FirstSourceFile: sourceFile,
		Message:         fmt.Sprintf("Duplicate invoice found (first seen: %s)", startedAt.Format("2006-01-02")),
	}, nil
}

// ListByRun returns a run's invoices with their line items, ordered by source path
func (r *InvoiceRepository) ListByRun(ctx context.Context, runID string) ([]*StoredInvoice, error) {
	query := `
		SELECT id, run_id, vendor, COALESCE(invoice_number, ''), invoice_date, COALESCE(po_number, ''),
			subtotal, sales_tax, total, source_file, COALESCE(source_path, ''), confidence,
			vendor_confidence, COALESCE(extraction_method, ''), extraction_errors, is_duplicate
		FROM invoices
		WHERE run_id = ?
		ORDER BY source_path, source_file, id
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		r.logger.Error("Failed to get invoices by run", zap.String("run_id", runID), zap.Error(err))
		return nil, fmt.Errorf("failed to get invoices: %w", err)
	}
	defer rows.Close()

	invoices := []*StoredInvoice{}
	byID := make(map[int64]*StoredInvoice)
	for rows.Next() {
		var inv StoredInvoice
		var vendor, errorsJSON string
		var date sql.NullString

		err := rows.Scan(
			&inv.ID,
			&inv.RunID,
			&vendor,
			&inv.InvoiceNumber,
			&date,
			&inv.PONumber,
			&inv.Subtotal,
			&inv.SalesTax,
			&inv.Total,
			&inv.SourceFile,
			&inv.SourcePath,
			&inv.Confidence,
			&inv.VendorConfidence,
			&inv.ExtractionMethod,
			&errorsJSON,
			&inv.IsDuplicate,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}

		inv.Vendor = models.Vendor(vendor)
		if date.Valid {
			if d, err := time.Parse("2006-01-02", date.String); err == nil {
				inv.InvoiceDate = &d
			}
		}
		if err := json.Unmarshal([]byte(errorsJSON), &inv.ExtractionErrors); err != nil {
			return nil, fmt.Errorf("failed to parse extraction errors: %w", err)
		}
		inv.LineItems = []models.LineItem{}

		invoices = append(invoices, &inv)
		byID[inv.ID] = &inv
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if err := r.attachLineItems(ctx, runID, byID); err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *InvoiceRepository) attachLineItems(ctx context.Context, runID string, byID map[int64]*StoredInvoice) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT li.invoice_id, li.quantity, COALESCE(li.item_code, ''), COALESCE(li.description, ''),
			li.price_each, li.amount
		FROM line_items li
		JOIN invoices i ON i.id = li.invoice_id
		WHERE i.run_id = ?
		ORDER BY li.invoice_id, li.line_number
	`, runID)
	if err != nil {
		return fmt.Errorf("failed to get line items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var invoiceID int64
		var item models.LineItem
		if err := rows.Scan(&invoiceID, &item.Quantity, &item.ItemCode, &item.Description, &item.PriceEach, &item.Amount); err != nil {
			return fmt.Errorf("failed to scan line item: %w", err)
		}
		if inv, ok := byID[invoiceID]; ok {
			inv.LineItems = append(inv.LineItems, item)
		}
	}
	return rows.Err()
}
