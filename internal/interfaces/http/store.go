package http

import (
	"context"

	"github.com/level10nurd/documentExtraction/internal/repository"
)

// ReportStore reads persisted runs
type ReportStore interface {
	ListRuns(ctx context.Context, limit, offset int) ([]*repository.RunSummary, error)
	GetRun(ctx context.Context, id string) (*repository.RunSummary, error)
	ListInvoices(ctx context.Context, runID string) ([]*repository.StoredInvoice, error)
	ListFailures(ctx context.Context, runID string) ([]repository.StoredFailure, error)
	ListDuplicates(ctx context.Context, runID string) ([]repository.StoredDuplicateGroup, error)
}

// RepositoryStore serves reports from the SQLite repositories
type RepositoryStore struct {
	runs     *repository.RunRepository
	invoices *repository.InvoiceRepository
}

// NewRepositoryStore creates a ReportStore over the repositories
func NewRepositoryStore(runs *repository.RunRepository, invoices *repository.InvoiceRepository) *RepositoryStore {
	return &RepositoryStore{runs: runs, invoices: invoices}
}

func (s *RepositoryStore) ListRuns(ctx context.Context, limit, offset int) ([]*repository.RunSummary, error) {
	return s.runs.List(ctx, limit, offset)
}

func (s *RepositoryStore) GetRun(ctx context.Context, id string) (*repository.RunSummary, error) {
	return s.runs.Get(ctx, id)
}

func (s *RepositoryStore) ListInvoices(ctx context.Context, runID string) ([]*repository.StoredInvoice, error) {
	return s.invoices.ListByRun(ctx, runID)
}

func (s *RepositoryStore) ListFailures(ctx context.Context, runID string) ([]repository.StoredFailure, error) {
	return s.runs.Failures(ctx, runID)
}

func (s *RepositoryStore) ListDuplicates(ctx context.Context, runID string) ([]repository.StoredDuplicateGroup, error) {
	return s.runs.Duplicates(ctx, runID)
}
