package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/level10nurd/documentExtraction/internal/dedup"
	"github.com/level10nurd/documentExtraction/internal/models"
	"github.com/level10nurd/documentExtraction/migrations"
	"github.com/level10nurd/documentExtraction/pkg/database"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "invoices.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.NewMigrator(db, zap.NewNop()).Run(context.Background(), migrations.FS))
	return db
}

func newRecord(file, number, total string) *models.Record {
	r := models.NewRecord(models.VendorOmico, file)
	r.SourcePath = "/bills/" + file
	r.InvoiceNumber = number
	r.InvoiceDate = models.Date(2025, time.March, 7)
	r.Total = models.MustAmount(total)
	r.Confidence = 0.9
	r.VendorConfidence = 1.0
	return r
}

func newRun(id string, started time.Time, records ...*models.Record) Run {
	result := &models.BatchResult{
		RunID:      id,
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
		Successes:  records,
		Failures: []models.Failure{
			{Filename: "bad.pdf", Path: "/bills/bad.pdf", Status: models.StatusFailedConversion, Reason: "broken"},
		},
		Excluded: []models.Failure{
			{Filename: "scan.pdf", Path: "/bills/scan.pdf", Status: models.StatusSkipped, Reason: "image only"},
		},
	}
	sorted := result.SuccessfulRecords()
	groups := dedup.FindDuplicates(sorted)
	res, _ := dedup.Resolve(sorted, groups, dedup.KeepFirst)
	return Run{Result: result, Records: sorted, Groups: groups, Resolutions: res, SourceDir: "/bills", OutputDir: "/out/" + id}
}

func TestRunRepository_SaveAndQuery(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	runs := NewRunRepository(db, zap.NewNop())
	invoices := NewInvoiceRepository(db, zap.NewNop())

	a := newRecord("a.pdf", "1001", "1250.50")
	a.PONumber = "PO-7"
	a.SalesTax = models.MustAmount("0")
	a.AddError("Could not extract line items")
	a.LineItems = []models.LineItem{
		{Quantity: decimal.NewFromInt(2), ItemCode: "W-1", Description: "Widget", PriceEach: models.MustAmount("625.25"), Amount: decimal.RequireFromString("1250.50")},
		{Quantity: decimal.NewFromInt(1), Description: "Freight", Amount: decimal.Zero},
	}
	b := newRecord("b.pdf", "1001", "1250.50")
	b.InvoiceDate = nil

	started := time.Date(2025, 3, 8, 10, 0, 0, 0, time.UTC)
	require.NoError(t, runs.Save(ctx, newRun("run-1", started, b, a)))

	summary, err := runs.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Excluded)
	assert.Equal(t, "2501", summary.TotalValue.String())
	assert.True(t, summary.StartedAt.Equal(started))
	require.NotNil(t, summary.FinishedAt)
	assert.Equal(t, "/out/run-1", summary.OutputDir)

	stored, err := invoices.ListByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, stored, 2)

	first := stored[0]
	assert.Equal(t, "a.pdf", first.SourceFile)
	assert.False(t, first.IsDuplicate)
	assert.Equal(t, "2025-03-07", first.DateKey())
	assert.Equal(t, "PO-7", first.PONumber)
	assert.False(t, first.Subtotal.Valid)
	assert.True(t, first.SalesTax.Valid)
	assert.Equal(t, "1250.5", first.Total.Decimal.String())
	assert.Equal(t, []string{"Could not extract line items"}, first.ExtractionErrors)
	require.Len(t, first.LineItems, 2)
	assert.Equal(t, "W-1", first.LineItems[0].ItemCode)
	assert.Equal(t, "625.25", first.LineItems[0].PriceEach.Decimal.String())
	assert.False(t, first.LineItems[1].PriceEach.Valid)

	second := stored[1]
	assert.True(t, second.IsDuplicate)
	assert.Nil(t, second.InvoiceDate)
	assert.Empty(t, second.LineItems)

	failures, err := runs.Failures(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, failures, 2)
	assert.Equal(t, "bad.pdf", failures[0].Filename)
	assert.False(t, failures[0].Excluded)
	assert.Equal(t, models.StatusSkipped, failures[1].Status)
	assert.True(t, failures[1].Excluded)

	groups, err := runs.Duplicates(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, models.DuplicateExact, groups[0].Reason)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, groups[0].Files)
	assert.Equal(t, "a.pdf", groups[0].KeptFile)
}

func TestRunRepository_SaveIsAtomic(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	runs := NewRunRepository(db, nil)

	require.NoError(t, runs.Save(ctx, newRun("run-1", time.Now(), newRecord("a.pdf", "1", "10"))))
	// same id violates the primary key after nothing else was written
	err := runs.Save(ctx, newRun("run-1", time.Now(), newRecord("c.pdf", "2", "20")))
	require.Error(t, err)

	stored, err := NewInvoiceRepository(db, nil).ListByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "a.pdf", stored[0].SourceFile)

	assert.Error(t, runs.Save(ctx, Run{}))
}

func TestRunRepository_ListAndGetMissing(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	runs := NewRunRepository(db, nil)

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		require.NoError(t, runs.Save(ctx, newRun(id, base.Add(time.Duration(i)*time.Hour))))
	}

	list, err := runs.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "run-c", list[0].ID)
	assert.Equal(t, "run-b", list[1].ID)

	list, err = runs.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "run-a", list[0].ID)

	_, err = runs.Get(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestInvoiceRepository_CheckSeen(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	runs := NewRunRepository(db, nil)
	invoices := NewInvoiceRepository(db, nil)

	jan := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, runs.Save(ctx, newRun("run-feb", feb, newRecord("feb.pdf", "inv-9", "10"))))
	require.NoError(t, runs.Save(ctx, newRun("run-jan", jan, newRecord("jan.pdf", "INV-9", "10"))))

	tests := []struct {
		name      string
		vendor    models.Vendor
		number    string
		exclude   string
		unique    bool
		firstRun  string
		firstFile string
	}{
		{"earliest other run wins", models.VendorOmico, " inv-9 ", "run-new", false, "run-jan", "jan.pdf"},
		{"own run is excluded", models.VendorOmico, "INV-9", "run-jan", false, "run-feb", "feb.pdf"},
		{"other vendor", models.VendorDimax, "INV-9", "run-new", true, "", ""},
		{"new number", models.VendorOmico, "INV-10", "run-new", true, "", ""},
		{"blank number", models.VendorOmico, "  ", "run-new", true, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := invoices.CheckSeen(ctx, tt.vendor, tt.number, tt.exclude)
			require.NoError(t, err)
			assert.Equal(t, tt.unique, got.IsUnique)
			assert.Equal(t, tt.firstRun, got.FirstRunID)
			assert.Equal(t, tt.firstFile, got.FirstSourceFile)
		})
	}
}
