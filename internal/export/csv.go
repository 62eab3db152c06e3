package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/level10nurd/documentExtraction/internal/confidence"
	"github.com/level10nurd/documentExtraction/internal/models"
)

var invoiceHeaders = []string{
	"invoice_id",
	"vendor",
	"invoice_date",
	"invoice_number",
	"po_number",
	"subtotal",
	"sales_tax",
	"total",
	"source_file",
	"extraction_confidence",
	"extraction_errors",
	"duplicate_files",
}

var lineItemHeaders = []string{
	"invoice_id",
	"line_number",
	"quantity",
	"item_code",
	"description",
	"price_each",
	"amount",
}

var denormalizedHeaders = []string{
	"vendor",
	"invoice_date",
	"invoice_number",
	"po_number",
	"line_number",
	"quantity",
	"item_code",
	"description",
	"price_each",
	"amount",
	"subtotal",
	"sales_tax",
	"total",
	"source_file",
	"extraction_confidence",
	"extraction_errors",
	"duplicate_files",
}

var failureHeaders = []string{"filename", "path", "status", "reason"}

// WriteInvoices writes one row per invoice
func (e *Exporter) WriteInvoices(w io.Writer, ds *Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(invoiceHeaders); err != nil {
		return err
	}
	for _, row := range ds.Rows(e.cfg.IncludeDuplicates) {
		r := row.Record
		rec := []string{
			row.ID,
			r.Vendor.String(),
			e.date(r.InvoiceDate),
			r.InvoiceNumber,
			r.PONumber,
			money(r.Subtotal),
			money(r.SalesTax),
			money(r.Total),
			r.SourceFile,
			formatConfidence(r.Confidence),
			joinList(r.ExtractionErrors),
			joinList(row.DuplicateFiles),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteLineItems writes one row per line item, keyed by the invoice_id of WriteInvoices
func (e *Exporter) WriteLineItems(w io.Writer, ds *Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(lineItemHeaders); err != nil {
		return err
	}
	for _, row := range ds.Rows(e.cfg.IncludeDuplicates) {
		for n, item := range row.Record.LineItems {
			rec := append([]string{row.ID, strconv.Itoa(n + 1)}, itemColumns(item)...)
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDenormalized writes one row per line item with the invoice fields repeated.
// Invoices without items get a single row with empty item columns.
func (e *Exporter) WriteDenormalized(w io.Writer, ds *Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(denormalizedHeaders); err != nil {
		return err
	}
	for _, row := range ds.Rows(e.cfg.IncludeDuplicates) {
		r := row.Record
		head := []string{e.date(r.InvoiceDate), r.InvoiceNumber, r.PONumber}
		tail := []string{
			money(r.Subtotal),
			money(r.SalesTax),
			money(r.Total),
			r.SourceFile,
			formatConfidence(r.Confidence),
			joinList(r.ExtractionErrors),
			joinList(row.DuplicateFiles),
		}

		write := func(item []string) error {
			rec := make([]string, 0, len(denormalizedHeaders))
			rec = append(rec, r.Vendor.String())
			rec = append(rec, head...)
			rec = append(rec, item...)
			rec = append(rec, tail...)
			return cw.Write(rec)
		}

		if len(r.LineItems) == 0 {
			if err := write([]string{"", "", "", "", "", ""}); err != nil {
				return err
			}
			continue
		}
		for n, item := range r.LineItems {
			if err := write(append([]string{strconv.Itoa(n + 1)}, itemColumns(item)...)); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func itemColumns(item models.LineItem) []string {
	return []string{
		item.Quantity.StringFixed(2),
		item.ItemCode,
		item.Description,
		money(item.PriceEach),
		item.Amount.StringFixed(2),
	}
}

// WriteSummaryCSV writes run counts, the review confidence bands and a per-vendor table.
// It covers every success, duplicates included.
func (e *Exporter) WriteSummaryCSV(w io.Writer, ds *Dataset) error {
	stats := ds.Result.Statistics()
	bands := confidence.ReviewThresholds()

	scores := make([]float64, len(ds.Records))
	for i, r := range ds.Records {
		scores[i] = r.Confidence
	}
	counts := bands.BandCounts(scores)

	total := len(ds.Records)
	dupes := ds.DroppedCount()

	rows := [][]string{
		{"Invoice Processing Summary"},
		{},
		{"Total Invoices", strconv.Itoa(total)},
		{"Unique Invoices", strconv.Itoa(total - dupes)},
		{"Duplicate Invoices", strconv.Itoa(dupes)},
		{"Failed Files", strconv.Itoa(stats.Failed)},
		{"Excluded Files", strconv.Itoa(stats.Excluded)},
		{},
		{"Confidence Distribution"},
		{fmt.Sprintf("High (≥%.1f)", bands.High), strconv.Itoa(counts[confidence.BandHigh])},
		{fmt.Sprintf("Medium (%.1f-%.1f)", bands.Low, bands.High), strconv.Itoa(counts[confidence.BandMedium])},
		{fmt.Sprintf("Low (<%.1f)", bands.Low), strconv.Itoa(counts[confidence.BandLow])},
		{},
		{"Vendor", "Count", "Total Amount", "Average Confidence"},
	}
	for _, v := range sortedVendors(stats.ByVendor) {
		vs := stats.ByVendor[v]
		rows = append(rows, []string{
			v.String(),
			strconv.Itoa(vs.Count),
			"$" + vs.TotalValue.StringFixed(2),
			fmt.Sprintf("%.4f", vs.AverageConfidence),
		})
	}

	cw := csv.NewWriter(w)
	// Blank rows are written as a single empty field
	for _, row := range rows {
		if len(row) == 0 {
			row = []string{""}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFailures lists failed files followed by excluded ones
func (e *Exporter) WriteFailures(w io.Writer, ds *Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(failureHeaders); err != nil {
		return err
	}
	for _, f := range failuresAndExcluded(ds.Result) {
		if err := cw.Write([]string{f.Filename, f.Path, string(f.Status), f.Reason}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func sortedVendors(m map[models.Vendor]models.VendorStats) []models.Vendor {
	out := make([]models.Vendor, 0, len(m))
	for v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
