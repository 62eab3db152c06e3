package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// Workbook sheet names
const (
	SheetInvoices   = "Invoices"
	SheetLineItems  = "LineItems"
	SheetFailures   = "Failures"
	SheetDuplicates = "Duplicates"
)

var duplicateHeaders = []string{"reason", "vendor", "key", "files", "kept"}

// WriteWorkbook writes the invoices, line items, failures and duplicate groups as one workbook.
// Amounts are stored as numbers so they sum in a spreadsheet.
func (e *Exporter) WriteWorkbook(w io.Writer, ds *Dataset) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetInvoices); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{SheetLineItems, SheetFailures, SheetDuplicates} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	rows := ds.Rows(e.cfg.IncludeDuplicates)
	if err := e.fillInvoices(f, rows); err != nil {
		return fmt.Errorf("failed to fill invoices: %w", err)
	}
	if err := fillLineItems(f, rows); err != nil {
		return fmt.Errorf("failed to fill line items: %w", err)
	}
	if err := fillFailures(f, ds); err != nil {
		return fmt.Errorf("failed to fill failures: %w", err)
	}
	if err := fillDuplicates(f, ds); err != nil {
		return fmt.Errorf("failed to fill duplicates: %w", err)
	}

	if err := styleHeaders(f); err != nil {
		return err
	}
	f.SetActiveSheet(0)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (e *Exporter) fillInvoices(f *excelize.File, rows []Row) error {
	if err := setRow(f, SheetInvoices, 1, toCells(invoiceHeaders)); err != nil {
		return err
	}
	for i, row := range rows {
		r := row.Record
		cells := []interface{}{
			row.ID,
			r.Vendor.String(),
			e.date(r.InvoiceDate),
			r.InvoiceNumber,
			r.PONumber,
			number(r.Subtotal.Valid, r.Subtotal.Decimal.InexactFloat64()),
			number(r.SalesTax.Valid, r.SalesTax.Decimal.InexactFloat64()),
			number(r.Total.Valid, r.Total.Decimal.InexactFloat64()),
			r.SourceFile,
			r.Confidence,
			joinList(r.ExtractionErrors),
			joinList(row.DuplicateFiles),
		}
		if err := setRow(f, SheetInvoices, i+2, cells); err != nil {
			return err
		}
	}
	return f.SetColWidth(SheetInvoices, "B", "B", 30)
}

func fillLineItems(f *excelize.File, rows []Row) error {
	if err := setRow(f, SheetLineItems, 1, toCells(lineItemHeaders)); err != nil {
		return err
	}
	line := 2
	for _, row := range rows {
		for n, item := range row.Record.LineItems {
			cells := []interface{}{
				row.ID,
				n + 1,
				item.Quantity.InexactFloat64(),
				item.ItemCode,
				item.Description,
				number(item.PriceEach.Valid, item.PriceEach.Decimal.InexactFloat64()),
				item.Amount.InexactFloat64(),
			}
			if err := setRow(f, SheetLineItems, line, cells); err != nil {
				return err
			}
			line++
		}
	}
	return f.SetColWidth(SheetLineItems, "E", "E", 50)
}

func fillFailures(f *excelize.File, ds *Dataset) error {
	if err := setRow(f, SheetFailures, 1, toCells(failureHeaders)); err != nil {
		return err
	}
	for i, fail := range failuresAndExcluded(ds.Result) {
		cells := []interface{}{fail.Filename, fail.Path, string(fail.Status), fail.Reason}
		if err := setRow(f, SheetFailures, i+2, cells); err != nil {
			return err
		}
	}
	return nil
}

func fillDuplicates(f *excelize.File, ds *Dataset) error {
	if err := setRow(f, SheetDuplicates, 1, toCells(duplicateHeaders)); err != nil {
		return err
	}
	kept := make(map[int]string)
	for _, res := range ds.Resolutions {
		if res.Kept >= 0 && res.Kept < len(ds.Records) {
			kept[res.Group.MinIndex()] = ds.Records[res.Kept].SourceFile
		}
	}
	for i, g := range ds.Groups {
		cells := []interface{}{
			string(g.Reason),
			g.Vendor.String(),
			g.Key,
			joinList(ds.GroupFiles(g)),
			kept[g.MinIndex()],
		}
		if err := setRow(f, SheetDuplicates, i+2, cells); err != nil {
			return err
		}
	}
	return nil
}

func styleHeaders(f *excelize.File) error {
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	for _, sheet := range []string{SheetInvoices, SheetLineItems, SheetFailures, SheetDuplicates} {
		if err := f.SetRowStyle(sheet, 1, 1, style); err != nil {
			return fmt.Errorf("failed to style %s header: %w", sheet, err)
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to set %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toCells(headers []string) []interface{} {
	out := make([]interface{}, len(headers))
	for i, h := range headers {
		out[i] = h
	}
	return out
}

// number leaves the cell empty for an absent amount
func number(valid bool, v float64) interface{} {
	if !valid {
		return nil
	}
	return v
}
