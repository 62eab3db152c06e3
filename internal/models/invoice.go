package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Extraction methods
const (
	ExtractionMethodRules = "rules"
	ExtractionMethodLLM   = "llm"
)

// LineItem is a single row of an invoice body
type LineItem struct {
	Quantity    decimal.Decimal     `json:"quantity"`
	ItemCode    string              `json:"item_code,omitempty"`
	Description string              `json:"description,omitempty"`
	PriceEach   decimal.NullDecimal `json:"price_each"`
	Amount      decimal.Decimal     `json:"amount"` // Extended line amount
}

// Record is one extracted invoice.
// Confidence is derived from which optional fields are populated and is
// recomputed by the confidence scorer, never set by extractors.
type Record struct {
	Vendor        Vendor     `json:"vendor"`
	SourceFile    string     `json:"source_file"`
	SourcePath    string     `json:"source_path,omitempty"`
	SourceModTime time.Time  `json:"source_mod_time,omitempty"`
	InvoiceNumber string     `json:"invoice_number,omitempty"`
	InvoiceDate   *time.Time `json:"invoice_date,omitempty"`
	PONumber      string     `json:"po_number,omitempty"`
	LineItems     []LineItem `json:"line_items"`

	Subtotal decimal.NullDecimal `json:"subtotal"`
	SalesTax decimal.NullDecimal `json:"sales_tax"`
	Total    decimal.NullDecimal `json:"total"`

	ExtractionErrors []string `json:"extraction_errors"`
	Confidence       float64  `json:"extraction_confidence"`
	VendorConfidence float64  `json:"vendor_confidence"`
	ExtractionMethod string   `json:"extraction_method,omitempty"`
}

// NewRecord creates an empty record for a vendor and source file
func NewRecord(vendor Vendor, sourceFile string) *Record {
	return &Record{
		Vendor:           vendor,
		SourceFile:       sourceFile,
		LineItems:        []LineItem{},
		ExtractionErrors: []string{},
		ExtractionMethod: ExtractionMethodRules,
	}
}

// AddError appends an extraction error message
func (r *Record) AddError(msg string) {
	r.ExtractionErrors = append(r.ExtractionErrors, msg)
}

// HasError reports whether msg was already recorded
func (r *Record) HasError(msg string) bool {
	for _, e := range r.ExtractionErrors {
		if e == msg {
			return true
		}
	}
	return false
}

// HasInvoiceNumber reports whether a non-blank invoice number is present
func (r *Record) HasInvoiceNumber() bool {
	return strings.TrimSpace(r.InvoiceNumber) != ""
}

// HasPONumber reports whether a non-blank PO number is present
func (r *Record) HasPONumber() bool {
	return strings.TrimSpace(r.PONumber) != ""
}

// DateKey returns the invoice date as YYYY-MM-DD, or "" when absent
func (r *Record) DateKey() string {
	if r.InvoiceDate == nil {
		return ""
	}
	return r.InvoiceDate.Format("2006-01-02")
}

// Key returns the value used to order records deterministically
func (r *Record) Key() string {
	if r.SourcePath != "" {
		return r.SourcePath
	}
	return r.SourceFile
}

// NormalizeInvoiceNumber trims and upper-cases an invoice number for comparison
func NormalizeInvoiceNumber(number string) string {
	return strings.ToUpper(strings.TrimSpace(number))
}

// Date truncates t to a UTC calendar date
func Date(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}

// NewAmount wraps a decimal as a present optional amount
func NewAmount(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NewNullDecimal(d)
}

// MustAmount parses a literal amount, panicking on malformed input.
// Intended for fixtures and tests.
func MustAmount(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}
