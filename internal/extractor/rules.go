package extractor

import (
	"regexp"
	"strings"

	"github.com/level10nurd/documentExtraction/internal/models"
	"github.com/shopspring/decimal"
)

// Messages recorded on a record when a field cannot be found
const (
	MsgNoInvoiceNumber = "Could not extract invoice number"
	MsgNoInvoiceDate   = "Could not extract invoice date"
	MsgNoTotal         = "Could not extract total amount"
	MsgNoLineItems     = "Could not extract line items"
)

// Columns lists the header aliases of each line item field
type Columns struct {
	Quantity      []string
	ItemCode      []string
	Description   []string
	PriceEach     []string
	Amount        []string
	UnitOfMeasure []string
	PONumber      []string
}

// DefaultColumns covers the header spellings most vendors use
var DefaultColumns = Columns{
	Quantity:    []string{"Qty", "Quantity", "QTY", "Count"},
	ItemCode:    []string{"Item Code", "Item #", "SKU", "Part #", "Part Number", "Code", "Item", "Product"},
	Description: []string{"Description", "Item", "Product", "DESC", "Name"},
	PriceEach:   []string{"Price", "Unit Price", "Price Each", "Rate", "Unit Price USD"},
	Amount:      []string{"Amount", "Total", "Line Total", "Extended", "Amount USD"},
}

// FlatItem turns one amount into a single synthetic line item
type FlatItem struct {
	Pattern     *regexp.Regexp
	ItemCode    string
	Description string
}

// RuleSet describes how to read one vendor's invoices.
// Pattern lists are tried in order and the first capture group of the first match wins.
type RuleSet struct {
	Vendor models.Vendor

	// Header captures the named groups "number" and "date" in one match
	Header *regexp.Regexp

	InvoiceNumber []*regexp.Regexp
	InvoiceDate   []*regexp.Regexp
	PONumber      []*regexp.Regexp
	Subtotal      []*regexp.Regexp
	SalesTax      []*regexp.Regexp
	Total         []*regexp.Regexp

	// Table reads line items from the first markdown table that has
	// an amount column and a description or item code column
	Table *Columns
	// ItemPattern reads line items from free text with the named groups
	// qty, code, desc, price and amount. Used when the table yields nothing.
	ItemPattern *regexp.Regexp
	// CodeInDescription moves an item code out of the description cell
	CodeInDescription *regexp.Regexp
	Flat              *FlatItem
	// NoLineItems marks vendors whose invoices carry no item rows
	NoLineItems bool

	// SkipWords drop table rows whose description or code contains them
	SkipWords []string

	SubtotalFromTotal bool
	TaxDefaultsToZero bool
}

var defaultSkipWords = []string{"subtotal", "sub-total", "total", "tax", "balance", "payment", "credit", "thank you"}

// re compiles a case-insensitive multi-line pattern
func re(pattern string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)` + pattern)
}

func res(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = re(p)
	}
	return out
}

// firstMatch returns the trimmed first group of the first matching pattern
func firstMatch(patterns []*regexp.Regexp, text string) (string, bool) {
	for _, p := range patterns {
		m := p.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		if v := strings.TrimSpace(m[1]); v != "" {
			return v, true
		}
	}
	return "", false
}

func firstAmount(patterns []*regexp.Regexp, text string) decimal.NullDecimal {
	for _, p := range patterns {
		m := p.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		if d, ok := ParseAmount(m[1]); ok {
			return models.NewAmount(d)
		}
	}
	return decimal.NullDecimal{}
}

func group(p *regexp.Regexp, m []string, name string) string {
	i := p.SubexpIndex(name)
	if i < 0 || i >= len(m) {
		return ""
	}
	return strings.TrimSpace(m[i])
}

// RuleExtractor applies a RuleSet
type RuleExtractor struct {
	rules RuleSet
}

// NewRuleExtractor creates an extractor for a rule set
func NewRuleExtractor(rules RuleSet) *RuleExtractor {
	if rules.SkipWords == nil {
		rules.SkipWords = defaultSkipWords
	}
	return &RuleExtractor{rules: rules}
}

// Vendor returns the vendor this extractor reads
func (e *RuleExtractor) Vendor() models.Vendor {
	return e.rules.Vendor
}

// Extract reads a record from converted text. It never fails: fields it cannot
// find are left absent and noted on the record.
func (e *RuleExtractor) Extract(text, filename string) *models.Record {
	rs := e.rules
	r := models.NewRecord(rs.Vendor, filename)

	if rs.Header != nil {
		if m := rs.Header.FindStringSubmatch(text); m != nil {
			r.InvoiceNumber = CleanInvoiceNumber(group(rs.Header, m, "number"))
			if d, ok := ParseDate(group(rs.Header, m, "date")); ok {
				r.InvoiceDate = d
			}
		}
	}

	if !r.HasInvoiceNumber() {
		if v, ok := firstMatch(rs.InvoiceNumber, text); ok {
			r.InvoiceNumber = CleanInvoiceNumber(v)
		}
	}
	if !r.HasInvoiceNumber() {
		r.AddError(MsgNoInvoiceNumber)
	}

	if r.InvoiceDate == nil {
		for _, p := range rs.InvoiceDate {
			m := p.FindStringSubmatch(text)
			if len(m) < 2 {
				continue
			}
			if d, ok := ParseDate(m[1]); ok {
				r.InvoiceDate = d
				break
			}
		}
	}
	if r.InvoiceDate == nil {
		r.AddError(MsgNoInvoiceDate)
	}

	if v, ok := firstMatch(rs.PONumber, text); ok {
		r.PONumber = CleanPONumber(v)
	}

	r.Subtotal = firstAmount(rs.Subtotal, text)
	r.SalesTax = firstAmount(rs.SalesTax, text)
	r.Total = firstAmount(rs.Total, text)

	e.lineItems(text, r)

	if !r.Total.Valid {
		r.AddError(MsgNoTotal)
	}
	if rs.SubtotalFromTotal && !r.Subtotal.Valid && r.Total.Valid {
		r.Subtotal = r.Total
	}
	if rs.TaxDefaultsToZero && !r.SalesTax.Valid {
		r.SalesTax = models.NewAmount(decimal.Zero)
	}
	return r
}

func (e *RuleExtractor) lineItems(text string, r *models.Record) {
	rs := e.rules
	if rs.NoLineItems {
		return
	}

	var items []models.LineItem
	if rs.Table != nil {
		items = e.tableItems(text, r)
	}
	if len(items) == 0 && rs.ItemPattern != nil {
		items = e.patternItems(text)
	}
	r.LineItems = append(r.LineItems, items...)
	if rs.Flat != nil {
		if m := rs.Flat.Pattern.FindStringSubmatch(text); len(m) > 1 {
			if amount, ok := ParseAmount(m[1]); ok && amount.IsPositive() {
				r.LineItems = append(r.LineItems, models.LineItem{
					Quantity:    decimal.NewFromInt(1),
					ItemCode:    rs.Flat.ItemCode,
					Description: rs.Flat.Description,
					PriceEach:   models.NewAmount(amount),
					Amount:      amount,
				})
			}
		}
	}

	if len(r.LineItems) == 0 {
		r.AddError(MsgNoLineItems)
	}
}

func (e *RuleExtractor) tableItems(text string, r *models.Record) []models.LineItem {
	cols := e.rules.Table
	for _, t := range ParseTables(text) {
		amountCol := t.Column(cols.Amount...)
		descCol := t.Column(cols.Description...)
		codeCol := t.Column(cols.ItemCode...)
		if codeCol == descCol {
			codeCol = -1
		}
		if amountCol < 0 || (descCol < 0 && codeCol < 0) {
			continue
		}
		qtyCol := t.Column(cols.Quantity...)
		priceCol := t.Column(cols.PriceEach...)
		if priceCol == amountCol {
			priceCol = -1
		}
		uomCol := t.Column(cols.UnitOfMeasure...)
		poCol := t.Column(cols.PONumber...)

		var items []models.LineItem
		for _, row := range t.Rows {
			desc := Cell(row, descCol)
			code := Cell(row, codeCol)
			if desc == "" && code == "" {
				continue
			}
			if e.skip(desc) || e.skip(code) {
				continue
			}
			amount, ok := ParseAmount(Cell(row, amountCol))
			if !ok {
				continue
			}

			item := models.LineItem{
				Quantity:    decimal.NewFromInt(1),
				ItemCode:    code,
				Description: desc,
				Amount:      amount,
			}
			if qty, ok := ParseAmount(Cell(row, qtyCol)); ok {
				item.Quantity = qty
			}
			if price, ok := lastAmount(Cell(row, priceCol)); ok {
				if per, ok := ParseAmount(Cell(row, uomCol)); ok && per.GreaterThan(decimal.NewFromInt(1)) {
					price = price.Div(per)
				}
				item.PriceEach = models.NewAmount(price)
			}
			if item.ItemCode == "" && e.rules.CodeInDescription != nil {
				if m := e.rules.CodeInDescription.FindStringSubmatch(desc); len(m) > 1 {
					item.ItemCode = strings.TrimSpace(m[1])
					item.Description = cleanText(strings.Replace(desc, m[0], "", 1))
				}
			}
			if !r.HasPONumber() && poCol >= 0 {
				r.PONumber = CleanPONumber(strings.SplitN(Cell(row, poCol), "/", 2)[0])
			}
			items = append(items, item)
		}
		if len(items) > 0 {
			return items
		}
	}
	return nil
}

func (e *RuleExtractor) patternItems(text string) []models.LineItem {
	p := e.rules.ItemPattern
	var items []models.LineItem
	for _, m := range p.FindAllStringSubmatch(text, -1) {
		amount, ok := ParseAmount(group(p, m, "amount"))
		if !ok {
			continue
		}
		desc := cleanText(group(p, m, "desc"))
		if e.skip(desc) {
			continue
		}
		item := models.LineItem{
			Quantity:    decimal.NewFromInt(1),
			ItemCode:    group(p, m, "code"),
			Description: desc,
			Amount:      amount,
		}
		if qty, ok := ParseAmount(group(p, m, "qty")); ok {
			item.Quantity = qty
		}
		if price, ok := ParseAmount(group(p, m, "price")); ok {
			item.PriceEach = models.NewAmount(price)
		}
		items = append(items, item)
	}
	return items
}

func (e *RuleExtractor) skip(s string) bool {
	lower := strings.ToLower(s)
	for _, w := range e.rules.SkipWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
