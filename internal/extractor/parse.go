package extractor

import (
	"regexp"
	"strings"
	"time"

	"github.com/level10nurd/documentExtraction/pkg/utils"
	"github.com/shopspring/decimal"
)

var (
	numberRe    = regexp.MustCompile(`-?[\d,]*\d(?:\.\d+)?`)
	spaceRe     = regexp.MustCompile(`\s+`)
	invPrefixRe = regexp.MustCompile(`(?i)^\s*(?:invoice|inv)\b\.?\s*(?:number|no\.?|#)?\s*[:#]?\s*`)
	poPrefixRe  = regexp.MustCompile(`(?i)^\s*(?:p\.?\s*o\b\.?|purchase\s+order)\s*(?:number|no\.?|#)?\s*[:#]?\s*`)
)

var dateLayouts = []string{
	"1/2/2006",
	"01/02/2006",
	"1/2/06",
	"1-2-2006",
	"01-02-2006",
	"1-2-06",
	"2006-01-02",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
	"Jan. 2, 2006",
	"2 January 2006",
	"2-Jan-2006",
	"2-Jan-06",
}

// ParseAmount reads a money value such as "$1,250.00", "(12.50)" or "727.2 USD"
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	negative := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")

	m := numberRe.FindString(s)
	if m == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// lastAmount reads the last number in a cell; merged cells put the price last
func lastAmount(s string) (decimal.Decimal, bool) {
	all := numberRe.FindAllString(s, -1)
	if len(all) == 0 {
		return decimal.Zero, false
	}
	return ParseAmount(all[len(all)-1])
}

// ParseDate reads the date formats vendors print. Two-digit years follow time.Parse.
func ParseDate(s string) (*time.Time, bool) {
	s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
	if s == "" {
		return nil, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d, true
		}
	}
	return nil, false
}

// CleanInvoiceNumber strips labels like "Invoice #:" and stray markup
func CleanInvoiceNumber(s string) string {
	s = invPrefixRe.ReplaceAllString(s, "")
	s = strings.Trim(s, " \t|*#:")
	return strings.TrimSpace(s)
}

// CleanPONumber strips PO labels. "N/A" and "none" mean absent.
func CleanPONumber(s string) string {
	s = poPrefixRe.ReplaceAllString(s, "")
	s = strings.Trim(s, " \t|*#:")
	switch strings.ToLower(s) {
	case "n/a", "na", "none", "-":
		return ""
	}
	return s
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "<br>", " ")
	return utils.SanitizeString(spaceRe.ReplaceAllString(s, " "))
}
