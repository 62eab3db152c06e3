package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	controlChars      = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	invoiceNumberForm = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9\-/.]*$`)
)

// ValidateAmount rejects negative currency amounts
func ValidateAmount(field string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%s must not be negative: %s", field, amount.StringFixed(2))
	}
	return nil
}

// ValidateInvoiceNumber checks that an invoice number is a single token
func ValidateInvoiceNumber(number string) error {
	if number == "" {
		return nil
	}
	if !invoiceNumberForm.MatchString(number) {
		return fmt.Errorf("invalid invoice number format: %q", number)
	}
	return nil
}

// SanitizeString removes control characters and surrounding whitespace
func SanitizeString(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}
