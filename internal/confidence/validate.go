package confidence

import (
	"fmt"

	"github.com/level10nurd/documentExtraction/internal/models"
	"github.com/level10nurd/documentExtraction/pkg/utils"
)

// Validate reports structural violations of a record, such as negative amounts.
// The messages are stable so that they can be deduplicated on the record.
func Validate(r *models.Record) []string {
	var problems []string

	amounts := []struct {
		field string
		value bool
		check func() error
	}{
		{"subtotal", r.Subtotal.Valid, func() error { return utils.ValidateAmount("subtotal", r.Subtotal.Decimal) }},
		{"sales_tax", r.SalesTax.Valid, func() error { return utils.ValidateAmount("sales_tax", r.SalesTax.Decimal) }},
		{"total", r.Total.Valid, func() error { return utils.ValidateAmount("total", r.Total.Decimal) }},
	}
	for _, a := range amounts {
		if !a.value {
			continue
		}
		if err := a.check(); err != nil {
			problems = append(problems, "validation: "+err.Error())
		}
	}

	for i, item := range r.LineItems {
		if err := utils.ValidateAmount(fmt.Sprintf("line %d amount", i+1), item.Amount); err != nil {
			problems = append(problems, "validation: "+err.Error())
		}
		if item.Quantity.IsNegative() {
			problems = append(problems, fmt.Sprintf("validation: line %d quantity must not be negative: %s", i+1, item.Quantity.String()))
		}
	}

	return problems
}
