package confidence

import (
	"github.com/level10nurd/documentExtraction/internal/models"
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// Score computes the confidence of a record under a profile.
// It starts at 1.0, subtracts every active penalty whose field is missing
// and clamps to [0, 1]. It has no side effects.
func Score(r *models.Record, profile Profile) float64 {
	score := one
	for _, rule := range profile.Rules {
		if rule.Applies(r) {
			score = score.Sub(rule.Weight)
		}
	}

	if score.IsNegative() {
		score = decimal.Zero
	}
	if score.GreaterThan(one) {
		score = one
	}
	return score.InexactFloat64()
}

// Scorer selects a profile per vendor and scores records
type Scorer struct {
	table *ProfileTable
}

// NewScorer creates a scorer over a profile table
func NewScorer(table *ProfileTable) *Scorer {
	if table == nil {
		table = DefaultProfileTable()
	}
	return &Scorer{table: table}
}

// Score returns the confidence of r under its vendor's profile
func (s *Scorer) Score(r *models.Record) float64 {
	return Score(r, s.table.ForVendor(r.Vendor))
}

// Annotate records validation violations on r and sets its confidence.
// Calling it more than once leaves the record unchanged.
func (s *Scorer) Annotate(r *models.Record) {
	for _, msg := range Validate(r) {
		if !r.HasError(msg) {
			r.AddError(msg)
		}
	}
	r.Confidence = s.Score(r)
}
