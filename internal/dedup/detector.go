package dedup

import (
	"fmt"
	"sort"

	"github.com/level10nurd/documentExtraction/internal/models"
	"github.com/shopspring/decimal"
)

// DefaultTolerance is the absolute total difference tolerated by the fuzzy pass
var DefaultTolerance = decimal.RequireFromString("0.01")

// Detector groups records that likely describe the same invoice
type Detector struct {
	tolerance decimal.Decimal
}

// NewDetector creates a detector. A negative tolerance falls back to the default.
func NewDetector(tolerance decimal.Decimal) *Detector {
	if tolerance.IsNegative() {
		tolerance = DefaultTolerance
	}
	return &Detector{tolerance: tolerance}
}

// FindDuplicates runs the detector with the default tolerance
func FindDuplicates(records []*models.Record) []models.DuplicateGroup {
	return NewDetector(DefaultTolerance).FindDuplicates(records)
}

// FindDuplicates returns exact groups (same vendor and normalized invoice number)
// and fuzzy groups (same vendor, totals within tolerance, compatible dates,
// different filenames) over the records left ungrouped by the exact pass.
// Every pair inside a fuzzy group satisfies the fuzzy rule.
// Every group has at least two members and each record is in at most one group.
func (d *Detector) FindDuplicates(records []*models.Record) []models.DuplicateGroup {
	exact, grouped := d.exactGroups(records)
	fuzzy := d.fuzzyGroups(records, grouped)

	groups := append(exact, fuzzy...)
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Size() != groups[j].Size() {
			return groups[i].Size() > groups[j].Size()
		}
		if groups[i].Vendor != groups[j].Vendor {
			return groups[i].Vendor < groups[j].Vendor
		}
		return groups[i].MinIndex() < groups[j].MinIndex()
	})
	return groups
}

type exactKey struct {
	vendor models.Vendor
	number string
}

func (d *Detector) exactGroups(records []*models.Record) ([]models.DuplicateGroup, map[int]bool) {
	members := make(map[exactKey][]int)
	var order []exactKey

	for i, r := range records {
		if r == nil || !r.HasInvoiceNumber() {
			continue
		}
		key := exactKey{vendor: r.Vendor, number: models.NormalizeInvoiceNumber(r.InvoiceNumber)}
		if _, ok := members[key]; !ok {
			order = append(order, key)
		}
		members[key] = append(members[key], i)
	}

	grouped := make(map[int]bool)
	var groups []models.DuplicateGroup
	for _, key := range order {
		indices := members[key]
		if len(indices) < 2 {
			continue
		}
		for _, i := range indices {
			grouped[i] = true
		}
		groups = append(groups, models.DuplicateGroup{
			Reason:  models.DuplicateExact,
			Vendor:  key.vendor,
			Key:     key.number,
			Indices: indices,
		})
	}
	return groups, grouped
}

func (d *Detector) fuzzyGroups(records []*models.Record, grouped map[int]bool) []models.DuplicateGroup {
	byVendor := make(map[models.Vendor][]int)
	var vendors []models.Vendor
	for i, r := range records {
		if r == nil || grouped[i] || !r.Total.Valid {
			continue
		}
		if _, ok := byVendor[r.Vendor]; !ok {
			vendors = append(vendors, r.Vendor)
		}
		byVendor[r.Vendor] = append(byVendor[r.Vendor], i)
	}

	var groups []models.DuplicateGroup
	for _, vendor := range vendors {
		for _, indices := range d.growGroups(records, byVendor[vendor]) {
			groups = append(groups, models.DuplicateGroup{
				Reason:  models.DuplicateFuzzy,
				Vendor:  vendor,
				Key:     fuzzyKey(records[indices[0]]),
				Indices: indices,
			})
		}
	}
	return groups
}

// growGroups seeds a group with the lowest unassigned index and admits each later
// candidate only if it is a probable duplicate of every member already in the group.
// Returned groups have at least two members, in ascending index order.
func (d *Detector) growGroups(records []*models.Record, candidates []int) [][]int {
	assigned := make(map[int]bool, len(candidates))
	var out [][]int
	for a, seed := range candidates {
		if assigned[seed] {
			continue
		}
		members := []int{seed}
		for _, next := range candidates[a+1:] {
			if assigned[next] || !d.compatibleWithAll(records, members, next) {
				continue
			}
			members = append(members, next)
		}
		if len(members) < 2 {
			continue
		}
		for _, i := range members {
			assigned[i] = true
		}
		out = append(out, members)
	}
	return out
}

func (d *Detector) compatibleWithAll(records []*models.Record, members []int, candidate int) bool {
	for _, m := range members {
		if !d.probableDuplicate(records[m], records[candidate]) {
			return false
		}
	}
	return true
}

func (d *Detector) probableDuplicate(a, b *models.Record) bool {
	if a.SourceFile == b.SourceFile {
		return false
	}
	if a.Total.Decimal.Sub(b.Total.Decimal).Abs().GreaterThan(d.tolerance) {
		return false
	}
	if a.InvoiceDate != nil && b.InvoiceDate != nil && !a.InvoiceDate.Equal(*b.InvoiceDate) {
		return false
	}
	return true
}

func fuzzyKey(r *models.Record) string {
	if date := r.DateKey(); date != "" {
		return fmt.Sprintf("total=%s date=%s", r.Total.Decimal.StringFixed(2), date)
	}
	return fmt.Sprintf("total=%s", r.Total.Decimal.StringFixed(2))
}
