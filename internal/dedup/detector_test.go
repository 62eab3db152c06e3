package dedup

import (
	"testing"
	"time"

	"github.com/level10nurd/documentExtraction/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(vendor models.Vendor, file, number, total string, date *time.Time) *models.Record {
	r := models.NewRecord(vendor, file)
	r.InvoiceNumber = number
	if total != "" {
		r.Total = models.MustAmount(total)
	}
	r.InvoiceDate = date
	return r
}

func TestFindDuplicates_ExactGroup(t *testing.T) {
	records := []*models.Record{
		record("Acme", "a.pdf", "1001", "50.00", nil),
		record("Acme", "b.pdf", "1001", "75.00", nil),
		record("Acme", "c.pdf", "2002", "99.00", nil),
	}

	groups := FindDuplicates(records)

	require.Len(t, groups, 1)
	assert.Equal(t, models.DuplicateExact, groups[0].Reason)
	assert.Equal(t, []int{0, 1}, groups[0].Indices)
	assert.Equal(t, "1001", groups[0].Key)
}

func TestFindDuplicates_ExactKeyIsNormalized(t *testing.T) {
	records := []*models.Record{
		record(models.VendorABox, "a.pdf", " inv-7 ", "", nil),
		record(models.VendorABox, "b.pdf", "INV-7", "", nil),
		record(models.VendorDimax, "c.pdf", "INV-7", "", nil),
	}

	groups := FindDuplicates(records)

	require.Len(t, groups, 1)
	assert.Equal(t, []int{0, 1}, groups[0].Indices)
	assert.Equal(t, models.VendorABox, groups[0].Vendor)
}

func TestFindDuplicates_FuzzyTolerance(t *testing.T) {
	date := models.Date(2025, 1, 15)

	tests := []struct {
		name       string
		totalA     string
		totalB     string
		wantGroups int
	}{
		{"half a cent apart", "100.000", "100.005", 1},
		{"exactly one cent apart", "100.00", "100.01", 1},
		{"two cents apart", "100.00", "100.02", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := []*models.Record{
				record("Acme", "a.pdf", "", tt.totalA, date),
				record("Acme", "b.pdf", "", tt.totalB, date),
			}

			groups := FindDuplicates(records)

			require.Len(t, groups, tt.wantGroups)
			if tt.wantGroups == 1 {
				assert.Equal(t, models.DuplicateFuzzy, groups[0].Reason)
				assert.Equal(t, []int{0, 1}, groups[0].Indices)
			}
		})
	}
}

func TestFindDuplicates_FuzzyRules(t *testing.T) {
	jan := models.Date(2025, 1, 15)
	feb := models.Date(2025, 2, 15)

	tests := []struct {
		name    string
		records []*models.Record
		want    int
	}{
		{
			name: "date absent on one side",
			records: []*models.Record{
				record("Acme", "a.pdf", "", "10.00", jan),
				record("Acme", "b.pdf", "", "10.00", nil),
			},
			want: 1,
		},
		{
			name: "different dates",
			records: []*models.Record{
				record("Acme", "a.pdf", "", "10.00", jan),
				record("Acme", "b.pdf", "", "10.00", feb),
			},
			want: 0,
		},
		{
			name: "same filename",
			records: []*models.Record{
				record("Acme", "a.pdf", "", "10.00", jan),
				record("Acme", "a.pdf", "", "10.00", jan),
			},
			want: 0,
		},
		{
			name: "different vendors",
			records: []*models.Record{
				record("Acme", "a.pdf", "", "10.00", jan),
				record("Other", "b.pdf", "", "10.00", jan),
			},
			want: 0,
		},
		{
			name: "missing total",
			records: []*models.Record{
				record("Acme", "a.pdf", "", "", jan),
				record("Acme", "b.pdf", "", "", jan),
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, FindDuplicates(tt.records), tt.want)
		})
	}
}

func TestFindDuplicates_FuzzySkipsExactMembers(t *testing.T) {
	records := []*models.Record{
		record("Acme", "a.pdf", "1001", "10.00", nil),
		record("Acme", "b.pdf", "1001", "10.00", nil),
		record("Acme", "c.pdf", "", "10.00", nil),
	}

	groups := FindDuplicates(records)

	require.Len(t, groups, 1)
	assert.Equal(t, models.DuplicateExact, groups[0].Reason)
	assert.NotContains(t, groups[0].Indices, 2)
}

func TestFindDuplicates_FuzzyGroupsArePairwise(t *testing.T) {
	jan := models.Date(2025, 1, 15)
	feb := models.Date(2025, 2, 15)

	tests := []struct {
		name    string
		records []*models.Record
		want    [][]int
	}{
		{
			name: "undated record does not bridge conflicting dates",
			records: []*models.Record{
				record("Acme", "jan.pdf", "", "10.00", jan),
				record("Acme", "nodate.pdf", "", "10.00", nil),
				record("Acme", "feb.pdf", "", "10.00", feb),
			},
			want: [][]int{{0, 1}},
		},
		{
			name: "totals spanning more than the tolerance are split",
			records: []*models.Record{
				record("Acme", "a.pdf", "", "10.000", nil),
				record("Acme", "b.pdf", "", "10.008", nil),
				record("Acme", "c.pdf", "", "10.016", nil),
			},
			want: [][]int{{0, 1}},
		},
		{
			name: "totals within the tolerance of each other stay together",
			records: []*models.Record{
				record("Acme", "a.pdf", "", "10.000", nil),
				record("Acme", "b.pdf", "", "10.004", nil),
				record("Acme", "c.pdf", "", "10.008", nil),
			},
			want: [][]int{{0, 1, 2}},
		},
		{
			name: "leftover records form their own group",
			records: []*models.Record{
				record("Acme", "jan.pdf", "", "10.00", jan),
				record("Acme", "jan-copy.pdf", "", "10.00", jan),
				record("Acme", "feb.pdf", "", "10.00", feb),
				record("Acme", "feb-copy.pdf", "", "10.00", feb),
			},
			want: [][]int{{0, 1}, {2, 3}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups := FindDuplicates(tt.records)

			got := make([][]int, len(groups))
			for i, g := range groups {
				assert.Equal(t, models.DuplicateFuzzy, g.Reason)
				got[i] = g.Indices
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_KeepsInvoiceWithConflictingDate(t *testing.T) {
	jan := models.Date(2025, 1, 15)
	feb := models.Date(2025, 2, 15)
	records := []*models.Record{
		record("Acme", "jan.pdf", "", "10.00", jan),
		record("Acme", "nodate.pdf", "", "10.00", nil),
		record("Acme", "feb.pdf", "", "10.00", feb),
	}

	resolutions, err := Resolve(records, FindDuplicates(records), KeepFirst)
	require.NoError(t, err)

	require.Len(t, resolutions, 1)
	assert.Equal(t, 0, resolutions[0].Kept)
	assert.Equal(t, []int{1}, resolutions[0].Dropped)
}

func TestFindDuplicates_Ordering(t *testing.T) {
	records := []*models.Record{
		record("Zeta", "z1.pdf", "9", "", nil),
		record("Zeta", "z2.pdf", "9", "", nil),
		record("Acme", "a1.pdf", "5", "", nil),
		record("Acme", "a2.pdf", "5", "", nil),
		record("Acme", "a3.pdf", "5", "", nil),
		record("Acme", "a4.pdf", "6", "", nil),
		record("Acme", "a5.pdf", "6", "", nil),
	}

	groups := FindDuplicates(records)

	require.Len(t, groups, 3)
	assert.Equal(t, []int{2, 3, 4}, groups[0].Indices)
	assert.Equal(t, []int{5, 6}, groups[1].Indices)
	assert.Equal(t, []int{0, 1}, groups[2].Indices)
}

func TestFindDuplicates_Deterministic(t *testing.T) {
	records := []*models.Record{
		record("Acme", "a.pdf", "1", "10.00", nil),
		record("Acme", "b.pdf", "1", "10.00", nil),
		record("Acme", "c.pdf", "", "20.00", nil),
		record("Acme", "d.pdf", "", "20.00", nil),
	}

	assert.Equal(t, FindDuplicates(records), FindDuplicates(records))
}

func TestNewDetector_CustomTolerance(t *testing.T) {
	records := []*models.Record{
		record("Acme", "a.pdf", "", "10.00", nil),
		record("Acme", "b.pdf", "", "10.50", nil),
	}

	assert.Empty(t, FindDuplicates(records))
	assert.Len(t, NewDetector(decimal.RequireFromString("1")).FindDuplicates(records), 1)
}
