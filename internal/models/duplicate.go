package models

// DuplicateReason tags how a duplicate group was formed
type DuplicateReason string

const (
	DuplicateExact DuplicateReason = "exact"
	DuplicateFuzzy DuplicateReason = "fuzzy"
)

// DuplicateGroup is a set of records that likely describe the same invoice.
// Indices refer to the slice handed to the detector and are ascending.
type DuplicateGroup struct {
	Reason  DuplicateReason `json:"reason"`
	Vendor  Vendor          `json:"vendor"`
	Key     string          `json:"key"`
	Indices []int           `json:"indices"`
}

// Size returns the number of members
func (g DuplicateGroup) Size() int {
	return len(g.Indices)
}

// MinIndex returns the smallest member index
func (g DuplicateGroup) MinIndex() int {
	if len(g.Indices) == 0 {
		return -1
	}
	return g.Indices[0]
}

// UniquenessCheckResult reports whether an invoice was persisted by an earlier run
type UniquenessCheckResult struct {
	IsUnique        bool   `json:"is_unique"`
	FirstRunID      string `json:"first_run_id,omitempty"`
	FirstSourceFile string `json:"first_source_file,omitempty"`
	Message         string `json:"message"`
}
