package models

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ProcessingStatus is the outcome of processing one file
type ProcessingStatus string

const (
	StatusSuccess            ProcessingStatus = "success"
	StatusFailedConversion   ProcessingStatus = "failed_conversion"
	StatusFailedDetection    ProcessingStatus = "failed_detection"
	StatusFailedExtraction   ProcessingStatus = "failed_extraction"
	StatusVendorNotSupported ProcessingStatus = "vendor_not_supported"
	StatusTimeout            ProcessingStatus = "timeout"
	StatusSkipped            ProcessingStatus = "skipped"
)

// DefaultLowConfidenceThreshold is the cut-off for the low confidence count
const DefaultLowConfidenceThreshold = 0.7

// Failure records a file that did not produce a record
type Failure struct {
	Filename string           `json:"filename"`
	Path     string           `json:"path"`
	Status   ProcessingStatus `json:"status"`
	Reason   string           `json:"reason"`
}

// BatchResult is the output of one batch run. It is read-only once returned.
type BatchResult struct {
	RunID                  string    `json:"run_id"`
	StartedAt              time.Time `json:"started_at"`
	FinishedAt             time.Time `json:"finished_at"`
	Cancelled              bool      `json:"cancelled"`
	LowConfidenceThreshold float64   `json:"low_confidence_threshold"`

	Successes []*Record `json:"successes"`
	Failures  []Failure `json:"failures"`
	Excluded  []Failure `json:"excluded"`
}

// VendorStats aggregates the successes of one vendor
type VendorStats struct {
	Count             int             `json:"count"`
	AverageConfidence float64         `json:"average_confidence"`
	TotalValue        decimal.Decimal `json:"total_value"`
}

// Statistics is derived from a BatchResult and never stored on it
type Statistics struct {
	Total                  int                      `json:"total"`
	Succeeded              int                      `json:"succeeded"`
	Failed                 int                      `json:"failed"`
	Excluded               int                      `json:"excluded"`
	ByStatus               map[ProcessingStatus]int `json:"by_status"`
	ByVendor               map[Vendor]VendorStats   `json:"by_vendor"`
	AverageConfidence      float64                  `json:"average_confidence"`
	TotalValue             decimal.Decimal          `json:"total_value"`
	LowConfidence          int                      `json:"low_confidence"`
	LowConfidenceThreshold float64                  `json:"low_confidence_threshold"`
	SuccessRate            float64                  `json:"success_rate"`
	Elapsed                time.Duration            `json:"elapsed"`
}

// SuccessfulRecords returns the successes ordered by source path
func (b *BatchResult) SuccessfulRecords() []*Record {
	out := make([]*Record, len(b.Successes))
	copy(out, b.Successes)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Key() < out[j].Key()
	})
	return out
}

// FailedEntries returns the failures ordered by path
func (b *BatchResult) FailedEntries() []Failure {
	out := make([]Failure, len(b.Failures))
	copy(out, b.Failures)
	sort.SliceStable(out, func(i, j int) bool {
		return failureKey(out[i]) < failureKey(out[j])
	})
	return out
}

func failureKey(f Failure) string {
	if f.Path != "" {
		return f.Path
	}
	return f.Filename
}

// Statistics computes aggregates in a single pass over sorted successes and failures.
// Averages are rounded half-up to 4 decimal places.
func (b *BatchResult) Statistics() Statistics {
	threshold := b.LowConfidenceThreshold
	if threshold <= 0 {
		threshold = DefaultLowConfidenceThreshold
	}

	stats := Statistics{
		ByStatus:               make(map[ProcessingStatus]int),
		ByVendor:               make(map[Vendor]VendorStats),
		TotalValue:             decimal.Zero,
		LowConfidenceThreshold: threshold,
	}

	confidenceSums := make(map[Vendor]decimal.Decimal)
	overall := decimal.Zero

	for _, r := range b.SuccessfulRecords() {
		stats.Succeeded++
		stats.ByStatus[StatusSuccess]++

		conf := decimal.NewFromFloat(r.Confidence)
		overall = overall.Add(conf)
		confidenceSums[r.Vendor] = confidenceSums[r.Vendor].Add(conf)

		vs := stats.ByVendor[r.Vendor]
		vs.Count++
		if r.Total.Valid {
			vs.TotalValue = vs.TotalValue.Add(r.Total.Decimal)
			stats.TotalValue = stats.TotalValue.Add(r.Total.Decimal)
		}
		stats.ByVendor[r.Vendor] = vs

		if r.Confidence < threshold {
			stats.LowConfidence++
		}
	}

	for _, f := range b.FailedEntries() {
		stats.Failed++
		stats.ByStatus[f.Status]++
	}
	stats.Excluded = len(b.Excluded)
	stats.Total = stats.Succeeded + stats.Failed

	for v, vs := range stats.ByVendor {
		vs.AverageConfidence = averageOf(confidenceSums[v], vs.Count)
		stats.ByVendor[v] = vs
	}
	stats.AverageConfidence = averageOf(overall, stats.Succeeded)

	if stats.Total > 0 {
		stats.SuccessRate = averageOf(decimal.NewFromInt(int64(stats.Succeeded)), stats.Total)
	}
	if !b.FinishedAt.IsZero() {
		stats.Elapsed = b.FinishedAt.Sub(b.StartedAt)
	}

	return stats
}

// averageOf divides sum by n and rounds half-up to 4 places
func averageOf(sum decimal.Decimal, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum.DivRound(decimal.NewFromInt(int64(n)), 4).InexactFloat64()
}
