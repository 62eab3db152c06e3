package confidence

import "fmt"

// Band is a coarse confidence classification used in reports
type Band string

const (
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
)

// Thresholds defines the band boundaries.
// Scores >= High are high, scores >= Low are medium, the rest are low.
type Thresholds struct {
	High float64
	Low  float64
}

// ReportThresholds are the bands of the markdown summary report
func ReportThresholds() Thresholds {
	return Thresholds{High: 0.9, Low: 0.7}
}

// ReviewThresholds are the bands of the summary CSV:
// below Low needs attention, below High needs manual review.
func ReviewThresholds() Thresholds {
	return Thresholds{High: 0.8, Low: 0.6}
}

// Validate ensures both thresholds are within [0, 1] and High > Low
func (t Thresholds) Validate() error {
	if t.High < 0.0 || t.High > 1.0 {
		return fmt.Errorf("high threshold must be between 0.0 and 1.0, got %.2f", t.High)
	}
	if t.Low < 0.0 || t.Low > 1.0 {
		return fmt.Errorf("low threshold must be between 0.0 and 1.0, got %.2f", t.Low)
	}
	if t.High <= t.Low {
		return fmt.Errorf("high threshold must be greater than low threshold (high: %.2f, low: %.2f)", t.High, t.Low)
	}
	return nil
}

// Band classifies a score
func (t Thresholds) Band(score float64) Band {
	switch {
	case score >= t.High:
		return BandHigh
	case score >= t.Low:
		return BandMedium
	default:
		return BandLow
	}
}

// BandCounts tallies scores per band
func (t Thresholds) BandCounts(scores []float64) map[Band]int {
	counts := map[Band]int{BandHigh: 0, BandMedium: 0, BandLow: 0}
	for _, s := range scores {
		counts[t.Band(s)]++
	}
	return counts
}
