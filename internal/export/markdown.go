package export

import (
	_ "embed"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/level10nurd/documentExtraction/internal/confidence"
	"github.com/level10nurd/documentExtraction/internal/models"
	"github.com/shopspring/decimal"
)

//go:embed templates/summary.md.tmpl
var summaryTemplate string

var summaryTmpl = template.Must(template.New("summary").Funcs(template.FuncMap{
	"percent": percent,
	"cell":    markdownCell,
}).Parse(summaryTemplate))

const (
	maxTopErrors = 10
	maxWarnings  = 10

	// Recommendation triggers
	highFailureRate      = 0.10
	highLowConfidence    = 0.15
	slowFilePace         = 10 * time.Second
	excellentSuccessRate = 0.95
	excellentConfidence  = 0.85
)

type errorCount struct {
	Message string
	Count   int
}

type bandRow struct {
	Label string
	Count int
	Share float64
}

type vendorRow struct {
	Name              string
	Count             int
	LineItems         int
	Total             string
	AverageConfidence float64
}

type duplicateRow struct {
	Reason models.DuplicateReason
	Vendor models.Vendor
	Key    string
	Files  string
}

type summaryData struct {
	Generated       string
	RunID           string
	Cancelled       bool
	Stats           models.Statistics
	Elapsed         string
	PerFile         string
	ErrorCount      int
	TopErrors       []errorCount
	Warnings        []string
	Bands           []bandRow
	Vendors         []vendorRow
	TotalAmount     string
	TotalLineItems  int
	AverageAmount   string
	Failures        []models.Failure
	Duplicates      []duplicateRow
	Prior           []PriorInvoice
	Recommendations []string
}

// WriteMarkdown renders the human-readable run report
func (e *Exporter) WriteMarkdown(w io.Writer, ds *Dataset) error {
	data := e.summarize(ds)
	if err := summaryTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render summary: %w", err)
	}
	return nil
}

func (e *Exporter) summarize(ds *Dataset) summaryData {
	stats := ds.Result.Statistics()
	data := summaryData{
		Generated: e.now().Format("2006-01-02 15:04:05"),
		RunID:     ds.Result.RunID,
		Cancelled: ds.Result.Cancelled,
		Stats:     stats,
		Elapsed:   stats.Elapsed.Round(100 * time.Millisecond).String(),
		PerFile:   perFile(stats).Round(10 * time.Millisecond).String(),
		Failures:  failuresAndExcluded(ds.Result),
		Prior:     ds.Prior,
	}

	errs := make(map[string]int)
	lineItems := make(map[models.Vendor]int)
	scores := make([]float64, len(ds.Records))
	for i, r := range ds.Records {
		scores[i] = r.Confidence
		lineItems[r.Vendor] += len(r.LineItems)
		data.TotalLineItems += len(r.LineItems)
		for _, msg := range r.ExtractionErrors {
			errs[msg]++
			data.ErrorCount++
		}
		if r.Confidence < stats.LowConfidenceThreshold && len(data.Warnings) < maxWarnings {
			data.Warnings = append(data.Warnings, fmt.Sprintf("%s: low confidence (%s)", r.SourceFile, percent(r.Confidence)))
		}
	}
	data.TopErrors = topErrors(errs)

	bands := confidence.ReportThresholds()
	counts := bands.BandCounts(scores)
	data.Bands = []bandRow{
		{Label: fmt.Sprintf("High (≥%.0f%%)", bands.High*100), Count: counts[confidence.BandHigh]},
		{Label: fmt.Sprintf("Medium (%.0f-%.0f%%)", bands.Low*100, bands.High*100), Count: counts[confidence.BandMedium]},
		{Label: fmt.Sprintf("Low (<%.0f%%)", bands.Low*100), Count: counts[confidence.BandLow]},
	}
	if n := len(scores); n > 0 {
		for i := range data.Bands {
			data.Bands[i].Share = float64(data.Bands[i].Count) / float64(n)
		}
	}

	for _, v := range sortedVendors(stats.ByVendor) {
		vs := stats.ByVendor[v]
		data.Vendors = append(data.Vendors, vendorRow{
			Name:              v.String(),
			Count:             vs.Count,
			LineItems:         lineItems[v],
			Total:             dollars(vs.TotalValue),
			AverageConfidence: vs.AverageConfidence,
		})
	}
	// Busiest vendors first
	sort.SliceStable(data.Vendors, func(i, j int) bool {
		return data.Vendors[i].Count > data.Vendors[j].Count
	})

	data.TotalAmount = dollars(stats.TotalValue)
	data.AverageAmount = dollars(decimal.Zero)
	if stats.Succeeded > 0 {
		data.AverageAmount = dollars(stats.TotalValue.DivRound(decimal.NewFromInt(int64(stats.Succeeded)), 2))
	}

	for _, g := range ds.Groups {
		data.Duplicates = append(data.Duplicates, duplicateRow{
			Reason: g.Reason,
			Vendor: g.Vendor,
			Key:    g.Key,
			Files:  strings.Join(ds.GroupFiles(g), ", "),
		})
	}

	data.Recommendations = recommendations(stats, ds.Records, counts[confidence.BandLow])
	return data
}

func perFile(stats models.Statistics) time.Duration {
	if stats.Total == 0 {
		return 0
	}
	return stats.Elapsed / time.Duration(stats.Total)
}

func topErrors(counts map[string]int) []errorCount {
	out := make([]errorCount, 0, len(counts))
	for msg, n := range counts {
		out = append(out, errorCount{Message: msg, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Message < out[j].Message
	})
	if len(out) > maxTopErrors {
		out = out[:maxTopErrors]
	}
	return out
}

func recommendations(stats models.Statistics, records []*models.Record, lowBand int) []string {
	var out []string

	if stats.Total > 0 {
		if rate := float64(stats.Failed) / float64(stats.Total); rate > highFailureRate {
			out = append(out, fmt.Sprintf("High failure rate (%s). Review failed extractions and improve vendor-specific patterns.", percent(rate)))
		}
	}
	if n := len(records); n > 0 && lowBand > 0 {
		if share := float64(lowBand) / float64(n); share > highLowConfidence {
			out = append(out, fmt.Sprintf("%s of invoices have low confidence. Review extraction logic for these vendors.", percent(share)))
		}
	}

	missingTotals, missingItems := 0, 0
	for _, r := range records {
		if !r.Total.Valid || r.Total.Decimal.IsZero() {
			missingTotals++
		}
		if len(r.LineItems) == 0 {
			missingItems++
		}
	}
	if missingTotals > 0 {
		out = append(out, fmt.Sprintf("%d invoices missing total amounts. Verify extraction patterns.", missingTotals))
	}
	if missingItems > 0 {
		out = append(out, fmt.Sprintf("%d invoices missing line items. Review table extraction logic.", missingItems))
	}

	if pace := perFile(stats); pace > slowFilePace {
		out = append(out, fmt.Sprintf("Average processing time is %s per file. Consider raising the worker or converter limits.", pace.Round(100*time.Millisecond)))
	}
	if stats.Total > 0 && stats.SuccessRate >= excellentSuccessRate && stats.AverageConfidence >= excellentConfidence {
		out = append(out, "Excellent extraction quality across vendors.")
	}
	if len(out) == 0 {
		out = append(out, "Processing completed without major issues.")
	}
	return out
}

// markdownCell keeps a value inside one table cell
func markdownCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}
