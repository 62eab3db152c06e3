package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/level10nurd/documentExtraction/internal/application/service"
	"github.com/level10nurd/documentExtraction/internal/config"
	"github.com/level10nurd/documentExtraction/internal/container"
	"github.com/level10nurd/documentExtraction/internal/dedup"
	"github.com/level10nurd/documentExtraction/internal/models"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func runProcess(ctx context.Context, cfg *config.Config, _ *pflag.FlagSet, logger *zap.Logger) error {
	if cfg.Input.SourceDir == "" {
		return fmt.Errorf("a source directory is required (--source or INVOICE_SOURCE_DIR)")
	}

	components := container.ComponentPipeline
	if cfg.Output.Persist {
		components |= container.ComponentDatabase
	}

	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx, components); err != nil {
		return err
	}
	defer c.Close()

	processor, err := c.BatchProcessor()
	if err != nil {
		return err
	}
	processor.SetProgress(progressPrinter(os.Stderr))

	svc, err := c.RunService(processor)
	if err != nil {
		return err
	}

	report, err := svc.Execute(ctx)
	if report != nil {
		printSummary(os.Stdout, report)
	}
	if err != nil {
		if errors.Is(err, models.ErrEnvironment) {
			return fmt.Errorf("environment check failed, no files were processed: %w", err)
		}
		return err
	}
	return nil
}

// progressPrinter reports each finished file on one line
func progressPrinter(w io.Writer) func(done, total int, filename string, status models.ProcessingStatus) {
	return func(done, total int, filename string, status models.ProcessingStatus) {
		fmt.Fprintf(w, "[%d/%d] %s %s\n", done, total, status, filename)
	}
}

func printSummary(w io.Writer, report *service.RunReport) {
	stats := report.Result.Statistics()

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 60))
	if report.Result.Cancelled {
		fmt.Fprintln(w, "RUN CANCELLED - PARTIAL RESULT")
	} else {
		fmt.Fprintln(w, "RUN COMPLETE")
	}
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "Run ID:          %s\n", report.Result.RunID)
	fmt.Fprintf(w, "Files found:     %d\n", report.Files)
	fmt.Fprintf(w, "Processed:       %d\n", stats.Total)
	fmt.Fprintf(w, "Succeeded:       %d (%.1f%%)\n", stats.Succeeded, stats.SuccessRate*100)
	fmt.Fprintf(w, "Failed:          %d\n", stats.Failed)
	fmt.Fprintf(w, "Excluded:        %d\n", stats.Excluded)
	fmt.Fprintf(w, "Avg confidence:  %.1f%%\n", stats.AverageConfidence*100)
	fmt.Fprintf(w, "Low confidence:  %d\n", stats.LowConfidence)
	fmt.Fprintf(w, "Total value:     $%s\n", stats.TotalValue.StringFixed(2))
	fmt.Fprintf(w, "Duplicates:      %d groups, %d dropped\n", len(report.Groups), len(dedup.DroppedIndices(report.Resolutions)))
	if len(report.Prior) > 0 {
		fmt.Fprintf(w, "Seen before:     %d invoices\n", len(report.Prior))
	}
	fmt.Fprintf(w, "Elapsed:         %s\n", stats.Elapsed.Round(100*time.Millisecond))

	if len(stats.ByVendor) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "By vendor:")
		vendors := make([]models.Vendor, 0, len(stats.ByVendor))
		for v := range stats.ByVendor {
			vendors = append(vendors, v)
		}
		sort.Slice(vendors, func(i, j int) bool { return vendors[i] < vendors[j] })
		for _, v := range vendors {
			vs := stats.ByVendor[v]
			fmt.Fprintf(w, "  %-32s %4d  avg %.1f%%\n", v, vs.Count, vs.AverageConfidence*100)
		}
	}

	if report.RunDir != "" {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Output: %s\n", report.RunDir)
		for _, name := range report.Written {
			fmt.Fprintf(w, "  %s\n", name)
		}
	}
	if report.Persisted {
		fmt.Fprintln(w, "Run recorded in the database.")
	}
}
