package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/level10nurd/documentExtraction/internal/config"
	"github.com/level10nurd/documentExtraction/internal/container"
	"github.com/level10nurd/documentExtraction/internal/vendor"
	"github.com/level10nurd/documentExtraction/internal/worker"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func detectFlags(flags *pflag.FlagSet) {
	flags.String("write-manifest", "", "write the detections as a vendor manifest to this path")
}

func runDetect(ctx context.Context, cfg *config.Config, flags *pflag.FlagSet, logger *zap.Logger) error {
	if cfg.Input.SourceDir == "" {
		return fmt.Errorf("a source directory is required (--source or INVOICE_SOURCE_DIR)")
	}
	manifestPath, _ := flags.GetString("write-manifest")

	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx, container.ComponentPipeline); err != nil {
		return err
	}
	defer c.Close()

	pipeline, err := c.Pipeline()
	if err != nil {
		return err
	}

	files, err := worker.ListFiles(cfg.Input.SourceDir, cfg.Input.Pattern, cfg.Input.Recursive, cfg.Input.MaxFiles)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VENDOR\tCONFIDENCE\tMETHOD\tFILE")

	detections := make(map[string]vendor.Detection, len(files))
	for _, path := range files {
		if ctx.Err() != nil {
			logger.Warn("Detection cancelled", zap.Int("detected", len(detections)))
			break
		}
		det, err := pipeline.DetectVendor(ctx, path)
		if err != nil {
			logger.Warn("Failed to detect vendor",
				zap.String("file", filepath.Base(path)),
				zap.Error(err))
			fmt.Fprintf(tw, "-\t-\terror\t%s\n", path)
			continue
		}
		detections[path] = det
		fmt.Fprintf(tw, "%s\t%.2f\t%s\t%s\n", det.Vendor, det.Confidence, det.Method, path)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if manifestPath == "" {
		return nil
	}
	manifest := vendor.NewManifest(detections, time.Now())
	if err := manifest.Save(manifestPath); err != nil {
		return err
	}
	logger.Info("Vendor manifest written",
		zap.String("path", manifestPath),
		zap.Int("entries", len(manifest.Invoices)))
	return nil
}
