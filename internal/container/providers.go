// Package container provides dependency construction and lifecycle management
// for the invoice extraction commands.
package container

import (
	"context"
	"fmt"

	"github.com/level10nurd/documentExtraction/internal/config"
	"github.com/level10nurd/documentExtraction/internal/convert"
	"github.com/level10nurd/documentExtraction/internal/extractor"
	"github.com/level10nurd/documentExtraction/internal/invoice"
	"github.com/level10nurd/documentExtraction/internal/llm"
	"github.com/level10nurd/documentExtraction/internal/repository"
	"github.com/level10nurd/documentExtraction/internal/vendor"
	"github.com/level10nurd/documentExtraction/migrations"
	"github.com/level10nurd/documentExtraction/pkg/database"
	"go.uber.org/zap"
)

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Runs     *repository.RunRepository
	Invoices *repository.InvoiceRepository
}

// ProvideDatabase opens the database and applies the embedded migrations.
func ProvideDatabase(ctx context.Context, cfg database.Config, logger *zap.Logger) (*database.DB, error) {
	db, err := database.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).Run(ctx, migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// ProvideRepositories creates all repositories over db.
func ProvideRepositories(db *database.DB, logger *zap.Logger) *RepositoryBundle {
	return &RepositoryBundle{
		Runs:     repository.NewRunRepository(db, logger),
		Invoices: repository.NewInvoiceRepository(db, logger),
	}
}

// ProvideConverter builds the conversion stack: MuPDF with an optional pure Go
// fallback, limited to cfg.MaxConcurrent calls, behind the document cache.
func ProvideConverter(cfg config.ConverterConfig, logger *zap.Logger) *convert.CachedConverter {
	var conv convert.Converter = convert.NewFitzConverter(cfg.MaxPages, logger)
	if cfg.Fallback {
		conv = convert.NewChain(conv, convert.NewPDFTextConverter(cfg.MaxPages))
	}
	return convert.NewCachedConverter(convert.NewLimitedConverter(conv, cfg.MaxConcurrent))
}

// ProvideDetector creates the vendor detector, loading the manifest when one is configured.
func ProvideDetector(cfg config.InputConfig, logger *zap.Logger) (*vendor.Detector, error) {
	var manifest *vendor.Manifest
	if cfg.ManifestPath != "" {
		m, err := vendor.LoadManifest(cfg.ManifestPath)
		if err != nil {
			return nil, err
		}
		manifest = m
		logger.Info("Vendor manifest loaded",
			zap.String("path", cfg.ManifestPath),
			zap.Int("entries", len(m.Invoices)))
	}
	return vendor.NewDetector(manifest, cfg.RootDirectory, logger), nil
}

// ProvidePipeline wires converter, detector, rule extractors and, when enabled, the LLM fallback.
func ProvidePipeline(cfg *config.Config, conv convert.Converter, logger *zap.Logger) (*invoice.Pipeline, error) {
	detector, err := ProvideDetector(cfg.Input, logger)
	if err != nil {
		return nil, err
	}

	opts := []invoice.Option{invoice.WithMinTextChars(cfg.Converter.MinTextChars)}
	if cfg.OpenAI.Enabled {
		fallback, err := llm.NewOpenAIExtractor(cfg.LLMConfig(), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM extractor: %w", err)
		}
		opts = append(opts, invoice.WithLLM(fallback))
		logger.Info("LLM fallback enabled", zap.String("model", cfg.OpenAI.Model))
	}

	return invoice.NewPipeline(conv, detector, extractor.NewRegistry(), logger, opts...), nil
}
