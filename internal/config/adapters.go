package config

import (
	"fmt"
	"strings"

	"github.com/level10nurd/documentExtraction/internal/confidence"
	"github.com/level10nurd/documentExtraction/internal/dedup"
	"github.com/level10nurd/documentExtraction/internal/export"
	httpapi "github.com/level10nurd/documentExtraction/internal/interfaces/http"
	"github.com/level10nurd/documentExtraction/internal/llm"
	"github.com/level10nurd/documentExtraction/internal/models"
	"github.com/level10nurd/documentExtraction/internal/worker"
	"github.com/level10nurd/documentExtraction/pkg/database"
	"github.com/level10nurd/documentExtraction/pkg/utils"
	"github.com/shopspring/decimal"
)

// The methods below convert the file-based config loaded by viper into
// the configuration structures of the individual components.

// WorkerConfig returns the batch processor settings
func (c *Config) WorkerConfig() worker.Config {
	policy, _ := c.ImageOnlyPolicy()
	retry := worker.NewRetryStrategy()
	if c.Batch.RetryAttempts > 0 {
		retry.MaxAttempts = c.Batch.RetryAttempts
	}
	if c.Batch.RetryBaseBackoff > 0 {
		retry.BaseBackoff = c.Batch.RetryBaseBackoff
	}
	if c.Batch.RetryMaxBackoff > 0 {
		retry.MaxBackoff = c.Batch.RetryMaxBackoff
	}
	return worker.Config{
		MaxWorkers:             c.Batch.MaxWorkers,
		MaxFiles:               c.Input.MaxFiles,
		FileTimeout:            c.Batch.FileTimeout,
		LowConfidenceThreshold: c.Batch.LowConfidenceThreshold,
		ImageOnlyPolicy:        policy,
		Retry:                  retry,
	}
}

// ImageOnlyPolicy parses converter.image_only_policy
func (c *Config) ImageOnlyPolicy() (worker.ImageOnlyPolicy, error) {
	switch p := worker.ImageOnlyPolicy(strings.ToLower(c.Converter.ImageOnlyPolicy)); p {
	case worker.ImageOnlyFail, worker.ImageOnlyExclude:
		return p, nil
	case "":
		return worker.ImageOnlyFail, nil
	default:
		return "", fmt.Errorf("converter.image_only_policy must be fail or exclude, got %q", c.Converter.ImageOnlyPolicy)
	}
}

// DeduplicateStrategy parses output.deduplicate_strategy
func (c *Config) DeduplicateStrategy() (dedup.Strategy, error) {
	s, err := dedup.ParseStrategy(c.Output.DeduplicateStrategy)
	if err != nil {
		return "", fmt.Errorf("output.deduplicate_strategy: %w", err)
	}
	return s, nil
}

// FuzzyTolerance returns the fuzzy duplicate tolerance as a decimal.
// Zero asks for exactly equal totals.
func (c *Config) FuzzyTolerance() decimal.Decimal {
	if c.Output.FuzzyTolerance < 0 {
		return dedup.DefaultTolerance
	}
	return decimal.NewFromFloat(c.Output.FuzzyTolerance)
}

// ExportConfig returns the report settings
func (c *Config) ExportConfig() export.Config {
	return export.Config{
		Format:            strings.ToLower(c.Output.Format),
		DateFormat:        c.Output.DateFormat,
		IncludeDuplicates: c.Output.IncludeDuplicates,
		XLSX:              c.Output.XLSX,
		Markdown:          c.Output.Markdown,
	}
}

// ProfileTable builds the confidence profile table, keeping built-in values
// for every section the configuration leaves empty
func (c *Config) ProfileTable() (*confidence.ProfileTable, error) {
	table := confidence.DefaultTableConfig()

	for name, w := range c.Scoring.Weights {
		table.Weights[confidence.Penalty(strings.ToLower(name))] = w
	}
	if len(c.Scoring.Profiles) > 0 {
		table.Profiles = make(map[string][]confidence.Penalty, len(c.Scoring.Profiles))
		for name, penalties := range c.Scoring.Profiles {
			for _, p := range penalties {
				table.Profiles[name] = append(table.Profiles[name], confidence.Penalty(strings.ToLower(p)))
			}
		}
	}
	if len(c.Scoring.VendorProfiles) > 0 {
		table.VendorProfiles = make(map[models.Vendor]string, len(c.Scoring.VendorProfiles))
		for name, profile := range c.Scoring.VendorProfiles {
			v := models.ParseVendor(name)
			if !v.IsKnown() {
				return nil, fmt.Errorf("unknown vendor %q", name)
			}
			table.VendorProfiles[v] = profile
		}
	}

	return confidence.NewProfileTable(table)
}

// LLMConfig returns the OpenAI extractor settings
func (c *Config) LLMConfig() llm.Config {
	return llm.Config{
		APIKey:       c.OpenAI.APIKey,
		Model:        c.OpenAI.Model,
		BaseURL:      c.OpenAI.BaseURL,
		PromptsPath:  c.OpenAI.PromptsPath,
		MaxTextChars: c.OpenAI.MaxTextChars,
	}
}

// HTTPConfig returns the report API server settings
func (c *Config) HTTPConfig() httpapi.ServerConfig {
	return httpapi.ServerConfig{
		Host:         c.Server.Host,
		Port:         c.Server.Port,
		ReadTimeout:  c.Server.ReadTimeout,
		WriteTimeout: c.Server.WriteTimeout,
	}
}

// DBConfig returns the database settings
func (c *Config) DBConfig() database.Config {
	return database.Config{
		Path:            c.Database.Path,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
	}
}

// LoggerOptions returns the logger settings
func (c *Config) LoggerOptions() utils.LoggerConfig {
	return utils.LoggerConfig{
		Level:      c.Logger.Level,
		OutputPath: c.Logger.OutputPath,
		Format:     c.Logger.Format,
	}
}
