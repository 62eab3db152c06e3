package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/level10nurd/documentExtraction/internal/confidence"
	"github.com/level10nurd/documentExtraction/internal/dedup"
	"github.com/level10nurd/documentExtraction/internal/export"
	"github.com/level10nurd/documentExtraction/internal/models"
	"github.com/level10nurd/documentExtraction/internal/worker"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var documentedEnv = []string{
	EnvSelector,
	"INVOICE_SOURCE_DIR",
	"OUTPUT_DIR",
	"MAX_WORKERS",
	"LOG_LEVEL",
	"INCLUDE_DUPLICATES",
	"DEDUPLICATE_STRATEGY",
	"OPENAI_API_KEY",
	"DATABASE_PATH",
}

// isolate clears the documented variables for the test and points the .env lookup into dir
func isolate(t *testing.T, dir string) {
	t.Helper()
	for _, key := range documentedEnv {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	prev := envFile
	envFile = filepath.Join(dir, ".env")
	t.Cleanup(func() { envFile = prev })
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	isolate(t, dir)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "*.pdf", cfg.Input.Pattern)
	assert.True(t, cfg.Input.Recursive)
	assert.Equal(t, "Bills", cfg.Input.RootDirectory)
	assert.Equal(t, "output", cfg.Output.Dir)
	assert.Equal(t, "normalized", cfg.Output.Format)
	assert.Equal(t, "keep_first", cfg.Output.DeduplicateStrategy)
	assert.False(t, cfg.Output.IncludeDuplicates)
	assert.True(t, cfg.Output.Persist)
	assert.Equal(t, 4, cfg.Batch.MaxWorkers)
	assert.Equal(t, 120*time.Second, cfg.Batch.FileTimeout)
	assert.Equal(t, 0.7, cfg.Batch.LowConfidenceThreshold)
	assert.Equal(t, 1, cfg.Converter.MaxConcurrent)
	assert.Equal(t, "fail", cfg.Converter.ImageOnlyPolicy)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	isolate(t, dir)

	path := writeFile(t, filepath.Join(dir, "config.yaml"), `
input:
  source_dir: /data/Bills
output:
  dir: /data/out
  include_duplicates: true
batch:
  max_workers: 2
  file_timeout: 45s
logger:
  level: debug
`)

	t.Run("file", func(t *testing.T) {
		cfg, err := Load(path, nil)
		require.NoError(t, err)
		assert.Equal(t, "/data/Bills", cfg.Input.SourceDir)
		assert.Equal(t, "/data/out", cfg.Output.Dir)
		assert.True(t, cfg.Output.IncludeDuplicates)
		assert.Equal(t, 2, cfg.Batch.MaxWorkers)
		assert.Equal(t, 45*time.Second, cfg.Batch.FileTimeout)
	})

	t.Run("environment over file", func(t *testing.T) {
		t.Setenv("MAX_WORKERS", "6")
		t.Setenv("INCLUDE_DUPLICATES", "false")
		t.Setenv("DEDUPLICATE_STRATEGY", "keep_last")
		t.Setenv("DATABASE_PATH", "/tmp/x.db")

		cfg, err := Load(path, nil)
		require.NoError(t, err)
		assert.Equal(t, 6, cfg.Batch.MaxWorkers)
		assert.False(t, cfg.Output.IncludeDuplicates)
		assert.Equal(t, "keep_last", cfg.Output.DeduplicateStrategy)
		assert.Equal(t, "/tmp/x.db", cfg.Database.Path)
	})

	t.Run("flags over environment", func(t *testing.T) {
		t.Setenv("MAX_WORKERS", "6")

		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		AddFlags(fs)
		require.NoError(t, fs.Parse([]string{"--workers", "8", "--output", "/elsewhere", "--no-persist"}))

		cfg, err := Load(path, fs)
		require.NoError(t, err)
		assert.Equal(t, 8, cfg.Batch.MaxWorkers)
		assert.Equal(t, "/elsewhere", cfg.Output.Dir)
		assert.False(t, cfg.Output.Persist)
		// Unset flags leave the file values alone
		assert.Equal(t, "/data/Bills", cfg.Input.SourceDir)
		assert.Equal(t, "debug", cfg.Logger.Level)
	})
}

func TestLoadOverlay(t *testing.T) {
	dir := t.TempDir()
	isolate(t, dir)

	path := writeFile(t, filepath.Join(dir, "config.yaml"), `
batch:
  max_workers: 2
logger:
  level: info
`)
	writeFile(t, filepath.Join(dir, "config.test.yaml"), `
logger:
  level: warn
`)

	t.Setenv(EnvSelector, "test")
	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logger.Level)
	assert.Equal(t, 2, cfg.Batch.MaxWorkers)

	// A missing overlay is not an error
	t.Setenv(EnvSelector, "staging")
	cfg, err = Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	isolate(t, dir)
	t.Cleanup(func() {
		os.Unsetenv("INVOICE_SOURCE_DIR")
		os.Unsetenv("OPENAI_API_KEY")
	})

	writeFile(t, filepath.Join(dir, ".env"), "INVOICE_SOURCE_DIR=/from/dotenv\nOPENAI_API_KEY=sk-test\n")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "/from/dotenv", cfg.Input.SourceDir)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	isolate(t, dir)

	_, err := Load(filepath.Join(dir, "missing.yaml"), nil)
	assert.ErrorContains(t, err, "failed to read config file")

	bad := writeFile(t, filepath.Join(dir, "bad.yaml"), "batch:\n  max_workers: 0\n")
	_, err = Load(bad, nil)
	assert.ErrorContains(t, err, "batch.max_workers")
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	isolate(t, t.TempDir())
	cfg, err := Load("", nil)
	require.NoError(t, err)
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"threshold above one", func(c *Config) { c.Batch.LowConfidenceThreshold = 1.5 }, "low_confidence_threshold"},
		{"negative max files", func(c *Config) { c.Input.MaxFiles = -1 }, "max_files"},
		{"no converter slots", func(c *Config) { c.Converter.MaxConcurrent = 0 }, "max_concurrent"},
		{"image policy", func(c *Config) { c.Converter.ImageOnlyPolicy = "ocr" }, "image_only_policy"},
		{"strategy", func(c *Config) { c.Output.DeduplicateStrategy = "keep_best" }, "deduplicate_strategy"},
		{"format", func(c *Config) { c.Output.Format = "wide" }, "output.format"},
		{"llm without key", func(c *Config) { c.OpenAI.Enabled = true }, "openai.api_key"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"database path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"database path not needed", func(c *Config) { c.Database.Path = ""; c.Output.Persist = false }, ""},
		{"negative fuzzy tolerance", func(c *Config) { c.Output.FuzzyTolerance = -0.01 }, "fuzzy_tolerance"},
		{"zero fuzzy tolerance", func(c *Config) { c.Output.FuzzyTolerance = 0 }, ""},
		{"logger format", func(c *Config) { c.Logger.Format = "xml" }, "logger.format"},
		{"unknown penalty", func(c *Config) { c.Scoring.Weights = map[string]float64{"vendor": 0.1} }, "scoring"},
		{"unknown vendor", func(c *Config) { c.Scoring.VendorProfiles = map[string]string{"acme": "service"} }, "unknown vendor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestComponentConfigs(t *testing.T) {
	cfg := validConfig(t)
	cfg.Converter.ImageOnlyPolicy = "Exclude"
	cfg.Batch.RetryAttempts = 5
	cfg.Input.MaxFiles = 10
	cfg.Output.Format = "Denormalized"

	wc := cfg.WorkerConfig()
	assert.Equal(t, worker.ImageOnlyExclude, wc.ImageOnlyPolicy)
	assert.Equal(t, 5, wc.Retry.MaxAttempts)
	assert.Equal(t, 10, wc.MaxFiles)
	assert.Equal(t, 4, wc.MaxWorkers)

	ec := cfg.ExportConfig()
	assert.Equal(t, export.FormatDenormalized, ec.Format)
	assert.True(t, ec.XLSX)

	strategy, err := cfg.DeduplicateStrategy()
	require.NoError(t, err)
	assert.Equal(t, dedup.KeepFirst, strategy)
	assert.True(t, cfg.FuzzyTolerance().Equal(dedup.DefaultTolerance))

	assert.Equal(t, 8080, cfg.HTTPConfig().Port)
	assert.Equal(t, cfg.Database.Path, cfg.DBConfig().Path)
	assert.Equal(t, "info", cfg.LoggerOptions().Level)
}

func TestFuzzyToleranceZero(t *testing.T) {
	dir := t.TempDir()
	isolate(t, dir)
	path := writeFile(t, filepath.Join(dir, "config.yaml"), `
output:
  fuzzy_tolerance: 0
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.True(t, cfg.FuzzyTolerance().IsZero())
}

func TestProfileTableOverrides(t *testing.T) {
	cfg := validConfig(t)
	cfg.Scoring = ScoringConfig{
		Weights: map[string]float64{"po_number": 0.05},
		VendorProfiles: map[string]string{
			// Keys arrive lowercased from viper
			"amanda-andrews personnel corp": "service",
			"abox":                          "service",
		},
	}

	table, err := cfg.ProfileTable()
	require.NoError(t, err)

	assert.Equal(t, confidence.ProfileService, table.ForVendor(models.VendorABox).Name)
	assert.Equal(t, confidence.ProfileService, table.ForVendor(models.VendorAmandaAndrews).Name)
	assert.Equal(t, confidence.ProfileDefault, table.ForVendor(models.VendorOmico).Name)

	// Only the PO number is missing
	r := models.NewRecord(models.VendorOmico, "a.pdf")
	r.InvoiceNumber = "1"
	r.LineItems = []models.LineItem{{Description: "x"}}
	r.Total = models.MustAmount("10")
	now := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	r.InvoiceDate = &now
	assert.Equal(t, 0.95, confidence.Score(r, table.ForVendor(models.VendorOmico)))
}
