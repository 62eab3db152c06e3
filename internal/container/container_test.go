package container

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/level10nurd/documentExtraction/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Input: config.InputConfig{
			SourceDir:     dir,
			Pattern:       "*.pdf",
			RootDirectory: "Bills",
		},
		Output: config.OutputConfig{
			Dir:                 filepath.Join(dir, "output"),
			Format:              "normalized",
			DeduplicateStrategy: "keep_first",
		},
		Batch: config.BatchConfig{
			MaxWorkers:             2,
			LowConfidenceThreshold: 0.7,
		},
		Converter: config.ConverterConfig{
			MaxConcurrent:   1,
			ImageOnlyPolicy: "fail",
			Fallback:        true,
		},
		Database: config.DatabaseConfig{
			Path:         filepath.Join(dir, "data", "invoices.db"),
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		},
	}
}

func TestNewContainer(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(testConfig(t), nil)
	assert.Error(t, err)
}

func TestContainerDatabase(t *testing.T) {
	cfg := testConfig(t)
	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, c.Start(context.Background(), ComponentDatabase))
	assert.FileExists(t, cfg.Database.Path)

	store, err := c.ReportStore()
	require.NoError(t, err)
	runs, err := store.ListRuns(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)

	_, err = c.Pipeline()
	assert.ErrorIs(t, err, ErrNotStarted)
	_, err = c.BatchProcessor()
	assert.ErrorIs(t, err, ErrNotStarted)

	assert.Error(t, c.Start(context.Background(), ComponentDatabase), "second start")
	require.NoError(t, c.Close())
	assert.Error(t, c.Close(), "second close")
	assert.Error(t, c.Start(context.Background(), ComponentDatabase), "start after close")
}

func TestContainerPipeline(t *testing.T) {
	cfg := testConfig(t)
	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background(), ComponentPipeline))
	defer c.Close()

	_, err = c.Pipeline()
	require.NoError(t, err)

	_, err = c.ReportStore()
	assert.ErrorIs(t, err, ErrNotStarted)

	processor, err := c.BatchProcessor()
	require.NoError(t, err)

	svc, err := c.RunService(processor)
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestContainerStartFailures(t *testing.T) {
	t.Run("missing manifest closes the database", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Input.ManifestPath = filepath.Join(t.TempDir(), "missing.yaml")

		c, err := NewContainer(cfg, zap.NewNop())
		require.NoError(t, err)
		err = c.Start(context.Background(), ComponentDatabase|ComponentPipeline)
		assert.ErrorContains(t, err, "failed to initialize pipeline")

		_, err = c.ReportStore()
		assert.ErrorIs(t, err, ErrNotStarted)
	})

	t.Run("llm without key", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.OpenAI.Enabled = true

		c, err := NewContainer(cfg, zap.NewNop())
		require.NoError(t, err)
		assert.ErrorContains(t, c.Start(context.Background(), ComponentPipeline), "LLM extractor")
	})

	t.Run("database without path", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Database.Path = ""

		c, err := NewContainer(cfg, zap.NewNop())
		require.NoError(t, err)
		assert.ErrorContains(t, c.Start(context.Background(), ComponentDatabase), "failed to initialize database")
	})
}
