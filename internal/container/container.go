package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/level10nurd/documentExtraction/internal/application/service"
	"github.com/level10nurd/documentExtraction/internal/config"
	"github.com/level10nurd/documentExtraction/internal/confidence"
	"github.com/level10nurd/documentExtraction/internal/convert"
	httpapi "github.com/level10nurd/documentExtraction/internal/interfaces/http"
	"github.com/level10nurd/documentExtraction/internal/invoice"
	"github.com/level10nurd/documentExtraction/internal/worker"
	"github.com/level10nurd/documentExtraction/pkg/database"
	"go.uber.org/zap"
)

// Component selects what Start initializes
type Component uint8

const (
	// ComponentDatabase opens the database and repositories
	ComponentDatabase Component = 1 << iota
	// ComponentPipeline builds the conversion and extraction pipeline
	ComponentPipeline
)

// ErrNotStarted is returned when a component is requested that Start did not initialize
var ErrNotStarted = errors.New("component not started")

// Container manages the application dependencies and their lifecycle.
// Components are initialized in dependency order and closed in reverse.
type Container struct {
	config *config.Config
	logger *zap.Logger

	// Data
	db           *database.DB
	repositories *RepositoryBundle

	// Extraction
	converter *convert.CachedConverter
	pipeline  *invoice.Pipeline

	// Lifecycle
	mu     sync.Mutex
	ready  atomic.Bool
	closed atomic.Bool
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes the selected components:
// 1. Database and repositories
// 2. Converter and extraction pipeline
func (c *Container) Start(ctx context.Context, components Component) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	if components&ComponentDatabase != 0 {
		db, err := ProvideDatabase(ctx, c.config.DBConfig(), c.logger)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		c.db = db
		c.repositories = ProvideRepositories(db, c.logger)
		c.logger.Info("Database initialized", zap.String("path", c.config.Database.Path))
	}

	if components&ComponentPipeline != 0 {
		c.converter = ProvideConverter(c.config.Converter, c.logger)
		pipeline, err := ProvidePipeline(c.config, c.converter, c.logger)
		if err != nil {
			c.closeDatabase()
			return fmt.Errorf("failed to initialize pipeline: %w", err)
		}
		c.pipeline = pipeline
		c.logger.Info("Extraction pipeline initialized",
			zap.Int("max_concurrent_conversions", c.config.Converter.MaxConcurrent))
	}

	c.ready.Store(true)
	return nil
}

// Close releases the components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	if c.converter != nil {
		hits, misses := c.converter.Stats()
		c.logger.Debug("Conversion cache",
			zap.Int64("hits", hits),
			zap.Int64("misses", misses))
	}

	err := c.closeDatabase()

	c.closed.Store(true)
	c.ready.Store(false)
	return err
}

func (c *Container) closeDatabase() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	if err != nil {
		c.logger.Error("Failed to close database", zap.Error(err))
		err = fmt.Errorf("close database: %w", err)
	}
	c.db = nil
	c.repositories = nil
	return err
}

// Pipeline returns the extraction pipeline
func (c *Container) Pipeline() (*invoice.Pipeline, error) {
	if c.pipeline == nil {
		return nil, fmt.Errorf("pipeline: %w", ErrNotStarted)
	}
	return c.pipeline, nil
}

// ReportStore returns the read side used by the report API
func (c *Container) ReportStore() (httpapi.ReportStore, error) {
	if c.repositories == nil {
		return nil, fmt.Errorf("database: %w", ErrNotStarted)
	}
	return httpapi.NewRepositoryStore(c.repositories.Runs, c.repositories.Invoices), nil
}

// BatchProcessor creates a processor scored with the configured profile table
// and probing the pipeline's converter before each batch.
func (c *Container) BatchProcessor() (*worker.BatchProcessor, error) {
	pipeline, err := c.Pipeline()
	if err != nil {
		return nil, err
	}
	table, err := c.config.ProfileTable()
	if err != nil {
		return nil, err
	}
	processor := worker.NewBatchProcessor(c.config.WorkerConfig(), confidence.NewScorer(table), c.logger)
	processor.SetHealthChecker(pipeline)
	return processor, nil
}

// RunService creates the batch run service over processor. Runs are persisted
// when the database was started.
func (c *Container) RunService(processor *worker.BatchProcessor) (service.RunService, error) {
	pipeline, err := c.Pipeline()
	if err != nil {
		return nil, err
	}
	strategy, err := c.config.DeduplicateStrategy()
	if err != nil {
		return nil, err
	}

	cfg := service.RunConfig{
		SourceDir: c.config.Input.SourceDir,
		Pattern:   c.config.Input.Pattern,
		Recursive: c.config.Input.Recursive,
		MaxFiles:  c.config.Input.MaxFiles,
		OutputDir: c.config.Output.Dir,
		Strategy:  strategy,
		Tolerance: c.config.FuzzyTolerance(),
		Export:    c.config.ExportConfig(),
	}

	var (
		runs service.RunRecorder
		seen service.SeenChecker
	)
	if c.repositories != nil {
		runs = c.repositories.Runs
		seen = c.repositories.Invoices
	}
	return service.NewRunService(cfg, processor, pipeline.Extract, runs, seen, c.logger), nil
}
