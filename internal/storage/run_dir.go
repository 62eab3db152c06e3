package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// RunDirLayout is the time layout of run directory names
const RunDirLayout = "20060102_150405"

// maxCollisions bounds the _N suffix search
const maxCollisions = 1000

// RunDirManager creates one output directory per run under a base directory
type RunDirManager struct {
	baseDir string
	logger  *zap.Logger
}

// NewRunDirManager creates a new RunDirManager
func NewRunDirManager(baseDir string, logger *zap.Logger) *RunDirManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunDirManager{
		baseDir: baseDir,
		logger:  logger,
	}
}

// Create makes run_YYYYMMDD_HHMMSS for now, adding _2, _3, ... when the
// directory already exists, and returns its path
func (m *RunDirManager) Create(now time.Time) (string, error) {
	if err := os.MkdirAll(m.baseDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	name := "run_" + now.Format(RunDirLayout)
	for n := 1; n <= maxCollisions; n++ {
		candidate := name
		if n > 1 {
			candidate = fmt.Sprintf("%s_%d", name, n)
		}
		path := filepath.Join(m.baseDir, candidate)

		// Mkdir fails on an existing directory, so concurrent runs never share one
		err := os.Mkdir(path, 0755)
		if err == nil {
			m.logger.Debug("Created run directory", zap.String("path", path))
			return path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			m.logger.Error("Failed to create run directory",
				zap.String("path", path),
				zap.Error(err))
			return "", fmt.Errorf("failed to create run directory: %w", err)
		}
	}
	return "", fmt.Errorf("failed to create run directory: %s has %d collisions", name, maxCollisions)
}
