package worker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/level10nurd/documentExtraction/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testFiles(n int) []string {
	files := make([]string, n)
	for i := range files {
		files[i] = fmt.Sprintf("/bills/invoice_%02d.pdf", i+1)
	}
	return files
}

func newTestProcessor(cfg Config) *BatchProcessor {
	return NewBatchProcessor(cfg, nil, zap.NewNop())
}

// completeExtract returns a fully populated record per file
func completeExtract(_ context.Context, path string) (*models.Record, error) {
	r := models.NewRecord(models.VendorOmico, filepath.Base(path))
	r.SourcePath = path
	r.InvoiceNumber = filepath.Base(path)
	r.InvoiceDate = models.Date(2025, 4, 1)
	r.PONumber = "PO-1"
	r.Total = models.MustAmount("10.00")
	r.LineItems = []models.LineItem{{Amount: models.MustAmount("10.00").Decimal}}
	return r, nil
}

type fakeHealth struct {
	err   error
	calls int32
}

func (f *fakeHealth) Check(ctx context.Context) error {
	atomic.AddInt32(&f.calls, 1)
	return f.err
}

func TestProcess_AllSucceed(t *testing.T) {
	p := newTestProcessor(Config{MaxWorkers: 3})

	result, err := p.Process(context.Background(), testFiles(7), completeExtract)
	require.NoError(t, err)

	assert.Len(t, result.Successes, 7)
	assert.Empty(t, result.Failures)
	assert.False(t, result.Cancelled)
	assert.NotEmpty(t, result.RunID)
	for _, r := range result.Successes {
		assert.Equal(t, 1.0, r.Confidence)
	}
	for i := 1; i < len(result.Successes); i++ {
		assert.Less(t, result.Successes[i-1].Key(), result.Successes[i].Key())
	}
}

func TestProcess_AllFailIsNotAnError(t *testing.T) {
	p := newTestProcessor(Config{MaxWorkers: 4})
	files := testFiles(6)

	result, err := p.Process(context.Background(), files, func(ctx context.Context, path string) (*models.Record, error) {
		return nil, fmt.Errorf("%w: no total found", models.ErrExtraction)
	})
	require.NoError(t, err)

	assert.Empty(t, result.Successes)
	require.Len(t, result.Failures, len(files))
	for i, f := range result.Failures {
		assert.Equal(t, files[i], f.Path)
		assert.Equal(t, filepath.Base(files[i]), f.Filename)
		assert.Equal(t, models.StatusFailedExtraction, f.Status)
		assert.Contains(t, f.Reason, "no total found")
	}
}

func TestProcess_OneFailureDoesNotAffectOthers(t *testing.T) {
	p := newTestProcessor(Config{MaxWorkers: 2})
	files := testFiles(5)

	result, err := p.Process(context.Background(), files, func(ctx context.Context, path string) (*models.Record, error) {
		if path == files[2] {
			return nil, fmt.Errorf("%w: broken xref table", models.ErrConversion)
		}
		return completeExtract(ctx, path)
	})
	require.NoError(t, err)

	assert.Len(t, result.Successes, 4)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, models.StatusFailedConversion, result.Failures[0].Status)
}

func TestProcess_FastFailOnFirstFileEnvironmentError(t *testing.T) {
	p := newTestProcessor(Config{MaxWorkers: 4})
	var calls int32

	result, err := p.Process(context.Background(), testFiles(246), func(ctx context.Context, path string) (*models.Record, error) {
		atomic.AddInt32(&calls, 1)
		return nil, fmt.Errorf("%w: libmupdf not found", models.ErrEnvironment)
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrEnvironment))
	assert.Nil(t, result)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestProcess_FastFailOnHealthCheck(t *testing.T) {
	p := newTestProcessor(Config{})
	health := &fakeHealth{err: errors.New("cannot open embedded probe document")}
	p.SetHealthChecker(health)
	var calls int32

	result, err := p.Process(context.Background(), testFiles(3), func(ctx context.Context, path string) (*models.Record, error) {
		atomic.AddInt32(&calls, 1)
		return completeExtract(ctx, path)
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrEnvironment))
	assert.Contains(t, err.Error(), "cannot open embedded probe document")
	assert.Nil(t, result)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestProcess_HealthyCheckerRunsBatch(t *testing.T) {
	p := newTestProcessor(Config{})
	health := &fakeHealth{}
	p.SetHealthChecker(health)

	result, err := p.Process(context.Background(), testFiles(3), completeExtract)
	require.NoError(t, err)

	assert.Len(t, result.Successes, 3)
	assert.Equal(t, int32(1), atomic.LoadInt32(&health.calls))
}

func TestProcess_CancelAfterTwoUnits(t *testing.T) {
	p := newTestProcessor(Config{MaxWorkers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	result, err := p.Process(ctx, testFiles(10), func(unitCtx context.Context, path string) (*models.Record, error) {
		if atomic.AddInt32(&calls, 1) == 2 {
			cancel()
		}
		return completeExtract(unitCtx, path)
	})
	require.NoError(t, err)

	assert.True(t, result.Cancelled)
	assert.Equal(t, 2, len(result.Successes)+len(result.Failures))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestProcess_InFlightUnitsFinishAfterCancel(t *testing.T) {
	p := newTestProcessor(Config{MaxWorkers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	result, err := p.Process(ctx, testFiles(5), func(unitCtx context.Context, path string) (*models.Record, error) {
		if atomic.AddInt32(&calls, 1) == 2 {
			cancel()
			select {
			case <-unitCtx.Done():
				return nil, errors.New("unit context was cancelled with the batch")
			case <-time.After(20 * time.Millisecond):
			}
		}
		return completeExtract(unitCtx, path)
	})
	require.NoError(t, err)

	assert.True(t, result.Cancelled)
	assert.Len(t, result.Successes, 2)
	assert.Empty(t, result.Failures)
}

func TestProcess_AlreadyCancelled(t *testing.T) {
	p := newTestProcessor(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := p.Process(ctx, testFiles(3), completeExtract)
	require.NoError(t, err)

	assert.True(t, result.Cancelled)
	assert.Empty(t, result.Successes)
	assert.Empty(t, result.Failures)
}

func TestProcess_Timeout(t *testing.T) {
	p := newTestProcessor(Config{MaxWorkers: 2, FileTimeout: 20 * time.Millisecond})
	files := testFiles(3)
	release := make(chan struct{})
	defer close(release)

	result, err := p.Process(context.Background(), files, func(ctx context.Context, path string) (*models.Record, error) {
		if path == files[1] {
			<-release
		}
		return completeExtract(ctx, path)
	})
	require.NoError(t, err)

	assert.Len(t, result.Successes, 2)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, models.StatusTimeout, result.Failures[0].Status)
	assert.Equal(t, files[1], result.Failures[0].Path)
}

func TestProcess_PanicIsRecorded(t *testing.T) {
	p := newTestProcessor(Config{MaxWorkers: 2})
	files := testFiles(3)

	result, err := p.Process(context.Background(), files, func(ctx context.Context, path string) (*models.Record, error) {
		if path == files[2] {
			panic("index out of range in table parser")
		}
		return completeExtract(ctx, path)
	})
	require.NoError(t, err)

	assert.Len(t, result.Successes, 2)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, models.StatusFailedExtraction, result.Failures[0].Status)
	assert.Contains(t, result.Failures[0].Reason, "index out of range in table parser")
}

func TestProcess_RetriesTransientErrors(t *testing.T) {
	p := newTestProcessor(Config{
		MaxWorkers: 1,
		Retry:      &RetryStrategy{MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond},
	})

	var mu sync.Mutex
	attempts := make(map[string]int)
	result, err := p.Process(context.Background(), testFiles(2), func(ctx context.Context, path string) (*models.Record, error) {
		mu.Lock()
		attempts[path]++
		n := attempts[path]
		mu.Unlock()
		if n < 3 {
			return nil, fmt.Errorf("%w: rate limited", models.ErrTransient)
		}
		return completeExtract(ctx, path)
	})
	require.NoError(t, err)

	assert.Len(t, result.Successes, 2)
	for _, n := range attempts {
		assert.Equal(t, 3, n)
	}
}

func TestProcess_ImageOnlyPolicy(t *testing.T) {
	files := testFiles(2)
	extract := func(ctx context.Context, path string) (*models.Record, error) {
		if path == files[0] {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), models.ErrImageOnly)
		}
		return completeExtract(ctx, path)
	}

	t.Run("fail", func(t *testing.T) {
		result, err := newTestProcessor(Config{}).Process(context.Background(), files, extract)
		require.NoError(t, err)
		require.Len(t, result.Failures, 1)
		assert.Equal(t, models.StatusFailedConversion, result.Failures[0].Status)
		assert.Empty(t, result.Excluded)
	})

	t.Run("exclude", func(t *testing.T) {
		result, err := newTestProcessor(Config{ImageOnlyPolicy: ImageOnlyExclude}).Process(context.Background(), files, extract)
		require.NoError(t, err)
		assert.Empty(t, result.Failures)
		require.Len(t, result.Excluded, 1)
		assert.Equal(t, models.StatusSkipped, result.Excluded[0].Status)
		assert.Len(t, result.Successes, 1)
	})
}

func TestProcess_ProgressIsIncremental(t *testing.T) {
	p := newTestProcessor(Config{MaxWorkers: 3})
	var seen []int
	p.SetProgress(func(done, total int, filename string, status models.ProcessingStatus) {
		assert.Equal(t, 5, total)
		seen = append(seen, done)
	})

	_, err := p.Process(context.Background(), testFiles(5), completeExtract)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3, 4, 5}, seen)
}

func TestProcess_MaxFiles(t *testing.T) {
	p := newTestProcessor(Config{MaxFiles: 3})
	files := testFiles(8)

	result, err := p.Process(context.Background(), files, completeExtract)
	require.NoError(t, err)

	require.Len(t, result.Successes, 3)
	for i, r := range result.Successes {
		assert.Equal(t, files[i], r.SourcePath)
	}
}

func TestProcess_DeterministicStatistics(t *testing.T) {
	files := testFiles(6)
	extract := func(ctx context.Context, path string) (*models.Record, error) {
		r, _ := completeExtract(ctx, path)
		switch path {
		case files[1]:
			r.PONumber = ""
		case files[3]:
			r.InvoiceDate = nil
		case files[4]:
			return nil, fmt.Errorf("%w: unreadable", models.ErrConversion)
		}
		return r, nil
	}

	run := func() models.Statistics {
		result, err := newTestProcessor(Config{MaxWorkers: 1}).Process(context.Background(), files, extract)
		require.NoError(t, err)
		stats := result.Statistics()
		stats.Elapsed = 0
		return stats
	}

	first := run()
	second := run()

	assert.Equal(t, first, second)
	assert.Equal(t, 5, first.Succeeded)
	assert.Equal(t, 1, first.Failed)
	assert.Equal(t, 0.94, first.AverageConfidence)
}

func TestProcess_VendorAverageFromScorer(t *testing.T) {
	files := []string{"/bills/a.pdf", "/bills/b.pdf", "/bills/c.pdf"}
	extract := func(ctx context.Context, path string) (*models.Record, error) {
		r, _ := completeExtract(ctx, path)
		r.Vendor = "A"
		switch path {
		case files[1]:
			r.InvoiceDate = nil // 0.8
		case files[2]:
			r.InvoiceDate = nil
			r.Total.Valid = false // 0.5
		}
		return r, nil
	}

	result, err := newTestProcessor(Config{MaxWorkers: 2}).Process(context.Background(), files, extract)
	require.NoError(t, err)

	assert.Equal(t, 0.7667, result.Statistics().ByVendor["A"].AverageConfidence)
}

func TestProcess_NoFiles(t *testing.T) {
	result, err := newTestProcessor(Config{}).Process(context.Background(), nil, completeExtract)
	require.NoError(t, err)
	assert.Empty(t, result.Successes)
	assert.False(t, result.Cancelled)
}
