package convert

import (
	"context"
	"errors"
	"fmt"

	"github.com/level10nurd/documentExtraction/internal/models"
	"golang.org/x/sync/semaphore"
)

// LimitedConverter caps concurrent calls into a converter that is not
// known to be safe for concurrent use, independent of the batch worker count.
type LimitedConverter struct {
	next Converter
	sem  *semaphore.Weighted
}

// NewLimitedConverter allows at most n concurrent conversions (n < 1 means 1)
func NewLimitedConverter(next Converter, n int) *LimitedConverter {
	if n < 1 {
		n = 1
	}
	return &LimitedConverter{next: next, sem: semaphore.NewWeighted(int64(n))}
}

// Convert waits for a slot and converts
func (c *LimitedConverter) Convert(ctx context.Context, path string) (*Document, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: waiting for converter: %w", models.ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: waiting for converter: %w", models.ErrConversion, err)
	}
	defer c.sem.Release(1)

	return c.next.Convert(ctx, path)
}

// Check delegates to the wrapped converter
func (c *LimitedConverter) Check(ctx context.Context) error {
	if hc, ok := c.next.(HealthChecker); ok {
		return hc.Check(ctx)
	}
	return nil
}
