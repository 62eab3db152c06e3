package worker

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/level10nurd/documentExtraction/internal/models"
)

// RetryStrategy defines exponential backoff retry logic
type RetryStrategy struct {
	MaxAttempts int           // Default: 3
	BaseBackoff time.Duration // Default: 1 second
	MaxBackoff  time.Duration // Default: 8 seconds
	Jitter      bool          // Enable jitter (default: true)
}

// NewRetryStrategy creates a new RetryStrategy with defaults
func NewRetryStrategy() *RetryStrategy {
	return &RetryStrategy{
		MaxAttempts: 3,
		BaseBackoff: 1 * time.Second,
		MaxBackoff:  8 * time.Second,
		Jitter:      true,
	}
}

// CalculateBackoff returns duration until next retry attempt
// Implements exponential backoff: 1s, 2s, 4s, 8s...
func (s *RetryStrategy) CalculateBackoff(attemptNumber int) time.Duration {
	if attemptNumber <= 0 {
		return s.BaseBackoff
	}

	multiplier := math.Pow(2, float64(attemptNumber-1))
	backoff := time.Duration(multiplier) * s.BaseBackoff
	if backoff > s.MaxBackoff {
		backoff = s.MaxBackoff
	}

	// ±10% of backoff, never below the base
	if s.Jitter {
		jitterRange := backoff / 10
		if jitterRange > 0 {
			backoff += time.Duration(rand.Int63n(int64(jitterRange*2))) - jitterRange
			if backoff < s.BaseBackoff {
				backoff = s.BaseBackoff
			}
		}
	}

	return backoff
}

type temporary interface {
	Temporary() bool
}

// IsTemporaryError determines if error is retryable.
// Timeouts are final: the per-file deadline covers every attempt.
func (s *RetryStrategy) IsTemporaryError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, models.ErrTimeout) || errors.Is(err, models.ErrEnvironment) {
		return false
	}
	if errors.Is(err, models.ErrTransient) {
		return true
	}

	var t temporary
	return errors.As(err, &t) && t.Temporary()
}

// Do runs fn until it succeeds, fails permanently, attempts run out or ctx ends.
// A nil strategy runs fn once.
func (s *RetryStrategy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if s == nil {
		return fn(ctx)
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil || attempt >= s.MaxAttempts || !s.IsTemporaryError(err) {
			return err
		}

		timer := time.NewTimer(s.CalculateBackoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}
