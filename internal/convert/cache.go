package convert

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/level10nurd/documentExtraction/internal/models"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// CachedConverter memoizes documents by absolute path for the life of the process.
// Entries never expire and are never evicted; failed conversions are not cached.
// Concurrent misses for the same path share one conversion, which outlives
// callers that give up on their own deadline.
type CachedConverter struct {
	next   Converter
	docs   *cache.Cache
	group  singleflight.Group
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedConverter wraps next with a process lifetime cache
func NewCachedConverter(next Converter) *CachedConverter {
	return &CachedConverter{
		next: next,
		docs: cache.New(cache.NoExpiration, 0),
	}
}

// Convert returns the cached document or converts and stores it
func (c *CachedConverter) Convert(ctx context.Context, path string) (*Document, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to resolve path: %w", models.ErrConversion, err)
	}

	if v, ok := c.docs.Get(key); ok {
		c.hits.Add(1)
		return v.(*Document), nil
	}

	// The shared conversion ignores the first caller's deadline; each caller waits on its own
	ch := c.group.DoChan(key, func() (interface{}, error) {
		if v, ok := c.docs.Get(key); ok {
			return v, nil
		}
		c.misses.Add(1)
		doc, err := c.next.Convert(context.WithoutCancel(ctx), path)
		if err != nil {
			return nil, err
		}
		c.docs.Set(key, doc, cache.NoExpiration)
		return doc, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", models.ErrTimeout, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Document), nil
	}
}

// Check delegates to the wrapped converter
func (c *CachedConverter) Check(ctx context.Context) error {
	if hc, ok := c.next.(HealthChecker); ok {
		return hc.Check(ctx)
	}
	return nil
}

// Len returns the number of cached documents
func (c *CachedConverter) Len() int {
	return c.docs.ItemCount()
}

// Stats returns cache hits and misses
func (c *CachedConverter) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
