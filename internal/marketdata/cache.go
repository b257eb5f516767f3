package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"marketcore/internal/domain"
)

// DefaultCallDeadline is the per-call deadline applied to every call through
// a CachingSource built without its own; a caller's context deadline that
// is earlier still wins (spec §5, "Individual
// data-fetch calls to the external MarketDataSource carry a per-call
// deadline (default 30s)").
const DefaultCallDeadline = 30 * time.Second

// panelCacheEntry holds one fetched price panel.
type panelCacheEntry struct {
	panel    *domain.PricePanel
	fetchedAt time.Time
}

// CachingSource wraps a Source with a job-scoped price-panel cache and
// singleflight request coalescing, adapted from the teacher's
// internal/esi/order_cache.go (ETag cache + singleflight.Group). Unlike the
// teacher's cache, this one has no TTL/eviction policy: its lifetime is the
// owning job's lifetime (spec §5), so it is simply discarded when the job
// ends rather than aged out.
type CachingSource struct {
	inner Source

	mu      sync.RWMutex
	panels  map[string]*panelCacheEntry
	group   singleflight.Group

	callDeadline time.Duration
}

// NewCachingSource wraps inner with a fresh, empty cache. callDeadline <= 0
// uses DefaultCallDeadline.
func NewCachingSource(inner Source, callDeadline time.Duration) *CachingSource {
	if callDeadline <= 0 {
		callDeadline = DefaultCallDeadline
	}
	return &CachingSource{
		inner:        inner,
		panels:       make(map[string]*panelCacheEntry),
		callDeadline: callDeadline,
	}
}

func panelKey(symbols []string, start, end time.Time) string {
	key := fmt.Sprintf("%d-%d|", start.Unix(), end.Unix())
	for _, s := range symbols {
		key += s + ","
	}
	return key
}

// FetchPrices fetches (or returns the cached) price panel for the exact
// (symbols, start, end) key, deduplicating concurrent identical requests via
// singleflight exactly as the teacher deduplicates concurrent region-order
// fetches.
func (c *CachingSource) FetchPrices(ctx context.Context, symbols []string, start, end time.Time) (*domain.PricePanel, error) {
	key := panelKey(symbols, start, end)

	c.mu.RLock()
	if entry, ok := c.panels[key]; ok {
		c.mu.RUnlock()
		return entry.panel, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.callDeadline)
		defer cancel()
		panel, ferr := c.inner.FetchPrices(callCtx, symbols, start, end)
		if ferr != nil {
			return nil, ferr
		}
		c.mu.Lock()
		c.panels[key] = &panelCacheEntry{panel: panel, fetchedAt: time.Now()}
		c.mu.Unlock()
		return panel, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.PricePanel), nil
}

// FetchBenchmarkReturns delegates directly; benchmark series are small and
// fetched once per job, so caching adds no value here.
func (c *CachingSource) FetchBenchmarkReturns(ctx context.Context, benchmarkID string, start, end time.Time) ([]float64, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callDeadline)
	defer cancel()
	return c.inner.FetchBenchmarkReturns(callCtx, benchmarkID, start, end)
}

// FetchRiskFreeRate delegates directly, same rationale as FetchBenchmarkReturns.
func (c *CachingSource) FetchRiskFreeRate(ctx context.Context, source string, start, end time.Time) ([]float64, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callDeadline)
	defer cancel()
	return c.inner.FetchRiskFreeRate(callCtx, source, start, end)
}

// FetchOptionsChain delegates directly.
func (c *CachingSource) FetchOptionsChain(ctx context.Context, symbol string, expiry *time.Time) ([]domain.OptionContract, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callDeadline)
	defer cancel()
	return c.inner.FetchOptionsChain(callCtx, symbol, expiry)
}
