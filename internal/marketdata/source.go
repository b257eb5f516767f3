// Package marketdata defines the external collaborator interfaces the core
// consumes (spec §6: MarketDataSource, Clock) plus a job-scoped,
// singleflight-deduplicated caching adapter in front of them, generalised
// from the teacher's internal/esi/order_cache.go ETag cache. The adapter and
// its cache are owned by a single job and are never shared across jobs
// (spec §5 "Shared resources").
package marketdata

import (
	"context"
	"time"

	"marketcore/internal/domain"
)

// Source is the MarketDataSource collaborator of spec §6. It is an injected
// dependency, not implemented here — the core only consumes it.
type Source interface {
	// FetchPrices returns daily OHLCV bars for symbols in [start,end].
	FetchPrices(ctx context.Context, symbols []string, start, end time.Time) (*domain.PricePanel, error)
	// FetchBenchmarkReturns returns daily returns for a benchmark id, aligned
	// to business days.
	FetchBenchmarkReturns(ctx context.Context, benchmarkID string, start, end time.Time) ([]float64, error)
	// FetchRiskFreeRate returns a daily annualised rate series for a source.
	FetchRiskFreeRate(ctx context.Context, source string, start, end time.Time) ([]float64, error)
	// FetchOptionsChain returns option contracts for a symbol, optionally
	// filtered to one expiry.
	FetchOptionsChain(ctx context.Context, symbol string, expiry *time.Time) ([]domain.OptionContract, error)
}

// Clock is the injected time source of spec §6.
type Clock interface {
	Today() time.Time
}

// SystemClock is the production Clock, backed by time.Now.
type SystemClock struct{}

// Today returns the current UTC civil date.
func (SystemClock) Today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// FixedClock is a deterministic Clock for tests, returning a fixed date.
type FixedClock struct{ Date time.Time }

// Today returns the fixed date.
func (c FixedClock) Today() time.Time { return c.Date }
