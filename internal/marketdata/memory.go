package marketdata

import (
	"context"
	"time"

	"marketcore/internal/corekit"
	"marketcore/internal/domain"
)

// MemorySource is a deterministic, in-memory Source implementation for
// tests and the CLI's offline demo paths. It never calls out to the
// network; data is seeded via the exported fields before use.
type MemorySource struct {
	Panel             *domain.PricePanel
	BenchmarkReturns  map[string][]float64
	RiskFreeRates     map[string][]float64
	OptionsChains     map[string][]domain.OptionContract
}

// NewMemorySource returns an empty MemorySource ready for seeding.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		BenchmarkReturns: make(map[string][]float64),
		RiskFreeRates:    make(map[string][]float64),
		OptionsChains:    make(map[string][]domain.OptionContract),
	}
}

// FetchPrices returns the seeded panel, restricted to the requested symbols
// and date range. Returns a DataUnavailable error if no panel was seeded.
func (m *MemorySource) FetchPrices(_ context.Context, symbols []string, start, end time.Time) (*domain.PricePanel, error) {
	if m.Panel == nil {
		return nil, corekit.DataUnavailablef(symbols, "no market data seeded")
	}
	var dates []time.Time
	for _, d := range m.Panel.Dates {
		if !d.Before(start) && !d.After(end) {
			dates = append(dates, d)
		}
	}
	out := domain.NewPricePanel(dates, symbols)
	for _, sym := range symbols {
		for i, d := range dates {
			srcIdx := m.Panel.IndexOf(d)
			if srcIdx < 0 {
				continue
			}
			if bar, ok := m.Panel.Bar(sym, srcIdx); ok {
				out.Set(sym, i, bar)
			}
		}
	}
	return out, nil
}

// FetchBenchmarkReturns returns the seeded series for benchmarkID, or an
// empty series if none was seeded.
func (m *MemorySource) FetchBenchmarkReturns(_ context.Context, benchmarkID string, _, _ time.Time) ([]float64, error) {
	return m.BenchmarkReturns[benchmarkID], nil
}

// FetchRiskFreeRate returns the seeded series for source, or an empty series.
func (m *MemorySource) FetchRiskFreeRate(_ context.Context, source string, _, _ time.Time) ([]float64, error) {
	return m.RiskFreeRates[source], nil
}

// FetchOptionsChain returns the seeded chain for symbol.
func (m *MemorySource) FetchOptionsChain(_ context.Context, symbol string, expiry *time.Time) ([]domain.OptionContract, error) {
	chain := m.OptionsChains[symbol]
	if expiry == nil {
		return chain, nil
	}
	var filtered []domain.OptionContract
	for _, c := range chain {
		if c.Expiry.Equal(*expiry) {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}
