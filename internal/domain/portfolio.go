package domain

import "time"

// Side is the direction of a Trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Position is one open holding in a backtest portfolio (spec §3).
// Invariant: MarketValue == float64(Quantity) * CurrentPrice.
type Position struct {
	Symbol        string    `json:"symbol"`
	Quantity      int64     `json:"quantity"` // may be zero; internal/backtest drops a position from its book once fully sold
	EntryPrice    float64   `json:"entry_price"`
	EntryDate     time.Time `json:"entry_date"`
	CurrentPrice  float64   `json:"current_price"`
	MarketValue   float64   `json:"market_value"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	Weight        float64   `json:"weight"` // in [0,1]
}

// Recompute refreshes the derived fields from a new mark price and the
// portfolio's total value, enforcing the MarketValue invariant.
func (p *Position) Recompute(price, totalValue float64) {
	p.CurrentPrice = price
	p.MarketValue = float64(p.Quantity) * price
	p.UnrealizedPnL = float64(p.Quantity) * (price - p.EntryPrice)
	if totalValue > 0 {
		p.Weight = p.MarketValue / totalValue
	} else {
		p.Weight = 0
	}
}

// Trade is one executed buy or sell leg (spec §3). Carries stable JSON tags
// per SPEC_FULL.md's trade-log export shape, even though no HTTP layer
// renders it in this module — the job result payload is the consumer.
type Trade struct {
	ID             string    `json:"id"`
	Symbol         string    `json:"symbol"`
	Side           Side      `json:"side"`
	Quantity       int64     `json:"quantity"` // > 0
	ExecutedPrice  float64   `json:"executed_price"`
	Timestamp      time.Time `json:"timestamp"`
	Commission     float64   `json:"commission"`
	Slippage       float64   `json:"slippage"`
	MarketImpact   float64   `json:"market_impact"`
	SignalStrength float64   `json:"signal_strength"` // [0,1]
	RealizedPnL    *float64  `json:"realized_pnl,omitempty"` // populated only on SELL
	ReturnPct      *float64  `json:"return_pct,omitempty"`   // populated only on SELL
}

// TotalCost returns the sum of the commission, slippage and market-impact
// components recorded on the trade (spec §4.3 Cost Model). The spread
// component is charged against cash at execution but is not stored on the
// Trade, so it is not included here.
func (t Trade) TotalCost() float64 {
	return t.Commission + t.Slippage + t.MarketImpact
}

// PortfolioSnapshot is the end-of-day portfolio state (spec §3).
// Invariant: |TotalValue - (Cash + Σ position.MarketValue)| / TotalValue < 1e-9.
type PortfolioSnapshot struct {
	Date               time.Time  `json:"date"`
	TotalValue         float64    `json:"total_value"`
	Cash               float64    `json:"cash"`
	Positions          []Position `json:"positions"`
	DailyReturn        float64    `json:"daily_return"`
	DailyReturnPct     float64    `json:"daily_return_pct"`
	BenchmarkReturnPct *float64   `json:"benchmark_return_pct,omitempty"`
	GrossExposure      float64    `json:"gross_exposure"`
	NetExposure        float64    `json:"net_exposure"`
	Leverage           float64    `json:"leverage"`
}

// PerformanceMetrics is the full analytics summary of a backtest run
// (spec §3, §4.4).
type PerformanceMetrics struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	CAGR             float64 `json:"cagr"`
	Volatility       float64 `json:"volatility"`
	Sharpe           float64 `json:"sharpe"`
	Sortino          float64 `json:"sortino"`
	Calmar           float64 `json:"calmar"`
	MaxDrawdown      float64 `json:"max_drawdown"` // <= 0
	DrawdownDuration int     `json:"drawdown_duration"` // trading days
	VaR95            float64 `json:"var_95"`
	CVaR95           float64 `json:"cvar_95"`
	Skew             float64 `json:"skew"`
	Kurtosis         float64 `json:"kurtosis"`
	Alpha            float64 `json:"alpha"`
	Beta             float64 `json:"beta"`
	InformationRatio float64 `json:"information_ratio"`
	TrackingError    float64 `json:"tracking_error"`
	TotalTrades      int     `json:"total_trades"`
	WinningTrades    int     `json:"winning_trades"`
	LosingTrades     int     `json:"losing_trades"`
	WinRate          float64 `json:"win_rate"`
	ProfitFactor     float64 `json:"profit_factor"`
}
