// Package backtest implements the Backtest Executor (C3): an event-driven,
// day-by-day simulation over a PricePanel that sizes, costs and executes
// trades generated by a TradingStrategy's signal composites, and optionally
// partitions the run into walk-forward train/test windows.
package backtest

import (
	"marketcore/internal/domain"
)

// Result is the output of a single (non-walk-forward) backtest run.
type Result struct {
	Metrics       domain.PerformanceMetrics  `json:"metrics"`
	EquityCurve   []domain.PortfolioSnapshot `json:"equity_curve"`
	Trades        []domain.Trade             `json:"trades"`
	BenchmarkUsed bool                       `json:"benchmark_used"`
}

// WalkForwardResult stitches together the per-window results of a
// walk-forward run, plus the overfitting diagnostic of SPEC_FULL.md's
// supplemented features.
type WalkForwardResult struct {
	Windows                []WindowResult `json:"windows"`
	Stitched               Result         `json:"stitched"`
	OverfittingScore        float64       `json:"overfitting_score"`
	FellBackToSingleWindow bool           `json:"fell_back_to_single_window"`
}

// WindowResult is one train/test partition's outcome.
type WindowResult struct {
	TrainSharpe float64     `json:"train_sharpe"`
	TestSharpe  float64     `json:"test_sharpe"`
	TestResult  Result      `json:"test_result"`
	BestParams  *domain.TradingStrategy `json:"best_params,omitempty"`
}
