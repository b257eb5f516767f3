// Package riskmetrics implements the Metrics & Risk Analytics component
// (C4): return/ratio calculations, drawdown, tail-risk (VaR/CVaR),
// correlation diagnostics, Monte Carlo simulation, and stress scenarios.
// It is grounded on the teacher's internal/engine/risk.go and portfolio.go
// (EWMA volatility, Cornish-Fisher tail risk, Sharpe/Calmar/drawdown-run
// bookkeeping), generalized from EVE wallet P&L series to arbitrary return
// series and reusing internal/corekit's numeric helpers instead of
// reimplementing them locally.
package riskmetrics

import (
	"math"

	"marketcore/internal/corekit"
)

// TradingDaysPerYear is the annualisation factor used throughout (spec §4.4).
const TradingDaysPerYear = 252

// DailyReturns computes arithmetic daily returns from an equity curve of
// length n>=2. Returns an empty slice for n<2.
func DailyReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (equity[i]-equity[i-1])/equity[i-1])
	}
	return out
}

// CAGR computes the compound annual growth rate from the first and last
// equity values over numPeriods=n-1 trading days, per spec §4.4.
func CAGR(start, end float64, numPeriods int) float64 {
	if start <= 0 || numPeriods <= 0 {
		return 0
	}
	ratio := end / start
	if ratio <= 0 {
		return -1
	}
	exponent := float64(TradingDaysPerYear) / float64(numPeriods)
	return math.Pow(ratio, exponent) - 1
}

// AnnualizedReturn annualises the mean daily return of returns.
func AnnualizedReturn(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	return corekit.Mean(returns) * TradingDaysPerYear
}

// AnnualizedVolatility annualises the sample standard deviation of returns.
func AnnualizedVolatility(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	return corekit.SampleStdDev(returns) * math.Sqrt(TradingDaysPerYear)
}
