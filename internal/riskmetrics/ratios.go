package riskmetrics

import (
	"math"

	"marketcore/internal/corekit"
)

// Sharpe computes the annualised Sharpe ratio of daily returns against an
// annual risk-free rate rf. Returns 0 when volatility is zero, per spec §4.4.
func Sharpe(returns []float64, rf float64) float64 {
	vol := AnnualizedVolatility(returns)
	if vol == 0 {
		return 0
	}
	return (AnnualizedReturn(returns) - rf) / vol
}

// Sortino computes the annualised Sortino ratio, using downside deviation
// of returns below target (risk-free, or 0) as the denominator.
func Sortino(returns []float64, rf, target float64) float64 {
	downside := downsideDeviation(returns, target)
	if downside == 0 {
		return 0
	}
	return (AnnualizedReturn(returns) - rf) / downside
}

func downsideDeviation(returns []float64, target float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	var sumSq float64
	var count int
	for _, r := range returns {
		if r < target {
			d := r - target
			sumSq += d * d
			count++
		}
	}
	if count == 0 {
		return 0
	}
	dailyDownside := math.Sqrt(sumSq / float64(count))
	return dailyDownside * math.Sqrt(TradingDaysPerYear)
}

// Calmar computes annualised return divided by |MaxDrawdown|. 0 when MDD=0.
func Calmar(returns []float64, maxDrawdown float64) float64 {
	if maxDrawdown == 0 {
		return 0
	}
	return AnnualizedReturn(returns) / math.Abs(maxDrawdown)
}

// InformationRatio computes mean(excess)*252/trackingError, aligning
// portfolio and benchmark returns by index and truncating both to the
// shorter length, per the Open-Question decision on benchmark alignment.
func InformationRatio(portfolioReturns, benchmarkReturns []float64) float64 {
	n := minLen(portfolioReturns, benchmarkReturns)
	if n == 0 {
		return 0
	}
	excess := make([]float64, n)
	for i := 0; i < n; i++ {
		excess[i] = portfolioReturns[i] - benchmarkReturns[i]
	}
	te := TrackingError(portfolioReturns, benchmarkReturns)
	if te == 0 {
		return 0
	}
	return corekit.Mean(excess) * TradingDaysPerYear / te
}

// TrackingError is the annualised standard deviation of the excess-return
// series between portfolio and benchmark.
func TrackingError(portfolioReturns, benchmarkReturns []float64) float64 {
	n := minLen(portfolioReturns, benchmarkReturns)
	if n < 2 {
		return 0
	}
	excess := make([]float64, n)
	for i := 0; i < n; i++ {
		excess[i] = portfolioReturns[i] - benchmarkReturns[i]
	}
	return corekit.SampleStdDev(excess) * math.Sqrt(TradingDaysPerYear)
}

// Omega computes the Omega ratio at threshold tau: sum of gains above tau
// over sum of losses below tau.
func Omega(returns []float64, tau float64) float64 {
	var gains, losses float64
	for _, r := range returns {
		if r > tau {
			gains += r - tau
		} else {
			losses += tau - r
		}
	}
	if losses == 0 {
		return 0
	}
	return gains / losses
}

// Beta computes the portfolio's beta against the benchmark via
// cov(portfolio,benchmark)/var(benchmark), aligned by index.
func Beta(portfolioReturns, benchmarkReturns []float64) float64 {
	n := minLen(portfolioReturns, benchmarkReturns)
	if n < 2 {
		return 0
	}
	p := portfolioReturns[:n]
	b := benchmarkReturns[:n]
	benchVar := corekit.Variance(b)
	if benchVar == 0 {
		return 0
	}
	pMean := corekit.Mean(p)
	bMean := corekit.Mean(b)
	var cov float64
	for i := 0; i < n; i++ {
		cov += (p[i] - pMean) * (b[i] - bMean)
	}
	cov /= float64(n)
	return cov / benchVar
}

// Alpha computes Jensen's alpha: annualised portfolio return minus beta
// times annualised benchmark return.
func Alpha(portfolioReturns, benchmarkReturns []float64, beta float64) float64 {
	return AnnualizedReturn(portfolioReturns) - beta*AnnualizedReturn(benchmarkReturns)
}

func minLen(a, b []float64) int {
	if len(a) < len(b) {
		return len(a)
	}
	return len(b)
}
