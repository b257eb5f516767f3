package riskmetrics

import (
	"marketcore/internal/corekit"
	"marketcore/internal/domain"
)

// Aggregate builds a complete domain.PerformanceMetrics from a backtest's
// equity curve and trade log, optionally against a benchmark return series,
// at risk-free rate rf (annualised), per spec §4.4.
func Aggregate(equity []domain.PortfolioSnapshot, trades []domain.Trade, benchmarkReturns []float64, rf float64) domain.PerformanceMetrics {
	if len(equity) == 0 {
		return domain.PerformanceMetrics{}
	}

	values := make([]float64, len(equity))
	returns := make([]float64, 0, len(equity))
	for i, snap := range equity {
		values[i] = snap.TotalValue
		if i > 0 {
			returns = append(returns, snap.DailyReturnPct)
		}
	}

	totalReturn := 0.0
	if values[0] != 0 {
		totalReturn = (values[len(values)-1] - values[0]) / values[0]
	}

	maxDD, ddDuration := MaxDrawdown(values)
	var100, cvar100 := HistoricalVaR(returns, 0.05), HistoricalCVaR(returns, 0.05)

	var beta, alpha, infoRatio, trackingErr float64
	if len(benchmarkReturns) > 0 {
		beta = Beta(returns, benchmarkReturns)
		alpha = Alpha(returns, benchmarkReturns, beta)
		infoRatio = InformationRatio(returns, benchmarkReturns)
		trackingErr = TrackingError(returns, benchmarkReturns)
	}

	wins, losses, grossProfit, grossLoss := tradeStats(trades)
	totalClosed := wins + losses
	winRate := 0.0
	if totalClosed > 0 {
		winRate = float64(wins) / float64(totalClosed)
	}
	profitFactor := 0.0
	if grossLoss != 0 {
		profitFactor = grossProfit / -grossLoss
	}

	return domain.PerformanceMetrics{
		TotalReturn:      totalReturn,
		AnnualizedReturn: AnnualizedReturn(returns),
		CAGR:             CAGR(values[0], values[len(values)-1], len(values)-1),
		Volatility:       AnnualizedVolatility(returns),
		Sharpe:           Sharpe(returns, rf),
		Sortino:          Sortino(returns, rf, 0),
		Calmar:           Calmar(returns, maxDD),
		MaxDrawdown:      maxDD,
		DrawdownDuration: ddDuration,
		VaR95:            var100,
		CVaR95:           cvar100,
		Skew:             corekit.SampleSkewness(returns),
		Kurtosis:         corekit.SampleExcessKurtosis(returns),
		Alpha:            alpha,
		Beta:             beta,
		InformationRatio: infoRatio,
		TrackingError:    trackingErr,
		TotalTrades:      len(trades),
		WinningTrades:    wins,
		LosingTrades:     losses,
		WinRate:          winRate,
		ProfitFactor:     profitFactor,
	}
}

// tradeStats counts winning/losing closed (SELL) trades and sums gross
// profit and gross loss in dollar terms from each trade's RealizedPnL.
func tradeStats(trades []domain.Trade) (wins, losses int, grossProfit, grossLoss float64) {
	for _, t := range trades {
		if t.RealizedPnL == nil {
			continue
		}
		pnl := *t.RealizedPnL
		switch {
		case pnl > 0:
			wins++
			grossProfit += pnl
		case pnl < 0:
			losses++
			grossLoss += pnl
		}
	}
	return wins, losses, grossProfit, grossLoss
}
