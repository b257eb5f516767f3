package backtest

import (
	"math"

	"marketcore/internal/corekit"
	"marketcore/internal/domain"
)

// minKellyTrades is the rolling trade-history floor below which the Kelly
// sizing method falls back to a fixed 10% allocation (SPEC_FULL.md
// "Kelly criterion guard rails"), matching the original position-sizing
// service's own minimum-sample guard.
const minKellyTrades = 10

const degenerateSizingFraction = 0.1

// tradeOutcome is one closed trade's realised return, used by Kelly sizing.
type tradeOutcome struct {
	ReturnPct float64
}

// SizePosition computes the target position weight in
// [0, strategy.MaxPositionSize] for a new entry, per spec §4.3's five
// sizing methods.
//
//   - dailyReturns60d: the symbol's trailing ~60 daily returns, most recent
//     last, used by VOLATILITY_NORMALIZED.
//   - recentTrades: the symbol's closed-trade history within the last 252
//     trading days, used by KELLY_CRITERION.
//   - riskParityWeight: this symbol's share from RiskParityWeights, computed
//     once per day across the whole universe by the caller and used by
//     RISK_PARITY. Ignored by every other sizing method.
func SizePosition(strategy domain.TradingStrategy, dailyReturns60d []float64, recentTrades []tradeOutcome, portfolioValue float64, riskParityWeight float64) float64 {
	var raw float64
	switch strategy.SizingMethod {
	case domain.SizingVolatilityNormalized:
		raw = volatilityNormalizedSize(strategy.TargetVolatility, dailyReturns60d)
	case domain.SizingKellyCriterion:
		raw = kellySize(recentTrades)
	case domain.SizingFixedDollar:
		raw = fixedDollarSize(strategy.FixedDollarAmt, portfolioValue)
	case domain.SizingRiskParity:
		if riskParityWeight > 0 {
			raw = riskParityWeight
		} else {
			raw = degenerateSizingFraction // no cross-sectional vol data yet (e.g. too little history)
		}
	default: // EQUAL_WEIGHT
		raw = 0.10
	}

	capSize := strategy.MaxPositionSize
	if capSize <= 0 {
		capSize = 1.0
	}
	return corekit.Clamp(raw, 0, capSize)
}

func volatilityNormalizedSize(targetVol float64, returns []float64) float64 {
	if len(returns) < 60 {
		return degenerateSizingFraction
	}
	annualVol := corekit.SampleStdDev(returns) * math.Sqrt(252)
	if annualVol <= 0 {
		return degenerateSizingFraction
	}
	if targetVol <= 0 {
		targetVol = 0.15
	}
	return corekit.Clamp(targetVol/annualVol, 0.01, 0.25)
}

func kellySize(trades []tradeOutcome) float64 {
	if len(trades) < minKellyTrades {
		return degenerateSizingFraction
	}

	var wins, losses int
	var winSum, lossSum float64
	for _, tr := range trades {
		if tr.ReturnPct > 0 {
			wins++
			winSum += tr.ReturnPct
		} else if tr.ReturnPct < 0 {
			losses++
			lossSum += -tr.ReturnPct
		}
	}
	if wins == 0 || losses == 0 {
		return degenerateSizingFraction
	}

	p := float64(wins) / float64(len(trades))
	avgWin := winSum / float64(wins)
	avgLoss := lossSum / float64(losses)
	if avgLoss <= 0 {
		return degenerateSizingFraction
	}
	b := avgWin / avgLoss

	kelly := (b*p - (1 - p)) / b
	fractional := 0.25 * kelly
	if fractional <= 0 || math.IsNaN(fractional) {
		return degenerateSizingFraction
	}
	return corekit.Clamp(fractional, 0.01, 0.15)
}

func fixedDollarSize(fixedAmount, portfolioValue float64) float64 {
	if portfolioValue <= 0 {
		return 0
	}
	return math.Min(fixedAmount/portfolioValue, 0.2)
}

// RiskParityWeights computes weights across candidate symbols with equal
// risk contribution, given each symbol's trailing annualised volatility.
// Assets are treated as uncorrelated (no covariance data is available at
// the sizing step), so the iteration converges to the classical
// inverse-volatility solution; the loop and dispersion check are kept to
// match spec §4.3's "iterative reweighting ... convergence criterion on
// risk-contribution dispersion < 1e-6 or 100 iterations" even though
// independence makes it converge immediately.
func RiskParityWeights(volBySymbol map[string]float64) map[string]float64 {
	symbols := make([]string, 0, len(volBySymbol))
	for sym, vol := range volBySymbol {
		if vol > 0 {
			symbols = append(symbols, sym)
		}
	}
	weights := make(map[string]float64, len(symbols))
	if len(symbols) == 0 {
		return weights
	}

	inv := make(map[string]float64, len(symbols))
	var invSum float64
	for _, sym := range symbols {
		inv[sym] = 1 / volBySymbol[sym]
		invSum += inv[sym]
	}
	for _, sym := range symbols {
		weights[sym] = inv[sym] / invSum
	}

	const maxIter = 100
	const convergenceTol = 1e-6
	for iter := 0; iter < maxIter; iter++ {
		riskContrib := make(map[string]float64, len(symbols))
		for _, sym := range symbols {
			riskContrib[sym] = weights[sym] * volBySymbol[sym]
		}
		dispersion := riskContributionDispersion(riskContrib)
		if dispersion < convergenceTol {
			break
		}
		targetContrib := averageOf(riskContrib)
		for _, sym := range symbols {
			adjust := targetContrib / riskContrib[sym]
			weights[sym] *= adjust
		}
		normalizeInPlace(weights)
	}
	return weights
}

func riskContributionDispersion(contrib map[string]float64) float64 {
	values := make([]float64, 0, len(contrib))
	for _, v := range contrib {
		values = append(values, v)
	}
	mean := corekit.Mean(values)
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return sumSq / float64(len(values))
}

func averageOf(m map[string]float64) float64 {
	var sum float64
	for _, v := range m {
		sum += v
	}
	return sum / float64(len(m))
}

func normalizeInPlace(weights map[string]float64) {
	var sum float64
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return
	}
	for sym := range weights {
		weights[sym] /= sum
	}
}
