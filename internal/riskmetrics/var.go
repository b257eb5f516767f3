package riskmetrics

import (
	"sort"

	"marketcore/internal/corekit"
)

// HistoricalVaR returns the alpha-quantile of the return samples (e.g.
// alpha=0.05 for 95% VaR), per spec §4.4.
func HistoricalVaR(returns []float64, alpha float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	return corekit.Quantile(returns, alpha)
}

// HistoricalCVaR returns the mean of samples at or below the VaR threshold.
func HistoricalCVaR(returns []float64, alpha float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	v := HistoricalVaR(returns, alpha)
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)

	var sum float64
	var count int
	for _, r := range sorted {
		if r <= v {
			sum += r
			count++
		}
	}
	if count == 0 {
		return v
	}
	return sum / float64(count)
}

// ParametricVaR computes mu + z_alpha*sigma, assuming normally distributed
// returns.
func ParametricVaR(returns []float64, alpha float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mu := corekit.Mean(returns)
	sigma := corekit.SampleStdDev(returns)
	z := corekit.InverseNormalCDF(alpha)
	return mu + z*sigma
}

// CornishFisherVaR computes the modified VaR incorporating skew and excess
// kurtosis via the Cornish-Fisher expansion, per spec §4.4.
func CornishFisherVaR(returns []float64, alpha float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mu := corekit.Mean(returns)
	sigma := corekit.SampleStdDev(returns)
	if sigma == 0 {
		return mu
	}
	skew := corekit.SampleSkewness(returns)
	kurt := corekit.SampleExcessKurtosis(returns)
	z := corekit.InverseNormalCDF(alpha)
	zCF := corekit.CornishFisherQuantile(z, skew, kurt)
	return mu + zCF*sigma
}

// CornishFisherCVaR computes expected shortfall using the Cornish-Fisher
// adjusted quantile in the normal expected-shortfall formula, matching the
// teacher's risk.go Cornish-Fisher CVaR extension for small samples.
func CornishFisherCVaR(returns []float64, alpha float64) float64 {
	if len(returns) == 0 || alpha <= 0 {
		return 0
	}
	mu := corekit.Mean(returns)
	sigma := corekit.SampleStdDev(returns)
	if sigma == 0 {
		return mu
	}
	skew := corekit.SampleSkewness(returns)
	kurt := corekit.SampleExcessKurtosis(returns)
	z := corekit.InverseNormalCDF(alpha)
	zCF := corekit.CornishFisherQuantile(z, skew, kurt)
	return mu - sigma*corekit.NormalPDF(zCF)/alpha
}
