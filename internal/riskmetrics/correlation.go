package riskmetrics

import (
	"math"
	"sort"

	"marketcore/internal/corekit"
)

// CorrelationMatrix computes the Pearson correlation matrix across a set of
// equal-length return series (common length L>=20, per spec §4.4). Diagonal
// entries are exactly 1. Series shorter than 2 samples contribute a row/col
// of zeros rather than NaN.
func CorrelationMatrix(returnsBySymbol map[string][]float64) (symbols []string, matrix [][]float64) {
	symbols = make([]string, 0, len(returnsBySymbol))
	for sym := range returnsBySymbol {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	n := len(symbols)
	matrix = make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		matrix[i][i] = 1
		for j := i + 1; j < n; j++ {
			c := pearson(returnsBySymbol[symbols[i]], returnsBySymbol[symbols[j]])
			matrix[i][j] = c
			matrix[j][i] = c
		}
	}
	return symbols, matrix
}

func pearson(a, b []float64) float64 {
	n := minLen(a, b)
	if n < 2 {
		return 0
	}
	a, b = a[:n], b[:n]
	meanA, meanB := corekit.Mean(a), corekit.Mean(b)

	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		da, db := a[i]-meanA, b[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0
	}
	return cov / (math.Sqrt(varA) * math.Sqrt(varB))
}

// DiversificationRatio returns 1 minus the mean absolute value of the
// off-diagonal entries of matrix, per spec §4.4.
func DiversificationRatio(matrix [][]float64) float64 {
	n := len(matrix)
	if n < 2 {
		return 1
	}
	var sum float64
	var count int
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			sum += math.Abs(matrix[i][j])
			count++
		}
	}
	if count == 0 {
		return 1
	}
	return 1 - sum/float64(count)
}

// EffectiveNumberOfAssets returns n(1-rhoBar)/(1+(n-1)*rhoBar), where rhoBar
// is the mean off-diagonal correlation of matrix, per spec §4.4.
func EffectiveNumberOfAssets(matrix [][]float64) float64 {
	n := len(matrix)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return 1
	}

	var sum float64
	var count int
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			sum += matrix[i][j]
			count++
		}
	}
	rhoBar := 0.0
	if count > 0 {
		rhoBar = sum / float64(count)
	}

	denom := 1 + float64(n-1)*rhoBar
	if denom == 0 {
		return float64(n)
	}
	return float64(n) * (1 - rhoBar) / denom
}
