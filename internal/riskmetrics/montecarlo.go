package riskmetrics

import (
	"math"
	"math/rand"
	"sort"

	"marketcore/internal/corekit"
)

// MonteCarloConfig parameterises a GBM terminal-value simulation, per spec
// §4.4.
type MonteCarloConfig struct {
	InitialValue float64
	Horizon      int // trading days simulated forward
	NumPaths     int
	Drift        float64 // annualised mu
	Volatility   float64 // annualised sigma
	TargetReturn float64 // used for ProbabilityOfReachingTarget
	Seed         int64
}

// MonteCarloResult summarises the terminal-return distribution of a GBM
// simulation together with a small sample of full paths for visualization.
type MonteCarloResult struct {
	Percentiles                 map[int]float64 // terminal RETURN percentiles {5,25,50,75,95}
	ProbabilityOfLoss           float64
	ProbabilityOfReachingTarget float64
	SamplePaths                 [][]float64 // bounded to maxSamplePaths
}

const maxSamplePaths = 100

// SimulateGBM runs cfg.NumPaths independent geometric Brownian motion paths
// of length cfg.Horizon using the discrete update
// S_{t+1} = S_t * exp((mu - 0.5*sigma^2)*dt + sigma*sqrt(dt)*Z), dt=1/252,
// and summarises the resulting terminal-value distribution.
func SimulateGBM(cfg MonteCarloConfig) MonteCarloResult {
	if cfg.NumPaths <= 0 || cfg.Horizon <= 0 || cfg.InitialValue <= 0 {
		return MonteCarloResult{Percentiles: map[int]float64{}}
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	dt := 1.0 / float64(TradingDaysPerYear)
	driftTerm := (cfg.Drift - 0.5*cfg.Volatility*cfg.Volatility) * dt
	volTerm := cfg.Volatility * math.Sqrt(dt)

	terminals := make([]float64, cfg.NumPaths)
	samplePaths := make([][]float64, 0, maxSamplePaths)

	for p := 0; p < cfg.NumPaths; p++ {
		keepPath := p < maxSamplePaths
		var path []float64
		if keepPath {
			path = make([]float64, 0, cfg.Horizon+1)
			path = append(path, cfg.InitialValue)
		}

		s := cfg.InitialValue
		for t := 0; t < cfg.Horizon; t++ {
			z := rng.NormFloat64()
			s *= math.Exp(driftTerm + volTerm*z)
			if keepPath {
				path = append(path, s)
			}
		}
		terminals[p] = s
		if keepPath {
			samplePaths = append(samplePaths, path)
		}
	}

	terminalReturns := make([]float64, cfg.NumPaths)
	for i, v := range terminals {
		terminalReturns[i] = v/cfg.InitialValue - 1
	}
	sorted := append([]float64(nil), terminalReturns...)
	sort.Float64s(sorted)

	percentiles := map[int]float64{}
	for _, p := range []int{5, 25, 50, 75, 95} {
		percentiles[p] = corekit.Quantile(sorted, float64(p)/100)
	}

	var losses, reaches int
	targetValue := cfg.InitialValue * (1 + cfg.TargetReturn)
	for _, v := range terminals {
		if v < cfg.InitialValue {
			losses++
		}
		if v >= targetValue {
			reaches++
		}
	}

	return MonteCarloResult{
		Percentiles:                 percentiles,
		ProbabilityOfLoss:           float64(losses) / float64(cfg.NumPaths),
		ProbabilityOfReachingTarget: float64(reaches) / float64(cfg.NumPaths),
		SamplePaths:                 samplePaths,
	}
}
