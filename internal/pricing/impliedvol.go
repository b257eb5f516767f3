package pricing

import (
	"math"

	"marketcore/internal/corekit"
	"marketcore/internal/domain"
)

// Bracket bounds for implied volatility search, per spec.
const (
	MinVolatility = 0.001
	MaxVolatility = 5.0

	minReturnedVol = 0.01

	defaultIVTolerance  = 1e-6
	defaultIVMaxIter    = 100
)

// ImpliedVolResult is the outcome of solving for implied volatility.
type ImpliedVolResult struct {
	Volatility float64
	Converged  bool
	Iterations int
	Method     string
}

// SolveImpliedVolatility recovers the Black-Scholes implied volatility that
// reproduces marketPrice, using Newton-Raphson with vega as derivative and
// falling back to bisection when Newton steps outside [MinVolatility,
// MaxVolatility] or fails to converge.
func SolveImpliedVolatility(optType domain.OptionType, in domain.PricingInputs, marketPrice float64) (ImpliedVolResult, error) {
	base := in
	base.Volatility = 1 // placeholder, overwritten per-iteration; only S,K,T,r,q matter below
	if base.Spot <= 0 || base.Strike <= 0 || base.TimeToExpiry < 0 {
		return ImpliedVolResult{}, corekit.Validationf("invalid pricing inputs for implied volatility")
	}

	intrinsic := Intrinsic(optType, base.Spot, base.Strike)
	const intrinsicTol = 1e-8
	if marketPrice <= intrinsic+intrinsicTol {
		return ImpliedVolResult{Volatility: minReturnedVol, Converged: true, Method: "intrinsic-floor"}, nil
	}

	upperPrice, err := BlackScholesPrice(optType, withVol(base, MaxVolatility))
	if err != nil {
		return ImpliedVolResult{}, err
	}
	if marketPrice >= upperPrice {
		return ImpliedVolResult{Converged: false, Method: "unattainable"}, nil
	}

	newtonResult, ok := newtonSolve(optType, base, marketPrice)
	if ok {
		return newtonResult, nil
	}
	return bisectionSolve(optType, base, marketPrice)
}

func newtonSolve(optType domain.OptionType, base domain.PricingInputs, marketPrice float64) (ImpliedVolResult, bool) {
	sigma := 0.2
	for iter := 1; iter <= defaultIVMaxIter; iter++ {
		in := withVol(base, sigma)
		price, err := BlackScholesPrice(optType, in)
		if err != nil {
			return ImpliedVolResult{}, false
		}
		diff := price - marketPrice
		if math.Abs(diff) < defaultIVTolerance {
			return ImpliedVolResult{Volatility: sigma, Converged: true, Iterations: iter, Method: "newton"}, true
		}
		greeks, err := BlackScholesGreeks(optType, in)
		if err != nil {
			return ImpliedVolResult{}, false
		}
		vegaPerUnit := greeks.Vega * 100
		if vegaPerUnit < 1e-8 {
			return ImpliedVolResult{}, false
		}
		next := sigma - diff/vegaPerUnit
		if next < MinVolatility || next > MaxVolatility || math.IsNaN(next) {
			return ImpliedVolResult{}, false
		}
		sigma = next
	}
	return ImpliedVolResult{}, false
}

func bisectionSolve(optType domain.OptionType, base domain.PricingInputs, marketPrice float64) (ImpliedVolResult, error) {
	lo, hi := MinVolatility, MaxVolatility
	loPrice, err := BlackScholesPrice(optType, withVol(base, lo))
	if err != nil {
		return ImpliedVolResult{}, err
	}
	hiPrice, err := BlackScholesPrice(optType, withVol(base, hi))
	if err != nil {
		return ImpliedVolResult{}, err
	}
	if (marketPrice-loPrice)*(marketPrice-hiPrice) > 0 {
		return ImpliedVolResult{Converged: false, Method: "bisection"}, nil
	}

	for iter := 1; iter <= defaultIVMaxIter; iter++ {
		mid := 0.5 * (lo + hi)
		midPrice, err := BlackScholesPrice(optType, withVol(base, mid))
		if err != nil {
			return ImpliedVolResult{}, err
		}
		if math.Abs(midPrice-marketPrice) < defaultIVTolerance {
			return ImpliedVolResult{Volatility: mid, Converged: true, Iterations: iter, Method: "bisection"}, nil
		}
		if (midPrice-marketPrice)*(loPrice-marketPrice) < 0 {
			hi = mid
			hiPrice = midPrice
		} else {
			lo = mid
			loPrice = midPrice
		}
	}
	mid := 0.5 * (lo + hi)
	return ImpliedVolResult{Volatility: mid, Converged: true, Iterations: defaultIVMaxIter, Method: "bisection"}, nil
}
