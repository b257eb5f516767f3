// Package pricing implements the options Pricing Kernel: Black-Scholes
// closed-form pricing, a CRR binomial tree for American and European
// exercise, and an implied-volatility solver. All arithmetic is plain
// float64, per the domain's data model — there is no fixed-point type here,
// unlike the johnayoung/go-crypto-quant-toolkit reference this package's
// doc-comment style and error-sentinel shape borrow from.
package pricing

import (
	"math"

	"marketcore/internal/corekit"
	"marketcore/internal/domain"
)

// ValidateInputs checks the PricingInputs invariants common to every pricer:
// S>0, K>0, T>=0, sigma>0. r and q are unconstrained (rates can be negative).
func ValidateInputs(in domain.PricingInputs) error {
	if in.Spot <= 0 {
		return corekit.Validationf("spot must be positive, got %v", in.Spot)
	}
	if in.Strike <= 0 {
		return corekit.Validationf("strike must be positive, got %v", in.Strike)
	}
	if in.TimeToExpiry < 0 {
		return corekit.Validationf("time to expiry must be non-negative, got %v", in.TimeToExpiry)
	}
	if in.Volatility <= 0 {
		return corekit.Validationf("volatility must be positive, got %v", in.Volatility)
	}
	return nil
}

// Intrinsic returns the intrinsic value of opt given spot and strike.
func Intrinsic(optType domain.OptionType, spot, strike float64) float64 {
	if optType == domain.Put {
		return math.Max(strike-spot, 0)
	}
	return math.Max(spot-strike, 0)
}

// BlackScholesPrice computes the European option price under Black-Scholes.
// For T<=0 it returns intrinsic value directly, per spec.
func BlackScholesPrice(optType domain.OptionType, in domain.PricingInputs) (float64, error) {
	if err := ValidateInputs(in); err != nil {
		return 0, err
	}
	if in.TimeToExpiry <= 0 {
		return Intrinsic(optType, in.Spot, in.Strike), nil
	}
	d1, d2 := d1d2(in)
	S, K, r, q, T := in.Spot, in.Strike, in.RiskFreeRate, in.DividendYield, in.TimeToExpiry
	switch optType {
	case domain.Put:
		return K*math.Exp(-r*T)*corekit.NormalCDF(-d2) - S*math.Exp(-q*T)*corekit.NormalCDF(-d1), nil
	default:
		return S*math.Exp(-q*T)*corekit.NormalCDF(d1) - K*math.Exp(-r*T)*corekit.NormalCDF(d2), nil
	}
}

// BlackScholesGreeks computes the closed-form Greeks. All Greeks are zero
// when the option has already expired (T<=0).
func BlackScholesGreeks(optType domain.OptionType, in domain.PricingInputs) (domain.Greeks, error) {
	if err := ValidateInputs(in); err != nil {
		return domain.Greeks{}, err
	}
	if in.TimeToExpiry <= 0 {
		return domain.Greeks{}, nil
	}
	d1, d2 := d1d2(in)
	S, K, r, q, sigma, T := in.Spot, in.Strike, in.RiskFreeRate, in.DividendYield, in.Volatility, in.TimeToExpiry
	sqrtT := math.Sqrt(T)
	discQ := math.Exp(-q * T)
	discR := math.Exp(-r * T)
	pdf := corekit.NormalPDF(d1)

	var delta, rho float64
	switch optType {
	case domain.Put:
		delta = -discQ * corekit.NormalCDF(-d1)
		rho = -K * T * discR * corekit.NormalCDF(-d2) / 100
	default:
		delta = discQ * corekit.NormalCDF(d1)
		rho = K * T * discR * corekit.NormalCDF(d2) / 100
	}

	gamma := discQ * pdf / (S * sigma * sqrtT)
	vega := S * discQ * pdf * sqrtT / 100

	var thetaAnnual float64
	term1 := -(S * discQ * pdf * sigma) / (2 * sqrtT)
	switch optType {
	case domain.Put:
		thetaAnnual = term1 + r*K*discR*corekit.NormalCDF(-d2) - q*S*discQ*corekit.NormalCDF(-d1)
	default:
		thetaAnnual = term1 - r*K*discR*corekit.NormalCDF(d2) + q*S*discQ*corekit.NormalCDF(d1)
	}
	theta := thetaAnnual / 365

	return domain.Greeks{Delta: delta, Gamma: gamma, Theta: theta, Vega: vega, Rho: rho}, nil
}

func d1d2(in domain.PricingInputs) (float64, float64) {
	S, K, r, q, sigma, T := in.Spot, in.Strike, in.RiskFreeRate, in.DividendYield, in.Volatility, in.TimeToExpiry
	sqrtT := math.Sqrt(T)
	d1 := (math.Log(S/K) + (r-q+0.5*sigma*sigma)*T) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT
	return d1, d2
}
