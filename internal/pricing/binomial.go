package pricing

import (
	"math"

	"marketcore/internal/corekit"
	"marketcore/internal/domain"
)

// DefaultBinomialSteps is the step count used when callers don't specify
// one; it comfortably clears the spec's N>=200 convergence requirement.
const DefaultBinomialSteps = 200

// CRRPrice prices an option with the Cox-Ross-Rubinstein binomial tree,
// supporting both American and European exercise. steps<=0 uses
// DefaultBinomialSteps.
func CRRPrice(contract domain.OptionContract, in domain.PricingInputs, steps int) (float64, error) {
	if err := ValidateInputs(in); err != nil {
		return 0, err
	}
	if steps <= 0 {
		steps = DefaultBinomialSteps
	}
	if in.TimeToExpiry <= 0 {
		return Intrinsic(contract.Type, in.Spot, in.Strike), nil
	}

	dt := in.TimeToExpiry / float64(steps)
	u := math.Exp(in.Volatility * math.Sqrt(dt))
	d := 1 / u
	growth := math.Exp((in.RiskFreeRate-in.DividendYield)*dt)
	p := (growth - d) / (u - d)
	if p < 0 || p > 1 {
		return 0, corekit.Numericalf("CRR risk-neutral probability out of [0,1]: %v (check rate/vol/step inputs)", p)
	}
	disc := math.Exp(-in.RiskFreeRate * dt)

	values := make([]float64, steps+1)
	for i := 0; i <= steps; i++ {
		spotAtNode := in.Spot * math.Pow(u, float64(steps-i)) * math.Pow(d, float64(i))
		values[i] = Intrinsic(contract.Type, spotAtNode, in.Strike)
	}

	for step := steps - 1; step >= 0; step-- {
		for i := 0; i <= step; i++ {
			continuation := disc * (p*values[i] + (1-p)*values[i+1])
			if contract.Style == domain.American {
				spotAtNode := in.Spot * math.Pow(u, float64(step-i)) * math.Pow(d, float64(i))
				intrinsic := Intrinsic(contract.Type, spotAtNode, in.Strike)
				values[i] = math.Max(continuation, intrinsic)
			} else {
				values[i] = continuation
			}
		}
	}
	return values[0], nil
}

// CRRGreeks computes Greeks via finite differences around the CRR price, per
// spec: central differences on spot (bump h=0.01*S) and volatility (0.01),
// one-sided on time (1 calendar day) and rate (0.01).
func CRRGreeks(contract domain.OptionContract, in domain.PricingInputs, steps int) (domain.Greeks, error) {
	if err := ValidateInputs(in); err != nil {
		return domain.Greeks{}, err
	}
	if in.TimeToExpiry <= 0 {
		return domain.Greeks{}, nil
	}

	price := func(p domain.PricingInputs) (float64, error) { return CRRPrice(contract, p, steps) }

	hS := 0.01 * in.Spot
	up, err := price(withSpot(in, in.Spot+hS))
	if err != nil {
		return domain.Greeks{}, err
	}
	down, err := price(withSpot(in, in.Spot-hS))
	if err != nil {
		return domain.Greeks{}, err
	}
	mid, err := price(in)
	if err != nil {
		return domain.Greeks{}, err
	}
	delta := (up - down) / (2 * hS)
	gamma := (up - 2*mid + down) / (hS * hS)

	const hSigma = 0.01
	volUp, err := price(withVol(in, in.Volatility+hSigma))
	if err != nil {
		return domain.Greeks{}, err
	}
	volDown, err := price(withVol(in, in.Volatility-hSigma))
	if err != nil {
		return domain.Greeks{}, err
	}
	vega := (volUp - volDown) / (2 * hSigma) / 100

	const hRate = 0.01
	rateUp, err := price(withRate(in, in.RiskFreeRate+hRate))
	if err != nil {
		return domain.Greeks{}, err
	}
	rho := (rateUp - mid) / hRate / 100

	const oneDayYears = 1.0 / 365.0
	var theta float64
	if in.TimeToExpiry > oneDayYears {
		later, err := price(withTime(in, in.TimeToExpiry-oneDayYears))
		if err != nil {
			return domain.Greeks{}, err
		}
		theta = later - mid
	}

	return domain.Greeks{Delta: delta, Gamma: gamma, Theta: theta, Vega: vega, Rho: rho}, nil
}

func withSpot(in domain.PricingInputs, s float64) domain.PricingInputs   { in.Spot = s; return in }
func withVol(in domain.PricingInputs, v float64) domain.PricingInputs    { in.Volatility = v; return in }
func withRate(in domain.PricingInputs, r float64) domain.PricingInputs   { in.RiskFreeRate = r; return in }
func withTime(in domain.PricingInputs, t float64) domain.PricingInputs   { in.TimeToExpiry = t; return in }
