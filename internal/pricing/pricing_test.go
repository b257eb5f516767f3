package pricing

import (
	"math"
	"testing"
	"time"

	"marketcore/internal/domain"
)

func atmInputs() domain.PricingInputs {
	return domain.PricingInputs{
		Spot: 100, Strike: 100, TimeToExpiry: 1,
		RiskFreeRate: 0.05, DividendYield: 0, Volatility: 0.2,
	}
}

func TestBlackScholesPriceATMCallIsPositive(t *testing.T) {
	price, err := BlackScholesPrice(domain.Call, atmInputs())
	if err != nil {
		t.Fatal(err)
	}
	if price <= 0 {
		t.Errorf("ATM call price = %v, want positive", price)
	}
	// Known Black-Scholes value for S=K=100, T=1, r=0.05, sigma=0.2, q=0.
	want := 10.4506
	if math.Abs(price-want) > 0.01 {
		t.Errorf("ATM call price = %v, want ~%v", price, want)
	}
}

func TestPutCallParity(t *testing.T) {
	in := atmInputs()
	call, err := BlackScholesPrice(domain.Call, in)
	if err != nil {
		t.Fatal(err)
	}
	put, err := BlackScholesPrice(domain.Put, in)
	if err != nil {
		t.Fatal(err)
	}
	lhs := call - put
	rhs := in.Spot*math.Exp(-in.DividendYield*in.TimeToExpiry) - in.Strike*math.Exp(-in.RiskFreeRate*in.TimeToExpiry)
	if math.Abs(lhs-rhs) > 1e-6 {
		t.Errorf("put-call parity violated: C-P=%v, S*e^-qT - K*e^-rT=%v", lhs, rhs)
	}
}

func TestBlackScholesExpiredOptionIsIntrinsic(t *testing.T) {
	in := atmInputs()
	in.TimeToExpiry = 0
	in.Spot = 110
	price, err := BlackScholesPrice(domain.Call, in)
	if err != nil {
		t.Fatal(err)
	}
	if price != 10 {
		t.Errorf("expired call price = %v, want intrinsic 10", price)
	}
	greeks, err := BlackScholesGreeks(domain.Call, in)
	if err != nil {
		t.Fatal(err)
	}
	if greeks != (domain.Greeks{}) {
		t.Errorf("expired option Greeks should all be zero, got %+v", greeks)
	}
}

func TestCRREuropeanConvergesToBlackScholes(t *testing.T) {
	in := atmInputs()
	bsPrice, err := BlackScholesPrice(domain.Call, in)
	if err != nil {
		t.Fatal(err)
	}
	contract := domain.OptionContract{Strike: in.Strike, Type: domain.Call, Style: domain.European, Expiry: time.Now().AddDate(1, 0, 0)}
	crrPrice, err := CRRPrice(contract, in, 200)
	if err != nil {
		t.Fatal(err)
	}
	relErr := math.Abs(crrPrice-bsPrice) / bsPrice
	if relErr > 0.01 {
		t.Errorf("CRR European price %v vs BS price %v: relative error %v exceeds 1%%", crrPrice, bsPrice, relErr)
	}

	bsGreeks, err := BlackScholesGreeks(domain.Call, in)
	if err != nil {
		t.Fatal(err)
	}
	crrGreeks, err := CRRGreeks(contract, in, 200)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(crrGreeks.Delta-bsGreeks.Delta) > 0.05 {
		t.Errorf("CRR delta %v vs BS delta %v: diff exceeds 0.05", crrGreeks.Delta, bsGreeks.Delta)
	}
	if math.Abs(crrGreeks.Gamma-bsGreeks.Gamma) > 0.01 {
		t.Errorf("CRR gamma %v vs BS gamma %v: diff exceeds 0.01", crrGreeks.Gamma, bsGreeks.Gamma)
	}
}

func TestCRRAmericanPutExceedsOrMatchesEuropean(t *testing.T) {
	in := domain.PricingInputs{Spot: 90, Strike: 100, TimeToExpiry: 1, RiskFreeRate: 0.05, Volatility: 0.3}
	americanContract := domain.OptionContract{Strike: in.Strike, Type: domain.Put, Style: domain.American}
	europeanContract := domain.OptionContract{Strike: in.Strike, Type: domain.Put, Style: domain.European}

	american, err := CRRPrice(americanContract, in, 200)
	if err != nil {
		t.Fatal(err)
	}
	european, err := CRRPrice(europeanContract, in, 200)
	if err != nil {
		t.Fatal(err)
	}
	if american < european-1e-9 {
		t.Errorf("American put (%v) should be worth at least as much as European put (%v) due to early exercise", american, european)
	}
}

func TestImpliedVolatilityRoundTrip(t *testing.T) {
	for _, sigma := range []float64{0.05, 0.15, 0.3, 0.75, 1.5} {
		in := atmInputs()
		in.Volatility = sigma
		price, err := BlackScholesPrice(domain.Call, in)
		if err != nil {
			t.Fatal(err)
		}
		result, err := SolveImpliedVolatility(domain.Call, in, price)
		if err != nil {
			t.Fatalf("sigma=%v: %v", sigma, err)
		}
		if !result.Converged {
			t.Fatalf("sigma=%v: solver did not converge", sigma)
		}
		if math.Abs(result.Volatility-sigma) > 1e-3 {
			t.Errorf("sigma=%v: recovered %v, diff exceeds 1e-3", sigma, result.Volatility)
		}
	}
}

func TestImpliedVolatilityBelowIntrinsicReturnsFloor(t *testing.T) {
	in := atmInputs()
	in.Spot = 150
	result, err := SolveImpliedVolatility(domain.Call, in, 49.9) // below intrinsic of 50
	if err != nil {
		t.Fatal(err)
	}
	if !result.Converged || result.Volatility != minReturnedVol {
		t.Errorf("expected floor volatility %v, got %+v", minReturnedVol, result)
	}
}

func TestImpliedVolatilityUnattainablePriceFails(t *testing.T) {
	in := atmInputs()
	result, err := SolveImpliedVolatility(domain.Call, in, 99999)
	if err != nil {
		t.Fatal(err)
	}
	if result.Converged {
		t.Errorf("expected non-convergence for unattainable market price")
	}
}

func TestValidateInputsRejectsNonPositiveSpot(t *testing.T) {
	in := atmInputs()
	in.Spot = 0
	if _, err := BlackScholesPrice(domain.Call, in); err == nil {
		t.Errorf("expected validation error for zero spot")
	}
}
