package main

import (
	"strings"

	"github.com/spf13/cobra"

	"marketcore/internal/corekit"
	"marketcore/internal/domain"
	"marketcore/internal/pricing"
)

var (
	ivMarketPrice, ivSpot, ivStrike, ivTimeToExpiry float64
	ivRate, ivDividend                              float64
	ivOptType                                       string
)

// impliedVolOutput mirrors spec §6's "Implied volatility" response shape.
type impliedVolOutput struct {
	Sigma      float64 `json:"sigma"`
	Iterations int     `json:"iterations"`
	Converged  bool    `json:"converged"`
	FinalPrice float64 `json:"final_price"`
	PriceError float64 `json:"price_error"`
}

var impliedVolCmd = &cobra.Command{
	Use:   "implied-vol",
	Short: "Solve for the Black-Scholes implied volatility matching a market price",
	RunE:  runImpliedVol,
}

func init() {
	impliedVolCmd.Flags().Float64Var(&ivMarketPrice, "market-price", 0, "observed market price of the option")
	impliedVolCmd.Flags().Float64Var(&ivSpot, "spot", 0, "underlying spot price S")
	impliedVolCmd.Flags().Float64Var(&ivStrike, "strike", 0, "strike price K")
	impliedVolCmd.Flags().Float64Var(&ivTimeToExpiry, "t", 0, "time to expiry in years")
	impliedVolCmd.Flags().Float64Var(&ivRate, "rate", 0, "risk-free rate r")
	impliedVolCmd.Flags().Float64Var(&ivDividend, "dividend", 0, "continuous dividend yield q")
	impliedVolCmd.Flags().StringVar(&ivOptType, "type", "CALL", "CALL or PUT")
}

func runImpliedVol(cmd *cobra.Command, args []string) error {
	optType := domain.OptionType(strings.ToUpper(ivOptType))
	if optType != domain.Call && optType != domain.Put {
		return corekit.Validationf("type must be CALL or PUT, got %q", ivOptType)
	}

	in := domain.PricingInputs{
		Spot:          ivSpot,
		Strike:        ivStrike,
		TimeToExpiry:  ivTimeToExpiry,
		RiskFreeRate:  ivRate,
		DividendYield: ivDividend,
	}
	result, err := pricing.SolveImpliedVolatility(optType, in, ivMarketPrice)
	if err != nil {
		return err
	}

	finalPrice, priceErr := 0.0, 0.0
	if result.Converged {
		in.Volatility = result.Volatility
		finalPrice, err = pricing.BlackScholesPrice(optType, in)
		if err != nil {
			return err
		}
		priceErr = finalPrice - ivMarketPrice
	}

	return printJSON(impliedVolOutput{
		Sigma:      result.Volatility,
		Iterations: result.Iterations,
		Converged:  result.Converged,
		FinalPrice: finalPrice,
		PriceError: priceErr,
	})
}
