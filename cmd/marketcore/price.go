package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"marketcore/internal/corekit"
	"marketcore/internal/domain"
	"marketcore/internal/pricing"
)

var (
	priceSpot, priceStrike, priceTimeToExpiry float64
	priceRate, priceDividend, priceVol        float64
	priceOptType, priceStyle, priceModel      string
	priceSteps                                int
)

// priceOutput mirrors spec §6's "Price option" response shape.
type priceOutput struct {
	Price     float64       `json:"price"`
	Greeks    domain.Greeks `json:"greeks"`
	Intrinsic float64       `json:"intrinsic"`
	TimeValue float64       `json:"time_value"`
	ModelUsed string        `json:"model_used"`
	Converged bool          `json:"converged"`
}

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Price a European/American option via Black-Scholes or a CRR binomial tree",
	RunE:  runPrice,
}

func init() {
	priceCmd.Flags().Float64Var(&priceSpot, "spot", 0, "underlying spot price S")
	priceCmd.Flags().Float64Var(&priceStrike, "strike", 0, "strike price K")
	priceCmd.Flags().Float64Var(&priceTimeToExpiry, "t", 0, "time to expiry in years")
	priceCmd.Flags().Float64Var(&priceRate, "rate", 0, "risk-free rate r")
	priceCmd.Flags().Float64Var(&priceDividend, "dividend", 0, "continuous dividend yield q")
	priceCmd.Flags().Float64Var(&priceVol, "vol", 0, "volatility sigma")
	priceCmd.Flags().StringVar(&priceOptType, "type", "CALL", "CALL or PUT")
	priceCmd.Flags().StringVar(&priceStyle, "style", "EUROPEAN", "EUROPEAN or AMERICAN")
	priceCmd.Flags().StringVar(&priceModel, "model", "BS", "BS (Black-Scholes) or CRR (binomial tree)")
	priceCmd.Flags().IntVar(&priceSteps, "steps", 200, "CRR tree step count (CRR model only)")
}

func runPrice(cmd *cobra.Command, args []string) error {
	optType := domain.OptionType(strings.ToUpper(priceOptType))
	style := strings.ToUpper(priceStyle)
	model := strings.ToUpper(priceModel)

	in := domain.PricingInputs{
		Spot:          priceSpot,
		Strike:        priceStrike,
		TimeToExpiry:  priceTimeToExpiry,
		RiskFreeRate:  priceRate,
		DividendYield: priceDividend,
		Volatility:    priceVol,
	}
	if err := pricing.ValidateInputs(in); err != nil {
		return err
	}
	if optType != domain.Call && optType != domain.Put {
		return corekit.Validationf("type must be CALL or PUT, got %q", priceOptType)
	}

	var (
		price     float64
		greeks    domain.Greeks
		err       error
		converged = true
	)

	switch model {
	case "BS":
		if style == string(domain.American) {
			return corekit.Validationf("Black-Scholes does not support American exercise; use --model CRR")
		}
		price, err = pricing.BlackScholesPrice(optType, in)
		if err != nil {
			return err
		}
		greeks, err = pricing.BlackScholesGreeks(optType, in)
		if err != nil {
			return err
		}
	case "CRR":
		contract := domain.OptionContract{
			Strike: priceStrike,
			Type:   optType,
			Style:  domain.ExerciseStyle(style),
			Expiry: time.Now().Add(time.Duration(priceTimeToExpiry * float64(365*24*time.Hour))),
		}
		price, err = pricing.CRRPrice(contract, in, priceSteps)
		if err != nil {
			return err
		}
		greeks, err = pricing.CRRGreeks(contract, in, priceSteps)
		if err != nil {
			return err
		}
	default:
		return corekit.Validationf("model must be BS or CRR, got %q", priceModel)
	}

	intrinsic := pricing.Intrinsic(optType, priceSpot, priceStrike)
	out := priceOutput{
		Price:     price,
		Greeks:    greeks,
		Intrinsic: intrinsic,
		TimeValue: price - intrinsic,
		ModelUsed: model,
		Converged: converged,
	}
	return printJSON(out)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
