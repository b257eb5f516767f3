package domain

import "time"

// Operator is a comparison kind a SignalRule evaluates an indicator against.
type Operator string

const (
	OpGreaterThan      Operator = "gt"
	OpLessThan         Operator = "lt"
	OpGreaterThanEqual Operator = "gte"
	OpLessThanEqual    Operator = "lte"
	OpCrossover        Operator = "crossover"
	OpCrossunder       Operator = "crossunder"
)

// SignalRule is one entry/exit condition evaluated against an indicator
// series (spec §3, §4.2).
type SignalRule struct {
	Indicator string
	Operator  Operator
	Threshold float64
	Weight    float64 // >= 0
	Lookback  int     // >= 1
}

// SizingMethod selects how internal/backtest sizes a new entry (spec §4.3).
type SizingMethod string

const (
	SizingEqualWeight          SizingMethod = "EQUAL_WEIGHT"
	SizingVolatilityNormalized SizingMethod = "VOLATILITY_NORMALIZED"
	SizingKellyCriterion       SizingMethod = "KELLY_CRITERION"
	SizingFixedDollar          SizingMethod = "FIXED_DOLLAR"
	SizingRiskParity           SizingMethod = "RISK_PARITY"
)

// RebalanceCadence names how often a strategy re-evaluates target weights.
type RebalanceCadence string

const (
	RebalanceDaily   RebalanceCadence = "DAILY"
	RebalanceWeekly  RebalanceCadence = "WEEKLY"
	RebalanceMonthly RebalanceCadence = "MONTHLY"
)

// TradingStrategy describes entry/exit rules, sizing, and risk constraints
// for a backtest run (spec §3).
type TradingStrategy struct {
	Name       string
	EntryRules []SignalRule
	ExitRules  []SignalRule

	EntryThreshold float64 // composite signal threshold in [0,1]
	ExitThreshold  float64

	SizingMethod     SizingMethod
	FixedDollarAmt   float64 // used by SizingFixedDollar
	TargetVolatility float64 // annualised, used by SizingVolatilityNormalized
	MaxPositionSize  float64 // cap on any single position's weight, in (0,1]

	Rebalance RebalanceCadence

	StopLossPercent   float64 // e.g. 0.10 = exit at -10%
	TakeProfitPercent float64 // e.g. 0.20 = exit at +20%
	MaxPositions      int
	MinHoldingDays    int
	MaxSectorWeight   float64 // per-sector cap; 0 = unconstrained (SPEC_FULL supplement)
}

// TransactionCostModel parameterises the cost of executing a trade
// (spec §4.3 C3.x Cost Model).
type TransactionCostModel struct {
	FixedPerTrade float64
	PctPerTrade   float64 // fraction of notional, e.g. 0.001 = 10bps
	SlippageBps   float64
	SpreadBps     float64
	ImpactCoeff   float64
}

// WalkForwardConfig configures optional walk-forward partitioning
// (spec §4.3).
type WalkForwardConfig struct {
	TrainDays          int
	TestDays           int
	StepDays           int
	EnableOptimization bool
	// ParamGrid is the set of candidate strategy variants to try on each
	// training window when EnableOptimization is true. Nil/empty means no
	// optimiser was supplied, which per spec.md's own Open Question falls
	// back to a single-window run (recorded as FellBackToSingleWindow).
	ParamGrid []TradingStrategy
	// Objective names the metric used to rank ParamGrid candidates on the
	// training window, e.g. "sharpe". Empty defaults to "sharpe".
	Objective string
}

// BacktestConfig is the full input to a backtest run (spec §3).
type BacktestConfig struct {
	Strategy        TradingStrategy
	Universe        []string // 1..1000 symbols
	StartDate       time.Time
	EndDate         time.Time
	InitialCapital  float64
	CostModel       TransactionCostModel
	BenchmarkID     string
	RiskFreeSource  string
	WalkForward     *WalkForwardConfig // nil = single-window run
	// SectorOf maps a universe symbol to its sector, used by
	// TradingStrategy.MaxSectorWeight to soft-cap sector concentration.
	// Symbols absent from the map are treated as belonging to no sector and
	// are never capped.
	SectorOf map[string]string
}

// Validate performs the boundary checks described in spec §7 ValidationError
// ("start ≥ end, non-alpha symbol, threshold out of range").
func (c BacktestConfig) Validate() error {
	if !c.StartDate.Before(c.EndDate) {
		return errValidation("start_date must be before end_date")
	}
	if len(c.Universe) == 0 || len(c.Universe) > 1000 {
		return errValidation("universe must contain between 1 and 1000 symbols")
	}
	if c.InitialCapital <= 0 {
		return errValidation("initial_capital must be positive")
	}
	if c.Strategy.EntryThreshold < 0 || c.Strategy.EntryThreshold > 1 {
		return errValidation("entry threshold must be in [0,1]")
	}
	if c.Strategy.ExitThreshold < 0 || c.Strategy.ExitThreshold > 1 {
		return errValidation("exit threshold must be in [0,1]")
	}
	for _, sym := range c.Universe {
		if !isAlphaSymbol(sym) {
			return errValidation("symbol %q is not a valid ticker", sym)
		}
	}
	return nil
}

func isAlphaSymbol(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'A' && r <= 'Z') && !(r >= 'a' && r <= 'z') && r != '.' && r != '-' {
			return false
		}
	}
	return true
}
