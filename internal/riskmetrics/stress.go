package riskmetrics

import "marketcore/internal/domain"

// StressScenario names one of the fixed shock dictionary entries applied as
// a linear adjustment to a position's expected return, per spec §4.4's
// supplemented stress-testing feature.
type StressScenario struct {
	Name              string
	MarketShockPct    float64 // applied to every position's expected return
	VolShockPct       float64 // informational; ApplyScenario does not apply it
	RateShockPct      float64 // informational; ApplyScenario does not apply it
	SectorRotationPct float64 // applied on top of MarketShockPct for SectorOf matches
	LiquidityShockPct float64 // haircut applied to MarketValue when computing impact
	CorrelationShock  float64 // informational; used by callers wanting a stressed corr matrix
}

// StandardScenarios is the fixed stress scenario dictionary named in spec
// §4.4: market_shock, vol_shock, rate_shock, sector_rotation,
// liquidity_shock, correlation_shock.
func StandardScenarios() []StressScenario {
	return []StressScenario{
		{Name: "market_shock", MarketShockPct: -0.20},
		{Name: "vol_shock", VolShockPct: 1.00},
		{Name: "rate_shock", RateShockPct: 0.02},
		{Name: "sector_rotation", SectorRotationPct: -0.10},
		{Name: "liquidity_shock", LiquidityShockPct: -0.15},
		{Name: "correlation_shock", CorrelationShock: 0.90},
	}
}

// PositionImpact is the dollar and percentage impact of one scenario on one
// held position.
type PositionImpact struct {
	Symbol     string
	ImpactDollar float64
	ImpactPct    float64
}

// ScenarioResult is the aggregate portfolio impact of a single scenario.
type ScenarioResult struct {
	Scenario        string
	PositionImpacts []PositionImpact
	PortfolioImpactDollar float64
	PortfolioImpactPct    float64
}

// StressSummary is the worst-case and average-case impact across a set of
// scenario results, plus the full per-scenario breakdown.
type StressSummary struct {
	Scenarios   []ScenarioResult
	WorstCase   ScenarioResult
	AverageCasePct float64
}

// ApplyScenario computes the per-position and portfolio-level dollar impact
// of scenario on the given positions, applying the sector rotation shock on
// top of the market shock only for positions whose symbol maps (via
// sectorOf) to a sector, and the liquidity haircut to every position's
// MarketValue regardless of sector.
func ApplyScenario(scenario StressScenario, positions []domain.Position, sectorOf map[string]string) ScenarioResult {
	var totalImpact, totalValue float64
	impacts := make([]PositionImpact, 0, len(positions))

	for _, pos := range positions {
		shock := scenario.MarketShockPct
		if sectorOf != nil {
			if _, hasSector := sectorOf[pos.Symbol]; hasSector {
				shock += scenario.SectorRotationPct
			}
		}
		shock += scenario.LiquidityShockPct

		impactDollar := pos.MarketValue * shock
		impacts = append(impacts, PositionImpact{
			Symbol:       pos.Symbol,
			ImpactDollar: impactDollar,
			ImpactPct:    shock,
		})
		totalImpact += impactDollar
		totalValue += pos.MarketValue
	}

	var portfolioImpactPct float64
	if totalValue != 0 {
		portfolioImpactPct = totalImpact / totalValue
	}

	return ScenarioResult{
		Scenario:              scenario.Name,
		PositionImpacts:       impacts,
		PortfolioImpactDollar: totalImpact,
		PortfolioImpactPct:    portfolioImpactPct,
	}
}

// RunStressTest applies every scenario in scenarios to positions and
// summarises worst-case (most negative PortfolioImpactPct) and average-case
// impact across all scenarios.
func RunStressTest(scenarios []StressScenario, positions []domain.Position, sectorOf map[string]string) StressSummary {
	results := make([]ScenarioResult, 0, len(scenarios))
	var sumPct float64
	worst := ScenarioResult{PortfolioImpactPct: 1} // anything real is <= 0 in practice

	for _, sc := range scenarios {
		r := ApplyScenario(sc, positions, sectorOf)
		results = append(results, r)
		sumPct += r.PortfolioImpactPct
		if r.PortfolioImpactPct < worst.PortfolioImpactPct {
			worst = r
		}
	}

	var avg float64
	if len(scenarios) > 0 {
		avg = sumPct / float64(len(scenarios))
	}

	return StressSummary{
		Scenarios:      results,
		WorstCase:      worst,
		AverageCasePct: avg,
	}
}
