package backtest

import (
	"context"
	"math"
	"testing"
	"time"

	"marketcore/internal/domain"
	"marketcore/internal/indicators"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

// --- Sizing ---

func TestSizePositionDispatchesByMethod(t *testing.T) {
	returns60d := make([]float64, 60)
	for i := range returns60d {
		returns60d[i] = 0.001
	}
	trades := make([]tradeOutcome, 12)
	for i := range trades {
		if i%3 == 0 {
			trades[i] = tradeOutcome{ReturnPct: -0.05}
		} else {
			trades[i] = tradeOutcome{ReturnPct: 0.08}
		}
	}

	tests := []struct {
		name     string
		strategy domain.TradingStrategy
	}{
		{"equal weight", domain.TradingStrategy{SizingMethod: domain.SizingEqualWeight}},
		{"volatility normalized", domain.TradingStrategy{SizingMethod: domain.SizingVolatilityNormalized, TargetVolatility: 0.15}},
		{"kelly criterion", domain.TradingStrategy{SizingMethod: domain.SizingKellyCriterion}},
		{"fixed dollar", domain.TradingStrategy{SizingMethod: domain.SizingFixedDollar, FixedDollarAmt: 5000}},
		{"risk parity", domain.TradingStrategy{SizingMethod: domain.SizingRiskParity}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SizePosition(tt.strategy, returns60d, trades, 100000, 0.4)
			if got < 0 || got > 1 {
				t.Errorf("SizePosition(%s) = %v, want in [0,1]", tt.name, got)
			}
		})
	}
}

func TestSizePositionRespectsMaxPositionSizeCap(t *testing.T) {
	strategy := domain.TradingStrategy{SizingMethod: domain.SizingFixedDollar, FixedDollarAmt: 90000, MaxPositionSize: 0.05}
	got := SizePosition(strategy, nil, nil, 100000, 0)
	if got > 0.05+1e-9 {
		t.Errorf("SizePosition = %v, want <= MaxPositionSize 0.05", got)
	}
}

func TestKellySizeFallsBackBelowMinTrades(t *testing.T) {
	trades := []tradeOutcome{{ReturnPct: 0.1}, {ReturnPct: -0.05}}
	got := kellySize(trades)
	if got != degenerateSizingFraction {
		t.Errorf("kellySize(%d trades) = %v, want degenerate fraction %v", len(trades), got, degenerateSizingFraction)
	}
}

func TestKellySizeFallsBackWithNoLosses(t *testing.T) {
	trades := make([]tradeOutcome, minKellyTrades)
	for i := range trades {
		trades[i] = tradeOutcome{ReturnPct: 0.05}
	}
	got := kellySize(trades)
	if got != degenerateSizingFraction {
		t.Errorf("kellySize(all wins) = %v, want degenerate fraction %v", got, degenerateSizingFraction)
	}
}

func TestVolatilityNormalizedSizeRequires60Returns(t *testing.T) {
	short := make([]float64, 59)
	got := volatilityNormalizedSize(0.15, short)
	if got != degenerateSizingFraction {
		t.Errorf("volatilityNormalizedSize(59 returns) = %v, want degenerate fraction", got)
	}
}

func TestRiskParityWeightsSumToOne(t *testing.T) {
	vols := map[string]float64{"AAA": 0.1, "BBB": 0.2, "CCC": 0.3}
	weights := RiskParityWeights(vols)
	var sum float64
	for _, w := range weights {
		sum += w
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Errorf("RiskParityWeights sums to %v, want 1", sum)
	}
	if weights["AAA"] <= weights["BBB"] || weights["BBB"] <= weights["CCC"] {
		t.Errorf("RiskParityWeights(%v) expected lower-vol symbols to get larger weight, got %v", vols, weights)
	}
}

func TestSizePositionRiskParityUsesSuppliedWeight(t *testing.T) {
	strategy := domain.TradingStrategy{SizingMethod: domain.SizingRiskParity, MaxPositionSize: 1}
	got := SizePosition(strategy, nil, nil, 100000, 0.37)
	if math.Abs(got-0.37) > 1e-9 {
		t.Errorf("SizePosition(risk parity, weight=0.37) = %v, want 0.37", got)
	}
	fallback := SizePosition(strategy, nil, nil, 100000, 0)
	if fallback != degenerateSizingFraction {
		t.Errorf("SizePosition(risk parity, weight=0) = %v, want degenerate fraction %v", fallback, degenerateSizingFraction)
	}
}

func TestRiskParityWeightsEmptyInput(t *testing.T) {
	weights := RiskParityWeights(nil)
	if len(weights) != 0 {
		t.Errorf("RiskParityWeights(nil) = %v, want empty", weights)
	}
}

// --- Cost model ---

func TestComputeCostScalesWithNotional(t *testing.T) {
	model := domain.TransactionCostModel{FixedPerTrade: 1, PctPerTrade: 0.0005, SlippageBps: 5, SpreadBps: 2, ImpactCoeff: 0.1}
	small := ComputeCost(model, 10, 100, 1_000_000)
	large := ComputeCost(model, 1000, 100, 1_000_000)
	if large.Total() <= small.Total() {
		t.Errorf("ComputeCost(1000 shares) total %v should exceed ComputeCost(10 shares) total %v", large.Total(), small.Total())
	}
}

func TestComputeCostZeroVolumeZeroesImpact(t *testing.T) {
	model := domain.TransactionCostModel{ImpactCoeff: 0.1}
	cost := ComputeCost(model, 100, 50, 0)
	if cost.MarketImpact != 0 {
		t.Errorf("ComputeCost(marketVolume=0) impact = %v, want 0", cost.MarketImpact)
	}
}

func TestExecutedPriceDirection(t *testing.T) {
	buy := ExecutedPrice(domain.SideBuy, 100, 50, 100) // 0.5/share
	sell := ExecutedPrice(domain.SideSell, 100, 50, 100)
	if buy <= 100 {
		t.Errorf("ExecutedPrice(BUY) = %v, want > 100", buy)
	}
	if sell >= 100 {
		t.Errorf("ExecutedPrice(SELL) = %v, want < 100", sell)
	}
}

// --- Portfolio execution ---

func TestExecuteBuyWeightedAverageEntryPrice(t *testing.T) {
	state := newPortfolioState(100000)
	model := domain.TransactionCostModel{}
	idFactory := func() string { return "t1" }

	trade1, err := state.executeBuy("AAA", 100, 50, 1_000_000, model, day(0), 0.8, idFactory)
	if err != nil || trade1 == nil {
		t.Fatalf("executeBuy #1 failed: %v, trade=%v", err, trade1)
	}
	trade2, err := state.executeBuy("AAA", 100, 60, 1_000_000, model, day(1), 0.8, idFactory)
	if err != nil || trade2 == nil {
		t.Fatalf("executeBuy #2 failed: %v, trade=%v", err, trade2)
	}

	pos := state.positions["AAA"]
	wantEntry := (50.0*100 + 60.0*100) / 200.0
	if math.Abs(pos.EntryPrice-wantEntry) > 1e-6 {
		t.Errorf("weighted-average EntryPrice = %v, want %v", pos.EntryPrice, wantEntry)
	}
	if pos.Quantity != 200 {
		t.Errorf("Quantity = %v, want 200", pos.Quantity)
	}
}

func TestExecuteBuyRescalesToAffordableQuantityWithinBudget(t *testing.T) {
	state := newPortfolioState(1000) // not enough for 100 shares at 50
	model := domain.TransactionCostModel{}
	idFactory := func() string { return "t1" }

	trade, err := state.executeBuy("AAA", 100, 50, 1_000_000, model, day(0), 0.8, idFactory)
	if err != nil {
		t.Fatalf("executeBuy returned error: %v", err)
	}
	if trade == nil {
		t.Fatal("executeBuy returned nil trade, want a rescaled fill")
	}
	if float64(trade.Quantity)*trade.ExecutedPrice > 1000*buyBudgetFraction+1e-6 {
		t.Errorf("rescaled notional %v exceeds 99%% cash budget", float64(trade.Quantity)*trade.ExecutedPrice)
	}
	if state.cash < 0 {
		t.Errorf("cash went negative: %v", state.cash)
	}
}

func TestExecuteBuySkipsWhenUnaffordable(t *testing.T) {
	state := newPortfolioState(1) // cannot afford even 1 share
	model := domain.TransactionCostModel{}
	idFactory := func() string { return "t1" }

	trade, err := state.executeBuy("AAA", 100, 50, 1_000_000, model, day(0), 0.8, idFactory)
	if err != nil {
		t.Fatalf("executeBuy returned error: %v", err)
	}
	if trade != nil {
		t.Errorf("executeBuy = %+v, want nil (unaffordable)", trade)
	}
}

func TestExecuteSellComputesRealizedPnL(t *testing.T) {
	state := newPortfolioState(100000)
	model := domain.TransactionCostModel{}
	idFactory := func() string { return "t1" }

	_, err := state.executeBuy("AAA", 100, 50, 1_000_000, model, day(0), 0.8, idFactory)
	if err != nil {
		t.Fatalf("executeBuy failed: %v", err)
	}

	trade, err := state.executeSell("AAA", 100, 60, 1_000_000, model, day(1), 0.8, idFactory)
	if err != nil {
		t.Fatalf("executeSell failed: %v", err)
	}
	if trade == nil || trade.RealizedPnL == nil {
		t.Fatal("executeSell: expected a trade with RealizedPnL set")
	}
	wantPnL := (60.0 - 50.0) * 100
	if math.Abs(*trade.RealizedPnL-wantPnL) > 1e-6 {
		t.Errorf("RealizedPnL = %v, want %v", *trade.RealizedPnL, wantPnL)
	}
	if _, stillHeld := state.positions["AAA"]; stillHeld {
		t.Error("position should be fully closed and removed after selling the entire quantity")
	}
}

func TestExecuteSellClampsToHeldQuantity(t *testing.T) {
	state := newPortfolioState(100000)
	model := domain.TransactionCostModel{}
	idFactory := func() string { return "t1" }
	state.executeBuy("AAA", 50, 50, 1_000_000, model, day(0), 0.8, idFactory)

	trade, err := state.executeSell("AAA", 1000, 60, 1_000_000, model, day(1), 0.8, idFactory)
	if err != nil {
		t.Fatalf("executeSell failed: %v", err)
	}
	if trade.Quantity != 50 {
		t.Errorf("executeSell clamped quantity = %v, want 50 (held amount)", trade.Quantity)
	}
}

func TestMarkToMarketUsesTodaysPriceForWeights(t *testing.T) {
	state := newPortfolioState(100000)
	model := domain.TransactionCostModel{}
	state.executeBuy("AAA", 100, 50, 1_000_000, model, day(0), 0.8, func() string { return "t1" })
	state.executeBuy("BBB", 100, 50, 1_000_000, model, day(0), 0.8, func() string { return "t2" })

	state.markToMarket(map[string]float64{"AAA": 100, "BBB": 50})

	aaa := state.positions["AAA"]
	bbb := state.positions["BBB"]
	if aaa.MarketValue != 10000 {
		t.Errorf("AAA MarketValue = %v, want 10000", aaa.MarketValue)
	}
	total := state.totalValue()
	if math.Abs(aaa.Weight-aaa.MarketValue/total) > 1e-9 {
		t.Errorf("AAA weight %v inconsistent with MarketValue/total %v", aaa.Weight, aaa.MarketValue/total)
	}
	if bbb.Weight >= aaa.Weight {
		t.Errorf("BBB weight %v should be less than AAA weight %v after AAA doubled in price", bbb.Weight, aaa.Weight)
	}
}

// --- Sector cap ---

func TestApplySectorCapLimitsConcentration(t *testing.T) {
	strategy := domain.TradingStrategy{MaxSectorWeight: 0.2}
	sectorOf := map[string]string{"AAA": "tech", "BBB": "tech"}
	positions := map[string]*domain.Position{
		"AAA": {Symbol: "AAA", Weight: 0.15},
	}
	got := applySectorCap(strategy, sectorOf, positions, "BBB", 0.10, 100000)
	if got > 0.05+1e-9 {
		t.Errorf("applySectorCap = %v, want <= 0.05 (room left under 0.2 cap)", got)
	}
}

func TestApplySectorCapNoLimitWhenUnconfigured(t *testing.T) {
	strategy := domain.TradingStrategy{MaxSectorWeight: 0}
	got := applySectorCap(strategy, nil, nil, "AAA", 0.30, 100000)
	if got != 0.30 {
		t.Errorf("applySectorCap(unconfigured) = %v, want unchanged 0.30", got)
	}
}

// --- Walk-forward ---

func TestRunWalkForwardFallsBackToSingleWindowWithoutParamGrid(t *testing.T) {
	cfg := domain.BacktestConfig{
		Strategy:       domain.TradingStrategy{SizingMethod: domain.SizingEqualWeight},
		Universe:       []string{"AAA"},
		StartDate:      day(0),
		EndDate:        day(10),
		InitialCapital: 100000,
		WalkForward:    &domain.WalkForwardConfig{EnableOptimization: true},
	}
	panel := buildFlatPanel([]string{"AAA"}, 0, 11, 100)
	indicatorPanel := domain.NewIndicatorPanel(panel.Dates)

	result, err := RunWalkForward(context.Background(), cfg, panel, indicatorPanel, nil, nil)
	if err != nil {
		t.Fatalf("RunWalkForward returned error: %v", err)
	}
	if !result.FellBackToSingleWindow {
		t.Error("expected FellBackToSingleWindow=true when EnableOptimization is set but ParamGrid is empty")
	}
}

func TestOverfittingScoreClampedToUnitRange(t *testing.T) {
	tests := []struct {
		name        string
		trainSharpe float64
		testSharpe  float64
	}{
		{"equal sharpes", 1.0, 1.0},
		{"train much better", 2.0, -1.0},
		{"test better than train", -1.0, 2.0},
		{"both zero", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := overfittingScore(tt.trainSharpe, tt.testSharpe)
			if got < 0 || got > 1 {
				t.Errorf("overfittingScore(%v,%v) = %v, want in [0,1]", tt.trainSharpe, tt.testSharpe, got)
			}
		})
	}
}

// --- No look-ahead ---

// buildOscillatingPanel builds a price series that swings enough to trip
// RSI-based entry/exit rules repeatedly, so a no-look-ahead comparison
// actually exercises trades rather than comparing two empty runs.
func buildOscillatingPanel(symbols []string, numDays int) *domain.PricePanel {
	dates := make([]time.Time, numDays)
	for i := 0; i < numDays; i++ {
		dates[i] = day(i)
	}
	panel := domain.NewPricePanel(dates, symbols)
	for _, sym := range symbols {
		for i, d := range dates {
			price := 100 + 15*math.Sin(float64(i)*0.3)
			panel.Set(sym, i, domain.Bar{Date: d, Open: price, High: price + 0.5, Low: price - 0.5, Close: price, Volume: 1_000_000})
		}
	}
	return panel
}

// blankOutFrom returns a copy of panel whose bars at indices > cutoff are
// replaced with NaN (still present, never simply omitted).
func blankOutFrom(panel *domain.PricePanel, symbols []string, cutoff int) *domain.PricePanel {
	out := domain.NewPricePanel(panel.Dates, symbols)
	nan := math.NaN()
	for _, sym := range symbols {
		for i := range panel.Dates {
			if i > cutoff {
				out.Set(sym, i, domain.Bar{Date: panel.Dates[i], Open: nan, High: nan, Low: nan, Close: nan, Volume: nan})
				continue
			}
			bar, _ := panel.Bar(sym, i)
			out.Set(sym, i, bar)
		}
	}
	return out
}

func rsiCrossStrategy() domain.TradingStrategy {
	return domain.TradingStrategy{
		SizingMethod:   domain.SizingEqualWeight,
		EntryRules:     []domain.SignalRule{{Indicator: "RSI14", Operator: domain.OpCrossunder, Threshold: 40, Weight: 1}},
		ExitRules:      []domain.SignalRule{{Indicator: "RSI14", Operator: domain.OpCrossover, Threshold: 60, Weight: 1}},
		EntryThreshold: 0.5,
		ExitThreshold:  0.5,
		MaxPositions:   5,
	}
}

func TestRunHasNoLookAhead(t *testing.T) {
	symbols := []string{"AAA"}
	const numDays = 80
	const cutoff = 40

	full := buildOscillatingPanel(symbols, numDays)
	blanked := blankOutFrom(full, symbols, cutoff)

	fullIndicators, err := indicators.ComputeAll(context.Background(), full)
	if err != nil {
		t.Fatalf("ComputeAll(full) error: %v", err)
	}
	blankedIndicators, err := indicators.ComputeAll(context.Background(), blanked)
	if err != nil {
		t.Fatalf("ComputeAll(blanked) error: %v", err)
	}

	cfg := domain.BacktestConfig{
		Strategy:       rsiCrossStrategy(),
		Universe:       symbols,
		StartDate:      full.Dates[0],
		EndDate:        full.Dates[numDays-1],
		InitialCapital: 100000,
	}

	fullResult, err := Run(context.Background(), cfg, full, fullIndicators, nil, nil)
	if err != nil {
		t.Fatalf("Run(full) error: %v", err)
	}
	blankedResult, err := Run(context.Background(), cfg, blanked, blankedIndicators, nil, nil)
	if err != nil {
		t.Fatalf("Run(blanked) error: %v", err)
	}

	if len(fullResult.EquityCurve) != len(blankedResult.EquityCurve) {
		t.Fatalf("EquityCurve lengths differ: %d vs %d", len(fullResult.EquityCurve), len(blankedResult.EquityCurve))
	}
	for i, snap := range fullResult.EquityCurve {
		if i > cutoff {
			break
		}
		other := blankedResult.EquityCurve[i]
		if math.Abs(snap.TotalValue-other.TotalValue) > 1e-9 {
			t.Errorf("day %d: TotalValue = %v, want %v (future bars must not affect the past)", i, other.TotalValue, snap.TotalValue)
		}
	}

	var tradesUpToCutoff int
	for _, tr := range fullResult.Trades {
		idx := full.IndexOf(tr.Timestamp)
		if idx <= cutoff {
			tradesUpToCutoff++
		}
	}
	if tradesUpToCutoff == 0 {
		t.Fatal("test setup produced no trades by the cutoff; strengthen the oscillation to exercise a real comparison")
	}
	for i, tr := range fullResult.Trades {
		idx := full.IndexOf(tr.Timestamp)
		if idx > cutoff {
			break
		}
		if i >= len(blankedResult.Trades) || !tradesEqual(blankedResult.Trades[i], tr) {
			t.Errorf("trade %d differs between full and blanked-future runs: %+v vs %+v", i, tr, blankedResult.Trades)
		}
	}
}

func tradesEqual(a, b domain.Trade) bool {
	if a.Symbol != b.Symbol || a.Side != b.Side || a.Quantity != b.Quantity ||
		a.ExecutedPrice != b.ExecutedPrice || !a.Timestamp.Equal(b.Timestamp) ||
		a.Commission != b.Commission || a.Slippage != b.Slippage ||
		a.MarketImpact != b.MarketImpact || a.SignalStrength != b.SignalStrength {
		return false
	}
	if (a.RealizedPnL == nil) != (b.RealizedPnL == nil) {
		return false
	}
	if a.RealizedPnL != nil && *a.RealizedPnL != *b.RealizedPnL {
		return false
	}
	if (a.ReturnPct == nil) != (b.ReturnPct == nil) {
		return false
	}
	if a.ReturnPct != nil && *a.ReturnPct != *b.ReturnPct {
		return false
	}
	return true
}

// buildFlatPanel constructs a minimal price panel with a constant close price
// across numDays days for each symbol, to exercise the event loop without
// depending on the indicator panel producing any active signals.
func buildFlatPanel(symbols []string, startDay, numDays int, price float64) *domain.PricePanel {
	dates := make([]time.Time, numDays)
	for i := 0; i < numDays; i++ {
		dates[i] = day(startDay + i)
	}
	panel := domain.NewPricePanel(dates, symbols)
	for _, sym := range symbols {
		for i, d := range dates {
			panel.Set(sym, i, domain.Bar{Date: d, Open: price, High: price, Low: price, Close: price, Volume: 1_000_000})
		}
	}
	return panel
}
