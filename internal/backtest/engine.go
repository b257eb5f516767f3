package backtest

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"marketcore/internal/corekit"
	"marketcore/internal/domain"
	"marketcore/internal/indicators"
	"marketcore/internal/riskmetrics"
)

// ProgressSink receives progress updates during a run, per spec §4.3 step 6
// / §4.5. Implementations must be safe to call from the goroutine running
// Run.
type ProgressSink interface {
	Report(fractionComplete float64, message string)
}

// noopSink discards progress updates when the caller doesn't supply one.
type noopSink struct{}

func (noopSink) Report(float64, string) {}

// Run executes a single (non-walk-forward) backtest over [cfg.StartDate,
// cfg.EndDate] ∩ panel.Dates, per spec §4.3's event loop.
func Run(ctx context.Context, cfg domain.BacktestConfig, panel *domain.PricePanel, indicatorPanel *domain.IndicatorPanel, benchmarkReturns []float64, sink ProgressSink) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = noopSink{}
	}

	dayIndices := dateRangeIndices(panel.Dates, cfg.StartDate, cfg.EndDate)
	if len(dayIndices) == 0 {
		return nil, corekit.DataUnavailablef(cfg.Universe, "no panel dates fall within [%s,%s]", cfg.StartDate, cfg.EndDate)
	}

	state := newPortfolioState(cfg.InitialCapital)
	holdingSince := make(map[string]time.Time)
	tradeHistory := make(map[string][]tradeOutcome)
	tradeClosedAt := make(map[string][]int) // step index of each tradeHistory entry
	closeHistory := make(map[string][]float64)

	var equity []domain.PortfolioSnapshot
	var trades []domain.Trade
	prevTotal := cfg.InitialCapital

	for step, idx := range dayIndices {
		select {
		case <-ctx.Done():
			return nil, corekit.NewError(corekit.ErrCancelled, "backtest cancelled", nil)
		default:
		}

		date := panel.Dates[idx]
		closes := panel.Closes(idx)

		for _, sym := range cfg.Universe {
			if price, ok := closes[sym]; ok {
				closeHistory[sym] = append(closeHistory[sym], price)
			}
		}

		riskParityWeights := dayRiskParityWeights(cfg.Strategy, cfg.Universe, closeHistory)

		for _, sym := range cfg.Universe {
			price, ok := closes[sym]
			if !ok {
				continue
			}

			decision := indicators.Evaluate(cfg.Strategy, indicatorPanel, sym, idx)
			_, holding := state.positions[sym]

			if holding && decision.ShouldExit {
				pos := state.positions[sym]
				marketVolume := barVolume(panel, sym, idx)
				trade, err := state.executeSell(sym, pos.Quantity, price, marketVolume, cfg.CostModel, date, decision.ExitScore, uuid.NewString)
				if err != nil {
					return nil, err
				}
				if trade != nil {
					trades = append(trades, *trade)
					if trade.ReturnPct != nil {
						tradeHistory[sym] = append(tradeHistory[sym], tradeOutcome{ReturnPct: *trade.ReturnPct})
						tradeClosedAt[sym] = append(tradeClosedAt[sym], step)
					}
					delete(holdingSince, sym)
				}
				continue
			}

			if !holding && decision.ShouldEnter && len(state.positions) < maxPositionsOrDefault(cfg.Strategy.MaxPositions) {
				since, everHeld := holdingSince[sym]
				heldDays := 0
				if everHeld {
					heldDays = int(date.Sub(since).Hours() / 24)
				}
				if everHeld && heldDays < cfg.Strategy.MinHoldingDays {
					continue
				}

				returns60d := trailingReturns(closeHistory[sym], 60)
				first := 0
				for first < len(tradeClosedAt[sym]) && step-tradeClosedAt[sym][first] >= 252 {
					first++
				}
				recentTrades := tradeHistory[sym][first:]
				weight := SizePosition(cfg.Strategy, returns60d, recentTrades, state.totalValue(), riskParityWeights[sym])
				weight = applySectorCap(cfg.Strategy, cfg.SectorOf, state.positions, sym, weight, state.totalValue())
				targetValue := weight * state.totalValue()
				qty := int64(math.Floor(targetValue / price))
				if qty <= 0 {
					continue
				}

				marketVolume := barVolume(panel, sym, idx)
				trade, err := state.executeBuy(sym, qty, price, marketVolume, cfg.CostModel, date, decision.EntryScore, uuid.NewString)
				if err != nil {
					return nil, err
				}
				if trade != nil {
					trades = append(trades, *trade)
					holdingSince[sym] = date
				}
			}
		}

		state.markToMarket(closes)
		total := state.totalValue()

		var dailyReturnPct float64
		if step > 0 && prevTotal > 0 {
			dailyReturnPct = (total - prevTotal) / prevTotal
		}

		snapshot := domain.PortfolioSnapshot{
			Date:           date,
			TotalValue:     total,
			Cash:           state.cash,
			Positions:      snapshotPositions(state.positions),
			DailyReturn:    total - prevTotal,
			DailyReturnPct: dailyReturnPct,
		}
		if step < len(benchmarkReturns) {
			br := benchmarkReturns[step]
			snapshot.BenchmarkReturnPct = &br
		}
		snapshot.GrossExposure, snapshot.NetExposure, snapshot.Leverage = exposures(state.positions, total)
		equity = append(equity, snapshot)
		prevTotal = total

		sink.Report(float64(step+1)/float64(len(dayIndices)), "simulated "+date.Format("2006-01-02"))
	}

	return &Result{
		Metrics:       riskmetrics.Aggregate(equity, trades, benchmarkReturns, 0),
		EquityCurve:   equity,
		Trades:        trades,
		BenchmarkUsed: len(benchmarkReturns) > 0,
	}, nil
}

// applySectorCap sizes a proposed entry down to MaxSectorWeight (a soft cap,
// not a rejection) if adding it at the proposed weight would push the
// symbol's sector over the cap, per SPEC_FULL.md's per-sector cap supplement.
func applySectorCap(strategy domain.TradingStrategy, sectorOf map[string]string, positions map[string]*domain.Position, symbol string, proposedWeight, totalValue float64) float64 {
	if strategy.MaxSectorWeight <= 0 || totalValue <= 0 {
		return proposedWeight
	}
	sector, ok := sectorOf[symbol]
	if !ok || sector == "" {
		return proposedWeight
	}
	var sectorWeight float64
	for sym, pos := range positions {
		if sectorOf[sym] == sector {
			sectorWeight += pos.Weight
		}
	}
	room := strategy.MaxSectorWeight - sectorWeight
	if room <= 0 {
		return 0
	}
	if proposedWeight > room {
		return room
	}
	return proposedWeight
}

func barVolume(panel *domain.PricePanel, sym string, idx int) float64 {
	if bar, ok := panel.Bar(sym, idx); ok {
		return bar.Volume
	}
	return 0
}

func maxPositionsOrDefault(n int) int {
	if n <= 0 {
		return 20
	}
	return n
}

// dateRangeIndices returns the panel date indices falling within
// [start,end], inclusive.
func dateRangeIndices(dates []time.Time, start, end time.Time) []int {
	var out []int
	for i, d := range dates {
		if !d.Before(start) && !d.After(end) {
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}

// dayRiskParityWeights computes the day's cross-sectional RiskParityWeights
// across universe, keyed on each symbol's trailing ~60-day annualised
// volatility. Returns nil when the strategy isn't using RISK_PARITY, so
// callers can index a nil map for every other sizing method at no cost.
func dayRiskParityWeights(strategy domain.TradingStrategy, universe []string, closeHistory map[string][]float64) map[string]float64 {
	if strategy.SizingMethod != domain.SizingRiskParity {
		return nil
	}
	volBySymbol := make(map[string]float64, len(universe))
	for _, sym := range universe {
		returns := trailingReturns(closeHistory[sym], 60)
		if len(returns) < 2 {
			continue
		}
		vol := corekit.SampleStdDev(returns) * math.Sqrt(252)
		if vol > 0 {
			volBySymbol[sym] = vol
		}
	}
	return RiskParityWeights(volBySymbol)
}

// trailingReturns computes up to n daily returns from the tail of closes,
// oldest first.
func trailingReturns(closes []float64, n int) []float64 {
	if len(closes) < 2 {
		return nil
	}
	start := len(closes) - n - 1
	if start < 0 {
		start = 0
	}
	window := closes[start:]
	returns := make([]float64, 0, len(window)-1)
	for i := 1; i < len(window); i++ {
		if window[i-1] == 0 {
			continue
		}
		returns = append(returns, (window[i]-window[i-1])/window[i-1])
	}
	return returns
}

func snapshotPositions(positions map[string]*domain.Position) []domain.Position {
	out := make([]domain.Position, 0, len(positions))
	symbols := make([]string, 0, len(positions))
	for sym := range positions {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	for _, sym := range symbols {
		out = append(out, *positions[sym])
	}
	return out
}

func exposures(positions map[string]*domain.Position, total float64) (gross, net, leverage float64) {
	for _, pos := range positions {
		gross += math.Abs(pos.MarketValue)
		net += pos.MarketValue
	}
	if total > 0 {
		leverage = gross / total
	}
	return
}
