package indicators

import "marketcore/internal/domain"

// Decision is the outcome of evaluating a strategy's entry/exit composites
// for one (symbol, date).
type Decision struct {
	EntryScore float64
	ExitScore  float64
	ShouldExit bool
	ShouldEnter bool
}

// Evaluate computes the entry and exit composites for strategy at
// (symbol, date index i) and applies the tie-break rule of spec §4.2: if
// both composites clear their thresholds on the same bar, exit wins.
func Evaluate(strategy domain.TradingStrategy, panel *domain.IndicatorPanel, symbol string, i int) Decision {
	entry := CompositeSignal(strategy.EntryRules, panel, symbol, i)
	exit := CompositeSignal(strategy.ExitRules, panel, symbol, i)

	entryFires := entry >= strategy.EntryThreshold
	exitFires := exit >= strategy.ExitThreshold

	d := Decision{EntryScore: entry, ExitScore: exit}
	if exitFires {
		d.ShouldExit = true
		return d
	}
	d.ShouldEnter = entryFires
	return d
}
