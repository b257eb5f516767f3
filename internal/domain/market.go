// Package domain holds the shared data contracts of spec §3: bars, panels,
// positions, trades, snapshots, performance metrics, option contracts and
// jobs. It has no behavior of its own beyond small invariant checks —
// pricing, indicators, backtest, riskmetrics and jobs all operate on these
// types without owning them.
package domain

import "time"

// Bar is one OHLCV observation for a symbol on a civil date.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Valid reports whether the bar satisfies the §3 invariants:
// low ≤ open,close ≤ high and volume ≥ 0.
func (b Bar) Valid() bool {
	if b.Volume < 0 {
		return false
	}
	if b.Low > b.Open || b.Open > b.High {
		return false
	}
	if b.Low > b.Close || b.Close > b.High {
		return false
	}
	return true
}

// Series is an ordered sequence of bars for one symbol, strictly increasing
// in date.
type Series []Bar

// SortedByDate reports whether the series is strictly increasing in date.
func (s Series) SortedByDate() bool {
	for i := 1; i < len(s); i++ {
		if !s[i].Date.After(s[i-1].Date) {
			return false
		}
	}
	return true
}

// PricePanel maps symbol to its ordered bar sequence, aligned on a common
// business-day calendar. A symbol with no bar for a given date is
// "unavailable" for that date — callers must consult Available, never treat
// a missing entry as zero.
type PricePanel struct {
	Dates   []time.Time
	Symbols []string
	bars    map[string][]Bar      // symbol -> bars, parallel to Dates where available
	present map[string][]bool     // symbol -> availability bitmap, parallel to Dates
}

// NewPricePanel builds a panel over the given calendar and symbol set. Use
// Set to populate bars; unset cells default to unavailable.
func NewPricePanel(dates []time.Time, symbols []string) *PricePanel {
	p := &PricePanel{
		Dates:   dates,
		Symbols: symbols,
		bars:    make(map[string][]Bar, len(symbols)),
		present: make(map[string][]bool, len(symbols)),
	}
	for _, sym := range symbols {
		p.bars[sym] = make([]Bar, len(dates))
		p.present[sym] = make([]bool, len(dates))
	}
	return p
}

// Set records the bar for symbol at date index i, marking it available.
func (p *PricePanel) Set(sym string, i int, bar Bar) {
	if bars, ok := p.bars[sym]; ok && i >= 0 && i < len(bars) {
		p.bars[sym][i] = bar
		p.present[sym][i] = true
	}
}

// Bar returns the bar for symbol at date index i and whether it is
// available. A false second return means "unavailable" per spec §3 — the
// zero Bar value must never be mistaken for a real observation.
func (p *PricePanel) Bar(sym string, i int) (Bar, bool) {
	present, ok := p.present[sym]
	if !ok || i < 0 || i >= len(present) || !present[i] {
		return Bar{}, false
	}
	return p.bars[sym][i], true
}

// Closes returns the close price for every symbol at date index i, omitting
// symbols with no bar on that date.
func (p *PricePanel) Closes(i int) map[string]float64 {
	out := make(map[string]float64, len(p.Symbols))
	for _, sym := range p.Symbols {
		if bar, ok := p.Bar(sym, i); ok {
			out[sym] = bar.Close
		}
	}
	return out
}

// IndexOf returns the index of date d in the panel's calendar, or -1.
func (p *PricePanel) IndexOf(d time.Time) int {
	for i, dt := range p.Dates {
		if dt.Equal(d) {
			return i
		}
	}
	return -1
}

// Series returns the available bars for a symbol in panel order (gaps
// skipped), for callers that only need a dense price history.
func (p *PricePanel) Series(sym string) Series {
	present := p.present[sym]
	bars := p.bars[sym]
	out := make(Series, 0, len(bars))
	for i, ok := range present {
		if ok {
			out = append(out, bars[i])
		}
	}
	return out
}

// IndicatorPanel maps an (indicator name, symbol) pair to an ordered
// sequence of values aligned with a PricePanel's date axis. Warm-up samples
// at the start of a series are marked unavailable rather than extrapolated.
type IndicatorPanel struct {
	Dates  []time.Time
	values map[string][]float64 // "name|symbol" -> values, parallel to Dates
	avail  map[string][]bool
}

// NewIndicatorPanel builds an empty indicator panel over the given calendar.
func NewIndicatorPanel(dates []time.Time) *IndicatorPanel {
	return &IndicatorPanel{
		Dates:  dates,
		values: make(map[string][]float64),
		avail:  make(map[string][]bool),
	}
}

func indicatorKey(name, symbol string) string { return name + "|" + symbol }

// SetSeries installs a full computed series (with its own availability
// bitmap) for (name, symbol). len(values) and len(available) must equal
// len(Dates); callers use indicator kernels to build these, never construct
// them by hand.
func (p *IndicatorPanel) SetSeries(name, symbol string, values []float64, available []bool) {
	key := indicatorKey(name, symbol)
	p.values[key] = values
	p.avail[key] = available
}

// At returns the value of indicator `name` for `symbol` at date index i, and
// whether it is available (false during warm-up or if the series doesn't
// exist).
func (p *IndicatorPanel) At(name, symbol string, i int) (float64, bool) {
	key := indicatorKey(name, symbol)
	avail, ok := p.avail[key]
	if !ok || i < 0 || i >= len(avail) || !avail[i] {
		return 0, false
	}
	return p.values[key][i], true
}
