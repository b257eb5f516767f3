package indicators

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"marketcore/internal/domain"
)

// maxFanout bounds per-symbol indicator computation concurrency, mirroring
// the teacher's bounded worker pool (internal/esi/contracts.go,
// FetchContractItemsBatch) but expressed with errgroup, the sibling API in
// the same golang.org/x/sync module the teacher already depends on for
// singleflight.
func maxFanout() int {
	n := runtime.NumCPU()
	if n > 4 {
		return 4
	}
	if n < 1 {
		return 1
	}
	return n
}

// ComputeAll computes the full indicator library for every symbol in panel,
// fanning out across symbols with bounded concurrency. The returned
// IndicatorPanel shares panel's date axis.
func ComputeAll(ctx context.Context, panel *domain.PricePanel) (*domain.IndicatorPanel, error) {
	out := domain.NewIndicatorPanel(panel.Dates)

	type symbolResult struct {
		symbol string
		series map[string]series
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxFanout())

	results := make(chan symbolResult, len(panel.Symbols))
	for _, sym := range panel.Symbols {
		sym := sym
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			results <- symbolResult{symbol: sym, series: computeSymbol(panel, sym)}
			return nil
		})
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- g.Wait()
		close(results)
	}()

	for res := range results {
		for name, s := range res.series {
			out.SetSeries(name, res.symbol, s.values, s.available)
		}
	}
	return out, <-waitErr
}

// computeSymbol runs every indicator kernel over one symbol's aligned bar
// series and returns them keyed by indicator name.
func computeSymbol(panel *domain.PricePanel, sym string) map[string]series {
	n := len(panel.Dates)
	closesArr := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	avail := make([]bool, n)
	for i := 0; i < n; i++ {
		if bar, ok := panel.Bar(sym, i); ok {
			closesArr[i] = bar.Close
			highs[i] = bar.High
			lows[i] = bar.Low
			volumes[i] = bar.Volume
			avail[i] = true
		}
	}

	out := make(map[string]series, 16)
	put := func(name string, values []float64, ok []bool) {
		out[name] = series{values: values, available: ok}
	}

	for _, p := range []int{20, 50, 200} {
		v, ok := SMA(closesArr, avail, p)
		put(smaName(p), v, ok)
	}
	for _, p := range []int{12, 26} {
		v, ok := EMA(closesArr, avail, p)
		put(emaName(p), v, ok)
	}
	rsi, rsiOK := RSI(closesArr, avail, 14)
	put("RSI14", rsi, rsiOK)

	macd, signal, hist, macdOK, signalOK, histOK := MACD(closesArr, avail, 12, 26, 9)
	put("MACD", macd, macdOK)
	put("MACD_SIGNAL", signal, signalOK)
	put("MACD_HIST", hist, histOK)

	upper, middle, lower, bbOK := Bollinger(closesArr, avail, 20, 2)
	put("BB_UPPER", upper, bbOK)
	put("BB_MIDDLE", middle, bbOK)
	put("BB_LOWER", lower, bbOK)

	atr, atrOK := ATR(highs, lows, closesArr, avail, 14)
	put("ATR14", atr, atrOK)

	k, d, kOK, dOK := Stochastic(highs, lows, closesArr, avail, 14, 3)
	put("STOCH_K", k, kOK)
	put("STOCH_D", d, dOK)

	obv, obvOK := OBV(closesArr, volumes, avail)
	put("OBV", obv, obvOK)

	adx, adxOK := ADX(highs, lows, closesArr, avail, 14)
	put("ADX14", adx, adxOK)

	return out
}

func smaName(period int) string {
	switch period {
	case 20:
		return "SMA20"
	case 50:
		return "SMA50"
	case 200:
		return "SMA200"
	default:
		return "SMA"
	}
}

func emaName(period int) string {
	switch period {
	case 12:
		return "EMA12"
	case 26:
		return "EMA26"
	default:
		return "EMA"
	}
}
