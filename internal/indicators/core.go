// Package indicators computes the technical-indicator library of spec §4.2
// (moving averages, oscillators, volatility bands, volume/trend indicators)
// and evaluates signal rules and composites against them. Every indicator
// kernel returns a value series paired with an availability bitmap — warm-up
// samples are marked unavailable, never extrapolated or zero-filled, per the
// domain.IndicatorPanel contract.
package indicators

import "math"

// series holds a computed indicator alongside its availability bitmap.
type series struct {
	values    []float64
	available []bool
}

func newSeries(n int) series {
	return series{values: make([]float64, n), available: make([]bool, n)}
}

// SMA computes the simple moving average over period samples.
func SMA(closes []float64, avail []bool, period int) ([]float64, []bool) {
	n := len(closes)
	out := newSeries(n)
	sum := 0.0
	count := 0
	for i := 0; i < n; i++ {
		if avail[i] {
			sum += closes[i]
			count++
		}
		if i >= period {
			if avail[i-period] {
				sum -= closes[i-period]
				count--
			}
		}
		if count == period && avail[i] {
			out.values[i] = sum / float64(period)
			out.available[i] = true
		}
	}
	return out.values, out.available
}

// EMA computes the exponential moving average, seeded by an SMA of the first
// period available samples.
func EMA(closes []float64, avail []bool, period int) ([]float64, []bool) {
	n := len(closes)
	out := newSeries(n)
	alpha := 2.0 / (float64(period) + 1.0)

	seedIdx := -1
	seedSum, seedCount := 0.0, 0
	for i := 0; i < n; i++ {
		if !avail[i] {
			continue
		}
		seedSum += closes[i]
		seedCount++
		if seedCount == period {
			seedIdx = i
			break
		}
	}
	if seedIdx < 0 {
		return out.values, out.available
	}

	prev := seedSum / float64(period)
	out.values[seedIdx] = prev
	out.available[seedIdx] = true
	for i := seedIdx + 1; i < n; i++ {
		if !avail[i] {
			continue
		}
		prev = alpha*closes[i] + (1-alpha)*prev
		out.values[i] = prev
		out.available[i] = true
	}
	return out.values, out.available
}

// RSI computes the relative strength index over period samples using Wilder
// smoothing.
func RSI(closes []float64, avail []bool, period int) ([]float64, []bool) {
	n := len(closes)
	out := newSeries(n)
	if n < period+1 {
		return out.values, out.available
	}

	var avgGain, avgLoss float64
	seeded := false
	prevClose := 0.0
	prevSet := false
	gains, losses := 0.0, 0.0
	seedCount := 0

	for i := 0; i < n; i++ {
		if !avail[i] {
			continue
		}
		if !prevSet {
			prevClose = closes[i]
			prevSet = true
			continue
		}
		delta := closes[i] - prevClose
		prevClose = closes[i]

		if !seeded {
			if delta > 0 {
				gains += delta
			} else {
				losses += -delta
			}
			seedCount++
			if seedCount == period {
				avgGain = gains / float64(period)
				avgLoss = losses / float64(period)
				seeded = true
				out.values[i] = rsiFromAverages(avgGain, avgLoss)
				out.available[i] = true
			}
			continue
		}

		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out.values[i] = rsiFromAverages(avgGain, avgLoss)
		out.available[i] = true
	}
	return out.values, out.available
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACD computes the MACD line, its signal line (EMA of the MACD line), and
// the histogram, from the given fast/slow/signal periods.
func MACD(closes []float64, avail []bool, fast, slow, signalPeriod int) (macd, signalLine, hist []float64, macdAvail, signalAvail, histAvail []bool) {
	n := len(closes)
	fastVals, fastAvail := EMA(closes, avail, fast)
	slowVals, slowAvail := EMA(closes, avail, slow)

	macd = make([]float64, n)
	macdAvail = make([]bool, n)
	for i := 0; i < n; i++ {
		if fastAvail[i] && slowAvail[i] {
			macd[i] = fastVals[i] - slowVals[i]
			macdAvail[i] = true
		}
	}

	signalLine, signalAvail = EMA(macd, macdAvail, signalPeriod)

	hist = make([]float64, n)
	histAvail = make([]bool, n)
	for i := 0; i < n; i++ {
		if macdAvail[i] && signalAvail[i] {
			hist[i] = macd[i] - signalLine[i]
			histAvail[i] = true
		}
	}
	return
}

// Bollinger computes the middle (SMA), upper and lower bands at
// numStdDev standard deviations over period samples.
func Bollinger(closes []float64, avail []bool, period int, numStdDev float64) (upper, middle, lower []float64, ok []bool) {
	n := len(closes)
	middle, midAvail := SMA(closes, avail, period)
	upper = make([]float64, n)
	lower = make([]float64, n)
	ok = make([]bool, n)

	for i := 0; i < n; i++ {
		if !midAvail[i] {
			continue
		}
		start := i - period + 1
		sumSq := 0.0
		count := 0
		for j := start; j <= i; j++ {
			if avail[j] {
				d := closes[j] - middle[i]
				sumSq += d * d
				count++
			}
		}
		if count != period {
			continue
		}
		sd := math.Sqrt(sumSq / float64(period))
		upper[i] = middle[i] + numStdDev*sd
		lower[i] = middle[i] - numStdDev*sd
		ok[i] = true
	}
	return upper, middle, lower, ok
}

// ATR computes the average true range over period samples using Wilder
// smoothing on the true range series.
func ATR(highs, lows, closes []float64, avail []bool, period int) ([]float64, []bool) {
	n := len(closes)
	out := newSeries(n)
	tr := make([]float64, n)
	trAvail := make([]bool, n)

	prevClose := 0.0
	prevSet := false
	for i := 0; i < n; i++ {
		if !avail[i] {
			continue
		}
		if !prevSet {
			tr[i] = highs[i] - lows[i]
			prevClose = closes[i]
			prevSet = true
			trAvail[i] = true
			continue
		}
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - prevClose)
		lc := math.Abs(lows[i] - prevClose)
		tr[i] = math.Max(hl, math.Max(hc, lc))
		trAvail[i] = true
		prevClose = closes[i]
	}

	var avgTR float64
	seeded := false
	seedSum := 0.0
	seedCount := 0
	for i := 0; i < n; i++ {
		if !trAvail[i] {
			continue
		}
		if !seeded {
			seedSum += tr[i]
			seedCount++
			if seedCount == period {
				avgTR = seedSum / float64(period)
				seeded = true
				out.values[i] = avgTR
				out.available[i] = true
			}
			continue
		}
		avgTR = (avgTR*float64(period-1) + tr[i]) / float64(period)
		out.values[i] = avgTR
		out.available[i] = true
	}
	return out.values, out.available
}

// Stochastic computes %K over kPeriod and %D as a dPeriod-sample SMA of %K.
func Stochastic(highs, lows, closes []float64, avail []bool, kPeriod, dPeriod int) (k, d []float64, kAvail, dAvail []bool) {
	n := len(closes)
	k = make([]float64, n)
	kAvail = make([]bool, n)
	for i := 0; i < n; i++ {
		if !avail[i] || i < kPeriod-1 {
			continue
		}
		start := i - kPeriod + 1
		hi, lo := highs[i], lows[i]
		count := 0
		for j := start; j <= i; j++ {
			if !avail[j] {
				continue
			}
			if highs[j] > hi {
				hi = highs[j]
			}
			if lows[j] < lo {
				lo = lows[j]
			}
			count++
		}
		if count != kPeriod {
			continue
		}
		if hi == lo {
			k[i] = 50
		} else {
			k[i] = 100 * (closes[i] - lo) / (hi - lo)
		}
		kAvail[i] = true
	}
	d, dAvail = SMA(k, kAvail, dPeriod)
	return
}

// OBV computes on-balance volume: a running sum that adds volume on up days
// and subtracts it on down days.
func OBV(closes, volumes []float64, avail []bool) ([]float64, []bool) {
	n := len(closes)
	out := newSeries(n)
	running := 0.0
	prevClose := 0.0
	prevSet := false
	for i := 0; i < n; i++ {
		if !avail[i] {
			continue
		}
		if prevSet {
			switch {
			case closes[i] > prevClose:
				running += volumes[i]
			case closes[i] < prevClose:
				running -= volumes[i]
			}
		}
		prevClose = closes[i]
		prevSet = true
		out.values[i] = running
		out.available[i] = true
	}
	return out.values, out.available
}

// ADX computes the average directional index over period samples, using
// Wilder-smoothed +DI/-DI derived from directional movement and true range.
func ADX(highs, lows, closes []float64, avail []bool, period int) ([]float64, []bool) {
	n := len(closes)
	out := newSeries(n)
	if n < 2*period+1 {
		return out.values, out.available
	}

	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	tr := make([]float64, n)
	valid := make([]bool, n)

	prevHigh, prevLow, prevClose := 0.0, 0.0, 0.0
	prevSet := false
	for i := 0; i < n; i++ {
		if !avail[i] {
			continue
		}
		if prevSet {
			upMove := highs[i] - prevHigh
			downMove := prevLow - lows[i]
			if upMove > downMove && upMove > 0 {
				plusDM[i] = upMove
			}
			if downMove > upMove && downMove > 0 {
				minusDM[i] = downMove
			}
			hl := highs[i] - lows[i]
			hc := math.Abs(highs[i] - prevClose)
			lc := math.Abs(lows[i] - prevClose)
			tr[i] = math.Max(hl, math.Max(hc, lc))
			valid[i] = true
		}
		prevHigh, prevLow, prevClose = highs[i], lows[i], closes[i]
		prevSet = true
	}

	var smTR, smPlusDM, smMinusDM float64
	seeded := false
	seedCount := 0
	dx := make([]float64, n)
	dxAvail := make([]bool, n)

	for i := 0; i < n; i++ {
		if !valid[i] {
			continue
		}
		if !seeded {
			smTR += tr[i]
			smPlusDM += plusDM[i]
			smMinusDM += minusDM[i]
			seedCount++
			if seedCount == period {
				seeded = true
				dx[i], dxAvail[i] = dxFromSmoothed(smPlusDM, smMinusDM, smTR)
			}
			continue
		}
		smTR = smTR - smTR/float64(period) + tr[i]
		smPlusDM = smPlusDM - smPlusDM/float64(period) + plusDM[i]
		smMinusDM = smMinusDM - smMinusDM/float64(period) + minusDM[i]
		dx[i], dxAvail[i] = dxFromSmoothed(smPlusDM, smMinusDM, smTR)
	}

	return SMA(dx, dxAvail, period)
}

func dxFromSmoothed(smPlusDM, smMinusDM, smTR float64) (float64, bool) {
	if smTR == 0 {
		return 0, false
	}
	plusDI := 100 * smPlusDM / smTR
	minusDI := 100 * smMinusDM / smTR
	sum := plusDI + minusDI
	if sum == 0 {
		return 0, true
	}
	return 100 * math.Abs(plusDI-minusDI) / sum, true
}
