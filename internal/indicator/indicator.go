// Package indicator provides pure technical indicator computations over
// candle windows. Values are returned as pointers: a nil value means the
// window was too small to compute the indicator, which callers must treat
// as "no data", never as zero.
package indicator

import (
	"math"

	"github.com/nsvirk/autotraderapi/internal/models"
)

// Default indicator periods
const (
	RSIPeriod  = 14
	MACDFast   = 12
	MACDSlow   = 26
	MACDSignal = 9
	ADXPeriod  = 14
)

// MACDValue holds the latest MACD line, signal and histogram values
type MACDValue struct {
	Line      *float64 `json:"line"`
	Signal    *float64 `json:"signal"`
	Histogram *float64 `json:"histogram"`
}

// ADXValue holds the latest ADX and directional indicator values
type ADXValue struct {
	ADX     *float64 `json:"adx"`
	DIPlus  *float64 `json:"di_plus"`
	DIMinus *float64 `json:"di_minus"`
}

// Snapshot is the indicator state computed from one candle window
type Snapshot struct {
	RSI         *float64  `json:"rsi_14"`
	MACD        MACDValue `json:"macd"`
	ADX         ADXValue  `json:"adx"`
	LatestClose float64   `json:"latest_close"`
}

// Payload renders the snapshot as an event payload. Nil indicator
// values stay nil so consumers can tell "not enough data" from zero.
func (s Snapshot) Payload() map[string]interface{} {
	return map[string]interface{}{
		"rsi_14": s.RSI,
		"macd": map[string]interface{}{
			"line":      s.MACD.Line,
			"signal":    s.MACD.Signal,
			"histogram": s.MACD.Histogram,
		},
		"adx": map[string]interface{}{
			"adx":      s.ADX.ADX,
			"di_plus":  s.ADX.DIPlus,
			"di_minus": s.ADX.DIMinus,
		},
		"latest_close": s.LatestClose,
	}
}

// Compute calculates a full indicator snapshot from a candle window,
// oldest-first, using the default periods.
func Compute(candles []models.Candle) Snapshot {
	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
	}

	var snap Snapshot
	if len(closes) > 0 {
		snap.LatestClose = closes[len(closes)-1]
	}
	snap.RSI = RSI(closes, RSIPeriod)
	snap.MACD.Line, snap.MACD.Signal, snap.MACD.Histogram = MACD(closes, MACDFast, MACDSlow, MACDSignal)
	snap.ADX.ADX, snap.ADX.DIPlus, snap.ADX.DIMinus = ADX(highs, lows, closes, ADXPeriod)
	return snap
}

// RSI calculates the Relative Strength Index with Wilder's smoothing.
// Returns nil if fewer than period+1 closes are available. A window with
// zero losses saturates to 100 rather than dividing by zero.
func RSI(closes []float64, period int) *float64 {
	if len(closes) < period+1 {
		return nil
	}

	// Seed average gain/loss from the first `period` deltas
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta >= 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	// Smooth forward one sample at a time
	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		var up, down float64
		if delta > 0 {
			up = delta
		} else {
			down = -delta
		}
		avgGain = (avgGain*float64(period-1) + up) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + down) / float64(period)
	}

	rsi := 100.0
	if avgLoss != 0 {
		rs := avgGain / avgLoss
		rsi = 100.0 - 100.0/(1.0+rs)
	}
	return &rsi
}

// MACD calculates the latest MACD line, signal line and histogram from
// exponential moving averages of the close series. Returns all-nil if
// fewer than `slow` closes are available.
func MACD(closes []float64, fast, slow, signal int) (*float64, *float64, *float64) {
	if len(closes) < slow {
		return nil, nil, nil
	}

	emaFast := ema(closes, fast)
	emaSlow := ema(closes, slow)

	macdSeries := make([]float64, len(closes))
	for i := range closes {
		macdSeries[i] = emaFast[i] - emaSlow[i]
	}
	signalSeries := ema(macdSeries, signal)

	last := len(closes) - 1
	line := macdSeries[last]
	sig := signalSeries[last]
	hist := line - sig
	return &line, &sig, &hist
}

// ADX calculates the latest ADX, +DI and -DI from true range and
// directional movement, each smoothed over `period` via simple moving
// average. Returns an all-nil triple if fewer than 2*period closes are
// available. Flat ranges resolve to zero DI/DX, never NaN.
func ADX(highs, lows, closes []float64, period int) (*float64, *float64, *float64) {
	n := len(closes)
	if n < 2*period || len(highs) != n || len(lows) != n {
		return nil, nil, nil
	}

	tr := make([]float64, n-1)
	dmPlus := make([]float64, n-1)
	dmMinus := make([]float64, n-1)
	for i := 1; i < n; i++ {
		tr[i-1] = math.Max(highs[i]-lows[i],
			math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))

		upMove := highs[i] - highs[i-1]
		downMove := lows[i-1] - lows[i]
		if upMove > downMove && upMove > 0 {
			dmPlus[i-1] = upMove
		}
		if downMove > upMove && downMove > 0 {
			dmMinus[i-1] = downMove
		}
	}

	atr := sma(tr, period)
	smPlus := sma(dmPlus, period)
	smMinus := sma(dmMinus, period)

	diPlus := make([]float64, len(atr))
	diMinus := make([]float64, len(atr))
	dx := make([]float64, len(atr))
	for i := range atr {
		if atr[i] != 0 {
			diPlus[i] = 100 * smPlus[i] / atr[i]
			diMinus[i] = 100 * smMinus[i] / atr[i]
		}
		if sum := diPlus[i] + diMinus[i]; sum != 0 {
			dx[i] = 100 * math.Abs(diPlus[i]-diMinus[i]) / sum
		}
	}

	adxSeries := sma(dx, period)

	adx := adxSeries[len(adxSeries)-1]
	plus := diPlus[len(diPlus)-1]
	minus := diMinus[len(diMinus)-1]
	return &adx, &plus, &minus
}

// ema returns the full exponential moving average series with
// alpha = 2/(span+1), seeded from the first value.
func ema(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// sma returns the rolling simple moving average with the given window.
// The result has len(values)-window+1 entries.
func sma(values []float64, window int) []float64 {
	if len(values) < window {
		return nil
	}
	out := make([]float64, 0, len(values)-window+1)
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out = append(out, sum/float64(window))
		}
	}
	return out
}
