package indicator

import (
	"math"
	"testing"

	"github.com/nsvirk/autotraderapi/internal/models"
)

func almostEqual(t *testing.T, got, want, tolerance float64) {
	t.Helper()
	if math.Abs(got-want) > tolerance {
		t.Fatalf("got %v, want %v (tolerance %v)", got, want, tolerance)
	}
}

func TestRSIInsufficientData(t *testing.T) {
	closes := make([]float64, RSIPeriod) // needs period+1
	if got := RSI(closes, RSIPeriod); got != nil {
		t.Fatalf("expected nil for %d closes, got %v", len(closes), *got)
	}
}

func TestRSIAllGainsSaturates(t *testing.T) {
	closes := make([]float64, RSIPeriod+5)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	got := RSI(closes, RSIPeriod)
	if got == nil {
		t.Fatal("expected a value, got nil")
	}
	almostEqual(t, *got, 100, 1e-9)
}

func TestRSIAllLossesSaturates(t *testing.T) {
	closes := make([]float64, RSIPeriod+5)
	for i := range closes {
		closes[i] = 200 - float64(i)
	}
	got := RSI(closes, RSIPeriod)
	if got == nil {
		t.Fatal("expected a value, got nil")
	}
	almostEqual(t, *got, 0, 1e-9)
}

func TestRSIWilderSmoothing(t *testing.T) {
	// period 2: seed avgGain=1 avgLoss=0 from the two +1 deltas, then
	// one smoothed -1 delta gives avgGain=avgLoss=0.5, RS=1, RSI=50
	closes := []float64{1, 2, 3, 2}
	got := RSI(closes, 2)
	if got == nil {
		t.Fatal("expected a value, got nil")
	}
	almostEqual(t, *got, 50, 1e-9)
}

func TestRSIStaysInRange(t *testing.T) {
	closes := []float64{10, 12, 11, 13, 9, 14, 8, 15, 7, 16, 6, 17, 5, 18, 4, 19, 3}
	got := RSI(closes, RSIPeriod)
	if got == nil {
		t.Fatal("expected a value, got nil")
	}
	if *got < 0 || *got > 100 {
		t.Fatalf("RSI out of range: %v", *got)
	}
}

func TestMACDInsufficientData(t *testing.T) {
	closes := make([]float64, MACDSlow-1)
	line, signal, hist := MACD(closes, MACDFast, MACDSlow, MACDSignal)
	if line != nil || signal != nil || hist != nil {
		t.Fatal("expected all-nil for a short window")
	}
}

func TestMACDMinimumWindow(t *testing.T) {
	closes := make([]float64, MACDSlow)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	line, signal, hist := MACD(closes, MACDFast, MACDSlow, MACDSignal)
	if line == nil || signal == nil || hist == nil {
		t.Fatal("expected values at exactly the minimum window")
	}
}

func TestMACDFlatSeriesIsZero(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 250
	}
	line, signal, hist := MACD(closes, MACDFast, MACDSlow, MACDSignal)
	if line == nil || signal == nil || hist == nil {
		t.Fatal("expected values, got nil")
	}
	almostEqual(t, *line, 0, 1e-9)
	almostEqual(t, *signal, 0, 1e-9)
	almostEqual(t, *hist, 0, 1e-9)
}

func TestMACDTrendSign(t *testing.T) {
	up := make([]float64, 60)
	down := make([]float64, 60)
	for i := range up {
		up[i] = 100 + float64(i)
		down[i] = 200 - float64(i)
	}

	line, _, _ := MACD(up, MACDFast, MACDSlow, MACDSignal)
	if line == nil || *line <= 0 {
		t.Fatalf("expected positive MACD line for an uptrend, got %v", line)
	}

	line, _, _ = MACD(down, MACDFast, MACDSlow, MACDSignal)
	if line == nil || *line >= 0 {
		t.Fatalf("expected negative MACD line for a downtrend, got %v", line)
	}
}

func TestADXInsufficientData(t *testing.T) {
	n := 2*ADXPeriod - 1
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	adx, plus, minus := ADX(highs, lows, closes, ADXPeriod)
	if adx != nil || plus != nil || minus != nil {
		t.Fatal("expected all-nil for a short window")
	}
}

func TestADXSteadyUptrend(t *testing.T) {
	// linear uptrend with constant 2-point range: -DM is always zero,
	// +DM is always 1, TR is always 2, so +DI = 50 and -DI = 0 exactly
	n := 40
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		closes[i] = 100 + float64(i)
		highs[i] = closes[i] + 1
		lows[i] = closes[i] - 1
	}

	adx, plus, minus := ADX(highs, lows, closes, ADXPeriod)
	if adx == nil || plus == nil || minus == nil {
		t.Fatal("expected values, got nil")
	}
	almostEqual(t, *plus, 50, 1e-9)
	almostEqual(t, *minus, 0, 1e-9)
	almostEqual(t, *adx, 100, 1e-9)
}

func TestADXFlatRangeNoNaN(t *testing.T) {
	n := 40
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		highs[i], lows[i], closes[i] = 100, 100, 100
	}

	adx, plus, minus := ADX(highs, lows, closes, ADXPeriod)
	if adx == nil || plus == nil || minus == nil {
		t.Fatal("expected values, got nil")
	}
	for name, v := range map[string]float64{"adx": *adx, "+di": *plus, "-di": *minus} {
		if math.IsNaN(v) {
			t.Fatalf("%s is NaN for a flat range", name)
		}
		almostEqual(t, v, 0, 1e-9)
	}
}

func TestComputeSnapshot(t *testing.T) {
	n := 60
	candles := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		c := 100 + float64(i)
		candles[i] = models.Candle{
			Open:  c - 0.5,
			High:  c + 1,
			Low:   c - 1,
			Close: c,
		}
	}

	snap := Compute(candles)
	almostEqual(t, snap.LatestClose, 159, 1e-9)
	if snap.RSI == nil || snap.MACD.Line == nil || snap.ADX.DIPlus == nil {
		t.Fatal("expected a fully populated snapshot for 60 candles")
	}
	almostEqual(t, *snap.RSI, 100, 1e-9)
	if *snap.MACD.Line <= 0 {
		t.Fatalf("expected positive MACD line, got %v", *snap.MACD.Line)
	}
	if *snap.ADX.DIPlus <= *snap.ADX.DIMinus {
		t.Fatalf("+DI %v should dominate -DI %v in an uptrend", *snap.ADX.DIPlus, *snap.ADX.DIMinus)
	}
}

func TestComputeEmptyWindow(t *testing.T) {
	snap := Compute(nil)
	if snap.RSI != nil || snap.MACD.Line != nil || snap.ADX.ADX != nil {
		t.Fatal("expected an all-nil snapshot for an empty window")
	}
	almostEqual(t, snap.LatestClose, 0, 1e-9)
}
