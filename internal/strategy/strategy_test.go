package strategy

import (
	"testing"

	"github.com/nsvirk/autotraderapi/internal/indicator"
)

func fptr(v float64) *float64 { return &v }

func adxSnap(diPlus, diMinus float64) indicator.Snapshot {
	return indicator.Snapshot{
		ADX: indicator.ADXValue{
			ADX:     fptr(25),
			DIPlus:  fptr(diPlus),
			DIMinus: fptr(diMinus),
		},
	}
}

func macdSnap(line float64) indicator.Snapshot {
	return indicator.Snapshot{
		MACD: indicator.MACDValue{
			Line:      fptr(line),
			Signal:    fptr(0),
			Histogram: fptr(line),
		},
	}
}

func TestCheckADX(t *testing.T) {
	tests := []struct {
		name       string
		snap       indicator.Snapshot
		side       Side
		wantAction Action
		wantNil    bool
	}{
		{"strong uptrend opens long", adxSnap(25, 10), SideNone, ActionBuy, false},
		{"strong downtrend opens short", adxSnap(10, 25), SideNone, ActionSell, false},
		{"weak trend no entry", adxSnap(15, 10), SideNone, "", true},
		{"dominant but below threshold", adxSnap(19.9, 5), SideNone, "", true},
		{"long exits when +DI fades", adxSnap(17.9, 30), SideLong, ActionExit, false},
		{"long holds above exit threshold", adxSnap(18.1, 30), SideLong, "", true},
		{"short exits when -DI fades", adxSnap(30, 17.9), SideShort, ActionExit, false},
		{"short holds above exit threshold", adxSnap(30, 18.1), SideShort, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := CheckADX(tt.snap, tt.side)
			if tt.wantNil {
				if sig != nil {
					t.Fatalf("expected no signal, got %+v", sig)
				}
				return
			}
			if sig == nil {
				t.Fatal("expected a signal, got nil")
			}
			if sig.Action != tt.wantAction {
				t.Fatalf("got action %s, want %s", sig.Action, tt.wantAction)
			}
			if sig.Reason == "" {
				t.Fatal("expected a non-empty reason")
			}
		})
	}
}

func TestCheckADXMissingData(t *testing.T) {
	if sig := CheckADX(indicator.Snapshot{}, SideNone); sig != nil {
		t.Fatalf("expected no signal for a nil-valued snapshot, got %+v", sig)
	}
}

func TestCheckMACD(t *testing.T) {
	tests := []struct {
		name       string
		snap       indicator.Snapshot
		side       Side
		wantAction Action
		wantNil    bool
	}{
		{"bullish line opens long", macdSnap(0.5), SideNone, ActionBuy, false},
		{"bearish line opens short", macdSnap(-0.5), SideNone, ActionSell, false},
		{"zero line no entry", macdSnap(0), SideNone, "", true},
		{"long exits on bearish crossover", macdSnap(-0.01), SideLong, ActionExit, false},
		{"long holds while bullish", macdSnap(0.01), SideLong, "", true},
		{"short exits on bullish crossover", macdSnap(0.01), SideShort, ActionExit, false},
		{"short holds while bearish", macdSnap(-0.01), SideShort, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := CheckMACD(tt.snap, tt.side)
			if tt.wantNil {
				if sig != nil {
					t.Fatalf("expected no signal, got %+v", sig)
				}
				return
			}
			if sig == nil {
				t.Fatal("expected a signal, got nil")
			}
			if sig.Action != tt.wantAction {
				t.Fatalf("got action %s, want %s", sig.Action, tt.wantAction)
			}
		})
	}
}

func TestCheckMACDMissingData(t *testing.T) {
	if sig := CheckMACD(indicator.Snapshot{}, SideNone); sig != nil {
		t.Fatalf("expected no signal for a nil-valued snapshot, got %+v", sig)
	}
}

func TestEvaluateOrdersADXFirst(t *testing.T) {
	snap := adxSnap(25, 10)
	snap.MACD = indicator.MACDValue{Line: fptr(1.0), Signal: fptr(0.5), Histogram: fptr(0.5)}

	signals := Evaluate(snap, SideNone)
	if len(signals) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(signals))
	}
	if signals[0].Confidence != "high" {
		t.Fatal("expected the directional-indicator signal first")
	}
	if signals[0].Action != ActionBuy || signals[1].Action != ActionBuy {
		t.Fatalf("unexpected actions: %s, %s", signals[0].Action, signals[1].Action)
	}
}

func TestEvaluateNoData(t *testing.T) {
	if signals := Evaluate(indicator.Snapshot{}, SideNone); len(signals) != 0 {
		t.Fatalf("expected no signals, got %d", len(signals))
	}
}
