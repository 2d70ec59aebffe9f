// Package strategy evaluates rule-based trading signals from indicator
// snapshots. Rules are pure functions of (snapshot, current side); a nil
// signal means no action. Missing indicator values mean insufficient
// data, not an error, and produce no signal.
package strategy

import (
	"fmt"

	"github.com/nsvirk/autotraderapi/internal/indicator"
)

// Side is the current position side for a token
type Side string

const (
	SideNone  Side = "NONE"
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Action is the signal action
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionExit Action = "EXIT"
)

// Signal is a rule decision, consumed immediately by the position store
type Signal struct {
	Action     Action `json:"action"`
	Reason     string `json:"reason"`
	Confidence string `json:"confidence,omitempty"`
}

// ADX rule thresholds
const (
	adxEntryThreshold = 20.0
	adxExitThreshold  = 18.0
)

// CheckADX applies the directional-indicator rule:
// no position: BUY if +DI > 20 and +DI > -DI, SELL if -DI > 20 and -DI > +DI;
// LONG: EXIT if +DI < 18; SHORT: EXIT if -DI < 18.
func CheckADX(snap indicator.Snapshot, side Side) *Signal {
	diPlus := snap.ADX.DIPlus
	diMinus := snap.ADX.DIMinus
	if diPlus == nil || diMinus == nil {
		return nil // not enough data
	}

	switch side {
	case SideNone:
		if *diPlus > adxEntryThreshold && *diPlus > *diMinus {
			return &Signal{
				Action:     ActionBuy,
				Reason:     fmt.Sprintf("+DI %.2f > 20 (strong uptrend)", *diPlus),
				Confidence: "high",
			}
		}
		if *diMinus > adxEntryThreshold && *diMinus > *diPlus {
			return &Signal{
				Action:     ActionSell,
				Reason:     fmt.Sprintf("-DI %.2f > 20 (strong downtrend)", *diMinus),
				Confidence: "high",
			}
		}
	case SideLong:
		if *diPlus < adxExitThreshold {
			return &Signal{
				Action: ActionExit,
				Reason: fmt.Sprintf("+DI fell to %.2f < 18 (uptrend weakening)", *diPlus),
			}
		}
	case SideShort:
		if *diMinus < adxExitThreshold {
			return &Signal{
				Action: ActionExit,
				Reason: fmt.Sprintf("-DI fell to %.2f < 18 (downtrend weakening)", *diMinus),
			}
		}
	}
	return nil
}

// CheckMACD applies the MACD zero-line rule:
// no position: BUY if line > 0, SELL if line < 0;
// LONG: EXIT if line < 0; SHORT: EXIT if line > 0.
func CheckMACD(snap indicator.Snapshot, side Side) *Signal {
	line := snap.MACD.Line
	if line == nil {
		return nil // not enough data
	}

	switch side {
	case SideNone:
		if *line > 0 {
			return &Signal{Action: ActionBuy, Reason: fmt.Sprintf("MACD line %.4f > 0 (bullish)", *line)}
		}
		if *line < 0 {
			return &Signal{Action: ActionSell, Reason: fmt.Sprintf("MACD line %.4f < 0 (bearish)", *line)}
		}
	case SideLong:
		if *line < 0 {
			return &Signal{Action: ActionExit, Reason: "MACD line crossed below 0 (bearish crossover)"}
		}
	case SideShort:
		if *line > 0 {
			return &Signal{Action: ActionExit, Reason: "MACD line crossed above 0 (bullish crossover)"}
		}
	}
	return nil
}

// Evaluate runs all rules in a fixed order and returns the produced
// signals, ADX first. The position store applies them in order; the
// first signal that causes a state transition wins the cycle.
func Evaluate(snap indicator.Snapshot, side Side) []*Signal {
	signals := make([]*Signal, 0, 2)
	if sig := CheckADX(snap, side); sig != nil {
		signals = append(signals, sig)
	}
	if sig := CheckMACD(snap, side); sig != nil {
		signals = append(signals, sig)
	}
	return signals
}
