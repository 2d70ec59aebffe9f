// Package models contains the models for the Autotrader API
package models

import (
	"fmt"
	"time"
)

// Segment is an exchange segment scoping an instrument token's namespace
type Segment string

const (
	SegmentNSE   Segment = "NSE"
	SegmentNFO   Segment = "NFO"
	SegmentBSE   Segment = "BSE"
	SegmentBFO   Segment = "BFO"
	SegmentMCX   Segment = "MCX"
	SegmentNCDEX Segment = "NCDEX"
	SegmentCDS   Segment = "CDS"
)

var segments = map[Segment]struct{}{
	SegmentNSE:   {},
	SegmentNFO:   {},
	SegmentBSE:   {},
	SegmentBFO:   {},
	SegmentMCX:   {},
	SegmentNCDEX: {},
	SegmentCDS:   {},
}

// ParseSegment validates an exchange segment name
func ParseSegment(s string) (Segment, error) {
	seg := Segment(s)
	if _, ok := segments[seg]; !ok {
		return "", fmt.Errorf("unknown exchange segment: %s", s)
	}
	return seg, nil
}

// Tick is a single price update from the feed. LastTradedPrice is in
// minor units (paise), a zero value marks a heartbeat or malformed
// message and is dropped by the router.
type Tick struct {
	Token           string
	LastTradedPrice int64
	Timestamp       time.Time
}

// Price returns the last traded price in currency units
func (t Tick) Price() float64 {
	return float64(t.LastTradedPrice) / 100
}

// Candle is a single OHLCV bar, sourced externally, oldest-first in windows
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}
