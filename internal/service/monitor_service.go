package service

import (
	"context"
	"fmt"
	"time"

	"github.com/nsvirk/autotraderapi/internal/config"
	"github.com/nsvirk/autotraderapi/internal/indicator"
	"github.com/nsvirk/autotraderapi/internal/models"
	"github.com/nsvirk/autotraderapi/internal/strategy"
	"github.com/nsvirk/autotraderapi/pkg/utils/zaplogger"
)

// CandleSource fetches historical candles for one instrument
type CandleSource interface {
	Candles(token string, segment models.Segment, interval string, from, to time.Time) ([]models.Candle, error)
}

// MonitorSource provides the monitor list for the refresh loop
type MonitorSource interface {
	MonitorEntries() []MonitorEntry
}

// SignalSink applies strategy signals against the position store
type SignalSink interface {
	CurrentSide(token string) (strategy.Side, error)
	Apply(token, symbol, exchange string, sig *strategy.Signal, lastPrice float64) error
}

// MonitorService runs the periodic indicator refresh loop: every cycle
// it takes a capped batch off the front of the monitor list, fetches
// candles, computes indicators, publishes them and feeds the strategy
// signals into the position store. One token failing never stops the
// batch.
type MonitorService struct {
	source    MonitorSource
	candles   CandleSource
	positions SignalSink
	notifier  Notifier

	refreshInterval time.Duration
	idleInterval    time.Duration
	batchSize       int
	candleInterval  string
	lookbackDays    int
	windowSize      int
}

// NewMonitorService creates a new MonitorService
func NewMonitorService(source MonitorSource, candles CandleSource, positions SignalSink, notifier Notifier, cfg *config.Config) *MonitorService {
	return &MonitorService{
		source:          source,
		candles:         candles,
		positions:       positions,
		notifier:        notifier,
		refreshInterval: cfg.RefreshInterval,
		idleInterval:    cfg.IdleInterval,
		batchSize:       cfg.RefreshBatchSize,
		candleInterval:  cfg.CandleInterval,
		lookbackDays:    cfg.CandleLookbackDays,
		windowSize:      cfg.CandleWindowSize,
	}
}

// Run drives the refresh loop until the context is cancelled. With an
// empty monitor list the loop idles on the shorter interval.
func (s *MonitorService) Run(ctx context.Context) {
	zaplogger.Info("Monitor loop started", zaplogger.Fields{
		"refresh_interval": s.refreshInterval.String(),
		"batch_size":       s.batchSize,
	})
	for {
		wait := s.refreshInterval
		if len(s.source.MonitorEntries()) == 0 {
			wait = s.idleInterval
		} else {
			s.RunCycle()
		}
		select {
		case <-ctx.Done():
			zaplogger.Info("Monitor loop stopped")
			return
		case <-time.After(wait):
		}
	}
}

// RunCycle processes one batch of monitored tokens
func (s *MonitorService) RunCycle() {
	entries := s.source.MonitorEntries()
	if len(entries) > s.batchSize {
		entries = entries[:s.batchSize]
	}
	for _, entry := range entries {
		s.refreshToken(entry)
	}
}

// refreshToken fetches candles, computes indicators and applies the
// resulting signals for one token. Panics are contained here so a bad
// payload cannot take down the loop.
func (s *MonitorService) refreshToken(entry MonitorEntry) {
	defer func() {
		if r := recover(); r != nil {
			zaplogger.Error("Recovered panic in indicator refresh", zaplogger.Fields{
				"token": entry.Token,
				"panic": fmt.Sprintf("%v", r),
			})
			s.notifier.Notify(models.Event{
				Type:    models.EventError,
				Token:   entry.Token,
				Symbol:  entry.Symbol,
				Payload: map[string]interface{}{"message": fmt.Sprintf("indicator refresh panic: %v", r)},
			})
		}
	}()

	to := time.Now()
	from := to.AddDate(0, 0, -s.lookbackDays)
	candles, err := s.candles.Candles(entry.Token, entry.Segment, s.candleInterval, from, to)
	if err != nil {
		zaplogger.Error("Candle fetch failed", zaplogger.Fields{
			"token": entry.Token,
			"error": err.Error(),
		})
		s.notifier.Notify(models.Event{
			Type:    models.EventError,
			Token:   entry.Token,
			Symbol:  entry.Symbol,
			Payload: map[string]interface{}{"message": fmt.Sprintf("candle fetch failed: %v", err)},
		})
		return
	}
	if len(candles) == 0 {
		return
	}
	if len(candles) > s.windowSize {
		candles = candles[len(candles)-s.windowSize:]
	}

	snapshot := indicator.Compute(candles)

	s.notifier.Notify(models.Event{
		Type:    models.EventIndicatorUpdate,
		Token:   entry.Token,
		Symbol:  entry.Symbol,
		Payload: snapshot.Payload(),
	})

	side, err := s.positions.CurrentSide(entry.Token)
	if err != nil {
		zaplogger.Error("Position side lookup failed", zaplogger.Fields{
			"token": entry.Token,
			"error": err.Error(),
		})
		return
	}

	// all rules evaluate against the side held at the start of the
	// cycle; only the first resulting signal is applied, so one cycle
	// causes at most one state transition
	signals := strategy.Evaluate(snapshot, side)
	if len(signals) == 0 {
		return
	}
	sig := signals[0]
	if err := s.positions.Apply(entry.Token, entry.Symbol, string(entry.Segment), sig, snapshot.LatestClose); err != nil {
		zaplogger.Error("Signal apply failed", zaplogger.Fields{
			"token":  entry.Token,
			"action": string(sig.Action),
			"error":  err.Error(),
		})
	}
}
