package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nsvirk/autotraderapi/internal/models"
	"github.com/nsvirk/autotraderapi/pkg/utils/zaplogger"
	kiteticker "github.com/nsvirk/gokiteticker"
)

const (
	tickerReconnectMaxRetries = 10
	tickerConnectTimeout      = 10 * time.Second
	tickChannelCapacity       = 100000
)

// SubscriptionSource provides the active subscriptions for the fresh
// subscribe flow after a reconnect, and token-to-symbol resolution for
// published events
type SubscriptionSource interface {
	Snapshot() map[models.Segment][]string
	SymbolForToken(token string) string
}

// TickRouter consumes routed price updates
type TickRouter interface {
	UpdateMTM(token string, lastPrice float64) error
}

// TickerService wraps the websocket tick stream. It implements
// FeedSubscriber for the registry and routes every non-zero tick to the
// position store and the event stream.
type TickerService struct {
	positions TickRouter
	notifier  Notifier
	source    SubscriptionSource

	mu          sync.Mutex
	ticker      *kiteticker.Ticker
	tickChannel chan kiteticker.Tick
	ctx         context.Context
	cancel      context.CancelFunc

	// connection flags are written from ticker callbacks and read from
	// HTTP handlers, so they stay atomic instead of under mu
	isRunning    atomic.Bool
	wasConnected atomic.Bool
}

// NewTickerService creates a new TickerService
func NewTickerService(positions TickRouter, notifier Notifier) *TickerService {
	return &TickerService{
		positions:   positions,
		notifier:    notifier,
		tickChannel: make(chan kiteticker.Tick, tickChannelCapacity),
	}
}

// SetSource binds the subscription source. Set after construction to
// break the registry/ticker cycle.
func (s *TickerService) SetSource(source SubscriptionSource) {
	s.source = source
}

// Start connects the tick stream and starts the routing loop
func (s *TickerService) Start(userID, enctoken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning.Load() {
		return fmt.Errorf("ticker is already running")
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	if err := s.initializeTicker(userID, enctoken); err != nil {
		s.cancel()
		return err
	}

	go s.processTicks()

	zaplogger.Info("Ticker started successfully")
	return nil
}

// Stop closes the tick stream and the routing loop
func (s *TickerService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning.Load() {
		return fmt.Errorf("ticker is not running")
	}

	s.ticker.Close()
	s.ticker.Stop()
	s.ticker = nil
	s.isRunning.Store(false)
	s.wasConnected.Store(false)
	s.cancel()

	zaplogger.Info("Ticker stopped successfully")
	return nil
}

// Status returns whether the ticker is connected
func (s *TickerService) Status() bool {
	return s.isRunning.Load()
}

// SubscribeTokens subscribes tokens on the live stream in LTP mode
func (s *TickerService) SubscribeTokens(segment models.Segment, tokens []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return fmt.Errorf("ticker is not running")
	}

	instrumentTokens, err := parseTokens(tokens)
	if err != nil {
		return err
	}
	if err := s.ticker.Subscribe(instrumentTokens); err != nil {
		return err
	}
	return s.ticker.SetMode(kiteticker.ModeLTP, instrumentTokens)
}

// UnsubscribeTokens removes tokens from the live stream
func (s *TickerService) UnsubscribeTokens(segment models.Segment, tokens []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return fmt.Errorf("ticker is not running")
	}

	instrumentTokens, err := parseTokens(tokens)
	if err != nil {
		return err
	}
	return s.ticker.Unsubscribe(instrumentTokens)
}

// initializeTicker creates the ticker, wires the callbacks and waits
// for the first connect
func (s *TickerService) initializeTicker(userID, enctoken string) error {
	s.ticker = kiteticker.New(userID, enctoken)
	s.ticker.SetReconnectMaxRetries(tickerReconnectMaxRetries)
	s.setupTickerCallbacks()

	go s.ticker.Serve()

	timeout := time.After(tickerConnectTimeout)
	poll := time.NewTicker(100 * time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case <-poll.C:
			if s.isRunning.Load() {
				return nil
			}
		case <-timeout:
			return fmt.Errorf("timeout waiting for ticker connection")
		}
	}
}

// setupTickerCallbacks sets up the ticker callbacks
func (s *TickerService) setupTickerCallbacks() {
	s.ticker.OnTick(func(tick kiteticker.Tick) {
		s.tickChannel <- tick
	})

	s.ticker.OnConnect(func() {
		zaplogger.Info("Connected to ticker")
		if s.markConnected() {
			go s.resubscribe()
		}
	})

	s.ticker.OnError(func(err error) {
		zaplogger.Error("Ticker error", zaplogger.Fields{"error": err.Error()})
	})

	s.ticker.OnClose(func(code int, reason string) {
		zaplogger.Warn("Ticker closed", zaplogger.Fields{"code": code, "reason": reason})
		s.markDisconnected()
	})

	s.ticker.OnReconnect(func(attempt int, delay time.Duration) {
		zaplogger.Info("Ticker reconnecting", zaplogger.Fields{"attempt": attempt, "delay": delay.String()})
	})

	s.ticker.OnNoReconnect(func(attempt int) {
		zaplogger.Error("Ticker gave up reconnecting", zaplogger.Fields{"attempts": attempt})
		s.notifier.Notify(models.Event{
			Type:    models.EventError,
			Payload: map[string]interface{}{"message": fmt.Sprintf("ticker gave up after %d reconnect attempts", attempt)},
		})
	})
}

// markConnected records a successful connect and reports whether it was
// a reconnect
func (s *TickerService) markConnected() (reconnected bool) {
	reconnected = s.wasConnected.Load()
	s.isRunning.Store(true)
	s.wasConnected.Store(true)
	return reconnected
}

// markDisconnected records a dropped connection. The reconnect marker
// stays set so the next connect replays the subscriptions.
func (s *TickerService) markDisconnected() {
	s.isRunning.Store(false)
}

// resubscribe replays the registry snapshot after a reconnect. The
// server-side session is fresh, so every token is subscribed again.
func (s *TickerService) resubscribe() {
	if s.source == nil {
		return
	}
	for segment, tokens := range s.source.Snapshot() {
		if err := s.SubscribeTokens(segment, tokens); err != nil {
			zaplogger.Error("Resubscribe after reconnect failed", zaplogger.Fields{
				"segment": string(segment),
				"error":   err.Error(),
			})
		}
	}
}

// processTicks routes ticks from the stream callback to the position
// store and the event stream
func (s *TickerService) processTicks() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case tick := <-s.tickChannel:
			s.routeTick(tick)
		}
	}
}

// routeTick converts one wire tick and fans it out. Zero-price ticks
// are heartbeats and are dropped without touching positions.
func (s *TickerService) routeTick(wireTick kiteticker.Tick) {
	tick := convertTick(wireTick)
	if tick.LastTradedPrice == 0 {
		zaplogger.Debug("Dropped zero-price tick", zaplogger.Fields{"token": tick.Token})
		return
	}

	symbol := tick.Token
	if s.source != nil {
		symbol = s.source.SymbolForToken(tick.Token)
	}

	s.notifier.Notify(models.Event{
		Type:   models.EventPriceUpdate,
		Token:  tick.Token,
		Symbol: symbol,
		Payload: map[string]interface{}{
			"last_price": tick.Price(),
			"timestamp":  tick.Timestamp.Format(time.RFC3339),
		},
	})

	if err := s.positions.UpdateMTM(tick.Token, tick.Price()); err != nil {
		zaplogger.Error("MTM update failed", zaplogger.Fields{
			"token": tick.Token,
			"error": err.Error(),
		})
	}
}

// convertTick maps a wire tick to the internal representation. Prices
// move as integer paise from here on.
func convertTick(tick kiteticker.Tick) models.Tick {
	timestamp := tick.Timestamp.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	return models.Tick{
		Token:           strconv.FormatUint(uint64(tick.InstrumentToken), 10),
		LastTradedPrice: int64(math.Round(tick.LastPrice * 100)),
		Timestamp:       timestamp,
	}
}

// parseTokens converts string tokens to the wire token type
func parseTokens(tokens []string) ([]uint32, error) {
	instrumentTokens := make([]uint32, 0, len(tokens))
	for _, token := range tokens {
		parsed, err := strconv.ParseUint(token, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid instrument token %q: %v", token, err)
		}
		instrumentTokens = append(instrumentTokens, uint32(parsed))
	}
	return instrumentTokens, nil
}
