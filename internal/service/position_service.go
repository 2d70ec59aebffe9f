// Package service contains the service layer for the Autotrader API
package service

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/nsvirk/autotraderapi/internal/config"
	"github.com/nsvirk/autotraderapi/internal/models"
	"github.com/nsvirk/autotraderapi/internal/repository"
	"github.com/nsvirk/autotraderapi/internal/strategy"
	"github.com/nsvirk/autotraderapi/pkg/utils/zaplogger"
	"gorm.io/gorm"
)

// PositionRepository is the persistence contract for positions,
// synchronous and strongly consistent for a single token
type PositionRepository interface {
	FindOpen(token string) (*models.PositionModel, error)
	Create(position *models.PositionModel) error
	Save(position *models.PositionModel) error
	FindAll(status string) ([]models.PositionModel, error)
}

// Notifier is the notification sink. The core never depends on delivery.
type Notifier interface {
	Notify(event models.Event)
}

// PositionService owns the position lifecycle and MTM arithmetic. It is
// the single source of truth per instrument token: all mutations for a
// token are serialized through a per-token lock so a tick-triggered MTM
// update and a refresh-triggered exit cannot interleave.
type PositionService struct {
	repo     PositionRepository
	notifier Notifier

	riskPercent     float64
	riskReward      float64
	mtmEpsilon      float64
	targetTolerance float64
	defaultLots     int
	defaultQty      int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewPositionService creates a new PositionService
func NewPositionService(db *gorm.DB, notifier Notifier, cfg *config.Config) *PositionService {
	return &PositionService{
		repo:            repository.NewPositionRepository(db),
		notifier:        notifier,
		riskPercent:     cfg.RiskPercent,
		riskReward:      cfg.RiskReward,
		mtmEpsilon:      cfg.MTMEpsilon,
		targetTolerance: cfg.TargetTolerance,
		defaultLots:     cfg.DefaultLots,
		defaultQty:      cfg.DefaultQty,
		locks:           make(map[string]*sync.Mutex),
	}
}

// tokenLock returns the mutex serializing all mutations for a token
func (s *PositionService) tokenLock(token string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[token]
	if !ok {
		l = &sync.Mutex{}
		s.locks[token] = l
	}
	return l
}

// OpenIfAbsent opens a new position for a token unless one is already
// OPEN, in which case the existing position is returned unchanged.
// Target and stoploss are fixed at open time from the risk/reward ratio
// and never mutated afterward.
func (s *PositionService) OpenIfAbsent(token, symbol, exchange string, side strategy.Side, entryPrice float64, lots, quantity int) (*models.PositionModel, error) {
	l := s.tokenLock(token)
	l.Lock()
	defer l.Unlock()

	existing, err := s.repo.FindOpen(token)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	rewardPercent := s.riskPercent * s.riskReward
	var target, stoploss float64
	if side == strategy.SideLong {
		target = entryPrice * (1 + rewardPercent)
		stoploss = entryPrice * (1 - s.riskPercent)
	} else {
		target = entryPrice * (1 - rewardPercent)
		stoploss = entryPrice * (1 + s.riskPercent)
	}

	position := &models.PositionModel{
		Token:      token,
		Symbol:     symbol,
		Exchange:   exchange,
		Side:       string(side),
		EntryPrice: entryPrice,
		EntryTime:  time.Now(),
		Target:     round2(target),
		Stoploss:   round2(stoploss),
		MTM:        0,
		Status:     models.PositionStatusOpen,
		Lots:       lots,
		Quantity:   quantity,
	}

	if err := s.repo.Create(position); err != nil {
		return nil, err
	}

	zaplogger.Info("Position opened", zaplogger.Fields{
		"token":    token,
		"symbol":   symbol,
		"side":     string(side),
		"entry":    entryPrice,
		"target":   position.Target,
		"stoploss": position.Stoploss,
		"lots":     lots,
		"quantity": quantity,
	})

	s.notifier.Notify(models.Event{
		Type:   models.EventPositionOpened,
		Token:  token,
		Symbol: symbol,
		Payload: map[string]interface{}{
			"side":        string(side),
			"entry_price": entryPrice,
			"target":      position.Target,
			"stoploss":    position.Stoploss,
			"lots":        lots,
			"quantity":    quantity,
		},
	})

	return position, nil
}

// UpdateMTM recomputes the running PNL of the OPEN position for a token
// from the last traded price, persisting only material changes, then
// evaluates target/stoploss breach. No-op when no OPEN position exists.
func (s *PositionService) UpdateMTM(token string, lastPrice float64) error {
	l := s.tokenLock(token)
	l.Lock()
	defer l.Unlock()

	position, err := s.repo.FindOpen(token)
	if err != nil {
		return err
	}
	if position == nil {
		return nil
	}

	mtm := round2((lastPrice - position.EntryPrice) * float64(position.Quantity))
	if math.Abs(mtm-position.MTM) > s.mtmEpsilon {
		position.MTM = mtm
		if err := s.repo.Save(position); err != nil {
			return err
		}
		zaplogger.Debug("MTM updated", zaplogger.Fields{
			"token": token,
			"ltp":   lastPrice,
			"mtm":   mtm,
		})
	}

	if reason, breached := s.checkExit(position, lastPrice); breached {
		_, err := s.closeLocked(position, lastPrice, reason)
		return err
	}
	return nil
}

// checkExit evaluates target then stoploss; the first true condition
// wins. The target uses a tolerance band around the stored value, with
// the band direction taken from where the target sits relative to entry.
// The stoploss is exact.
func (s *PositionService) checkExit(position *models.PositionModel, lastPrice float64) (string, bool) {
	entry := position.EntryPrice

	if position.Target >= entry {
		if lastPrice >= position.Target*(1-s.targetTolerance) {
			return "Target reached", true
		}
	} else {
		if lastPrice <= position.Target*(1+s.targetTolerance) {
			return "Target reached", true
		}
	}

	if position.Stoploss <= entry {
		if lastPrice <= position.Stoploss {
			return "Stoploss hit", true
		}
	} else {
		if lastPrice >= position.Stoploss {
			return "Stoploss hit", true
		}
	}

	return "", false
}

// Close terminates the OPEN position for a token, freezing mtm to the
// realized PNL. Idempotent: closing an absent or already-closed position
// is a no-op returning nil.
func (s *PositionService) Close(token string, exitPrice float64, reason string) (*models.PositionModel, error) {
	l := s.tokenLock(token)
	l.Lock()
	defer l.Unlock()

	position, err := s.repo.FindOpen(token)
	if err != nil {
		return nil, err
	}
	if position == nil {
		zaplogger.Warn("No open position to close", zaplogger.Fields{"token": token})
		return nil, nil
	}
	return s.closeLocked(position, exitPrice, reason)
}

// closeLocked finalizes a close under the caller-held token lock.
// The realized PNL is oriented by which of entry/exit is larger,
// matching the upstream bookkeeping this system mirrors.
func (s *PositionService) closeLocked(position *models.PositionModel, exitPrice float64, reason string) (*models.PositionModel, error) {
	var pnl float64
	if position.EntryPrice < exitPrice {
		pnl = (exitPrice - position.EntryPrice) * float64(position.Quantity)
	} else {
		pnl = (position.EntryPrice - exitPrice) * float64(position.Quantity)
	}

	now := time.Now()
	position.ExitPrice = &exitPrice
	position.ExitTime = &now
	position.ExitReason = reason
	position.MTM = round2(pnl)
	position.Status = models.PositionStatusClosed

	if err := s.repo.Save(position); err != nil {
		return nil, err
	}

	zaplogger.Info("Position closed", zaplogger.Fields{
		"token":      position.Token,
		"symbol":     position.Symbol,
		"exit_price": exitPrice,
		"pnl":        position.MTM,
		"reason":     reason,
	})

	s.notifier.Notify(models.Event{
		Type:   models.EventPositionClosed,
		Token:  position.Token,
		Symbol: position.Symbol,
		Payload: map[string]interface{}{
			"exit_price": round2(exitPrice),
			"exit_time":  now.Format(time.RFC3339),
			"pnl":        position.MTM,
			"quantity":   position.Quantity,
			"reason":     reason,
		},
	})

	return position, nil
}

// CurrentSide returns the side of the OPEN position for a token, or
// NONE when no position is open
func (s *PositionService) CurrentSide(token string) (strategy.Side, error) {
	position, err := s.repo.FindOpen(token)
	if err != nil {
		return strategy.SideNone, err
	}
	if position == nil {
		return strategy.SideNone, nil
	}
	switch position.Side {
	case models.SideShort:
		return strategy.SideShort, nil
	default:
		return strategy.SideLong, nil
	}
}

// Apply maps a strategy signal onto the position lifecycle: BUY/SELL
// open a position when none is open, EXIT closes the open one. Signals
// against a state that cannot transition are no-ops.
func (s *PositionService) Apply(token, symbol, exchange string, sig *strategy.Signal, lastPrice float64) error {
	if sig == nil {
		return nil
	}

	switch sig.Action {
	case strategy.ActionBuy:
		_, err := s.OpenIfAbsent(token, symbol, exchange, strategy.SideLong, lastPrice, s.defaultLots, s.defaultQty)
		return err
	case strategy.ActionSell:
		_, err := s.OpenIfAbsent(token, symbol, exchange, strategy.SideShort, lastPrice, s.defaultLots, s.defaultQty)
		return err
	case strategy.ActionExit:
		_, err := s.Close(token, lastPrice, sig.Reason)
		return err
	default:
		return fmt.Errorf("unknown signal action: %s", sig.Action)
	}
}

// HasOpen reports whether a token currently has an OPEN position
func (s *PositionService) HasOpen(token string) (bool, error) {
	position, err := s.repo.FindOpen(token)
	if err != nil {
		return false, err
	}
	return position != nil, nil
}

// ListPositions returns positions filtered by status
func (s *PositionService) ListPositions(status string) ([]models.PositionModel, error) {
	return s.repo.FindAll(status)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
