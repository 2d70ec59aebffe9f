// Package service contains the service layer for the Autotrader API
package service

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/nsvirk/autotraderapi/internal/models"
	"github.com/nsvirk/autotraderapi/pkg/utils/zaplogger"
)

// InstrumentDirectory resolves tradingsymbols against the instrument
// directory snapshot
type InstrumentDirectory interface {
	FindBySymbol(tradingsymbol string, segment models.Segment) (*models.InstrumentModel, error)
}

// FeedSubscriber issues subscribe/unsubscribe requests to the upstream feed
type FeedSubscriber interface {
	SubscribeTokens(segment models.Segment, tokens []string) error
	UnsubscribeTokens(segment models.Segment, tokens []string) error
}

// MonitorEntry is one token eligible for periodic indicator refresh
type MonitorEntry struct {
	Token   string
	Symbol  string
	Segment models.Segment
}

// RegistryService tracks which instrument tokens are actively streamed
// per exchange segment, and the ordered monitor list for the periodic
// refresh loop. All state is guarded by a single mutex: the tick loop,
// the refresh loop and control-command handling all go through it.
type RegistryService struct {
	feed      FeedSubscriber
	directory InstrumentDirectory
	notifier  Notifier

	mu            sync.Mutex
	subscriptions map[models.Segment]map[string]struct{}
	tokenSegments map[string]models.Segment
	tokenSymbols  map[string]string
	monitorList   []MonitorEntry
	monitorSet    map[string]struct{}
}

// NewRegistryService creates a new RegistryService
func NewRegistryService(feed FeedSubscriber, directory InstrumentDirectory, notifier Notifier) *RegistryService {
	return &RegistryService{
		feed:          feed,
		directory:     directory,
		notifier:      notifier,
		subscriptions: make(map[models.Segment]map[string]struct{}),
		tokenSegments: make(map[string]models.Segment),
		tokenSymbols:  make(map[string]string),
		monitorSet:    make(map[string]struct{}),
	}
}

// SubscribeResult reports the outcome of one subscribe call
type SubscribeResult struct {
	Subscribed []string `json:"subscribed"` // net-new tokens
	Skipped    []string `json:"skipped"`    // already-active tokens
	Unknown    []string `json:"unknown"`    // symbols absent from the directory
	Monitored  int      `json:"monitored"`
}

// Subscribe resolves tradingsymbols against the instrument directory and
// subscribes the net-new tokens on the feed. Already-active tokens are
// never re-subscribed. Unknown symbols produce per-symbol warnings and
// the call continues; partial success is normal.
func (s *RegistryService) Subscribe(tradingsymbols []string, segment models.Segment) (SubscribeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result SubscribeResult
	newTokens := make([]string, 0, len(tradingsymbols))
	newEntries := make([]MonitorEntry, 0, len(tradingsymbols))

	for _, symbol := range tradingsymbols {
		instrument, err := s.directory.FindBySymbol(symbol, segment)
		if err != nil {
			return result, fmt.Errorf("instrument lookup failed for %s: %v", symbol, err)
		}
		if instrument == nil {
			zaplogger.Warn("Symbol not found in instrument directory", zaplogger.Fields{
				"tradingsymbol": symbol,
				"segment":       string(segment),
			})
			s.notifier.Notify(models.Event{
				Type:   models.EventWarning,
				Symbol: symbol,
				Payload: map[string]interface{}{
					"message": fmt.Sprintf("symbol not found: %s (%s)", symbol, segment),
				},
			})
			result.Unknown = append(result.Unknown, symbol)
			continue
		}

		token := strconv.FormatUint(uint64(instrument.InstrumentToken), 10)
		if _, active := s.tokenSegments[token]; active {
			result.Skipped = append(result.Skipped, token)
			continue
		}

		newTokens = append(newTokens, token)
		newEntries = append(newEntries, MonitorEntry{Token: token, Symbol: symbol, Segment: segment})
	}

	if len(newTokens) == 0 {
		return result, nil
	}

	if err := s.feed.SubscribeTokens(segment, newTokens); err != nil {
		s.notifier.Notify(models.Event{
			Type:    models.EventError,
			Payload: map[string]interface{}{"message": fmt.Sprintf("subscribe failed: %v", err)},
		})
		return result, fmt.Errorf("feed subscribe failed: %v", err)
	}

	set, ok := s.subscriptions[segment]
	if !ok {
		set = make(map[string]struct{})
		s.subscriptions[segment] = set
	}
	for _, entry := range newEntries {
		set[entry.Token] = struct{}{}
		s.tokenSegments[entry.Token] = segment
		s.tokenSymbols[entry.Token] = entry.Symbol
		if _, seen := s.monitorSet[entry.Token]; !seen {
			s.monitorSet[entry.Token] = struct{}{}
			s.monitorList = append(s.monitorList, entry)
		}
	}

	result.Subscribed = newTokens
	result.Monitored = len(s.monitorList)

	zaplogger.Info("Subscribed to tokens", zaplogger.Fields{
		"tokens":  newTokens,
		"segment": string(segment),
	})
	s.notifier.Notify(models.Event{
		Type: models.EventSubscriptionAck,
		Payload: map[string]interface{}{
			"action":          "subscribed",
			"tradingsymbols":  tradingsymbols,
			"tokens":          newTokens,
			"segment":         string(segment),
			"monitored_count": result.Monitored,
		},
	})

	return result, nil
}

// Unsubscribe removes tokens currently subscribed under the given
// segment. A segment whose set becomes empty is removed entirely.
// The monitor list is append-only and is not touched.
func (s *RegistryService) Unsubscribe(tradingsymbols []string, segment models.Segment) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.subscriptions[segment]
	if !ok {
		return nil, nil
	}

	tokens := make([]string, 0, len(tradingsymbols))
	for _, symbol := range tradingsymbols {
		instrument, err := s.directory.FindBySymbol(symbol, segment)
		if err != nil {
			return nil, fmt.Errorf("instrument lookup failed for %s: %v", symbol, err)
		}
		if instrument == nil {
			continue
		}
		token := strconv.FormatUint(uint64(instrument.InstrumentToken), 10)
		if _, subscribed := set[token]; subscribed {
			tokens = append(tokens, token)
		}
	}

	if len(tokens) == 0 {
		return nil, nil
	}

	if err := s.feed.UnsubscribeTokens(segment, tokens); err != nil {
		return nil, fmt.Errorf("feed unsubscribe failed: %v", err)
	}

	for _, token := range tokens {
		delete(set, token)
		delete(s.tokenSegments, token)
		delete(s.tokenSymbols, token)
	}
	if len(set) == 0 {
		delete(s.subscriptions, segment)
	}

	zaplogger.Info("Unsubscribed from tokens", zaplogger.Fields{
		"tokens":  tokens,
		"segment": string(segment),
	})
	s.notifier.Notify(models.Event{
		Type: models.EventSubscriptionAck,
		Payload: map[string]interface{}{
			"action":         "unsubscribed",
			"tradingsymbols": tradingsymbols,
			"tokens":         tokens,
			"segment":        string(segment),
		},
	})

	return tokens, nil
}

// MonitorEntries returns a copy of the monitor list, insertion order
// preserved, no duplicates
func (s *RegistryService) MonitorEntries() []MonitorEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]MonitorEntry, len(s.monitorList))
	copy(entries, s.monitorList)
	return entries
}

// SymbolForToken returns the tradingsymbol for an active token, falling
// back to the token itself for unknown mappings
func (s *RegistryService) SymbolForToken(token string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if symbol, ok := s.tokenSymbols[token]; ok {
		return symbol
	}
	return token
}

// Snapshot returns the active tokens per segment, used for the fresh
// subscribe flow after a reconnect
func (s *RegistryService) Snapshot() map[models.Segment][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make(map[models.Segment][]string, len(s.subscriptions))
	for segment, set := range s.subscriptions {
		tokens := make([]string, 0, len(set))
		for token := range set {
			tokens = append(tokens, token)
		}
		snapshot[segment] = tokens
	}
	return snapshot
}
