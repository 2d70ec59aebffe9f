package service

import (
	"errors"
	"sync"
	"testing"

	"github.com/nsvirk/autotraderapi/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFeed records subscribe/unsubscribe calls
type fakeFeed struct {
	mu           sync.Mutex
	subscribed   [][]string
	unsubscribed [][]string
	subscribeErr error
}

func (f *fakeFeed) SubscribeTokens(segment models.Segment, tokens []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.subscribed = append(f.subscribed, tokens)
	return nil
}

func (f *fakeFeed) UnsubscribeTokens(segment models.Segment, tokens []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = append(f.unsubscribed, tokens)
	return nil
}

// fakeDirectory resolves symbols from a fixed map
type fakeDirectory struct {
	instruments map[string]*models.InstrumentModel
}

func (d *fakeDirectory) FindBySymbol(tradingsymbol string, segment models.Segment) (*models.InstrumentModel, error) {
	return d.instruments[tradingsymbol], nil
}

func newTestDirectory() *fakeDirectory {
	return &fakeDirectory{instruments: map[string]*models.InstrumentModel{
		"RELIANCE": {InstrumentToken: 256265, Tradingsymbol: "RELIANCE", Exchange: "NSE"},
		"INFY":     {InstrumentToken: 408065, Tradingsymbol: "INFY", Exchange: "NSE"},
		"TCS":      {InstrumentToken: 2953217, Tradingsymbol: "TCS", Exchange: "NSE"},
	}}
}

func TestSubscribeNetNewOnly(t *testing.T) {
	feed := &fakeFeed{}
	notifier := &fakeNotifier{}
	registry := NewRegistryService(feed, newTestDirectory(), notifier)

	result, err := registry.Subscribe([]string{"RELIANCE", "INFY"}, models.SegmentNSE)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"256265", "408065"}, result.Subscribed)
	assert.Equal(t, 2, result.Monitored)

	// resubscribing one known plus one new symbol only subscribes the new token
	result, err = registry.Subscribe([]string{"RELIANCE", "TCS"}, models.SegmentNSE)
	require.NoError(t, err)
	assert.Equal(t, []string{"2953217"}, result.Subscribed)
	assert.Equal(t, []string{"256265"}, result.Skipped)
	assert.Equal(t, 3, result.Monitored)

	require.Len(t, feed.subscribed, 2)
	assert.Len(t, notifier.byType(models.EventSubscriptionAck), 2)
}

func TestSubscribeUnknownSymbolWarns(t *testing.T) {
	feed := &fakeFeed{}
	notifier := &fakeNotifier{}
	registry := NewRegistryService(feed, newTestDirectory(), notifier)

	result, err := registry.Subscribe([]string{"NOSUCH", "RELIANCE"}, models.SegmentNSE)
	require.NoError(t, err)
	assert.Equal(t, []string{"NOSUCH"}, result.Unknown)
	assert.Equal(t, []string{"256265"}, result.Subscribed)

	warnings := notifier.byType(models.EventWarning)
	require.Len(t, warnings, 1)
	assert.Equal(t, "NOSUCH", warnings[0].Symbol)
}

func TestSubscribeAllUnknownSkipsFeed(t *testing.T) {
	feed := &fakeFeed{}
	registry := NewRegistryService(feed, newTestDirectory(), &fakeNotifier{})

	result, err := registry.Subscribe([]string{"NOSUCH"}, models.SegmentNSE)
	require.NoError(t, err)
	assert.Empty(t, result.Subscribed)
	assert.Empty(t, feed.subscribed)
}

func TestSubscribeFeedFailure(t *testing.T) {
	feed := &fakeFeed{subscribeErr: errors.New("socket closed")}
	notifier := &fakeNotifier{}
	registry := NewRegistryService(feed, newTestDirectory(), notifier)

	_, err := registry.Subscribe([]string{"RELIANCE"}, models.SegmentNSE)
	require.Error(t, err)
	assert.Len(t, notifier.byType(models.EventError), 1)

	// nothing was recorded, a retry subscribes from scratch
	assert.Empty(t, registry.MonitorEntries())
	assert.Empty(t, registry.Snapshot())
}

func TestUnsubscribeRemovesEmptySegment(t *testing.T) {
	feed := &fakeFeed{}
	registry := NewRegistryService(feed, newTestDirectory(), &fakeNotifier{})

	_, err := registry.Subscribe([]string{"RELIANCE"}, models.SegmentNSE)
	require.NoError(t, err)
	require.Len(t, registry.Snapshot(), 1)

	tokens, err := registry.Unsubscribe([]string{"RELIANCE"}, models.SegmentNSE)
	require.NoError(t, err)
	assert.Equal(t, []string{"256265"}, tokens)
	assert.Empty(t, registry.Snapshot(), "empty segment must be removed")

	// unknown segment and absent tokens are no-ops
	tokens, err = registry.Unsubscribe([]string{"RELIANCE"}, models.SegmentNSE)
	require.NoError(t, err)
	assert.Nil(t, tokens)
}

func TestMonitorListIsAppendOnly(t *testing.T) {
	feed := &fakeFeed{}
	registry := NewRegistryService(feed, newTestDirectory(), &fakeNotifier{})

	_, err := registry.Subscribe([]string{"RELIANCE", "INFY"}, models.SegmentNSE)
	require.NoError(t, err)

	_, err = registry.Unsubscribe([]string{"RELIANCE"}, models.SegmentNSE)
	require.NoError(t, err)

	entries := registry.MonitorEntries()
	require.Len(t, entries, 2, "unsubscribe must not shrink the monitor list")
	assert.Equal(t, "256265", entries[0].Token)
	assert.Equal(t, "408065", entries[1].Token)

	// resubscribing a monitored token must not duplicate its entry
	_, err = registry.Subscribe([]string{"RELIANCE"}, models.SegmentNSE)
	require.NoError(t, err)
	assert.Len(t, registry.MonitorEntries(), 2)
}

func TestSymbolForToken(t *testing.T) {
	registry := NewRegistryService(&fakeFeed{}, newTestDirectory(), &fakeNotifier{})

	_, err := registry.Subscribe([]string{"RELIANCE"}, models.SegmentNSE)
	require.NoError(t, err)

	assert.Equal(t, "RELIANCE", registry.SymbolForToken("256265"))
	assert.Equal(t, "999999", registry.SymbolForToken("999999"), "unknown tokens fall back to the token")
}
