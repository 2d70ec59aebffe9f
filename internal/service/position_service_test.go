package service

import (
	"sync"
	"testing"

	"github.com/nsvirk/autotraderapi/internal/models"
	"github.com/nsvirk/autotraderapi/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePositionRepo is an in-memory PositionRepository
type fakePositionRepo struct {
	mu        sync.Mutex
	positions []*models.PositionModel
	nextID    uint
	creates   int
	saves     int
}

func (r *fakePositionRepo) FindOpen(token string) (*models.PositionModel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.positions) - 1; i >= 0; i-- {
		p := r.positions[i]
		if p.Token == token && p.Status == models.PositionStatusOpen {
			return p, nil
		}
	}
	return nil, nil
}

func (r *fakePositionRepo) Create(position *models.PositionModel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	position.ID = r.nextID
	r.positions = append(r.positions, position)
	r.creates++
	return nil
}

func (r *fakePositionRepo) Save(position *models.PositionModel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	return nil
}

func (r *fakePositionRepo) FindAll(status string) ([]models.PositionModel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.PositionModel, 0, len(r.positions))
	for _, p := range r.positions {
		if status == "" || p.Status == status {
			out = append(out, *p)
		}
	}
	return out, nil
}

// fakeNotifier records events
type fakeNotifier struct {
	mu     sync.Mutex
	events []models.Event
}

func (n *fakeNotifier) Notify(event models.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *fakeNotifier) byType(t models.EventType) []models.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []models.Event
	for _, e := range n.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func newTestPositionService(repo PositionRepository, notifier Notifier) *PositionService {
	return &PositionService{
		repo:            repo,
		notifier:        notifier,
		riskPercent:     0.01,
		riskReward:      1.5,
		mtmEpsilon:      0.05,
		targetTolerance: 0.01,
		defaultLots:     1,
		defaultQty:      50,
		locks:           make(map[string]*sync.Mutex),
	}
}

func TestOpenIfAbsentComputesBracket(t *testing.T) {
	repo := &fakePositionRepo{}
	notifier := &fakeNotifier{}
	svc := newTestPositionService(repo, notifier)

	long, err := svc.OpenIfAbsent("256265", "RELIANCE", "NSE", strategy.SideLong, 100, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, 101.5, long.Target)
	assert.Equal(t, 99.0, long.Stoploss)
	assert.Equal(t, models.PositionStatusOpen, long.Status)
	assert.Equal(t, models.SideLong, long.Side)

	short, err := svc.OpenIfAbsent("408065", "INFY", "NSE", strategy.SideShort, 100, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, 98.5, short.Target)
	assert.Equal(t, 101.0, short.Stoploss)

	opened := notifier.byType(models.EventPositionOpened)
	assert.Len(t, opened, 2)
}

func TestOpenIfAbsentReturnsExisting(t *testing.T) {
	repo := &fakePositionRepo{}
	svc := newTestPositionService(repo, &fakeNotifier{})

	first, err := svc.OpenIfAbsent("256265", "RELIANCE", "NSE", strategy.SideLong, 100, 1, 50)
	require.NoError(t, err)

	second, err := svc.OpenIfAbsent("256265", "RELIANCE", "NSE", strategy.SideShort, 200, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, models.SideLong, second.Side)
	assert.Equal(t, 1, repo.creates)
}

func TestOpenIfAbsentConcurrent(t *testing.T) {
	repo := &fakePositionRepo{}
	svc := newTestPositionService(repo, &fakeNotifier{})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.OpenIfAbsent("256265", "RELIANCE", "NSE", strategy.SideLong, 100, 1, 50)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, repo.creates, "concurrent opens for one token must create exactly one position")
}

func TestUpdateMTMMaterialityThreshold(t *testing.T) {
	repo := &fakePositionRepo{}
	svc := newTestPositionService(repo, &fakeNotifier{})

	position, err := svc.OpenIfAbsent("256265", "RELIANCE", "NSE", strategy.SideLong, 100, 1, 50)
	require.NoError(t, err)

	// 0.04 delta is below the 0.05 threshold: not persisted
	require.NoError(t, svc.UpdateMTM("256265", 100.0008))
	assert.Equal(t, 0, repo.saves)
	assert.Equal(t, 0.0, position.MTM)

	// 5.00 delta is material
	require.NoError(t, svc.UpdateMTM("256265", 100.1))
	assert.Equal(t, 1, repo.saves)
	assert.Equal(t, 5.0, position.MTM)
}

func TestUpdateMTMNoOpenPosition(t *testing.T) {
	svc := newTestPositionService(&fakePositionRepo{}, &fakeNotifier{})
	require.NoError(t, svc.UpdateMTM("256265", 100))
}

func TestUpdateMTMStoplossCloses(t *testing.T) {
	repo := &fakePositionRepo{}
	notifier := &fakeNotifier{}
	svc := newTestPositionService(repo, notifier)

	position, err := svc.OpenIfAbsent("256265", "RELIANCE", "NSE", strategy.SideLong, 100, 1, 50)
	require.NoError(t, err)

	require.NoError(t, svc.UpdateMTM("256265", 99))
	assert.Equal(t, models.PositionStatusClosed, position.Status)
	assert.Equal(t, "Stoploss hit", position.ExitReason)
	require.NotNil(t, position.ExitPrice)
	assert.Equal(t, 99.0, *position.ExitPrice)
	assert.Equal(t, 50.0, position.MTM, "realized PNL frozen at close")

	closed := notifier.byType(models.EventPositionClosed)
	require.Len(t, closed, 1)

	// ticks after the close are no-ops
	require.NoError(t, svc.UpdateMTM("256265", 95))
	assert.Len(t, notifier.byType(models.EventPositionClosed), 1)
}

func TestUpdateMTMTargetToleranceBand(t *testing.T) {
	repo := &fakePositionRepo{}
	notifier := &fakeNotifier{}
	svc := newTestPositionService(repo, notifier)

	// LONG entry 100: target 101.5, band floor 101.5*0.99 = 100.485
	position, err := svc.OpenIfAbsent("256265", "RELIANCE", "NSE", strategy.SideLong, 100, 1, 50)
	require.NoError(t, err)

	require.NoError(t, svc.UpdateMTM("256265", 100.48))
	assert.Equal(t, models.PositionStatusOpen, position.Status, "below the band, must stay open")

	require.NoError(t, svc.UpdateMTM("256265", 100.49))
	assert.Equal(t, models.PositionStatusClosed, position.Status)
	assert.Equal(t, "Target reached", position.ExitReason)
}

func TestUpdateMTMShortStoploss(t *testing.T) {
	repo := &fakePositionRepo{}
	svc := newTestPositionService(repo, &fakeNotifier{})

	// SHORT entry 100: target 98.5, stoploss 101
	position, err := svc.OpenIfAbsent("408065", "INFY", "NSE", strategy.SideShort, 100, 1, 50)
	require.NoError(t, err)

	require.NoError(t, svc.UpdateMTM("408065", 101))
	assert.Equal(t, models.PositionStatusClosed, position.Status)
	assert.Equal(t, "Stoploss hit", position.ExitReason)
}

func TestCloseIdempotent(t *testing.T) {
	repo := &fakePositionRepo{}
	notifier := &fakeNotifier{}
	svc := newTestPositionService(repo, notifier)

	// closing with no open position is a reported no-op
	position, err := svc.Close("256265", 100, "manual")
	require.NoError(t, err)
	assert.Nil(t, position)

	_, err = svc.OpenIfAbsent("256265", "RELIANCE", "NSE", strategy.SideLong, 100, 1, 50)
	require.NoError(t, err)

	first, err := svc.Close("256265", 100.5, "manual")
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := svc.Close("256265", 100.5, "manual")
	require.NoError(t, err)
	assert.Nil(t, second)

	assert.Len(t, notifier.byType(models.EventPositionClosed), 1)
}

func TestClosePNLOrientedByLargerLeg(t *testing.T) {
	repo := &fakePositionRepo{}
	svc := newTestPositionService(repo, &fakeNotifier{})

	_, err := svc.OpenIfAbsent("408065", "INFY", "NSE", strategy.SideShort, 100, 1, 50)
	require.NoError(t, err)

	closed, err := svc.Close("408065", 102, "manual")
	require.NoError(t, err)
	require.NotNil(t, closed)
	assert.Equal(t, 100.0, closed.MTM)
}

func TestCurrentSide(t *testing.T) {
	repo := &fakePositionRepo{}
	svc := newTestPositionService(repo, &fakeNotifier{})

	side, err := svc.CurrentSide("256265")
	require.NoError(t, err)
	assert.Equal(t, strategy.SideNone, side)

	_, err = svc.OpenIfAbsent("256265", "RELIANCE", "NSE", strategy.SideShort, 100, 1, 50)
	require.NoError(t, err)

	side, err = svc.CurrentSide("256265")
	require.NoError(t, err)
	assert.Equal(t, strategy.SideShort, side)
}

func TestApplySignals(t *testing.T) {
	repo := &fakePositionRepo{}
	svc := newTestPositionService(repo, &fakeNotifier{})

	require.NoError(t, svc.Apply("256265", "RELIANCE", "NSE", nil, 100))
	assert.Equal(t, 0, repo.creates)

	buy := &strategy.Signal{Action: strategy.ActionBuy, Reason: "test"}
	require.NoError(t, svc.Apply("256265", "RELIANCE", "NSE", buy, 100))
	assert.Equal(t, 1, repo.creates)

	side, _ := svc.CurrentSide("256265")
	assert.Equal(t, strategy.SideLong, side)

	exit := &strategy.Signal{Action: strategy.ActionExit, Reason: "test exit"}
	require.NoError(t, svc.Apply("256265", "RELIANCE", "NSE", exit, 100.2))

	open, err := svc.HasOpen("256265")
	require.NoError(t, err)
	assert.False(t, open)

	err = svc.Apply("256265", "RELIANCE", "NSE", &strategy.Signal{Action: "HOLD"}, 100)
	assert.Error(t, err)
}
