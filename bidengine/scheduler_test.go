package bidengine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auctionlab/bidding-engine-go/bidengine"
	"github.com/auctionlab/bidding-engine-go/testutil/enginetest"
)

const tickInterval = 2 * time.Second

// spyMetrics counts IncrementCounter calls keyed by metric name and reason
// label, giving tests a deterministic signal for skipped ticks.
type spyMetrics struct {
	mu       sync.Mutex
	counters map[string]int
}

func newSpyMetrics() *spyMetrics {
	return &spyMetrics{counters: make(map[string]int)}
}

func (m *spyMetrics) RecordDuration(string, time.Duration, map[string]string) {}

func (m *spyMetrics) RecordValue(string, float64, map[string]string) {}

func (m *spyMetrics) IncrementCounter(metric string, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := metric
	if reason, ok := labels["reason"]; ok {
		key += ":" + reason
	}
	m.counters[key]++
}

func (m *spyMetrics) count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.counters[key]
}

type simFixture struct {
	engine  *bidengine.Engine
	clock   *enginetest.FakeClock
	metrics *spyMetrics
}

func newSimFixture(t *testing.T, extra ...bidengine.Option) *simFixture {
	t.Helper()

	clock := enginetest.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	metrics := newSpyMetrics()

	options := append([]bidengine.Option{
		bidengine.WithClock(clock),
		bidengine.WithRand(enginetest.NewScriptedRand()),
		bidengine.WithMetrics(metrics),
		bidengine.WithTickInterval(tickInterval),
		bidengine.WithHumanLatency(0, 0),
		bidengine.WithSimulationEnabled(true),
	}, extra...)

	engine, err := bidengine.NewEngine(options...)
	require.NoError(t, err)

	return &simFixture{engine: engine, clock: clock, metrics: metrics}
}

// awaitScheduler blocks until the scheduler goroutine has created its ticker,
// so a following Advance cannot outrun it.
func (f *simFixture) awaitScheduler(t *testing.T, tickers int) {
	t.Helper()

	require.Eventually(t, func() bool {
		return f.clock.TickerCount() >= tickers
	}, time.Second, time.Millisecond)
}

func (f *simFixture) tick(t *testing.T) {
	t.Helper()
	f.clock.Advance(tickInterval)
}

func (f *simFixture) awaitTicks(t *testing.T, total int) {
	t.Helper()

	require.Eventually(t, func() bool {
		return f.metrics.count("bidengine.simulation.ticks:bid")+
			f.metrics.count("bidengine.simulation.ticks:skipped")+
			f.metrics.count("bidengine.simulation.ticks:no_items") >= total
	}, time.Second, time.Millisecond)
}

func Test_Simulation_BotBidsOnTick(t *testing.T) {
	fixture := newSimFixture(t)
	fixture.engine.RegisterItem(context.Background(), bidengine.Item{ID: "lot-1", Price: 1000})

	subscriber := &enginetest.RecordingSubscriber{}
	defer fixture.engine.Subscribe(subscriber.Callback())()
	fixture.awaitScheduler(t, 1)

	fixture.tick(t)
	fixture.awaitTicks(t, 1)

	price, _ := fixture.engine.GetCurrentPrice("lot-1")
	assert.Equal(t, int64(1050), price)

	history := fixture.engine.GetHistory("lot-1")
	require.Len(t, history, 1)
	assert.Equal(t, bidengine.BotBidderID, history[0].BidderID)
	assert.Equal(t, "Mika V.", history[0].BidderName)

	require.Equal(t, 1, subscriber.Count())
	assert.Equal(t, bidengine.Update{ItemID: "lot-1", NewPrice: 1050}, subscriber.Updates()[0])
}

func Test_Simulation_BotsNeverOutbidBots(t *testing.T) {
	ctx := context.Background()
	fixture := newSimFixture(t)
	fixture.engine.RegisterItem(ctx, bidengine.Item{ID: "lot-1", Price: 1000})

	defer fixture.engine.Subscribe(func(bidengine.Update) {})()
	fixture.awaitScheduler(t, 1)

	fixture.tick(t)
	fixture.awaitTicks(t, 1)
	require.Equal(t, 1, fixture.metrics.count("bidengine.simulation.ticks:bid"))

	// A bot is now leading, so the next tick must pass.
	fixture.tick(t)
	fixture.awaitTicks(t, 2)
	assert.Equal(t, 1, fixture.metrics.count("bidengine.simulation.ticks:bid"))
	assert.Equal(t, 1, fixture.metrics.count("bidengine.simulation.ticks:skipped"))

	price, _ := fixture.engine.GetCurrentPrice("lot-1")
	assert.Equal(t, int64(1050), price)

	// A human taking the lead back re-arms the bot.
	require.True(t, fixture.engine.ProposeBid(ctx, "lot-1", 1100, "u1", "Ana").Success)

	fixture.tick(t)
	fixture.awaitTicks(t, 3)
	assert.Equal(t, 2, fixture.metrics.count("bidengine.simulation.ticks:bid"))

	price, _ = fixture.engine.GetCurrentPrice("lot-1")
	assert.Equal(t, int64(1150), price)
}

func Test_Simulation_BotsStopAtReservePrice(t *testing.T) {
	ctx := context.Background()
	fixture := newSimFixture(t)
	fixture.engine.RegisterItem(ctx, bidengine.Item{ID: "lot-1", Price: 950, ReservePrice: 1000})

	defer fixture.engine.Subscribe(func(bidengine.Update) {})()
	fixture.awaitScheduler(t, 1)

	fixture.tick(t)
	fixture.awaitTicks(t, 1)

	price, _ := fixture.engine.GetCurrentPrice("lot-1")
	require.Equal(t, int64(1000), price)

	// At the reserve the bot stands down.
	fixture.tick(t)
	fixture.awaitTicks(t, 2)
	assert.Equal(t, 1, fixture.metrics.count("bidengine.simulation.ticks:bid"))
	assert.Equal(t, 1, fixture.metrics.count("bidengine.simulation.ticks:skipped"))

	// Humans are not bound by the reserve.
	require.True(t, fixture.engine.ProposeBid(ctx, "lot-1", 1050, "u1", "Ana").Success)

	// Past the reserve the bot stays out even with a human leading.
	fixture.tick(t)
	fixture.awaitTicks(t, 3)
	assert.Equal(t, 1, fixture.metrics.count("bidengine.simulation.ticks:bid"))

	price, _ = fixture.engine.GetCurrentPrice("lot-1")
	assert.Equal(t, int64(1050), price)
}

func Test_Simulation_BotsDoNotOvershootUnalignedReserve(t *testing.T) {
	ctx := context.Background()
	fixture := newSimFixture(t)
	fixture.engine.RegisterItem(ctx, bidengine.Item{ID: "lot-1", Price: 1000, ReservePrice: 1100})

	// A human bid at an arbitrary amount leaves the price 25 below the
	// reserve; the next increment would land past it.
	require.True(t, fixture.engine.ProposeBid(ctx, "lot-1", 1075, "u1", "Ana").Success)

	defer fixture.engine.Subscribe(func(bidengine.Update) {})()
	fixture.awaitScheduler(t, 1)

	fixture.tick(t)
	fixture.awaitTicks(t, 1)

	assert.Equal(t, 1, fixture.metrics.count("bidengine.simulation.ticks:skipped"))
	assert.Zero(t, fixture.metrics.count("bidengine.simulation.ticks:bid"))

	price, _ := fixture.engine.GetCurrentPrice("lot-1")
	assert.Equal(t, int64(1075), price)

	history := fixture.engine.GetHistory("lot-1")
	require.Len(t, history, 1)
	assert.False(t, history[0].IsBot())
}

// gatingRand blocks a chosen Intn draw, holding a tick open between reading
// item state and placing the bot bid.
type gatingRand struct {
	mu      sync.Mutex
	calls   int
	gateOn  int
	entered chan struct{}
	release chan struct{}
}

func newGatingRand(gateOn int) *gatingRand {
	return &gatingRand{gateOn: gateOn, entered: make(chan struct{}), release: make(chan struct{})}
}

func (r *gatingRand) Intn(int) int {
	r.mu.Lock()
	r.calls++
	calls := r.calls
	r.mu.Unlock()

	if calls == r.gateOn {
		close(r.entered)
		<-r.release
	}

	return 0
}

func Test_Simulation_RacedBotBidCountsAsSkipped(t *testing.T) {
	ctx := context.Background()

	// A tick draws twice, first the item pick and then the bot name. Gating
	// the second draw holds the tick after it has read the pre-race price.
	gate := newGatingRand(2)
	fixture := newSimFixture(t, bidengine.WithRand(gate))
	fixture.engine.RegisterItem(ctx, bidengine.Item{ID: "lot-1", Price: 1000})

	defer fixture.engine.Subscribe(func(bidengine.Update) {})()
	fixture.awaitScheduler(t, 1)

	fixture.tick(t)
	<-gate.entered

	// The human wins the race while the tick still holds the stale price.
	require.True(t, fixture.engine.ProposeBid(ctx, "lot-1", 1075, "u1", "Ana").Success)
	close(gate.release)

	fixture.awaitTicks(t, 1)
	assert.Zero(t, fixture.metrics.count("bidengine.simulation.ticks:bid"))
	assert.Equal(t, 1, fixture.metrics.count("bidengine.simulation.ticks:skipped"))

	price, _ := fixture.engine.GetCurrentPrice("lot-1")
	assert.Equal(t, int64(1075), price)

	history := fixture.engine.GetHistory("lot-1")
	require.Len(t, history, 1)
	assert.False(t, history[0].IsBot())
}

func Test_Simulation_TicksWithEmptyCatalogDoNothing(t *testing.T) {
	fixture := newSimFixture(t)

	defer fixture.engine.Subscribe(func(bidengine.Update) {})()
	fixture.awaitScheduler(t, 1)

	fixture.tick(t)
	fixture.awaitTicks(t, 1)

	assert.Equal(t, 1, fixture.metrics.count("bidengine.simulation.ticks:no_items"))
	assert.Zero(t, fixture.metrics.count("bidengine.simulation.ticks:bid"))
}

func Test_Simulation_StopsWhenLastSubscriberLeaves(t *testing.T) {
	fixture := newSimFixture(t)
	fixture.engine.RegisterItem(context.Background(), bidengine.Item{ID: "lot-1", Price: 1000})

	unsubscribe := fixture.engine.Subscribe(func(bidengine.Update) {})
	fixture.awaitScheduler(t, 1)

	fixture.tick(t)
	fixture.awaitTicks(t, 1)

	unsubscribe()

	// With no subscribers the scheduler is stopped: advancing produces no ticks.
	fixture.tick(t)
	fixture.tick(t)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, fixture.metrics.count("bidengine.simulation.ticks:bid"))
	assert.Zero(t, fixture.metrics.count("bidengine.simulation.ticks:skipped"))

	// A human retakes the lead so the restarted scheduler has a bid to place.
	require.True(t, fixture.engine.ProposeBid(context.Background(), "lot-1", 1100, "u1", "Ana").Success)

	// The next subscriber restarts it.
	defer fixture.engine.Subscribe(func(bidengine.Update) {})()
	fixture.awaitScheduler(t, 2)

	fixture.tick(t)
	fixture.awaitTicks(t, 2)
	assert.Equal(t, 2, fixture.metrics.count("bidengine.simulation.ticks:bid"))
}

func Test_SetSimulationEnabled_ControlsScheduler(t *testing.T) {
	ctx := context.Background()
	fixture := newSimFixture(t, bidengine.WithSimulationEnabled(false))
	fixture.engine.RegisterItem(ctx, bidengine.Item{ID: "lot-1", Price: 1000})

	// Subscribing with the flag off starts nothing.
	defer fixture.engine.Subscribe(func(bidengine.Update) {})()
	assert.Zero(t, fixture.clock.TickerCount())
	assert.False(t, fixture.engine.SimulationEnabled())

	fixture.engine.SetSimulationEnabled(ctx, true)
	assert.True(t, fixture.engine.SimulationEnabled())
	fixture.awaitScheduler(t, 1)

	fixture.tick(t)
	fixture.awaitTicks(t, 1)
	require.Equal(t, 1, fixture.metrics.count("bidengine.simulation.ticks:bid"))

	fixture.engine.SetSimulationEnabled(ctx, false)

	fixture.tick(t)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, fixture.metrics.count("bidengine.simulation.ticks:bid"))
	assert.Zero(t, fixture.metrics.count("bidengine.simulation.ticks:skipped"))
}

func Test_SetSimulationEnabled_WithoutSubscribersDoesNotStart(t *testing.T) {
	fixture := newSimFixture(t, bidengine.WithSimulationEnabled(false))

	fixture.engine.SetSimulationEnabled(context.Background(), true)

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, fixture.clock.TickerCount())

	// The flag is armed: the first subscriber starts ticking.
	defer fixture.engine.Subscribe(func(bidengine.Update) {})()
	fixture.awaitScheduler(t, 1)
}

func Test_Close_StopsSchedulerAndPersists(t *testing.T) {
	ctx := context.Background()
	store := enginetest.NewSpyStore()
	fixture := newSimFixture(t, bidengine.WithStore(store))
	fixture.engine.RegisterItem(ctx, bidengine.Item{ID: "lot-1", Price: 1000})

	unsubscribe := fixture.engine.Subscribe(func(bidengine.Update) {})
	fixture.awaitScheduler(t, 1)

	savesBefore := store.Saves()
	require.NoError(t, fixture.engine.Close(ctx))
	assert.Greater(t, store.Saves(), savesBefore)

	// The loop is gone: ticks after Close are inert.
	fixture.tick(t)
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, fixture.metrics.count("bidengine.simulation.ticks:bid"))

	unsubscribe()
}
