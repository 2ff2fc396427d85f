// Package bidengine implements the bidding engine of a live auction
// marketplace: bid validation and acceptance, a reserve-price-aware automated
// bidding simulator, synchronous change broadcast to subscribers, and a
// durable snapshot of per-item price and history.
//
// The engine is an explicit instance constructed with functional options and
// injected time and randomness sources, so multiple independent engines can
// coexist and tests can run deterministically. It is storage- and
// transport-agnostic: persistence goes through the kvstore.Store interface
// and observers attach through Subscribe.
package bidengine

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/auctionlab/bidding-engine-go/bidengine/kvstore"
)

const (
	// DefaultSnapshotKey is the well-known store key the ledger snapshot is persisted under.
	DefaultSnapshotKey = "bidengine.snapshot"

	defaultTickInterval = 2 * time.Second
	defaultLatencyMin   = 100 * time.Millisecond
	defaultLatencyMax   = 300 * time.Millisecond

	logMsgBidAccepted         = "bid accepted"
	logMsgBidRejected         = "bid rejected"
	logMsgBidCanceled         = "bid canceled before validation"
	logMsgItemRegistered      = "item registered"
	logMsgItemIgnored         = "item registration ignored"
	logMsgTransportDegraded   = "remote backend unreachable, falling back to local ledger"
	logMsgSnapshotSaveFailed  = "saving ledger snapshot failed, in-memory state remains authoritative"
	logMsgSnapshotLoadFailed  = "loading ledger snapshot failed, starting with an empty ledger"
	logMsgSnapshotRestored    = "ledger snapshot restored"
	logMsgSubscriberPanicked  = "subscriber callback panicked, delivery continues"
	logMsgSimulationStarted   = "bid simulation started"
	logMsgSimulationStopped   = "bid simulation stopped"
	logMsgBotTickSkipped      = "bot tick skipped"
	logAttrItemID             = "item_id"
	logAttrAmount             = "amount"
	logAttrBidderID           = "bidder_id"
	logAttrError              = "error"
	logAttrReason             = "reason"
	logAttrSubscriberID       = "subscriber_id"
	logAttrPanic              = "panic"
	logAttrItemCount          = "item_count"
	reasonBotLeading          = "bot is leading"
	reasonReserveReached      = "reserve price reached"
	metricProposeBidDuration  = "bidengine.propose_bid.duration"
	metricBidsAccepted        = "bidengine.bids.accepted"
	metricBidsRejected        = "bidengine.bids.rejected"
	metricSimulationTicks     = "bidengine.simulation.ticks"
	labelOrigin               = "origin"
	labelReason               = "reason"
	originHuman               = "human"
	originBot                 = "bot"
	rejectReasonNotFound      = "item_not_found"
	rejectReasonInsufficient  = "insufficient_bid"
	rejectReasonReserve       = "reserve_reached"
	rejectReasonCanceled      = "canceled"
	tickOutcomeBid            = "bid"
	tickOutcomeSkipped        = "skipped"
	tickOutcomeEmpty          = "no_items"
)

// Result is the structured outcome of ProposeBid. Rejections are results, not
// errors: Message carries the human-readable reason and CurrentPrice the
// item's price at decision time (zero when the item is unknown).
type Result struct {
	Success      bool
	Message      string
	CurrentPrice int64
}

// Engine is a live auction bidding engine instance.
//
// Durability policy: an accepted bid is persisted to the snapshot store
// before it is broadcast to subscribers, so observers never see a change
// that a successful save has not captured. Save failures are logged and the
// in-memory ledger remains authoritative.
type Engine struct {
	ledger    *ledger
	hub       *hub
	scheduler *scheduler

	store  kvstore.Store
	remote RemoteBackend

	logger  Logger
	metrics MetricsCollector
	clock   Clock
	rand    Rand

	increment    int64
	tickInterval time.Duration
	latencyMin   time.Duration
	latencyMax   time.Duration
	snapshotKey  string
	botNames     []string
	backfill     int

	simMu      sync.Mutex
	simEnabled bool
}

// NewEngine creates an engine with optional configuration. If a snapshot
// store is configured and holds a prior snapshot, the ledger and the
// simulation-enabled flag are restored from it.
func NewEngine(options ...Option) (*Engine, error) {
	engine := &Engine{
		ledger:       newLedger(),
		clock:        SystemClock(),
		increment:    DefaultIncrement,
		tickInterval: defaultTickInterval,
		latencyMin:   defaultLatencyMin,
		latencyMax:   defaultLatencyMax,
		snapshotKey:  DefaultSnapshotKey,
		botNames:     defaultBotNames,
	}

	for _, option := range options {
		if err := option(engine); err != nil {
			return nil, err
		}
	}

	if engine.rand == nil {
		engine.rand = NewLockedRand(time.Now().UnixNano())
	}

	engine.hub = newHub(engine.logger)
	engine.scheduler = newScheduler(engine.clock, engine.tickInterval, engine.runBotTick)

	if err := engine.restoreSnapshot(context.Background()); err != nil {
		return nil, err
	}

	return engine, nil
}

// RegisterItem inserts the item into the ledger, or for a known item raises
// the price (only if higher) and (re)sets the reserve. It is idempotent and
// never errors; invalid input is logged and ignored.
func (e *Engine) RegisterItem(ctx context.Context, item Item) {
	if item.ID == "" {
		e.logWarn(logMsgItemIgnored, logAttrError, ErrEmptyItemID.Error())
		return
	}

	if item.CreatedAt.IsZero() {
		item.CreatedAt = e.clock.Now()
	}

	state, created := e.ledger.register(item)
	if created && e.backfill > 0 {
		e.ledger.seedHistory(state, e.manufactureHistory(item))
	}

	e.logDebug(logMsgItemRegistered, logAttrItemID, item.ID, logAttrAmount, item.Price)
	e.persistSnapshot(ctx)
}

// GetCurrentPrice returns the item's current price and whether the item is known.
func (e *Engine) GetCurrentPrice(itemID string) (int64, bool) {
	return e.ledger.currentPrice(itemID)
}

// GetHistory returns a copy of the item's bid history, newest first.
// An item with no bids yet yields an empty history, not an error.
func (e *Engine) GetHistory(itemID string) []BidRecord {
	return e.ledger.history(itemID)
}

// ProposeBid runs the full bid pipeline: per-item serialization, validation
// against ledger state, and on acceptance mutation, persistence, and
// broadcast. Human-originated bids are delayed by a bounded random latency
// before validation begins, modeling a remote round trip; the delay holds no
// locks, so bids on other items are unaffected.
func (e *Engine) ProposeBid(ctx context.Context, itemID string, amount int64, bidderID string, bidderName string) Result {
	start := time.Now()
	origin := originHuman
	if bidderID == BotBidderID {
		origin = originBot
	}

	if origin == originHuman {
		if err := e.simulateLatency(ctx); err != nil {
			e.logDebug(logMsgBidCanceled, logAttrItemID, itemID, logAttrError, err.Error())
			e.countRejection(origin, rejectReasonCanceled)

			return Result{Message: err.Error()}
		}
	}

	state, found := e.ledger.get(itemID)
	if !found {
		e.logDebug(logMsgBidRejected, logAttrItemID, itemID, logAttrReason, rejectReasonNotFound)
		e.countRejection(origin, rejectReasonNotFound)

		return Result{Message: ErrItemNotFound.Error()}
	}

	state.pipeline.Lock()
	defer state.pipeline.Unlock()

	view := e.ledger.viewState(state)

	decision := Evaluate(view.price, true, amount, e.increment)
	if !decision.Accepted {
		e.logDebug(logMsgBidRejected,
			logAttrItemID, itemID,
			logAttrAmount, amount,
			logAttrReason, decision.Reason.Error())
		e.countRejection(origin, rejectReasonInsufficient)

		return Result{Message: decision.Reason.Error(), CurrentPrice: view.price}
	}

	// Bots never push the price past a reserve; only humans may continue.
	// The resulting price is what matters: a bid from an unaligned price
	// below the reserve could still overshoot it.
	if origin == originBot && view.reserve > 0 && decision.NewPrice > view.reserve {
		e.logDebug(logMsgBidRejected, logAttrItemID, itemID, logAttrReason, rejectReasonReserve)
		e.countRejection(origin, rejectReasonReserve)

		return Result{Message: ErrReservePriceReached.Error(), CurrentPrice: view.price}
	}

	record := buildBidRecord(itemID, decision.NewPrice, bidderID, bidderName, e.clock.Now())

	if e.remote != nil {
		if err := e.remote.PlaceBid(ctx, itemID, decision.NewPrice, bidderID, bidderName); err != nil {
			e.logWarn(logMsgTransportDegraded, logAttrItemID, itemID, logAttrError, err.Error())
		}
	}

	e.ledger.mutate(state, record)
	e.persistSnapshot(ctx)
	e.hub.publish(Update{ItemID: itemID, NewPrice: decision.NewPrice})

	e.logInfo(logMsgBidAccepted,
		logAttrItemID, itemID,
		logAttrAmount, decision.NewPrice,
		logAttrBidderID, bidderID)
	e.recordDuration(metricProposeBidDuration, time.Since(start), map[string]string{labelOrigin: origin})
	e.incrementCounter(metricBidsAccepted, map[string]string{labelOrigin: origin})

	return Result{Success: true, Message: logMsgBidAccepted, CurrentPrice: decision.NewPrice}
}

// Subscribe registers a callback for accepted changes and returns its
// unsubscribe func. The first subscriber starts the simulation scheduler if
// the simulation flag is enabled; when the last subscriber leaves, the
// scheduler stops before its next tick.
func (e *Engine) Subscribe(callback UpdateFunc) (unsubscribe func()) {
	remove, becameFirst := e.hub.subscribe(callback)

	if becameFirst && e.SimulationEnabled() {
		e.scheduler.startTicking()
		e.logInfo(logMsgSimulationStarted)
	}

	return func() {
		if remove() && e.scheduler.isRunning() {
			e.scheduler.stopTicking()
			e.logInfo(logMsgSimulationStopped)
		}
	}
}

// SetSimulationEnabled toggles the automated bidding simulation. The flag is
// persisted as part of the snapshot. The scheduler only runs while at least
// one subscriber exists. Idempotent.
func (e *Engine) SetSimulationEnabled(ctx context.Context, enabled bool) {
	e.simMu.Lock()
	changed := e.simEnabled != enabled
	e.simEnabled = enabled
	e.simMu.Unlock()

	if enabled {
		if e.hub.count() > 0 {
			e.scheduler.startTicking()
		}
	} else {
		e.scheduler.stopTicking()
	}

	if changed {
		e.logInfo(logMsgSimulationToggled(enabled))
	}

	e.persistSnapshot(ctx)
}

// SimulationEnabled reports the current simulation flag.
func (e *Engine) SimulationEnabled() bool {
	e.simMu.Lock()
	defer e.simMu.Unlock()

	return e.simEnabled
}

// Close stops the scheduler, waits for an in-flight tick to complete, and
// persists a final snapshot.
func (e *Engine) Close(ctx context.Context) error {
	e.scheduler.stopTicking()
	e.scheduler.awaitStopped()

	return e.saveSnapshot(ctx)
}

func logMsgSimulationToggled(enabled bool) string {
	return "simulation flag set to " + strconv.FormatBool(enabled)
}

// runBotTick performs one scheduler tick: pick a random item and, unless a
// bot is already leading or the reserve is reached, place a bot bid through
// the regular pipeline.
func (e *Engine) runBotTick(ctx context.Context) {
	ids := e.ledger.itemIDs()
	if len(ids) == 0 {
		e.incrementCounter(metricSimulationTicks, map[string]string{labelReason: tickOutcomeEmpty})
		return
	}

	itemID := ids[e.rand.Intn(len(ids))]

	view, found := e.ledger.view(itemID)
	if !found {
		return
	}

	// Bots never outbid other bots: wait for a human to take the lead back.
	if view.leadingBot {
		e.logDebug(logMsgBotTickSkipped, logAttrItemID, itemID, logAttrReason, reasonBotLeading)
		e.incrementCounter(metricSimulationTicks, map[string]string{labelReason: tickOutcomeSkipped})

		return
	}

	if view.reserve > 0 && view.price+e.increment > view.reserve {
		e.logDebug(logMsgBotTickSkipped, logAttrItemID, itemID, logAttrReason, reasonReserveReached)
		e.incrementCounter(metricSimulationTicks, map[string]string{labelReason: tickOutcomeSkipped})

		return
	}

	botName := e.botNames[e.rand.Intn(len(e.botNames))]
	result := e.ProposeBid(ctx, itemID, view.price+e.increment, BotBidderID, botName)

	// A human may have raced the price up since the view was taken.
	outcome := tickOutcomeBid
	if !result.Success {
		outcome = tickOutcomeSkipped
	}
	e.incrementCounter(metricSimulationTicks, map[string]string{labelReason: outcome})
}

// simulateLatency applies the bounded random delay modeling a human bid's
// network round trip. It respects context cancellation and holds no locks.
func (e *Engine) simulateLatency(ctx context.Context) error {
	if e.latencyMax <= 0 {
		return nil
	}

	delay := e.latencyMin
	if spread := int((e.latencyMax - e.latencyMin) / time.Millisecond); spread > 0 {
		delay += time.Duration(e.rand.Intn(spread+1)) * time.Millisecond
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.clock.After(delay):
		return nil
	}
}

// manufactureHistory fabricates plausible past bids for a freshly registered
// item, stepping down from the starting price at increasing ages. The records
// carry generated pseudo-human identities so the scheduler treats the item as
// human-led.
func (e *Engine) manufactureHistory(item Item) []BidRecord {
	records := make([]BidRecord, 0, e.backfill)
	placedAt := item.CreatedAt
	amount := item.Price

	for i := 0; i < e.backfill && amount > 0; i++ {
		placedAt = placedAt.Add(-time.Duration(1+e.rand.Intn(5)) * time.Minute)
		bidderID := "seed-" + uuid.NewString()[:8]
		bidderName := e.botNames[e.rand.Intn(len(e.botNames))]

		records = append(records, buildBidRecord(item.ID, amount, bidderID, bidderName, placedAt))
		amount -= e.increment
	}

	return records
}

// restoreSnapshot loads the persisted snapshot on construction. A missing
// snapshot is a normal first run; an unreachable store degrades to an empty
// ledger with a warning; a corrupt snapshot is a construction error.
func (e *Engine) restoreSnapshot(ctx context.Context) error {
	if e.store == nil {
		return nil
	}

	data, found, err := e.store.Get(ctx, e.snapshotKey)
	if err != nil {
		e.logWarn(logMsgSnapshotLoadFailed, logAttrError, err.Error())
		return nil
	}
	if !found {
		return nil
	}

	snapshot, err := DecodeSnapshot(data)
	if err != nil {
		return err
	}

	e.ledger.restore(snapshot)
	e.simMu.Lock()
	e.simEnabled = snapshot.SimulationEnabled
	e.simMu.Unlock()

	e.logInfo(logMsgSnapshotRestored, logAttrItemCount, len(snapshot.CurrentPrices))

	return nil
}

// persistSnapshot saves best-effort: failures are logged, never surfaced to
// the bid initiator.
func (e *Engine) persistSnapshot(ctx context.Context) {
	if err := e.saveSnapshot(ctx); err != nil {
		e.logError(logMsgSnapshotSaveFailed, logAttrError, err.Error())
	}
}

func (e *Engine) saveSnapshot(ctx context.Context) error {
	if e.store == nil {
		return nil
	}

	snapshot := e.ledger.buildSnapshot(e.SimulationEnabled())

	data, err := snapshot.Encode()
	if err != nil {
		return err
	}

	return e.store.Set(ctx, e.snapshotKey, data)
}

func (e *Engine) countRejection(origin string, reason string) {
	e.incrementCounter(metricBidsRejected, map[string]string{labelOrigin: origin, labelReason: reason})
}

func (e *Engine) logDebug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}

func (e *Engine) logInfo(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Info(msg, args...)
	}
}

func (e *Engine) logWarn(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}

func (e *Engine) logError(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Error(msg, args...)
	}
}

func (e *Engine) recordDuration(metric string, duration time.Duration, labels map[string]string) {
	if e.metrics != nil {
		e.metrics.RecordDuration(metric, duration, labels)
	}
}

func (e *Engine) incrementCounter(metric string, labels map[string]string) {
	if e.metrics != nil {
		e.metrics.IncrementCounter(metric, labels)
	}
}
