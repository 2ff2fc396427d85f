package bidengine

import (
	"sort"
	"sync"
	"time"
)

// itemState holds the mutable per-item auction state.
//
// The pipeline mutex serializes the read-validate-write sequence of ProposeBid
// for this item only, so bids on different items proceed independently.
// The field values themselves are guarded by the ledger's RWMutex, which keeps
// snapshot building free of per-item lock ordering concerns.
type itemState struct {
	pipeline sync.Mutex

	id        string
	name      string
	price     int64
	reserve   int64
	createdAt time.Time
	history   []BidRecord // newest first
}

// ledger is the authoritative in-memory record of item prices and bid histories.
type ledger struct {
	mu    sync.RWMutex
	items map[string]*itemState
}

func newLedger() *ledger {
	return &ledger{items: make(map[string]*itemState)}
}

// register inserts the item if absent. For a known item it raises the current
// price only if the new price is higher, (re)sets the reserve price, and never
// discards existing history. It reports whether the item was newly created.
//
// Updates to a known item go through its pipeline mutex, so a re-registration
// cannot interleave between a concurrent bid's validation and commit and the
// price stays non-decreasing.
func (l *ledger) register(item Item) (*itemState, bool) {
	l.mu.Lock()
	state, exists := l.items[item.ID]
	if !exists {
		state = &itemState{
			id:        item.ID,
			name:      item.Name,
			price:     item.Price,
			reserve:   item.ReservePrice,
			createdAt: item.CreatedAt,
		}
		l.items[item.ID] = state
		l.mu.Unlock()

		return state, true
	}
	l.mu.Unlock()

	state.pipeline.Lock()
	defer state.pipeline.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	if item.Name != "" {
		state.name = item.Name
	}
	if item.Price > state.price {
		state.price = item.Price
	}
	state.reserve = item.ReservePrice

	return state, false
}

func (l *ledger) get(itemID string) (*itemState, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	state, found := l.items[itemID]

	return state, found
}

func (l *ledger) itemIDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]string, 0, len(l.items))
	for id := range l.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}

func (l *ledger) currentPrice(itemID string) (int64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	state, found := l.items[itemID]
	if !found {
		return 0, false
	}

	return state.price, true
}

// history returns a copy of the item's bid history, newest first.
func (l *ledger) history(itemID string) []BidRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	state, found := l.items[itemID]
	if !found || len(state.history) == 0 {
		return nil
	}

	records := make([]BidRecord, len(state.history))
	copy(records, state.history)

	return records
}

// itemView is a consistent read of the fields the scheduler and the bid
// pipeline decide on.
type itemView struct {
	price      int64
	reserve    int64
	leadingBot bool
}

func (l *ledger) view(itemID string) (itemView, bool) {
	l.mu.RLock()
	state, found := l.items[itemID]
	l.mu.RUnlock()

	if !found {
		return itemView{}, false
	}

	return l.viewState(state), true
}

func (l *ledger) viewState(state *itemState) itemView {
	l.mu.RLock()
	defer l.mu.RUnlock()

	view := itemView{price: state.price, reserve: state.reserve}
	if len(state.history) > 0 {
		view.leadingBot = state.history[0].IsBot()
	}

	return view
}

// mutate atomically raises the item's price to the record's amount and
// prepends the record to its history. The caller must hold the item's
// pipeline mutex.
func (l *ledger) mutate(state *itemState, record BidRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state.price = record.Amount
	state.history = append([]BidRecord{record}, state.history...)
}

// seedHistory installs manufactured past bids on a freshly registered item.
// It is a no-op if the item already has history.
func (l *ledger) seedHistory(state *itemState, records []BidRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(state.history) > 0 {
		return
	}

	state.history = records
}

// buildSnapshot captures the full ledger state as the unit of persistence.
func (l *ledger) buildSnapshot(simulationEnabled bool) Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snapshot := Snapshot{
		CurrentPrices:     make(map[string]int64, len(l.items)),
		ReservePrices:     make(map[string]int64),
		BidHistory:        make(map[string][]BidRecord, len(l.items)),
		SimulationEnabled: simulationEnabled,
	}

	for id, state := range l.items {
		snapshot.CurrentPrices[id] = state.price
		if state.reserve > 0 {
			snapshot.ReservePrices[id] = state.reserve
		}

		records := make([]BidRecord, len(state.history))
		copy(records, state.history)
		snapshot.BidHistory[id] = records
	}

	return snapshot
}

// restore rebuilds ledger state from a persisted snapshot. Item display names
// are not part of the snapshot; a later RegisterItem call fills them in
// without touching the restored history.
func (l *ledger) restore(snapshot Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, price := range snapshot.CurrentPrices {
		state := &itemState{
			id:      id,
			price:   price,
			reserve: snapshot.ReservePrices[id],
		}

		if history := snapshot.BidHistory[id]; len(history) > 0 {
			state.history = make([]BidRecord, len(history))
			copy(state.history, history)
		}

		l.items[id] = state
	}
}
