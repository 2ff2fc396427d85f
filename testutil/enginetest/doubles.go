package enginetest

import (
	"context"
	"sync"

	"github.com/auctionlab/bidding-engine-go/bidengine"
	"github.com/auctionlab/bidding-engine-go/bidengine/kvstore"
)

// ScriptedRand is a bidengine.Rand that pops pre-seeded values in order and
// returns zero once the script is exhausted. Values are reduced modulo n, so
// scripts stay valid regardless of the bound the engine asks for.
type ScriptedRand struct {
	mu     sync.Mutex
	values []int
}

// NewScriptedRand creates a scripted randomness source.
func NewScriptedRand(values ...int) *ScriptedRand {
	return &ScriptedRand{values: values}
}

// Intn pops the next scripted value reduced modulo n.
func (r *ScriptedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.values) == 0 {
		return 0
	}

	value := r.values[0]
	r.values = r.values[1:]

	return value % n
}

// RecordingSubscriber collects the updates delivered to it.
type RecordingSubscriber struct {
	mu      sync.Mutex
	updates []bidengine.Update
}

// Callback returns the UpdateFunc to subscribe with.
func (s *RecordingSubscriber) Callback() bidengine.UpdateFunc {
	return func(update bidengine.Update) {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.updates = append(s.updates, update)
	}
}

// Updates returns a copy of the collected updates.
func (s *RecordingSubscriber) Updates() []bidengine.Update {
	s.mu.Lock()
	defer s.mu.Unlock()

	updates := make([]bidengine.Update, len(s.updates))
	copy(updates, s.updates)

	return updates
}

// Count returns how many updates were delivered.
func (s *RecordingSubscriber) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.updates)
}

// FailingStore is a kvstore.Store whose Set always fails with the given
// error, for exercising the engine's persistence degradation path.
type FailingStore struct {
	Err error
}

// Get reports no value stored.
func (s *FailingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

// Set fails with the configured error.
func (s *FailingStore) Set(context.Context, string, []byte) error {
	return s.Err
}

// SpyStore wraps a MemoryStore and counts saves.
type SpyStore struct {
	*kvstore.MemoryStore

	mu    sync.Mutex
	saves int
}

// NewSpyStore creates a save-counting in-memory store.
func NewSpyStore() *SpyStore {
	return &SpyStore{MemoryStore: kvstore.NewMemoryStore()}
}

// Set stores the value and counts the save.
func (s *SpyStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	s.saves++
	s.mu.Unlock()

	return s.MemoryStore.Set(ctx, key, value)
}

// Saves returns how many saves happened.
func (s *SpyStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saves
}

// Ensure the doubles implement the engine interfaces.
var (
	_ bidengine.Rand = (*ScriptedRand)(nil)
	_ kvstore.Store  = (*FailingStore)(nil)
	_ kvstore.Store  = (*SpyStore)(nil)
)
