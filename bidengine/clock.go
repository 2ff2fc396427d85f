package bidengine

import (
	"math/rand"
	"sync"
	"time"
)

// Clock abstracts the time source used by the engine so that tests can drive
// the simulation scheduler and bid timestamps deterministically.
type Clock interface {
	Now() time.Time
	NewTicker(interval time.Duration) Ticker
	After(duration time.Duration) <-chan time.Time
}

// Ticker abstracts a periodic timer created by a Clock.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// Rand abstracts the randomness the engine needs: item selection, bot name
// selection, and human latency jitter.
type Rand interface {
	Intn(n int) int
}

// SystemClock returns a Clock backed by the time package.
func SystemClock() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) NewTicker(interval time.Duration) Ticker {
	return &systemTicker{ticker: time.NewTicker(interval)}
}

func (systemClock) After(duration time.Duration) <-chan time.Time {
	return time.After(duration)
}

type systemTicker struct {
	ticker *time.Ticker
}

func (t *systemTicker) Chan() <-chan time.Time {
	return t.ticker.C
}

func (t *systemTicker) Stop() {
	t.ticker.Stop()
}

// NewLockedRand returns a Rand backed by math/rand with the given seed,
// safe for concurrent use by the scheduler goroutine and bid callers.
func NewLockedRand(seed int64) Rand {
	return &lockedRand{rand: rand.New(rand.NewSource(seed))} //nolint:gosec // weak random is fine for simulation
}

type lockedRand struct {
	mu   sync.Mutex
	rand *rand.Rand
}

func (r *lockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.rand.Intn(n)
}
