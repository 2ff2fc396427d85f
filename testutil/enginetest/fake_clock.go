// Package enginetest provides test doubles for deterministic engine tests:
// a manually advanced clock, scripted randomness, and instrumented snapshot
// stores.
package enginetest

import (
	"sync"
	"time"

	"github.com/auctionlab/bidding-engine-go/bidengine"
)

// FakeClock is a bidengine.Clock that only moves when Advance is called.
// Tickers created from it fire during Advance for every elapsed interval,
// coalescing like real tickers when the consumer lags behind.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
	waiters []*fakeWaiter
}

// NewFakeClock creates a fake clock starting at the given instant.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the current fake instant.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

// NewTicker creates a ticker firing every interval of fake time.
func (c *FakeClock) NewTicker(interval time.Duration) bidengine.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()

	ticker := &fakeTicker{
		ch:       make(chan time.Time, 1),
		interval: interval,
		next:     c.now.Add(interval),
	}
	c.tickers = append(c.tickers, ticker)

	return ticker
}

// After returns a channel that receives once the fake clock has advanced by
// the duration. A non-positive duration fires immediately.
func (c *FakeClock) After(duration time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	if duration <= 0 {
		ch <- c.now
		return ch
	}

	c.waiters = append(c.waiters, &fakeWaiter{ch: ch, deadline: c.now.Add(duration)})

	return ch
}

// TickerCount reports how many tickers have been created, letting tests wait
// for the scheduler goroutine to be ready before advancing.
func (c *FakeClock) TickerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.tickers)
}

// Advance moves the fake clock forward, firing due tickers and waiters.
func (c *FakeClock) Advance(duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(duration)

	for _, ticker := range c.tickers {
		ticker.fireUpTo(c.now)
	}

	remaining := c.waiters[:0]
	for _, waiter := range c.waiters {
		if waiter.deadline.After(c.now) {
			remaining = append(remaining, waiter)
			continue
		}

		waiter.ch <- c.now
	}
	c.waiters = remaining
}

type fakeTicker struct {
	mu       sync.Mutex
	ch       chan time.Time
	interval time.Duration
	next     time.Time
	stopped  bool
}

func (t *fakeTicker) Chan() <-chan time.Time {
	return t.ch
}

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
}

func (t *fakeTicker) fireUpTo(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for !t.stopped && !t.next.After(now) {
		select {
		case t.ch <- t.next:
		default: // consumer lagging, coalesce
		}

		t.next = t.next.Add(t.interval)
	}
}

type fakeWaiter struct {
	ch       chan time.Time
	deadline time.Time
}

// Ensure FakeClock implements bidengine.Clock.
var _ bidengine.Clock = (*FakeClock)(nil)
