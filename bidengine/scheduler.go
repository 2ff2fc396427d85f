package bidengine

import (
	"context"
	"sync"
	"time"
)

// scheduler drives the automated bidding simulation: a cancellable periodic
// timer whose ticks synthesize bot bids through the regular ProposeBid
// pipeline.
//
// start and stop are idempotent. stop signals the loop before its next
// scheduled fire; a tick already in flight is allowed to complete.
type scheduler struct {
	clock    Clock
	interval time.Duration
	tick     func(ctx context.Context)

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

func newScheduler(clock Clock, interval time.Duration, tick func(ctx context.Context)) *scheduler {
	return &scheduler{
		clock:    clock,
		interval: interval,
		tick:     tick,
	}
}

func (s *scheduler) startTicking() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.run(s.stop, s.done)
}

func (s *scheduler) stopTicking() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.running = false
	close(s.stop)
}

func (s *scheduler) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// awaitStopped blocks until the loop goroutine has exited. It must not be
// called from within a tick.
func (s *scheduler) awaitStopped() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (s *scheduler) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			// A stop requested before this fire wins over the tick.
			select {
			case <-stop:
				return
			default:
			}

			s.tick(context.Background())
		}
	}
}
