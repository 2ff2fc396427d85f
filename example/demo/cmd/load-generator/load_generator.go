package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/auctionlab/bidding-engine-go/bidengine"
)

// LoadGenerator fires bids at a bidding engine at a configurable rate, mixing
// valid bids with rejection scenarios so both pipeline outcomes stay exercised.
type LoadGenerator struct {
	engine *bidengine.Engine
	config Config

	ticker   *time.Ticker
	stopChan chan struct{}
	wg       sync.WaitGroup

	mu            sync.RWMutex
	bidCount      int64
	acceptedCount int64
	rejectedCount int64
	updateCount   int64
	startTime     time.Time
}

// NewLoadGenerator creates a LoadGenerator driving the given engine.
func NewLoadGenerator(engine *bidengine.Engine, config Config) *LoadGenerator {
	return &LoadGenerator{
		engine:   engine,
		config:   config,
		stopChan: make(chan struct{}),
	}
}

// Start begins load generation with the configured bid rate. It runs until
// the context is cancelled or Stop is called.
func (lg *LoadGenerator) Start(ctx context.Context) error {
	lg.mu.Lock()
	lg.startTime = time.Now()
	lg.bidCount = 0
	lg.acceptedCount = 0
	lg.rejectedCount = 0
	lg.updateCount = 0
	lg.mu.Unlock()

	// Subscribing also arms the bot simulation when it is enabled.
	unsubscribe := lg.engine.Subscribe(func(bidengine.Update) {
		lg.mu.Lock()
		lg.updateCount++
		lg.mu.Unlock()
	})
	defer unsubscribe()

	interval := time.Second / time.Duration(lg.config.Rate)
	lg.ticker = time.NewTicker(interval)
	defer lg.ticker.Stop()

	log.Printf("Load generator starting with %d bids/second (interval: %v), initial goroutines: %d",
		lg.config.Rate, interval, runtime.NumGoroutine())

	lg.wg.Add(1)
	go lg.metricsReporter(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Printf("Load generator stopping due to context cancellation")
			return ctx.Err()

		case <-lg.stopChan:
			log.Printf("Load generator stopping due to stop signal")
			return nil

		case <-lg.ticker.C:
			lg.wg.Add(1)
			go lg.executeScenario(ctx)
		}
	}
}

// Stop gracefully shuts down the load generator.
func (lg *LoadGenerator) Stop(ctx context.Context) error {
	close(lg.stopChan)

	done := make(chan struct{})
	go func() {
		lg.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		lg.logFinalStats()
		return nil
	case <-ctx.Done():
		lg.logFinalStats()
		return fmt.Errorf("shutdown timeout exceeded")
	}
}

// executeScenario places a single bid based on the configured scenario weights.
func (lg *LoadGenerator) executeScenario(ctx context.Context) {
	defer lg.wg.Done()

	opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var result bidengine.Result
	switch lg.selectScenario() {
	case "valid":
		result = lg.placeValidBid(opCtx)
	case "lowball":
		result = lg.placeLowballBid(opCtx)
	default:
		result = lg.placeUnknownItemBid(opCtx)
	}

	lg.mu.Lock()
	lg.bidCount++
	if result.Success {
		lg.acceptedCount++
	} else {
		lg.rejectedCount++
	}
	lg.mu.Unlock()
}

// selectScenario chooses a scenario based on the configured weights.
func (lg *LoadGenerator) selectScenario() string {
	r := rand.Intn(100) //nolint:gosec // Test code - weak random is acceptable

	if r < lg.config.ScenarioWeights[0] {
		return "valid"
	}
	if r < lg.config.ScenarioWeights[0]+lg.config.ScenarioWeights[1] {
		return "lowball"
	}

	return "unknown"
}

// placeValidBid bids the minimum acceptable amount on a random item. Under
// concurrency another bidder may win the race, which is a realistic rejection.
func (lg *LoadGenerator) placeValidBid(ctx context.Context) bidengine.Result {
	itemID := lg.randomItemID()

	price, found := lg.engine.GetCurrentPrice(itemID)
	if !found {
		return bidengine.Result{}
	}

	bidderNum := rand.Intn(200) + 1 //nolint:gosec // Test code - weak random is acceptable

	return lg.engine.ProposeBid(ctx, itemID, price+bidengine.DefaultIncrement,
		fmt.Sprintf("load-user-%03d", bidderNum), fmt.Sprintf("Load User %d", bidderNum))
}

// placeLowballBid bids below the required minimum, exercising the rejection path.
func (lg *LoadGenerator) placeLowballBid(ctx context.Context) bidengine.Result {
	itemID := lg.randomItemID()

	price, found := lg.engine.GetCurrentPrice(itemID)
	if !found {
		return bidengine.Result{}
	}

	return lg.engine.ProposeBid(ctx, itemID, price, "load-lowballer", "Lowball Larry")
}

// placeUnknownItemBid bids on an item that was never registered.
func (lg *LoadGenerator) placeUnknownItemBid(ctx context.Context) bidengine.Result {
	return lg.engine.ProposeBid(ctx, "lot-missing", 1000, "load-lost", "Lost Visitor")
}

func (lg *LoadGenerator) randomItemID() string {
	itemNum := rand.Intn(lg.config.Items) + 1 //nolint:gosec // Test code - weak random is acceptable
	return fmt.Sprintf("lot-%04d", itemNum)
}

// metricsReporter logs statistics periodically.
func (lg *LoadGenerator) metricsReporter(ctx context.Context) {
	defer lg.wg.Done()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-lg.stopChan:
			return
		case <-ticker.C:
			lg.logCurrentStats("Stats")
		}
	}
}

func (lg *LoadGenerator) logFinalStats() {
	lg.logCurrentStats("Final Stats")
}

func (lg *LoadGenerator) logCurrentStats(prefix string) {
	lg.mu.RLock()
	duration := time.Since(lg.startTime)
	bids := lg.bidCount
	accepted := lg.acceptedCount
	rejected := lg.rejectedCount
	updates := lg.updateCount
	lg.mu.RUnlock()

	if duration <= 0 || bids == 0 {
		return
	}

	bps := float64(bids) / duration.Seconds()
	rejectionRate := float64(rejected) / float64(bids) * 100
	log.Printf("%s: %d bids in %v (%.1f bids/s), %d accepted, %d rejected (%.1f%%), %d updates broadcast, %d goroutines",
		prefix, bids, duration.Truncate(time.Second), bps, accepted, rejected, rejectionRate, updates, runtime.NumGoroutine())
}
