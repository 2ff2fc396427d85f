// Command load-generator drives a bidding engine with a configurable rate of
// human bids, mixing valid bids with lowball and unknown-item rejections, to
// observe pipeline throughput and subscriber fan-out under load.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/auctionlab/bidding-engine-go/bidengine"
	"github.com/auctionlab/bidding-engine-go/bidengine/kvstore"
	"github.com/auctionlab/bidding-engine-go/oteladapters"
)

const (
	defaultRate            = 30
	defaultItems           = 50
	defaultScenarioWeights = "80,15,5" // valid, lowball, unknown item
)

type Config struct {
	Rate            int
	Items           int
	ScenarioWeights []int
	SimEnabled      bool
}

func main() {
	cfg := parseFlags()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger := oteladapters.NewSlogLoggerWithHandler(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	engine, err := bidengine.NewEngine(
		bidengine.WithLogger(logger),
		bidengine.WithStore(kvstore.NewMemoryStore()),
		bidengine.WithSimulationEnabled(cfg.SimEnabled),
	)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	for i := 1; i <= cfg.Items; i++ {
		engine.RegisterItem(ctx, bidengine.Item{
			ID:    fmt.Sprintf("lot-%04d", i),
			Name:  fmt.Sprintf("Load Test Lot %d", i),
			Price: int64(500 + i*50),
		})
	}

	loadGen := NewLoadGenerator(engine, cfg)

	errChan := make(chan error, 1)
	go func() {
		if startErr := loadGen.Start(ctx); startErr != nil {
			errChan <- fmt.Errorf("load generator failed: %w", startErr)
		}
	}()

	log.Printf("Bid load generator started")
	log.Printf("Configuration: rate=%d bids/s, items=%d, scenario_weights=%v, simulation=%v",
		cfg.Rate, cfg.Items, cfg.ScenarioWeights, cfg.SimEnabled)
	log.Printf("Press Ctrl+C to stop...")

	select {
	case sig := <-sigChan:
		log.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()
	case genErr := <-errChan:
		log.Printf("Error occurred: %v", genErr)
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if stopErr := loadGen.Stop(shutdownCtx); stopErr != nil {
		log.Printf("Error during shutdown: %v", stopErr)
	}

	if closeErr := engine.Close(context.Background()); closeErr != nil {
		log.Printf("Error closing engine: %v", closeErr)
	}

	log.Printf("Load generator stopped")
}

func parseFlags() Config {
	var (
		rate            = flag.Int("rate", defaultRate, "Bids per second")
		items           = flag.Int("items", defaultItems, "Number of items to register")
		scenarioWeights = flag.String("scenario-weights", defaultScenarioWeights, "Comma-separated weights for valid,lowball,unknown scenarios")
		simEnabled      = flag.Bool("simulation", false, "Run the bot simulation alongside the generated load")
	)

	flag.Parse()

	weights, err := parseScenarioWeights(*scenarioWeights)
	if err != nil {
		log.Fatalf("Invalid scenario weights '%s': %v", *scenarioWeights, err)
	}

	return Config{
		Rate:            *rate,
		Items:           *items,
		ScenarioWeights: weights,
		SimEnabled:      *simEnabled,
	}
}

func parseScenarioWeights(weightsStr string) ([]int, error) {
	parts := strings.Split(weightsStr, ",")
	if len(parts) != 3 {
		return nil, fmt.Errorf("expected 3 weights, got %d", len(parts))
	}

	weights := make([]int, 3)
	total := 0
	for i, part := range parts {
		weight, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid weight '%s': %w", part, err)
		}
		if weight < 0 || weight > 100 {
			return nil, fmt.Errorf("weight %d out of range [0, 100]", weight)
		}
		weights[i] = weight
		total += weight
	}

	if total != 100 {
		return nil, fmt.Errorf("weights must sum to 100, got %d", total)
	}

	return weights, nil
}
