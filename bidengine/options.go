package bidengine

import (
	"time"

	"github.com/auctionlab/bidding-engine-go/bidengine/kvstore"
)

// defaultBotNames is the roster of display names the simulation rotates
// through for synthetic bids.
var defaultBotNames = []string{
	"Mika V.",
	"Jonas K.",
	"Elena R.",
	"Tomás A.",
	"Priya S.",
	"Noah W.",
	"Aiko T.",
	"Lucas M.",
}

// Option defines a functional option for configuring an Engine.
type Option func(*Engine) error

// WithLogger sets the logger for the engine.
//
// Debug level: rejected bids and skipped bot ticks (development use)
// Info level: accepted bids, simulation lifecycle, snapshot restore
// Warn level: degraded remote backend or snapshot store
// Error level: snapshot save failures and subscriber callback panics.
func WithLogger(logger Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the engine. The collector
// receives bid pipeline durations, accepted/rejected counters, and
// simulation tick counters.
func WithMetrics(collector MetricsCollector) Option {
	return func(e *Engine) error {
		e.metrics = collector
		return nil
	}
}

// WithClock sets the time source, enabling deterministic tests.
func WithClock(clock Clock) Option {
	return func(e *Engine) error {
		e.clock = clock
		return nil
	}
}

// WithRand sets the randomness source, enabling deterministic tests.
func WithRand(rand Rand) Option {
	return func(e *Engine) error {
		e.rand = rand
		return nil
	}
}

// WithStore sets the snapshot store. Without a store the engine is purely
// in-memory.
func WithStore(store kvstore.Store) Option {
	return func(e *Engine) error {
		e.store = store
		return nil
	}
}

// WithSnapshotKey overrides the well-known key the snapshot is stored under.
func WithSnapshotKey(key string) Option {
	return func(e *Engine) error {
		if key == "" {
			return ErrEmptySnapshotKey
		}

		e.snapshotKey = key

		return nil
	}
}

// WithRemoteBackend sets the optional authoritative remote backend. Bids are
// forwarded to it best-effort; when it is unreachable the engine falls back
// to the local ledger transparently.
func WithRemoteBackend(remote RemoteBackend) Option {
	return func(e *Engine) error {
		e.remote = remote
		return nil
	}
}

// WithIncrement overrides the fixed bid increment. Intended for tests.
func WithIncrement(increment int64) Option {
	return func(e *Engine) error {
		if increment <= 0 {
			return ErrInvalidIncrement
		}

		e.increment = increment

		return nil
	}
}

// WithTickInterval overrides the simulation scheduler period.
func WithTickInterval(interval time.Duration) Option {
	return func(e *Engine) error {
		if interval <= 0 {
			return ErrInvalidTickInterval
		}

		e.tickInterval = interval

		return nil
	}
}

// WithHumanLatency sets the bounds of the random delay applied to
// human-originated bids before validation. A zero max disables the delay.
func WithHumanLatency(minimum, maximum time.Duration) Option {
	return func(e *Engine) error {
		if minimum < 0 || maximum < 0 || (maximum > 0 && maximum < minimum) {
			return ErrInvalidLatencyRange
		}

		e.latencyMin = minimum
		e.latencyMax = maximum

		return nil
	}
}

// WithBotNames overrides the display name roster used for synthetic bids.
func WithBotNames(names ...string) Option {
	return func(e *Engine) error {
		if len(names) == 0 {
			return ErrEmptyBotNames
		}

		e.botNames = names

		return nil
	}
}

// WithBackfilledHistory makes RegisterItem manufacture up to count past bids
// for items registered for the first time, so fresh auctions do not start
// with an empty history.
func WithBackfilledHistory(count int) Option {
	return func(e *Engine) error {
		e.backfill = count
		return nil
	}
}

// WithSimulationEnabled sets the initial simulation flag. A persisted
// snapshot, when present, takes precedence.
func WithSimulationEnabled(enabled bool) Option {
	return func(e *Engine) error {
		e.simEnabled = enabled
		return nil
	}
}
