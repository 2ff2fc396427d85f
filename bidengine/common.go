package bidengine

import (
	"errors"
)

var (
	// ErrItemNotFound is returned when a proposed bid references an item that was never registered.
	ErrItemNotFound = errors.New("item is not registered")

	// ErrEmptyItemID is returned when an item is registered without an identifier.
	ErrEmptyItemID = errors.New("item id must not be empty")

	// ErrEmptySnapshotKey is returned when an empty snapshot key is configured.
	ErrEmptySnapshotKey = errors.New("snapshot key must not be empty")

	// ErrEmptyBotNames is returned when an empty bot name roster is configured.
	ErrEmptyBotNames = errors.New("bot name roster must not be empty")

	// ErrInvalidIncrement is returned when a non-positive bid increment is configured.
	ErrInvalidIncrement = errors.New("bid increment must be positive")

	// ErrInvalidTickInterval is returned when a non-positive simulation tick interval is configured.
	ErrInvalidTickInterval = errors.New("simulation tick interval must be positive")

	// ErrInvalidLatencyRange is returned when the simulated human latency range is inverted or negative.
	ErrInvalidLatencyRange = errors.New("human latency range is invalid")

	// ErrInvalidSnapshotJSON is returned when persisted snapshot data is malformed or invalid.
	ErrInvalidSnapshotJSON = errors.New("snapshot json is not valid")

	// ErrReservePriceReached is the rejection reason for bot bids on items whose reserve price is met.
	ErrReservePriceReached = errors.New("reserve price reached, automated bidding stopped")
)

// BotBidderID is the reserved sentinel identity recorded for scheduler-generated bids.
// Human callers must never supply it as their own bidder id.
const BotBidderID = "bot"

// DefaultIncrement is the fixed amount by which a new bid must exceed the current price.
const DefaultIncrement = int64(50)
