package bidengine

import (
	"time"

	"github.com/google/uuid"
)

// Item describes an auction lot as supplied by the caller at registration time.
//
// Price is the current asking price in minor-unit-free integer currency.
// A ReservePrice of zero means no reserve is set; once the current price
// reaches a non-zero reserve, automated bidding stops while human bidders
// remain unrestricted.
type Item struct {
	ID           string
	Name         string
	Price        int64
	ReservePrice int64
	CreatedAt    time.Time
}

// BidRecord is one accepted bid in an item's history. Records are immutable
// once created: they are prepended to the history and never mutated or removed.
type BidRecord struct {
	ID         string    `json:"id"`
	ItemID     string    `json:"itemId"`
	BidderID   string    `json:"bidderId"`
	BidderName string    `json:"bidderName"`
	Amount     int64     `json:"amount"`
	PlacedAt   time.Time `json:"placedAt"`
}

// IsBot reports whether the record was created by the simulation scheduler.
func (b BidRecord) IsBot() bool {
	return b.BidderID == BotBidderID
}

func buildBidRecord(itemID string, amount int64, bidderID string, bidderName string, placedAt time.Time) BidRecord {
	return BidRecord{
		ID:         uuid.NewString(),
		ItemID:     itemID,
		BidderID:   bidderID,
		BidderName: bidderName,
		Amount:     amount,
		PlacedAt:   placedAt,
	}
}
