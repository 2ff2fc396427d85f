package bidengine

import (
	"fmt"
)

// InsufficientBidError is the rejection reason for a bid below the required
// minimum. It carries what the caller needs to retry with a corrected amount.
type InsufficientBidError struct {
	Required     int64
	CurrentPrice int64
}

func (e InsufficientBidError) Error() string {
	return fmt.Sprintf("bid too low: at least %d is required, current price is %d", e.Required, e.CurrentPrice)
}

// Decision is the outcome of evaluating a proposed bid against ledger state.
// An accepted decision carries the new price to commit; a rejected one carries
// the reason to surface to the caller.
type Decision struct {
	Accepted     bool
	NewPrice     int64
	Required     int64
	CurrentPrice int64
	Reason       error
}

// Evaluate is the validation gate for proposed bids. It is pure: it reads
// nothing but its arguments and performs no side effects.
//
// An unknown item rejects with ErrItemNotFound. A known item requires
// amount >= currentPrice + increment; anything lower rejects with an
// InsufficientBidError carrying the required minimum.
func Evaluate(currentPrice int64, itemFound bool, amount int64, increment int64) Decision {
	if !itemFound {
		return Decision{Reason: ErrItemNotFound}
	}

	required := currentPrice + increment

	if amount < required {
		return Decision{
			Required:     required,
			CurrentPrice: currentPrice,
			Reason:       InsufficientBidError{Required: required, CurrentPrice: currentPrice},
		}
	}

	return Decision{
		Accepted:     true,
		NewPrice:     amount,
		Required:     required,
		CurrentPrice: currentPrice,
	}
}
