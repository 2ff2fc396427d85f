package bidengine

import (
	"context"
)

// RemoteBackend is the optional authoritative store for accepted bids.
//
// The engine forwards each accepted bid to it before mutating the local
// ledger. Any error is treated as transport degradation: it is logged and the
// engine continues with the local ledger, never failing the bid. The
// remotebackend package provides an HTTP implementation.
type RemoteBackend interface {
	PlaceBid(ctx context.Context, itemID string, amount int64, bidderID string, bidderName string) error
}
