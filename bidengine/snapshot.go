package bidengine

import (
	"errors"

	jsoniter "github.com/json-iterator/go"
)

var snapshotJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Snapshot is the unit of persistence: the full ledger state plus the
// simulation-enabled flag, serialized as a single opaque JSON blob under one
// well-known key in a key-value store.
//
// Bid histories are ordered newest first, matching the in-memory ledger.
type Snapshot struct {
	CurrentPrices     map[string]int64       `json:"currentPrices"`
	ReservePrices     map[string]int64       `json:"reservePrices"`
	BidHistory        map[string][]BidRecord `json:"bidHistory"`
	SimulationEnabled bool                   `json:"simulationEnabled"`
}

// Encode serializes the snapshot to its persisted JSON form.
func (s Snapshot) Encode() ([]byte, error) {
	data, err := snapshotJSON.Marshal(s)
	if err != nil {
		return nil, errors.Join(ErrInvalidSnapshotJSON, err)
	}

	return data, nil
}

// DecodeSnapshot deserializes a persisted snapshot blob.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	if !snapshotJSON.Valid(data) {
		return Snapshot{}, ErrInvalidSnapshotJSON
	}

	var snapshot Snapshot
	if err := snapshotJSON.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, errors.Join(ErrInvalidSnapshotJSON, err)
	}

	if snapshot.CurrentPrices == nil {
		snapshot.CurrentPrices = make(map[string]int64)
	}
	if snapshot.ReservePrices == nil {
		snapshot.ReservePrices = make(map[string]int64)
	}
	if snapshot.BidHistory == nil {
		snapshot.BidHistory = make(map[string][]BidRecord)
	}

	return snapshot, nil
}
