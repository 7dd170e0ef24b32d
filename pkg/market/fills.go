package market

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// FillStore is the persisted key-value state behind replay protection:
// cumulative fill level per order hash. Counters are never decremented
// and never deleted.
type FillStore interface {
	// Fill returns the cumulative fill for an order hash; 0 if the
	// order has never been filled.
	Fill(hash common.Hash) (uint64, error)

	// SetFills writes a set of fill levels as one atomic batch. Either
	// every level lands or none does.
	SetFills(levels map[common.Hash]uint64) error
}

// FillTracker enforces validity windows and capacity over a FillStore.
// Check and Commit are separate so the engine can keep its validation
// phase mutation-free; the engine's settlement lock makes the
// check-then-commit pair atomic against concurrent settlements of the
// same order hash.
type FillTracker struct {
	store FillStore
}

func NewFillTracker(store FillStore) *FillTracker {
	return &FillTracker{store: store}
}

// Check validates the order's window and remaining capacity for a
// reservation of amount fill units at time now. Returns the current
// fill level on success.
func (t *FillTracker) Check(order *Order, hash common.Hash, amount uint64, now uint64) (uint64, error) {
	if now < order.ListingTime || now >= order.ExpirationTime {
		return 0, ErrOrderExpired
	}

	current, err := t.store.Fill(hash)
	if err != nil {
		return 0, fmt.Errorf("read fill %s: %w", hash.Hex(), err)
	}
	if current+amount > order.MaximumFill {
		return 0, ErrCapacityExceeded
	}
	return current, nil
}

// Commit persists new fill levels in one atomic batch.
func (t *FillTracker) Commit(levels map[common.Hash]uint64) error {
	return t.store.SetFills(levels)
}

// Level returns the current fill level of an order hash.
func (t *FillTracker) Level(hash common.Hash) (uint64, error) {
	return t.store.Fill(hash)
}
