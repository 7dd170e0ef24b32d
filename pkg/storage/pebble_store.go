package storage

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/frontierx/nftmarket/pkg/market"
)

// PebbleStore persists the engine-owned durable state: fill counters,
// order pre-approvals, and settled-trade history.
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

// Fill returns the cumulative fill level of an order hash; 0 if the
// order has never been filled.
func (s *PebbleStore) Fill(hash common.Hash) (uint64, error) {
	val, closer, err := s.db.Get(fillKey(hash))
	if err != nil {
		if err == pebble.ErrNotFound {
			return 0, nil
		}
		return 0, fmt.Errorf("get fill: %w", err)
	}
	defer closer.Close()
	return decodeUint64(val)
}

// SetFills writes fill levels in one synced batch: either all land or
// none do.
func (s *PebbleStore) SetFills(levels map[common.Hash]uint64) error {
	batch := s.db.NewBatch()
	defer batch.Close()
	for hash, level := range levels {
		if err := batch.Set(fillKey(hash), encodeUint64(level), nil); err != nil {
			return fmt.Errorf("batch fill: %w", err)
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit fills: %w", err)
	}
	return nil
}

// Approved reports whether an order hash has an on-record approval.
func (s *PebbleStore) Approved(hash common.Hash) (bool, error) {
	_, closer, err := s.db.Get(approvalKey(hash))
	if err != nil {
		if err == pebble.ErrNotFound {
			return false, nil
		}
		return false, fmt.Errorf("get approval: %w", err)
	}
	closer.Close()
	return true, nil
}

// Approve records a maker pre-approval for an order hash.
func (s *PebbleStore) Approve(hash common.Hash) error {
	if err := s.db.Set(approvalKey(hash), []byte{1}, pebble.Sync); err != nil {
		return fmt.Errorf("set approval: %w", err)
	}
	return nil
}

// SaveTrade persists a settled trade. History is auxiliary; writes are
// unsynced.
func (s *PebbleStore) SaveTrade(t *market.Trade) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal trade: %w", err)
	}
	if err := s.db.Set(tradeKey(t.Timestamp, t.ID), data, pebble.NoSync); err != nil {
		return fmt.Errorf("save trade: %w", err)
	}
	return nil
}

// RecentTrades returns up to limit trades, newest first.
func (s *PebbleStore) RecentTrades(limit int) ([]*market.Trade, error) {
	prefix := []byte(prefixTrade)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var trades []*market.Trade
	for iter.Last(); iter.Valid() && len(trades) < limit; iter.Prev() {
		var t market.Trade
		if err := json.Unmarshal(iter.Value(), &t); err != nil {
			continue
		}
		trades = append(trades, &t)
	}
	return trades, nil
}

var (
	_ market.FillStore     = (*PebbleStore)(nil)
	_ market.ApprovalStore = (*PebbleStore)(nil)
	_ market.TradeStore    = (*PebbleStore)(nil)
)
