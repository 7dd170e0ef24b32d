package storage

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/frontierx/nftmarket/pkg/market"
)

// MemStore is an in-memory implementation of the engine stores. Used
// in tests and throwaway devnets; state does not survive a restart.
type MemStore struct {
	mu        sync.RWMutex
	fills     map[common.Hash]uint64
	approvals map[common.Hash]bool
	trades    []*market.Trade
}

func NewMemStore() *MemStore {
	return &MemStore{
		fills:     make(map[common.Hash]uint64),
		approvals: make(map[common.Hash]bool),
	}
}

func (s *MemStore) Fill(hash common.Hash) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fills[hash], nil
}

func (s *MemStore) SetFills(levels map[common.Hash]uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for hash, level := range levels {
		s.fills[hash] = level
	}
	return nil
}

func (s *MemStore) Approved(hash common.Hash) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.approvals[hash], nil
}

func (s *MemStore) Approve(hash common.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approvals[hash] = true
	return nil
}

func (s *MemStore) SaveTrade(t *market.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, t)
	return nil
}

func (s *MemStore) RecentTrades(limit int) ([]*market.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.trades)
	if limit > n {
		limit = n
	}
	out := make([]*market.Trade, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.trades[i])
	}
	return out, nil
}

var (
	_ market.FillStore     = (*MemStore)(nil)
	_ market.ApprovalStore = (*MemStore)(nil)
	_ market.TradeStore    = (*MemStore)(nil)
)
