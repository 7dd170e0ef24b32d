package storage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Key schema:
//
//	fill:<32-byte-order-hash>   → cumulative fill level (uint64, big-endian)
//	apr:<32-byte-order-hash>    → order pre-approval marker
//	trade:<timestamp>:<id>      → settled trade (JSON)
//
// Timestamps are zero-padded for lexicographic ordering so a reverse
// prefix scan yields newest trades first.
const (
	prefixFill     = "fill:"
	prefixApproval = "apr:"
	prefixTrade    = "trade:"
)

func fillKey(hash common.Hash) []byte {
	return append([]byte(prefixFill), hash[:]...)
}

func approvalKey(hash common.Hash) []byte {
	return append([]byte(prefixApproval), hash[:]...)
}

func tradeKey(timestamp int64, id string) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", prefixTrade, timestamp, id))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
