package market

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/frontierx/nftmarket/pkg/crypto"
)

// ApprovalStore records maker pre-approvals by order hash. Backed by
// the same store as fill counters.
type ApprovalStore interface {
	Approved(hash common.Hash) (bool, error)
	Approve(hash common.Hash) error
}

// Authorizer decides whether a maker authorized an order. Pure
// verification; it never mutates state and never returns an error —
// the engine maps a false result to a named failure.
type Authorizer struct {
	approvals ApprovalStore
}

func NewAuthorizer(approvals ApprovalStore) *Authorizer {
	return &Authorizer{approvals: approvals}
}

// Authorize returns true when any of the following holds:
//   - the settlement caller is the maker itself (no signature needed),
//   - an on-record pre-approval exists for this exact hash,
//   - the 65-byte signature recovers to the maker over the hash.
func (a *Authorizer) Authorize(order *Order, hash common.Hash, sig []byte, caller common.Address) bool {
	if caller == order.Maker {
		return true
	}

	if a.approvals != nil {
		if ok, err := a.approvals.Approved(hash); err == nil && ok {
			return true
		}
	}

	if len(sig) != 65 {
		return false
	}
	recovered, err := crypto.RecoverAddress(hash.Bytes(), sig)
	if err != nil {
		return false
	}
	return recovered == order.Maker
}
