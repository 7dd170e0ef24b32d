package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// HowToCall selects the execution context of a proposed call.
type HowToCall uint8

const (
	CallDirect   HowToCall = 0
	CallDelegate HowToCall = 1
)

// Order is a maker's signed declaration of trade terms. The engine
// never interprets StaticExtradata itself; its meaning is fixed by the
// static check kind.
type Order struct {
	Registry        common.Address // act-on-behalf-of capability trusted by the maker
	Maker           common.Address
	StaticTarget    common.Address // static check capability instance
	StaticKind      StaticKind     // which sanity check to run
	StaticExtradata []byte         // ABI-encoded check parameters, opaque here
	MaximumFill     uint64
	ListingTime     uint64 // unix seconds, inclusive
	ExpirationTime  uint64 // unix seconds, exclusive
	Salt            *big.Int
}

// Call is one side of a trade: a concrete action to execute against a
// ledger. Data is ABI-encoded calldata; for native-currency payment
// legs Target is the zero address and Data is empty.
type Call struct {
	Target    common.Address
	HowToCall HowToCall
	Data      []byte
}

// IsNative reports whether the call represents a native-currency
// payment rather than a ledger invocation.
func (c Call) IsNative() bool {
	return c.Target == (common.Address{})
}
