package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Calldata codec for the conventional transfer entry points. Both the
// fungible and non-fungible ledgers share the transferFrom signature;
// the third word is an amount for ERC20 and a token id for ERC721.

var (
	addressT, _ = abi.NewType("address", "", nil)
	uint256T, _ = abi.NewType("uint256", "", nil)

	transferFromArgs = abi.Arguments{
		{Name: "from", Type: addressT},
		{Name: "to", Type: addressT},
		{Name: "value", Type: uint256T},
	}

	// TransferFromID is the 4-byte selector of
	// transferFrom(address,address,uint256).
	TransferFromID = crypto.Keccak256([]byte("transferFrom(address,address,uint256)"))[:4]
)

// PackTransferFrom encodes a transferFrom(from, to, value) call.
func PackTransferFrom(from, to common.Address, value *big.Int) []byte {
	packed, err := transferFromArgs.Pack(from, to, value)
	if err != nil {
		panic(fmt.Errorf("pack transferFrom: %w", err))
	}
	return append(append([]byte{}, TransferFromID...), packed...)
}

// UnpackTransferFrom decodes transferFrom calldata. Returns an error if
// the selector or argument encoding does not match.
func UnpackTransferFrom(data []byte) (from, to common.Address, value *big.Int, err error) {
	if len(data) < 4 || string(data[:4]) != string(TransferFromID) {
		return common.Address{}, common.Address{}, nil, fmt.Errorf("not a transferFrom call")
	}
	vals, err := transferFromArgs.Unpack(data[4:])
	if err != nil {
		return common.Address{}, common.Address{}, nil, fmt.Errorf("unpack transferFrom: %w", err)
	}
	from = vals[0].(common.Address)
	to = vals[1].(common.Address)
	value = vals[2].(*big.Int)
	return from, to, value, nil
}

// NewAddress derives a deterministic synthetic address from a seed
// string. Used to place in-process ledgers on the call bus.
func NewAddress(seed string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(seed))[12:])
}
