package market

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Orders are hashed as EIP-712 typed data. The domain separator binds
// hashes to this protocol and chain so an order hash cannot collide
// with a digest from an unrelated context.

const (
	domainName    = "FrontierMarket"
	domainVersion = "1"
)

// Domain is the typed-data domain orders are hashed under.
type Domain struct {
	ChainID           *big.Int
	VerifyingContract common.Address // zero for off-chain settlement
}

var orderTypes = apitypes.Types{
	"EIP712Domain": []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Order": []apitypes.Type{
		{Name: "registry", Type: "address"},
		{Name: "maker", Type: "address"},
		{Name: "staticTarget", Type: "address"},
		{Name: "staticKind", Type: "uint8"},
		{Name: "staticExtradata", Type: "bytes"},
		{Name: "maximumFill", Type: "uint256"},
		{Name: "listingTime", Type: "uint256"},
		{Name: "expirationTime", Type: "uint256"},
		{Name: "salt", Type: "uint256"},
	},
}

// HashOrder computes the canonical order digest. Every field
// participates; two orders differing only in salt hash differently.
func HashOrder(domain Domain, order *Order) (common.Hash, error) {
	salt := order.Salt
	if salt == nil {
		salt = new(big.Int)
	}

	typedData := apitypes.TypedData{
		Types:       orderTypes,
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              domainName,
			Version:           domainVersion,
			ChainId:           (*math.HexOrDecimal256)(domain.ChainID),
			VerifyingContract: domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"registry":        order.Registry.Hex(),
			"maker":           order.Maker.Hex(),
			"staticTarget":    order.StaticTarget.Hex(),
			"staticKind":      fmt.Sprintf("%d", order.StaticKind),
			"staticExtradata": hexutil.Encode(order.StaticExtradata),
			"maximumFill":     fmt.Sprintf("%d", order.MaximumFill),
			"listingTime":     fmt.Sprintf("%d", order.ListingTime),
			"expirationTime":  fmt.Sprintf("%d", order.ExpirationTime),
			"salt":            salt.String(),
		},
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash domain: %w", err)
	}
	structHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash order: %w", err)
	}

	// keccak256("\x19\x01" || domainSeparator || structHash)
	raw := make([]byte, 0, 2+len(domainSeparator)+len(structHash))
	raw = append(raw, 0x19, 0x01)
	raw = append(raw, domainSeparator...)
	raw = append(raw, structHash...)
	return crypto.Keccak256Hash(raw), nil
}
