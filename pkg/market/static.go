package market

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/frontierx/nftmarket/pkg/ledger"
)

// StaticKind enumerates the maker-chosen sanity checks. The engine
// resolves a kind through a registered-capability table, so deployments
// can add checks without touching the settlement path.
type StaticKind uint8

const (
	StaticUnknown StaticKind = iota

	// AssetForToken: maker sells an NFT for a fungible token.
	AssetForToken
	// TokenForAsset: maker pays a fungible token for an NFT.
	TokenForAsset
	// AssetForNative: maker sells an NFT for native currency.
	AssetForNative
	// NativeForAsset: maker pays native currency for an NFT.
	NativeForAsset
)

func (k StaticKind) String() string {
	switch k {
	case AssetForToken:
		return "AssetForToken"
	case TokenForAsset:
		return "TokenForAsset"
	case AssetForNative:
		return "AssetForNative"
	case NativeForAsset:
		return "NativeForAsset"
	default:
		return fmt.Sprintf("StaticKind(%d)", uint8(k))
	}
}

// ParseStaticKind maps a kind name back to its tag. Returns
// StaticUnknown for unrecognized names.
func ParseStaticKind(s string) StaticKind {
	switch s {
	case "AssetForToken":
		return AssetForToken
	case "TokenForAsset":
		return TokenForAsset
	case "AssetForNative":
		return AssetForNative
	case "NativeForAsset":
		return NativeForAsset
	default:
		return StaticUnknown
	}
}

// Terms are the trade parameters a static check extracted from an
// order's declared extradata. The engine cross-checks the two sides'
// terms (price equality, native exactness) after both checks pass.
type Terms struct {
	Asset        common.Address // NFT ledger
	PaymentToken common.Address // zero for native currency
	TokenID      *big.Int
	Price        *big.Int
}

// CheckInput is everything a static check may read. Checks are pure
// functions: no state mutation, false on any mismatch, never an error.
type CheckInput struct {
	Extradata    []byte
	Call         Call
	CounterCall  Call
	Maker        common.Address
	Counterparty common.Address
	CurrentFill  uint64
	MaximumFill  uint64
}

// CheckFunc validates one order's side of a trade and reports the
// declared terms on success.
type CheckFunc func(in CheckInput) (Terms, bool)

// CheckRegistry is a static-check capability instance: an addressed
// table of checks keyed by kind.
type CheckRegistry struct {
	mu     sync.RWMutex
	addr   common.Address
	checks map[StaticKind]CheckFunc
}

// NewCheckRegistry returns a registry pre-populated with the four
// canonical checks.
func NewCheckRegistry(name string) *CheckRegistry {
	r := &CheckRegistry{
		addr:   ledger.NewAddress("static:" + name),
		checks: make(map[StaticKind]CheckFunc),
	}
	r.Register(AssetForToken, checkAssetForToken)
	r.Register(TokenForAsset, checkTokenForAsset)
	r.Register(AssetForNative, checkAssetForNative)
	r.Register(NativeForAsset, checkNativeForAsset)
	return r
}

func (r *CheckRegistry) Address() common.Address { return r.addr }

// Register installs a check for a kind, replacing any previous one.
func (r *CheckRegistry) Register(kind StaticKind, fn CheckFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[kind] = fn
}

// Run dispatches to the check registered for kind. Unknown kinds fail.
func (r *CheckRegistry) Run(kind StaticKind, in CheckInput) (Terms, bool) {
	r.mu.RLock()
	fn := r.checks[kind]
	r.mu.RUnlock()
	if fn == nil {
		return Terms{}, false
	}
	return fn(in)
}

// Static extradata is ABI-encoded (address[2], uint256[2]):
// [primary ledger, counter ledger], [token id, price]. For native legs
// the currency slot is the zero address.

var (
	address2T, _ = abi.NewType("address[2]", "", nil)
	uint2562T, _ = abi.NewType("uint256[2]", "", nil)

	staticParamsArgs = abi.Arguments{
		{Name: "addrs", Type: address2T},
		{Name: "uints", Type: uint2562T},
	}
)

// EncodeStaticParams packs static check parameters the way makers
// declare them: two ledger addresses and [tokenID, price].
func EncodeStaticParams(first, second common.Address, tokenID, price *big.Int) []byte {
	packed, err := staticParamsArgs.Pack(
		[2]common.Address{first, second},
		[2]*big.Int{tokenID, price},
	)
	if err != nil {
		panic(fmt.Errorf("pack static params: %w", err))
	}
	return packed
}

// DecodeStaticParams is the inverse of EncodeStaticParams.
func DecodeStaticParams(data []byte) (addrs [2]common.Address, uints [2]*big.Int, err error) {
	vals, err := staticParamsArgs.Unpack(data)
	if err != nil {
		return addrs, uints, fmt.Errorf("unpack static params: %w", err)
	}
	addrs = vals[0].([2]common.Address)
	uints = vals[1].([2]*big.Int)
	return addrs, uints, nil
}

// checkAssetForToken validates the selling side of an NFT-for-token
// trade: the call must move the declared token id of the declared NFT
// ledger from the maker to the counterparty.
func checkAssetForToken(in CheckInput) (Terms, bool) {
	addrs, uints, err := DecodeStaticParams(in.Extradata)
	if err != nil {
		return Terms{}, false
	}
	nft, token := addrs[0], addrs[1]
	tokenID, price := uints[0], uints[1]

	if in.Call.HowToCall != CallDirect || in.Call.Target != nft {
		return Terms{}, false
	}
	from, to, id, err := ledger.UnpackTransferFrom(in.Call.Data)
	if err != nil {
		return Terms{}, false
	}
	if from != in.Maker || to != in.Counterparty || id.Cmp(tokenID) != 0 {
		return Terms{}, false
	}
	return Terms{Asset: nft, PaymentToken: token, TokenID: tokenID, Price: price}, true
}

// checkTokenForAsset validates the paying side of an NFT-for-token
// trade: the call must move exactly the declared price of the declared
// token from the maker to the counterparty, and the counter-call must
// actually deliver the declared NFT (catches a counterparty whose
// asset-out leg targets a different ledger).
func checkTokenForAsset(in CheckInput) (Terms, bool) {
	addrs, uints, err := DecodeStaticParams(in.Extradata)
	if err != nil {
		return Terms{}, false
	}
	token, nft := addrs[0], addrs[1]
	tokenID, price := uints[0], uints[1]

	if in.Call.HowToCall != CallDirect || in.Call.Target != token {
		return Terms{}, false
	}
	from, to, amount, err := ledger.UnpackTransferFrom(in.Call.Data)
	if err != nil {
		return Terms{}, false
	}
	if from != in.Maker || to != in.Counterparty || amount.Cmp(price) != 0 {
		return Terms{}, false
	}

	if in.CounterCall.Target != nft {
		return Terms{}, false
	}
	_, _, counterID, err := ledger.UnpackTransferFrom(in.CounterCall.Data)
	if err != nil || counterID.Cmp(tokenID) != 0 {
		return Terms{}, false
	}

	return Terms{Asset: nft, PaymentToken: token, TokenID: tokenID, Price: price}, true
}

// checkAssetForNative validates the selling side of an NFT-for-native
// trade. The currency slot of the extradata must be zero; the engine
// enforces the attached-value exactness separately.
func checkAssetForNative(in CheckInput) (Terms, bool) {
	addrs, uints, err := DecodeStaticParams(in.Extradata)
	if err != nil {
		return Terms{}, false
	}
	nft, currency := addrs[0], addrs[1]
	tokenID, price := uints[0], uints[1]

	if currency != (common.Address{}) {
		return Terms{}, false
	}
	if in.Call.HowToCall != CallDirect || in.Call.Target != nft {
		return Terms{}, false
	}
	from, to, id, err := ledger.UnpackTransferFrom(in.Call.Data)
	if err != nil {
		return Terms{}, false
	}
	if from != in.Maker || to != in.Counterparty || id.Cmp(tokenID) != 0 {
		return Terms{}, false
	}
	return Terms{Asset: nft, TokenID: tokenID, Price: price}, true
}

// checkNativeForAsset validates the paying side of an NFT-for-native
// trade: a bare value transfer, so the call must target the zero
// address and carry no calldata.
func checkNativeForAsset(in CheckInput) (Terms, bool) {
	addrs, uints, err := DecodeStaticParams(in.Extradata)
	if err != nil {
		return Terms{}, false
	}
	currency, nft := addrs[0], addrs[1]
	tokenID, price := uints[0], uints[1]

	if currency != (common.Address{}) {
		return Terms{}, false
	}
	if in.Call.HowToCall != CallDirect || !in.Call.IsNative() || len(in.Call.Data) != 0 {
		return Terms{}, false
	}
	return Terms{Asset: nft, TokenID: tokenID, Price: price}, true
}
