package market_test

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/frontierx/nftmarket/params"
	"github.com/frontierx/nftmarket/pkg/crypto"
	"github.com/frontierx/nftmarket/pkg/ledger"
	"github.com/frontierx/nftmarket/pkg/market"
	"github.com/frontierx/nftmarket/pkg/registry"
	"github.com/frontierx/nftmarket/pkg/storage"
	"github.com/frontierx/nftmarket/pkg/util"
)

// fixture wires a complete in-memory marketplace: ledgers on a bus,
// one registry both makers trust, the canonical static checks, and an
// engine with in-memory persistence.
type fixture struct {
	t *testing.T

	engine    *market.Engine
	statics   *market.CheckRegistry
	reg       *registry.Registry
	bus       *ledger.Bus
	native    *ledger.Native
	nft       *ledger.ERC721
	token     *ledger.ERC20
	warehouse *market.DataWarehouse
	store     *storage.MemStore
	platform  common.Address

	seller *crypto.Signer
	buyer  *crypto.Signer
	relay  *crypto.Signer // third-party settlement submitter
}

var testTime = time.Unix(1_700_000_000, 0)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	seller, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate seller key: %v", err)
	}
	buyer, _ := crypto.GenerateKey()
	relay, _ := crypto.GenerateKey()

	bus := ledger.NewBus()
	native := ledger.NewNative()
	nft := ledger.NewERC721("nft")
	token := ledger.NewERC20("erc20")
	bus.Register(nft)
	bus.Register(token)

	warehouse := market.NewDataWarehouse()
	warehouse.WhitelistPaymentToken(token.Address(), true)
	warehouse.WhitelistNFT(nft.Address(), true)

	store := storage.NewMemStore()
	platform := ledger.NewAddress("platform")

	engine := market.NewEngine(market.EngineConfig{
		Log:     zap.NewNop(),
		Clock:   util.FixedClock{T: testTime},
		ChainID: big.NewInt(1337),
		Fees: params.Fees{
			PrimaryBps:   3000,
			SecondaryBps: 1000,
			Recipient:    platform,
		},
		Bus:       bus,
		Native:    native,
		Warehouse: warehouse,
		Fills:     store,
		Approvals: store,
		Trades:    store,
	})

	statics := market.NewCheckRegistry("test")
	engine.RegisterStatic(statics)

	reg := registry.New("test", bus)
	reg.GrantAuthentication(engine.Address())
	engine.RegisterRegistry(reg)

	// Both makers trust the registry as their transfer agent.
	nft.SetApprovalForAll(seller.Address(), reg.Address(), true)
	token.Approve(buyer.Address(), reg.Address(), big.NewInt(1_000_000))

	return &fixture{
		t:         t,
		engine:    engine,
		statics:   statics,
		reg:       reg,
		bus:       bus,
		native:    native,
		nft:       nft,
		token:     token,
		warehouse: warehouse,
		store:     store,
		platform:  platform,
		seller:    seller,
		buyer:     buyer,
		relay:     relay,
	}
}

// tokenTrade builds a matched NFT-for-ERC20 order pair at the given
// price, signed by both makers.
func (f *fixture) tokenTrade(tokenID, price *big.Int) (one *market.Order, sigOne []byte, callOne market.Call, two *market.Order, sigTwo []byte, callTwo market.Call) {
	one = f.order(f.seller, market.AssetForToken,
		market.EncodeStaticParams(f.nft.Address(), f.token.Address(), tokenID, price), 1)
	two = f.order(f.buyer, market.TokenForAsset,
		market.EncodeStaticParams(f.token.Address(), f.nft.Address(), tokenID, price), 1)

	callOne = market.Call{
		Target: f.nft.Address(),
		Data:   ledger.PackTransferFrom(f.seller.Address(), f.buyer.Address(), tokenID),
	}
	callTwo = market.Call{
		Target: f.token.Address(),
		Data:   ledger.PackTransferFrom(f.buyer.Address(), f.seller.Address(), price),
	}

	sigOne = f.sign(f.seller, one)
	sigTwo = f.sign(f.buyer, two)
	return
}

// nativeTrade builds a matched NFT-for-native order pair.
func (f *fixture) nativeTrade(tokenID, price *big.Int) (one *market.Order, sigOne []byte, callOne market.Call, two *market.Order, sigTwo []byte, callTwo market.Call) {
	one = f.order(f.seller, market.AssetForNative,
		market.EncodeStaticParams(f.nft.Address(), common.Address{}, tokenID, price), 1)
	two = f.order(f.buyer, market.NativeForAsset,
		market.EncodeStaticParams(common.Address{}, f.nft.Address(), tokenID, price), 1)

	callOne = market.Call{
		Target: f.nft.Address(),
		Data:   ledger.PackTransferFrom(f.seller.Address(), f.buyer.Address(), tokenID),
	}
	callTwo = market.Call{} // bare value transfer

	sigOne = f.sign(f.seller, one)
	sigTwo = f.sign(f.buyer, two)
	return
}

func (f *fixture) order(maker *crypto.Signer, kind market.StaticKind, extradata []byte, maxFill uint64) *market.Order {
	salt, err := crypto.RandomSalt()
	if err != nil {
		f.t.Fatalf("generate salt: %v", err)
	}
	return &market.Order{
		Registry:        f.reg.Address(),
		Maker:           maker.Address(),
		StaticTarget:    f.statics.Address(),
		StaticKind:      kind,
		StaticExtradata: extradata,
		MaximumFill:     maxFill,
		ListingTime:     0,
		ExpirationTime:  uint64(testTime.Unix()) + 3600,
		Salt:            salt,
	}
}

func (f *fixture) sign(signer *crypto.Signer, order *market.Order) []byte {
	hash, err := f.engine.HashOrder(order)
	if err != nil {
		f.t.Fatalf("hash order: %v", err)
	}
	sig, err := signer.Sign(hash.Bytes())
	if err != nil {
		f.t.Fatalf("sign order: %v", err)
	}
	return sig
}

func (f *fixture) wantBalance(tok *ledger.ERC20, who common.Address, want int64) {
	f.t.Helper()
	if got := tok.BalanceOf(who); got.Cmp(big.NewInt(want)) != 0 {
		f.t.Errorf("balance of %s = %s, want %d", who.Hex(), got, want)
	}
}

func (f *fixture) wantOwner(tokenID *big.Int, want common.Address) {
	f.t.Helper()
	owner, ok := f.nft.OwnerOf(tokenID)
	if !ok {
		f.t.Fatalf("token %s has no owner", tokenID)
	}
	if owner != want {
		f.t.Errorf("owner of token %s = %s, want %s", tokenID, owner.Hex(), want.Hex())
	}
}

func TestTradeNFTForToken(t *testing.T) {
	f := newFixture(t)
	tokenID := big.NewInt(5)
	price := big.NewInt(99)

	f.nft.Mint(f.seller.Address(), tokenID)
	f.token.Mint(f.buyer.Address(), big.NewInt(99))

	one, sigOne, callOne, two, sigTwo, callTwo := f.tokenTrade(tokenID, price)

	trade, err := f.engine.TradeNFT(f.relay.Address(), one, sigOne, callOne, two, sigTwo, callTwo, nil, [32]byte{})
	if err != nil {
		t.Fatalf("trade failed: %v", err)
	}

	f.wantOwner(tokenID, f.buyer.Address())
	// primary sale: 30% platform fee on a price of 99 is 29
	f.wantBalance(f.token, f.seller.Address(), 70)
	f.wantBalance(f.token, f.platform, 29)
	f.wantBalance(f.token, f.buyer.Address(), 0)

	if !trade.PrimarySale {
		t.Error("expected primary sale")
	}
	if trade.Fee.Cmp(big.NewInt(29)) != 0 {
		t.Errorf("fee = %s, want 29", trade.Fee)
	}
	if trade.Seller != f.seller.Address() || trade.Buyer != f.buyer.Address() {
		t.Error("trade parties mismatch")
	}

	hashOne, _ := f.engine.HashOrder(one)
	if fill, _ := f.engine.OrderFill(hashOne); fill != 1 {
		t.Errorf("first order fill = %d, want 1", fill)
	}

	trades, err := f.engine.RecentTrades(10)
	if err != nil || len(trades) != 1 {
		t.Fatalf("recent trades = %d (%v), want 1", len(trades), err)
	}
	if trades[0].ID != trade.ID {
		t.Error("persisted trade ID mismatch")
	}
}

func TestTradeReplayRejected(t *testing.T) {
	f := newFixture(t)
	tokenID := big.NewInt(1)
	price := big.NewInt(100)

	f.nft.Mint(f.seller.Address(), tokenID)
	f.token.Mint(f.buyer.Address(), big.NewInt(200))

	one, sigOne, callOne, two, sigTwo, callTwo := f.tokenTrade(tokenID, price)

	if _, err := f.engine.TradeNFT(f.relay.Address(), one, sigOne, callOne, two, sigTwo, callTwo, nil, [32]byte{}); err != nil {
		t.Fatalf("first settlement failed: %v", err)
	}

	// transfer the NFT back so only replay protection stands in the way
	f.nft.SetApprovalForAll(f.buyer.Address(), f.seller.Address(), true)
	if err := f.nft.TransferFrom(f.seller.Address(), f.buyer.Address(), f.seller.Address(), tokenID); err != nil {
		t.Fatalf("return transfer failed: %v", err)
	}

	_, err := f.engine.TradeNFT(f.relay.Address(), one, sigOne, callOne, two, sigTwo, callTwo, nil, [32]byte{})
	if !errors.Is(err, market.ErrCapacityExceeded) {
		t.Fatalf("err = %v, want ErrCapacityExceeded", err)
	}
}

func TestTradeBadSellerSignature(t *testing.T) {
	f := newFixture(t)
	tokenID := big.NewInt(1)
	f.nft.Mint(f.seller.Address(), tokenID)
	f.token.Mint(f.buyer.Address(), big.NewInt(100))

	one, _, callOne, two, sigTwo, callTwo := f.tokenTrade(tokenID, big.NewInt(100))
	forged := f.sign(f.buyer, one) // buyer cannot sign for the seller

	_, err := f.engine.TradeNFT(f.relay.Address(), one, forged, callOne, two, sigTwo, callTwo, nil, [32]byte{})
	if !errors.Is(err, market.ErrFirstOrderAuthorization) {
		t.Fatalf("err = %v, want ErrFirstOrderAuthorization", err)
	}
}

func TestTradeBadBuyerSignature(t *testing.T) {
	f := newFixture(t)
	tokenID := big.NewInt(1)
	f.nft.Mint(f.seller.Address(), tokenID)
	f.token.Mint(f.buyer.Address(), big.NewInt(100))

	one, sigOne, callOne, two, _, callTwo := f.tokenTrade(tokenID, big.NewInt(100))

	_, err := f.engine.TradeNFT(f.relay.Address(), one, sigOne, callOne, two, []byte{0x01}, callTwo, nil, [32]byte{})
	if !errors.Is(err, market.ErrSecondOrderAuthorization) {
		t.Fatalf("err = %v, want ErrSecondOrderAuthorization", err)
	}
}

func TestTradeCallerIsMakerNeedsNoSignature(t *testing.T) {
	f := newFixture(t)
	tokenID := big.NewInt(1)
	price := big.NewInt(100)
	f.nft.Mint(f.seller.Address(), tokenID)
	f.token.Mint(f.buyer.Address(), big.NewInt(100))

	one, _, callOne, two, sigTwo, callTwo := f.tokenTrade(tokenID, price)

	// seller submits the settlement: their own order needs no signature
	if _, err := f.engine.TradeNFT(f.seller.Address(), one, nil, callOne, two, sigTwo, callTwo, nil, [32]byte{}); err != nil {
		t.Fatalf("trade failed: %v", err)
	}
	f.wantOwner(tokenID, f.buyer.Address())
}

func TestTradePreApprovedOrder(t *testing.T) {
	f := newFixture(t)
	tokenID := big.NewInt(1)
	price := big.NewInt(100)
	f.nft.Mint(f.seller.Address(), tokenID)
	f.token.Mint(f.buyer.Address(), big.NewInt(100))

	one, _, callOne, two, sigTwo, callTwo := f.tokenTrade(tokenID, price)

	// only the maker may approve
	if _, err := f.engine.ApproveOrder(f.buyer.Address(), one); err == nil {
		t.Fatal("expected approval by non-maker to fail")
	}
	if _, err := f.engine.ApproveOrder(f.seller.Address(), one); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	if _, err := f.engine.TradeNFT(f.relay.Address(), one, nil, callOne, two, sigTwo, callTwo, nil, [32]byte{}); err != nil {
		t.Fatalf("trade failed: %v", err)
	}
}

func TestTradeUnknownStaticKindRejected(t *testing.T) {
	f := newFixture(t)
	tokenID := big.NewInt(1)
	price := big.NewInt(100)
	f.nft.Mint(f.seller.Address(), tokenID)
	f.token.Mint(f.buyer.Address(), big.NewInt(100))

	one, _, callOne, two, sigTwo, callTwo := f.tokenTrade(tokenID, price)
	one.StaticKind = market.StaticUnknown
	sigOne := f.sign(f.seller, one)

	_, err := f.engine.TradeNFT(f.relay.Address(), one, sigOne, callOne, two, sigTwo, callTwo, nil, [32]byte{})
	if !errors.Is(err, market.ErrStaticCheckFailed) {
		t.Fatalf("err = %v, want ErrStaticCheckFailed", err)
	}
}

func TestTradeFakeNFTCaughtByCounterCheck(t *testing.T) {
	f := newFixture(t)
	tokenID := big.NewInt(1)
	price := big.NewInt(100)

	// seller offers a token on an impostor ledger; the buyer's order
	// declares the real one
	fake := ledger.NewERC721("impostor")
	f.bus.Register(fake)
	fake.Mint(f.seller.Address(), tokenID)
	fake.SetApprovalForAll(f.seller.Address(), f.reg.Address(), true)
	f.token.Mint(f.buyer.Address(), big.NewInt(100))

	one := f.order(f.seller, market.AssetForToken,
		market.EncodeStaticParams(fake.Address(), f.token.Address(), tokenID, price), 1)
	two := f.order(f.buyer, market.TokenForAsset,
		market.EncodeStaticParams(f.token.Address(), f.nft.Address(), tokenID, price), 1)
	callOne := market.Call{Target: fake.Address(), Data: ledger.PackTransferFrom(f.seller.Address(), f.buyer.Address(), tokenID)}
	callTwo := market.Call{Target: f.token.Address(), Data: ledger.PackTransferFrom(f.buyer.Address(), f.seller.Address(), price)}

	_, err := f.engine.TradeNFT(f.relay.Address(), one, f.sign(f.seller, one), callOne, two, f.sign(f.buyer, two), callTwo, nil, [32]byte{})
	if !errors.Is(err, market.ErrStaticCheckFailed) {
		t.Fatalf("err = %v, want ErrStaticCheckFailed", err)
	}
	f.wantBalance(f.token, f.buyer.Address(), 100)
}

func TestTradePriceMismatch(t *testing.T) {
	f := newFixture(t)
	tokenID := big.NewInt(1)
	f.nft.Mint(f.seller.Address(), tokenID)
	f.token.Mint(f.buyer.Address(), big.NewInt(100))

	one := f.order(f.seller, market.AssetForToken,
		market.EncodeStaticParams(f.nft.Address(), f.token.Address(), tokenID, big.NewInt(100)), 1)
	two := f.order(f.buyer, market.TokenForAsset,
		market.EncodeStaticParams(f.token.Address(), f.nft.Address(), tokenID, big.NewInt(90)), 1)
	callOne := market.Call{Target: f.nft.Address(), Data: ledger.PackTransferFrom(f.seller.Address(), f.buyer.Address(), tokenID)}
	callTwo := market.Call{Target: f.token.Address(), Data: ledger.PackTransferFrom(f.buyer.Address(), f.seller.Address(), big.NewInt(90))}

	_, err := f.engine.TradeNFT(f.relay.Address(), one, f.sign(f.seller, one), callOne, two, f.sign(f.buyer, two), callTwo, nil, [32]byte{})
	if !errors.Is(err, market.ErrPriceMismatch) {
		t.Fatalf("err = %v, want ErrPriceMismatch", err)
	}
}

func TestTradeExpiredOrder(t *testing.T) {
	f := newFixture(t)
	tokenID := big.NewInt(1)
	price := big.NewInt(100)
	f.nft.Mint(f.seller.Address(), tokenID)
	f.token.Mint(f.buyer.Address(), big.NewInt(100))

	one, _, callOne, two, sigTwo, callTwo := f.tokenTrade(tokenID, price)
	one.ExpirationTime = uint64(testTime.Unix()) - 1
	sigOne := f.sign(f.seller, one)

	_, err := f.engine.TradeNFT(f.relay.Address(), one, sigOne, callOne, two, sigTwo, callTwo, nil, [32]byte{})
	if !errors.Is(err, market.ErrOrderExpired) {
		t.Fatalf("err = %v, want ErrOrderExpired", err)
	}
}

func TestTradePaymentTokenNotWhitelisted(t *testing.T) {
	f := newFixture(t)
	tokenID := big.NewInt(1)
	price := big.NewInt(100)
	f.nft.Mint(f.seller.Address(), tokenID)

	rogue := ledger.NewERC20("rogue")
	f.bus.Register(rogue)
	rogue.Mint(f.buyer.Address(), big.NewInt(100))
	rogue.Approve(f.buyer.Address(), f.reg.Address(), big.NewInt(100))

	one := f.order(f.seller, market.AssetForToken,
		market.EncodeStaticParams(f.nft.Address(), rogue.Address(), tokenID, price), 1)
	two := f.order(f.buyer, market.TokenForAsset,
		market.EncodeStaticParams(rogue.Address(), f.nft.Address(), tokenID, price), 1)
	callOne := market.Call{Target: f.nft.Address(), Data: ledger.PackTransferFrom(f.seller.Address(), f.buyer.Address(), tokenID)}
	callTwo := market.Call{Target: rogue.Address(), Data: ledger.PackTransferFrom(f.buyer.Address(), f.seller.Address(), price)}

	_, err := f.engine.TradeNFT(f.relay.Address(), one, f.sign(f.seller, one), callOne, two, f.sign(f.buyer, two), callTwo, nil, [32]byte{})
	if !errors.Is(err, market.ErrPaymentTokenNotWhitelisted) {
		t.Fatalf("err = %v, want ErrPaymentTokenNotWhitelisted", err)
	}
}

func TestTradeUnknownRegistry(t *testing.T) {
	f := newFixture(t)
	tokenID := big.NewInt(1)
	price := big.NewInt(100)
	f.nft.Mint(f.seller.Address(), tokenID)
	f.token.Mint(f.buyer.Address(), big.NewInt(100))

	one, _, callOne, two, sigTwo, callTwo := f.tokenTrade(tokenID, price)
	one.Registry = ledger.NewAddress("nobody-registered-this")
	sigOne := f.sign(f.seller, one)

	_, err := f.engine.TradeNFT(f.relay.Address(), one, sigOne, callOne, two, sigTwo, callTwo, nil, [32]byte{})
	if !errors.Is(err, market.ErrUnknownRegistry) {
		t.Fatalf("err = %v, want ErrUnknownRegistry", err)
	}
}

func TestTradeRollbackOnPaymentFailure(t *testing.T) {
	f := newFixture(t)
	tokenID := big.NewInt(1)
	price := big.NewInt(100)

	f.nft.Mint(f.seller.Address(), tokenID)
	// buyer signed for 100 but holds only 50: the asset leg executes
	// first, then the payment leg fails and everything must roll back
	f.token.Mint(f.buyer.Address(), big.NewInt(50))

	one, sigOne, callOne, two, sigTwo, callTwo := f.tokenTrade(tokenID, price)

	_, err := f.engine.TradeNFT(f.relay.Address(), one, sigOne, callOne, two, sigTwo, callTwo, nil, [32]byte{})
	if !errors.Is(err, market.ErrSecondCallFailed) {
		t.Fatalf("err = %v, want ErrSecondCallFailed", err)
	}

	f.wantOwner(tokenID, f.seller.Address())
	f.wantBalance(f.token, f.buyer.Address(), 50)
	f.wantBalance(f.token, f.seller.Address(), 0)

	hashOne, _ := f.engine.HashOrder(one)
	if fill, _ := f.engine.OrderFill(hashOne); fill != 0 {
		t.Errorf("fill = %d after rollback, want 0", fill)
	}
	if trades, _ := f.engine.RecentTrades(10); len(trades) != 0 {
		t.Errorf("recent trades = %d after rollback, want 0", len(trades))
	}
}

func TestTradeNFTForNative(t *testing.T) {
	f := newFixture(t)
	tokenID := big.NewInt(7)
	price := big.NewInt(99)

	f.nft.Mint(f.seller.Address(), tokenID)
	f.native.Mint(f.buyer.Address(), big.NewInt(99))

	one, sigOne, callOne, two, sigTwo, callTwo := f.nativeTrade(tokenID, price)

	// the buyer submits and attaches the exact price
	trade, err := f.engine.TradeNFT(f.buyer.Address(), one, sigOne, callOne, two, sigTwo, callTwo, price, [32]byte{})
	if err != nil {
		t.Fatalf("trade failed: %v", err)
	}

	f.wantOwner(tokenID, f.buyer.Address())
	if got := f.native.BalanceOf(f.seller.Address()); got.Cmp(big.NewInt(70)) != 0 {
		t.Errorf("seller native balance = %s, want 70", got)
	}
	if got := f.native.BalanceOf(f.platform); got.Cmp(big.NewInt(29)) != 0 {
		t.Errorf("platform native balance = %s, want 29", got)
	}
	if trade.PaymentToken != (common.Address{}) {
		t.Error("expected zero payment token for native trade")
	}
}

func TestTradeNativeWrongValue(t *testing.T) {
	f := newFixture(t)
	tokenID := big.NewInt(1)
	price := big.NewInt(100)
	f.nft.Mint(f.seller.Address(), tokenID)
	f.native.Mint(f.buyer.Address(), big.NewInt(1000))

	one, sigOne, callOne, two, sigTwo, callTwo := f.nativeTrade(tokenID, price)

	for _, value := range []*big.Int{big.NewInt(99), big.NewInt(101), nil} {
		_, err := f.engine.TradeNFT(f.buyer.Address(), one, sigOne, callOne, two, sigTwo, callTwo, value, [32]byte{})
		if !errors.Is(err, market.ErrIncorrectPaymentAmount) {
			t.Fatalf("value=%v: err = %v, want ErrIncorrectPaymentAmount", value, err)
		}
	}
	f.wantOwner(tokenID, f.seller.Address())
}

func TestTradeNativeFakeNFTFailsAtExecution(t *testing.T) {
	f := newFixture(t)
	tokenID := big.NewInt(1)
	price := big.NewInt(100)
	f.native.Mint(f.buyer.Address(), big.NewInt(100))

	// seller's ledger is not registered on the bus: the native-side
	// check does not inspect the counter-call, so the failure surfaces
	// only when the asset leg executes
	phantom := ledger.NewAddress("phantom-ledger")
	one := f.order(f.seller, market.AssetForNative,
		market.EncodeStaticParams(phantom, common.Address{}, tokenID, price), 1)
	two := f.order(f.buyer, market.NativeForAsset,
		market.EncodeStaticParams(common.Address{}, phantom, tokenID, price), 1)
	callOne := market.Call{Target: phantom, Data: ledger.PackTransferFrom(f.seller.Address(), f.buyer.Address(), tokenID)}

	_, err := f.engine.TradeNFT(f.buyer.Address(), one, f.sign(f.seller, one), callOne, two, f.sign(f.buyer, two), market.Call{}, price, [32]byte{})
	if !errors.Is(err, market.ErrFirstCallFailed) {
		t.Fatalf("err = %v, want ErrFirstCallFailed", err)
	}
	if got := f.native.BalanceOf(f.buyer.Address()); got.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("buyer native balance = %s after rollback, want 100", got)
	}
}

func TestTradeSecondarySaleFee(t *testing.T) {
	f := newFixture(t)
	tokenID := big.NewInt(3)
	price := big.NewInt(100)

	f.nft.Mint(f.seller.Address(), tokenID)
	f.token.Mint(f.buyer.Address(), big.NewInt(100))

	one, sigOne, callOne, two, sigTwo, callTwo := f.tokenTrade(tokenID, price)
	if _, err := f.engine.TradeNFT(f.relay.Address(), one, sigOne, callOne, two, sigTwo, callTwo, nil, [32]byte{}); err != nil {
		t.Fatalf("primary sale failed: %v", err)
	}

	// sell it back: this sale is secondary, 10% fee
	f.nft.SetApprovalForAll(f.buyer.Address(), f.reg.Address(), true)
	f.token.Approve(f.seller.Address(), f.reg.Address(), big.NewInt(1000))
	f.token.Mint(f.seller.Address(), big.NewInt(30)) // seller has 70 from the first sale

	back := f.order(f.buyer, market.AssetForToken,
		market.EncodeStaticParams(f.nft.Address(), f.token.Address(), tokenID, price), 1)
	buyBack := f.order(f.seller, market.TokenForAsset,
		market.EncodeStaticParams(f.token.Address(), f.nft.Address(), tokenID, price), 1)
	callBack := market.Call{Target: f.nft.Address(), Data: ledger.PackTransferFrom(f.buyer.Address(), f.seller.Address(), tokenID)}
	callPay := market.Call{Target: f.token.Address(), Data: ledger.PackTransferFrom(f.seller.Address(), f.buyer.Address(), price)}

	trade, err := f.engine.TradeNFT(f.relay.Address(), back, f.sign(f.buyer, back), callBack, buyBack, f.sign(f.seller, buyBack), callPay, nil, [32]byte{})
	if err != nil {
		t.Fatalf("secondary sale failed: %v", err)
	}
	if trade.PrimarySale {
		t.Error("expected secondary sale")
	}
	if trade.Fee.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("secondary fee = %s, want 10", trade.Fee)
	}
	f.wantOwner(tokenID, f.seller.Address())
}

func TestTradeMiningRewardMintedToBuyer(t *testing.T) {
	f := newFixture(t)
	tokenID := big.NewInt(1)
	price := big.NewInt(5000)

	platformToken := ledger.NewERC20("platform-token")
	f.bus.Register(platformToken)

	mining := params.Mining{
		Enabled:           true,
		Epsilon:           big.NewInt(5),
		Alpha:             big.NewInt(1),
		Gamma:             big.NewInt(1000),
		Omega:             big.NewInt(100000),
		PriceThreshold:    big.NewInt(1000),
		MaxRewardPerTrade: big.NewInt(1_000_000),
	}
	hook := market.NewRewardPolicy(mining, platformToken, f.warehouse)

	engine := market.NewEngine(market.EngineConfig{
		Log:       zap.NewNop(),
		Clock:     util.FixedClock{T: testTime},
		ChainID:   big.NewInt(1337),
		Fees:      params.Fees{PrimaryBps: 3000, SecondaryBps: 1000, Recipient: f.platform},
		Bus:       f.bus,
		Native:    f.native,
		Warehouse: f.warehouse,
		Fills:     f.store,
		Approvals: f.store,
		Hook:      hook,
	})
	engine.RegisterStatic(f.statics)
	f.reg.GrantAuthentication(engine.Address())
	engine.RegisterRegistry(f.reg)

	f.nft.Mint(f.seller.Address(), tokenID)
	f.token.Mint(f.buyer.Address(), price)

	one := f.order(f.seller, market.AssetForToken,
		market.EncodeStaticParams(f.nft.Address(), f.token.Address(), tokenID, price), 1)
	two := f.order(f.buyer, market.TokenForAsset,
		market.EncodeStaticParams(f.token.Address(), f.nft.Address(), tokenID, price), 1)
	callOne := market.Call{Target: f.nft.Address(), Data: ledger.PackTransferFrom(f.seller.Address(), f.buyer.Address(), tokenID)}
	callTwo := market.Call{Target: f.token.Address(), Data: ledger.PackTransferFrom(f.buyer.Address(), f.seller.Address(), price)}

	hashOne, _ := engine.HashOrder(one)
	sigOne, _ := f.seller.Sign(hashOne.Bytes())
	hashTwo, _ := engine.HashOrder(two)
	sigTwo, _ := f.buyer.Sign(hashTwo.Bytes())

	if _, err := engine.TradeNFT(f.relay.Address(), one, sigOne, callOne, two, sigTwo, callTwo, nil, [32]byte{}); err != nil {
		t.Fatalf("trade failed: %v", err)
	}

	// first trade has no decay: epsilon + alpha*floor(5000/1000) = 10
	if got := platformToken.BalanceOf(f.buyer.Address()); got.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("buyer reward = %s, want 10", got)
	}
	if got := platformToken.BalanceOf(f.seller.Address()); got.Sign() != 0 {
		t.Errorf("seller reward = %s, want 0", got)
	}
}
