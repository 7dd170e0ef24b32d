package market

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/frontierx/nftmarket/params"
	"github.com/frontierx/nftmarket/pkg/ledger"
	"github.com/frontierx/nftmarket/pkg/util"
)

// ExecRegistry is the act-on-behalf-of capability: it executes a call
// as the agent a maker has approved on the asset ledgers. Only
// pre-authorized callers (the engine) may drive it.
type ExecRegistry interface {
	Address() common.Address
	ExecuteAs(caller, maker common.Address, call Call) error
}

// TradeStore persists settled trades for querying. Optional; a nil
// store disables history.
type TradeStore interface {
	SaveTrade(t *Trade) error
	RecentTrades(limit int) ([]*Trade, error)
}

// Trade is the realized outcome of a settlement.
type Trade struct {
	ID           string         `json:"id"`
	Seller       common.Address `json:"seller"`
	Buyer        common.Address `json:"buyer"`
	Asset        common.Address `json:"asset"`
	TokenID      *big.Int       `json:"tokenId"`
	PaymentToken common.Address `json:"paymentToken"` // zero for native currency
	Price        *big.Int       `json:"price"`
	Fee          *big.Int       `json:"fee"`
	PrimarySale  bool           `json:"primarySale"`
	FillOne      uint64         `json:"fillOne"`
	FillTwo      uint64         `json:"fillTwo"`
	Metadata     [32]byte       `json:"-"`
	Timestamp    int64          `json:"timestamp"`
}

// EngineConfig wires the engine's collaborators.
type EngineConfig struct {
	Log       *zap.Logger
	Clock     util.Clock
	ChainID   *big.Int
	Fees      params.Fees
	Bus       *ledger.Bus
	Native    *ledger.Native
	Warehouse *DataWarehouse
	Fills     FillStore
	Approvals ApprovalStore
	Trades    TradeStore // optional
	Hook      MiningHook // optional
}

// Engine settles trades between two signed orders as one atomic unit.
// Settlements are totally ordered by an internal lock: a settlement
// commits or fully rolls back before the next begins, so two racing
// submissions against the same order hash can never both consume its
// last fill unit.
type Engine struct {
	log        *zap.Logger
	clock      util.Clock
	domain     Domain
	addr       common.Address
	auth       *Authorizer
	fills      *FillTracker
	approvals  ApprovalStore
	statics    map[common.Address]*CheckRegistry
	registries map[common.Address]ExecRegistry
	bus        *ledger.Bus
	native     *ledger.Native
	warehouse  *DataWarehouse
	hook       MiningHook
	fees       params.Fees
	trades     TradeStore
	feed       func(*Trade)

	mu sync.Mutex // settlement lock
}

func NewEngine(cfg EngineConfig) *Engine {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = util.RealClock{}
	}
	return &Engine{
		log:        log,
		clock:      clock,
		domain:     Domain{ChainID: cfg.ChainID},
		addr:       ledger.NewAddress("marketplace-engine"),
		auth:       NewAuthorizer(cfg.Approvals),
		fills:      NewFillTracker(cfg.Fills),
		approvals:  cfg.Approvals,
		statics:    make(map[common.Address]*CheckRegistry),
		registries: make(map[common.Address]ExecRegistry),
		bus:        cfg.Bus,
		native:     cfg.Native,
		warehouse:  cfg.Warehouse,
		hook:       cfg.Hook,
		fees:       cfg.Fees,
		trades:     cfg.Trades,
	}
}

// Address is the engine's caller identity towards registries.
func (e *Engine) Address() common.Address { return e.addr }

// Domain returns the typed-data domain orders must be hashed under.
func (e *Engine) Domain() Domain { return e.domain }

// RegisterStatic installs a static-check capability instance; orders
// select it by its address.
func (e *Engine) RegisterStatic(r *CheckRegistry) {
	e.statics[r.Address()] = r
}

// RegisterRegistry installs an act-on-behalf-of capability; orders
// select it by its address.
func (e *Engine) RegisterRegistry(r ExecRegistry) {
	e.registries[r.Address()] = r
}

// SetTradeFeed installs a callback invoked after every settled trade
// (websocket broadcast). Must be set before serving traffic.
func (e *Engine) SetTradeFeed(fn func(*Trade)) { e.feed = fn }

// HashOrder computes the canonical hash of an order under the engine's
// domain.
func (e *Engine) HashOrder(order *Order) (common.Hash, error) {
	return HashOrder(e.domain, order)
}

// ApproveOrder records an on-record pre-approval for an order, the
// signatureless authorization path. Only the maker may approve.
func (e *Engine) ApproveOrder(caller common.Address, order *Order) (common.Hash, error) {
	if caller != order.Maker {
		return common.Hash{}, fmt.Errorf("only the maker may approve an order")
	}
	hash, err := e.HashOrder(order)
	if err != nil {
		return common.Hash{}, err
	}
	if err := e.approvals.Approve(hash); err != nil {
		return common.Hash{}, fmt.Errorf("record approval: %w", err)
	}
	e.log.Info("order approved", zap.String("hash", hash.Hex()), zap.String("maker", caller.Hex()))
	return hash, nil
}

// OrderFill returns the cumulative fill level of an order hash.
func (e *Engine) OrderFill(hash common.Hash) (uint64, error) {
	return e.fills.Level(hash)
}

// RecentTrades returns up to limit most recent settled trades.
func (e *Engine) RecentTrades(limit int) ([]*Trade, error) {
	if e.trades == nil {
		return nil, nil
	}
	return e.trades.RecentTrades(limit)
}

// TradeNFT atomically settles two orders: order one's call is the
// asset-out leg, order two's call is the payment leg. Any third party
// may submit a settlement; for native-currency trades the caller is
// the payer and value is the currency attached to this invocation.
//
// The operation is strictly two-phase. The validation phase performs
// no mutation: authorization of both orders, fill window and capacity
// checks, both static checks, price equality, and native-currency
// exactness. The commit phase executes both transfer legs, splits the
// platform fee out of the payment, and persists the fill counters; any
// commit failure restores the pre-commit ledger state. The mining hook
// runs after commit and is best-effort.
func (e *Engine) TradeNFT(caller common.Address, one *Order, sigOne []byte, callOne Call, two *Order, sigTwo []byte, callTwo Call, value *big.Int, metadata [32]byte) (*Trade, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if value == nil {
		value = new(big.Int)
	}

	// ---- validation phase: no state mutation past this line until commit ----

	hashOne, err := e.HashOrder(one)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFirstOrderAuthorization, err)
	}
	hashTwo, err := e.HashOrder(two)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSecondOrderAuthorization, err)
	}

	if !e.auth.Authorize(one, hashOne, sigOne, caller) {
		return nil, ErrFirstOrderAuthorization
	}
	if !e.auth.Authorize(two, hashTwo, sigTwo, caller) {
		return nil, ErrSecondOrderAuthorization
	}

	now := uint64(e.clock.Now().Unix())
	fillOne, err := e.fills.Check(one, hashOne, 1, now)
	if err != nil {
		return nil, err
	}
	amountTwo := uint64(1)
	if hashTwo == hashOne {
		// same order on both sides consumes two fill units
		amountTwo = 2
	}
	fillTwo, err := e.fills.Check(two, hashTwo, amountTwo, now)
	if err != nil {
		return nil, err
	}

	termsOne, ok := e.runStatic(one, CheckInput{
		Extradata:    one.StaticExtradata,
		Call:         callOne,
		CounterCall:  callTwo,
		Maker:        one.Maker,
		Counterparty: two.Maker,
		CurrentFill:  fillOne,
		MaximumFill:  one.MaximumFill,
	})
	if !ok {
		return nil, ErrStaticCheckFailed
	}
	termsTwo, ok := e.runStatic(two, CheckInput{
		Extradata:    two.StaticExtradata,
		Call:         callTwo,
		CounterCall:  callOne,
		Maker:        two.Maker,
		Counterparty: one.Maker,
		CurrentFill:  fillTwo,
		MaximumFill:  two.MaximumFill,
	})
	if !ok {
		return nil, ErrStaticCheckFailed
	}

	// both sides must agree on the payment medium
	if termsOne.PaymentToken != termsTwo.PaymentToken {
		return nil, ErrStaticCheckFailed
	}
	if termsOne.Price.Cmp(termsTwo.Price) != 0 {
		return nil, ErrPriceMismatch
	}
	price := termsOne.Price

	isNative := termsTwo.PaymentToken == (common.Address{})
	if isNative {
		// attached value must equal both declared prices exactly
		if value.Cmp(price) != 0 {
			return nil, ErrIncorrectPaymentAmount
		}
	} else {
		if value.Sign() != 0 {
			return nil, ErrIncorrectPaymentAmount
		}
		if !e.warehouse.IsPaymentTokenWhitelisted(termsTwo.PaymentToken) {
			return nil, ErrPaymentTokenNotWhitelisted
		}
	}

	regOne := e.registries[one.Registry]
	if regOne == nil {
		return nil, ErrUnknownRegistry
	}
	var regTwo ExecRegistry
	if !isNative {
		regTwo = e.registries[two.Registry]
		if regTwo == nil {
			return nil, ErrUnknownRegistry
		}
	}

	primary := e.warehouse.IsPrimarySale(termsOne.Asset, termsOne.TokenID)
	bps := e.fees.SecondaryBps
	if primary {
		bps = e.fees.PrimaryBps
	}
	fee, remainder := SplitFee(price, bps)

	// ---- commit phase: all mutations, rolled back together on failure ----

	busSnap := e.bus.Snapshot()
	nativeSnap := e.native.Snapshot()
	rollback := func() {
		e.bus.Restore(busSnap)
		e.native.Restore(nativeSnap)
	}

	if err := regOne.ExecuteAs(e.addr, one.Maker, callOne); err != nil {
		rollback()
		return nil, fmt.Errorf("%w: %v", ErrFirstCallFailed, err)
	}

	if isNative {
		if err := e.native.Transfer(caller, one.Maker, remainder); err != nil {
			rollback()
			return nil, fmt.Errorf("%w: %v", ErrSecondCallFailed, err)
		}
		if fee.Sign() > 0 {
			if err := e.native.Transfer(caller, e.fees.Recipient, fee); err != nil {
				rollback()
				return nil, fmt.Errorf("%w: %v", ErrSecondCallFailed, err)
			}
		}
	} else {
		// the payment leg is split at execution time: remainder to the
		// seller, fee to the platform recipient, both drawn from the
		// buyer through the agent the buyer approved
		token := termsTwo.PaymentToken
		sellerLeg := Call{Target: token, HowToCall: CallDirect, Data: ledger.PackTransferFrom(two.Maker, one.Maker, remainder)}
		if err := regTwo.ExecuteAs(e.addr, two.Maker, sellerLeg); err != nil {
			rollback()
			return nil, fmt.Errorf("%w: %v", ErrSecondCallFailed, err)
		}
		if fee.Sign() > 0 {
			feeLeg := Call{Target: token, HowToCall: CallDirect, Data: ledger.PackTransferFrom(two.Maker, e.fees.Recipient, fee)}
			if err := regTwo.ExecuteAs(e.addr, two.Maker, feeLeg); err != nil {
				rollback()
				return nil, fmt.Errorf("%w: %v", ErrSecondCallFailed, err)
			}
		}
	}

	levels := map[common.Hash]uint64{hashOne: fillOne + 1}
	if hashTwo == hashOne {
		levels[hashOne] = fillOne + 2
	} else {
		levels[hashTwo] = fillTwo + 1
	}
	if err := e.fills.Commit(levels); err != nil {
		rollback()
		return nil, fmt.Errorf("persist fills: %w", err)
	}

	e.warehouse.MarkSold(termsOne.Asset, termsOne.TokenID)

	trade := &Trade{
		ID:           uuid.NewString(),
		Seller:       one.Maker,
		Buyer:        two.Maker,
		Asset:        termsOne.Asset,
		TokenID:      termsOne.TokenID,
		PaymentToken: termsTwo.PaymentToken,
		Price:        price,
		Fee:          fee,
		PrimarySale:  primary,
		FillOne:      levels[hashOne],
		FillTwo:      levels[hashTwo],
		Metadata:     metadata,
		Timestamp:    e.clock.Now().Unix(),
	}

	if e.trades != nil {
		if err := e.trades.SaveTrade(trade); err != nil {
			e.log.Warn("failed to persist trade", zap.String("trade", trade.ID), zap.Error(err))
		}
	}

	// best-effort reward hook; the trade is already committed
	if e.hook != nil {
		if err := e.hook.OnTradeSettled(trade.Seller, trade.Buyer, price, trade.Asset, trade.TokenID); err != nil {
			e.log.Warn("mining hook failed", zap.String("trade", trade.ID), zap.Error(err))
		}
	}

	if e.feed != nil {
		e.feed(trade)
	}

	e.log.Info("trade settled",
		zap.String("trade", trade.ID),
		zap.String("seller", trade.Seller.Hex()),
		zap.String("buyer", trade.Buyer.Hex()),
		zap.String("asset", trade.Asset.Hex()),
		zap.String("tokenId", trade.TokenID.String()),
		zap.String("price", price.String()),
		zap.String("fee", fee.String()),
		zap.Bool("primary", primary),
	)

	return trade, nil
}

func (e *Engine) runStatic(order *Order, in CheckInput) (Terms, bool) {
	reg := e.statics[order.StaticTarget]
	if reg == nil {
		return Terms{}, false
	}
	return reg.Run(order.StaticKind, in)
}
