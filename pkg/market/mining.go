package market

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/frontierx/nftmarket/params"
	"github.com/frontierx/nftmarket/pkg/ledger"
)

// MiningHook is invoked after a settlement commits. Failures here do
// not roll back the trade; the engine logs and continues.
type MiningHook interface {
	OnTradeSettled(seller, buyer common.Address, price *big.Int, asset common.Address, tokenID *big.Int) error
}

// RewardPolicy is the liquidity-mining reward curve. Qualifying trades
// mint platform tokens to the buyer:
//
//	base    = epsilon + alpha * floor(price / gamma)
//	reward  = min(base * omega / (omega + settledTrades), maxReward)
//
// A trade qualifies when mining is enabled, price >= priceThreshold,
// and the NFT passes the whitelist gate (or the gate is off).
type RewardPolicy struct {
	mu        sync.Mutex
	params    params.Mining
	token     *ledger.ERC20
	warehouse *DataWarehouse
	settled   uint64
}

func NewRewardPolicy(p params.Mining, token *ledger.ERC20, warehouse *DataWarehouse) *RewardPolicy {
	return &RewardPolicy{params: p, token: token, warehouse: warehouse}
}

func (r *RewardPolicy) OnTradeSettled(seller, buyer common.Address, price *big.Int, asset common.Address, tokenID *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.params.Enabled || price.Cmp(r.params.PriceThreshold) < 0 {
		return nil
	}
	if r.params.WhitelistedOnly && !r.warehouse.IsNFTWhitelisted(asset) {
		return nil
	}

	reward := r.reward(price)
	if reward.Sign() > 0 {
		r.token.Mint(buyer, reward)
	}
	r.settled++
	return nil
}

// reward assumes r.mu is held.
func (r *RewardPolicy) reward(price *big.Int) *big.Int {
	base := new(big.Int).Div(price, r.params.Gamma)
	base.Mul(base, r.params.Alpha)
	base.Add(base, r.params.Epsilon)

	// decay as cumulative settled volume grows
	base.Mul(base, r.params.Omega)
	base.Div(base, new(big.Int).Add(r.params.Omega, new(big.Int).SetUint64(r.settled)))

	if base.Cmp(r.params.MaxRewardPerTrade) > 0 {
		return new(big.Int).Set(r.params.MaxRewardPerTrade)
	}
	return base
}

var _ MiningHook = (*RewardPolicy)(nil)
