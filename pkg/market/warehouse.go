package market

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// DataWarehouse tracks marketplace reference data: which fungible
// tokens may be used as payment, which NFT contracts qualify for
// liquidity mining, and which assets have been sold before (deciding
// primary vs secondary fee rates). Read by the engine, administered
// out of band.
type DataWarehouse struct {
	mu            sync.RWMutex
	paymentTokens map[common.Address]bool
	nftWhitelist  map[common.Address]bool
	soldBefore    map[string]bool // asset hex + ":" + token id
}

func NewDataWarehouse() *DataWarehouse {
	return &DataWarehouse{
		paymentTokens: make(map[common.Address]bool),
		nftWhitelist:  make(map[common.Address]bool),
		soldBefore:    make(map[string]bool),
	}
}

// WhitelistPaymentToken approves or revokes a fungible token for use
// on the payment leg.
func (w *DataWarehouse) WhitelistPaymentToken(token common.Address, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paymentTokens[token] = ok
}

func (w *DataWarehouse) IsPaymentTokenWhitelisted(token common.Address) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.paymentTokens[token]
}

// WhitelistNFT marks an NFT contract as eligible for liquidity mining
// when the whitelisted-only gate is enabled.
func (w *DataWarehouse) WhitelistNFT(asset common.Address, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nftWhitelist[asset] = ok
}

func (w *DataWarehouse) IsNFTWhitelisted(asset common.Address) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.nftWhitelist[asset]
}

// IsPrimarySale reports whether this asset has never been sold through
// the marketplace before.
func (w *DataWarehouse) IsPrimarySale(asset common.Address, tokenID *big.Int) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return !w.soldBefore[saleKey(asset, tokenID)]
}

// MarkSold records a completed sale of the asset.
func (w *DataWarehouse) MarkSold(asset common.Address, tokenID *big.Int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.soldBefore[saleKey(asset, tokenID)] = true
}

func saleKey(asset common.Address, tokenID *big.Int) string {
	return asset.Hex() + ":" + tokenID.String()
}
