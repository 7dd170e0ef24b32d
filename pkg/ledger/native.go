package ledger

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Native is the native-currency ledger. It is not addressable on the
// call bus: native payments are value attached to the settlement call
// itself, moved directly by the engine.
type Native struct {
	mu       sync.RWMutex
	balances map[common.Address]*big.Int
}

func NewNative() *Native {
	return &Native{balances: make(map[common.Address]*big.Int)}
}

// Mint credits amount to an account (devnet faucet / genesis).
func (l *Native) Mint(to common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.balances[to]; ok {
		b.Add(b, amount)
		return
	}
	l.balances[to] = new(big.Int).Set(amount)
}

func (l *Native) BalanceOf(owner common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if b, ok := l.balances[owner]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// Transfer moves amount between accounts. Only the engine calls this,
// with the settlement caller as the payer.
func (l *Native) Transfer(from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("native: negative transfer amount")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance, ok := l.balances[from]
	if !ok || balance.Cmp(amount) < 0 {
		return fmt.Errorf("native: insufficient balance for %s", from.Hex())
	}
	balance.Sub(balance, amount)
	if b, ok := l.balances[to]; ok {
		b.Add(b, amount)
	} else {
		l.balances[to] = new(big.Int).Set(amount)
	}
	return nil
}

func (l *Native) Snapshot() map[common.Address]*big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	snap := make(map[common.Address]*big.Int, len(l.balances))
	for a, b := range l.balances {
		snap[a] = new(big.Int).Set(b)
	}
	return snap
}

func (l *Native) Restore(snap map[common.Address]*big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances = snap
}
