package ledger

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ERC20 is an in-process fungible token ledger with conventional
// balance/allowance semantics. transferFrom spends the caller's
// allowance unless the caller is the owner of the funds.
type ERC20 struct {
	mu         sync.RWMutex
	addr       common.Address
	name       string
	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
}

func NewERC20(name string) *ERC20 {
	return &ERC20{
		addr:       NewAddress("erc20:" + name),
		name:       name,
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

func (t *ERC20) Address() common.Address { return t.addr }
func (t *ERC20) Name() string            { return t.name }

// Mint credits amount to an account.
func (t *ERC20) Mint(to common.Address, amount *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.credit(to, amount)
}

func (t *ERC20) BalanceOf(owner common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if b, ok := t.balances[owner]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// Approve sets spender's allowance over owner's funds.
func (t *ERC20) Approve(owner, spender common.Address, amount *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[common.Address]*big.Int)
	}
	t.allowances[owner][spender] = new(big.Int).Set(amount)
}

func (t *ERC20) Allowance(owner, spender common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if a, ok := t.allowances[owner][spender]; ok {
		return new(big.Int).Set(a)
	}
	return new(big.Int)
}

// TransferFrom moves amount from -> to, spending caller's allowance
// when caller != from.
func (t *ERC20) TransferFrom(caller, from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("%s: negative transfer amount", t.name)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if caller != from {
		allowance, ok := t.allowances[from][caller]
		if !ok || allowance.Cmp(amount) < 0 {
			return fmt.Errorf("%s: insufficient allowance for %s", t.name, caller.Hex())
		}
		allowance.Sub(allowance, amount)
	}

	balance, ok := t.balances[from]
	if !ok || balance.Cmp(amount) < 0 {
		return fmt.Errorf("%s: insufficient balance for %s", t.name, from.Hex())
	}
	balance.Sub(balance, amount)
	t.credit(to, amount)
	return nil
}

// Call dispatches ABI-encoded calldata. Only transferFrom is callable
// through the bus; everything else is a direct Go API.
func (t *ERC20) Call(caller common.Address, input []byte) error {
	from, to, amount, err := UnpackTransferFrom(input)
	if err != nil {
		return fmt.Errorf("%s: %w", t.name, err)
	}
	return t.TransferFrom(caller, from, to, amount)
}

func (t *ERC20) Snapshot() any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snap := erc20Snap{
		balances:   make(map[common.Address]*big.Int, len(t.balances)),
		allowances: make(map[common.Address]map[common.Address]*big.Int, len(t.allowances)),
	}
	for a, b := range t.balances {
		snap.balances[a] = new(big.Int).Set(b)
	}
	for owner, spenders := range t.allowances {
		m := make(map[common.Address]*big.Int, len(spenders))
		for s, v := range spenders {
			m[s] = new(big.Int).Set(v)
		}
		snap.allowances[owner] = m
	}
	return snap
}

func (t *ERC20) Restore(snap any) {
	s, ok := snap.(erc20Snap)
	if !ok {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances = s.balances
	t.allowances = s.allowances
}

type erc20Snap struct {
	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
}

// credit assumes t.mu is held.
func (t *ERC20) credit(to common.Address, amount *big.Int) {
	if b, ok := t.balances[to]; ok {
		b.Add(b, amount)
		return
	}
	t.balances[to] = new(big.Int).Set(amount)
}

var _ Contract = (*ERC20)(nil)
