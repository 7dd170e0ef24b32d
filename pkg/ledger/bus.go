package ledger

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Contract is an in-process ledger addressable on the call bus.
// Snapshot/Restore support the settlement engine's all-or-nothing
// commit: a failed settlement restores every ledger to its pre-commit
// state.
type Contract interface {
	Address() common.Address

	// Call executes ABI-encoded calldata as caller. State mutations are
	// the contract's own responsibility; an error leaves the contract
	// unchanged.
	Call(caller common.Address, input []byte) error

	Snapshot() any
	Restore(snap any)
}

// Bus routes calls to registered contracts by target address.
type Bus struct {
	mu        sync.RWMutex
	contracts map[common.Address]Contract
}

func NewBus() *Bus {
	return &Bus{contracts: make(map[common.Address]Contract)}
}

// Register places a contract on the bus. Registering the same address
// twice replaces the previous contract.
func (b *Bus) Register(c Contract) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.contracts[c.Address()] = c
}

// Get returns the contract at addr, or nil if none is registered.
func (b *Bus) Get(addr common.Address) Contract {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.contracts[addr]
}

// Call dispatches calldata to the contract at target.
func (b *Bus) Call(caller, target common.Address, input []byte) error {
	c := b.Get(target)
	if c == nil {
		return fmt.Errorf("no contract at %s", target.Hex())
	}
	return c.Call(caller, input)
}

// Snapshot captures the state of every registered contract.
func (b *Bus) Snapshot() map[common.Address]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	snap := make(map[common.Address]any, len(b.contracts))
	for addr, c := range b.contracts {
		snap[addr] = c.Snapshot()
	}
	return snap
}

// Restore rolls every registered contract back to a snapshot taken by
// Snapshot. Contracts registered after the snapshot are left untouched.
func (b *Bus) Restore(snap map[common.Address]any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for addr, s := range snap {
		if c, ok := b.contracts[addr]; ok {
			c.Restore(s)
		}
	}
}
