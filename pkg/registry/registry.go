// Package registry implements the act-on-behalf-of capability: a
// transfer agent identity that makers approve as operator/spender on
// the asset ledgers, driven only by pre-authorized callers (the
// settlement engine). The engine never holds custody; every transfer
// executes as the agent within the maker's standing approvals.
package registry

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/frontierx/nftmarket/pkg/ledger"
	"github.com/frontierx/nftmarket/pkg/market"
)

type Registry struct {
	mu         sync.RWMutex
	addr       common.Address
	bus        *ledger.Bus
	authorized map[common.Address]bool
}

func New(name string, bus *ledger.Bus) *Registry {
	return &Registry{
		addr:       ledger.NewAddress("registry:" + name),
		bus:        bus,
		authorized: make(map[common.Address]bool),
	}
}

// Address is the agent identity makers approve on the ledgers.
func (r *Registry) Address() common.Address { return r.addr }

// GrantAuthentication allows a caller (the settlement engine) to drive
// this agent. Deployment bootstrap; grants are never revoked at
// runtime.
func (r *Registry) GrantAuthentication(caller common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.authorized[caller] = true
}

// ExecuteAs runs a call as the agent on behalf of maker. Delegated
// execution has no meaning for an in-process agent and is rejected.
func (r *Registry) ExecuteAs(caller, maker common.Address, call market.Call) error {
	r.mu.RLock()
	ok := r.authorized[caller]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("caller %s not authorized", caller.Hex())
	}
	if call.HowToCall != market.CallDirect {
		return fmt.Errorf("delegated calls are not supported")
	}
	if call.IsNative() {
		return fmt.Errorf("native transfers do not go through the registry")
	}
	return r.bus.Call(r.addr, call.Target, call.Data)
}

var _ market.ExecRegistry = (*Registry)(nil)
