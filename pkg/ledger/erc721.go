package ledger

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ERC721 is an in-process non-fungible asset ledger. Token ids are
// arbitrary uint256 values keyed by their decimal string form.
type ERC721 struct {
	mu        sync.RWMutex
	addr      common.Address
	name      string
	owners    map[string]common.Address
	operators map[common.Address]map[common.Address]bool
}

func NewERC721(name string) *ERC721 {
	return &ERC721{
		addr:      NewAddress("erc721:" + name),
		name:      name,
		owners:    make(map[string]common.Address),
		operators: make(map[common.Address]map[common.Address]bool),
	}
}

func (n *ERC721) Address() common.Address { return n.addr }
func (n *ERC721) Name() string            { return n.name }

// Mint assigns a fresh token id to an owner.
func (n *ERC721) Mint(to common.Address, tokenID *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	key := tokenID.String()
	if _, exists := n.owners[key]; exists {
		return fmt.Errorf("%s: token %s already minted", n.name, key)
	}
	n.owners[key] = to
	return nil
}

// OwnerOf returns the owner of tokenID and whether it exists.
func (n *ERC721) OwnerOf(tokenID *big.Int) (common.Address, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	owner, ok := n.owners[tokenID.String()]
	return owner, ok
}

// SetApprovalForAll grants or revokes operator rights over every token
// owned by owner.
func (n *ERC721) SetApprovalForAll(owner, operator common.Address, approved bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.operators[owner] == nil {
		n.operators[owner] = make(map[common.Address]bool)
	}
	n.operators[owner][operator] = approved
}

// TransferFrom moves tokenID from -> to. The caller must be the owner
// or an approved operator of the owner.
func (n *ERC721) TransferFrom(caller, from, to common.Address, tokenID *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	key := tokenID.String()
	owner, ok := n.owners[key]
	if !ok {
		return fmt.Errorf("%s: token %s does not exist", n.name, key)
	}
	if owner != from {
		return fmt.Errorf("%s: %s does not own token %s", n.name, from.Hex(), key)
	}
	if caller != owner && !n.operators[owner][caller] {
		return fmt.Errorf("%s: %s not authorized for token %s", n.name, caller.Hex(), key)
	}
	n.owners[key] = to
	return nil
}

func (n *ERC721) Call(caller common.Address, input []byte) error {
	from, to, tokenID, err := UnpackTransferFrom(input)
	if err != nil {
		return fmt.Errorf("%s: %w", n.name, err)
	}
	return n.TransferFrom(caller, from, to, tokenID)
}

func (n *ERC721) Snapshot() any {
	n.mu.RLock()
	defer n.mu.RUnlock()
	snap := erc721Snap{
		owners:    make(map[string]common.Address, len(n.owners)),
		operators: make(map[common.Address]map[common.Address]bool, len(n.operators)),
	}
	for k, v := range n.owners {
		snap.owners[k] = v
	}
	for owner, ops := range n.operators {
		m := make(map[common.Address]bool, len(ops))
		for op, ok := range ops {
			m[op] = ok
		}
		snap.operators[owner] = m
	}
	return snap
}

func (n *ERC721) Restore(snap any) {
	s, ok := snap.(erc721Snap)
	if !ok {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.owners = s.owners
	n.operators = s.operators
}

type erc721Snap struct {
	owners    map[string]common.Address
	operators map[common.Address]map[common.Address]bool
}

var _ Contract = (*ERC721)(nil)
