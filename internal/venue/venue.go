// Package venue defines the capability interface the swap sequencer requires
// from a trading venue and the adapters that satisfy it. The sequencer is
// agnostic to which concrete exchange protocol a leg targets; it only needs
// {quote, swap} under a ledger allowance.
package venue

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/flasharb/internal/domain"
	"github.com/alanyoungcy/flasharb/internal/ledger"
)

// Venue is one external trading counterpart. Swap consumes the allowance the
// trader granted to the venue's address inside tx and credits output back to
// the trader; its return value is advisory only, callers must trust the
// post-call balance instead.
type Venue interface {
	Address() common.Address
	Quote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, error)
	Swap(ctx context.Context, tx *ledger.Tx, trader common.Address, payload []byte) error
}

// Registry resolves venue addresses from request legs to adapters.
type Registry struct {
	mu     sync.RWMutex
	venues map[common.Address]Venue
}

// NewRegistry returns an empty registry. Call Register to add venues.
func NewRegistry() *Registry {
	return &Registry{venues: make(map[common.Address]Venue)}
}

// Register adds a venue adapter under its address.
func (r *Registry) Register(v Venue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.venues[v.Address()] = v
}

// Get returns the venue registered at addr, or an error if unknown.
func (r *Registry) Get(addr common.Address) (Venue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.venues[addr]
	if !ok {
		return nil, fmt.Errorf("%w: venue %s not registered", domain.ErrNotFound, addr.Hex())
	}
	return v, nil
}
