// Package ledger implements the transactional token ledger that stands in for
// the atomic execution unit of the original environment. All balances and
// allowances touched by one arbitrage request live on a single Tx; the Tx is
// committed only after every validation step succeeds, otherwise it is
// discarded and no counterparty observes any partial effect.
package ledger

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type balanceKey struct {
	token   common.Address
	account common.Address
}

type allowanceKey struct {
	token   common.Address
	owner   common.Address
	spender common.Address
}

// Ledger holds the committed token state: per-account balances and
// owner->spender allowances, both keyed by token address.
type Ledger struct {
	mu         sync.Mutex
	balances   map[balanceKey]*big.Int
	allowances map[allowanceKey]*big.Int
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		balances:   make(map[balanceKey]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
	}
}

// Mint credits amount of token to account in committed state. Used to seed
// pool liquidity and test fixtures; amount must be non-negative.
func (l *Ledger) Mint(token, account common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() < 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	k := balanceKey{token, account}
	cur, ok := l.balances[k]
	if !ok {
		cur = new(big.Int)
		l.balances[k] = cur
	}
	cur.Add(cur, amount)
}

// BalanceOf returns the committed balance of token held by account.
func (l *Ledger) BalanceOf(token, account common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.balances[balanceKey{token, account}]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// Allowance returns the committed allowance granted by owner to spender.
func (l *Ledger) Allowance(token, owner, spender common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok := l.allowances[allowanceKey{token, owner, spender}]; ok {
		return new(big.Int).Set(a)
	}
	return new(big.Int)
}

// Begin opens a transaction over the current committed state. Reads fall
// through to committed state; writes stay in the overlay until Commit.
func (l *Ledger) Begin() *Tx {
	return &Tx{
		ledger:     l,
		balances:   make(map[balanceKey]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
	}
}

// commit applies a transaction overlay to committed state.
func (l *Ledger) commit(tx *Tx) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, v := range tx.balances {
		l.balances[k] = v
	}
	for k, v := range tx.allowances {
		l.allowances[k] = v
	}
}

func (l *Ledger) committedBalance(k balanceKey) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.balances[k]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (l *Ledger) committedAllowance(k allowanceKey) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok := l.allowances[k]; ok {
		return new(big.Int).Set(a)
	}
	return new(big.Int)
}
