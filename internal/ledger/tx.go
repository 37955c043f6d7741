package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/flasharb/internal/domain"
)

// Tx is one staged-effects buffer over the ledger. A Tx is confined to the
// single goroutine running one request; it is not safe for concurrent use.
// Exactly one of Commit or Discard must be called.
type Tx struct {
	ledger     *Ledger
	balances   map[balanceKey]*big.Int
	allowances map[allowanceKey]*big.Int
	done       bool
}

// BalanceOf returns the in-transaction balance of token held by account.
func (tx *Tx) BalanceOf(token, account common.Address) *big.Int {
	k := balanceKey{token, account}
	if b, ok := tx.balances[k]; ok {
		return new(big.Int).Set(b)
	}
	return tx.ledger.committedBalance(k)
}

// Allowance returns the in-transaction allowance from owner to spender.
func (tx *Tx) Allowance(token, owner, spender common.Address) *big.Int {
	k := allowanceKey{token, owner, spender}
	if a, ok := tx.allowances[k]; ok {
		return new(big.Int).Set(a)
	}
	return tx.ledger.committedAllowance(k)
}

// Transfer moves amount of token from one account to another.
func (tx *Tx) Transfer(token, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("ledger: transfer amount must be non-negative")
	}
	bal := tx.BalanceOf(token, from)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("ledger: %w: token %s account %s has %s, needs %s",
			domain.ErrInsufficientFunds, token.Hex(), from.Hex(), bal, amount)
	}
	tx.setBalance(token, from, bal.Sub(bal, amount))
	toBal := tx.BalanceOf(token, to)
	tx.setBalance(token, to, toBal.Add(toBal, amount))
	return nil
}

// Approve sets the allowance from owner to spender to exactly amount,
// replacing any previous value.
func (tx *Tx) Approve(token, owner, spender common.Address, amount *big.Int) {
	if amount == nil {
		amount = new(big.Int)
	}
	tx.allowances[allowanceKey{token, owner, spender}] = new(big.Int).Set(amount)
}

// TransferFrom moves amount of token from `from` to `to` on behalf of
// spender, consuming the spender's allowance.
func (tx *Tx) TransferFrom(token, spender, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("ledger: transfer amount must be non-negative")
	}
	allowed := tx.Allowance(token, from, spender)
	if allowed.Cmp(amount) < 0 {
		return fmt.Errorf("ledger: %w: token %s spender %s allowed %s, needs %s",
			domain.ErrInsufficientAllowance, token.Hex(), spender.Hex(), allowed, amount)
	}
	if err := tx.Transfer(token, from, to, amount); err != nil {
		return err
	}
	tx.allowances[allowanceKey{token, from, spender}] = allowed.Sub(allowed, amount)
	return nil
}

// Commit materializes the overlay into committed state.
func (tx *Tx) Commit() {
	if tx.done {
		return
	}
	tx.done = true
	tx.ledger.commit(tx)
}

// Discard drops every staged effect. Safe to call after Commit; it then does
// nothing.
func (tx *Tx) Discard() {
	tx.done = true
	tx.balances = nil
	tx.allowances = nil
}

func (tx *Tx) setBalance(token, account common.Address, v *big.Int) {
	tx.balances[balanceKey{token, account}] = v
}
