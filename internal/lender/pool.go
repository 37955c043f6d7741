package lender

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/flasharb/internal/domain"
	"github.com/alanyoungcy/flasharb/internal/ledger"
)

// DefaultFeeBps is the flash-credit fee in basis points (0.09%).
const DefaultFeeBps = 9

// Pool is a Facility backed by its own ledger liquidity. Seed liquidity by
// minting to the pool's address.
type Pool struct {
	addr   common.Address
	feeBps uint32
	logger *slog.Logger
}

// NewPool creates a Pool at addr charging feeBps per loan.
func NewPool(addr common.Address, feeBps uint32, logger *slog.Logger) *Pool {
	return &Pool{
		addr:   addr,
		feeBps: feeBps,
		logger: logger.With(slog.String("component", "lender")),
	}
}

// Address returns the pool's ledger address.
func (p *Pool) Address() common.Address { return p.addr }

// LoanFee returns floor(amount * feeBps / 10000).
func (p *Pool) LoanFee(_ common.Address, amount *big.Int) *big.Int {
	fee := new(big.Int).Mul(amount, big.NewInt(int64(p.feeBps)))
	return fee.Div(fee, big.NewInt(10_000))
}

// FlashLoan implements the facility side of the flash-credit contract: move
// the principal to the receiver, invoke the fixed callback, then pull back
// principal plus fee through the allowance the receiver granted during the
// callback. Every step runs on the caller's transaction, so the caller's
// discard undoes the transfer as if the loan never happened.
func (p *Pool) FlashLoan(
	ctx context.Context,
	tx *ledger.Tx,
	receiverAddr common.Address,
	receiver Receiver,
	asset common.Address,
	amount *big.Int,
	data any,
) error {
	fee := p.LoanFee(asset, amount)

	if err := tx.Transfer(asset, p.addr, receiverAddr, amount); err != nil {
		return fmt.Errorf("lender: fund loan: %w", err)
	}

	if err := receiver.OnFlashLoan(ctx, tx, p.addr, asset, amount, fee, data); err != nil {
		return fmt.Errorf("lender: callback: %w", err)
	}

	repay := new(big.Int).Add(amount, fee)
	if err := tx.TransferFrom(asset, p.addr, receiverAddr, p.addr, repay); err != nil {
		return fmt.Errorf("lender: %w: repay %s of %s: %v", domain.ErrExternalCall, repay, asset.Hex(), err)
	}

	p.logger.DebugContext(ctx, "loan cycle complete",
		slog.String("asset", asset.Hex()),
		slog.String("amount", amount.String()),
		slog.String("fee", fee.String()),
	)
	return nil
}
