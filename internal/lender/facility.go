// Package lender defines the flash-credit contract between this component and
// a lending facility, and provides a pool implementation over the
// transactional ledger.
package lender

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/flasharb/internal/ledger"
)

// Receiver is the fixed callback entry point a facility invokes after
// transferring the principal. The receiver must return nil and leave an
// allowance of principal+fee for the facility, or the whole unit aborts.
type Receiver interface {
	// OnFlashLoan is called with the invoking facility's address, the loan
	// terms, and the opaque context blob attached to the borrow instruction.
	OnFlashLoan(ctx context.Context, tx *ledger.Tx, facility common.Address, asset common.Address, amount, fee *big.Int, data any) error
}

// Facility supplies uncollateralized credit inside one ledger transaction.
type Facility interface {
	Address() common.Address
	// LoanFee returns the fee charged for borrowing amount of asset.
	LoanFee(asset common.Address, amount *big.Int) *big.Int
	// FlashLoan transfers amount of asset to the receiver's account inside tx,
	// invokes the receiver callback, then pulls back principal plus fee. Any
	// error leaves the caller responsible for discarding tx.
	FlashLoan(ctx context.Context, tx *ledger.Tx, receiverAddr common.Address, receiver Receiver, asset common.Address, amount *big.Int, data any) error
}
