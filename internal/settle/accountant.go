// Package settle computes loan repayment, realized profit, and the fee split
// for one arbitrage request. All basis-point math is integer division with
// truncation toward zero; fees are never rounded up.
package settle

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/flasharb/internal/domain"
	"github.com/alanyoungcy/flasharb/internal/ledger"
)

const bpsDenominator = 10_000

// Settlement is the accountant's output for a successful request.
type Settlement struct {
	Required       *big.Int // principal + fee owed to the facility
	Profit         *big.Int // final balance - required, >= 0
	BeneficiaryFee *big.Int // floor(profit * cut / 10000)
	NetProfit      *big.Int // profit - beneficiary fee
}

// Accountant settles loans for a fixed holder account.
type Accountant struct {
	holder common.Address
	logger *slog.Logger
}

// New creates an Accountant for the account that holds borrowed funds.
func New(holder common.Address, logger *slog.Logger) *Accountant {
	return &Accountant{
		holder: holder,
		logger: logger.With(slog.String("component", "accountant")),
	}
}

// BeneficiaryCut returns floor(profit * cutBps / 10000) for non-negative
// profit.
func BeneficiaryCut(profit *big.Int, cutBps uint32) *big.Int {
	cut := new(big.Int).Mul(profit, big.NewInt(int64(cutBps)))
	return cut.Div(cut, big.NewInt(bpsDenominator))
}

// Settle verifies the final borrowed-asset balance covers principal plus fee,
// transfers the beneficiary cut, and pre-approves repayment to the facility.
// On a shortfall it returns ErrInsufficientRepayment with the strictly
// negative shortfall; the caller must discard the transaction.
func (a *Accountant) Settle(
	ctx context.Context,
	tx *ledger.Tx,
	loan *domain.LoanContext,
	facility common.Address,
	beneficiary common.Address,
	cutBps uint32,
) (Settlement, error) {
	required := new(big.Int).Add(loan.Principal, loan.Fee)
	balance := tx.BalanceOf(loan.Asset, a.holder)

	// A settlement must realize strictly positive profit; breaking even still
	// reverts so counters never move on a zero-profit trade.
	if balance.Cmp(required) <= 0 {
		return Settlement{}, &RepaymentError{
			Shortfall: new(big.Int).Sub(balance, required),
			Balance:   balance,
			Required:  required,
		}
	}

	profit := new(big.Int).Sub(balance, required)
	fee := BeneficiaryCut(profit, cutBps)

	if fee.Sign() > 0 {
		if err := tx.Transfer(loan.Asset, a.holder, beneficiary, fee); err != nil {
			return Settlement{}, fmt.Errorf("settle: beneficiary transfer: %w", err)
		}
	}

	// The facility pulls required via this allowance after the callback
	// returns.
	tx.Approve(loan.Asset, a.holder, facility, required)

	s := Settlement{
		Required:       required,
		Profit:         profit,
		BeneficiaryFee: fee,
		NetProfit:      new(big.Int).Sub(profit, fee),
	}
	a.logger.DebugContext(ctx, "settlement computed",
		slog.String("asset", loan.Asset.Hex()),
		slog.String("required", required.String()),
		slog.String("profit", profit.String()),
		slog.String("beneficiary_fee", fee.String()),
	)
	return s, nil
}
