package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TradeResult is the terminal outcome of one arbitrage request. It is returned
// to the caller and mirrored as an observability event. Profit is signed: a
// negative value records the shortfall of a reverted attempt.
type TradeResult struct {
	RequestID   string
	Caller      common.Address
	BorrowAsset common.Address
	BorrowAmount *big.Int

	Success bool
	// Profit is gross surplus over principal+fee on success, or the strictly
	// negative shortfall on an InsufficientRepayment revert.
	Profit *big.Int
	// BeneficiaryFee is the cut transferred to the fee beneficiary on success.
	BeneficiaryFee *big.Int
	// NetProfit is Profit minus BeneficiaryFee.
	NetProfit *big.Int

	Leg1Out *big.Int
	Leg2Out *big.Int

	// GasCost is the estimated resource cost priced at the entry snapshot.
	GasCost *big.Int

	Reason     string
	StartedAt  time.Time
	FinishedAt time.Time
}
