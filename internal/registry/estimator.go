package registry

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/flasharb/internal/domain"
	"github.com/alanyoungcy/flasharb/internal/lender"
)

// Estimator provides the pure profitability calculators. It validates only
// caller-supplied numbers against estimated costs; it is a heuristic, not a
// live-market oracle, and never queries venue quotes.
type Estimator struct {
	registry *Registry
	facility lender.Facility
}

// NewEstimator creates an Estimator over the registry's current parameters and
// the facility's fee schedule.
func NewEstimator(r *Registry, f lender.Facility) *Estimator {
	return &Estimator{registry: r, facility: f}
}

// EstimateLoanFee returns the facility fee for borrowing amount of asset.
func (e *Estimator) EstimateLoanFee(asset common.Address, amount *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return new(big.Int)
	}
	return e.facility.LoanFee(asset, amount)
}

// IsProfitable estimates whether req would clear the configured profit
// threshold, using the caller's own minimum-output figure as the expected
// final balance. Returned profit is the estimate net of loan fee and gas.
func (e *Estimator) IsProfitable(req *domain.ArbitrageRequest, gasPriceWei *big.Int) (bool, *big.Int) {
	p := e.registry.Snapshot()
	if req.BorrowAmount == nil || req.BorrowAmount.Sign() <= 0 ||
		req.AmountOutMin == nil || req.AmountOutMin.Sign() <= 0 {
		return false, new(big.Int)
	}

	fee := e.facility.LoanFee(req.BorrowAsset, req.BorrowAmount)
	required := new(big.Int).Add(req.BorrowAmount, fee)

	gasCost := new(big.Int)
	if gasPriceWei != nil {
		gasCost.Mul(gasPriceWei, new(big.Int).SetUint64(p.EstGasUnits))
	}

	// Caller-supplied minimum output stands in for the final balance.
	est := new(big.Int).Sub(req.AmountOutMin, required)
	est.Sub(est, gasCost)

	// Threshold: profit must be at least MinProfitBps of the principal.
	threshold := new(big.Int).Mul(req.BorrowAmount, big.NewInt(int64(p.MinProfitBps)))
	threshold.Div(threshold, big.NewInt(10_000))

	return est.Cmp(threshold) > 0, est
}
