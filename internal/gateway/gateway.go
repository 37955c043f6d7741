// Package gateway is the public entry point for arbitrage execution. It
// enforces authorization, pause state, asset policy, and the gas-price
// ceiling before delegating to the loan orchestrator, and it owns the
// whole-sequence exclusive lock so no request ever observes another's partial
// effects.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/alanyoungcy/flasharb/internal/domain"
	"github.com/alanyoungcy/flasharb/internal/ledger"
	"github.com/alanyoungcy/flasharb/internal/orchestrator"
	"github.com/alanyoungcy/flasharb/internal/registry"
	"github.com/alanyoungcy/flasharb/internal/settle"
)

// lockKey is the distributed-lock key guarding the execute sequence.
const lockKey = "flasharb:execute"

// lockTTL bounds how long a crashed instance can hold the distributed lock.
const lockTTL = 2 * time.Minute

// Gateway wires the entry checks around the orchestrator.
type Gateway struct {
	registry *registry.Registry
	est      *registry.Estimator
	orch     *orchestrator.Orchestrator
	book     *ledger.Ledger
	trades   domain.TradeStore
	emitter  domain.Emitter
	oracle   domain.GasOracle
	// dist is optional; when set (multi-instance deployments) it is acquired
	// around the whole sequence in addition to the in-process mutex.
	dist   domain.LockManager
	self   common.Address
	logger *slog.Logger

	mu sync.Mutex
}

// Options carries the optional gateway collaborators.
type Options struct {
	DistributedLock domain.LockManager
}

// New creates a Gateway. self is the component's funds account on the ledger.
func New(
	reg *registry.Registry,
	est *registry.Estimator,
	orch *orchestrator.Orchestrator,
	book *ledger.Ledger,
	trades domain.TradeStore,
	emitter domain.Emitter,
	oracle domain.GasOracle,
	self common.Address,
	logger *slog.Logger,
	opts Options,
) *Gateway {
	return &Gateway{
		registry: reg,
		est:      est,
		orch:     orch,
		book:     book,
		trades:   trades,
		emitter:  emitter,
		oracle:   oracle,
		dist:     opts.DistributedLock,
		self:     self,
		logger:   logger.With(slog.String("component", "gateway")),
	}
}

// RequestArbitrage validates and executes one arbitrage request. Preconditions
// are checked in order, each a distinct failure kind: authorization, global
// pause, asset policy, gas-price ceiling, request invariants. No side effects
// occur before all checks pass; every failure after that rolls back the whole
// unit.
func (g *Gateway) RequestArbitrage(ctx context.Context, caller common.Address, req *domain.ArbitrageRequest) (domain.TradeResult, error) {
	started := time.Now().UTC()
	snap := g.registry.Snapshot()

	if !snap.IsAuthorized(caller) {
		return domain.TradeResult{}, fmt.Errorf("gateway: %w: caller %s", domain.ErrUnauthorized, caller.Hex())
	}
	if snap.Paused {
		return domain.TradeResult{}, fmt.Errorf("gateway: %w: system is paused", domain.ErrBadState)
	}
	pol := snap.AssetFor(req.BorrowAsset)
	if !pol.Supported {
		return domain.TradeResult{}, fmt.Errorf("gateway: %w: asset %s not supported", domain.ErrInvalidRequest, req.BorrowAsset.Hex())
	}
	if pol.Paused {
		return domain.TradeResult{}, fmt.Errorf("gateway: %w: asset %s is paused", domain.ErrInvalidRequest, req.BorrowAsset.Hex())
	}

	gasPrice, err := g.oracle.GasPrice(ctx)
	if err != nil {
		return domain.TradeResult{}, fmt.Errorf("gateway: %w: gas oracle: %v", domain.ErrExternalCall, err)
	}
	if gasPrice.Cmp(snap.MaxGasPriceWei) > 0 {
		return domain.TradeResult{}, fmt.Errorf("gateway: %w: gas price %s above ceiling %s",
			domain.ErrInvalidRequest, gasPrice, snap.MaxGasPriceWei)
	}

	if err := req.Validate(); err != nil {
		return domain.TradeResult{}, fmt.Errorf("gateway: %w", err)
	}
	if req.BorrowAmount.Cmp(pol.MaxTradeSize) > 0 {
		return domain.TradeResult{}, fmt.Errorf("gateway: %w: borrow %s exceeds cap %s",
			domain.ErrInvalidRequest, req.BorrowAmount, pol.MaxTradeSize)
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	// Re-entrancy guard: an explicit state flag, checked before the lock so a
	// nested call from inside a venue fails instead of deadlocking.
	if g.orch.Busy() {
		return domain.TradeResult{}, fmt.Errorf("gateway: %w: nested request during active callback", domain.ErrBadState)
	}

	if g.dist != nil {
		unlock, lockErr := g.dist.Acquire(ctx, lockKey, lockTTL)
		if lockErr != nil {
			return domain.TradeResult{}, fmt.Errorf("gateway: %w: %v", domain.ErrBadState, lockErr)
		}
		defer unlock()
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.execute(ctx, snap, caller, req, gasPrice, started)
}

// execute runs the borrow/swap/repay/settle sequence on one ledger
// transaction and finalizes the terminal outcome.
func (g *Gateway) execute(
	ctx context.Context,
	snap *domain.Params,
	caller common.Address,
	req *domain.ArbitrageRequest,
	gasPrice *big.Int,
	started time.Time,
) (domain.TradeResult, error) {
	tx := g.book.Begin()

	out, err := g.orch.Execute(ctx, tx, snap, req, caller, gasPrice)
	gasCost := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(snap.EstGasUnits))

	res := domain.TradeResult{
		RequestID:    req.ID,
		Caller:       caller,
		BorrowAsset:  req.BorrowAsset,
		BorrowAmount: new(big.Int).Set(req.BorrowAmount),
		GasCost:      gasCost,
		StartedAt:    started,
		FinishedAt:   time.Now().UTC(),
	}

	if err != nil {
		tx.Discard()
		res.Success = false
		res.Profit = shortfallOf(err)
		res.Reason = err.Error()

		g.emitter.Emit(ctx, domain.LoanExecutedEvent(req.BorrowAsset, req.BorrowAmount, out.Fee, false, res.Reason))
		g.journal(ctx, res)
		g.logger.WarnContext(ctx, "request reverted",
			slog.String("request_id", req.ID),
			slog.String("error", err.Error()),
		)
		return res, err
	}

	tx.Commit()

	res.Success = true
	res.Profit = out.Settlement.Profit
	res.BeneficiaryFee = out.Settlement.BeneficiaryFee
	res.NetProfit = out.Settlement.NetProfit
	res.Leg1Out = out.Leg1Out
	res.Leg2Out = out.Leg2Out

	if recErr := g.registry.RecordTrade(ctx, req.BorrowAsset, out.Settlement.Profit); recErr != nil {
		g.logger.ErrorContext(ctx, "counter update failed",
			slog.String("request_id", req.ID),
			slog.String("error", recErr.Error()),
		)
	}
	g.emitter.Emit(ctx, domain.LoanExecutedEvent(req.BorrowAsset, req.BorrowAmount, out.Fee, true, ""))
	g.emitter.Emit(ctx, domain.TradeExecutedEvent(res))
	g.journal(ctx, res)

	g.logger.InfoContext(ctx, "request settled",
		slog.String("request_id", req.ID),
		slog.String("asset", req.BorrowAsset.Hex()),
		slog.String("profit", res.Profit.String()),
		slog.String("beneficiary_fee", res.BeneficiaryFee.String()),
	)
	return res, nil
}

// journal persists the terminal outcome; journaling failures are logged, not
// surfaced, so they cannot flip a request's result.
func (g *Gateway) journal(ctx context.Context, res domain.TradeResult) {
	if g.trades == nil {
		return
	}
	if err := g.trades.Insert(ctx, res); err != nil {
		g.logger.WarnContext(ctx, "trade journal failed",
			slog.String("request_id", res.RequestID),
			slog.String("error", err.Error()),
		)
	}
}

// shortfallOf extracts the signed shortfall for the result record. Only
// repayment failures carry a meaningful negative figure; other reverts report
// zero profit.
func shortfallOf(err error) *big.Int {
	var repay *settle.RepaymentError
	if errors.As(err, &repay) {
		return new(big.Int).Set(repay.Shortfall)
	}
	return new(big.Int)
}
