// Package orchestrator coordinates one flash-credit arbitrage cycle: borrow
// request, loan callback, swap execution, and settlement. The cycle is an
// explicit finite-state machine; every failure leaves the caller discarding
// the surrounding ledger transaction, so an aborted attempt has no effects.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/alanyoungcy/flasharb/internal/domain"
	"github.com/alanyoungcy/flasharb/internal/ledger"
	"github.com/alanyoungcy/flasharb/internal/lender"
	"github.com/alanyoungcy/flasharb/internal/sequencer"
	"github.com/alanyoungcy/flasharb/internal/settle"
)

// State is the loan machine state.
type State int32

const (
	StateIdle State = iota
	StateLoanRequested
	StateInCallback
	StateSettled
	StateReverted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoanRequested:
		return "loan_requested"
	case StateInCallback:
		return "in_callback"
	case StateSettled:
		return "settled"
	case StateReverted:
		return "reverted"
	default:
		return "unknown"
	}
}

// Outcome is what one completed cycle produced.
type Outcome struct {
	Settlement settle.Settlement
	Leg1Out    *big.Int
	Leg2Out    *big.Int
	Fee        *big.Int
}

// Orchestrator owns the loan state machine. One orchestrator serves one
// request at a time; the gateway serializes access and consults Busy for the
// re-entrancy guard.
type Orchestrator struct {
	facility lender.Facility
	seq      *sequencer.Sequencer
	acct     *settle.Accountant
	self     common.Address
	logger   *slog.Logger

	// state is an explicit flag, not call-stack detection: Busy is readable
	// from a nested call without touching any lock.
	state atomic.Int32

	// Per-request scratch, valid only between Execute entry and return.
	pending     *domain.LoanContext
	beneficiary common.Address
	cutBps      uint32
	outcome     Outcome
}

// New creates an Orchestrator. self is the account that receives and repays
// loans (the component's own funds account).
func New(facility lender.Facility, seq *sequencer.Sequencer, acct *settle.Accountant, self common.Address, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		facility: facility,
		seq:      seq,
		acct:     acct,
		self:     self,
		logger:   logger.With(slog.String("component", "orchestrator")),
	}
}

// Busy reports whether a cycle is in flight. A nested request observed while
// Busy must fail with ErrBadState.
func (o *Orchestrator) Busy() bool {
	return State(o.state.Load()) != StateIdle
}

// Execute runs one full borrow/swap/repay/settle cycle on tx. On error the
// caller must discard tx; on success the caller commits it. Counters and
// journals are the caller's responsibility.
func (o *Orchestrator) Execute(
	ctx context.Context,
	tx *ledger.Tx,
	snap *domain.Params,
	req *domain.ArbitrageRequest,
	caller common.Address,
	gasPriceWei *big.Int,
) (Outcome, error) {
	if !o.state.CompareAndSwap(int32(StateIdle), int32(StateLoanRequested)) {
		return Outcome{}, fmt.Errorf("orchestrator: %w: cycle already in flight", domain.ErrBadState)
	}
	defer o.state.Store(int32(StateIdle))

	fee := o.facility.LoanFee(req.BorrowAsset, req.BorrowAmount)
	loan := &domain.LoanContext{
		Token:       uuid.New().String(),
		Asset:       req.BorrowAsset,
		Principal:   new(big.Int).Set(req.BorrowAmount),
		Fee:         fee,
		Initiator:   caller,
		GasPriceWei: gasPriceWei,
		StartedAt:   time.Now().UTC(),
		Request:     req,
	}
	o.pending = loan
	o.beneficiary = snap.FeeBeneficiary
	o.cutBps = snap.BeneficiaryFeeBps
	o.outcome = Outcome{Fee: fee}
	defer func() { o.pending = nil }()

	o.logger.DebugContext(ctx, "loan requested",
		slog.String("request_id", req.ID),
		slog.String("asset", req.BorrowAsset.Hex()),
		slog.String("amount", req.BorrowAmount.String()),
		slog.String("fee", fee.String()),
	)

	if err := o.facility.FlashLoan(ctx, tx, o.self, o, req.BorrowAsset, req.BorrowAmount, loan); err != nil {
		o.state.Store(int32(StateReverted))
		return Outcome{Fee: fee}, err
	}

	if State(o.state.Load()) != StateInCallback {
		// The facility returned success without ever invoking the callback.
		o.state.Store(int32(StateReverted))
		return Outcome{Fee: fee}, fmt.Errorf("orchestrator: %w: facility skipped callback", domain.ErrInvalidCallback)
	}

	o.state.Store(int32(StateSettled))
	return o.outcome, nil
}

// OnFlashLoan is the fixed callback entry point invoked by the lending
// facility after it transfers the principal. It verifies the caller identity
// and machine state, consumes the single-use loan context, then delegates to
// the swap sequencer and the settlement accountant.
func (o *Orchestrator) OnFlashLoan(
	ctx context.Context,
	tx *ledger.Tx,
	facility common.Address,
	asset common.Address,
	amount, fee *big.Int,
	data any,
) error {
	if facility != o.facility.Address() {
		return fmt.Errorf("orchestrator: %w: unexpected lender %s", domain.ErrInvalidCallback, facility.Hex())
	}
	if !o.state.CompareAndSwap(int32(StateLoanRequested), int32(StateInCallback)) {
		return fmt.Errorf("orchestrator: %w: state %s, want %s",
			domain.ErrInvalidCallback, State(o.state.Load()), StateLoanRequested)
	}

	loan, ok := data.(*domain.LoanContext)
	if !ok || o.pending == nil || loan.Token != o.pending.Token {
		return fmt.Errorf("orchestrator: %w: unknown loan context", domain.ErrInvalidCallback)
	}
	// Consume the context token; a replayed callback finds nothing to match.
	o.pending = nil

	if loan.Asset != asset || loan.Principal.Cmp(amount) != 0 {
		return fmt.Errorf("orchestrator: %w: loan terms differ from context", domain.ErrInvalidCallback)
	}
	loan.Fee = fee

	leg1, leg2, err := o.seq.Run(ctx, tx, loan.Request)
	if err != nil {
		return err
	}

	settlement, err := o.acct.Settle(ctx, tx, loan, o.facility.Address(), o.beneficiary, o.cutBps)
	if err != nil {
		return err
	}

	o.outcome = Outcome{
		Settlement: settlement,
		Leg1Out:    leg1,
		Leg2Out:    leg2,
		Fee:        fee,
	}
	return nil
}
