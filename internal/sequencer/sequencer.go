// Package sequencer executes the two swap legs of an arbitrage request over
// the transactional ledger, enforcing exact allowances and the per-request
// minimum-output constraint.
package sequencer

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/flasharb/internal/domain"
	"github.com/alanyoungcy/flasharb/internal/ledger"
	"github.com/alanyoungcy/flasharb/internal/venue"
)

// Sequencer runs swap legs for a fixed trader account (the component that
// holds the borrowed funds).
type Sequencer struct {
	venues *venue.Registry
	trader common.Address
	logger *slog.Logger
}

// New creates a Sequencer that trades from the given account.
func New(venues *venue.Registry, trader common.Address, logger *slog.Logger) *Sequencer {
	return &Sequencer{
		venues: venues,
		trader: trader,
		logger: logger.With(slog.String("component", "sequencer")),
	}
}

// ExecuteLeg grants the venue an allowance of exactly inputAmount, invokes it
// with the opaque payload, and resets the allowance to zero unconditionally so
// no residual approval survives the call. The returned amount is the observed
// balance delta of outputAsset; venue return values are not trusted.
func (s *Sequencer) ExecuteLeg(
	ctx context.Context,
	tx *ledger.Tx,
	call domain.VenueCall,
	inputAsset common.Address,
	inputAmount *big.Int,
	outputAsset common.Address,
) (*big.Int, error) {
	v, err := s.venues.Get(call.Venue)
	if err != nil {
		return nil, fmt.Errorf("sequencer: %w: %v", domain.ErrExternalCall, err)
	}

	before := tx.BalanceOf(outputAsset, s.trader)

	tx.Approve(inputAsset, s.trader, call.Venue, inputAmount)
	swapErr := v.Swap(ctx, tx, s.trader, call.Payload)
	// Residual approvals are revoked even when the venue call fails.
	tx.Approve(inputAsset, s.trader, call.Venue, new(big.Int))

	if swapErr != nil {
		return nil, fmt.Errorf("sequencer: %w: venue %s: %v", domain.ErrExternalCall, call.Venue.Hex(), swapErr)
	}

	after := tx.BalanceOf(outputAsset, s.trader)
	out := new(big.Int).Sub(after, before)
	if out.Sign() <= 0 {
		return nil, fmt.Errorf("sequencer: %w: venue %s produced no output", domain.ErrExternalCall, call.Venue.Hex())
	}
	return out, nil
}

// Run executes both legs of req: borrow asset -> intermediate on leg 1,
// intermediate -> borrow asset on leg 2. After leg 1 the intermediate balance
// must meet the request's minimum output, otherwise the run fails with
// ErrSlippage.
func (s *Sequencer) Run(ctx context.Context, tx *ledger.Tx, req *domain.ArbitrageRequest) (leg1Out, leg2Out *big.Int, err error) {
	leg1Out, err = s.ExecuteLeg(ctx, tx, req.Legs[0], req.TokenIn, req.BorrowAmount, req.TokenOut)
	if err != nil {
		return nil, nil, err
	}

	intermediate := tx.BalanceOf(req.TokenOut, s.trader)
	if intermediate.Cmp(req.AmountOutMin) < 0 {
		return nil, nil, fmt.Errorf("sequencer: %w: intermediate balance %s below minimum %s",
			domain.ErrSlippage, intermediate, req.AmountOutMin)
	}

	s.logger.DebugContext(ctx, "leg 1 complete",
		slog.String("request_id", req.ID),
		slog.String("out", leg1Out.String()),
	)

	leg2Out, err = s.ExecuteLeg(ctx, tx, req.Legs[1], req.TokenOut, intermediate, req.TokenIn)
	if err != nil {
		return nil, nil, err
	}

	s.logger.DebugContext(ctx, "leg 2 complete",
		slog.String("request_id", req.ID),
		slog.String("out", leg2Out.String()),
	)
	return leg1Out, leg2Out, nil
}

// Trader returns the account the sequencer trades from.
func (s *Sequencer) Trader() common.Address { return s.trader }
