package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/flasharb/internal/domain"
)

// WithdrawProfit transfers the component's full balance of asset to the
// owner. Owner-only; blocked while paused (use EmergencyWithdraw then).
func (g *Gateway) WithdrawProfit(ctx context.Context, caller, asset common.Address) (*big.Int, error) {
	snap := g.registry.Snapshot()
	if caller != snap.Owner {
		return nil, fmt.Errorf("gateway: %w: caller %s is not the owner", domain.ErrUnauthorized, caller.Hex())
	}
	if snap.Paused {
		return nil, fmt.Errorf("gateway: %w: system is paused", domain.ErrBadState)
	}
	amount, err := g.sweep(ctx, asset, snap.Owner)
	if err != nil {
		return nil, err
	}
	g.emitter.Emit(ctx, domain.Event{
		Type: domain.EventProfitWithdrawn,
		At:   time.Now().UTC(),
		Fields: map[string]any{
			"asset":  asset.Hex(),
			"amount": amount.String(),
			"to":     snap.Owner.Hex(),
		},
	})
	g.logger.InfoContext(ctx, "profit withdrawn",
		slog.String("asset", asset.Hex()),
		slog.String("amount", amount.String()),
	)
	return amount, nil
}

// EmergencyWithdraw sweeps the component's full balance of asset to the
// owner. Owner-only; deliberately allowed while paused.
func (g *Gateway) EmergencyWithdraw(ctx context.Context, caller, asset common.Address) (*big.Int, error) {
	snap := g.registry.Snapshot()
	if caller != snap.Owner {
		return nil, fmt.Errorf("gateway: %w: caller %s is not the owner", domain.ErrUnauthorized, caller.Hex())
	}
	amount, err := g.sweep(ctx, asset, snap.Owner)
	if err != nil {
		return nil, err
	}
	g.emitter.Emit(ctx, domain.Event{
		Type: domain.EventEmergencyWithdraw,
		At:   time.Now().UTC(),
		Fields: map[string]any{
			"asset":  asset.Hex(),
			"amount": amount.String(),
			"to":     snap.Owner.Hex(),
		},
	})
	g.logger.WarnContext(ctx, "emergency withdrawal",
		slog.String("asset", asset.Hex()),
		slog.String("amount", amount.String()),
	)
	return amount, nil
}

// sweep moves the component's entire asset balance to `to` in its own
// committed transaction.
func (g *Gateway) sweep(_ context.Context, asset, to common.Address) (*big.Int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	tx := g.book.Begin()
	amount := tx.BalanceOf(asset, g.self)
	if amount.Sign() == 0 {
		tx.Discard()
		return new(big.Int), nil
	}
	if err := tx.Transfer(asset, g.self, to, amount); err != nil {
		tx.Discard()
		return nil, fmt.Errorf("gateway: sweep %s: %w", asset.Hex(), err)
	}
	tx.Commit()
	return amount, nil
}

// GetStats returns the cumulative counters for one asset.
func (g *Gateway) GetStats(asset common.Address) domain.AssetStats {
	return g.registry.Stats(asset)
}

// GetConfiguration returns the current configuration snapshot.
func (g *Gateway) GetConfiguration() *domain.Params {
	return g.registry.Snapshot()
}

// GetTokenStatus returns the policy for one asset.
func (g *Gateway) GetTokenStatus(asset common.Address) domain.AssetPolicy {
	return g.registry.Snapshot().AssetFor(asset)
}

// ListSupportedAssets returns every currently supported asset address.
func (g *Gateway) ListSupportedAssets() []common.Address {
	return g.registry.SupportedAssets()
}

// EstimateLoanFee returns the facility fee for borrowing amount of asset.
func (g *Gateway) EstimateLoanFee(asset common.Address, amount *big.Int) *big.Int {
	return g.est.EstimateLoanFee(asset, amount)
}

// IsProfitable runs the profitability heuristic against the current gas
// price. It never consults live venue quotes.
func (g *Gateway) IsProfitable(ctx context.Context, req *domain.ArbitrageRequest) (bool, *big.Int, error) {
	gasPrice, err := g.oracle.GasPrice(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("gateway: %w: gas oracle: %v", domain.ErrExternalCall, err)
	}
	ok, est := g.est.IsProfitable(req, gasPrice)
	return ok, est, nil
}
