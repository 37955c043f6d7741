// Package registry owns the durable configuration state: trade limits,
// per-asset policy, executor authorization, pause flags, and the cumulative
// trade counters. Every mutation is owner-gated, bounds-checked, persisted,
// and published as a fresh immutable snapshot; request processing reads one
// snapshot at entry and never sees a partial update.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/flasharb/internal/domain"
)

// Bounds for the owner-tunable parameters.
const (
	MaxMinProfitBps      = 1000 // 10%
	MaxSlippageBpsLimit  = 500  // 5%
	MaxBeneficiaryFeeBps = 100  // 1%
)

// MinGasPriceFloorWei is the lowest accepted gas-price ceiling (1 gwei).
var MinGasPriceFloorWei = big.NewInt(1_000_000_000)

// Registry is the sole owner and mutator of the configuration state.
type Registry struct {
	mu      sync.Mutex // serializes mutations; reads go through snap
	snap    atomic.Pointer[domain.Params]
	store   domain.ParamsStore
	emitter domain.Emitter
	logger  *slog.Logger
}

// New creates a Registry starting from initial. The initial state is persisted
// so a restart without mutations still finds version 1.
func New(ctx context.Context, initial *domain.Params, store domain.ParamsStore, emitter domain.Emitter, logger *slog.Logger) (*Registry, error) {
	r := &Registry{
		store:   store,
		emitter: emitter,
		logger:  logger.With(slog.String("component", "registry")),
	}
	p := initial.Clone()
	if p.Version == 0 {
		p.Version = 1
	}
	if err := store.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("registry: persist initial state: %w", err)
	}
	r.snap.Store(p)
	return r, nil
}

// Load restores a Registry from the params store.
func Load(ctx context.Context, store domain.ParamsStore, emitter domain.Emitter, logger *slog.Logger) (*Registry, error) {
	p, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: load state: %w", err)
	}
	r := &Registry{
		store:   store,
		emitter: emitter,
		logger:  logger.With(slog.String("component", "registry")),
	}
	r.snap.Store(p)
	return r, nil
}

// Snapshot returns the current immutable configuration version. The returned
// value must not be mutated.
func (r *Registry) Snapshot() *domain.Params {
	return r.snap.Load()
}

// mutate runs fn against a clone of the current state under the mutation lock,
// persists the bumped version, publishes it, and emits event. fn returning an
// error abandons the mutation entirely.
func (r *Registry) mutate(ctx context.Context, caller common.Address, allowWhilePaused bool, event string, fields map[string]any, fn func(p *domain.Params) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	if caller != cur.Owner {
		return fmt.Errorf("registry: %w: caller %s is not the owner", domain.ErrUnauthorized, caller.Hex())
	}
	if cur.Paused && !allowWhilePaused {
		return fmt.Errorf("registry: %w: system is paused", domain.ErrBadState)
	}

	next := cur.Clone()
	if err := fn(next); err != nil {
		return err
	}
	next.Version = cur.Version + 1

	if err := r.store.Save(ctx, next); err != nil {
		return fmt.Errorf("registry: persist version %d: %w", next.Version, err)
	}
	r.snap.Store(next)

	fields["version"] = next.Version
	r.emitter.Emit(ctx, domain.Event{Type: event, At: time.Now().UTC(), Fields: fields})
	r.logger.InfoContext(ctx, "configuration updated",
		slog.String("event", event),
		slog.Uint64("version", next.Version),
	)
	return nil
}

// SetMinProfitBps sets the profitability threshold, 0-1000 bps.
func (r *Registry) SetMinProfitBps(ctx context.Context, caller common.Address, bps uint32) error {
	if bps > MaxMinProfitBps {
		return fmt.Errorf("registry: %w: min profit %d bps exceeds %d", domain.ErrInvalidRequest, bps, MaxMinProfitBps)
	}
	return r.mutate(ctx, caller, false, domain.EventParamsUpdated,
		map[string]any{"param": "min_profit_bps", "value": bps},
		func(p *domain.Params) error { p.MinProfitBps = bps; return nil })
}

// SetMaxSlippageBps sets the slippage ceiling, 0-500 bps.
func (r *Registry) SetMaxSlippageBps(ctx context.Context, caller common.Address, bps uint32) error {
	if bps > MaxSlippageBpsLimit {
		return fmt.Errorf("registry: %w: slippage %d bps exceeds %d", domain.ErrInvalidRequest, bps, MaxSlippageBpsLimit)
	}
	return r.mutate(ctx, caller, false, domain.EventParamsUpdated,
		map[string]any{"param": "max_slippage_bps", "value": bps},
		func(p *domain.Params) error { p.MaxSlippageBps = bps; return nil })
}

// SetMaxGasPrice sets the resource-price ceiling; it must be at least the
// 1 gwei floor.
func (r *Registry) SetMaxGasPrice(ctx context.Context, caller common.Address, wei *big.Int) error {
	if wei == nil || wei.Cmp(MinGasPriceFloorWei) < 0 {
		return fmt.Errorf("registry: %w: gas price ceiling below %s wei floor", domain.ErrInvalidRequest, MinGasPriceFloorWei)
	}
	v := new(big.Int).Set(wei)
	return r.mutate(ctx, caller, false, domain.EventParamsUpdated,
		map[string]any{"param": "max_gas_price_wei", "value": v.String()},
		func(p *domain.Params) error { p.MaxGasPriceWei = v; return nil })
}

// SetBeneficiaryFeeBps sets the fee beneficiary's cut, 0-100 bps.
func (r *Registry) SetBeneficiaryFeeBps(ctx context.Context, caller common.Address, bps uint32) error {
	if bps > MaxBeneficiaryFeeBps {
		return fmt.Errorf("registry: %w: beneficiary fee %d bps exceeds %d", domain.ErrInvalidRequest, bps, MaxBeneficiaryFeeBps)
	}
	return r.mutate(ctx, caller, false, domain.EventParamsUpdated,
		map[string]any{"param": "beneficiary_fee_bps", "value": bps},
		func(p *domain.Params) error { p.BeneficiaryFeeBps = bps; return nil })
}

// SetExecutor toggles an address in the authorized-executor set.
func (r *Registry) SetExecutor(ctx context.Context, caller, executor common.Address, authorized bool) error {
	if executor == (common.Address{}) {
		return fmt.Errorf("registry: %w: executor must not be the zero address", domain.ErrInvalidRequest)
	}
	return r.mutate(ctx, caller, false, domain.EventExecutorChanged,
		map[string]any{"executor": executor.Hex(), "authorized": authorized},
		func(p *domain.Params) error {
			if authorized {
				p.Executors[executor] = true
			} else {
				delete(p.Executors, executor)
			}
			return nil
		})
}

// SetAssetSupport enables or disables an asset. Enabling requires a positive
// max trade size; disabling clears the policy.
func (r *Registry) SetAssetSupport(ctx context.Context, caller, asset common.Address, supported bool, maxTradeSize *big.Int) error {
	if asset == (common.Address{}) {
		return fmt.Errorf("registry: %w: asset must not be the zero address", domain.ErrInvalidRequest)
	}
	if supported && (maxTradeSize == nil || maxTradeSize.Sign() <= 0) {
		return fmt.Errorf("registry: %w: max trade size must be positive when enabling", domain.ErrInvalidRequest)
	}
	fields := map[string]any{"asset": asset.Hex(), "supported": supported}
	if supported {
		fields["max_trade_size"] = maxTradeSize.String()
	}
	return r.mutate(ctx, caller, false, domain.EventTokenChanged, fields,
		func(p *domain.Params) error {
			if supported {
				p.Assets[asset] = domain.AssetPolicy{Supported: true, MaxTradeSize: new(big.Int).Set(maxTradeSize)}
			} else {
				delete(p.Assets, asset)
			}
			return nil
		})
}

// SetAssetPaused pauses or resumes a single supported asset.
func (r *Registry) SetAssetPaused(ctx context.Context, caller, asset common.Address, paused bool) error {
	return r.mutate(ctx, caller, false, domain.EventTokenChanged,
		map[string]any{"asset": asset.Hex(), "paused": paused},
		func(p *domain.Params) error {
			pol, ok := p.Assets[asset]
			if !ok || !pol.Supported {
				return fmt.Errorf("registry: %w: asset %s not supported", domain.ErrInvalidRequest, asset.Hex())
			}
			pol.Paused = paused
			p.Assets[asset] = pol
			return nil
		})
}

// Pause halts every mutating entry point except Unpause and emergency
// withdrawal.
func (r *Registry) Pause(ctx context.Context, caller common.Address) error {
	return r.mutate(ctx, caller, false, domain.EventParamsUpdated,
		map[string]any{"param": "paused", "value": true},
		func(p *domain.Params) error { p.Paused = true; return nil })
}

// Unpause resumes normal operation. It is allowed while paused.
func (r *Registry) Unpause(ctx context.Context, caller common.Address) error {
	return r.mutate(ctx, caller, true, domain.EventParamsUpdated,
		map[string]any{"param": "paused", "value": false},
		func(p *domain.Params) error { p.Paused = false; return nil })
}

// RecordTrade moves the cumulative counters after a settled request. It is
// never called for reverted attempts.
func (r *Registry) RecordTrade(ctx context.Context, asset common.Address, profit *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	next := cur.Clone()
	next.Version = cur.Version + 1
	next.TotalTrades++
	next.TotalProfit.Add(next.TotalProfit, profit)
	st := next.Stats[asset]
	st.Trades++
	if st.Profit == nil {
		st.Profit = new(big.Int)
	}
	st.Profit.Add(st.Profit, profit)
	next.Stats[asset] = st

	if err := r.store.Save(ctx, next); err != nil {
		return fmt.Errorf("registry: persist counters: %w", err)
	}
	r.snap.Store(next)
	return nil
}

// Stats returns the cumulative counters for one asset.
func (r *Registry) Stats(asset common.Address) domain.AssetStats {
	p := r.snap.Load()
	st, ok := p.Stats[asset]
	if !ok {
		return domain.AssetStats{Profit: new(big.Int)}
	}
	return domain.AssetStats{Trades: st.Trades, Profit: new(big.Int).Set(st.Profit)}
}

// SupportedAssets lists every currently supported asset address.
func (r *Registry) SupportedAssets() []common.Address {
	p := r.snap.Load()
	out := make([]common.Address, 0, len(p.Assets))
	for addr, pol := range p.Assets {
		if pol.Supported {
			out = append(out, addr)
		}
	}
	return out
}
