package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AssetPolicy is the per-asset trading policy.
type AssetPolicy struct {
	Supported bool
	Paused    bool
	// MaxTradeSize caps the borrow amount for this asset, in smallest units.
	MaxTradeSize *big.Int
}

// AssetStats holds per-asset cumulative counters. Counters are updated only
// when a request settles.
type AssetStats struct {
	Trades uint64
	Profit *big.Int
}

// Params is one immutable version of the process-wide configuration state.
// The registry publishes a new version on every mutation; request processing
// reads exactly one snapshot at entry and never observes a partial update.
type Params struct {
	Version uint64

	Owner          common.Address
	FeeBeneficiary common.Address

	// MaxGasPriceWei is the resource-price ceiling checked at entry.
	MaxGasPriceWei *big.Int
	// MinProfitBps is the profitability heuristic threshold, 0-1000.
	MinProfitBps uint32
	// MaxSlippageBps is the slippage tolerance ceiling, 0-500.
	MaxSlippageBps uint32
	// BeneficiaryFeeBps is the fee beneficiary's cut of realized profit, 0-100.
	BeneficiaryFeeBps uint32
	// EstGasUnits is the gas-unit estimate used by the profitability heuristic.
	EstGasUnits uint64

	Paused bool

	Executors map[common.Address]bool
	Assets    map[common.Address]AssetPolicy

	TotalTrades uint64
	TotalProfit *big.Int
	Stats       map[common.Address]AssetStats
}

// Clone returns a deep copy suitable for mutation before republishing.
func (p *Params) Clone() *Params {
	cp := *p
	cp.MaxGasPriceWei = new(big.Int).Set(p.MaxGasPriceWei)
	cp.TotalProfit = new(big.Int).Set(p.TotalProfit)
	cp.Executors = make(map[common.Address]bool, len(p.Executors))
	for k, v := range p.Executors {
		cp.Executors[k] = v
	}
	cp.Assets = make(map[common.Address]AssetPolicy, len(p.Assets))
	for k, v := range p.Assets {
		if v.MaxTradeSize != nil {
			v.MaxTradeSize = new(big.Int).Set(v.MaxTradeSize)
		}
		cp.Assets[k] = v
	}
	cp.Stats = make(map[common.Address]AssetStats, len(p.Stats))
	for k, v := range p.Stats {
		if v.Profit != nil {
			v.Profit = new(big.Int).Set(v.Profit)
		}
		cp.Stats[k] = v
	}
	return &cp
}

// IsAuthorized reports whether addr may submit arbitrage requests.
func (p *Params) IsAuthorized(addr common.Address) bool {
	return addr == p.Owner || p.Executors[addr]
}

// AssetFor returns the policy for the asset; the zero policy (unsupported)
// is returned for unknown assets.
func (p *Params) AssetFor(asset common.Address) AssetPolicy {
	return p.Assets[asset]
}
