// Package gasprice provides resource-price oracles. The gateway reads the
// current price once per request and compares it against the configured
// ceiling.
package gasprice

import (
	"context"
	"math/big"
	"sync/atomic"

	"github.com/alanyoungcy/flasharb/internal/domain"
)

// Static is a fixed-price oracle. Useful for tests and for deployments
// without a live feed; the price can still be swapped at runtime.
type Static struct {
	price atomic.Pointer[big.Int]
}

var _ domain.GasOracle = (*Static)(nil)

// NewStatic creates an oracle that always reports the given price in wei.
func NewStatic(priceWei *big.Int) *Static {
	s := &Static{}
	s.Set(priceWei)
	return s
}

// Set replaces the reported price.
func (s *Static) Set(priceWei *big.Int) {
	s.price.Store(new(big.Int).Set(priceWei))
}

// GasPrice returns the configured price.
func (s *Static) GasPrice(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(s.price.Load()), nil
}
