package domain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// VenueCall describes one swap leg: the venue to invoke and the opaque,
// venue-specific payload it will decode. The payload is produced off-process
// by the opportunity scanner and is not interpreted here.
type VenueCall struct {
	Venue   common.Address
	Payload []byte
}

// ArbitrageRequest is the caller-supplied description of one flash-credit
// arbitrage attempt: borrow BorrowAmount of BorrowAsset, swap TokenIn ->
// TokenOut on Legs[0], swap back on Legs[1], repay the loan plus fee, keep the
// surplus.
type ArbitrageRequest struct {
	ID          string
	BorrowAsset common.Address
	// BorrowAmount is in the asset's smallest unit.
	BorrowAmount *big.Int
	TokenIn      common.Address
	TokenOut     common.Address
	// AmountOutMin is the minimum acceptable intermediate balance after leg 1.
	AmountOutMin *big.Int
	Legs         [2]VenueCall

	// Expiry is optional. When set, it is checked exactly once at entry;
	// the zero value means the request never goes stale.
	Expiry time.Time
}

// Validate checks the request's intrinsic invariants. Cap and asset-policy
// checks are performed separately against the configuration snapshot.
func (r *ArbitrageRequest) Validate() error {
	if r.BorrowAmount == nil || r.BorrowAmount.Sign() <= 0 {
		return fmt.Errorf("%w: borrow amount must be positive", ErrInvalidRequest)
	}
	if r.AmountOutMin == nil || r.AmountOutMin.Sign() <= 0 {
		return fmt.Errorf("%w: minimum output must be positive", ErrInvalidRequest)
	}
	if r.BorrowAsset == (common.Address{}) {
		return fmt.Errorf("%w: borrow asset must not be the zero address", ErrInvalidRequest)
	}
	if r.TokenIn == (common.Address{}) || r.TokenOut == (common.Address{}) {
		return fmt.Errorf("%w: token addresses must not be zero", ErrInvalidRequest)
	}
	if r.TokenIn == r.TokenOut {
		return fmt.Errorf("%w: token_in and token_out must differ", ErrInvalidRequest)
	}
	if r.TokenIn != r.BorrowAsset {
		return fmt.Errorf("%w: token_in must be the borrowed asset", ErrInvalidRequest)
	}
	for i, leg := range r.Legs {
		if leg.Venue == (common.Address{}) {
			return fmt.Errorf("%w: leg %d venue must not be zero", ErrInvalidRequest, i+1)
		}
	}
	if !r.Expiry.IsZero() && time.Now().UTC().After(r.Expiry) {
		return fmt.Errorf("%w: expired at %s", ErrExpired, r.Expiry.Format(time.RFC3339))
	}
	return nil
}
