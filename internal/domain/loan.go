package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// LoanContext is the ephemeral record attached to a borrow instruction. It
// exists only for the duration of one atomic operation and is consumed exactly
// once by the loan callback; it is never persisted.
type LoanContext struct {
	// Token is a single-use identifier minted when the borrow is requested.
	// The callback consumes it; a second callback carrying the same token is
	// rejected.
	Token string

	Asset     common.Address
	Principal *big.Int
	Fee       *big.Int
	Initiator common.Address

	// GasPriceWei is the resource-price snapshot taken at entry. All gas cost
	// accounting for this request uses this value.
	GasPriceWei *big.Int
	StartedAt   time.Time

	Request *ArbitrageRequest
}
