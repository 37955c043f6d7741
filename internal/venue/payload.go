package venue

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// SwapParams is the decoded form of an opaque leg payload:
// (address tokenIn, address tokenOut, uint256 amountIn, uint256 minOut).
type SwapParams struct {
	TokenIn  common.Address
	TokenOut common.Address
	AmountIn *big.Int
	MinOut   *big.Int
}

var swapArgs abi.Arguments

func init() {
	addressTy, err := abi.NewType("address", "", nil)
	if err != nil {
		panic(err)
	}
	uint256Ty, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic(err)
	}
	swapArgs = abi.Arguments{
		{Name: "tokenIn", Type: addressTy},
		{Name: "tokenOut", Type: addressTy},
		{Name: "amountIn", Type: uint256Ty},
		{Name: "minOut", Type: uint256Ty},
	}
}

// EncodeSwap packs swap parameters into the opaque payload format carried by
// a request leg.
func EncodeSwap(p SwapParams) ([]byte, error) {
	return swapArgs.Pack(p.TokenIn, p.TokenOut, p.AmountIn, p.MinOut)
}

// DecodeSwap unpacks an opaque leg payload.
func DecodeSwap(data []byte) (SwapParams, error) {
	vals, err := swapArgs.Unpack(data)
	if err != nil {
		return SwapParams{}, fmt.Errorf("venue: decode payload: %w", err)
	}
	if len(vals) != 4 {
		return SwapParams{}, fmt.Errorf("venue: decode payload: got %d values, want 4", len(vals))
	}
	p := SwapParams{
		TokenIn:  vals[0].(common.Address),
		TokenOut: vals[1].(common.Address),
		AmountIn: vals[2].(*big.Int),
		MinOut:   vals[3].(*big.Int),
	}
	return p, nil
}
