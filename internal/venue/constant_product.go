package venue

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/flasharb/internal/domain"
	"github.com/alanyoungcy/flasharb/internal/ledger"
)

// ConstantProduct is a two-token x*y=k pool adapter. Its reserves are its own
// ledger balances, so a discarded transaction also rolls the pool back. The
// pool pulls exactly the trader's granted allowance for the input amount.
type ConstantProduct struct {
	addr   common.Address
	token0 common.Address
	token1 common.Address
	feeBps uint32
	book   *ledger.Ledger
}

// NewConstantProduct creates a pool adapter at addr trading token0/token1 with
// the given swap fee in basis points. Reserves are seeded by minting balances
// to addr on the ledger.
func NewConstantProduct(addr, token0, token1 common.Address, feeBps uint32, book *ledger.Ledger) *ConstantProduct {
	return &ConstantProduct{
		addr:   addr,
		token0: token0,
		token1: token1,
		feeBps: feeBps,
		book:   book,
	}
}

// Address returns the pool's ledger address.
func (p *ConstantProduct) Address() common.Address { return p.addr }

// Quote returns the output amount for swapping amountIn over committed
// reserves, without touching state.
func (p *ConstantProduct) Quote(_ context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, error) {
	if err := p.checkPair(tokenIn, tokenOut); err != nil {
		return nil, err
	}
	reserveIn := p.book.BalanceOf(tokenIn, p.addr)
	reserveOut := p.book.BalanceOf(tokenOut, p.addr)
	return p.amountOut(amountIn, reserveIn, reserveOut)
}

// Swap decodes the opaque payload, pulls the input amount from the trader via
// the allowance granted to the pool, and credits the output to the trader.
// Reserves are read inside tx, so legs executed earlier in the same request
// are visible.
func (p *ConstantProduct) Swap(_ context.Context, tx *ledger.Tx, trader common.Address, payload []byte) error {
	params, err := DecodeSwap(payload)
	if err != nil {
		return err
	}
	if err := p.checkPair(params.TokenIn, params.TokenOut); err != nil {
		return err
	}
	if params.AmountIn == nil || params.AmountIn.Sign() <= 0 {
		return fmt.Errorf("venue %s: input amount must be positive", p.addr.Hex())
	}

	reserveIn := tx.BalanceOf(params.TokenIn, p.addr)
	reserveOut := tx.BalanceOf(params.TokenOut, p.addr)
	out, err := p.amountOut(params.AmountIn, reserveIn, reserveOut)
	if err != nil {
		return err
	}
	if params.MinOut != nil && out.Cmp(params.MinOut) < 0 {
		return fmt.Errorf("venue %s: output %s below payload minimum %s", p.addr.Hex(), out, params.MinOut)
	}

	if err := tx.TransferFrom(params.TokenIn, p.addr, trader, p.addr, params.AmountIn); err != nil {
		return err
	}
	return tx.Transfer(params.TokenOut, p.addr, trader, out)
}

func (p *ConstantProduct) checkPair(tokenIn, tokenOut common.Address) error {
	ok := (tokenIn == p.token0 && tokenOut == p.token1) ||
		(tokenIn == p.token1 && tokenOut == p.token0)
	if !ok {
		return fmt.Errorf("venue %s: pair %s/%s not traded here", p.addr.Hex(), tokenIn.Hex(), tokenOut.Hex())
	}
	return nil
}

// amountOut is the fee-adjusted constant-product formula:
// out = reserveOut * inFee / (reserveIn*10000 + inFee), inFee = in*(10000-fee).
func (p *ConstantProduct) amountOut(amountIn, reserveIn, reserveOut *big.Int) (*big.Int, error) {
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, fmt.Errorf("venue %s: %w: empty reserves", p.addr.Hex(), domain.ErrExternalCall)
	}
	inFee := new(big.Int).Mul(amountIn, big.NewInt(int64(10000-p.feeBps)))
	num := new(big.Int).Mul(reserveOut, inFee)
	den := new(big.Int).Mul(reserveIn, big.NewInt(10000))
	den.Add(den, inFee)
	return num.Div(num, den), nil
}
