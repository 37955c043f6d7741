package venue

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/flasharb/internal/domain"
	"github.com/alanyoungcy/flasharb/internal/ledger"
)

var (
	tokenA   = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	tokenB   = common.HexToAddress("0x00000000000000000000000000000000000000B1")
	tokenC   = common.HexToAddress("0x00000000000000000000000000000000000000C1")
	poolAddr = common.HexToAddress("0x0000000000000000000000000000000000002001")
	trader   = common.HexToAddress("0x0000000000000000000000000000000000001000")
)

func TestSwapPayloadRoundTrip(t *testing.T) {
	in := SwapParams{
		TokenIn:  tokenA,
		TokenOut: tokenB,
		AmountIn: big.NewInt(123456789),
		MinOut:   big.NewInt(42),
	}
	data, err := EncodeSwap(in)
	if err != nil {
		t.Fatalf("EncodeSwap: %v", err)
	}
	out, err := DecodeSwap(data)
	if err != nil {
		t.Fatalf("DecodeSwap: %v", err)
	}
	if out.TokenIn != in.TokenIn || out.TokenOut != in.TokenOut {
		t.Errorf("tokens = %s/%s, want %s/%s", out.TokenIn.Hex(), out.TokenOut.Hex(), in.TokenIn.Hex(), in.TokenOut.Hex())
	}
	if out.AmountIn.Cmp(in.AmountIn) != 0 || out.MinOut.Cmp(in.MinOut) != 0 {
		t.Errorf("amounts = %s/%s, want %s/%s", out.AmountIn, out.MinOut, in.AmountIn, in.MinOut)
	}
}

func TestDecodeSwapRejectsGarbage(t *testing.T) {
	if _, err := DecodeSwap([]byte{0x01, 0x02, 0x03}); err == nil {
		t.Fatal("DecodeSwap accepted malformed payload")
	}
}

func TestConstantProductQuote(t *testing.T) {
	book := ledger.New()
	book.Mint(tokenA, poolAddr, big.NewInt(1000))
	book.Mint(tokenB, poolAddr, big.NewInt(1000))

	pool := NewConstantProduct(poolAddr, tokenA, tokenB, 30, book)

	// inFee = 100*9970 = 997000
	// out = 1000*997000 / (1000*10000 + 997000) = 997000000/10997000 = 90
	out, err := pool.Quote(context.Background(), tokenA, tokenB, big.NewInt(100))
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if out.Int64() != 90 {
		t.Errorf("Quote = %s, want 90", out)
	}
}

func TestConstantProductSwap(t *testing.T) {
	book := ledger.New()
	book.Mint(tokenA, poolAddr, big.NewInt(1000))
	book.Mint(tokenB, poolAddr, big.NewInt(1000))
	book.Mint(tokenA, trader, big.NewInt(100))

	pool := NewConstantProduct(poolAddr, tokenA, tokenB, 30, book)

	payload, err := EncodeSwap(SwapParams{
		TokenIn:  tokenA,
		TokenOut: tokenB,
		AmountIn: big.NewInt(100),
		MinOut:   big.NewInt(90),
	})
	if err != nil {
		t.Fatalf("EncodeSwap: %v", err)
	}

	tx := book.Begin()
	tx.Approve(tokenA, trader, poolAddr, big.NewInt(100))
	if err := pool.Swap(context.Background(), tx, trader, payload); err != nil {
		t.Fatalf("Swap: %v", err)
	}

	if got := tx.BalanceOf(tokenB, trader); got.Int64() != 90 {
		t.Errorf("trader tokenB = %s, want 90", got)
	}
	if got := tx.BalanceOf(tokenA, trader); got.Sign() != 0 {
		t.Errorf("trader tokenA = %s, want 0", got)
	}
	if got := tx.BalanceOf(tokenA, poolAddr); got.Int64() != 1100 {
		t.Errorf("pool tokenA = %s, want 1100", got)
	}
	if got := tx.BalanceOf(tokenB, poolAddr); got.Int64() != 910 {
		t.Errorf("pool tokenB = %s, want 910", got)
	}
}

func TestConstantProductSwapWithoutAllowance(t *testing.T) {
	book := ledger.New()
	book.Mint(tokenA, poolAddr, big.NewInt(1000))
	book.Mint(tokenB, poolAddr, big.NewInt(1000))
	book.Mint(tokenA, trader, big.NewInt(100))

	pool := NewConstantProduct(poolAddr, tokenA, tokenB, 30, book)
	payload, _ := EncodeSwap(SwapParams{
		TokenIn: tokenA, TokenOut: tokenB,
		AmountIn: big.NewInt(100), MinOut: big.NewInt(0),
	})

	tx := book.Begin()
	err := pool.Swap(context.Background(), tx, trader, payload)
	if !errors.Is(err, domain.ErrInsufficientAllowance) {
		t.Fatalf("error = %v, want ErrInsufficientAllowance", err)
	}
}

func TestConstantProductRejectsWrongPair(t *testing.T) {
	book := ledger.New()
	book.Mint(tokenA, poolAddr, big.NewInt(1000))
	book.Mint(tokenB, poolAddr, big.NewInt(1000))

	pool := NewConstantProduct(poolAddr, tokenA, tokenB, 30, book)
	if _, err := pool.Quote(context.Background(), tokenA, tokenC, big.NewInt(1)); err == nil {
		t.Fatal("Quote accepted an untraded pair")
	}
}

func TestConstantProductPayloadMinimum(t *testing.T) {
	book := ledger.New()
	book.Mint(tokenA, poolAddr, big.NewInt(1000))
	book.Mint(tokenB, poolAddr, big.NewInt(1000))
	book.Mint(tokenA, trader, big.NewInt(100))

	pool := NewConstantProduct(poolAddr, tokenA, tokenB, 30, book)
	payload, _ := EncodeSwap(SwapParams{
		TokenIn: tokenA, TokenOut: tokenB,
		AmountIn: big.NewInt(100), MinOut: big.NewInt(91), // quote is 90
	})

	tx := book.Begin()
	tx.Approve(tokenA, trader, poolAddr, big.NewInt(100))
	if err := pool.Swap(context.Background(), tx, trader, payload); err == nil {
		t.Fatal("Swap cleared a payload minimum above its own quote")
	}
}

func TestRegistryLookup(t *testing.T) {
	book := ledger.New()
	reg := NewRegistry()
	pool := NewConstantProduct(poolAddr, tokenA, tokenB, 30, book)
	reg.Register(pool)

	got, err := reg.Get(poolAddr)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Address() != poolAddr {
		t.Errorf("Address = %s, want %s", got.Address().Hex(), poolAddr.Hex())
	}

	if _, err := reg.Get(tokenC); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get unknown venue = %v, want ErrNotFound", err)
	}
}
