package ledger

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/flasharb/internal/domain"
)

var (
	tokenA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	alice  = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	bob    = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol  = common.HexToAddress("0x0000000000000000000000000000000000000ca0")
)

func bi(v int64) *big.Int { return big.NewInt(v) }

func TestTransferCommit(t *testing.T) {
	l := New()
	l.Mint(tokenA, alice, bi(100))

	tx := l.Begin()
	if err := tx.Transfer(tokenA, alice, bob, bi(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	// Committed state unchanged until Commit.
	if got := l.BalanceOf(tokenA, alice); got.Cmp(bi(100)) != 0 {
		t.Errorf("pre-commit alice balance = %s, want 100", got)
	}

	tx.Commit()
	if got := l.BalanceOf(tokenA, alice); got.Cmp(bi(60)) != 0 {
		t.Errorf("alice balance = %s, want 60", got)
	}
	if got := l.BalanceOf(tokenA, bob); got.Cmp(bi(40)) != 0 {
		t.Errorf("bob balance = %s, want 40", got)
	}
}

func TestDiscardDropsEverything(t *testing.T) {
	l := New()
	l.Mint(tokenA, alice, bi(100))

	tx := l.Begin()
	if err := tx.Transfer(tokenA, alice, bob, bi(99)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	tx.Approve(tokenA, alice, carol, bi(5))
	tx.Discard()

	if got := l.BalanceOf(tokenA, alice); got.Cmp(bi(100)) != 0 {
		t.Errorf("alice balance after discard = %s, want 100", got)
	}
	if got := l.BalanceOf(tokenA, bob); got.Sign() != 0 {
		t.Errorf("bob balance after discard = %s, want 0", got)
	}
	if got := l.Allowance(tokenA, alice, carol); got.Sign() != 0 {
		t.Errorf("allowance after discard = %s, want 0", got)
	}
}

func TestTransferInsufficientFunds(t *testing.T) {
	l := New()
	l.Mint(tokenA, alice, bi(10))

	tx := l.Begin()
	err := tx.Transfer(tokenA, alice, bob, bi(11))
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	tx.Discard()
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	l := New()
	l.Mint(tokenA, alice, bi(100))

	tx := l.Begin()
	tx.Approve(tokenA, alice, carol, bi(30))

	if err := tx.TransferFrom(tokenA, carol, alice, bob, bi(20)); err != nil {
		t.Fatalf("transfer_from: %v", err)
	}
	if got := tx.Allowance(tokenA, alice, carol); got.Cmp(bi(10)) != 0 {
		t.Errorf("remaining allowance = %s, want 10", got)
	}

	err := tx.TransferFrom(tokenA, carol, alice, bob, bi(11))
	if !errors.Is(err, domain.ErrInsufficientAllowance) {
		t.Fatalf("err = %v, want ErrInsufficientAllowance", err)
	}
	tx.Discard()
}

func TestApproveReplacesNotAdds(t *testing.T) {
	l := New()
	tx := l.Begin()
	tx.Approve(tokenA, alice, carol, bi(30))
	tx.Approve(tokenA, alice, carol, bi(7))
	if got := tx.Allowance(tokenA, alice, carol); got.Cmp(bi(7)) != 0 {
		t.Errorf("allowance = %s, want 7", got)
	}
	tx.Discard()
}

func TestTxReadsThroughToCommitted(t *testing.T) {
	l := New()
	l.Mint(tokenA, alice, bi(55))

	tx := l.Begin()
	if got := tx.BalanceOf(tokenA, alice); got.Cmp(bi(55)) != 0 {
		t.Errorf("read-through balance = %s, want 55", got)
	}
	tx.Discard()
}
