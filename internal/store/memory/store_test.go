package memory

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/flasharb/internal/domain"
)

var asset = common.HexToAddress("0x00000000000000000000000000000000000000A1")

func trade(id string, profit int64, success bool, finished time.Time) domain.TradeResult {
	return domain.TradeResult{
		RequestID:    id,
		BorrowAsset:  asset,
		BorrowAmount: big.NewInt(1000),
		Success:      success,
		Profit:       big.NewInt(profit),
		FinishedAt:   finished,
	}
}

func TestTradeStoreListRecent(t *testing.T) {
	ctx := context.Background()
	s := NewTradeStore()
	now := time.Now().UTC()

	for i, id := range []string{"a", "b", "c"} {
		if err := s.Insert(ctx, trade(id, int64(i), true, now)); err != nil {
			t.Fatalf("Insert %s: %v", id, err)
		}
	}

	got, err := s.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(got) != 2 || got[0].RequestID != "c" || got[1].RequestID != "b" {
		t.Errorf("ListRecent(2) order = %v, want [c b]", ids(got))
	}

	// Zero and oversized limits return everything.
	got, _ = s.ListRecent(ctx, 0)
	if len(got) != 3 {
		t.Errorf("ListRecent(0) = %d entries, want 3", len(got))
	}
	got, _ = s.ListRecent(ctx, 100)
	if len(got) != 3 {
		t.Errorf("ListRecent(100) = %d entries, want 3", len(got))
	}
}

func ids(trades []domain.TradeResult) []string {
	out := make([]string, len(trades))
	for i, tr := range trades {
		out[i] = tr.RequestID
	}
	return out
}

func TestTradeStoreSumProfit(t *testing.T) {
	ctx := context.Background()
	s := NewTradeStore()
	now := time.Now().UTC()

	s.Insert(ctx, trade("old", 100, true, now.Add(-2*time.Hour)))
	s.Insert(ctx, trade("settled", 250, true, now))
	s.Insert(ctx, trade("reverted", 999, false, now))

	sum, err := s.SumProfit(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("SumProfit: %v", err)
	}
	if sum.Int64() != 250 {
		t.Errorf("SumProfit since 1h = %s, want 250 (settled only, in window)", sum)
	}

	sum, _ = s.SumProfit(ctx, time.Time{})
	if sum.Int64() != 350 {
		t.Errorf("SumProfit all time = %s, want 350", sum)
	}
}

func TestParamsStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewParamsStore()

	if _, err := s.Load(ctx); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Load empty = %v, want ErrNotFound", err)
	}

	owner := common.HexToAddress("0x0000000000000000000000000000000000000AAA")
	p := &domain.Params{
		Version:           3,
		Owner:             owner,
		FeeBeneficiary:    owner,
		MaxGasPriceWei:    big.NewInt(1_000_000_000),
		MinProfitBps:      30,
		BeneficiaryFeeBps: 20,
		EstGasUnits:       400_000,
		Executors:         map[common.Address]bool{owner: true},
		Assets: map[common.Address]domain.AssetPolicy{
			asset: {Supported: true, MaxTradeSize: big.NewInt(5000)},
		},
		TotalProfit: big.NewInt(42),
		Stats:       map[common.Address]domain.AssetStats{},
	}
	if err := s.Save(ctx, p); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Mutating the saved original must not leak into the store.
	p.MinProfitBps = 999
	p.Assets[asset] = domain.AssetPolicy{}
	p.TotalProfit.SetInt64(0)

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Version != 3 || got.MinProfitBps != 30 {
		t.Errorf("loaded version/minprofit = %d/%d, want 3/30", got.Version, got.MinProfitBps)
	}
	if !got.Assets[asset].Supported || got.Assets[asset].MaxTradeSize.Int64() != 5000 {
		t.Errorf("loaded asset policy = %+v, want supported with cap 5000", got.Assets[asset])
	}
	if got.TotalProfit.Int64() != 42 {
		t.Errorf("loaded TotalProfit = %s, want 42", got.TotalProfit)
	}

	// And mutating a loaded copy must not corrupt subsequent loads.
	got.Executors[common.HexToAddress("0x1")] = true
	again, _ := s.Load(ctx)
	if len(again.Executors) != 1 {
		t.Errorf("executors after caller mutation = %d entries, want 1", len(again.Executors))
	}
}
