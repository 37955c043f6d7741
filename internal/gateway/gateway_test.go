package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/flasharb/internal/domain"
	"github.com/alanyoungcy/flasharb/internal/gasprice"
	"github.com/alanyoungcy/flasharb/internal/ledger"
	"github.com/alanyoungcy/flasharb/internal/lender"
	"github.com/alanyoungcy/flasharb/internal/orchestrator"
	"github.com/alanyoungcy/flasharb/internal/registry"
	"github.com/alanyoungcy/flasharb/internal/sequencer"
	"github.com/alanyoungcy/flasharb/internal/settle"
	"github.com/alanyoungcy/flasharb/internal/store/memory"
	"github.com/alanyoungcy/flasharb/internal/venue"
)

var (
	tokenA       = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	tokenB       = common.HexToAddress("0x00000000000000000000000000000000000000B1")
	tokenX       = common.HexToAddress("0x00000000000000000000000000000000000000D1")
	selfAddr     = common.HexToAddress("0x0000000000000000000000000000000000001000")
	facilityAddr = common.HexToAddress("0x0000000000000000000000000000000000001001")
	pool1Addr    = common.HexToAddress("0x0000000000000000000000000000000000002001")
	pool2Addr    = common.HexToAddress("0x0000000000000000000000000000000000002002")
	evilAddr     = common.HexToAddress("0x0000000000000000000000000000000000002EEE")
	owner        = common.HexToAddress("0x0000000000000000000000000000000000000AAA")
	executor     = common.HexToAddress("0x0000000000000000000000000000000000000CCC")
	stranger     = common.HexToAddress("0x0000000000000000000000000000000000000BBB")
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type nopEmitter struct{}

func (nopEmitter) Emit(context.Context, domain.Event) {}

type fixture struct {
	gw     *Gateway
	book   *ledger.Ledger
	reg    *registry.Registry
	trades *memory.TradeStore
	venues *venue.Registry
	oracle *gasprice.Static
}

// newFixture builds a full in-process stack: funded facility, two zero-fee
// pools with disagreeing prices, registry with tokenA supported, static gas
// oracle well under the ceiling.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	book := ledger.New()
	book.Mint(tokenA, facilityAddr, big.NewInt(1_000_000))
	book.Mint(tokenA, pool1Addr, big.NewInt(1_000_000))
	book.Mint(tokenB, pool1Addr, big.NewInt(1_000_000))
	book.Mint(tokenB, pool2Addr, big.NewInt(1_000_000))
	book.Mint(tokenA, pool2Addr, big.NewInt(2_000_000))

	venues := venue.NewRegistry()
	venues.Register(venue.NewConstantProduct(pool1Addr, tokenA, tokenB, 0, book))
	venues.Register(venue.NewConstantProduct(pool2Addr, tokenA, tokenB, 0, book))

	initial := &domain.Params{
		Owner:             owner,
		FeeBeneficiary:    owner,
		MaxGasPriceWei:    big.NewInt(100_000_000_000), // 100 gwei
		MinProfitBps:      30,
		MaxSlippageBps:    50,
		BeneficiaryFeeBps: 20,
		EstGasUnits:       400_000,
		Executors:         map[common.Address]bool{executor: true},
		Assets: map[common.Address]domain.AssetPolicy{
			tokenA: {Supported: true, MaxTradeSize: big.NewInt(100_000)},
		},
		TotalProfit: new(big.Int),
		Stats:       map[common.Address]domain.AssetStats{},
	}
	reg, err := registry.New(context.Background(), initial, memory.NewParamsStore(), nopEmitter{}, testLogger())
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}

	facility := lender.NewPool(facilityAddr, lender.DefaultFeeBps, testLogger())
	seq := sequencer.New(venues, selfAddr, testLogger())
	acct := settle.New(selfAddr, testLogger())
	orch := orchestrator.New(facility, seq, acct, selfAddr, testLogger())
	est := registry.NewEstimator(reg, facility)
	trades := memory.NewTradeStore()
	oracle := gasprice.NewStatic(big.NewInt(1_000_000_000)) // 1 gwei

	gw := New(reg, est, orch, book, trades, nopEmitter{}, oracle, selfAddr, testLogger(), Options{})
	return &fixture{gw: gw, book: book, reg: reg, trades: trades, venues: venues, oracle: oracle}
}

func payload(t *testing.T, in, out common.Address, amount int64) []byte {
	t.Helper()
	data, err := venue.EncodeSwap(venue.SwapParams{
		TokenIn: in, TokenOut: out,
		AmountIn: big.NewInt(amount), MinOut: new(big.Int),
	})
	if err != nil {
		t.Fatalf("EncodeSwap: %v", err)
	}
	return data
}

// profitableRequest borrows 10000 A; leg 1 yields 9900 B, leg 2 yields 19605 A.
func profitableRequest(t *testing.T) *domain.ArbitrageRequest {
	t.Helper()
	return &domain.ArbitrageRequest{
		BorrowAsset:  tokenA,
		BorrowAmount: big.NewInt(10_000),
		TokenIn:      tokenA,
		TokenOut:     tokenB,
		AmountOutMin: big.NewInt(9_900),
		Legs: [2]domain.VenueCall{
			{Venue: pool1Addr, Payload: payload(t, tokenA, tokenB, 10_000)},
			{Venue: pool2Addr, Payload: payload(t, tokenB, tokenA, 9_900)},
		},
	}
}

func TestRequestArbitrageSettles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.gw.RequestArbitrage(ctx, executor, profitableRequest(t))
	if err != nil {
		t.Fatalf("RequestArbitrage: %v", err)
	}
	if !res.Success {
		t.Fatal("result not successful")
	}
	if res.Profit.Int64() != 9_596 {
		t.Errorf("Profit = %s, want 9596", res.Profit)
	}
	if res.BeneficiaryFee.Int64() != 19 {
		t.Errorf("BeneficiaryFee = %s, want 19", res.BeneficiaryFee)
	}
	if res.NetProfit.Int64() != 9_577 {
		t.Errorf("NetProfit = %s, want 9577", res.NetProfit)
	}
	if res.RequestID == "" {
		t.Error("request was not assigned an ID")
	}

	// Committed balances: facility whole plus fee, component keeps net profit.
	if got := f.book.BalanceOf(tokenA, facilityAddr); got.Int64() != 1_000_009 {
		t.Errorf("facility balance = %s, want 1000009", got)
	}
	if got := f.book.BalanceOf(tokenA, selfAddr); got.Int64() != 9_577 {
		t.Errorf("self balance = %s, want 9577", got)
	}

	// Counters moved exactly once.
	snap := f.reg.Snapshot()
	if snap.TotalTrades != 1 || snap.TotalProfit.Int64() != 9_596 {
		t.Errorf("counters = %d/%s, want 1/9596", snap.TotalTrades, snap.TotalProfit)
	}

	// Outcome journaled.
	recent, err := f.trades.ListRecent(ctx, 10)
	if err != nil || len(recent) != 1 {
		t.Fatalf("ListRecent = %d entries, err %v, want 1", len(recent), err)
	}
}

func TestRequestArbitrageCheckOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := profitableRequest(t)

	// Authorization is checked first.
	if _, err := f.gw.RequestArbitrage(ctx, stranger, req); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("stranger = %v, want ErrUnauthorized", err)
	}

	// Global pause beats asset policy.
	if err := f.reg.Pause(ctx, owner); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if _, err := f.gw.RequestArbitrage(ctx, executor, req); !errors.Is(err, domain.ErrBadState) {
		t.Errorf("paused = %v, want ErrBadState", err)
	}
	if err := f.reg.Unpause(ctx, owner); err != nil {
		t.Fatalf("Unpause: %v", err)
	}

	// Unsupported asset.
	bad := profitableRequest(t)
	bad.BorrowAsset = tokenX
	bad.TokenIn = tokenX
	if _, err := f.gw.RequestArbitrage(ctx, executor, bad); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("unsupported asset = %v, want ErrInvalidRequest", err)
	}

	// Paused asset.
	if err := f.reg.SetAssetPaused(ctx, owner, tokenA, true); err != nil {
		t.Fatalf("SetAssetPaused: %v", err)
	}
	if _, err := f.gw.RequestArbitrage(ctx, executor, req); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("paused asset = %v, want ErrInvalidRequest", err)
	}
	if err := f.reg.SetAssetPaused(ctx, owner, tokenA, false); err != nil {
		t.Fatalf("SetAssetPaused: %v", err)
	}

	// Gas ceiling.
	f.oracle.Set(big.NewInt(200_000_000_000)) // 200 gwei, ceiling is 100
	if _, err := f.gw.RequestArbitrage(ctx, executor, req); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("gas above ceiling = %v, want ErrInvalidRequest", err)
	}
	f.oracle.Set(big.NewInt(1_000_000_000))

	// Size cap.
	big1 := profitableRequest(t)
	big1.BorrowAmount = big.NewInt(100_001)
	if _, err := f.gw.RequestArbitrage(ctx, executor, big1); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("over cap = %v, want ErrInvalidRequest", err)
	}
}

func TestRequestValidationBeforeSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := profitableRequest(t)
	req.BorrowAmount = big.NewInt(0)

	_, err := f.gw.RequestArbitrage(ctx, executor, req)
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("zero amount = %v, want ErrInvalidRequest", err)
	}

	// No events, no journal, no balance movement.
	if recent, _ := f.trades.ListRecent(ctx, 10); len(recent) != 0 {
		t.Errorf("journal has %d entries, want 0", len(recent))
	}
	if got := f.book.BalanceOf(tokenA, facilityAddr); got.Int64() != 1_000_000 {
		t.Errorf("facility balance = %s, want 1000000", got)
	}
	if f.reg.Snapshot().TotalTrades != 0 {
		t.Error("counters moved on a rejected request")
	}
}

func TestRevertedRequestLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Round trip through the same pool loses to price impact.
	req := profitableRequest(t)
	req.Legs[1] = domain.VenueCall{Venue: pool1Addr, Payload: payload(t, tokenB, tokenA, 9_900)}

	res, err := f.gw.RequestArbitrage(ctx, executor, req)
	if !errors.Is(err, domain.ErrInsufficientRepayment) {
		t.Fatalf("error = %v, want ErrInsufficientRepayment", err)
	}
	if res.Success {
		t.Error("reverted result marked successful")
	}
	if res.Profit.Sign() >= 0 {
		t.Errorf("Profit = %s, want strictly negative shortfall", res.Profit)
	}

	// Atomicity: all balances as if the request never ran.
	if got := f.book.BalanceOf(tokenA, facilityAddr); got.Int64() != 1_000_000 {
		t.Errorf("facility balance = %s, want 1000000", got)
	}
	if got := f.book.BalanceOf(tokenA, selfAddr); got.Sign() != 0 {
		t.Errorf("self balance = %s, want 0", got)
	}
	if got := f.book.BalanceOf(tokenA, pool1Addr); got.Int64() != 1_000_000 {
		t.Errorf("pool1 tokenA = %s, want 1000000", got)
	}
	if got := f.book.BalanceOf(tokenB, pool1Addr); got.Int64() != 1_000_000 {
		t.Errorf("pool1 tokenB = %s, want 1000000", got)
	}

	// Reverted attempts are journaled but never counted.
	if f.reg.Snapshot().TotalTrades != 0 {
		t.Error("counters moved on a reverted request")
	}
	if recent, _ := f.trades.ListRecent(ctx, 10); len(recent) != 1 {
		t.Errorf("journal has %d entries, want 1", len(recent))
	}
}

// reentrantVenue calls back into the gateway from inside a swap leg.
type reentrantVenue struct {
	addr common.Address
	gw   *Gateway
	req  func() *domain.ArbitrageRequest
	err  error
}

func (v *reentrantVenue) Address() common.Address { return v.addr }
func (v *reentrantVenue) Quote(context.Context, common.Address, common.Address, *big.Int) (*big.Int, error) {
	return new(big.Int), nil
}
func (v *reentrantVenue) Swap(ctx context.Context, _ *ledger.Tx, _ common.Address, _ []byte) error {
	_, v.err = v.gw.RequestArbitrage(ctx, executor, v.req())
	return v.err
}

func TestNestedRequestFromVenueFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	evil := &reentrantVenue{addr: evilAddr, gw: f.gw, req: func() *domain.ArbitrageRequest {
		return profitableRequest(t)
	}}
	f.venues.Register(evil)

	req := profitableRequest(t)
	req.Legs[0] = domain.VenueCall{Venue: evilAddr}

	_, err := f.gw.RequestArbitrage(ctx, executor, req)
	if err == nil {
		t.Fatal("request through reentrant venue succeeded")
	}
	if !errors.Is(evil.err, domain.ErrBadState) {
		t.Fatalf("nested call error = %v, want ErrBadState", evil.err)
	}

	// The outer attempt rolled back completely.
	if got := f.book.BalanceOf(tokenA, facilityAddr); got.Int64() != 1_000_000 {
		t.Errorf("facility balance = %s, want 1000000", got)
	}
}

func TestWithdrawProfit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.book.Mint(tokenA, selfAddr, big.NewInt(5_000))

	if _, err := f.gw.WithdrawProfit(ctx, stranger, tokenA); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("stranger withdraw = %v, want ErrUnauthorized", err)
	}

	got, err := f.gw.WithdrawProfit(ctx, owner, tokenA)
	if err != nil {
		t.Fatalf("WithdrawProfit: %v", err)
	}
	if got.Int64() != 5_000 {
		t.Errorf("withdrawn = %s, want 5000", got)
	}
	if bal := f.book.BalanceOf(tokenA, owner); bal.Int64() != 5_000 {
		t.Errorf("owner balance = %s, want 5000", bal)
	}
	if bal := f.book.BalanceOf(tokenA, selfAddr); bal.Sign() != 0 {
		t.Errorf("self balance = %s, want 0", bal)
	}
}

func TestWithdrawProfitBlockedWhilePaused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.book.Mint(tokenA, selfAddr, big.NewInt(5_000))

	if err := f.reg.Pause(ctx, owner); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if _, err := f.gw.WithdrawProfit(ctx, owner, tokenA); !errors.Is(err, domain.ErrBadState) {
		t.Errorf("withdraw while paused = %v, want ErrBadState", err)
	}

	// EmergencyWithdraw works while paused.
	got, err := f.gw.EmergencyWithdraw(ctx, owner, tokenA)
	if err != nil {
		t.Fatalf("EmergencyWithdraw: %v", err)
	}
	if got.Int64() != 5_000 {
		t.Errorf("withdrawn = %s, want 5000", got)
	}
}

func TestIsProfitable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := profitableRequest(t)
	// Fee 9, required 10009, gas 1 gwei * 400000 units = 4e14, dwarfing the
	// min-out of 9900: never profitable at these toy magnitudes.
	ok, _, err := f.gw.IsProfitable(ctx, req)
	if err != nil {
		t.Fatalf("IsProfitable: %v", err)
	}
	if ok {
		t.Error("toy request reported profitable despite gas cost")
	}

	// Scale amounts past gas cost: borrow 1e18, min out 2e18.
	req.BorrowAmount, _ = new(big.Int).SetString("1000000000000000000", 10)
	req.AmountOutMin, _ = new(big.Int).SetString("2000000000000000000", 10)
	ok, est, err := f.gw.IsProfitable(ctx, req)
	if err != nil {
		t.Fatalf("IsProfitable: %v", err)
	}
	if !ok {
		t.Errorf("large request not profitable, estimate %s", est)
	}
}

func TestReadOnlyQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.gw.RequestArbitrage(ctx, executor, profitableRequest(t)); err != nil {
		t.Fatalf("RequestArbitrage: %v", err)
	}

	st := f.gw.GetStats(tokenA)
	if st.Trades != 1 || st.Profit.Int64() != 9_596 {
		t.Errorf("GetStats = %d/%s, want 1/9596", st.Trades, st.Profit)
	}
	if f.gw.GetStats(tokenX).Trades != 0 {
		t.Error("GetStats for untraded asset should be zero")
	}

	cfg := f.gw.GetConfiguration()
	if cfg.Owner != owner || cfg.BeneficiaryFeeBps != 20 {
		t.Errorf("GetConfiguration owner/fee = %s/%d", cfg.Owner.Hex(), cfg.BeneficiaryFeeBps)
	}

	pol := f.gw.GetTokenStatus(tokenA)
	if !pol.Supported || pol.MaxTradeSize.Int64() != 100_000 {
		t.Errorf("GetTokenStatus = %+v", pol)
	}
	if f.gw.GetTokenStatus(tokenX).Supported {
		t.Error("unknown asset reported as supported")
	}

	assets := f.gw.ListSupportedAssets()
	if len(assets) != 1 || assets[0] != tokenA {
		t.Errorf("ListSupportedAssets = %v, want [tokenA]", assets)
	}
}

func TestEstimateLoanFee(t *testing.T) {
	f := newFixture(t)
	if got := f.gw.EstimateLoanFee(tokenA, big.NewInt(10_000)); got.Int64() != 9 {
		t.Errorf("EstimateLoanFee = %s, want 9", got)
	}
	if got := f.gw.EstimateLoanFee(tokenA, nil); got.Sign() != 0 {
		t.Errorf("EstimateLoanFee(nil) = %s, want 0", got)
	}
}
