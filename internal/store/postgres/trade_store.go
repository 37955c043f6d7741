package postgres

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/flasharb/internal/domain"
)

// TradeStore persists trade outcomes in PostgreSQL.
type TradeStore struct {
	client *Client
}

// NewTradeStore creates a TradeStore backed by the given client.
func NewTradeStore(client *Client) *TradeStore {
	return &TradeStore{client: client}
}

var _ domain.TradeStore = (*TradeStore)(nil)

// Insert journals one terminal trade outcome.
func (s *TradeStore) Insert(ctx context.Context, res domain.TradeResult) error {
	const q = `
		INSERT INTO trades (
			request_id, caller, borrow_asset, borrow_amount,
			success, profit, beneficiary_fee, net_profit,
			leg1_out, leg2_out, gas_cost, reason,
			started_at, finished_at
		) VALUES (
			$1, $2, $3, $4::numeric,
			$5, $6::numeric, $7::numeric, $8::numeric,
			$9::numeric, $10::numeric, $11::numeric, $12,
			$13, $14
		)`
	_, err := s.client.pool.Exec(ctx, q,
		res.RequestID,
		res.Caller.Hex(),
		res.BorrowAsset.Hex(),
		numStr(res.BorrowAmount),
		res.Success,
		numStr(res.Profit),
		numStr(res.BeneficiaryFee),
		numStr(res.NetProfit),
		numStr(res.Leg1Out),
		numStr(res.Leg2Out),
		numStr(res.GasCost),
		res.Reason,
		res.StartedAt,
		res.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade %s: %w", res.RequestID, err)
	}
	return nil
}

// ListRecent returns the most recently finished trades, newest first.
func (s *TradeStore) ListRecent(ctx context.Context, limit int) ([]domain.TradeResult, error) {
	const q = `
		SELECT request_id, caller, borrow_asset, borrow_amount::text,
		       success, profit::text, beneficiary_fee::text, net_profit::text,
		       leg1_out::text, leg2_out::text, gas_cost::text, reason,
		       started_at, finished_at
		FROM trades
		ORDER BY finished_at DESC
		LIMIT $1`
	rows, err := s.client.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	defer rows.Close()

	var out []domain.TradeResult
	for rows.Next() {
		var (
			res                               domain.TradeResult
			caller, asset                     string
			amount, profit, benFee, netProfit string
			leg1, leg2, gasCost               string
		)
		err := rows.Scan(
			&res.RequestID, &caller, &asset, &amount,
			&res.Success, &profit, &benFee, &netProfit,
			&leg1, &leg2, &gasCost, &res.Reason,
			&res.StartedAt, &res.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan trade row: %w", err)
		}
		res.Caller = common.HexToAddress(caller)
		res.BorrowAsset = common.HexToAddress(asset)
		res.BorrowAmount = parseNum(amount)
		res.Profit = parseNum(profit)
		res.BeneficiaryFee = parseNum(benFee)
		res.NetProfit = parseNum(netProfit)
		res.Leg1Out = parseNum(leg1)
		res.Leg2Out = parseNum(leg2)
		res.GasCost = parseNum(gasCost)
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate trade rows: %w", err)
	}
	return out, nil
}

// SumProfit returns the total realized profit of settled trades finished at or
// after the given time.
func (s *TradeStore) SumProfit(ctx context.Context, since time.Time) (*big.Int, error) {
	const q = `
		SELECT COALESCE(SUM(profit), 0)::text
		FROM trades
		WHERE success AND finished_at >= $1`
	var sum string
	if err := s.client.pool.QueryRow(ctx, q, since).Scan(&sum); err != nil {
		return nil, fmt.Errorf("postgres: sum profit: %w", err)
	}
	return parseNum(sum), nil
}

func numStr(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseNum(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return v
}
