package domain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Event type names. Exactly one terminal event is emitted per request outcome.
const (
	EventTradeExecuted     = "trade_executed"
	EventLoanExecuted      = "loan_executed"
	EventProfitWithdrawn   = "profit_withdrawn"
	EventParamsUpdated     = "params_updated"
	EventExecutorChanged   = "executor_changed"
	EventTokenChanged      = "token_support_changed"
	EventEmergencyWithdraw = "emergency_withdrawal"
)

// Event is one observability record.
type Event struct {
	Type   string
	At     time.Time
	Fields map[string]any
}

// Emitter receives observability events. Emission failures must not affect
// request outcomes; implementations log and move on.
type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

// TradeExecutedEvent builds the terminal trade event for a settled request.
func TradeExecutedEvent(res TradeResult) Event {
	return Event{
		Type: EventTradeExecuted,
		At:   res.FinishedAt,
		Fields: map[string]any{
			"request_id":   res.RequestID,
			"caller":       res.Caller.Hex(),
			"borrow_asset": res.BorrowAsset.Hex(),
			"amount":       str(res.BorrowAmount),
			"profit":       str(res.Profit),
			"gas_cost":     str(res.GasCost),
		},
	}
}

// LoanExecutedEvent builds the per-loan outcome event.
func LoanExecutedEvent(asset common.Address, amount, fee *big.Int, success bool, reason string) Event {
	return Event{
		Type: EventLoanExecuted,
		At:   time.Now().UTC(),
		Fields: map[string]any{
			"asset":   asset.Hex(),
			"amount":  str(amount),
			"fee":     str(fee),
			"success": success,
			"reason":  reason,
		},
	}
}

func str(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
