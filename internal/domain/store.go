package domain

import (
	"context"
	"math/big"
	"time"
)

// TradeStore persists terminal trade outcomes for later analysis. Both
// settled and reverted attempts are journaled; only settled ones move the
// cumulative counters.
type TradeStore interface {
	Insert(ctx context.Context, res TradeResult) error
	ListRecent(ctx context.Context, limit int) ([]TradeResult, error)
	SumProfit(ctx context.Context, since time.Time) (*big.Int, error)
}

// ParamsStore persists the durable configuration state so it survives
// restarts. Save is called after every accepted mutation with the full new
// version.
type ParamsStore interface {
	Save(ctx context.Context, p *Params) error
	Load(ctx context.Context) (*Params, error)
}

// LockManager provides the whole-sequence exclusive lock. Acquire returns an
// unlock function, or ErrLockHeld if the lock is held elsewhere.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// GasOracle reports the current resource price in wei. The gateway compares
// it against the configured ceiling once per request.
type GasOracle interface {
	GasPrice(ctx context.Context) (*big.Int, error)
}
