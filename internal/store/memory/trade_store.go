// Package memory provides in-memory store implementations used in tests and
// single-process deployments without a database.
package memory

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/alanyoungcy/flasharb/internal/domain"
)

// TradeStore is an in-memory implementation of domain.TradeStore.
type TradeStore struct {
	mu     sync.RWMutex
	trades []domain.TradeResult
}

// NewTradeStore creates an empty in-memory trade journal.
func NewTradeStore() *TradeStore {
	return &TradeStore{}
}

// Insert appends a terminal trade outcome.
func (s *TradeStore) Insert(_ context.Context, res domain.TradeResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, res)
	return nil
}

// ListRecent returns up to limit outcomes, newest first.
func (s *TradeStore) ListRecent(_ context.Context, limit int) ([]domain.TradeResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.trades) {
		limit = len(s.trades)
	}
	out := make([]domain.TradeResult, 0, limit)
	for i := len(s.trades) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.trades[i])
	}
	return out, nil
}

// SumProfit sums realized profit of settled trades since the given time.
func (s *TradeStore) SumProfit(_ context.Context, since time.Time) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum := new(big.Int)
	for _, t := range s.trades {
		if t.Success && !t.FinishedAt.Before(since) && t.Profit != nil {
			sum.Add(sum, t.Profit)
		}
	}
	return sum, nil
}

var _ domain.TradeStore = (*TradeStore)(nil)
