package memory

import (
	"context"
	"sync"

	"github.com/alanyoungcy/flasharb/internal/domain"
)

// ParamsStore is an in-memory implementation of domain.ParamsStore.
type ParamsStore struct {
	mu      sync.RWMutex
	current *domain.Params
}

// NewParamsStore creates an empty in-memory configuration store.
func NewParamsStore() *ParamsStore {
	return &ParamsStore{}
}

// Save stores a deep copy of the given configuration version.
func (s *ParamsStore) Save(_ context.Context, p *domain.Params) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = p.Clone()
	return nil
}

// Load returns a deep copy of the latest saved configuration, or ErrNotFound
// if nothing has been saved.
func (s *ParamsStore) Load(_ context.Context) (*domain.Params, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, domain.ErrNotFound
	}
	return s.current.Clone(), nil
}

var _ domain.ParamsStore = (*ParamsStore)(nil)
