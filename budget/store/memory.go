// Package store provides budget.Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/budget-engine/budget"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps a single state in memory. Load and Save copy so callers never
// share maps or slices with the store.
type Memory struct {
	mu    sync.RWMutex
	state *budget.State
	saves int
}

func NewMemory() *Memory {
	return &Memory{}
}

// NewMemoryWith starts the store with a copy of s.
func NewMemoryWith(s *budget.State) *Memory {
	return &Memory{state: s.Clone()}
}

func (m *Memory) Load(_ context.Context) (*budget.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Clone(), nil
}

func (m *Memory) Save(_ context.Context, s *budget.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s.Clone()
	m.saves++
	return nil
}

// Saves reports how many times Save has been called.
func (m *Memory) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}
