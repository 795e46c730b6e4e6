package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStore holds the ledger in process memory. Delay simulates a slow
// medium; FailSaves makes every subsequent Save return the given error.
type MemoryStore struct {
	mu        sync.Mutex
	state     *LedgerState
	delay     time.Duration
	failSaves error
	saves     int
}

// NewMemoryStore constructs an empty store with an optional per-save delay.
func NewMemoryStore(delay time.Duration) *MemoryStore {
	return &MemoryStore{delay: delay}
}

// Load returns a copy of the last saved state.
func (s *MemoryStore) Load(ctx context.Context) (*LedgerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil, nil
	}
	clone := s.state.Clone()
	return &clone, nil
}

// Save stores a copy of state after the configured delay.
func (s *MemoryStore) Save(ctx context.Context, state LedgerState) error {
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSaves != nil {
		return s.failSaves
	}
	clone := state.Clone()
	if clone.Version == 0 {
		clone.Version = StateVersion
	}
	s.state = &clone
	s.saves++
	return nil
}

// FailSaves makes future saves fail with err; nil restores normal behaviour.
func (s *MemoryStore) FailSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSaves = err
}

// Saves reports how many saves succeeded.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

var _ StateStore = (*MemoryStore)(nil)
