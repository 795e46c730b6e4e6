package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured indicates the backing connection was not initialised.
	ErrNotConfigured = errors.New("storage: backend not configured")
)

// StateStore persists the whole ledger state. Load returns (nil, nil) when
// nothing has been saved yet.
type StateStore interface {
	Load(ctx context.Context) (*LedgerState, error)
	Save(ctx context.Context, state LedgerState) error
}

// AdvisoryLocker exposes cross-process lock helpers for backends that have them.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

func encodeState(state LedgerState) ([]byte, error) {
	if state.Version == 0 {
		state.Version = StateVersion
	}
	if state.Records == nil {
		state.Records = []SignalRecord{}
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode ledger state: %w", err)
	}
	return payload, nil
}

func decodeState(payload []byte) (*LedgerState, error) {
	var state LedgerState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("decode ledger state: %w", err)
	}
	if state.Version > StateVersion {
		return nil, fmt.Errorf("decode ledger state: unsupported version %d", state.Version)
	}
	return &state, nil
}
