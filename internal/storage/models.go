package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// StateVersion is the persisted ledger format revision.
const StateVersion = 1

// SignalRecord is a committed breakout signal.
type SignalRecord struct {
	ID          string          `json:"id"`
	Sequence    uint64          `json:"sequence"`
	Symbol      string          `json:"symbol"`
	StockName   string          `json:"stockName"`
	Price       decimal.Decimal `json:"price"`
	Strength    int             `json:"strength"`
	ObservedAt  time.Time       `json:"observedAt"`
	Fingerprint string          `json:"fingerprint"`
	CommittedAt time.Time       `json:"committedAt"`
}

// LedgerState is the full persisted ledger, records in sequence order.
type LedgerState struct {
	Version int            `json:"version"`
	Hash    string         `json:"hash,omitempty"` // digest the fingerprints were computed with
	Records []SignalRecord `json:"records"`
}

// Clone returns a copy that shares no backing array with s.
func (s LedgerState) Clone() LedgerState {
	out := LedgerState{Version: s.Version, Hash: s.Hash, Records: make([]SignalRecord, len(s.Records))}
	copy(out.Records, s.Records)
	return out
}
