package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trustscan/internal/detector"
	"trustscan/internal/logging"
	"trustscan/internal/storage"
)

var (
	// ErrDuplicateSignal is returned when a candidate's fingerprint is already recorded.
	ErrDuplicateSignal = errors.New("ledger: duplicate signal")
	// ErrPersistence wraps storage load/save failures.
	ErrPersistence = errors.New("ledger: persistence failure")
	// ErrTampered means loaded or in-memory records fail verification.
	ErrTampered = errors.New("ledger: integrity check failed")
	// ErrInvalidCandidate rejects a candidate that no detector could produce.
	ErrInvalidCandidate = errors.New("ledger: invalid candidate")
)

const (
	minStrength = 1
	maxStrength = 10
)

// Observer receives ledger outcomes; metrics hook in here.
type Observer interface {
	Committed(rec storage.SignalRecord)
	Duplicate(fingerprint string)
	PersistFailed(op string)
	Reset()
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithHash selects the fingerprint digest.
func WithHash(algo HashAlgorithm) Option {
	return func(l *Ledger) { l.hash = algo }
}

// WithClock replaces the clock used for CommittedAt.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithIDGenerator replaces the record ID source.
func WithIDGenerator(newID func() string) Option {
	return func(l *Ledger) {
		if newID != nil {
			l.newID = newID
		}
	}
}

// WithObserver attaches an outcome observer.
func WithObserver(obs Observer) Option {
	return func(l *Ledger) { l.observer = obs }
}

// Ledger is an append-only, fingerprinted record of committed signals. The
// whole of Commit and Reset runs under one mutex, so the duplicate check, the
// append and the save are never interleaved with another writer.
type Ledger struct {
	mu      sync.Mutex
	store   storage.StateStore
	records []storage.SignalRecord
	// fingerprints and content keys of every record, for O(1) duplicate checks
	fingerprints map[string]struct{}
	keys         map[string]struct{}

	hash     HashAlgorithm
	now      func() time.Time
	newID    func() string
	observer Observer
	logger   zerolog.Logger

	// configured is the digest new or reset ledgers start with; hash differs
	// when the persisted ledger was written with another one.
	configured HashAlgorithm
}

// Open loads persisted state from store and verifies it before accepting commits.
func Open(ctx context.Context, store storage.StateStore, logger zerolog.Logger, opts ...Option) (*Ledger, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, storage.ErrNotConfigured)
	}

	l := &Ledger{
		store:  store,
		hash:   HashSHA256,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
		logger: logging.Component(logger, "ledger"),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.configured = l.hash

	state, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load: %v", ErrPersistence, err)
	}
	if state != nil && len(state.Records) > 0 && state.Hash != "" {
		stored, err := ParseHashAlgorithm(state.Hash)
		if err != nil {
			return nil, fmt.Errorf("%w: stored state: %v", ErrPersistence, err)
		}
		if stored != l.hash {
			l.logger.Warn().Str("stored", string(stored)).Str("configured", string(l.hash)).
				Msg("ledger keeps the digest it was written with until reset")
			l.hash = stored
		}
	}
	if state != nil {
		if err := verifyRecords(l.hash, state.Records); err != nil {
			return nil, err
		}
		l.records = append(l.records, state.Records...)
	}
	l.rebuildIndex()

	l.logger.Info().Int("records", len(l.records)).Str("hash", string(l.hash)).Msg("ledger loaded")
	return l, nil
}

// Commit fingerprints the candidate at the next sequence position, rejects
// duplicates, appends and persists. A failed save is rolled back.
func (l *Ledger) Commit(ctx context.Context, c detector.Candidate) (storage.SignalRecord, error) {
	if err := validateCandidate(c); err != nil {
		return storage.SignalRecord{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	sequence := uint64(len(l.records))
	observedAt := c.ObservedAt.UTC().Truncate(time.Millisecond)
	in := FingerprintInput{
		StockName:  c.StockName,
		Price:      c.Price,
		Strength:   c.Strength,
		ObservedAt: observedAt,
		Sequence:   sequence,
	}
	fp := Fingerprint(l.hash, in)
	key := ContentKey(l.hash, in)

	if l.seen(fp, key) {
		l.logger.Warn().Str("fingerprint", fp).Str("stock", c.StockName).Msg("duplicate signal rejected")
		if l.observer != nil {
			l.observer.Duplicate(fp)
		}
		return storage.SignalRecord{}, fmt.Errorf("%w: %s", ErrDuplicateSignal, fp)
	}

	rec := storage.SignalRecord{
		ID:          l.newID(),
		Sequence:    sequence,
		Symbol:      c.Symbol,
		StockName:   c.StockName,
		Price:       c.Price,
		Strength:    c.Strength,
		ObservedAt:  observedAt,
		Fingerprint: fp,
		CommittedAt: l.now().UTC(),
	}

	l.records = append(l.records, rec)
	if err := l.store.Save(ctx, l.snapshot()); err != nil {
		l.records = l.records[:len(l.records)-1]
		l.logger.Error().Err(err).Uint64("sequence", sequence).Msg("persist commit failed; rolled back")
		if l.observer != nil {
			l.observer.PersistFailed("commit")
		}
		return storage.SignalRecord{}, fmt.Errorf("%w: save: %v", ErrPersistence, err)
	}
	l.fingerprints[fp] = struct{}{}
	l.keys[key] = struct{}{}

	l.logger.Info().
		Uint64("sequence", sequence).
		Str("stock", rec.StockName).
		Int("strength", rec.Strength).
		Str("fingerprint", fp).
		Msg("signal committed")
	if l.observer != nil {
		l.observer.Committed(rec)
	}
	return rec, nil
}

// List returns all records in commit order.
func (l *Ledger) List() []storage.SignalRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]storage.SignalRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Len reports the number of committed records.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Head returns the most recent record.
func (l *Ledger) Head() (storage.SignalRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.records) == 0 {
		return storage.SignalRecord{}, false
	}
	return l.records[len(l.records)-1], true
}

// Reset persists an empty ledger and then clears memory; sequence numbering
// restarts at 0. On a failed save nothing changes.
func (l *Ledger) Reset(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.Save(ctx, storage.LedgerState{Version: storage.StateVersion, Hash: string(l.configured)}); err != nil {
		l.logger.Error().Err(err).Msg("persist reset failed")
		if l.observer != nil {
			l.observer.PersistFailed("reset")
		}
		return fmt.Errorf("%w: save: %v", ErrPersistence, err)
	}

	cleared := len(l.records)
	l.records = nil
	l.hash = l.configured
	l.rebuildIndex()

	l.logger.Warn().Int("cleared", cleared).Msg("ledger reset")
	if l.observer != nil {
		l.observer.Reset()
	}
	return nil
}

// Hash reports the digest in use.
func (l *Ledger) Hash() HashAlgorithm {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hash
}

// Verify recomputes every fingerprint and checks sequence contiguity.
func (l *Ledger) Verify() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return verifyRecords(l.hash, l.records)
}

func (l *Ledger) seen(fp, key string) bool {
	if _, ok := l.fingerprints[fp]; ok {
		return true
	}
	_, ok := l.keys[key]
	return ok
}

func (l *Ledger) rebuildIndex() {
	l.fingerprints = make(map[string]struct{}, len(l.records))
	l.keys = make(map[string]struct{}, len(l.records))
	for _, rec := range l.records {
		l.fingerprints[rec.Fingerprint] = struct{}{}
		l.keys[ContentKey(l.hash, recordInput(rec))] = struct{}{}
	}
}

func recordInput(rec storage.SignalRecord) FingerprintInput {
	return FingerprintInput{
		StockName:  rec.StockName,
		Price:      rec.Price,
		Strength:   rec.Strength,
		ObservedAt: rec.ObservedAt,
		Sequence:   rec.Sequence,
	}
}

func (l *Ledger) snapshot() storage.LedgerState {
	records := make([]storage.SignalRecord, len(l.records))
	copy(records, l.records)
	return storage.LedgerState{Version: storage.StateVersion, Hash: string(l.hash), Records: records}
}

func validateCandidate(c detector.Candidate) error {
	switch {
	case c.Strength < minStrength || c.Strength > maxStrength:
		return fmt.Errorf("%w: strength %d outside %d..%d", ErrInvalidCandidate, c.Strength, minStrength, maxStrength)
	case strings.TrimSpace(c.StockName) == "":
		return fmt.Errorf("%w: empty stock name", ErrInvalidCandidate)
	case c.Price.IsNegative():
		return fmt.Errorf("%w: negative price %s", ErrInvalidCandidate, c.Price)
	case c.ObservedAt.IsZero():
		return fmt.Errorf("%w: missing observation time", ErrInvalidCandidate)
	}
	return nil
}

func verifyRecords(algo HashAlgorithm, records []storage.SignalRecord) error {
	seen := make(map[string]struct{}, len(records))
	keys := make(map[string]struct{}, len(records))
	for i, rec := range records {
		if rec.Sequence != uint64(i) {
			return fmt.Errorf("%w: record %d has sequence %d", ErrTampered, i, rec.Sequence)
		}
		in := recordInput(rec)
		if rec.Fingerprint != Fingerprint(algo, in) {
			return fmt.Errorf("%w: record %d fingerprint mismatch", ErrTampered, i)
		}
		if _, dup := seen[rec.Fingerprint]; dup {
			return fmt.Errorf("%w: record %d repeats fingerprint %s", ErrTampered, i, rec.Fingerprint)
		}
		key := ContentKey(algo, in)
		if _, dup := keys[key]; dup {
			return fmt.Errorf("%w: record %d repeats an earlier signal", ErrTampered, i)
		}
		seen[rec.Fingerprint] = struct{}{}
		keys[key] = struct{}{}
	}
	return nil
}
