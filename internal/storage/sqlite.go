package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS signal_records (
	sequence     INTEGER PRIMARY KEY,
	id           TEXT    NOT NULL UNIQUE,
	symbol       TEXT    NOT NULL,
	stock_name   TEXT    NOT NULL,
	price        TEXT    NOT NULL,
	strength     INTEGER NOT NULL,
	observed_at  INTEGER NOT NULL,
	fingerprint  TEXT    NOT NULL UNIQUE,
	committed_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS ledger_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// SQLiteStore keeps the ledger in a local SQLite file. Timestamps are stored
// as Unix nanoseconds.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path with WAL journaling.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("storage.sqlite_path is required")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=FULL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// the ledger is the only writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load reads all records by sequence; an empty table is absent.
func (s *SQLiteStore) Load(ctx context.Context) (*LedgerState, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}

	rows, err := s.db.QueryContext(ctx, `SELECT sequence, id, symbol, stock_name, price, strength, observed_at, fingerprint, committed_at
		FROM signal_records ORDER BY sequence`)
	if err != nil {
		return nil, fmt.Errorf("sqlite list: %w", err)
	}
	defer rows.Close()

	records := make([]SignalRecord, 0)
	for rows.Next() {
		var (
			rec         SignalRecord
			sequence    int64
			priceStr    string
			observedAt  int64
			committedAt int64
		)
		if err := rows.Scan(&sequence, &rec.ID, &rec.Symbol, &rec.StockName, &priceStr, &rec.Strength, &observedAt, &rec.Fingerprint, &committedAt); err != nil {
			return nil, fmt.Errorf("sqlite scan: %w", err)
		}
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return nil, fmt.Errorf("parse price: %w", err)
		}
		rec.Sequence = uint64(sequence)
		rec.Price = price
		rec.ObservedAt = time.Unix(0, observedAt).UTC()
		rec.CommittedAt = time.Unix(0, committedAt).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	if len(records) == 0 {
		return nil, nil
	}

	var hash string
	err = s.db.QueryRowContext(ctx, `SELECT value FROM ledger_meta WHERE key = 'hash'`).Scan(&hash)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sqlite meta: %w", err)
	}
	return &LedgerState{Version: StateVersion, Hash: hash, Records: records}, nil
}

// Save rewrites the table in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, state LedgerState) error {
	if s == nil || s.db == nil {
		return ErrNotConfigured
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM signal_records`); err != nil {
		return fmt.Errorf("sqlite clear: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO ledger_meta (key, value) VALUES ('hash', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, state.Hash); err != nil {
		return fmt.Errorf("sqlite meta: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO signal_records
		(sequence, id, symbol, stock_name, price, strength, observed_at, fingerprint, committed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite prepare: %w", err)
	}
	defer stmt.Close()

	for _, rec := range state.Records {
		if _, err := stmt.ExecContext(ctx,
			int64(rec.Sequence),
			rec.ID,
			rec.Symbol,
			rec.StockName,
			rec.Price.String(),
			rec.Strength,
			rec.ObservedAt.UnixNano(),
			rec.Fingerprint,
			rec.CommittedAt.UnixNano(),
		); err != nil {
			return fmt.Errorf("sqlite insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit: %w", err)
	}
	return nil
}

var _ StateStore = (*SQLiteStore)(nil)
