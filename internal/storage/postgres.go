package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"trustscan/internal/config"
)

const (
	createSignalRecordsSQL = `CREATE TABLE IF NOT EXISTS signal_records (
        sequence     BIGINT PRIMARY KEY,
        id           TEXT        NOT NULL UNIQUE,
        symbol       TEXT        NOT NULL,
        stock_name   TEXT        NOT NULL,
        price        NUMERIC     NOT NULL,
        strength     SMALLINT    NOT NULL,
        observed_at  TIMESTAMPTZ NOT NULL,
        fingerprint  TEXT        NOT NULL UNIQUE,
        committed_at TIMESTAMPTZ NOT NULL
    );`

	listSignalRecordsSQL = `SELECT
        sequence,
        id,
        symbol,
        stock_name,
        price::text,
        strength,
        observed_at,
        fingerprint,
        committed_at
    FROM signal_records
    ORDER BY sequence;`

	createLedgerMetaSQL = `CREATE TABLE IF NOT EXISTS ledger_meta (
        key   TEXT PRIMARY KEY,
        value TEXT NOT NULL
    );`

	selectLedgerHashSQL = `SELECT value FROM ledger_meta WHERE key = 'hash';`

	upsertLedgerHashSQL = `INSERT INTO ledger_meta (key, value) VALUES ('hash', $1)
    ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value;`

	truncateSignalRecordsSQL = `DELETE FROM signal_records;`

	insertSignalRecordSQL = `INSERT INTO signal_records (
        sequence,
        id,
        symbol,
        stock_name,
        price,
        strength,
        observed_at,
        fingerprint,
        committed_at
    ) VALUES (
        $1,$2,$3,$4,$5::numeric,$6,$7,$8,$9
    );`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}

// PostgresStore keeps the ledger in the signal_records table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wires a pgx pool into a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *PostgresStore) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates the signal_records table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, createSignalRecordsSQL); err != nil {
		return fmt.Errorf("create signal_records: %w", err)
	}
	if _, err := pool.Exec(ctx, createLedgerMetaSQL); err != nil {
		return fmt.Errorf("create ledger_meta: %w", err)
	}
	return nil
}

// Load reads every record ordered by sequence. An empty table is reported as absent.
func (s *PostgresStore) Load(ctx context.Context) (*LedgerState, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSignalRecordsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list signal records: %w", queryErr)
	}
	defer rows.Close()

	records := make([]SignalRecord, 0)
	for rows.Next() {
		rec, scanErr := scanSignalRecord(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	if len(records) == 0 {
		return nil, nil
	}

	var hash string
	if err := pool.QueryRow(ctx, selectLedgerHashSQL).Scan(&hash); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("read ledger hash: %w", err)
	}
	return &LedgerState{Version: StateVersion, Hash: hash, Records: records}, nil
}

// Save replaces the table contents inside a single transaction.
func (s *PostgresStore) Save(ctx context.Context, state LedgerState) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, truncateSignalRecordsSQL); err != nil {
		return fmt.Errorf("clear signal records: %w", err)
	}
	if _, err := tx.Exec(ctx, upsertLedgerHashSQL, state.Hash); err != nil {
		return fmt.Errorf("write ledger hash: %w", err)
	}

	if len(state.Records) > 0 {
		batch := &pgx.Batch{}
		for _, rec := range state.Records {
			batch.Queue(insertSignalRecordSQL,
				int64(rec.Sequence),
				rec.ID,
				rec.Symbol,
				rec.StockName,
				rec.Price.String(),
				rec.Strength,
				rec.ObservedAt,
				rec.Fingerprint,
				rec.CommittedAt,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert signal records: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *PostgresStore) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func scanSignalRecord(rows pgx.Rows) (SignalRecord, error) {
	var (
		sequence    int64
		id          string
		symbol      string
		stockName   string
		priceStr    string
		strength    int16
		observedAt  time.Time
		fingerprint string
		committedAt time.Time
	)

	if err := rows.Scan(
		&sequence,
		&id,
		&symbol,
		&stockName,
		&priceStr,
		&strength,
		&observedAt,
		&fingerprint,
		&committedAt,
	); err != nil {
		return SignalRecord{}, err
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return SignalRecord{}, fmt.Errorf("parse price: %w", err)
	}

	return SignalRecord{
		ID:          id,
		Sequence:    uint64(sequence),
		Symbol:      symbol,
		StockName:   stockName,
		Price:       price,
		Strength:    int(strength),
		ObservedAt:  observedAt.UTC(),
		Fingerprint: fingerprint,
		CommittedAt: committedAt.UTC(),
	}, nil
}

var _ StateStore = (*PostgresStore)(nil)
var _ AdvisoryLocker = (*PostgresStore)(nil)
